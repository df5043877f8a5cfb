package hub

import (
	"encoding/json"

	"github.com/orchestra-mcp/metax/src/types"
	"github.com/tidwall/gjson"
)

// Classify sorts a raw frame into one of the inbound message shapes.
// The cascade is strict: event+uuid, then event, then unclassified.
func Classify(frame []byte) types.InboundMessage {
	if !gjson.ValidBytes(frame) {
		return types.InboundMessage{Kind: types.KindUnclassified, Raw: frame}
	}
	root := gjson.ParseBytes(frame)
	if !root.IsObject() {
		return types.InboundMessage{Kind: types.KindUnclassified, Raw: frame}
	}

	event := root.Get(`event`)
	if !event.Exists() {
		return types.InboundMessage{Kind: types.KindUnclassified, Raw: frame}
	}
	payload := json.RawMessage(event.Raw)

	if id := root.Get(`uuid`); id.Exists() {
		return types.InboundMessage{
			Kind:  types.KindResourceUpdate,
			ID:    id.String(),
			Event: payload,
		}
	}
	return types.InboundMessage{Kind: types.KindSystemEvent, Event: payload}
}

// Dispatch routes a frame received on this instance's channel and forwards
// it to the bridge, if one is attached. A frame whose relayed copy was
// already delivered is forwarded but not routed again. The returned error
// only reports protocol violations; listener failures are logged.
func (h *Hub) Dispatch(frame []byte) error {
	var err error
	if h.relayRef().admitUpstream(frame) {
		err = h.route(frame, false)
	} else {
		h.logger.Debug().Msg("frame already delivered by relay")
	}
	h.publishToBridge(frame)
	return err
}

// DispatchRelayed routes a frame received from another instance via the
// bridge. Frames this instance already delivered within the relay window
// are dropped, as are updates for resources it does not watch.
func (h *Hub) DispatchRelayed(frame []byte) error {
	if !h.relayRef().admitRelayed(frame) {
		h.logger.Debug().Msg("relayed frame already delivered")
		return nil
	}
	return h.route(frame, true)
}

func (h *Hub) route(frame []byte, relayed bool) error {
	msg := Classify(frame)
	h.metricsRef().Frame(msg.Kind.String())
	h.logger.Debug().
		Str("kind", msg.Kind.String()).
		Bool("relayed", relayed).
		Msg("frame received")

	switch msg.Kind {
	case types.KindResourceUpdate:
		return h.dispatchResourceUpdate(msg.ID, msg.Event, relayed)
	case types.KindSystemEvent:
		h.dispatchSystemEvent(msg.Event)
	default:
		h.dispatchGeneric(msg.Raw)
	}
	return nil
}

// publishToBridge forwards a frame to the bridge if one is attached.
func (h *Hub) publishToBridge(frame []byte) {
	h.mu.Lock()
	b := h.bridge
	m := h.metrics
	h.mu.Unlock()

	if b == nil || !b.Available() {
		return
	}
	if err := b.Publish(frame); err != nil {
		h.logger.Error().Err(err).Msg("bridge publish failed")
		return
	}
	m.Relayed("out")
}
