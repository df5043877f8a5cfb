package hub

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/orchestra-mcp/metax/src/types"
)

// multicast is an ordered listener set. Callers hold Hub.mu.
type multicast[L comparable] struct {
	name      string
	max       int
	listeners []L
}

func (m *multicast[L]) add(l L) error {
	if slices.Contains(m.listeners, l) {
		return fmt.Errorf("%w: %s listener", types.ErrDuplicateSubscription, m.name)
	}
	if m.max > 0 && len(m.listeners) >= m.max {
		return fmt.Errorf("%w: %d %s listeners", types.ErrCapacity, m.max, m.name)
	}
	m.listeners = append(m.listeners, l)
	return nil
}

func (m *multicast[L]) remove(l L) error {
	i := slices.Index(m.listeners, l)
	if i < 0 {
		return fmt.Errorf("%w: %s listener", types.ErrNotFound, m.name)
	}
	m.listeners = slices.Delete(slices.Clone(m.listeners), i, i+1)
	return nil
}

func (m *multicast[L]) snapshot() []L {
	return slices.Clone(m.listeners)
}

// RegisterSystemEventListener appends l to the system event listeners.
func (h *Hub) RegisterSystemEventListener(l types.SystemEventListener) error {
	if !comparableListener(l) {
		return types.ErrInvalidListener
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.system.add(l)
}

// UnregisterSystemEventListener removes l by identity.
func (h *Hub) UnregisterSystemEventListener(l types.SystemEventListener) error {
	if !comparableListener(l) {
		return types.ErrInvalidListener
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.system.remove(l)
}

// RegisterGenericListener appends l to the listeners for unclassified frames.
func (h *Hub) RegisterGenericListener(l types.GenericListener) error {
	if !comparableListener(l) {
		return types.ErrInvalidListener
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.generic.add(l)
}

// UnregisterGenericListener removes l by identity.
func (h *Hub) UnregisterGenericListener(l types.GenericListener) error {
	if !comparableListener(l) {
		return types.ErrInvalidListener
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.generic.remove(l)
}

func (h *Hub) dispatchSystemEvent(event json.RawMessage) {
	h.mu.Lock()
	listeners := h.system.snapshot()
	h.mu.Unlock()

	for _, l := range listeners {
		h.invoke("system", func() error {
			return l.HandleSystemEvent(event)
		})
	}
}

func (h *Hub) dispatchGeneric(raw []byte) {
	h.mu.Lock()
	listeners := h.generic.snapshot()
	h.mu.Unlock()

	if len(listeners) == 0 {
		h.logger.Debug().Int("bytes", len(raw)).Msg("no generic listener")
		return
	}
	for _, l := range listeners {
		h.invoke("generic", func() error {
			return l.HandleGeneric(raw)
		})
	}
}
