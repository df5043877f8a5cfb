package types

import "encoding/json"

// MessageKind discriminates inbound frames.
type MessageKind int

const (
	KindUnclassified MessageKind = iota
	KindResourceUpdate
	KindSystemEvent
)

func (k MessageKind) String() string {
	switch k {
	case KindResourceUpdate:
		return "resource_update"
	case KindSystemEvent:
		return "system_event"
	default:
		return "unclassified"
	}
}

// InboundMessage is a classified frame. Only the fields of its Kind are set:
// ResourceUpdate uses ID and Event, SystemEvent uses Event, Unclassified uses Raw.
type InboundMessage struct {
	Kind  MessageKind
	ID    string
	Event json.RawMessage
	Raw   []byte
}
