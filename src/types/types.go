package types

import (
	"context"
	"encoding/json"
	"time"
)

// ResourceListener receives updates for the resources it is registered on.
type ResourceListener interface {
	HandleResourceUpdate(id ResourceID, event json.RawMessage) error
}

// SystemEventListener receives service-wide events.
type SystemEventListener interface {
	HandleSystemEvent(event json.RawMessage) error
}

// GenericListener receives frames that match no known shape.
type GenericListener interface {
	HandleGeneric(raw []byte) error
}

// ResourceListenerFunc adapts a function to a ResourceListener.
// Use NewResourceListener to get a comparable handle.
type ResourceListenerFunc func(id ResourceID, event json.RawMessage) error

// SystemEventListenerFunc adapts a function to a SystemEventListener.
type SystemEventListenerFunc func(event json.RawMessage) error

// GenericListenerFunc adapts a function to a GenericListener.
type GenericListenerFunc func(raw []byte) error

type resourceFunc struct{ fn ResourceListenerFunc }

func (f *resourceFunc) HandleResourceUpdate(id ResourceID, event json.RawMessage) error {
	return f.fn(id, event)
}

type systemFunc struct{ fn SystemEventListenerFunc }

func (f *systemFunc) HandleSystemEvent(event json.RawMessage) error { return f.fn(event) }

type genericFunc struct{ fn GenericListenerFunc }

func (f *genericFunc) HandleGeneric(raw []byte) error { return f.fn(raw) }

// NewResourceListener wraps fn in a pointer handle. Each call returns a
// distinct handle, so keep it to unregister later.
func NewResourceListener(fn ResourceListenerFunc) ResourceListener {
	return &resourceFunc{fn: fn}
}

// NewSystemEventListener wraps fn in a pointer handle.
func NewSystemEventListener(fn SystemEventListenerFunc) SystemEventListener {
	return &systemFunc{fn: fn}
}

// NewGenericListener wraps fn in a pointer handle.
func NewGenericListener(fn GenericListenerFunc) GenericListener {
	return &genericFunc{fn: fn}
}

// Conn abstracts a duplex channel for testability.
type Conn interface {
	ReadMessage() ([]byte, error)
	Close() error
}

// Dialer opens duplex channels.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Response is a completed 2xx HTTP exchange.
type Response struct {
	StatusCode int
	Body       []byte
}

// JSON decodes the response body into v.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Transport performs authenticated one-shot HTTP requests.
// Implementations fail with an error wrapping ErrTransport on non-2xx.
type Transport interface {
	Get(ctx context.Context, url, token string) (*Response, error)
	Post(ctx context.Context, url string, body []byte, contentType, token string) (*Response, error)
}

// Status is a point-in-time snapshot of a client.
type Status struct {
	State            string    `json:"state"`
	Host             string    `json:"host"`
	Port             int       `json:"port"`
	Secure           bool      `json:"secure"`
	Resources        int       `json:"resources"`
	SystemListeners  int       `json:"system_listeners"`
	GenericListeners int       `json:"generic_listeners"`
	ConnectedAt      time.Time `json:"connected_at,omitzero"`
}
