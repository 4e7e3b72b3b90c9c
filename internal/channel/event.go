package channel

import "encoding/json"

// Event is a single push message received on a channel topic.
type Event struct {
	Topic string          `json:"topic"`
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Listener consumes events dispatched for a topic and event type. HandleEvent
// is called on the connection's read goroutine, so implementations must not
// block for long.
type Listener interface {
	HandleEvent(Event)
}

// ListenerFunc adapts a plain function to the Listener interface.
type ListenerFunc func(Event)

// HandleEvent calls the wrapped function.
func (f ListenerFunc) HandleEvent(evt Event) {
	f(evt)
}

// frame is the wire shape pushed by the gateway. The topic is implied by the
// connection the frame arrived on; a topic field sent by the server is ignored.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}
