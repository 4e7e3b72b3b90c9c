package channel

import "context"

// Conn is a live push connection for a single topic. The manager only reads;
// commands travel to the gateway over its REST API.
type Conn interface {
	// ReadMessage blocks until the next frame arrives or the connection fails.
	ReadMessage() ([]byte, error)
	// Close terminates the connection and unblocks any pending read.
	Close() error
}

// Transport dials push connections. Implementations live at the edge so the
// manager can be exercised without a network.
type Transport interface {
	Dial(ctx context.Context, topic string) (Conn, error)
}
