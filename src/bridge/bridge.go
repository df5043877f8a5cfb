// Package bridge relays inbound metax frames between client instances that
// share one upstream account. Every instance keeps its own channel; the
// relay covers pushes an instance missed while reconnecting, and the hub
// drops relayed copies of pushes it already delivered.
package bridge

// Bridge defines the interface for cross-instance frame relaying.
type Bridge interface {
	// Publish sends a frame to all other instances via the bridge.
	Publish(frame []byte) error

	// Start begins listening for frames from other instances.
	Start() error

	// Stop shuts down the bridge connection.
	Stop() error

	// Available reports whether the bridge is connected and operational.
	Available() bool
}

// RelayTarget is implemented by the Hub to receive frames from the bridge.
type RelayTarget interface {
	DispatchRelayed(frame []byte) error
}
