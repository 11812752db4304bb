// Package channels provides the channel abstraction connecting messaging
// platforms to the relay engine. The Messenger channel is webhook-driven
// (its HTTP routes are mounted on the gateway); the Telegram channel long
// polls on its own goroutine.
package channels

import "context"

// Channel is a messaging platform connection with its own inbound loop.
type Channel interface {
	// Name returns the channel identifier (e.g. "telegram").
	Name() string

	// Start begins listening for messages. Non-blocking after setup.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the channel.
	Stop(ctx context.Context) error
}
