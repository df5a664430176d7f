// Package transport defines the chat boundary the bot is written against:
// inbound text events and an outbound sender. The concrete implementation
// here serves the bot over Twitch IRC with a supervised reconnect loop;
// other chat protocols plug in behind the same two interfaces.
package transport

import "context"

// Event is one inbound chat message. FromSelf marks echoes of the bot's own
// prior output, which handlers must discard.
type Event struct {
	Sender   string
	Text     string
	FromSelf bool
}

// Sender delivers outbound text to a recipient.
type Sender interface {
	SendText(ctx context.Context, to, text string) error
}

// Handler consumes one inbound event. Implementations are invoked
// concurrently, one goroutine per message; there is no per-sender
// serialization at this layer.
type Handler func(ctx context.Context, ev Event)
