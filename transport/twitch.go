package transport

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/tharunkd/attendbot/telemetry"
)

// Twitch serves the bot over Twitch IRC. Run keeps the connection alive with
// exponential backoff between reconnect attempts; Kick forces a reconnect
// cycle (used after logout so the next connection starts from cleared
// credentials).
type Twitch struct {
	Channel  string
	Username string
	OAuth    string

	MinBackoff time.Duration
	MaxBackoff time.Duration

	mu     sync.Mutex
	client *twitch.Client
	kick   chan struct{}
}

// NewTwitch returns a transport for the given channel and bot account.
func NewTwitch(channel, username, oauth string) *Twitch {
	return &Twitch{
		Channel:    channel,
		Username:   username,
		OAuth:      oauth,
		MinBackoff: time.Second,
		MaxBackoff: time.Minute,
		kick:       make(chan struct{}, 1),
	}
}

// SendText delivers a reply into the channel, addressed to the recipient.
// Multi-line replies are sent line by line; IRC messages cannot carry
// newlines.
func (t *Twitch) SendText(ctx context.Context, to, text string) error {
	t.mu.Lock()
	client := t.client
	t.mu.Unlock()
	if client == nil {
		telemetry.Inc(telemetry.ReplyFailures)
		return fmt.Errorf("chat client not connected")
	}
	lines := strings.Split(text, "\n")
	first := true
	for _, line := range lines {
		line = strings.TrimRight(line, " ")
		if line == "" {
			continue
		}
		if first {
			line = "@" + to + " " + line
			first = false
		}
		client.Say(t.Channel, line)
	}
	telemetry.Inc(telemetry.RepliesSent)
	return nil
}

// Kick forces the current connection to close; Run then reconnects.
func (t *Twitch) Kick() {
	select {
	case t.kick <- struct{}{}:
	default:
	}
}

// Run connects and serves inbound messages until ctx is canceled,
// reconnecting on transport failure. Backoff doubles per consecutive
// failure up to MaxBackoff and resets after a connection that held for a
// while.
func (t *Twitch) Run(ctx context.Context, handler Handler) {
	backoff := t.MinBackoff
	for {
		if ctx.Err() != nil {
			return
		}
		connectedAt := time.Now()
		err := t.connectOnce(ctx, handler)
		if ctx.Err() != nil {
			return
		}
		if time.Since(connectedAt) > time.Minute {
			backoff = t.MinBackoff
		}
		slog.Warn("chat connection closed; reconnecting",
			slog.Any("err", err),
			slog.Duration("backoff", backoff))
		telemetry.Inc(telemetry.Reconnects)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = NextBackoff(backoff, t.MaxBackoff)
	}
}

// NextBackoff doubles d, capped at max.
func NextBackoff(d, max time.Duration) time.Duration {
	d *= 2
	if d > max {
		return max
	}
	return d
}

func (t *Twitch) connectOnce(ctx context.Context, handler Handler) error {
	client := twitch.NewClient(t.Username, t.OAuth)
	client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		ev := eventFromMessage(msg.User.Name, msg.Message, t.Username)
		go handler(ctx, ev)
	})

	t.mu.Lock()
	t.client = client
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-t.kick:
		case <-done:
			return
		}
		client.Disconnect()
	}()

	client.Join(t.Channel)
	err := client.Connect()
	close(done)

	t.mu.Lock()
	t.client = nil
	t.mu.Unlock()
	return err
}

// eventFromMessage maps one IRC message into the boundary event. Messages
// authored by the bot account itself are flagged FromSelf.
func eventFromMessage(author, text, self string) Event {
	return Event{
		Sender:   author,
		Text:     strings.TrimSpace(text),
		FromSelf: strings.EqualFold(author, self),
	}
}
