// Package bot classifies inbound chat text into commands and produces the
// replies: direct attendance lookups, short-form management, skip
// projections, and session logout.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tharunkd/attendbot/attendance"
	"github.com/tharunkd/attendbot/directory"
	"github.com/tharunkd/attendbot/session"
	"github.com/tharunkd/attendbot/telemetry"
	"github.com/tharunkd/attendbot/transport"
)

// Router dispatches one inbound message to the matching handler. All
// dependencies are injected at construction; there is no process-global
// state.
type Router struct {
	Directory  *directory.Directory
	Session    *session.Session
	Attendance *attendance.Client
	Sender     transport.Sender
	HelpURL    string

	// Reconnect is invoked after a logout command has cleared the stored
	// credentials, to schedule a fresh connection cycle.
	Reconnect func()
}

// Handle processes one inbound message. It is safe to call concurrently for
// different messages; a panic inside any handler is recovered and logged,
// never taking the process down.
func (r *Router) Handle(ctx context.Context, ev transport.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("message handler panic", slog.Any("panic", rec), slog.String("sender", ev.Sender))
		}
	}()

	if ev.FromSelf {
		telemetry.Inc(telemetry.MessagesDropped)
		return
	}
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return
	}

	telemetry.Inc(telemetry.MessagesReceived)
	ctx = telemetry.WithCorrelation(ctx, uuid.NewString())
	ctx, span := telemetry.StartSpan(ctx, "bot", "handle message")
	defer span.End()
	start := time.Now()
	defer func() {
		if telemetry.HandleDuration != nil {
			telemetry.HandleDuration.Observe(time.Since(start).Seconds())
		}
	}()

	words := strings.Fields(text)

	// Two tokens with a leading digit is always a direct roll number and
	// password, even when the first token could collide with a short id.
	if len(words) == 2 && words[0][0] >= '0' && words[0][0] <= '9' {
		r.lookup(ctx, ev.Sender, words[0], words[1])
		return
	}

	switch strings.ToLower(words[0]) {
	case "set":
		r.handleSet(ctx, ev.Sender, words)
	case "delete":
		r.handleDelete(ctx, ev.Sender, words)
	case "shortforms":
		r.handleList(ctx, ev.Sender)
	case "skip":
		r.handleSkip(ctx, ev.Sender, words)
	case "logout":
		r.handleLogout(ctx)
	default:
		if entry, ok := r.Directory.Resolve(ctx, ev.Sender, text); ok {
			r.lookup(ctx, ev.Sender, entry.RollNumber, entry.Secret)
			return
		}
		r.reply(ctx, ev.Sender, helpText(r.HelpURL))
	}
}

// lookup fetches and renders an attendance report. A rejected credential
// pair is a terminal outcome; the user has to resend.
func (r *Router) lookup(ctx context.Context, from, rollNumber, secret string) {
	rep, err := r.Attendance.Fetch(ctx, rollNumber, secret)
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Warn("attendance lookup failed", slog.Any("err", err))
		r.reply(ctx, from, invalidCredentialsText(r.HelpURL))
		return
	}
	r.reply(ctx, from, formatReport(rep))
}

func (r *Router) handleSet(ctx context.Context, from string, words []string) {
	if len(words) != 4 {
		r.reply(ctx, from, "Invalid format. Use: set <short_id> <roll_number> <password>\n\nFor help, click here: "+r.HelpURL)
		return
	}
	shortID, rollNumber, secret := words[1], words[2], words[3]

	// Validate the pair before writing anything.
	if _, err := r.Attendance.Fetch(ctx, rollNumber, secret); err != nil {
		telemetry.LoggerWithCorr(ctx).Warn("credential validation failed", slog.Any("err", err))
		r.reply(ctx, from, "Invalid roll number or password. Please try again.")
		return
	}

	result, err := r.Directory.Create(ctx, from, shortID, rollNumber, secret)
	if err != nil {
		var linked *directory.RollNumberLinkedError
		if errors.As(err, &linked) {
			r.reply(ctx, from, rollNumberLinkedText(linked.ShortID, r.HelpURL))
			return
		}
		telemetry.LoggerWithCorr(ctx).Error("saving short form failed", slog.Any("err", err))
		r.reply(ctx, from, "Could not save the short form right now. Please try again.")
		return
	}
	switch result {
	case directory.Updated:
		r.reply(ctx, from, "Updated the short form "+shortID+" with new roll number and password.")
	default:
		r.reply(ctx, from, "Short form saved: "+shortID+"\n\nTo view all, type: shortforms")
	}
}

func (r *Router) handleDelete(ctx context.Context, from string, words []string) {
	if len(words) != 2 {
		r.reply(ctx, from, "Invalid format. Use: delete <short_id>\n\nFor help, click here: "+r.HelpURL)
		return
	}
	shortID := words[1]
	removed, err := r.Directory.Delete(ctx, from, shortID)
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Error("deleting short form failed", slog.Any("err", err))
		r.reply(ctx, from, "Could not delete the short form right now. Please try again.")
		return
	}
	if removed {
		r.reply(ctx, from, "Short form "+shortID+" has been deleted.")
		return
	}
	r.reply(ctx, from, "No short form found with the ID: "+shortID+"\n\nFor help, click here: "+r.HelpURL)
}

func (r *Router) handleList(ctx context.Context, from string) {
	entries := r.Directory.List(ctx, from)
	if len(entries) == 0 {
		r.reply(ctx, from, "You have no saved short forms.\n\nFor help, click here: "+r.HelpURL)
		return
	}
	var b strings.Builder
	b.WriteString("Your Saved Short Forms:\n")
	for _, e := range entries {
		b.WriteString("Short ID: " + e.ShortID + " - Roll Number: " + e.RollNumber + "\n")
	}
	b.WriteString("\nTo delete a short form, type: delete <short_id>\n\nFor help, click here: " + r.HelpURL)
	r.reply(ctx, from, b.String())
}

func (r *Router) handleSkip(ctx context.Context, from string, words []string) {
	var hours int
	var err error
	if len(words) == 2 {
		hours, err = strconv.Atoi(words[1])
	}
	if len(words) != 2 || err != nil || hours < 0 {
		r.reply(ctx, from, "Invalid format. Use: skip <hours>\n\nFor help, click here: "+r.HelpURL)
		return
	}
	entry, ok := r.Directory.First(ctx, from)
	if !ok {
		r.reply(ctx, from, "You have no saved short forms.\n\nFor help, click here: "+r.HelpURL)
		return
	}
	res, err := r.Attendance.Skip(ctx, entry.RollNumber, entry.Secret, hours)
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Warn("skip projection failed", slog.Any("err", err))
		r.reply(ctx, from, invalidCredentialsText(r.HelpURL))
		return
	}
	r.reply(ctx, from, formatSkip(hours, res))
}

func (r *Router) handleLogout(ctx context.Context) {
	r.Session.Clear(ctx)
	if r.Reconnect != nil {
		r.Reconnect()
	}
}

func (r *Router) reply(ctx context.Context, to, text string) {
	if err := r.Sender.SendText(ctx, to, text); err != nil {
		telemetry.LoggerWithCorr(ctx).Error("sending reply failed", slog.String("to", to), slog.Any("err", err))
	}
}
