package transport

import (
	"testing"
	"time"
)

func TestEventFromMessage(t *testing.T) {
	tests := []struct {
		name   string
		author string
		text   string
		self   string
		want   Event
	}{
		{
			name:   "regular message",
			author: "student42",
			text:   "  shortforms  ",
			self:   "attendbot",
			want:   Event{Sender: "student42", Text: "shortforms", FromSelf: false},
		},
		{
			name:   "own echo",
			author: "AttendBot",
			text:   "Total: 80/100 (80%)",
			self:   "attendbot",
			want:   Event{Sender: "AttendBot", Text: "Total: 80/100 (80%)", FromSelf: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eventFromMessage(tt.author, tt.text, tt.self); got != tt.want {
				t.Errorf("eventFromMessage = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNextBackoff(t *testing.T) {
	max := time.Minute
	d := time.Second
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 32 * time.Second, time.Minute, time.Minute}
	for i, w := range want {
		d = NextBackoff(d, max)
		if d != w {
			t.Errorf("step %d = %v, want %v", i, d, w)
		}
	}
}

func TestSendTextWhileDisconnected(t *testing.T) {
	tw := NewTwitch("campus", "attendbot", "oauth:xxx")
	if err := tw.SendText(t.Context(), "student42", "hello"); err == nil {
		t.Error("SendText succeeded with no live connection")
	}
}
