package client

import (
	"io"
	"os"
)

// Notifier plays the cue for an incoming message.
type Notifier interface {
	Notify(msg Message)
}

// BellNotifier rings the terminal bell.
type BellNotifier struct {
	W io.Writer // defaults to stdout
}

func (b BellNotifier) Notify(Message) {
	w := b.W
	if w == nil {
		w = os.Stdout
	}
	_, _ = io.WriteString(w, "\a")
}

// NotifierFunc adapts a func to Notifier.
type NotifierFunc func(Message)

func (f NotifierFunc) Notify(m Message) { f(m) }
