// Package notify carries user-facing success and error messages out of
// the editor.
package notify

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

type Kind string

const (
	Success Kind = "success"
	Error   Kind = "error"
)

type Notifier interface {
	Notify(kind Kind, message string)
}

// Func adapts a function to Notifier.
type Func func(kind Kind, message string)

func (f Func) Notify(kind Kind, message string) { f(kind, message) }

// Errorf sends a formatted error notification.
func Errorf(n Notifier, format string, args ...any) {
	n.Notify(Error, fmt.Sprintf(format, args...))
}

// Logger writes notifications to a zap logger.
type Logger struct {
	log *zap.Logger
}

func NewLogger(log *zap.Logger) *Logger {
	return &Logger{log: log}
}

func (l *Logger) Notify(kind Kind, message string) {
	if kind == Error {
		l.log.Error(message, zap.String("kind", string(kind)))
		return
	}
	l.log.Info(message, zap.String("kind", string(kind)))
}

type Message struct {
	Kind Kind
	Text string
}

// Recorder remembers every notification. The TUI shows the latest one in
// its status line.
type Recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *Recorder) Notify(kind Kind, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, Message{Kind: kind, Text: message})
}

func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.msgs...)
}

// Last returns the most recent notification.
func (r *Recorder) Last() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.msgs) == 0 {
		return Message{}, false
	}
	return r.msgs[len(r.msgs)-1], true
}

// Count returns how many notifications of kind were recorded.
func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.msgs {
		if m.Kind == kind {
			n++
		}
	}
	return n
}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(kind Kind, message string) {
	for _, n := range m {
		n.Notify(kind, message)
	}
}
