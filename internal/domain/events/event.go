package events

import (
	"time"
)

// Kind identifies what an event reports.
type Kind string

const (
	KindOutput Kind = "output"
	KindExit   Kind = "exit"
	KindError  Kind = "error"
)

// Source identifies which manager produced an event.
type Source string

const (
	SourceTerminal Source = "terminal"
	SourceProcess  Source = "process"
)

// Stream names the byte stream an output event was read from.
type Stream string

const (
	StreamPTY    Stream = "pty"
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// Event is a single notification pushed to the UI for a session id.
type Event struct {
	Kind    Kind      `json:"kind"`
	Source  Source    `json:"source"`
	ID      string    `json:"id"`
	Stream  Stream    `json:"stream,omitempty"`
	Data    string    `json:"data,omitempty"`
	Code    *int      `json:"code"`
	Message string    `json:"message,omitempty"`
	Time    time.Time `json:"time"`
}

// Output creates an output event carrying a decoded chunk or line.
func Output(source Source, id string, stream Stream, data string) Event {
	return Event{
		Kind:   KindOutput,
		Source: source,
		ID:     id,
		Stream: stream,
		Data:   data,
		Time:   time.Now(),
	}
}

// Exit creates the exit event. code is nil when the process was killed by a
// signal.
func Exit(source Source, id string, code *int) Event {
	return Event{
		Kind:   KindExit,
		Source: source,
		ID:     id,
		Code:   code,
		Time:   time.Now(),
	}
}

// Error creates an error event.
func Error(source Source, id string, message string) Event {
	return Event{
		Kind:    KindError,
		Source:  source,
		ID:      id,
		Message: message,
		Time:    time.Now(),
	}
}

// Terminal reports whether the event ends the lifetime of its id.
func (e Event) Terminal() bool {
	return e.Kind == KindExit || e.Kind == KindError
}

// Topic returns the channel name the desktop UI listens on.
func (e Event) Topic() string {
	switch e.Kind {
	case KindExit:
		return "term-exit-" + e.ID
	case KindError:
		return "term-error-" + e.ID
	default:
		return "term-data-" + e.ID
	}
}

// Sink receives events. Emit is called from the per-process goroutines and
// must not block for long.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Tee forwards each event to every non-nil sink, in order.
func Tee(sinks ...Sink) Sink {
	filtered := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return SinkFunc(func(e Event) {
		for _, s := range filtered {
			s.Emit(e)
		}
	})
}
