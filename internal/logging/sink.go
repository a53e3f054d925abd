// Package logging defines the structured event sink the core emits to.
// The REPL / CLI is an external collaborator (spec.md §1); it only ever
// receives finished log records through this interface, never raw
// fmt.Println calls, which is what the teacher repo did ad hoc.
package logging

import "github.com/sirupsen/logrus"

// Fields is a structured set of key/value pairs attached to an event.
type Fields map[string]interface{}

// Sink receives structured events from the core. Implementations must not
// block the calling goroutine for long, since wait loops call through it.
type Sink interface {
	Debug(msg string, fields Fields)
	Info(msg string, fields Fields)
	Warn(msg string, fields Fields)
	Error(msg string, fields Fields)
}

// logrusSink adapts a *logrus.Logger to Sink.
type logrusSink struct {
	log *logrus.Logger
}

// NewLogrusSink returns a Sink backed by logrus, the structured logger
// already used by the gvisor-ligolo relay in the retrieved example pack.
func NewLogrusSink(log *logrus.Logger) Sink {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &logrusSink{log: log}
}

func (s *logrusSink) Debug(msg string, fields Fields) { s.entry(fields).Debug(msg) }
func (s *logrusSink) Info(msg string, fields Fields)  { s.entry(fields).Info(msg) }
func (s *logrusSink) Warn(msg string, fields Fields)  { s.entry(fields).Warn(msg) }
func (s *logrusSink) Error(msg string, fields Fields) { s.entry(fields).Error(msg) }

func (s *logrusSink) entry(fields Fields) *logrus.Entry {
	return s.log.WithFields(logrus.Fields(fields))
}

// Noop discards every event; used by tests and library callers that don't
// want logging.
var Noop Sink = noopSink{}

type noopSink struct{}

func (noopSink) Debug(string, Fields) {}
func (noopSink) Info(string, Fields)  {}
func (noopSink) Warn(string, Fields)  {}
func (noopSink) Error(string, Fields) {}
