package plugin

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// TraceSink receives plain-text trace lines, like the host's plug-in trace log.
type TraceSink interface {
	Trace(message string)
}

// TraceSinkFunc is a function adapter for TraceSink.
type TraceSinkFunc func(message string)

// Trace implements the TraceSink interface.
func (f TraceSinkFunc) Trace(message string) {
	f(message)
}

// SlogSink forwards trace lines to a structured logger at debug level.
func SlogSink(logger *slog.Logger) TraceSink {
	if logger == nil {
		panic("plugin: slog logger cannot be nil")
	}
	return slogSink{logger: logger}
}

type slogSink struct {
	logger *slog.Logger
}

func (s slogSink) Trace(message string) {
	s.logger.LogAttrs(context.Background(), slog.LevelDebug, message, slog.String("component", "plugin"))
}

// TraceLog collects trace lines in memory. The zero value is ready to use.
type TraceLog struct {
	mu    sync.Mutex
	lines []string
}

// Trace implements the TraceSink interface.
func (l *TraceLog) Trace(message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, message)
}

// Lines returns a copy of the collected lines.
func (l *TraceLog) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.lines))
	copy(out, l.lines)
	return out
}

// String joins the collected lines with newlines.
func (l *TraceLog) String() string {
	return strings.Join(l.Lines(), "\n")
}

type nopSink struct{}

func (nopSink) Trace(string) {}

// traceWithIdentity appends the event's correlation id and initiating user.
func traceWithIdentity(sink TraceSink, ev *Event, message string) {
	if sink == nil || strings.TrimSpace(message) == "" {
		return
	}
	if ev == nil {
		sink.Trace(message)
		return
	}
	sink.Trace(message + ", Correlation Id: " + ev.CorrelationID + ", Initiating User: " + ev.InitiatingUserID)
}
