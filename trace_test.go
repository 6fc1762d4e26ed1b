package plugin

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestSlogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	SlogSink(logger).Trace("Entered Dispatcher.Execute()")

	out := buf.String()
	if !strings.Contains(out, `msg="Entered Dispatcher.Execute()"`) || !strings.Contains(out, "component=plugin") {
		t.Errorf("unexpected log output: %s", out)
	}
}

func TestSlogSinkPanicsOnNil(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	SlogSink(nil)
}

func TestTraceLogConcurrent(t *testing.T) {
	var log TraceLog
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Trace("line")
		}()
	}
	wg.Wait()

	if n := len(log.Lines()); n != 20 {
		t.Errorf("got %d lines", n)
	}
}

func TestTraceSinkFunc(t *testing.T) {
	var got []string
	sink := TraceSinkFunc(func(m string) { got = append(got, m) })
	traceWithIdentity(sink, &Event{CorrelationID: "c", InitiatingUserID: "u"}, "x")
	traceWithIdentity(sink, nil, "y")
	traceWithIdentity(nil, nil, "z")

	if strings.Join(got, "|") != "x, Correlation Id: c, Initiating User: u|y" {
		t.Errorf("got %q", got)
	}
}
