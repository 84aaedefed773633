// Package testutil provides testing utilities for Quiver
package testutil

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/quiver/pkg/event"
)

// TestLogger creates a test logger that writes to the test output.
// The logger is automatically cleaned up when the test completes.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// RecordEvents encodes a value and returns the events it produced.
func RecordEvents(t *testing.T, v interface{}) []event.Event {
	t.Helper()
	rec := &event.Recorder{}
	if err := event.Encode(rec, v); err != nil {
		t.Fatalf("encoding %T: %v", v, err)
	}
	return rec.Events
}

// FeedEvents drives a sink with a fixed event slice, failing the test on the
// first rejected event.
func FeedEvents(t *testing.T, sink event.Sink, events []event.Event) {
	t.Helper()
	for _, ev := range events {
		if err := sink.Accept(ev); err != nil {
			t.Fatalf("accepting %s: %v", ev, err)
		}
	}
}

// DrainSource consumes a source to exhaustion and returns all events.
func DrainSource(t *testing.T, source event.Source) []event.Event {
	t.Helper()
	var events []event.Event
	for {
		ev, ok, err := source.Next()
		if err != nil {
			t.Fatalf("reading events: %v", err)
		}
		if !ok {
			return events
		}
		events = append(events, ev)
	}
}

// EpochMillis returns the millisecond timestamp of a UTC datetime, the value
// datetime columns store.
func EpochMillis(year int, month time.Month, day, hour, min, sec int) int64 {
	return time.Date(year, month, day, hour, min, sec, 0, time.UTC).UnixMilli()
}
