package event

import "github.com/ajitpratap0/quiver/pkg/errors"

// Sink accepts one event at a time. Implementations may fail with a
// structural error when the event does not fit the shape they expect;
// after an error the sink is in an unspecified state and must not be reused.
type Sink interface {
	Accept(ev Event) error
}

// Source produces a lazy, finite, non-restartable sequence of events.
// Next returns ok=false once the sequence is exhausted.
type Source interface {
	Next() (ev Event, ok bool, err error)
}

// SliceSource replays a pre-recorded event slice. Mostly useful in tests.
type SliceSource struct {
	events []Event
	pos    int
}

// NewSliceSource returns a source reading from events in order.
func NewSliceSource(events []Event) *SliceSource {
	return &SliceSource{events: events}
}

// Next implements Source.
func (s *SliceSource) Next() (Event, bool, error) {
	if s.pos >= len(s.events) {
		return Event{}, false, nil
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, true, nil
}

// Recorder is a Sink that records every accepted event. Mostly useful in
// tests and for debug dumps.
type Recorder struct {
	Events []Event
}

// Accept implements Sink.
func (r *Recorder) Accept(ev Event) error {
	r.Events = append(r.Events, ev)
	return nil
}

// StripOuterSequenceSink removes the outermost sequence wrapper from an event
// stream before forwarding to the inner sink: the first StartSequence, its
// matching EndSequence, and the Item markers at that level are dropped. A
// top-level list of records therefore traces as a struct schema rather than
// a list schema.
type StripOuterSequenceSink struct {
	inner   Sink
	depth   int
	started bool
}

// NewStripOuterSequenceSink wraps inner.
func NewStripOuterSequenceSink(inner Sink) *StripOuterSequenceSink {
	return &StripOuterSequenceSink{inner: inner}
}

// Inner returns the wrapped sink.
func (s *StripOuterSequenceSink) Inner() Sink {
	return s.inner
}

// Accept implements Sink.
func (s *StripOuterSequenceSink) Accept(ev Event) error {
	switch ev.Kind {
	case KindStartSequence:
		if !s.started && s.depth == 0 {
			s.started = true
			s.depth = 1
			return nil
		}
		s.depth++
	case KindEndSequence:
		if s.depth == 0 {
			return errors.New(errors.ErrorTypeInterpreter, "unbalanced EndSequence")
		}
		s.depth--
		if s.started && s.depth == 0 {
			return nil
		}
	case KindItem:
		if s.started && s.depth == 1 {
			return nil
		}
	default:
		if !s.started {
			return errors.Newf(errors.ErrorTypeInterpreter,
				"expected outer sequence, got %s", ev)
		}
	}
	return s.inner.Accept(ev)
}
