package deserialization

import (
	"math"
	"time"

	"github.com/ajitpratap0/quiver/pkg/columnar"
	"github.com/ajitpratap0/quiver/pkg/errors"
	"github.com/ajitpratap0/quiver/pkg/event"
	"github.com/ajitpratap0/quiver/pkg/schema"
)

// naiveLayout renders timestamps without a zone designator after normalizing
// to UTC, matching how zoneless datetime strings were parsed on the way in.
const naiveLayout = "2006-01-02T15:04:05.999999999"

// Source replays the event stream a compiled program describes. Rows are
// materialized one at a time: consuming the stream never reads further into
// the buffers than the row currently being emitted. Source implements
// event.Source.
type Source struct {
	program *Program
	// pos tracks the next unread entry per instruction
	pos     []int
	row     int
	queue   []event.Event
	qpos    int
	started bool
	closed  bool
	err     error
}

// NewSource returns a source over the program's buffers. The stream starts
// with StartSequence, emits one value per record, and ends with EndSequence.
func NewSource(program *Program) *Source {
	return &Source{
		program: program,
		pos:     make([]int, len(program.Instructions)),
	}
}

// Next returns the next event. The second return is false once the stream is
// exhausted. A data integrity error poisons the source: every later call
// returns the same error.
func (s *Source) Next() (event.Event, bool, error) {
	if s.err != nil {
		return event.Event{}, false, s.err
	}
	if !s.started {
		s.started = true
		return event.StartSequence(), true, nil
	}
	if s.qpos < len(s.queue) {
		ev := s.queue[s.qpos]
		s.qpos++
		return ev, true, nil
	}
	if s.row < s.program.NumItems {
		s.queue = s.queue[:0]
		s.qpos = 0
		s.emit(event.Item())
		if err := s.emitValue(s.program.Root); err != nil {
			s.err = err
			return event.Event{}, false, err
		}
		s.row++
		ev := s.queue[s.qpos]
		s.qpos++
		return ev, true, nil
	}
	if !s.closed {
		s.closed = true
		return event.EndSequence(), true, nil
	}
	return event.Event{}, false, nil
}

func (s *Source) emit(ev event.Event) {
	s.queue = append(s.queue, ev)
}

// emitValue appends the events of one value of the instruction to the queue
// and advances the cursors it consumed.
func (s *Source) emitValue(idx int) error {
	in := &s.program.Instructions[idx]
	p := s.pos[idx]
	s.pos[idx]++

	if in.Op == OpNull {
		bm := s.program.Buffers.Bitmap(in.Validity)
		if p >= bm.Len() {
			return s.exhausted(in, p)
		}
		s.emit(event.Null())
		return nil
	}

	if in.Validity != columnar.NoBuffer {
		bm := s.program.Buffers.Bitmap(in.Validity)
		if p >= bm.Len() {
			return s.exhausted(in, p)
		}
		if !bm.Get(p) {
			s.emit(event.Null())
			// the defaults written for this null still occupy one
			// entry per buffer in the subtree
			s.skipDefaults(in)
			return nil
		}
		s.emit(event.Some())
	}

	switch in.Op {
	case OpScalar:
		return s.emitScalar(in, p)

	case OpVariable:
		start, end, err := s.program.Buffers.Offsets(in.Offsets).Range(p)
		if err != nil {
			return err
		}
		data, err := s.program.Buffers.Bytes(in.Data).Slice(start, end)
		if err != nil {
			return err
		}
		if in.Kind == schema.Binary {
			s.emit(event.BytesOf(data))
		} else {
			s.emit(event.Str(string(data)))
		}
		return nil

	case OpStruct:
		s.emit(event.StartStruct())
		for i, child := range in.Children {
			s.emit(event.FieldName(in.Names[i]))
			if err := s.emitValue(child); err != nil {
				return err
			}
		}
		s.emit(event.EndStruct())
		return nil

	case OpList:
		start, end, err := s.program.Buffers.Offsets(in.Offsets).Range(p)
		if err != nil {
			return err
		}
		s.emit(event.StartSequence())
		for n := start; n < end; n++ {
			s.emit(event.Item())
			if err := s.emitValue(in.Children[0]); err != nil {
				return err
			}
		}
		s.emit(event.EndSequence())
		return nil

	case OpMap:
		start, end, err := s.program.Buffers.Offsets(in.Offsets).Range(p)
		if err != nil {
			return err
		}
		s.emit(event.StartMap())
		for n := start; n < end; n++ {
			if err := s.emitValue(in.Children[0]); err != nil {
				return err
			}
			if err := s.emitValue(in.Children[1]); err != nil {
				return err
			}
		}
		s.emit(event.EndMap())
		return nil
	}

	return errors.Newf(errors.ErrorTypeInternal,
		"invalid instruction %d for field %s", idx, in.Path).WithField(in.Path)
}

func (s *Source) emitScalar(in *Instr, p int) error {
	if in.Kind == schema.Bool {
		bm := s.program.Buffers.Bitmap(in.Values)
		if p >= bm.Len() {
			return s.exhausted(in, p)
		}
		s.emit(event.Bool(bm.Get(p)))
		return nil
	}

	vb := s.program.Buffers.Values(in.Values)
	if p >= vb.Len() {
		return s.exhausted(in, p)
	}
	bits := vb.Bits(p)

	switch in.Kind {
	case schema.I8:
		s.emit(event.I8(int8(bits)))
	case schema.I16:
		s.emit(event.I16(int16(bits)))
	case schema.I32:
		s.emit(event.I32(int32(bits)))
	case schema.I64:
		s.emit(event.I64(int64(bits)))
	case schema.U8:
		s.emit(event.U8(uint8(bits)))
	case schema.U16:
		s.emit(event.U16(uint16(bits)))
	case schema.U32:
		s.emit(event.U32(uint32(bits)))
	case schema.U64:
		s.emit(event.U64(bits))
	case schema.F32:
		s.emit(event.F32(math.Float32frombits(uint32(bits))))
	case schema.F64:
		s.emit(event.F64(math.Float64frombits(bits)))
	case schema.DateTimeStr:
		t := time.UnixMilli(int64(bits)).UTC()
		s.emit(event.Str(t.Format(time.RFC3339Nano)))
	case schema.NaiveDateTimeStr:
		t := time.UnixMilli(int64(bits)).UTC()
		s.emit(event.Str(t.Format(naiveLayout)))
	case schema.DateTimeMilliseconds:
		s.emit(event.I64(int64(bits)))
	default:
		return errors.Newf(errors.ErrorTypeInternal,
			"invalid scalar kind %s for field %s", in.Kind, in.Path).WithField(in.Path)
	}
	return nil
}

// skipDefaults advances the cursors of the instruction's subtree past the
// default entries written for a null value. The instruction's own cursor has
// already been advanced by the caller.
func (s *Source) skipDefaults(in *Instr) {
	if in.Op != OpStruct {
		return
	}
	for _, child := range in.Children {
		s.pos[child]++
		s.skipDefaults(&s.program.Instructions[child])
	}
}

func (s *Source) exhausted(in *Instr, p int) error {
	return errors.Newf(errors.ErrorTypeDataIntegrity,
		"buffer for field %s exhausted at entry %d", in.Path, p).WithField(in.Path)
}
