package serialization

import (
	"math"
	"time"

	"github.com/ajitpratap0/quiver/pkg/columnar"
	"github.com/ajitpratap0/quiver/pkg/errors"
	"github.com/ajitpratap0/quiver/pkg/event"
	"github.com/ajitpratap0/quiver/pkg/schema"
)

type frameKind uint8

const (
	// fOuter is the outermost sequence of records
	fOuter frameKind = iota
	// fValue awaits the first event of a single value
	fValue
	// fStruct dispatches field names to children until the struct closes
	fStruct
	// fList counts elements until the sequence closes
	fList
	// fMap alternates key and value children until the map closes
	fMap
)

type frame struct {
	kind  frameKind
	instr int
	// count is the number of completed records (fOuter), elements
	// (fList) or entries (fMap).
	count int
	// pending is the struct child a completed value belongs to
	pending int
	// seen marks struct children filled for the current record
	seen []bool
	// mapEvents is set when a struct is fed from map-shaped input, where
	// keys arrive as string events instead of field names
	mapEvents bool
	// expectKey is set when the next map child is the key
	expectKey bool
}

// Interpreter executes a compiled program against an event stream,
// appending to the program's buffers as values complete. It implements
// event.Sink; the typed Accept methods avoid constructing events for hot
// paths. After an error the interpreter is left in an unspecified state and
// must not be reused.
type Interpreter struct {
	program *Program
	buffers *columnar.Buffers
	stack   []frame
	rows    int
}

// NewInterpreter returns an interpreter over the program's buffers. The
// expected input is a sequence of records: StartSequence, then one value
// per record, then EndSequence; Finish may then be called.
func NewInterpreter(program *Program) *Interpreter {
	return &Interpreter{program: program, buffers: program.Buffers}
}

// NumRows returns the number of completed top-level records.
func (i *Interpreter) NumRows() int { return i.rows }

// Finish validates that no nesting is open and returns the populated
// buffers.
func (i *Interpreter) Finish() (*columnar.Buffers, error) {
	if len(i.stack) != 0 {
		return nil, errors.Newf(errors.ErrorTypeInterpreter,
			"serialization did not complete: %d levels still open", len(i.stack))
	}
	return i.buffers, nil
}

// Accept consumes one event.
func (i *Interpreter) Accept(ev event.Event) error {
	if len(i.stack) == 0 {
		if ev.Kind != event.KindStartSequence {
			return errors.Newf(errors.ErrorTypeInterpreter,
				"expected start of record sequence, got %s", ev.Kind)
		}
		i.stack = append(i.stack, frame{kind: fOuter, instr: i.program.Root})
		return nil
	}

	top := &i.stack[len(i.stack)-1]
	switch top.kind {
	case fOuter:
		switch ev.Kind {
		case event.KindItem:
			i.push(frame{kind: fValue, instr: top.instr})
			return nil
		case event.KindEndSequence:
			i.stack = i.stack[:len(i.stack)-1]
			return nil
		default:
			return errors.Newf(errors.ErrorTypeInterpreter,
				"expected record or end of sequence, got %s", ev.Kind)
		}

	case fValue:
		return i.acceptValue(ev)

	case fStruct:
		return i.acceptStructEvent(ev)

	case fList:
		in := &i.program.Instructions[top.instr]
		switch ev.Kind {
		case event.KindItem:
			i.push(frame{kind: fValue, instr: in.Children[0]})
			return nil
		case event.KindEndSequence:
			count := top.count
			i.buffers.Offsets(in.Offsets).PushLength(count)
			return i.completeValue()
		default:
			return errors.Newf(errors.ErrorTypeInterpreter,
				"expected list element or end of sequence for field %s, got %s",
				in.Path, ev.Kind).WithField(in.Path)
		}

	case fMap:
		in := &i.program.Instructions[top.instr]
		if ev.Kind == event.KindEndMap {
			i.buffers.Offsets(in.Offsets).PushLength(top.count)
			return i.completeValue()
		}
		var child int
		if top.expectKey {
			child = in.Children[0]
			top.expectKey = false
		} else {
			child = in.Children[1]
			top.expectKey = true
		}
		i.push(frame{kind: fValue, instr: child})
		// the current event is the first event of the entry child
		return i.Accept(ev)
	}

	return errors.Newf(errors.ErrorTypeInterpreter, "invalid interpreter state")
}

func (i *Interpreter) push(f frame) {
	i.stack = append(i.stack, f)
}

// completeValue pops the finished value frame and notifies its parent.
func (i *Interpreter) completeValue() error {
	i.stack = i.stack[:len(i.stack)-1]
	if len(i.stack) == 0 {
		return errors.Newf(errors.ErrorTypeInterpreter, "value completed outside a sequence")
	}
	parent := &i.stack[len(i.stack)-1]
	switch parent.kind {
	case fOuter:
		parent.count++
		i.rows++
	case fList:
		parent.count++
	case fMap:
		// an entry is complete once its value child is, at which point
		// the next expected child is a key again
		if parent.expectKey {
			parent.count++
		}
	case fStruct:
		parent.seen[parent.pending] = true
	}
	return nil
}

// acceptValue handles the first event of a value in a fValue frame.
func (i *Interpreter) acceptValue(ev event.Event) error {
	top := &i.stack[len(i.stack)-1]
	in := &i.program.Instructions[top.instr]

	switch ev.Kind {
	case event.KindSome:
		// markers carry no data; the wrapped value follows
		return nil

	case event.KindNull:
		if err := i.appendNull(in); err != nil {
			return err
		}
		return i.completeValue()

	case event.KindStartStruct:
		if in.Op != OpStruct {
			return i.mismatch(in, ev)
		}
		i.markValid(in)
		*top = frame{kind: fStruct, instr: top.instr, pending: -1, seen: make([]bool, len(in.Children))}
		return nil

	case event.KindStartMap:
		switch in.Op {
		case OpStruct:
			// map-shaped input over struct columns: keys arrive as
			// string events
			i.markValid(in)
			*top = frame{kind: fStruct, instr: top.instr, pending: -1,
				seen: make([]bool, len(in.Children)), mapEvents: true}
			return nil
		case OpMap:
			i.markValid(in)
			*top = frame{kind: fMap, instr: top.instr, expectKey: true}
			return nil
		}
		return i.mismatch(in, ev)

	case event.KindStartSequence:
		if in.Op != OpList {
			return i.mismatch(in, ev)
		}
		i.markValid(in)
		*top = frame{kind: fList, instr: top.instr}
		return nil
	}

	if !ev.Kind.IsScalar() {
		return i.mismatch(in, ev)
	}
	if err := i.appendScalar(in, ev); err != nil {
		return err
	}
	return i.completeValue()
}

// acceptStructEvent handles events inside an open struct frame.
func (i *Interpreter) acceptStructEvent(ev event.Event) error {
	top := &i.stack[len(i.stack)-1]
	in := &i.program.Instructions[top.instr]

	var name string
	switch {
	case ev.Kind == event.KindFieldName:
		name = ev.Str
	case top.mapEvents && ev.Kind == event.KindStr:
		name = ev.Str
	case ev.Kind == event.KindEndStruct && !top.mapEvents,
		ev.Kind == event.KindEndMap && top.mapEvents:
		return i.closeStruct(top, in)
	default:
		return errors.Newf(errors.ErrorTypeInterpreter,
			"expected field name or end of struct for field %s, got %s",
			in.Path, ev.Kind).WithField(in.Path)
	}

	for idx, childName := range in.Names {
		if childName == name {
			top.pending = idx
			i.push(frame{kind: fValue, instr: in.Children[idx]})
			return nil
		}
	}
	return errors.Newf(errors.ErrorTypeInterpreter,
		"unknown field %q in struct %s", name, in.Path).WithField(in.Path)
}

// closeStruct fills absent children with nulls and completes the struct.
func (i *Interpreter) closeStruct(top *frame, in *Instr) error {
	for idx, seen := range top.seen {
		if seen {
			continue
		}
		child := &i.program.Instructions[in.Children[idx]]
		if !child.Nullable {
			return errors.Newf(errors.ErrorTypeInterpreter,
				"missing non-nullable field %s", child.Path).WithField(child.Path)
		}
		if err := i.appendNull(child); err != nil {
			return err
		}
	}
	return i.completeValue()
}

// markValid records a present entry in the instruction's validity bitmap,
// if it has one.
func (i *Interpreter) markValid(in *Instr) {
	if in.Validity != columnar.NoBuffer {
		i.buffers.Bitmap(in.Validity).Append(true)
	}
}

// appendNull records a null entry and appends default values throughout the
// instruction's subtree, keeping all child buffers row-aligned.
func (i *Interpreter) appendNull(in *Instr) error {
	if !in.Nullable {
		return errors.Newf(errors.ErrorTypeInterpreter,
			"unexpected null for non-nullable field %s", in.Path).WithField(in.Path)
	}
	i.appendDefault(in)
	return nil
}

func (i *Interpreter) appendDefault(in *Instr) {
	if in.Validity != columnar.NoBuffer {
		i.buffers.Bitmap(in.Validity).Append(false)
	}
	switch in.Op {
	case OpScalar:
		if in.Kind == schema.Bool {
			i.buffers.Bitmap(in.Values).Append(false)
		} else {
			i.buffers.Values(in.Values).AppendBits(0)
		}
	case OpVariable:
		i.buffers.Offsets(in.Offsets).PushLength(0)
	case OpList, OpMap:
		i.buffers.Offsets(in.Offsets).PushLength(0)
	case OpStruct:
		for _, child := range in.Children {
			i.appendDefault(&i.program.Instructions[child])
		}
	case OpNull:
		// validity handled above
	}
}

// appendScalar converts one scalar event into the instruction's column kind
// and appends it. Signed and unsigned integer events are accepted for any
// integer column wide enough to hold the value.
func (i *Interpreter) appendScalar(in *Instr, ev event.Event) error {
	switch in.Kind {
	case schema.Bool:
		if ev.Kind != event.KindBool {
			return i.mismatch(in, ev)
		}
		i.markValid(in)
		i.buffers.Bitmap(in.Values).Append(ev.Bool)
		return nil

	case schema.I8, schema.I16, schema.I32, schema.I64:
		v, err := i.signedValue(in, ev)
		if err != nil {
			return err
		}
		i.markValid(in)
		i.buffers.Values(in.Values).AppendBits(uint64(v))
		return nil

	case schema.U8, schema.U16, schema.U32, schema.U64:
		v, err := i.unsignedValue(in, ev)
		if err != nil {
			return err
		}
		i.markValid(in)
		i.buffers.Values(in.Values).AppendBits(v)
		return nil

	case schema.F32:
		v, err := i.floatValue(in, ev)
		if err != nil {
			return err
		}
		i.markValid(in)
		i.buffers.Values(in.Values).AppendBits(uint64(math.Float32bits(float32(v))))
		return nil

	case schema.F64:
		v, err := i.floatValue(in, ev)
		if err != nil {
			return err
		}
		i.markValid(in)
		i.buffers.Values(in.Values).AppendBits(math.Float64bits(v))
		return nil

	case schema.Utf8:
		if ev.Kind != event.KindStr {
			return i.mismatch(in, ev)
		}
		i.markValid(in)
		n := i.buffers.Bytes(in.Data).AppendString(ev.Str)
		i.buffers.Offsets(in.Offsets).PushLength(n)
		return nil

	case schema.Binary:
		var n int
		switch ev.Kind {
		case event.KindBytes:
			n = i.buffers.Bytes(in.Data).Append(ev.Bytes)
		case event.KindStr:
			n = i.buffers.Bytes(in.Data).AppendString(ev.Str)
		default:
			return i.mismatch(in, ev)
		}
		i.markValid(in)
		i.buffers.Offsets(in.Offsets).PushLength(n)
		return nil

	case schema.DateTimeStr, schema.NaiveDateTimeStr:
		if ev.Kind != event.KindStr {
			return i.mismatch(in, ev)
		}
		t, err := event.ParseTime(ev.Str)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeInterpreter,
				"invalid datetime string for field "+in.Path).WithField(in.Path)
		}
		i.markValid(in)
		i.buffers.Values(in.Values).AppendBits(uint64(t.UnixMilli()))
		return nil

	case schema.DateTimeMilliseconds:
		v, err := i.signedValue(in, ev)
		if err != nil {
			return err
		}
		i.markValid(in)
		i.buffers.Values(in.Values).AppendBits(uint64(v))
		return nil
	}

	return i.mismatch(in, ev)
}

func (i *Interpreter) signedValue(in *Instr, ev event.Event) (int64, error) {
	var v int64
	switch ev.Kind {
	case event.KindI8, event.KindI16, event.KindI32, event.KindI64:
		v = ev.Int
	case event.KindU8, event.KindU16, event.KindU32, event.KindU64:
		if ev.Uint > math.MaxInt64 {
			return 0, i.overflow(in, ev)
		}
		v = int64(ev.Uint)
	default:
		return 0, i.mismatch(in, ev)
	}
	var lo, hi int64
	switch in.Kind {
	case schema.I8:
		lo, hi = math.MinInt8, math.MaxInt8
	case schema.I16:
		lo, hi = math.MinInt16, math.MaxInt16
	case schema.I32:
		lo, hi = math.MinInt32, math.MaxInt32
	default:
		return v, nil
	}
	if v < lo || v > hi {
		return 0, i.overflow(in, ev)
	}
	return v, nil
}

func (i *Interpreter) unsignedValue(in *Instr, ev event.Event) (uint64, error) {
	var v uint64
	switch ev.Kind {
	case event.KindU8, event.KindU16, event.KindU32, event.KindU64:
		v = ev.Uint
	case event.KindI8, event.KindI16, event.KindI32, event.KindI64:
		if ev.Int < 0 {
			return 0, i.overflow(in, ev)
		}
		v = uint64(ev.Int)
	default:
		return 0, i.mismatch(in, ev)
	}
	var hi uint64
	switch in.Kind {
	case schema.U8:
		hi = math.MaxUint8
	case schema.U16:
		hi = math.MaxUint16
	case schema.U32:
		hi = math.MaxUint32
	default:
		return v, nil
	}
	if v > hi {
		return 0, i.overflow(in, ev)
	}
	return v, nil
}

func (i *Interpreter) floatValue(in *Instr, ev event.Event) (float64, error) {
	switch ev.Kind {
	case event.KindF32, event.KindF64:
		return ev.Float, nil
	case event.KindI8, event.KindI16, event.KindI32, event.KindI64:
		return float64(ev.Int), nil
	case event.KindU8, event.KindU16, event.KindU32, event.KindU64:
		return float64(ev.Uint), nil
	}
	return 0, i.mismatch(in, ev)
}

func (i *Interpreter) mismatch(in *Instr, ev event.Event) error {
	return errors.Newf(errors.ErrorTypeInterpreter,
		"cannot serialize %s into %s column for field %s", ev.Kind, in.Kind, in.Path).
		WithField(in.Path)
}

func (i *Interpreter) overflow(in *Instr, ev event.Event) error {
	return errors.Newf(errors.ErrorTypeInterpreter,
		"value %s overflows %s column for field %s", ev.String(), in.Kind, in.Path).
		WithField(in.Path)
}

// Typed accept methods mirror the event vocabulary so callers can drive the
// interpreter without constructing events.

func (i *Interpreter) AcceptStartSequence() error { return i.Accept(event.StartSequence()) }
func (i *Interpreter) AcceptEndSequence() error   { return i.Accept(event.EndSequence()) }
func (i *Interpreter) AcceptStartStruct() error   { return i.Accept(event.StartStruct()) }
func (i *Interpreter) AcceptEndStruct() error     { return i.Accept(event.EndStruct()) }
func (i *Interpreter) AcceptStartMap() error      { return i.Accept(event.StartMap()) }
func (i *Interpreter) AcceptEndMap() error        { return i.Accept(event.EndMap()) }
func (i *Interpreter) AcceptItem() error          { return i.Accept(event.Item()) }
func (i *Interpreter) AcceptSome() error          { return i.Accept(event.Some()) }
func (i *Interpreter) AcceptNull() error          { return i.Accept(event.Null()) }

func (i *Interpreter) AcceptFieldName(name string) error { return i.Accept(event.FieldName(name)) }
func (i *Interpreter) AcceptBool(v bool) error           { return i.Accept(event.Bool(v)) }
func (i *Interpreter) AcceptI64(v int64) error           { return i.Accept(event.I64(v)) }
func (i *Interpreter) AcceptU64(v uint64) error          { return i.Accept(event.U64(v)) }
func (i *Interpreter) AcceptF64(v float64) error         { return i.Accept(event.F64(v)) }
func (i *Interpreter) AcceptStr(v string) error          { return i.Accept(event.Str(v)) }
func (i *Interpreter) AcceptBytes(v []byte) error        { return i.Accept(event.BytesOf(v)) }

// AcceptTime appends a time value as a zoned RFC 3339 string event, the
// encoding the encoder emits for time.Time fields.
func (i *Interpreter) AcceptTime(t time.Time) error {
	return i.Accept(event.Str(t.Format(time.RFC3339Nano)))
}
