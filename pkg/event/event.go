// Package event defines the serialization event vocabulary that quiver's
// tracer, interpreters and codecs exchange.
//
// An Event is one atomic step of a depth-first traversal of a native value:
// enter/exit a composite, a field name, a scalar, an optional marker, or a
// null. Events are produced and consumed strictly in traversal order;
// Start/End pairs balance, a FieldName immediately precedes its field's
// value, Item precedes every sequence element, and Some immediately precedes
// the wrapped value of a present optional. Events are ephemeral: they are
// never stored beyond one traversal step.
package event

import stringpool "github.com/ajitpratap0/quiver/pkg/strings"

// Kind tags an Event.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindStartSequence
	KindEndSequence
	KindStartStruct
	KindEndStruct
	KindStartMap
	KindEndMap
	KindItem
	KindFieldName
	KindSome
	KindNull
	KindBool
	KindI8
	KindI16
	KindI32
	KindI64
	KindU8
	KindU16
	KindU32
	KindU64
	KindF32
	KindF64
	KindStr
	KindBytes
)

var kindNames = map[Kind]string{
	KindInvalid:       "Invalid",
	KindStartSequence: "StartSequence",
	KindEndSequence:   "EndSequence",
	KindStartStruct:   "StartStruct",
	KindEndStruct:     "EndStruct",
	KindStartMap:      "StartMap",
	KindEndMap:        "EndMap",
	KindItem:          "Item",
	KindFieldName:     "FieldName",
	KindSome:          "Some",
	KindNull:          "Null",
	KindBool:          "Bool",
	KindI8:            "I8",
	KindI16:           "I16",
	KindI32:           "I32",
	KindI64:           "I64",
	KindU8:            "U8",
	KindU16:           "U16",
	KindU32:           "U32",
	KindU64:           "U64",
	KindF32:           "F32",
	KindF64:           "F64",
	KindStr:           "Str",
	KindBytes:         "Bytes",
}

// String returns the kind name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return stringpool.Sprintf("Kind(%d)", uint8(k))
}

// IsScalar reports whether the kind carries a scalar payload.
func (k Kind) IsScalar() bool {
	return k >= KindBool
}

// IsInt reports whether the kind is a signed or unsigned integer.
func (k Kind) IsInt() bool {
	return k >= KindI8 && k <= KindU64
}

// Event is one tagged traversal step. Only the payload field matching the
// kind is meaningful; the rest are zero.
type Event struct {
	Kind  Kind
	Str   string // FieldName and Str payload
	Bool  bool
	Int   int64  // I8..I64
	Uint  uint64 // U8..U64
	Float float64
	Bytes []byte
}

// String renders the event for debugging and error messages.
func (e Event) String() string {
	switch e.Kind {
	case KindFieldName:
		return stringpool.Sprintf("FieldName(%q)", e.Str)
	case KindStr:
		return stringpool.Sprintf("Str(%q)", e.Str)
	case KindBool:
		return stringpool.Sprintf("Bool(%v)", e.Bool)
	case KindI8, KindI16, KindI32, KindI64:
		return stringpool.Sprintf("%s(%d)", e.Kind, e.Int)
	case KindU8, KindU16, KindU32, KindU64:
		return stringpool.Sprintf("%s(%d)", e.Kind, e.Uint)
	case KindF32, KindF64:
		return stringpool.Sprintf("%s(%v)", e.Kind, e.Float)
	case KindBytes:
		return stringpool.Sprintf("Bytes(%d bytes)", len(e.Bytes))
	default:
		return e.Kind.String()
	}
}

// Constructors. These keep call sites terse and make event traces readable
// in tests.

func StartSequence() Event     { return Event{Kind: KindStartSequence} }
func EndSequence() Event       { return Event{Kind: KindEndSequence} }
func StartStruct() Event       { return Event{Kind: KindStartStruct} }
func EndStruct() Event         { return Event{Kind: KindEndStruct} }
func StartMap() Event          { return Event{Kind: KindStartMap} }
func EndMap() Event            { return Event{Kind: KindEndMap} }
func Item() Event              { return Event{Kind: KindItem} }
func FieldName(n string) Event { return Event{Kind: KindFieldName, Str: n} }
func Some() Event              { return Event{Kind: KindSome} }
func Null() Event              { return Event{Kind: KindNull} }
func Bool(v bool) Event        { return Event{Kind: KindBool, Bool: v} }
func I8(v int8) Event          { return Event{Kind: KindI8, Int: int64(v)} }
func I16(v int16) Event        { return Event{Kind: KindI16, Int: int64(v)} }
func I32(v int32) Event        { return Event{Kind: KindI32, Int: int64(v)} }
func I64(v int64) Event        { return Event{Kind: KindI64, Int: v} }
func U8(v uint8) Event         { return Event{Kind: KindU8, Uint: uint64(v)} }
func U16(v uint16) Event       { return Event{Kind: KindU16, Uint: uint64(v)} }
func U32(v uint32) Event       { return Event{Kind: KindU32, Uint: uint64(v)} }
func U64(v uint64) Event       { return Event{Kind: KindU64, Uint: v} }
func F32(v float32) Event      { return Event{Kind: KindF32, Float: float64(v)} }
func F64(v float64) Event      { return Event{Kind: KindF64, Float: v} }
func Str(v string) Event       { return Event{Kind: KindStr, Str: v} }
func BytesOf(v []byte) Event   { return Event{Kind: KindBytes, Bytes: v} }
