// Package schema provides quiver's columnar field model and the tracer that
// infers it from serialization event streams.
package schema

import stringpool "github.com/ajitpratap0/quiver/pkg/strings"

// DataType is the resolved columnar type of one field. It follows the Arrow
// data model closely but stays backend-neutral; backend-specific types enter
// only through the Ext escape hatch.
type DataType uint8

const (
	// Unknown marks a field whose type could not be determined because only
	// null or absent values were observed. It never survives ToField unless
	// TracingOptions.AllowNullFields is set, in which case it resolves to Null.
	Unknown DataType = iota
	// Null is a column holding only nulls
	Null
	Bool
	I8
	I16
	I32
	I64
	U8
	U16
	U32
	U64
	F32
	F64
	// Utf8 is a variable-length UTF-8 string column
	Utf8
	// Binary is a variable-length byte string column
	Binary
	// DateTimeStr is a date time as an RFC 3339 string with time zone,
	// materialized as 64-bit epoch milliseconds (an Arrow Date64 column)
	DateTimeStr
	// NaiveDateTimeStr is a date time as an RFC 3339 string without a time
	// zone, materialized as 64-bit epoch milliseconds
	NaiveDateTimeStr
	// DateTimeMilliseconds is a date time as non-leap milliseconds since the
	// Unix epoch, materialized unchanged
	DateTimeMilliseconds
	// Struct is a composite column with one child per field
	Struct
	// List is a variable-length collection column with exactly one child
	// describing the element type
	List
	// Map is a key-value column with exactly two children (key, value)
	Map
	// Ext is an opaque caller-supplied backend type; the field carries an
	// ExtensionType payload and the core compilers reject it
	Ext
)

var dataTypeNames = map[DataType]string{
	Unknown:              "Unknown",
	Null:                 "Null",
	Bool:                 "Bool",
	I8:                   "I8",
	I16:                  "I16",
	I32:                  "I32",
	I64:                  "I64",
	U8:                   "U8",
	U16:                  "U16",
	U32:                  "U32",
	U64:                  "U64",
	F32:                  "F32",
	F64:                  "F64",
	Utf8:                 "Utf8",
	Binary:               "Binary",
	DateTimeStr:          "DateTimeStr",
	NaiveDateTimeStr:     "NaiveDateTimeStr",
	DateTimeMilliseconds: "DateTimeMilliseconds",
	Struct:               "Struct",
	List:                 "List",
	Map:                  "Map",
	Ext:                  "Ext",
}

// String returns the type name.
func (t DataType) String() string {
	if name, ok := dataTypeNames[t]; ok {
		return name
	}
	return stringpool.Sprintf("DataType(%d)", uint8(t))
}

// IsSignedInt reports whether t is a signed integer kind.
func (t DataType) IsSignedInt() bool {
	return t >= I8 && t <= I64
}

// IsUnsignedInt reports whether t is an unsigned integer kind.
func (t DataType) IsUnsignedInt() bool {
	return t >= U8 && t <= U64
}

// IsInt reports whether t is any integer kind.
func (t DataType) IsInt() bool {
	return t.IsSignedInt() || t.IsUnsignedInt()
}

// IsFloat reports whether t is a floating-point kind.
func (t DataType) IsFloat() bool {
	return t == F32 || t == F64
}

// IsDate reports whether t is one of the date encodings. All three
// materialize as 64-bit epoch milliseconds in the value buffer.
func (t DataType) IsDate() bool {
	return t == DateTimeStr || t == NaiveDateTimeStr || t == DateTimeMilliseconds
}

// IsComposite reports whether t owns child fields.
func (t DataType) IsComposite() bool {
	return t == Struct || t == List || t == Map
}

// bitWidth returns the integer/float bit width, or 0 for other kinds.
func (t DataType) bitWidth() int {
	switch t {
	case I8, U8:
		return 8
	case I16, U16:
		return 16
	case I32, U32, F32:
		return 32
	case I64, U64, F64:
		return 64
	default:
		return 0
	}
}

// ExtensionType is the capability interface behind the Ext escape hatch.
// A backend adapter implements it to smuggle a concrete backend type through
// the generic field model; the core tracer and compilers never look inside.
type ExtensionType interface {
	// Backend identifies the owning backend, e.g. "arrow"
	Backend() string
	// String renders the concrete type for diagnostics
	String() string
}
