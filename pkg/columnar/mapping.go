package columnar

import "github.com/ajitpratap0/quiver/pkg/schema"

// FieldMapping associates one field of a compiled program with the buffer
// IDs holding its data. It is the indirection layer between field paths and
// buffer indices: compilers emit it, backend adapters consume it to build
// concrete arrays, and the extraction path produces it for deserialization.
//
// Which IDs are set depends on the field's data type:
//
//	scalar numerics and dates    Values
//	Bool                         Values (a bitmap ID — bools are bit-packed)
//	Utf8, Binary                 Offsets + Data
//	List, Map                    Offsets + Children
//	Struct                       Children only
//	Null                         Validity only
//
// Validity is set for nullable fields and NoBuffer otherwise.
type FieldMapping struct {
	Field    schema.GenericField
	Validity BufferID
	Values   BufferID
	Offsets  BufferID
	Data     BufferID
	Children []FieldMapping
}
