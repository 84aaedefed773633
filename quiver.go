package quiver

import (
	"reflect"

	"github.com/ajitpratap0/quiver/pkg/columnar"
	"github.com/ajitpratap0/quiver/pkg/deserialization"
	"github.com/ajitpratap0/quiver/pkg/errors"
	"github.com/ajitpratap0/quiver/pkg/event"
	"github.com/ajitpratap0/quiver/pkg/schema"
	"github.com/ajitpratap0/quiver/pkg/serialization"
)

// TraceFields infers the columnar field tree for a sequence of records. The
// records are replayed as an event stream and tracing works from the events
// alone, so any value the event encoder handles can be traced: structs,
// maps, slices, scalars, pointers. Numeric types widen and fields missing
// from some records become nullable as the records disagree.
func TraceFields(records interface{}, opts ...schema.TracingOptions) ([]schema.GenericField, error) {
	o := tracingOptions(opts)
	tracer := schema.NewTracer("$", o)
	sink := event.NewStripOuterSequenceSink(tracer)
	if err := event.Encode(sink, records); err != nil {
		return nil, err
	}
	root, err := tracer.ToField("$")
	if err != nil {
		return nil, err
	}
	if root.DataType == schema.Null {
		return nil, errors.New(errors.ErrorTypeSchemaInference,
			"No records found to determine schema")
	}
	if root.DataType != schema.Struct {
		return nil, errors.Newf(errors.ErrorTypeSchemaInference,
			"records must be struct or map shaped, traced %s", root.DataType)
	}
	return root.Children, nil
}

// TraceField infers the field of a single column from a sequence of values.
func TraceField(values interface{}, name string, opts ...schema.TracingOptions) (schema.GenericField, error) {
	o := tracingOptions(opts)
	tracer := schema.NewTracer(name, o)
	sink := event.NewStripOuterSequenceSink(tracer)
	if err := event.Encode(sink, values); err != nil {
		return schema.GenericField{}, err
	}
	f, err := tracer.ToField(name)
	if err != nil {
		return schema.GenericField{}, err
	}
	if f.DataType == schema.Null && !o.AllowNullFields {
		return schema.GenericField{}, errors.New(errors.ErrorTypeSchemaInference,
			"No records found to determine schema")
	}
	return f, nil
}

// TraceSchema infers a flat schema container from a sequence of records.
// Nested fields are flattened away; only top-level columns are described.
func TraceSchema(records interface{}, opts ...schema.TracingOptions) (*schema.Schema, error) {
	fields, err := TraceFields(records, opts...)
	if err != nil {
		return nil, err
	}
	return schema.FromFields(fields), nil
}

func tracingOptions(opts []schema.TracingOptions) schema.TracingOptions {
	if len(opts) > 0 {
		return opts[0]
	}
	return schema.NewTracingOptions()
}

// Columns is the result of a conversion: the field tree, the populated
// buffer set, the per-field buffer mapping and the record count. Backend
// adapters consume all four to assemble concrete arrays.
type Columns struct {
	Fields   []schema.GenericField
	Mappings []columnar.FieldMapping
	Buffers  *columnar.Buffers
	NumRows  int
}

// Builder incrementally converts records to columnar buffers. Records are
// pushed one at a time or in batches; Finish seals the conversion. A
// builder is single-use: after Finish or an error it must be discarded.
type Builder struct {
	fields  []schema.GenericField
	program *serialization.Program
	interp  *serialization.Interpreter
	started bool
	done    bool
}

// NewBuilder compiles a builder for the given record fields.
func NewBuilder(fields []schema.GenericField) (*Builder, error) {
	program, err := serialization.Compile(fields, serialization.NewCompilationOptions())
	if err != nil {
		return nil, err
	}
	return &Builder{
		fields:  fields,
		program: program,
		interp:  serialization.NewInterpreter(program),
	}, nil
}

// NewArrayBuilder compiles a builder for a single column; pushed values are
// the column values themselves rather than records.
func NewArrayBuilder(field schema.GenericField) (*Builder, error) {
	program, err := serialization.Compile([]schema.GenericField{field},
		serialization.CompilationOptions{WrapWithStruct: false})
	if err != nil {
		return nil, err
	}
	return &Builder{
		fields:  []schema.GenericField{field},
		program: program,
		interp:  serialization.NewInterpreter(program),
	}, nil
}

// Push converts one record.
func (b *Builder) Push(record interface{}) error {
	if b.done {
		return errors.New(errors.ErrorTypeValidation, "builder already finished")
	}
	if !b.started {
		if err := b.interp.AcceptStartSequence(); err != nil {
			return err
		}
		b.started = true
	}
	if err := b.interp.AcceptItem(); err != nil {
		return err
	}
	return event.Encode(b.interp, record)
}

// Extend converts a slice of records.
func (b *Builder) Extend(records interface{}) error {
	rv := reflect.ValueOf(records)
	for rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return errors.Newf(errors.ErrorTypeValidation,
			"cannot extend from %s, need a slice", rv.Kind())
	}
	for i := 0; i < rv.Len(); i++ {
		if err := b.Push(rv.Index(i).Interface()); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of records converted so far.
func (b *Builder) Len() int { return b.interp.NumRows() }

// Finish seals the conversion and returns the populated columns.
func (b *Builder) Finish() (*Columns, error) {
	if b.done {
		return nil, errors.New(errors.ErrorTypeValidation, "builder already finished")
	}
	if !b.started {
		if err := b.interp.AcceptStartSequence(); err != nil {
			return nil, err
		}
		b.started = true
	}
	if err := b.interp.AcceptEndSequence(); err != nil {
		return nil, err
	}
	buffers, err := b.interp.Finish()
	if err != nil {
		return nil, err
	}
	b.done = true
	return &Columns{
		Fields:   b.fields,
		Mappings: b.program.Mappings,
		Buffers:  buffers,
		NumRows:  b.interp.NumRows(),
	}, nil
}

// ToColumns converts a slice of records using the given fields. Pass the
// result of TraceFields, possibly adjusted through schema overrides, or a
// hand-built field list.
func ToColumns(records interface{}, fields []schema.GenericField) (*Columns, error) {
	builder, err := NewBuilder(fields)
	if err != nil {
		return nil, err
	}
	if err := builder.Extend(records); err != nil {
		return nil, err
	}
	return builder.Finish()
}

// FromColumns deserializes columns back into out, which must be a pointer
// to a slice of records.
func FromColumns(cols *Columns, out interface{}) error {
	program, err := deserialization.Compile(cols.Mappings, cols.Buffers, cols.NumRows)
	if err != nil {
		return err
	}
	return event.Decode(deserialization.NewSource(program), out)
}
