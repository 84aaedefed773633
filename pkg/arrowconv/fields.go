// Package arrowconv bridges the backend-independent columnar layout to
// concrete arrow-go arrays and record batches. Field trees translate to
// Arrow data types in both directions, populated buffers wrap into arrays
// without copying, and existing arrays extract back into buffer sets the
// deserialization compiler accepts.
package arrowconv

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/ajitpratap0/quiver/pkg/errors"
	"github.com/ajitpratap0/quiver/pkg/schema"
)

// ArrowExtension is the escape hatch for field shapes the generic type
// system does not model. An extension field converts to whatever Arrow type
// its extension reports.
type ArrowExtension interface {
	schema.ExtensionType
	ArrowType() arrow.DataType
}

// ToArrowField converts one field to its Arrow form.
func ToArrowField(f *schema.GenericField) (arrow.Field, error) {
	dt, err := toArrowType(f)
	if err != nil {
		return arrow.Field{}, err
	}
	return arrow.Field{Name: f.Name, Type: dt, Nullable: f.Nullable}, nil
}

func toArrowType(f *schema.GenericField) (arrow.DataType, error) {
	switch f.DataType {
	case schema.Null:
		return arrow.Null, nil
	case schema.Bool:
		return arrow.FixedWidthTypes.Boolean, nil
	case schema.I8:
		return arrow.PrimitiveTypes.Int8, nil
	case schema.I16:
		return arrow.PrimitiveTypes.Int16, nil
	case schema.I32:
		return arrow.PrimitiveTypes.Int32, nil
	case schema.I64:
		return arrow.PrimitiveTypes.Int64, nil
	case schema.U8:
		return arrow.PrimitiveTypes.Uint8, nil
	case schema.U16:
		return arrow.PrimitiveTypes.Uint16, nil
	case schema.U32:
		return arrow.PrimitiveTypes.Uint32, nil
	case schema.U64:
		return arrow.PrimitiveTypes.Uint64, nil
	case schema.F32:
		return arrow.PrimitiveTypes.Float32, nil
	case schema.F64:
		return arrow.PrimitiveTypes.Float64, nil
	case schema.Utf8:
		return arrow.BinaryTypes.String, nil
	case schema.Binary:
		return arrow.BinaryTypes.Binary, nil
	case schema.DateTimeStr, schema.NaiveDateTimeStr, schema.DateTimeMilliseconds:
		return arrow.FixedWidthTypes.Date64, nil

	case schema.Struct:
		children := make([]arrow.Field, 0, len(f.Children))
		for i := range f.Children {
			child, err := ToArrowField(&f.Children[i])
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		return arrow.StructOf(children...), nil

	case schema.List:
		elem, err := ToArrowField(&f.Children[0])
		if err != nil {
			return nil, err
		}
		elem.Name = "item"
		return arrow.ListOfField(elem), nil

	case schema.Map:
		key, err := toArrowType(&f.Children[0])
		if err != nil {
			return nil, err
		}
		item, err := toArrowType(&f.Children[1])
		if err != nil {
			return nil, err
		}
		mt := arrow.MapOf(key, item)
		mt.SetItemNullable(f.Children[1].Nullable)
		return mt, nil

	case schema.Ext:
		ext, ok := f.Extension.(ArrowExtension)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeCompilation,
				"extension %s for field %s does not target the arrow backend",
				f.Extension, f.Name).WithField(f.Name)
		}
		return ext.ArrowType(), nil
	}

	return nil, errors.Newf(errors.ErrorTypeCompilation,
		"cannot convert data type %s of field %s to arrow", f.DataType, f.Name).
		WithField(f.Name)
}

// FromArrowField converts an Arrow field back. Date64 and millisecond
// timestamps come back as millisecond datetime columns.
func FromArrowField(af arrow.Field) (schema.GenericField, error) {
	f := schema.GenericField{Name: af.Name, Nullable: af.Nullable}

	switch dt := af.Type.(type) {
	case *arrow.NullType:
		f.DataType = schema.Null
	case *arrow.BooleanType:
		f.DataType = schema.Bool
	case *arrow.Int8Type:
		f.DataType = schema.I8
	case *arrow.Int16Type:
		f.DataType = schema.I16
	case *arrow.Int32Type:
		f.DataType = schema.I32
	case *arrow.Int64Type:
		f.DataType = schema.I64
	case *arrow.Uint8Type:
		f.DataType = schema.U8
	case *arrow.Uint16Type:
		f.DataType = schema.U16
	case *arrow.Uint32Type:
		f.DataType = schema.U32
	case *arrow.Uint64Type:
		f.DataType = schema.U64
	case *arrow.Float32Type:
		f.DataType = schema.F32
	case *arrow.Float64Type:
		f.DataType = schema.F64
	case *arrow.StringType:
		f.DataType = schema.Utf8
	case *arrow.BinaryType:
		f.DataType = schema.Binary
	case *arrow.Date64Type:
		f.DataType = schema.DateTimeMilliseconds
	case *arrow.TimestampType:
		if dt.Unit != arrow.Millisecond {
			return f, errors.Newf(errors.ErrorTypeCompilation,
				"unsupported timestamp unit %s for field %s", dt.Unit, af.Name).
				WithField(af.Name)
		}
		f.DataType = schema.DateTimeMilliseconds

	case *arrow.StructType:
		f.DataType = schema.Struct
		for _, child := range dt.Fields() {
			cf, err := FromArrowField(child)
			if err != nil {
				return f, err
			}
			f.Children = append(f.Children, cf)
		}

	case *arrow.ListType:
		f.DataType = schema.List
		elem, err := FromArrowField(dt.ElemField())
		if err != nil {
			return f, err
		}
		elem.Name = "element"
		f.Children = []schema.GenericField{elem}

	case *arrow.MapType:
		f.DataType = schema.Map
		key, err := FromArrowField(dt.KeyField())
		if err != nil {
			return f, err
		}
		key.Name = "key"
		value, err := FromArrowField(dt.ItemField())
		if err != nil {
			return f, err
		}
		value.Name = "value"
		f.Children = []schema.GenericField{key, value}

	default:
		return f, errors.Newf(errors.ErrorTypeCompilation,
			"unsupported arrow type %s for field %s", af.Type, af.Name).
			WithField(af.Name)
	}

	return f, nil
}

// ToArrowSchema converts a field list to an Arrow schema.
func ToArrowSchema(fields []schema.GenericField) (*arrow.Schema, error) {
	afs := make([]arrow.Field, 0, len(fields))
	for i := range fields {
		af, err := ToArrowField(&fields[i])
		if err != nil {
			return nil, err
		}
		afs = append(afs, af)
	}
	return arrow.NewSchema(afs, nil), nil
}

// FromArrowSchema converts an Arrow schema back to a field list.
func FromArrowSchema(s *arrow.Schema) ([]schema.GenericField, error) {
	fields := make([]schema.GenericField, 0, s.NumFields())
	for _, af := range s.Fields() {
		f, err := FromArrowField(af)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}
