package arrowconv

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/quiver/pkg/columnar"
	"github.com/ajitpratap0/quiver/pkg/errors"
	"github.com/ajitpratap0/quiver/pkg/schema"
)

// BuildArray wraps the buffers of one field mapping into an Arrow array
// without copying the underlying memory. The caller owns the returned array
// and must Release it.
func BuildArray(m *columnar.FieldMapping, buffers *columnar.Buffers, length int) (arrow.Array, error) {
	data, err := buildData(m, buffers, length)
	if err != nil {
		return nil, err
	}
	defer data.Release()
	return array.MakeFromData(data), nil
}

func buildData(m *columnar.FieldMapping, buffers *columnar.Buffers, length int) (arrow.ArrayData, error) {
	dt, err := toArrowType(&m.Field)
	if err != nil {
		return nil, err
	}

	var validity *memory.Buffer
	nulls := 0
	if m.Validity != columnar.NoBuffer {
		validity = memory.NewBufferBytes(buffers.Bitmap(m.Validity).Bytes())
		nulls = array.UnknownNullCount
	}

	switch m.Field.DataType {
	case schema.Null:
		return array.NewData(dt, length, []*memory.Buffer{nil}, nil, length, 0), nil

	case schema.Bool:
		values := memory.NewBufferBytes(buffers.Bitmap(m.Values).Bytes())
		return array.NewData(dt, length, []*memory.Buffer{validity, values}, nil, nulls, 0), nil

	case schema.I8, schema.I16, schema.I32, schema.I64,
		schema.U8, schema.U16, schema.U32, schema.U64,
		schema.F32, schema.F64,
		schema.DateTimeStr, schema.NaiveDateTimeStr, schema.DateTimeMilliseconds:
		values := memory.NewBufferBytes(buffers.Values(m.Values).Bytes())
		return array.NewData(dt, length, []*memory.Buffer{validity, values}, nil, nulls, 0), nil

	case schema.Utf8, schema.Binary:
		offsets := buffers.Offsets(m.Offsets)
		offBuf := memory.NewBufferBytes(arrow.Int32Traits.CastToBytes(offsets.Offsets()))
		dataBuf := memory.NewBufferBytes(buffers.Bytes(m.Data).Bytes())
		return array.NewData(dt, length,
			[]*memory.Buffer{validity, offBuf, dataBuf}, nil, nulls, 0), nil

	case schema.Struct:
		children := make([]arrow.ArrayData, 0, len(m.Children))
		for i := range m.Children {
			child, err := buildData(&m.Children[i], buffers, length)
			if err != nil {
				return nil, err
			}
			defer child.Release()
			children = append(children, child)
		}
		return array.NewData(dt, length, []*memory.Buffer{validity}, children, nulls, 0), nil

	case schema.List:
		offsets := buffers.Offsets(m.Offsets)
		childLen, err := totalLength(offsets, length)
		if err != nil {
			return nil, err
		}
		child, err := buildData(&m.Children[0], buffers, childLen)
		if err != nil {
			return nil, err
		}
		defer child.Release()
		offBuf := memory.NewBufferBytes(arrow.Int32Traits.CastToBytes(offsets.Offsets()))
		return array.NewData(dt, length,
			[]*memory.Buffer{validity, offBuf}, []arrow.ArrayData{child}, nulls, 0), nil

	case schema.Map:
		mt := dt.(*arrow.MapType)
		offsets := buffers.Offsets(m.Offsets)
		entriesLen, err := totalLength(offsets, length)
		if err != nil {
			return nil, err
		}
		key, err := buildData(&m.Children[0], buffers, entriesLen)
		if err != nil {
			return nil, err
		}
		defer key.Release()
		value, err := buildData(&m.Children[1], buffers, entriesLen)
		if err != nil {
			return nil, err
		}
		defer value.Release()
		entries := array.NewData(mt.Elem(), entriesLen,
			[]*memory.Buffer{nil}, []arrow.ArrayData{key, value}, 0, 0)
		defer entries.Release()
		offBuf := memory.NewBufferBytes(arrow.Int32Traits.CastToBytes(offsets.Offsets()))
		return array.NewData(dt, length,
			[]*memory.Buffer{validity, offBuf}, []arrow.ArrayData{entries}, nulls, 0), nil
	}

	return nil, errors.Newf(errors.ErrorTypeCompilation,
		"cannot build arrow array for data type %s of field %s",
		m.Field.DataType, m.Field.Name).WithField(m.Field.Name)
}

// totalLength returns the end offset of the last element, the length of the
// nested child data.
func totalLength(offsets *columnar.OffsetBuffer, length int) (int, error) {
	if length == 0 {
		return 0, nil
	}
	_, end, err := offsets.Range(length - 1)
	if err != nil {
		return 0, err
	}
	return end, nil
}

// ExtractBuffers walks an Arrow array and registers its buffers in the given
// buffer set, returning the mapping the deserialization compiler consumes.
// Sliced arrays are rejected: extraction requires a zero data offset.
func ExtractBuffers(arr arrow.Array, field *schema.GenericField, buffers *columnar.Buffers) (columnar.FieldMapping, error) {
	mapping := columnar.FieldMapping{
		Field:    *field,
		Validity: columnar.NoBuffer,
		Values:   columnar.NoBuffer,
		Offsets:  columnar.NoBuffer,
		Data:     columnar.NoBuffer,
	}

	data := arr.Data()
	if data.Offset() != 0 {
		return mapping, errors.Newf(errors.ErrorTypeValidation,
			"sliced array for field %s cannot be extracted, offset is %d",
			field.Name, data.Offset()).WithField(field.Name)
	}
	n := data.Len()

	if field.DataType == schema.Null {
		mapping.Validity = buffers.AddBitmapBytes(make([]byte, (n+7)/8), n)
		return mapping, nil
	}

	if field.Nullable {
		mapping.Validity = buffers.AddBitmapBytes(validityBits(data, n), n)
	}

	switch field.DataType {
	case schema.Bool:
		mapping.Values = buffers.AddBitmapBytes(rawBuffer(data, 1), n)

	case schema.I8, schema.I16, schema.I32, schema.I64,
		schema.U8, schema.U16, schema.U32, schema.U64,
		schema.F32, schema.F64,
		schema.DateTimeStr, schema.NaiveDateTimeStr, schema.DateTimeMilliseconds:
		width := valueWidth(field.DataType)
		raw := rawBuffer(data, 1)
		if len(raw) < n*width {
			return mapping, errors.Newf(errors.ErrorTypeDataIntegrity,
				"value buffer for field %s holds %d bytes, need %d",
				field.Name, len(raw), n*width).WithField(field.Name)
		}
		mapping.Values = buffers.AddValuesBytes(width, raw[:n*width])

	case schema.Utf8, schema.Binary:
		offsets, err := offsetSlice(data, n, field.Name)
		if err != nil {
			return mapping, err
		}
		end := int(offsets[n])
		raw := rawBuffer(data, 2)
		if len(raw) < end {
			return mapping, errors.Newf(errors.ErrorTypeDataIntegrity,
				"data buffer for field %s holds %d bytes, need %d",
				field.Name, len(raw), end).WithField(field.Name)
		}
		mapping.Offsets = buffers.AddOffsetsInt32(offsets)
		mapping.Data = buffers.AddBytesData(raw[:end])

	case schema.Struct:
		st := arr.(*array.Struct)
		for i := range field.Children {
			child, err := ExtractBuffers(st.Field(i), &field.Children[i], buffers)
			if err != nil {
				return mapping, err
			}
			mapping.Children = append(mapping.Children, child)
		}

	case schema.List:
		offsets, err := offsetSlice(data, n, field.Name)
		if err != nil {
			return mapping, err
		}
		mapping.Offsets = buffers.AddOffsetsInt32(offsets)
		lst := arr.(*array.List)
		child, err := ExtractBuffers(lst.ListValues(), &field.Children[0], buffers)
		if err != nil {
			return mapping, err
		}
		mapping.Children = []columnar.FieldMapping{child}

	case schema.Map:
		offsets, err := offsetSlice(data, n, field.Name)
		if err != nil {
			return mapping, err
		}
		mapping.Offsets = buffers.AddOffsetsInt32(offsets)
		mp := arr.(*array.Map)
		key, err := ExtractBuffers(mp.Keys(), &field.Children[0], buffers)
		if err != nil {
			return mapping, err
		}
		value, err := ExtractBuffers(mp.Items(), &field.Children[1], buffers)
		if err != nil {
			return mapping, err
		}
		mapping.Children = []columnar.FieldMapping{key, value}

	default:
		return mapping, errors.Newf(errors.ErrorTypeCompilation,
			"cannot extract buffers for data type %s of field %s",
			field.DataType, field.Name).WithField(field.Name)
	}

	return mapping, nil
}

// validityBits returns the validity bitmap bytes, synthesizing an all-valid
// bitmap when the array carries none.
func validityBits(data arrow.ArrayData, n int) []byte {
	if buf := data.Buffers()[0]; buf != nil && buf.Len() > 0 {
		return buf.Bytes()
	}
	bits := make([]byte, (n+7)/8)
	for i := 0; i < n; i++ {
		bits[i/8] |= 1 << (i % 8)
	}
	return bits
}

func rawBuffer(data arrow.ArrayData, i int) []byte {
	if buf := data.Buffers()[i]; buf != nil {
		return buf.Bytes()
	}
	return nil
}

// offsetSlice returns the n+1 offsets of a variable-length or nested array,
// tolerating the empty offsets buffer Arrow permits for zero-length arrays.
// Offsets are validated here so corrupt input surfaces as an error before any
// offset is used as a slice bound.
func offsetSlice(data arrow.ArrayData, n int, name string) ([]int32, error) {
	raw := rawBuffer(data, 1)
	offsets := arrow.Int32Traits.CastFromBytes(raw)
	if len(offsets) < n+1 {
		if n == 0 {
			return []int32{0}, nil
		}
		return nil, errors.Newf(errors.ErrorTypeDataIntegrity,
			"offset buffer for field %s holds %d entries, need %d",
			name, len(offsets), n+1).WithField(name)
	}
	offsets = offsets[:n+1]
	if offsets[0] < 0 {
		return nil, errors.Newf(errors.ErrorTypeDataIntegrity,
			"offset buffer for field %s starts at %d", name, offsets[0]).WithField(name)
	}
	for i := 0; i < n; i++ {
		if offsets[i+1] < offsets[i] {
			return nil, errors.Newf(errors.ErrorTypeDataIntegrity,
				"non-monotonic offsets for field %s at element %d: %d..%d",
				name, i, offsets[i], offsets[i+1]).WithField(name)
		}
	}
	return offsets, nil
}

// valueWidth returns the fixed element width in bytes for a scalar kind.
func valueWidth(dt schema.DataType) int {
	switch dt {
	case schema.I8, schema.U8:
		return 1
	case schema.I16, schema.U16:
		return 2
	case schema.I32, schema.U32, schema.F32:
		return 4
	default:
		return 8
	}
}
