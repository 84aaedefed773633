package arrowconv

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/quiver/pkg/errors"
	"github.com/ajitpratap0/quiver/pkg/schema"
)

func TestToArrowFieldScalars(t *testing.T) {
	tests := []struct {
		dataType schema.DataType
		want     arrow.DataType
	}{
		{schema.Bool, arrow.FixedWidthTypes.Boolean},
		{schema.I8, arrow.PrimitiveTypes.Int8},
		{schema.I64, arrow.PrimitiveTypes.Int64},
		{schema.U16, arrow.PrimitiveTypes.Uint16},
		{schema.U64, arrow.PrimitiveTypes.Uint64},
		{schema.F32, arrow.PrimitiveTypes.Float32},
		{schema.F64, arrow.PrimitiveTypes.Float64},
		{schema.Utf8, arrow.BinaryTypes.String},
		{schema.Binary, arrow.BinaryTypes.Binary},
		{schema.DateTimeStr, arrow.FixedWidthTypes.Date64},
		{schema.NaiveDateTimeStr, arrow.FixedWidthTypes.Date64},
		{schema.DateTimeMilliseconds, arrow.FixedWidthTypes.Date64},
		{schema.Null, arrow.Null},
	}

	for _, tt := range tests {
		t.Run(tt.dataType.String(), func(t *testing.T) {
			f := schema.NewField("v", tt.dataType, true)
			af, err := ToArrowField(&f)
			require.NoError(t, err)
			assert.Equal(t, "v", af.Name)
			assert.True(t, af.Nullable)
			assert.True(t, arrow.TypeEqual(tt.want, af.Type))
		})
	}
}

func TestToArrowFieldNested(t *testing.T) {
	f := schema.GenericField{
		Name:     "outer",
		DataType: schema.Struct,
		Children: []schema.GenericField{
			schema.NewField("id", schema.I64, false),
			{
				Name:     "tags",
				DataType: schema.List,
				Children: []schema.GenericField{schema.NewField("element", schema.Utf8, false)},
			},
			{
				Name:     "attrs",
				DataType: schema.Map,
				Children: []schema.GenericField{
					schema.NewField("key", schema.Utf8, false),
					schema.NewField("value", schema.I32, true),
				},
			},
		},
	}

	af, err := ToArrowField(&f)
	require.NoError(t, err)

	st, ok := af.Type.(*arrow.StructType)
	require.True(t, ok)
	require.Equal(t, 3, st.NumFields())
	assert.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Int64, st.Field(0).Type))

	lt, ok := st.Field(1).Type.(*arrow.ListType)
	require.True(t, ok)
	assert.True(t, arrow.TypeEqual(arrow.BinaryTypes.String, lt.Elem()))

	mt, ok := st.Field(2).Type.(*arrow.MapType)
	require.True(t, ok)
	assert.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Int32, mt.ItemType()))
	assert.True(t, mt.ItemField().Nullable)
}

func TestFromArrowFieldTimestamp(t *testing.T) {
	af := arrow.Field{
		Name:     "ts",
		Type:     &arrow.TimestampType{Unit: arrow.Millisecond},
		Nullable: true,
	}
	f, err := FromArrowField(af)
	require.NoError(t, err)
	assert.Equal(t, schema.DateTimeMilliseconds, f.DataType)
	assert.True(t, f.Nullable)

	af.Type = &arrow.TimestampType{Unit: arrow.Nanosecond}
	_, err = FromArrowField(af)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeCompilation))
}

func TestFromArrowFieldUnsupported(t *testing.T) {
	af := arrow.Field{Name: "v", Type: arrow.FixedWidthTypes.Float16}
	_, err := FromArrowField(af)
	require.Error(t, err)
	assert.Equal(t, "v", errors.Field(err))
}

func TestSchemaRoundTrip(t *testing.T) {
	fields := []schema.GenericField{
		schema.NewField("id", schema.I64, false),
		schema.NewField("name", schema.Utf8, true),
		{
			Name:     "tags",
			DataType: schema.List,
			Nullable: true,
			Children: []schema.GenericField{schema.NewField("element", schema.F64, false)},
		},
		{
			Name:     "point",
			DataType: schema.Struct,
			Children: []schema.GenericField{
				schema.NewField("x", schema.F32, false),
				schema.NewField("y", schema.F32, false),
			},
		},
	}

	as, err := ToArrowSchema(fields)
	require.NoError(t, err)
	back, err := FromArrowSchema(as)
	require.NoError(t, err)
	assert.Equal(t, fields, back)
}

func TestDateCollapsesToMilliseconds(t *testing.T) {
	// All three date representations share one Arrow storage type, so the
	// return trip lands on the integer form.
	f := schema.NewField("ts", schema.DateTimeStr, false)
	af, err := ToArrowField(&f)
	require.NoError(t, err)
	back, err := FromArrowField(af)
	require.NoError(t, err)
	assert.Equal(t, schema.DateTimeMilliseconds, back.DataType)
}

type pointExtension struct{}

func (pointExtension) Backend() string           { return "arrow" }
func (pointExtension) String() string            { return "point" }
func (pointExtension) ArrowType() arrow.DataType { return arrow.PrimitiveTypes.Float64 }

func TestExtensionField(t *testing.T) {
	f := schema.GenericField{Name: "p", DataType: schema.Ext, Extension: pointExtension{}}
	af, err := ToArrowField(&f)
	require.NoError(t, err)
	assert.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Float64, af.Type))

	f.Extension = nil
	_, err = ToArrowField(&f)
	require.Error(t, err)
}
