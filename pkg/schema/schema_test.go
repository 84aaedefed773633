package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/quiver/pkg/errors"
)

func dtPtr(dt DataType) *DataType { return &dt }
func boolPtr(b bool) *bool        { return &b }

func TestSchemaAddField(t *testing.T) {
	s := NewSchema().
		WithField("id", dtPtr(I64), boolPtr(false)).
		WithField("name", dtPtr(Utf8), nil).
		WithField("tags", nil, boolPtr(true))

	assert.Equal(t, []string{"id", "name", "tags"}, s.Fields())
	assert.True(t, s.Exists("id"))
	assert.False(t, s.Exists("missing"))

	dt, ok := s.DataType("id")
	require.True(t, ok)
	assert.Equal(t, I64, dt)

	_, ok = s.DataType("tags")
	assert.False(t, ok)
	assert.True(t, s.IsNullable("tags"))
	assert.False(t, s.IsNullable("name"))
}

func TestSchemaSettersRejectUnknownFields(t *testing.T) {
	s := NewSchema()
	err := s.SetDataType("missing", I64)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	err = s.SetNullable("missing", true)
	require.Error(t, err)
}

func TestFromFields(t *testing.T) {
	fields := []GenericField{
		NewField("id", I64, false),
		NewField("name", Utf8, true),
		NewStructField("nested", false, NewField("x", F64, false)),
	}
	s := FromFields(fields)

	assert.Equal(t, []string{"id", "name", "nested"}, s.Fields())
	_, ok := s.DataType("nested")
	assert.False(t, ok, "composite columns have no flat data type")
	assert.True(t, s.IsNullable("name"))
}

func TestApplyOverrides(t *testing.T) {
	traced := []GenericField{
		NewField("ts", Utf8, false),
		NewField("epoch", I64, false),
		NewField("count", I8, false),
		NewField("ratio", F32, false),
	}

	s := NewSchema().
		WithField("ts", dtPtr(NaiveDateTimeStr), nil).
		WithField("epoch", dtPtr(DateTimeMilliseconds), nil).
		WithField("count", dtPtr(I32), boolPtr(true)).
		WithField("ratio", dtPtr(F64), nil)

	out, err := s.ApplyOverrides(traced)
	require.NoError(t, err)

	assert.Equal(t, NaiveDateTimeStr, out[0].DataType)
	assert.Equal(t, DateTimeMilliseconds, out[1].DataType)
	assert.Equal(t, I32, out[2].DataType)
	assert.True(t, out[2].Nullable)
	assert.Equal(t, F64, out[3].DataType)

	// The input is not mutated.
	assert.Equal(t, Utf8, traced[0].DataType)
}

func TestApplyOverridesRejectsConflicts(t *testing.T) {
	tests := []struct {
		name     string
		traced   DataType
		override DataType
	}{
		{"narrowing int", I64, I8},
		{"int to string", I64, Utf8},
		{"string to int", Utf8, I64},
		{"float to int", F64, I64},
		{"bool to int", Bool, I64},
		{"sign change", U32, I32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSchema().WithField("v", dtPtr(tt.override), nil)
			_, err := s.ApplyOverrides([]GenericField{NewField("v", tt.traced, false)})
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeCompilation))
		})
	}
}

func TestApplyOverridesIgnoresUnknownFields(t *testing.T) {
	s := NewSchema().WithField("other", dtPtr(I64), nil)
	traced := []GenericField{NewField("v", Utf8, false)}
	out, err := s.ApplyOverrides(traced)
	require.NoError(t, err)
	assert.Equal(t, traced, out)
}
