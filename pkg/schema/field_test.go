package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldValidate(t *testing.T) {
	tests := []struct {
		name  string
		field GenericField
		ok    bool
	}{
		{"scalar", NewField("v", I64, false), true},
		{"scalar with children", GenericField{Name: "v", DataType: I64,
			Children: []GenericField{NewField("x", I8, false)}}, false},
		{"struct", NewStructField("s", false, NewField("x", I8, false)), true},
		{"list", NewListField("l", false, NewField("element", Utf8, false)), true},
		{"list without element", GenericField{Name: "l", DataType: List}, false},
		{"map", NewMapField("m", false, NewField("key", Utf8, false), NewField("value", I64, true)), true},
		{"map with one child", GenericField{Name: "m", DataType: Map,
			Children: []GenericField{NewField("key", Utf8, false)}}, false},
		{"extension without type", GenericField{Name: "e", DataType: Ext}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.field.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestFieldString(t *testing.T) {
	f := NewStructField("rec", false,
		NewField("id", I64, false),
		NewListField("xs", true, NewField("element", F64, false)),
	)
	s := f.String()
	assert.Contains(t, s, "rec")
	assert.Contains(t, s, "id")
	assert.Contains(t, s, "xs")
}

func TestFieldEqual(t *testing.T) {
	a := NewStructField("s", false, NewField("x", I8, true))
	b := NewStructField("s", false, NewField("x", I8, true))
	c := NewStructField("s", false, NewField("x", I16, true))

	require.True(t, a.Equal(&b))
	require.False(t, a.Equal(&c))
}
