package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/quiver/pkg/errors"
	"github.com/ajitpratap0/quiver/pkg/event"
)

func trace(t *testing.T, opts TracingOptions, events []event.Event) (GenericField, error) {
	t.Helper()
	tracer := NewTracer("$", opts)
	for _, ev := range events {
		if err := tracer.Accept(ev); err != nil {
			return GenericField{}, err
		}
	}
	return tracer.ToField("$")
}

func TestTracerScalarRecords(t *testing.T) {
	f, err := trace(t, NewTracingOptions(), []event.Event{
		event.StartStruct(),
		event.FieldName("a"), event.I64(1),
		event.FieldName("b"), event.Str("x"),
		event.EndStruct(),
	})
	require.NoError(t, err)

	require.Equal(t, Struct, f.DataType)
	require.Len(t, f.Children, 2)
	assert.Equal(t, GenericField{Name: "a", DataType: I64}, f.Children[0])
	assert.Equal(t, GenericField{Name: "b", DataType: Utf8}, f.Children[1])
}

func TestTracerWidening(t *testing.T) {
	tests := []struct {
		name   string
		first  event.Event
		second event.Event
		want   DataType
	}{
		{"signed widens to wider", event.I8(1), event.I32(2), I32},
		{"unsigned widens to wider", event.U16(1), event.U8(2), U16},
		{"u8 and i8 need i16", event.U8(200), event.I8(-1), I16},
		{"u32 and i8 need i64", event.U32(1), event.I8(-1), I64},
		{"i64 covers u16", event.I64(1), event.U16(2), I64},
		{"int and f32 widen to f32", event.I16(1), event.F32(2), F32},
		{"i64 and f32 widen to f64", event.I64(1), event.F32(2), F64},
		{"f32 and f64 widen to f64", event.F32(1), event.F64(2), F64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := trace(t, NewTracingOptions(), []event.Event{
				event.StartStruct(), event.FieldName("v"), tt.first, event.EndStruct(),
				event.StartStruct(), event.FieldName("v"), tt.second, event.EndStruct(),
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Children[0].DataType)
			assert.False(t, f.Children[0].Nullable)
		})
	}
}

func TestTracerIrreconcilable(t *testing.T) {
	tests := []struct {
		name   string
		first  event.Event
		second event.Event
	}{
		{"u64 and signed", event.U64(1), event.I8(-1)},
		{"bool and int", event.Bool(true), event.I64(1)},
		{"string and int", event.Str("x"), event.I64(1)},
		{"struct and scalar", event.I64(1), event.StartStruct()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := trace(t, NewTracingOptions(), []event.Event{
				event.StartStruct(), event.FieldName("v"), tt.first, event.EndStruct(),
				event.StartStruct(), event.FieldName("v"), tt.second, event.EndStruct(),
			})
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeSchemaInference))
		})
	}
}

func TestTracerNullMarksNullable(t *testing.T) {
	f, err := trace(t, NewTracingOptions(), []event.Event{
		event.StartStruct(), event.FieldName("v"), event.Null(), event.EndStruct(),
		event.StartStruct(), event.FieldName("v"), event.I32(5), event.EndStruct(),
	})
	require.NoError(t, err)
	assert.Equal(t, I32, f.Children[0].DataType)
	assert.True(t, f.Children[0].Nullable)
}

func TestTracerSomeIsTransparent(t *testing.T) {
	f, err := trace(t, NewTracingOptions(), []event.Event{
		event.StartStruct(), event.FieldName("v"), event.Some(), event.F64(1.5), event.EndStruct(),
	})
	require.NoError(t, err)
	assert.Equal(t, F64, f.Children[0].DataType)
	assert.False(t, f.Children[0].Nullable)
}

func TestTracerMissingFieldBecomesNullable(t *testing.T) {
	f, err := trace(t, NewTracingOptions(), []event.Event{
		event.StartStruct(),
		event.FieldName("a"), event.I64(1),
		event.FieldName("b"), event.Str("x"),
		event.EndStruct(),
		event.StartStruct(),
		event.FieldName("a"), event.I64(2),
		event.EndStruct(),
	})
	require.NoError(t, err)
	assert.False(t, f.Children[0].Nullable)
	assert.True(t, f.Children[1].Nullable)
}

func TestTracerLateFieldBecomesNullable(t *testing.T) {
	// A field first observed in the second record was missing from the
	// first, so it must be nullable even though every later record has it.
	f, err := trace(t, NewTracingOptions(), []event.Event{
		event.StartStruct(), event.FieldName("a"), event.I64(1), event.EndStruct(),
		event.StartStruct(),
		event.FieldName("a"), event.I64(2),
		event.FieldName("b"), event.Str("x"),
		event.EndStruct(),
	})
	require.NoError(t, err)
	assert.True(t, f.Children[1].Nullable)
}

func TestTracerAlwaysNullField(t *testing.T) {
	events := []event.Event{
		event.StartStruct(), event.FieldName("v"), event.Null(), event.EndStruct(),
		event.StartStruct(), event.FieldName("v"), event.Null(), event.EndStruct(),
	}

	_, err := trace(t, NewTracingOptions(), events)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchemaInference))

	opts := NewTracingOptions()
	opts.AllowNullFields = true
	f, err := trace(t, opts, events)
	require.NoError(t, err)
	assert.Equal(t, Null, f.Children[0].DataType)
	assert.True(t, f.Children[0].Nullable)
}

func TestTracerNestedList(t *testing.T) {
	f, err := trace(t, NewTracingOptions(), []event.Event{
		event.StartStruct(),
		event.FieldName("xs"),
		event.StartSequence(),
		event.Item(), event.I8(1),
		event.Item(), event.I64(2),
		event.EndSequence(),
		event.EndStruct(),
	})
	require.NoError(t, err)

	xs := f.Children[0]
	require.Equal(t, List, xs.DataType)
	require.Len(t, xs.Children, 1)
	assert.Equal(t, "element", xs.Children[0].Name)
	assert.Equal(t, I64, xs.Children[0].DataType)
}

func TestTracerMapAsStruct(t *testing.T) {
	f, err := trace(t, NewTracingOptions(), []event.Event{
		event.StartMap(),
		event.Str("a"), event.I64(1),
		event.Str("b"), event.Bool(true),
		event.EndMap(),
	})
	require.NoError(t, err)

	require.Equal(t, Struct, f.DataType)
	require.Len(t, f.Children, 2)
	assert.Equal(t, I64, f.Children[0].DataType)
	assert.Equal(t, Bool, f.Children[1].DataType)
}

func TestTracerTrueMap(t *testing.T) {
	opts := NewTracingOptions()
	opts.MapAsStruct = false

	f, err := trace(t, opts, []event.Event{
		event.StartStruct(),
		event.FieldName("m"),
		event.StartMap(),
		event.Str("a"), event.I64(1),
		event.EndMap(),
		event.EndStruct(),
	})
	require.NoError(t, err)

	m := f.Children[0]
	require.Equal(t, Map, m.DataType)
	require.Len(t, m.Children, 2)
	assert.Equal(t, Utf8, m.Children[0].DataType)
	assert.Equal(t, I64, m.Children[1].DataType)
}

func TestTracerTrueMapKeepsRootAsStruct(t *testing.T) {
	// Map-shaped records must still trace to a struct root with true-map
	// tracing enabled; only nested map values become Map nodes.
	opts := NewTracingOptions()
	opts.MapAsStruct = false

	f, err := trace(t, opts, []event.Event{
		event.StartMap(),
		event.Str("m"),
		event.StartMap(),
		event.Str("a"), event.I64(1),
		event.EndMap(),
		event.EndMap(),
	})
	require.NoError(t, err)

	require.Equal(t, Struct, f.DataType)
	require.Len(t, f.Children, 1)
	m := f.Children[0]
	assert.Equal(t, "m", m.Name)
	require.Equal(t, Map, m.DataType)
	assert.Equal(t, Utf8, m.Children[0].DataType)
	assert.Equal(t, I64, m.Children[1].DataType)
}

func TestTracerDeterministicAcrossOrder(t *testing.T) {
	// The inferred schema depends only on the event stream content, not on
	// which record contributed which observation first.
	forward, err := trace(t, NewTracingOptions(), []event.Event{
		event.StartStruct(), event.FieldName("v"), event.I8(1), event.EndStruct(),
		event.StartStruct(), event.FieldName("v"), event.F64(1), event.EndStruct(),
	})
	require.NoError(t, err)

	backward, err := trace(t, NewTracingOptions(), []event.Event{
		event.StartStruct(), event.FieldName("v"), event.F64(1), event.EndStruct(),
		event.StartStruct(), event.FieldName("v"), event.I8(1), event.EndStruct(),
	})
	require.NoError(t, err)

	assert.True(t, forward.Equal(&backward))
}

func TestTracerEmptyResolvesToNullRoot(t *testing.T) {
	f, err := trace(t, NewTracingOptions(), nil)
	require.NoError(t, err)
	assert.Equal(t, Null, f.DataType)
}

func TestTracerUnbalancedEvents(t *testing.T) {
	tracer := NewTracer("$", NewTracingOptions())
	require.NoError(t, tracer.Accept(event.StartStruct()))
	_, err := tracer.ToField("$")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchemaInference))
}

func TestWiden(t *testing.T) {
	tests := []struct {
		a, b DataType
		want DataType
		ok   bool
	}{
		{I8, I8, I8, true},
		{I8, I64, I64, true},
		{U8, U32, U32, true},
		{I8, U8, I16, true},
		{I32, U16, I32, true},
		{U32, I16, I64, true},
		{I8, F32, F32, true},
		{U64, F64, F64, true},
		{I64, F32, F64, true},
		{U64, I8, Unknown, false},
		{Bool, I8, Unknown, false},
		{Utf8, Binary, Unknown, false},
	}

	for _, tt := range tests {
		got, err := widen(tt.a, tt.b, "$.v")
		if !tt.ok {
			assert.Error(t, err, "widen(%s, %s)", tt.a, tt.b)
			continue
		}
		require.NoError(t, err, "widen(%s, %s)", tt.a, tt.b)
		assert.Equal(t, tt.want, got, "widen(%s, %s)", tt.a, tt.b)

		// Widening is symmetric.
		swapped, err := widen(tt.b, tt.a, "$.v")
		require.NoError(t, err)
		assert.Equal(t, tt.want, swapped, "widen(%s, %s)", tt.b, tt.a)
	}
}
