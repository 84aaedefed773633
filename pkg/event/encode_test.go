package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(t *testing.T, v interface{}) []Event {
	t.Helper()
	rec := &Recorder{}
	require.NoError(t, Encode(rec, v))
	return rec.Events
}

func TestEncodeScalars(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  Event
	}{
		{"bool", true, Bool(true)},
		{"int8", int8(-5), I8(-5)},
		{"int16", int16(300), I16(300)},
		{"int32", int32(70000), I32(70000)},
		{"int", 42, I64(42)},
		{"int64", int64(-1), I64(-1)},
		{"uint8", uint8(200), U8(200)},
		{"uint16", uint16(60000), U16(60000)},
		{"uint32", uint32(1 << 30), U32(1 << 30)},
		{"uint64", uint64(1 << 40), U64(1 << 40)},
		{"float32", float32(1.5), F32(1.5)},
		{"float64", 2.5, F64(2.5)},
		{"string", "hi", Str("hi")},
		{"bytes", []byte{1, 2}, BytesOf([]byte{1, 2})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := record(t, tt.value)
			require.Len(t, events, 1)
			assert.Equal(t, tt.want.Kind, events[0].Kind)
			assert.Equal(t, tt.want, events[0])
		})
	}
}

func TestEncodeStruct(t *testing.T) {
	type rec struct {
		ID     int64  `json:"id"`
		Name   string `json:"name"`
		hidden int
		Skip   int `json:"-"`
	}

	events := record(t, rec{ID: 7, Name: "x"})
	assert.Equal(t, []Event{
		StartStruct(),
		FieldName("id"), I64(7),
		FieldName("name"), Str("x"),
		EndStruct(),
	}, events)
}

func TestEncodePointers(t *testing.T) {
	v := int32(9)
	type rec struct {
		A *int32 `json:"a"`
		B *int32 `json:"b"`
	}

	events := record(t, rec{A: &v})
	assert.Equal(t, []Event{
		StartStruct(),
		FieldName("a"), Some(), I32(9),
		FieldName("b"), Null(),
		EndStruct(),
	}, events)
}

func TestEncodeSlices(t *testing.T) {
	events := record(t, []int16{1, 2})
	assert.Equal(t, []Event{
		StartSequence(),
		Item(), I16(1),
		Item(), I16(2),
		EndSequence(),
	}, events)
}

func TestEncodeMapSortsKeys(t *testing.T) {
	m := map[string]int64{"b": 2, "a": 1, "c": 3}
	for i := 0; i < 10; i++ {
		events := record(t, m)
		assert.Equal(t, []Event{
			StartMap(),
			Str("a"), I64(1),
			Str("b"), I64(2),
			Str("c"), I64(3),
			EndMap(),
		}, events)
	}
}

func TestEncodeTime(t *testing.T) {
	ts := time.Date(2021, 1, 2, 3, 4, 5, 0, time.UTC)
	events := record(t, ts)
	require.Len(t, events, 1)
	assert.Equal(t, Str("2021-01-02T03:04:05Z"), events[0])
}

func TestEncodeRejectsUnsupportedKinds(t *testing.T) {
	rec := &Recorder{}
	assert.Error(t, Encode(rec, make(chan int)))
	assert.Error(t, Encode(&Recorder{}, func() {}))
}

func TestDecodeRoundTrip(t *testing.T) {
	type inner struct {
		X float64 `json:"x"`
	}
	type rec struct {
		ID    int64    `json:"id"`
		Name  string   `json:"name"`
		Score *float32 `json:"score"`
		Tags  []string `json:"tags"`
		Inner inner    `json:"inner"`
	}

	score := float32(0.5)
	in := []rec{
		{ID: 1, Name: "a", Score: &score, Tags: []string{"x", "y"}, Inner: inner{X: 1.5}},
		{ID: 2, Name: "b", Tags: nil, Inner: inner{X: -2}},
	}

	var out []rec
	require.NoError(t, Decode(NewSliceSource(record(t, in)), &out))

	require.Len(t, out, 2)
	assert.Equal(t, in[0].ID, out[0].ID)
	assert.Equal(t, in[0].Name, out[0].Name)
	require.NotNil(t, out[0].Score)
	assert.Equal(t, score, *out[0].Score)
	assert.Equal(t, in[0].Tags, out[0].Tags)
	assert.Equal(t, in[0].Inner, out[0].Inner)
	assert.Nil(t, out[1].Score)
}

func TestDecodeIntoInterface(t *testing.T) {
	in := map[string]interface{}{"a": int64(1), "b": "x"}

	var out map[string]interface{}
	require.NoError(t, Decode(NewSliceSource(record(t, in)), &out))
	assert.Equal(t, int64(1), out["a"])
	assert.Equal(t, "x", out["b"])
}

func TestDecodeSkipsUnknownFields(t *testing.T) {
	events := []Event{
		StartStruct(),
		FieldName("known"), I64(1),
		FieldName("unknown"), StartSequence(), Item(), I64(2), EndSequence(),
		EndStruct(),
	}

	var out struct {
		Known int64 `json:"known"`
	}
	require.NoError(t, Decode(NewSliceSource(events), &out))
	assert.Equal(t, int64(1), out.Known)
}

func TestDecodeTime(t *testing.T) {
	var out struct {
		At time.Time `json:"at"`
	}
	events := []Event{
		StartStruct(),
		FieldName("at"), Str("2021-01-02T03:04:05Z"),
		EndStruct(),
	}
	require.NoError(t, Decode(NewSliceSource(events), &out))
	assert.Equal(t, time.Date(2021, 1, 2, 3, 4, 5, 0, time.UTC), out.At.UTC())
}

func TestParseTime(t *testing.T) {
	zoned, err := ParseTime("2021-01-02T03:04:05+02:00")
	require.NoError(t, err)
	assert.Equal(t, int64(1609549445000), zoned.UnixMilli())

	naive, err := ParseTime("2021-01-02T03:04:05")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 1, 2, 3, 4, 5, 0, time.UTC), naive)

	_, err = ParseTime("not a time")
	assert.Error(t, err)
}

func TestStripOuterSequence(t *testing.T) {
	rec := &Recorder{}
	sink := NewStripOuterSequenceSink(rec)

	events := []Event{
		StartSequence(),
		Item(), StartStruct(), FieldName("a"), I64(1), EndStruct(),
		Item(), StartSequence(), Item(), I64(2), EndSequence(),
		EndSequence(),
	}
	for _, ev := range events {
		require.NoError(t, sink.Accept(ev))
	}

	assert.Equal(t, []Event{
		StartStruct(), FieldName("a"), I64(1), EndStruct(),
		StartSequence(), Item(), I64(2), EndSequence(),
	}, rec.Events)
}
