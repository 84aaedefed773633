package json

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalRoundTrip(t *testing.T) {
	in := map[string]interface{}{"a": int64(1), "b": "x"}
	data, err := Marshal(in)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, float64(1), out["a"])
	assert.Equal(t, "x", out["b"])
}

func TestMarshalToBuffer(t *testing.T) {
	data, release, err := MarshalToBuffer(map[string]interface{}{"v": 42})
	require.NoError(t, err)
	defer release()

	// Encoder output is newline terminated, one value per line.
	assert.Equal(t, "{\"v\":42}\n", string(data))
}

func TestMarshalToBufferReleaseRecycles(t *testing.T) {
	data, release, err := MarshalToBuffer([]int{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, "[1,2,3]\n", string(data))
	release()

	data2, release2, err := MarshalToBuffer("next")
	require.NoError(t, err)
	defer release2()
	assert.Equal(t, "\"next\"\n", string(data2))
}

func TestMarshalToBufferError(t *testing.T) {
	_, _, err := MarshalToBuffer(make(chan int))
	require.Error(t, err)
}

func TestStreamingCodec(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	require.NoError(t, enc.Encode(map[string]string{"k": "v"}))

	dec := NewDecoder(strings.NewReader(buf.String()))
	var out map[string]string
	require.NoError(t, dec.Decode(&out))
	assert.Equal(t, "v", out["k"])
}
