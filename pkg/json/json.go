// Package json provides pooled JSON encoding and decoding for quiver,
// built on goccy/go-json. The CLI streams JSONL record files through these
// helpers; the conversion core itself never touches JSON.
package json

import (
	"io"

	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/quiver/pkg/pool"
)

// Marshal serializes v to JSON bytes.
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// MarshalIndent serializes v to indented JSON bytes.
func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return gojson.MarshalIndent(v, prefix, indent)
}

// Unmarshal deserializes JSON bytes into v.
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// NewDecoder returns a streaming JSON decoder reading from r.
func NewDecoder(r io.Reader) *gojson.Decoder {
	return gojson.NewDecoder(r)
}

// NewEncoder returns a streaming JSON encoder writing to w.
func NewEncoder(w io.Writer) *gojson.Encoder {
	return gojson.NewEncoder(w)
}

// MarshalToBuffer serializes v into a pooled buffer and returns the bytes
// together with a release function. The bytes are only valid until release
// is called.
func MarshalToBuffer(v interface{}) ([]byte, func(), error) {
	buf := pool.GetBuffer()
	enc := gojson.NewEncoder(buf)
	if err := enc.Encode(v); err != nil {
		pool.PutBuffer(buf)
		return nil, nil, err
	}
	return buf.Bytes(), func() { pool.PutBuffer(buf) }, nil
}
