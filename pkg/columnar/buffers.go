// Package columnar provides the growable buffer model backing quiver's
// conversion programs: bit-packed validity bitmaps, fixed-width value
// buffers, monotonically increasing offset buffers and variable-length byte
// buffers, all addressed through stable integer indices so compiled programs
// never resolve field paths per value.
package columnar

import (
	"encoding/binary"

	"github.com/ajitpratap0/quiver/pkg/errors"
)

// BufferID addresses one buffer inside a Buffers set. IDs are assigned in a
// fixed, deterministic traversal order of the field tree during compilation
// and stay stable for the lifetime of one program.
type BufferID int32

// NoBuffer marks an absent buffer, e.g. the validity buffer of a
// non-nullable field.
const NoBuffer BufferID = -1

// Buffers is the indexed set of storage cells backing one conversion
// session. Cells are grouped by shape; IDs are per-group.
type Buffers struct {
	bitmaps []*Bitmap
	values  []*ValueBuffer
	offsets []*OffsetBuffer
	bytes   []*ByteBuffer
}

// NewBuffers creates an empty buffer set.
func NewBuffers() *Buffers {
	return &Buffers{}
}

// AddBitmap allocates a new empty bitmap and returns its ID.
func (b *Buffers) AddBitmap() BufferID {
	b.bitmaps = append(b.bitmaps, NewBitmap())
	return BufferID(len(b.bitmaps) - 1)
}

// AddBitmapBytes registers pre-existing bit-packed storage, used by backend
// adapters when extracting buffers from concrete arrays.
func (b *Buffers) AddBitmapBytes(bits []byte, length int) BufferID {
	b.bitmaps = append(b.bitmaps, &Bitmap{bits: bits, length: length})
	return BufferID(len(b.bitmaps) - 1)
}

// AddValues allocates a new fixed-width value buffer.
func (b *Buffers) AddValues(width int) BufferID {
	b.values = append(b.values, NewValueBuffer(width))
	return BufferID(len(b.values) - 1)
}

// AddValuesBytes registers pre-existing fixed-width storage.
func (b *Buffers) AddValuesBytes(width int, data []byte) BufferID {
	b.values = append(b.values, &ValueBuffer{width: width, data: data})
	return BufferID(len(b.values) - 1)
}

// AddOffsets allocates a new offset buffer primed with the leading zero.
func (b *Buffers) AddOffsets() BufferID {
	b.offsets = append(b.offsets, NewOffsetBuffer())
	return BufferID(len(b.offsets) - 1)
}

// AddOffsetsInt32 registers pre-existing offsets.
func (b *Buffers) AddOffsetsInt32(offsets []int32) BufferID {
	b.offsets = append(b.offsets, &OffsetBuffer{offsets: offsets})
	return BufferID(len(b.offsets) - 1)
}

// AddBytes allocates a new variable-length byte buffer.
func (b *Buffers) AddBytes() BufferID {
	b.bytes = append(b.bytes, NewByteBuffer())
	return BufferID(len(b.bytes) - 1)
}

// AddBytesData registers pre-existing byte storage.
func (b *Buffers) AddBytesData(data []byte) BufferID {
	b.bytes = append(b.bytes, &ByteBuffer{data: data})
	return BufferID(len(b.bytes) - 1)
}

// Bitmap returns the bitmap with the given ID.
func (b *Buffers) Bitmap(id BufferID) *Bitmap {
	return b.bitmaps[id]
}

// Values returns the value buffer with the given ID.
func (b *Buffers) Values(id BufferID) *ValueBuffer {
	return b.values[id]
}

// Offsets returns the offset buffer with the given ID.
func (b *Buffers) Offsets(id BufferID) *OffsetBuffer {
	return b.offsets[id]
}

// Bytes returns the byte buffer with the given ID.
func (b *Buffers) Bytes(id BufferID) *ByteBuffer {
	return b.bytes[id]
}

// Counts reports how many buffers of each shape are allocated, in the order
// bitmaps, values, offsets, bytes.
func (b *Buffers) Counts() (int, int, int, int) {
	return len(b.bitmaps), len(b.values), len(b.offsets), len(b.bytes)
}

// Bitmap is a bit-packed growable boolean buffer, least significant bit
// first, matching the Arrow validity layout. It backs both validity masks
// and boolean value columns.
type Bitmap struct {
	bits   []byte
	length int
}

// NewBitmap creates an empty bitmap.
func NewBitmap() *Bitmap {
	return &Bitmap{}
}

// Append adds one bit.
func (m *Bitmap) Append(v bool) {
	byteIdx := m.length / 8
	if byteIdx >= len(m.bits) {
		m.bits = append(m.bits, 0)
	}
	if v {
		m.bits[byteIdx] |= 1 << uint(m.length%8)
	}
	m.length++
}

// Get returns the bit at position i.
func (m *Bitmap) Get(i int) bool {
	return m.bits[i/8]&(1<<uint(i%8)) != 0
}

// Len returns the number of bits.
func (m *Bitmap) Len() int {
	return m.length
}

// Bytes returns the packed storage.
func (m *Bitmap) Bytes() []byte {
	return m.bits
}

// ValueBuffer is a growable fixed-width value buffer. Values are stored as
// little-endian bit patterns of the declared width; callers convert scalars
// to and from uint64 bit patterns.
type ValueBuffer struct {
	width int
	data  []byte
}

// NewValueBuffer creates an empty value buffer for the given element width
// in bytes (1, 2, 4 or 8).
func NewValueBuffer(width int) *ValueBuffer {
	return &ValueBuffer{width: width}
}

// AppendBits appends one value given as a uint64 bit pattern.
func (v *ValueBuffer) AppendBits(bits uint64) {
	var scratch [8]byte
	binary.LittleEndian.PutUint64(scratch[:], bits)
	v.data = append(v.data, scratch[:v.width]...)
}

// Bits returns the bit pattern of the value at index i.
func (v *ValueBuffer) Bits(i int) uint64 {
	var scratch [8]byte
	copy(scratch[:v.width], v.data[i*v.width:])
	return binary.LittleEndian.Uint64(scratch[:])
}

// Len returns the number of stored values.
func (v *ValueBuffer) Len() int {
	if v.width == 0 {
		return 0
	}
	return len(v.data) / v.width
}

// Width returns the element width in bytes.
func (v *ValueBuffer) Width() int {
	return v.width
}

// Bytes returns the raw storage.
func (v *ValueBuffer) Bytes() []byte {
	return v.data
}

// OffsetBuffer is a monotonically increasing int32 offset sequence, starting
// at zero, with one entry per element plus the leading zero — the Arrow
// offsets layout for variable-length and nested data.
type OffsetBuffer struct {
	offsets []int32
}

// NewOffsetBuffer creates an offset buffer primed with the leading zero.
func NewOffsetBuffer() *OffsetBuffer {
	return &OffsetBuffer{offsets: []int32{0}}
}

// PushLength appends the end offset of an element of n items.
func (o *OffsetBuffer) PushLength(n int) {
	last := o.offsets[len(o.offsets)-1]
	o.offsets = append(o.offsets, last+int32(n))
}

// Len returns the number of elements described (entries minus the leading
// zero).
func (o *OffsetBuffer) Len() int {
	return len(o.offsets) - 1
}

// Range returns the half-open item range of element i, validating
// monotonicity. Non-monotonic or out-of-range offsets are corrupt input.
func (o *OffsetBuffer) Range(i int) (start, end int, err error) {
	if i < 0 || i+1 >= len(o.offsets) {
		return 0, 0, errors.Newf(errors.ErrorTypeDataIntegrity,
			"offset index %d out of range (%d elements)", i, len(o.offsets)-1)
	}
	start = int(o.offsets[i])
	end = int(o.offsets[i+1])
	if end < start || start < 0 {
		return 0, 0, errors.Newf(errors.ErrorTypeDataIntegrity,
			"non-monotonic offsets at element %d: %d..%d", i, start, end)
	}
	return start, end, nil
}

// Offsets returns the raw offsets including the leading zero.
func (o *OffsetBuffer) Offsets() []int32 {
	return o.offsets
}

// ByteBuffer is the variable-length payload storage behind string and binary
// columns; an OffsetBuffer delimits the individual values.
type ByteBuffer struct {
	data []byte
}

// NewByteBuffer creates an empty byte buffer.
func NewByteBuffer() *ByteBuffer {
	return &ByteBuffer{}
}

// AppendString appends the bytes of s and returns its length.
func (b *ByteBuffer) AppendString(s string) int {
	b.data = append(b.data, s...)
	return len(s)
}

// Append appends raw bytes and returns their length.
func (b *ByteBuffer) Append(data []byte) int {
	b.data = append(b.data, data...)
	return len(data)
}

// Slice returns the bytes in [start, end), validating bounds.
func (b *ByteBuffer) Slice(start, end int) ([]byte, error) {
	if start < 0 || end < start || end > len(b.data) {
		return nil, errors.Newf(errors.ErrorTypeDataIntegrity,
			"byte range %d..%d out of bounds (%d bytes)", start, end, len(b.data))
	}
	return b.data[start:end], nil
}

// Len returns the stored byte count.
func (b *ByteBuffer) Len() int {
	return len(b.data)
}

// Bytes returns the raw storage.
func (b *ByteBuffer) Bytes() []byte {
	return b.data
}
