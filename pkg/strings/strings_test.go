package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBytesToString(t *testing.T) {
	assert.Equal(t, "", BytesToString(nil))
	assert.Equal(t, "", BytesToString([]byte{}))
	assert.Equal(t, "abc", BytesToString([]byte("abc")))
}

func TestStringToBytes(t *testing.T) {
	assert.Nil(t, StringToBytes(""))
	assert.Equal(t, []byte("abc"), StringToBytes("abc"))
}

func TestClone(t *testing.T) {
	src := []byte("hello")
	s := Clone(BytesToString(src))
	src[0] = 'x'
	assert.Equal(t, "hello", s)
}

func TestBuilder(t *testing.T) {
	b := NewBuilder(8)
	b.WriteString("foo")
	_ = b.WriteByte('.')
	_, _ = b.Write([]byte("bar"))
	assert.Equal(t, "foo.bar", b.String())
	assert.Equal(t, 7, b.Len())

	b.Reset()
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, "", b.String())
}

func TestSprintf(t *testing.T) {
	assert.Equal(t, "no args", Sprintf("no args"))
	assert.Equal(t, "field $.a: got I64", Sprintf("field %s: got %s", "$.a", "I64"))
}

func TestJoinPath(t *testing.T) {
	tests := []struct {
		segments []string
		want     string
	}{
		{nil, ""},
		{[]string{"$"}, "$"},
		{[]string{"$", "user"}, "$.user"},
		{[]string{"$", "user", "name"}, "$.user.name"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, JoinPath(tt.segments...))
	}
}

func TestPooledBuilderReuse(t *testing.T) {
	b := GetBuilder()
	b.WriteString("scratch")
	PutBuilder(b)

	b2 := GetBuilder()
	defer PutBuilder(b2)
	assert.Equal(t, 0, b2.Len())
}
