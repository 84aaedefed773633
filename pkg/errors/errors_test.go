package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCarriesTypeAndStack(t *testing.T) {
	err := New(ErrorTypeCompilation, "bad field tree")
	assert.Equal(t, "compilation: bad field tree", err.Error())
	assert.True(t, IsType(err, ErrorTypeCompilation))
	assert.False(t, IsType(err, ErrorTypeInterpreter))
	assert.NotEmpty(t, err.Stack)
}

func TestNewf(t *testing.T) {
	err := Newf(ErrorTypeInterpreter, "expected %s, got %s", "I64", "Str")
	assert.Equal(t, "interpreter: expected I64, got Str", err.Error())
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Wrap(cause, ErrorTypeInternal, "flush failed")
	require.Error(t, err)
	assert.Equal(t, "internal: flush failed: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Nil(t, Wrap(nil, ErrorTypeInternal, "ignored"))
}

func TestWrapKeepsInnerType(t *testing.T) {
	inner := New(ErrorTypeDataIntegrity, "offset out of range")
	outer := Wrap(inner, ErrorTypeInterpreter, "row 3")
	// The outer type wins for IsType; the inner error stays reachable.
	assert.True(t, IsType(outer, ErrorTypeInterpreter))
	var e *Error
	require.True(t, As(outer.Unwrap(), &e))
	assert.Equal(t, ErrorTypeDataIntegrity, e.Type)
}

func TestFieldDetail(t *testing.T) {
	err := New(ErrorTypeInterpreter, "type mismatch").WithField("$.user.age")
	assert.Equal(t, "$.user.age", Field(err))
	assert.Equal(t, "", Field(New(ErrorTypeInterpreter, "no field")))
	assert.Equal(t, "", Field(fmt.Errorf("plain")))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrorTypeValidation, "bad arg").
		WithDetail("arg", "records").
		WithDetail("index", 2)
	assert.Equal(t, "records", err.Details["arg"])
	assert.Equal(t, 2, err.Details["index"])
}

func TestIsTypeOnForeignError(t *testing.T) {
	assert.False(t, IsType(fmt.Errorf("plain"), ErrorTypeInternal))
	assert.False(t, IsType(nil, ErrorTypeInternal))
}
