package schema

import "github.com/ajitpratap0/quiver/pkg/errors"

// signedCover returns the smallest signed kind whose range covers the given
// unsigned kind. U64 has no signed cover.
func signedCover(t DataType) (DataType, bool) {
	switch t {
	case U8:
		return I16, true
	case U16:
		return I32, true
	case U32:
		return I64, true
	default:
		return Unknown, false
	}
}

func maxSigned(a, b DataType) DataType {
	if a.bitWidth() >= b.bitWidth() {
		return a
	}
	return b
}

// widen merges two scalar kinds observed for the same field into one
// covering kind:
//
//   - equal kinds stay unchanged
//   - two signed (or two unsigned) integer kinds widen to the wider one
//   - a signed/unsigned mix widens to the smallest signed kind covering both
//     ranges; U64 mixed with a signed kind is irreconcilable
//   - an integer/float mix widens to F64 when either operand is 64 bits wide,
//     F32 otherwise
//   - any other mix (bool vs text, composite vs scalar, ...) is irreconcilable
//
// Null observations never reach widen; they only mark nullability.
func widen(a, b DataType, path string) (DataType, error) {
	if a == b {
		return a, nil
	}

	switch {
	case a.IsSignedInt() && b.IsSignedInt():
		if a.bitWidth() >= b.bitWidth() {
			return a, nil
		}
		return b, nil

	case a.IsUnsignedInt() && b.IsUnsignedInt():
		if a.bitWidth() >= b.bitWidth() {
			return a, nil
		}
		return b, nil

	case a.IsSignedInt() && b.IsUnsignedInt():
		cover, ok := signedCover(b)
		if !ok {
			return Unknown, irreconcilable(a, b, path)
		}
		return maxSigned(a, cover), nil

	case a.IsUnsignedInt() && b.IsSignedInt():
		cover, ok := signedCover(a)
		if !ok {
			return Unknown, irreconcilable(a, b, path)
		}
		return maxSigned(cover, b), nil

	case (a.IsInt() && b.IsFloat()) || (a.IsFloat() && b.IsInt()) || (a.IsFloat() && b.IsFloat()):
		if a.bitWidth() == 64 || b.bitWidth() == 64 {
			return F64, nil
		}
		return F32, nil

	default:
		return Unknown, irreconcilable(a, b, path)
	}
}

func irreconcilable(a, b DataType, path string) error {
	return errors.Newf(errors.ErrorTypeSchemaInference,
		"cannot merge %s with %s for field %s", a, b, path).WithField(path)
}
