package event

import (
	"math"
	"reflect"
	"time"

	"github.com/ajitpratap0/quiver/pkg/errors"
)

// naiveTimeLayout parses RFC 3339 timestamps that carry no zone designator.
const naiveTimeLayout = "2006-01-02T15:04:05.999999999"

// Decode consumes the source to completion and reconstructs a native value
// into out, which must be a non-nil pointer. It is the event-to-native half
// of the conversion protocol: the deserialization source feeds it the event
// trace of a record collection and it rebuilds slices, structs, maps and
// scalars accordingly.
func Decode(source Source, out interface{}) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.New(errors.ErrorTypeValidation, "decode target must be a non-nil pointer")
	}

	ev, ok, err := source.Next()
	if err != nil {
		return err
	}
	if !ok {
		return errors.New(errors.ErrorTypeInterpreter, "empty event stream")
	}
	if err := decodeValue(rv.Elem(), ev, source); err != nil {
		return err
	}

	// The stream must be fully consumed: trailing events mean the shape of
	// the target did not match the stream.
	if _, ok, err := source.Next(); err != nil {
		return err
	} else if ok {
		return errors.New(errors.ErrorTypeInterpreter, "trailing events after decoded value")
	}
	return nil
}

func next(source Source) (Event, error) {
	ev, ok, err := source.Next()
	if err != nil {
		return Event{}, err
	}
	if !ok {
		return Event{}, errors.New(errors.ErrorTypeInterpreter, "unexpected end of event stream")
	}
	return ev, nil
}

func decodeValue(target reflect.Value, ev Event, source Source) error {
	// Optional markers wrap the value they qualify.
	if ev.Kind == KindSome {
		inner, err := next(source)
		if err != nil {
			return err
		}
		ev = inner
	}

	if target.Kind() == reflect.Ptr {
		if ev.Kind == KindNull {
			target.Set(reflect.Zero(target.Type()))
			return nil
		}
		elem := reflect.New(target.Type().Elem())
		if err := decodeValue(elem.Elem(), ev, source); err != nil {
			return err
		}
		target.Set(elem)
		return nil
	}

	if ev.Kind == KindNull {
		target.Set(reflect.Zero(target.Type()))
		return nil
	}

	switch ev.Kind {
	case KindStartSequence:
		return decodeSequence(target, source)
	case KindStartStruct:
		return decodeStruct(target, source)
	case KindStartMap:
		return decodeMap(target, source)
	case KindBool:
		return setBool(target, ev.Bool)
	case KindI8, KindI16, KindI32, KindI64:
		return setInt(target, ev.Int)
	case KindU8, KindU16, KindU32, KindU64:
		return setUint(target, ev.Uint)
	case KindF32, KindF64:
		return setFloat(target, ev.Float, ev.Kind == KindF32)
	case KindStr:
		return setString(target, ev.Str)
	case KindBytes:
		return setBytes(target, ev.Bytes)
	default:
		return errors.Newf(errors.ErrorTypeInterpreter, "unexpected event %s", ev)
	}
}

func decodeSequence(target reflect.Value, source Source) error {
	switch target.Kind() {
	case reflect.Slice:
		elemType := target.Type().Elem()
		out := reflect.MakeSlice(target.Type(), 0, 8)
		for {
			ev, err := next(source)
			if err != nil {
				return err
			}
			if ev.Kind == KindEndSequence {
				target.Set(out)
				return nil
			}
			if ev.Kind != KindItem {
				return errors.Newf(errors.ErrorTypeInterpreter,
					"expected Item or EndSequence, got %s", ev)
			}
			ev, err = next(source)
			if err != nil {
				return err
			}
			elem := reflect.New(elemType).Elem()
			if err := decodeValue(elem, ev, source); err != nil {
				return err
			}
			out = reflect.Append(out, elem)
		}

	case reflect.Interface:
		var generic []interface{}
		holder := reflect.ValueOf(&generic).Elem()
		if err := decodeSequence(holder, source); err != nil {
			return err
		}
		target.Set(reflect.ValueOf(generic))
		return nil

	default:
		return errors.Newf(errors.ErrorTypeInterpreter,
			"cannot decode sequence into %s", target.Type())
	}
}

func decodeStruct(target reflect.Value, source Source) error {
	switch target.Kind() {
	case reflect.Struct:
		index := structFieldIndex(target.Type())
		for {
			ev, err := next(source)
			if err != nil {
				return err
			}
			if ev.Kind == KindEndStruct {
				return nil
			}
			if ev.Kind != KindFieldName {
				return errors.Newf(errors.ErrorTypeInterpreter,
					"expected FieldName or EndStruct, got %s", ev)
			}
			value, err := next(source)
			if err != nil {
				return err
			}
			if fi, ok := index[ev.Str]; ok {
				if err := decodeValue(target.Field(fi), value, source); err != nil {
					return err
				}
			} else if err := skipValue(value, source); err != nil {
				return err
			}
		}

	case reflect.Map:
		if target.Type().Key().Kind() != reflect.String {
			return errors.Newf(errors.ErrorTypeInterpreter,
				"cannot decode struct into map with %s keys", target.Type().Key())
		}
		if target.IsNil() {
			target.Set(reflect.MakeMap(target.Type()))
		}
		elemType := target.Type().Elem()
		for {
			ev, err := next(source)
			if err != nil {
				return err
			}
			if ev.Kind == KindEndStruct {
				return nil
			}
			if ev.Kind != KindFieldName {
				return errors.Newf(errors.ErrorTypeInterpreter,
					"expected FieldName or EndStruct, got %s", ev)
			}
			value, err := next(source)
			if err != nil {
				return err
			}
			elem := reflect.New(elemType).Elem()
			if err := decodeValue(elem, value, source); err != nil {
				return err
			}
			target.SetMapIndex(reflect.ValueOf(ev.Str), elem)
		}

	case reflect.Interface:
		generic := map[string]interface{}{}
		holder := reflect.ValueOf(&generic).Elem()
		if err := decodeStruct(holder, source); err != nil {
			return err
		}
		target.Set(reflect.ValueOf(generic))
		return nil

	default:
		return errors.Newf(errors.ErrorTypeInterpreter,
			"cannot decode struct into %s", target.Type())
	}
}

func decodeMap(target reflect.Value, source Source) error {
	switch target.Kind() {
	case reflect.Map:
		if target.IsNil() {
			target.Set(reflect.MakeMap(target.Type()))
		}
		keyType := target.Type().Key()
		elemType := target.Type().Elem()
		for {
			ev, err := next(source)
			if err != nil {
				return err
			}
			if ev.Kind == KindEndMap {
				return nil
			}
			key := reflect.New(keyType).Elem()
			if err := decodeValue(key, ev, source); err != nil {
				return err
			}
			value, err := next(source)
			if err != nil {
				return err
			}
			elem := reflect.New(elemType).Elem()
			if err := decodeValue(elem, value, source); err != nil {
				return err
			}
			target.SetMapIndex(key, elem)
		}

	case reflect.Struct:
		// Map events with string keys can rebuild a struct.
		index := structFieldIndex(target.Type())
		for {
			ev, err := next(source)
			if err != nil {
				return err
			}
			if ev.Kind == KindEndMap {
				return nil
			}
			if ev.Kind != KindStr {
				return errors.Newf(errors.ErrorTypeInterpreter,
					"expected string key, got %s", ev)
			}
			value, err := next(source)
			if err != nil {
				return err
			}
			if fi, ok := index[ev.Str]; ok {
				if err := decodeValue(target.Field(fi), value, source); err != nil {
					return err
				}
			} else if err := skipValue(value, source); err != nil {
				return err
			}
		}

	case reflect.Interface:
		generic := map[string]interface{}{}
		holder := reflect.ValueOf(&generic).Elem()
		if err := decodeMapIntoStringMap(holder, source); err != nil {
			return err
		}
		target.Set(reflect.ValueOf(generic))
		return nil

	default:
		return errors.Newf(errors.ErrorTypeInterpreter,
			"cannot decode map into %s", target.Type())
	}
}

// decodeMapIntoStringMap handles StartMap streams whose keys are strings
// when the caller asked for an untyped value.
func decodeMapIntoStringMap(target reflect.Value, source Source) error {
	for {
		ev, err := next(source)
		if err != nil {
			return err
		}
		if ev.Kind == KindEndMap {
			return nil
		}
		if ev.Kind != KindStr {
			return errors.Newf(errors.ErrorTypeInterpreter,
				"cannot decode non-string map key %s into untyped map", ev)
		}
		value, err := next(source)
		if err != nil {
			return err
		}
		elem := reflect.New(target.Type().Elem()).Elem()
		if err := decodeValue(elem, value, source); err != nil {
			return err
		}
		target.SetMapIndex(reflect.ValueOf(ev.Str), elem)
	}
}

// skipValue consumes a complete value whose first event is ev, discarding it.
func skipValue(ev Event, source Source) error {
	switch ev.Kind {
	case KindSome:
		inner, err := next(source)
		if err != nil {
			return err
		}
		return skipValue(inner, source)
	case KindStartSequence, KindStartStruct, KindStartMap:
		depth := 1
		for depth > 0 {
			inner, err := next(source)
			if err != nil {
				return err
			}
			switch inner.Kind {
			case KindStartSequence, KindStartStruct, KindStartMap:
				depth++
			case KindEndSequence, KindEndStruct, KindEndMap:
				depth--
			}
		}
		return nil
	default:
		return nil
	}
}

func setBool(target reflect.Value, v bool) error {
	switch target.Kind() {
	case reflect.Bool:
		target.SetBool(v)
	case reflect.Interface:
		target.Set(reflect.ValueOf(v))
	default:
		return errors.Newf(errors.ErrorTypeInterpreter, "cannot decode Bool into %s", target.Type())
	}
	return nil
}

func setInt(target reflect.Value, v int64) error {
	switch target.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if target.OverflowInt(v) {
			return errors.Newf(errors.ErrorTypeInterpreter, "value %d overflows %s", v, target.Type())
		}
		target.SetInt(v)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if v < 0 || target.OverflowUint(uint64(v)) {
			return errors.Newf(errors.ErrorTypeInterpreter, "value %d overflows %s", v, target.Type())
		}
		target.SetUint(uint64(v))
	case reflect.Float32, reflect.Float64:
		target.SetFloat(float64(v))
	case reflect.Struct:
		if target.Type() == timeType {
			// Integer date columns carry epoch milliseconds.
			target.Set(reflect.ValueOf(time.UnixMilli(v).UTC()))
			return nil
		}
		return errors.Newf(errors.ErrorTypeInterpreter, "cannot decode integer into %s", target.Type())
	case reflect.Interface:
		target.Set(reflect.ValueOf(v))
	default:
		return errors.Newf(errors.ErrorTypeInterpreter, "cannot decode integer into %s", target.Type())
	}
	return nil
}

func setUint(target reflect.Value, v uint64) error {
	switch target.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if target.OverflowUint(v) {
			return errors.Newf(errors.ErrorTypeInterpreter, "value %d overflows %s", v, target.Type())
		}
		target.SetUint(v)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if v > math.MaxInt64 || target.OverflowInt(int64(v)) {
			return errors.Newf(errors.ErrorTypeInterpreter, "value %d overflows %s", v, target.Type())
		}
		target.SetInt(int64(v))
	case reflect.Float32, reflect.Float64:
		target.SetFloat(float64(v))
	case reflect.Interface:
		target.Set(reflect.ValueOf(v))
	default:
		return errors.Newf(errors.ErrorTypeInterpreter, "cannot decode unsigned into %s", target.Type())
	}
	return nil
}

func setFloat(target reflect.Value, v float64, single bool) error {
	switch target.Kind() {
	case reflect.Float32, reflect.Float64:
		target.SetFloat(v)
	case reflect.Interface:
		if single {
			target.Set(reflect.ValueOf(float32(v)))
		} else {
			target.Set(reflect.ValueOf(v))
		}
	default:
		return errors.Newf(errors.ErrorTypeInterpreter, "cannot decode float into %s", target.Type())
	}
	return nil
}

func setString(target reflect.Value, v string) error {
	switch target.Kind() {
	case reflect.String:
		target.SetString(v)
	case reflect.Struct:
		if target.Type() == timeType {
			t, err := ParseTime(v)
			if err != nil {
				return err
			}
			target.Set(reflect.ValueOf(t))
			return nil
		}
		return errors.Newf(errors.ErrorTypeInterpreter, "cannot decode string into %s", target.Type())
	case reflect.Slice:
		if target.Type().Elem().Kind() == reflect.Uint8 {
			target.SetBytes([]byte(v))
			return nil
		}
		return errors.Newf(errors.ErrorTypeInterpreter, "cannot decode string into %s", target.Type())
	case reflect.Interface:
		target.Set(reflect.ValueOf(v))
	default:
		return errors.Newf(errors.ErrorTypeInterpreter, "cannot decode string into %s", target.Type())
	}
	return nil
}

func setBytes(target reflect.Value, v []byte) error {
	switch {
	case target.Kind() == reflect.Slice && target.Type().Elem().Kind() == reflect.Uint8:
		out := make([]byte, len(v))
		copy(out, v)
		target.SetBytes(out)
	case target.Kind() == reflect.String:
		target.SetString(string(v))
	case target.Kind() == reflect.Interface:
		out := make([]byte, len(v))
		copy(out, v)
		target.Set(reflect.ValueOf(out))
	default:
		return errors.Newf(errors.ErrorTypeInterpreter, "cannot decode bytes into %s", target.Type())
	}
	return nil
}

// ParseTime parses an RFC 3339 timestamp, accepting both zoned and naive
// forms. Naive timestamps are interpreted as UTC.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(naiveTimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, errors.Newf(errors.ErrorTypeInterpreter,
			"cannot parse %q as RFC 3339 timestamp", s)
	}
	return t, nil
}

func structFieldIndex(t reflect.Type) map[string]int {
	index := make(map[string]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name, skip := structFieldName(t.Field(i))
		if skip {
			continue
		}
		index[name] = i
	}
	return index
}
