package event

import (
	"reflect"
	"sort"
	"time"

	"github.com/ajitpratap0/quiver/pkg/errors"
)

var timeType = reflect.TypeOf(time.Time{})

// Encode walks v depth-first and drives the sink with the resulting event
// stream. Slices and arrays become sequences with Item markers, structs
// become StartStruct/FieldName/EndStruct groups, maps become StartMap groups
// with keys emitted in sorted order (map iteration order is randomized in Go;
// sorting keeps tracing and serialization deterministic), nil pointers become
// Null and non-nil pointers Some followed by the pointed-to value.
// time.Time values are emitted as RFC 3339 strings.
//
// Encode is the native-to-event half of the conversion protocol; the schema
// tracer and the serialization interpreter are both driven through it.
func Encode(sink Sink, v interface{}) error {
	return encodeValue(sink, reflect.ValueOf(v))
}

func encodeValue(sink Sink, rv reflect.Value) error {
	if !rv.IsValid() {
		return sink.Accept(Null())
	}

	switch rv.Kind() {
	case reflect.Interface:
		if rv.IsNil() {
			return sink.Accept(Null())
		}
		return encodeValue(sink, rv.Elem())

	case reflect.Ptr:
		if rv.IsNil() {
			return sink.Accept(Null())
		}
		if err := sink.Accept(Some()); err != nil {
			return err
		}
		return encodeValue(sink, rv.Elem())

	case reflect.Bool:
		return sink.Accept(Bool(rv.Bool()))

	case reflect.Int8:
		return sink.Accept(I8(int8(rv.Int())))
	case reflect.Int16:
		return sink.Accept(I16(int16(rv.Int())))
	case reflect.Int32:
		return sink.Accept(I32(int32(rv.Int())))
	case reflect.Int, reflect.Int64:
		return sink.Accept(I64(rv.Int()))

	case reflect.Uint8:
		return sink.Accept(U8(uint8(rv.Uint())))
	case reflect.Uint16:
		return sink.Accept(U16(uint16(rv.Uint())))
	case reflect.Uint32:
		return sink.Accept(U32(uint32(rv.Uint())))
	case reflect.Uint, reflect.Uint64:
		return sink.Accept(U64(rv.Uint()))

	case reflect.Float32:
		return sink.Accept(F32(float32(rv.Float())))
	case reflect.Float64:
		return sink.Accept(F64(rv.Float()))

	case reflect.String:
		return sink.Accept(Str(rv.String()))

	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			if rv.Kind() == reflect.Array {
				if !rv.CanAddr() {
					tmp := reflect.New(rv.Type()).Elem()
					tmp.Set(rv)
					rv = tmp
				}
				rv = rv.Slice(0, rv.Len())
			}
			return sink.Accept(BytesOf(rv.Bytes()))
		}
		return encodeSequence(sink, rv)

	case reflect.Struct:
		if rv.Type() == timeType {
			t := rv.Interface().(time.Time)
			return sink.Accept(Str(t.Format(time.RFC3339Nano)))
		}
		return encodeStruct(sink, rv)

	case reflect.Map:
		return encodeMap(sink, rv)

	default:
		return errors.Newf(errors.ErrorTypeValidation,
			"cannot encode Go kind %s", rv.Kind())
	}
}

func encodeSequence(sink Sink, rv reflect.Value) error {
	if err := sink.Accept(StartSequence()); err != nil {
		return err
	}
	for i := 0; i < rv.Len(); i++ {
		if err := sink.Accept(Item()); err != nil {
			return err
		}
		if err := encodeValue(sink, rv.Index(i)); err != nil {
			return err
		}
	}
	return sink.Accept(EndSequence())
}

func encodeStruct(sink Sink, rv reflect.Value) error {
	if err := sink.Accept(StartStruct()); err != nil {
		return err
	}
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		name, skip := structFieldName(sf)
		if skip {
			continue
		}
		if err := sink.Accept(FieldName(name)); err != nil {
			return err
		}
		if err := encodeValue(sink, rv.Field(i)); err != nil {
			return err
		}
	}
	return sink.Accept(EndStruct())
}

func encodeMap(sink Sink, rv reflect.Value) error {
	if err := sink.Accept(StartMap()); err != nil {
		return err
	}

	keys := rv.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return compareMapKeys(keys[i], keys[j])
	})

	for _, key := range keys {
		if err := encodeValue(sink, key); err != nil {
			return err
		}
		if err := encodeValue(sink, rv.MapIndex(key)); err != nil {
			return err
		}
	}
	return sink.Accept(EndMap())
}

func compareMapKeys(a, b reflect.Value) bool {
	switch a.Kind() {
	case reflect.String:
		return a.String() < b.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return a.Int() < b.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return a.Uint() < b.Uint()
	case reflect.Float32, reflect.Float64:
		return a.Float() < b.Float()
	default:
		return false
	}
}

// structFieldName resolves the column name of a struct field, honoring the
// json tag the way the rest of the ecosystem does.
func structFieldName(sf reflect.StructField) (name string, skip bool) {
	if sf.PkgPath != "" { // unexported
		return "", true
	}
	tag := sf.Tag.Get("json")
	if tag == "-" {
		return "", true
	}
	if tag != "" {
		if idx := indexComma(tag); idx >= 0 {
			tag = tag[:idx]
		}
		if tag != "" {
			return tag, false
		}
	}
	return sf.Name, false
}

func indexComma(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			return i
		}
	}
	return -1
}
