package rediwire

import (
	"io"
	"math"
	"reflect"
	"strconv"
)

// Serializer writes Data values to a byte sink using RESP2 framing. It
// carries no state between calls — encoding, like parsing, is a pure
// function of its input (spec §9, "the parser and serializer themselves
// never suspend").
type Serializer struct{}

// Write encodes d to w following the table in spec §4.2. Null always
// encodes as the null bulk string ($-1\r\n); command construction never
// produces a null array on the wire (see the Open Question note in
// SPEC_FULL.md §9), so there is no array-null toggle on this path.
func (Serializer) Write(w io.Writer, d Data) error {
	switch d.Kind {
	case KindSimpleString:
		_, err := io.WriteString(w, "+"+d.Str+"\r\n")
		return ioSerErr(err)
	case KindInteger:
		_, err := io.WriteString(w, ":"+strconv.FormatInt(d.Int, 10)+"\r\n")
		return ioSerErr(err)
	case KindBulkString:
		if _, err := io.WriteString(w, "$"+strconv.Itoa(len(d.Bulk))+"\r\n"); err != nil {
			return ioSerErr(err)
		}
		if _, err := w.Write(d.Bulk); err != nil {
			return ioSerErr(err)
		}
		_, err := io.WriteString(w, "\r\n")
		return ioSerErr(err)
	case KindArray:
		if _, err := io.WriteString(w, "*"+strconv.Itoa(len(d.Array))+"\r\n"); err != nil {
			return ioSerErr(err)
		}
		for _, child := range d.Array {
			if err := (Serializer{}).Write(w, child); err != nil {
				return err
			}
		}
		return nil
	case KindNull:
		_, err := io.WriteString(w, "$-1\r\n")
		return ioSerErr(err)
	default:
		return SerializationError("unknown Data kind")
	}
}

// WriteArrayNull writes the array-typed null encoding (*-1\r\n) rather
// than the default null-bulk encoding. Exposed only for tests that need to
// exercise both null encodings on the wire; no command-construction path
// in this module produces it (spec §9 Open Question).
func (Serializer) WriteArrayNull(w io.Writer) error {
	_, err := io.WriteString(w, "*-1\r\n")
	return ioSerErr(err)
}

func ioSerErr(err error) error {
	if err == nil {
		return nil
	}
	return wrapError(KindSerialization, "write failed", err)
}

// ToData maps an arbitrary Go value onto the Data tree, following spec
// §4.2's mapping table. It is the encoding half of the typed-mapping
// surface; the decoding half lives in deserializer.go and is backed by
// mapstructure, but ToData is deliberately hand-written reflection since
// it only needs to go one direction and the table is small.
func ToData(v any) (Data, error) {
	if d, ok := v.(Data); ok {
		return d, nil
	}

	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return Null, nil
	}

	switch rv.Kind() {
	case reflect.String:
		return BulkStringFromString(rv.String()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Integer(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return Data{}, SerializationError("uint64 overflows i64")
		}
		return Integer(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		return SimpleString(strconv.FormatFloat(rv.Float(), 'g', -1, 64)), nil
	case reflect.Bool:
		return SimpleString(strconv.FormatBool(rv.Bool())), nil
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return BulkString(rv.Bytes()), nil
		}
		return toDataSeq(rv)
	case reflect.Map:
		return toDataMap(rv)
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return Null, nil
		}
		return ToData(rv.Elem().Interface())
	default:
		return Data{}, SerializationError("unsupported type " + rv.Type().String())
	}
}

func toDataSeq(rv reflect.Value) (Data, error) {
	arr := make([]Data, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		d, err := ToData(rv.Index(i).Interface())
		if err != nil {
			return Data{}, err
		}
		arr[i] = d
	}
	return Data{Kind: KindArray, Array: arr}, nil
}

// toDataMap flattens a map into an Array of interleaved key, value pairs
// per spec §4.2.
func toDataMap(rv reflect.Value) (Data, error) {
	arr := make([]Data, 0, rv.Len()*2)
	iter := rv.MapRange()
	for iter.Next() {
		k, err := ToData(iter.Key().Interface())
		if err != nil {
			return Data{}, err
		}
		v, err := ToData(iter.Value().Interface())
		if err != nil {
			return Data{}, err
		}
		arr = append(arr, k, v)
	}
	return Data{Kind: KindArray, Array: arr}, nil
}

// TaggedVariant builds the 2-element (name, payload) array RESP convention
// used for tagged unions on the wire (spec §4.2).
func TaggedVariant(name string, payload any) (Data, error) {
	p, err := ToData(payload)
	if err != nil {
		return Data{}, err
	}
	return Arr(BulkStringFromString(name), p), nil
}
