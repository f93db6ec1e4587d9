package rediwire

import (
	"bytes"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// Deserializer drives the Parser over an in-memory buffer and exposes the
// typed-mapping surface spec §4.3 calls for. It is a thinner, value-based
// cousin of Codec: Codec is for a live Connection's incrementally-filled
// buffer, Deserializer is for decoding a complete (or complete-enough)
// byte slice in one shot, e.g. in tests or when mapping a Connection
// response that's already been read as a Data into a user struct.
type Deserializer struct {
	input []byte
	depth int
}

// NewDeserializer wraps input for incremental decoding. depth bounds array
// nesting; zero means DefaultMaxDepth.
func NewDeserializer(input []byte, depth int) *Deserializer {
	if depth <= 0 {
		depth = DefaultMaxDepth
	}
	return &Deserializer{input: input, depth: depth}
}

// Remaining returns the bytes not yet consumed.
func (d *Deserializer) Remaining() []byte { return d.input }

// Decode parses exactly one frame, advancing past it. A server "-" reply
// surfaces here as a *Error{Kind: KindRedis}, never as a Data value (spec
// §4.3: "the deserializer consumes it and fails with Redis(message)").
func (d *Deserializer) Decode() (Data, error) {
	value, consumed, err := ParseFrame(d.input, d.depth)
	if err != nil {
		return Data{}, err
	}
	d.input = d.input[consumed:]
	return value, nil
}

// DecodeOption implements spec §4.3's deserialize_option: it peeks for the
// exact 5-byte null-bulk or null-array sequence and consumes it as "none"
// without touching v; otherwise it decodes into v and reports "some".
func (d *Deserializer) DecodeOption(v any) (present bool, err error) {
	if bytes.HasPrefix(d.input, []byte("*-1\r\n")) || bytes.HasPrefix(d.input, []byte("$-1\r\n")) {
		d.input = d.input[5:]
		return false, nil
	}
	if err := d.DecodeInto(v); err != nil {
		return false, err
	}
	return true, nil
}

// DecodeInto decodes one frame and maps it onto v. Scalars map directly;
// an Array maps to a slice when v is slice-shaped, or is interpreted as
// interleaved key,value pairs (spec §4.3's deserialize_map/deserialize_
// struct, which are identical) when v is map- or struct-shaped.
func (d *Deserializer) DecodeInto(v any) error {
	value, err := d.Decode()
	if err != nil {
		return err
	}
	return decodeDataInto(value, v)
}

// DecodeTuple decodes one frame, requiring it to be an Array of exactly
// arity elements (spec §4.3: "Tuple deserialization requires the array
// length to exactly match the tuple arity; mismatch is a fatal mapping
// error"), and maps its elements positionally onto v, which must be a
// pointer to a slice or array.
func (d *Deserializer) DecodeTuple(v any, arity int) error {
	value, err := d.Decode()
	if err != nil {
		return err
	}
	if value.Kind != KindArray || len(value.Array) != arity {
		return MappingError("tuple arity mismatch")
	}
	return decodeDataInto(value, v)
}

// decodeDataInto is the shared generic-tree bridge: it converts a Data
// tree into plain Go values (string/int64/[]byte/[]any/map[string]any/
// nil) and hands the result to mapstructure, which is the concrete
// "data-class <-> user-struct mapping" mechanism this module picks for
// the otherwise-unspecified serde bridge (spec §1 OUT OF SCOPE, SPEC_FULL
// §4.3).
func decodeDataInto(value Data, v any) error {
	generic := toGeneric(value)

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		target := rv.Elem()
		if (target.Kind() == reflect.Map || target.Kind() == reflect.Struct) && value.Kind == KindArray {
			m, err := pairsToMap(value.Array)
			if err != nil {
				return err
			}
			generic = m
		}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           v,
		WeaklyTypedInput: true,
		DecodeHook:       decodeHook,
	})
	if err != nil {
		return MappingError(err.Error())
	}
	if err := decoder.Decode(generic); err != nil {
		return MappingError(err.Error())
	}
	return nil
}

func toGeneric(d Data) any {
	switch d.Kind {
	case KindSimpleString:
		return d.Str
	case KindInteger:
		return d.Int
	case KindBulkString:
		return append([]byte(nil), d.Bulk...)
	case KindArray:
		out := make([]any, len(d.Array))
		for i, child := range d.Array {
			out[i] = toGeneric(child)
		}
		return out
	case KindNull:
		return nil
	default:
		return nil
	}
}

// pairsToMap interprets an even-length array as interleaved key/value
// pairs, the flattened-map wire shape spec §4.2/§4.3 use for both request-
// side maps and response-side structs/maps.
func pairsToMap(arr []Data) (map[string]any, error) {
	if len(arr)%2 != 0 {
		return nil, MappingError("map/struct array must have even length")
	}
	m := make(map[string]any, len(arr)/2)
	for i := 0; i < len(arr); i += 2 {
		key, err := dataKeyString(arr[i])
		if err != nil {
			return nil, err
		}
		m[key] = toGeneric(arr[i+1])
	}
	return m, nil
}

func dataKeyString(d Data) (string, error) {
	switch d.Kind {
	case KindSimpleString:
		return d.Str, nil
	case KindBulkString:
		return string(d.Bulk), nil
	default:
		return "", MappingError("map key must be a string")
	}
}

// decodeHook lets []byte values flow into string-typed fields without the
// caller needing a manual conversion step (the string -> []byte direction
// is covered by WeaklyTypedInput). This is the only custom hook the core
// ships; there is no hook for model.Id, which the model package parses
// itself via ParseID/IdFromData, and everything else is a plain
// scalar/slice/map shape mapstructure already understands with
// WeaklyTypedInput set.
func decodeHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() == reflect.Slice && from.Elem().Kind() == reflect.Uint8 && to.Kind() == reflect.String {
		return string(data.([]byte)), nil
	}
	return data, nil
}
