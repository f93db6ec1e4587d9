package model

import "github.com/l00pss/rediwire"

// Entry is one stream entry's field/value pairs, as returned inline in an
// XREAD/XAUTOCLAIM reply: a flat RESP array of interleaved field,
// value bulk strings.
type Entry map[string][]byte

// Entries maps a stream Id to the Entry recorded at that Id, following
// original_source/src/model/stream/read.rs's Entries(HashMap<Id, Entry>).
// On the wire this is an array of [id, entry] 2-element tuples, not a flat
// interleaved array (see util.rs's tuple_map), because an Id is the key
// rather than a bulk string.
type Entries map[Id]Entry

// ReadResponse is the reply shape for XREAD/XREADGROUP: a map from stream
// key to the Entries read from that stream, wire-encoded the same
// tuple-array way as Entries.
type ReadResponse map[string]Entries

// AutoclaimResponse is the reply shape for XAUTOCLAIM: the cursor Id to
// pass to the next call, the Entries claimed, and (Redis >= 7.0) the Ids
// that were removed from the pending-entries list because they no longer
// exist. Grounded on original_source/src/model/stream/claim.rs's
// AutoclaimResponse(Id, Entries, Vec<Id>) tuple struct, a 2-or-3-arity
// RESP array depending on server version.
type AutoclaimResponse struct {
	NextID  Id
	Claimed Entries
	Deleted []Id
}

// ParseEntry decodes a flat field/value RESP array into an Entry.
func ParseEntry(d rediwire.Data) (Entry, error) {
	if d.Kind != rediwire.KindArray {
		return nil, rediwire.MappingError("stream entry must be an array")
	}
	if len(d.Array)%2 != 0 {
		return nil, rediwire.MappingError("stream entry array must have even length")
	}
	entry := make(Entry, len(d.Array)/2)
	for i := 0; i < len(d.Array); i += 2 {
		field, err := bulkOrSimpleBytes(d.Array[i])
		if err != nil {
			return nil, err
		}
		value, err := bulkOrSimpleBytes(d.Array[i+1])
		if err != nil {
			return nil, err
		}
		entry[string(field)] = value
	}
	return entry, nil
}

// ParseEntries decodes an array of [id, entry] tuples into Entries.
func ParseEntries(d rediwire.Data) (Entries, error) {
	if d.Kind != rediwire.KindArray {
		return nil, rediwire.MappingError("stream entries must be an array")
	}
	entries := make(Entries, len(d.Array))
	for _, tuple := range d.Array {
		if tuple.Kind != rediwire.KindArray || len(tuple.Array) != 2 {
			return nil, rediwire.MappingError("stream entries element must be a [id, entry] pair")
		}
		id, err := IdFromData(tuple.Array[0])
		if err != nil {
			return nil, err
		}
		entry, err := ParseEntry(tuple.Array[1])
		if err != nil {
			return nil, err
		}
		entries[id] = entry
	}
	return entries, nil
}

// ParseReadResponse decodes the top-level XREAD/XREADGROUP reply: an array
// of [key, entries] tuples (or the null array when no data was available
// and the caller didn't block).
func ParseReadResponse(d rediwire.Data) (ReadResponse, error) {
	if d.IsNull() {
		return ReadResponse{}, nil
	}
	if d.Kind != rediwire.KindArray {
		return nil, rediwire.MappingError("stream read response must be an array")
	}
	resp := make(ReadResponse, len(d.Array))
	for _, tuple := range d.Array {
		if tuple.Kind != rediwire.KindArray || len(tuple.Array) != 2 {
			return nil, rediwire.MappingError("stream read response element must be a [key, entries] pair")
		}
		key, err := bulkOrSimpleBytes(tuple.Array[0])
		if err != nil {
			return nil, err
		}
		entries, err := ParseEntries(tuple.Array[1])
		if err != nil {
			return nil, err
		}
		resp[string(key)] = entries
	}
	return resp, nil
}

// ParseAutoclaimResponse decodes an XAUTOCLAIM reply. Redis < 7.0 replies
// with a 2-element array (no deleted-ids element); this module treats a
// missing third element the same as an empty one, matching the original
// crate's #[serde(default)] on that field.
func ParseAutoclaimResponse(d rediwire.Data) (AutoclaimResponse, error) {
	if d.Kind != rediwire.KindArray || (len(d.Array) != 2 && len(d.Array) != 3) {
		return AutoclaimResponse{}, rediwire.MappingError("autoclaim response must be a 2- or 3-element array")
	}
	nextID, err := IdFromData(d.Array[0])
	if err != nil {
		return AutoclaimResponse{}, err
	}
	claimed, err := ParseEntries(d.Array[1])
	if err != nil {
		return AutoclaimResponse{}, err
	}
	resp := AutoclaimResponse{NextID: nextID, Claimed: claimed}
	if len(d.Array) == 3 {
		deletedArr := d.Array[2]
		if deletedArr.Kind != rediwire.KindArray {
			return AutoclaimResponse{}, rediwire.MappingError("autoclaim deleted-ids element must be an array")
		}
		resp.Deleted = make([]Id, len(deletedArr.Array))
		for i, idData := range deletedArr.Array {
			id, err := IdFromData(idData)
			if err != nil {
				return AutoclaimResponse{}, err
			}
			resp.Deleted[i] = id
		}
	}
	return resp, nil
}

// bulkOrSimpleBytes also accepts KindNull, yielding a nil result: a bare
// UNSUBSCRIBE/PUNSUBSCRIBE issued with no subscriptions of that kind to
// leave replies with a null name (e.g. "*3\r\n$12\r\npunsubscribe\r\n
// $-1\r\n:0\r\n"), and this helper is shared by that pubsub envelope
// parsing as well as the stream-model parsing above.
func bulkOrSimpleBytes(d rediwire.Data) ([]byte, error) {
	switch d.Kind {
	case rediwire.KindBulkString:
		return d.Bulk, nil
	case rediwire.KindSimpleString:
		return []byte(d.Str), nil
	case rediwire.KindNull:
		return nil, nil
	default:
		return nil, rediwire.MappingError("expected a string")
	}
}
