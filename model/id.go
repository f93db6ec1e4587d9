// Package model holds the typed response shapes layered on top of the
// generic rediwire.Data tree: stream entry IDs, XREAD/XAUTOCLAIM
// responses, and the pubsub envelope. These are the four shapes spec §5
// calls out as in-scope despite the module otherwise leaving higher-level
// domain modeling to the caller.
package model

import (
	"strconv"
	"strings"

	"github.com/l00pss/rediwire"
)

// Id is a stream entry ID: a millisecond timestamp paired with a sequence
// number, grounded on original_source/src/model/stream.rs's Id(u64, u64)
// tuple struct.
type Id struct {
	Ms  uint64
	Seq uint64
}

// String renders the canonical "<ms>-<seq>" textual form.
func (id Id) String() string {
	return strconv.FormatUint(id.Ms, 10) + "-" + strconv.FormatUint(id.Seq, 10)
}

// ParseID parses the canonical "<ms>-<seq>" textual form.
func ParseID(s string) (Id, error) {
	ms, seq, ok := strings.Cut(s, "-")
	if !ok {
		return Id{}, rediwire.MappingError("stream id missing '-' separator")
	}
	msVal, err := strconv.ParseUint(ms, 10, 64)
	if err != nil {
		return Id{}, rediwire.MappingError("stream id: bad millisecond part: " + err.Error())
	}
	seqVal, err := strconv.ParseUint(seq, 10, 64)
	if err != nil {
		return Id{}, rediwire.MappingError("stream id: bad sequence part: " + err.Error())
	}
	return Id{Ms: msVal, Seq: seqVal}, nil
}

// IdFromData builds an Id from a parsed Data, accepting a SimpleString or a
// BulkString as Redis may use either depending on the command.
func IdFromData(d rediwire.Data) (Id, error) {
	switch d.Kind {
	case rediwire.KindSimpleString:
		return ParseID(d.Str)
	case rediwire.KindBulkString:
		if d.IsNull() {
			return Id{}, rediwire.MappingError("expected stream id, got null")
		}
		return ParseID(string(d.Bulk))
	default:
		return Id{}, rediwire.MappingError("expected stream id as a string")
	}
}
