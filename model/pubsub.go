package model

import (
	"github.com/l00pss/rediwire"
	"github.com/spf13/cast"
)

// Subscription reports the effect of a (p)(un)subscribe, grounded on
// original_source/src/model/pubsub.rs's Subscription{name, count}.
type Subscription struct {
	Name  []byte
	Count int64
}

// IsInPubsubMode reports whether the connection still has at least one
// active subscription; when false it can be returned to normal command
// use.
func (s Subscription) IsInPubsubMode() bool { return s.Count > 0 }

// Message is a published payload delivered to a subscriber. Pattern is
// set only when it arrived via a pattern subscription (pmessage).
type Message struct {
	Pattern []byte
	Channel []byte
	Data    []byte
}

// ResponseKind tags which pubsub envelope variant a Response holds, the Go
// stand-in for the original crate's Response enum discriminant.
type ResponseKind int

const (
	ResponseSubscribe ResponseKind = iota
	ResponseUnsubscribe
	ResponseMessage
)

// Response is the tagged union every reply takes once a connection has
// entered pubsub mode, dispatched on the first array element's text
// ("subscribe", "psubscribe", "unsubscribe", "punsubscribe", "message",
// "pmessage").
type Response struct {
	Kind         ResponseKind
	Subscription Subscription
	Message      Message
}

// ParseResponse decodes one pubsub envelope per the dispatch table in
// original_source/src/model/pubsub.rs's manual Deserialize impl.
func ParseResponse(d rediwire.Data) (Response, error) {
	if d.Kind != rediwire.KindArray || len(d.Array) < 3 {
		return Response{}, rediwire.MappingError("pubsub response must be an array of at least 3 elements")
	}
	tagBytes, err := bulkOrSimpleBytes(d.Array[0])
	if err != nil {
		return Response{}, err
	}
	// the tag is textual in every case redis sends it, but arrives as raw
	// bytes off the wire; cast gives us the loose coercion spec §9 asks
	// for at the typed-mapping layer rather than a bare string(...) cast.
	tag, err := cast.ToStringE(tagBytes)
	if err != nil {
		return Response{}, rediwire.MappingError("pubsub envelope tag is not textual")
	}

	switch tag {
	case "subscribe", "psubscribe":
		sub, err := parseSubscription(d.Array)
		if err != nil {
			return Response{}, err
		}
		return Response{Kind: ResponseSubscribe, Subscription: sub}, nil
	case "unsubscribe", "punsubscribe":
		sub, err := parseSubscription(d.Array)
		if err != nil {
			return Response{}, err
		}
		return Response{Kind: ResponseUnsubscribe, Subscription: sub}, nil
	case "message":
		if len(d.Array) != 3 {
			return Response{}, rediwire.MappingError("message envelope must have 3 elements")
		}
		channel, err := bulkOrSimpleBytes(d.Array[1])
		if err != nil {
			return Response{}, err
		}
		payload, err := bulkOrSimpleBytes(d.Array[2])
		if err != nil {
			return Response{}, err
		}
		return Response{Kind: ResponseMessage, Message: Message{Channel: channel, Data: payload}}, nil
	case "pmessage":
		if len(d.Array) != 4 {
			return Response{}, rediwire.MappingError("pmessage envelope must have 4 elements")
		}
		pattern, err := bulkOrSimpleBytes(d.Array[1])
		if err != nil {
			return Response{}, err
		}
		channel, err := bulkOrSimpleBytes(d.Array[2])
		if err != nil {
			return Response{}, err
		}
		payload, err := bulkOrSimpleBytes(d.Array[3])
		if err != nil {
			return Response{}, err
		}
		return Response{Kind: ResponseMessage, Message: Message{Pattern: pattern, Channel: channel, Data: payload}}, nil
	default:
		return Response{}, rediwire.MappingError("unrecognized pubsub envelope tag " + tag)
	}
}

func parseSubscription(arr []rediwire.Data) (Subscription, error) {
	if len(arr) != 3 {
		return Subscription{}, rediwire.MappingError("(un)subscribe envelope must have 3 elements")
	}
	name, err := bulkOrSimpleBytes(arr[1])
	if err != nil {
		return Subscription{}, err
	}
	if arr[2].Kind != rediwire.KindInteger {
		return Subscription{}, rediwire.MappingError("(un)subscribe count must be an integer")
	}
	return Subscription{Name: name, Count: arr[2].Int}, nil
}
