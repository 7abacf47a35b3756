package index

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Order-preserving key encoding.
//
// Every encoded value starts with a type tag so values of different types
// collate in a stable order (nil < bool < number < string). Numbers are
// encoded as sign-flipped IEEE 754 bits, which makes byte order equal to
// numeric order. Composite secondary keys append a 0x00 terminator and the
// document identifier, so equal values stay grouped and tie-break by id.

const (
	tagNil    byte = 0x01
	tagFalse  byte = 0x02
	tagTrue   byte = 0x03
	tagNumber byte = 0x10
	tagString byte = 0x20
)

// compositeSep terminates the value part of a secondary key.
// Values containing the zero byte do not collate correctly; document field
// values are JSON strings and numbers in practice.
const compositeSep byte = 0x00

// EncodeValue encodes a document field value into an order-preserving key.
func EncodeValue(v any) Key {
	switch t := v.(type) {
	case nil:
		return Key{tagNil}
	case bool:
		if t {
			return Key{tagTrue}
		}
		return Key{tagFalse}
	case string:
		k := make(Key, 0, len(t)+1)
		k = append(k, tagString)
		return append(k, t...)
	default:
		if f, ok := toFloat(v); ok {
			if f == 0 {
				f = 0 // -0 and +0 must share one key
			}
			bits := math.Float64bits(f)
			if f >= 0 {
				bits ^= 1 << 63
			} else {
				bits = ^bits
			}
			k := make(Key, 9)
			k[0] = tagNumber
			binary.BigEndian.PutUint64(k[1:], bits)
			return k
		}
		// Last resort: stringly ordering. Keeps the tree total.
		s := fmt.Sprintf("%v", v)
		k := make(Key, 0, len(s)+1)
		k = append(k, tagString)
		return append(k, s...)
	}
}

// compositeKey builds a secondary tree key from an encoded value and an id.
func compositeKey(value Key, id string) Key {
	k := make(Key, 0, len(value)+1+len(id))
	k = append(k, value...)
	k = append(k, compositeSep)
	return append(k, id...)
}

// compositeLowerBound is the smallest composite key for the encoded value.
func compositeLowerBound(value Key) Key {
	k := make(Key, 0, len(value)+1)
	k = append(k, value...)
	return append(k, compositeSep)
}

// compositeUpperBound is the smallest composite key beyond the encoded value.
func compositeUpperBound(value Key) Key {
	k := make(Key, 0, len(value)+1)
	k = append(k, value...)
	return append(k, compositeSep+1)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
