package codec

import (
	"encoding/json"
)

// JSON is the standard-library JSON codec.
//
// Notes:
//   - Documents are map-like structures, for which JSON is stable and portable.
//   - Numbers decode as float64; the query layer coerces accordingly.
//
// If you need custom encoding (e.g. protobuf/msgpack), implement Codec and set
// it on the database, WAL, or snapshots where supported.
type JSON struct{}

// Marshal encodes the value to JSON.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes the JSON data into v.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns the unique name of the codec ("json").
func (JSON) Name() string { return "json" }
