// Package codec centralizes document and snapshot encoding.
//
// Docgo intentionally treats codec selection as a breaking-change boundary:
// if you change codecs, persisted bytes created by older codecs may no longer
// decode. Persisted formats (snapshots, WAL) store the codec name in their
// header so the right codec can be selected on open.
package codec

import "fmt"

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	case "zstd+json":
		return Zstd{Inner: JSON{}}, true
	case "zstd+go-json":
		return Zstd{Inner: GoJSON{}}, true
	case "lz4+json":
		return LZ4{Inner: JSON{}}, true
	case "lz4+go-json":
		return LZ4{Inner: GoJSON{}}, true
	default:
		return nil, false
	}
}

// Default is the default codec used by the library.
//
// NOTE: This affects newly-created snapshots/WALs. Existing persisted files
// are self-describing and are opened by selecting the codec by name.
var Default Codec = GoJSON{}

// MustMarshal is a helper for internal tests/benchmarks.
func MustMarshal(c Codec, v any) []byte {
	if c == nil {
		c = Default
	}
	b, err := c.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("codec %s marshal failed: %w", c.Name(), err))
	}
	return b
}
