package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

// LZ4 wraps another codec and compresses its output with LZ4 frames.
//
// LZ4 trades compression ratio for speed. Prefer Zstd when snapshot size
// matters more than encode latency.
type LZ4 struct {
	Inner Codec
}

func (l LZ4) inner() Codec {
	if l.Inner == nil {
		return Default
	}
	return l.Inner
}

// Marshal encodes the value with the inner codec and compresses the result.
func (l LZ4) Marshal(v any) ([]byte, error) {
	b, err := l.inner().Marshal(v)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(b); err != nil {
		return nil, fmt.Errorf("codec: lz4 compress failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("codec: lz4 compress failed: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decompresses the data and decodes it with the inner codec.
func (l LZ4) Unmarshal(data []byte, v any) error {
	b, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
	if err != nil {
		return fmt.Errorf("codec: lz4 decompress failed: %w", err)
	}
	return l.inner().Unmarshal(b, v)
}

// Name returns the unique name of the codec.
func (l LZ4) Name() string { return "lz4+" + l.inner().Name() }
