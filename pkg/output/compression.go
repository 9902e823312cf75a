package output

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Compression names accepted in the configuration
const (
	CompressionNone = "none"
	CompressionZstd = "zstd"

	zstdExtension = ".zst"
)

// Compressor handles zstd table compression
type Compressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCompressor creates a new compressor
func NewCompressor() (*Compressor, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	return &Compressor{encoder: encoder, decoder: decoder}, nil
}

// Compress compresses data using zstd
func (c *Compressor) Compress(data []byte) []byte {
	return c.encoder.EncodeAll(data, make([]byte, 0, len(data)/4))
}

// Decompress decompresses zstd data
func (c *Compressor) Decompress(data []byte) ([]byte, error) {
	return c.decoder.DecodeAll(data, nil)
}

// Extension is the suffix added to compressed file names
func (c *Compressor) Extension() string {
	return zstdExtension
}

// Close closes the compressor
func (c *Compressor) Close() error {
	c.encoder.Close()
	c.decoder.Close()
	return nil
}
