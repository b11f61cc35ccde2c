package render

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Codec сериализует пакеты мешей и сжимает их zstd
type Codec struct {
	compressor   *zstd.Encoder
	decompressor *zstd.Decoder
}

// NewCodec создаёт кодек с заданным уровнем сжатия
func NewCodec(level zstd.EncoderLevel) (*Codec, error) {
	compressor, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decompressor, err := zstd.NewReader(nil)
	if err != nil {
		compressor.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &Codec{compressor: compressor, decompressor: decompressor}, nil
}

// Encode сериализует и сжимает пакет
func (c *Codec) Encode(p MeshPacket) ([]byte, error) {
	raw, err := p.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return c.compressor.EncodeAll(raw, nil), nil
}

// Decode распаковывает и разбирает пакет
func (c *Codec) Decode(data []byte) (MeshPacket, error) {
	var p MeshPacket
	raw, err := c.decompressor.DecodeAll(data, nil)
	if err != nil {
		return p, fmt.Errorf("decompression failed: %w", err)
	}
	if err := p.UnmarshalBinary(raw); err != nil {
		return p, err
	}
	return p, nil
}

// Close освобождает ресурсы zstd
func (c *Codec) Close() {
	c.compressor.Close()
	c.decompressor.Close()
}
