package render

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/annel0/voxel-engine/internal/mesher"
	"github.com/annel0/voxel-engine/internal/vec"
)

// maxFrameSize ограничивает размер одного кадра при чтении
const maxFrameSize = 64 << 20

// RecorderStats счетчики записанных кадров
type RecorderStats struct {
	Uploads  uint64
	Releases uint64
	Bytes    uint64
}

// Recorder реализует Sink, записывая пакеты в поток кадрами
// [длина uint32 LE][сжатый пакет]
type Recorder struct {
	mu    sync.Mutex
	w     io.Writer
	codec *Codec
	stats RecorderStats
}

// NewRecorder создаёт записывающий sink
func NewRecorder(w io.Writer, codec *Codec) *Recorder {
	return &Recorder{w: w, codec: codec}
}

// Upload записывает пакет загрузки меша
func (r *Recorder) Upload(key vec.ChunkKey, coord vec.Vec3, mesh *mesher.Mesh) error {
	p := MeshPacket{Kind: PacketUpload, Key: key, Coord: coord}
	if mesh != nil {
		p.Dims = mesh.Dims
		p.Quads = mesh.Quads
	}
	if err := r.write(p); err != nil {
		return err
	}
	r.mu.Lock()
	r.stats.Uploads++
	r.mu.Unlock()
	return nil
}

// Release записывает пакет освобождения
func (r *Recorder) Release(key vec.ChunkKey) error {
	if err := r.write(MeshPacket{Kind: PacketRelease, Key: key, Coord: key.Unpack()}); err != nil {
		return err
	}
	r.mu.Lock()
	r.stats.Releases++
	r.mu.Unlock()
	return nil
}

// Stats возвращает копию счетчиков
func (r *Recorder) Stats() RecorderStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *Recorder) write(p MeshPacket) error {
	data, err := r.codec.Encode(p)
	if err != nil {
		return fmt.Errorf("failed to encode mesh packet: %w", err)
	}

	frame := make([]byte, 4, 4+len(data))
	binary.LittleEndian.PutUint32(frame, uint32(len(data)))
	frame = append(frame, data...)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.w.Write(frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	r.stats.Bytes += uint64(len(frame))
	return nil
}

// ReadPackets читает все кадры из потока до EOF
func ReadPackets(r io.Reader, codec *Codec) ([]MeshPacket, error) {
	var packets []MeshPacket
	sizeBuf := make([]byte, 4)
	for {
		if _, err := io.ReadFull(r, sizeBuf); err != nil {
			if errors.Is(err, io.EOF) {
				return packets, nil
			}
			return packets, fmt.Errorf("failed to read frame size: %w", err)
		}

		size := binary.LittleEndian.Uint32(sizeBuf)
		if size > maxFrameSize {
			return packets, fmt.Errorf("frame too large: %d bytes", size)
		}
		data := make([]byte, size)
		if _, err := io.ReadFull(r, data); err != nil {
			return packets, fmt.Errorf("failed to read frame: %w", err)
		}

		p, err := codec.Decode(data)
		if err != nil {
			return packets, err
		}
		packets = append(packets, p)
	}
}
