package render

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/annel0/voxel-engine/internal/mesher"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/voxel"
)

// PacketKind тип пакета меша
type PacketKind uint8

const (
	PacketUpload  PacketKind = 1
	PacketRelease PacketKind = 2
)

// ErrMalformedPacket пакет не удаётся разобрать
var ErrMalformedPacket = errors.New("malformed mesh packet")

// MeshPacket команда рендереру: загрузить меш чанка или освободить его
type MeshPacket struct {
	Kind  PacketKind
	Key   vec.ChunkKey
	Coord vec.Vec3
	Dims  [3]int
	Quads []mesher.Quad
}

const (
	packetMagic  = 0x314d5856 // "VXM1"
	headerSize   = 4 + 1 + 8 + 3*4 + 3*2 + 4
	quadWireSize = 3*4 + 2 + 2 + 1 + 1 + 2
)

// MarshalBinary сериализует пакет в little-endian формат:
// заголовок, затем квады (угол, ширина, высота, ось, знак, материал).
func (p MeshPacket) MarshalBinary() ([]byte, error) {
	buf := make([]byte, headerSize, headerSize+len(p.Quads)*quadWireSize)
	binary.LittleEndian.PutUint32(buf[0:], packetMagic)
	buf[4] = byte(p.Kind)
	binary.LittleEndian.PutUint64(buf[5:], uint64(p.Key))
	putInt32(buf[13:], p.Coord.X)
	putInt32(buf[17:], p.Coord.Y)
	putInt32(buf[21:], p.Coord.Z)
	for i := 0; i < 3; i++ {
		if p.Dims[i] < 0 || p.Dims[i] > math.MaxUint16 {
			return nil, fmt.Errorf("размер %v не помещается в пакет", p.Dims)
		}
		binary.LittleEndian.PutUint16(buf[25+2*i:], uint16(p.Dims[i]))
	}
	binary.LittleEndian.PutUint32(buf[31:], uint32(len(p.Quads)))

	var q [quadWireSize]byte
	for _, quad := range p.Quads {
		w, h := quad.Width(), quad.Height()
		if w <= 0 || h <= 0 || w > math.MaxUint16 || h > math.MaxUint16 || quad.Axis < 0 || quad.Axis > 2 {
			return nil, fmt.Errorf("некорректный квад %+v", quad)
		}
		putInt32(q[0:], quad.Origin[0])
		putInt32(q[4:], quad.Origin[1])
		putInt32(q[8:], quad.Origin[2])
		binary.LittleEndian.PutUint16(q[12:], uint16(w))
		binary.LittleEndian.PutUint16(q[14:], uint16(h))
		q[16] = byte(quad.Axis)
		q[17] = 0
		if quad.Positive {
			q[17] = 1
		}
		binary.LittleEndian.PutUint16(q[18:], uint16(quad.Material))
		buf = append(buf, q[:]...)
	}
	return buf, nil
}

// UnmarshalBinary разбирает пакет, записанный MarshalBinary
func (p *MeshPacket) UnmarshalBinary(data []byte) error {
	if len(data) < headerSize {
		return fmt.Errorf("%w: %d байт", ErrMalformedPacket, len(data))
	}
	if binary.LittleEndian.Uint32(data[0:]) != packetMagic {
		return fmt.Errorf("%w: неверная сигнатура", ErrMalformedPacket)
	}

	p.Kind = PacketKind(data[4])
	p.Key = vec.ChunkKey(binary.LittleEndian.Uint64(data[5:]))
	p.Coord = vec.Vec3{X: getInt32(data[13:]), Y: getInt32(data[17:]), Z: getInt32(data[21:])}
	for i := 0; i < 3; i++ {
		p.Dims[i] = int(binary.LittleEndian.Uint16(data[25+2*i:]))
	}
	count := int(binary.LittleEndian.Uint32(data[31:]))
	body := data[headerSize:]
	if len(body) != count*quadWireSize {
		return fmt.Errorf("%w: %d квадов в %d байтах", ErrMalformedPacket, count, len(body))
	}

	p.Quads = make([]mesher.Quad, count)
	for i := range p.Quads {
		q := body[i*quadWireSize:]
		axis := int(q[16])
		if axis > 2 {
			return fmt.Errorf("%w: ось %d", ErrMalformedPacket, axis)
		}
		quad := mesher.Quad{
			Origin:   [3]int{getInt32(q[0:]), getInt32(q[4:]), getInt32(q[8:])},
			Axis:     axis,
			Positive: q[17] == 1,
			Material: voxel.Voxel(binary.LittleEndian.Uint16(q[18:])),
		}
		quad.Du[(axis+1)%3] = int(binary.LittleEndian.Uint16(q[12:]))
		quad.Dv[(axis+2)%3] = int(binary.LittleEndian.Uint16(q[14:]))
		p.Quads[i] = quad
	}
	return nil
}

func putInt32(b []byte, v int) {
	binary.LittleEndian.PutUint32(b, uint32(int32(v)))
}

func getInt32(b []byte) int {
	return int(int32(binary.LittleEndian.Uint32(b)))
}
