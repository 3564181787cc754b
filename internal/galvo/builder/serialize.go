package builder

import (
	"math"

	"github.com/meerk40t/galvo/internal/galvo/listops"
)

const opsPerPacket = listops.PacketSizeBytes / 12

// backfillDistances walks the op list in emission order, writing each
// distance-carrying op's distance field from the running position
// (starting at c.initX/initY), and returns the distance-filled copy. The
// original ops are left untouched.
func (c *CommandList) backfillDistances() []listops.Op {
	filled := make([]listops.Op, len(c.ops))
	copy(filled, c.ops)

	px, py := float64(c.initX), float64(c.initY)
	for i := range filled {
		op := &filled[i]
		if op.HasDistance() {
			x, y := op.XY()
			dist := math.Hypot(float64(x)-px, float64(y)-py)
			if dist > 0xFFFF {
				dist = 0xFFFF
			}
			op.SetDistance(uint16(dist))
		}
		if op.HasXY() {
			x, y := op.XY()
			px, py = float64(x), float64(y)
		}
	}
	return filled
}

// Serialize returns the ops with distance back-filled, followed by NoOp
// padding out to a whole number of packets.
func (c *CommandList) Serialize() []byte {
	ops := c.backfillDistances()
	packetCount := (len(ops) + opsPerPacket - 1) / opsPerPacket
	if packetCount == 0 {
		packetCount = 1
	}
	buf := make([]byte, 0, packetCount*listops.PacketSizeBytes)
	for _, op := range ops {
		b := op.Serialize()
		buf = append(buf, b[:]...)
	}
	for len(buf) < packetCount*listops.PacketSizeBytes {
		b := listops.New(listops.KindNoOp).Serialize()
		buf = append(buf, b[:]...)
	}
	return buf
}

// PacketGenerator returns the list's ops split into full
// listops.PacketSizeBytes packets (the final one NoOp-padded), in the
// order the execution engine should upload them.
func (c *CommandList) PacketGenerator() [][]byte {
	full := c.Serialize()
	packets := make([][]byte, 0, len(full)/listops.PacketSizeBytes)
	for off := 0; off < len(full); off += listops.PacketSizeBytes {
		packets = append(packets, full[off:off+listops.PacketSizeBytes])
	}
	return packets
}
