package copper

import (
	"encoding/binary"
	"errors"
)

const serializeSize = 4 + 4 + 4 + 2 + 1 + 2 + 1 + 1 + 1 + 1 + 1 + 1

// SerializeSize returns the number of bytes Serialize writes.
func (c *Copper) SerializeSize() int { return serializeSize }

// Serialize writes the Copper's program counter, latched addresses, and
// in-flight fetch/wait state into buf. The bus reference is not included.
func (c *Copper) Serialize(buf []byte) error {
	if len(buf) < serializeSize {
		return errors.New("copper: serialize buffer too small")
	}
	be := binary.BigEndian
	off := 0
	be.PutUint32(buf[off:], c.pc)
	off += 4
	be.PutUint32(buf[off:], c.cop1lc)
	off += 4
	be.PutUint32(buf[off:], c.cop2lc)
	off += 4
	be.PutUint16(buf[off:], c.copcon)
	off += 2
	buf[off] = byte(c.phase)
	off++
	be.PutUint16(buf[off:], c.word1)
	off += 2
	buf[off] = boolByte(c.waiting)
	off++
	buf[off] = byte(c.waitV)
	off++
	buf[off] = byte(c.waitH)
	off++
	buf[off] = byte(c.maskV)
	off++
	buf[off] = byte(c.maskH)
	off++
	buf[off] = boolByte(c.skipNext)
	return nil
}

// Deserialize restores Copper state from buf.
func (c *Copper) Deserialize(buf []byte) error {
	if len(buf) < serializeSize {
		return errors.New("copper: deserialize buffer too small")
	}
	be := binary.BigEndian
	off := 0
	c.pc = be.Uint32(buf[off:])
	off += 4
	c.cop1lc = be.Uint32(buf[off:])
	off += 4
	c.cop2lc = be.Uint32(buf[off:])
	off += 4
	c.copcon = be.Uint16(buf[off:])
	off += 2
	c.phase = int(buf[off])
	off++
	c.word1 = be.Uint16(buf[off:])
	off += 2
	c.waiting = buf[off] != 0
	off++
	c.waitV = int(buf[off])
	off++
	c.waitH = int(buf[off])
	off++
	c.maskV = int(buf[off])
	off++
	c.maskH = int(buf[off])
	off++
	c.skipNext = buf[off] != 0
	return nil
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
