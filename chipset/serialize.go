package chipset

import (
	"encoding/binary"
	"errors"
)

// serializeSize covers the beam position, DMACON, and the DMA pointer
// registers. The busOwner vector and the bitplane/DAS schedule caches are
// not included: busOwner is rebuilt by ResetLine at the start of every
// line and the schedules are rebuilt (and memoized again) the next time
// RecomputeBitplaneSchedule/RecomputeDASSchedule run, which the owning
// container does whenever the registers driving them change.
const serializeSize = 2 + 2 + 1 + 2 + 4 + 4*4 + 6*4 + 8*4 + 1

// SerializeSize returns the number of bytes Serialize writes.
func (a *Arbiter) SerializeSize() int { return serializeSize }

// Serialize writes the beam position, DMACON, and DMA pointer registers
// into buf.
func (a *Arbiter) Serialize(buf []byte) error {
	if len(buf) < serializeSize {
		return errors.New("chipset: serialize buffer too small")
	}
	be := binary.BigEndian
	off := 0
	be.PutUint16(buf[off:], uint16(a.beam.V))
	off += 2
	be.PutUint16(buf[off:], uint16(a.beam.H))
	off += 2
	buf[off] = boolByte(a.beam.LongLine)
	off++
	be.PutUint16(buf[off:], a.dmacon)
	off += 2
	be.PutUint32(buf[off:], a.dskpt)
	off += 4
	for _, v := range a.audpt {
		be.PutUint32(buf[off:], v)
		off += 4
	}
	for _, v := range a.bplpt {
		be.PutUint32(buf[off:], v)
		off += 4
	}
	for _, v := range a.sprpt {
		be.PutUint32(buf[off:], v)
		off += 4
	}
	buf[off] = byte(a.bls.denied)
	return nil
}

// Deserialize restores beam position, DMACON, and DMA pointer registers
// from buf. The caller is responsible for re-running
// RecomputeBitplaneSchedule/RecomputeDASSchedule afterward so the
// schedule caches reflect the restored DMACON/DDF state.
func (a *Arbiter) Deserialize(buf []byte) error {
	if len(buf) < serializeSize {
		return errors.New("chipset: deserialize buffer too small")
	}
	be := binary.BigEndian
	off := 0
	a.beam.V = int(be.Uint16(buf[off:]))
	off += 2
	a.beam.H = int(be.Uint16(buf[off:]))
	off += 2
	a.beam.LongLine = buf[off] != 0
	off++
	a.dmacon = be.Uint16(buf[off:])
	off += 2
	a.dskpt = be.Uint32(buf[off:])
	off += 4
	for i := range a.audpt {
		a.audpt[i] = be.Uint32(buf[off:])
		off += 4
	}
	for i := range a.bplpt {
		a.bplpt[i] = be.Uint32(buf[off:])
		off += 4
	}
	for i := range a.sprpt {
		a.sprpt[i] = be.Uint32(buf[off:])
		off += 4
	}
	a.bls.denied = int(buf[off])
	a.ResetLine()
	return nil
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
