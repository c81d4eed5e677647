package blitter

import (
	"encoding/binary"
	"errors"
)

const channelSize = 4 + 4 + 1 // ptr, mod, enabled

const serializeSize = channelSize*4 + // a, b, c, d
	1 + 1 + 1 + 1 + // lf, lineMode, fillEnable, fillExcl
	1 + // fillCarry
	4*8 + // width, height, col, row, cellIndex, cellsTotal, cyclesPerCell, subCycle
	4 + 2 + 1 + // pendingDAddr, pendingDValue, pendingDValid
	1 + // busy
	4*8 + // lineX, lineY, lineDx, lineDy, lineSx, lineSy, lineErr, linePitchWords
	0

// SerializeSize returns the number of bytes Serialize writes.
func (b *Blitter) SerializeSize() int { return serializeSize }

func putChannel(be binary.ByteOrder, buf []byte, c channel) int {
	be.PutUint32(buf[0:], c.ptr)
	be.PutUint32(buf[4:], uint32(c.mod))
	buf[8] = boolByte(c.enabled)
	return channelSize
}

func getChannel(be binary.ByteOrder, buf []byte) channel {
	return channel{
		ptr:     be.Uint32(buf[0:]),
		mod:     int32(be.Uint32(buf[4:])),
		enabled: buf[8] != 0,
	}
}

// Serialize writes the full in-flight blit state (channels, logic
// function, fill/line mode flags, cell progress, and the one-cycle D
// pipeline) into buf.
func (b *Blitter) Serialize(buf []byte) error {
	if len(buf) < serializeSize {
		return errors.New("blitter: serialize buffer too small")
	}
	be := binary.BigEndian
	off := 0
	for _, c := range []channel{b.a, b.b, b.c, b.d} {
		off += putChannel(be, buf[off:], c)
	}
	buf[off] = b.lf
	off++
	buf[off] = boolByte(b.lineMode)
	off++
	buf[off] = boolByte(b.fillEnable)
	off++
	buf[off] = boolByte(b.fillExcl)
	off++
	buf[off] = boolByte(b.fillCarry)
	off++
	for _, v := range []int{b.width, b.height, b.col, b.row, b.cellIndex, b.cellsTotal, b.cyclesPerCell, b.subCycle} {
		be.PutUint32(buf[off:], uint32(v))
		off += 4
	}
	be.PutUint32(buf[off:], b.pendingDAddr)
	off += 4
	be.PutUint16(buf[off:], b.pendingDValue)
	off += 2
	buf[off] = boolByte(b.pendingDValid)
	off++
	buf[off] = boolByte(b.busy)
	off++
	for _, v := range []int{b.lineX, b.lineY, b.lineDx, b.lineDy, b.lineSx, b.lineSy, b.lineErr, b.linePitchWords} {
		be.PutUint32(buf[off:], uint32(v))
		off += 4
	}
	return nil
}

// Deserialize restores Blitter state from buf. OnComplete is not fired
// for any blit that was mid-flight at snapshot time; it fires normally
// the next time Tick() reaches that blit's last cell.
func (b *Blitter) Deserialize(buf []byte) error {
	if len(buf) < serializeSize {
		return errors.New("blitter: deserialize buffer too small")
	}
	be := binary.BigEndian
	off := 0
	chans := make([]*channel, 0, 4)
	chans = append(chans, &b.a, &b.b, &b.c, &b.d)
	for _, cp := range chans {
		*cp = getChannel(be, buf[off:])
		off += channelSize
	}
	b.lf = buf[off]
	off++
	b.lineMode = buf[off] != 0
	off++
	b.fillEnable = buf[off] != 0
	off++
	b.fillExcl = buf[off] != 0
	off++
	b.fillCarry = buf[off] != 0
	off++
	ints := []*int{&b.width, &b.height, &b.col, &b.row, &b.cellIndex, &b.cellsTotal, &b.cyclesPerCell, &b.subCycle}
	for _, ip := range ints {
		*ip = int(int32(be.Uint32(buf[off:])))
		off += 4
	}
	b.pendingDAddr = be.Uint32(buf[off:])
	off += 4
	b.pendingDValue = be.Uint16(buf[off:])
	off += 2
	b.pendingDValid = buf[off] != 0
	off++
	b.busy = buf[off] != 0
	off++
	lineInts := []*int{&b.lineX, &b.lineY, &b.lineDx, &b.lineDy, &b.lineSx, &b.lineSy, &b.lineErr, &b.linePitchWords}
	for _, ip := range lineInts {
		*ip = int(int32(be.Uint32(buf[off:])))
		off += 4
	}
	return nil
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
