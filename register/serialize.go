package register

import (
	"encoding/binary"
	"errors"
)

// serializeSize is the byte count of the 256-entry register map. The
// pending CPU-write queue is not included: the owning container only
// snapshots at frame boundaries, where Drain has already emptied it.
const serializeSize = 256 * 2

// SerializeSize returns the number of bytes Serialize writes.
func (f *File) SerializeSize() int { return serializeSize }

// Serialize writes the flat register map into buf.
func (f *File) Serialize(buf []byte) error {
	if len(buf) < serializeSize {
		return errors.New("register: serialize buffer too small")
	}
	be := binary.BigEndian
	for i, v := range f.mem {
		be.PutUint16(buf[i*2:], v)
	}
	return nil
}

// Deserialize restores the register map from buf. OnApply is not fired
// for the restored values — a snapshot restore is a direct state load,
// not a sequence of writes.
func (f *File) Deserialize(buf []byte) error {
	if len(buf) < serializeSize {
		return errors.New("register: deserialize buffer too small")
	}
	be := binary.BigEndian
	for i := range f.mem {
		f.mem[i] = be.Uint16(buf[i*2:])
	}
	f.queue = nil
	return nil
}
