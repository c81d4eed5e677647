package irq

import (
	"encoding/binary"
	"errors"
)

const serializeSize = 2 + 2 // intena, intreq

// SerializeSize returns the number of bytes Serialize writes.
func (c *Controller) SerializeSize() int { return serializeSize }

// Serialize writes INTENA and INTREQ into buf.
func (c *Controller) Serialize(buf []byte) error {
	if len(buf) < serializeSize {
		return errors.New("irq: serialize buffer too small")
	}
	be := binary.BigEndian
	be.PutUint16(buf[0:], c.intena)
	be.PutUint16(buf[2:], c.intreq)
	return nil
}

// Deserialize restores INTENA and INTREQ from buf and re-derives the IPL,
// firing OnIPLChange if the restored masks produce a different level than
// the controller currently holds.
func (c *Controller) Deserialize(buf []byte) error {
	if len(buf) < serializeSize {
		return errors.New("irq: deserialize buffer too small")
	}
	be := binary.BigEndian
	c.intena = be.Uint16(buf[0:])
	c.intreq = be.Uint16(buf[2:])
	c.recompute()
	return nil
}
