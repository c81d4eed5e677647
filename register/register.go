// Package register implements the 512-byte chipset register map and its
// write-latency queue (spec.md §4.6). CPU writes are not applied
// immediately: they are queued with a trigger cycle and drained by the
// scheduler's REG slot in non-decreasing trigger order. DMA-side (Agnus)
// writes are applied immediately.
//
// The package itself is deliberately narrow: it stores values and queues
// changes. Side effects of applying a register (rescheduling the bitplane
// DMA schedule, recomputing pending IRQ, updating a DMA pointer register)
// belong to the components that own that state; File.OnApply is the single
// hook the owning container (machine.Machine) wires those through, per
// spec.md §9's "function calls on the container, not pointer traversals".
package register

// Reg identifies one chipset register by its even byte offset within the
// 512-byte $DFF000-$DFF1FE range.
type Reg uint16

// Named registers referenced by spec.md's component descriptions. Not
// every one of the ~200 hardware registers has a name here — only the
// ones whose side effects or accessor disambiguation this core models.
const (
	RegDMACONR Reg = 0x002
	RegINTENAR Reg = 0x01C
	RegINTREQR Reg = 0x01E

	RegCOP1LCH Reg = 0x080
	RegCOP1LCL Reg = 0x082
	RegCOP2LCH Reg = 0x084
	RegCOP2LCL Reg = 0x086
	RegCOPJMP1 Reg = 0x088
	RegCOPJMP2 Reg = 0x08A
	RegCOPCON  Reg = 0x02E

	RegDIWSTRT Reg = 0x08E
	RegDIWSTOP Reg = 0x090
	RegDDFSTRT Reg = 0x092
	RegDDFSTOP Reg = 0x094
	RegDMACON  Reg = 0x096
	RegINTENA  Reg = 0x09A
	RegINTREQ  Reg = 0x09C

	RegBPL1PTH Reg = 0x0E0
	RegBPL1PTL Reg = 0x0E2
	// BPLnPTH/PTL follow at +4 per plane up to plane 6 (RegBPLPtr helper).

	RegBPLCON0 Reg = 0x100
	RegBPLCON1 Reg = 0x102
	RegBPLCON2 Reg = 0x104
	RegDIWHIGH Reg = 0x1E4

	RegSPR0PTH Reg = 0x120
	RegSPR0PTL Reg = 0x122
	// SPRnPTH/PTL follow at +4 per channel up to channel 7.

	RegBLTCON0 Reg = 0x040
	RegBLTCON1 Reg = 0x042
	RegBLTSIZE Reg = 0x058
)

// RegBPLPtr returns the register offset for bitplane pointer plane
// (0-5), high or low word.
func RegBPLPtr(plane int, high bool) Reg {
	off := RegBPL1PTH + Reg(plane*4)
	if !high {
		off += 2
	}
	return off
}

// RegSprPtr returns the register offset for sprite pointer channel
// (0-7), high or low word.
func RegSprPtr(channel int, high bool) Reg {
	off := RegSPR0PTH + Reg(channel*4)
	if !high {
		off += 2
	}
	return off
}

// Accessor disambiguates the component responsible for a register write.
// Some registers (BPLCON0/1, DIWSTRT/STOP/HIGH) latch different bits, or
// trigger different side effects, depending on whether Agnus or Denise
// wrote them; CPU writes always go through the change queue first.
type Accessor int

const (
	AccessorCPU Accessor = iota
	AccessorAgnus
	AccessorDenise
)

func (a Accessor) String() string {
	switch a {
	case AccessorCPU:
		return "CPU"
	case AccessorAgnus:
		return "Agnus"
	case AccessorDenise:
		return "Denise"
	default:
		return "unknown"
	}
}

// RegChange is one pending write in the change queue.
type RegChange struct {
	Trigger  int64
	Reg      Reg
	Value    uint16
	Accessor Accessor
}

// File is the flat 256-entry (512-byte, even-offset) chipset register map.
type File struct {
	mem [256]uint16

	queue []RegChange

	// OnApply, when non-nil, is invoked every time a value actually lands
	// in mem — from ApplyImmediate or from draining the queue.
	OnApply func(reg Reg, value uint16, accessor Accessor)
}

// NewFile returns an empty register file.
func NewFile() *File { return &File{} }

func index(reg Reg) uint16 { return uint16(reg) / 2 }

// Read returns the current stored value of reg (the result of the most
// recently applied write, not any value still sitting in the queue).
func (f *File) Read(reg Reg) uint16 { return f.mem[index(reg)] }

// ApplyImmediate writes value to reg without going through the change
// queue, used for DMA-side (Agnus/Denise) writes per spec.md §4.6.
func (f *File) ApplyImmediate(reg Reg, value uint16, accessor Accessor) {
	f.mem[index(reg)] = value
	if f.OnApply != nil {
		f.OnApply(reg, value, accessor)
	}
}

// Queue appends a CPU-side write with the given trigger cycle (normally
// the current CPU cycle rounded up to the next DMA cycle boundary).
// Writes are expected to be queued in non-decreasing trigger order, which
// holds naturally since the CPU's own clock only advances forward.
func (f *File) Queue(change RegChange) {
	f.queue = append(f.queue, change)
}

// Drain applies every queued entry with Trigger <= cycle, in FIFO (hence
// non-decreasing trigger) order, and returns the number applied.
func (f *File) Drain(cycle int64) int {
	n := 0
	for len(f.queue) > 0 && f.queue[0].Trigger <= cycle {
		c := f.queue[0]
		f.queue = f.queue[1:]
		f.mem[index(c.Reg)] = c.Value
		if f.OnApply != nil {
			f.OnApply(c.Reg, c.Value, c.Accessor)
		}
		n++
	}
	return n
}

// Pending reports whether any queued write has not yet drained.
func (f *File) Pending() bool { return len(f.queue) > 0 }

// NextTrigger returns the trigger of the earliest queued write, or false
// if the queue is empty.
func (f *File) NextTrigger() (int64, bool) {
	if len(f.queue) == 0 {
		return 0, false
	}
	return f.queue[0].Trigger, true
}
