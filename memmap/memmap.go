// Package memmap implements the Amiga address space: a 64 KB-page-indexed
// decoder dispatching to one of several backend kinds (spec.md §4.7).
// Odd-address faulting for word/long CPU accesses is handled by the cpu
// package itself before a Bus method is ever called; this package only
// needs to route a well-formed access to the right backend.
package memmap

import "github.com/amiga68k/core/cpu"

// Tag classifies a 64 KB page of the 24-bit (68000/68010) or 32-bit
// (68020EC) address space.
type Tag int

const (
	TagUnmapped Tag = iota
	TagChipRAM
	TagSlowRAM
	TagFastRAM
	TagROM
	TagExtROM
	TagWOM
	TagCIAA
	TagCIAB
	TagRTC
	TagCustom
	TagAutoConfig
)

func (t Tag) String() string {
	switch t {
	case TagChipRAM:
		return "ChipRAM"
	case TagSlowRAM:
		return "SlowRAM"
	case TagFastRAM:
		return "FastRAM"
	case TagROM:
		return "ROM"
	case TagExtROM:
		return "ExtROM"
	case TagWOM:
		return "WOM"
	case TagCIAA:
		return "CIAA"
	case TagCIAB:
		return "CIAB"
	case TagRTC:
		return "RTC"
	case TagCustom:
		return "Custom"
	case TagAutoConfig:
		return "AutoConfig"
	default:
		return "Unmapped"
	}
}

// Backend services reads and writes for every page mapped to it.
type Backend interface {
	Read(sz cpu.Size, addr uint32) uint32
	Write(sz cpu.Size, addr uint32, val uint32)
}

// pageShift/pageSize: a page is 64 KB, matching spec.md §4.7's decoding unit.
const (
	pageShift = 16
	pageSize  = 1 << pageShift
	numPages  = 1 << (32 - pageShift) // address space addressable by a uint32
)

type pageEntry struct {
	tag     Tag
	backend Backend
}

// unmappedBackend returns a fixed pattern for every unmapped read and
// silently discards writes, per spec.md §4.7 "a model-configurable
// pattern (bus noise, floating, or a fixed value)".
type unmappedBackend struct{ pattern uint32 }

func (u unmappedBackend) Read(sz cpu.Size, addr uint32) uint32 {
	switch sz {
	case cpu.Byte:
		return u.pattern & 0xFF
	case cpu.Word:
		return u.pattern & 0xFFFF
	default:
		return u.pattern
	}
}

func (u unmappedBackend) Write(cpu.Size, uint32, uint32) {}

// Map is the page-indexed address decoder. It implements cpu.Bus and
// cpu.CycleBus so it can be installed directly as a CPU's bus.
type Map struct {
	pages [numPages]pageEntry

	// beforeAccess is invoked before every CycleBus access with the CPU's
	// current cycle count; the owner (machine.Machine) wires it to the
	// scheduler so chipset events up to that cycle fire first, per
	// spec.md §5's "CPU suspends before every memory access" contract.
	beforeAccess func(cycle uint64)
}

// NewMap returns a Map with every page unmapped (reads return 0xFFFFFFFF,
// the typical OCS/ECS floating-bus value).
func NewMap() *Map {
	m := &Map{}
	u := unmappedBackend{pattern: 0xFFFFFFFF}
	for i := range m.pages {
		m.pages[i] = pageEntry{tag: TagUnmapped, backend: u}
	}
	return m
}

// SetBeforeAccess installs the pre-access hook used by ReadCycle/WriteCycle.
func (m *Map) SetBeforeAccess(f func(cycle uint64)) { m.beforeAccess = f }

// MapRange assigns tag and backend to every 64 KB page in [startAddr, endAddr).
// Both bounds must be page-aligned.
func (m *Map) MapRange(startAddr, endAddr uint32, tag Tag, backend Backend) {
	first := startAddr >> pageShift
	last := endAddr >> pageShift
	for p := first; p < last; p++ {
		m.pages[p] = pageEntry{tag: tag, backend: backend}
	}
}

// TagAt returns the tag mapped at addr.
func (m *Map) TagAt(addr uint32) Tag {
	return m.pages[addr>>pageShift].tag
}

// Read dispatches a CPU-visible read to the backend mapped at addr.
func (m *Map) Read(sz cpu.Size, addr uint32) uint32 {
	return m.pages[addr>>pageShift].backend.Read(sz, addr)
}

// Write dispatches a CPU-visible write to the backend mapped at addr.
func (m *Map) Write(sz cpu.Size, addr uint32, val uint32) {
	m.pages[addr>>pageShift].backend.Write(sz, addr, val)
}

// Reset is a no-op at the memory-map level; individual backends (RAM,
// CIA, custom registers) own their own reset behavior.
func (m *Map) Reset() {}

// ReadCycle lets the scheduler catch up to cycle before servicing the read.
func (m *Map) ReadCycle(cycle uint64, sz cpu.Size, addr uint32) uint32 {
	if m.beforeAccess != nil {
		m.beforeAccess(cycle)
	}
	return m.Read(sz, addr)
}

// WriteCycle lets the scheduler catch up to cycle before servicing the write.
func (m *Map) WriteCycle(cycle uint64, sz cpu.Size, addr uint32, val uint32) {
	if m.beforeAccess != nil {
		m.beforeAccess(cycle)
	}
	m.Write(sz, addr, val)
}

// RAM is a flat byte-addressable backend for Chip/Slow/Fast RAM regions.
type RAM struct {
	base uint32
	mem  []byte
}

// NewRAM returns a RAM backend of the given size, mapped starting at base.
func NewRAM(base uint32, size int) *RAM {
	return &RAM{base: base, mem: make([]byte, size)}
}

// Bytes returns the backing store directly, for the owning container's
// snapshot save/restore. Mutating the returned slice mutates the RAM.
func (r *RAM) Bytes() []byte { return r.mem }

func (r *RAM) off(addr uint32) uint32 {
	o := addr - r.base
	if int(o) >= len(r.mem) {
		return o % uint32(len(r.mem)) // mirrored, as Chip RAM aliases do
	}
	return o
}

func (r *RAM) Read(sz cpu.Size, addr uint32) uint32 {
	o := r.off(addr)
	switch sz {
	case cpu.Byte:
		return uint32(r.mem[o])
	case cpu.Word:
		return uint32(r.mem[o])<<8 | uint32(r.mem[o+1])
	default:
		return uint32(r.mem[o])<<24 | uint32(r.mem[o+1])<<16 |
			uint32(r.mem[o+2])<<8 | uint32(r.mem[o+3])
	}
}

func (r *RAM) Write(sz cpu.Size, addr uint32, val uint32) {
	o := r.off(addr)
	switch sz {
	case cpu.Byte:
		r.mem[o] = byte(val)
	case cpu.Word:
		r.mem[o] = byte(val >> 8)
		r.mem[o+1] = byte(val)
	default:
		r.mem[o] = byte(val >> 24)
		r.mem[o+1] = byte(val >> 16)
		r.mem[o+2] = byte(val >> 8)
		r.mem[o+3] = byte(val)
	}
}

// ROM is a read-only backend; writes are discarded (WOM behaves like ROM
// for reads but accepts writes — see WOM below).
type ROM struct {
	base uint32
	mem  []byte
}

// NewROM returns a ROM backend preloaded with image, mapped starting at base.
func NewROM(base uint32, image []byte) *ROM {
	mem := make([]byte, len(image))
	copy(mem, image)
	return &ROM{base: base, mem: mem}
}

func (r *ROM) Read(sz cpu.Size, addr uint32) uint32 {
	o := addr - r.base
	switch sz {
	case cpu.Byte:
		return uint32(r.mem[o])
	case cpu.Word:
		return uint32(r.mem[o])<<8 | uint32(r.mem[o+1])
	default:
		return uint32(r.mem[o])<<24 | uint32(r.mem[o+1])<<16 |
			uint32(r.mem[o+2])<<8 | uint32(r.mem[o+3])
	}
}

func (r *ROM) Write(cpu.Size, uint32, uint32) {}

// WOM ("Write-Once Memory", the Amiga 1000's boot-Kickstart RAM) reads like
// ROM until Unlock is called, after which writes are accepted like RAM;
// Lock reverts it to read-only.
type WOM struct {
	base    uint32
	mem     []byte
	unlocked bool
}

// NewWOM returns a WOM backend preloaded with image, mapped starting at base.
func NewWOM(base uint32, image []byte) *WOM {
	mem := make([]byte, len(image))
	copy(mem, image)
	return &WOM{base: base, mem: mem}
}

// Unlock makes the WOM writable, used once at boot to load Kickstart.
func (w *WOM) Unlock() { w.unlocked = true }

// Lock makes the WOM read-only again.
func (w *WOM) Lock() { w.unlocked = false }

func (w *WOM) Read(sz cpu.Size, addr uint32) uint32 {
	o := addr - w.base
	switch sz {
	case cpu.Byte:
		return uint32(w.mem[o])
	case cpu.Word:
		return uint32(w.mem[o])<<8 | uint32(w.mem[o+1])
	default:
		return uint32(w.mem[o])<<24 | uint32(w.mem[o+1])<<16 |
			uint32(w.mem[o+2])<<8 | uint32(w.mem[o+3])
	}
}

func (w *WOM) Write(sz cpu.Size, addr uint32, val uint32) {
	if !w.unlocked {
		return
	}
	o := addr - w.base
	switch sz {
	case cpu.Byte:
		w.mem[o] = byte(val)
	case cpu.Word:
		w.mem[o] = byte(val >> 8)
		w.mem[o+1] = byte(val)
	default:
		w.mem[o] = byte(val >> 24)
		w.mem[o+1] = byte(val >> 16)
		w.mem[o+2] = byte(val >> 8)
		w.mem[o+3] = byte(val)
	}
}

// CustomBackend adapts the chipset register file (owned by the register
// package) to the memmap.Backend interface, so $DFF000-$DFF1FE reads and
// writes route through the normal register-change queue.
type CustomBackend struct {
	// ReadReg/WriteReg are supplied by the owner (machine.Machine), which
	// knows how to translate a raw address into a register.Reg and queue
	// or apply the write with the CPU accessor tag.
	ReadReg  func(addr uint32, sz cpu.Size) uint32
	WriteReg func(addr uint32, sz cpu.Size, val uint32)
}

func (c CustomBackend) Read(sz cpu.Size, addr uint32) uint32 {
	if c.ReadReg == nil {
		return 0
	}
	return c.ReadReg(addr, sz)
}

func (c CustomBackend) Write(sz cpu.Size, addr uint32, val uint32) {
	if c.WriteReg != nil {
		c.WriteReg(addr, sz, val)
	}
}
