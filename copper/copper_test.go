package copper

import (
	"testing"

	"github.com/amiga68k/core/chipset"
	"github.com/amiga68k/core/register"
)

type fakeBus struct {
	mem       map[uint32]uint16
	customMem map[uint32]uint16
	beam      chipset.Beam
	busFree   bool
	allocated bool
}

func newFakeBus() *fakeBus {
	return &fakeBus{mem: map[uint32]uint16{}, customMem: map[uint32]uint16{}, busFree: true}
}

func (f *fakeBus) CopperBusFree() bool       { return f.busFree }
func (f *fakeBus) AllocateCopperBus() bool   { f.allocated = true; return true }
func (f *fakeBus) DoCopperDmaRead(addr uint32) uint16 { return f.mem[addr] }
func (f *fakeBus) DoCopperDmaWrite(addr uint32, value uint16) { f.customMem[addr] = value }
func (f *fakeBus) Beam() chipset.Beam        { return f.beam }

func instrWords(word1, word2 uint16) (uint16, uint16) { return word1, word2 }

func TestMoveWritesRegisterAboveThreshold(t *testing.T) {
	bus := newFakeBus()
	// MOVE to BPLCON0 (0x100): word1 = 0x100, word2 = value.
	w1, w2 := instrWords(uint16(register.RegBPLCON0), 0x8200)
	bus.mem[0] = w1
	bus.mem[2] = w2

	c := New(bus)
	c.Tick() // fetch word1
	c.Tick() // fetch word2, execute

	if got := bus.customMem[0xDFF000+uint32(register.RegBPLCON0)]; got != 0x8200 {
		t.Errorf("BPLCON0 write = %#x, want 0x8200", got)
	}
	if c.PC() != 4 {
		t.Errorf("PC = %d, want 4", c.PC())
	}
}

func TestMoveBelowThresholdDroppedWithoutDanger(t *testing.T) {
	bus := newFakeBus()
	w1, w2 := instrWords(uint16(register.RegCOPCON), 0x0002)
	bus.mem[0], bus.mem[2] = w1, w2

	c := New(bus)
	c.Tick()
	c.Tick()

	if _, ok := bus.customMem[0xDFF000+uint32(register.RegCOPCON)]; ok {
		t.Error("MOVE below the dangerous threshold should be silently dropped without CDANG")
	}
}

func TestMoveBelowThresholdAllowedWithDanger(t *testing.T) {
	bus := newFakeBus()
	w1, w2 := instrWords(uint16(register.RegCOPCON), 0x0002)
	bus.mem[0], bus.mem[2] = w1, w2

	c := New(bus)
	c.SetCOPCON(cdang)
	c.Tick()
	c.Tick()

	if got := bus.customMem[0xDFF000+uint32(register.RegCOPCON)]; got != 0x0002 {
		t.Errorf("MOVE with CDANG set = %#x, want 0x0002", got)
	}
}

func TestWaitBlocksUntilBeamReached(t *testing.T) {
	bus := newFakeBus()
	// WAIT (50,50): word1 = (50<<8)|(50<<1)|1, word2 mask = all-ones, bit0=0.
	w1 := uint16(50<<8 | 50<<1 | 1)
	w2 := uint16(0xFF<<8 | 0x7F<<1 | 0)
	bus.mem[0], bus.mem[2] = w1, w2

	c := New(bus)
	bus.beam = chipset.Beam{V: 10, H: 0}
	c.Tick()
	c.Tick()

	if !c.Waiting() {
		t.Fatal("Copper should be waiting, beam has not reached target")
	}

	bus.beam = chipset.Beam{V: 50, H: 50}
	c.Tick()
	if c.Waiting() {
		t.Error("Copper should stop waiting once the beam reaches the target")
	}
}

func TestSkipSkipsNextInstructionWhenBeamPassed(t *testing.T) {
	bus := newFakeBus()
	// SKIP (0,0): always true (beam starts at or past 0,0).
	skip1 := uint16(0<<8 | 0<<1 | 1)
	skip2 := uint16(0xFF<<8 | 0x7F<<1 | 1)
	bus.mem[0], bus.mem[2] = skip1, skip2

	// Next instruction: MOVE to BPLCON0, should be skipped.
	moveW1, moveW2 := instrWords(uint16(register.RegBPLCON0), 0x1234)
	bus.mem[4], bus.mem[6] = moveW1, moveW2

	c := New(bus)
	bus.beam = chipset.Beam{V: 1, H: 1}
	c.Tick()
	c.Tick() // executes SKIP, sets skipNext

	c.Tick()
	c.Tick() // would execute MOVE but should be skipped

	if _, ok := bus.customMem[0xDFF000+uint32(register.RegBPLCON0)]; ok {
		t.Error("instruction following a taken SKIP should not execute")
	}
}

func TestSkipDoesNotSkipASecondSkip(t *testing.T) {
	bus := newFakeBus()
	skip1 := uint16(0<<8 | 0<<1 | 1)
	skip2 := uint16(0xFF<<8 | 0x7F<<1 | 1)
	bus.mem[0], bus.mem[2] = skip1, skip2
	bus.mem[4], bus.mem[6] = skip1, skip2

	moveW1, moveW2 := instrWords(uint16(register.RegBPLCON0), 0x1234)
	bus.mem[8], bus.mem[10] = moveW1, moveW2

	c := New(bus)
	bus.beam = chipset.Beam{V: 1, H: 1}
	for i := 0; i < 4; i++ {
		c.Tick()
	}
	// Two SKIPs executed; second SKIP must not be skipped by the first,
	// so it also evaluates and sets skipNext again, which should skip MOVE.
	c.Tick()
	c.Tick()

	if _, ok := bus.customMem[0xDFF000+uint32(register.RegBPLCON0)]; ok {
		t.Error("MOVE after two chained SKIPs should still be skipped")
	}
}

func TestJumpReloadsPCAndClearsWait(t *testing.T) {
	bus := newFakeBus()
	c := New(bus)
	c.SetCop1LC(0x4000)
	c.Jump1()

	if c.PC() != 0x4000 {
		t.Errorf("PC = %#x, want 0x4000", c.PC())
	}
	if c.Waiting() {
		t.Error("Jump should clear a pending wait")
	}
}

func TestStallsWhenBusNotFree(t *testing.T) {
	bus := newFakeBus()
	bus.busFree = false
	c := New(bus)
	c.Tick()

	if bus.allocated {
		t.Error("Copper should not allocate the bus when CopperBusFree is false")
	}
	if c.PC() != 0 {
		t.Error("PC should not advance while stalled")
	}
}
