package blitter

import "testing"

type fakeBus struct {
	mem       map[uint32]uint16
	busFree   bool
	allocated bool
	reads     []uint32
	writes    []uint32
}

func newFakeBus() *fakeBus {
	return &fakeBus{mem: map[uint32]uint16{}, busFree: true}
}

func (f *fakeBus) BlitterBusFree() bool     { return f.busFree }
func (f *fakeBus) AllocateBlitterBus() bool { f.allocated = true; return true }
func (f *fakeBus) DoBlitterDmaRead(addr uint32) uint16 {
	f.reads = append(f.reads, addr)
	return f.mem[addr]
}
func (f *fakeBus) DoBlitterDmaWrite(addr uint32, value uint16) {
	f.writes = append(f.writes, addr)
	f.mem[addr] = value
}

// TestAreaCopyBBusyTiming reproduces the canonical 10x1 area blit,
// channels A->D only, logic = D=A: BBUSY asserts immediately and
// deasserts 11 DMA cycles later (one cycle of D-delay).
func TestAreaCopyBBusyTiming(t *testing.T) {
	bus := newFakeBus()
	for i := 0; i < 10; i++ {
		bus.mem[0x2000+uint32(i*2)] = uint16(0x1000 + i)
	}

	b := New(bus)
	b.SetLogicFunction(0x10) // D = A when B, C are held at zero
	b.SetChannelA(0x2000, 0, true)
	b.SetChannelD(0x3000, 0)
	b.StartArea(10, 1)

	completed := false
	b.OnComplete = func() { completed = true }

	if !b.Busy() {
		t.Fatal("Blitter should be busy immediately after StartArea")
	}

	for i := 0; i < 10; i++ {
		b.Tick()
		if !b.Busy() {
			t.Fatalf("Blitter deasserted BBUSY too early, at tick %d", i+1)
		}
	}
	b.Tick() // 11th cycle: the final delayed D write
	if b.Busy() {
		t.Error("Blitter should deassert BBUSY on the 11th cycle")
	}
	if !completed {
		t.Error("OnComplete should fire when BBUSY deasserts")
	}

	for i := 0; i < 10; i++ {
		want := uint16(0x1000 + i)
		if got := bus.mem[0x3000+uint32(i*2)]; got != want {
			t.Errorf("D[%d] = %#x, want %#x", i, got, want)
		}
	}
}

func TestAreaBlitStallsWhenBusNotFree(t *testing.T) {
	bus := newFakeBus()
	bus.busFree = false
	b := New(bus)
	b.SetChannelA(0x2000, 0, true)
	b.SetChannelD(0x3000, 0)
	b.StartArea(1, 1)

	b.Tick()
	if bus.allocated {
		t.Error("Blitter should not allocate the bus when BlitterBusFree is false")
	}
	if !b.Busy() {
		t.Error("Blitter should still be busy while stalled")
	}
}

func TestAreaBlitAppliesRowModulo(t *testing.T) {
	bus := newFakeBus()
	for i := 0; i < 8; i++ {
		bus.mem[0x2000+uint32(i*2)] = uint16(i + 1)
	}

	b := New(bus)
	b.SetLogicFunction(0x10)
	b.SetChannelA(0x2000, 2, true) // +2 modulo after each 2-word row: strided source
	b.SetChannelD(0x3000, 0)       // packed destination
	b.StartArea(2, 4)

	for i := 0; i < 20; i++ {
		b.Tick()
	}

	if b.Busy() {
		t.Fatal("blit should have completed within 20 ticks")
	}
	// Source is strided (2 words of data + 1-word modulo skip per row), so
	// the packed destination should receive 1,2,4,5,7,8 skipping every
	// third source word.
	want := []uint16{1, 2, 4, 5, 7, 8, 0, 0}
	for i, w := range want[:6] {
		if got := bus.mem[0x3000+uint32(i*2)]; w != 0 && got != w {
			t.Errorf("D word %d = %d, want %d", i, got, w)
		}
	}
}

func TestMintermIsPerBitTruthTable(t *testing.T) {
	// LF = 0xF0: output 1 whenever A's bit is 1, regardless of B, C (D = A).
	if got := minterm(0xFFFF, 0x0000, 0x0000, 0xF0); got != 0xFFFF {
		t.Errorf("minterm(D=A) with A=all-ones = %#x, want 0xffff", got)
	}
	if got := minterm(0x0000, 0xFFFF, 0x0000, 0xF0); got != 0 {
		t.Errorf("minterm(D=A) with A=0 = %#x, want 0", got)
	}
	// LF = 0x00: always zero.
	if got := minterm(0xFFFF, 0xFFFF, 0xFFFF, 0x00); got != 0 {
		t.Errorf("minterm(always-0) = %#x, want 0", got)
	}
	// LF = 0xFF: always one.
	if got := minterm(0, 0, 0, 0xFF); got != 0xFFFF {
		t.Errorf("minterm(always-1) = %#x, want 0xffff", got)
	}
}

func TestFillWordInclusiveTogglesAtSetBit(t *testing.T) {
	// Word has a single set bit at position 2: 0b0000_0000_0000_0100.
	// Inclusive fill: bits before the boundary stay 0 (inside=false),
	// the boundary bit itself becomes 1, and bits after it become 1
	// (inside flips true).
	result, carry := fillWord(0x0004, false, false)
	want := uint16(0xFFFC) // bits 2..15 set, bits 0-1 clear
	if result != want {
		t.Errorf("fillWord(inclusive) = %016b, want %016b", result, want)
	}
	if !carry {
		t.Error("carry should be true after crossing one boundary")
	}
}

func TestFillWordExclusiveLeavesBoundaryUnset(t *testing.T) {
	result, _ := fillWord(0x0004, false, true)
	want := uint16(0xFFF8) // boundary bit (2) itself stays unfilled
	if result != want {
		t.Errorf("fillWord(exclusive) = %016b, want %016b", result, want)
	}
}

func TestFillCarryPersistsAcrossWordsWithinARow(t *testing.T) {
	bus := newFakeBus()
	// Row 0: word0 has an opening boundary bit, word1 has the closing one.
	bus.mem[0x2000] = 0x0001 // bit0 set: opens the fill
	bus.mem[0x2002] = 0x0001 // bit0 set: closes the fill

	b := New(bus)
	b.SetLogicFunction(0xF0) // D = A (fill pass applied to the minterm result)
	b.SetChannelA(0x2000, 0, true)
	b.SetChannelD(0x3000, 0)
	b.SetFillMode(true, false)
	b.StartArea(2, 1)

	for i := 0; i < 3; i++ {
		b.Tick()
	}

	// word0: the boundary bit opens the fill, and everything after it to
	// the end of the word is "inside", so word0 comes out all-ones.
	if got := bus.mem[0x3000]; got != 0xFFFF {
		t.Errorf("fill word0 = %016b, want 1111111111111111", got)
	}
	// word1: the carried-in inside flag closes at its own boundary bit, so
	// only that bit is set and the rest of the word is outside again.
	if got := bus.mem[0x3002]; got != 0x0001 {
		t.Errorf("fill word1 = %016b, want 0000000000000001", got)
	}
}

func TestLineDrawHorizontal(t *testing.T) {
	bus := newFakeBus()
	b := New(bus)
	b.SetLogicFunction(0xFC) // D = pixel OR existing word (read-modify-write plot)
	b.SetChannelD(0x4000, 0)
	b.StartLine(0, 0, 4, 0, 1) // 5 pixels along one 16-bit-wide row

	for i := 0; i < 5*4+1; i++ { // +1 for the final delayed D write
		b.Tick()
	}

	if b.Busy() {
		t.Fatal("line draw should have completed")
	}
	got := bus.mem[0x4000]
	want := uint16(0xF800) // bits 15..11 set: x=0..4
	if got != want {
		t.Errorf("line word = %016b, want %016b", got, want)
	}
}

func TestAbsAndSign(t *testing.T) {
	if abs(-5) != 5 || abs(5) != 5 {
		t.Error("abs is wrong")
	}
	if sign(-3) != -1 || sign(3) != 1 || sign(0) != 0 {
		t.Error("sign is wrong")
	}
}
