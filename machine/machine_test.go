package machine

import (
	"testing"

	"github.com/amiga68k/core/config"
	"github.com/amiga68k/core/debug"
	"github.com/amiga68k/core/register"
	"github.com/amiga68k/core/snapshot"
)

// minimalKickstart builds a tiny ROM image with a valid reset vector
// (SSP, then PC pointing at an infinite BRA.S loop) so New/RunFrame have
// something real to execute without needing an actual Kickstart dump.
func minimalKickstart() []byte {
	rom := make([]byte, 0x400)
	const entry = kickstartBase + 0x100
	rom[0], rom[1], rom[2], rom[3] = 0x00, 0x01, 0x00, 0x00 // SSP
	rom[4] = byte(entry >> 24)
	rom[5] = byte(entry >> 16)
	rom[6] = byte(entry >> 8)
	rom[7] = byte(entry)
	rom[0x100] = 0x60 // BRA.S -2 (infinite loop at the entry point)
	rom[0x101] = 0xFE
	return rom
}

func newTestMachine(t *testing.T) *Machine {
	t.Helper()
	cfg := &config.Config{SnapshotCompressor: snapshot.CompressorGzip}
	m, err := New(cfg, minimalKickstart())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestNewWiresMachine(t *testing.T) {
	m := newTestMachine(t)
	if m.CPU == nil || m.Scheduler == nil || m.Mem == nil || m.Chipset == nil ||
		m.Copper == nil || m.Blitter == nil || m.Registers == nil || m.IRQ == nil || m.Debug == nil {
		t.Fatal("New left a component nil")
	}
	want := uint32(kickstartBase + 0x100)
	if pc := m.CPU.Registers().PC; pc != want {
		t.Errorf("reset PC = %#x, want %#x", pc, want)
	}
}

func TestOnRegisterApplyRoutesDMACON(t *testing.T) {
	m := newTestMachine(t)
	m.Registers.ApplyImmediate(register.RegDMACON, 0x8200, register.AccessorAgnus)
	if got := m.Chipset.DMACON(); got != 0x0200 {
		t.Errorf("DMACON = %#x, want %#x", got, 0x0200)
	}
	m.Registers.ApplyImmediate(register.RegDMACON, 0x0200, register.AccessorAgnus)
	if got := m.Chipset.DMACON(); got != 0x0000 {
		t.Errorf("DMACON after clear = %#x, want 0", got)
	}
}

func TestOnRegisterApplyRoutesCopperPointers(t *testing.T) {
	m := newTestMachine(t)
	m.Registers.ApplyImmediate(register.RegCOP1LCH, 0x0012, register.AccessorAgnus)
	m.Registers.ApplyImmediate(register.RegCOP1LCL, 0x3400, register.AccessorAgnus)
	m.Registers.ApplyImmediate(register.RegCOPJMP1, 0, register.AccessorAgnus)
	if pc := m.Copper.PC(); pc != 0x00123400 {
		t.Errorf("Copper PC = %#x, want %#x", pc, 0x00123400)
	}
}

func TestOnRegisterApplyRoutesIRQ(t *testing.T) {
	m := newTestMachine(t)
	m.Registers.ApplyImmediate(register.RegINTENA, 0x8000|0x4000, register.AccessorAgnus) // set INTEN
	m.Registers.ApplyImmediate(register.RegINTREQ, 0x8000|0x0020, register.AccessorAgnus) // set VERTB
	if lvl := m.IRQ.Level(); lvl == 0 {
		t.Error("IRQ level is 0 after raising an enabled, unmasked interrupt")
	}
}

func TestOnRegisterApplyRoutesBitplanePointer(t *testing.T) {
	m := newTestMachine(t)
	m.Registers.ApplyImmediate(register.RegBPL1PTH, 0x0001, register.AccessorAgnus)
	m.Registers.ApplyImmediate(register.RegBPL1PTL, 0x2000, register.AccessorAgnus)
	// SetBitplanePointer is exercised indirectly: no getter is exposed on
	// chipset.Arbiter beyond what DMA itself consumes, so this just
	// confirms the write doesn't panic and routes through applyPointerReg.
}

func TestRunFrameCompletesAndRaisesVERTB(t *testing.T) {
	m := newTestMachine(t)
	// Enable the master bit and VERTB so the frame-wrap Raise actually
	// surfaces as a nonzero IPL; INTENA starts at 0 after reset.
	m.Registers.ApplyImmediate(register.RegINTENA, 0x8000|0x4000|0x0020, register.AccessorAgnus)
	before := m.FrameCount()
	if reason := m.RunFrame(); reason != debug.StopNone {
		// Any non-default stop reason would mean a breakpoint/watchpoint
		// fired unexpectedly; none were installed.
		t.Fatalf("RunFrame stopped early: %v", reason)
	}
	if m.FrameCount() != before+1 {
		t.Errorf("FrameCount = %d, want %d", m.FrameCount(), before+1)
	}
	if m.IRQ.Level() == 0 {
		t.Error("expected VERTB to raise an IRQ level after a completed frame")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m := newTestMachine(t)
	m.Registers.ApplyImmediate(register.RegDMACON, 0x8200, register.AccessorAgnus)
	m.RunFrame()

	buf, err := m.Save(snapshot.CompressorNone)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	restored := newTestMachine(t)
	if err := restored.Load(buf); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if restored.Chipset.DMACON() != m.Chipset.DMACON() {
		t.Errorf("DMACON after round trip = %#x, want %#x", restored.Chipset.DMACON(), m.Chipset.DMACON())
	}
	if restored.FrameCount() != m.FrameCount() {
		t.Errorf("FrameCount after round trip = %d, want %d", restored.FrameCount(), m.FrameCount())
	}
	if restored.CPU.Registers().PC != m.CPU.Registers().PC {
		t.Errorf("PC after round trip = %#x, want %#x", restored.CPU.Registers().PC, m.CPU.Registers().PC)
	}
}

func TestRunAheadAdvancesReplicaAheadOfPrimary(t *testing.T) {
	primary := newTestMachine(t)
	replica := newTestMachine(t)

	ra, err := NewRunAhead(primary, replica, 2)
	if err != nil {
		t.Fatalf("NewRunAhead: %v", err)
	}
	if replica.FrameCount() != 2 {
		t.Fatalf("replica FrameCount after construction = %d, want 2", replica.FrameCount())
	}
	if _, err := ra.Advance(); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if primary.FrameCount() != 1 {
		t.Errorf("primary FrameCount = %d, want 1", primary.FrameCount())
	}
	if replica.FrameCount() != 3 {
		t.Errorf("replica FrameCount = %d, want 3", replica.FrameCount())
	}
}
