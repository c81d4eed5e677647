package scheduler

import "testing"

func TestScheduleAbsFiresAtTrigger(t *testing.T) {
	s := New()
	fired := false
	s.RegisterHandler(SlotCopper, func(id EventID, payload uint64) {
		fired = true
		if id != 7 || payload != 42 {
			t.Errorf("id/payload = %d/%d, want 7/42", id, payload)
		}
	})

	s.ScheduleAbs(SlotCopper, 100, 7, 42)
	s.RunUntil(50)
	if fired {
		t.Fatal("fired before trigger cycle")
	}
	if s.Clock() != 50 {
		t.Errorf("clock = %d, want 50", s.Clock())
	}

	s.RunUntil(100)
	if !fired {
		t.Fatal("event did not fire by its trigger cycle")
	}
	if s.Clock() != 100 {
		t.Errorf("clock = %d, want 100", s.Clock())
	}
}

func TestEqualTriggerFiresInSlotOrder(t *testing.T) {
	s := New()
	var order []Slot
	// The scheduler empties each slot before calling its handler; the
	// handlers' own Cancel calls leave it empty. A real handler instead
	// reschedules itself at a later cycle.
	s.RegisterHandler(SlotReg, func(EventID, uint64) {
		order = append(order, SlotReg)
		s.Cancel(SlotReg)
	})
	s.RegisterHandler(SlotBPL, func(EventID, uint64) {
		order = append(order, SlotBPL)
		s.Cancel(SlotBPL)
	})

	s.ScheduleAbs(SlotBPL, 10, 0, 0)
	s.ScheduleAbs(SlotReg, 10, 0, 0)

	s.RunUntil(10)

	if len(order) != 2 || order[0] != SlotReg || order[1] != SlotBPL {
		t.Errorf("fire order = %v, want [SlotReg SlotBPL] (lower slot index first, per spec.md §4.2/E6)", order)
	}
}

func TestScheduleImmRoundsUpToNextDMACycle(t *testing.T) {
	s := New()
	s.SetClock(3)
	s.ScheduleImm(SlotDAS, 1, 0)
	if got := s.Trigger(SlotDAS); got != 8 {
		t.Errorf("trigger = %d, want 8", got)
	}

	s.SetClock(16)
	s.ScheduleImm(SlotDAS, 1, 0)
	if got := s.Trigger(SlotDAS); got != 16 {
		t.Errorf("trigger = %d, want 16 (already on boundary)", got)
	}
}

func TestScheduleIncRelativeToSlot(t *testing.T) {
	s := New()
	s.ScheduleAbs(SlotCopper, 100, 0, 0)
	s.ScheduleInc(SlotCopper, 20, 0, 0)
	if got := s.Trigger(SlotCopper); got != 120 {
		t.Errorf("trigger = %d, want 120", got)
	}
}

func TestScheduleRelToClock(t *testing.T) {
	s := New()
	s.SetClock(500)
	s.ScheduleRel(SlotBlitter, 16, 0, 0)
	if got := s.Trigger(SlotBlitter); got != 516 {
		t.Errorf("trigger = %d, want 516", got)
	}
}

func TestSchedulePosUsesBeamConverter(t *testing.T) {
	s := New()
	s.SetBeamConverter(func(v, h int) int64 { return int64(v*227+h) * 8 })
	s.SchedulePos(SlotBPL, 10, 5, 0, 0)
	want := int64(10*227+5) * 8
	if got := s.Trigger(SlotBPL); got != want {
		t.Errorf("trigger = %d, want %d", got, want)
	}
}

func TestCancelClearsSlot(t *testing.T) {
	s := New()
	s.ScheduleAbs(SlotCIAA, 100, 5, 9)
	s.Cancel(SlotCIAA)
	if s.HasEvent(SlotCIAA) {
		t.Error("HasEvent true after cancel")
	}
	if got := s.Trigger(SlotCIAA); got != Never {
		t.Errorf("trigger = %d, want Never", got)
	}
}

func TestSecondaryTierWakeupInvariant(t *testing.T) {
	s := New()
	s.ScheduleAbs(SlotVBL, 1000, 0, 0)
	if got := s.Trigger(SlotSec); got != 1000 {
		t.Errorf("SlotSec trigger = %d, want 1000 after scheduling SlotVBL", got)
	}

	s.ScheduleAbs(SlotIRQ, 500, 0, 0)
	if got := s.Trigger(SlotSec); got != 500 {
		t.Errorf("SlotSec trigger = %d, want 500 (min of secondary slots)", got)
	}
}

func TestTertiaryTierWakeupCascadesToSecondary(t *testing.T) {
	s := New()
	s.ScheduleAbs(SlotAlarm, 2000, 0, 0)
	if got := s.Trigger(SlotTer); got != 2000 {
		t.Errorf("SlotTer trigger = %d, want 2000", got)
	}
	if got := s.Trigger(SlotSec); got != 2000 {
		t.Errorf("SlotSec trigger = %d, want 2000 (cascaded from SlotTer)", got)
	}
}

func TestSecondaryEventFiresThroughSentinel(t *testing.T) {
	s := New()
	fired := false
	s.RegisterHandler(SlotVBL, func(id EventID, payload uint64) {
		fired = true
		if id != 3 {
			t.Errorf("id = %d, want 3", id)
		}
	})
	s.ScheduleAbs(SlotVBL, 300, 3, 0)

	s.RunUntil(300)
	if !fired {
		t.Fatal("secondary event never fired")
	}
}

func TestTertiaryEventFiresThroughBothSentinels(t *testing.T) {
	s := New()
	fired := false
	s.RegisterHandler(SlotAlarm, func(id EventID, payload uint64) { fired = true })
	s.ScheduleAbs(SlotAlarm, 700, 0, 0)

	s.RunUntil(700)
	if !fired {
		t.Fatal("tertiary event never fired")
	}
}

func TestRescheduleFromWithinHandler(t *testing.T) {
	s := New()
	count := 0
	s.RegisterHandler(SlotCopper, func(EventID, uint64) {
		count++
		if count < 5 {
			s.ScheduleRel(SlotCopper, 10, 0, 0)
		}
	})
	s.ScheduleAbs(SlotCopper, 10, 0, 0)
	s.RunUntil(1000)

	if count != 5 {
		t.Errorf("fired %d times, want 5", count)
	}
}

func TestRegisterReservedSlotPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic registering SlotSec")
		}
	}()
	New().RegisterHandler(SlotSec, func(EventID, uint64) {})
}
