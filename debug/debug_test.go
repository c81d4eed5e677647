package debug

import "testing"

func TestSetAtAndMatches(t *testing.T) {
	var l List
	if err := l.SetAt(0x1000, 0); err != nil {
		t.Fatalf("SetAt: %v", err)
	}
	if !l.Matches(0x1000) {
		t.Error("guard at 0x1000 should match")
	}
	if l.Matches(0x2000) {
		t.Error("no guard at 0x2000")
	}
}

func TestSetAtRejectsDuplicateTarget(t *testing.T) {
	var l List
	l.SetAt(0x1000, 0)
	if err := l.SetAt(0x1000, 0); err != ErrAlreadySet {
		t.Errorf("err = %v, want ErrAlreadySet", err)
	}
}

func TestSkipCountDelaysTrigger(t *testing.T) {
	var l List
	l.SetAt(0x1000, 2) // ignore the first 2 hits

	if l.Matches(0x1000) {
		t.Error("1st hit should be ignored")
	}
	if l.Matches(0x1000) {
		t.Error("2nd hit should be ignored")
	}
	if !l.Matches(0x1000) {
		t.Error("3rd hit should trigger")
	}
	// Hit count resets after triggering.
	if l.Matches(0x1000) {
		t.Error("hit count should have reset after triggering")
	}
}

func TestDisabledGuardNeverMatches(t *testing.T) {
	var l List
	l.SetAt(0x1000, 0)
	l.DisableAt(0x1000)

	if l.Matches(0x1000) {
		t.Error("disabled guard should never match")
	}
	if l.NeedsCheck() {
		t.Error("NeedsCheck should be false when every guard is disabled")
	}
}

func TestEnableAtReenablesGuard(t *testing.T) {
	var l List
	l.SetAt(0x1000, 0)
	l.DisableAt(0x1000)
	l.EnableAt(0x1000)

	if !l.Matches(0x1000) {
		t.Error("guard should match again once re-enabled")
	}
}

func TestRemoveAtDeletesGuard(t *testing.T) {
	var l List
	l.SetAt(0x1000, 0)
	if err := l.RemoveAt(0x1000); err != nil {
		t.Fatalf("RemoveAt: %v", err)
	}
	if l.Matches(0x1000) {
		t.Error("removed guard should not match")
	}
	if err := l.RemoveAt(0x1000); err != ErrNotFound {
		t.Errorf("second RemoveAt err = %v, want ErrNotFound", err)
	}
}

func TestToggleFlipsEnabledState(t *testing.T) {
	var l List
	l.SetAt(0x1000, 0)
	l.Toggle(0)
	if l.Matches(0x1000) {
		t.Error("toggled-off guard should not match")
	}
	l.Toggle(0)
	if !l.Matches(0x1000) {
		t.Error("toggled-on guard should match")
	}
}

func TestNeedsCheckFastPath(t *testing.T) {
	var l List
	if l.NeedsCheck() {
		t.Error("empty list should not need checking")
	}
	l.SetAt(0x1000, 0)
	if !l.NeedsCheck() {
		t.Error("list with an enabled guard should need checking")
	}
}

func TestDebuggerClassifiesStopReasons(t *testing.T) {
	d := New()
	d.Breakpoints.SetAt(0x4000, 0)
	d.Watchpoints.SetAt(0xDFF180, 0)
	d.Catchpoints.SetAt(uint32(4), 0) // illegal instruction vector
	d.Beamtraps.SetAt(PackBeam(100, 50), 0)

	if reason, hit := d.CheckPC(0x4000); !hit || reason != StopBreakpoint {
		t.Errorf("CheckPC = %v/%v, want StopBreakpoint/true", reason, hit)
	}
	if reason, hit := d.CheckMemoryAccess(0xDFF180); !hit || reason != StopWatchpoint {
		t.Errorf("CheckMemoryAccess = %v/%v, want StopWatchpoint/true", reason, hit)
	}
	if reason, hit := d.CheckException(4); !hit || reason != StopCatchpoint {
		t.Errorf("CheckException = %v/%v, want StopCatchpoint/true", reason, hit)
	}
	if reason, hit := d.CheckBeam(100, 50); !hit || reason != StopBeamtrap {
		t.Errorf("CheckBeam = %v/%v, want StopBeamtrap/true", reason, hit)
	}
	if reason, hit := d.CheckBeam(100, 51); hit || reason != StopNone {
		t.Errorf("CheckBeam(non-matching) = %v/%v, want StopNone/false", reason, hit)
	}
}

func TestDebuggerNeedsCheckAggregatesAllLists(t *testing.T) {
	d := New()
	if d.NeedsCheck() {
		t.Error("fresh Debugger should not need checking")
	}
	d.Beamtraps.SetAt(PackBeam(0, 0), 0)
	if !d.NeedsCheck() {
		t.Error("Debugger should need checking once any list has a guard")
	}
}
