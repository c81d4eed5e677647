// Package debug implements the breakpoint/watchpoint/catchpoint/
// beamtrap guard lists checked at instruction boundaries and memory
// accesses (spec.md §5's "classified stop reason").
//
// Grounded on Amiga/Computer/Moira/MoiraGuard.cpp (the Guard type and
// its skip-count semantics) and Emulator/VAmiga/Foundation/GuardList.cpp
// (the enable/disable/ignore/remove API shape and the needsCheck
// fast-path flag). The legacy Observer type's constructor, which
// auto-inserted and immediately removed a few hardcoded watchpoints, is
// deliberately not ported — nothing in this core depends on that
// scaffolding, and spec.md's own Open Questions note flags it as
// leftover.
package debug

import "fmt"

// Guard is one breakpoint/watchpoint/catchpoint/beamtrap: it fires once
// Target has been hit more than Ignore times, then resets its hit count.
type Guard struct {
	Target  uint32
	Enabled bool
	Ignore  int

	hits int
}

func (g *Guard) matches(target uint32) bool {
	if g.Target != target || !g.Enabled {
		return false
	}
	g.hits++
	if g.hits > g.Ignore {
		g.hits = 0
		return true
	}
	return false
}

// List is an ordered collection of guards of one kind (all breakpoints,
// or all watchpoints, etc).
type List struct {
	guards     []Guard
	needsCheck bool
}

// ErrAlreadySet is returned by SetAt when a guard already exists at target.
var ErrAlreadySet = fmt.Errorf("debug: guard already set at this target")

// ErrNotFound is returned when a guard index or target does not exist.
var ErrNotFound = fmt.Errorf("debug: no guard found")

// SetAt installs a new enabled guard at target, firing only after it has
// been hit more than ignore times.
func (l *List) SetAt(target uint32, ignore int) error {
	if _, ok := l.indexAt(target); ok {
		return ErrAlreadySet
	}
	l.guards = append(l.guards, Guard{Target: target, Enabled: true, Ignore: ignore})
	l.update()
	return nil
}

// GuardAt returns the guard installed at target, if any.
func (l *List) GuardAt(target uint32) (Guard, bool) {
	i, ok := l.indexAt(target)
	if !ok {
		return Guard{}, false
	}
	return l.guards[i], true
}

// GuardNr returns the nr-th guard in insertion order.
func (l *List) GuardNr(nr int) (Guard, bool) {
	if nr < 0 || nr >= len(l.guards) {
		return Guard{}, false
	}
	return l.guards[nr], true
}

// Remove deletes the nr-th guard.
func (l *List) Remove(nr int) error {
	if nr < 0 || nr >= len(l.guards) {
		return ErrNotFound
	}
	l.guards = append(l.guards[:nr], l.guards[nr+1:]...)
	l.update()
	return nil
}

// RemoveAt deletes the guard installed at target.
func (l *List) RemoveAt(target uint32) error {
	i, ok := l.indexAt(target)
	if !ok {
		return ErrNotFound
	}
	return l.Remove(i)
}

// RemoveAll clears every guard in the list.
func (l *List) RemoveAll() {
	l.guards = nil
	l.update()
}

// Enable/Disable toggle the nr-th guard without removing it.
func (l *List) Enable(nr int) error  { return l.setEnabled(nr, true) }
func (l *List) Disable(nr int) error { return l.setEnabled(nr, false) }

func (l *List) setEnabled(nr int, value bool) error {
	if nr < 0 || nr >= len(l.guards) {
		return ErrNotFound
	}
	l.guards[nr].Enabled = value
	l.update()
	return nil
}

// EnableAt/DisableAt do the same by target address.
func (l *List) EnableAt(target uint32) error  { return l.setEnabledAt(target, true) }
func (l *List) DisableAt(target uint32) error { return l.setEnabledAt(target, false) }

func (l *List) setEnabledAt(target uint32, value bool) error {
	i, ok := l.indexAt(target)
	if !ok {
		return ErrNotFound
	}
	return l.setEnabled(i, value)
}

// EnableAll/DisableAll affect every guard in the list at once.
func (l *List) EnableAll()  { l.setAllEnabled(true) }
func (l *List) DisableAll() { l.setAllEnabled(false) }

func (l *List) setAllEnabled(value bool) {
	for i := range l.guards {
		l.guards[i].Enabled = value
	}
	l.update()
}

// Toggle flips the nr-th guard's enabled state.
func (l *List) Toggle(nr int) error {
	if nr < 0 || nr >= len(l.guards) {
		return ErrNotFound
	}
	return l.setEnabled(nr, !l.guards[nr].Enabled)
}

// SetIgnore changes the nr-th guard's skip count.
func (l *List) SetIgnore(nr int, count int) error {
	if nr < 0 || nr >= len(l.guards) {
		return ErrNotFound
	}
	l.guards[nr].Ignore = count
	return nil
}

// NeedsCheck reports whether any guard in the list is enabled — the
// fast-path the caller tests before doing a per-access lookup.
func (l *List) NeedsCheck() bool { return l.needsCheck }

// Matches reports whether target trips any enabled guard in the list,
// applying each guard's skip count.
func (l *List) Matches(target uint32) bool {
	if !l.needsCheck {
		return false
	}
	hit := false
	for i := range l.guards {
		if l.guards[i].matches(target) {
			hit = true
		}
	}
	return hit
}

func (l *List) indexAt(target uint32) (int, bool) {
	for i := range l.guards {
		if l.guards[i].Target == target {
			return i, true
		}
	}
	return 0, false
}

func (l *List) update() {
	l.needsCheck = false
	for i := range l.guards {
		if l.guards[i].Enabled {
			l.needsCheck = true
			break
		}
	}
}

// StopReason classifies why the core returned control to its caller.
type StopReason int

const (
	StopNone StopReason = iota
	StopBreakpoint
	StopWatchpoint
	StopCatchpoint
	StopBeamtrap
)

func (r StopReason) String() string {
	switch r {
	case StopNone:
		return "none"
	case StopBreakpoint:
		return "breakpoint"
	case StopWatchpoint:
		return "watchpoint"
	case StopCatchpoint:
		return "catchpoint"
	case StopBeamtrap:
		return "beamtrap"
	default:
		return "unknown"
	}
}

// Debugger bundles the four guard kinds the owning container consults:
// breakpoints (PC at an instruction boundary), watchpoints (memory
// address on access), catchpoints (exception vector number), and
// beamtraps (beam position, packed as V<<16|H).
type Debugger struct {
	Breakpoints List
	Watchpoints List
	Catchpoints List
	Beamtraps   List
}

// New returns a Debugger with no guards installed.
func New() *Debugger { return &Debugger{} }

// CheckPC is called at every instruction boundary.
func (d *Debugger) CheckPC(pc uint32) (StopReason, bool) {
	if d.Breakpoints.Matches(pc) {
		return StopBreakpoint, true
	}
	return StopNone, false
}

// CheckMemoryAccess is called at every CPU memory access.
func (d *Debugger) CheckMemoryAccess(addr uint32) (StopReason, bool) {
	if d.Watchpoints.Matches(addr) {
		return StopWatchpoint, true
	}
	return StopNone, false
}

// CheckException is called whenever the CPU is about to take an
// exception, keyed by its vector number.
func (d *Debugger) CheckException(vector int) (StopReason, bool) {
	if d.Catchpoints.Matches(uint32(vector)) {
		return StopCatchpoint, true
	}
	return StopNone, false
}

// PackBeam encodes a (v, h) beam position into a Beamtrap target.
func PackBeam(v, h int) uint32 { return uint32(v)<<16 | uint32(h&0xFFFF) }

// CheckBeam is called once per beam position advance.
func (d *Debugger) CheckBeam(v, h int) (StopReason, bool) {
	if d.Beamtraps.Matches(PackBeam(v, h)) {
		return StopBeamtrap, true
	}
	return StopNone, false
}

// NeedsCheck reports whether any guard list has at least one enabled
// guard — callers can skip all four Check* calls when this is false.
func (d *Debugger) NeedsCheck() bool {
	return d.Breakpoints.NeedsCheck() || d.Watchpoints.NeedsCheck() ||
		d.Catchpoints.NeedsCheck() || d.Beamtraps.NeedsCheck()
}
