// Package scheduler maintains a single ordered "next trigger" across all
// chipset event slots and dispatches events at their trigger cycle, in slot
// order on ties.
//
// Slots are grouped into three priority tiers — primary, secondary, and
// tertiary — so the hot dispatch loop only has to scan the handful of
// primary slots on every call. Secondary slots are examined only when a
// wakeup sentinel fires in SlotSec (a primary slot); tertiary slots only
// when a wakeup fires in SlotTer (a secondary slot). Scheduling an event in
// a secondary or tertiary slot automatically arranges for its tier's
// sentinel to hold a trigger no later than the event's own trigger.
package scheduler

import "math"

// Slot identifies one event slot. At most one event is pending per slot.
type Slot int

const (
	// SlotReg is numerically first so that, on a tied trigger, a pending
	// register write takes effect before any same-cycle DMA (spec.md
	// §4.2; scenario E6) — minSlot's tie-break picks the lowest index.
	SlotReg Slot = iota
	SlotCIAA
	SlotCIAB
	SlotBPL
	SlotDAS
	SlotCopper
	SlotBlitter
	SlotSec // wakeup sentinel for the secondary tier
	numPrimarySlots
)

const (
	SlotVBL Slot = numPrimarySlots + iota
	SlotIRQ
	SlotTer // wakeup sentinel for the tertiary tier
	numSecondarySlotsRel
)

const (
	SlotAlarm Slot = numPrimarySlots + numSecondarySlotsRel + iota
	SlotInspection
	numTertiarySlotsRel
)

// NumSlots is the total number of event slots across all tiers.
const NumSlots = numPrimarySlots + numSecondarySlotsRel + numTertiarySlotsRel

// Never is the trigger value of an inactive slot.
const Never int64 = math.MaxInt64

// EventID is a slot-local event enumeration; its meaning is defined by the
// component that owns the slot.
type EventID int64

// Handler processes a fired event, typically rescheduling itself.
type Handler func(id EventID, payload uint64)

// BeamConverter maps a beam position (v, h) to the master cycle at which
// the beam reaches it. Supplied by the component that owns beam geometry
// (the DMA arbiter); SchedulePos panics if none is installed.
type BeamConverter func(v, h int) int64

// Scheduler is the chipset-wide event dispatch engine. The zero value is
// not usable; construct with New.
type Scheduler struct {
	clock   int64
	trigger [NumSlots]int64
	id      [NumSlots]EventID
	payload [NumSlots]uint64
	handler [NumSlots]Handler
	beam    BeamConverter
}

// New returns a Scheduler with every slot inactive.
func New() *Scheduler {
	s := &Scheduler{}
	for i := range s.trigger {
		s.trigger[i] = Never
	}
	return s
}

// Clock returns the current master cycle.
func (s *Scheduler) Clock() int64 { return s.clock }

// SetClock forces the master clock, used only by reset/snapshot restore.
func (s *Scheduler) SetClock(cycle int64) { s.clock = cycle }

// SetBeamConverter installs the beam-to-cycle mapping used by SchedulePos.
func (s *Scheduler) SetBeamConverter(f BeamConverter) { s.beam = f }

// RegisterHandler binds a slot to the function invoked when it fires.
// SlotSec and SlotTer are reserved wakeup sentinels and may not be
// registered; scheduling into their tiers drives them automatically.
func (s *Scheduler) RegisterHandler(slot Slot, h Handler) {
	if slot == SlotSec || slot == SlotTer {
		panic("scheduler: SlotSec/SlotTer are reserved wakeup sentinels")
	}
	s.handler[slot] = h
}

// dmaCycleMasterLen is the number of master cycles per DMA cycle (§3).
const dmaCycleMasterLen = 8

// ScheduleAbs sets slot to trigger at the given absolute master cycle.
func (s *Scheduler) ScheduleAbs(slot Slot, cycle int64, id EventID, payload uint64) {
	s.setTrigger(slot, cycle, id, payload)
}

// ScheduleImm sets slot to trigger at the next DMA cycle boundary at or
// after the current clock.
func (s *Scheduler) ScheduleImm(slot Slot, id EventID, payload uint64) {
	next := s.clock
	if rem := next % dmaCycleMasterLen; rem != 0 {
		next += dmaCycleMasterLen - rem
	}
	s.setTrigger(slot, next, id, payload)
}

// ScheduleInc sets slot to trigger delta master cycles after its own
// current trigger, or after the current clock when the slot is inactive.
func (s *Scheduler) ScheduleInc(slot Slot, delta int64, id EventID, payload uint64) {
	base := s.trigger[slot]
	if base == Never {
		base = s.clock
	}
	s.setTrigger(slot, base+delta, id, payload)
}

// ScheduleRel sets slot to trigger delta master cycles after the current
// clock.
func (s *Scheduler) ScheduleRel(slot Slot, delta int64, id EventID, payload uint64) {
	s.setTrigger(slot, s.clock+delta, id, payload)
}

// SchedulePos sets slot to trigger at the master cycle corresponding to
// beam position (v, h), using the installed BeamConverter.
func (s *Scheduler) SchedulePos(slot Slot, v, h int, id EventID, payload uint64) {
	if s.beam == nil {
		panic("scheduler: SchedulePos called with no BeamConverter installed")
	}
	s.setTrigger(slot, s.beam(v, h), id, payload)
}

// Cancel empties slot: trigger becomes Never, id and payload are cleared.
func (s *Scheduler) Cancel(slot Slot) {
	s.setTrigger(slot, Never, 0, 0)
}

// HasEvent reports whether slot currently holds a pending event.
func (s *Scheduler) HasEvent(slot Slot) bool {
	return s.trigger[slot] != Never
}

// Trigger returns slot's current trigger cycle (Never if inactive).
func (s *Scheduler) Trigger(slot Slot) int64 { return s.trigger[slot] }

func (s *Scheduler) setTrigger(slot Slot, cycle int64, id EventID, payload uint64) {
	s.trigger[slot] = cycle
	s.id[slot] = id
	s.payload[slot] = payload

	switch tierOf(slot) {
	case tierSecondary:
		s.recomputeSecWakeup()
	case tierTertiary:
		s.recomputeTerWakeup()
	}
}

type tier int

const (
	tierPrimary tier = iota
	tierSecondary
	tierTertiary
)

func tierOf(slot Slot) tier {
	switch {
	case slot < numPrimarySlots:
		return tierPrimary
	case slot < numPrimarySlots+numSecondarySlotsRel:
		return tierSecondary
	default:
		return tierTertiary
	}
}

func (s *Scheduler) recomputeSecWakeup() {
	min := Never
	for slot := numPrimarySlots; slot < numPrimarySlots+numSecondarySlotsRel; slot++ {
		if t := s.trigger[slot]; t < min {
			min = t
		}
	}
	s.trigger[SlotSec] = min
}

func (s *Scheduler) recomputeTerWakeup() {
	min := Never
	for slot := numPrimarySlots + numSecondarySlotsRel; slot < NumSlots; slot++ {
		if t := s.trigger[slot]; t < min {
			min = t
		}
	}
	s.trigger[SlotTer] = min
	s.recomputeSecWakeup()
}

// RunUntil advances the master clock, firing every due primary-tier event
// (recursing into secondary/tertiary tiers through SlotSec/SlotTer) until
// the next trigger exceeds target, at which point the clock is set to
// target and control returns.
func (s *Scheduler) RunUntil(target int64) {
	for {
		slot, t := s.minSlot(0, numPrimarySlots)
		if t > target {
			s.clock = target
			return
		}
		s.clock = t
		s.fire(slot)
	}
}

// minSlot finds the slot with the smallest trigger in [lo, hi), breaking
// ties by the lowest slot index.
func (s *Scheduler) minSlot(lo, hi Slot) (Slot, int64) {
	best := lo
	bestTrigger := s.trigger[lo]
	for slot := lo + 1; slot < hi; slot++ {
		if s.trigger[slot] < bestTrigger {
			best = slot
			bestTrigger = s.trigger[slot]
		}
	}
	return best, bestTrigger
}

func (s *Scheduler) fire(slot Slot) {
	switch slot {
	case SlotSec:
		s.serviceSec()
	case SlotTer:
		s.serviceTer()
	default:
		// The slot is emptied before its handler runs, so an event fires
		// once unless the handler reschedules it.
		id, payload := s.id[slot], s.payload[slot]
		s.Cancel(slot)
		if h := s.handler[slot]; h != nil {
			h(id, payload)
		}
	}
}

// serviceSec dispatches the secondary-tier event that is actually due (the
// one SlotSec's trigger was tracking) and recomputes the wakeup.
func (s *Scheduler) serviceSec() {
	slot, t := s.minSlot(numPrimarySlots, numPrimarySlots+numSecondarySlotsRel)
	if t > s.clock {
		// SlotSec woke up but nothing in the secondary tier is due yet
		// (can happen after a cancellation); just refresh the wakeup.
		s.recomputeSecWakeup()
		return
	}
	s.fire(slot)
	s.recomputeSecWakeup()
}

// serviceTer dispatches the tertiary-tier event that is actually due and
// recomputes the wakeup.
func (s *Scheduler) serviceTer() {
	slot, t := s.minSlot(numPrimarySlots+numSecondarySlotsRel, NumSlots)
	if t > s.clock {
		s.recomputeTerWakeup()
		return
	}
	s.fire(slot)
	s.recomputeTerWakeup()
}
