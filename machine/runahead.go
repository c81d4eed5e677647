package machine

import (
	"fmt"

	"github.com/amiga68k/core/debug"
	"github.com/amiga68k/core/snapshot"
)

// RunAhead pairs a primary Machine with a replica advanced syncEvery
// frames beyond it, per spec.md's run-ahead design: the two instances
// never share state directly, the primary's own frame output is
// discarded, and the replica's frame is what gets shown. State flows
// one way, primary to replica, via an uncompressed snapshot copy — the
// fast path spec.md calls for, as opposed to Save's default gzip
// framing meant for on-disk snapshots.
type RunAhead struct {
	Primary *Machine
	Replica *Machine

	// frames is how far ahead of the primary the replica runs.
	frames int
}

// NewRunAhead builds a RunAhead pair. The replica is synced from the
// primary once immediately, then run frames frames ahead so its output
// is already caught up by the time the caller asks for it.
func NewRunAhead(primary, replica *Machine, frames int) (*RunAhead, error) {
	r := &RunAhead{Primary: primary, Replica: replica, frames: frames}
	if err := r.resync(); err != nil {
		return nil, err
	}
	for i := 0; i < frames; i++ {
		r.Replica.RunFrame()
	}
	return r, nil
}

// Advance steps the primary one frame, resyncs the replica from the
// primary's new state, then runs the replica frames frames forward
// again so it stays frames ahead. It returns the replica's stop reason,
// since the replica's frame is the one actually displayed.
func (r *RunAhead) Advance() (debug.StopReason, error) {
	r.Primary.RunFrame()
	if err := r.resync(); err != nil {
		return debug.StopNone, err
	}
	var reason debug.StopReason
	for i := 0; i < r.frames; i++ {
		reason = r.Replica.RunFrame()
		if reason != debug.StopNone {
			break
		}
	}
	return reason, nil
}

// resync copies the primary's complete state into the replica using an
// uncompressed snapshot, cheap enough to run every frame.
func (r *RunAhead) resync() error {
	buf, err := r.Primary.Save(snapshot.CompressorNone)
	if err != nil {
		return fmt.Errorf("machine: run-ahead resync: %w", err)
	}
	if err := r.Replica.Load(buf); err != nil {
		return fmt.Errorf("machine: run-ahead resync: %w", err)
	}
	return nil
}
