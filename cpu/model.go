package cpu

// Model selects the instruction set, exception-frame shape, and timing
// table used by the CPU. Only 68000 and 68010 are cycle-accurate; 68EC020
// is opcode-accurate only (spec.md DESIGN NOTES, "Open questions").
type Model int

const (
	M68000 Model = iota
	M68010
	M68EC020
)

// String returns the conventional marketing name for the model.
func (m Model) String() string {
	switch m {
	case M68000:
		return "68000"
	case M68010:
		return "68010"
	case M68EC020:
		return "68EC020"
	default:
		return "unknown"
	}
}

// hasVBR reports whether the model has a vector base register and
// function-code registers (68010 and later).
func (m Model) hasVBR() bool {
	return m >= M68010
}

// hasLoopMode reports whether the model implements the DBcc loop-mode
// fast path that reuses a single bus prefetch across iterations.
func (m Model) hasLoopMode() bool {
	return m == M68010
}

// hasLongBusFault reports whether bus/address errors push the extended
// 68010 format-8 frame (status word, access address, IR, read/write
// buffers) instead of the 68000's throwaway format.
func (m Model) hasLongBusFault() bool {
	return m == M68010
}
