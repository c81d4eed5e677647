package cpu

// 68010 loop mode (PRM 8.4): when a DBcc's backward branch targets the
// single word immediately preceding it, and that word's instruction does
// not itself transfer control, the CPU stops re-fetching the DBcc opcode
// and the branch displacement on every iteration. Instead it re-executes
// the cached body instruction directly and performs the counter test
// in-place, saving two bus cycles per iteration. This file implements that
// fast path; the normal (non-loop) DBcc handler in ops_branch.go is used
// whenever the shape below doesn't apply or the model is not a 68010.

// loopIneligible marks opcodes that transfer control and therefore cannot
// be the single-instruction body of a loop-mode loop (re-executing them
// without re-fetching DBcc would desynchronize PC).
var loopIneligible [65536]bool

func init() {
	for op := 0; op < 65536; op++ {
		w := uint16(op)
		switch {
		case w>>8 == 0x60: // Bcc/BRA/BSR (0110 ccccdddddddd)
			loopIneligible[op] = true
		case w&0xFFF8 == 0x4E80: // JSR
			loopIneligible[op] = true
		case w&0xFFF8 == 0x4ED0: // JMP
			loopIneligible[op] = true
		case w == 0x4E75: // RTS
			loopIneligible[op] = true
		case w == 0x4E73: // RTE
			loopIneligible[op] = true
		case w == 0x4E77: // RTR
			loopIneligible[op] = true
		case w&0xF0F8 == 0x50C8: // DBcc
			loopIneligible[op] = true
		case w == 0x4E72: // STOP
			loopIneligible[op] = true
		case w&0xFFF0 == 0x4E40: // TRAP
			loopIneligible[op] = true
		case w == 0x4E76: // TRAPV
			loopIneligible[op] = true
		}
	}
}

// tryEnterLoopMode checks whether the DBcc just decoded at c.prevPC, with
// branch displacement disp, is eligible for loop mode. Eligible means the
// model supports it, the branch target is exactly the word preceding the
// DBcc opcode, and that word is not itself a control-transfer instruction.
func (c *CPU) tryEnterLoopMode(disp int16) bool {
	if !c.model.hasLoopMode() {
		return false
	}
	// disp is relative to (address of displacement word); the DBcc opcode
	// word sits 2 bytes before that. A single-instruction body means the
	// target equals prevPC-2 (one word before the DBcc opcode itself).
	target := uint32(int32(c.prevPC) + 2 + int32(disp))
	if target != c.prevPC-2 {
		return false
	}
	bodyOpcode := c.readBus(Word, target)
	if c.halted {
		return false
	}
	if loopIneligible[uint16(bodyOpcode)] {
		return false
	}
	c.loopActive = true
	c.loopPC = target
	return true
}

// stepLoop executes one loop-mode iteration: re-run the cached body
// instruction, then perform the DBcc counter/condition test without
// re-fetching either word. Returns the cycles consumed.
func (c *CPU) stepLoop() int {
	before := c.cycles

	// A taken interrupt ends loop mode. The frame's return address is the
	// body word, so after the handler the loop resumes on the normal fetch
	// path with this iteration not yet run.
	if c.pendingIPL != 0 {
		resumePC := c.reg.PC
		c.reg.PC = c.loopPC
		c.checkInterrupt()
		if c.pendingIPL == 0 {
			c.loopActive = false
			return int(c.cycles - before)
		}
		c.reg.PC = resumePC
	}

	bodyIR := uint16(c.readBus(Word, c.loopPC))
	if c.halted {
		return int(c.cycles - before)
	}
	savedIR, savedPrevPC := c.ir, c.prevPC
	c.ir, c.prevPC = bodyIR, c.loopPC
	if handler := opcodeTable[bodyIR]; handler != nil {
		handler(c)
	}
	c.ir, c.prevPC = savedIR, savedPrevPC

	// DBcc condition/counter test, reusing the cc/Dn encoded in the
	// original DBcc opcode (still latched in c.ir from loop entry).
	cc := (c.ir >> 8) & 0xF
	dn := c.ir & 7

	// The DBcc opcode word sits at loopPC+2 and its displacement word at
	// loopPC+4; the fall-through address (matching the non-loop-mode path,
	// which leaves PC just past both fetched words) is loopPC+6.
	const exitPC = 6

	if c.testCondition(cc) {
		c.loopActive = false
		c.reg.PC = c.loopPC + exitPC
		c.cycles += 4
		return int(c.cycles - before)
	}

	val := int16(c.reg.D[dn]&0xFFFF) - 1
	c.reg.D[dn] = (c.reg.D[dn] & 0xFFFF0000) | uint32(uint16(val))

	if val == -1 {
		c.loopActive = false
		c.reg.PC = c.loopPC + exitPC
		c.cycles += 6
	} else {
		c.cycles += 8
	}
	return int(c.cycles - before)
}
