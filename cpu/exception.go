package cpu

import "log"

// MC68000 exception vector numbers.
const (
	vecResetSSP           = 0
	vecResetPC            = 1
	vecBusError           = 2
	vecAddressError       = 3
	vecIllegalInstruction = 4
	vecDivideByZero       = 5
	vecCHK                = 6
	vecTRAPV              = 7
	vecPrivilegeViolation = 8
	vecTrace              = 9
	vecLineA              = 10
	vecLineF              = 11
	vecUninitialized      = 15
	vecSpuriousInterrupt  = 24
	vecAutoVector1        = 25
	vecTrap0              = 32 // TRAP #0 through TRAP #15 = vectors 32-47
)

// faultInfo carries the extra fields a bus/address-error frame needs
// (special status word, faulting address, and for 68010 the read/write
// buffer snapshot). Its zero value means "no fault in flight": ordinary
// exceptions (TRAP, interrupts, illegal instruction) don't populate it.
type faultInfo struct {
	active   bool
	ssw      uint16 // special status word: R/W, function code, size
	addr     uint32
	readIR   uint16
	readBuf  uint16
	writeBuf uint16
}

// exception processes an exception: enters supervisor mode, pushes the
// return frame (format depends on model and vector), reads the vector
// from VBR + 4*vector, and jumps there. A nested exception raised while
// reading the vector (the target and the uninitialized-vector slot are
// both 0) is a double fault and halts the CPU per spec.md §4.1.
func (c *CPU) exception(vector int) {
	c.exceptionFault(vector, faultInfo{})
}

// exceptionFault is exception() with bus/address-error fault detail
// attached, used to build the extended format-2/format-8 frames.
func (c *CPU) exceptionFault(vector int, fault faultInfo) {
	// Log error exceptions (vectors 2-11) for diagnostics
	if vector >= vecBusError && vector <= vecLineF {
		log.Printf("[cpu] exception %d at PC=%06x SR=%04x", vector, c.reg.PC, c.reg.SR)
	}

	// Determine the PC to push. For group 1 fault exceptions (illegal
	// instruction, privilege violation, Line-A, Line-F, bus/address
	// error), the 68000 pushes the address of the faulting instruction.
	// For all other exceptions (group 2: TRAP, TRAPV, CHK, divide-by-zero;
	// and interrupts/trace), it pushes the next instruction address.
	pushPC := c.reg.PC
	switch vector {
	case vecIllegalInstruction, vecPrivilegeViolation, vecLineA, vecLineF,
		vecBusError, vecAddressError:
		pushPC = c.prevPC
	}

	oldSR := c.reg.SR

	// Enter supervisor mode, clear trace
	if c.reg.SR&flagS == 0 {
		c.reg.USP = c.reg.A[7]
		c.reg.A[7] = c.reg.SSP
	}
	c.reg.SR = (c.reg.SR | flagS) & ^flagT

	c.pushExceptionFrame(vector, pushPC, oldSR, fault)

	addr := c.readVector(vector)
	if addr == 0 {
		// Uninitialized vector: try the uninitialized-interrupt vector
		addr = c.readVector(vecUninitialized)
		if addr == 0 {
			// Double fault on uninitialized vectors: halt
			c.halted = true
			return
		}
	}
	c.reg.PC = addr

	c.cycles += 34
}

// readVector reads the 32-bit handler address from VBR + 4*vector. VBR is
// always 0 on the 68000; 68010+ lets the OS relocate the vector table.
func (c *CPU) readVector(vector int) uint32 {
	base := uint32(0)
	if c.model.hasVBR() {
		base = c.reg.VBR
	}
	return c.readBus(Long, base+uint32(vector)*4)
}

// pushExceptionFrame pushes the stack frame appropriate to the model and
// exception kind (spec.md §3 Exception-stack-frame). The 68000 and the
// 68010's non-fault exceptions use the short two-word format (PC, SR); a
// 68010 bus/address error uses the extended long-bus-fault frame carrying
// the special status word, fault address, faulting IR, and the read/write
// pipeline buffers; a plain 68000 bus/address error uses the shorter
// throwaway shape (SSW, address, IR, then PC/SR as usual).
func (c *CPU) pushExceptionFrame(vector int, pc uint32, sr uint16, fault faultInfo) {
	isFault := fault.active && (vector == vecBusError || vector == vecAddressError)

	if isFault && c.model.hasLongBusFault() {
		// Format 8 ("long bus fault", 68010): internal state (5 reserved
		// words not modeled here, pushed as 0), then the documented
		// fields, then the usual PC/format-vector word.
		for i := 0; i < 5; i++ {
			c.pushWord(0)
		}
		c.pushLong(fault.addr)
		c.pushWord(0)
		c.pushWord(0)
		c.pushLong(fault.addr)
		c.pushWord(fault.writeBuf)
		c.pushWord(fault.readBuf)
		c.pushWord(fault.readIR)
		c.pushLong(fault.addr)
		c.pushWord(fault.ssw)
		c.pushLong(pc)
		c.pushWord(uint16(0x8000) | uint16(vector)<<2)
		return
	}

	if isFault {
		// Short "throwaway" bus-fault shape: SSW, fault address, IR.
		c.pushWord(fault.ssw)
		c.pushLong(fault.addr)
		c.pushWord(fault.readIR)
	}

	c.pushLong(pc)
	c.pushWord(sr)
}
