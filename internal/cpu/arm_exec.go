package cpu

import "github.com/lj360-emu/gba/internal/bus"

// operand2 decodes the shifter operand of a data-processing instruction,
// returning the operand value and the shifter's carry-out. Register-
// specified shift amounts consume an extra internal cycle and read the
// shift register's low byte; PC reads as "current instruction address + 8"
// per ARM's pipeline-visible-PC rule, which callers already get for free
// since r15 is kept two instructions ahead by advanceARMPipeline.
func (c *CPU) operand2(instr uint32) (val uint32, carryOut bool) {
	r := c.regs
	if instr&0x02000000 != 0 {
		imm := instr & 0xFF
		rot := (instr >> 8) & 0xF * 2
		if rot == 0 {
			return imm, r.C()
		}
		res := (imm >> rot) | (imm << (32 - rot))
		return res, res&0x80000000 != 0
	}

	rm := r.GetReg(int(instr & 0xF))
	shiftType := ShiftType((instr >> 5) & 0x3)
	if instr&0x10 != 0 {
		// Register-specified shift amount: low byte of Rs.
		rs := r.GetReg(int((instr >> 8) & 0xF))
		amount := rs & 0xFF
		if amount == 0 {
			return rm, r.C()
		}
		return barrelShift(shiftType, rm, amount, r.C(), false)
	}
	amount := (instr >> 7) & 0x1F
	return barrelShift(shiftType, rm, amount, r.C(), true)
}

func armDataProcessing(c *CPU, instr uint32) {
	r := c.regs
	op := DPOp((instr >> 21) & 0xF)
	s := instr&0x00100000 != 0
	rn := int((instr >> 16) & 0xF)
	rd := int((instr >> 12) & 0xF)

	op2, shifterCarry := c.operand2(instr)
	rnVal := r.GetReg(rn)
	result, carryOut, overflow := dpResult(op, rnVal, op2, shifterCarry, r.C())

	if op.writesDest() {
		if rd == 15 {
			if s {
				r.SetReg(15, result)
				r.RestoreCPSRFromSPSR()
				c.branchTo(r.PC(), r.Thumb())
				return
			}
			c.branchTo(result, r.Thumb())
			return
		}
		r.SetReg(rd, result)
	}

	if s {
		r.SetNZ(result)
		r.SetC(carryOut)
		if !op.isLogical() {
			r.SetV(overflow)
		}
	}
}

func armMRS(c *CPU, instr uint32) {
	rd := int((instr >> 12) & 0xF)
	usesSPSR := instr&0x00400000 != 0
	if usesSPSR {
		c.regs.SetReg(rd, c.regs.SPSR())
	} else {
		c.regs.SetReg(rd, c.regs.CPSR)
	}
}

func armMSRRegisterOrImm(c *CPU, instr uint32) {
	r := c.regs
	usesSPSR := instr&0x00400000 != 0
	writeFlagsOnly := instr&0x00010000 == 0

	var val uint32
	if instr&0x02000000 != 0 {
		imm := instr & 0xFF
		rot := (instr >> 8) & 0xF * 2
		val = (imm >> rot) | (imm << (32 - rot))
	} else {
		val = r.GetReg(int(instr & 0xF))
	}

	var mask uint32 = 0xF0000000 // flags byte always writable
	if !writeFlagsOnly {
		mask |= 0x000000FF // control byte, only valid in privileged modes
	}

	if usesSPSR {
		cur := r.SPSR()
		r.SetSPSRForMode(r.Mode(), (cur&^mask)|(val&mask))
		return
	}

	if !privileged(r.Mode()) {
		mask &^= 0x000000FF
	}
	newCPSR := (r.CPSR &^ mask) | (val & mask)
	if newCPSR&0x1F != r.CPSR&0x1F {
		r.SetMode(Mode(newCPSR & 0x1F))
	}
	r.CPSR = (r.CPSR &^ mask) | (val & mask)
}

func armBX(c *CPU, instr uint32) {
	target := c.regs.GetReg(int(instr & 0xF))
	thumb := target&1 != 0
	c.branchTo(target, thumb)
}

func armMultiply(c *CPU, instr uint32) {
	r := c.regs
	accumulate := instr&0x00200000 != 0
	s := instr&0x00100000 != 0
	rd := int((instr >> 16) & 0xF)
	rn := int((instr >> 12) & 0xF)
	rs := int((instr >> 8) & 0xF)
	rm := int(instr & 0xF)

	result := r.GetReg(rm) * r.GetReg(rs)
	if accumulate {
		result += r.GetReg(rn)
	}
	r.SetReg(rd, result)
	if s {
		r.SetNZ(result)
	}
}

func armMultiplyLong(c *CPU, instr uint32) {
	r := c.regs
	signed := instr&0x00400000 != 0
	accumulate := instr&0x00200000 != 0
	s := instr&0x00100000 != 0
	rdHi := int((instr >> 16) & 0xF)
	rdLo := int((instr >> 12) & 0xF)
	rs := int((instr >> 8) & 0xF)
	rm := int(instr & 0xF)

	var result uint64
	if signed {
		result = uint64(int64(int32(r.GetReg(rm))) * int64(int32(r.GetReg(rs))))
	} else {
		result = uint64(r.GetReg(rm)) * uint64(r.GetReg(rs))
	}
	if accumulate {
		result += uint64(r.GetReg(rdHi))<<32 | uint64(r.GetReg(rdLo))
	}
	r.SetReg(rdLo, uint32(result))
	r.SetReg(rdHi, uint32(result>>32))
	if s {
		r.SetZ(result == 0)
		r.SetN(result&0x8000000000000000 != 0)
	}
}

func armSwap(c *CPU, instr uint32) {
	r := c.regs
	byteSwap := instr&0x00400000 != 0
	rn := int((instr >> 16) & 0xF)
	rd := int((instr >> 12) & 0xF)
	rm := int(instr & 0xF)
	addr := r.GetReg(rn)

	if byteSwap {
		old := c.bus.Read8(addr, bus.NonSeq)
		c.bus.Write8(addr, byte(r.GetReg(rm)), bus.NonSeq)
		r.SetReg(rd, uint32(old))
	} else {
		old := c.bus.Read32(addr, bus.NonSeq)
		c.bus.Write32(addr, r.GetReg(rm), bus.NonSeq)
		r.SetReg(rd, old)
	}
}

// armHalfwordTransfer covers LDRH/STRH/LDRSB/LDRSH and their immediate and
// register-offset address forms (spec.md §4.3 load/store family).
func armHalfwordTransfer(c *CPU, instr uint32) {
	r := c.regs
	pre := instr&0x01000000 != 0
	up := instr&0x00800000 != 0
	immOffset := instr&0x00400000 != 0
	writeBack := instr&0x00200000 != 0
	load := instr&0x00100000 != 0
	rn := int((instr >> 16) & 0xF)
	rd := int((instr >> 12) & 0xF)
	sh := (instr >> 5) & 0x3

	var offset uint32
	if immOffset {
		offset = ((instr >> 4) & 0xF0) | (instr & 0xF)
	} else {
		offset = r.GetReg(int(instr & 0xF))
	}

	base := r.GetReg(rn)
	addr := base
	if pre {
		if up {
			addr = base + offset
		} else {
			addr = base - offset
		}
	}

	if load {
		var val uint32
		switch sh {
		case 1: // unsigned halfword
			val = uint32(c.bus.Read16(addr, bus.NonSeq))
		case 2: // signed byte
			val = uint32(int32(int8(c.bus.Read8(addr, bus.NonSeq))))
		case 3: // signed halfword
			val = uint32(int32(int16(c.bus.Read16(addr, bus.NonSeq))))
		}
		if rd == 15 {
			c.branchTo(val, r.Thumb())
		} else {
			r.SetReg(rd, val)
		}
	} else {
		c.bus.Write16(addr, uint16(r.GetReg(rd)), bus.NonSeq)
	}

	if !pre {
		if up {
			addr = base + offset
		} else {
			addr = base - offset
		}
		r.SetReg(rn, addr)
	} else if writeBack {
		r.SetReg(rn, addr)
	}
}

// armSingleDataTransfer covers LDR/STR/LDRB/STRB.
func armSingleDataTransfer(c *CPU, instr uint32) {
	r := c.regs
	immediate := instr&0x02000000 == 0
	pre := instr&0x01000000 != 0
	up := instr&0x00800000 != 0
	byteAccess := instr&0x00400000 != 0
	writeBack := instr&0x00200000 != 0
	load := instr&0x00100000 != 0
	rn := int((instr >> 16) & 0xF)
	rd := int((instr >> 12) & 0xF)

	var offset uint32
	if immediate {
		offset = instr & 0xFFF
	} else {
		shiftType := ShiftType((instr >> 5) & 0x3)
		amount := (instr >> 7) & 0x1F
		rm := r.GetReg(int(instr & 0xF))
		offset, _ = barrelShift(shiftType, rm, amount, r.C(), true)
	}

	base := r.GetReg(rn)
	addr := base
	if pre {
		if up {
			addr = base + offset
		} else {
			addr = base - offset
		}
	}

	if load {
		var val uint32
		if byteAccess {
			val = uint32(c.bus.Read8(addr, bus.NonSeq))
		} else {
			val = c.bus.Read32(addr, bus.NonSeq)
		}
		if rd == 15 {
			c.branchTo(val&^3, false)
		} else {
			r.SetReg(rd, val)
		}
	} else {
		if byteAccess {
			c.bus.Write8(addr, byte(r.GetReg(rd)), bus.NonSeq)
		} else {
			c.bus.Write32(addr, r.GetReg(rd), bus.NonSeq)
		}
	}

	if !pre {
		if up {
			addr = base + offset
		} else {
			addr = base - offset
		}
		if rn != 15 {
			r.SetReg(rn, addr)
		}
	} else if writeBack && rn != 15 {
		r.SetReg(rn, addr)
	}
}

// armBlockDataTransfer covers LDM/STM in all four addressing modes, plus
// the S-bit user-bank and PC-in-list special cases (spec.md §4.3).
func armBlockDataTransfer(c *CPU, instr uint32) {
	r := c.regs
	pre := instr&0x01000000 != 0
	up := instr&0x00800000 != 0
	sBit := instr&0x00400000 != 0
	writeBack := instr&0x00200000 != 0
	load := instr&0x00100000 != 0
	rn := int((instr >> 16) & 0xF)
	list := instr & 0xFFFF

	count := 0
	for i := 0; i < 16; i++ {
		if list&(1<<i) != 0 {
			count++
		}
	}
	if count == 0 {
		count = 16 // empty-list edge case: transfers r15, offsets by 0x40
		list = 0x8000
	}

	base := r.GetReg(rn)
	startAddr := base
	if !up {
		startAddr = base - uint32(count)*4
		if !pre {
			startAddr += 4
		}
	} else if pre {
		startAddr = base + 4
	}

	userBankTransfer := sBit && (!load || list&0x8000 == 0)
	addr := startAddr
	for i := 0; i < 16; i++ {
		if list&(1<<i) == 0 {
			continue
		}
		if load {
			val := c.bus.Read32(addr, bus.Seq)
			if i == 15 {
				if sBit {
					r.SetReg(15, val)
					r.RestoreCPSRFromSPSR()
					c.branchTo(r.PC()&^3, r.Thumb())
					continue
				}
				c.branchTo(val&^3, r.Thumb())
			} else if userBankTransfer {
				setUserReg(r, i, val)
			} else {
				r.SetReg(i, val)
			}
		} else {
			var val uint32
			if userBankTransfer {
				val = userReg(r, i)
			} else {
				val = r.GetReg(i)
			}
			c.bus.Write32(addr, val, bus.Seq)
		}
		addr += 4
	}

	if writeBack && (!load || list&(1<<rn) == 0) {
		if up {
			r.SetReg(rn, base+uint32(count)*4)
		} else {
			r.SetReg(rn, base-uint32(count)*4)
		}
	}
}

// userReg/setUserReg access the User-mode bank directly regardless of the
// current mode, for the S-bit "force user bank" LDM/STM variant.
func userReg(r *Registers, n int) uint32 {
	cur := r.Mode()
	if cur == ModeUser || cur == ModeSystem {
		return r.GetReg(n)
	}
	saved := r.CPSR
	r.SetMode(ModeSystem)
	v := r.GetReg(n)
	r.CPSR = saved
	r.bankIn(r.Mode())
	return v
}

func setUserReg(r *Registers, n int, v uint32) {
	cur := r.Mode()
	if cur == ModeUser || cur == ModeSystem {
		r.SetReg(n, v)
		return
	}
	saved := r.CPSR
	r.SetMode(ModeSystem)
	r.SetReg(n, v)
	r.CPSR = saved
	r.bankIn(r.Mode())
}

func armBranch(c *CPU, instr uint32) {
	link := instr&0x01000000 != 0
	offset := instr & 0x00FFFFFF
	if offset&0x00800000 != 0 {
		offset |= 0xFF000000
	}
	offset <<= 2
	pc := c.regs.PC()
	if link {
		c.regs.SetReg(14, pc-4)
	}
	c.branchTo(pc+offset, false)
}

func armSoftwareInterrupt(c *CPU, instr uint32) { c.softwareInterrupt() }

func armUndefined(c *CPU, instr uint32) { c.undefinedInstruction() }
