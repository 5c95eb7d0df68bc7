package cpu

import "github.com/lj360-emu/gba/internal/bus"

func thumbShiftImm(c *CPU, instr uint16) {
	r := c.regs
	op := ShiftType((instr >> 11) & 0x3)
	amount := uint32((instr >> 6) & 0x1F)
	rs := int((instr >> 3) & 0x7)
	rd := int(instr & 0x7)

	val, carryOut := barrelShift(op, r.GetReg(rs), amount, r.C(), true)
	r.SetReg(rd, val)
	r.SetNZ(val)
	r.SetC(carryOut)
}

func thumbAddSub(c *CPU, instr uint16) {
	r := c.regs
	immediate := instr&0x0400 != 0
	subtract := instr&0x0200 != 0
	operand := uint32((instr >> 6) & 0x7)
	rs := int((instr >> 3) & 0x7)
	rd := int(instr & 0x7)

	rsVal := r.GetReg(rs)
	var rhs uint32
	if immediate {
		rhs = operand
	} else {
		rhs = r.GetReg(int(operand))
	}

	var result uint32
	var carry, overflow bool
	if subtract {
		result, carry, overflow = subWithFlags(rsVal, rhs, true)
	} else {
		result, carry, overflow = addWithFlags(rsVal, rhs, false)
	}
	r.SetReg(rd, result)
	r.SetNZ(result)
	r.SetC(carry)
	r.SetV(overflow)
}

func thumbAluImm(c *CPU, instr uint16) {
	r := c.regs
	op := (instr >> 11) & 0x3
	rd := int((instr >> 8) & 0x7)
	imm := uint32(instr & 0xFF)
	rdVal := r.GetReg(rd)

	switch op {
	case 0: // MOV
		r.SetReg(rd, imm)
		r.SetNZ(imm)
	case 1: // CMP
		result, carry, overflow := subWithFlags(rdVal, imm, true)
		r.SetNZ(result)
		r.SetC(carry)
		r.SetV(overflow)
	case 2: // ADD
		result, carry, overflow := addWithFlags(rdVal, imm, false)
		r.SetReg(rd, result)
		r.SetNZ(result)
		r.SetC(carry)
		r.SetV(overflow)
	case 3: // SUB
		result, carry, overflow := subWithFlags(rdVal, imm, true)
		r.SetReg(rd, result)
		r.SetNZ(result)
		r.SetC(carry)
		r.SetV(overflow)
	}
}

func thumbAluOp(c *CPU, instr uint16) {
	r := c.regs
	op := (instr >> 6) & 0xF
	rs := int((instr >> 3) & 0x7)
	rd := int(instr & 0x7)
	rdVal := r.GetReg(rd)
	rsVal := r.GetReg(rs)

	switch op {
	case 0x0: // AND
		res := rdVal & rsVal
		r.SetReg(rd, res)
		r.SetNZ(res)
	case 0x1: // EOR
		res := rdVal ^ rsVal
		r.SetReg(rd, res)
		r.SetNZ(res)
	case 0x2: // LSL
		res, carry := barrelShift(ShiftLSL, rdVal, rsVal&0xFF, r.C(), false)
		r.SetReg(rd, res)
		r.SetNZ(res)
		r.SetC(carry)
	case 0x3: // LSR
		res, carry := barrelShift(ShiftLSR, rdVal, rsVal&0xFF, r.C(), false)
		r.SetReg(rd, res)
		r.SetNZ(res)
		r.SetC(carry)
	case 0x4: // ASR
		res, carry := barrelShift(ShiftASR, rdVal, rsVal&0xFF, r.C(), false)
		r.SetReg(rd, res)
		r.SetNZ(res)
		r.SetC(carry)
	case 0x5: // ADC
		res, carry, overflow := addWithFlags(rdVal, rsVal, r.C())
		r.SetReg(rd, res)
		r.SetNZ(res)
		r.SetC(carry)
		r.SetV(overflow)
	case 0x6: // SBC
		res, carry, overflow := subWithFlags(rdVal, rsVal, r.C())
		r.SetReg(rd, res)
		r.SetNZ(res)
		r.SetC(carry)
		r.SetV(overflow)
	case 0x7: // ROR
		res, carry := barrelShift(ShiftROR, rdVal, rsVal&0xFF, r.C(), false)
		r.SetReg(rd, res)
		r.SetNZ(res)
		r.SetC(carry)
	case 0x8: // TST
		r.SetNZ(rdVal & rsVal)
	case 0x9: // NEG
		res, carry, overflow := subWithFlags(0, rsVal, true)
		r.SetReg(rd, res)
		r.SetNZ(res)
		r.SetC(carry)
		r.SetV(overflow)
	case 0xA: // CMP
		res, carry, overflow := subWithFlags(rdVal, rsVal, true)
		r.SetNZ(res)
		r.SetC(carry)
		r.SetV(overflow)
	case 0xB: // CMN
		res, carry, overflow := addWithFlags(rdVal, rsVal, false)
		r.SetNZ(res)
		r.SetC(carry)
		r.SetV(overflow)
	case 0xC: // ORR
		res := rdVal | rsVal
		r.SetReg(rd, res)
		r.SetNZ(res)
	case 0xD: // MUL
		res := rdVal * rsVal
		r.SetReg(rd, res)
		r.SetNZ(res)
	case 0xE: // BIC
		res := rdVal &^ rsVal
		r.SetReg(rd, res)
		r.SetNZ(res)
	case 0xF: // MVN
		res := ^rsVal
		r.SetReg(rd, res)
		r.SetNZ(res)
	}
}

func thumbHiRegOps(c *CPU, instr uint16) {
	r := c.regs
	op := (instr >> 8) & 0x3
	h1 := instr&0x80 != 0
	h2 := instr&0x40 != 0
	rs := int((instr>>3)&0x7) + boolToInt(h2)*8
	rd := int(instr&0x7) + boolToInt(h1)*8

	rsVal := r.GetReg(rs)
	switch op {
	case 0: // ADD
		r.SetReg(rd, r.GetReg(rd)+rsVal)
		if rd == 15 {
			c.branchTo(r.GetReg(rd)&^1, true)
		}
	case 1: // CMP
		result, carry, overflow := subWithFlags(r.GetReg(rd), rsVal, true)
		r.SetNZ(result)
		r.SetC(carry)
		r.SetV(overflow)
	case 2: // MOV
		r.SetReg(rd, rsVal)
		if rd == 15 {
			c.branchTo(rsVal&^1, true)
		}
	case 3: // BX/BLX
		thumb := rsVal&1 != 0
		c.branchTo(rsVal, thumb)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func thumbLoadPCRel(c *CPU, instr uint16) {
	rd := int((instr >> 8) & 0x7)
	imm := uint32(instr&0xFF) << 2
	base := (c.regs.PC() &^ 3) + imm
	c.regs.SetReg(rd, c.bus.Read32(base, bus.NonSeq))
}

func thumbLoadStoreReg(c *CPU, instr uint16) {
	r := c.regs
	load := instr&0x0800 != 0
	byteAccess := instr&0x0400 != 0
	ro := int((instr >> 6) & 0x7)
	rb := int((instr >> 3) & 0x7)
	rd := int(instr & 0x7)
	addr := r.GetReg(rb) + r.GetReg(ro)

	if load {
		if byteAccess {
			r.SetReg(rd, uint32(c.bus.Read8(addr, bus.NonSeq)))
		} else {
			r.SetReg(rd, c.bus.Read32(addr, bus.NonSeq))
		}
	} else {
		if byteAccess {
			c.bus.Write8(addr, byte(r.GetReg(rd)), bus.NonSeq)
		} else {
			c.bus.Write32(addr, r.GetReg(rd), bus.NonSeq)
		}
	}
}

func thumbLoadStoreSigned(c *CPU, instr uint16) {
	r := c.regs
	hFlag := instr&0x0800 != 0
	sFlag := instr&0x0400 != 0
	ro := int((instr >> 6) & 0x7)
	rb := int((instr >> 3) & 0x7)
	rd := int(instr & 0x7)
	addr := r.GetReg(rb) + r.GetReg(ro)

	switch {
	case !sFlag && !hFlag: // STRH
		c.bus.Write16(addr, uint16(r.GetReg(rd)), bus.NonSeq)
	case !sFlag && hFlag: // LDRH
		r.SetReg(rd, uint32(c.bus.Read16(addr, bus.NonSeq)))
	case sFlag && !hFlag: // LDSB
		r.SetReg(rd, uint32(int32(int8(c.bus.Read8(addr, bus.NonSeq)))))
	default: // LDSH
		r.SetReg(rd, uint32(int32(int16(c.bus.Read16(addr, bus.NonSeq)))))
	}
}

func thumbLoadStoreImm(c *CPU, instr uint16) {
	r := c.regs
	byteAccess := instr&0x1000 != 0
	load := instr&0x0800 != 0
	offset := uint32((instr >> 6) & 0x1F)
	rb := int((instr >> 3) & 0x7)
	rd := int(instr & 0x7)

	if !byteAccess {
		offset <<= 2
	}
	addr := r.GetReg(rb) + offset

	if load {
		if byteAccess {
			r.SetReg(rd, uint32(c.bus.Read8(addr, bus.NonSeq)))
		} else {
			r.SetReg(rd, c.bus.Read32(addr, bus.NonSeq))
		}
	} else {
		if byteAccess {
			c.bus.Write8(addr, byte(r.GetReg(rd)), bus.NonSeq)
		} else {
			c.bus.Write32(addr, r.GetReg(rd), bus.NonSeq)
		}
	}
}

func thumbLoadStoreHalfword(c *CPU, instr uint16) {
	r := c.regs
	load := instr&0x0800 != 0
	offset := uint32((instr>>6)&0x1F) << 1
	rb := int((instr >> 3) & 0x7)
	rd := int(instr & 0x7)
	addr := r.GetReg(rb) + offset

	if load {
		r.SetReg(rd, uint32(c.bus.Read16(addr, bus.NonSeq)))
	} else {
		c.bus.Write16(addr, uint16(r.GetReg(rd)), bus.NonSeq)
	}
}

func thumbLoadStoreSPRel(c *CPU, instr uint16) {
	r := c.regs
	load := instr&0x0800 != 0
	rd := int((instr >> 8) & 0x7)
	offset := uint32(instr&0xFF) << 2
	addr := r.GetReg(13) + offset

	if load {
		r.SetReg(rd, c.bus.Read32(addr, bus.NonSeq))
	} else {
		c.bus.Write32(addr, r.GetReg(rd), bus.NonSeq)
	}
}

func thumbLoadAddress(c *CPU, instr uint16) {
	r := c.regs
	usesSP := instr&0x0800 != 0
	rd := int((instr >> 8) & 0x7)
	offset := uint32(instr&0xFF) << 2

	if usesSP {
		r.SetReg(rd, r.GetReg(13)+offset)
	} else {
		r.SetReg(rd, (r.PC()&^3)+offset)
	}
}

func thumbAddSPOffset(c *CPU, instr uint16) {
	r := c.regs
	negative := instr&0x80 != 0
	offset := uint32(instr&0x7F) << 2
	if negative {
		r.SetReg(13, r.GetReg(13)-offset)
	} else {
		r.SetReg(13, r.GetReg(13)+offset)
	}
}

func thumbPushPop(c *CPU, instr uint16) {
	r := c.regs
	pop := instr&0x0800 != 0
	includePCLR := instr&0x0100 != 0
	list := instr & 0xFF

	if pop {
		sp := r.GetReg(13)
		for i := 0; i < 8; i++ {
			if list&(1<<i) != 0 {
				r.SetReg(i, c.bus.Read32(sp, bus.Seq))
				sp += 4
			}
		}
		if includePCLR {
			val := c.bus.Read32(sp, bus.Seq)
			sp += 4
			c.branchTo(val&^1, true)
		}
		r.SetReg(13, sp)
	} else {
		count := 0
		for i := 0; i < 8; i++ {
			if list&(1<<i) != 0 {
				count++
			}
		}
		if includePCLR {
			count++
		}
		sp := r.GetReg(13) - uint32(count)*4
		r.SetReg(13, sp)
		addr := sp
		for i := 0; i < 8; i++ {
			if list&(1<<i) != 0 {
				c.bus.Write32(addr, r.GetReg(i), bus.Seq)
				addr += 4
			}
		}
		if includePCLR {
			c.bus.Write32(addr, r.GetReg(14), bus.Seq)
		}
	}
}

func thumbBlockTransfer(c *CPU, instr uint16) {
	r := c.regs
	load := instr&0x0800 != 0
	rb := int((instr >> 8) & 0x7)
	list := instr & 0xFF

	addr := r.GetReg(rb)
	if list == 0 {
		if load {
			val := c.bus.Read32(addr, bus.Seq)
			r.SetReg(rb, addr+0x40)
			c.branchTo(val&^1, r.Thumb())
			return
		}
		c.bus.Write32(addr, r.PC()+2, bus.Seq)
		r.SetReg(rb, addr+0x40)
		return
	}

	for i := 0; i < 8; i++ {
		if list&(1<<i) == 0 {
			continue
		}
		if load {
			r.SetReg(i, c.bus.Read32(addr, bus.Seq))
		} else {
			c.bus.Write32(addr, r.GetReg(i), bus.Seq)
		}
		addr += 4
	}
	if !load || list&(1<<rb) == 0 {
		r.SetReg(rb, addr)
	}
}

func thumbConditionalBranch(c *CPU, instr uint16) {
	cond := Condition((instr >> 8) & 0xF)
	if !c.regs.evalCondition(cond) {
		return
	}
	offset := int32(int8(instr & 0xFF)) * 2
	c.branchTo(uint32(int32(c.regs.PC())+offset), true)
}

func thumbSWI(c *CPU, instr uint16) { c.softwareInterrupt() }

func thumbUnconditionalBranch(c *CPU, instr uint16) {
	offset := instr & 0x7FF
	signExt := int32(offset << 1)
	if offset&0x400 != 0 {
		signExt -= 0x1000
	}
	c.branchTo(uint32(int32(c.regs.PC())+signExt), true)
}

// thumbLongBranchLink implements BL's two-halfword encoding: the first
// halfword (H=0) stashes a PC-relative high part into LR, the second
// (H=1) combines it with the low part and branches, per spec.md §4.3.
func thumbLongBranchLink(c *CPU, instr uint16) {
	r := c.regs
	low := instr&0x0800 != 0
	offset := uint32(instr & 0x7FF)

	if !low {
		hi := offset
		if hi&0x400 != 0 {
			hi |= 0xFFFFF800 // sign-extend the 11-bit field before scaling
		}
		r.SetReg(14, r.PC()+(hi<<12))
		return
	}

	next := r.GetReg(14) + (offset << 1)
	retAddr := (r.PC() - 2) | 1
	r.SetReg(14, retAddr)
	c.branchTo(next, true)
}

func thumbUndefined(c *CPU, instr uint16) { c.undefinedInstruction() }
