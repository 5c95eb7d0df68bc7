package cpu

// DPOp enumerates the 16 data-processing opcodes (spec.md §4.3).
type DPOp int

const (
	OpAND DPOp = iota
	OpEOR
	OpSUB
	OpRSB
	OpADD
	OpADC
	OpSBC
	OpRSC
	OpTST
	OpTEQ
	OpCMP
	OpCMN
	OpORR
	OpMOV
	OpBIC
	OpMVN
)

// writesDest reports whether opcode writes its result to Rd (TST/TEQ/CMP/
// CMN only set flags).
func (op DPOp) writesDest() bool {
	switch op {
	case OpTST, OpTEQ, OpCMP, OpCMN:
		return false
	default:
		return true
	}
}

func (op DPOp) isLogical() bool {
	switch op {
	case OpAND, OpEOR, OpTST, OpTEQ, OpORR, OpMOV, OpBIC, OpMVN:
		return true
	default:
		return false
	}
}

// addWithFlags computes a+b(+carryIn) and the ARMv4 ADD/ADC flags.
func addWithFlags(a, b uint32, carryIn bool) (result uint32, c, v bool) {
	ci := uint64(0)
	if carryIn {
		ci = 1
	}
	sum := uint64(a) + uint64(b) + ci
	result = uint32(sum)
	c = sum > 0xFFFFFFFF
	v = (^(a ^ b) & (a ^ result) & 0x80000000) != 0
	return
}

// subWithFlags computes a-b, minus 1 more when borrowIn is false, and the
// ARMv4 SUB/SBC flags. borrowIn is the ARM carry (SUB passes true). ARM's
// carry-out on subtract is "NOT borrow": C=1 means no borrow occurred.
func subWithFlags(a, b uint32, borrowIn bool) (result uint32, c, v bool) {
	bi := uint32(0)
	if !borrowIn {
		bi = 1
	}
	bUint := uint64(b) + uint64(bi)
	diff := uint64(a) - bUint
	result = uint32(diff)
	c = uint64(a) >= bUint
	v = ((a ^ b) & (a ^ result) & 0x80000000) != 0
	return
}

// dpResult computes opcode's result and flags given operands, the
// shifter's carry-out, and the incoming carry flag (for ADC/SBC).
func dpResult(op DPOp, rn, op2 uint32, shifterCarry, carryIn bool) (result uint32, carryOut, overflow bool) {
	switch op {
	case OpAND, OpTST:
		return rn & op2, shifterCarry, false
	case OpEOR, OpTEQ:
		return rn ^ op2, shifterCarry, false
	case OpORR:
		return rn | op2, shifterCarry, false
	case OpMOV:
		return op2, shifterCarry, false
	case OpBIC:
		return rn &^ op2, shifterCarry, false
	case OpMVN:
		return ^op2, shifterCarry, false
	case OpADD, OpCMN:
		res, c, v := addWithFlags(rn, op2, false)
		return res, c, v
	case OpADC:
		res, c, v := addWithFlags(rn, op2, carryIn)
		return res, c, v
	case OpSUB, OpCMP:
		res, c, v := subWithFlags(rn, op2, true)
		return res, c, v
	case OpSBC:
		res, c, v := subWithFlags(rn, op2, carryIn)
		return res, c, v
	case OpRSB:
		res, c, v := subWithFlags(op2, rn, true)
		return res, c, v
	case OpRSC:
		res, c, v := subWithFlags(op2, rn, carryIn)
		return res, c, v
	default:
		return 0, shifterCarry, false
	}
}

// ShiftType enumerates the barrel shifter's four modes.
type ShiftType int

const (
	ShiftLSL ShiftType = iota
	ShiftLSR
	ShiftASR
	ShiftROR
)

// barrelShift applies shift to val by amount, returning the shifted
// value and the carry-out, preserving the LSR#0==LSR#32, ASR#0==ASR#32,
// ROR#0==RRX special cases (spec.md §4.3). immediate distinguishes an
// immediate shift amount of 0 (special-cased) from a register-sourced
// shift amount of 0 (which leaves flags/value untouched per ARM rules
// for LSL; callers handle that case before calling barrelShift).
func barrelShift(shift ShiftType, val uint32, amount uint32, carryIn bool, immediate bool) (result uint32, carryOut bool) {
	switch shift {
	case ShiftLSL:
		switch {
		case amount == 0:
			return val, carryIn
		case amount < 32:
			return val << amount, (val>>(32-amount))&1 != 0
		case amount == 32:
			return 0, val&1 != 0
		default:
			return 0, false
		}
	case ShiftLSR:
		if immediate && amount == 0 {
			amount = 32
		}
		switch {
		case amount == 0:
			return val, carryIn
		case amount < 32:
			return val >> amount, (val>>(amount-1))&1 != 0
		case amount == 32:
			return 0, val&0x80000000 != 0
		default:
			return 0, false
		}
	case ShiftASR:
		if immediate && amount == 0 {
			amount = 32
		}
		sval := int32(val)
		switch {
		case amount == 0:
			return val, carryIn
		case amount < 32:
			return uint32(sval >> amount), (val>>(amount-1))&1 != 0
		default:
			if val&0x80000000 != 0 {
				return 0xFFFFFFFF, true
			}
			return 0, false
		}
	case ShiftROR:
		if immediate && amount == 0 {
			// RRX: rotate right through carry by one bit.
			out := val&1 != 0
			res := val >> 1
			if carryIn {
				res |= 0x80000000
			}
			return res, out
		}
		if amount == 0 {
			return val, carryIn
		}
		amount &= 31
		if amount == 0 {
			return val, val&0x80000000 != 0
		}
		res := (val >> amount) | (val << (32 - amount))
		return res, res&0x80000000 != 0
	default:
		return val, carryIn
	}
}
