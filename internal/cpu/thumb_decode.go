package cpu

// thumbHandler executes one decoded Thumb instruction halfword.
type thumbHandler func(c *CPU, instr uint16)

// thumbTable is the 1024-entry dispatch table for Thumb, indexed by the
// top 10 bits of the halfword (spec.md §4.3 applied to Thumb's 19 instru-
// ction formats), generated once at init by classifying each prefix.
var thumbTable [1024]thumbHandler

func thumbIndex(instr uint16) int { return int(instr >> 6) }

func init() {
	for i := 0; i < 1024; i++ {
		thumbTable[i] = classifyThumb(uint16(i << 6))
	}
}

func classifyThumb(prefix uint16) thumbHandler {
	switch {
	case prefix&0xF800 == 0x1800:
		return thumbAddSub
	case prefix&0xE000 == 0x0000:
		return thumbShiftImm
	case prefix&0xE000 == 0x2000:
		return thumbAluImm
	case prefix&0xFC00 == 0x4000:
		return thumbAluOp
	case prefix&0xFC00 == 0x4400:
		return thumbHiRegOps
	case prefix&0xF800 == 0x4800:
		return thumbLoadPCRel
	case prefix&0xF200 == 0x5000:
		return thumbLoadStoreReg
	case prefix&0xF200 == 0x5200:
		return thumbLoadStoreSigned
	case prefix&0xE000 == 0x6000:
		return thumbLoadStoreImm
	case prefix&0xF000 == 0x8000:
		return thumbLoadStoreHalfword
	case prefix&0xF000 == 0x9000:
		return thumbLoadStoreSPRel
	case prefix&0xF000 == 0xA000:
		return thumbLoadAddress
	case prefix&0xFF00 == 0xB000:
		return thumbAddSPOffset
	case prefix&0xF600 == 0xB400:
		return thumbPushPop
	case prefix&0xF000 == 0xC000:
		return thumbBlockTransfer
	case prefix&0xFF00 == 0xDF00:
		return thumbSWI
	case prefix&0xF000 == 0xD000:
		return thumbConditionalBranch
	case prefix&0xF800 == 0xE000:
		return thumbUnconditionalBranch
	case prefix&0xF000 == 0xF000:
		return thumbLongBranchLink
	default:
		return thumbUndefined
	}
}

func (c *CPU) executeThumb(instr uint16) {
	thumbTable[thumbIndex(instr)](c, instr)
}
