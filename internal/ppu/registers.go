package ppu

// Registers holds the full LCD I/O register file, 0x0400_0000..0x0400_0056
// (spec.md §6 register map, §4.6 rendering). Fields are kept as the raw
// bitfields GBATEK documents; accessors below decode the pieces render.go
// needs.
type Registers struct {
	DISPCNT  uint16
	DISPSTAT uint16
	VCOUNT   uint16

	BGCNT [4]uint16
	BGHOFS, BGVOFS [4]uint16

	// Affine parameters for BG2/BG3, indexed 0=BG2, 1=BG3.
	BGPA, BGPB, BGPC, BGPD [2]uint16
	BGX, BGY               [2]int32 // 20.8 fixed point (sign-extended from 28 bits)

	// internalDX/DY hold the running affine reference point, reloaded
	// from BGX/BGY at each VBlank and advanced by PB/PD every line
	// (spec.md §4.6 HDraw->HBlank boundary).
	internalDX, internalDY [2]int32

	WIN0H, WIN1H uint16
	WIN0V, WIN1V uint16
	WININ, WINOUT uint16
	MOSAIC        uint16
	BLDCNT        uint16
	BLDALPHA      uint16
	BLDY          uint16
}

func (r *Registers) mode() int        { return int(r.DISPCNT & 0x7) }
func (r *Registers) forcedBlank() bool { return r.DISPCNT&0x80 != 0 }
func (r *Registers) bgEnabled(i int) bool { return r.DISPCNT&(0x100<<uint(i)) != 0 }
func (r *Registers) objEnabled() bool  { return r.DISPCNT&0x1000 != 0 }
func (r *Registers) winEnabled(i int) bool { return r.DISPCNT&(0x2000<<uint(i)) != 0 } // 0=WIN0,1=WIN1,2=OBJ
func (r *Registers) displayFrame() uint32 {
	if r.DISPCNT&0x10 != 0 {
		return 0xA000
	}
	return 0
}
func (r *Registers) objCharMapping1D() bool { return r.DISPCNT&0x40 != 0 }

func (r *Registers) bgPriority(i int) int       { return int(r.BGCNT[i] & 0x3) }
func (r *Registers) bgCharBase(i int) uint32    { return uint32((r.BGCNT[i]>>2)&0x3) * 0x4000 }
func (r *Registers) bgMosaic(i int) bool        { return r.BGCNT[i]&0x40 != 0 }
func (r *Registers) bg256Color(i int) bool      { return r.BGCNT[i]&0x80 != 0 }
func (r *Registers) bgScreenBase(i int) uint32  { return uint32((r.BGCNT[i]>>8)&0x1F) * 0x800 }
func (r *Registers) bgAffineWrap(i int) bool    { return r.BGCNT[i]&0x2000 != 0 }
func (r *Registers) bgScreenSize(i int) int     { return int((r.BGCNT[i] >> 14) & 0x3) }

func (r *Registers) vblank() bool  { return r.DISPSTAT&0x1 != 0 }
func (r *Registers) hblank() bool  { return r.DISPSTAT&0x2 != 0 }
func (r *Registers) vcounter() bool { return r.DISPSTAT&0x4 != 0 }
func (r *Registers) vblankIRQ() bool { return r.DISPSTAT&0x8 != 0 }
func (r *Registers) hblankIRQ() bool { return r.DISPSTAT&0x10 != 0 }
func (r *Registers) vcountIRQ() bool { return r.DISPSTAT&0x20 != 0 }
func (r *Registers) vcountSetting() uint16 { return (r.DISPSTAT >> 8) & 0xFF }

func (r *Registers) setVblank(v bool)  { setBit16(&r.DISPSTAT, 0x1, v) }
func (r *Registers) setHblank(v bool)  { setBit16(&r.DISPSTAT, 0x2, v) }
func (r *Registers) setVcounter(v bool) { setBit16(&r.DISPSTAT, 0x4, v) }

func setBit16(v *uint16, bit uint16, on bool) {
	if on {
		*v |= bit
	} else {
		*v &^= bit
	}
}

// ReadIO16/WriteIO16 implement the LCD slice of the machine-wide register
// fold (spec.md §6); the owning Machine dispatches 0x000-0x056 here.
func (p *PPU) ReadIO16(addr uint32) uint16 {
	r := &p.Regs
	switch addr {
	case 0x000:
		return r.DISPCNT
	case 0x004:
		return r.DISPSTAT
	case 0x006:
		return r.VCOUNT
	case 0x008, 0x00A, 0x00C, 0x00E:
		return r.BGCNT[(addr-0x008)/2]
	case 0x010, 0x014, 0x018, 0x01C:
		return 0 // HOFS write-only
	case 0x012, 0x016, 0x01A, 0x01E:
		return 0 // VOFS write-only
	case 0x020, 0x030:
		return r.BGPA[affineIndex(addr, 0x020, 0x030)]
	case 0x022, 0x032:
		return r.BGPB[affineIndex(addr, 0x022, 0x032)]
	case 0x024, 0x034:
		return r.BGPC[affineIndex(addr, 0x024, 0x034)]
	case 0x026, 0x036:
		return r.BGPD[affineIndex(addr, 0x026, 0x036)]
	case 0x040:
		return r.WIN0H
	case 0x042:
		return r.WIN1H
	case 0x044:
		return r.WIN0V
	case 0x046:
		return r.WIN1V
	case 0x048:
		return r.WININ
	case 0x04A:
		return r.WINOUT
	case 0x04C:
		return r.MOSAIC
	case 0x050:
		return r.BLDCNT
	case 0x052:
		return r.BLDALPHA
	case 0x054:
		return 0 // BLDY write-only
	default:
		return 0
	}
}

func affineIndex(addr, bg2, bg3 uint32) int {
	if addr == bg2 {
		return 0
	}
	_ = bg3
	return 1
}

func (p *PPU) WriteIO16(addr uint32, v uint16) {
	r := &p.Regs
	switch addr {
	case 0x000:
		r.DISPCNT = v
	case 0x004:
		r.DISPSTAT = (r.DISPSTAT &^ 0x38) | (v & 0xFFF8)
	case 0x008, 0x00A, 0x00C, 0x00E:
		r.BGCNT[(addr-0x008)/2] = v
	case 0x010:
		r.BGHOFS[0] = v & 0x1FF
	case 0x012:
		r.BGVOFS[0] = v & 0x1FF
	case 0x014:
		r.BGHOFS[1] = v & 0x1FF
	case 0x016:
		r.BGVOFS[1] = v & 0x1FF
	case 0x018:
		r.BGHOFS[2] = v & 0x1FF
	case 0x01A:
		r.BGVOFS[2] = v & 0x1FF
	case 0x01C:
		r.BGHOFS[3] = v & 0x1FF
	case 0x01E:
		r.BGVOFS[3] = v & 0x1FF
	case 0x020:
		r.BGPA[0] = v
	case 0x022:
		r.BGPB[0] = v
	case 0x024:
		r.BGPC[0] = v
	case 0x026:
		r.BGPD[0] = v
	case 0x028:
		r.BGX[0] = signExtend28(uint32(v) | (uint32(r.BGX[0]) &^ 0xFFFF))
		r.internalDX[0] = r.BGX[0]
	case 0x02A:
		hi := uint32(v)
		r.BGX[0] = signExtend28((uint32(r.BGX[0]) & 0xFFFF) | hi<<16)
		r.internalDX[0] = r.BGX[0]
	case 0x02C:
		r.BGY[0] = signExtend28(uint32(v) | (uint32(r.BGY[0]) &^ 0xFFFF))
		r.internalDY[0] = r.BGY[0]
	case 0x02E:
		hi := uint32(v)
		r.BGY[0] = signExtend28((uint32(r.BGY[0]) & 0xFFFF) | hi<<16)
		r.internalDY[0] = r.BGY[0]
	case 0x030:
		r.BGPA[1] = v
	case 0x032:
		r.BGPB[1] = v
	case 0x034:
		r.BGPC[1] = v
	case 0x036:
		r.BGPD[1] = v
	case 0x038:
		r.BGX[1] = signExtend28(uint32(v) | (uint32(r.BGX[1]) &^ 0xFFFF))
		r.internalDX[1] = r.BGX[1]
	case 0x03A:
		hi := uint32(v)
		r.BGX[1] = signExtend28((uint32(r.BGX[1]) & 0xFFFF) | hi<<16)
		r.internalDX[1] = r.BGX[1]
	case 0x03C:
		r.BGY[1] = signExtend28(uint32(v) | (uint32(r.BGY[1]) &^ 0xFFFF))
		r.internalDY[1] = r.BGY[1]
	case 0x03E:
		hi := uint32(v)
		r.BGY[1] = signExtend28((uint32(r.BGY[1]) & 0xFFFF) | hi<<16)
		r.internalDY[1] = r.BGY[1]
	case 0x040:
		r.WIN0H = v
	case 0x042:
		r.WIN1H = v
	case 0x044:
		r.WIN0V = v
	case 0x046:
		r.WIN1V = v
	case 0x048:
		r.WININ = v
	case 0x04A:
		r.WINOUT = v
	case 0x04C:
		r.MOSAIC = v
	case 0x050:
		r.BLDCNT = v
	case 0x052:
		r.BLDALPHA = v
	case 0x054:
		r.BLDY = v
	}
}

func signExtend28(v uint32) int32 {
	v &= 0x0FFFFFFF
	if v&0x08000000 != 0 {
		return int32(v | 0xF0000000)
	}
	return int32(v)
}
