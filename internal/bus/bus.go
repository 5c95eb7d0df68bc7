// Package bus implements the GBA's segmented memory bus: region dispatch,
// per-region wait-state accounting charged to the scheduler before each
// access, and open-bus semantics for unmapped reads (spec.md §4.2, §4.3).
package bus

import (
	"github.com/lj360-emu/gba/internal/cart"
	"github.com/lj360-emu/gba/internal/mem"
	"github.com/lj360-emu/gba/internal/sched"
)

// IORegs is the narrow interface the top-level Machine implements so the
// bus can fold 0x0400_0000..0x0400_03FF accesses down to the owning
// subsystem's 16-bit register handlers without importing ppu/dma/timer/
// irq/keypad directly — this is the "subsystem methods are operations on
// the top-level" design note applied to avoid cyclic imports.
type IORegs interface {
	ReadIO16(addr uint32) uint16
	WriteIO16(addr uint32, v uint16)
}

// PipelinePeeker exposes the CPU's pipeline/PC/state read-only, per the
// "Open bus" design note (bus code must observe the pipeline without
// owning it).
type PipelinePeeker interface {
	PeekPipeline() (word0, word1 uint32)
	PC() uint32
	Thumb() bool
}

// Bus owns the raw memory blobs shared with the PPU (VRAM/Palette/OAM),
// the cartridge, the scheduler it charges cycles to, and a handle to the
// top-level's I/O register dispatch and CPU pipeline peek.
type Bus struct {
	BIOS    *mem.Blob
	EWRAM   *mem.Blob
	IWRAM   *mem.Blob
	VRAM    *mem.Blob
	Palette *mem.Blob
	OAM     *mem.Blob

	Cart  *cart.Cartridge
	Sched *sched.Scheduler
	Wait  WaitCnt

	io  IORegs
	cpu PipelinePeeker

	biosLastLoad uint32
}

func New(sch *sched.Scheduler) *Bus {
	return &Bus{
		BIOS:    mem.NewBlob(mem.BIOSSize),
		EWRAM:   mem.NewBlob(mem.EWRAMSize),
		IWRAM:   mem.NewBlob(mem.IWRAMSize),
		VRAM:    mem.NewBlob(mem.VRAMSize),
		Palette: mem.NewBlob(mem.PaletteSize),
		OAM:     mem.NewBlob(mem.OAMSize),
		Sched:   sch,
	}
}

func (b *Bus) SetIORegs(io IORegs)            { b.io = io }
func (b *Bus) SetCPU(p PipelinePeeker)        { b.cpu = p }
func (b *Bus) SetCartridge(c *cart.Cartridge) { b.Cart = c }

func region(addr uint32) int { return int((addr >> 24) & 0xF) }

// gpioWindow is the cartridge GPIO port's address range within WS0
// (spec.md §2a supplement, original_source/gba_core/src/cartridge/gpio).
const (
	gpioData  = 0x080000C4
	gpioDir   = 0x080000C6
	gpioCtrl  = 0x080000C8
	gpioEnd   = 0x080000CA
)

func (b *Bus) gpioActive() bool {
	return b.Cart != nil && b.Cart.GPIO != nil && b.Cart.GPIO.Active()
}

// isEEPROMAddr reports whether addr falls in the cartridge's EEPROM data
// port: the whole bank-D mirror for ROMs over 16 MiB, or just its last
// 256 bytes otherwise (spec.md §4.8 supplement).
func (b *Bus) isEEPROMAddr(addr uint32) bool {
	if b.Cart == nil || b.Cart.Kind != cart.BackupEEPROM || b.Cart.EEPROM == nil {
		return false
	}
	if region(addr) != 0xD {
		return false
	}
	if len(b.Cart.ROM) > 16*1024*1024 {
		return true
	}
	off := addr & 0x01FFFFFF
	return off >= 0x01FFFF00
}

// chargeCycles implements "each access calls add_cycles(region, size,
// seq|nonseq) on the scheduler BEFORE the data move" (spec.md §4.2).
func (b *Bus) chargeCycles(addr uint32, width Width, access Access) {
	b.Sched.Advance(uint64(b.cyclesFor(addr, width, access)))
}

func (b *Bus) cyclesFor(addr uint32, width Width, access Access) int {
	r := region(addr)
	switch r {
	case 0x0, 0x1:
		return 1
	case 0x2:
		if width == Width32 {
			return 6
		}
		return 3
	case 0x3:
		return 1
	case 0x4:
		return 1
	case 0x5:
		if width == Width32 {
			return 2
		}
		return 1
	case 0x6:
		if width == Width32 {
			return 2
		}
		return 1
	case 0x7:
		return 1
	case 0x8, 0x9, 0xA, 0xB, 0xC, 0xD:
		return b.Wait.romCycles(r, access, width)
	case 0xE, 0xF:
		return b.Wait.sramNonSeq()
	default:
		return 1
	}
}

// openBus synthesizes the value observed when a read misses mapped
// memory, per spec.md §4.3: in ARM state return the last prefetched ARM
// word; in Thumb state compose low/high halves from the two pipeline
// slots, with the assignment depending on PC's region and alignment.
func (b *Bus) openBus(addr uint32) uint32 {
	if b.cpu == nil {
		return 0
	}
	w0, w1 := b.cpu.PeekPipeline()
	if !b.cpu.Thumb() {
		return w1
	}
	pc := b.cpu.PC()
	pcRegion := region(pc)
	lo, hi := w0&0xFFFF, w1&0xFFFF
	switch pcRegion {
	case 0x0, 0x7: // BIOS or OAM: pipeline[1] supplies both halves
		lo, hi = hi, hi
	case 0x3: // IWRAM: depends on PC&2 alignment
		if pc&2 != 0 {
			lo, hi = w0&0xFFFF, w1&0xFFFF
		} else {
			lo, hi = w1&0xFFFF, w0&0xFFFF
		}
	default: // other regions: low=pipeline[0], high=pipeline[1]
		lo, hi = w0&0xFFFF, w1&0xFFFF
	}
	return lo | hi<<16
}

func (b *Bus) biosRead32(addr uint32) uint32 {
	if addr+3 < mem.BIOSSize && b.cpu != nil && region(b.cpu.PC()) == 0x0 {
		v := b.BIOS.Read32(addr &^ 3)
		b.biosLastLoad = v
		return v
	}
	return b.biosLastLoad >> ((addr & 3) * 8)
}

// Read8 reads one byte, charging access cycles first.
func (b *Bus) Read8(addr uint32, access Access) byte {
	b.chargeCycles(addr, Width8, access)
	return b.read8(addr)
}

func (b *Bus) Read16(addr uint32, access Access) uint16 {
	b.chargeCycles(addr, Width16, access)
	return b.read16(addr &^ 1)
}

func (b *Bus) Read32(addr uint32, access Access) uint32 {
	b.chargeCycles(addr, Width32, access)
	return b.read32(addr &^ 3)
}

func (b *Bus) read8(addr uint32) byte {
	switch region(addr) {
	case 0x0:
		if addr < mem.BIOSSize {
			return byte(b.biosRead32(addr) >> ((addr & 3) * 8))
		}
		return byte(b.openBus(addr) >> ((addr & 3) * 8))
	case 0x2:
		return b.EWRAM.Read8(addr & mem.EWRAMMask)
	case 0x3:
		return b.IWRAM.Read8(addr & mem.IWRAMMask)
	case 0x4:
		return byte(b.readIO16(addr &^ 1) >> ((addr & 1) * 8))
	case 0x5:
		return b.Palette.Read8(addr & mem.PaletteMask)
	case 0x6:
		return b.VRAM.Read8(mem.VRAMOffset(addr))
	case 0x7:
		return b.OAM.Read8(addr & (mem.OAMSize - 1))
	case 0x8, 0x9, 0xA, 0xB, 0xC, 0xD:
		if addr >= gpioData && addr < gpioEnd && b.gpioActive() {
			return byte(b.readGPIO16(addr&^1) >> ((addr & 1) * 8))
		}
		if b.Cart == nil {
			return byte(b.openBus(addr) >> ((addr & 3) * 8))
		}
		if b.isEEPROMAddr(addr) {
			return byte(b.Cart.EEPROM.ReadBit())
		}
		off := addr & 0x01FFFFFF
		return b.Cart.ReadROM(off)
	case 0xE, 0xF:
		if b.Cart == nil {
			return 0xFF
		}
		return b.Cart.ReadBackupByte(addr)
	default:
		return byte(b.openBus(addr) >> ((addr & 3) * 8))
	}
}

func (b *Bus) read16(addr uint32) uint16 {
	switch region(addr) {
	case 0x0:
		if addr < mem.BIOSSize {
			return uint16(b.biosRead32(addr) >> ((addr & 2) * 8))
		}
		return uint16(b.openBus(addr) >> ((addr & 2) * 8))
	case 0x2:
		return b.EWRAM.Read16(addr & mem.EWRAMMask)
	case 0x3:
		return b.IWRAM.Read16(addr & mem.IWRAMMask)
	case 0x4:
		return b.readIO16(addr)
	case 0x5:
		return b.Palette.Read16(addr & mem.PaletteMask)
	case 0x6:
		return b.VRAM.Read16(mem.VRAMOffset(addr))
	case 0x7:
		return b.OAM.Read16(addr & (mem.OAMSize - 1))
	case 0x8, 0x9, 0xA, 0xB, 0xC, 0xD:
		if addr >= gpioData && addr < gpioEnd && b.gpioActive() {
			return b.readGPIO16(addr)
		}
		if b.Cart == nil {
			return uint16(b.openBus(addr) >> ((addr & 2) * 8))
		}
		if b.isEEPROMAddr(addr) {
			return b.Cart.EEPROM.ReadBit()
		}
		off := addr & 0x01FFFFFF
		lo := uint16(b.Cart.ReadROM(off))
		hi := uint16(b.Cart.ReadROM(off + 1))
		return lo | hi<<8
	case 0xE, 0xF:
		v := uint16(b.read8(addr))
		return v | v<<8
	default:
		return uint16(b.openBus(addr) >> ((addr & 2) * 8))
	}
}

func (b *Bus) read32(addr uint32) uint32 {
	switch region(addr) {
	case 0x0:
		return b.biosRead32(addr)
	case 0x2:
		return b.EWRAM.Read32(addr & mem.EWRAMMask)
	case 0x3:
		return b.IWRAM.Read32(addr & mem.IWRAMMask)
	case 0x4:
		lo := uint32(b.readIO16(addr))
		hi := uint32(b.readIO16(addr + 2))
		return lo | hi<<16
	case 0x5:
		return b.Palette.Read32(addr & mem.PaletteMask)
	case 0x6:
		return b.VRAM.Read32(mem.VRAMOffset(addr))
	case 0x7:
		return b.OAM.Read32(addr & (mem.OAMSize - 1))
	case 0x8, 0x9, 0xA, 0xB, 0xC, 0xD:
		lo := uint32(b.read16(addr))
		hi := uint32(b.read16(addr + 2))
		return lo | hi<<16
	case 0xE, 0xF:
		v := uint32(b.read8(addr))
		return v | v<<8 | v<<16 | v<<24
	default:
		return b.openBus(addr)
	}
}

func (b *Bus) readIO16(addr uint32) uint16 {
	if b.io == nil {
		return 0
	}
	return b.io.ReadIO16(addr)
}

func (b *Bus) writeIO16(addr uint32, v uint16) {
	if b.io != nil {
		b.io.WriteIO16(addr, v)
	}
}

// readGPIO16/writeGPIO16 fold the 3-register GPIO port (data/direction/
// control) into 16-bit MMIO slots; addr is already half-word aligned.
// Data and direction read as 0 while the control register's read-enable
// bit is clear.
func (b *Bus) readGPIO16(addr uint32) uint16 {
	g := b.Cart.GPIO
	if addr != gpioCtrl && g.ReadControl() == 0 {
		return 0
	}
	switch addr {
	case gpioData:
		return g.ReadPins()
	case gpioDir:
		return uint16(g.ReadDirection())
	case gpioCtrl:
		return uint16(g.ReadControl())
	default:
		return 0
	}
}

func (b *Bus) writeGPIO16(addr uint32, v uint16) {
	g := b.Cart.GPIO
	switch addr {
	case gpioData:
		g.WritePins(v)
	case gpioDir:
		g.WriteDirection(byte(v))
	case gpioCtrl:
		g.WriteControl(byte(v))
	}
}

func (b *Bus) Write8(addr uint32, v byte, access Access) {
	b.chargeCycles(addr, Width8, access)
	switch region(addr) {
	case 0x2:
		b.EWRAM.Write8(addr&mem.EWRAMMask, v)
	case 0x3:
		b.IWRAM.Write8(addr&mem.IWRAMMask, v)
	case 0x4:
		cur := b.readIO16(addr &^ 1)
		if addr&1 != 0 {
			cur = (cur & 0x00FF) | uint16(v)<<8
		} else {
			cur = (cur & 0xFF00) | uint16(v)
		}
		b.writeIO16(addr&^1, cur)
	case 0x5:
		// Palette byte writes duplicate into the half-word, same rule as
		// VRAM (GBATEK: palette RAM behaves the same way as VRAM here).
		h := uint16(v) | uint16(v)<<8
		b.Palette.Write16(addr&mem.PaletteMask&^1, h)
	case 0x6:
		// Byte writes to VRAM duplicate the byte into the 16-bit
		// half-word (spec.md §4.2).
		off := mem.VRAMOffset(addr) &^ 1
		h := uint16(v) | uint16(v)<<8
		b.VRAM.Write16(off, h)
	case 0x7:
		// Byte writes to OAM are ignored (spec.md §4.2).
	case 0x8, 0x9, 0xA, 0xB, 0xC, 0xD:
		if addr >= gpioData && addr < gpioEnd && b.gpioActive() {
			cur := b.readGPIO16(addr &^ 1)
			if addr&1 != 0 {
				cur = (cur & 0x00FF) | uint16(v)<<8
			} else {
				cur = (cur & 0xFF00) | uint16(v)
			}
			b.writeGPIO16(addr&^1, cur)
			return
		}
		if b.isEEPROMAddr(addr) {
			b.Cart.EEPROM.WriteBit(uint16(v) & 1)
		}
		// otherwise ROM is read-only.
	case 0xE, 0xF:
		if b.Cart != nil {
			b.Cart.WriteBackupByte(addr, v)
		}
	}
}

func (b *Bus) Write16(addr uint32, v uint16, access Access) {
	addr &^= 1
	b.chargeCycles(addr, Width16, access)
	switch region(addr) {
	case 0x2:
		b.EWRAM.Write16(addr&mem.EWRAMMask, v)
	case 0x3:
		b.IWRAM.Write16(addr&mem.IWRAMMask, v)
	case 0x4:
		b.writeIO16(addr, v)
	case 0x5:
		b.Palette.Write16(addr&mem.PaletteMask, v)
	case 0x6:
		b.VRAM.Write16(mem.VRAMOffset(addr), v)
	case 0x7:
		b.OAM.Write16(addr&(mem.OAMSize-1), v)
	case 0x8, 0x9, 0xA, 0xB, 0xC, 0xD:
		if addr >= gpioData && addr < gpioEnd && b.gpioActive() {
			b.writeGPIO16(addr, v)
			return
		}
		if b.isEEPROMAddr(addr) {
			b.Cart.EEPROM.WriteBit(v & 1)
		}
		// otherwise ROM is read-only.
	}
}

func (b *Bus) Write32(addr uint32, v uint32, access Access) {
	addr &^= 3
	b.chargeCycles(addr, Width32, access)
	switch region(addr) {
	case 0x2:
		b.EWRAM.Write32(addr&mem.EWRAMMask, v)
	case 0x3:
		b.IWRAM.Write32(addr&mem.IWRAMMask, v)
	case 0x4:
		b.writeIO16(addr, uint16(v))
		b.writeIO16(addr+2, uint16(v>>16))
	case 0x5:
		b.Palette.Write32(addr&mem.PaletteMask, v)
	case 0x6:
		b.VRAM.Write32(mem.VRAMOffset(addr), v)
	case 0x7:
		b.OAM.Write32(addr&(mem.OAMSize-1), v)
	}
}

// LoadBIOS installs the 16 KiB BIOS image; caller (gba.Machine.LoadBIOS)
// validates size.
func (b *Bus) LoadBIOS(data []byte) { copy(b.BIOS.Bytes, data) }
