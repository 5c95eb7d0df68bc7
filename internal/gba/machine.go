// Package gba assembles the CPU, bus, PPU, DMA, timers, keypad, interrupt
// controller, and cartridge into the top-level Machine the front-ends
// drive one frame at a time (spec.md §6 Construction, §4.1 run loop).
package gba

import (
	"errors"
	"image"

	"github.com/lj360-emu/gba/internal/apu"
	"github.com/lj360-emu/gba/internal/bus"
	"github.com/lj360-emu/gba/internal/cart"
	"github.com/lj360-emu/gba/internal/cpu"
	"github.com/lj360-emu/gba/internal/dma"
	"github.com/lj360-emu/gba/internal/irq"
	"github.com/lj360-emu/gba/internal/keypad"
	"github.com/lj360-emu/gba/internal/ppu"
	"github.com/lj360-emu/gba/internal/sched"
	"github.com/lj360-emu/gba/internal/timer"
)

// cyclesPerFrame is the GBA's fixed 228-line * 1232-cycle/line frame
// budget (spec.md §6 EmulateFrame).
const cyclesPerFrame = 228 * 1232

// Machine owns every subsystem and is the sole implementer of
// bus.IORegs, folding the entire 0x0400_0000-0x0400_0400 MMIO window down
// to each subsystem's handlers (spec.md §4.2 "I/O register fold").
type Machine struct {
	sched   *sched.Scheduler
	bus     *bus.Bus
	cpu     *cpu.CPU
	dma     *dma.Controller
	timer   *timer.Block
	ppu     *ppu.PPU
	keypad  *keypad.Keypad
	irqc    *irq.Controller
	cart    *cart.Cartridge
	apu     *apu.APU

	// dmaSrc/dmaDest shadow the 32-bit source/dest registers so 16-bit
	// half-word writes can be recombined before handing the full address
	// to dma.Controller (spec.md §4.4 register layout).
	dmaSrc, dmaDest [4]uint32

	// overshoot carries the previous frame's excess cycles so EmulateFrame
	// never drifts against the scheduler's absolute clock (spec.md §6,
	// Open Question "frame-overrun compensation").
	overshoot uint64

	// apuLastTs is the scheduler timestamp the APU was last ticked to;
	// EmulateFrame feeds it the elapsed cycles each loop iteration so
	// sound generation stays in lockstep with CPU/DMA time (spec.md §4.7).
	apuLastTs uint64
}

var dmaSrcMask = [4]uint32{0x07FFFFFF, 0x0FFFFFFF, 0x0FFFFFFF, 0x0FFFFFFF}
var dmaDestMask = [4]uint32{0x07FFFFFF, 0x07FFFFFF, 0x07FFFFFF, 0x0FFFFFFF}

// New builds a Machine around rom, persisting battery backup through
// backupFile (a headless in-memory file is substituted if nil, per
// cart.ByteFile's contract).
func New(rom []byte, backupFile cart.ByteFile) (*Machine, error) {
	c, err := cart.New(rom, backupFile)
	if err != nil {
		return nil, err
	}

	m := &Machine{cart: c}
	m.sched = sched.New()
	m.bus = bus.New(m.sched)
	m.bus.SetCartridge(c)

	m.irqc = &irq.Controller{}
	m.keypad = keypad.New()
	m.dma = dma.New(m.sched, m.bus, m.irqc)
	m.timer = timer.New(m.sched, m.irqc)
	m.ppu = ppu.New(m.sched, m.irqc, m.dma, m.bus.VRAM, m.bus.Palette, m.bus.OAM)
	m.cpu = cpu.New(m.bus, m.irqc)
	m.apu = apu.New(48000)

	// A timer-0/1 overflow pops one sample off whichever FIFO channel
	// SOUNDCNT_H bound it to, and (when that FIFO has drained to half)
	// arms the matching Special-timing DMA channel to refill it
	// (spec.md §4.7; DMA1 always feeds FIFO A, DMA2 always feeds FIFO B).
	m.timer.OnOverflow = func(ch int) {
		m.apu.OnTimerOverflow(ch)
		if m.apu.FIFOATimer() == ch && m.apu.FIFOANeedsRefill() {
			m.dma.NotifySpecial(1)
		}
		if m.apu.FIFOBTimer() == ch && m.apu.FIFOBNeedsRefill() {
			m.dma.NotifySpecial(2)
		}
	}

	m.bus.SetIORegs(m)
	m.bus.SetCPU(m.cpu)

	return m, nil
}

// LoadBIOS installs a real 16 KiB BIOS image; without one, Reset must be
// called with skipBIOS=true (spec.md §6 Open Question "BIOS HLE vs real
// image", decided in favor of supporting both).
func (m *Machine) LoadBIOS(data []byte) error {
	if len(data) != 16*1024 {
		return errors.New("gba: BIOS image must be exactly 16384 bytes")
	}
	m.bus.LoadBIOS(data)
	return nil
}

// Reset boots the CPU either from BIOS address 0 (skipBIOS=false, the
// real reset vector) or directly into post-BIOS System-mode state at the
// cartridge entry point (skipBIOS=true).
func (m *Machine) Reset(skipBIOS bool) {
	if skipBIOS {
		m.cpu.SkipBIOSBoot()
	} else {
		m.cpu.ResetToBIOS()
	}
}

// SetKeypadState latches the current 10-button input for the next frame.
func (m *Machine) SetKeypadState(s keypad.State) { m.keypad.SetState(s) }

// Framebuffer returns the most recently rendered 240x160 ARGB frame.
func (m *Machine) Framebuffer() [ppu.ScreenWidth * ppu.ScreenHeight]uint32 {
	return m.ppu.Framebuffer()
}

// Image exposes the framebuffer as a golang.org/x/image-compatible
// image.Image, for cmd/corerunner's PNG/CRC golden-frame tooling.
func (m *Machine) Image() image.Image { return m.ppu.Image() }

// FlushBackup persists any battery-backed save data through the
// cartridge's ByteFile collaborator.
func (m *Machine) FlushBackup() { m.cart.FlushBackup() }

// PullAudio returns up to max buffered stereo frames as interleaved
// [L0,R0,L1,R1,...] int16 PCM, for the front-end's audio player to drain.
func (m *Machine) PullAudio(max int) []int16 { return m.apu.PullStereo(max) }

// AudioFramesAvailable reports how many stereo frames are currently
// buffered, so the front-end can pace playback against EmulateFrame calls.
func (m *Machine) AudioFramesAvailable() int { return m.apu.StereoAvailable() }

// ClearAudioBuffer drops any buffered audio, used when resyncing after a
// pause or a turbo-speed change.
func (m *Machine) ClearAudioBuffer() { m.apu.ClearBuffer() }

// EmulateFrame runs the scheduler/CPU/DMA loop for approximately one
// frame's worth of cycles, carrying any overshoot into the next call so
// long-run audio/video sync never drifts (spec.md §6).
func (m *Machine) EmulateFrame() {
	target := m.sched.Timestamp() + cyclesPerFrame
	if m.overshoot < cyclesPerFrame {
		target -= m.overshoot
	}

	if m.keypad.IRQPending() {
		m.irqc.Raise(irq.Keypad)
	}

	for m.sched.Timestamp() < target {
		switch {
		case m.dma.Busy():
			m.dma.StepOneUnit()
		case m.cpu.Halted() && m.irqc.Pending():
			m.cpu.ClearHalt()
		case m.cpu.Halted():
			if deadline, ok := m.sched.PeekDeadline(); ok {
				m.sched.SkipTo(deadline)
			} else {
				m.sched.SkipTo(target)
			}
		default:
			m.cpu.Step()
		}
		m.drainEvents()

		now := m.sched.Timestamp()
		if now > m.apuLastTs {
			m.apu.Tick(int(now - m.apuLastTs))
			m.apuLastTs = now
		}
	}

	now := m.sched.Timestamp()
	if now > target {
		m.overshoot = now - target
	} else {
		m.overshoot = 0
	}
}

// drainEvents dispatches every scheduler event whose deadline has passed,
// looping because a single CPU step or SkipTo can make several events due
// at once (e.g. HBlank and a timer overflow landing on the same cycle).
func (m *Machine) drainEvents() {
	for {
		tag, _, ok := m.sched.PopDue()
		if !ok {
			return
		}
		now := m.sched.Timestamp()
		switch tag {
		case sched.TagPpuHDraw:
			m.ppu.OnHDraw(now)
		case sched.TagPpuHBlank:
			m.ppu.OnHBlank(now)
		case sched.TagTimerOverflow:
			m.timer.OnOverflowEvent(now)
		}
	}
}

// Register offsets within the 0x0400_0000 I/O page this fold dispatches.
const (
	ioDispcntStart = 0x000
	ioLCDEnd       = 0x056 // exclusive: last PPU register is BLDY at 0x054

	ioDMABase = 0x0B0
	ioDMAEnd  = 0x0E0

	ioTimerBase = 0x100
	ioTimerEnd  = 0x110

	ioSoundBase = 0x060
	ioSoundEnd  = 0x0A8

	ioKeyInput = 0x130
	ioKeyCnt   = 0x132

	ioIE      = 0x200
	ioIF      = 0x202
	ioWaitCnt = 0x204
	ioIME     = 0x208

	ioHaltCnt = 0x300
)

// ReadIO16/WriteIO16 implement bus.IORegs: addr arrives as a full 32-bit
// bus address in the 0x0400_0000 page; this fold masks it down to a page
// offset and routes to the owning subsystem (spec.md §4.2).
func (m *Machine) ReadIO16(addr uint32) uint16 {
	off := addr & 0xFFF
	switch {
	case off < ioLCDEnd:
		return m.ppu.ReadIO16(off)
	case off >= ioSoundBase && off < ioSoundEnd:
		return m.apu.ReadIO16(off - ioSoundBase)
	case off >= ioDMABase && off < ioDMAEnd:
		return m.readDMA(off)
	case off >= ioTimerBase && off < ioTimerEnd:
		return m.readTimer(off)
	case off == ioKeyInput:
		return m.keypad.ReadKeyInput()
	case off == ioKeyCnt:
		return m.keypad.ReadKeyCnt()
	case off == ioIE:
		return m.irqc.ReadIE()
	case off == ioIF:
		return m.irqc.ReadIF()
	case off == ioWaitCnt:
		return m.bus.Wait.Read()
	case off == ioIME:
		return m.irqc.ReadIME()
	default:
		return 0
	}
}

func (m *Machine) WriteIO16(addr uint32, v uint16) {
	off := addr & 0xFFF
	switch {
	case off < ioLCDEnd:
		m.ppu.WriteIO16(off, v)
	case off >= ioSoundBase && off < ioSoundEnd:
		m.apu.WriteIO16(off-ioSoundBase, v)
	case off >= ioDMABase && off < ioDMAEnd:
		m.writeDMA(off, v)
	case off >= ioTimerBase && off < ioTimerEnd:
		m.writeTimer(off, v)
	case off == ioKeyCnt:
		m.keypad.WriteKeyCnt(v)
	case off == ioIE:
		m.irqc.WriteIE(v)
	case off == ioIF:
		m.irqc.WriteIF(v)
	case off == ioWaitCnt:
		m.bus.Wait.Write(v)
	case off == ioIME:
		m.irqc.WriteIME(v)
	case off == ioHaltCnt:
		// Writing HALTCNT always halts here; STOP (low-power, display off)
		// is outside spec.md's scope and is treated the same as HALT.
		m.cpu.Halt()
	}
}

// readDMA/writeDMA fold the four channels' src/dest/count/control quads,
// each 0xC bytes apart starting at 0x0B0 (spec.md §4.4 register layout).
func (m *Machine) readDMA(off uint32) uint16 {
	i := int((off - ioDMABase) / 0xC)
	reg := (off - ioDMABase) % 0xC
	if reg == 0xA {
		return m.dma.ReadControl(i)
	}
	return 0 // SAD/DAD/CNT_L are write-only on real hardware
}

func (m *Machine) writeDMA(off uint32, v uint16) {
	i := int((off - ioDMABase) / 0xC)
	reg := (off - ioDMABase) % 0xC
	switch reg {
	case 0x0:
		m.dmaSrc[i] = (m.dmaSrc[i] &^ 0xFFFF) | uint32(v)
		m.dma.WriteSrc(i, m.dmaSrc[i], dmaSrcMask[i])
	case 0x2:
		m.dmaSrc[i] = (m.dmaSrc[i] &^ 0xFFFF0000) | uint32(v)<<16
		m.dma.WriteSrc(i, m.dmaSrc[i], dmaSrcMask[i])
	case 0x4:
		m.dmaDest[i] = (m.dmaDest[i] &^ 0xFFFF) | uint32(v)
		m.dma.WriteDest(i, m.dmaDest[i], dmaDestMask[i])
	case 0x6:
		m.dmaDest[i] = (m.dmaDest[i] &^ 0xFFFF0000) | uint32(v)<<16
		m.dma.WriteDest(i, m.dmaDest[i], dmaDestMask[i])
	case 0x8:
		m.dma.WriteCount(i, v)
	case 0xA:
		m.dma.WriteControl(i, v)
		if i == 3 && m.cart.EEPROM != nil {
			m.cart.EEPROM.InferSizeFromUnitCount(m.dma.EEPROMUnitCount())
		}
	}
}

// readTimer/writeTimer fold the four TMxCNT_L/TMxCNT_H pairs, 4 bytes
// apart starting at 0x100 (spec.md §4.5 register layout).
func (m *Machine) readTimer(off uint32) uint16 {
	i := int((off - ioTimerBase) / 4)
	reg := (off - ioTimerBase) % 4
	now := m.sched.Timestamp()
	if reg == 0 {
		return m.timer.ReadCount(i, now)
	}
	return m.timer.ReadControl(i)
}

func (m *Machine) writeTimer(off uint32, v uint16) {
	i := int((off - ioTimerBase) / 4)
	reg := (off - ioTimerBase) % 4
	now := m.sched.Timestamp()
	if reg == 0 {
		m.timer.WriteReload(i, v, now)
	} else {
		m.timer.WriteControl(i, v, now)
	}
}
