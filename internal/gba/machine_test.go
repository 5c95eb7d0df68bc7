package gba

import (
	"testing"

	"github.com/lj360-emu/gba/internal/keypad"
	"github.com/lj360-emu/gba/internal/ppu"
)

// minimalROM returns a ROM image just large enough to satisfy header
// parsing, with no recognizable backup-kind marker (BackupNone).
func minimalROM(size int) []byte {
	rom := make([]byte, size)
	copy(rom[0xA0:0xAC], "TESTGAME")
	copy(rom[0xAC:0xB0], "TEST")
	return rom
}

func newTestMachine(t *testing.T) *Machine {
	t.Helper()
	m, err := New(minimalROM(0x1000), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.Reset(true) // skip BIOS: no image loaded in this test
	return m
}

// TestMode3BitmapScanline covers spec §8 scenario 6: DISPCNT mode 3 with
// BG2 enabled renders straight from a 16-bit-per-pixel VRAM bitmap with no
// tile/palette indirection.
func TestMode3BitmapScanline(t *testing.T) {
	m := newTestMachine(t)

	// DISPCNT: mode 3, BG2 enabled.
	m.WriteIO16(0x04000000, 0x0003|0x0400)

	// First pixel of line 0: BGR555 pure red (0b0_00000_00000_11111).
	m.bus.VRAM.Write16(0, 0x001F)

	m.ppu.OnHDraw(0) // render scanline 0 directly, bypassing the scheduler

	fb := m.Framebuffer()
	got := fb[0]
	// bgr555ToARGB spreads each 5-bit channel into a byte's top 5 bits
	// (c&0x1F)<<19 for red, leaving the low 3 bits zero: pure 0x1F red
	// becomes 0xF8, not 0xFF.
	wantR, wantG, wantB := byte(0xF8), byte(0x00), byte(0x00)
	if byte(got>>16) != wantR || byte(got>>8) != wantG || byte(got) != wantB {
		t.Fatalf("pixel(0,0) = %#08x, want R=%02x G=%02x B=%02x", got, wantR, wantG, wantB)
	}
}

// TestIORegsFoldRoutesToOwningSubsystem spot-checks that a handful of
// addresses across the MMIO page reach the subsystem spec.md assigns them
// to, rather than silently returning zero through a gap in the fold.
func TestIORegsFoldRoutesToOwningSubsystem(t *testing.T) {
	m := newTestMachine(t)

	m.WriteIO16(0x04000208, 1) // IME
	if m.irqc.ReadIME() != 1 {
		t.Fatalf("IME not wired")
	}

	m.WriteIO16(0x04000200, 0x3FFF) // IE
	if m.irqc.ReadIE() != 0x3FFF {
		t.Fatalf("IE not wired")
	}

	m.WriteIO16(0x04000100, 0xFFF0) // TM0CNT_L reload
	m.WriteIO16(0x04000102, 0x0080) // TM0CNT_H enable, prescaler /1
	if got := m.ReadIO16(0x04000102); got&0x80 == 0 {
		t.Fatalf("timer0 control not wired, got %#x", got)
	}

	m.WriteIO16(0x040000B8, 4) // DMA0 count
	m.WriteIO16(0x040000BA, 0x8000) // DMA0 enable, immediate
	if got := m.ReadIO16(0x040000BA); got&0x8000 == 0 {
		t.Fatalf("DMA0 control not wired, got %#x", got)
	}
}

// TestKeypadIRQWiredIntoFrameLoop covers the KEYCNT AND/OR condition
// surfacing as a real IRQ source once EmulateFrame drains one frame.
func TestKeypadIRQWiredIntoFrameLoop(t *testing.T) {
	m := newTestMachine(t)
	m.WriteIO16(0x04000208, 1) // IME
	m.WriteIO16(0x04000200, 0x1000) // IE: Keypad only

	m.keypad.WriteKeyCnt(0x4001) // IRQ enable, OR mode, mask=button A
	var s keypad.State
	s.Buttons[keypad.ButtonA] = true
	m.SetKeypadState(s)

	m.EmulateFrame()

	if !m.irqc.Pending() {
		t.Fatalf("expected keypad IRQ to be pending after one frame")
	}
}

func TestFramebufferDimensions(t *testing.T) {
	m := newTestMachine(t)
	fb := m.Framebuffer()
	if len(fb) != ppu.ScreenWidth*ppu.ScreenHeight {
		t.Fatalf("framebuffer size = %d, want %d", len(fb), ppu.ScreenWidth*ppu.ScreenHeight)
	}
}

// TestSoundRegisterFoldReachesAPU covers spec §4.7: the I/O fold routes
// the 0x0400_0060-0x0400_00A8 range to the APU rather than dropping it.
func TestSoundRegisterFoldReachesAPU(t *testing.T) {
	m := newTestMachine(t)

	m.WriteIO16(0x04000084, 1<<7)          // SOUNDCNT_X master enable
	m.WriteIO16(0x04000062, 0xF000)        // SOUND1CNT_H: max volume
	m.WriteIO16(0x04000064, 0x8000|0x0300) // SOUND1CNT_X: trigger, freq

	if got := m.ReadIO16(0x04000084); got&(1<<7) == 0 {
		t.Fatalf("SOUNDCNT_X master enable not reflected: %#x", got)
	}
	if got := m.ReadIO16(0x04000084); got&1 == 0 {
		t.Fatalf("expected channel 1 on-flag set after trigger: %#x", got)
	}
}

// TestTimerOverflowDrivesFIFORefillRequest covers spec §4.7: a bound
// timer's overflow arms the Special-timing DMA channel that refills the
// corresponding FIFO once it drops to half-empty. DMA1 is hardwired to
// FIFO A on real hardware, channel index 1 here.
func TestTimerOverflowDrivesFIFORefillRequest(t *testing.T) {
	m := newTestMachine(t)

	m.WriteIO16(0x04000082, 0) // SOUNDCNT_H: FIFO A bound to timer 0

	m.WriteIO16(0x040000BC, 0x0000) // DMA1 source low -> 0x02000000
	m.WriteIO16(0x040000BE, 0x0200) // DMA1 source high
	m.WriteIO16(0x040000C0, 0x00A0) // DMA1 dest low -> 0x040000A0 (FIFO A)
	m.WriteIO16(0x040000C2, 0x0400) // DMA1 dest high
	m.WriteIO16(0x040000C4, 4)      // DMA1 count: one 16-byte FIFO-refill burst
	// enable, Special timing, 32-bit words, dest address fixed
	m.WriteIO16(0x040000C6, 0x8000|0x3000|0x0400|0x0040)

	m.WriteIO16(0x04000100, 0xFFFF) // TM0CNT_L: overflow on next tick
	m.WriteIO16(0x04000102, 0x0080) // TM0CNT_H: enable, prescaler /1

	m.EmulateFrame()

	if m.dma.Busy() {
		t.Fatalf("DMA1 should have already drained its one FIFO-refill burst within a frame")
	}
}
