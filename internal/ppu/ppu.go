// Package ppu implements the GBA's scanline-based pixel processing unit:
// tile/affine/bitmap backgrounds, sprites, windowing, and blending
// (spec.md §4.6), driven by two scheduler event tags (HDraw and HBlank).
package ppu

import (
	"image"
	"image/color"

	"github.com/lj360-emu/gba/internal/irq"
	"github.com/lj360-emu/gba/internal/mem"
	"github.com/lj360-emu/gba/internal/sched"
)

const (
	ScreenWidth  = 240
	ScreenHeight = 160

	cyclesPerVisibleLine = 960
	cyclesPerHBlank      = 272
	cyclesPerLine        = cyclesPerVisibleLine + cyclesPerHBlank
	visibleLines         = 160
	totalLines           = 228
)

// DMANotifier is the narrow surface PPU needs on the DMA controller to
// arm HBlank/VBlank-timed channels; satisfied by dma.Controller.
type DMANotifier interface {
	NotifyHBlank()
	NotifyVBlank()
}

// PPU owns the register file and renders into an internal framebuffer.
// VRAM/Palette/OAM are NOT owned here — they live on the shared bus — so
// every render call is handed the blobs to read from, keeping PPU free of
// any import on internal/bus (avoiding the bus<->ppu cycle the same way
// internal/cpu avoids it via bus.PipelinePeeker).
type PPU struct {
	Regs Registers

	framebuffer [ScreenWidth * ScreenHeight]uint32

	sched *sched.Scheduler
	irqc  *irq.Controller
	dma   DMANotifier

	vram    *mem.Blob
	palette *mem.Blob
	oam     *mem.Blob
}

func New(sch *sched.Scheduler, irqc *irq.Controller, dma DMANotifier, vram, palette, oam *mem.Blob) *PPU {
	p := &PPU{sched: sch, irqc: irqc, dma: dma, vram: vram, palette: palette, oam: oam}
	sch.Schedule(sched.TagPpuHDraw, cyclesPerVisibleLine)
	return p
}

// Framebuffer returns the row-major ARGB pixel array for the just-
// rendered frame (spec.md §6 framebuffer()).
func (p *PPU) Framebuffer() [ScreenWidth * ScreenHeight]uint32 { return p.framebuffer }

// Image exposes a golang.org/x/image-compatible view of the framebuffer
// for cmd/corerunner's PNG dump, avoiding a second RGBA copy loop.
func (p *PPU) Image() image.Image { return frameImage{p} }

type frameImage struct{ p *PPU }

func (f frameImage) ColorModel() color.Model { return color.RGBAModel }
func (f frameImage) Bounds() image.Rectangle { return image.Rect(0, 0, ScreenWidth, ScreenHeight) }
func (f frameImage) At(x, y int) color.Color {
	argb := f.p.framebuffer[y*ScreenWidth+x]
	return color.RGBA{
		R: byte(argb >> 16),
		G: byte(argb >> 8),
		B: byte(argb),
		A: 0xFF,
	}
}

// OnHDraw fires at the HDraw->HBlank boundary of a visible line: render
// the line, set DISPSTAT.hblank, notify DMA, advance affine internals
// (spec.md §4.6).
func (p *PPU) OnHDraw(now uint64) {
	line := int(p.Regs.VCOUNT)
	if line < visibleLines {
		p.renderScanline(line)
	}

	p.Regs.setHblank(true)
	if p.Regs.hblankIRQ() {
		p.irqc.Raise(irq.HBlank)
	}
	if p.dma != nil {
		p.dma.NotifyHBlank()
	}
	if line < visibleLines {
		for i := 0; i < 2; i++ {
			p.Regs.internalDX[i] += int32(int16(p.Regs.BGPB[i]))
			p.Regs.internalDY[i] += int32(int16(p.Regs.BGPD[i]))
		}
	}

	p.sched.Schedule(sched.TagPpuHBlank, cyclesPerHBlank)
}

// OnHBlank fires at the HBlank->next-line boundary: increments VCOUNT,
// handles the vcount-match IRQ, and the vblank transition (spec.md §4.6).
func (p *PPU) OnHBlank(now uint64) {
	p.Regs.setHblank(false)
	line := int(p.Regs.VCOUNT) + 1
	if line >= totalLines {
		line = 0
	}
	p.Regs.VCOUNT = uint16(line)

	matched := uint16(line) == p.Regs.vcountSetting()
	p.Regs.setVcounter(matched)
	if matched && p.Regs.vcountIRQ() {
		p.irqc.Raise(irq.VCount)
	}

	switch {
	case line == visibleLines:
		p.Regs.setVblank(true)
		if p.Regs.vblankIRQ() {
			p.irqc.Raise(irq.VBlank)
		}
		if p.dma != nil {
			p.dma.NotifyVBlank()
		}
		for i := 0; i < 2; i++ {
			p.Regs.internalDX[i] = p.Regs.BGX[i]
			p.Regs.internalDY[i] = p.Regs.BGY[i]
		}
	case line == 0:
		p.Regs.setVblank(false)
	}

	p.sched.Schedule(sched.TagPpuHDraw, cyclesPerVisibleLine)
}
