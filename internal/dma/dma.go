// Package dma implements the GBA's four prioritized DMA channels
// (spec.md §4.4): arming, shadow-register latching, unit-at-a-time
// transfer through the bus, and the priority arbitration that preempts
// CPU execution while any channel is active.
package dma

import (
	"github.com/lj360-emu/gba/internal/bus"
	"github.com/lj360-emu/gba/internal/irq"
	"github.com/lj360-emu/gba/internal/sched"
)

// AdjustMode is the per-side address adjustment on each transferred unit.
type AdjustMode int

const (
	AdjustIncrement AdjustMode = iota
	AdjustDecrement
	AdjustFixed
	AdjustIncrementReload // destination-only; illegal for source
)

// Timing selects the arming condition.
type Timing int

const (
	TimingImmediate Timing = iota
	TimingVBlank
	TimingHBlank
	TimingSpecial
)

// Bus is the narrow read/write surface DMA needs; satisfied by bus.Bus.
type Bus interface {
	Read16(addr uint32, access bus.Access) uint16
	Read32(addr uint32, access bus.Access) uint32
	Write16(addr uint32, v uint16, access bus.Access)
	Write32(addr uint32, v uint32, access bus.Access)
}

type channel struct {
	srcAddr, destAddr uint32
	count             uint16
	srcAdjust         AdjustMode
	destAdjust        AdjustMode
	repeat            bool
	wordSize32        bool
	timing            Timing
	irqOnComplete     bool
	enabled           bool

	internalSrc, internalDest uint32
	internalCount             uint32
	active                    bool
	firstUnit                 bool
}

// unitSize returns the access width in bytes.
func (c *channel) unitSize() uint32 {
	if c.wordSize32 {
		return 4
	}
	return 2
}

// maxCountFor returns the register value of 0 decoded to its implied
// transfer count (spec.md §4.4): 0x4000 for channels 0-2, 0x10000 for 3.
func maxCountFor(index int) uint32 {
	if index == 3 {
		return 0x10000
	}
	return 0x4000
}

// Controller owns all four channels and the scheduler/bus/irq wiring.
type Controller struct {
	ch    [4]channel
	bus   Bus
	irqc  *irq.Controller
	sched *sched.Scheduler

	irqSources [4]irq.Source
}

func New(sch *sched.Scheduler, b Bus, irqc *irq.Controller) *Controller {
	return &Controller{
		sched:      sch,
		bus:        b,
		irqc:       irqc,
		irqSources: [4]irq.Source{irq.Dma0, irq.Dma1, irq.Dma2, irq.Dma3},
	}
}

// arm loads the shadow registers and marks channel i active; called on
// Immediate enable-rising-edge and on VBlank/HBlank/Special notification.
func (d *Controller) arm(i int) {
	c := &d.ch[i]
	if !c.enabled {
		return
	}
	c.internalSrc = c.srcAddr
	c.internalDest = c.destAddr
	cnt := uint32(c.count)
	if cnt == 0 {
		cnt = maxCountFor(i)
	}
	c.internalCount = cnt
	c.active = true
	c.firstUnit = true
}

// NotifyVBlank/NotifyHBlank arm any channel configured for that timing.
func (d *Controller) NotifyVBlank() { d.notify(TimingVBlank) }
func (d *Controller) NotifyHBlank() { d.notify(TimingHBlank) }

// NotifySpecial arms channels 1/2 (audio FIFO) or 3 (video capture) that
// are configured for Special timing; callers (timer overflow / PPU)
// decide which index is relevant and call with it directly. A request that
// arrives while the channel is still transferring is ignored.
func (d *Controller) NotifySpecial(index int) {
	c := &d.ch[index]
	if c.enabled && c.timing == TimingSpecial && !c.active {
		d.arm(index)
	}
}

func (d *Controller) notify(t Timing) {
	for i := range d.ch {
		c := &d.ch[i]
		if c.enabled && c.timing == t {
			d.arm(i)
		}
	}
}

// ActiveChannel returns the lowest-numbered active channel, or -1.
func (d *Controller) ActiveChannel() int {
	for i := 0; i < 4; i++ {
		if d.ch[i].active {
			return i
		}
	}
	return -1
}

// Busy reports whether any channel currently owns the bus; the top-level
// run loop uses this to decide whether the CPU may execute this tick
// (spec.md §4.4 "The CPU does not execute while any channel is active").
func (d *Controller) Busy() bool { return d.ActiveChannel() >= 0 }

// StepOneUnit transfers exactly one unit on the highest-priority
// (lowest-numbered) active channel, applying adjustments and completion
// handling. The unit's access cycles are charged by the bus itself
// (spec.md §4.4 "per tick while active, the engine transfers one unit").
func (d *Controller) StepOneUnit() {
	i := d.ActiveChannel()
	if i < 0 {
		return
	}
	c := &d.ch[i]
	unit := c.unitSize()

	access := bus.Seq
	if c.firstUnit {
		access = bus.NonSeq
	}
	if c.wordSize32 {
		d.bus.Write32(c.internalDest, d.bus.Read32(c.internalSrc, access), access)
	} else {
		d.bus.Write16(c.internalDest, d.bus.Read16(c.internalSrc, access), access)
	}
	c.firstUnit = false

	c.internalSrc = adjust(c.internalSrc, c.srcAdjust, unit)
	c.internalDest = adjust(c.internalDest, c.destAdjust, unit)
	c.internalCount--

	if c.internalCount == 0 {
		if c.repeat {
			cnt := uint32(c.count)
			if cnt == 0 {
				cnt = maxCountFor(i)
			}
			c.internalCount = cnt
			if c.destAdjust == AdjustIncrementReload {
				c.internalDest = c.destAddr
			}
			if c.timing == TimingImmediate {
				c.active = false
			}
		} else {
			c.enabled = false
			c.active = false
		}
		if c.irqOnComplete && d.irqc != nil {
			d.irqc.Raise(d.irqSources[i])
		}
	}
}

func adjust(addr uint32, mode AdjustMode, unit uint32) uint32 {
	switch mode {
	case AdjustIncrement, AdjustIncrementReload:
		return addr + unit
	case AdjustDecrement:
		return addr - unit
	default:
		return addr
	}
}

// Register layout: each channel has src(4)/dest(4)/count(2)/control(2).
// WriteSrc/WriteDest/WriteCount/WriteControl are the MMIO entry points
// the owning Machine's IORegs dispatch calls into.

func (d *Controller) WriteSrc(i int, v uint32, mask uint32) {
	d.ch[i].srcAddr = v & mask
}

func (d *Controller) WriteDest(i int, v uint32, mask uint32) {
	d.ch[i].destAddr = v & mask
}

func (d *Controller) WriteCount(i int, v uint16) {
	d.ch[i].count = v
}

// WriteControl decodes the 16-bit control word and, on an enable
// 0->1 transition with Immediate timing, arms the channel right away
// (spec.md §4.4: "Immediate at enable-rising-edge"). The illegal
// src-adjust = inc-reload configuration is rejected: the register write
// is dropped entirely (spec.md §7 invariant).
func (d *Controller) WriteControl(i int, v uint16) {
	c := &d.ch[i]
	srcAdjust := AdjustMode((v >> 7) & 0x3)
	if srcAdjust == AdjustIncrementReload {
		return
	}

	wasEnabled := c.enabled
	c.destAdjust = AdjustMode((v >> 5) & 0x3)
	c.srcAdjust = srcAdjust
	c.repeat = v&0x0200 != 0
	c.wordSize32 = v&0x0400 != 0
	c.timing = Timing((v >> 12) & 0x3)
	c.irqOnComplete = v&0x4000 != 0
	c.enabled = v&0x8000 != 0

	if !wasEnabled && c.enabled && c.timing == TimingImmediate {
		d.arm(i)
	}
}

func (d *Controller) ReadControl(i int) uint16 {
	c := &d.ch[i]
	var v uint16
	v |= uint16(c.destAdjust) << 5
	v |= uint16(c.srcAdjust) << 7
	if c.repeat {
		v |= 0x0200
	}
	if c.wordSize32 {
		v |= 0x0400
	}
	v |= uint16(c.timing) << 12
	if c.irqOnComplete {
		v |= 0x4000
	}
	if c.enabled {
		v |= 0x8000
	}
	return v
}

// EEPROMUnitCount reports the DMA 3 transfer's unit count, used by the
// cartridge to infer EEPROM size from the first access (spec.md §4.8,
// and the "EEPROM size detection" design note: a query method on DMA
// rather than a cartridge->DMA back-reference).
func (d *Controller) EEPROMUnitCount() int {
	c := &d.ch[3]
	cnt := int(c.count)
	if cnt == 0 {
		cnt = int(maxCountFor(3))
	}
	return cnt
}
