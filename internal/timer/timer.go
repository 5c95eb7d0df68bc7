// Package timer implements the GBA's four cascading 16-bit timers
// (spec.md §4.5). Counters are not ticked per cycle; instead every
// register access and the scheduler's TimerOverflow event trigger a
// lazy bulk advance from last_update to now.
package timer

import (
	"github.com/lj360-emu/gba/internal/irq"
	"github.com/lj360-emu/gba/internal/sched"
)

// prescalerPeriods maps a timer's 2-bit frequency select to the number
// of CPU cycles per tick.
var prescalerPeriods = [4]uint64{1, 64, 256, 1024}

const maxCount = 0x10000

type channel struct {
	reload  uint16
	count   uint16
	control uint16 // bit0-1 prescaler, bit2 cascade, bit6 irq-enable, bit7 start

	running bool
}

func (ch *channel) prescaler() uint64 { return prescalerPeriods[ch.control&0x3] }
func (ch *channel) cascade() bool     { return ch.control&0x4 != 0 }
func (ch *channel) irqEnabled() bool  { return ch.control&0x40 != 0 }
func (ch *channel) enabled() bool     { return ch.control&0x80 != 0 }

// Block owns all four timers and the lazy-advance bookkeeping.
type Block struct {
	ch         [4]channel
	lastUpdate uint64
	sched      *sched.Scheduler
	irqc       *irq.Controller

	irqSources [4]irq.Source

	// OnOverflow, when set, is invoked once per channel-0/1 overflow tick
	// so Direct Sound FIFO A/B can pop a sample (spec.md §4.7: FIFO
	// playback is clocked by timer overflow, not by the frame sequencer).
	OnOverflow func(channel int)
}

func New(sch *sched.Scheduler, irqc *irq.Controller) *Block {
	return &Block{sched: sch, irqc: irqc, irqSources: [4]irq.Source{irq.Timer0, irq.Timer1, irq.Timer2, irq.Timer3}}
}

// advance performs the bulk update for all four timers from lastUpdate
// to now, in channel order (so cascade inputs are correct), and returns
// nothing; it mutates counts/overflow IRQs in place.
func (b *Block) advance(now uint64) {
	if now <= b.lastUpdate {
		return
	}
	prevOverflows := 0
	for i := 0; i < 4; i++ {
		ch := &b.ch[i]
		if !ch.enabled() {
			prevOverflows = 0
			continue
		}

		var overflows uint64
		if ch.cascade() && i != 0 {
			if prevOverflows > 0 {
				overflows = b.applyOverflows(i, uint64(prevOverflows))
			}
		} else {
			period := ch.prescaler()
			elapsedTicks := now/period - b.lastUpdate/period
			if elapsedTicks > 0 {
				overflows = b.applyOverflows(i, elapsedTicks)
			}
		}
		prevOverflows = int(overflows)
	}
	b.lastUpdate = now
}

// applyOverflows advances channel i's counter by n ticks (either
// prescaler ticks or cascade ticks from the previous channel),
// returning the number of 0x10000 wraps observed, raising the
// per-channel IRQ for each.
func (b *Block) applyOverflows(i int, n uint64) uint64 {
	ch := &b.ch[i]
	period := maxCount - uint64(ch.reload)
	if period == 0 {
		period = maxCount
	}

	pos := uint64(ch.count) - uint64(ch.reload)
	total := pos + n
	overflowCount := total / period
	remainder := total % period
	ch.count = ch.reload + uint16(remainder)

	if overflowCount > 0 && ch.irqEnabled() && b.irqc != nil {
		for k := uint64(0); k < overflowCount; k++ {
			b.irqc.Raise(b.irqSources[i])
		}
	}
	if overflowCount > 0 && (i == 0 || i == 1) && b.OnOverflow != nil {
		for k := uint64(0); k < overflowCount; k++ {
			b.OnOverflow(i)
		}
	}
	return overflowCount
}

// rescheduleNextOverflow computes the next absolute timestamp at which
// any enabled, non-cascading timer overflows, and arms a single
// TimerOverflow event for it (spec.md §4.5: "recompute ... schedule a
// single TimerOverflow event").
func (b *Block) rescheduleNextOverflow(now uint64) {
	b.sched.Cancel(sched.TagTimerOverflow)
	var next uint64
	found := false
	for i := 0; i < 4; i++ {
		ch := &b.ch[i]
		if !ch.enabled() || (ch.cascade() && i != 0) {
			continue
		}
		period := ch.prescaler()
		remaining := maxCount - uint64(ch.count)
		deadline := now + remaining*period - (now % period)
		if !found || deadline < next {
			next = deadline
			found = true
		}
	}
	if found {
		b.sched.ScheduleAt(sched.TagTimerOverflow, next)
	}
}

// OnOverflowEvent handles the scheduler's TimerOverflow tag.
func (b *Block) OnOverflowEvent(now uint64) {
	b.advance(now)
	b.rescheduleNextOverflow(now)
}

func (b *Block) ReadCount(i int, now uint64) uint16 {
	b.advance(now)
	return b.ch[i].count
}

func (b *Block) ReadControl(i int) uint16 { return b.ch[i].control }

func (b *Block) WriteReload(i int, v uint16, now uint64) {
	b.advance(now)
	b.ch[i].reload = v
	b.rescheduleNextOverflow(now)
}

// WriteControl implements the enable 0->1 "copy reload into count" edge
// and re-arms the overflow scheduler after any control change.
func (b *Block) WriteControl(i int, v uint16, now uint64) {
	b.advance(now)
	ch := &b.ch[i]
	wasEnabled := ch.enabled()
	ch.control = v & 0xC7
	if !wasEnabled && ch.enabled() {
		ch.count = ch.reload
	}
	b.rescheduleNextOverflow(now)
}
