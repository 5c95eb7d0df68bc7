package timer

import (
	"testing"

	"github.com/lj360-emu/gba/internal/irq"
	"github.com/lj360-emu/gba/internal/sched"
)

func TestTimerOverflowRaisesIRQ(t *testing.T) {
	sch := sched.New()
	irqc := &irq.Controller{IME: true, IE: 1 << irq.Timer0}
	b := New(sch, irqc)

	b.WriteReload(0, 0xFFF0, sch.Timestamp())
	// enable, IRQ on overflow, prescaler=1 (period 1 cycle/tick)
	b.WriteControl(0, 0xC0, sch.Timestamp())

	sch.Advance(16) // exactly one full period: wraps once
	b.advance(sch.Timestamp())

	if got := b.ReadCount(0, sch.Timestamp()); got != 0xFFF0 {
		t.Fatalf("count after one overflow = %#x, want 0xFFF0", got)
	}
	if irqc.IF&(1<<irq.Timer0) == 0 {
		t.Fatalf("expected Timer0 IRQ to be raised")
	}
}

func TestTimerCascade(t *testing.T) {
	sch := sched.New()
	irqc := &irq.Controller{}
	b := New(sch, irqc)

	b.WriteReload(0, 0xFFFF, sch.Timestamp()) // overflows every tick
	b.WriteControl(0, 0x80, sch.Timestamp())  // prescaler 1, enabled

	b.WriteReload(1, 0, sch.Timestamp())
	b.WriteControl(1, 0x84, sch.Timestamp()) // cascade + enabled

	sch.Advance(3)
	b.advance(sch.Timestamp())

	if got := b.ReadCount(1, sch.Timestamp()); got != 3 {
		t.Fatalf("cascaded timer1 count = %d, want 3", got)
	}
}

func TestWriteControlEnableEdgeLoadsReload(t *testing.T) {
	sch := sched.New()
	b := New(sch, &irq.Controller{})

	b.WriteReload(2, 0x1234, sch.Timestamp())
	b.WriteControl(2, 0x80, sch.Timestamp())

	if got := b.ReadCount(2, sch.Timestamp()); got != 0x1234 {
		t.Fatalf("count after enable edge = %#x, want 0x1234", got)
	}
}
