package cpu

import (
	"testing"

	"github.com/lj360-emu/gba/internal/bus"
	"github.com/lj360-emu/gba/internal/irq"
	"github.com/lj360-emu/gba/internal/sched"
)

const testBase = 0x03000000 // IWRAM, no wait states, no side effects

func newTestCPU() (*CPU, *bus.Bus) {
	sch := sched.New()
	b := bus.New(sch)
	irqc := &irq.Controller{}
	c := New(b, irqc)
	return c, b
}

// primeAt writes code into IWRAM starting at testBase and primes the
// pipeline as if a branch had just landed there, matching what
// branchTo/flushPipelineARM does for every real taken branch.
func primeAt(c *CPU, b *bus.Bus, code []uint32) {
	for i, w := range code {
		b.Write32(testBase+uint32(i*4), w, bus.NonSeq)
	}
	c.Registers().SetPC(testBase)
	c.flushPipelineARM()
}

func TestResetToBIOS(t *testing.T) {
	c, _ := newTestCPU()
	c.ResetToBIOS()

	r := c.Registers()
	if r.Mode() != ModeSupervisor {
		t.Fatalf("mode after reset = %v, want Supervisor", r.Mode())
	}
	if !r.IRQDisabled() || !r.FIQDisabled() {
		t.Fatalf("IRQ/FIQ should be masked after reset")
	}
	if r.Thumb() {
		t.Fatalf("should start in ARM state")
	}
	if r.PC() != 8 {
		t.Fatalf("PC after reset-and-flush = %#x, want 8", r.PC())
	}
}

// TestADDFlagSemantics covers spec §8 scenario 2: ADDS r0,r1,r2 with
// r1=0xFFFFFFFF, r2=1 must wrap to 0 and set Z and C but not V or N.
func TestADDFlagSemantics(t *testing.T) {
	c, b := newTestCPU()
	c.Registers().SetReg(1, 0xFFFFFFFF)
	c.Registers().SetReg(2, 1)

	// ADDS r0, r1, r2
	primeAt(c, b, []uint32{0xE0910002})
	c.Step()

	r := c.Registers()
	if got := r.GetReg(0); got != 0 {
		t.Fatalf("r0 = %#x, want 0", got)
	}
	if !r.Z() || !r.C() {
		t.Fatalf("expected Z and C set, got Z=%v C=%v", r.Z(), r.C())
	}
	if r.N() || r.V() {
		t.Fatalf("expected N and V clear, got N=%v V=%v", r.N(), r.V())
	}
}

func TestADDOverflowSetsV(t *testing.T) {
	c, b := newTestCPU()
	c.Registers().SetReg(1, 0x7FFFFFFF)
	c.Registers().SetReg(2, 1)

	primeAt(c, b, []uint32{0xE0910002}) // ADDS r0, r1, r2
	c.Step()

	r := c.Registers()
	if got := r.GetReg(0); got != 0x80000000 {
		t.Fatalf("r0 = %#x, want 0x80000000", got)
	}
	if !r.V() || !r.N() {
		t.Fatalf("expected V and N set on signed overflow, got V=%v N=%v", r.V(), r.N())
	}
	if r.C() {
		t.Fatalf("unsigned carry should not be set")
	}
}

// TestBranchAndLink covers spec §8 scenario 3: BL must set LR to the
// return address and jump to the encoded target, re-priming the pipeline.
func TestBranchAndLink(t *testing.T) {
	c, b := newTestCPU()

	// BL <target>, offset encoded so target = (addr+8) + 0x20.
	const offsetWords = 0x20 / 4
	instr := uint32(0xEB000000) | uint32(offsetWords)
	primeAt(c, b, []uint32{instr})

	beforePC := c.Registers().PC() // addr(instr)+8, per ARM's pipeline-visible PC
	c.Step()

	r := c.Registers()
	wantTarget := testBase + 8 + 0x20
	if r.PC() != uint32(wantTarget)+8 {
		t.Fatalf("PC after BL = %#x, want %#x (target+8 after re-flush)", r.PC(), wantTarget+8)
	}
	if wantLR := beforePC - 4; r.GetReg(14) != wantLR {
		t.Fatalf("LR after BL = %#x, want %#x", r.GetReg(14), wantLR)
	}
}

func TestConditionEval(t *testing.T) {
	r := &Registers{}
	r.SetZ(true)
	if !r.evalCondition(CondEQ) {
		t.Fatalf("EQ should hold when Z set")
	}
	if r.evalCondition(CondNE) {
		t.Fatalf("NE should not hold when Z set")
	}
	r.SetZ(false)
	r.SetN(true)
	r.SetV(false)
	if r.evalCondition(CondGE) {
		t.Fatalf("GE should not hold when N!=V")
	}
	if !r.evalCondition(CondLT) {
		t.Fatalf("LT should hold when N!=V")
	}
}

// TestDispatchTableCompleteness is the spec's universal invariant: every
// entry in both decode tables resolves to a concrete, callable handler
// (no nil function pointers reachable through the generated index).
func TestDispatchTableCompleteness(t *testing.T) {
	for i := 0; i < len(armTable); i++ {
		if armTable[i] == nil {
			t.Fatalf("armTable[%d] is nil", i)
		}
	}
	for i := 0; i < len(thumbTable); i++ {
		if thumbTable[i] == nil {
			t.Fatalf("thumbTable[%d] is nil", i)
		}
	}
}

func TestThumbShiftAndMove(t *testing.T) {
	c, b := newTestCPU()
	c.Registers().SetReg(1, 0x1)

	// LSL r0, r1, #4 (Thumb format 1).
	instr := uint16(4<<6) | uint16(1<<3) | 0
	b.Write16(testBase, instr, bus.NonSeq)
	c.Registers().SetPC(testBase)
	c.Registers().SetThumb(true)
	c.flushPipelineThumb()
	c.Step()

	if got := c.Registers().GetReg(0); got != 0x10 {
		t.Fatalf("r0 = %#x, want 0x10", got)
	}
}

func TestSWIEntersSupervisorMode(t *testing.T) {
	c, b := newTestCPU()
	primeAt(c, b, []uint32{0xEF000000}) // SWI #0
	c.Step()

	r := c.Registers()
	if r.Mode() != ModeSupervisor {
		t.Fatalf("mode after SWI = %v, want Supervisor", r.Mode())
	}
	if r.PC() != 0x08+8 {
		t.Fatalf("PC after SWI = %#x, want %#x", r.PC(), 0x08+8)
	}
	if !r.IRQDisabled() {
		t.Fatalf("IRQ should be masked on SWI entry")
	}
	if want := uint32(testBase + 4); r.GetReg(14) != want {
		t.Fatalf("r14 after SWI = %#x, want %#x", r.GetReg(14), want)
	}
}
