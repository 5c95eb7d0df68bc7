// Package cpu implements the ARM7TDMI interpreter: banked register file,
// CPSR/SPSR, a two-slot pipeline, ARM and Thumb decoders built as
// compile-time-generated dispatch tables, and exception entry
// (spec.md §3, §4.3).
package cpu

import (
	"github.com/lj360-emu/gba/internal/bus"
	"github.com/lj360-emu/gba/internal/irq"
)

// CPU couples the register file to the bus and interrupt controller. It
// mirrors the teacher's CPU shape (registers + bus + cycle counter) while
// replacing the SM83 core with ARM7TDMI semantics.
type CPU struct {
	regs *Registers
	bus  *bus.Bus
	irqc *irq.Controller

	// pipeline holds the two pre-fetched opcode words; pipeline[0] is the
	// decode slot, pipeline[1] the fetch slot (spec.md §3 CPU state).
	pipeline [2]uint32

	halted bool

	// flushed marks that flushPipelineARM/Thumb already ran this Step
	// (branch, BX, exception entry) so Step must not also run the
	// ordinary advance afterward.
	flushed bool
}

func New(b *bus.Bus, irqc *irq.Controller) *CPU {
	c := &CPU{regs: NewRegisters(), bus: b, irqc: irqc}
	return c
}

func (c *CPU) Registers() *Registers { return c.regs }

// PeekPipeline/PC/Thumb implement bus.PipelinePeeker (open-bus support).
func (c *CPU) PeekPipeline() (uint32, uint32) { return c.pipeline[0], c.pipeline[1] }
func (c *CPU) PC() uint32                     { return c.regs.PC() }
func (c *CPU) Thumb() bool                    { return c.regs.Thumb() }

func (c *CPU) Halted() bool { return c.halted }
func (c *CPU) Halt()        { c.halted = true }
func (c *CPU) ClearHalt()   { c.halted = false }

// ResetToBIOS sets PC to the BIOS reset vector in Supervisor mode with
// interrupts masked, then fills the pipeline — spec.md §6 construction
// with skip-BIOS=false, and end-to-end scenario 1.
func (c *CPU) ResetToBIOS() {
	c.regs = NewRegisters()
	c.regs.SwitchMode(ModeSupervisor)
	c.regs.SetThumb(false)
	c.regs.SetIRQDisabled(true)
	c.regs.SetFIQDisabled(true)
	c.regs.SetPC(0)
	c.flushPipelineARM()
}

// SkipBIOSBoot sets up post-BIOS register state directly (the GBA
// "skip_bios" construction option in spec.md §6), entering System mode
// with SP banks preloaded the way the real BIOS leaves them and jumping
// straight to cartridge ROM entry at 0x0800_0000.
func (c *CPU) SkipBIOSBoot() {
	c.regs = NewRegisters()
	c.regs.SwitchMode(ModeSupervisor)
	c.regs.R[13] = 0x03007FE0
	c.regs.SwitchMode(ModeIRQ)
	c.regs.R[13] = 0x03007FA0
	c.regs.SwitchMode(ModeSystem)
	c.regs.R[13] = 0x03007F00
	c.regs.SetThumb(false)
	c.regs.SetIRQDisabled(false)
	c.regs.SetFIQDisabled(false)
	c.regs.SetPC(0x08000000)
	c.flushPipelineARM()
}

// flushPipelineARM/Thumb refill the two-slot pipeline after a branch or
// exception, per spec.md §4.3: one Non-sequential fetch followed by one
// Sequential fetch.
func (c *CPU) flushPipelineARM() {
	pc := c.regs.PC()
	c.pipeline[0] = c.bus.Read32(pc, bus.NonSeq)
	c.pipeline[1] = c.bus.Read32(pc+4, bus.Seq)
	c.regs.SetPC(pc + 8)
	c.flushed = true
}

func (c *CPU) flushPipelineThumb() {
	pc := c.regs.PC()
	c.pipeline[0] = uint32(c.bus.Read16(pc, bus.NonSeq))
	c.pipeline[1] = uint32(c.bus.Read16(pc+2, bus.Seq))
	c.regs.SetPC(pc + 4)
	c.flushed = true
}

// checkIRQ implements spec.md §4.7: IRQ entry fires before instruction
// execution whenever IME && (IE&IF)!=0 && !CPSR.I.
func (c *CPU) checkIRQ() bool {
	if !c.irqc.Pending() || c.regs.IRQDisabled() {
		return false
	}
	if c.halted {
		c.halted = false
	}
	c.enterException(ExcIRQ)
	return true
}

// Step executes exactly one instruction (or services a pending IRQ),
// advancing the pipeline. If the CPU is halted it does nothing; the
// top-level loop is responsible for calling skip_to on the scheduler
// while halted (spec.md §5 Halt/stop).
//
// Execution happens before the ordinary pipeline advance, not after:
// every handler that reads r15 relies on it already holding "address of
// the executing instruction + 8" (ARM) or "+4" (Thumb), which is exactly
// the value flushPipelineARM/Thumb left behind after the last branch (or
// the previous Step's advance). Advancing first would bump PC one slot
// too far before execution ever saw it. Any taken branch/exception
// re-flushes the pipeline itself (setting c.flushed), so the trailing
// advance below is skipped for that step — it would otherwise stomp the
// freshly-primed pipeline with a spurious extra fetch.
func (c *CPU) Step() {
	if c.halted {
		return
	}
	if c.checkIRQ() {
		return
	}

	c.flushed = false
	if c.regs.Thumb() {
		instr := c.pipeline[0]
		c.executeThumb(uint16(instr))
		if !c.flushed {
			c.advanceThumbPipeline()
		}
	} else {
		instr := c.pipeline[0]
		c.executeARM(instr)
		if !c.flushed {
			c.advanceARMPipeline()
		}
	}
}

// advanceARMPipeline/ThumbPipeline implement the ordinary (non-branching)
// pipeline step: shift pipeline[1]->pipeline[0], refill pipeline[1] with
// a Sequential fetch, advance PC (spec.md §4.3 "Pipeline").
func (c *CPU) advanceARMPipeline() {
	c.pipeline[0] = c.pipeline[1]
	pc := c.regs.PC()
	c.pipeline[1] = c.bus.Read32(pc, bus.Seq)
	c.regs.SetPC(pc + 4)
}

func (c *CPU) advanceThumbPipeline() {
	c.pipeline[0] = c.pipeline[1]
	pc := c.regs.PC()
	c.pipeline[1] = uint32(c.bus.Read16(pc, bus.Seq))
	c.regs.SetPC(pc + 2)
}

// branchTo sets PC to target and flushes the pipeline; used by every
// taken branch, BX, data-processing writes to r15, and LDM with r15 in
// the register list.
func (c *CPU) branchTo(target uint32, thumb bool) {
	c.regs.SetThumb(thumb)
	if thumb {
		c.regs.SetPC(target &^ 1)
		c.flushPipelineThumb()
	} else {
		c.regs.SetPC(target &^ 3)
		c.flushPipelineARM()
	}
}

// softwareInterrupt triggers the SWI exception (ARM SWI and Thumb SWI
// handlers both call this).
func (c *CPU) softwareInterrupt() { c.enterException(ExcSoftwareInterrupt) }

func (c *CPU) undefinedInstruction() { c.enterException(ExcUndefined) }
