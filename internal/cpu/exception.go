package cpu

// ExceptionKind enumerates the vectors spec.md §4.3 lists.
type ExceptionKind int

const (
	ExcReset ExceptionKind = iota
	ExcUndefined
	ExcSoftwareInterrupt
	ExcPrefetchAbort
	ExcDataAbort
	ExcIRQ
	ExcFIQ
)

type excInfo struct {
	vector   uint32
	mode     Mode
	pcOffset uint32 // added to the address of the instruction causing the exception
}

var excTable = map[ExceptionKind]excInfo{
	ExcReset:             {0x00, ModeSupervisor, 0},
	ExcUndefined:         {0x04, ModeUndefined, 4},
	ExcSoftwareInterrupt: {0x08, ModeSupervisor, 4},
	ExcPrefetchAbort:     {0x0C, ModeAbort, 4},
	ExcDataAbort:         {0x10, ModeAbort, 8},
	ExcIRQ:               {0x18, ModeIRQ, 4},
	ExcFIQ:               {0x1C, ModeFIQ, 4},
}

// enterException implements spec.md §4.3 exception entry:
//  1. compute return address,
//  2. save CPSR to SPSR of the target mode and move the return address
//     into that mode's r14 bank,
//  3. switch CPSR.M, clear T, set I (and F for Reset/FIQ),
//  4. jump to the fixed vector.
func (c *CPU) enterException(kind ExceptionKind) {
	info := excTable[kind]
	instrAddr := c.regs.PC() - 8
	if c.regs.Thumb() {
		instrAddr = c.regs.PC() - 4
	}
	retAddr := instrAddr + info.pcOffset
	savedCPSR := c.regs.CPSR

	c.regs.SetSPSRForMode(info.mode, savedCPSR)
	c.regs.SwitchMode(info.mode)
	c.regs.R[14] = retAddr

	c.regs.SetThumb(false)
	c.regs.SetIRQDisabled(true)
	if kind == ExcReset || kind == ExcFIQ {
		c.regs.SetFIQDisabled(true)
	}

	c.regs.SetPC(info.vector)
	c.flushPipelineARM()
}
