package cpu

// Mode is one of the ARM7TDMI's 7 processor modes (spec.md §3).
type Mode uint32

const (
	ModeUser       Mode = 0x10
	ModeFIQ        Mode = 0x11
	ModeIRQ        Mode = 0x12
	ModeSupervisor Mode = 0x13
	ModeAbort      Mode = 0x17
	ModeUndefined  Mode = 0x1B
	ModeSystem     Mode = 0x1F
)

// PSR bit positions within CPSR/SPSR.
const (
	flagN uint32 = 1 << 31
	flagZ uint32 = 1 << 30
	flagC uint32 = 1 << 29
	flagV uint32 = 1 << 28
	flagI uint32 = 1 << 7
	flagF uint32 = 1 << 6
	flagT uint32 = 1 << 5
	modeMask      = 0x1F
)

func (r *Registers) N() bool { return r.CPSR&flagN != 0 }
func (r *Registers) Z() bool { return r.CPSR&flagZ != 0 }
func (r *Registers) C() bool { return r.CPSR&flagC != 0 }
func (r *Registers) V() bool { return r.CPSR&flagV != 0 }
func (r *Registers) IRQDisabled() bool { return r.CPSR&flagI != 0 }
func (r *Registers) FIQDisabled() bool { return r.CPSR&flagF != 0 }
func (r *Registers) Thumb() bool       { return r.CPSR&flagT != 0 }
func (r *Registers) Mode() Mode        { return Mode(r.CPSR & modeMask) }

func setFlag(psr *uint32, bit uint32, v bool) {
	if v {
		*psr |= bit
	} else {
		*psr &^= bit
	}
}

func (r *Registers) SetN(v bool) { setFlag(&r.CPSR, flagN, v) }
func (r *Registers) SetZ(v bool) { setFlag(&r.CPSR, flagZ, v) }
func (r *Registers) SetC(v bool) { setFlag(&r.CPSR, flagC, v) }
func (r *Registers) SetV(v bool) { setFlag(&r.CPSR, flagV, v) }
func (r *Registers) SetIRQDisabled(v bool) { setFlag(&r.CPSR, flagI, v) }
func (r *Registers) SetFIQDisabled(v bool) { setFlag(&r.CPSR, flagF, v) }

// SetNZ is the common logical-op flag update (N,Z only).
func (r *Registers) SetNZ(result uint32) {
	r.SetN(result&0x80000000 != 0)
	r.SetZ(result == 0)
}

// SetThumb switches CPSR.T; callers must also flush the pipeline.
func (r *Registers) SetThumb(v bool) { setFlag(&r.CPSR, flagT, v) }

// SetMode switches CPSR.M, banking registers as it does. The caller is
// responsible for any pipeline flush a mode-driven PC change requires
// (mode switches alone never change PC).
func (r *Registers) SetMode(m Mode) {
	r.bankOut(r.Mode())
	r.CPSR = (r.CPSR &^ modeMask) | uint32(m)
	r.bankIn(m)
}

func privileged(m Mode) bool { return m != ModeUser }

// bankIndex maps a privileged mode to its r13/r14/SPSR bank slot.
func bankIndex(m Mode) int {
	switch m {
	case ModeFIQ:
		return 0
	case ModeSupervisor:
		return 1
	case ModeAbort:
		return 2
	case ModeIRQ:
		return 3
	case ModeUndefined:
		return 4
	default:
		return -1
	}
}
