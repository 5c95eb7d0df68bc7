package cpu

// Registers holds the primary r0..r15 file plus the banked shadow sets
// spec.md §3 requires: r8-r12 banked for FIQ, r13/r14 banked per
// privileged mode, and one SPSR per privileged mode. Mode switches swap
// the active view in/out through bankOut/bankIn (Design Note "Banked
// registers").
type Registers struct {
	R [16]uint32
	CPSR uint32

	fiqBank  [5]uint32    // r8..r12 shadow, active only in FIQ mode
	userR8_12 [5]uint32   // r8..r12 for every non-FIQ mode

	// r13/r14 bank, indexed by bankIndex(mode): FIQ, SVC, ABT, IRQ, UND.
	loBank [5][2]uint32
	userLo [2]uint32 // r13/r14 for User/System mode

	spsrBank [5]uint32
}

// NewRegisters constructs a zeroed register file in System mode, ARM state.
func NewRegisters() *Registers {
	r := &Registers{}
	r.CPSR = uint32(ModeSystem)
	return r
}

func (r *Registers) PC() uint32     { return r.R[15] }
func (r *Registers) SetPC(v uint32) { r.R[15] = v }

// GetReg/SetReg read/write rN through whichever bank is active for the
// current mode; r15 always reads the live PC.
func (r *Registers) GetReg(n int) uint32 { return r.R[n] }
func (r *Registers) SetReg(n int, v uint32) { r.R[n] = v }

// bankOut saves the live r8-r14 (and, implicitly, nothing for r15) into
// the bank for the mode being left.
func (r *Registers) bankOut(old Mode) {
	if old == ModeFIQ {
		copy(r.fiqBank[:], r.R[8:13])
	} else {
		copy(r.userR8_12[:], r.R[8:13])
	}
	if idx := bankIndex(old); idx >= 0 {
		r.loBank[idx][0] = r.R[13]
		r.loBank[idx][1] = r.R[14]
	} else {
		r.userLo[0] = r.R[13]
		r.userLo[1] = r.R[14]
	}
}

// bankIn loads r8-r14 from the bank belonging to the mode being entered.
func (r *Registers) bankIn(new Mode) {
	if new == ModeFIQ {
		copy(r.R[8:13], r.fiqBank[:])
	} else {
		copy(r.R[8:13], r.userR8_12[:])
	}
	if idx := bankIndex(new); idx >= 0 {
		r.R[13] = r.loBank[idx][0]
		r.R[14] = r.loBank[idx][1]
	} else {
		r.R[13] = r.userLo[0]
		r.R[14] = r.userLo[1]
	}
}

// SPSR returns the saved PSR for the current mode. User/System mode has
// no SPSR; callers must not reach this path from there (spec.md: SPSR is
// only meaningful in a privileged mode, checked by exception/MSR code).
func (r *Registers) SPSR() uint32 {
	if idx := bankIndex(r.Mode()); idx >= 0 {
		return r.spsrBank[idx]
	}
	return r.CPSR
}

func (r *Registers) SetSPSR(v uint32) {
	if idx := bankIndex(r.Mode()); idx >= 0 {
		r.spsrBank[idx] = v
	}
}

// SetSPSRForMode addresses a specific mode's SPSR bank,
// needed by exception entry (which writes the *target* mode's SPSR
// before switching into it).
func (r *Registers) SetSPSRForMode(m Mode, v uint32) {
	if idx := bankIndex(m); idx >= 0 {
		r.spsrBank[idx] = v
	}
}

// SwitchMode performs a full mode transition: banks out the old regs,
// updates CPSR.M, banks in the new regs. Equivalent to Registers.SetMode
// but named to mirror exception-entry call sites.
func (r *Registers) SwitchMode(m Mode) { r.SetMode(m) }

// RestoreCPSRFromSPSR implements the exception-return idiom ("MOVS pc,
// lr" and LDM^ with r15 in the list): bank out the current mode's
// r8-r14, overwrite CPSR wholesale from the current mode's SPSR, then
// bank in whatever mode that SPSR encodes.
func (r *Registers) RestoreCPSRFromSPSR() {
	old := r.Mode()
	spsr := r.SPSR()
	r.bankOut(old)
	r.CPSR = spsr
	r.bankIn(r.Mode())
}
