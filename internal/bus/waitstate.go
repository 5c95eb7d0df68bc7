package bus

// nonSeqCycleTable is the shared {4,3,2,8} lookup used by WAITCNT's
// non-sequential selectors for SRAM/WS0/WS1/WS2 (spec.md §4.2).
var nonSeqCycleTable = [4]int{4, 3, 2, 8}

// WaitCnt decodes WAITCNT (0x0400_0204) into per-region cycle costs.
type WaitCnt struct {
	raw uint16
}

func (w *WaitCnt) Read() uint16  { return w.raw }
func (w *WaitCnt) Write(v uint16) { w.raw = v & 0x7FFF } // bit15 read-only (game pak type)

func (w *WaitCnt) sramNonSeq() int { return nonSeqCycleTable[w.raw&0x3] }

func (w *WaitCnt) ws0NonSeq() int { return nonSeqCycleTable[(w.raw>>2)&0x3] }
func (w *WaitCnt) ws0Seq() int {
	if w.raw&(1<<4) != 0 {
		return 1
	}
	return 2
}

func (w *WaitCnt) ws1NonSeq() int { return nonSeqCycleTable[(w.raw>>5)&0x3] }
func (w *WaitCnt) ws1Seq() int {
	if w.raw&(1<<7) != 0 {
		return 1
	}
	return 4
}

func (w *WaitCnt) ws2NonSeq() int { return nonSeqCycleTable[(w.raw>>8)&0x3] }
func (w *WaitCnt) ws2Seq() int {
	if w.raw&(1<<10) != 0 {
		return 1
	}
	return 8
}

// PrefetchEnabled is WAITCNT bit 14. spec.md's Open Questions sanction
// approximating prefetch-buffer accuracy by zeroing extra wait when this
// is set, rather than simulating a per-region read-ahead FIFO.
func (w *WaitCnt) PrefetchEnabled() bool { return w.raw&(1<<14) != 0 }

// romCycles returns the non-sequential or sequential cycle cost for a
// cartridge ROM region (8..D) at the given width.
func (w *WaitCnt) romCycles(region int, access Access, width Width) int {
	var nonSeq, seqCost func() int
	switch region {
	case 0x8, 0x9:
		nonSeq, seqCost = w.ws0NonSeq, w.ws0Seq
	case 0xA, 0xB:
		nonSeq, seqCost = w.ws1NonSeq, w.ws1Seq
	case 0xC, 0xD:
		nonSeq, seqCost = w.ws2NonSeq, w.ws2Seq
	default:
		return 1
	}
	seq := seqCost()
	if w.PrefetchEnabled() {
		// Approximate the prefetch unit: back-to-back sequential fetches
		// hit the read-ahead buffer and cost no extra wait (spec.md's
		// Open Questions sanction this instead of simulating a real
		// per-region prefetch FIFO).
		seq = 1
	}
	if width == Width32 {
		// 32-bit access = non-sequential + sequential (spec.md §4.2).
		return nonSeq() + seq
	}
	if access == Seq {
		return seq
	}
	return nonSeq()
}
