package bus

import "testing"

func TestRomCyclesWithoutPrefetch(t *testing.T) {
	var w WaitCnt
	w.Write(0) // WS0: nonseq=4, seq=2 (bit4 clear)

	if got := w.romCycles(0x8, NonSeq, Width16); got != 4 {
		t.Fatalf("nonseq cost = %d, want 4", got)
	}
	if got := w.romCycles(0x8, Seq, Width16); got != 2 {
		t.Fatalf("seq cost = %d, want 2", got)
	}
}

func TestRomCyclesPrefetchZeroesSequentialWait(t *testing.T) {
	var w WaitCnt
	w.Write(1 << 14) // prefetch buffer enabled, WS0 selectors left at 0 (nonseq=4, seq=2)

	if !w.PrefetchEnabled() {
		t.Fatalf("expected PrefetchEnabled after setting bit 14")
	}
	if got := w.romCycles(0x8, Seq, Width16); got != 1 {
		t.Fatalf("seq cost with prefetch enabled = %d, want 1", got)
	}
	// Non-sequential accesses still pay the configured wait state.
	if got := w.romCycles(0x8, NonSeq, Width16); got != 4 {
		t.Fatalf("nonseq cost with prefetch enabled = %d, want 4", got)
	}
}

func TestRomCyclesWidth32CombinesNonSeqAndSeq(t *testing.T) {
	var w WaitCnt
	w.Write(0)

	if got := w.romCycles(0x8, NonSeq, Width32); got != 4+2 {
		t.Fatalf("32-bit cost = %d, want %d", got, 4+2)
	}
}
