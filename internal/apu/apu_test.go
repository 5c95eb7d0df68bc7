package apu

import "testing"

func TestSound1CntXTriggerEnablesChannel(t *testing.T) {
	a := New(48000)
	a.WriteIO16(regSound1CntH, 0xF000) // max volume, no envelope sweep
	a.WriteIO16(regSound1CntX, 0x8000|0x100)

	if !a.ch1.enabled {
		t.Fatalf("expected channel 1 to be enabled after trigger")
	}
	if a.ch1.freq != 0x100 {
		t.Fatalf("freq = %#x, want 0x100", a.ch1.freq)
	}
}

func TestSound1CntXZeroVolumeDisablesOnTrigger(t *testing.T) {
	a := New(48000)
	a.WriteIO16(regSound1CntH, 0x0000) // vol 0, envelope direction "decrease"
	a.WriteIO16(regSound1CntX, 0x8000)

	if a.ch1.enabled {
		t.Fatalf("channel with DAC effectively off should not enable on trigger")
	}
}

func TestSoundCntXReportsChannelOnFlags(t *testing.T) {
	a := New(48000)
	a.WriteIO16(regSoundCntX, 1<<7)
	a.WriteIO16(regSound2CntL, 0xF000)
	a.WriteIO16(regSound2CntH, 0x8000|0x200)

	v := a.ReadIO16(regSoundCntX)
	if v&(1<<1) == 0 {
		t.Fatalf("SOUNDCNT_X bit1 (channel 2 on) not set: %#x", v)
	}
}

func TestWaveRAMRoundTripsThroughActiveBank(t *testing.T) {
	a := New(48000)
	a.WriteIO16(regWaveRAM, 0x1234)
	got := a.ReadIO16(regWaveRAM)
	if got != 0x1234 {
		t.Fatalf("wave RAM round trip = %#x, want 0x1234", got)
	}
}

func TestFIFOADrainsOnBoundTimerOverflow(t *testing.T) {
	a := New(48000)
	a.WriteIO16(regSoundCntH, 0) // FIFO A bound to timer 0 by default (bit10=0)

	a.WriteIO16(regFIFOA, 0x0201)   // pushes samples 0x01, 0x02
	a.WriteIO16(regFIFOA+2, 0x0403) // pushes samples 0x03, 0x04

	if a.fifoA.len() != 4 {
		t.Fatalf("fifoA length = %d, want 4", a.fifoA.len())
	}

	a.OnTimerOverflow(0)
	if a.fifoA.current != 1 {
		t.Fatalf("fifoA.current = %d, want 1 after first pop", a.fifoA.current)
	}
	if a.fifoA.len() != 3 {
		t.Fatalf("fifoA length after pop = %d, want 3", a.fifoA.len())
	}

	a.OnTimerOverflow(1) // bound to timer 0, not 1: no effect
	if a.fifoA.len() != 3 {
		t.Fatalf("fifoA should not drain on the unbound timer")
	}
}

func TestFIFOBBoundToTimer1(t *testing.T) {
	a := New(48000)
	a.WriteIO16(regSoundCntH, 1<<14) // FIFO B bound to timer 1

	if a.FIFOBTimer() != 1 {
		t.Fatalf("FIFOBTimer() = %d, want 1", a.FIFOBTimer())
	}
	if a.FIFOATimer() != 0 {
		t.Fatalf("FIFOATimer() = %d, want 0 (default)", a.FIFOATimer())
	}
}

func TestTickProducesStereoSamples(t *testing.T) {
	a := New(48000)
	a.WriteIO16(regSoundCntX, 1<<7)
	a.WriteIO16(regSound1CntH, 0xF000)
	a.WriteIO16(regSound1CntX, 0x8000|0x400)

	a.Tick(cpuHz / 100) // ~10ms worth of cycles

	if a.StereoAvailable() == 0 {
		t.Fatalf("expected buffered stereo frames after ticking")
	}
	frames := a.PullStereo(4)
	if len(frames) == 0 {
		t.Fatalf("PullStereo returned nothing")
	}
}

func TestSaveLoadStateRoundTrip(t *testing.T) {
	a := New(48000)
	a.WriteIO16(regSound1CntH, 0xA000)
	a.WriteIO16(regSound1CntX, 0x8000|0x321)

	data := a.SaveState()

	b := New(48000)
	b.LoadState(data)

	if b.ch1.freq != a.ch1.freq || b.ch1.enabled != a.ch1.enabled {
		t.Fatalf("restored channel 1 state mismatch: got %+v, want %+v", b.ch1, a.ch1)
	}
}
