package ui

import (
	"encoding/binary"
	"time"

	"github.com/lj360-emu/gba/internal/gba"
)

// applyPlayerBufferSize keeps audio latency low while fast-forwarding
// and a bit more generous otherwise, to absorb scheduling jitter.
func (a *App) applyPlayerBufferSize() {
	if a.audioPlayer == nil {
		return
	}
	bufMs := 40
	if a.fast {
		bufMs = 20
	}
	a.audioPlayer.SetBufferSize(time.Duration(bufMs) * time.Millisecond)
}

// apuStream implements io.Reader by pulling PCM frames out of the machine's
// APU and converting them to 16-bit little-endian stereo for ebiten's audio
// player, padding with silence rather than blocking when the buffer runs dry.
type apuStream struct {
	m *gba.Machine

	underruns int
}

func (s *apuStream) Read(p []byte) (int, error) {
	if len(p) < 4 || s == nil || s.m == nil {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	maxReq := len(p) / 4
	want := s.m.AudioFramesAvailable()
	if want > maxReq {
		want = maxReq
	}
	if want <= 0 {
		for i := 0; i < len(p); i += 2 {
			binary.LittleEndian.PutUint16(p[i:], 0)
		}
		s.underruns++
		return len(p), nil
	}

	frames := s.m.PullAudio(want)
	i := 0
	for j := 0; j+1 < len(frames) && i+3 < len(p); j += 2 {
		binary.LittleEndian.PutUint16(p[i:], uint16(frames[j]))
		binary.LittleEndian.PutUint16(p[i+2:], uint16(frames[j+1]))
		i += 4
	}
	for ; i < len(p); i++ {
		p[i] = 0
	}
	return len(p), nil
}
