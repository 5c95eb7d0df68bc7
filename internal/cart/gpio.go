package cart

import "time"

// GPIO models the cartridge's 4-pin general-purpose I/O port mapped at
// 0x0800_00C4..0x0800_00C8, wired on a handful of titles to a Seiko
// S-3511 real-time clock (supplemented from original_source/gba_core/src/
// cartridge/gpio/{mod,rtc}.rs; spec.md's Non-goals exclude serial link,
// not cartridge RTC, so this is in scope).
type GPIO struct {
	enabled bool // whether the cart declares itself RTC-capable

	direction byte // bit per pin: 1 = output
	readable  bool // control bit0: whether CPU reads of data/direction see the port

	rtc rtcState
}

func NewGPIO(hasRTC bool) *GPIO { return &GPIO{enabled: hasRTC} }

const (
	pinSCK = 1 << 0
	pinSIO = 1 << 1
	pinCS  = 1 << 2
)

type rtcRegister int

const (
	rtcReset rtcRegister = iota
	rtcAlarm1
	rtcDateTime
	rtcForceIRQ
	rtcControl
	rtcAlarm2
	rtcTime
	rtcFree
)

func rtcParamBytes(r rtcRegister) int {
	switch r {
	case rtcDateTime:
		return 7
	case rtcTime:
		return 3
	case rtcControl, rtcAlarm1, rtcAlarm2, rtcFree:
		return 1
	default:
		return 0
	}
}

type rtcPhase int

const (
	rtcWaitingCmd rtcPhase = iota
	rtcReading
	rtcWriting
)

type rtcState struct {
	selected bool
	lastSCK  bool

	phase     rtcPhase
	reg       rtcRegister
	bitCount  int
	cmdByte   byte
	paramBuf  [7]byte
	paramLen  int
	byteIdx   int
	bitInByte int
	control   byte
	dataOut   bool
}

// ReadPins folds the port's current output value into the low 4 GPIO
// data bits, the shape the bus expects at the register's 16-bit slot.
func (g *GPIO) ReadPins() uint16 {
	if !g.enabled {
		return 0
	}
	var v byte
	if g.rtc.selected {
		v |= pinCS
	}
	if g.rtc.lastSCK {
		v |= pinSCK
	}
	if g.rtc.dataOut {
		v |= pinSIO
	}
	return uint16(v)
}

// WritePins drives the port from a CPU write; direction bits (from the
// separate direction register) gate which pins are actually outputs.
func (g *GPIO) WritePins(v uint16) {
	if !g.enabled {
		return
	}
	v &= uint16(g.direction)
	cs := v&pinCS != 0
	sck := v&pinSCK != 0
	sio := v&pinSIO != 0

	if !cs {
		g.rtc.selected = false
		g.rtc.phase = rtcWaitingCmd
		g.rtc.bitCount = 0
		g.rtc.lastSCK = sck
		return
	}
	g.rtc.selected = true

	// Serial bits latch on the rising edge of SCK, like the real S-3511.
	if sck && !g.rtc.lastSCK {
		g.clockRTC(sio)
	}
	g.rtc.lastSCK = sck
}

func (g *GPIO) WriteDirection(v byte) { g.direction = v }
func (g *GPIO) ReadDirection() byte   { return g.direction }

// WriteControl/ReadControl back the port's control register at
// 0x0800_00C8: bit0 toggles whether CPU reads of 0xC4/0xC6 observe live
// pin state at all (GBATEK: reads return 0 while this is clear, to avoid
// colliding with ordinary ROM fetches through the same address window).
func (g *GPIO) WriteControl(v byte) { g.readable = v&1 != 0 }
func (g *GPIO) ReadControl() byte {
	if g.readable {
		return 1
	}
	return 0
}

// Active reports whether the bus should route 0xC4-0xC9 through this
// port instead of treating it as an ordinary ROM read: the cart must
// declare RTC support. While the port's read-enable is clear, the bus
// still routes the window here and data/direction reads return 0.
func (g *GPIO) Active() bool { return g.enabled }

func (g *GPIO) clockRTC(sio bool) {
	r := &g.rtc
	switch r.phase {
	case rtcWaitingCmd:
		r.cmdByte = (r.cmdByte << 1)
		if sio {
			r.cmdByte |= 1
		}
		r.bitCount++
		if r.bitCount == 8 {
			g.beginCommand(r.cmdByte)
		}
	case rtcWriting:
		byteVal := r.paramBuf[r.byteIdx]
		byteVal = (byteVal << 1)
		if sio {
			byteVal |= 1
		}
		r.paramBuf[r.byteIdx] = byteVal
		r.bitInByte++
		if r.bitInByte == 8 {
			g.commitParamByte(r.byteIdx, r.paramBuf[r.byteIdx])
			r.byteIdx++
			r.bitInByte = 0
			if r.byteIdx >= r.paramLen {
				r.phase = rtcWaitingCmd
				r.bitCount = 0
			}
		}
	case rtcReading:
		if r.bitInByte == 0 {
			r.paramBuf[r.byteIdx] = g.readParamByte(r.byteIdx)
		}
		r.dataOut = r.paramBuf[r.byteIdx]&(0x80>>uint(r.bitInByte)) != 0
		r.bitInByte++
		if r.bitInByte == 8 {
			r.bitInByte = 0
			r.byteIdx++
			if r.byteIdx >= r.paramLen {
				r.phase = rtcWaitingCmd
				r.bitCount = 0
			}
		}
	}
}

// beginCommand decodes the 8-bit command byte: bits 4-6 are the register
// index, bit 7 is the read/write direction.
func (g *GPIO) beginCommand(cmd byte) {
	r := &g.rtc
	reg := rtcRegister((cmd >> 4) & 0x7)
	isRead := cmd&0x80 != 0
	r.reg = reg
	r.paramLen = rtcParamBytes(reg)
	r.bitCount = 0
	r.byteIdx = 0
	r.bitInByte = 0

	if r.paramLen == 0 {
		if reg == rtcReset {
			r.control = 0
		}
		r.phase = rtcWaitingCmd
		return
	}
	if isRead {
		r.phase = rtcReading
	} else {
		r.phase = rtcWriting
	}
}

func bcd(v int) byte { return byte((v/10)<<4 | (v % 10)) }

func (g *GPIO) readParamByte(idx int) byte {
	now := time.Now()
	switch g.rtc.reg {
	case rtcControl:
		return g.rtc.control
	case rtcDateTime:
		vals := []byte{
			bcd(now.Year() % 100), bcd(int(now.Month())), bcd(now.Day()),
			byte(int(now.Weekday())), bcd(now.Hour()), bcd(now.Minute()), bcd(now.Second()),
		}
		if idx < len(vals) {
			return vals[idx]
		}
	case rtcTime:
		vals := []byte{bcd(now.Hour()), bcd(now.Minute()), bcd(now.Second())}
		if idx < len(vals) {
			return vals[idx]
		}
	case rtcAlarm1, rtcAlarm2, rtcFree:
		return 0xFF
	}
	return 0xFF
}

func (g *GPIO) commitParamByte(idx int, v byte) {
	if g.rtc.reg == rtcControl {
		g.rtc.control = v
	}
	// Alarm/free registers and date/time writes are accepted but not
	// applied to a live clock: this core does not model a settable RTC,
	// only the read side games actually depend on.
}
