package cart

// flashStep tracks progress through the 3-step Flash command sequence
// {0x5555<-0xAA, 0x2AAA<-0x55, 0x5555<-cmd} described in spec.md §4.8.
type flashStep int

const (
	flashIdle flashStep = iota
	flashStep1
	flashStep2
)

// FlashBackup implements the Panasonic/Sanyo Flash command set: chip-ID
// mode, chip/sector erase, byte write, and (for 128K) bank switching.
type FlashBackup struct {
	mem        [128 * 1024]byte
	size       int
	bank       int
	chipID     bool
	eraseArmed bool
	step       flashStep
	pendingByteWrite bool
	manufID    byte
	deviceID   byte
	file       ByteFile
}

func NewFlashBackup(kind BackupKind, file ByteFile) *FlashBackup {
	size := 64 * 1024
	manuf, dev := byte(0x32), byte(0x1B) // Panasonic 64K
	if kind == BackupFlash128K {
		size = 128 * 1024
		manuf, dev = 0x62, 0x13 // Sanyo 128K
	}
	if file == nil {
		file = newMemByteFile()
	}
	file.Initialize(size)
	f := &FlashBackup{size: size, manufID: manuf, deviceID: dev, file: file}
	file.Read(0, f.mem[:size])
	return f
}

func (f *FlashBackup) bankOffset() int {
	if f.size > 64*1024 {
		return f.bank * 64 * 1024
	}
	return 0
}

func (f *FlashBackup) ReadByte(addr uint32) byte {
	a := int(addr & 0xFFFF)
	if f.chipID && a < 2 {
		if a == 0 {
			return f.manufID
		}
		return f.deviceID
	}
	off := f.bankOffset() + a
	if off < len(f.mem) {
		return f.mem[off]
	}
	return 0xFF
}

func (f *FlashBackup) WriteByte(addr uint32, v byte) {
	a := addr & 0xFFFF

	// Bank-switch command for 128K parts: write at 0x0000 after the
	// 0xB0 command byte selects the active 64K bank.
	if f.size > 64*1024 && f.step == flashIdle && a == 0x0000 && f.eraseArmed {
		f.bank = int(v) & 1
		f.eraseArmed = false
		return
	}

	switch f.step {
	case flashIdle:
		if a == 0x5555 && v == 0xAA {
			f.step = flashStep1
			return
		}
	case flashStep1:
		if a == 0x2AAA && v == 0x55 {
			f.step = flashStep2
			return
		}
		f.step = flashIdle
	case flashStep2:
		f.step = flashIdle
		if a != 0x5555 {
			break
		}
		switch v {
		case 0x90:
			f.chipID = true
		case 0xF0:
			f.chipID = false
		case 0x80:
			f.eraseArmed = true
		case 0x10:
			if f.eraseArmed {
				for i := range f.mem {
					f.mem[i] = 0xFF
				}
				f.eraseArmed = false
			}
		case 0xA0:
			f.pendingByteWrite = true
		case 0xB0:
			f.eraseArmed = true // primes the bank-switch write at 0x0000
		}
		return
	}

	if f.pendingByteWrite {
		f.pendingByteWrite = false
		off := f.bankOffset() + int(a)
		if off < len(f.mem) {
			f.mem[off] = v
		}
		return
	}

	// Second half of an erase command: {0x5555<-0x80}{0x5555<-0xAA}
	// {0x2AAA<-0x55}{0x5555<-0x10} erases the whole chip; {addr<-0x30}
	// erases a 4 KiB sector containing addr.
	if f.eraseArmed {
		switch v {
		case 0x10:
			for i := range f.mem {
				f.mem[i] = 0xFF
			}
			f.eraseArmed = false
		case 0x30:
			base := f.bankOffset() + int(a&^0xFFF)
			for i := 0; i < 0x1000 && base+i < len(f.mem); i++ {
				f.mem[base+i] = 0xFF
			}
			f.eraseArmed = false
		}
	}
}

func (f *FlashBackup) Flush() { f.file.Write(0, f.mem[:f.size]) }
