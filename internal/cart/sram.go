package cart

// SRAMSize is the fixed 32 KiB SRAM/FRAM window (spec.md §4.8).
const SRAMSize = 32 * 1024

// SRAMBackup implements plain pass-through 8-bit SRAM/FRAM storage at
// 0x0E00_0000..0x0E00_7FFF.
type SRAMBackup struct {
	ram  [SRAMSize]byte
	file ByteFile
}

func NewSRAMBackup(file ByteFile) *SRAMBackup {
	if file == nil {
		file = newMemByteFile()
	}
	file.Initialize(SRAMSize)
	b := &SRAMBackup{file: file}
	file.Read(0, b.ram[:])
	return b
}

func (b *SRAMBackup) ReadByte(addr uint32) byte {
	return b.ram[addr&(SRAMSize-1)]
}

func (b *SRAMBackup) WriteByte(addr uint32, v byte) {
	b.ram[addr&(SRAMSize-1)] = v
}

func (b *SRAMBackup) Flush() { b.file.Write(0, b.ram[:]) }
