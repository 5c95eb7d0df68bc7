// Package cart implements cartridge ROM access and the four backup
// storage kinds (SRAM, Flash64K, Flash128K, EEPROM) described in
// spec.md §3, §4.8, §6, plus the GPIO/RTC port supplement (§2a of
// SPEC_FULL.md).
package cart

// Cartridge owns the ROM bytes, decoded header, detected backup device,
// and (optionally) the RTC-capable GPIO port.
type Cartridge struct {
	ROM    []byte
	Header *Header
	Kind   BackupKind

	SRAM    *SRAMBackup
	Flash   *FlashBackup
	EEPROM  *EEPROMBackup
	GPIO    *GPIO
	forceKind bool
}

// New parses the header and resolves the backup kind via the game-code
// database, falling back to ROM-string autodetection.
func New(rom []byte, backupFile ByteFile) (*Cartridge, error) {
	h, err := ParseHeader(rom)
	if err != nil {
		return nil, err
	}
	c := &Cartridge{ROM: rom, Header: h}
	c.Kind = ResolveBackupKind(rom, h.GameCode)
	c.initBackup(backupFile)
	c.GPIO = NewGPIO(HasRTC(h.GameCode))
	return c, nil
}

// ForceBackupKind lets the front-end override autodetection, per the
// design note that some games' markers lie about their real hardware.
func (c *Cartridge) ForceBackupKind(kind BackupKind, backupFile ByteFile) {
	c.Kind = kind
	c.forceKind = true
	c.initBackup(backupFile)
}

func (c *Cartridge) initBackup(file ByteFile) {
	switch c.Kind {
	case BackupSRAM:
		c.SRAM = NewSRAMBackup(file)
	case BackupFlash64K, BackupFlash128K:
		c.Flash = NewFlashBackup(c.Kind, file)
	case BackupEEPROM:
		c.EEPROM = NewEEPROMBackup(file)
	}
}

// ReadROM performs an open-bus-safe byte read from the flat ROM image;
// mirroring across WS0/WS1/WS2 is handled by internal/bus.
func (c *Cartridge) ReadROM(addr uint32) byte {
	if int(addr) < len(c.ROM) {
		return c.ROM[addr]
	}
	return 0 // past the end of the ROM image; the bus passes this 0 through
}

// ReadBackupByte/WriteBackupByte route through SRAM or Flash; EEPROM is
// DMA-bit-serial only and is not reachable through this path.
func (c *Cartridge) ReadBackupByte(addr uint32) byte {
	switch c.Kind {
	case BackupSRAM:
		return c.SRAM.ReadByte(addr)
	case BackupFlash64K, BackupFlash128K:
		return c.Flash.ReadByte(addr)
	default:
		return 0xFF
	}
}

func (c *Cartridge) WriteBackupByte(addr uint32, v byte) {
	switch c.Kind {
	case BackupSRAM:
		c.SRAM.WriteByte(addr, v)
	case BackupFlash64K, BackupFlash128K:
		c.Flash.WriteByte(addr, v)
	}
}

// FlushBackup persists whichever backup device is active through its
// ByteFile collaborator.
func (c *Cartridge) FlushBackup() {
	switch c.Kind {
	case BackupSRAM:
		c.SRAM.Flush()
	case BackupFlash64K, BackupFlash128K:
		c.Flash.Flush()
	case BackupEEPROM:
		c.EEPROM.Flush()
	}
}
