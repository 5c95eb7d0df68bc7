package cart

// gameDB is the embedded game-code → backup-kind override table described
// in spec.md §4.8 and supplemented from original_source/gba_core/src/
// cartridge/game_db.rs: a handful of commercial titles carry a ROM-string
// marker that disagrees with their real backup hardware, so the database
// wins over autodetection for known codes.
var gameDB = map[string]BackupKind{
	// Pokémon Ruby/Sapphire/Emerald/FireRed/LeafGreen: all Flash, despite
	// some regional dumps only carrying a truncated "FLASH_V" marker that
	// autodetection would otherwise resolve to the wrong Flash size.
	"AXVE": BackupFlash128K, // Ruby (U)
	"AXPE": BackupFlash128K, // Sapphire (U)
	"BPEE": BackupFlash128K, // Emerald (U)
	"BPRE": BackupFlash128K, // FireRed (U)
	"BPGE": BackupFlash128K, // LeafGreen (U)
	// Boktai / GPIO-RTC titles, handled by gpio.go's allow-list too but
	// listed here for backup-kind resolution.
	"U3IJ": BackupEEPROM, // Boktai (J)
	// The Legend of Zelda: A Link to the Past / Four Swords — EEPROM,
	// commonly misdetected because its marker string is truncated in some
	// dumps.
	"AZLE": BackupEEPROM,
}

// gpioGameCodes lists titles known to wire the cartridge GPIO port to a
// Seiko S-3511 RTC (original_source/gba_core/src/cartridge/gpio/rtc.rs).
var gpioGameCodes = map[string]bool{
	"U3IJ": true, // Boktai
	"U32J": true, // Boktai 2
	"U33J": true, // Boktai 3
	"BPEE": true, // Pokémon Emerald
	"BPGE": true, // Pokémon LeafGreen (RTC unused by retail but wired)
}

// HasRTC reports whether gameCode is known to use the GPIO-RTC port.
func HasRTC(gameCode string) bool { return gpioGameCodes[gameCode] }
