package cart

import (
	"errors"
	"strings"
)

const (
	headerTitleStart = 0xA0
	headerTitleEnd   = 0xAC
	headerGameCode   = 0xAC // 4 ASCII chars, spec.md §6 Construction
	headerMakerCode  = 0xB0
	minROMSize       = 192 // spec.md §6: cart ROM must be >= 192 bytes
)

// Header is the decoded subset of the GBA cartridge header (GBATEK §Cart
// Header) this core needs: title and game code.
type Header struct {
	Title    string
	GameCode string // 4 ASCII chars, e.g. "AGBE"
}

// ParseHeader validates ROM size and extracts the game-code field used for
// both logging and the backup-kind database lookup (spec.md §4.8).
func ParseHeader(rom []byte) (*Header, error) {
	if len(rom) < minROMSize {
		return nil, errors.New("cart: ROM too small (must be >= 192 bytes)")
	}
	end := headerTitleEnd
	if end > len(rom) {
		end = len(rom)
	}
	title := strings.TrimRight(string(rom[headerTitleStart:end]), "\x00")

	code := ""
	if headerGameCode+4 <= len(rom) {
		code = string(rom[headerGameCode : headerGameCode+4])
	}
	return &Header{Title: title, GameCode: code}, nil
}
