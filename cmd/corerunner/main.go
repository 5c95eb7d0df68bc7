// Command corerunner drives a gba.Machine headlessly for a fixed number of
// frames, useful for test-ROM smoke checks and golden-image regression
// comparisons in CI where no display is available.
package main

import (
	"flag"
	"fmt"
	"hash/crc32"
	"image/png"
	"log"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/lj360-emu/gba/internal/gba"
)

func main() {
	romPath := flag.String("rom", "", "path to ROM (.gba)")
	biosPath := flag.String("bios", "", "optional GBA BIOS image; when empty, boots straight to the cartridge with post-BIOS register state")
	frames := flag.Int("frames", 600, "number of frames to emulate before exiting")
	outPNG := flag.String("outpng", "", "optional path to dump the final framebuffer as a PNG")
	wantCRC := flag.Uint("wantcrc", 0, "optional CRC32 of the final framebuffer to assert against; 0 disables")
	flag.Parse()

	if *romPath == "" {
		log.Fatal("-rom is required")
	}
	rom, err := os.ReadFile(*romPath)
	if err != nil {
		log.Fatalf("read rom: %v", err)
	}

	m, err := gba.New(rom, nil)
	if err != nil {
		log.Fatalf("init machine: %v", err)
	}

	skipBIOS := true
	if *biosPath != "" {
		bios, err := os.ReadFile(*biosPath)
		if err != nil {
			log.Fatalf("read bios: %v", err)
		}
		if err := m.LoadBIOS(bios); err != nil {
			log.Fatalf("load bios: %v", err)
		}
		skipBIOS = false
	}
	m.Reset(skipBIOS)

	interactive := term.IsTerminal(int(os.Stdout.Fd()))
	start := time.Now()
	for i := 0; i < *frames; i++ {
		m.EmulateFrame()
		if interactive && i%60 == 0 {
			elapsed := time.Since(start).Seconds()
			fps := float64(i+1) / elapsed
			fmt.Printf("\rframe %d/%d (%.1f fps)", i+1, *frames, fps)
		}
	}
	if interactive {
		fmt.Println()
	}
	m.FlushBackup()

	fb := m.Framebuffer()
	crc := crc32.ChecksumIEEE(uint32SliceToBytes(fb[:]))
	fmt.Printf("frames=%d elapsed=%s framebuffer_crc32=%08x\n", *frames, time.Since(start).Truncate(time.Millisecond), crc)

	if *wantCRC != 0 && uint32(*wantCRC) != crc {
		fmt.Printf("CRC mismatch: want %08x got %08x\n", *wantCRC, crc)
		os.Exit(1)
	}

	if *outPNG != "" {
		f, err := os.Create(*outPNG)
		if err != nil {
			log.Fatalf("create outpng: %v", err)
		}
		defer f.Close()
		if err := png.Encode(f, m.Image()); err != nil {
			log.Fatalf("encode outpng: %v", err)
		}
	}
}

// uint32SliceToBytes copies a []uint32 framebuffer into bytes, each pixel
// little-endian, matching the layout cmd/corerunner's golden CRCs were
// captured against.
func uint32SliceToBytes(px []uint32) []byte {
	b := make([]byte, len(px)*4)
	for i, v := range px {
		b[i*4+0] = byte(v)
		b[i*4+1] = byte(v >> 8)
		b[i*4+2] = byte(v >> 16)
		b[i*4+3] = byte(v >> 24)
	}
	return b
}
