// Command gbaemu is the interactive ebiten front-end: load a ROM, optional
// BIOS image, and optional battery save file, then run the machine in a
// window until closed.
package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/lj360-emu/gba/internal/cart"
	"github.com/lj360-emu/gba/internal/gba"
	"github.com/lj360-emu/gba/internal/ui"
)

func main() {
	romPath := flag.String("rom", "", "path to ROM (.gba)")
	biosPath := flag.String("bios", "", "optional GBA BIOS image; when empty, boots straight to the cartridge with post-BIOS register state")
	scale := flag.Int("scale", 3, "integer window upscaling factor")
	flag.Parse()

	if *romPath == "" {
		log.Fatal("-rom is required")
	}
	rom, err := os.ReadFile(*romPath)
	if err != nil {
		log.Fatalf("read rom: %v", err)
	}

	savePath := strings.TrimSuffix(*romPath, ".gba") + ".sav"
	backup := cart.NewOSFile(savePath)

	m, err := gba.New(rom, backup)
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

	app := ui.NewApp(ui.Config{Scale: *scale}, m)
	defer m.FlushBackup()
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
