package ui

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"golang.org/x/image/draw"

	"github.com/lj360-emu/gba/internal/gba"
	"github.com/lj360-emu/gba/internal/keypad"
	"github.com/lj360-emu/gba/internal/ppu"
)

// App drives a gba.Machine through ebiten's Update/Draw loop, translating
// keyboard state into 10-button input each frame and blitting the
// resulting 240x160 framebuffer to the window.
type App struct {
	cfg Config
	m   *gba.Machine
	tex *ebiten.Image
	pix []byte // scratch RGBA buffer reused across Draw calls

	paused bool
	fast   bool
	turbo  int // turbo speed multiplier (1 = off)

	toastMsg   string
	toastUntil time.Time

	audioCtx    *audio.Context
	audioPlayer *audio.Player
	audioSrc    *apuStream
}

// audioSampleRate must match internal/apu.New's sample rate.
const audioSampleRate = 48000

func NewApp(cfg Config, m *gba.Machine) *App {
	cfg.Defaults()
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(ppu.ScreenWidth*cfg.Scale, ppu.ScreenHeight*cfg.Scale)
	a := &App{
		cfg:   cfg,
		m:     m,
		turbo: 1,
		pix:   make([]byte, ppu.ScreenWidth*ppu.ScreenHeight*4),
	}
	a.audioCtx = audio.NewContext(audioSampleRate)
	a.audioSrc = &apuStream{m: m}
	if p, err := a.audioCtx.NewPlayer(a.audioSrc); err == nil {
		a.audioPlayer = p
		a.applyPlayerBufferSize()
		a.audioPlayer.Play()
	}
	return a
}

func (a *App) Run() error { return ebiten.RunGame(a) }

// keyMap pairs an ebiten key with the logical button it drives. Arrow keys
// drive the D-pad; A and S are the L and R shoulder buttons.
var keyMap = [...]struct {
	key ebiten.Key
	btn int
}{
	{ebiten.KeyArrowRight, keypad.ButtonRight},
	{ebiten.KeyArrowLeft, keypad.ButtonLeft},
	{ebiten.KeyArrowUp, keypad.ButtonUp},
	{ebiten.KeyArrowDown, keypad.ButtonDown},
	{ebiten.KeyZ, keypad.ButtonA},
	{ebiten.KeyX, keypad.ButtonB},
	{ebiten.KeyEnter, keypad.ButtonStart},
	{ebiten.KeyShiftRight, keypad.ButtonSelect},
	{ebiten.KeyA, keypad.ButtonL},
	{ebiten.KeyS, keypad.ButtonR},
}

func (a *App) Update() error {
	var s keypad.State
	for _, km := range keyMap {
		if ebiten.IsKeyPressed(km.key) {
			s.Buttons[km.btn] = true
		}
	}
	a.m.SetKeypadState(s)

	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		a.paused = !a.paused
		a.m.ClearAudioBuffer()
	}
	wasFast := a.fast
	a.fast = ebiten.IsKeyPressed(ebiten.KeyTab)
	if a.fast != wasFast {
		a.applyPlayerBufferSize()
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyF6) {
		if a.turbo > 1 {
			a.turbo--
		}
		a.toast(fmt.Sprintf("Turbo: x%d", a.turbo))
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF7) {
		if a.turbo < 10 {
			a.turbo++
		}
		a.toast(fmt.Sprintf("Turbo: x%d", a.turbo))
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF11) {
		ebiten.SetFullscreen(!ebiten.IsFullscreen())
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF2) {
		if err := a.saveScreenshot(); err != nil {
			a.toast("Screenshot failed: " + err.Error())
		} else {
			a.toast("Screenshot saved")
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyN) && a.paused {
		a.m.EmulateFrame()
		return nil
	}

	if a.paused {
		return nil
	}

	steps := a.turbo
	if a.fast {
		steps *= 4
	}
	for i := 0; i < steps; i++ {
		a.m.EmulateFrame()
	}
	return nil
}

func (a *App) Draw(screen *ebiten.Image) {
	if a.tex == nil {
		a.tex = ebiten.NewImage(ppu.ScreenWidth, ppu.ScreenHeight)
	}
	fb := a.m.Framebuffer()
	argbToRGBA(fb[:], a.pix)
	a.tex.WritePixels(a.pix)
	screen.DrawImage(a.tex, nil)

	if a.toastMsg != "" && time.Now().Before(a.toastUntil) {
		ebitenutil.DebugPrintAt(screen, a.toastMsg, 4, 4)
	}
	if a.paused {
		ebitenutil.DebugPrintAt(screen, "PAUSED", 4, ppu.ScreenHeight-14)
	}
}

func (a *App) Layout(outW, outH int) (int, int) { return ppu.ScreenWidth, ppu.ScreenHeight }

func (a *App) toast(msg string) {
	a.toastMsg = msg
	a.toastUntil = time.Now().Add(2 * time.Second)
}

// argbToRGBA unpacks the machine's packed 0xAARRGGBB framebuffer into the
// tightly-packed R,G,B,A byte order ebiten.Image.WritePixels expects.
func argbToRGBA(fb []uint32, out []byte) {
	for i, c := range fb {
		out[i*4+0] = byte(c >> 16)
		out[i*4+1] = byte(c >> 8)
		out[i*4+2] = byte(c)
		out[i*4+3] = byte(c >> 24)
	}
}

func (a *App) saveScreenshot() error {
	img := a.m.Image()
	b := img.Bounds()
	scaled := image.NewRGBA(image.Rect(0, 0, b.Dx()*a.cfg.Scale, b.Dy()*a.cfg.Scale))
	draw.NearestNeighbor.Scale(scaled, scaled.Bounds(), img, b, draw.Over, nil)

	ts := time.Now().Format("20060102_150405")
	f, err := os.Create(fmt.Sprintf("screenshot_%s.png", ts))
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, scaled)
}
