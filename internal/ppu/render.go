package ppu

// bgPixel is one decoded background-layer sample: a 15-bit BGR555 color
// plus whether this pixel is opaque (palette index 0 is always
// transparent for backgrounds).
type bgPixel struct {
	color  uint16
	opaque bool
}

// objPixel is one decoded sprite-layer sample.
type objPixel struct {
	color           uint16
	opaque          bool
	priority        int
	semiTransparent bool
	window          bool // OBJ-window flag: contributes to the window mask, not to color output
}

// spriteShapeSize maps (shape,size) to pixel width/height, per GBATEK's
// OBJ attribute table.
var spriteShapeSize = [3][4][2]int{
	{{8, 8}, {16, 16}, {32, 32}, {64, 64}},   // square
	{{16, 8}, {32, 8}, {32, 16}, {64, 32}},   // horizontal
	{{8, 16}, {8, 32}, {16, 32}, {32, 64}},   // vertical
}

func (p *PPU) readPalette16(index uint8) uint16 {
	return p.palette.Read16(uint32(index) * 2)
}

func (p *PPU) readObjPalette16(index uint8) uint16 {
	return p.palette.Read16(0x200 + uint32(index)*2)
}

// renderScanline implements spec.md §4.6's 7-step pipeline for one
// visible line.
func (p *PPU) renderScanline(line int) {
	if p.Regs.forcedBlank() {
		for x := 0; x < ScreenWidth; x++ {
			p.framebuffer[line*ScreenWidth+x] = 0xFFFFFFFF
		}
		return
	}

	var objBuf [ScreenWidth]objPixel
	p.renderObjects(line, &objBuf)

	var bgBuf [4][ScreenWidth]bgPixel
	var bgActive [4]bool
	mode := p.Regs.mode()

	switch mode {
	case 0:
		for i := 0; i < 4; i++ {
			if p.Regs.bgEnabled(i) {
				bgBuf[i] = p.tileBackgroundLine(i, line)
				bgActive[i] = true
			}
		}
	case 1:
		for i := 0; i < 2; i++ {
			if p.Regs.bgEnabled(i) {
				bgBuf[i] = p.tileBackgroundLine(i, line)
				bgActive[i] = true
			}
		}
		if p.Regs.bgEnabled(2) {
			bgBuf[2] = p.affineBackgroundLine(2, line)
			bgActive[2] = true
		}
	case 2:
		for i := 2; i < 4; i++ {
			if p.Regs.bgEnabled(i) {
				bgBuf[i] = p.affineBackgroundLine(i, line)
				bgActive[i] = true
			}
		}
	case 3, 4, 5:
		if p.Regs.bgEnabled(2) {
			bgBuf[2] = p.bitmapLine(mode, line)
			bgActive[2] = true
		}
	}

	backdrop := p.readPalette16(0)

	for x := 0; x < ScreenWidth; x++ {
		mask := p.windowMask(x, line, objBuf[x].window)

		// kind: 0-3 = BGx, 4 = OBJ, 5 = backdrop.
		type layer struct {
			color    uint16
			priority int
			kind     int
		}
		var layers []layer

		for i := 0; i < 4; i++ {
			if !bgActive[i] || !mask.bg[i] || !bgBuf[i][x].opaque {
				continue
			}
			layers = append(layers, layer{bgBuf[i][x].color, p.Regs.bgPriority(i), i})
		}
		if mask.obj && objBuf[x].opaque {
			layers = append(layers, layer{objBuf[x].color, objBuf[x].priority, 4})
		}

		// Stable ascending priority sort; OBJ wins ties against a BG of
		// the same priority value (GBATEK ordering rule).
		for i := 1; i < len(layers); i++ {
			for j := i; j > 0; j-- {
				a, b := layers[j-1], layers[j]
				swap := a.priority > b.priority
				if a.priority == b.priority && b.kind == 4 && a.kind != 4 {
					swap = true
				}
				if !swap {
					break
				}
				layers[j-1], layers[j] = layers[j], layers[j-1]
			}
		}
		layers = append(layers, layer{backdrop, 4, 5})

		top := layers[0]
		var second layer
		if len(layers) > 1 {
			second = layers[1]
		}

		out := top.color
		isTarget2 := len(layers) > 1 && p.Regs.BLDCNT&(0x100<<uint(second.kind)) != 0
		switch {
		case top.kind == 4 && objBuf[x].semiTransparent && isTarget2:
			out = blendChannels(top.color, second.color,
				int(p.Regs.BLDALPHA&0x1F), int((p.Regs.BLDALPHA>>8)&0x1F))
		case mask.blend && p.Regs.BLDCNT&(1<<uint(top.kind)) != 0:
			out = p.applyBlend(top.color, second.color, isTarget2)
		}
		p.framebuffer[line*ScreenWidth+x] = bgr555ToARGB(out)
	}
}

func bgr555ToARGB(c uint16) uint32 {
	r := uint32(c & 0x1F)
	g := uint32((c >> 5) & 0x1F)
	b := uint32((c >> 10) & 0x1F)
	return 0xFF000000 | (r << 19) | (g << 11) | (b << 3)
}

// --- Tile backgrounds (mode 0/1 regular BGs) ---

var screenSizeTiles = [4][2]int{{32, 32}, {64, 32}, {32, 64}, {64, 64}}

func (p *PPU) tileBackgroundLine(bg int, line int) [ScreenWidth]bgPixel {
	var out [ScreenWidth]bgPixel
	hofs := int(p.Regs.BGHOFS[bg])
	vofs := int(p.Regs.BGVOFS[bg])
	charBase := p.Regs.bgCharBase(bg)
	screenBase := p.Regs.bgScreenBase(bg)
	use256 := p.Regs.bg256Color(bg)
	sizeIdx := p.Regs.bgScreenSize(bg)
	tilesW, tilesH := screenSizeTiles[sizeIdx][0], screenSizeTiles[sizeIdx][1]

	y := (line + vofs) & (tilesH*8 - 1)
	tileRow := y / 8
	inTileY := y % 8

	for sx := 0; sx < ScreenWidth; sx++ {
		x := (sx + hofs) & (tilesW*8 - 1)
		tileCol := x / 8
		inTileX := x % 8

		sbb := screenBlockOffset(tileCol, tileRow, tilesW, tilesH)
		entryAddr := screenBase + sbb*0x800 + uint32((tileRow%32)*32+(tileCol%32))*2
		entry := p.vram.Read16(entryAddr)

		tileIndex := entry & 0x3FF
		hflip := entry&0x0400 != 0
		vflip := entry&0x0800 != 0
		palBank := uint8((entry >> 12) & 0xF)

		px, py := inTileX, inTileY
		if hflip {
			px = 7 - px
		}
		if vflip {
			py = 7 - py
		}

		palIndex := p.decodeTilePixel(charBase, uint32(tileIndex), px, py, use256)
		if palIndex == 0 {
			out[sx] = bgPixel{0, false}
			continue
		}
		var color uint16
		if use256 {
			color = p.readPalette16(palIndex)
		} else {
			color = p.readPalette16(palBank*16 + palIndex)
		}
		out[sx] = bgPixel{color, true}
	}
	return out
}

// screenBlockOffset implements the standard wrap rule: for wide/tall
// maps, tiles beyond the first 32x32 screenblock live in the +1 (wide)
// or +2 (tall) screenblock.
func screenBlockOffset(tileCol, tileRow, tilesW, tilesH int) uint32 {
	sb := uint32(0)
	if tilesW > 32 && tileCol >= 32 {
		sb += 1
	}
	if tilesH > 32 && tileRow >= 32 {
		if tilesW > 32 {
			sb += 2
		} else {
			sb += 1
		}
	}
	return sb
}

// decodeTilePixel returns the raw palette index (0 = transparent) for
// pixel (px,py) within tile tileIndex, 4bpp or 8bpp.
func (p *PPU) decodeTilePixel(charBase, tileIndex uint32, px, py int, use256 bool) uint8 {
	if use256 {
		addr := charBase + tileIndex*64 + uint32(py*8+px)
		return p.vram.Read8(addr)
	}
	addr := charBase + tileIndex*32 + uint32(py*4+px/2)
	b := p.vram.Read8(addr)
	if px&1 != 0 {
		return b >> 4
	}
	return b & 0xF
}

// --- Affine backgrounds (mode 1 BG2, mode 2 BG2/BG3) ---

func (p *PPU) affineBackgroundLine(bg int, line int) [ScreenWidth]bgPixel {
	var out [ScreenWidth]bgPixel
	idx := bg - 2
	pa := int32(int16(p.Regs.BGPA[idx]))
	pc := int32(int16(p.Regs.BGPC[idx]))
	dx := p.Regs.internalDX[idx]
	dy := p.Regs.internalDY[idx]

	charBase := p.Regs.bgCharBase(bg)
	screenBase := p.Regs.bgScreenBase(bg)
	sizeIdx := p.Regs.bgScreenSize(bg)
	tilesPerSide := []int{16, 32, 64, 128}[sizeIdx]
	mapSizePixels := tilesPerSide * 8
	wrap := p.Regs.bgAffineWrap(bg)

	for sx := 0; sx < ScreenWidth; sx++ {
		px := (dx + pa*int32(sx)) >> 8
		py := (dy + pc*int32(sx)) >> 8

		if wrap {
			px = ((px % int32(mapSizePixels)) + int32(mapSizePixels)) % int32(mapSizePixels)
			py = ((py % int32(mapSizePixels)) + int32(mapSizePixels)) % int32(mapSizePixels)
		} else if px < 0 || py < 0 || int(px) >= mapSizePixels || int(py) >= mapSizePixels {
			out[sx] = bgPixel{0, false}
			continue
		}

		tileCol := int(px) / 8
		tileRow := int(py) / 8
		inTileX := int(px) % 8
		inTileY := int(py) % 8

		entryAddr := screenBase + uint32(tileRow*tilesPerSide+tileCol)
		tileIndex := uint32(p.vram.Read8(entryAddr))

		palIndex := p.decodeTilePixel(charBase, tileIndex, inTileX, inTileY, true)
		if palIndex == 0 {
			out[sx] = bgPixel{0, false}
			continue
		}
		out[sx] = bgPixel{p.readPalette16(palIndex), true}
	}
	return out
}

// --- Bitmap backgrounds (modes 3/4/5, always BG2) ---

func (p *PPU) bitmapLine(mode int, line int) [ScreenWidth]bgPixel {
	var out [ScreenWidth]bgPixel
	base := p.Regs.displayFrame()

	switch mode {
	case 3:
		for x := 0; x < ScreenWidth; x++ {
			addr := uint32(line*ScreenWidth+x) * 2
			c := p.vram.Read16(addr)
			out[x] = bgPixel{c, true}
		}
	case 4:
		for x := 0; x < ScreenWidth; x++ {
			addr := base + uint32(line*ScreenWidth+x)
			idx := p.vram.Read8(addr)
			if idx == 0 {
				out[x] = bgPixel{0, false}
				continue
			}
			out[x] = bgPixel{p.readPalette16(idx), true}
		}
	case 5:
		const w, h = 160, 128
		if line >= h {
			break
		}
		for x := 0; x < w && x < ScreenWidth; x++ {
			addr := base + uint32(line*w+x)*2
			c := p.vram.Read16(addr)
			out[x] = bgPixel{c, true}
		}
	}
	return out
}

// --- Sprites ---

func (p *PPU) renderObjects(line int, buf *[ScreenWidth]objPixel) {
	for i := 0; i < ScreenWidth; i++ {
		buf[i] = objPixel{priority: 4} // lower than any real priority (0-3)
	}
	if !p.Regs.objEnabled() {
		return
	}

	for oam := 0; oam < 128; oam++ {
		base := uint32(oam * 8)
		attr0 := p.oam.Read16(base)
		attr1 := p.oam.Read16(base + 2)
		attr2 := p.oam.Read16(base + 4)

		// Attr0 bit8 is the rotation/scaling flag; bit9 means OBJ Disable
		// when RS is off, or Double-Size when RS is on. OBJ Mode proper
		// (normal/semi-transparent/window/forbidden) lives in bits10-11.
		rsFlag := attr0&0x0100 != 0
		disableOrDouble := attr0&0x0200 != 0
		if !rsFlag && disableOrDouble {
			continue
		}
		doubleSize := rsFlag && disableOrDouble
		objMode := (attr0 >> 10) & 0x3
		if objMode == 3 {
			continue
		}
		shape := (attr0 >> 14) & 0x3
		size := (attr1 >> 14) & 0x3
		if int(shape) > 2 {
			continue
		}
		w, h := spriteShapeSize[shape][size][0], spriteShapeSize[shape][size][1]

		y := int(attr0 & 0xFF)
		if y >= 160 {
			y -= 256
		}
		boundH := h
		if doubleSize {
			boundH = h * 2
		}
		if line < y || line >= y+boundH {
			continue
		}

		x := int(attr1 & 0x1FF)
		if x >= 240 {
			x -= 512
		}
		colorMode256 := attr0&0x2000 != 0
		priority := int((attr2 >> 10) & 0x3)
		palBank := uint8((attr2 >> 12) & 0xF)
		tileIndex := uint32(attr2 & 0x3FF)
		isWindow := objMode == 2
		semiTransparent := objMode == 1

		rowInSprite := line - y
		boundW := w
		if doubleSize {
			boundW = w * 2
		}

		for sx := 0; sx < boundW; sx++ {
			screenX := x + sx
			if screenX < 0 || screenX >= ScreenWidth {
				continue
			}

			var tx, ty int
			if rsFlag {
				// Affine sprites: no OBJ affine matrix table lookup; the
				// sprite is drawn untransformed, and a double-size sprite
				// is stretched 2x over its doubled bounds.
				tx, ty = sx, rowInSprite
				if doubleSize {
					tx, ty = sx/2, rowInSprite/2
				}
				if tx >= w || ty >= h {
					continue
				}
			} else {
				tx, ty = sx, rowInSprite
				if attr1&0x1000 != 0 { // hflip
					tx = w - 1 - tx
				}
				if attr1&0x2000 != 0 { // vflip
					ty = h - 1 - ty
				}
			}

			tileCol := tx / 8
			tileRow := ty / 8
			inTileX := tx % 8
			inTileY := ty % 8

			var tileOffset uint32
			if p.Regs.objCharMapping1D() {
				stride := uint32(w / 8)
				if colorMode256 {
					stride = uint32(w / 8)
				}
				tileOffset = uint32(tileRow)*stride + uint32(tileCol)
			} else {
				tileOffset = uint32(tileRow)*32 + uint32(tileCol)
			}
			effIndex := tileIndex
			if colorMode256 {
				effIndex += tileOffset * 2
			} else {
				effIndex += tileOffset
			}

			const objBase = 0x10000
			palIndex := p.decodeTilePixel(objBase, effIndex, inTileX, inTileY, colorMode256)
			if palIndex == 0 {
				continue
			}

			if isWindow {
				buf[screenX].window = true
				continue
			}

			cur := buf[screenX]
			if !cur.opaque || priority < cur.priority {
				var color uint16
				if colorMode256 {
					color = p.readObjPalette16(palIndex)
				} else {
					color = p.readObjPalette16(palBank*16 + palIndex)
				}
				buf[screenX] = objPixel{color, true, priority, semiTransparent, false}
			}
		}
	}
}

// --- Windows & blending ---

type pixelMask struct {
	bg       [4]bool
	obj      bool
	blend    bool
}

func (p *PPU) windowMask(x, y int, objWindow bool) pixelMask {
	anyWindow := p.Regs.winEnabled(0) || p.Regs.winEnabled(1) || p.Regs.winEnabled(2)
	if !anyWindow {
		return pixelMask{bg: [4]bool{true, true, true, true}, obj: true, blend: true}
	}

	if p.Regs.winEnabled(0) && inWindow(x, y, p.Regs.WIN0H, p.Regs.WIN0V) {
		return decodeWinEnable(p.Regs.WININ & 0xFF)
	}
	if p.Regs.winEnabled(1) && inWindow(x, y, p.Regs.WIN1H, p.Regs.WIN1V) {
		return decodeWinEnable(p.Regs.WININ >> 8)
	}
	if p.Regs.winEnabled(2) && objWindow {
		return decodeWinEnable(p.Regs.WINOUT >> 8)
	}
	return decodeWinEnable(p.Regs.WINOUT & 0xFF)
}

func decodeWinEnable(v uint16) pixelMask {
	return pixelMask{
		bg:    [4]bool{v&1 != 0, v&2 != 0, v&4 != 0, v&8 != 0},
		obj:   v&0x10 != 0,
		blend: v&0x20 != 0,
	}
}

func inWindow(x, y int, h, v uint16) bool {
	x1, x2 := int(h>>8), int(h&0xFF)
	y1, y2 := int(v>>8), int(v&0xFF)
	if x2 > ScreenWidth || x2 <= x1 {
		x2 = ScreenWidth
	}
	if y2 > ScreenHeight || y2 <= y1 {
		y2 = ScreenHeight
	}
	return x >= x1 && x < x2 && y >= y1 && y < y2
}

// applyBlend implements spec.md §4.6 step 6's BLDCNT.mode dispatch
// (alpha blend needs a qualifying 2nd-target layer; the fades don't).
func (p *PPU) applyBlend(top, bottom uint16, isTarget2 bool) uint16 {
	mode := (p.Regs.BLDCNT >> 6) & 0x3
	switch mode {
	case 1:
		if !isTarget2 {
			return top
		}
		eva := int(p.Regs.BLDALPHA & 0x1F)
		evb := int((p.Regs.BLDALPHA >> 8) & 0x1F)
		return blendChannels(top, bottom, eva, evb)
	case 2: // white fade (increase brightness)
		evy := int(p.Regs.BLDY & 0x1F)
		return fadeChannels(top, evy, true)
	case 3: // black fade (decrease brightness)
		evy := int(p.Regs.BLDY & 0x1F)
		return fadeChannels(top, evy, false)
	default:
		return top
	}
}

func channel(c uint16, shift uint) int { return int((c >> shift) & 0x1F) }

func blendChannels(top, bottom uint16, eva, evb int) uint16 {
	clamp := func(v int) uint16 {
		if v > 31 {
			v = 31
		}
		if v < 0 {
			v = 0
		}
		return uint16(v)
	}
	r := clamp((channel(top, 0)*eva + channel(bottom, 0)*evb) / 16)
	g := clamp((channel(top, 5)*eva + channel(bottom, 5)*evb) / 16)
	b := clamp((channel(top, 10)*eva + channel(bottom, 10)*evb) / 16)
	return r | g<<5 | b<<10
}

func fadeChannels(c uint16, evy int, white bool) uint16 {
	fade := func(v int) uint16 {
		if white {
			v = v + (31-v)*evy/16
		} else {
			v = v - v*evy/16
		}
		if v > 31 {
			v = 31
		}
		if v < 0 {
			v = 0
		}
		return uint16(v)
	}
	r := fade(channel(c, 0))
	g := fade(channel(c, 5))
	b := fade(channel(c, 10))
	return r | g<<5 | b<<10
}
