// Package ppu implements the NES 2C02 scanline rendering pipeline: a
// 341-dot-per-scanline, 262-scanline (NTSC) pixel engine driving background
// shift registers, sprite evaluation with the hardware overflow bug, and
// sprite-0 hit detection with its documented one-PPU-cycle latch delay.
package ppu

import (
	"encoding/binary"
	"io"

	"github.com/retrocore/emucore/irq"
)

const (
	DotsPerScanline      = 341
	VisibleScanlines     = 240
	ScanlinesPerFrameNTSC = 262
	PreRenderScanline    = 261
	VBlankStartScanline  = 241
)

// Bus is the PPU-side memory interface: reads/writes to the pattern tables,
// nametables and palette RAM, routed (for pattern/nametable addresses)
// through the cartridge's PPU-bus intercept so mappers can observe
// nametable fetches.
type Bus interface {
	ReadPPU(addr uint16) (uint8, error)
	WritePPU(addr uint16, v uint8) error
	// NotifyA12 is called with every address the PPU places on its address
	// bus during rendering, including the idle/fetch addresses used during
	// sprite and background pattern fetches. The MMC3 IRQ counter clocks
	// from the rising edges of bit 12 (A12) of this address.
	NotifyA12(addr uint16)
}

// Registers holds the $2000-$2007 MMIO register file's decoded fields.
type Registers struct {
	// PPUCTRL ($2000)
	NametableBase   uint8 // 0-3, selects among the four 1KB nametables
	VRAMIncrement32 bool
	SpritePatternHi bool
	BGPatternHi     bool
	SpriteSize16    bool
	NMIEnabled      bool

	// PPUMASK ($2001)
	Greyscale        bool
	ShowBGLeft       bool
	ShowSpritesLeft  bool
	ShowBG           bool
	ShowSprites      bool
	EmphasizeRed     bool
	EmphasizeGreen   bool
	EmphasizeBlue    bool

	// PPUSTATUS ($2002)
	SpriteOverflow bool
	Sprite0Hit     bool
	VBlank         bool

	OAMAddr uint8

	// internal scroll/address latches (the "loopy" v/t/x/w registers)
	v, t   uint16
	x      uint8
	w      bool
	readBuf uint8
}

// Sprite is one 4-byte OAM entry.
type Sprite struct {
	Y, Tile, Attr, X uint8
}

// PPU is the 2C02 scanline engine.
type PPU struct {
	bus Bus
	Reg Registers

	OAM       [256]uint8
	secondary [32]uint8 // 8 sprites * 4 bytes
	spriteCount int

	Dot      int
	Scanline int
	Frame    uint64

	NMI *irq.Line

	// background shift registers
	bgShiftLo, bgShiftHi       uint16
	attrShiftLo, attrShiftHi   uint16
	ntByte, atByte, loByte, hiByte uint8

	FrameBuffer [VisibleScanlines * 256]uint8 // palette indices, 6-bit NES colour codes

	sprite0InRange bool
	sprite0HitPending bool
}

// NewPPU wires a PPU to its PPU-side bus.
func NewPPU(b Bus) *PPU {
	return &PPU{bus: b, NMI: irq.NewLine()}
}

// Plumb re-attaches the PPU-side bus, used when restoring a save state.
func (p *PPU) Plumb(b Bus) { p.bus = b }

// Reset returns every register to its post-power-on state.
func (p *PPU) Reset() {
	p.Reg = Registers{}
	p.Dot = 0
	p.Scanline = PreRenderScanline
}

// renderingEnabled reports whether either background or sprite rendering
// is turned on; several behaviours (OAM address reset, scroll-copy) only
// happen while this is true.
func (p *PPU) renderingEnabled() bool {
	return p.Reg.ShowBG || p.Reg.ShowSprites
}

// Tick advances the PPU by exactly one dot and returns true on the dot a
// new frame buffer became ready for the video sink.
func (p *PPU) Tick() bool {
	frameReady := false

	visibleLine := p.Scanline >= 0 && p.Scanline < VisibleScanlines
	preRender := p.Scanline == PreRenderScanline

	if visibleLine || preRender {
		p.renderCycle()
	}

	if p.Scanline == VBlankStartScanline && p.Dot == 1 {
		p.Reg.VBlank = true
		if p.Reg.NMIEnabled {
			p.NMI.Assert("ppu.vblank")
		}
		frameReady = true
	}

	if preRender && p.Dot == 1 {
		p.Reg.VBlank = false
		p.Reg.Sprite0Hit = false
		p.sprite0HitPending = false
		p.Reg.SpriteOverflow = false
		p.NMI.Clear("ppu.vblank")
	}

	p.Dot++
	if p.Dot >= DotsPerScanline {
		p.Dot = 0
		p.Scanline++
		if p.Scanline > PreRenderScanline {
			p.Scanline = 0
			p.Frame++
		}
	}

	return frameReady
}

// renderCycle implements the per-dot phase table from the component
// design: BG tile fetch (dots 1-256, 321-336), sprite evaluation (in one
// pass on dot 1, see evaluateSprites), sprite tile fetch (dots 257-320),
// idle nametable reads (337-340).
func (p *PPU) renderCycle() {
	dot := p.Dot
	if dot == 0 {
		return
	}

	// every fetch address placed on the bus must be reported for A12
	// edge detection regardless of whether rendering is actually enabled,
	// matching real hardware's continued bus activity.
	if dot >= 1 && dot <= 256 || dot >= 321 && dot <= 336 {
		p.backgroundFetch(dot)
	}

	if dot == 1 && p.Scanline < VisibleScanlines {
		p.evaluateSprites()
	}

	if dot >= 257 && dot <= 320 {
		p.fetchSpritePatterns(dot)
	}

	if dot == 337 || dot == 339 {
		ntAddr := uint16(0x2000) + uint16(p.Reg.v&0x0FFF)
		p.bus.ReadPPU(ntAddr)
		p.bus.NotifyA12(ntAddr)
	}

	if dot >= 1 && dot <= 256 && p.Scanline < VisibleScanlines {
		p.composePixel(dot - 1)
	}

}

// backgroundFetch reproduces the 8-cycle repeating fetch pattern:
// nametable byte, attribute byte, pattern-table low byte, pattern-table
// high byte, each held for two dots.
func (p *PPU) backgroundFetch(dot int) {
	phase := (dot - 1) % 8
	ntBase := uint16(0x2000) + uint16(p.Reg.v&0x0FFF)

	switch phase {
	case 1:
		v, _ := p.bus.ReadPPU(ntBase)
		p.ntByte = v
		p.bus.NotifyA12(ntBase)
	case 3:
		atAddr := 0x23C0 | (p.Reg.v & 0x0C00) | ((p.Reg.v >> 4) & 0x38) | ((p.Reg.v >> 2) & 0x07)
		v, _ := p.bus.ReadPPU(atAddr)
		p.atByte = v
		p.bus.NotifyA12(atAddr)
	case 5:
		base := uint16(0)
		if p.Reg.BGPatternHi {
			base = 0x1000
		}
		fineY := (p.Reg.v >> 12) & 7
		addr := base + uint16(p.ntByte)*16 + fineY
		v, _ := p.bus.ReadPPU(addr)
		p.loByte = v
		p.bus.NotifyA12(addr)
	case 7:
		base := uint16(0)
		if p.Reg.BGPatternHi {
			base = 0x1000
		}
		fineY := (p.Reg.v >> 12) & 7
		addr := base + uint16(p.ntByte)*16 + fineY + 8
		v, _ := p.bus.ReadPPU(addr)
		p.hiByte = v
		p.bus.NotifyA12(addr)
		p.reloadShift()
		p.incHoriV()
	}

	if dot == 256 {
		p.incVertV()
	}
	if dot == 257 {
		p.copyHoriV()
	}
}

func (p *PPU) reloadShift() {
	p.bgShiftLo = (p.bgShiftLo &^ 0x00FF) | uint16(p.loByte)
	p.bgShiftHi = (p.bgShiftHi &^ 0x00FF) | uint16(p.hiByte)
	at := p.atByte
	shift := uint((p.Reg.v>>4)&4 | (p.Reg.v & 2))
	pal := (at >> shift) & 0x03
	loFill, hiFill := uint16(0), uint16(0)
	if pal&1 != 0 {
		loFill = 0x00FF
	}
	if pal&2 != 0 {
		hiFill = 0x00FF
	}
	p.attrShiftLo = (p.attrShiftLo &^ 0x00FF) | loFill
	p.attrShiftHi = (p.attrShiftHi &^ 0x00FF) | hiFill
}

func (p *PPU) incHoriV() {
	if !p.renderingEnabled() {
		return
	}
	if p.Reg.v&0x001F == 31 {
		p.Reg.v &^= 0x001F
		p.Reg.v ^= 0x0400
	} else {
		p.Reg.v++
	}
}

func (p *PPU) incVertV() {
	if !p.renderingEnabled() {
		return
	}
	if p.Reg.v&0x7000 != 0x7000 {
		p.Reg.v += 0x1000
		return
	}
	p.Reg.v &^= 0x7000
	y := (p.Reg.v & 0x03E0) >> 5
	switch {
	case y == 29:
		y = 0
		p.Reg.v ^= 0x0800
	case y == 31:
		y = 0
	default:
		y++
	}
	p.Reg.v = (p.Reg.v &^ 0x03E0) | (y << 5)
}

func (p *PPU) copyHoriV() {
	if !p.renderingEnabled() {
		return
	}
	p.Reg.v = (p.Reg.v &^ 0x041F) | (p.Reg.t & 0x041F)
}

// evaluateSprites scans primary OAM on dot 1 of a visible scanline for
// sprites whose Y range includes the next scanline (dots 65-256 on real
// hardware; modelled as a single pass here since no game-visible timing
// depends on splitting it across those dots). Implements the documented
// overflow bug: once the secondary table holds 8 sprites, a sprite that
// does not match increments both the OAM index and the in-sprite byte
// offset, so later range checks read tile, attribute or X bytes as Y,
// which is why the overflow flag can fire on non-matching sprites too
// (or miss a real ninth sprite).
func (p *PPU) evaluateSprites() {
	height := 8
	if p.Reg.SpriteSize16 {
		height = 16
	}
	nextLine := p.Scanline + 1

	p.spriteCount = 0
	p.sprite0InRange = false
	n := 0
	m := 0
	for n < 64 {
		y := int(p.OAM[n*4+m])
		if nextLine >= y && nextLine < y+height {
			if p.spriteCount < 8 {
				base := p.spriteCount * 4
				copy(p.secondary[base:base+4], p.OAM[n*4:n*4+4])
				if n == 0 {
					p.sprite0InRange = true
				}
				p.spriteCount++
				n++
				continue
			}
			p.Reg.SpriteOverflow = true
			break
		}
		n++
		if p.spriteCount == 8 {
			// hardware bug: with the secondary table full, a miss also
			// advances the in-sprite byte offset
			m = (m + 1) & 3
		}
	}
}

func (p *PPU) fetchSpritePatterns(dot int) {
	idx := (dot - 257) / 8
	// empty slots still fetch, using tile $FF as the hardware does
	tile := uint8(0xFF)
	if idx < p.spriteCount {
		tile = p.secondary[idx*4+1]
	}
	base := uint16(0)
	if p.Reg.SpritePatternHi {
		base = 0x1000
	}
	addr := base + uint16(tile)*16
	p.bus.NotifyA12(addr)
}

// composePixel implements the per-dot pixel-priority resolution described
// in the component design: background palette index from the shift
// registers, first non-transparent sprite pixel overlapping x, sprite-0
// hit latched with a one-PPU-cycle delay when both a non-transparent
// sprite-0 pixel and a non-transparent BG pixel overlap at x < 255.
func (p *PPU) composePixel(x int) {
	bgPixel := uint8(0)
	if p.Reg.ShowBG && (x >= 8 || p.Reg.ShowBGLeft) {
		shift := uint(15 - p.Reg.x)
		lo := (p.bgShiftLo >> shift) & 1
		hi := (p.bgShiftHi >> shift) & 1
		pal := (p.attrShiftLo>>shift)&1 | (p.attrShiftHi>>shift)&1<<1
		bgPixel = uint8(lo | hi<<1 | pal<<2)
	}
	p.bgShiftLo <<= 1
	p.bgShiftHi <<= 1
	p.attrShiftLo <<= 1
	p.attrShiftHi <<= 1

	spritePixel, spritePriorityBG, isSprite0 := p.spritePixelAt(x)

	final := bgPixel
	bgOpaque := bgPixel&0x03 != 0
	spriteOpaque := spritePixel&0x03 != 0

	if spriteOpaque && (!bgOpaque || !spritePriorityBG) {
		final = spritePixel | 0x10
	}

	// a hit detected on the previous dot becomes visible now
	if p.sprite0HitPending {
		p.Reg.Sprite0Hit = true
		p.sprite0HitPending = false
	}
	if isSprite0 && bgOpaque && spriteOpaque && x < 255 {
		p.sprite0HitPending = true
	}

	if p.Scanline >= 0 && p.Scanline < VisibleScanlines {
		p.FrameBuffer[p.Scanline*256+x] = final
	}
}

func (p *PPU) spritePixelAt(x int) (pixel uint8, priorityBG bool, isSprite0 bool) {
	if !p.Reg.ShowSprites || (x < 8 && !p.Reg.ShowSpritesLeft) {
		return 0, false, false
	}
	for i := 0; i < p.spriteCount; i++ {
		sx := int(p.secondary[i*4+3])
		if x < sx || x >= sx+8 {
			continue
		}
		attr := p.secondary[i*4+2]
		return (attr & 0x03) | 0x04, attr&0x20 != 0, i == 0 && p.sprite0InRange
	}
	return 0, false, false
}

// wr/rd write and read one fixed-size value at a time rather than handing
// a whole struct to encoding/binary, since Registers carries the
// unexported loopy-register latches and binary.Write's reflection walk
// refuses to touch unexported struct fields even from within this package.
func wr(w io.Writer, err *error, v interface{}) {
	if *err != nil {
		return
	}
	*err = binary.Write(w, binary.LittleEndian, v)
}

func rd(r io.Reader, err *error, v interface{}) {
	if *err != nil {
		return
	}
	*err = binary.Read(r, binary.LittleEndian, v)
}

// EncodeState writes every field needed to resume rendering at the exact
// dot it was captured on: the decoded register file (including the
// internal v/t/x/w loopy latches), OAM and the secondary OAM/sprite
// evaluation scratch, the background/attribute shift registers, and the
// frame buffer accumulated so far.
func (p *PPU) EncodeState(w io.Writer) error {
	var err error
	reg := &p.Reg
	wr(w, &err, reg.NametableBase)
	wr(w, &err, reg.VRAMIncrement32)
	wr(w, &err, reg.SpritePatternHi)
	wr(w, &err, reg.BGPatternHi)
	wr(w, &err, reg.SpriteSize16)
	wr(w, &err, reg.NMIEnabled)
	wr(w, &err, reg.Greyscale)
	wr(w, &err, reg.ShowBGLeft)
	wr(w, &err, reg.ShowSpritesLeft)
	wr(w, &err, reg.ShowBG)
	wr(w, &err, reg.ShowSprites)
	wr(w, &err, reg.EmphasizeRed)
	wr(w, &err, reg.EmphasizeGreen)
	wr(w, &err, reg.EmphasizeBlue)
	wr(w, &err, reg.SpriteOverflow)
	wr(w, &err, reg.Sprite0Hit)
	wr(w, &err, reg.VBlank)
	wr(w, &err, reg.OAMAddr)
	wr(w, &err, reg.v)
	wr(w, &err, reg.t)
	wr(w, &err, reg.x)
	wr(w, &err, reg.w)
	wr(w, &err, reg.readBuf)

	wr(w, &err, p.OAM[:])
	wr(w, &err, p.secondary[:])
	wr(w, &err, int32(p.spriteCount))
	wr(w, &err, int32(p.Dot))
	wr(w, &err, int32(p.Scanline))
	wr(w, &err, p.Frame)
	wr(w, &err, p.bgShiftLo)
	wr(w, &err, p.bgShiftHi)
	wr(w, &err, p.attrShiftLo)
	wr(w, &err, p.attrShiftHi)
	wr(w, &err, p.ntByte)
	wr(w, &err, p.atByte)
	wr(w, &err, p.loByte)
	wr(w, &err, p.hiByte)
	wr(w, &err, p.FrameBuffer[:])
	wr(w, &err, p.sprite0InRange)
	wr(w, &err, p.sprite0HitPending)
	return err
}

// DecodeState restores a state produced by EncodeState, in the same
// field order.
func (p *PPU) DecodeState(r io.Reader) error {
	var err error
	reg := &p.Reg
	rd(r, &err, &reg.NametableBase)
	rd(r, &err, &reg.VRAMIncrement32)
	rd(r, &err, &reg.SpritePatternHi)
	rd(r, &err, &reg.BGPatternHi)
	rd(r, &err, &reg.SpriteSize16)
	rd(r, &err, &reg.NMIEnabled)
	rd(r, &err, &reg.Greyscale)
	rd(r, &err, &reg.ShowBGLeft)
	rd(r, &err, &reg.ShowSpritesLeft)
	rd(r, &err, &reg.ShowBG)
	rd(r, &err, &reg.ShowSprites)
	rd(r, &err, &reg.EmphasizeRed)
	rd(r, &err, &reg.EmphasizeGreen)
	rd(r, &err, &reg.EmphasizeBlue)
	rd(r, &err, &reg.SpriteOverflow)
	rd(r, &err, &reg.Sprite0Hit)
	rd(r, &err, &reg.VBlank)
	rd(r, &err, &reg.OAMAddr)
	rd(r, &err, &reg.v)
	rd(r, &err, &reg.t)
	rd(r, &err, &reg.x)
	rd(r, &err, &reg.w)
	rd(r, &err, &reg.readBuf)

	rd(r, &err, p.OAM[:])
	rd(r, &err, p.secondary[:])
	var spriteCount, dot, scanline int32
	rd(r, &err, &spriteCount)
	rd(r, &err, &dot)
	rd(r, &err, &scanline)
	p.spriteCount, p.Dot, p.Scanline = int(spriteCount), int(dot), int(scanline)
	rd(r, &err, &p.Frame)
	rd(r, &err, &p.bgShiftLo)
	rd(r, &err, &p.bgShiftHi)
	rd(r, &err, &p.attrShiftLo)
	rd(r, &err, &p.attrShiftHi)
	rd(r, &err, &p.ntByte)
	rd(r, &err, &p.atByte)
	rd(r, &err, &p.loByte)
	rd(r, &err, &p.hiByte)
	rd(r, &err, p.FrameBuffer[:])
	rd(r, &err, &p.sprite0InRange)
	rd(r, &err, &p.sprite0HitPending)
	return err
}
