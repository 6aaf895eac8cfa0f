package bus

import "github.com/retrocore/emucore/nes/mapper"

// PPURouter is the PPU-side address decoder: pattern tables ($0000-$1FFF)
// forward to the cartridge's CHR storage, nametables ($2000-$2FFF, mirrored
// up to $3EFF) use the console's 2KB of internal VRAM arranged according to
// the cartridge's mirroring mode, and palette RAM ($3F00-$3FFF) is a 32-byte
// table with the well-known $3F10/$3F14/$3F18/$3F1C mirrors of the
// background colour.
type PPURouter struct {
	Mapper   mapper.Mapper
	vram     [2048]uint8
	palette  [32]uint8
}

func NewPPURouter(m mapper.Mapper) *PPURouter {
	return &PPURouter{Mapper: m}
}

func (b *PPURouter) nametableOffset(addr uint16) uint16 {
	addr &= 0x0FFF
	table := addr / 0x400
	offset := addr % 0x400
	switch b.Mapper.Mirroring() {
	case mapper.MirrorVertical:
		return (table%2)*0x400 + offset
	case mapper.MirrorHorizontal:
		return (table/2)*0x400 + offset
	case mapper.MirrorSingleScreenLo:
		return offset
	case mapper.MirrorSingleScreenHi:
		return 0x400 + offset
	default: // four-screen: cartridge RAM would back this; approximate as linear
		return addr % uint16(len(b.vram))
	}
}

func (b *PPURouter) ReadPPU(addr uint16) (uint8, error) {
	addr &= 0x3FFF
	switch {
	case addr < 0x2000:
		return b.Mapper.ReadCHR(addr), nil
	case addr < 0x3F00:
		return b.vram[b.nametableOffset(addr)], nil
	default:
		return b.palette[paletteIndex(addr)], nil
	}
}

func (b *PPURouter) WritePPU(addr uint16, v uint8) error {
	addr &= 0x3FFF
	switch {
	case addr < 0x2000:
		b.Mapper.WriteCHR(addr, v)
	case addr < 0x3F00:
		b.vram[b.nametableOffset(addr)] = v
	default:
		b.palette[paletteIndex(addr)] = v
	}
	return nil
}

func paletteIndex(addr uint16) uint16 {
	idx := addr % 32
	// $3F10/$3F14/$3F18/$3F1C mirror $3F00/$3F04/$3F08/$3F0C
	if idx >= 0x10 && idx%4 == 0 {
		idx -= 0x10
	}
	return idx
}

func (b *PPURouter) NotifyA12(addr uint16) {
	b.Mapper.NotifyA12(addr)
}
