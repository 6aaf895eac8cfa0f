package ppu

// ReadRegister services a CPU read of $2000-$2007 (mirrored every 8 bytes
// up to $3FFF). Write-only registers return the open-bus value the caller
// already has latched; PPUSTATUS resets the address-latch toggle on read,
// per the write-twice semantics in the data model.
func (p *PPU) ReadRegister(reg uint8, openBus uint8) uint8 {
	switch reg & 0x07 {
	case 2: // PPUSTATUS
		v := openBus & 0x1F
		if p.Reg.VBlank {
			v |= 0x80
		}
		if p.Reg.Sprite0Hit {
			v |= 0x40
		}
		if p.Reg.SpriteOverflow {
			v |= 0x20
		}
		p.Reg.VBlank = false
		p.Reg.w = false
		return v
	case 4: // OAMDATA
		return p.OAM[p.Reg.OAMAddr]
	case 7: // PPUDATA
		addr := p.Reg.v & 0x3FFF
		var v uint8
		if addr >= 0x3F00 {
			v, _ = p.bus.ReadPPU(addr)
			p.Reg.readBuf, _ = p.bus.ReadPPU(addr - 0x1000)
		} else {
			v = p.Reg.readBuf
			p.Reg.readBuf, _ = p.bus.ReadPPU(addr)
		}
		p.advanceVRAMAddr()
		return v
	default:
		return openBus
	}
}

// WriteRegister services a CPU write to $2000-$2007. Writes to the
// read-only $2002 are ignored; OAMDATA and PPUDATA writes are applied
// whatever the rendering state, with no write window enforced. Nothing
// here ever returns an error.
func (p *PPU) WriteRegister(reg uint8, v uint8) {
	switch reg & 0x07 {
	case 0: // PPUCTRL
		p.Reg.NametableBase = v & 0x03
		p.Reg.t = (p.Reg.t &^ 0x0C00) | (uint16(v&0x03) << 10)
		p.Reg.VRAMIncrement32 = v&0x04 != 0
		p.Reg.SpritePatternHi = v&0x08 != 0
		p.Reg.BGPatternHi = v&0x10 != 0
		p.Reg.SpriteSize16 = v&0x20 != 0
		wasEnabled := p.Reg.NMIEnabled
		p.Reg.NMIEnabled = v&0x80 != 0
		if p.Reg.NMIEnabled && !wasEnabled && p.Reg.VBlank {
			p.NMI.Assert("ppu.vblank")
		}
	case 1: // PPUMASK
		p.Reg.Greyscale = v&0x01 != 0
		p.Reg.ShowBGLeft = v&0x02 != 0
		p.Reg.ShowSpritesLeft = v&0x04 != 0
		p.Reg.ShowBG = v&0x08 != 0
		p.Reg.ShowSprites = v&0x10 != 0
		p.Reg.EmphasizeRed = v&0x20 != 0
		p.Reg.EmphasizeGreen = v&0x40 != 0
		p.Reg.EmphasizeBlue = v&0x80 != 0
	case 3: // OAMADDR
		p.Reg.OAMAddr = v
	case 4: // OAMDATA
		p.OAM[p.Reg.OAMAddr] = v
		p.Reg.OAMAddr++
	case 5: // PPUSCROLL, write-twice latched
		if !p.Reg.w {
			p.Reg.x = v & 0x07
			p.Reg.t = (p.Reg.t &^ 0x001F) | uint16(v>>3)
		} else {
			p.Reg.t = (p.Reg.t &^ 0x73E0) | (uint16(v&0x07) << 12) | (uint16(v>>3) << 5)
		}
		p.Reg.w = !p.Reg.w
	case 6: // PPUADDR, write-twice latched
		if !p.Reg.w {
			p.Reg.t = (p.Reg.t &^ 0x7F00) | (uint16(v&0x3F) << 8)
		} else {
			p.Reg.t = (p.Reg.t &^ 0x00FF) | uint16(v)
			p.Reg.v = p.Reg.t
		}
		p.Reg.w = !p.Reg.w
	case 7: // PPUDATA
		p.bus.WritePPU(p.Reg.v&0x3FFF, v)
		p.advanceVRAMAddr()
	}
}

func (p *PPU) advanceVRAMAddr() {
	if p.Reg.VRAMIncrement32 {
		p.Reg.v += 32
	} else {
		p.Reg.v++
	}
}

// WriteOAMDMA copies a full 256-byte page into OAM, starting at the current
// OAMADDR, as $4014 (OAMDMA) does. The driver is responsible for halting
// the CPU for the 513/514-cycle duration; this call only performs the
// data movement.
func (p *PPU) WriteOAMDMA(page [256]uint8) {
	for i := 0; i < 256; i++ {
		p.OAM[uint8(int(p.Reg.OAMAddr)+i)] = page[i]
	}
}
