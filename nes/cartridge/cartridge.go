// Package cartridge loads iNES-format NES ROM images and selects the
// matching mapper board implementation.
package cartridge

import (
	"fmt"

	"github.com/retrocore/emucore/errors"
	"github.com/retrocore/emucore/irq"
	"github.com/retrocore/emucore/logger"
	"github.com/retrocore/emucore/nes/mapper"
)

const (
	headerSize    = 16
	trainerSize   = 512
	prgBankUnit   = 16 * 1024
	chrBankUnit   = 8 * 1024
	legacyHeaderMagicLen = 512
)

// Cartridge holds the parsed ROM image and the mapper board it was
// routed to.
type Cartridge struct {
	Mapper     mapper.Mapper
	MapperNum  int
	PRGBanks   int
	CHRBanks   int
	HasBattery bool
	Mirroring  mapper.Mirroring
}

// Load parses a raw iNES (or NES 2.0 header-compatible) ROM image and
// constructs the matching mapper board, wired to irqLine (the console's
// single shared CPU-visible IRQ line, also shared with the APU). Unsupported
// mapper numbers fall back to NROM with a logged warning rather than a hard
// error, since a corrupted or exotic header should not stop an otherwise-
// playable dump from loading if its PRG/CHR layout happens to agree with
// bank 0 wiring.
func Load(data []byte, irqLine *irq.Line) (*Cartridge, error) {
	// Some very old dumps carry a spurious 512-byte copier header before
	// the real iNES header; detect it by total-size modulus per the
	// convention the format inherited from Famicom disk-copier tools.
	if len(data) >= legacyHeaderMagicLen && len(data)%(prgBankUnit*2) == legacyHeaderMagicLen {
		data = data[legacyHeaderMagicLen:]
	}

	if len(data) < headerSize || data[0] != 'N' || data[1] != 'E' || data[2] != 'S' || data[3] != 0x1A {
		return nil, errors.Errorf(errors.RomParseError, "missing iNES signature")
	}

	prgBanks := int(data[4])
	chrBanks := int(data[5])
	flags6 := data[6]
	flags7 := data[7]

	hasTrainer := flags6&0x04 != 0
	hasBattery := flags6&0x02 != 0
	fourScreen := flags6&0x08 != 0
	vertical := flags6&0x01 != 0

	mapperNum := int(flags6>>4) | int(flags7&0xF0)

	offset := headerSize
	if hasTrainer {
		offset += trainerSize
	}

	prgSize := prgBanks * prgBankUnit
	if offset+prgSize > len(data) {
		return nil, errors.Errorf(errors.RomParseError, fmt.Sprintf("PRG-ROM truncated: need %d bytes, have %d", prgSize, len(data)-offset))
	}
	prg := data[offset : offset+prgSize]
	offset += prgSize

	chrSize := chrBanks * chrBankUnit
	var chr []uint8
	if chrBanks > 0 {
		if offset+chrSize > len(data) {
			return nil, errors.Errorf(errors.RomParseError, fmt.Sprintf("CHR-ROM truncated: need %d bytes, have %d", chrSize, len(data)-offset))
		}
		chr = data[offset : offset+chrSize]
	}

	mirror := mapper.MirrorHorizontal
	if vertical {
		mirror = mapper.MirrorVertical
	}
	if fourScreen {
		mirror = mapper.MirrorFourScreen
	}

	board := selectBoard(mapperNum, prg, chr, mirror, irqLine)

	return &Cartridge{
		Mapper:     board,
		MapperNum:  mapperNum,
		PRGBanks:   prgBanks,
		CHRBanks:   chrBanks,
		HasBattery: hasBattery,
		Mirroring:  mirror,
	}, nil
}

func selectBoard(mapperNum int, prg, chr []uint8, mirror mapper.Mirroring, irqLine *irq.Line) mapper.Mapper {
	switch mapperNum {
	case 0:
		return mapper.NewNROM(prg, chr, mirror, irqLine)
	case 2:
		return mapper.NewUxROM(prg, chr, mirror, irqLine)
	case 4:
		return mapper.NewMMC3(prg, chr, mirror, irqLine)
	case 5:
		return mapper.NewMMC5(prg, chr, mirror, irqLine)
	case 85:
		return mapper.NewVRC7(prg, chr, mirror, irqLine)
	default:
		logger.Logf(logger.Allow, "nes.cartridge", "unsupported mapper %d, falling back to NROM", mapperNum)
		return mapper.NewNROM(prg, chr, mirror, irqLine)
	}
}
