package nes_test

import (
	"testing"

	"github.com/retrocore/emucore/nes"
	"github.com/retrocore/emucore/test"
)

type stubInput struct{}

func (stubInput) Poll() uint32 { return 0 }

// buildNROM assembles a minimal iNES (mapper 0, NROM) image: one 16KB PRG
// bank holding a tight infinite loop, and a reset vector pointing at it.
func buildNROM() []byte {
	data := make([]byte, 16+16*1024)
	copy(data[0:4], []byte{'N', 'E', 'S', 0x1A})
	data[4] = 1 // 1x16KB PRG bank
	data[5] = 0 // CHR-RAM
	data[6] = 0 // horizontal mirroring, no trainer, no battery, mapper low nibble 0
	data[7] = 0

	prg := data[16:]
	// JMP $8000 forever, at the reset-vector target $8000.
	prg[0] = 0x4C
	prg[1] = 0x00
	prg[2] = 0x80

	// Reset vector at $FFFC-$FFFD -> $8000; PRG offset for $FFFC within a
	// 16KB bank mirrored across $8000-$FFFF is 0x3FFC.
	prg[0x3FFC] = 0x00
	prg[0x3FFD] = 0x80
	return data
}

func TestRunFrameProducesAFrame(t *testing.T) {
	rom := buildNROM()
	c, err := nes.New(rom, stubInput{}, stubInput{})
	test.ExpectSuccess(t, err)

	err = c.RunFrame(nil, nil)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, c.PPU.Frame, uint64(1))
}

func TestSaveStateRoundTripPreservesRegistersAndPPUState(t *testing.T) {
	rom := buildNROM()
	c, err := nes.New(rom, stubInput{}, stubInput{})
	test.ExpectSuccess(t, err)

	test.ExpectSuccess(t, c.RunFrame(nil, nil))

	data, err := c.SaveState()
	test.ExpectSuccess(t, err)

	c2, err := nes.New(rom, stubInput{}, stubInput{})
	test.ExpectSuccess(t, err)
	test.ExpectSuccess(t, c2.LoadState(data))

	test.ExpectEquality(t, c2.CPU.Registers, c.CPU.Registers)
	test.ExpectEquality(t, c2.PPU.Frame, c.PPU.Frame)
	test.ExpectEquality(t, c2.PPU.Reg, c.PPU.Reg)
}
