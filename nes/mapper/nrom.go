package mapper

import (
	"io"

	"github.com/retrocore/emucore/irq"
)

// NROM (mapper 0) has no bank switching at all: up to 32KB of PRG-ROM
// mapped directly at $8000-$FFFF (mirrored if only 16KB is present) and up
// to 8KB of CHR-ROM/RAM mapped directly at $0000-$1FFF.
type NROM struct {
	board
}

func NewNROM(prg, chr []uint8, mirror Mirroring, irqLine *irq.Line) *NROM {
	return &NROM{board: newBoard(prg, chr, mirror, irqLine)}
}

func (m *NROM) ReadCPU(addr uint16) (uint8, bool) {
	if addr < 0x8000 {
		return 0, false
	}
	off := int(addr-0x8000) % len(m.prg)
	return m.prg[off], true
}

func (m *NROM) WriteCPU(addr uint16, v uint8) {}

func (m *NROM) ReadCHR(addr uint16) uint8     { return m.readCHRBank(0, len(m.chr), addr) }
func (m *NROM) WriteCHR(addr uint16, v uint8) { m.writeCHRBank(0, len(m.chr), addr, v) }

// NROM has no switchable registers at all, so state is just the board's
// common mirroring/CHR-RAM fields.
func (m *NROM) EncodeState(w io.Writer) error {
	var err error
	m.board.encode(w, &err)
	return err
}

func (m *NROM) DecodeState(r io.Reader) error {
	var err error
	m.board.decode(r, &err)
	return err
}
