package mapper

import (
	"io"

	"github.com/retrocore/emucore/irq"
)

// UxROM (mapper 2) switches a 16KB PRG bank into $8000-$BFFF; $C000-$FFFF
// is fixed to the last bank. CHR is 8KB and unbanked: RAM when the header
// declares no CHR-ROM (the usual UxROM case), otherwise the declared
// CHR-ROM. Per the bus's open-bus design, writes anywhere in $8000-$FFFF
// are "silently discarded" from the CPU's point of view but still alter
// the bank register — the canonical open-bus-write example named in the
// component design.
type UxROM struct {
	board
	bank int
}

func NewUxROM(prg, chr []uint8, mirror Mirroring, irqLine *irq.Line) *UxROM {
	return &UxROM{board: newBoard(prg, chr, mirror, irqLine)}
}

const prgBankSize16K = 16 * 1024

func (m *UxROM) lastBank() int { return len(m.prg)/prgBankSize16K - 1 }

func (m *UxROM) ReadCPU(addr uint16) (uint8, bool) {
	switch {
	case addr >= 0x8000 && addr < 0xC000:
		return m.readPRGBank(m.bank, prgBankSize16K, addr-0x8000), true
	case addr >= 0xC000:
		return m.readPRGBank(m.lastBank(), prgBankSize16K, addr-0xC000), true
	}
	return 0, false
}

func (m *UxROM) WriteCPU(addr uint16, v uint8) {
	if addr >= 0x8000 {
		m.bank = int(v) & 0x0F
	}
}

func (m *UxROM) ReadCHR(addr uint16) uint8     { return m.readCHRBank(0, len(m.chr), addr) }
func (m *UxROM) WriteCHR(addr uint16, v uint8) { m.writeCHRBank(0, len(m.chr), addr, v) }

func (m *UxROM) EncodeState(w io.Writer) error {
	var err error
	m.board.encode(w, &err)
	wr(w, &err, int32(m.bank))
	return err
}

func (m *UxROM) DecodeState(r io.Reader) error {
	var err error
	m.board.decode(r, &err)
	var bank int32
	rd(r, &err, &bank)
	m.bank = int(bank)
	return err
}
