package mapper

import (
	"io"

	"github.com/retrocore/emucore/irq"
	"github.com/retrocore/emucore/nes/apu"
)

// VRC7 (mapper 85) is Konami's bank-switching board with a built-in
// nine-channel OPLL-compatible FM synthesizer, exposed as Audio; the
// console driver does not mix its output into the audio it pushes to the
// host. PRG is three independently switchable 8KB
// windows plus a fixed last bank; CHR is eight independently switchable
// 1KB windows. Sound registers are addressed through a port pair whose
// exact CPU addresses differ between the two cartridge sub-mappers seen
// in the wild; boards declaring sub-mapper 0 that don't decode at the
// sub-mapper-1 addresses fall back to treating every board as sub-mapper
// 1, which is the superset covering real-world dumps.
type VRC7 struct {
	board

	prgBanks [3]uint8 // $8000, $8010, $9000 select the three switchable 8K PRG windows
	chrBanks [8]uint8 // $A000,$A010,$B000,... select the eight 1KB CHR windows

	Audio *apu.OPLL

	audioAddrLatch uint8

	subMapper1 bool
}

func NewVRC7(prg, chr []uint8, mirror Mirroring, irqLine *irq.Line) *VRC7 {
	return &VRC7{board: newBoard(prg, chr, mirror, irqLine), Audio: apu.NewOPLL(), subMapper1: true}
}

const vrc7PRGBank8K = 8 * 1024
const vrc7CHRBank1K = 1 * 1024

func (m *VRC7) prgBankCount() int { return len(m.prg) / vrc7PRGBank8K }

func (m *VRC7) ReadCPU(addr uint16) (uint8, bool) {
	if addr < 0x8000 {
		return 0, false
	}
	switch {
	case addr < 0xA000:
		return m.readPRGBank(int(m.prgBanks[0])%m.prgBankCount(), vrc7PRGBank8K, addr), true
	case addr < 0xC000:
		return m.readPRGBank(int(m.prgBanks[1])%m.prgBankCount(), vrc7PRGBank8K, addr), true
	case addr < 0xE000:
		return m.readPRGBank(int(m.prgBanks[2])%m.prgBankCount(), vrc7PRGBank8K, addr), true
	default:
		return m.readPRGBank(m.prgBankCount()-1, vrc7PRGBank8K, addr), true
	}
}

// WriteCPU decodes registers using the sub-mapper-1 address layout, which
// uses bit 4 (rather than sub-mapper 0's bit 3) to distinguish the two
// registers aliased onto a single $x000/$x010 pair. Sub-mapper-0 boards
// are treated as sub-mapper 1 here, so a sub-mapper-0 write to $x008
// lands on the first register of the pair, not the second.
func (m *VRC7) WriteCPU(addr uint16, v uint8) {
	reg := addr & 0xF010
	switch {
	case addr >= 0x8000 && addr < 0x8010 && reg == 0x8000:
		m.prgBanks[0] = v & 0x3F
	case addr >= 0x8008 && addr < 0x9000 && (reg == 0x8010 || reg == 0x8008):
		m.prgBanks[1] = v & 0x3F
	case addr >= 0x9000 && addr < 0x9010:
		m.prgBanks[2] = v & 0x3F
	case addr >= 0xA000 && addr < 0xA010:
		m.chrBanks[0] = v
	case addr >= 0xA008 && addr < 0xB000 && (reg == 0xA010 || reg == 0xA008):
		m.chrBanks[1] = v
	case addr >= 0xB000 && addr < 0xB010:
		m.chrBanks[2] = v
	case addr >= 0xB008 && addr < 0xC000 && (reg == 0xB010 || reg == 0xB008):
		m.chrBanks[3] = v
	case addr >= 0xC000 && addr < 0xC010:
		m.chrBanks[4] = v
	case addr >= 0xC008 && addr < 0xD000 && (reg == 0xC010 || reg == 0xC008):
		m.chrBanks[5] = v
	case addr >= 0xD000 && addr < 0xD010:
		m.chrBanks[6] = v
	case addr >= 0xD008 && addr < 0xE000 && (reg == 0xD010 || reg == 0xD008):
		m.chrBanks[7] = v
	case addr >= 0xE000 && addr < 0xE010:
		if v&0x01 != 0 {
			m.mirror = MirrorHorizontal
		} else {
			m.mirror = MirrorVertical
		}
	case addr == 0x9010:
		m.audioAddrLatch = v
	case addr == 0x9030:
		m.Audio.WriteRegister(m.audioAddrLatch, v)
	}
}

func (m *VRC7) ReadCHR(addr uint16) uint8 {
	region := int(addr) / vrc7CHRBank1K
	if region >= len(m.chrBanks) {
		return 0
	}
	return m.readCHRBank(int(m.chrBanks[region]), vrc7CHRBank1K, addr)
}

func (m *VRC7) WriteCHR(addr uint16, v uint8) {
	region := int(addr) / vrc7CHRBank1K
	if region >= len(m.chrBanks) {
		return
	}
	m.writeCHRBank(int(m.chrBanks[region]), vrc7CHRBank1K, addr, v)
}

func (m *VRC7) EncodeState(w io.Writer) error {
	var err error
	m.board.encode(w, &err)
	wr(w, &err, m.prgBanks)
	wr(w, &err, m.chrBanks)
	wr(w, &err, m.audioAddrLatch)
	wr(w, &err, m.subMapper1)
	if err != nil {
		return err
	}
	return m.Audio.EncodeState(w)
}

func (m *VRC7) DecodeState(r io.Reader) error {
	var err error
	m.board.decode(r, &err)
	rd(r, &err, &m.prgBanks)
	rd(r, &err, &m.chrBanks)
	rd(r, &err, &m.audioAddrLatch)
	rd(r, &err, &m.subMapper1)
	if err != nil {
		return err
	}
	return m.Audio.DecodeState(r)
}
