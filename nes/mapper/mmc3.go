package mapper

import (
	"io"

	"github.com/retrocore/emucore/irq"
)

// MMC3 (mapper 4) switches PRG in two swappable 8KB windows (plus two
// fixed windows, one of which is always the second-to-last bank) and CHR
// in six windows of 1-2KB, selected by an 8-bit bank-select register at
// $8000 and a bank-data register at $8001. A 4-bit scanline-IRQ counter is
// clocked by A12 rising edges observed on the PPU address bus: the edge
// only clocks the counter if A12 was low for at least 10 CPU cycles first
// (filtering the sprite/background fetch noise within a single scanline
// so the counter only sees one edge per scanline), and an IRQ fires when
// the counter reaches zero with IRQ enabled.
type MMC3 struct {
	board

	bankSelect  uint8
	bankData    [8]uint8
	prgROMMode  bool // bankSelect bit 6
	chrA12Invert bool // bankSelect bit 7

	irqLatch   uint8
	irqCounter uint8
	irqReload  bool
	irqEnabled bool

	a12Low       bool
	a12LowCycles int
}

func NewMMC3(prg, chr []uint8, mirror Mirroring, irqLine *irq.Line) *MMC3 {
	return &MMC3{board: newBoard(prg, chr, mirror, irqLine), a12Low: true}
}

const (
	mmc3PRGBank8K = 8 * 1024
	mmc3CHRBank1K = 1 * 1024
)

func (m *MMC3) prgBankCount() int { return len(m.prg) / mmc3PRGBank8K }

func (m *MMC3) prgBankFor(window int) int {
	last := m.prgBankCount() - 1
	secondLast := last - 1
	r6 := int(m.bankData[6]) % m.prgBankCount()
	r7 := int(m.bankData[7]) % m.prgBankCount()

	// windows: 0=$8000, 1=$A000, 2=$C000, 3=$E000
	if !m.prgROMMode {
		switch window {
		case 0:
			return r6
		case 1:
			return r7
		case 2:
			return secondLast
		case 3:
			return last
		}
	} else {
		switch window {
		case 0:
			return secondLast
		case 1:
			return r7
		case 2:
			return r6
		case 3:
			return last
		}
	}
	return 0
}

func (m *MMC3) ReadCPU(addr uint16) (uint8, bool) {
	if addr < 0x6000 {
		return 0, false
	}
	if addr < 0x8000 {
		return 0, false // PRG-RAM not modelled for the base board
	}
	window := int(addr-0x8000) / mmc3PRGBank8K
	bank := m.prgBankFor(window)
	return m.readPRGBank(bank, mmc3PRGBank8K, addr), true
}

func (m *MMC3) WriteCPU(addr uint16, v uint8) {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if addr%2 == 0 {
			m.bankSelect = v
			m.prgROMMode = v&0x40 != 0
			m.chrA12Invert = v&0x80 != 0
		} else {
			m.bankData[m.bankSelect&0x07] = v
		}
	case addr >= 0xA000 && addr <= 0xBFFF:
		if addr%2 == 0 {
			if v&0x01 != 0 {
				m.mirror = MirrorHorizontal
			} else {
				m.mirror = MirrorVertical
			}
		}
		// odd: PRG-RAM protect, not modelled
	case addr >= 0xC000 && addr <= 0xDFFF:
		if addr%2 == 0 {
			m.irqLatch = v
		} else {
			m.irqReload = true
		}
	case addr >= 0xE000:
		if addr%2 == 0 {
			m.irqEnabled = false
			m.irqLine.Clear("mmc3.irq")
		} else {
			m.irqEnabled = true
		}
	}
}

func (m *MMC3) chrBankFor1K(region int) (bank, size int) {
	// region 0..7 are the eight 1KB windows spanning $0000-$1FFF: two 2KB
	// pairs (R0,R1) followed by four 1KB banks (R2-R5) when chrA12Invert is
	// clear, with the two halves swapped when it's set.
	r := region
	if m.chrA12Invert {
		r = (region + 4) % 8
	}
	switch r {
	case 0:
		return int(m.bankData[0] &^ 1), mmc3CHRBank1K
	case 1:
		return int(m.bankData[0] | 1), mmc3CHRBank1K
	case 2:
		return int(m.bankData[1] &^ 1), mmc3CHRBank1K
	case 3:
		return int(m.bankData[1] | 1), mmc3CHRBank1K
	case 4:
		return int(m.bankData[2]), mmc3CHRBank1K
	case 5:
		return int(m.bankData[3]), mmc3CHRBank1K
	case 6:
		return int(m.bankData[4]), mmc3CHRBank1K
	case 7:
		return int(m.bankData[5]), mmc3CHRBank1K
	}
	return 0, mmc3CHRBank1K
}

func (m *MMC3) ReadCHR(addr uint16) uint8 {
	region := int(addr) / mmc3CHRBank1K
	bank, size := m.chrBankFor1K(region)
	return m.readCHRBank(bank, size, addr)
}

func (m *MMC3) WriteCHR(addr uint16, v uint8) {
	region := int(addr) / mmc3CHRBank1K
	bank, size := m.chrBankFor1K(region)
	m.writeCHRBank(bank, size, addr, v)
}

// NotifyA12 is called by the PPU with every fetch address, including
// the idle and sprite/background fetch addresses; only the bit-12
// transitions matter here.
func (m *MMC3) NotifyA12(addr uint16) {
	high := addr&0x1000 != 0
	if high {
		if m.a12Low && m.a12LowCycles >= 10 {
			m.clockIRQCounter()
		}
		m.a12Low = false
		m.a12LowCycles = 0
	} else {
		m.a12Low = true
	}
}

// TickCPU counts the CPU cycles A12 has spent low, needed by NotifyA12 to
// apply the documented 10-cycle minimum low-time filter. The driver calls
// this once per elapsed CPU cycle.
func (m *MMC3) TickCPU() {
	if m.a12Low {
		m.a12LowCycles++
	}
}

func (m *MMC3) clockIRQCounter() {
	if m.irqCounter == 0 || m.irqReload {
		m.irqCounter = m.irqLatch
		m.irqReload = false
	} else {
		m.irqCounter--
	}
	if m.irqCounter == 0 && m.irqEnabled {
		m.irqLine.Assert("mmc3.irq")
	}
}

func (m *MMC3) EncodeState(w io.Writer) error {
	var err error
	m.board.encode(w, &err)
	wr(w, &err, m.bankSelect)
	wr(w, &err, m.bankData)
	wr(w, &err, m.prgROMMode)
	wr(w, &err, m.chrA12Invert)
	wr(w, &err, m.irqLatch)
	wr(w, &err, m.irqCounter)
	wr(w, &err, m.irqReload)
	wr(w, &err, m.irqEnabled)
	wr(w, &err, m.a12Low)
	wr(w, &err, int32(m.a12LowCycles))
	return err
}

func (m *MMC3) DecodeState(r io.Reader) error {
	var err error
	m.board.decode(r, &err)
	rd(r, &err, &m.bankSelect)
	rd(r, &err, &m.bankData)
	rd(r, &err, &m.prgROMMode)
	rd(r, &err, &m.chrA12Invert)
	rd(r, &err, &m.irqLatch)
	rd(r, &err, &m.irqCounter)
	rd(r, &err, &m.irqReload)
	rd(r, &err, &m.irqEnabled)
	rd(r, &err, &m.a12Low)
	var cycles int32
	rd(r, &err, &cycles)
	m.a12LowCycles = int(cycles)
	return err
}
