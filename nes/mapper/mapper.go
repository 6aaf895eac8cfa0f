// Package mapper implements the NES cartridge bank-switching boards as a
// tagged-variant type: every board implements the same Mapper interface,
// and a cartridge picks exactly one implementation at load time based on
// the iNES mapper number. This mirrors the teacher's tagged-variant
// cartridge design (one enumerated type per board, all state kept in one
// place for serialization) rather than an open set of plugins.
package mapper

import (
	"encoding/binary"
	"io"

	"github.com/retrocore/emucore/irq"
)

// Mirroring selects how the PPU's four logical 1KB nametables map onto the
// console's 2KB of internal VRAM (or, for four-screen boards, entirely
// onto cartridge RAM).
type Mirroring int

const (
	MirrorHorizontal Mirroring = iota
	MirrorVertical
	MirrorSingleScreenLo
	MirrorSingleScreenHi
	MirrorFourScreen
)

// Mapper is the contract every cartridge board satisfies. ReadCPU reports
// whether the address decoded to anything at all; a false ok means the bus
// should fall back to its open-bus latch rather than treating 0 as data.
type Mapper interface {
	ReadCPU(addr uint16) (v uint8, ok bool)
	WriteCPU(addr uint16, v uint8)

	// ReadCHR/WriteCHR service the PPU-side pattern-table range
	// ($0000-$1FFF). Every board here, MMC5 included, backs this with
	// cartridge CHR-ROM/RAM; MMC5's ExRAM is not used as a tile source.
	ReadCHR(addr uint16) uint8
	WriteCHR(addr uint16, v uint8)

	Mirroring() Mirroring

	// TickCPU and NotifyA12 let boards with internal counters (MMC3's A12
	// IRQ counter, MMC5's scanline detector) observe CPU cycles and PPU
	// address-bus activity without the bus needing board-specific cases.
	TickCPU()
	NotifyA12(ppuAddr uint16)

	IRQ() *irq.Line

	// EncodeState/DecodeState serialise every mutable per-board register
	// (bank selects, IRQ counters, CHR-RAM contents) needed to resume play
	// exactly; the PRG/CHR-ROM backing arrays themselves are re-attached
	// from the ROM image by TakeROMFrom rather than round-tripped.
	EncodeState(w io.Writer) error
	DecodeState(r io.Reader) error
}

// wr/rd write or read one fixed-size value at a time; board fields are
// unexported, and encoding/binary's reflection walk refuses unexported
// struct fields even from callers inside this package.
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

// board is embedded by every concrete mapper to provide the PRG/CHR ROM
// storage and bank-offset bookkeeping common to nearly all boards.
type board struct {
	prg []uint8
	chr []uint8
	// chrIsRAM is true when the cartridge declared zero CHR-ROM banks in
	// its header, in which case chr is host-allocated 8KB of CHR-RAM.
	chrIsRAM bool
	mirror   Mirroring
	irqLine  *irq.Line
}

// newBoard takes the console's shared IRQ line rather than allocating its
// own, so that a board's internal IRQ source (MMC3's A12 counter, MMC5's
// scanline counter) aggregates on the same CPU-visible line as the APU's
// frame and DMC interrupts instead of needing a second line the CPU would
// have to sample separately.
func newBoard(prg, chr []uint8, mirror Mirroring, irqLine *irq.Line) board {
	chrIsRAM := false
	if len(chr) == 0 {
		chr = make([]uint8, 8192)
		chrIsRAM = true
	}
	return board{prg: prg, chr: chr, chrIsRAM: chrIsRAM, mirror: mirror, irqLine: irqLine}
}

func (b *board) Mirroring() Mirroring { return b.mirror }
func (b *board) IRQ() *irq.Line       { return b.irqLine }
func (b *board) NotifyA12(uint16)     {}
func (b *board) TickCPU()             {}

func (b *board) readPRGBank(bank, bankSize int, addr uint16) uint8 {
	off := bank*bankSize + int(addr)%bankSize
	if off < 0 || off >= len(b.prg) {
		return 0
	}
	return b.prg[off]
}

func (b *board) readCHRBank(bank, bankSize int, addr uint16) uint8 {
	off := bank*bankSize + int(addr)%bankSize
	if off < 0 || off >= len(b.chr) {
		return 0
	}
	return b.chr[off]
}

func (b *board) writeCHRBank(bank, bankSize int, addr uint16, v uint8) {
	if !b.chrIsRAM {
		return
	}
	off := bank*bankSize + int(addr)%bankSize
	if off >= 0 && off < len(b.chr) {
		b.chr[off] = v
	}
}

// encode/decode persist only what the loader can't reconstruct from the
// ROM image: mirroring can be changed at runtime by mapper writes, and
// CHR-RAM (unlike CHR-ROM) is mutable tile data the PPU has drawn from.
func (b *board) encode(w io.Writer, err *error) {
	wr(w, err, int32(b.mirror))
	if b.chrIsRAM {
		wr(w, err, b.chr)
	}
}

func (b *board) decode(r io.Reader, err *error) {
	var mirror int32
	rd(r, err, &mirror)
	b.mirror = Mirroring(mirror)
	if b.chrIsRAM {
		rd(r, err, b.chr)
	}
}
