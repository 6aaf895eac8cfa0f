// Package cpu implements the 6502 (2A03) core used by the NES driver.
//
// Execution is exposed at instruction granularity: ExecuteInstruction runs
// one complete instruction and returns the elapsed cycle count, matching
// the coarser of the two forms the core's CPU contract allows. Bus
// transactions within an instruction are still issued in their real
// temporal order (operand fetch before the read-modify-write cycle, etc.)
// so that a mapper watching the address bus (MMC3's A12 detector, for
// instance) sees the same sequence of addresses real hardware would drive,
// even though the driver only gets a cycle count back rather than a tick
// for every one of them.
package cpu

import (
	"fmt"

	"github.com/retrocore/emucore/errors"
	"github.com/retrocore/emucore/irq"
	"github.com/retrocore/emucore/logger"
	"github.com/retrocore/emucore/nes/bus"
)

const (
	resetVector = 0xFFFC
	irqVector   = 0xFFFE
	nmiVector   = 0xFFFA
)

// CPU is the 6502 found in the NES/Famicom (part number 2A03/2A07). The
// 2A03 also integrates the APU's two pulse channels, triangle, noise and
// DMC, but that's modelled separately in the apu package; this type is the
// CPU core alone.
type CPU struct {
	Registers

	mem bus.CPUBus

	IRQ *irq.Line
	NMI *irq.Line

	prevNMI irq.Level

	// RDY mirrors pin 3: while false (pulled low by DMA), the CPU does not
	// advance at all and simply re-presents the same cycle to the bus.
	RDY bool

	totalCycles uint64

	instructions [256]instruction

	// Halted records that the CPU hit a KIL/illegal opcode it could not
	// decode. The propagation policy for illegal instructions is log+
	// continue on non-68000 CPUs, so Halted is informational, not fatal;
	// callers may choose to Reset() in response.
	Halted bool
}

type instrFunc func(c *CPU, r resolved) error

type instruction struct {
	name      string
	mode      addrMode
	cycles    uint8
	extraPage bool // add one cycle if the addressing mode crossed a page
	fn        instrFunc
}

// NewCPU constructs a 6502 wired to the given bus. Registers power on in an
// indeterminate state on real hardware; here they start at zero and are
// brought to a known state by Reset.
func NewCPU(mem bus.CPUBus) *CPU {
	c := &CPU{mem: mem, RDY: true}
	c.IRQ = irq.NewLine()
	c.NMI = irq.NewLine()
	c.prevNMI = irq.High
	c.buildTable()
	return c
}

// Plumb replaces the bus the CPU talks to, used when restoring a save
// state that re-attaches a freshly loaded ROM.
func (c *CPU) Plumb(mem bus.CPUBus) { c.mem = mem }

// Reset pulls the reset line: SP -= 3 (emulated as SP = 0xFD, its
// post-power-on-and-three-pushes value), I flag set, PC loaded from the
// reset vector.
func (c *CPU) Reset() error {
	c.SP = 0xFD
	c.P = Flag5 | FlagI
	c.Halted = false
	pc, err := c.read16(resetVector)
	if err != nil {
		return err
	}
	c.PC = pc
	return nil
}

func (c *CPU) busRead(addr uint16) (uint8, error) {
	return c.mem.Read(addr)
}

func (c *CPU) busWrite(addr uint16, v uint8) error {
	return c.mem.Write(addr, v)
}

func (c *CPU) fetch() (uint8, error) {
	v, err := c.busRead(c.PC)
	c.PC++
	return v, err
}

func (c *CPU) fetch16() (uint16, error) {
	lo, err := c.fetch()
	if err != nil {
		return 0, err
	}
	hi, err := c.fetch()
	if err != nil {
		return 0, err
	}
	return uint16(lo) | uint16(hi)<<8, nil
}

func (c *CPU) read16(addr uint16) (uint16, error) {
	lo, err := c.busRead(addr)
	if err != nil {
		return 0, err
	}
	hi, err := c.busRead(addr + 1)
	if err != nil {
		return 0, err
	}
	return uint16(lo) | uint16(hi)<<8, nil
}

func (c *CPU) push(v uint8) error {
	err := c.busWrite(0x0100+uint16(c.SP), v)
	c.SP--
	return err
}

func (c *CPU) pop() (uint8, error) {
	c.SP++
	return c.busRead(0x0100 + uint16(c.SP))
}

func (c *CPU) push16(v uint16) error {
	if err := c.push(uint8(v >> 8)); err != nil {
		return err
	}
	return c.push(uint8(v))
}

func (c *CPU) pop16() (uint16, error) {
	lo, err := c.pop()
	if err != nil {
		return 0, err
	}
	hi, err := c.pop()
	if err != nil {
		return 0, err
	}
	return uint16(lo) | uint16(hi)<<8, nil
}

// ExecuteInstruction services a pending interrupt if one is latched,
// otherwise decodes and runs exactly one instruction, returning the number
// of master-CPU cycles it consumed.
func (c *CPU) ExecuteInstruction() (int, error) {
	if !c.RDY {
		return 1, nil
	}

	if c.nmiEdge() {
		c.serviceNMI()
		return 7, nil
	}
	if c.IRQ.Sample() == irq.Low && !c.flag(FlagI) {
		return c.serviceIRQ()
	}

	opcode, err := c.fetch()
	if err != nil {
		return 0, err
	}

	inst := c.instructions[opcode]
	if inst.fn == nil {
		c.Halted = true
		logger.Logf(logger.Allow, "nes.cpu", "illegal opcode $%02X at $%04X", opcode, c.PC-1)
		return 2, errors.Errorf(errors.IllegalInstruction, fmt.Sprintf("$%02X", opcode))
	}

	r, err := c.resolve(inst.mode)
	if err != nil {
		return 0, err
	}

	cycles := int(inst.cycles)
	if inst.extraPage && r.pageCrossed {
		cycles++
	}

	if err := inst.fn(c, r); err != nil {
		return cycles, err
	}

	c.totalCycles += uint64(cycles)
	return cycles, nil
}

// nmiEdge reports whether the NMI line has transitioned High to Low since
// the last call, per the data model's "NMI triggers on the High->Low edge"
// rule.
func (c *CPU) nmiEdge() bool {
	cur := c.NMI.Sample()
	fired := c.prevNMI == irq.High && cur == irq.Low
	c.prevNMI = cur
	return fired
}

func (c *CPU) serviceNMI() {
	c.push16(c.PC)
	c.push(c.P &^ FlagB | Flag5)
	c.setFlag(FlagI, true)
	pc, err := c.read16(nmiVector)
	if err == nil {
		c.PC = pc
	}
	c.totalCycles += 7
}

func (c *CPU) serviceIRQ() (int, error) {
	c.push16(c.PC)
	c.push(c.P &^ FlagB | Flag5)
	c.setFlag(FlagI, true)
	pc, err := c.read16(irqVector)
	if err != nil {
		return 7, err
	}
	c.PC = pc
	c.totalCycles += 7
	return 7, nil
}

