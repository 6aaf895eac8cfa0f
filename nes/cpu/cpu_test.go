package cpu_test

import (
	"testing"

	"github.com/retrocore/emucore/nes/cpu"
	"github.com/retrocore/emucore/test"
)

// mockMem is a flat 64KB RAM used in place of the console's full bus for
// CPU-only tests, in the style of the teacher's mockMem in
// hardware/cpu/*_test.go.
type mockMem struct {
	ram [0x10000]uint8
}

func (m *mockMem) Read(addr uint16) (uint8, error)       { return m.ram[addr], nil }
func (m *mockMem) Write(addr uint16, data uint8) error   { m.ram[addr] = data; return nil }
func (m *mockMem) putInstructions(origin uint16, bytes ...uint8) {
	for i, b := range bytes {
		m.ram[origin+uint16(i)] = b
	}
}

func newTestCPU() (*cpu.CPU, *mockMem) {
	mem := &mockMem{}
	mem.putInstructions(0xFFFC, 0x00, 0x80) // reset vector -> $8000
	c := cpu.NewCPU(mem)
	if err := c.Reset(); err != nil {
		panic(err)
	}
	return c, mem
}

func TestLDAImmediateSetsRegisterAndFlags(t *testing.T) {
	c, mem := newTestCPU()
	mem.putInstructions(0x8000, 0xA9, 0x00) // LDA #$00

	cycles, err := c.ExecuteInstruction()
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, cycles, 2)
	test.ExpectEquality(t, c.A, uint8(0x00))
	test.ExpectEquality(t, c.P&cpu.FlagZ != 0, true)
	test.ExpectEquality(t, c.P&cpu.FlagN != 0, false)
}

func TestLDAImmediateNegativeFlag(t *testing.T) {
	c, mem := newTestCPU()
	mem.putInstructions(0x8000, 0xA9, 0x80) // LDA #$80

	_, err := c.ExecuteInstruction()
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, c.A, uint8(0x80))
	test.ExpectEquality(t, c.P&cpu.FlagN != 0, true)
	test.ExpectEquality(t, c.P&cpu.FlagZ != 0, false)
}

func TestADCSetsCarryAndOverflow(t *testing.T) {
	c, mem := newTestCPU()
	// LDA #$7F; CLC; ADC #$01 -> overflow (positive+positive=negative)
	mem.putInstructions(0x8000, 0xA9, 0x7F, 0x18, 0x69, 0x01)

	for i := 0; i < 3; i++ {
		_, err := c.ExecuteInstruction()
		test.ExpectSuccess(t, err)
	}
	test.ExpectEquality(t, c.A, uint8(0x80))
	test.ExpectEquality(t, c.P&cpu.FlagV != 0, true)
	test.ExpectEquality(t, c.P&cpu.FlagN != 0, true)
}

func TestJMPAbsolute(t *testing.T) {
	c, mem := newTestCPU()
	mem.putInstructions(0x8000, 0x4C, 0x34, 0x12) // JMP $1234

	_, err := c.ExecuteInstruction()
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, c.PC, uint16(0x1234))
}

func TestIllegalOpcodeHalts(t *testing.T) {
	c, mem := newTestCPU()
	mem.putInstructions(0x8000, 0x02) // KIL/illegal on the NES's official-opcode table

	_, err := c.ExecuteInstruction()
	test.ExpectFailure(t, err)
	test.ExpectEquality(t, c.Halted, true)
}
