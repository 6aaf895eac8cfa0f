package cpu

// buildTable populates the 256-entry opcode dispatch table. Unlisted
// entries keep the zero value (fn == nil) and are treated as illegal
// instructions, as required by the CPU contract's "no silent decode
// errors" rule.
func (c *CPU) buildTable() {
	t := &c.instructions
	set := func(op uint8, name string, mode addrMode, cycles uint8, extraPage bool, fn instrFunc) {
		t[op] = instruction{name: name, mode: mode, cycles: cycles, extraPage: extraPage, fn: fn}
	}

	// load/store
	set(0xA9, "LDA", modeImmediate, 2, false, opLDA)
	set(0xA5, "LDA", modeZeroPage, 3, false, opLDA)
	set(0xB5, "LDA", modeZeroPageX, 4, false, opLDA)
	set(0xAD, "LDA", modeAbsolute, 4, false, opLDA)
	set(0xBD, "LDA", modeAbsoluteX, 4, true, opLDA)
	set(0xB9, "LDA", modeAbsoluteY, 4, true, opLDA)
	set(0xA1, "LDA", modeIndexedIndirect, 6, false, opLDA)
	set(0xB1, "LDA", modeIndirectIndexed, 5, true, opLDA)

	set(0xA2, "LDX", modeImmediate, 2, false, opLDX)
	set(0xA6, "LDX", modeZeroPage, 3, false, opLDX)
	set(0xB6, "LDX", modeZeroPageY, 4, false, opLDX)
	set(0xAE, "LDX", modeAbsolute, 4, false, opLDX)
	set(0xBE, "LDX", modeAbsoluteY, 4, true, opLDX)

	set(0xA0, "LDY", modeImmediate, 2, false, opLDY)
	set(0xA4, "LDY", modeZeroPage, 3, false, opLDY)
	set(0xB4, "LDY", modeZeroPageX, 4, false, opLDY)
	set(0xAC, "LDY", modeAbsolute, 4, false, opLDY)
	set(0xBC, "LDY", modeAbsoluteX, 4, true, opLDY)

	set(0x85, "STA", modeZeroPage, 3, false, opSTA)
	set(0x95, "STA", modeZeroPageX, 4, false, opSTA)
	set(0x8D, "STA", modeAbsolute, 4, false, opSTA)
	set(0x9D, "STA", modeAbsoluteX, 5, false, opSTA)
	set(0x99, "STA", modeAbsoluteY, 5, false, opSTA)
	set(0x81, "STA", modeIndexedIndirect, 6, false, opSTA)
	set(0x91, "STA", modeIndirectIndexed, 6, false, opSTA)

	set(0x86, "STX", modeZeroPage, 3, false, opSTX)
	set(0x96, "STX", modeZeroPageY, 4, false, opSTX)
	set(0x8E, "STX", modeAbsolute, 4, false, opSTX)

	set(0x84, "STY", modeZeroPage, 3, false, opSTY)
	set(0x94, "STY", modeZeroPageX, 4, false, opSTY)
	set(0x8C, "STY", modeAbsolute, 4, false, opSTY)

	// transfers
	set(0xAA, "TAX", modeImplied, 2, false, opTAX)
	set(0xA8, "TAY", modeImplied, 2, false, opTAY)
	set(0xBA, "TSX", modeImplied, 2, false, opTSX)
	set(0x8A, "TXA", modeImplied, 2, false, opTXA)
	set(0x9A, "TXS", modeImplied, 2, false, opTXS)
	set(0x98, "TYA", modeImplied, 2, false, opTYA)

	// stack
	set(0x48, "PHA", modeImplied, 3, false, opPHA)
	set(0x08, "PHP", modeImplied, 3, false, opPHP)
	set(0x68, "PLA", modeImplied, 4, false, opPLA)
	set(0x28, "PLP", modeImplied, 4, false, opPLP)

	// logic/arithmetic
	set(0x69, "ADC", modeImmediate, 2, false, opADC)
	set(0x65, "ADC", modeZeroPage, 3, false, opADC)
	set(0x75, "ADC", modeZeroPageX, 4, false, opADC)
	set(0x6D, "ADC", modeAbsolute, 4, false, opADC)
	set(0x7D, "ADC", modeAbsoluteX, 4, true, opADC)
	set(0x79, "ADC", modeAbsoluteY, 4, true, opADC)
	set(0x61, "ADC", modeIndexedIndirect, 6, false, opADC)
	set(0x71, "ADC", modeIndirectIndexed, 5, true, opADC)

	set(0xE9, "SBC", modeImmediate, 2, false, opSBC)
	set(0xE5, "SBC", modeZeroPage, 3, false, opSBC)
	set(0xF5, "SBC", modeZeroPageX, 4, false, opSBC)
	set(0xED, "SBC", modeAbsolute, 4, false, opSBC)
	set(0xFD, "SBC", modeAbsoluteX, 4, true, opSBC)
	set(0xF9, "SBC", modeAbsoluteY, 4, true, opSBC)
	set(0xE1, "SBC", modeIndexedIndirect, 6, false, opSBC)
	set(0xF1, "SBC", modeIndirectIndexed, 5, true, opSBC)

	set(0x29, "AND", modeImmediate, 2, false, opAND)
	set(0x25, "AND", modeZeroPage, 3, false, opAND)
	set(0x35, "AND", modeZeroPageX, 4, false, opAND)
	set(0x2D, "AND", modeAbsolute, 4, false, opAND)
	set(0x3D, "AND", modeAbsoluteX, 4, true, opAND)
	set(0x39, "AND", modeAbsoluteY, 4, true, opAND)
	set(0x21, "AND", modeIndexedIndirect, 6, false, opAND)
	set(0x31, "AND", modeIndirectIndexed, 5, true, opAND)

	set(0x49, "EOR", modeImmediate, 2, false, opEOR)
	set(0x45, "EOR", modeZeroPage, 3, false, opEOR)
	set(0x55, "EOR", modeZeroPageX, 4, false, opEOR)
	set(0x4D, "EOR", modeAbsolute, 4, false, opEOR)
	set(0x5D, "EOR", modeAbsoluteX, 4, true, opEOR)
	set(0x59, "EOR", modeAbsoluteY, 4, true, opEOR)
	set(0x41, "EOR", modeIndexedIndirect, 6, false, opEOR)
	set(0x51, "EOR", modeIndirectIndexed, 5, true, opEOR)

	set(0x09, "ORA", modeImmediate, 2, false, opORA)
	set(0x05, "ORA", modeZeroPage, 3, false, opORA)
	set(0x15, "ORA", modeZeroPageX, 4, false, opORA)
	set(0x0D, "ORA", modeAbsolute, 4, false, opORA)
	set(0x1D, "ORA", modeAbsoluteX, 4, true, opORA)
	set(0x19, "ORA", modeAbsoluteY, 4, true, opORA)
	set(0x01, "ORA", modeIndexedIndirect, 6, false, opORA)
	set(0x11, "ORA", modeIndirectIndexed, 5, true, opORA)

	set(0xC9, "CMP", modeImmediate, 2, false, opCMP)
	set(0xC5, "CMP", modeZeroPage, 3, false, opCMP)
	set(0xD5, "CMP", modeZeroPageX, 4, false, opCMP)
	set(0xCD, "CMP", modeAbsolute, 4, false, opCMP)
	set(0xDD, "CMP", modeAbsoluteX, 4, true, opCMP)
	set(0xD9, "CMP", modeAbsoluteY, 4, true, opCMP)
	set(0xC1, "CMP", modeIndexedIndirect, 6, false, opCMP)
	set(0xD1, "CMP", modeIndirectIndexed, 5, true, opCMP)

	set(0xE0, "CPX", modeImmediate, 2, false, opCPX)
	set(0xE4, "CPX", modeZeroPage, 3, false, opCPX)
	set(0xEC, "CPX", modeAbsolute, 4, false, opCPX)

	set(0xC0, "CPY", modeImmediate, 2, false, opCPY)
	set(0xC4, "CPY", modeZeroPage, 3, false, opCPY)
	set(0xCC, "CPY", modeAbsolute, 4, false, opCPY)

	set(0x24, "BIT", modeZeroPage, 3, false, opBIT)
	set(0x2C, "BIT", modeAbsolute, 4, false, opBIT)

	// inc/dec
	set(0xE6, "INC", modeZeroPage, 5, false, opINC)
	set(0xF6, "INC", modeZeroPageX, 6, false, opINC)
	set(0xEE, "INC", modeAbsolute, 6, false, opINC)
	set(0xFE, "INC", modeAbsoluteX, 7, false, opINC)
	set(0xC6, "DEC", modeZeroPage, 5, false, opDEC)
	set(0xD6, "DEC", modeZeroPageX, 6, false, opDEC)
	set(0xCE, "DEC", modeAbsolute, 6, false, opDEC)
	set(0xDE, "DEC", modeAbsoluteX, 7, false, opDEC)
	set(0xE8, "INX", modeImplied, 2, false, opINX)
	set(0xC8, "INY", modeImplied, 2, false, opINY)
	set(0xCA, "DEX", modeImplied, 2, false, opDEX)
	set(0x88, "DEY", modeImplied, 2, false, opDEY)

	// shifts/rotates
	set(0x0A, "ASL", modeAccumulator, 2, false, opASL)
	set(0x06, "ASL", modeZeroPage, 5, false, opASL)
	set(0x16, "ASL", modeZeroPageX, 6, false, opASL)
	set(0x0E, "ASL", modeAbsolute, 6, false, opASL)
	set(0x1E, "ASL", modeAbsoluteX, 7, false, opASL)

	set(0x4A, "LSR", modeAccumulator, 2, false, opLSR)
	set(0x46, "LSR", modeZeroPage, 5, false, opLSR)
	set(0x56, "LSR", modeZeroPageX, 6, false, opLSR)
	set(0x4E, "LSR", modeAbsolute, 6, false, opLSR)
	set(0x5E, "LSR", modeAbsoluteX, 7, false, opLSR)

	set(0x2A, "ROL", modeAccumulator, 2, false, opROL)
	set(0x26, "ROL", modeZeroPage, 5, false, opROL)
	set(0x36, "ROL", modeZeroPageX, 6, false, opROL)
	set(0x2E, "ROL", modeAbsolute, 6, false, opROL)
	set(0x3E, "ROL", modeAbsoluteX, 7, false, opROL)

	set(0x6A, "ROR", modeAccumulator, 2, false, opROR)
	set(0x66, "ROR", modeZeroPage, 5, false, opROR)
	set(0x76, "ROR", modeZeroPageX, 6, false, opROR)
	set(0x6E, "ROR", modeAbsolute, 6, false, opROR)
	set(0x7E, "ROR", modeAbsoluteX, 7, false, opROR)

	// control flow
	set(0x4C, "JMP", modeAbsolute, 3, false, opJMP)
	set(0x6C, "JMP", modeIndirect, 5, false, opJMP)
	set(0x20, "JSR", modeAbsolute, 6, false, opJSR)
	set(0x60, "RTS", modeImplied, 6, false, opRTS)
	set(0x40, "RTI", modeImplied, 6, false, opRTI)

	set(0x90, "BCC", modeRelative, 2, false, branch(func(c *CPU) bool { return !c.flag(FlagC) }))
	set(0xB0, "BCS", modeRelative, 2, false, branch(func(c *CPU) bool { return c.flag(FlagC) }))
	set(0xF0, "BEQ", modeRelative, 2, false, branch(func(c *CPU) bool { return c.flag(FlagZ) }))
	set(0x30, "BMI", modeRelative, 2, false, branch(func(c *CPU) bool { return c.flag(FlagN) }))
	set(0xD0, "BNE", modeRelative, 2, false, branch(func(c *CPU) bool { return !c.flag(FlagZ) }))
	set(0x10, "BPL", modeRelative, 2, false, branch(func(c *CPU) bool { return !c.flag(FlagN) }))
	set(0x50, "BVC", modeRelative, 2, false, branch(func(c *CPU) bool { return !c.flag(FlagV) }))
	set(0x70, "BVS", modeRelative, 2, false, branch(func(c *CPU) bool { return c.flag(FlagV) }))

	// flags
	set(0x18, "CLC", modeImplied, 2, false, func(c *CPU, r resolved) error { c.setFlag(FlagC, false); return nil })
	set(0x38, "SEC", modeImplied, 2, false, func(c *CPU, r resolved) error { c.setFlag(FlagC, true); return nil })
	set(0xD8, "CLD", modeImplied, 2, false, func(c *CPU, r resolved) error { c.setFlag(FlagD, false); return nil })
	set(0xF8, "SED", modeImplied, 2, false, func(c *CPU, r resolved) error { c.setFlag(FlagD, true); return nil })
	set(0x58, "CLI", modeImplied, 2, false, func(c *CPU, r resolved) error { c.setFlag(FlagI, false); return nil })
	set(0x78, "SEI", modeImplied, 2, false, func(c *CPU, r resolved) error { c.setFlag(FlagI, true); return nil })
	set(0xB8, "CLV", modeImplied, 2, false, func(c *CPU, r resolved) error { c.setFlag(FlagV, false); return nil })

	set(0xEA, "NOP", modeImplied, 2, false, func(c *CPU, r resolved) error { return nil })
	set(0x00, "BRK", modeImplied, 7, false, opBRK)
}

func (c *CPU) readOperand(r resolved) (uint8, error) {
	if r.accumulator {
		return c.A, nil
	}
	return c.busRead(r.addr)
}

func (c *CPU) writeOperand(r resolved, v uint8) error {
	if r.accumulator {
		c.A = v
		return nil
	}
	return c.busWrite(r.addr, v)
}

func opLDA(c *CPU, r resolved) error {
	v, err := c.busRead(r.addr)
	c.A = v
	c.setZN(v)
	return err
}

func opLDX(c *CPU, r resolved) error {
	v, err := c.busRead(r.addr)
	c.X = v
	c.setZN(v)
	return err
}

func opLDY(c *CPU, r resolved) error {
	v, err := c.busRead(r.addr)
	c.Y = v
	c.setZN(v)
	return err
}

func opSTA(c *CPU, r resolved) error { return c.busWrite(r.addr, c.A) }
func opSTX(c *CPU, r resolved) error { return c.busWrite(r.addr, c.X) }
func opSTY(c *CPU, r resolved) error { return c.busWrite(r.addr, c.Y) }

func opTAX(c *CPU, r resolved) error { c.X = c.A; c.setZN(c.X); return nil }
func opTAY(c *CPU, r resolved) error { c.Y = c.A; c.setZN(c.Y); return nil }
func opTSX(c *CPU, r resolved) error { c.X = c.SP; c.setZN(c.X); return nil }
func opTXA(c *CPU, r resolved) error { c.A = c.X; c.setZN(c.A); return nil }
func opTXS(c *CPU, r resolved) error { c.SP = c.X; return nil }
func opTYA(c *CPU, r resolved) error { c.A = c.Y; c.setZN(c.A); return nil }

func opPHA(c *CPU, r resolved) error { return c.push(c.A) }
func opPHP(c *CPU, r resolved) error { return c.push(c.P | FlagB | Flag5) }
func opPLA(c *CPU, r resolved) error {
	v, err := c.pop()
	c.A = v
	c.setZN(v)
	return err
}
func opPLP(c *CPU, r resolved) error {
	v, err := c.pop()
	c.P = (v &^ FlagB) | Flag5
	return err
}

func addWithCarry(c *CPU, operand uint8) {
	carry := uint16(0)
	if c.flag(FlagC) {
		carry = 1
	}
	sum := uint16(c.A) + uint16(operand) + carry
	result := uint8(sum)
	c.setFlag(FlagC, sum > 0xFF)
	c.setFlag(FlagV, (c.A^operand)&0x80 == 0 && (c.A^result)&0x80 != 0)
	c.A = result
	c.setZN(result)
}

func opADC(c *CPU, r resolved) error {
	v, err := c.busRead(r.addr)
	addWithCarry(c, v)
	return err
}

func opSBC(c *CPU, r resolved) error {
	v, err := c.busRead(r.addr)
	addWithCarry(c, ^v)
	return err
}

func opAND(c *CPU, r resolved) error {
	v, err := c.busRead(r.addr)
	c.A &= v
	c.setZN(c.A)
	return err
}

func opEOR(c *CPU, r resolved) error {
	v, err := c.busRead(r.addr)
	c.A ^= v
	c.setZN(c.A)
	return err
}

func opORA(c *CPU, r resolved) error {
	v, err := c.busRead(r.addr)
	c.A |= v
	c.setZN(c.A)
	return err
}

func compare(c *CPU, reg, operand uint8) {
	result := reg - operand
	c.setFlag(FlagC, reg >= operand)
	c.setZN(result)
}

func opCMP(c *CPU, r resolved) error {
	v, err := c.busRead(r.addr)
	compare(c, c.A, v)
	return err
}
func opCPX(c *CPU, r resolved) error {
	v, err := c.busRead(r.addr)
	compare(c, c.X, v)
	return err
}
func opCPY(c *CPU, r resolved) error {
	v, err := c.busRead(r.addr)
	compare(c, c.Y, v)
	return err
}

func opBIT(c *CPU, r resolved) error {
	v, err := c.busRead(r.addr)
	c.setFlag(FlagZ, c.A&v == 0)
	c.setFlag(FlagV, v&0x40 != 0)
	c.setFlag(FlagN, v&0x80 != 0)
	return err
}

func opINC(c *CPU, r resolved) error {
	v, err := c.busRead(r.addr)
	if err != nil {
		return err
	}
	v++
	c.setZN(v)
	return c.busWrite(r.addr, v)
}

func opDEC(c *CPU, r resolved) error {
	v, err := c.busRead(r.addr)
	if err != nil {
		return err
	}
	v--
	c.setZN(v)
	return c.busWrite(r.addr, v)
}

func opINX(c *CPU, r resolved) error { c.X++; c.setZN(c.X); return nil }
func opINY(c *CPU, r resolved) error { c.Y++; c.setZN(c.Y); return nil }
func opDEX(c *CPU, r resolved) error { c.X--; c.setZN(c.X); return nil }
func opDEY(c *CPU, r resolved) error { c.Y--; c.setZN(c.Y); return nil }

func opASL(c *CPU, r resolved) error {
	v, err := c.readOperand(r)
	if err != nil {
		return err
	}
	c.setFlag(FlagC, v&0x80 != 0)
	v <<= 1
	c.setZN(v)
	return c.writeOperand(r, v)
}

func opLSR(c *CPU, r resolved) error {
	v, err := c.readOperand(r)
	if err != nil {
		return err
	}
	c.setFlag(FlagC, v&0x01 != 0)
	v >>= 1
	c.setZN(v)
	return c.writeOperand(r, v)
}

func opROL(c *CPU, r resolved) error {
	v, err := c.readOperand(r)
	if err != nil {
		return err
	}
	oldCarry := uint8(0)
	if c.flag(FlagC) {
		oldCarry = 1
	}
	c.setFlag(FlagC, v&0x80 != 0)
	v = (v << 1) | oldCarry
	c.setZN(v)
	return c.writeOperand(r, v)
}

func opROR(c *CPU, r resolved) error {
	v, err := c.readOperand(r)
	if err != nil {
		return err
	}
	oldCarry := uint8(0)
	if c.flag(FlagC) {
		oldCarry = 0x80
	}
	c.setFlag(FlagC, v&0x01 != 0)
	v = (v >> 1) | oldCarry
	c.setZN(v)
	return c.writeOperand(r, v)
}

func opJMP(c *CPU, r resolved) error { c.PC = r.addr; return nil }

func opJSR(c *CPU, r resolved) error {
	if err := c.push16(c.PC - 1); err != nil {
		return err
	}
	c.PC = r.addr
	return nil
}

func opRTS(c *CPU, r resolved) error {
	pc, err := c.pop16()
	if err != nil {
		return err
	}
	c.PC = pc + 1
	return nil
}

func opRTI(c *CPU, r resolved) error {
	p, err := c.pop()
	if err != nil {
		return err
	}
	c.P = (p &^ FlagB) | Flag5
	pc, err := c.pop16()
	if err != nil {
		return err
	}
	c.PC = pc
	return nil
}

func opBRK(c *CPU, r resolved) error {
	c.PC++ // BRK's operand byte is skipped, matching real hardware
	if err := c.push16(c.PC); err != nil {
		return err
	}
	if err := c.push(c.P | FlagB | Flag5); err != nil {
		return err
	}
	c.setFlag(FlagI, true)
	pc, err := c.read16(irqVector)
	if err != nil {
		return err
	}
	c.PC = pc
	return nil
}

func branch(cond func(c *CPU) bool) instrFunc {
	return func(c *CPU, r resolved) error {
		if cond(c) {
			c.PC = r.addr
		}
		return nil
	}
}
