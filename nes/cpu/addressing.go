package cpu

// addrMode identifies one of the 6502's addressing modes. Every opcode in
// the dispatch table names one of these; the resolve step computes the
// effective address (or signals that none exists, for implied/accumulator
// opcodes) and reports whether a page boundary was crossed so the caller
// can apply the one-cycle page-cross penalty.
type addrMode int

const (
	modeImplied addrMode = iota
	modeAccumulator
	modeImmediate
	modeZeroPage
	modeZeroPageX
	modeZeroPageY
	modeAbsolute
	modeAbsoluteX
	modeAbsoluteY
	modeIndirect
	modeIndexedIndirect // (zp,X)
	modeIndirectIndexed // (zp),Y
	modeRelative
)

// resolved carries the address computation result for one instruction.
type resolved struct {
	addr        uint16
	pageCrossed bool
	accumulator bool
}

func (c *CPU) resolve(mode addrMode) (resolved, error) {
	switch mode {
	case modeImplied:
		return resolved{}, nil
	case modeAccumulator:
		return resolved{accumulator: true}, nil
	case modeImmediate:
		r := resolved{addr: c.PC}
		c.PC++
		return r, nil
	case modeZeroPage:
		v, err := c.fetch()
		return resolved{addr: uint16(v)}, err
	case modeZeroPageX:
		v, err := c.fetch()
		return resolved{addr: uint16(v + c.X)}, err
	case modeZeroPageY:
		v, err := c.fetch()
		return resolved{addr: uint16(v + c.Y)}, err
	case modeAbsolute:
		v, err := c.fetch16()
		return resolved{addr: v}, err
	case modeAbsoluteX:
		base, err := c.fetch16()
		addr := base + uint16(c.X)
		return resolved{addr: addr, pageCrossed: (base & 0xFF00) != (addr & 0xFF00)}, err
	case modeAbsoluteY:
		base, err := c.fetch16()
		addr := base + uint16(c.Y)
		return resolved{addr: addr, pageCrossed: (base & 0xFF00) != (addr & 0xFF00)}, err
	case modeIndirect:
		ptr, err := c.fetch16()
		if err != nil {
			return resolved{}, err
		}
		addr, err := c.read16Bugged(ptr)
		return resolved{addr: addr}, err
	case modeIndexedIndirect:
		zp, err := c.fetch()
		if err != nil {
			return resolved{}, err
		}
		addr, err := c.read16Bugged(uint16(zp + c.X))
		return resolved{addr: addr}, err
	case modeIndirectIndexed:
		zp, err := c.fetch()
		if err != nil {
			return resolved{}, err
		}
		base, err := c.read16Bugged(uint16(zp))
		if err != nil {
			return resolved{}, err
		}
		addr := base + uint16(c.Y)
		return resolved{addr: addr, pageCrossed: (base & 0xFF00) != (addr & 0xFF00)}, nil
	case modeRelative:
		v, err := c.fetch()
		if err != nil {
			return resolved{}, err
		}
		offset := int8(v)
		addr := uint16(int32(c.PC) + int32(offset))
		return resolved{addr: addr, pageCrossed: (c.PC & 0xFF00) != (addr & 0xFF00)}, nil
	}
	return resolved{}, nil
}

// read16Bugged reproduces the 6502's JMP ($xxFF) page-wrap bug: the high
// byte of the indirect vector is fetched from $xx00, not $(xx+1)00, when
// the low byte of the pointer is $FF.
func (c *CPU) read16Bugged(ptr uint16) (uint16, error) {
	lo, err := c.busRead(ptr)
	if err != nil {
		return 0, err
	}
	hiAddr := (ptr & 0xFF00) | uint16(uint8(ptr)+1)
	hi, err := c.busRead(hiAddr)
	if err != nil {
		return 0, err
	}
	return uint16(lo) | uint16(hi)<<8, nil
}
