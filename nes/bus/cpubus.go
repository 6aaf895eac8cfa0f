package bus

import (
	"github.com/retrocore/emucore/host"
	"github.com/retrocore/emucore/nes/apu"
	"github.com/retrocore/emucore/nes/mapper"
	"github.com/retrocore/emucore/nes/ppu"
)

// CPURouter is the concrete NES address-space router: 2KB of mirrored work
// RAM, the PPU's eight mirrored registers, the APU/IO range, and whatever
// the cartridge's mapper board decodes at $4020 and up. Unmapped reads
// fall through to the open-bus latch rather than returning zero, matching
// real NES behavior that many games rely on.
type CPURouter struct {
	ram    [2048]uint8
	PPU    *ppu.PPU
	APU    *apu.APU
	Mapper mapper.Mapper
	Input  [2]host.InputSource

	openBus  OpenBusLatch
	strobe   bool
	shiftReg [2]uint8

	prgRAM [8192]uint8 // $6000-$7FFF, present regardless of board for simplicity

	oamDMAPage  uint8
	oamDMAStall int
}

func NewCPURouter(m mapper.Mapper, p *ppu.PPU, a *apu.APU, in0, in1 host.InputSource) *CPURouter {
	return &CPURouter{Mapper: m, PPU: p, APU: a, Input: [2]host.InputSource{in0, in1}}
}

func (b *CPURouter) Read(addr uint16) (uint8, error) {
	var v uint8
	switch {
	case addr < 0x2000:
		v = b.ram[addr%0x0800]
	case addr < 0x4000:
		v = b.PPU.ReadRegister(uint8(addr), b.openBus.Read())
	case addr == 0x4015:
		v = b.APU.ReadStatus()
	case addr == 0x4016:
		v = b.readController(0)
	case addr == 0x4017:
		v = b.readController(1)
	case addr < 0x4020:
		v = b.openBus.Read()
	case addr >= 0x6000 && addr < 0x8000:
		v = b.prgRAM[addr-0x6000]
	default:
		if mv, ok := b.Mapper.ReadCPU(addr); ok {
			v = mv
		} else {
			v = b.openBus.Read()
		}
	}
	b.openBus.Drive(v)
	return v, nil
}

func (b *CPURouter) Write(addr uint16, data uint8) error {
	b.openBus.Drive(data)
	switch {
	case addr < 0x2000:
		b.ram[addr%0x0800] = data
	case addr < 0x4000:
		b.PPU.WriteRegister(uint8(addr), data)
	case addr == 0x4014:
		b.oamDMAPage = data
		b.oamDMAStall = 513
	case addr == 0x4016:
		wasStrobe := b.strobe
		b.strobe = data&0x01 != 0
		if wasStrobe && !b.strobe {
			b.latchControllers()
		}
	case addr >= 0x4000 && addr < 0x4014, addr == 0x4015, addr == 0x4017:
		b.APU.WriteRegister(addr, data)
	case addr >= 0x6000 && addr < 0x8000:
		b.prgRAM[addr-0x6000] = data
	default:
		if addr >= 0x4020 {
			b.Mapper.WriteCPU(addr, data)
		}
	}
	return nil
}

func (b *CPURouter) latchControllers() {
	for i := 0; i < 2; i++ {
		if b.Input[i] != nil {
			b.shiftReg[i] = uint8(b.Input[i].Poll())
		}
	}
}

func (b *CPURouter) readController(i int) uint8 {
	if b.strobe {
		b.latchControllers()
	}
	bit := b.shiftReg[i] & 0x01
	b.shiftReg[i] = (b.shiftReg[i] >> 1) | 0x80
	return bit | (b.openBus.Read() &^ 0x01)
}

// PendingOAMDMA reports the page selected by a write to $4014 and clears
// the pending flag; the driver uses this to perform the DMA copy and
// apply the CPU stall cycles.
func (b *CPURouter) PendingOAMDMA() (page uint8, cycles int, pending bool) {
	if b.oamDMAStall == 0 {
		return 0, 0, false
	}
	cycles = b.oamDMAStall
	b.oamDMAStall = 0
	return b.oamDMAPage, cycles, true
}

func (b *CPURouter) ReadPage(page uint8) [256]uint8 {
	var out [256]uint8
	base := uint16(page) << 8
	for i := 0; i < 256; i++ {
		out[i], _ = b.Read(base + uint16(i))
	}
	return out
}

// ReadDMC services DMC sample fetches through the ordinary Read path, so
// they update the open-bus latch like any CPU read.
func (b *CPURouter) ReadDMC(addr uint16) uint8 {
	v, _ := b.Read(addr)
	return v
}

func (b *CPURouter) StallCPU(cycles int) { b.oamDMAStall += cycles }
