// Package nes wires the 6502 CPU, 2C02 PPU, 2A03 APU and a cartridge's
// mapper board into a runnable console, driven one CPU instruction at a
// time from RunFrame.
package nes

import (
	"bytes"
	"encoding/binary"
	"image/color"

	"github.com/retrocore/emucore/clocks"
	"github.com/retrocore/emucore/errors"
	"github.com/retrocore/emucore/host"
	"github.com/retrocore/emucore/irq"
	"github.com/retrocore/emucore/nes/apu"
	"github.com/retrocore/emucore/nes/bus"
	"github.com/retrocore/emucore/nes/cartridge"
	"github.com/retrocore/emucore/nes/cpu"
	"github.com/retrocore/emucore/nes/ppu"
)

// palette is the standard 64-entry NES master palette, expressed as sRGB.
var palette = [64]color.RGBA{
	{84, 84, 84, 255}, {0, 30, 116, 255}, {8, 16, 144, 255}, {48, 0, 136, 255},
	{68, 0, 100, 255}, {92, 0, 48, 255}, {84, 4, 0, 255}, {60, 24, 0, 255},
	{32, 42, 0, 255}, {8, 58, 0, 255}, {0, 64, 0, 255}, {0, 60, 0, 255},
	{0, 50, 60, 255}, {0, 0, 0, 255}, {0, 0, 0, 255}, {0, 0, 0, 255},
	{152, 150, 152, 255}, {8, 76, 196, 255}, {48, 50, 236, 255}, {92, 30, 228, 255},
	{136, 20, 176, 255}, {160, 20, 100, 255}, {152, 34, 32, 255}, {120, 60, 0, 255},
	{84, 90, 0, 255}, {40, 114, 0, 255}, {8, 124, 0, 255}, {0, 118, 40, 255},
	{0, 102, 120, 255}, {0, 0, 0, 255}, {0, 0, 0, 255}, {0, 0, 0, 255},
	{236, 238, 236, 255}, {76, 154, 236, 255}, {120, 124, 236, 255}, {176, 98, 236, 255},
	{228, 84, 236, 255}, {236, 88, 180, 255}, {236, 106, 100, 255}, {212, 136, 32, 255},
	{160, 170, 0, 255}, {116, 196, 0, 255}, {76, 208, 32, 255}, {56, 204, 108, 255},
	{56, 180, 204, 255}, {60, 60, 60, 255}, {0, 0, 0, 255}, {0, 0, 0, 255},
	{236, 238, 236, 255}, {168, 204, 236, 255}, {188, 188, 236, 255}, {212, 178, 236, 255},
	{236, 174, 236, 255}, {236, 174, 212, 255}, {236, 180, 176, 255}, {228, 196, 144, 255},
	{204, 210, 120, 255}, {180, 222, 120, 255}, {168, 226, 144, 255}, {152, 226, 180, 255},
	{160, 214, 228, 255}, {160, 162, 160, 255}, {0, 0, 0, 255}, {0, 0, 0, 255},
}

// frameEnder is implemented by mapper boards (MMC5) whose internal
// scanline counter needs an explicit per-frame reset; boards that don't
// need one simply don't satisfy the interface.
type frameEnder interface {
	EndFrame()
}

// Console is a fully wired NES: cartridge, CPU, PPU, APU, and the two
// routers arbitrating every bus access between them.
type Console struct {
	Cart *cartridge.Cartridge
	CPU  *cpu.CPU
	PPU  *ppu.PPU
	APU  *apu.APU

	cpuBus *bus.CPURouter
	ppuBus *bus.PPURouter

	irqLine *irq.Line
	cfg     host.Config

	// apuOddCycle tracks CPU-cycle parity across calls so the APU cycle
	// runs on exactly every other CPU cycle.
	apuOddCycle bool
}

// New loads a ROM image and returns a console ready to run, with the
// cartridge's mapper board routed into both the CPU-side and PPU-side
// buses. The mapper's own IRQ source (MMC3/MMC5's counters) and the APU's
// frame and DMC interrupts all share a single line, since the 6502 only
// has one maskable interrupt input for the CPU to sample.
func New(romData []byte, in0, in1 host.InputSource) (*Console, error) {
	irqLine := irq.NewLine()

	cart, err := cartridge.Load(romData, irqLine)
	if err != nil {
		return nil, err
	}

	ppuBus := bus.NewPPURouter(cart.Mapper)
	p := ppu.NewPPU(ppuBus)

	cpuBus := bus.NewCPURouter(cart.Mapper, p, nil, in0, in1)
	a := apu.NewAPU(cpuBus, irqLine, irqLine)
	cpuBus.APU = a

	c := cpu.NewCPU(cpuBus)
	c.IRQ = irqLine
	c.NMI = p.NMI

	if err := c.Reset(); err != nil {
		return nil, err
	}
	p.Reset()

	return &Console{Cart: cart, CPU: c, PPU: p, APU: a, cpuBus: cpuBus, ppuBus: ppuBus, irqLine: irqLine}, nil
}

// ReloadConfig applies host-level configuration; the NES driver consumes
// only AspectRatioCorrection (passed to the video sink each frame), since
// none of its other fields apply to this console.
func (c *Console) ReloadConfig(cfg host.Config) { c.cfg = cfg }

// RunFrame executes CPU instructions and ticks the PPU/APU/mapper
// sub-clocks until a full video frame has been produced, then hands the
// frame buffer to the video sink and returns.
func (c *Console) RunFrame(video host.VideoSink, audio host.AudioSink) error {
	for {
		if page, stallCycles, pending := c.cpuBus.PendingOAMDMA(); pending {
			buf := c.cpuBus.ReadPage(page)
			c.PPU.WriteOAMDMA(buf)
			c.advancePPUAndAPU(stallCycles)
			continue
		}

		cycles, err := c.CPU.ExecuteInstruction()
		if err != nil && !errors.Is(err, errors.IllegalInstruction) {
			return err
		}

		frameReady := c.advancePPUAndAPU(cycles)
		if audio != nil {
			mix := float64(c.APU.Mix())
			if err := audio.PushSample(mix, mix); err != nil {
				return err
			}
		}

		if frameReady {
			if fe, ok := c.Cart.Mapper.(frameEnder); ok {
				fe.EndFrame()
			}
			return c.presentFrame(video)
		}
	}
}

// ppuTicksPerCPUCycle falls out of the master-clock dividers: the CPU
// advances once per 12 master cycles (NTSC) and the PPU once per 4, a
// fixed 3:1 ratio.
const ppuTicksPerCPUCycle = clocks.NESCPUDividerNTSC / clocks.NESPPUDivider

// advancePPUAndAPU ticks the PPU three times and the mapper/APU once per
// CPU cycle, per the NES's fixed 3:1 PPU:CPU clock ratio. It also ticks the
// shared IRQ line and the PPU's NMI line once per CPU cycle: both model the
// data model's "delayed sampling" rule (a source pulled Low must remain Low
// for >=1 CPU cycle before the CPU observes it), which only takes effect
// once the line is actually clocked once per cycle rather than only on
// Assert/Clear.
func (c *Console) advancePPUAndAPU(cpuCycles int) bool {
	frameReady := false
	for i := 0; i < cpuCycles; i++ {
		for d := 0; d < ppuTicksPerCPUCycle; d++ {
			if c.PPU.Tick() {
				frameReady = true
			}
		}
		c.Cart.Mapper.TickCPU()
		c.APU.TickCPUCycle()
		if !c.apuOddCycle {
			c.APU.TickAPUCycle()
		}
		c.apuOddCycle = !c.apuOddCycle
		c.irqLine.Tick()
		c.PPU.NMI.Tick()
	}
	return frameReady
}

func (c *Console) presentFrame(video host.VideoSink) error {
	if video == nil {
		return nil
	}
	buf := make([]color.RGBA, len(c.PPU.FrameBuffer))
	for i, idx := range c.PPU.FrameBuffer {
		buf[i] = palette[idx&0x3F]
	}
	return video.RenderFrame(buf, host.Size{Width: 256, Height: 240}, 60.0, host.RenderOptions{AspectRatioCorrection: c.cfg.AspectRatioCorrection})
}

// SaveState encodes the console's entire volatile state tree (CPU
// registers, PPU registers/OAM/frame buffer, APU channels, and the
// cartridge mapper's bank-select and IRQ-counter registers) to a byte
// slice suitable for host.SaveWriter.PersistBytes. The cartridge's
// PRG/CHR-ROM backing is never included; TakeROMFrom re-attaches it.
func (c *Console) SaveState() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, c.CPU.Registers); err != nil {
		return nil, errors.Errorf(errors.SaveLoadError, err)
	}
	if err := c.PPU.EncodeState(&buf); err != nil {
		return nil, errors.Errorf(errors.SaveLoadError, err)
	}
	if err := c.APU.EncodeState(&buf); err != nil {
		return nil, errors.Errorf(errors.SaveLoadError, err)
	}
	if err := c.Cart.Mapper.EncodeState(&buf); err != nil {
		return nil, errors.Errorf(errors.SaveLoadError, err)
	}
	return buf.Bytes(), nil
}

// LoadState restores state previously produced by SaveState, in the same
// field order; the cartridge ROM itself is never touched, matching the
// convention that save states never embed the ROM they were captured
// against.
func (c *Console) LoadState(data []byte) error {
	r := bytes.NewReader(data)
	if err := binary.Read(r, binary.LittleEndian, &c.CPU.Registers); err != nil {
		return errors.Errorf(errors.SaveLoadError, err)
	}
	if err := c.PPU.DecodeState(r); err != nil {
		return errors.Errorf(errors.SaveLoadError, err)
	}
	if err := c.APU.DecodeState(r); err != nil {
		return errors.Errorf(errors.SaveLoadError, err)
	}
	if err := c.Cart.Mapper.DecodeState(r); err != nil {
		return errors.Errorf(errors.SaveLoadError, err)
	}
	return nil
}

// TakeROMFrom re-attaches a cartridge image to a console whose save state
// was just restored. The mapper board is rebuilt from the image and then
// given the current board's register state, so bank-select and IRQ-counter
// registers restored by LoadState carry over; the image must use the same
// mapper as the one it replaces.
func (c *Console) TakeROMFrom(romData []byte) error {
	var state bytes.Buffer
	if err := c.Cart.Mapper.EncodeState(&state); err != nil {
		return errors.Errorf(errors.SaveLoadError, err)
	}
	cart, err := cartridge.Load(romData, c.irqLine)
	if err != nil {
		return err
	}
	if err := cart.Mapper.DecodeState(&state); err != nil {
		return errors.Errorf(errors.SaveLoadError, err)
	}
	c.Cart = cart
	c.cpuBus.Mapper = cart.Mapper
	c.ppuBus.Mapper = cart.Mapper
	return nil
}
