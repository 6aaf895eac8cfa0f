// Package apu implements the 2A03's five audio channels (two pulse, one
// triangle, one noise, one DMC), its frame-sequencer IRQ, and the OPLL
// FM core used by the VRC7 mapper's expansion audio.
package apu

import (
	"encoding/binary"
	"io"

	"github.com/retrocore/emucore/irq"
)

// wr/rd write or read one fixed-size value at a time; channel structs
// (pulse, triangle, noise, dmc) are entirely unexported fields, and
// encoding/binary's reflection walk refuses unexported struct fields even
// from inside this package, so every field is handed over individually.
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

var dutyTable = [4][8]uint8{
	{0, 1, 0, 0, 0, 0, 0, 0},
	{0, 1, 1, 0, 0, 0, 0, 0},
	{0, 1, 1, 1, 1, 0, 0, 0},
	{1, 0, 0, 1, 1, 1, 1, 1},
}

var lengthTable = [32]uint8{
	10, 254, 20, 2, 40, 4, 80, 6, 160, 8, 60, 10, 14, 12, 26, 14,
	12, 16, 24, 18, 48, 20, 96, 22, 192, 24, 72, 26, 16, 28, 32, 30,
}

var triangleSequence = [32]uint8{
	15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1, 0,
	0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15,
}

var noisePeriodTable = [16]uint16{
	4, 8, 16, 32, 64, 96, 128, 160, 202, 254, 380, 508, 762, 1016, 2034, 4068,
}

var dmcRateTable = [16]uint16{
	428, 380, 340, 320, 286, 254, 226, 214, 190, 160, 142, 128, 106, 84, 72, 54,
}

type pulse struct {
	duty         uint8
	dutyPos      uint8
	lengthHalt   bool
	constantVol  bool
	volume       uint8
	sweepEnabled bool
	sweepPeriod  uint8
	sweepNegate  bool
	sweepShift   uint8
	sweepReload  bool
	sweepDivider uint8
	timerPeriod  uint16
	timer        uint16
	lengthCount  uint8
	envStart     bool
	envDivider   uint8
	envDecay     uint8
	enabled      bool
	isChannel2   bool // channel 2's sweep uses ones'-complement negation instead of two's-complement
}

func (p *pulse) writeControl(v uint8) {
	p.duty = v >> 6
	p.lengthHalt = v&0x20 != 0
	p.constantVol = v&0x10 != 0
	p.volume = v & 0x0F
}

func (p *pulse) writeSweep(v uint8) {
	p.sweepEnabled = v&0x80 != 0
	p.sweepPeriod = (v >> 4) & 0x07
	p.sweepNegate = v&0x08 != 0
	p.sweepShift = v & 0x07
	p.sweepReload = true
}

func (p *pulse) writeTimerLo(v uint8) { p.timerPeriod = (p.timerPeriod &^ 0xFF) | uint16(v) }

func (p *pulse) writeTimerHi(v uint8) {
	p.timerPeriod = (p.timerPeriod &^ 0x700) | (uint16(v&0x07) << 8)
	if p.enabled {
		p.lengthCount = lengthTable[v>>3]
	}
	p.dutyPos = 0
	p.envStart = true
}

func (p *pulse) tick() {
	if p.timer == 0 {
		p.timer = p.timerPeriod
		p.dutyPos = (p.dutyPos + 1) % 8
	} else {
		p.timer--
	}
}

func (p *pulse) tickEnvelope() {
	if p.envStart {
		p.envStart = false
		p.envDecay = 15
		p.envDivider = p.volume
		return
	}
	if p.envDivider == 0 {
		p.envDivider = p.volume
		if p.envDecay > 0 {
			p.envDecay--
		} else if p.lengthHalt {
			p.envDecay = 15
		}
	} else {
		p.envDivider--
	}
}

func (p *pulse) sweepTarget() (int, bool) {
	change := p.timerPeriod >> p.sweepShift
	var target int
	if p.sweepNegate {
		if p.isChannel2 {
			target = int(p.timerPeriod) - int(change)
		} else {
			target = int(p.timerPeriod) - int(change) - 1
		}
	} else {
		target = int(p.timerPeriod) + int(change)
	}
	muted := p.timerPeriod < 8 || target > 0x7FF
	return target, muted
}

func (p *pulse) tickSweep() {
	target, muted := p.sweepTarget()
	if p.sweepDivider == 0 && p.sweepEnabled && p.sweepShift > 0 && !muted {
		p.timerPeriod = uint16(target)
	}
	if p.sweepDivider == 0 || p.sweepReload {
		p.sweepDivider = p.sweepPeriod
		p.sweepReload = false
	} else {
		p.sweepDivider--
	}
}

func (p *pulse) output() uint8 {
	if !p.enabled || p.lengthCount == 0 || dutyTable[p.duty][p.dutyPos] == 0 {
		return 0
	}
	if _, muted := p.sweepTarget(); muted {
		return 0
	}
	if p.constantVol {
		return p.volume
	}
	return p.envDecay
}

type triangle struct {
	lengthHalt    bool
	linearPeriod  uint8
	linearReload  uint8
	linearCounter uint8
	reloadFlag    bool
	timerPeriod   uint16
	timer         uint16
	sequencePos   uint8
	lengthCount   uint8
	enabled       bool
}

func (t *triangle) writeControl(v uint8) {
	t.lengthHalt = v&0x80 != 0
	t.linearPeriod = v & 0x7F
}

func (t *triangle) writeTimerLo(v uint8) { t.timerPeriod = (t.timerPeriod &^ 0xFF) | uint16(v) }

func (t *triangle) writeTimerHi(v uint8) {
	t.timerPeriod = (t.timerPeriod &^ 0x700) | (uint16(v&0x07) << 8)
	if t.enabled {
		t.lengthCount = lengthTable[v>>3]
	}
	t.reloadFlag = true
}

func (t *triangle) tick() {
	if t.timer == 0 {
		t.timer = t.timerPeriod
		if t.lengthCount > 0 && t.linearCounter > 0 {
			t.sequencePos = (t.sequencePos + 1) % 32
		}
	} else {
		t.timer--
	}
}

func (t *triangle) tickLinear() {
	if t.reloadFlag {
		t.linearCounter = t.linearPeriod
	} else if t.linearCounter > 0 {
		t.linearCounter--
	}
	if !t.lengthHalt {
		t.reloadFlag = false
	}
}

func (t *triangle) output() uint8 {
	if !t.enabled || t.lengthCount == 0 || t.linearCounter == 0 {
		return 0
	}
	return triangleSequence[t.sequencePos]
}

type noise struct {
	lengthHalt  bool
	constantVol bool
	volume      uint8
	mode        bool
	timerPeriod uint16
	timer       uint16
	shift       uint16
	lengthCount uint8
	envStart    bool
	envDivider  uint8
	envDecay    uint8
	enabled     bool
}

func newNoise() noise { return noise{shift: 1} }

func (n *noise) writeControl(v uint8) {
	n.lengthHalt = v&0x20 != 0
	n.constantVol = v&0x10 != 0
	n.volume = v & 0x0F
}

func (n *noise) writePeriod(v uint8) {
	n.mode = v&0x80 != 0
	n.timerPeriod = noisePeriodTable[v&0x0F]
}

func (n *noise) writeLength(v uint8) {
	if n.enabled {
		n.lengthCount = lengthTable[v>>3]
	}
	n.envStart = true
}

func (n *noise) tick() {
	if n.timer == 0 {
		n.timer = n.timerPeriod
		bit := n.shift & 0x01
		var other uint16
		if n.mode {
			other = (n.shift >> 6) & 0x01
		} else {
			other = (n.shift >> 1) & 0x01
		}
		feedback := bit ^ other
		n.shift >>= 1
		n.shift |= feedback << 14
	} else {
		n.timer--
	}
}

func (n *noise) tickEnvelope() {
	if n.envStart {
		n.envStart = false
		n.envDecay = 15
		n.envDivider = n.volume
		return
	}
	if n.envDivider == 0 {
		n.envDivider = n.volume
		if n.envDecay > 0 {
			n.envDecay--
		} else if n.lengthHalt {
			n.envDecay = 15
		}
	} else {
		n.envDivider--
	}
}

func (n *noise) output() uint8 {
	if !n.enabled || n.lengthCount == 0 || n.shift&0x01 != 0 {
		return 0
	}
	if n.constantVol {
		return n.volume
	}
	return n.envDecay
}

// DMABus lets the DMC channel fetch sample bytes directly off the CPU bus,
// stalling the CPU for the documented 4 (or up to 4+2) cycles per fetch.
type DMABus interface {
	ReadDMC(addr uint16) uint8
	StallCPU(cycles int)
}

type dmc struct {
	bus          DMABus
	irqEnabled   bool
	loop         bool
	rate         uint16
	timer        uint16
	outputLevel  uint8
	sampleAddr   uint16
	sampleLength uint16
	currentAddr  uint16
	bytesLeft    uint16
	shiftReg     uint8
	bitsLeft     uint8
	silence      bool
	irq          *irq.Line
}

func (d *dmc) writeControl(v uint8) {
	d.irqEnabled = v&0x80 != 0
	d.loop = v&0x40 != 0
	d.rate = dmcRateTable[v&0x0F]
	if !d.irqEnabled {
		d.irq.Clear("apu.dmc")
	}
}

func (d *dmc) writeLevel(v uint8) { d.outputLevel = v & 0x7F }
func (d *dmc) writeAddr(v uint8)  { d.sampleAddr = 0xC000 + uint16(v)*64 }
func (d *dmc) writeLength(v uint8) { d.sampleLength = uint16(v)*16 + 1 }

func (d *dmc) restart() {
	d.currentAddr = d.sampleAddr
	d.bytesLeft = d.sampleLength
}

func (d *dmc) tick() {
	if d.timer == 0 {
		d.timer = d.rate
		d.clockOutput()
	} else {
		d.timer--
	}
}

func (d *dmc) clockOutput() {
	if d.bitsLeft == 0 {
		d.bitsLeft = 8
		if d.bytesLeft == 0 {
			d.silence = true
		} else {
			d.silence = false
			d.shiftReg = d.bus.ReadDMC(d.currentAddr)
			d.bus.StallCPU(4)
			d.currentAddr++
			if d.currentAddr == 0 {
				d.currentAddr = 0x8000
			}
			d.bytesLeft--
			if d.bytesLeft == 0 {
				if d.loop {
					d.restart()
				} else if d.irqEnabled {
					d.irq.Assert("apu.dmc")
				}
			}
		}
	}
	if !d.silence {
		if d.shiftReg&0x01 != 0 {
			if d.outputLevel <= 125 {
				d.outputLevel += 2
			}
		} else {
			if d.outputLevel >= 2 {
				d.outputLevel -= 2
			}
		}
	}
	d.shiftReg >>= 1
	d.bitsLeft--
}

// APU models the 2A03's pulse/triangle/noise/DMC mixer and its
// four-or-five-step frame sequencer.
type APU struct {
	pulse1, pulse2 pulse
	triangle       triangle
	noise          noise
	dmc            dmc

	frameMode5Step bool
	frameIRQInhibit bool
	frameIRQ       *irq.Line
	cycle          uint64
	sequenceStep   int
}

func NewAPU(dmcBus DMABus, dmcIRQ, frameIRQ *irq.Line) *APU {
	a := &APU{noise: newNoise()}
	a.pulse1.enabled = false
	a.pulse2.isChannel2 = true
	a.dmc.bus = dmcBus
	a.dmc.irq = dmcIRQ
	a.frameIRQ = frameIRQ
	return a
}

// WriteRegister services CPU writes to $4000-$4017 addressed to the APU.
func (a *APU) WriteRegister(addr uint16, v uint8) {
	switch addr {
	case 0x4000:
		a.pulse1.writeControl(v)
	case 0x4001:
		a.pulse1.writeSweep(v)
	case 0x4002:
		a.pulse1.writeTimerLo(v)
	case 0x4003:
		a.pulse1.writeTimerHi(v)
	case 0x4004:
		a.pulse2.writeControl(v)
	case 0x4005:
		a.pulse2.writeSweep(v)
	case 0x4006:
		a.pulse2.writeTimerLo(v)
	case 0x4007:
		a.pulse2.writeTimerHi(v)
	case 0x4008:
		a.triangle.writeControl(v)
	case 0x400A:
		a.triangle.writeTimerLo(v)
	case 0x400B:
		a.triangle.writeTimerHi(v)
	case 0x400C:
		a.noise.writeControl(v)
	case 0x400E:
		a.noise.writePeriod(v)
	case 0x400F:
		a.noise.writeLength(v)
	case 0x4010:
		a.dmc.writeControl(v)
	case 0x4011:
		a.dmc.writeLevel(v)
	case 0x4012:
		a.dmc.writeAddr(v)
	case 0x4013:
		a.dmc.writeLength(v)
	case 0x4015:
		a.pulse1.enabled = v&0x01 != 0
		a.pulse2.enabled = v&0x02 != 0
		a.triangle.enabled = v&0x04 != 0
		a.noise.enabled = v&0x08 != 0
		if !a.pulse1.enabled {
			a.pulse1.lengthCount = 0
		}
		if !a.pulse2.enabled {
			a.pulse2.lengthCount = 0
		}
		if !a.triangle.enabled {
			a.triangle.lengthCount = 0
		}
		if !a.noise.enabled {
			a.noise.lengthCount = 0
		}
		if v&0x10 != 0 {
			if a.dmc.bytesLeft == 0 {
				a.dmc.restart()
			}
		} else {
			a.dmc.bytesLeft = 0
		}
		a.dmc.irq.Clear("apu.dmc")
	case 0x4017:
		a.frameMode5Step = v&0x80 != 0
		a.frameIRQInhibit = v&0x40 != 0
		a.sequenceStep = 0
		if a.frameIRQInhibit {
			a.frameIRQ.Clear("apu.frame")
		}
		if a.frameMode5Step {
			a.clockQuarterFrame()
			a.clockHalfFrame()
		}
	}
}

// ReadStatus services a CPU read of $4015.
func (a *APU) ReadStatus() uint8 {
	var v uint8
	if a.pulse1.lengthCount > 0 {
		v |= 0x01
	}
	if a.pulse2.lengthCount > 0 {
		v |= 0x02
	}
	if a.triangle.lengthCount > 0 {
		v |= 0x04
	}
	if a.noise.lengthCount > 0 {
		v |= 0x08
	}
	if a.dmc.bytesLeft > 0 {
		v |= 0x10
	}
	return v
}

func (a *APU) clockQuarterFrame() {
	a.pulse1.tickEnvelope()
	a.pulse2.tickEnvelope()
	a.noise.tickEnvelope()
	a.triangle.tickLinear()
}

func (a *APU) clockHalfFrame() {
	a.pulse1.tickSweep()
	a.pulse2.tickSweep()
	if !a.pulse1.lengthHalt && a.pulse1.lengthCount > 0 {
		a.pulse1.lengthCount--
	}
	if !a.pulse2.lengthHalt && a.pulse2.lengthCount > 0 {
		a.pulse2.lengthCount--
	}
	if !a.triangle.lengthHalt && a.triangle.lengthCount > 0 {
		a.triangle.lengthCount--
	}
	if !a.noise.lengthHalt && a.noise.lengthCount > 0 {
		a.noise.lengthCount--
	}
}

// the frame sequencer is clocked once per APU cycle (every other CPU
// cycle); step boundaries are expressed directly in those APU-cycle units.
const (
	frameStep1 = 3729
	frameStep2 = 7457
	frameStep3 = 11186
	frameStep4 = 14915
	frameStep5 = 18641
)

// TickAPUCycle advances the frame sequencer and the triangle channel
// (both clocked at the APU rate); TickCPUCycle additionally advances
// pulse/noise/DMC (clocked at the full CPU rate).
func (a *APU) TickAPUCycle() {
	a.triangle.tick()
	a.cycle++
	var step int
	if a.frameMode5Step {
		step = int(a.cycle % frameStep5)
	} else {
		step = int(a.cycle % frameStep4)
	}
	switch {
	case step == frameStep1:
		a.clockQuarterFrame()
	case step == frameStep2:
		a.clockQuarterFrame()
		a.clockHalfFrame()
	case step == frameStep3:
		a.clockQuarterFrame()
	case !a.frameMode5Step && step == frameStep4-1 && !a.frameIRQInhibit:
		a.frameIRQ.Assert("apu.frame")
	// step wraps to 0 on the frameStep4/frameStep5 boundary.
	case step == 0 && !a.frameMode5Step:
		a.clockQuarterFrame()
		a.clockHalfFrame()
	case a.frameMode5Step && step == 0:
		a.clockQuarterFrame()
		a.clockHalfFrame()
	}
}

func (a *APU) TickCPUCycle() {
	a.pulse1.tick()
	a.pulse2.tick()
	a.noise.tick()
	a.dmc.tick()
}

// Mix returns the current combined analogue output in the 0..1 range,
// using the NES's non-linear pulse and TND mixer approximations.
func (a *APU) Mix() float32 {
	p1 := float32(a.pulse1.output())
	p2 := float32(a.pulse2.output())
	var pulseOut float32
	if p1+p2 > 0 {
		pulseOut = 95.88 / (8128/(p1+p2) + 100)
	}

	t := float32(a.triangle.output())
	n := float32(a.noise.output())
	d := float32(a.dmc.outputLevel)
	var tndOut float32
	if t+n+d > 0 {
		tndOut = 159.79 / (1/(t/8227+n/12241+d/22638) + 100)
	}
	return pulseOut + tndOut
}

func (p *pulse) encode(w io.Writer, err *error) {
	wr(w, err, p.duty)
	wr(w, err, p.dutyPos)
	wr(w, err, p.lengthHalt)
	wr(w, err, p.constantVol)
	wr(w, err, p.volume)
	wr(w, err, p.sweepEnabled)
	wr(w, err, p.sweepPeriod)
	wr(w, err, p.sweepNegate)
	wr(w, err, p.sweepShift)
	wr(w, err, p.sweepReload)
	wr(w, err, p.sweepDivider)
	wr(w, err, p.timerPeriod)
	wr(w, err, p.timer)
	wr(w, err, p.lengthCount)
	wr(w, err, p.envStart)
	wr(w, err, p.envDivider)
	wr(w, err, p.envDecay)
	wr(w, err, p.enabled)
	wr(w, err, p.isChannel2)
}

func (p *pulse) decode(r io.Reader, err *error) {
	rd(r, err, &p.duty)
	rd(r, err, &p.dutyPos)
	rd(r, err, &p.lengthHalt)
	rd(r, err, &p.constantVol)
	rd(r, err, &p.volume)
	rd(r, err, &p.sweepEnabled)
	rd(r, err, &p.sweepPeriod)
	rd(r, err, &p.sweepNegate)
	rd(r, err, &p.sweepShift)
	rd(r, err, &p.sweepReload)
	rd(r, err, &p.sweepDivider)
	rd(r, err, &p.timerPeriod)
	rd(r, err, &p.timer)
	rd(r, err, &p.lengthCount)
	rd(r, err, &p.envStart)
	rd(r, err, &p.envDivider)
	rd(r, err, &p.envDecay)
	rd(r, err, &p.enabled)
	rd(r, err, &p.isChannel2)
}

func (t *triangle) encode(w io.Writer, err *error) {
	wr(w, err, t.lengthHalt)
	wr(w, err, t.linearPeriod)
	wr(w, err, t.linearReload)
	wr(w, err, t.linearCounter)
	wr(w, err, t.reloadFlag)
	wr(w, err, t.timerPeriod)
	wr(w, err, t.timer)
	wr(w, err, t.sequencePos)
	wr(w, err, t.lengthCount)
	wr(w, err, t.enabled)
}

func (t *triangle) decode(r io.Reader, err *error) {
	rd(r, err, &t.lengthHalt)
	rd(r, err, &t.linearPeriod)
	rd(r, err, &t.linearReload)
	rd(r, err, &t.linearCounter)
	rd(r, err, &t.reloadFlag)
	rd(r, err, &t.timerPeriod)
	rd(r, err, &t.timer)
	rd(r, err, &t.sequencePos)
	rd(r, err, &t.lengthCount)
	rd(r, err, &t.enabled)
}

func (n *noise) encode(w io.Writer, err *error) {
	wr(w, err, n.lengthHalt)
	wr(w, err, n.constantVol)
	wr(w, err, n.volume)
	wr(w, err, n.mode)
	wr(w, err, n.timerPeriod)
	wr(w, err, n.timer)
	wr(w, err, n.shift)
	wr(w, err, n.lengthCount)
	wr(w, err, n.envStart)
	wr(w, err, n.envDivider)
	wr(w, err, n.envDecay)
	wr(w, err, n.enabled)
}

func (n *noise) decode(r io.Reader, err *error) {
	rd(r, err, &n.lengthHalt)
	rd(r, err, &n.constantVol)
	rd(r, err, &n.volume)
	rd(r, err, &n.mode)
	rd(r, err, &n.timerPeriod)
	rd(r, err, &n.timer)
	rd(r, err, &n.shift)
	rd(r, err, &n.lengthCount)
	rd(r, err, &n.envStart)
	rd(r, err, &n.envDivider)
	rd(r, err, &n.envDecay)
	rd(r, err, &n.enabled)
}

// encode/decode intentionally skip d.bus and d.irq: both are wired by the
// driver at construction time (nes.New; TakeROMFrom keeps the same bus),
// not state that round-trips through a save file.
func (d *dmc) encode(w io.Writer, err *error) {
	wr(w, err, d.irqEnabled)
	wr(w, err, d.loop)
	wr(w, err, d.rate)
	wr(w, err, d.timer)
	wr(w, err, d.outputLevel)
	wr(w, err, d.sampleAddr)
	wr(w, err, d.sampleLength)
	wr(w, err, d.currentAddr)
	wr(w, err, d.bytesLeft)
	wr(w, err, d.shiftReg)
	wr(w, err, d.bitsLeft)
	wr(w, err, d.silence)
}

func (d *dmc) decode(r io.Reader, err *error) {
	rd(r, err, &d.irqEnabled)
	rd(r, err, &d.loop)
	rd(r, err, &d.rate)
	rd(r, err, &d.timer)
	rd(r, err, &d.outputLevel)
	rd(r, err, &d.sampleAddr)
	rd(r, err, &d.sampleLength)
	rd(r, err, &d.currentAddr)
	rd(r, err, &d.bytesLeft)
	rd(r, err, &d.shiftReg)
	rd(r, err, &d.bitsLeft)
	rd(r, err, &d.silence)
}

// EncodeState serialises every channel and the frame sequencer; the
// frame/dmc IRQ lines themselves are owned by the console driver and
// re-attached on load, same as the DMC's bus callback.
func (a *APU) EncodeState(w io.Writer) error {
	var err error
	a.pulse1.encode(w, &err)
	a.pulse2.encode(w, &err)
	a.triangle.encode(w, &err)
	a.noise.encode(w, &err)
	a.dmc.encode(w, &err)
	wr(w, &err, a.frameMode5Step)
	wr(w, &err, a.frameIRQInhibit)
	wr(w, &err, a.cycle)
	wr(w, &err, int32(a.sequenceStep))
	return err
}

// DecodeState restores a state produced by EncodeState, in the same
// field order.
func (a *APU) DecodeState(r io.Reader) error {
	var err error
	a.pulse1.decode(r, &err)
	a.pulse2.decode(r, &err)
	a.triangle.decode(r, &err)
	a.noise.decode(r, &err)
	a.dmc.decode(r, &err)
	rd(r, &err, &a.frameMode5Step)
	rd(r, &err, &a.frameIRQInhibit)
	rd(r, &err, &a.cycle)
	var step int32
	rd(r, &err, &step)
	a.sequenceStep = int(step)
	return err
}
