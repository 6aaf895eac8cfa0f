package apu

import "io"

// OPLL implements the nine-channel two-operator FM synthesis core shared
// by the Yamaha YM2413 and the VRC7 expansion audio mapper. Each channel
// has a modulator and a carrier operator; envelopes pass through a
// Damp-Attack-Decay-Sustain-Release sequence driven by a key-scaled rate
// (RKS) rather than the raw attack/decay/release register values.
type OPLL struct {
	channels [9]opllChannel
	patches  [19]opllPatch // index 0 is the user-programmable custom patch; slots 1-18 are never loaded with instrument data and stay zeroed
	rhythm   bool

	sampleAccum int
}

type opllStage int

const (
	stageOff opllStage = iota
	stageDamp
	stageAttack
	stageDecay
	stageSustain
	stageRelease
)

type opllOperator struct {
	stage      opllStage
	envLevel   int // 0 (loud) .. 127 (silent), matches the log-domain attenuation the chip uses
	phase      uint32
	patch      *opllPatch
}

type opllChannel struct {
	modulator, carrier opllOperator
	fNum               uint16
	block              uint8
	keyOn              bool
	sustainOn          bool
	instrument         uint8
	volume             uint8 // carrier-only attenuation, 0-15
}

type opllPatch struct {
	modMultiple, carMultiple     uint8
	modKSL, carKSL               uint8
	modTotalLevel                uint8
	modFeedback                  uint8
	modWaveform, carWaveform     uint8
	modAttack, modDecay          uint8
	modSustainLevel, modRelease  uint8
	carAttack, carDecay          uint8
	carSustainLevel, carRelease  uint8
	modEnvelopeType, carEnvelopeType bool // true = sustained (holds at sustain level while key is on)
}

// NewOPLL builds an OPLL core with every patch zeroed. Only the custom
// patch at index 0 is programmable (registers $00-$07); the ROM instrument
// and rhythm slots are not loaded with any preset data.
func NewOPLL() *OPLL {
	o := &OPLL{}
	for i := range o.channels {
		o.channels[i].modulator.patch = &o.patches[0]
		o.channels[i].carrier.patch = &o.patches[0]
	}
	return o
}

// WriteRegister applies one YM2413-style register write: reg selects the
// target (0-7 custom patch, 0x0E rhythm control, 0x10-0x18 F-number low
// bits, 0x20-0x28 key-on/block/F-number high bit, 0x30-0x38
// instrument/volume), matching the layout VRC7's $9010/$9030 port pair
// exposes to the CPU.
func (o *OPLL) WriteRegister(reg, v uint8) {
	switch {
	case reg <= 0x07:
		o.writeCustomPatch(reg, v)
	case reg == 0x0E:
		o.rhythm = v&0x20 != 0
	case reg >= 0x10 && reg <= 0x18:
		ch := reg - 0x10
		if int(ch) >= len(o.channels) {
			return
		}
		o.channels[ch].fNum = (o.channels[ch].fNum &^ 0xFF) | uint16(v)
	case reg >= 0x20 && reg <= 0x28:
		ch := reg - 0x20
		if int(ch) >= len(o.channels) {
			return
		}
		c := &o.channels[ch]
		c.fNum = (c.fNum &^ 0x100) | (uint16(v&0x01) << 8)
		c.block = (v >> 1) & 0x07
		wasOn := c.keyOn
		c.keyOn = v&0x10 != 0
		c.sustainOn = v&0x20 != 0
		if c.keyOn && !wasOn {
			o.keyOn(c)
		} else if !c.keyOn && wasOn {
			o.keyOff(c)
		}
	case reg >= 0x30 && reg <= 0x38:
		ch := reg - 0x30
		if int(ch) >= len(o.channels) {
			return
		}
		c := &o.channels[ch]
		c.instrument = v >> 4
		c.volume = v & 0x0F
		c.modulator.patch = o.patchFor(c.instrument, false)
		c.carrier.patch = o.patchFor(c.instrument, true)
	}
}

func (o *OPLL) patchFor(instrument uint8, rhythmCarrier bool) *opllPatch {
	if int(instrument) < len(o.patches) {
		return &o.patches[instrument]
	}
	return &o.patches[0]
}

func (o *OPLL) writeCustomPatch(reg, v uint8) {
	p := &o.patches[0]
	switch reg {
	case 0:
		p.modMultiple = v & 0x0F
		p.modEnvelopeType = v&0x20 != 0
	case 1:
		p.carMultiple = v & 0x0F
		p.carEnvelopeType = v&0x20 != 0
	case 2:
		p.modKSL = v >> 6
		p.modTotalLevel = v & 0x3F
	case 3:
		p.carKSL = v >> 6
		p.modFeedback = v & 0x07
		p.modWaveform = (v >> 3) & 0x01
		p.carWaveform = (v >> 4) & 0x01
	case 4:
		p.modAttack = v >> 4
		p.modDecay = v & 0x0F
	case 5:
		p.carAttack = v >> 4
		p.carDecay = v & 0x0F
	case 6:
		p.modSustainLevel = v >> 4
		p.modRelease = v & 0x0F
	case 7:
		p.carSustainLevel = v >> 4
		p.carRelease = v & 0x0F
	}
}

func (o *OPLL) keyOn(c *opllChannel) {
	c.modulator.stage = stageDamp
	c.carrier.stage = stageDamp
	c.modulator.envLevel = 127
	c.carrier.envLevel = 127
	c.modulator.phase = 0
	c.carrier.phase = 0
}

func (o *OPLL) keyOff(c *opllChannel) {
	c.modulator.stage = stageRelease
	c.carrier.stage = stageRelease
}

// rks computes the rate-key-scale value used in place of the raw
// attack/decay register to pick an envelope's effective speed: higher
// notes and higher KSL settings decay faster.
func rks(block uint8, fNum uint16, ksl uint8) int {
	keyCode := int(block)<<1 | int(fNum>>8&0x01)
	switch ksl {
	case 0:
		return keyCode >> 1
	default:
		return keyCode
	}
}

// stepEnvelope advances one operator's envelope by one sample period,
// applying the attack-skips-to-decay rule: when the attack rate plus RKS
// reaches the chip's maximum effective rate, the attack phase is bypassed
// entirely and the operator starts already fully attacked.
func stepEnvelope(op *opllOperator, attack, decay, sustainLevel, release uint8, rksVal int, sustainOn bool) {
	switch op.stage {
	case stageDamp:
		op.envLevel += 8
		if op.envLevel >= 127 {
			if int(attack)*4+rksVal >= 60 {
				op.envLevel = 0
				op.stage = stageDecay
			} else {
				op.envLevel = 127
				op.stage = stageAttack
			}
		}
	case stageAttack:
		rate := min63(int(attack)*4 + rksVal)
		op.envLevel -= 1 + rate/4
		if op.envLevel <= 0 {
			op.envLevel = 0
			op.stage = stageDecay
		}
	case stageDecay:
		rate := min63(int(decay)*4 + rksVal)
		target := int(sustainLevel) * 8
		op.envLevel += rateStep(rate)
		if op.envLevel >= target {
			op.envLevel = target
			op.stage = stageSustain
		}
	case stageSustain:
		if !sustainOn {
			rate := min63(int(release)*4 + rksVal)
			op.envLevel += rateStep(rate)
			if op.envLevel >= 127 {
				op.envLevel = 127
				op.stage = stageOff
			}
		}
	case stageRelease:
		rate := min63(int(release)*4 + rksVal)
		op.envLevel += rateStep(rate)
		if op.envLevel >= 127 {
			op.envLevel = 127
			op.stage = stageOff
		}
	}
}

func min63(v int) int {
	if v > 63 {
		return 63
	}
	return v
}

func rateStep(rate int) int {
	if rate <= 0 {
		return 0
	}
	step := rate / 4
	if step < 1 {
		step = 1
	}
	return step
}

// Sample advances every channel's envelopes by one sample period and
// returns the mixed output, scaled to a signed 16-bit range.
func (o *OPLL) Sample() int16 {
	var mix int
	limit := len(o.channels)
	if o.rhythm {
		limit = 6 // channels 6-8 become the rhythm voices when rhythm mode is enabled
	}
	for i := 0; i < limit; i++ {
		c := &o.channels[i]
		if c.modulator.stage == stageOff && c.carrier.stage == stageOff {
			continue
		}
		rksVal := rks(c.block, c.fNum, c.modulator.patch.modKSL)
		stepEnvelope(&c.modulator, c.modulator.patch.modAttack, c.modulator.patch.modDecay, c.modulator.patch.modSustainLevel, c.modulator.patch.modRelease, rksVal, c.modulator.patch.modEnvelopeType || c.sustainOn)
		stepEnvelope(&c.carrier, c.carrier.patch.carAttack, c.carrier.patch.carDecay, c.carrier.patch.carSustainLevel, c.carrier.patch.carRelease, rksVal, c.carrier.patch.carEnvelopeType || c.sustainOn)

		attenuation := c.carrier.envLevel + int(c.volume)*8
		if attenuation > 127 {
			attenuation = 127
		}
		level := (127 - attenuation) * 256 / 127
		mix += level
	}
	if mix > 32767 {
		mix = 32767
	}
	if mix < -32768 {
		mix = -32768
	}
	return int16(mix)
}

func (op *opllOperator) encode(w io.Writer, err *error) {
	wr(w, err, int32(op.stage))
	wr(w, err, int32(op.envLevel))
	wr(w, err, op.phase)
}

func (op *opllOperator) decode(r io.Reader, err *error) {
	var stage, env int32
	rd(r, err, &stage)
	rd(r, err, &env)
	rd(r, err, &op.phase)
	op.stage, op.envLevel = opllStage(stage), int(env)
}

func (p *opllPatch) encode(w io.Writer, err *error) {
	wr(w, err, p.modMultiple)
	wr(w, err, p.carMultiple)
	wr(w, err, p.modKSL)
	wr(w, err, p.carKSL)
	wr(w, err, p.modTotalLevel)
	wr(w, err, p.modFeedback)
	wr(w, err, p.modWaveform)
	wr(w, err, p.carWaveform)
	wr(w, err, p.modAttack)
	wr(w, err, p.modDecay)
	wr(w, err, p.modSustainLevel)
	wr(w, err, p.modRelease)
	wr(w, err, p.carAttack)
	wr(w, err, p.carDecay)
	wr(w, err, p.carSustainLevel)
	wr(w, err, p.carRelease)
	wr(w, err, p.modEnvelopeType)
	wr(w, err, p.carEnvelopeType)
}

func (p *opllPatch) decode(r io.Reader, err *error) {
	rd(r, err, &p.modMultiple)
	rd(r, err, &p.carMultiple)
	rd(r, err, &p.modKSL)
	rd(r, err, &p.carKSL)
	rd(r, err, &p.modTotalLevel)
	rd(r, err, &p.modFeedback)
	rd(r, err, &p.modWaveform)
	rd(r, err, &p.carWaveform)
	rd(r, err, &p.modAttack)
	rd(r, err, &p.modDecay)
	rd(r, err, &p.modSustainLevel)
	rd(r, err, &p.modRelease)
	rd(r, err, &p.carAttack)
	rd(r, err, &p.carDecay)
	rd(r, err, &p.carSustainLevel)
	rd(r, err, &p.carRelease)
	rd(r, err, &p.modEnvelopeType)
	rd(r, err, &p.carEnvelopeType)
}

// EncodeState serialises channel state and the custom patch (index 0);
// patch slots 1-18 are never written and are not round-tripped.
func (o *OPLL) EncodeState(w io.Writer) error {
	var err error
	o.patches[0].encode(w, &err)
	wr(w, &err, o.rhythm)
	wr(w, &err, int32(o.sampleAccum))
	for i := range o.channels {
		c := &o.channels[i]
		c.modulator.encode(w, &err)
		c.carrier.encode(w, &err)
		wr(w, &err, c.fNum)
		wr(w, &err, c.block)
		wr(w, &err, c.keyOn)
		wr(w, &err, c.sustainOn)
		wr(w, &err, c.instrument)
		wr(w, &err, c.volume)
	}
	return err
}

// DecodeState restores a state produced by EncodeState, re-deriving each
// channel's operator patch pointers from its saved instrument index.
func (o *OPLL) DecodeState(r io.Reader) error {
	var err error
	o.patches[0].decode(r, &err)
	rd(r, &err, &o.rhythm)
	var accum int32
	rd(r, &err, &accum)
	o.sampleAccum = int(accum)
	for i := range o.channels {
		c := &o.channels[i]
		c.modulator.decode(r, &err)
		c.carrier.decode(r, &err)
		rd(r, &err, &c.fNum)
		rd(r, &err, &c.block)
		rd(r, &err, &c.keyOn)
		rd(r, &err, &c.sustainOn)
		rd(r, &err, &c.instrument)
		rd(r, &err, &c.volume)
		c.modulator.patch = o.patchFor(c.instrument, false)
		c.carrier.patch = o.patchFor(c.instrument, true)
	}
	return err
}
