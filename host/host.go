// Package host declares the interfaces every console driver consumes but
// never implements: the window, the audio device, save-file persistence,
// CLI configuration and GUI settings named as non-goals in the core's
// specification. Concrete implementations are thin host-side wrappers that
// live outside this module.
package host

import "image/color"

// SaveWriter persists cartridge-local state (battery SRAM, RTC) and full
// save states under a conventional file extension ("sav", "rtc").
type SaveWriter interface {
	PersistBytes(ext string, data []byte) error
	LoadBytes(ext string) ([]byte, error)
	PersistSerialized(ext string, value any) error
	LoadSerialized(ext string, value any) error
}

// AudioSink receives stereo samples in [-1.0, 1.0] at the driver's native
// mix rate. A non-nil error return signals backpressure; the caller may
// choose to drop the sample or block depending on its own queueing policy.
type AudioSink interface {
	PushSample(left, right float64) error
}

// Size describes the dimensions of a rendered frame buffer in pixels.
type Size struct {
	Width, Height int
}

// RenderOptions carries the handful of presentation choices that belong to
// the host, not the PPU/VDP: aspect-ratio handling and anything else the
// renderer needs that isn't encoded in the pixel data itself.
type RenderOptions struct {
	AspectRatioCorrection bool
}

// VideoSink receives exactly one completed frame buffer per emulated frame.
type VideoSink interface {
	RenderFrame(buf []color.RGBA, size Size, targetFPS float64, opts RenderOptions) error
}

// InputSource is polled once per frame (or, on consoles with mid-frame
// latching like the SNES auto-joypad-read, once per relevant scanline) for
// a console-specific input bitfield.
type InputSource interface {
	Poll() uint32
}

// TimingMode lets the host force NTSC/PAL timing instead of relying on
// region autodetection from the cartridge header.
type TimingMode int

const (
	TimingAuto TimingMode = iota
	TimingNTSC
	TimingPAL
)

// Config is the configuration record every driver's ReloadConfig consumes.
// Not every field is meaningful to every console; drivers read only the
// fields relevant to their own hardware.
type Config struct {
	Timing TimingMode

	// RegionForce overrides cartridge-header region autodetection
	// ("", "JP", "US", "EU").
	RegionForce string

	AspectRatioCorrection bool

	// CDROMDriveSpeed is the Sega CD drive's multiplier (1x, 2x, ...);
	// higher speeds shrink sector-read latency proportionally.
	CDROMDriveSpeed int

	// YM2612Quantize masks the low bits of the 14-bit FM channel output to
	// reproduce the 9-bit DAC's reduced resolution.
	YM2612Quantize bool

	// YM2612LadderEffect reproduces the DAC ladder's offset distortion on
	// sign changes in the channel output.
	YM2612LadderEffect bool

	// GSUOverclock scales SuperFX/GSU and SA-1 internal clock rates; 1.0 is
	// accurate hardware speed.
	GSUOverclock float64
}
