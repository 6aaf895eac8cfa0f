// Package segacd implements the pieces of the Sega CD subsystem that
// don't require a full 68000/sub-CPU bus to be useful on their own: the
// CD-DA (redbook audio) track loader feeding the CD-ROM drive's track
// playback path, and the fader that smooths volume changes between
// tracks.
package segacd

import (
	"bytes"
	"io"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"

	"github.com/retrocore/emucore/errors"
)

// Track holds one CD-DA track's decoded PCM samples (interleaved stereo,
// 16-bit signed) at its native sample rate, along with the rate itself so
// the mixer can resample to the drive's fixed 44100Hz output.
type Track struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// LoadWAVTrack decodes a WAV-encoded CD-DA track image, the format redbook
// rips are most commonly stored in alongside a Sega CD disc image.
func LoadWAVTrack(data []byte) (*Track, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, errors.Errorf(errors.RomParseError, "not a valid WAV CD-DA track")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, errors.Errorf(errors.RomParseError, err)
	}
	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = int16(v)
	}
	return &Track{
		Samples:    samples,
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
	}, nil
}

// LoadMP3Track decodes an MP3-compressed CD-DA track image, used by disc
// images that store audio tracks compressed rather than as raw redbook PCM.
func LoadMP3Track(data []byte) (*Track, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Errorf(errors.RomParseError, err)
	}

	var samples []int16
	buf := make([]byte, 4096)
	for {
		n, err := dec.Read(buf)
		for i := 0; i+1 < n; i += 2 {
			samples = append(samples, int16(buf[i])|int16(buf[i+1])<<8)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Errorf(errors.RomParseError, err)
		}
	}

	return &Track{Samples: samples, SampleRate: dec.SampleRate(), Channels: 2}, nil
}

// Fader smooths CD-DA volume transitions (pause fade-out, track-skip
// fade-in) in 1024 discrete steps, advanced by one step per drive tick at
// the drive's 44100Hz audio rate rather than jumping instantly, matching
// the documented fader behaviour.
type Fader struct {
	level  int // 0-1024
	target int
}

const faderMax = 1024

// SetTarget begins fading toward a new target level (0 = silent, 1024 =
// full volume).
func (f *Fader) SetTarget(level int) {
	if level < 0 {
		level = 0
	}
	if level > faderMax {
		level = faderMax
	}
	f.target = level
}

// Tick advances the fader by one step per call; the driver calls this once
// per sample tick at 44100Hz.
func (f *Fader) Tick() {
	if f.level < f.target {
		f.level++
	} else if f.level > f.target {
		f.level--
	}
}

// Apply scales a sample by the current fade level.
func (f *Fader) Apply(sample int16) int16 {
	return int16(int32(sample) * int32(f.level) / faderMax)
}
