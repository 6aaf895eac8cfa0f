// This file is part of Gopher2600.
//
// Gopher2600 is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Gopher2600 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Gopher2600.  If not, see <https://www.gnu.org/licenses/>.

package logger_test

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/retrocore/emucore/logger"
	"github.com/retrocore/emucore/test"
)

// TestCentralLogger exercises the ring buffer and Tail, using the mapper/CPU
// tags the core's own call sites actually pass (see nes/cartridge and
// nes/cpu).
func TestCentralLogger(t *testing.T) {
	log := logger.NewLogger(100)
	w := &strings.Builder{}

	log.Write(w)
	test.ExpectEquality(t, w.String(), "")

	log.Log(logger.Allow, "nes.cartridge", "unsupported mapper 255, falling back to NROM")
	log.Write(w)
	test.ExpectEquality(t, w.String(), "nes.cartridge: unsupported mapper 255, falling back to NROM\n")

	w.Reset()

	log.Log(logger.Allow, "nes.cpu", "illegal opcode $FF")
	log.Write(w)
	test.ExpectEquality(t, w.String(),
		"nes.cartridge: unsupported mapper 255, falling back to NROM\nnes.cpu: illegal opcode $FF\n")

	// asking for more entries than retained is fine
	w.Reset()
	log.Tail(w, 100)
	test.ExpectEquality(t, w.String(),
		"nes.cartridge: unsupported mapper 255, falling back to NROM\nnes.cpu: illegal opcode $FF\n")

	// exactly the retained count
	w.Reset()
	log.Tail(w, 2)
	test.ExpectEquality(t, w.String(),
		"nes.cartridge: unsupported mapper 255, falling back to NROM\nnes.cpu: illegal opcode $FF\n")

	// fewer than retained
	w.Reset()
	log.Tail(w, 1)
	test.ExpectEquality(t, w.String(), "nes.cpu: illegal opcode $FF\n")

	// none at all
	w.Reset()
	log.Tail(w, 0)
	test.ExpectEquality(t, w.String(), "")
}

// verbosityGate stands in for a host UI's log-level slider: logging is only
// allowed once the configured level clears a threshold. Randomised rather
// than fixed so both branches of AllowLogging get exercised across runs.
type verbosityGate struct {
	level int
}

func (g verbosityGate) AllowLogging() bool {
	return g.level > 50
}

func TestPermissionGating(t *testing.T) {
	log := logger.NewLogger(100)
	w := &strings.Builder{}

	var gate verbosityGate

	for i := 0; i < 100; i++ {
		gate.level = rand.Intn(100)
		log.Clear()
		w.Reset()
		log.Log(gate, "nes.apu", "frame IRQ asserted")
		log.Write(w)
		if gate.AllowLogging() {
			test.ExpectEquality(t, w.String(), "nes.apu: frame IRQ asserted\n")
		} else {
			test.ExpectEquality(t, w.String(), "")
		}
	}
}

// TestErrorLogging checks that the Log() function unwraps error values with
// Error() rather than falling through to the %v default.
func TestErrorLogging(t *testing.T) {
	log := logger.NewLogger(100)
	w := &strings.Builder{}

	err := errors.New("bank index out of range")

	log.Log(logger.Allow, "nes.mapper", err)
	log.Write(w)
	test.ExpectEquality(t, w.String(), "nes.mapper: bank index out of range\n")

	log.Clear()
	w.Reset()

	log.Logf(logger.Allow, "nes.mapper", "wrapped: %v", err)
	log.Write(w)
	test.ExpectEquality(t, w.String(), "nes.mapper: wrapped: bank index out of range\n")
}

// regionTag satisfies fmt.Stringer to check Log()'s Stringer branch.
type regionTag struct{}

func (regionTag) String() string { return "region autodetect failed" }

func TestStringerLogging(t *testing.T) {
	log := logger.NewLogger(100)
	w := &strings.Builder{}

	log.Log(logger.Allow, "nes.cartridge", regionTag{})
	log.Write(w)
	test.ExpectEquality(t, w.String(), "nes.cartridge: region autodetect failed\n")
}

// for any other type, Log() falls back to the %v verb from the fmt package.
func TestDefaultVerbLogging(t *testing.T) {
	log := logger.NewLogger(100)
	w := &strings.Builder{}

	log.Log(logger.Allow, "nes.ppu", 341)
	log.Write(w)
	test.ExpectEquality(t, w.String(), "nes.ppu: 341\n")
}
