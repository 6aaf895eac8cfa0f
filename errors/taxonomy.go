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

package errors

// Named message patterns for the error taxonomy that every console driver
// reports through. Use these with Errorf so that callers can later recover
// the category with Is()/Has() instead of comparing formatted strings.
const (
	// RomParseError covers truncated files and bad magic bytes. The NES
	// loader does not raise it for an unsupported mapper number; it logs a
	// warning and falls back to NROM.
	RomParseError = "rom parse error: %v"

	// CoprocessorRomMissing is returned when the cartridge header names a
	// coprocessor ROM (ST010, ST011, ST018, a DSP-n patch table) that the
	// host did not supply to the loader.
	CoprocessorRomMissing = "coprocessor rom missing: %v"

	// CoprocessorRomLoad is returned when a supplied coprocessor ROM fails
	// a size or checksum sanity check.
	CoprocessorRomLoad = "coprocessor rom load error: %v"

	// SaveLoadError covers SaveWriter failures (SRAM, RTC, save states).
	SaveLoadError = "save/load error: %v"

	// IllegalInstruction is raised by a CPU core for an opcode absent from
	// its dispatch table. On the 68000 this is caught and converted into a
	// vectored exception by the driver; elsewhere it is logged and the core
	// continues in a best-effort state per the propagation policy.
	IllegalInstruction = "illegal instruction: %v"
)
