// Package bus defines the memory-bus access patterns for the NES driver.
// The CPU only ever sees the CPUBus interface; a debugger-style caller
// uses DebugBus, which never alters open-bus latch state. Splitting the
// interface this way means a mapper that intercepts $8000-$FFFF writes
// cannot be confused with an MMIO device register write, even though both
// ultimately call Write on the same underlying type.
package bus

// CPUBus is implemented by CPURouter: the single type that
// knows how to route every CPU-visible address to RAM, the mapper, PPU/APU
// MMIO, or open bus.
type CPUBus interface {
	Read(addr uint16) (uint8, error)
	Write(addr uint16, data uint8) error
}

// DebugBus is for the exclusive use of save-state and inspection code. Peek
// and Poke never affect the open-bus latch or trigger mapper side effects
// the way a real Read/Write would.
type DebugBus interface {
	Peek(addr uint16) (uint8, error)
	Poke(addr uint16, value uint8) error
}

// Kind enumerates the mapped-address variant a raw CPU address decodes to.
type Kind int

const (
	KindRAM Kind = iota
	KindROM
	KindSRAM
	KindMMIO
	KindOpenBus
)

// MappedAddress is the result of decoding a raw CPU address through the
// console's memory map.
type MappedAddress struct {
	Kind   Kind
	Device string // populated only for KindMMIO, e.g. "ppu", "apu", "mapper"
	Offset uint32
}

// OpenBusLatch models the single shared byte every chip drives onto a bus
// that has no responding device at a given address. Reads from unmapped
// space return whatever was last driven; writes to unmapped space are
// discarded but still update the latch, since the bus itself was driven by
// the CPU's write cycle even though nothing decoded the address.
type OpenBusLatch struct {
	value uint8
}

// Drive records the most recent byte placed on the bus.
func (l *OpenBusLatch) Drive(v uint8) { l.value = v }

// Read returns the latched value.
func (l *OpenBusLatch) Read() uint8 { return l.value }

// PendingWrite models the NES's one-slot delayed-write buffer: a write
// issued by the CPU on cycle N becomes visible to other devices starting on
// cycle N+1, never on the same cycle it was issued.
type PendingWrite struct {
	Addr    uint16
	Data    uint8
	Pending bool
}

// Queue latches a write for delivery on the next tick.
func (p *PendingWrite) Queue(addr uint16, data uint8) {
	p.Addr, p.Data, p.Pending = addr, data, true
}

// Drain returns the pending write, if any, and clears it. Callers invoke
// this once per tick before processing the tick's own bus activity.
func (p *PendingWrite) Drain() (uint16, uint8, bool) {
	if !p.Pending {
		return 0, 0, false
	}
	p.Pending = false
	return p.Addr, p.Data, true
}
