// Package irq implements the per-CPU interrupt-line aggregation described in
// the core's data model: named sources independently assert a level, and
// the CPU samples the aggregate with a one-cycle delay, so a source must
// stay Low across a Tick to be observed; a source that goes Low and High
// again between two Ticks is not seen.
package irq

// Level follows real hardware polarity: High means deasserted, Low means
// asserted.
type Level bool

const (
	High Level = true
	Low  Level = false
)

// Line aggregates any number of named IRQ sources into a single level the
// CPU can sample. A source remains asserted until the device that raised it
// clears its own name explicitly; the aggregate is Low (asserted) as long
// as any source is Low.
type Line struct {
	sources map[string]Level
	// sampled is the level the CPU will observe on its next poll; it
	// lags the true aggregate by one tick so that "Low for >= 1 cycle
	// before observed" holds for every source.
	sampled  Level
	pending  Level
	hasPrior bool
}

// NewLine creates an interrupt line with no asserted sources.
func NewLine() *Line {
	return &Line{sources: make(map[string]Level), sampled: High, pending: High}
}

// Assert pulls the named source Low.
func (l *Line) Assert(source string) { l.sources[source] = Low }

// Clear releases the named source back to High.
func (l *Line) Clear(source string) { l.sources[source] = High }

// aggregate computes the instantaneous OR of every source (Low wins).
func (l *Line) aggregate() Level {
	for _, v := range l.sources {
		if v == Low {
			return Low
		}
	}
	return High
}

// Tick advances the one-cycle delay line. Call this exactly once per CPU
// cycle, before the CPU samples the line for that cycle.
func (l *Line) Tick() {
	l.pending = l.aggregate()
	l.sampled = l.pending
}

// Sample returns the level the CPU should observe this cycle.
func (l *Line) Sample() Level { return l.sampled }

// Edge tracks High-to-Low transitions for edge-triggered lines (NMI on the
// 6502/65C816, etc). Call Tick() then Triggered() once per cycle; Triggered
// reports true exactly once per transition.
type Edge struct {
	line *Line
	prev Level
}

// NewEdge wraps a Line with edge-detection state, initialised so that the
// line's current (deasserted) level does not itself read as an edge.
func NewEdge(l *Line) *Edge {
	return &Edge{line: l, prev: High}
}

// Triggered reports whether a High-to-Low transition occurred since the
// last call, consuming the edge.
func (e *Edge) Triggered() bool {
	cur := e.line.Sample()
	fired := e.prev == High && cur == Low
	e.prev = cur
	return fired
}
