// Package memgate implements the dispatch loop's memory-pressure gate.
//
// The work service assumes a worker will stop leasing new work before it
// runs out of memory. The JVM-native implementation this harness replaces
// reads heap totals directly; on a non-managed runtime there is no single
// "heap", so this package compares the process's current Go-runtime heap
// allocation against a configured ceiling, defaulting the ceiling to total
// system memory (github.com/pbnjay/memory, the cross-platform analogue of
// "max heap").
package memgate

import (
	"runtime"
	"runtime/debug"

	"github.com/pbnjay/memory"
)

// Gate reports whether the process is under memory pushback.
type Gate struct {
	ratio   float64
	ceiling uint64
}

// New creates a Gate that trips when used/ceiling exceeds ratio. If
// ceilingBytes is 0, the ceiling defaults to the total system memory.
func New(ratio float64, ceilingBytes uint64) *Gate {
	ceiling := ceilingBytes
	if ceiling == 0 {
		ceiling = memory.TotalMemory()
	}
	return &Gate{ratio: ratio, ceiling: ceiling}
}

// Usage returns the current heap allocation (used), the current heap
// size obtained from the OS (total — the Go analogue of a JVM heap's
// current total size, distinct from both used and the ceiling), and
// the configured ceiling (max).
func (g *Gate) Usage() (used, total, max uint64) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapAlloc, ms.HeapSys, g.ceiling
}

// Engaged reports whether used > ratio * max.
func (g *Gate) Engaged() bool {
	used, _, max := g.Usage()
	if max == 0 {
		return false
	}
	return float64(used) > g.ratio*float64(max)
}

// Hint requests that the Go runtime return unused memory to the OS. It is
// the closest analogue to a JVM GC hint; unlike a generational GC hint it
// cannot force reclaiming live-but-idle heap, so it is best-effort only.
func (g *Gate) Hint() {
	runtime.GC()
	debug.FreeOSMemory()
}
