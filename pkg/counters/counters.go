// Package counters implements the counter translation rules of §4.5.1:
// which collected counter updates actually make it onto a commit
// request, and which are silently skipped.
package counters

import (
	"github.com/cuemby/streamharness/pkg/log"
	"github.com/cuemby/streamharness/pkg/workservice"
)

// Filter applies the translation rules to a raw slice of counter updates
// collected from an execution and returns the subset that should be
// attached to the commit request:
//
//   - MEAN counters with count <= 0 are skipped entirely.
//   - Any counter with a zero-valued aggregate is omitted.
//   - Unknown kinds are skipped with a debug log (a defensive guard:
//     the Executor interface only yields the four known kinds today).
func Filter(updates []workservice.CounterUpdate) []workservice.CounterUpdate {
	out := make([]workservice.CounterUpdate, 0, len(updates))
	for _, u := range updates {
		switch u.Kind {
		case workservice.CounterSum, workservice.CounterMax, workservice.CounterMin:
			// handled below
		case workservice.CounterMean:
			if u.Count <= 0 {
				continue
			}
		default:
			log.WithComponent("counters").Debug().Int("kind", int(u.Kind)).Str("name", u.Name).Msg("unknown counter kind, skipping")
			continue
		}

		if isZero(u) {
			continue
		}
		out = append(out, u)
	}
	return out
}

func isZero(u workservice.CounterUpdate) bool {
	if u.IsFloat {
		return u.Float == 0
	}
	return u.Int == 0
}
