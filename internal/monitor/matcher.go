package monitor

import (
	"strings"

	"tokenwatch/internal/discovery"
)

// Membership is the read side of the seen set.
type Membership interface {
	Has(id string) bool
}

// Match keeps entities whose symbol is non-empty, ends with suffix
// (case-sensitive) and whose id is not yet seen. Input order is kept and
// nothing is mutated.
func Match(entities []discovery.Entity, seen Membership, suffix string) []discovery.Entity {
	var out []discovery.Entity
	for _, e := range entities {
		if e.Symbol == "" || !strings.HasSuffix(e.Symbol, suffix) {
			continue
		}
		if seen != nil && seen.Has(e.ID()) {
			continue
		}
		out = append(out, e)
	}
	return out
}
