package naming

import (
	"fmt"

	"github.com/magnettools/magnetmesh/pkg/kernel"
)

// tagRecord is one arena slot: a kernel entity and the boolean-operation
// generation it was produced in. Names hold arena indices rather than raw
// entities, so rebinding after an operation never invalidates earlier
// lookups.
type tagRecord struct {
	ent  kernel.Entity
	gen  int
	live bool
}

// Lineage is the multi-valued mapping from semantic names to kernel entity
// tags, kept valid across fragmentation (one name splitting into several
// tags) and fusion (several names collapsing into one tag).
type Lineage struct {
	arena     []tagRecord
	byEntity  map[kernel.Entity]int
	names     map[SemanticName][]int
	order     []SemanticName
	gen       int
	discarded map[kernel.Entity]bool
}

// NewLineage returns an empty lineage tracker at generation zero.
func NewLineage() *Lineage {
	return &Lineage{
		byEntity:  make(map[kernel.Entity]int),
		names:     make(map[SemanticName][]int),
		discarded: make(map[kernel.Entity]bool),
	}
}

// intern returns the arena index for the entity, creating a live record in
// the current generation if needed.
func (l *Lineage) intern(ent kernel.Entity) int {
	if idx, ok := l.byEntity[ent]; ok {
		return idx
	}
	idx := len(l.arena)
	l.arena = append(l.arena, tagRecord{ent: ent, gen: l.gen, live: true})
	l.byEntity[ent] = idx
	return idx
}

// Bind associates kernel entities with a semantic name.
func (l *Lineage) Bind(name SemanticName, ents ...kernel.Entity) {
	if _, ok := l.names[name]; !ok {
		l.order = append(l.order, name)
	}
	for _, ent := range ents {
		idx := l.intern(ent)
		if !containsIdx(l.names[name], idx) {
			l.names[name] = append(l.names[name], idx)
		}
	}
}

// Discard marks entities as intentionally unreachable from any name, e.g.
// pieces merged into the air padding region.
func (l *Lineage) Discard(ents ...kernel.Entity) {
	for _, ent := range ents {
		l.discarded[ent] = true
	}
}

// RebindAfterOperation reconciles the mapping after a boolean operation:
// every name whose tags participated as inputs is remapped to the outputs
// derived from those tags. Tags that did not participate are untouched.
// The operation advances the lineage generation.
func (l *Lineage) RebindAfterOperation(anc *kernel.Ancestry) {
	l.gen++

	// Retire the input records.
	for _, in := range anc.Inputs() {
		if idx, ok := l.byEntity[in]; ok {
			l.arena[idx].live = false
			delete(l.byEntity, in)
		}
	}

	for _, name := range l.order {
		old := l.names[name]
		var next []int
		for _, idx := range old {
			rec := l.arena[idx]
			outs, participated := anc.Lookup(rec.ent)
			if !participated {
				if rec.live {
					next = appendIdx(next, idx)
				}
				continue
			}
			for _, out := range outs {
				next = appendIdx(next, l.intern(out))
			}
		}
		l.names[name] = next
	}
}

// Collapse merges the loser names into the winner: the winner keeps the
// union of all tags, the losers are forgotten. Used when a fuse makes
// several named solids semantically one.
func (l *Lineage) Collapse(winner SemanticName, losers ...SemanticName) {
	if _, ok := l.names[winner]; !ok {
		l.order = append(l.order, winner)
	}
	for _, loser := range losers {
		if loser == winner {
			continue
		}
		for _, idx := range l.names[loser] {
			l.names[winner] = appendIdx(l.names[winner], idx)
		}
		delete(l.names, loser)
		for i, n := range l.order {
			if n == loser {
				l.order = append(l.order[:i], l.order[i+1:]...)
				break
			}
		}
	}
}

// Resolve returns the live entities currently bound to the name.
func (l *Lineage) Resolve(name SemanticName) ([]kernel.Entity, error) {
	idxs, ok := l.names[name]
	if !ok {
		return nil, fmt.Errorf("naming: unknown semantic name %q", name)
	}
	var out []kernel.Entity
	for _, idx := range idxs {
		if l.arena[idx].live {
			out = append(out, l.arena[idx].ent)
		}
	}
	return out, nil
}

// Names returns all bound names in binding order.
func (l *Lineage) Names() []SemanticName {
	return append([]SemanticName(nil), l.order...)
}

// Generation returns the number of boolean operations reconciled so far.
func (l *Lineage) Generation() int {
	return l.gen
}

// Orphans returns live entities among the given set that are neither
// reachable from any name nor explicitly discarded. A non-empty result
// means the construction broke the reachability invariant.
func (l *Lineage) Orphans(all []kernel.Entity) []kernel.Entity {
	reachable := make(map[kernel.Entity]bool)
	for _, idxs := range l.names {
		for _, idx := range idxs {
			if l.arena[idx].live {
				reachable[l.arena[idx].ent] = true
			}
		}
	}
	var orphans []kernel.Entity
	for _, ent := range all {
		if !reachable[ent] && !l.discarded[ent] {
			orphans = append(orphans, ent)
		}
	}
	return orphans
}

func containsIdx(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func appendIdx(s []int, v int) []int {
	if containsIdx(s, v) {
		return s
	}
	return append(s, v)
}
