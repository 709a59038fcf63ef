// Package vessel describes a vessel as an arena of part records and folds it
// into per-identity quantity totals.
package vessel

import (
	"errors"
	"fmt"

	"scrapyard.dev/internal/naming"
)

// NoParent marks a root record.
const NoParent = -1

type Stage string

const (
	// StageConstruct is a vessel being assembled or rolled out; parts form a
	// tree through Parent.
	StageConstruct Stage = "construct"
	// StageProto is a persisted vessel (for example one being recovered);
	// parts are a flat list and Parent is ignored.
	StageProto Stage = "proto"
)

var (
	ErrBadParent = errors.New("vessel: parent index out of range")
	ErrCycle     = errors.New("vessel: parent links form a cycle")
)

type Resource struct {
	Name      string  `json:"name"`
	Amount    float64 `json:"amount"`
	MaxAmount float64 `json:"max_amount,omitempty"`
}

// CostBreakdown is the host's split of a concrete part's price into dry
// structure and carried resources.
type CostBreakdown struct {
	Dry  float64 `json:"dry"`
	Fuel float64 `json:"fuel"`
}

// Part is one record of the arena. Its index in Snapshot.Parts is its id.
type Part struct {
	Name   string `json:"name"`
	Parent int    `json:"parent"`
	// Counterparts counts symmetry copies that are not present as records of
	// their own (an editor selection placed with symmetry, for instance).
	Counterparts int                  `json:"counterparts,omitempty"`
	Modules      []naming.ScaleModule `json:"modules,omitempty"`
	Resources    []Resource           `json:"resources,omitempty"`
	Cost         *CostBreakdown       `json:"cost,omitempty"`
}

// Identity is the ledger key for the part.
func (p Part) Identity() string { return naming.FromModules(p.Name, p.Modules) }

// Multiplicity is how many physical parts this record stands for.
func (p Part) Multiplicity() int {
	if p.Counterparts < 0 {
		return 1
	}
	return 1 + p.Counterparts
}

type Snapshot struct {
	Name      string  `json:"name,omitempty"`
	Stage     Stage   `json:"stage"`
	Parts     []Part  `json:"parts"`
	LandedAt  string  `json:"landed_at,omitempty"`
	Latitude  float64 `json:"lat,omitempty"`
	Longitude float64 `json:"lon,omitempty"`
}

func (s *Snapshot) isTree() bool { return s.Stage != StageProto }

// Validate checks that parent links stay inside the arena and do not loop.
// Flat snapshots are always valid.
func (s *Snapshot) Validate() error {
	if !s.isTree() {
		return nil
	}
	n := len(s.Parts)
	for i, p := range s.Parts {
		if p.Parent == NoParent {
			continue
		}
		if p.Parent < 0 || p.Parent >= n || p.Parent == i {
			return fmt.Errorf("%w: part %d (%s) parent=%d", ErrBadParent, i, p.Name, p.Parent)
		}
	}
	// 0 = unseen, 1 = on the current chain, 2 = known to reach a root.
	state := make([]uint8, n)
	for i := range s.Parts {
		if markChain(s.Parts, state, i) < 0 {
			return fmt.Errorf("%w: through part %d (%s)", ErrCycle, i, s.Parts[i].Name)
		}
	}
	return nil
}

// markChain follows parents from start and marks every record reaching a root.
// It returns -1 when the walk revisits a record of the current chain.
func markChain(parts []Part, state []uint8, start int) int {
	var path []int
	cur := start
	for cur != NoParent && state[cur] != 2 {
		if state[cur] == 1 {
			return -1
		}
		state[cur] = 1
		path = append(path, cur)
		cur = parts[cur].Parent
	}
	for _, i := range path {
		state[i] = 2
	}
	return len(path)
}

func (s *Snapshot) children() [][]int {
	out := make([][]int, len(s.Parts))
	for i, p := range s.Parts {
		if p.Parent >= 0 && p.Parent < len(s.Parts) && p.Parent != i {
			out[p.Parent] = append(out[p.Parent], i)
		}
	}
	return out
}

// Walk visits root and all its descendants depth-first, parents before
// children. Every record is visited at most once.
func (s *Snapshot) Walk(root int, fn func(i int, p Part)) {
	if root < 0 || root >= len(s.Parts) {
		return
	}
	kids := s.children()
	seen := make([]bool, len(s.Parts))
	stack := []int{root}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[i] {
			continue
		}
		seen[i] = true
		fn(i, s.Parts[i])
		c := kids[i]
		for j := len(c) - 1; j >= 0; j-- {
			stack = append(stack, c[j])
		}
	}
}

// Subtree returns root and its descendants.
func (s *Snapshot) Subtree(root int) []Part {
	var out []Part
	s.Walk(root, func(_ int, p Part) { out = append(out, p) })
	return out
}

// Roots lists the records without a parent.
func (s *Snapshot) Roots() []int {
	var out []int
	for i, p := range s.Parts {
		if p.Parent == NoParent {
			out = append(out, i)
		}
	}
	return out
}

// All returns every record, in tree order for assembled vessels and in list
// order for persisted ones. Records unreachable from a root are appended at
// the end so that each record appears exactly once.
func (s *Snapshot) All() []Part {
	if !s.isTree() {
		return s.Parts
	}
	out := make([]Part, 0, len(s.Parts))
	seen := make([]bool, len(s.Parts))
	for _, r := range s.Roots() {
		s.Walk(r, func(i int, p Part) {
			if !seen[i] {
				seen[i] = true
				out = append(out, p)
			}
		})
	}
	for i, p := range s.Parts {
		if !seen[i] {
			out = append(out, p)
		}
	}
	return out
}

// CountOf returns the number of physical parts with the given identity.
func (s *Snapshot) CountOf(id string) int {
	return AggregateParts(s)[id]
}

// ResourceAmount sums a resource across the whole vessel.
func (s *Snapshot) ResourceAmount(name string) float64 {
	return AggregateResources(s.Parts)[name]
}
