// Package gate applies research state to the part list: which entries are
// shown and whether a held selection may be placed.
package gate

import (
	"sort"

	"scrapyard.dev/internal/catalogs"
	"scrapyard.dev/internal/ledger"
	"scrapyard.dev/internal/pricing"
	"scrapyard.dev/internal/vessel"
)

// FolderName is the pseudo part that summarises the resource stock.
const FolderName = "Resources"

// TechGate reports research state.
type TechGate interface {
	Unlocked(tech string) bool
}

// StaticGate is a TechGate over an explicit set of researched techs.
type StaticGate struct {
	unlocked map[string]bool
}

func NewStaticGate(techs ...string) *StaticGate {
	g := &StaticGate{unlocked: map[string]bool{}}
	for _, t := range techs {
		g.Unlock(t)
	}
	return g
}

// Unlocked is true for the empty tech id, which parts without a research
// requirement carry.
func (g *StaticGate) Unlocked(tech string) bool {
	if tech == "" {
		return true
	}
	return g != nil && g.unlocked[tech]
}

func (g *StaticGate) Unlock(tech string) {
	if tech != "" {
		g.unlocked[tech] = true
	}
}

func (g *StaticGate) Lock(tech string) { delete(g.unlocked, tech) }

// Replace sets the researched techs to exactly techs.
func (g *StaticGate) Replace(techs []string) {
	g.unlocked = make(map[string]bool, len(techs))
	for _, t := range techs {
		g.Unlock(t)
	}
}

func (g *StaticGate) Techs() []string {
	out := make([]string, 0, len(g.unlocked))
	for t := range g.unlocked {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

type Rules struct {
	Parts  *catalogs.PartCatalog
	Ledger *ledger.Ledger
	Tech   TechGate

	RecoverResources bool
	// Summary selects the folder view of resources instead of one entry per
	// coded resource.
	Summary bool
}

type Visibility struct {
	Visible bool `json:"visible"`
	// Experimental is set for locked parts that are shown only because they
	// are in stock.
	Experimental bool `json:"experimental,omitempty"`
}

// Locked reports whether name is a known part whose tech is not researched.
func (r Rules) Locked(name string) bool {
	def, ok := r.Parts.Lookup(name)
	if !ok || r.Tech == nil {
		return false
	}
	return !r.Tech.Unlocked(def.TechRequired)
}

func (r Rules) Visible(name string) Visibility {
	switch {
	case name == FolderName:
		return Visibility{Visible: r.RecoverResources && r.Summary}
	case pricing.HasShortCode(name):
		return Visibility{Visible: r.RecoverResources && !r.Summary && r.Ledger.Resources.Get(name) != 0}
	case r.Locked(name):
		stocked := int(r.Ledger.Parts.Get(name)) > 0
		return Visibility{Visible: stocked, Experimental: stocked}
	default:
		return Visibility{Visible: true}
	}
}

// ExperimentalToMark lists the locked parts that currently need the
// experimental flag because they are in stock.
func (r Rules) ExperimentalToMark() []string {
	var out []string
	for _, name := range r.Parts.Names {
		if r.Visible(name).Experimental {
			out = append(out, name)
		}
	}
	return out
}

type Shortfall struct {
	Identity  string `json:"identity"`
	Stock     int    `json:"stock"`
	OnShip    int    `json:"on_ship"`
	Held      int    `json:"held"`
	Available int    `json:"available"`
}

type Placement struct {
	Allowed    bool        `json:"allowed"`
	Shortfalls []Shortfall `json:"shortfalls,omitempty"`
}

// CheckPlacement decides whether the selection rooted at heldRoot may stay
// on the vessel. Only locked parts are limited: stock minus what the rest of
// the vessel uses minus what is held must not go negative. A denied
// placement means the host destroys the held selection.
func (r Rules) CheckPlacement(v *vessel.Snapshot, heldRoot int) Placement {
	held := vessel.AggregateSubtree(v, heldRoot)
	total := vessel.AggregateParts(v)

	p := Placement{Allowed: true}
	ids := make([]string, 0, len(held))
	for id := range held {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if !r.Locked(id) {
			continue
		}
		h := held[id]
		onShip := total[id] - h
		stock := int(r.Ledger.Parts.Get(id))
		if avail := stock - onShip - h; avail < 0 {
			p.Allowed = false
			p.Shortfalls = append(p.Shortfalls, Shortfall{Identity: id, Stock: stock, OnShip: onShip, Held: h, Available: avail})
		}
	}
	return p
}
