// Package pricing derives unit prices for parts and resources. Part prices
// are always dry prices: the value of any resource a part carries is priced
// through the resource ledger and never counted twice.
package pricing

import (
	"math"
	"strconv"
	"strings"

	"scrapyard.dev/internal/catalogs"
	"scrapyard.dev/internal/naming"
	"scrapyard.dev/internal/vessel"
)

// DefaultScaleExponent prices a rescaled part by volume: doubling the size
// multiplies the dry price by eight.
const DefaultScaleExponent = 3.0

// ResourceTable supplies per-unit resource costs.
type ResourceTable interface {
	UnitCost(name string) (float64, bool)
}

// CostSplitter splits a concrete part's price into dry and fuel cost.
type CostSplitter interface {
	SplitCost(p vessel.Part) (dry, fuel float64)
}

type Pricer struct {
	parts     *catalogs.PartCatalog
	resources ResourceTable
	splitter  CostSplitter
	scaleExp  float64
}

// New builds a Pricer over the loaded catalogs. A nil splitter selects the
// default one, which trusts host-provided breakdowns and falls back to the
// part definition otherwise.
func New(cats *catalogs.Catalogs, splitter CostSplitter) *Pricer {
	p := &Pricer{scaleExp: DefaultScaleExponent}
	if cats != nil {
		p.parts = &cats.Parts
		p.resources = &cats.Resources
	}
	if splitter == nil {
		splitter = HostSplitter{Pricer: p}
	}
	p.splitter = splitter
	return p
}

// NewWithTables is New for callers that bring their own resource table.
func NewWithTables(parts *catalogs.PartCatalog, resources ResourceTable, splitter CostSplitter) *Pricer {
	p := &Pricer{parts: parts, resources: resources, scaleExp: DefaultScaleExponent}
	if splitter == nil {
		splitter = HostSplitter{Pricer: p}
	}
	p.splitter = splitter
	return p
}

// SetScaleExponent sets how steeply a rescaled part's dry price follows its
// size. Zero prices every size like the default one.
func (p *Pricer) SetScaleExponent(exp float64) {
	if p == nil || exp < 0 || math.IsNaN(exp) {
		return
	}
	p.scaleExp = exp
}

// ScaleExponent reports the exponent set by SetScaleExponent.
func (p *Pricer) ScaleExponent() float64 {
	if p == nil {
		return 0
	}
	return p.scaleExp
}

// ResourcePrice is the per-unit cost of a resource, 0 when unknown.
func (p *Pricer) ResourcePrice(name string) float64 {
	if p == nil || p.resources == nil || name == "" {
		return 0
	}
	cost, ok := p.resources.UnitCost(name)
	if !ok {
		return 0
	}
	return cost
}

// IsResource reports whether name is a known resource.
func (p *Pricer) IsResource(name string) bool {
	if p == nil || p.resources == nil {
		return false
	}
	_, ok := p.resources.UnitCost(name)
	return ok
}

// DefinitionPrice is the dry price of a part type: listed cost minus the
// value of the resources it ships with.
func (p *Pricer) DefinitionPrice(def catalogs.PartDef) float64 {
	dry := def.Cost
	for _, rc := range def.Resources {
		dry -= rc.Amount * p.ResourcePrice(rc.Resource)
	}
	return dry
}

// PriceByIdentity resolves a ledger identity to its part definition and
// prices it. A scale suffix is measured against the definition's default
// scale. Unknown identities price at 0.
func (p *Pricer) PriceByIdentity(id string) float64 {
	if p == nil {
		return 0
	}
	def, ok := p.parts.Lookup(id)
	if !ok {
		return 0
	}
	_, scale := naming.Split(id)
	return p.DefinitionPrice(def) * p.scaleFactor(scale, def.DefaultScale)
}

// ScaledDryPrice prices a concrete part from its definition, following the
// part's scale module when it has one. A module that omits its default scale
// is measured against the catalog's.
func (p *Pricer) ScaledDryPrice(part vessel.Part) float64 {
	if p == nil {
		return 0
	}
	def, ok := p.parts.Lookup(part.Name)
	if !ok {
		return 0
	}
	current, dflt := "", def.DefaultScale
	for _, m := range part.Modules {
		if m.Name != naming.ScaleModuleName {
			continue
		}
		current = m.CurrentScale
		if m.DefaultScale != "" {
			dflt = m.DefaultScale
		}
		break
	}
	return p.DefinitionPrice(def) * p.scaleFactor(current, dflt)
}

// scaleFactor is (current/dflt)^exp, or 1 when either side is missing or
// unreadable.
func (p *Pricer) scaleFactor(current, dflt string) float64 {
	if current == "" || dflt == "" || current == dflt || p.scaleExp == 0 {
		return 1
	}
	cur, ok := parseScale(current)
	if !ok {
		return 1
	}
	base, ok := parseScale(dflt)
	if !ok {
		return 1
	}
	return math.Pow(cur/base, p.scaleExp)
}

// parseScale reads a scale label such as "2.5", "2.5m" or "2x".
func parseScale(s string) (float64, bool) {
	s = strings.TrimRight(strings.TrimSpace(s), "xXmM")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// PartUnitPrice is the dry price of a concrete part instance.
func (p *Pricer) PartUnitPrice(part vessel.Part) float64 {
	dry, _ := p.splitter.SplitCost(part)
	return dry
}

// HostSplitter uses the breakdown the host attached to the part when there
// is one. Without it the dry cost comes from the part definition, scaled to
// the part's size, and the fuel cost from the resources actually on board.
type HostSplitter struct {
	Pricer *Pricer
}

func (h HostSplitter) SplitCost(part vessel.Part) (dry, fuel float64) {
	if part.Cost != nil {
		return part.Cost.Dry, part.Cost.Fuel
	}
	dry = h.Pricer.ScaledDryPrice(part)
	for _, r := range part.Resources {
		fuel += r.Amount * h.Pricer.ResourcePrice(r.Name)
	}
	return dry, fuel
}
