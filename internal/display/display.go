// Package display computes the numbers shown next to part list entries and
// renders them through the configured templates.
package display

import (
	"math"
	"strconv"
	"strings"

	"scrapyard.dev/internal/ledger"
	"scrapyard.dev/internal/pricing"
	"scrapyard.dev/internal/vessel"
)

type Kind string

const (
	KindPart     Kind = "part"
	KindResource Kind = "resource"
	KindFolder   Kind = "folder"
)

// Counter is the triple shown for one entry plus the cost of the shortfall.
// Available is InStore minus OnConstruction and goes negative when the
// vessel uses more than the stock holds.
type Counter struct {
	Name           string  `json:"name"`
	Kind           Kind    `json:"kind"`
	OnConstruction float64 `json:"on_construction"`
	InStore        float64 `json:"in_store"`
	Available      float64 `json:"available"`
	MissingCost    int     `json:"missing_cost"`
	Code           string  `json:"code,omitempty"`
}

func (c Counter) Missing() bool { return c.Available < 0 }

type Board struct {
	Ledger *ledger.Ledger
	Pricer *pricing.Pricer
}

// Part counts whole parts of identity id. v may be nil when nothing is
// being assembled.
func (b Board) Part(v *vessel.Snapshot, id string) Counter {
	onShip := 0
	if v != nil {
		onShip = v.CountOf(id)
	}
	stock := int(b.Ledger.Parts.Get(id))
	avail := stock - onShip
	c := Counter{Name: id, Kind: KindPart, OnConstruction: float64(onShip), InStore: float64(stock), Available: float64(avail)}
	if avail < 0 {
		c.MissingCost = int(float64(-avail) * b.Pricer.PriceByIdentity(id))
	}
	return c
}

// Resource counts whole units of a resource.
func (b Board) Resource(v *vessel.Snapshot, name string) Counter {
	onShip := 0
	if v != nil {
		onShip = int(v.ResourceAmount(name))
	}
	stock := int(b.Ledger.Resources.Get(name))
	avail := stock - onShip
	c := Counter{
		Name: name, Kind: KindResource, Code: pricing.ResourceShortCode(name),
		OnConstruction: float64(onShip), InStore: float64(stock), Available: float64(avail),
	}
	if avail < 0 {
		c.MissingCost = int(float64(-avail) * b.Pricer.ResourcePrice(name))
	}
	return c
}

// Folder returns fractional counters for the first limit stocked resources,
// in key order.
func (b Board) Folder(v *vessel.Snapshot, limit int) []Counter {
	keys := b.Ledger.Resources.Keys()
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	out := make([]Counter, 0, len(keys))
	for _, name := range keys {
		onShip := 0.0
		if v != nil {
			onShip = v.ResourceAmount(name)
		}
		stock := b.Ledger.Resources.Get(name)
		avail := stock - onShip
		c := Counter{
			Name: name, Kind: KindFolder, Code: pricing.ResourceShortCode(name),
			OnConstruction: onShip, InStore: stock, Available: avail,
		}
		if avail < 0 {
			c.MissingCost = int(-avail * b.Pricer.ResourcePrice(name))
		}
		out = append(out, c)
	}
	return out
}

type Formats struct {
	Qty         string
	MissingQty  string
	Tank        string
	TankMissing string
}

// Render formats a part or resource counter.
func (f Formats) Render(c Counter) string {
	if c.Missing() {
		return Format(f.MissingQty, c)
	}
	return Format(f.Qty, c)
}

// RenderFolder concatenates the tank lines of a folder summary.
func (f Formats) RenderFolder(cs []Counter) string {
	var sb strings.Builder
	for _, c := range cs {
		if c.Missing() {
			sb.WriteString(Format(f.TankMissing, c))
		} else {
			sb.WriteString(Format(f.Tank, c))
		}
	}
	return sb.String()
}

// Format fills {0} on construction, {1} in store, {2} available, {3} missing
// cost and {4} resource code.
func Format(template string, c Counter) string {
	return strings.NewReplacer(
		"{0}", number(c.OnConstruction),
		"{1}", number(c.InStore),
		"{2}", number(c.Available),
		"{3}", strconv.Itoa(c.MissingCost),
		"{4}", c.Code,
	).Replace(template)
}

func number(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
