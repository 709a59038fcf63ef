package settlement

import (
	"math"

	"scrapyard.dev/internal/vessel"
)

// Estimate is what a rollout of the vessel would cost right now.
type Estimate struct {
	Total   float64 `json:"total"`
	Covered float64 `json:"covered"`
	Net     float64 `json:"net"`
	Lines   []Line  `json:"lines"`
}

// Preview prices the vessel against the current stock without touching the
// ledger. Covered equals the refund Rollout would pay.
func (s *Settler) Preview(v *vessel.Snapshot) Estimate {
	var est Estimate

	onShip, prices := s.partTotals(v)
	for _, id := range sortedKeys(onShip) {
		q := float64(onShip[id])
		price := prices[id]
		est.Total += q * price
		used := math.Min(q, math.Max(0, math.Floor(s.ledger.Parts.Get(id))))
		if used > 0 {
			est.Covered += used * price
			est.Lines = append(est.Lines, Line{Kind: LinePart, Identity: id, Qty: used, UnitPrice: price, Amount: used * price})
		}
	}

	amounts := vessel.AggregateResources(v.Parts)
	for _, name := range sortedKeys(amounts) {
		price := s.pricer.ResourcePrice(name)
		if price == 0 {
			continue
		}
		a := amounts[name]
		est.Total += a * price
		if !s.cfg.RecoverResources {
			continue
		}
		used := math.Min(a, s.ledger.Resources.Get(name))
		if used > 0 {
			est.Covered += used * price
			est.Lines = append(est.Lines, Line{Kind: LineResource, Identity: name, Qty: used, UnitPrice: price, Amount: used * price})
		}
	}
	est.Net = est.Total - est.Covered
	return est
}
