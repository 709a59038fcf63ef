// Package settlement implements the two ledger transactions: Rollout consumes
// stock to offset the cost of a new vessel, Recover puts a returned vessel's
// parts and resources back into stock.
package settlement

import (
	"math"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"scrapyard.dev/internal/ledger"
	"scrapyard.dev/internal/pricing"
	"scrapyard.dev/internal/vessel"
)

// Treasury is the host's currency store.
type Treasury interface {
	Adjust(delta float64)
}

type Kind string

const (
	KindRollout Kind = "rollout"
	KindRecover Kind = "recover"
)

type LineKind string

const (
	LinePart     LineKind = "part"
	LineResource LineKind = "resource"
)

// Line is one (identity, quantity, unit price) triple of a settlement.
// Amount is the currency effect of the line: positive for refunds, negative
// for debits.
type Line struct {
	Kind      LineKind `json:"kind"`
	Identity  string   `json:"identity"`
	Qty       float64  `json:"qty"`
	UnitPrice float64  `json:"unit_price"`
	Amount    float64  `json:"amount"`
}

type Result struct {
	ID     string  `json:"id"`
	Kind   Kind    `json:"kind"`
	Vessel string  `json:"vessel,omitempty"`
	Factor float64 `json:"factor,omitempty"`
	Lines  []Line  `json:"lines"`
	Delta  float64 `json:"delta"`
}

type Config struct {
	RecoverResources bool
}

type Settler struct {
	ledger *ledger.Ledger
	pricer *pricing.Pricer
	cfg    Config
	log    *zap.Logger
}

func New(l *ledger.Ledger, p *pricing.Pricer, cfg Config, logger *zap.Logger) *Settler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Settler{ledger: l, pricer: p, cfg: cfg, log: logger}
}

// SetConfig swaps the settlement options (used on tuning reload).
func (s *Settler) SetConfig(cfg Config) { s.cfg = cfg }

func (s *Settler) Config() Config { return s.cfg }

// Rollout withdraws whatever stock covers the vessel and refunds its value in
// a single treasury adjustment. Calling it twice without restocking refunds
// less the second time.
func (s *Settler) Rollout(v *vessel.Snapshot, t Treasury) Result {
	res := Result{ID: uuid.NewString(), Kind: KindRollout, Vessel: v.Name}

	onShip, prices := s.partTotals(v)
	for _, id := range sortedKeys(onShip) {
		q := onShip[id]
		stock := s.ledger.Parts.Get(id)
		if stock != 0 {
			s.ledger.Parts.Set(id, math.Max(0, stock-float64(q)))
		}
		used := math.Min(float64(q), math.Max(0, math.Floor(stock)))
		if used <= 0 {
			continue
		}
		price := prices[id]
		res.Lines = append(res.Lines, Line{Kind: LinePart, Identity: id, Qty: used, UnitPrice: price, Amount: used * price})
		res.Delta += used * price
	}

	if s.cfg.RecoverResources {
		amounts := vessel.AggregateResources(v.Parts)
		for _, name := range sortedKeys(amounts) {
			price := s.pricer.ResourcePrice(name)
			if price == 0 {
				continue
			}
			a := amounts[name]
			stock := s.ledger.Resources.Get(name)
			used := math.Min(a, stock)
			if used <= 0 {
				continue
			}
			s.ledger.Resources.Set(name, math.Max(0, stock-a))
			res.Lines = append(res.Lines, Line{Kind: LineResource, Identity: name, Qty: used, UnitPrice: price, Amount: used * price})
			res.Delta += used * price
		}
	}

	if t != nil && res.Delta != 0 {
		t.Adjust(res.Delta)
	}
	s.log.Info("rollout settled",
		zap.String("vessel", v.Name),
		zap.Int("lines", len(res.Lines)),
		zap.Float64("refund", res.Delta),
	)
	return res
}

// Recover deposits every recovered part (and, when enabled, every priced
// resource) and debits the treasury by their value scaled by factor.
func (s *Settler) Recover(v *vessel.Snapshot, factor float64, t Treasury) Result {
	factor = ClampFactor(factor)
	res := Result{ID: uuid.NewString(), Kind: KindRecover, Vessel: v.Name, Factor: factor}

	partLines := map[string]*Line{}
	resLines := map[string]*Line{}
	for _, p := range v.All() {
		id := p.Identity()
		n := float64(p.Multiplicity())
		price := s.pricer.PartUnitPrice(p)
		s.ledger.Parts.Add(id, n)
		debit := price * factor * n
		res.Delta -= debit
		accumulate(partLines, LinePart, id, n, price, -debit)

		if !s.cfg.RecoverResources {
			continue
		}
		for _, r := range p.Resources {
			unit := s.pricer.ResourcePrice(r.Name)
			if unit == 0 {
				continue
			}
			amount := r.Amount * n
			s.ledger.Resources.Add(r.Name, amount)
			debit := unit * amount * factor
			res.Delta -= debit
			accumulate(resLines, LineResource, r.Name, amount, unit, -debit)
		}
	}
	res.Lines = append(flatten(partLines), flatten(resLines)...)

	if t != nil && res.Delta != 0 {
		t.Adjust(res.Delta)
	}
	s.log.Info("recovery settled",
		zap.String("vessel", v.Name),
		zap.Float64("factor", factor),
		zap.Int("lines", len(res.Lines)),
		zap.Float64("debit", -res.Delta),
	)
	return res
}

// partTotals counts parts per identity along with their average dry price.
// The host may price instances of one identity differently.
func (s *Settler) partTotals(v *vessel.Snapshot) (map[string]int, map[string]float64) {
	counts := map[string]int{}
	prices := map[string]float64{}
	for _, p := range v.All() {
		id := p.Identity()
		n := p.Multiplicity()
		prices[id] += s.pricer.PartUnitPrice(p) * float64(n)
		counts[id] += n
	}
	for id, total := range prices {
		if counts[id] > 0 {
			prices[id] = total / float64(counts[id])
		}
	}
	return counts, prices
}

// ClampFactor keeps a recovery factor inside (0,1]. Non-positive or NaN
// factors fall back to 1.
func ClampFactor(f float64) float64 {
	if math.IsNaN(f) || f <= 0 {
		return 1
	}
	if f > 1 {
		return 1
	}
	return f
}

func accumulate(m map[string]*Line, kind LineKind, id string, qty, price, amount float64) {
	l, ok := m[id]
	if !ok {
		m[id] = &Line{Kind: kind, Identity: id, Qty: qty, UnitPrice: price, Amount: amount}
		return
	}
	// Instances of one identity may be priced differently by the host; keep
	// the running average.
	total := l.UnitPrice*l.Qty + price*qty
	l.Qty += qty
	if l.Qty != 0 {
		l.UnitPrice = total / l.Qty
	}
	l.Amount += amount
}

func flatten(m map[string]*Line) []Line {
	out := make([]Line, 0, len(m))
	for _, k := range sortedKeys(m) {
		out = append(out, *m[k])
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
