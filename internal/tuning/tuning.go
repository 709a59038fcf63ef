package tuning

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"scrapyard.dev/internal/pricing"
	"scrapyard.dev/internal/settlement"
)

const (
	DisplayDetail  = "detail"
	DisplaySummary = "summary"
)

type Tuning struct {
	RecoverResources bool   `yaml:"recover_resources"`
	ResourceDisplay  string `yaml:"resource_display"`

	Recovery Recovery `yaml:"recovery"`
	Display  Display  `yaml:"display"`
	Pricing  Pricing  `yaml:"pricing"`
	Saves    Saves    `yaml:"saves"`
}

type Recovery struct {
	MaxFactor       float64  `yaml:"max_factor"`
	MinFactor       float64  `yaml:"min_factor"`
	FullRefundSites []string `yaml:"full_refund_sites"`
	BodyRadiusM     float64  `yaml:"body_radius_m"`
	SiteLat         float64  `yaml:"site_lat"`
	SiteLon         float64  `yaml:"site_lon"`
}

// Display holds the counter templates. Placeholders: {0} on construction,
// {1} in stock, {2} available, {3} missing cost, {4} resource code.
type Display struct {
	QtyFormat         string `yaml:"qty_format"`
	MissingQtyFormat  string `yaml:"missing_qty_format"`
	TankFormat        string `yaml:"tank_format"`
	TankMissingFormat string `yaml:"tank_missing_format"`
	SummaryResources  int    `yaml:"summary_resources"`
}

// Pricing tunes catalog fallback prices. A rescaled part without a host cost
// breakdown is priced at the default size's dry price times
// (current/default)^scale_exponent.
type Pricing struct {
	ScaleExponent float64 `yaml:"scale_exponent"`
}

type Saves struct {
	KeepLast int `yaml:"keep_last"`
}

func Defaults() Tuning {
	c := settlement.DefaultRecoveryCurve()
	return Tuning{
		RecoverResources: true,
		ResourceDisplay:  DisplayDetail,
		Recovery: Recovery{
			MaxFactor:       c.MaxFactor,
			MinFactor:       c.MinFactor,
			FullRefundSites: c.FullRefundSites,
			BodyRadiusM:     c.BodyRadius,
			SiteLat:         c.SiteLat,
			SiteLon:         c.SiteLon,
		},
		Display: Display{
			QtyFormat:         "{2}",
			MissingQtyFormat:  "({3}$) {2}",
			TankFormat:        "{4} {2}\n",
			TankMissingFormat: "{4} {2}\n",
			SummaryResources:  5,
		},
		Pricing: Pricing{ScaleExponent: pricing.DefaultScaleExponent},
		Saves:   Saves{KeepLast: 20},
	}
}

// Load reads a tuning file over the defaults. An empty path yields the
// defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t *Tuning) Normalize() {
	t.ResourceDisplay = strings.ToLower(strings.TrimSpace(t.ResourceDisplay))
	if t.ResourceDisplay == "" {
		t.ResourceDisplay = DisplayDetail
	}
	if t.Display.SummaryResources <= 0 {
		t.Display.SummaryResources = 5
	}
	if t.Saves.KeepLast < 0 {
		t.Saves.KeepLast = 0
	}
	sites := t.Recovery.FullRefundSites[:0]
	for _, s := range t.Recovery.FullRefundSites {
		if s = strings.TrimSpace(s); s != "" {
			sites = append(sites, s)
		}
	}
	t.Recovery.FullRefundSites = sites
}

func (t Tuning) Validate() error {
	switch t.ResourceDisplay {
	case DisplayDetail, DisplaySummary:
	default:
		return fmt.Errorf("resource_display must be %q or %q, got %q", DisplayDetail, DisplaySummary, t.ResourceDisplay)
	}
	r := t.Recovery
	if r.MaxFactor <= 0 || r.MaxFactor > 1 {
		return fmt.Errorf("recovery.max_factor out of range: %v", r.MaxFactor)
	}
	if r.MinFactor < 0 || r.MinFactor > r.MaxFactor {
		return fmt.Errorf("recovery.min_factor out of range: %v", r.MinFactor)
	}
	if r.BodyRadiusM <= 0 {
		return errors.New("recovery.body_radius_m must be > 0")
	}
	if r.SiteLat < -90 || r.SiteLat > 90 || r.SiteLon < -180 || r.SiteLon > 180 {
		return fmt.Errorf("recovery site out of range: %v,%v", r.SiteLat, r.SiteLon)
	}
	if e := t.Pricing.ScaleExponent; e < 0 || math.IsNaN(e) || math.IsInf(e, 0) {
		return fmt.Errorf("pricing.scale_exponent must be >= 0, got %v", e)
	}
	if t.Display.QtyFormat == "" || t.Display.TankFormat == "" {
		return errors.New("display: qty_format and tank_format are required")
	}
	return nil
}

func (t Tuning) SummaryMode() bool { return t.ResourceDisplay == DisplaySummary }

func (t Tuning) Curve() settlement.RecoveryCurve {
	return settlement.RecoveryCurve{
		MaxFactor:       t.Recovery.MaxFactor,
		MinFactor:       t.Recovery.MinFactor,
		FullRefundSites: append([]string(nil), t.Recovery.FullRefundSites...),
		BodyRadius:      t.Recovery.BodyRadiusM,
		SiteLat:         t.Recovery.SiteLat,
		SiteLon:         t.Recovery.SiteLon,
	}
}

func (t Tuning) Settlement() settlement.Config {
	return settlement.Config{RecoverResources: t.RecoverResources}
}
