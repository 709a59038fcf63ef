package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"scrapyard.dev/internal/naming"
)

type Catalogs struct {
	Parts     PartCatalog
	Resources ResourceCatalog
}

type PartCatalog struct {
	Names  []string
	Defs   map[string]PartDef
	Digest string
}

type PartDef struct {
	Name         string            `json:"name"`
	Title        string            `json:"title,omitempty"`
	Category     string            `json:"category,omitempty"`
	Cost         float64           `json:"cost"`
	TechRequired string            `json:"tech_required,omitempty"`
	DefaultScale string            `json:"default_scale,omitempty"`
	Resources    []ResourceContent `json:"resources,omitempty"`
}

// ResourceContent is a resource a part ships with. The listed part cost
// includes Amount units of it.
type ResourceContent struct {
	Resource  string  `json:"resource"`
	Amount    float64 `json:"amount"`
	MaxAmount float64 `json:"max_amount,omitempty"`
}

type ResourceCatalog struct {
	Names  []string
	Defs   map[string]ResourceDef
	Digest string
}

type ResourceDef struct {
	Name     string  `json:"name"`
	UnitCost float64 `json:"unit_cost"`
	Density  float64 `json:"density,omitempty"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := loadResources(filepath.Join(configDir, "resources.json"), &c.Resources); err != nil {
		return nil, err
	}
	if err := loadParts(filepath.Join(configDir, "parts.json"), &c.Parts); err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadResources(path string, out *ResourceCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []ResourceDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("resources.json: %w", err)
	}
	out.Defs = make(map[string]ResourceDef, len(defs))
	for _, d := range defs {
		if d.Name == "" {
			return fmt.Errorf("resources.json: empty name")
		}
		if d.UnitCost < 0 {
			return fmt.Errorf("resources.json: %s: negative unit_cost", d.Name)
		}
		if _, dup := out.Defs[d.Name]; dup {
			return fmt.Errorf("resources.json: duplicate name %s", d.Name)
		}
		out.Defs[d.Name] = d
	}
	out.Names = sortedKeys(out.Defs)
	return nil
}

func loadParts(path string, out *PartCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []PartDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("parts.json: %w", err)
	}
	out.Defs = make(map[string]PartDef, len(defs))
	for _, d := range defs {
		if d.Name == "" {
			return fmt.Errorf("parts.json: empty name")
		}
		// Part names double as ledger identities; the separator is reserved.
		if strings.Contains(d.Name, naming.Separator) {
			return fmt.Errorf("parts.json: %s: name must not contain %q", d.Name, naming.Separator)
		}
		if _, dup := out.Defs[d.Name]; dup {
			return fmt.Errorf("parts.json: duplicate name %s", d.Name)
		}
		out.Defs[d.Name] = d
	}
	out.Names = sortedKeys(out.Defs)
	return nil
}

func (c *Catalogs) validate() error {
	for _, name := range c.Parts.Names {
		for _, rc := range c.Parts.Defs[name].Resources {
			if _, ok := c.Resources.Defs[rc.Resource]; !ok {
				return fmt.Errorf("parts.json: %s: unknown resource %s", name, rc.Resource)
			}
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Lookup resolves a ledger identity (possibly carrying a scale suffix) to its
// base part definition.
func (p *PartCatalog) Lookup(id string) (PartDef, bool) {
	if p == nil {
		return PartDef{}, false
	}
	d, ok := p.Defs[naming.Strip(id)]
	return d, ok
}

// Suggest returns up to n known part names closest to name by edit
// distance, nearest first.
func (p *PartCatalog) Suggest(name string, n int) []string {
	if p == nil || n <= 0 {
		return nil
	}
	base := strings.ToLower(naming.Strip(name))
	limit := len(base)/2 + 1
	type cand struct {
		name string
		dist int
	}
	var cands []cand
	for _, known := range p.Names {
		d := levenshtein.ComputeDistance(base, strings.ToLower(known))
		if d > limit {
			continue
		}
		cands = append(cands, cand{name: known, dist: d})
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })
	if len(cands) > n {
		cands = cands[:n]
	}
	out := make([]string, 0, len(cands))
	for _, c := range cands {
		out = append(out, c.name)
	}
	return out
}

// UnitCost reports the per-unit price of a resource.
func (r *ResourceCatalog) UnitCost(name string) (float64, bool) {
	if r == nil {
		return 0, false
	}
	d, ok := r.Defs[name]
	if !ok {
		return 0, false
	}
	return d.UnitCost, true
}
