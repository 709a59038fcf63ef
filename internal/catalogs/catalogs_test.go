package catalogs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_Configs(t *testing.T) {
	c, err := Load("../../configs")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Parts.Names) == 0 || len(c.Resources.Names) == 0 {
		t.Fatalf("expected parts and resources")
	}
	if c.Parts.Digest == "" || c.Resources.Digest == "" {
		t.Fatalf("expected digests")
	}
	d, ok := c.Parts.Lookup("fuelTank,2.5")
	if !ok || d.Name != "fuelTank" {
		t.Fatalf("lookup scaled identity: ok=%v def=%+v", ok, d)
	}
	if cost, ok := c.Resources.UnitCost("LiquidFuel"); !ok || cost <= 0 {
		t.Fatalf("LiquidFuel cost=%v ok=%v", cost, ok)
	}
	if _, ok := c.Resources.UnitCost("Unobtainium"); ok {
		t.Fatalf("unknown resource reported as known")
	}
}

func TestSuggest(t *testing.T) {
	p := PartCatalog{Defs: map[string]PartDef{}}
	for _, n := range []string{"fuelTank", "fuelTankSmall", "liquidEngine", "probeCoreOcto"} {
		p.Defs[n] = PartDef{Name: n}
	}
	p.Names = sortedKeys(p.Defs)

	got := p.Suggest("fueltank", 2)
	if len(got) == 0 || got[0] != "fuelTank" {
		t.Fatalf("suggest=%v", got)
	}
	if got := p.Suggest("zzzzzzzzzzzzzzzz", 3); len(got) != 0 {
		t.Fatalf("expected no suggestions, got %v", got)
	}
}

func TestLoad_Rejects(t *testing.T) {
	cases := map[string]struct {
		parts, resources string
		want             string
	}{
		"unknown resource": {
			parts:     `[{"name":"tank","cost":1,"resources":[{"resource":"Nope","amount":1}]}]`,
			resources: `[]`,
			want:      "unknown resource",
		},
		"separator in name": {
			parts:     `[{"name":"tank,2x","cost":1}]`,
			resources: `[]`,
			want:      "must not contain",
		},
		"duplicate part": {
			parts:     `[{"name":"tank","cost":1},{"name":"tank","cost":2}]`,
			resources: `[]`,
			want:      "duplicate",
		},
		"negative cost": {
			parts:     `[]`,
			resources: `[{"name":"LiquidFuel","unit_cost":-1}]`,
			want:      "negative",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, "parts.json"), []byte(tc.parts), 0o644); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(filepath.Join(dir, "resources.json"), []byte(tc.resources), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(dir)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}
