// Package naming builds ledger identities for parts. A part rescaled away
// from its default size gets its scale appended after a comma so that
// differently sized copies of the same base part are stocked separately.
package naming

import "strings"

const (
	Separator = ","

	// ScaleModuleName is the part module carrying scale information.
	ScaleModuleName = "TweakScale"
)

// Canonicalize returns base unchanged when currentScale equals defaultScale,
// otherwise base + "," + currentScale.
func Canonicalize(base, currentScale, defaultScale string) string {
	if currentScale == defaultScale {
		return base
	}
	return base + Separator + currentScale
}

// Strip returns the base part name of an identity.
func Strip(id string) string {
	base, _, _ := strings.Cut(id, Separator)
	return base
}

// Split returns the base name and the scale suffix (empty when unscaled).
func Split(id string) (base, scale string) {
	base, scale, _ = strings.Cut(id, Separator)
	return base, scale
}

// ScaleModule is the subset of a part module the ledger cares about.
type ScaleModule struct {
	Name         string `json:"name"`
	DefaultScale string `json:"default_scale"`
	CurrentScale string `json:"current_scale"`
}

// FromModules resolves the identity of a part from its module list. Parts
// without a scale module keep their base name.
func FromModules(base string, mods []ScaleModule) string {
	for _, m := range mods {
		if m.Name == ScaleModuleName {
			return Canonicalize(base, m.CurrentScale, m.DefaultScale)
		}
	}
	return base
}
