package ledger

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"scrapyard.dev/internal/cfgnode"
)

const (
	// RootSection is the qualified name the save data is keyed under.
	RootSection      = "Scrapyard.Scrapyard"
	PartsSection     = "PARTS"
	ResourcesSection = "RESOURCES"
)

// MissingSectionError reports that the root ledger section is absent from the
// save data. Loading cannot continue and the catalogs must not be trusted.
type MissingSectionError struct {
	Section string
}

func (e *MissingSectionError) Error() string {
	return fmt.Sprintf("ledger: section %q not found in save data", e.Section)
}

// DecodeStats counts what a Decode call did with each entry.
type DecodeStats struct {
	Parts     int
	Resources int
	Dropped   int
}

// Encode appends the ledger section to root. Parts are written only when
// non-zero; resources are written for every recorded key.
func Encode(l *Ledger, root *cfgnode.Node) *cfgnode.Node {
	n := root.AddNode(RootSection)
	p := n.AddNode(PartsSection)
	for _, k := range l.Parts.Keys() {
		v := l.Parts.Get(k)
		if v == 0 {
			continue
		}
		p.AddValue(k, formatQty(v))
	}
	r := n.AddNode(ResourcesSection)
	for _, k := range l.Resources.Keys() {
		r.AddValue(k, formatQty(l.Resources.Get(k)))
	}
	return n
}

// Decode replaces the content of both catalogs with the section found under
// root. Entries that fail to parse, or parse to exactly zero, are dropped.
// Part quantities must be integers.
func Decode(root *cfgnode.Node, l *Ledger) (DecodeStats, error) {
	var st DecodeStats
	n := root.GetNode(RootSection)
	if n == nil {
		return st, &MissingSectionError{Section: RootSection}
	}

	l.Parts.Clear()
	if p := n.GetNode(PartsSection); p != nil {
		for _, v := range p.Values {
			qty, err := strconv.Atoi(strings.TrimSpace(v.Value))
			if err != nil || qty == 0 {
				st.Dropped++
				continue
			}
			l.Parts.Set(v.Name, float64(qty))
			st.Parts++
		}
	}

	l.Resources.Clear()
	if r := n.GetNode(ResourcesSection); r != nil {
		for _, v := range r.Values {
			qty, err := strconv.ParseFloat(strings.TrimSpace(v.Value), 64)
			if err != nil || qty == 0 || math.IsNaN(qty) || math.IsInf(qty, 0) {
				st.Dropped++
				continue
			}
			l.Resources.Set(v.Name, qty)
			st.Resources++
		}
	}
	return st, nil
}

func formatQty(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
