// Package ledger holds the two inventory catalogs (parts and resources) and
// their save-node codec.
package ledger

// Ledger pairs the parts and resources catalogs. A Ledger is created once per
// session and passed explicitly to every component that reads or mutates it.
type Ledger struct {
	Parts     *Catalog
	Resources *Catalog
}

func New() *Ledger {
	return &Ledger{
		Parts:     NewCatalog(),
		Resources: NewCatalog(),
	}
}

// Reset empties both catalogs.
func (l *Ledger) Reset() {
	l.Parts.Clear()
	l.Resources.Clear()
}
