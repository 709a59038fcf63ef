package ledger

import "sort"

// Catalog is a multiset of quantities keyed by item identity (a part identity
// or a resource name). Values may go negative between steps of a settlement;
// callers clamp before the value is meant to be persisted.
//
// Catalog is not safe for concurrent use. The owning session serializes access.
type Catalog struct {
	items map[string]float64
}

func NewCatalog() *Catalog {
	return &Catalog{items: map[string]float64{}}
}

func (c *Catalog) Add(id string, qty float64) {
	if c.items == nil {
		c.items = map[string]float64{}
	}
	c.items[id] += qty
}

func (c *Catalog) Remove(id string, qty float64) { c.Add(id, -qty) }

// Get returns 0 for unknown or empty identities.
func (c *Catalog) Get(id string) float64 {
	if id == "" || c == nil {
		return 0
	}
	return c.items[id]
}

func (c *Catalog) Has(id string) bool {
	if c == nil {
		return false
	}
	_, ok := c.items[id]
	return ok
}

func (c *Catalog) Set(id string, qty float64) {
	if c.items == nil {
		c.items = map[string]float64{}
	}
	c.items[id] = qty
}

func (c *Catalog) Clear() {
	clear(c.items)
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

// Keys returns every recorded identity in sorted order, including entries
// whose value is zero.
func (c *Catalog) Keys() []string {
	if c == nil {
		return nil
	}
	keys := make([]string, 0, len(c.items))
	for k := range c.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot returns a copy of the underlying mapping.
func (c *Catalog) Snapshot() map[string]float64 {
	out := make(map[string]float64, c.Len())
	if c == nil {
		return out
	}
	for k, v := range c.items {
		out[k] = v
	}
	return out
}

// Total sums every recorded quantity.
func (c *Catalog) Total() float64 {
	var total float64
	for _, k := range c.Keys() {
		total += c.items[k]
	}
	return total
}
