package session

import (
	"time"

	"scrapyard.dev/internal/settlement"
)

// SettlementEntry is the journal record of one settlement, or of a save
// being loaded when Load is set.
type SettlementEntry struct {
	SessionID string            `json:"session_id"`
	At        time.Time         `json:"at"`
	Result    settlement.Result `json:"result"`
	// Balance is the treasury balance after the settlement, 0 when the
	// treasury does not report one.
	Balance float64 `json:"balance"`
	// Load carries the whole ledger as decoded from a save. Replaying it
	// replaces the ledger instead of applying deltas.
	Load *LedgerImage `json:"load,omitempty"`
}

type LedgerImage struct {
	Parts     map[string]float64 `json:"parts"`
	Resources map[string]float64 `json:"resources"`
}

// SaveEntry is a copy of an encoded ledger on its way to disk.
type SaveEntry struct {
	SessionID string
	Slot      string
	At        time.Time
	Node      []byte
	Parts     int
	Resources int
}

type SettlementLogger interface {
	WriteSettlement(entry SettlementEntry) error
}

// Index receives settlements for the queryable read model. Implementations
// must not block the caller.
type Index interface {
	RecordSettlement(entry SettlementEntry)
}
