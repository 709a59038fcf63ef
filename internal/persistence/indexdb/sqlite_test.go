package indexdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"scrapyard.dev/internal/catalogs"
	"scrapyard.dev/internal/persistence/savefile"
	"scrapyard.dev/internal/session"
	"scrapyard.dev/internal/settlement"
	"scrapyard.dev/internal/tuning"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqSettlement}

	s.RecordSettlement(session.SettlementEntry{})
	s.RecordSave("/tmp/1.sav.zst", savefile.Header{})

	st := s.Stats()
	if st.DropSettlementTotal != 1 {
		t.Fatalf("DropSettlementTotal=%d want=1", st.DropSettlementTotal)
	}
	if st.DropSaveTotal != 1 {
		t.Fatalf("DropSaveTotal=%d want=1", st.DropSaveTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_NilIsSafe(t *testing.T) {
	var s *SQLiteIndex
	s.RecordSettlement(session.SettlementEntry{})
	s.RecordSave("x", savefile.Header{})
	if s.Stats() != (Stats{}) {
		t.Fatalf("nil stats should be zero")
	}
}

func TestSQLiteIndex_RecordAndQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}

	at := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	idx.RecordSettlement(session.SettlementEntry{
		SessionID: "s1",
		At:        at,
		Balance:   78,
		Result: settlement.Result{
			ID:     "r1",
			Kind:   settlement.KindRollout,
			Vessel: "Kerbal X",
			Lines: []settlement.Line{
				{Kind: settlement.LinePart, Identity: "strut", Qty: 2, UnitPrice: 10, Amount: 20},
				{Kind: settlement.LineResource, Identity: "LiquidFuel", Qty: 10, UnitPrice: 0.8, Amount: 8},
			},
			Delta: 28,
		},
	})
	idx.RecordSettlement(session.SettlementEntry{
		SessionID: "s1",
		At:        at.Add(time.Minute),
		Result:    settlement.Result{ID: "r2", Kind: settlement.KindRecover, Vessel: "Kerbal X", Factor: 0.5, Delta: -10},
	})
	idx.RecordSave("/data/saves/default/1.sav.zst", savefile.Header{SessionID: "s1", Slot: "default", SavedAt: at, Parts: 3})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()
	ctx := context.Background()

	all, err := ListSettlements(ctx, db, "", 10)
	if err != nil {
		t.Fatalf("ListSettlements: %v", err)
	}
	if len(all) != 2 || all[0].ID != "r2" || all[1].ID != "r1" {
		t.Fatalf("settlements=%+v", all)
	}
	rollouts, err := ListSettlements(ctx, db, "rollout", 10)
	if err != nil || len(rollouts) != 1 || rollouts[0].Delta != 28 || rollouts[0].Balance != 78 {
		t.Fatalf("rollouts=%+v err=%v", rollouts, err)
	}

	lines, err := SettlementLines(ctx, db, "r1")
	if err != nil {
		t.Fatalf("SettlementLines: %v", err)
	}
	if len(lines) != 2 || lines[0].Identity != "strut" || lines[1].Kind != "resource" {
		t.Fatalf("lines=%+v", lines)
	}

	saves, err := ListSaves(ctx, db, "default")
	if err != nil || len(saves) != 1 || saves[0].Parts != 3 {
		t.Fatalf("saves=%+v err=%v", saves, err)
	}
}

func TestSQLiteIndex_UpsertCatalogs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer idx.Close()

	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	if err := idx.UpsertCatalogs("../../../configs", cats, tuning.Defaults()); err != nil {
		t.Fatalf("UpsertCatalogs: %v", err)
	}

	var n int
	if err := idx.db.QueryRow(`SELECT COUNT(*) FROM catalogs`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Fatalf("catalog rows=%d want 3", n)
	}
	var digest string
	if err := idx.db.QueryRow(`SELECT digest FROM catalogs WHERE name='parts'`).Scan(&digest); err != nil {
		t.Fatalf("parts row: %v", err)
	}
	if digest != cats.Parts.Digest {
		t.Fatalf("digest=%s want %s", digest, cats.Parts.Digest)
	}
}
