// Package indexdb keeps a queryable sqlite copy of settlements and saves.
// The JSONL journal stays the source of truth; writes here are best effort
// and dropped when the writer falls behind.
package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"scrapyard.dev/internal/catalogs"
	"scrapyard.dev/internal/persistence/savefile"
	"scrapyard.dev/internal/session"
	"scrapyard.dev/internal/tuning"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropSettlement atomic.Uint64
	dropSave       atomic.Uint64
	writeErrors    atomic.Uint64
}

type reqKind int

const (
	reqSettlement reqKind = iota + 1
	reqSave
)

type req struct {
	kind reqKind

	settlement session.SettlementEntry
	save       saveRow
}

type saveRow struct {
	Path      string
	SessionID string
	Slot      string
	SavedAt   string
	Parts     int
	Resources int
}

type Stats struct {
	DropSettlementTotal uint64
	DropSaveTotal       uint64
	WriteErrorTotal     uint64
	QueueDepth          int
	QueueCapacity       int
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS settlements (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			vessel TEXT NOT NULL,
			factor REAL NOT NULL,
			delta REAL NOT NULL,
			balance REAL NOT NULL,
			at TEXT NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_settlements_at ON settlements(at);`,
		`CREATE TABLE IF NOT EXISTS settlement_lines (
			settlement_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			identity TEXT NOT NULL,
			qty REAL NOT NULL,
			unit_price REAL NOT NULL,
			amount REAL NOT NULL,
			PRIMARY KEY (settlement_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_lines_identity ON settlement_lines(identity);`,
		`CREATE TABLE IF NOT EXISTS saves (
			path TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			slot TEXT NOT NULL,
			saved_at TEXT NOT NULL,
			parts INTEGER NOT NULL,
			resources INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_saves_slot ON saves(slot, saved_at);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		DropSettlementTotal: s.dropSettlement.Load(),
		DropSaveTotal:       s.dropSave.Load(),
		WriteErrorTotal:     s.writeErrors.Load(),
		QueueDepth:          len(s.ch),
		QueueCapacity:       cap(s.ch),
	}
}

func (s *SQLiteIndex) RecordSettlement(e session.SettlementEntry) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqSettlement, settlement: e}:
	default:
		s.dropSettlement.Add(1)
	}
}

// RecordSave indexes a save file written by savefile.Writer.
func (s *SQLiteIndex) RecordSave(path string, h savefile.Header) {
	if s == nil || s.closed.Load() || path == "" {
		return
	}
	r := saveRow{
		Path:      path,
		SessionID: h.SessionID,
		Slot:      h.Slot,
		SavedAt:   h.SavedAt.UTC().Format(time.RFC3339Nano),
		Parts:     h.Parts,
		Resources: h.Resources,
	}
	select {
	case s.ch <- req{kind: reqSave, save: r}:
	default:
		s.dropSave.Add(1)
	}
}

// UpsertCatalogs stores the raw catalog files and the applied tuning so a
// settlement row can be traced to the prices in force.
func (s *SQLiteIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if configDir != "" && cats != nil {
		if b, err := os.ReadFile(filepath.Join(configDir, "parts.json")); err == nil {
			rows = append(rows, kv{name: "parts", digest: cats.Parts.Digest, json: b})
		}
		if b, err := os.ReadFile(filepath.Join(configDir, "resources.json")); err == nil {
			rows = append(rows, kv{name: "resources", digest: cats.Resources.Digest, json: b})
		}
	}
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.name == "" || r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertSettlement, _ := s.db.Prepare(`INSERT OR REPLACE INTO settlements(id,session_id,kind,vessel,factor,delta,balance,at,raw_json) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertLine, _ := s.db.Prepare(`INSERT OR REPLACE INTO settlement_lines(settlement_id,seq,kind,identity,qty,unit_price,amount) VALUES(?,?,?,?,?,?,?)`)
	insertSave, _ := s.db.Prepare(`INSERT OR REPLACE INTO saves(path,session_id,slot,saved_at,parts,resources) VALUES(?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertSettlement, insertLine, insertSave} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.writeErrors.Add(1)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		s.writeErrors.Add(1)
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		// Commit eagerly once the queue drains so readers see fresh rows.
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait || len(s.ch) == 0 {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqSettlement:
			e := r.settlement
			if insertSettlement == nil || insertLine == nil {
				continue
			}
			raw, _ := json.Marshal(e.Result)
			if _, err := tx.Stmt(insertSettlement).Exec(
				e.Result.ID,
				e.SessionID,
				string(e.Result.Kind),
				e.Result.Vessel,
				e.Result.Factor,
				e.Result.Delta,
				e.Balance,
				e.At.UTC().Format(time.RFC3339Nano),
				string(raw),
			); err != nil {
				rollback()
				continue
			}
			opCount++
			failed := false
			for i, l := range e.Result.Lines {
				if _, err := tx.Stmt(insertLine).Exec(e.Result.ID, i, string(l.Kind), l.Identity, l.Qty, l.UnitPrice, l.Amount); err != nil {
					rollback()
					failed = true
					break
				}
				opCount++
			}
			if failed {
				continue
			}

		case reqSave:
			sv := r.save
			if insertSave == nil {
				continue
			}
			if _, err := tx.Stmt(insertSave).Exec(sv.Path, sv.SessionID, sv.Slot, sv.SavedAt, sv.Parts, sv.Resources); err != nil {
				rollback()
				continue
			}
			opCount++
		}
		flushIfNeeded()
	}

	commit()
}

var _ session.Index = (*SQLiteIndex)(nil)
