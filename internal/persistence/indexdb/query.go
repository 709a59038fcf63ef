package indexdb

import (
	"context"
	"database/sql"
	"fmt"
)

// SettlementRow is one row of the settlements table.
type SettlementRow struct {
	ID        string  `json:"id"`
	SessionID string  `json:"session_id"`
	Kind      string  `json:"kind"`
	Vessel    string  `json:"vessel"`
	Factor    float64 `json:"factor"`
	Delta     float64 `json:"delta"`
	Balance   float64 `json:"balance"`
	At        string  `json:"at"`
}

type LineRow struct {
	Seq       int     `json:"seq"`
	Kind      string  `json:"kind"`
	Identity  string  `json:"identity"`
	Qty       float64 `json:"qty"`
	UnitPrice float64 `json:"unit_price"`
	Amount    float64 `json:"amount"`
}

type SaveRow struct {
	Path      string `json:"path"`
	SessionID string `json:"session_id"`
	Slot      string `json:"slot"`
	SavedAt   string `json:"saved_at"`
	Parts     int    `json:"parts"`
	Resources int    `json:"resources"`
}

// OpenReadOnly opens an index for queries only (no writer goroutine).
func OpenReadOnly(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return db, nil
}

// ListSettlements returns the newest settlements first. kind filters by
// settlement kind when non-empty.
func ListSettlements(ctx context.Context, db *sql.DB, kind string, limit int) ([]SettlementRow, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT id,session_id,kind,vessel,factor,delta,balance,at FROM settlements`
	args := []any{}
	if kind != "" {
		q += ` WHERE kind=?`
		args = append(args, kind)
	}
	q += ` ORDER BY at DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SettlementRow
	for rows.Next() {
		var r SettlementRow
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Kind, &r.Vessel, &r.Factor, &r.Delta, &r.Balance, &r.At); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func SettlementLines(ctx context.Context, db *sql.DB, id string) ([]LineRow, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT seq,kind,identity,qty,unit_price,amount FROM settlement_lines WHERE settlement_id=? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LineRow
	for rows.Next() {
		var r LineRow
		if err := rows.Scan(&r.Seq, &r.Kind, &r.Identity, &r.Qty, &r.UnitPrice, &r.Amount); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func ListSaves(ctx context.Context, db *sql.DB, slot string) ([]SaveRow, error) {
	q := `SELECT path,session_id,slot,saved_at,parts,resources FROM saves`
	args := []any{}
	if slot != "" {
		q += ` WHERE slot=?`
		args = append(args, slot)
	}
	q += ` ORDER BY saved_at DESC`
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SaveRow
	for rows.Next() {
		var r SaveRow
		if err := rows.Scan(&r.Path, &r.SessionID, &r.Slot, &r.SavedAt, &r.Parts, &r.Resources); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
