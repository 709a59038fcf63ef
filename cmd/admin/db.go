package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"scrapyard.dev/internal/persistence/indexdb"
)

func newDBCmd() *cobra.Command {
	var (
		dbPath string
		limit  int
		kind   string
		slot   string
	)
	cmd := &cobra.Command{
		Use:   "db <settlements|lines|saves> [settlement-id]",
		Short: "Query the settlement index",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := strings.TrimSpace(dbPath)
			if path == "" {
				dataDir, _ := cmd.Flags().GetString("data")
				path = filepath.Join(dataDir, "index", "scrapyard.sqlite")
			}
			db, err := sql.Open("sqlite", path)
			if err != nil {
				return fmt.Errorf("open: %w", err)
			}
			defer db.Close()

			ctx := cmd.Context()
			enc := json.NewEncoder(cmd.OutOrStdout())
			switch args[0] {
			case "settlements":
				rows, err := indexdb.ListSettlements(ctx, db, kind, limit)
				if err != nil {
					return err
				}
				for _, r := range rows {
					_ = enc.Encode(r)
				}
			case "lines":
				if len(args) < 2 {
					return fmt.Errorf("lines needs a settlement id")
				}
				rows, err := indexdb.SettlementLines(ctx, db, args[1])
				if err != nil {
					return err
				}
				for _, r := range rows {
					_ = enc.Encode(r)
				}
			case "saves":
				rows, err := indexdb.ListSaves(ctx, db, slot)
				if err != nil {
					return err
				}
				for _, r := range rows {
					_ = enc.Encode(r)
				}
			default:
				return fmt.Errorf("unknown query %q", args[0])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "sqlite db path (default: <data>/index/scrapyard.sqlite)")
	cmd.Flags().IntVar(&limit, "limit", 20, "result limit")
	cmd.Flags().StringVar(&kind, "kind", "", "settlement kind filter (rollout|recover)")
	cmd.Flags().StringVar(&slot, "slot", "", "save slot filter")
	return cmd
}
