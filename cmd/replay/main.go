package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"scrapyard.dev/internal/ledger"
	persistlog "scrapyard.dev/internal/persistence/log"
	"scrapyard.dev/internal/persistence/savefile"
	"scrapyard.dev/internal/session"
	"scrapyard.dev/internal/settlement"
)

const balanceTolerance = 1e-6

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		savePath   string
		journalDir string
		strict     bool
	)
	cmd := &cobra.Command{
		Use:           "scrapyard-replay",
		Short:         "Rebuild the ledger from a save plus the settlement journal",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if journalDir == "" {
				return fmt.Errorf("missing --journal")
			}
			l := ledger.New()
			var since time.Time
			if savePath != "" {
				h, root, err := savefile.ReadNode(savePath)
				if err != nil {
					return err
				}
				if _, err := ledger.Decode(root, l); err != nil {
					return err
				}
				since = h.SavedAt
				fmt.Fprintf(cmd.OutOrStdout(), "save %s saved_at=%s parts=%d resources=%d\n",
					filepath.Base(savePath), h.SavedAt.Format(time.RFC3339), l.Parts.Len(), l.Resources.Len())
			}

			files, err := persistlog.ListFiles(journalDir, "settlements")
			if err != nil {
				return fmt.Errorf("list journal: %w", err)
			}
			if len(files) == 0 {
				return fmt.Errorf("no journal files found in %s", journalDir)
			}

			r := &replayer{ledger: l, since: since}
			for _, path := range files {
				if err := persistlog.ReadSettlements(path, r.apply); err != nil {
					return fmt.Errorf("replay: %w", err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "replay: applied=%d skipped=%d loads=%d balance_jumps=%d parts=%d resources=%d\n",
				r.applied, r.skipped, r.loads, r.jumps, l.Parts.Len(), l.Resources.Len())
			for _, k := range l.Parts.Keys() {
				fmt.Fprintf(cmd.OutOrStdout(), "  part %s = %g\n", k, l.Parts.Get(k))
			}
			for _, k := range l.Resources.Keys() {
				fmt.Fprintf(cmd.OutOrStdout(), "  resource %s = %g\n", k, l.Resources.Get(k))
			}
			if strict && r.jumps > 0 {
				return fmt.Errorf("%d balance discontinuities", r.jumps)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&savePath, "save", "", "save file to start from (default: empty ledger)")
	cmd.Flags().StringVar(&journalDir, "journal", "", "directory holding settlements-*.jsonl.zst")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when the journaled balance does not follow the deltas")
	return cmd
}

type replayer struct {
	ledger *ledger.Ledger
	since  time.Time

	applied int
	skipped int
	loads   int
	jumps   int

	haveBalance bool
	balance     float64
}

// apply re-applies one journaled settlement. Rollout lines record what was
// withdrawn and recovery lines what was deposited, so the ledger follows
// exactly.
func (r *replayer) apply(e session.SettlementEntry) error {
	if !r.since.IsZero() && !e.At.After(r.since) {
		r.skipped++
		return nil
	}
	if e.Load != nil {
		r.reset(e)
		return nil
	}
	for _, ln := range e.Result.Lines {
		c := r.ledger.Parts
		if ln.Kind == settlement.LineResource {
			c = r.ledger.Resources
		}
		switch e.Result.Kind {
		case settlement.KindRollout:
			c.Set(ln.Identity, math.Max(0, c.Get(ln.Identity)-ln.Qty))
		case settlement.KindRecover:
			c.Add(ln.Identity, ln.Qty)
		default:
			return fmt.Errorf("settlement %s: unknown kind %q", e.Result.ID, e.Result.Kind)
		}
	}

	// A HELLO may reset the treasury between settlements; count those.
	if r.haveBalance && math.Abs(r.balance+e.Result.Delta-e.Balance) > balanceTolerance {
		r.jumps++
	}
	r.balance = e.Balance
	r.haveBalance = true
	r.applied++
	return nil
}

// reset replaces the ledger with a journaled load and takes its balance as
// the new baseline.
func (r *replayer) reset(e session.SettlementEntry) {
	r.ledger.Parts.Clear()
	for k, v := range e.Load.Parts {
		r.ledger.Parts.Set(k, v)
	}
	r.ledger.Resources.Clear()
	for k, v := range e.Load.Resources {
		r.ledger.Resources.Set(k, v)
	}
	r.balance = e.Balance
	r.haveBalance = true
	r.loads++
}
