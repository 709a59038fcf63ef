package main

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"scrapyard.dev/internal/catalogs"
	"scrapyard.dev/internal/cfgnode"
	"scrapyard.dev/internal/ledger"
	persistlog "scrapyard.dev/internal/persistence/log"
	"scrapyard.dev/internal/persistence/savefile"
	"scrapyard.dev/internal/session"
	"scrapyard.dev/internal/settlement"
	"scrapyard.dev/internal/tuning"
	"scrapyard.dev/internal/vessel"
)

func TestReplayerApply(t *testing.T) {
	l := ledger.New()
	l.Parts.Set("strut", 3)
	r := &replayer{ledger: l}

	require.NoError(t, r.apply(session.SettlementEntry{
		Balance: 20,
		Result: settlement.Result{Kind: settlement.KindRollout, Delta: 20, Lines: []settlement.Line{
			{Kind: settlement.LinePart, Identity: "strut", Qty: 2},
		}},
	}))
	require.NoError(t, r.apply(session.SettlementEntry{
		Balance: 5,
		Result: settlement.Result{Kind: settlement.KindRecover, Delta: -15, Lines: []settlement.Line{
			{Kind: settlement.LinePart, Identity: "mk1pod", Qty: 1},
			{Kind: settlement.LineResource, Identity: "LiquidFuel", Qty: 12.5},
		}},
	}))
	require.Equal(t, 1.0, l.Parts.Get("strut"))
	require.Equal(t, 1.0, l.Parts.Get("mk1pod"))
	require.Equal(t, 12.5, l.Resources.Get("LiquidFuel"))
	require.Equal(t, 0, r.jumps)

	// Balance reset outside a settlement.
	require.NoError(t, r.apply(session.SettlementEntry{Balance: 1000, Result: settlement.Result{Kind: settlement.KindRollout}}))
	require.Equal(t, 1, r.jumps)

	require.Error(t, r.apply(session.SettlementEntry{Result: settlement.Result{Kind: "bogus", Lines: []settlement.Line{{Identity: "x"}}}}))
}

func TestReplayFromSave(t *testing.T) {
	dir := t.TempDir()
	saveAt := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	base := ledger.New()
	base.Parts.Set("strut", 5)
	root := cfgnode.New("")
	ledger.Encode(base, root)
	savePath := savefile.PathFor(filepath.Join(dir, "saves"), "default", saveAt)
	require.NoError(t, savefile.Write(savePath, savefile.Header{Slot: "default", SavedAt: saveAt}, cfgnode.Marshal(root)))

	journal := persistlog.NewSettlementLogger(dir)
	// Before the save: already reflected in it.
	require.NoError(t, journal.WriteSettlement(session.SettlementEntry{At: saveAt.Add(-time.Minute), Result: settlement.Result{
		Kind: settlement.KindRecover, Lines: []settlement.Line{{Kind: settlement.LinePart, Identity: "strut", Qty: 5}},
	}}))
	require.NoError(t, journal.WriteSettlement(session.SettlementEntry{At: saveAt.Add(time.Minute), Result: settlement.Result{
		Kind: settlement.KindRollout, Lines: []settlement.Line{{Kind: settlement.LinePart, Identity: "strut", Qty: 2}},
	}}))
	require.NoError(t, journal.Close())

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--save", savePath, "--journal", filepath.Join(dir, "settlements")})
	require.NoError(t, cmd.Execute())
	require.Contains(t, out.String(), "applied=1 skipped=1")
	require.Contains(t, out.String(), "part strut = 3")
}

func TestReplayerLoadResetsLedger(t *testing.T) {
	l := ledger.New()
	l.Parts.Set("strut", 3)
	r := &replayer{ledger: l}

	require.NoError(t, r.apply(session.SettlementEntry{Balance: 50, Load: &session.LedgerImage{
		Parts:     map[string]float64{"mk1pod": 1},
		Resources: map[string]float64{"LiquidFuel": 4},
	}}))
	require.Equal(t, 0.0, l.Parts.Get("strut"))
	require.Equal(t, 1.0, l.Parts.Get("mk1pod"))
	require.Equal(t, 4.0, l.Resources.Get("LiquidFuel"))

	// The loaded balance is the baseline for the next settlement.
	require.NoError(t, r.apply(session.SettlementEntry{
		Balance: 40,
		Result: settlement.Result{Kind: settlement.KindRollout, Delta: -10, Lines: []settlement.Line{
			{Kind: settlement.LinePart, Identity: "mk1pod", Qty: 1},
		}},
	}))
	require.Equal(t, 0, r.jumps)
	require.Equal(t, 1, r.loads)
	require.Equal(t, 1, r.applied)
}

func TestReplayAcrossLoad(t *testing.T) {
	dir := t.TempDir()
	cats, err := catalogs.Load(filepath.Join("..", "..", "configs"))
	require.NoError(t, err)
	s, err := session.New(session.Config{Tuning: tuning.Defaults(), Catalogs: cats}, zap.NewNop())
	require.NoError(t, err)
	journal := persistlog.NewSettlementLogger(dir)
	s.SetSettlementLogger(journal)

	chutes := func(n int) *vessel.Snapshot {
		v := &vessel.Snapshot{Name: "chutes", Stage: vessel.StageConstruct}
		for i := 0; i < n; i++ {
			v.Parts = append(v.Parts, vessel.Part{Name: "parachuteSingle", Parent: i - 1})
		}
		return v
	}

	_, err = s.Recover(chutes(4), nil)
	require.NoError(t, err)
	empty := cfgnode.New("")
	ledger.Encode(ledger.New(), empty)
	_, err = s.Load(empty)
	require.NoError(t, err)
	_, err = s.Recover(chutes(1), nil)
	require.NoError(t, err)
	require.NoError(t, journal.Close())
	require.Equal(t, 1.0, s.Ledger().Parts.Get("parachuteSingle"))

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--journal", filepath.Join(dir, "settlements")})
	require.NoError(t, cmd.Execute())
	require.Contains(t, out.String(), "applied=2 skipped=0 loads=1")
	require.Contains(t, out.String(), "part parachuteSingle = 1\n")
}
