package main

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"scrapyard.dev/internal/cfgnode"
	"scrapyard.dev/internal/ledger"
	"scrapyard.dev/internal/persistence/savefile"
)

func runAdmin(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestSavesInspect(t *testing.T) {
	data := t.TempDir()
	l := ledger.New()
	l.Parts.Set("strut", 3)
	l.Resources.Set("LiquidFuel", 12.5)
	root := cfgnode.New("")
	ledger.Encode(l, root)
	path := savefile.PathFor(filepath.Join(data, "saves"), "default", time.Now())
	require.NoError(t, savefile.Write(path, savefile.Header{Slot: "default", Parts: 1, Resources: 1}, cfgnode.Marshal(root)))

	list := runAdmin(t, "saves", "list", "--data", data)
	require.Contains(t, list, "parts=1 resources=1")

	out := runAdmin(t, "saves", "inspect", "--data", data, "--configs", "../../configs")
	require.Contains(t, out, "strut")
	require.Contains(t, out, "LiquidFuel")
	require.Contains(t, out, "12.50")
}

func TestPriceUnknownSuggests(t *testing.T) {
	out := runAdmin(t, "price", "--configs", "../../configs", "LiquidFuel", "zzz-not-a-part")
	require.Contains(t, out, "LiquidFuel\tresource\tLF")
	require.Contains(t, out, "zzz-not-a-part\tunknown")
}
