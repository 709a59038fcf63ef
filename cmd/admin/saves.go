package main

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"scrapyard.dev/internal/catalogs"
	"scrapyard.dev/internal/ledger"
	"scrapyard.dev/internal/persistence/savefile"
	"scrapyard.dev/internal/pricing"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	qtyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func newSavesCmd() *cobra.Command {
	var slot string
	cmd := &cobra.Command{Use: "saves", Short: "List and inspect ledger saves"}
	cmd.PersistentFlags().StringVar(&slot, "slot", "default", "save slot")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the saves of a slot, newest last",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dataDir, _ := cmd.Flags().GetString("data")
			files, err := savefile.List(filepath.Join(dataDir, "saves", savefile.SafeSlot(slot)))
			if err != nil {
				return err
			}
			for _, path := range files {
				h, _, err := savefile.Read(path)
				if err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%v\n", filepath.Base(path), err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tparts=%d resources=%d\n",
					filepath.Base(path), h.SavedAt.Format("2006-01-02 15:04:05"), h.Parts, h.Resources)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "inspect [file]",
		Short: "Print the inventory stored in a save (default: latest of --slot)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, _ := cmd.Flags().GetString("data")
			configDir, _ := cmd.Flags().GetString("configs")
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				path = savefile.Latest(filepath.Join(dataDir, "saves"), slot)
			}
			if path == "" {
				return fmt.Errorf("no saves found for slot %q", slot)
			}
			_, root, err := savefile.ReadNode(path)
			if err != nil {
				return err
			}
			l := ledger.New()
			if _, err := ledger.Decode(root, l); err != nil {
				return err
			}
			var p *pricing.Pricer
			if cats, err := catalogs.Load(configDir); err == nil {
				p = pricing.New(cats, nil)
			}
			renderInventory(cmd.OutOrStdout(), filepath.Base(path), l, p)
			return nil
		},
	})
	return cmd
}

// renderInventory prints both catalogs with their stock value. p may be nil.
func renderInventory(w io.Writer, title string, l *ledger.Ledger, p *pricing.Pricer) {
	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")

	section := func(name string, c *ledger.Catalog, price func(string) float64) {
		b.WriteString(headerStyle.Render(name))
		b.WriteByte('\n')
		keys := c.Keys()
		sort.Strings(keys)
		if len(keys) == 0 {
			b.WriteString(dimStyle.Render("  (empty)"))
			b.WriteByte('\n')
		}
		width := 0
		for _, k := range keys {
			width = max(width, len(k))
		}
		total := 0.0
		for _, k := range keys {
			q := c.Get(k)
			line := fmt.Sprintf("  %-*s %s", width, k, qtyStyle.Render(fmt.Sprintf("%10.2f", q)))
			if price != nil {
				v := q * price(k)
				total += v
				line += dimStyle.Render(fmt.Sprintf("  √%.2f", v))
			}
			b.WriteString(line)
			b.WriteByte('\n')
		}
		if price != nil && len(keys) > 0 {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  value √%.2f", total)))
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}

	var partPrice, resPrice func(string) float64
	if p != nil {
		partPrice = p.PriceByIdentity
		resPrice = p.ResourcePrice
	}
	section("Parts", l.Parts, partPrice)
	section("Resources", l.Resources, resPrice)
	fmt.Fprint(w, b.String())
}
