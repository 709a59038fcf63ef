package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"scrapyard.dev/internal/catalogs"
	"scrapyard.dev/internal/pricing"
)

func newPriceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "price <identity>...",
		Short: "Show the dry price of parts and the unit price of resources",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("configs")
			cats, err := catalogs.Load(configDir)
			if err != nil {
				return err
			}
			p := pricing.New(cats, nil)
			out := cmd.OutOrStdout()
			for _, id := range args {
				id = strings.TrimSpace(id)
				switch {
				case p.IsResource(id):
					fmt.Fprintf(out, "%s\tresource\t%s\t%g\n", id, pricing.ResourceShortCode(id), p.ResourcePrice(id))
				default:
					if _, ok := cats.Parts.Lookup(id); ok {
						fmt.Fprintf(out, "%s\tpart\t%g\n", id, p.PriceByIdentity(id))
						continue
					}
					hint := ""
					if s := cats.Parts.Suggest(id, 3); len(s) > 0 {
						hint = " (did you mean " + strings.Join(s, ", ") + "?)"
					}
					fmt.Fprintf(out, "%s\tunknown%s\n", id, hint)
				}
			}
			return nil
		},
	}
}
