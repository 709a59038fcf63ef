package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "scrapyard-admin",
		Short:         "Inspect saves, settlements and catalogs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("data", "./data", "runtime data directory")
	root.PersistentFlags().String("configs", "./configs", "config directory")

	root.AddCommand(newSavesCmd(), newDBCmd(), newPriceCmd(), newStateCmd())
	return root
}
