package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kakeibo/internal/cli"
)

func newRootCmd(d *Deps) *cobra.Command {
	var backendFlag string
	root := &cobra.Command{
		Use:   "kakeibo-cli",
		Short: "☁️ クラウド家計簿 from the terminal",
		Long: `kakeibo-cli reads and edits the household ledger kept in Google Sheets
(or in the memory/sqlite backends used for development).

Backend settings come from the same environment variables as the server.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&backendFlag, "backend", "", "override DATA_BACKEND (memory, sheets, sqlite)")
	root.SetOut(d.Stdout)
	root.SetErr(d.Stderr)

	backendName := func() string { return backendFlag }
	root.AddCommand(addCmd(d, backendName))
	root.AddCommand(listCmd(d, backendName))
	root.AddCommand(deleteCmd(d, backendName))
	root.AddCommand(balanceCmd(d, backendName))
	root.AddCommand(categoriesCmd(d))
	root.AddCommand(authCmd(d))
	return root
}

func main() {
	ctx, stop := cli.SignalContext(context.Background())
	err := newRootCmd(DefaultDeps()).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
