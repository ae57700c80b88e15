package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"kakeibo/internal/core"
)

func categoriesCmd(d *Deps) *cobra.Command {
	var typ string
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List the categories accepted for each entry type",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			types := []core.EntryType{core.Expense, core.Income}
			if typ != "" {
				t, err := core.ParseEntryType(typ)
				if err != nil {
					return err
				}
				types = []core.EntryType{t}
			}
			for _, t := range types {
				fmt.Fprintf(d.Stdout, "%s: %s\n", headerStyle.Render(t.Label()), strings.Join(core.CategoriesFor(t), ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&typ, "type", "t", "", "expense or income")
	return cmd
}
