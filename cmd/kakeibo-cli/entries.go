package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"kakeibo/internal/core"
	"kakeibo/internal/sheets"
)

// withLedger opens the ledger, runs fn and releases the ledger.
func withLedger(ctx context.Context, d *Deps, backendName string, fn func(sheets.Ledger) error) (err error) {
	ledger, release, err := d.OpenLedger(ctx, backendName)
	if err != nil {
		return err
	}
	defer func() {
		if release == nil {
			return
		}
		if cerr := release(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(ledger)
}

func addCmd(d *Deps, backendName func() string) *cobra.Command {
	var date, typ, category, description string
	cmd := &cobra.Command{
		Use:   "add <amount>",
		Short: "Append an entry to the ledger",
		Long: `Append one entry. The amount is entered without a sign; expenses are
stored as negative amounts.

Example:
  kakeibo-cli add 1200 --category 食費 --description ランチ
  kakeibo-cli add 250000 --type income --category 給料 --date 2024-05-25`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entryType, err := core.ParseEntryType(typ)
			if err != nil {
				return err
			}
			magnitude, err := core.ParseMagnitude(args[0])
			if err != nil {
				return fmt.Errorf("amount %q: %w", args[0], err)
			}
			day := core.Today()
			if date != "" {
				if day, err = core.ParseDate(date); err != nil {
					return fmt.Errorf("date %q must be YYYY-MM-DD", date)
				}
			}
			entry, err := core.NewEntry(day, description, category, magnitude, entryType)
			if err != nil {
				return err
			}

			return withLedger(cmd.Context(), d, backendName(), func(l sheets.Ledger) error {
				m, err := l.Append(cmd.Context(), entry)
				if err != nil {
					return err
				}
				fmt.Fprintf(d.Stdout, "%s #%d %s %s %s\n",
					successStyle.Render("保存しました"), m.Position, entry.Date, entry.Category, yen(entry.Amount))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "entry date, YYYY-MM-DD (default today)")
	cmd.Flags().StringVarP(&typ, "type", "t", string(core.Expense), "expense or income")
	cmd.Flags().StringVarP(&category, "category", "c", "", "category, see 'kakeibo-cli categories'")
	cmd.Flags().StringVarP(&description, "description", "d", "", "free text, up to 200 characters")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func listCmd(d *Deps, backendName func() string) *cobra.Command {
	var typ string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every entry with its position",
		Long: `List the ledger in sheet order. The # column is the position that
'kakeibo-cli delete' expects; it changes after every append or delete.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var filter core.EntryType
			if typ != "" {
				t, err := core.ParseEntryType(typ)
				if err != nil {
					return err
				}
				filter = t
			}
			return withLedger(cmd.Context(), d, backendName(), func(l sheets.Ledger) error {
				entries, err := l.ListAll(cmd.Context())
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintln(d.Stdout, mutedStyle.Render("データがまだありません。"))
					return nil
				}
				writeEntries(d, entries, filter)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&typ, "type", "t", "", "show only expense or income rows")
	return cmd
}

func writeEntries(d *Deps, entries []core.Entry, filter core.EntryType) {
	header := []string{"#", "日付", "内容", "カテゴリ", "金額", "収支"}
	var rows [][]string
	for i, e := range entries {
		if filter != "" && e.Type != filter {
			continue
		}
		rows = append(rows, []string{
			strconv.Itoa(i), e.Date.String(), e.Description, e.Category, yen(e.Amount), e.Type.Label(),
		})
	}
	fmt.Fprint(d.Stdout, renderTable(header, rows))
	fmt.Fprintf(d.Stdout, "\n現在の残高 %s\n", yen(core.Balance(entries)))
}

// renderTable pads cells to the widest cell of each column, measured in
// terminal cells so styled and double-width text line up.
func renderTable(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for _, row := range append([][]string{header}, rows...) {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	var b strings.Builder
	line := func(row []string, style func(string) string) {
		for i, cell := range row {
			if i > 0 {
				b.WriteString("  ")
			}
			b.WriteString(style(cell))
			b.WriteString(strings.Repeat(" ", widths[i]-lipgloss.Width(cell)))
		}
		b.WriteByte('\n')
	}
	line(header, func(s string) string { return headerStyle.Render(s) })
	for _, row := range rows {
		line(row, func(s string) string { return s })
	}
	return b.String()
}

func deleteCmd(d *Deps, backendName func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <position>",
		Short: "Delete the entry at a position",
		Long: `Delete one entry by the # shown in 'kakeibo-cli list'. Positions shift
after every change, so list again before deleting a second row.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			position, err := strconv.Atoi(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("invalid position %q: must be a number", args[0])
			}
			return withLedger(cmd.Context(), d, backendName(), func(l sheets.Ledger) error {
				m, err := l.DeleteAt(cmd.Context(), position)
				if err != nil {
					return err
				}
				fmt.Fprintf(d.Stdout, "%s #%d\n", successStyle.Render("削除しました"), m.Position)
				if m.Stale {
					fmt.Fprintln(d.Stdout, mutedStyle.Render("positions have changed; run 'kakeibo-cli list' again"))
				}
				return nil
			})
		},
	}
}

func balanceCmd(d *Deps, backendName func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show income, expense and the running balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withLedger(cmd.Context(), d, backendName(), func(l sheets.Ledger) error {
				entries, err := l.ListAll(cmd.Context())
				if err != nil {
					return err
				}
				s := core.Summarize(entries)
				fmt.Fprintf(d.Stdout, "収入 %s\n支出 %s\n現在の残高 %s (%d件)\n",
					yen(s.Income), yen(s.Expense), yen(s.Balance), s.Count)
				return nil
			})
		},
	}
}
