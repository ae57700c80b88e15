package main

import (
	"github.com/charmbracelet/lipgloss"

	"kakeibo/internal/core"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	incomeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("34"))
	expenseStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("34")).Bold(true)
)

// yen renders a signed amount, coloured by sign.
func yen(n int64) string {
	s := core.FormatYen(n)
	if n < 0 {
		return expenseStyle.Render(s)
	}
	return incomeStyle.Render(s)
}
