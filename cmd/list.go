package cmd

import (
	"fmt"

	"github.com/bnema/waycheck/internal/conformance"
	"github.com/bnema/waycheck/internal/ui"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List conformance cases",
	RunE: func(cmd *cobra.Command, args []string) error {
		cases := conformance.Cases()

		rows := make([][]string, 0, len(cases))
		for _, c := range cases {
			rows = append(rows, []string{c.Name, c.Description})
		}

		t := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(ui.ColorSubtle)).
			StyleFunc(func(row, col int) lipgloss.Style {
				switch {
				case row == table.HeaderRow:
					return lipgloss.NewStyle().
						Foreground(ui.ColorPrimary).
						Bold(true).
						Padding(0, 1)
				case col == 0:
					return lipgloss.NewStyle().
						Foreground(ui.ColorInfo).
						Bold(true).
						Padding(0, 1)
				default:
					return lipgloss.NewStyle().
						Foreground(ui.ColorText).
						Padding(0, 1)
				}
			}).
			Headers("CASE", "DESCRIPTION").
			Rows(rows...)

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, ui.FormatHeader(ui.IconPhase, "Conformance cases"))
		fmt.Fprintln(out, t.String())
		fmt.Fprintln(out, ui.SubtleStyle.Render(fmt.Sprintf("Total: %d case(s)", len(cases))))
		return nil
	},
}
