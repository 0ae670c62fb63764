package cmd

import (
	"fmt"
	"sort"

	"github.com/bnema/waycheck/internal/config"
	"github.com/bnema/waycheck/internal/ui"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect waycheck configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, ui.FormatHeader(ui.IconPhase, "Current configuration"))
		fmt.Fprintln(out, ui.SubtleStyle.Render("Config file: "+config.GetConfigPath()))
		fmt.Fprintln(out)

		for _, line := range flattenSettings("", config.Settings()) {
			fmt.Fprintln(out, "  "+ui.FormatKeyValue(line.key, line.value))
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
}

type setting struct {
	key   string
	value any
}

// flattenSettings turns nested viper settings into sorted dotted keys.
func flattenSettings(prefix string, m map[string]any) []setting {
	var out []setting
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok {
			out = append(out, flattenSettings(key, sub)...)
			continue
		}
		out = append(out, setting{key: key, value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].key < out[j].key
	})
	return out
}
