package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanvis/internal/builder"
)

func newBuildersCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "builders",
		Short: "List the available document builders",
		Long: `List the named builders that can be selected with --builder or
index.builder in .amanvis.yaml.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries := builder.Entries()

			if jsonOutput {
				type row struct {
					Name        string `json:"name"`
					Description string `json:"description"`
				}
				rows := make([]row, len(entries))
				for i, e := range entries {
					rows[i] = row{Name: e.Name, Description: e.Description}
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, e := range entries {
				_, _ = fmt.Fprintf(tw, "%s\t%s\n", e.Name, e.Description)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
