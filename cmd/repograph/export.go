package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var flagOutput string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the whole call graph",
	Long:  "Writes every function node and call edge. JSON output is the graph object itself (nodes, edges, summary), suitable for visualization tools.",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "write JSON to this file instead of stdout")
}

func runExport(cmd *cobra.Command, args []string) error {
	e, err := openQueryEngine()
	if err != nil {
		return outputError(cmd, "export", err)
	}
	defer e.Close()

	g, err := e.Query().Export()
	if err != nil {
		return outputError(cmd, "export", err)
	}

	if flagOutput != "" {
		data, err := json.MarshalIndent(g, "", "  ")
		if err != nil {
			return outputError(cmd, "export", err)
		}
		if err := os.WriteFile(flagOutput, append(data, '\n'), 0o644); err != nil {
			return outputError(cmd, "export", fmt.Errorf("writing %s: %w", flagOutput, err))
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d functions and %d calls to %s\n",
			g.Summary.TotalNodes, g.Summary.TotalEdges, flagOutput)
		return nil
	}
	if flagFormat == "text" {
		return outputResultText(cmd.OutOrStdout(), CLIResult{Command: "export", Results: *g})
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(g)
}
