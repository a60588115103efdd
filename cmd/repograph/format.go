package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/jward/repograph"
)

// formatFunctionsText formats CLIFunction results as aligned columns.
func formatFunctionsText(w io.Writer, fns []CLIFunction) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tLANGUAGE\tFILE\tLINES")
	for _, f := range fns {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d-%d\n",
			f.ID, f.Name, f.Language, f.File, f.StartLine, f.EndLine)
	}
	tw.Flush()
}

// formatFilesText formats CLIFile results as aligned columns.
func formatFilesText(w io.Writer, files []CLIFile) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tLANGUAGE\tSTATUS\tFUNCTIONS\tERROR")
	for _, f := range files {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", f.Path, f.Language, f.Status, f.FunctionCount, f.Error)
	}
	tw.Flush()
}

// formatDocHitsText formats documentation hits, one block per hit.
func formatDocHitsText(w io.Writer, hits []CLIDocHit) {
	for i, h := range hits {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s::%s (%.3f)\n", h.File, h.Function, h.Score)
		for _, line := range strings.Split(h.Text, "\n") {
			fmt.Fprintf(w, "    %s\n", line)
		}
	}
}

// formatAskText formats ranked ask matches with their reasons and
// neighbors.
func formatAskText(w io.Writer, matches []CLIAskMatch) {
	for i, m := range matches {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%d. %s (score %.2f)\n", i+1, m.Function.NodeID, m.Score)
		for _, r := range m.Reasons {
			fmt.Fprintf(w, "   - %s\n", r)
		}
		if m.Doc != "" {
			fmt.Fprintf(w, "   doc: %s\n", firstLine(m.Doc))
		}
		if len(m.Callers) > 0 {
			fmt.Fprintf(w, "   called by: %s\n", strings.Join(m.Callers, ", "))
		}
		if len(m.Callees) > 0 {
			fmt.Fprintf(w, "   calls: %s\n", strings.Join(m.Callees, ", "))
		}
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// formatSummaryText formats the graph summary as readable text.
func formatSummaryText(w io.Writer, s repograph.Summary) {
	fmt.Fprintln(w, "Repository Summary")
	fmt.Fprintln(w, "==================")
	fmt.Fprintf(w, "Root: %s\n", s.Root)
	fmt.Fprintf(w, "Analyzed: %s\n", s.AnalyzedAt)
	fmt.Fprintf(w, "Files: %d (%d failed)\n", s.Files, s.FailedFiles)
	fmt.Fprintf(w, "Functions: %d\n", s.Functions)
	fmt.Fprintf(w, "Calls: %d\n", s.Calls)
	fmt.Fprintf(w, "Documented: %d\n", s.Documents)

	if len(s.Languages) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Languages:")
		langs := make([]string, 0, len(s.Languages))
		for l := range s.Languages {
			langs = append(langs, l)
		}
		sort.Strings(langs)
		for _, l := range langs {
			fmt.Fprintf(w, "  %s: %d files\n", l, s.Languages[l])
		}
	}
}

// formatAnalysisText formats a completed analysis.
func formatAnalysisText(w io.Writer, a CLIAnalysis) {
	fmt.Fprintf(w, "Analyzed %s in %dms (job %s)\n", a.Root, a.DurationMS, a.JobID)
	fmt.Fprintf(w, "Files: %d discovered, %d parsed, %d failed\n", a.Files, a.Parsed, len(a.Failed))
	fmt.Fprintf(w, "Functions: %d\n", a.Functions)
	fmt.Fprintf(w, "Call edges: %d\n", a.Edges)
	fmt.Fprintf(w, "Documented functions: %d\n", a.Documents)
	fmt.Fprintf(w, "Database: %s\n", a.Database)
	for _, f := range a.Failed {
		fmt.Fprintf(w, "  failed: %s: %s\n", f.Path, f.Error)
	}
}

// formatCallGraphText prints each reached node indented by its depth.
func formatCallGraphText(w io.Writer, g CLICallGraph) {
	for _, n := range g.Nodes {
		fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", n.Depth), n.NodeID)
	}
}

// formatGraphText prints one "from -> to" line per edge.
func formatGraphText(w io.Writer, g repograph.Graph) {
	for _, e := range g.Edges {
		fmt.Fprintf(w, "%s -> %s\n", e.From, e.To)
	}
	fmt.Fprintf(w, "\n%d functions, %d calls, %d files\n",
		g.Summary.TotalNodes, g.Summary.TotalEdges, g.Summary.Files)
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLIFunction:
		formatFunctionsText(w, v)
	case []CLIFile:
		formatFilesText(w, v)
	case []CLIDocHit:
		formatDocHitsText(w, v)
	case []CLIAskMatch:
		formatAskText(w, v)
	case repograph.Summary:
		formatSummaryText(w, v)
	case CLIAnalysis:
		formatAnalysisText(w, v)
	case CLICallGraph:
		formatCallGraphText(w, v)
	case repograph.Graph:
		formatGraphText(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}

	if result.TotalCount != nil {
		count := *result.TotalCount
		shown := resultLen(result.Results)
		if shown < count {
			fmt.Fprintf(w, "\nShowing %d of %d results\n", shown, count)
		}
	}
	return nil
}

// resultLen returns the length of a result slice, or 1 for a single value.
func resultLen(v any) int {
	switch r := v.(type) {
	case []CLIFunction:
		return len(r)
	case []CLIFile:
		return len(r)
	case []CLIDocHit:
		return len(r)
	case []CLIAskMatch:
		return len(r)
	case nil:
		return 0
	default:
		return 1
	}
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
