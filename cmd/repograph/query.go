package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/repograph"
)

var (
	flagLimit  int
	flagOffset int
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the call graph and documentation index",
	Long:  "Run queries against an analyzed repository. Line numbers are 1-based.",
}

func init() {
	queryCmd.PersistentFlags().IntVar(&flagLimit, "limit", 50, "pagination limit (max 500)")
	queryCmd.PersistentFlags().IntVar(&flagOffset, "offset", 0, "pagination offset")

	functionsCmd.Flags().String("name", "", "case-insensitive substring of the function name")
	functionsCmd.Flags().String("file", "", "repository-relative file path")
	functionsCmd.Flags().String("language", "", "language tag")
	callGraphCmd.Flags().String("file", "", "file defining the root function, when the name is ambiguous")
	callGraphCmd.Flags().Int("depth", 3, "maximum traversal depth")
	callGraphCmd.Flags().Bool("reverse", false, "follow callers instead of callees")
	filesCmd.Flags().Bool("failed", false, "only files that could not be read or parsed")
	askCmd.Flags().Int("top", repograph.DefaultAskLimit, "number of matches to return")

	queryCmd.AddCommand(functionsCmd)
	queryCmd.AddCommand(callersCmd)
	queryCmd.AddCommand(calleesCmd)
	queryCmd.AddCommand(callGraphCmd)
	queryCmd.AddCommand(filesCmd)
	queryCmd.AddCommand(docsCmd)
	queryCmd.AddCommand(askCmd)
	queryCmd.AddCommand(summaryCmd)
}

// --- Helpers ---

// openQueryEngine opens the Engine of the repository containing the
// working directory. The database must already exist.
func openQueryEngine() (*repograph.Engine, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting cwd: %w", err)
	}
	s, err := loadSettings(cwd)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(s.cfg.DBPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: %s (run 'repograph analyze' first)", s.cfg.DBPath)
	}
	return s.openEngine()
}

// paginate applies --limit and --offset to items and returns the page with
// the total count.
func paginate[T any](items []T) ([]T, *int) {
	total := len(items)
	limit := flagLimit
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	start := min(max(flagOffset, 0), total)
	end := min(start+limit, total)
	page := items[start:end]
	if page == nil {
		page = []T{}
	}
	return page, &total
}

// outputResult marshals a CLIResult to the command's stdout in the selected
// format.
func outputResult(cmd *cobra.Command, result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(cmd.OutOrStdout(), result)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(cmd *cobra.Command, command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}

func functionToCLI(fn *repograph.Function) CLIFunction {
	return CLIFunction{
		ID:        fn.ID,
		NodeID:    repograph.NodeID(fn.FilePath, fn.Name),
		Name:      fn.Name,
		File:      fn.FilePath,
		Language:  fn.Language,
		StartLine: fn.StartLine,
		EndLine:   fn.EndLine,
	}
}

func functionsToCLI(fns []*repograph.Function) []CLIFunction {
	out := make([]CLIFunction, 0, len(fns))
	for _, fn := range fns {
		out = append(out, functionToCLI(fn))
	}
	return out
}

// --- Function Commands ---

var functionsCmd = &cobra.Command{
	Use:   "functions",
	Short: "List function nodes",
	Args:  cobra.NoArgs,
	RunE:  runFunctions,
}

func runFunctions(cmd *cobra.Command, args []string) error {
	e, err := openQueryEngine()
	if err != nil {
		return outputError(cmd, "functions", err)
	}
	defer e.Close()

	name, _ := cmd.Flags().GetString("name")
	file, _ := cmd.Flags().GetString("file")
	language, _ := cmd.Flags().GetString("language")
	fns, err := e.Query().Functions(repograph.FunctionFilter{Name: name, File: file, Language: language})
	if err != nil {
		return outputError(cmd, "functions", err)
	}
	page, total := paginate(functionsToCLI(fns))
	return outputResult(cmd, CLIResult{Command: "functions", Results: page, TotalCount: total})
}

var callersCmd = &cobra.Command{
	Use:   "callers <name>",
	Short: "Functions that call any function with this name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNeighbors(cmd, "callers", args[0], (*repograph.QueryBuilder).Callers)
	},
}

var calleesCmd = &cobra.Command{
	Use:   "callees <name>",
	Short: "Functions called by any function with this name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNeighbors(cmd, "callees", args[0], (*repograph.QueryBuilder).Callees)
	},
}

func runNeighbors(cmd *cobra.Command, command, name string, query func(*repograph.QueryBuilder, string) ([]*repograph.Function, error)) error {
	e, err := openQueryEngine()
	if err != nil {
		return outputError(cmd, command, err)
	}
	defer e.Close()

	fns, err := query(e.Query(), name)
	if err != nil {
		return outputError(cmd, command, err)
	}
	page, total := paginate(functionsToCLI(fns))
	return outputResult(cmd, CLIResult{Command: command, Results: page, TotalCount: total})
}

var callGraphCmd = &cobra.Command{
	Use:   "callgraph <name>",
	Short: "Transitive callees (or callers with --reverse) of one function",
	Args:  cobra.ExactArgs(1),
	RunE:  runCallGraph,
}

func runCallGraph(cmd *cobra.Command, args []string) error {
	e, err := openQueryEngine()
	if err != nil {
		return outputError(cmd, "callgraph", err)
	}
	defer e.Close()

	file, _ := cmd.Flags().GetString("file")
	depth, _ := cmd.Flags().GetInt("depth")
	reverse, _ := cmd.Flags().GetBool("reverse")

	q := e.Query()
	var roots []*repograph.Function
	if file != "" {
		fn, err := q.Function(args[0], file)
		if err != nil {
			return outputError(cmd, "callgraph", err)
		}
		if fn == nil {
			return outputError(cmd, "callgraph", fmt.Errorf("no function named %q in %s", args[0], file))
		}
		roots = append(roots, fn)
	} else if roots, err = q.FunctionsByName(args[0]); err != nil {
		return outputError(cmd, "callgraph", err)
	}
	switch {
	case len(roots) == 0:
		return outputError(cmd, "callgraph", fmt.Errorf("no function named %q", args[0]))
	case len(roots) > 1:
		files := make([]string, 0, len(roots))
		for _, fn := range roots {
			files = append(files, fn.FilePath)
		}
		return outputError(cmd, "callgraph", fmt.Errorf("%q is defined in several files (%s); pass --file", args[0], strings.Join(files, ", ")))
	}

	var g *repograph.CallGraph
	if reverse {
		g, err = q.TransitiveCallers(roots[0].ID, depth)
	} else {
		g, err = q.TransitiveCallees(roots[0].ID, depth)
	}
	if err != nil {
		return outputError(cmd, "callgraph", err)
	}

	out := CLICallGraph{Root: functionToCLI(roots[0]), Depth: g.Depth, Edges: [][2]string{}}
	nodeIDs := make(map[int64]string, len(g.Nodes))
	for _, n := range g.Nodes {
		fn := functionToCLI(&n.Function)
		nodeIDs[fn.ID] = fn.NodeID
		out.Nodes = append(out.Nodes, CLIGraphNode{CLIFunction: fn, Depth: n.Depth})
	}
	for _, edge := range g.Edges {
		out.Edges = append(out.Edges, [2]string{nodeIDs[edge.CallerID], nodeIDs[edge.CalleeID]})
	}
	return outputResult(cmd, CLIResult{Command: "callgraph", Results: out})
}

// --- Repository Commands ---

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List analyzed files, including failed ones",
	Args:  cobra.NoArgs,
	RunE:  runFiles,
}

func runFiles(cmd *cobra.Command, args []string) error {
	e, err := openQueryEngine()
	if err != nil {
		return outputError(cmd, "files", err)
	}
	defer e.Close()

	failed, _ := cmd.Flags().GetBool("failed")
	var files []*repograph.File
	if failed {
		files, err = e.Query().FailedFiles()
	} else {
		files, err = e.Query().Files()
	}
	if err != nil {
		return outputError(cmd, "files", err)
	}
	out := make([]CLIFile, 0, len(files))
	for _, f := range files {
		out = append(out, CLIFile{
			Path:          f.Path,
			Language:      f.Language,
			Status:        f.Status,
			Error:         f.Error,
			FunctionCount: f.FunctionCount,
		})
	}
	page, total := paginate(out)
	return outputResult(cmd, CLIResult{Command: "files", Results: page, TotalCount: total})
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Counts for the analyzed repository",
	Args:  cobra.NoArgs,
	RunE:  runSummary,
}

func runSummary(cmd *cobra.Command, args []string) error {
	e, err := openQueryEngine()
	if err != nil {
		return outputError(cmd, "summary", err)
	}
	defer e.Close()

	s, err := e.Query().Summary()
	if err != nil {
		return outputError(cmd, "summary", err)
	}
	return outputResult(cmd, CLIResult{Command: "summary", Results: *s})
}

// --- Search Commands ---

var docsCmd = &cobra.Command{
	Use:   "docs <query>",
	Short: "Full-text search over function documentation",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDocs,
}

func runDocs(cmd *cobra.Command, args []string) error {
	e, err := openQueryEngine()
	if err != nil {
		return outputError(cmd, "docs", err)
	}
	defer e.Close()

	hits, err := e.Query().SearchDocs(cmd.Context(), strings.Join(args, " "), flagLimit)
	if err != nil {
		return outputError(cmd, "docs", err)
	}
	out := make([]CLIDocHit, 0, len(hits))
	for _, h := range hits {
		out = append(out, CLIDocHit{
			ID:       h.ID,
			Score:    h.Score,
			File:     h.FilePath,
			Function: h.FunctionName,
			Language: h.Language,
			Text:     h.Text,
		})
	}
	return outputResult(cmd, CLIResult{Command: "docs", Results: out})
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Rank functions by relevance to a question",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	e, err := openQueryEngine()
	if err != nil {
		return outputError(cmd, "ask", err)
	}
	defer e.Close()

	limit, _ := cmd.Flags().GetInt("top")
	matches, err := e.Query().Ask(cmd.Context(), strings.Join(args, " "), limit)
	if err != nil {
		return outputError(cmd, "ask", err)
	}
	out := make([]CLIAskMatch, 0, len(matches))
	for _, m := range matches {
		out = append(out, CLIAskMatch{
			Function: functionToCLI(&m.Function),
			Score:    m.Score,
			Reasons:  m.Reasons,
			Doc:      m.Doc,
			Callers:  nonNil(m.Callers),
			Callees:  nonNil(m.Callees),
		})
	}
	return outputResult(cmd, CLIResult{Command: "ask", Results: out})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
