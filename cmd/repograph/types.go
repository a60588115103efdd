package main

// CLIResult is the top-level JSON envelope for every command.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLIFunction is a JSON-friendly function node.
type CLIFunction struct {
	ID        int64  `json:"id"`
	NodeID    string `json:"node_id"`
	Name      string `json:"name"`
	File      string `json:"file"`
	Language  string `json:"language"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

// CLIFile is a JSON-friendly analyzed file.
type CLIFile struct {
	Path          string `json:"path"`
	Language      string `json:"language"`
	Status        string `json:"status"`
	Error         string `json:"error,omitempty"`
	FunctionCount int    `json:"function_count"`
}

// CLIDocHit is a documentation search result.
type CLIDocHit struct {
	ID       string  `json:"id"`
	Score    float64 `json:"score"`
	File     string  `json:"file"`
	Function string  `json:"function"`
	Language string  `json:"language"`
	Text     string  `json:"text"`
}

// CLIAskMatch is one ranked answer to an ask query.
type CLIAskMatch struct {
	Function CLIFunction `json:"function"`
	Score    float64     `json:"score"`
	Reasons  []string    `json:"reasons"`
	Doc      string      `json:"doc,omitempty"`
	Callers  []string    `json:"callers"`
	Callees  []string    `json:"callees"`
}

// CLIFileError is a file that failed analysis.
type CLIFileError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// CLIAnalysis reports one completed analysis job.
type CLIAnalysis struct {
	JobID      string         `json:"job_id"`
	Root       string         `json:"root"`
	Database   string         `json:"database"`
	Files      int            `json:"files"`
	Parsed     int            `json:"parsed"`
	Failed     []CLIFileError `json:"failed"`
	Functions  int            `json:"functions"`
	Edges      int            `json:"edges"`
	Documents  int            `json:"documents"`
	DurationMS int64          `json:"duration_ms"`
}

// CLIGraphNode is a node in a transitive call graph.
type CLIGraphNode struct {
	CLIFunction
	Depth int `json:"depth"`
}

// CLICallGraph is a transitive call graph rooted at one function.
type CLICallGraph struct {
	Root  CLIFunction    `json:"root"`
	Nodes []CLIGraphNode `json:"nodes"`
	Edges [][2]string    `json:"edges"`
	Depth int            `json:"depth"`
}
