package projector

import (
	"time"

	"judgeresult/internal/result/status"
)

// View is the client facing rendering of one result.
// Optional blocks are nil when the viewer may not see them or the caller did not ask.
type View struct {
	ResultID    int64           `json:"result_id"`
	Language    string          `json:"language"`
	SubmittedAt time.Time       `json:"submitted_at"`
	ProblemName string          `json:"problem_name"`
	Status      status.External `json:"status"`
	UserID      int64           `json:"user_id"`
	UserName    string          `json:"user_name"`

	CompileOutput     *string `json:"compile_output,omitempty"`
	TotalMilliseconds *int    `json:"total_milliseconds,omitempty"`
	TotalBytes        *int64  `json:"total_bytes,omitempty"`
	PassedTests       *int    `json:"passed_tests,omitempty"`

	// Exactly one of ProblemID and Contest is set when FieldScope is selected.
	ProblemID *int64        `json:"problem_id,omitempty"`
	Contest   *ContestBlock `json:"contest,omitempty"`
}

// ContestBlock identifies the contest task a result belongs to.
type ContestBlock struct {
	ContestID int64  `json:"contest_id"`
	Label     string `json:"label"`
}

// Fields selects the optional blocks of a View.
type Fields uint8

const (
	FieldCompileOutput Fields = 1 << iota
	FieldTotals
	FieldPassedTests
	FieldScope

	// FieldsAll renders everything the viewer is allowed to see.
	FieldsAll = FieldCompileOutput | FieldTotals | FieldPassedTests | FieldScope
	// FieldsList is used for result tables, where compile logs are not shown.
	FieldsList = FieldsAll &^ FieldCompileOutput
)

// Has reports whether every field in want is selected.
func (f Fields) Has(want Fields) bool {
	return f&want == want
}

// UnknownLabel is shown for a contest task whose label cannot be found.
const UnknownLabel = "<unknown>"
