package model

import "time"

// Problem carries the fields of a problem that result rendering needs.
type Problem struct {
	ID               int64  `json:"id" yaml:"id"`
	Name             string `json:"name" yaml:"name"`
	TimeLimitMs      int    `json:"time_limit_ms" yaml:"time_limit_ms"`
	MemoryLimitBytes int64  `json:"memory_limit_bytes" yaml:"memory_limit_bytes"`
}

// User is the submitter as shown next to a result.
type User struct {
	ID   int64  `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// LabelKey identifies a task inside a contest.
type LabelKey struct {
	ContestID        int64
	ContestProblemID int64
}

// ContestTaskLabel is the display label of a problem inside a contest, such as "A".
type ContestTaskLabel struct {
	ContestID        int64  `json:"contest_id" yaml:"contest_id"`
	ContestProblemID int64  `json:"contest_problem_id" yaml:"contest_problem_id"`
	Label            string `json:"label" yaml:"label"`
}

// Key returns the lookup key of the label.
func (l ContestTaskLabel) Key() LabelKey {
	return LabelKey{ContestID: l.ContestID, ContestProblemID: l.ContestProblemID}
}

// Viewer is the identity on whose behalf a result is rendered.
// A nil UserID is an anonymous visitor.
type Viewer struct {
	UserID     *int64
	Privileged bool
}

// Anonymous is the viewer of an unauthenticated request.
func Anonymous() Viewer { return Viewer{} }

// Owns reports whether the viewer is the given user.
func (v Viewer) Owns(userID int64) bool {
	return v.UserID != nil && *v.UserID == userID
}

// FinalStatusEvent is published when a result reaches a terminal status.
type FinalStatusEvent struct {
	ResultID   int64     `json:"result_id"`
	UserID     int64     `json:"user_id"`
	ProblemID  int64     `json:"problem_id"`
	ContestID  *int64    `json:"contest_id,omitempty"`
	Status     Status    `json:"status"`
	Attempts   int       `json:"attempts"`
	FinishedAt time.Time `json:"finished_at"`
}
