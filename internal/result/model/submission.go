package model

import (
	"encoding/json"
	"time"
)

// Scope says where a submission was made. It is either StandaloneScope or ContestScope.
type Scope interface {
	// ProblemRef returns the id of the problem the submission solves.
	ProblemRef() int64
	isScope()
}

// StandaloneScope is a submission to a problem outside any contest.
type StandaloneScope struct {
	ProblemID int64 `json:"problem_id"`
}

func (s StandaloneScope) ProblemRef() int64 { return s.ProblemID }
func (StandaloneScope) isScope()            {}

// ContestScope is a submission to a problem placed in a contest.
// ContestProblemID is the id of that problem; together with ContestID it keys the task label.
type ContestScope struct {
	ContestID        int64 `json:"contest_id"`
	ContestProblemID int64 `json:"contest_problem_id"`
}

func (s ContestScope) ProblemRef() int64 { return s.ContestProblemID }
func (ContestScope) isScope()            {}

// Submission is the part of a result that the grading worker consumes.
// The source text lives with the submitter service and is not loaded here.
type Submission struct {
	UserID      int64     `json:"user_id"`
	Language    string    `json:"language"`
	SubmittedAt time.Time `json:"submitted_at"`
	Scope       Scope
}

// ContestID returns the contest id and true for contest submissions.
func (s Submission) ContestID() (int64, bool) {
	if c, ok := s.Scope.(ContestScope); ok {
		return c.ContestID, true
	}
	return 0, false
}

// ProblemID returns the solved problem id, or 0 when the scope is missing.
func (s Submission) ProblemID() int64 {
	if s.Scope == nil {
		return 0
	}
	return s.Scope.ProblemRef()
}

type submissionJSON struct {
	UserID      int64     `json:"user_id"`
	Language    string    `json:"language"`
	SubmittedAt time.Time `json:"submitted_at"`
	ProblemID   int64     `json:"problem_id"`
	ContestID   *int64    `json:"contest_id,omitempty"`
}

// MarshalJSON flattens the scope into problem_id and an optional contest_id.
func (s Submission) MarshalJSON() ([]byte, error) {
	out := submissionJSON{
		UserID:      s.UserID,
		Language:    s.Language,
		SubmittedAt: s.SubmittedAt,
		ProblemID:   s.ProblemID(),
	}
	if id, ok := s.ContestID(); ok {
		out.ContestID = &id
	}
	return json.Marshal(out)
}

func (s *Submission) UnmarshalJSON(data []byte) error {
	var in submissionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	s.UserID = in.UserID
	s.Language = in.Language
	s.SubmittedAt = in.SubmittedAt
	if in.ContestID != nil {
		s.Scope = ContestScope{ContestID: *in.ContestID, ContestProblemID: in.ProblemID}
	} else {
		s.Scope = StandaloneScope{ProblemID: in.ProblemID}
	}
	return nil
}
