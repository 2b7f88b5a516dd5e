package model

import (
	"encoding/json"
	"fmt"
)

// Status is the internal grading outcome of a submission.
// Pending is the only non-terminal value.
type Status int

const (
	StatusPending Status = iota
	StatusCompilationError
	StatusRuntimeError
	StatusTimeLimitExceeded
	StatusMemoryLimitExceeded
	StatusWrongAnswer
	StatusAccepted
	StatusServerError
	StatusTooEarly
	StatusUnpolite
	StatusTooManyLines
	StatusPresentationError
	StatusWrongLanguage
	StatusSubmissionSourceNotFound
	StatusAccountNotFound
	StatusNotYetSolved

	// StatusCount is the number of defined statuses. Keep it last.
	StatusCount
)

var statusNames = [StatusCount]string{
	StatusPending:                  "Pending",
	StatusCompilationError:         "CompilationError",
	StatusRuntimeError:             "RuntimeError",
	StatusTimeLimitExceeded:        "TimeLimitExceeded",
	StatusMemoryLimitExceeded:      "MemoryLimitExceeded",
	StatusWrongAnswer:              "WrongAnswer",
	StatusAccepted:                 "Accepted",
	StatusServerError:              "ServerError",
	StatusTooEarly:                 "TooEarly",
	StatusUnpolite:                 "Unpolite",
	StatusTooManyLines:             "TooManyLines",
	StatusPresentationError:        "PresentationError",
	StatusWrongLanguage:            "WrongLanguage",
	StatusSubmissionSourceNotFound: "SubmissionSourceNotFound",
	StatusAccountNotFound:          "AccountNotFound",
	StatusNotYetSolved:             "NotYetSolved",
}

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	return s >= 0 && s < StatusCount
}

// Terminal reports whether s is a final grading outcome.
func (s Status) Terminal() bool {
	return s.Valid() && s != StatusPending
}

func (s Status) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// ParseStatus resolves a status by its internal name.
func ParseStatus(name string) (Status, error) {
	for i, n := range statusNames {
		if n == name {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", name)
}

// MarshalJSON encodes the status by name. Undefined values are encoded as numbers
// so they survive a round trip and are rejected later by the status mapper.
func (s Status) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return json.Marshal(int(s))
	}
	return json.Marshal(statusNames[s])
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		parsed, err := ParseStatus(name)
		if err != nil {
			return err
		}
		*s = parsed
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("status must be a name or number: %w", err)
	}
	*s = Status(n)
	return nil
}
