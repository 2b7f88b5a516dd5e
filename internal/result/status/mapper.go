// Package status maps internal grading statuses to the labels shown to clients.
package status

import (
	"fmt"

	"judgeresult/internal/result/model"
	appErr "judgeresult/pkg/errors"
)

// External is a client facing status label.
type External string

const (
	Pending             External = "Pending"
	CompilationError    External = "CompilationError"
	RuntimeError        External = "RuntimeError"
	TimeLimitExceeded   External = "TimeLimitExceeded"
	MemoryLimitExceeded External = "MemoryLimitExceeded"
	WrongAnswer         External = "WrongAnswer"
	Accepted            External = "Accepted"
	ServerError         External = "ServerError"
	TooEarly            External = "TooEarly"
	Unpolite            External = "Unpolite"
	TooManyLines        External = "TooManyLines"
	PresentationError   External = "PresentationError"
	WrongLanguage       External = "WrongLanguage"
	PRNotFound          External = "PRNotFound"
	LoginNotFound       External = "LoginNotFound"
	NotSolvedYet        External = "NotSolvedYet"
)

// table has one slot per internal status. An unfilled slot panics at init.
var table = [model.StatusCount]External{
	model.StatusPending:                  Pending,
	model.StatusCompilationError:         CompilationError,
	model.StatusRuntimeError:             RuntimeError,
	model.StatusTimeLimitExceeded:        TimeLimitExceeded,
	model.StatusMemoryLimitExceeded:      MemoryLimitExceeded,
	model.StatusWrongAnswer:              WrongAnswer,
	model.StatusAccepted:                 Accepted,
	model.StatusServerError:              ServerError,
	model.StatusTooEarly:                 TooEarly,
	model.StatusUnpolite:                 Unpolite,
	model.StatusTooManyLines:             TooManyLines,
	model.StatusPresentationError:        PresentationError,
	model.StatusWrongLanguage:            WrongLanguage,
	model.StatusSubmissionSourceNotFound: PRNotFound,
	model.StatusAccountNotFound:          LoginNotFound,
	model.StatusNotYetSolved:             NotSolvedYet,
}

func init() {
	for i, ext := range table {
		if ext == "" {
			panic(fmt.Sprintf("status: %s has no external mapping", model.Status(i)))
		}
	}
}

// ToExternal maps s to its client label.
// An undefined status is an integrity fault and is reported as InvalidStatus.
func ToExternal(s model.Status) (External, error) {
	if !s.Valid() {
		return "", appErr.Newf(appErr.InvalidStatus, "status %d has no external mapping", int(s)).
			WithDetail("status", int(s))
	}
	return table[s], nil
}

// MustToExternal is ToExternal for statuses known to be valid. It panics otherwise.
func MustToExternal(s model.Status) External {
	ext, err := ToExternal(s)
	if err != nil {
		panic(err)
	}
	return ext
}

// All returns every external label in internal status order.
func All() []External {
	out := make([]External, len(table))
	copy(out, table[:])
	return out
}
