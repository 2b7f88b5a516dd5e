package model

import (
	"fmt"
	"time"
)

// SubmissionResult is the grading record of one submission.
// It is created in StatusPending and moves to a terminal status exactly once.
type SubmissionResult struct {
	ID                int64
	Submission        Submission
	Status            Status
	CompileOutput     *string
	PassedTests       *int
	TotalMilliseconds *int
	TotalBytes        *int64
	Claim             *ClaimInfo
	UpdatedAt         time.Time
}

// ClaimInfo is the lease bookkeeping of a pending result.
type ClaimInfo struct {
	Token      string
	Owner      string
	LeaseUntil time.Time
	Attempts   int
}

// Claimable reports whether a worker may take the result at now.
func (r *SubmissionResult) Claimable(now time.Time) bool {
	if r.Status != StatusPending {
		return false
	}
	return r.Claim == nil || r.Claim.Token == "" || !r.Claim.LeaseUntil.After(now)
}

// Clone returns a deep copy so stores can hand results out without sharing memory.
func (r *SubmissionResult) Clone() *SubmissionResult {
	if r == nil {
		return nil
	}
	cp := *r
	if r.CompileOutput != nil {
		v := *r.CompileOutput
		cp.CompileOutput = &v
	}
	if r.PassedTests != nil {
		v := *r.PassedTests
		cp.PassedTests = &v
	}
	if r.TotalMilliseconds != nil {
		v := *r.TotalMilliseconds
		cp.TotalMilliseconds = &v
	}
	if r.TotalBytes != nil {
		v := *r.TotalBytes
		cp.TotalBytes = &v
	}
	if r.Claim != nil {
		c := *r.Claim
		cp.Claim = &c
	}
	return &cp
}

// Claim is handed to the worker that won a pending result.
// Token fences every later write made under this claim.
type Claim struct {
	ResultID   int64      `json:"result_id"`
	Token      string     `json:"token"`
	Owner      string     `json:"owner"`
	LeaseUntil time.Time  `json:"lease_until"`
	Attempt    int        `json:"attempt"`
	Submission Submission `json:"submission"`
}

// Outcome is what a worker reports when grading finishes.
type Outcome struct {
	Status            Status  `json:"status"`
	CompileOutput     *string `json:"compile_output,omitempty"`
	PassedTests       *int    `json:"passed_tests,omitempty"`
	TotalMilliseconds *int    `json:"total_milliseconds,omitempty"`
	TotalBytes        *int64  `json:"total_bytes,omitempty"`
}

// Validate checks the outcome carries a terminal status and sane measurements.
func (o Outcome) Validate() error {
	if !o.Status.Terminal() {
		return fmt.Errorf("outcome status %s is not terminal", o.Status)
	}
	if o.PassedTests != nil && *o.PassedTests < 0 {
		return fmt.Errorf("passed tests must be non-negative")
	}
	if o.TotalMilliseconds != nil && *o.TotalMilliseconds < 0 {
		return fmt.Errorf("total milliseconds must be non-negative")
	}
	if o.TotalBytes != nil && *o.TotalBytes < 0 {
		return fmt.Errorf("total bytes must be non-negative")
	}
	return nil
}

// Apply writes the outcome into r and drops the lease.
func (o Outcome) Apply(r *SubmissionResult, now time.Time) {
	r.Status = o.Status
	r.CompileOutput = o.CompileOutput
	r.PassedTests = o.PassedTests
	r.TotalMilliseconds = o.TotalMilliseconds
	r.TotalBytes = o.TotalBytes
	if r.Claim != nil {
		r.Claim.Token = ""
		r.Claim.Owner = ""
		r.Claim.LeaseUntil = time.Time{}
	}
	r.UpdatedAt = now
}
