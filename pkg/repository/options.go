package repository

import (
	"fmt"
	"math"
)

const (
	// DefaultPageSize is used when the caller does not ask for a size.
	DefaultPageSize = 20
	// MaxPageSize caps a single page.
	MaxPageSize = 100
)

// PageRequest selects a window of an ordered result set. Page is zero based.
type PageRequest struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// Validate validates the request and fills defaults
func (p *PageRequest) Validate() error {
	if p.PageSize == 0 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize < 0 {
		return fmt.Errorf("%w: page size must be positive", ErrInvalidInput)
	}
	if p.PageSize > MaxPageSize {
		return fmt.Errorf("%w: page size exceeds maximum allowed value of %d", ErrInvalidInput, MaxPageSize)
	}
	if p.Page < 0 {
		return fmt.Errorf("%w: page must be non-negative", ErrInvalidInput)
	}
	if p.Page > math.MaxInt/p.PageSize {
		return fmt.Errorf("%w: page %d is out of range", ErrInvalidInput, p.Page)
	}
	return nil
}

// Offset returns the number of records to skip.
func (p PageRequest) Offset() int {
	return p.Page * p.PageSize
}

// Limit returns the maximum number of records to return.
func (p PageRequest) Limit() int {
	return p.PageSize
}

// PaginationResult wraps a page of entities with the total match count
type PaginationResult[T any] struct {
	Items    []*T  `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}

// TotalPages returns the number of pages needed for Total items.
func (r PaginationResult[T]) TotalPages() int {
	if r.PageSize <= 0 {
		return 0
	}
	n := int(r.Total) / r.PageSize
	if int(r.Total)%r.PageSize != 0 {
		n++
	}
	return n
}
