package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
)

var (
	errPageTooSmall    = errors.New("page must be at least 1")
	errLimitOutOfRange = fmt.Errorf("limit must be between 1 and %d", MaxPageSize)
)

// PageQuery is a 1-indexed page request.
type PageQuery struct {
	Page  int
	Limit int
}

// DefaultPageQuery is the first page with the default size.
func DefaultPageQuery() PageQuery {
	return PageQuery{Page: DefaultPage, Limit: DefaultPageSize}
}

// Validate rejects out-of-range values before any I/O happens.
func (q PageQuery) Validate() error {
	if q.Page < 1 {
		return invalidInput(errPageTooSmall)
	}
	if q.Limit < 1 || q.Limit > MaxPageSize {
		return invalidInput(errLimitOutOfRange)
	}
	return nil
}

func (q PageQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

type Pagination struct {
	CurrentPage int   `json:"current_page"`
	PageSize    int   `json:"page_size"`
	TotalPages  int64 `json:"total_pages"`
	TotalItems  int64 `json:"total_items"`
	Remaining   int64 `json:"remaining"`
	HasMore     bool  `json:"has_more"`
}

// NewPagination derives page metadata from the total item count.
func NewPagination(q PageQuery, total int64) Pagination {
	limit := int64(q.Limit)
	remaining := total - int64(q.Page)*limit
	if remaining < 0 {
		remaining = 0
	}
	return Pagination{
		CurrentPage: q.Page,
		PageSize:    q.Limit,
		TotalPages:  (total + limit - 1) / limit,
		TotalItems:  total,
		Remaining:   remaining,
		HasMore:     remaining > 0,
	}
}

type Page[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

type fetchFunc[T any] func(ctx context.Context, limit, offset int) ([]T, error)
type countFunc func(ctx context.Context) (int64, error)

// paginate runs the page query and the count concurrently. q must already be validated.
func paginate[T any](ctx context.Context, q PageQuery, fetch fetchFunc[T], count countFunc) ([]T, Pagination, error) {
	var (
		items []T
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = fetch(gctx, q.Limit, q.Offset())
		return err
	})
	g.Go(func() error {
		var err error
		total, err = count(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, Pagination{}, err
	}
	if items == nil {
		items = []T{}
	}
	return items, NewPagination(q, total), nil
}
