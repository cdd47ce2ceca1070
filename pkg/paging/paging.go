// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

// Package paging walks CloudControl's page-numbered list endpoints.
package paging

import (
	"context"
	"fmt"
	"iter"

	"github.com/go-logr/logr"
)

// Collection is one page of a list response. PageCount is the number of
// items on this page, not the number of pages.
type Collection[T any] struct {
	Items      []T
	PageNumber int
	PageCount  int
	TotalCount int
	PageSize   int
}

// hasNext reports whether pages follow page number current. Pages continue
// while current*PageSize is below TotalCount. Without those totals a full
// page is taken to mean more may follow.
func (c Collection[T]) hasNext(current int) bool {
	if len(c.Items) == 0 {
		return false
	}
	if c.TotalCount > 0 && c.PageSize > 0 {
		return current*c.PageSize < c.TotalCount
	}
	if c.PageSize > 0 {
		return len(c.Items) >= c.PageSize
	}
	return false
}

// FetchFunc fetches one page. pageNumber is 0 for the first page, in which
// case the request must not carry a pageNumber parameter.
type FetchFunc[T any] func(ctx context.Context, pageNumber int) (Collection[T], error)

// Pager iterates over every page of a list. A Pager holds no results; each
// iteration starts again from the first page.
type Pager[T any] struct {
	fetch FetchFunc[T]
}

// NewPager returns a Pager that reads pages through fetch.
func NewPager[T any](fetch FetchFunc[T]) *Pager[T] {
	return &Pager[T]{fetch: fetch}
}

// Pages yields each page in order. Iteration stops after the first error.
func (p *Pager[T]) Pages(ctx context.Context) iter.Seq2[Collection[T], error] {
	return func(yield func(Collection[T], error) bool) {
		log := logr.FromContextOrDiscard(ctx)
		next := 0
		for {
			page, err := p.fetch(ctx, next)
			if err != nil {
				yield(Collection[T]{}, fmt.Errorf("failed to fetch page %d: %w", max(next, 1), err))
				return
			}
			log.V(2).Info("fetched page", "pageNumber", page.PageNumber, "totalCount", page.TotalCount, "items", len(page.Items))
			if !yield(page, nil) {
				return
			}
			current := max(page.PageNumber, next, 1)
			if !page.hasNext(current) {
				return
			}
			next = current + 1
		}
	}
}

// Concat yields every item of every page in vendor order. Pages are fetched
// lazily as the caller advances.
func (p *Pager[T]) Concat(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for page, err := range p.Pages(ctx) {
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			for _, item := range page.Items {
				if !yield(item, nil) {
					return
				}
			}
		}
	}
}

// All collects every item of every page.
func (p *Pager[T]) All(ctx context.Context) ([]T, error) {
	var items []T
	for item, err := range p.Concat(ctx) {
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
