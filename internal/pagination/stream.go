// Package pagination turns a paged remote collection into a single lazy,
// pull-based sequence of items.
package pagination

import (
	"context"
	"iter"
)

// State is the position of a Cursor within a paged collection.
type State int

const (
	// StateStart is the initial state. Fetchers encode it as "no page parameter".
	StateStart State = iota
	// StateAtPage is reached only after a fetch reported more data available.
	StateAtPage
	// StateExhausted is terminal. No further fetch is issued.
	StateExhausted
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateAtPage:
		return "at_page"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Cursor is an opaque pagination position passed to each fetch.
type Cursor struct {
	state State
	page  int
}

// State returns the cursor state.
func (c Cursor) State() State {
	return c.state
}

// Page returns the 1-based page number to request, or 0 for StateStart,
// which callers must translate into "omit the page parameter". The first
// page is implicitly page 1, so the cursor following StateStart is page 2.
func (c Cursor) Page() int {
	if c.state != StateAtPage {
		return 0
	}
	return c.page
}

func (c Cursor) next(hasMore bool) Cursor {
	if !hasMore {
		return Cursor{state: StateExhausted}
	}
	switch c.state {
	case StateStart:
		return Cursor{state: StateAtPage, page: 2}
	case StateAtPage:
		return Cursor{state: StateAtPage, page: c.page + 1}
	default:
		return c
	}
}

// Page is one batch returned by a FetchFunc.
type Page[T any] struct {
	Items   []T
	HasMore bool
}

// FetchFunc fetches the batch at the given cursor.
type FetchFunc[T any] func(ctx context.Context, cursor Cursor) (Page[T], error)

// Stream is a finite, single-pass sequence over a paged collection. It is
// not safe for concurrent use. The next page is fetched only once the
// current batch has been drained; there is no prefetching.
//
// Iterate with the scanner idiom:
//
//	for s.Next(ctx) {
//		item := s.Item()
//	}
//	if err := s.Err(); err != nil { ... }
type Stream[T any] struct {
	fetch  FetchFunc[T]
	cursor Cursor
	buf    []T
	item   T
	err    error
	pages  int
}

// New creates a Stream backed by fetch. Nothing is fetched until the first
// call to Next.
func New[T any](fetch FetchFunc[T]) *Stream[T] {
	return &Stream[T]{fetch: fetch}
}

// Next advances to the next item, fetching a new page when the current batch
// is drained. It returns false when the collection is exhausted or a fetch
// failed; Err distinguishes the two. Items yielded before a failure remain
// valid and are never re-delivered.
func (s *Stream[T]) Next(ctx context.Context) bool {
	for len(s.buf) == 0 {
		if s.cursor.state == StateExhausted {
			var zero T
			s.item = zero
			return false
		}

		page, err := s.fetch(ctx, s.cursor)
		if err != nil {
			s.err = err
			s.cursor = Cursor{state: StateExhausted}
			s.buf = nil
			continue
		}

		s.pages++
		s.buf = page.Items
		s.cursor = s.cursor.next(page.HasMore)
	}

	s.item = s.buf[0]
	s.buf = s.buf[1:]
	return true
}

// Item returns the item produced by the most recent successful call to Next.
func (s *Stream[T]) Item() T {
	return s.item
}

// Err returns the fetch error that terminated the stream, if any.
func (s *Stream[T]) Err() error {
	return s.err
}

// Cursor returns the cursor that the next fetch would use.
func (s *Stream[T]) Cursor() Cursor {
	return s.cursor
}

// Pages returns how many pages have been fetched successfully.
func (s *Stream[T]) Pages() int {
	return s.pages
}

// All adapts the stream to a range-over-func sequence. A fetch error is
// yielded as the final pair with the zero item.
func (s *Stream[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for s.Next(ctx) {
			if !yield(s.Item(), nil) {
				return
			}
		}
		if err := s.Err(); err != nil {
			var zero T
			yield(zero, err)
		}
	}
}

// Collect drains the stream into a slice. On error, the items read before
// the failure are returned together with the error.
func Collect[T any](ctx context.Context, s *Stream[T]) ([]T, error) {
	var items []T
	for s.Next(ctx) {
		items = append(items, s.Item())
	}
	return items, s.Err()
}

// Filter returns a Stream that yields only the items of src for which keep
// returns true. Pagination still happens lazily in src.
func Filter[T any](src *Stream[T], keep func(T) bool) *Stream[T] {
	return New(func(ctx context.Context, _ Cursor) (Page[T], error) {
		var kept []T
		for src.Next(ctx) {
			item := src.Item()
			if keep(item) {
				kept = append(kept, item)
				break
			}
		}
		if err := src.Err(); err != nil {
			return Page[T]{}, err
		}
		return Page[T]{Items: kept, HasMore: len(kept) > 0}, nil
	})
}
