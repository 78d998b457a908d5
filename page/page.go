// Package page provides the paginated result type shared by stores and
// managers.
package page

// Page is one window of a larger ordered result set.
type Page[T any] struct {
	Items      []T   `json:"items"`
	MaxItems   int   `json:"max_items"`
	SkipCount  int64 `json:"skip_count"`
	TotalCount int64 `json:"total_count"`
}

// New returns a page over items with the given window and total.
func New[T any](items []T, maxItems int, skipCount, totalCount int64) *Page[T] {
	if items == nil {
		items = []T{}
	}
	return &Page[T]{Items: items, MaxItems: maxItems, SkipCount: skipCount, TotalCount: totalCount}
}

// Of slices a fully materialized result set into the requested window.
// A maxItems of zero or less returns everything after skipCount.
func Of[T any](all []T, maxItems int, skipCount int64) *Page[T] {
	total := int64(len(all))
	if skipCount < 0 {
		skipCount = 0
	}
	if skipCount >= total {
		return New[T](nil, maxItems, skipCount, total)
	}
	end := total
	if maxItems > 0 && skipCount+int64(maxItems) < total {
		end = skipCount + int64(maxItems)
	}
	items := make([]T, end-skipCount)
	copy(items, all[skipCount:end])
	return New(items, maxItems, skipCount, total)
}

// Size returns the number of items on this page.
func (p *Page[T]) Size() int { return len(p.Items) }

// IsEmpty reports whether the page holds no items.
func (p *Page[T]) IsEmpty() bool { return len(p.Items) == 0 }

// HasNext reports whether items remain after this page.
func (p *Page[T]) HasNext() bool {
	return p.SkipCount+int64(len(p.Items)) < p.TotalCount
}

// NextSkip returns the skip count of the following page.
func (p *Page[T]) NextSkip() int64 {
	return p.SkipCount + int64(len(p.Items))
}
