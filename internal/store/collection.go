// Package store caches backend collections and exposes filtered, sorted and
// paginated views without re-fetching. Reads absorb failures into user
// notifications; writes propagate errors so callers can react.
package store

import (
	"sort"
	"sync"
)

// DefaultPageSize is the page size used until a consumer changes it.
const DefaultPageSize = 10

// Collection is the bookkeeping shared by every entity store: a cached
// item slice plus a free-text filter, an optional sort order and a pager.
// All methods are safe for concurrent use.
type Collection[T any] struct {
	mu sync.RWMutex

	items    []T
	idOf     func(T) string
	match    func(item T, filter string) bool
	sorter   func(items []T)
	filter   string
	fetching bool

	pageSize   int
	pageOffset int
}

// NewCollection builds an empty collection. idOf extracts the unique
// identifier, match implements the free-text predicate for one item.
func NewCollection[T any](idOf func(T) string, match func(item T, filter string) bool) *Collection[T] {
	return &Collection[T]{
		idOf:     idOf,
		match:    match,
		pageSize: DefaultPageSize,
	}
}

// SetItems replaces the whole collection and recomputes pagination.
func (c *Collection[T]) SetItems(items []T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = items
	c.fetching = false
	c.clampOffsetLocked()
}

// All returns a copy of the full collection.
func (c *Collection[T]) All() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Count returns the size of the unfiltered collection.
func (c *Collection[T]) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Find returns the item with the given identifier.
func (c *Collection[T]) Find(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, item := range c.items {
		if c.idOf(item) == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Filtered returns the items matching the current filter, in collection
// order. An empty filter matches everything.
func (c *Collection[T]) Filtered() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filteredLocked()
}

// Sorted returns the filtered items in the current sort order (collection
// order when no sort is set).
func (c *Collection[T]) Sorted() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sortedLocked()
}

// FilteredCount returns the number of items matching the current filter.
func (c *Collection[T]) FilteredCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.filteredLocked())
}

// FilteredAndPaged returns the current page of the filtered, sorted view.
func (c *Collection[T]) FilteredAndPaged() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sorted := c.sortedLocked()
	start := c.pageOffset
	if start > len(sorted) {
		start = len(sorted)
	}
	end := start + c.pageSize
	if end > len(sorted) {
		end = len(sorted)
	}
	return sorted[start:end]
}

// Filter returns the current free-text filter.
func (c *Collection[T]) Filter() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filter
}

// SetFilter replaces the free-text filter and re-clamps the page offset.
func (c *Collection[T]) SetFilter(filter string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = filter
	c.clampOffsetLocked()
}

// SetSorter installs the sort order applied to filtered views, or removes
// it when fn is nil. fn must sort the given slice in place.
func (c *Collection[T]) SetSorter(fn func(items []T)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sorter = fn
}

// IsFetching reports whether a load or mutation is in flight.
func (c *Collection[T]) IsFetching() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetching
}

// SetFetching toggles the in-flight flag.
func (c *Collection[T]) SetFetching(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetching = v
}

// PageSize returns the current page size.
func (c *Collection[T]) PageSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pageSize
}

// SetPageSize changes the page size and resets the offset to the first
// page to avoid stale offsets under the new size.
func (c *Collection[T]) SetPageSize(n int) {
	if n <= 0 {
		n = DefaultPageSize
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pageSize = n
	c.pageOffset = 0
}

// PageOffset returns the zero-based offset of the current page. It is
// always a multiple of the page size and within the filtered bounds.
func (c *Collection[T]) PageOffset() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pageOffset
}

// Pages returns the 1-based page numbers of the filtered view.
func (c *Collection[T]) Pages() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	count := len(c.filteredLocked())
	var pages []int
	n := 1
	for i := 0; i < count; i += c.pageSize {
		pages = append(pages, n)
		n++
	}
	return pages
}

// CurrentPage returns the 1-based number of the current page.
func (c *Collection[T]) CurrentPage() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pageOffset/c.pageSize + 1
}

// HasNextPage reports whether a later page exists.
func (c *Collection[T]) HasNextPage() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pageOffset+c.pageSize < len(c.filteredLocked())
}

// HasPrevPage reports whether an earlier page exists.
func (c *Collection[T]) HasPrevPage() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pageOffset > 0
}

// GotoPage jumps to the given 1-based page, clamped to the filtered view.
func (c *Collection[T]) GotoPage(page int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if page < 1 {
		page = 1
	}
	c.pageOffset = (page - 1) * c.pageSize
	c.clampOffsetLocked()
}

// NextPage advances one page if one exists.
func (c *Collection[T]) NextPage() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pageOffset+c.pageSize < len(c.filteredLocked()) {
		c.pageOffset += c.pageSize
	}
}

// PreviousPage steps one page back if possible.
func (c *Collection[T]) PreviousPage() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pageOffset >= c.pageSize {
		c.pageOffset -= c.pageSize
	} else {
		c.pageOffset = 0
	}
}

// Insert appends an item to the collection.
func (c *Collection[T]) Insert(item T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, item)
	c.fetching = false
	c.clampOffsetLocked()
}

// Replace swaps the item with the given id in place. Unknown ids append,
// so a create racing a reload is not lost.
func (c *Collection[T]) Replace(id string, item T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetching = false
	for i := range c.items {
		if c.idOf(c.items[i]) == id {
			c.items[i] = item
			return
		}
	}
	c.items = append(c.items, item)
	c.clampOffsetLocked()
}

// Remove deletes all items whose id is in ids.
func (c *Collection[T]) Remove(ids ...string) {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.items[:0]
	for _, item := range c.items {
		if _, gone := drop[c.idOf(item)]; !gone {
			kept = append(kept, item)
		}
	}
	c.items = kept
	c.fetching = false
	c.clampOffsetLocked()
}

// Update applies fn to every item whose id is in ids.
func (c *Collection[T]) Update(ids []string, fn func(item *T)) {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetching = false
	for i := range c.items {
		if _, ok := want[c.idOf(c.items[i])]; ok {
			fn(&c.items[i])
		}
	}
}

func (c *Collection[T]) filteredLocked() []T {
	if c.filter == "" {
		out := make([]T, len(c.items))
		copy(out, c.items)
		return out
	}
	var out []T
	for _, item := range c.items {
		if c.match(item, c.filter) {
			out = append(out, item)
		}
	}
	return out
}

func (c *Collection[T]) sortedLocked() []T {
	out := c.filteredLocked()
	if c.sorter != nil {
		c.sorter(out)
	}
	return out
}

// clampOffsetLocked keeps the offset a multiple of the page size within
// [0, last page start], so a shrinking collection cannot strand the view
// on an empty page.
func (c *Collection[T]) clampOffsetLocked() {
	count := len(c.filteredLocked())
	if count == 0 {
		c.pageOffset = 0
		return
	}
	last := ((count - 1) / c.pageSize) * c.pageSize
	if c.pageOffset > last {
		c.pageOffset = last
	}
	if c.pageOffset < 0 {
		c.pageOffset = 0
	}
}

// stableSort is a small helper for store-specific sorters.
func stableSort[T any](items []T, less func(a, b T) bool) {
	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
}
