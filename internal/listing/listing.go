// Package listing derives a displayable page from a collection: a
// case-insensitive search over every field followed by fixed-size
// pagination. Nothing here mutates the collection.
package listing

import (
	"strings"

	"github.com/mesh-intelligence/shelf/pkg/types"
)

// PageSize is the number of records shown per page.
const PageSize = 10

// Page is one page of a filtered collection.
type Page struct {
	Items      []types.Record `json:"items"`
	Number     int            `json:"page"`
	Size       int            `json:"page_size"`
	Term       string         `json:"search,omitempty"`
	TotalItems int            `json:"total_items"`
	TotalPages int            `json:"total_pages"`
}

// Filter returns the records for which any field's display text contains
// term, ignoring case. An empty term matches every record. The result shares
// record values with the input; callers must not mutate them.
func Filter(records []types.Record, term string) []types.Record {
	needle := strings.ToLower(term)
	out := make([]types.Record, 0, len(records))
	for _, r := range records {
		if needle == "" || matches(r, needle) {
			out = append(out, r)
		}
	}
	return out
}

func matches(r types.Record, needle string) bool {
	for _, v := range r {
		if strings.Contains(strings.ToLower(types.FormatValue(v)), needle) {
			return true
		}
	}
	return false
}

// Paginate filters records by term and returns the requested 1-based page.
// A page below 1 is treated as 1; a page past the end has no items.
// A size below 1 falls back to PageSize.
func Paginate(records []types.Record, term string, page, size int) Page {
	if size < 1 {
		size = PageSize
	}
	if page < 1 {
		page = 1
	}
	filtered := Filter(records, term)
	total := len(filtered)
	pages := (total + size - 1) / size

	p := Page{
		Items:      []types.Record{},
		Number:     page,
		Size:       size,
		Term:       term,
		TotalItems: total,
		TotalPages: pages,
	}
	start := (page - 1) * size
	if start >= total {
		return p
	}
	end := min(start+size, total)
	p.Items = filtered[start:end:end]
	return p
}

// Cursor is the search term and page number a viewer is positioned at.
// Changing the term moves the cursor back to page 1.
type Cursor struct {
	term string
	page int
	size int
}

// NewCursor returns a cursor on page 1 with no search term.
func NewCursor() *Cursor {
	return &Cursor{page: 1, size: PageSize}
}

// Term returns the current search term.
func (c *Cursor) Term() string { return c.term }

// Page returns the current 1-based page number.
func (c *Cursor) Page() int { return c.page }

// SetTerm sets the search term and resets to page 1 when it changed.
func (c *Cursor) SetTerm(term string) {
	if term == c.term {
		return
	}
	c.term = term
	c.page = 1
}

// SetPage moves to page n; values below 1 move to page 1.
func (c *Cursor) SetPage(n int) {
	c.page = max(n, 1)
}

// Next moves one page forward.
func (c *Cursor) Next() { c.page++ }

// Prev moves one page back, stopping at page 1.
func (c *Cursor) Prev() { c.SetPage(c.page - 1) }

// Apply returns the current page of records. When the cursor is past the
// last page, for example after deletions, it is clamped to the last page
// first.
func (c *Cursor) Apply(records []types.Record) Page {
	p := Paginate(records, c.term, c.page, c.size)
	if p.TotalPages > 0 && c.page > p.TotalPages {
		c.page = p.TotalPages
		p = Paginate(records, c.term, c.page, c.size)
	}
	return p
}
