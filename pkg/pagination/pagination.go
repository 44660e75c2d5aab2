// Package pagination extracts limit/offset paging from requests.
package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Limit  int
	Offset int
}

// FromContext extracts pagination parameters from the echo context.
func FromContext(c echo.Context) Params {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}

	return Params{Limit: limit, Offset: offset}
}

// HasNext reports whether the page came back full, meaning more results may
// follow at NextOffset.
func (p Params) HasNext(fetched int) bool {
	return fetched >= p.Limit
}

// NextOffset returns the offset for the next page.
func (p Params) NextOffset() int {
	return p.Offset + p.Limit
}

// Page is one page of a listing. NextOffset is present only when the page
// was full.
type Page struct {
	Items      any  `json:"items"`
	NextOffset *int `json:"next_offset,omitempty"`
}

// Wrap packages fetched items for the response.
func (p Params) Wrap(items any, fetched int) Page {
	page := Page{Items: items}
	if p.HasNext(fetched) {
		next := p.NextOffset()
		page.NextOffset = &next
	}
	return page
}
