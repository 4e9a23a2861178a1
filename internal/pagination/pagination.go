// Package pagination computes page metadata and navigation links from a
// total row count and a fixed page size.
package pagination

import (
	"errors"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// PerPage is the fixed number of tasks returned per page.
const PerPage = 5

// PageParam is the query parameter carrying the page number.
const PageParam = "page"

// Page describes one page of a result set.
type Page struct {
	CurrentPage int   `json:"current_page"`
	LastPage    int   `json:"last_page"`
	PerPage     int   `json:"per_page"`
	Total       int64 `json:"total"`
}

// Links are absolute URLs for navigating a paginated listing.
// Prev and Next are nil at the edges.
type Links struct {
	First string  `json:"first"`
	Last  string  `json:"last"`
	Prev  *string `json:"prev"`
	Next  *string `json:"next"`
}

// MaxPage is the largest page number whose offset still fits in an int.
const MaxPage = math.MaxInt / PerPage

// ParsePage turns a raw page query value into a page number.
// Anything that is not a positive integer means page 1; larger values are
// capped at MaxPage.
func ParsePage(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		// Atoi saturates out-of-range input to the nearest int.
		if errors.Is(err, strconv.ErrRange) && n > 0 {
			return MaxPage
		}
		return 1
	}
	if n < 1 {
		return 1
	}
	if n > MaxPage {
		return MaxPage
	}
	return n
}

// Offset returns how many rows precede page in a listing of perPage rows per
// page. It saturates at math.MaxInt instead of overflowing.
func Offset(page, perPage int) int {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		return 0
	}
	if page-1 > math.MaxInt/perPage {
		return math.MaxInt
	}
	return (page - 1) * perPage
}

// New builds the page metadata. last_page = ceil(total / perPage), never below 1.
func New(page, perPage int, total int64) Page {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = PerPage
	}
	last := int((total + int64(perPage) - 1) / int64(perPage))
	if last < 1 {
		last = 1
	}
	return Page{
		CurrentPage: page,
		LastPage:    last,
		PerPage:     perPage,
		Total:       total,
	}
}

// Offset returns the number of rows to skip for this page.
func (p Page) Offset() int {
	return Offset(p.CurrentPage, p.PerPage)
}

// HasPrev reports whether a previous page exists.
func (p Page) HasPrev() bool {
	return p.CurrentPage > 1
}

// HasNext reports whether a next page exists.
func (p Page) HasNext() bool {
	return p.CurrentPage < p.LastPage
}

// Links builds navigation URLs on top of base. Existing query values on base
// (e.g. an active filter) are kept; the page parameter is replaced.
func (p Page) Links(base url.URL) Links {
	out := Links{
		First: pageURL(base, 1),
		Last:  pageURL(base, p.LastPage),
	}
	if p.HasPrev() {
		prev := pageURL(base, p.CurrentPage-1)
		out.Prev = &prev
	}
	if p.HasNext() {
		next := pageURL(base, p.CurrentPage+1)
		out.Next = &next
	}
	return out
}

func pageURL(base url.URL, page int) string {
	q := base.Query()
	q.Set(PageParam, strconv.Itoa(page))
	base.RawQuery = q.Encode()
	return base.String()
}
