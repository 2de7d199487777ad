// Package table is the list-view container: it keeps pagination, sorting and
// search in sync with the query string and drives collection fetches.
package table

import (
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/gosuda/backoffice/internal/upstream"
)

// Defaults apply to query parameters that are absent or out of range.
type Defaults struct {
	Limit    int
	MaxLimit int
	Sort     []upstream.SortField
}

func (d Defaults) normalized() Defaults {
	if d.Limit <= 0 {
		d.Limit = 12
	}
	if d.MaxLimit < d.Limit {
		d.MaxLimit = max(100, d.Limit)
	}
	return d
}

// ViewState is everything a list view mirrors into its URL.
type ViewState struct {
	Page   int                  `json:"page"`
	Limit  int                  `json:"limit"`
	Search string               `json:"search"`
	Sort   []upstream.SortField `json:"sort"`
}

// maxSortFields bounds how many sort[n] entries are read from a query.
const maxSortFields = 8

// ParseQuery reads page, limit, search and sort[n][field|direction]. Garbage
// values fall back to defaults rather than failing.
func ParseQuery(q url.Values, d Defaults) ViewState {
	d = d.normalized()
	v := ViewState{Page: 1, Limit: d.Limit}

	if n, err := strconv.Atoi(q.Get("page")); err == nil && n > 0 {
		v.Page = n
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		v.Limit = min(n, d.MaxLimit)
	}
	v.Search = strings.TrimSpace(q.Get("search"))

	for i := range maxSortFields {
		prefix := "sort[" + strconv.Itoa(i) + "]"
		field := strings.TrimSpace(q.Get(prefix + "[field]"))
		if field == "" {
			break
		}
		v.Sort = append(v.Sort, upstream.SortField{
			Field:     field,
			Direction: upstream.ParseDirection(q.Get(prefix + "[direction]")),
		})
	}
	if len(v.Sort) == 0 && len(d.Sort) > 0 {
		v.Sort = slices.Clone(d.Sort)
	}
	return v
}

// Params converts the view into collection fetch parameters.
func (v ViewState) Params() upstream.ListParams {
	return upstream.ListParams{
		Page:   v.Page,
		Limit:  v.Limit,
		Search: v.Search,
		Sort:   slices.Clone(v.Sort),
	}
}

// Encode returns the canonical query string. Equal views encode identically,
// which is what the URL replacement guard compares.
func (v ViewState) Encode() string {
	return v.Params().Values().Encode()
}

func (v ViewState) Equal(o ViewState) bool {
	return v.Page == o.Page && v.Limit == o.Limit && v.Search == o.Search && slices.Equal(v.Sort, o.Sort)
}

// Clamp bounds the page to [1, max(1, totalPages)].
func Clamp(page, totalPages int) int {
	return min(max(1, page), max(1, totalPages))
}
