package upstream

import (
	"net/url"
	"strconv"
	"strings"
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection accepts asc/desc in any case; anything else is asc.
func ParseDirection(raw string) Direction {
	if strings.EqualFold(strings.TrimSpace(raw), string(Desc)) {
		return Desc
	}
	return Asc
}

type SortField struct {
	Field     string    `json:"field"`
	Direction Direction `json:"direction"`
}

// ListParams are the query parameters of a collection fetch.
type ListParams struct {
	Page   int
	Limit  int
	Search string
	Sort   []SortField
}

// Values encodes the params the way the backend expects them:
// page, limit, search, sort[n][field], sort[n][direction].
func (p ListParams) Values() url.Values {
	v := url.Values{}
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	if s := strings.TrimSpace(p.Search); s != "" {
		v.Set("search", s)
	}
	for i, s := range p.Sort {
		if s.Field == "" {
			continue
		}
		dir := s.Direction
		if dir == "" {
			dir = Asc
		}
		prefix := "sort[" + strconv.Itoa(i) + "]"
		v.Set(prefix+"[field]", s.Field)
		v.Set(prefix+"[direction]", string(dir))
	}
	return v
}
