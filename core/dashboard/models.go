package dashboard

import (
	"strings"

	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/core/changeset"
	"github.com/trezcool/masomo-console/core/entity"
	"github.com/trezcool/masomo-console/core/listing"
)

// Stats scopes
const (
	ScopePage = "page"
	ScopeAll  = "all"
)

type (
	Options struct {
		DefaultPageSize int
		MaxPageSize     int
		MaxPages        int // bound of "all pages" loads
	}

	// Query is one console interaction on an entity list.
	// Equals holds the raw equality filters (see listing.RawValue). The API filters with them;
	// they are only re-applied to lists paged locally.
	Query struct {
		Kind     string            `json:"kind" param:"kind" validate:"required,entitykind"`
		Page     int               `json:"page" query:"page" validate:"min=0"`
		PageSize int               `json:"page_size" query:"page_size" validate:"min=0"`
		Search   string            `json:"search" query:"search"`
		Fuzzy    bool              `json:"fuzzy" query:"fuzzy"`
		Ordering string            `json:"ordering" query:"ordering" validate:"omitempty,ordering"`
		Scope    string            `json:"scope" query:"scope" validate:"omitempty,oneof=page all"`
		Equals   map[string]string `json:"equals,omitempty" query:"-"`
	}

	Pagination struct {
		listing.State
		PageCount int  `json:"pageCount"`
		HasNext   bool `json:"hasNext"`
		HasPrev   bool `json:"hasPrev"`
	}

	Listing struct {
		Kind       string           `json:"kind"`
		Items      []listing.Record `json:"items"`
		Pagination Pagination       `json:"pagination"`
		Stale      bool             `json:"stale,omitempty"`
	}

	Stats struct {
		Kind     string           `json:"kind"`
		Scope    string           `json:"scope"`
		Snapshot listing.Snapshot `json:"snapshot"`
		Pages    int              `json:"pages"`
		Complete bool             `json:"complete"` // false when MaxPages cut the load short
		Stale    bool             `json:"stale,omitempty"`
	}

	// Export is a full, filtered and sorted entity list with the columns to render.
	Export struct {
		Title    string           `json:"title"`
		Columns  []entity.Column  `json:"columns"`
		Items    []listing.Record `json:"items"`
		Complete bool             `json:"complete"`
		Stale    bool             `json:"stale,omitempty"`
	}

	// Submission is an edited form of the record `ID`, with the state it was loaded with.
	Submission struct {
		Kind     string      `json:"kind" param:"kind" validate:"required"`
		ID       string      `json:"id" param:"id" validate:"required,excludesall=/?#"`
		Original interface{} `json:"original" validate:"required"`
		Edited   interface{} `json:"edited" validate:"required"`
	}

	SubmitResult struct {
		Change    changeset.Change `json:"change"`
		Submitted bool             `json:"submitted"`
		Record    listing.Record   `json:"record,omitempty"`
	}
)

func NewOptions(conf *core.Config) Options {
	return Options{
		DefaultPageSize: conf.Listing.DefaultPageSize,
		MaxPageSize:     conf.Listing.MaxPageSize,
		MaxPages:        conf.Upstream.MaxPages,
	}
}

func newPagination(s listing.State) Pagination {
	return Pagination{
		State:     s,
		PageCount: s.PageCount(),
		HasNext:   s.HasNext(),
		HasPrev:   s.HasPrev(),
	}
}

// filterSpec returns the local filter and sort arguments of the query.
func (q Query) filterSpec() (spec listing.FilterSpec, sortKey string, dir listing.Direction) {
	spec = listing.FilterSpec{SearchText: q.Search, Fuzzy: q.Fuzzy}
	if len(q.Equals) > 0 {
		spec.Equals = make(map[string]interface{}, len(q.Equals))
		for field, raw := range q.Equals {
			spec.Equals[field] = listing.RawValue(raw)
		}
	}

	dir = listing.Asc
	if ords := core.ParseOrderings(q.Ordering); len(ords) > 0 {
		sortKey = ords[0].Field
		if !ords[0].Ascending {
			dir = listing.Desc
		}
	}
	return spec, sortKey, dir
}

// localSearch reports whether the search can only be applied locally, over the whole list.
func (q Query) localSearch() bool {
	return q.Fuzzy && strings.TrimSpace(q.Search) != ""
}

// upstreamValue is the value of an equality filter as the API expects it: without the quotes
// that force a text match locally.
func upstreamValue(raw string) string {
	if s, ok := listing.ParseValue(raw).(string); ok {
		return s
	}
	return raw
}
