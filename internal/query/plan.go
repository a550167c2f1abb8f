// Package query turns untrusted listing parameters into a bounded,
// paginated retrieval plan. A Plan is an immutable value: every stage
// returns a new Plan, so a request assembles its plan as a pipeline of
// pure transformations instead of a shared mutable builder.
package query

import (
	"net/url"
	"strconv"
	"strings"
)

// Reserved parameter names consumed by the planner itself. They never
// leak into the plan's filter conditions.
var reservedParams = map[string]struct{}{
	"keyword": {},
	"page":    {},
	"limit":   {},
}

const (
	// DefaultLimit applies when the limit parameter is absent or malformed.
	DefaultLimit = 10
	// DefaultPage applies when the page parameter is absent or malformed.
	DefaultPage = 1
)

// Params is a flattened view of the request's query string. Repeated keys
// keep their first value.
type Params map[string]string

// ParamsFromValues flattens url.Values into Params.
func ParamsFromValues(values url.Values) Params {
	params := make(Params, len(values))
	for key := range values {
		params[key] = values.Get(key)
	}
	return params
}

// Plan describes a single bounded retrieval: a keyword condition, a set of
// field-equality filters and resolved pagination state.
type Plan struct {
	params Params

	Keyword string
	Filters map[string]string

	Limit       int
	CurrentPage int
	TotalPages  int
	TotalCount  int
	Skip        int
}

// New captures raw parameters into an empty plan.
func New(params Params) Plan {
	return Plan{params: params, Filters: map[string]string{}, CurrentPage: DefaultPage}
}

// Search adds a case-insensitive substring condition on the product name
// when a non-empty keyword parameter is present. The keyword is stored as
// literal text; LIKE metacharacters are escaped at bind time.
func (p Plan) Search() Plan {
	next := p.clone()
	if keyword := strings.TrimSpace(p.params["keyword"]); keyword != "" {
		next.Keyword = keyword
	}
	return next
}

// Filter copies every parameter outside the reserved set into the plan as
// a field-equality condition.
func (p Plan) Filter() Plan {
	next := p.clone()
	for key, value := range p.params {
		if _, reserved := reservedParams[key]; reserved {
			continue
		}
		next.Filters[key] = value
	}
	return next
}

// Paginate resolves the page window against the total number of matching
// rows. The requested page is clamped into [1, totalPages]; totalPages is
// at least 1 so an empty result still yields a valid first page.
func (p Plan) Paginate(limit, totalCount int) Plan {
	next := p.clone()

	if limit < 1 {
		limit = p.RequestedLimit()
	}

	totalPages := 1
	if totalCount > 0 {
		totalPages = (totalCount + limit - 1) / limit
	}

	page := p.RequestedPage()
	if page > totalPages {
		page = totalPages
	}
	if page < 1 {
		page = 1
	}

	next.Limit = limit
	next.CurrentPage = page
	next.TotalPages = totalPages
	next.TotalCount = totalCount
	next.Skip = limit * (page - 1)
	return next
}

// Seek returns a copy of a paginated plan positioned on the given page,
// clamped into the plan's resolved bounds. Full-result scans use it to walk
// every page of one predicate.
func (p Plan) Seek(page int) Plan {
	next := p.clone()
	if page < 1 {
		page = 1
	}
	if page > p.TotalPages {
		page = p.TotalPages
	}
	next.CurrentPage = page
	next.Skip = p.Limit * (page - 1)
	return next
}

// RequestedLimit parses the limit parameter, falling back to DefaultLimit
// on absence or malformed input.
func (p Plan) RequestedLimit() int {
	limit, err := strconv.Atoi(p.params["limit"])
	if err != nil || limit < 1 {
		return DefaultLimit
	}
	return limit
}

// RequestedPage parses the page parameter, falling back to DefaultPage on
// absence or malformed input.
func (p Plan) RequestedPage() int {
	page, err := strconv.Atoi(p.params["page"])
	if err != nil {
		return DefaultPage
	}
	return page
}

func (p Plan) clone() Plan {
	next := p
	next.Filters = make(map[string]string, len(p.Filters)+1)
	for key, value := range p.Filters {
		next.Filters[key] = value
	}
	return next
}

// EscapeLike escapes SQL LIKE metacharacters so a keyword is matched as
// literal text rather than interpreted as a pattern.
func EscapeLike(raw string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(raw)
}
