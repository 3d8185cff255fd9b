package services

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ColumnSelection is the projection granularity of a listing.
type ColumnSelection int

const (
	// ColumnsList selects fields visible in lists. It is the zero value.
	ColumnsList ColumnSelection = iota
	ColumnsLookup
	ColumnsDetails
	// ColumnsKeyOnly selects only fields that are always selected or explicitly included.
	ColumnsKeyOnly
)

func (c ColumnSelection) String() string {
	switch c {
	case ColumnsList:
		return "list"
	case ColumnsLookup:
		return "lookup"
	case ColumnsDetails:
		return "details"
	case ColumnsKeyOnly:
		return "key_only"
	default:
		return "unknown"
	}
}

// ColumnSet is a set of column or property names.
type ColumnSet map[string]struct{}

// NewColumnSet builds a set from tokens, skipping blanks.
func NewColumnSet(tokens ...string) ColumnSet {
	set := make(ColumnSet, len(tokens))
	for _, token := range tokens {
		if token = strings.TrimSpace(token); token != "" {
			set[token] = struct{}{}
		}
	}
	return set
}

// Has reports whether token is in the set.
func (s ColumnSet) Has(token string) bool {
	if s == nil || token == "" {
		return false
	}
	_, ok := s[token]
	return ok
}

// SortBy orders a listing by a field name or property name.
type SortBy struct {
	Field      string
	Descending bool
}

// ParseSortBy reads "field" or "field desc" (case insensitive direction).
func ParseSortBy(expr string) SortBy {
	parts := strings.Fields(expr)
	if len(parts) == 0 {
		return SortBy{}
	}
	sort := SortBy{Field: parts[0]}
	if len(parts) > 1 && strings.EqualFold(parts[1], "desc") {
		sort.Descending = true
	}
	return sort
}

// ListRequest describes a listing.
type ListRequest struct {
	IncludeColumns    ColumnSet
	ExcludeColumns    ColumnSet
	ColumnSelection   ColumnSelection
	ContainsText      string
	Sort              []SortBy
	Skip              int
	Take              int
	// ExcludeTotalCount skips the count query of a paged request.
	ExcludeTotalCount bool
	IncludeDeleted    bool
	// EqualityFilter restricts rows to those whose fields equal the given
	// values; a nil value matches NULL.
	EqualityFilter map[string]any
}

// Paged reports whether the request asks for a page instead of every row.
func (r *ListRequest) Paged() bool {
	return r.Skip > 0 || r.Take > 0
}

// Validate checks paging bounds. maxTake <= 0 disables the upper bound.
func (r *ListRequest) Validate(maxTake int) error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Skip, validation.Min(0)),
		validation.Field(&r.Take, validation.Min(0), validation.When(maxTake > 0, validation.Max(maxTake))),
		validation.Field(&r.ColumnSelection, validation.Min(ColumnsList), validation.Max(ColumnsKeyOnly)),
		validation.Field(&r.Sort, validation.Each(validation.By(validateSortBy))),
	)
}

func validateSortBy(value any) error {
	sort, _ := value.(SortBy)
	return validation.Validate(strings.TrimSpace(sort.Field), validation.Required.Error("sort field is required"))
}

// ListResponse is the outcome of a listing.
type ListResponse[T any] struct {
	Entities []*T
	// TotalCount is the number of rows matching the request. When the
	// count query is skipped, either because the request is not paged or
	// because ExcludeTotalCount is set, it is the number of rows the page
	// query returned, so with ExcludeTotalCount it is at most Take.
	TotalCount int
	Skip       int
	Take       int
}

// UndeleteRequest identifies the row to restore.
type UndeleteRequest struct {
	EntityID any
}

// Validate checks that an entity id is present.
func (r *UndeleteRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.EntityID, validation.NotNil, validation.By(notBlank)),
	)
}

func notBlank(value any) error {
	if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
		return validation.NewError("validation_blank", "cannot be blank")
	}
	return nil
}

// UndeleteResponse reports the outcome of a restoration.
type UndeleteResponse struct {
	// WasNotDeleted is set when the row was already active and nothing changed.
	WasNotDeleted bool
}
