package services

import (
	"context"
	"errors"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-service-handlers/internal/sqlselect"
	"github.com/goliatone/go-service-handlers/row"
	"github.com/goliatone/go-service-handlers/security"
)

// EntityProcessor transforms a listed entity. Returning nil drops it from
// the response without changing the total count.
type EntityProcessor[T any] func(ctx context.Context, sel Selection, entity *T) *T

// ListHandler lists rows of type T.
type ListHandler[T any] struct {
	typ           *row.Type[T]
	gate          *security.Gate
	logger        logrus.FieldLogger
	processEntity EntityProcessor[T]
	criteria      []repository.SelectCriteria
	nativeSort    []SortBy
	nativeSortSet bool
	maxTake       int
	skipReadCheck bool
}

// ListOption configures a ListHandler.
type ListOption[T any] func(*ListHandler[T])

// WithListGate sets the gate enforcing the row type's read permission.
func WithListGate[T any](gate *security.Gate) ListOption[T] {
	return func(h *ListHandler[T]) { h.gate = gate }
}

// WithListLogger sets the handler logger.
func WithListLogger[T any](logger logrus.FieldLogger) ListOption[T] {
	return func(h *ListHandler[T]) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithProcessEntity installs a per-entity hook run after the query.
func WithProcessEntity[T any](fn EntityProcessor[T]) ListOption[T] {
	return func(h *ListHandler[T]) { h.processEntity = fn }
}

// WithCriteria adds query criteria applied to every listing.
func WithCriteria[T any](criteria ...repository.SelectCriteria) ListOption[T] {
	return func(h *ListHandler[T]) { h.criteria = append(h.criteria, criteria...) }
}

// WithNativeSort replaces the sort used when the request has none. The
// default sorts by the name field when the row type has one; no sorts
// leaves only the key order.
func WithNativeSort[T any](sorts ...SortBy) ListOption[T] {
	return func(h *ListHandler[T]) {
		h.nativeSort = sorts
		h.nativeSortSet = true
	}
}

// WithMaxTake bounds the page size. Zero means unbounded.
func WithMaxTake[T any](n int) ListOption[T] {
	return func(h *ListHandler[T]) { h.maxTake = n }
}

// WithoutReadPermission disables the read permission check, for callers
// that authorize on their own.
func WithoutReadPermission[T any]() ListOption[T] {
	return func(h *ListHandler[T]) { h.skipReadCheck = true }
}

// NewListHandler creates a listing handler for typ.
func NewListHandler[T any](typ *row.Type[T], opts ...ListOption[T]) *ListHandler[T] {
	h := &ListHandler[T]{
		typ:    typ,
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.WithFields(logrus.Fields{
		"handler": "list",
		"type":    typ.Name(),
	})
	return h
}

// Type returns the row type served by the handler.
func (h *ListHandler[T]) Type() *row.Type[T] {
	return h.typ
}

// Authorize checks the row type's read permission against the caller in ctx.
func (h *ListHandler[T]) Authorize(ctx context.Context) error {
	if h.skipReadCheck {
		return nil
	}
	return h.gate.Check(ctx, h.typ.Policy().ReadPermission)
}

// Process runs the listing described by req against db and passes every
// row through the entity processor.
func (h *ListHandler[T]) Process(ctx context.Context, db bun.IDB, req *ListRequest) (*ListResponse[T], error) {
	resp, err := h.Query(ctx, db, req)
	if err != nil {
		return nil, err
	}
	return h.processEntities(ctx, req, resp, false), nil
}

// Query runs the listing without the entity processor. The response holds
// the rows as read from the database.
func (h *ListHandler[T]) Query(ctx context.Context, db bun.IDB, req *ListRequest) (*ListResponse[T], error) {
	if db == nil {
		return nil, invalidArgument("list: database connection is required")
	}
	if req == nil {
		return nil, invalidArgument("list: request is required")
	}
	if err := req.Validate(h.maxTake); err != nil {
		return nil, requestValidationError("list: invalid request", err)
	}

	if err := h.Authorize(ctx); err != nil {
		return nil, err
	}

	sel := NewSelection(h.typ.Fields(), req)
	query := sqlselect.New(db, h.typ)
	for _, f := range sel.Fields() {
		query.Column(f)
	}
	if query.Columns() == 0 {
		query.Column(h.fallbackColumn())
	}

	query.KeyOrder(h.typ.IDField())
	query.ApplySkipTakeAndCount(req.Skip, req.Take, req.Paged() && !req.ExcludeTotalCount)
	query.ApplyContainsText(req.ContainsText)

	if err := h.applySort(query, req); err != nil {
		return nil, err
	}
	if err := h.applyFilters(query, req); err != nil {
		return nil, err
	}

	result, err := query.Execute(ctx)
	if err != nil {
		return nil, internalError(err, "list: query failed")
	}

	total := result.Total
	if total < 0 {
		total = len(result.Rows)
	}

	h.logger.WithFields(logrus.Fields{
		"rows":  len(result.Rows),
		"total": total,
		"skip":  req.Skip,
		"take":  req.Take,
	}).Debug("list processed")

	return &ListResponse[T]{
		Entities:   result.Rows,
		TotalCount: total,
		Skip:       req.Skip,
		Take:       req.Take,
	}, nil
}

// ProcessEntities runs the entity processor over copies of the entities in
// resp, which is left untouched. Without a processor resp is returned as is.
func (h *ListHandler[T]) ProcessEntities(ctx context.Context, req *ListRequest, resp *ListResponse[T]) *ListResponse[T] {
	return h.processEntities(ctx, req, resp, true)
}

func (h *ListHandler[T]) processEntities(ctx context.Context, req *ListRequest, resp *ListResponse[T], copyEntities bool) *ListResponse[T] {
	if h.processEntity == nil || resp == nil {
		return resp
	}

	sel := NewSelection(h.typ.Fields(), req)
	entities := make([]*T, 0, len(resp.Entities))
	for _, entity := range resp.Entities {
		if copyEntities && entity != nil {
			clone := *entity
			entity = &clone
		}
		if entity = h.processEntity(ctx, sel, entity); entity != nil {
			entities = append(entities, entity)
		}
	}

	out := *resp
	out.Entities = entities
	return &out
}

func (h *ListHandler[T]) applySort(query *sqlselect.Select[T], req *ListRequest) error {
	sorts := req.Sort
	if len(sorts) == 0 {
		sorts = h.nativeSort
		if !h.nativeSortSet {
			if name := h.typ.NameField(); name != nil {
				sorts = []SortBy{{Field: name.Name}}
			}
		}
	}

	for _, s := range sorts {
		f, ok := h.typ.FieldByName(s.Field)
		if !ok {
			return validationError("list: unknown sort field", map[string]any{"field": s.Field})
		}
		if err := query.OrderBy(f, s.Descending); err != nil {
			return validationError("list: field cannot be sorted", map[string]any{"field": s.Field})
		}
	}
	return nil
}

func (h *ListHandler[T]) applyFilters(query *sqlselect.Select[T], req *ListRequest) error {
	if !req.IncludeDeleted {
		query.WhereActive()
	}

	keys := make([]string, 0, len(req.EqualityFilter))
	for key := range req.EqualityFilter {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		f, ok := h.typ.FieldByName(key)
		if !ok {
			return validationError("list: unknown filter field", map[string]any{"field": key})
		}
		if err := query.WhereEquals(f, req.EqualityFilter[key]); err != nil {
			return validationError("list: field cannot be filtered", map[string]any{"field": key})
		}
	}

	for _, c := range h.criteria {
		if c != nil {
			query.Apply(c)
		}
	}
	return nil
}

func (h *ListHandler[T]) fallbackColumn() *row.Field {
	if id := h.typ.IDField(); id != nil {
		return id
	}
	for _, f := range h.typ.Fields() {
		if f.IsTableField() && f.MinSelectLevel != row.SelectNever {
			return f
		}
	}
	return nil
}

func requestValidationError(message string, err error) error {
	var fields validation.Errors
	if !errors.As(err, &fields) {
		return internalError(err, message)
	}

	details := make(map[string]any, len(fields))
	for name, ferr := range fields {
		details[name] = ferr.Error()
	}
	return validationError(message, details)
}
