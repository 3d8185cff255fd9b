// Package sqlselect builds listing queries for row types on top of bun.
package sqlselect

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/goliatone/go-service-handlers/row"
)

// ErrUnsortable is returned when a sort targets a field that has no SQL representation.
var ErrUnsortable = errors.New("sqlselect: field cannot be used for sorting")

// ErrUnfilterable is returned when a filter targets a field that has no SQL representation.
var ErrUnfilterable = errors.New("sqlselect: field cannot be used for filtering")

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type orderBy struct {
	field *row.Field
	desc  bool
}

// Select accumulates the parts of a listing query for row type T. Orders
// are collected and applied at execution so caller sorts always precede
// the key order.
type Select[T any] struct {
	typ        *row.Type[T]
	q          *bun.SelectQuery
	rows       []*T
	columns    int
	orders     []orderBy
	keyOrder   []orderBy
	skip       int
	take       int
	countTotal bool
}

// New starts a query for typ on db, joining every declared join.
func New[T any](db bun.IDB, typ *row.Type[T]) *Select[T] {
	s := &Select[T]{typ: typ}
	s.q = db.NewSelect().Model(&s.rows)
	for _, join := range typ.Joins() {
		s.q = s.q.Join(join)
	}
	return s
}

// Query exposes the underlying bun query.
func (s *Select[T]) Query() *bun.SelectQuery {
	return s.q
}

// Column adds f to the projection. Client side fields are ignored.
func (s *Select[T]) Column(f *row.Field) *Select[T] {
	if f == nil || f.IsClientSide() {
		return s
	}
	if f.Expression != "" {
		s.q = s.q.ColumnExpr("? AS ?", bun.Safe(f.Expression), bun.Ident(f.Name))
	} else {
		s.q = s.q.ColumnExpr("?TableAlias.?", bun.Ident(f.Name))
	}
	s.columns++
	return s
}

// Columns reports how many fields were projected.
func (s *Select[T]) Columns() int {
	return s.columns
}

// KeyOrder appends ascending orders on fields, used as the last tie-breaker.
func (s *Select[T]) KeyOrder(fields ...*row.Field) *Select[T] {
	for _, f := range fields {
		if f != nil && !f.IsClientSide() {
			s.keyOrder = append(s.keyOrder, orderBy{field: f})
		}
	}
	return s
}

// OrderBy appends a sort on f ahead of the key order.
func (s *Select[T]) OrderBy(f *row.Field, desc bool) error {
	if f == nil || f.IsClientSide() {
		return ErrUnsortable
	}
	s.orders = append(s.orders, orderBy{field: f, desc: desc})
	return nil
}

// Ordered reports whether a sort other than the key order was applied.
func (s *Select[T]) Ordered() bool {
	return len(s.orders) > 0
}

// ApplySkipTakeAndCount records paging. The total count is computed only
// when countTotal is set.
func (s *Select[T]) ApplySkipTakeAndCount(skip, take int, countTotal bool) *Select[T] {
	s.skip = skip
	s.take = take
	s.countTotal = countTotal
	return s
}

// ApplyContainsText restricts rows to those whose name contains text or
// whose id equals text when it parses as the id kind. A type with neither
// capability is left untouched.
func (s *Select[T]) ApplyContainsText(text string) *Select[T] {
	text = strings.TrimSpace(text)
	if text == "" {
		return s
	}

	nameF := s.typ.NameField()
	idF := s.typ.IDField()
	idValue, idOK := ParseID(idF, text)

	switch {
	case nameF != nil && !nameF.IsClientSide():
		pattern := "%" + likeEscaper.Replace(text) + "%"
		s.q = s.q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			q = q.Where(`? LIKE ? ESCAPE '\'`, fieldExpr(nameF), pattern)
			if idOK {
				q = q.WhereOr("? = ?", fieldExpr(idF), idValue)
			}
			return q
		})
	case idF != nil:
		if !idOK {
			s.q = s.q.Where("1 = 0")
			return s
		}
		s.q = s.q.Where("? = ?", fieldExpr(idF), idValue)
	}
	return s
}

// WhereActive keeps rows whose active-state is positive.
func (s *Select[T]) WhereActive() *Select[T] {
	if f := s.typ.IsActiveField(); f != nil {
		s.q = s.q.Where("? > 0", fieldExpr(f))
	}
	return s
}

// WhereEquals adds an equality filter on f. A nil value matches NULL.
func (s *Select[T]) WhereEquals(f *row.Field, value any) error {
	if f == nil || f.IsClientSide() {
		return ErrUnfilterable
	}
	if value == nil {
		s.q = s.q.Where("? IS NULL", fieldExpr(f))
		return nil
	}
	s.q = s.q.Where("? = ?", fieldExpr(f), value)
	return nil
}

// Where adds a raw condition.
func (s *Select[T]) Where(query string, args ...any) *Select[T] {
	s.q = s.q.Where(query, args...)
	return s
}

// Apply runs criteria against the underlying query.
func (s *Select[T]) Apply(criteria ...func(*bun.SelectQuery) *bun.SelectQuery) *Select[T] {
	for _, c := range criteria {
		if c != nil {
			s.q = c(s.q)
		}
	}
	return s
}

// Result is the outcome of Execute.
type Result[T any] struct {
	Rows []*T
	// Total is the count of matching rows ignoring paging, or -1 when it was not requested.
	Total int
}

// Execute runs the count query when requested and then the paged select.
func (s *Select[T]) Execute(ctx context.Context) (*Result[T], error) {
	total := -1
	if s.countTotal {
		n, err := s.q.Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("sqlselect: count %s: %w", s.typ.Name(), err)
		}
		total = n
	}

	for _, o := range append(append([]orderBy{}, s.orders...), s.keyOrder...) {
		if o.desc {
			s.q = s.q.OrderExpr("? DESC", fieldExpr(o.field))
		} else {
			s.q = s.q.OrderExpr("? ASC", fieldExpr(o.field))
		}
	}
	switch {
	case s.take > 0:
		s.q = s.q.Limit(s.take)
	case s.skip > 0 && s.q.Dialect().Name() == dialect.SQLite:
		// sqlite rejects OFFSET without LIMIT and bun omits a non-positive one
		s.q = s.q.Limit(math.MaxInt32)
	}
	if s.skip > 0 {
		s.q = s.q.Offset(s.skip)
	}

	if err := s.q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("sqlselect: select %s: %w", s.typ.Name(), err)
	}

	return &Result[T]{Rows: s.rows, Total: total}, nil
}

// ParseID converts text into a value of the id field's kind.
func ParseID(f *row.Field, text string) (any, bool) {
	if f == nil {
		return nil, false
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}
	switch f.Kind {
	case row.KindInt:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, false
		}
		return n, true
	case row.KindUUID:
		id, err := uuid.Parse(text)
		if err != nil {
			return nil, false
		}
		return id, true
	default:
		return text, true
	}
}

func fieldExpr(f *row.Field) any {
	if f.Expression != "" {
		return bun.Safe(f.Expression)
	}
	return bun.SafeQuery("?TableAlias.?", bun.Ident(f.Name))
}
