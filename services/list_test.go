package services

import (
	"context"
	"testing"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-service-handlers/pkg/testsupport"
	"github.com/goliatone/go-service-handlers/row"
	"github.com/goliatone/go-service-handlers/security"
)

type customer = testsupport.Customer

func seededDB(t *testing.T) *bun.DB {
	t.Helper()
	db := testsupport.NewDB(t)
	testsupport.Seed(t, db)
	return db
}

func customerIDs(entities []*customer) []int64 {
	out := make([]int64, len(entities))
	for i, e := range entities {
		out[i] = e.ID
	}
	return out
}

func sameIDs(got []int64, want ...int64) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestListHandler_DefaultListing(t *testing.T) {
	db := seededDB(t)
	h := NewListHandler(testsupport.CustomerType())

	resp, err := h.Process(context.Background(), db, &ListRequest{})
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}

	// active rows only, native sort by name
	if !sameIDs(customerIDs(resp.Entities), 1, 2, 5) {
		t.Errorf("unexpected rows %v", customerIDs(resp.Entities))
	}
	if resp.TotalCount != 3 {
		t.Errorf("expected total 3, got %d", resp.TotalCount)
	}

	first := resp.Entities[0]
	if first.Name != "Alice Corp" || first.Email != "alice@example.com" || first.IsActive != 1 {
		t.Errorf("expected list fields to be loaded, got %+v", first)
	}
	if first.Notes != "" || first.Secret != "" || first.CategoryName != "" {
		t.Errorf("expected details, never and foreign fields to be skipped, got %+v", first)
	}
}

func TestListHandler_IncludeDeleted(t *testing.T) {
	db := seededDB(t)
	h := NewListHandler(testsupport.CustomerType())

	resp, err := h.Process(context.Background(), db, &ListRequest{IncludeDeleted: true})
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if !sameIDs(customerIDs(resp.Entities), 1, 2, 3, 4, 5) {
		t.Errorf("unexpected rows %v", customerIDs(resp.Entities))
	}
}

func TestListHandler_ColumnSelection(t *testing.T) {
	db := seededDB(t)
	h := NewListHandler(testsupport.CustomerType())
	ctx := context.Background()

	tests := []struct {
		name  string
		req   *ListRequest
		check func(t *testing.T, c *customer)
	}{
		{
			name: "lookup",
			req:  &ListRequest{ColumnSelection: ColumnsLookup},
			check: func(t *testing.T, c *customer) {
				if c.ID == 0 || c.Name == "" || c.Email != "" {
					t.Errorf("lookup should load id and name only, got %+v", c)
				}
			},
		},
		{
			name: "details",
			req:  &ListRequest{ColumnSelection: ColumnsDetails},
			check: func(t *testing.T, c *customer) {
				if c.Notes != "priority" || c.CategoryName != "Retail" || c.Secret != "" {
					t.Errorf("details should load notes and foreign fields, got %+v", c)
				}
			},
		},
		{
			name: "key only",
			req:  &ListRequest{ColumnSelection: ColumnsKeyOnly},
			check: func(t *testing.T, c *customer) {
				if c.ID != 1 || c.Name != "" || c.IsActive != 1 {
					t.Errorf("key only should load id and always fields, got %+v", c)
				}
			},
		},
		{
			name: "include by property name",
			req:  &ListRequest{ColumnSelection: ColumnsLookup, IncludeColumns: NewColumnSet("CategoryName")},
			check: func(t *testing.T, c *customer) {
				if c.CategoryName != "Retail" {
					t.Errorf("expected included foreign field, got %+v", c)
				}
			},
		},
		{
			name: "exclude by column name",
			req:  &ListRequest{ExcludeColumns: NewColumnSet("email")},
			check: func(t *testing.T, c *customer) {
				if c.Email != "" || c.Name == "" {
					t.Errorf("expected email to be excluded, got %+v", c)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := h.Process(ctx, db, tt.req)
			if err != nil {
				t.Fatalf("process failed: %v", err)
			}
			if len(resp.Entities) == 0 {
				t.Fatal("expected rows")
			}
			tt.check(t, resp.Entities[0])
		})
	}
}

func TestListHandler_PagingAndCount(t *testing.T) {
	db := seededDB(t)
	rec := testsupport.Record(db)
	h := NewListHandler(testsupport.CustomerType())

	resp, err := h.Process(context.Background(), db, &ListRequest{Skip: 1, Take: 1})
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if !sameIDs(customerIDs(resp.Entities), 2) {
		t.Errorf("unexpected page %v", customerIDs(resp.Entities))
	}
	if resp.TotalCount != 3 || resp.Skip != 1 || resp.Take != 1 {
		t.Errorf("unexpected response meta %+v", resp)
	}
	if rec.Count("count(") != 1 {
		t.Errorf("expected one count query, got %v", rec.Queries())
	}
}

func TestListHandler_ExcludeTotalCountSkipsCountQuery(t *testing.T) {
	db := seededDB(t)
	rec := testsupport.Record(db)
	h := NewListHandler(testsupport.CustomerType())

	resp, err := h.Process(context.Background(), db, &ListRequest{Take: 2, ExcludeTotalCount: true})
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if rec.Count("count(") != 0 {
		t.Errorf("expected no count query, got %v", rec.Queries())
	}
	if resp.TotalCount != 2 {
		t.Errorf("expected total to be the matched rows, got %d", resp.TotalCount)
	}

	resp, err = h.Process(context.Background(), db, &ListRequest{Skip: 1, Take: 1, ExcludeTotalCount: true})
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if resp.TotalCount != 1 {
		t.Errorf("expected total to be the page length without a count query, got %d", resp.TotalCount)
	}
}

func TestListHandler_SkipWithoutTake(t *testing.T) {
	db := seededDB(t)
	h := NewListHandler(testsupport.CustomerType())

	resp, err := h.Process(context.Background(), db, &ListRequest{Skip: 1})
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if !sameIDs(customerIDs(resp.Entities), 2, 5) {
		t.Errorf("unexpected rows %v", customerIDs(resp.Entities))
	}
	if resp.TotalCount != 3 || resp.Skip != 1 || resp.Take != 0 {
		t.Errorf("unexpected response meta %+v", resp)
	}
}

func TestListHandler_UnpagedSkipsCountQuery(t *testing.T) {
	db := seededDB(t)
	rec := testsupport.Record(db)
	h := NewListHandler(testsupport.CustomerType())

	if _, err := h.Process(context.Background(), db, &ListRequest{}); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if rec.Count("count(") != 0 {
		t.Errorf("expected no count query, got %v", rec.Queries())
	}
}

func TestListHandler_ContainsText(t *testing.T) {
	db := seededDB(t)
	h := NewListHandler(testsupport.CustomerType())
	ctx := context.Background()

	tests := []struct {
		text string
		want []int64
	}{
		{"corp", []int64{1}},
		{"5", []int64{5}},
		{"Carol", nil},
		{"e", []int64{1, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			resp, err := h.Process(ctx, db, &ListRequest{ContainsText: tt.text})
			if err != nil {
				t.Fatalf("process failed: %v", err)
			}
			if !sameIDs(customerIDs(resp.Entities), tt.want...) {
				t.Errorf("got %v, want %v", customerIDs(resp.Entities), tt.want)
			}
		})
	}
}

func TestListHandler_Sort(t *testing.T) {
	db := seededDB(t)
	ctx := context.Background()

	tests := []struct {
		name string
		h    *ListHandler[customer]
		req  *ListRequest
		want []int64
	}{
		{"explicit descending", NewListHandler(testsupport.CustomerType()), &ListRequest{Sort: []SortBy{{Field: "Name", Descending: true}}}, []int64{5, 2, 1}},
		{"foreign field with key tie-breaker", NewListHandler(testsupport.CustomerType()), &ListRequest{IncludeDeleted: true, Sort: []SortBy{ParseSortBy("category_name desc")}}, []int64{2, 4, 1, 3, 5}},
		{"custom native sort", NewListHandler(testsupport.CustomerType(), WithNativeSort[customer](SortBy{Field: "email", Descending: true})), &ListRequest{}, []int64{5, 2, 1}},
		{"key order without name", NewListHandler(testsupport.CustomerType(), WithNativeSort[customer]()), &ListRequest{}, []int64{1, 2, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := tt.h.Process(ctx, db, tt.req)
			if err != nil {
				t.Fatalf("process failed: %v", err)
			}
			if !sameIDs(customerIDs(resp.Entities), tt.want...) {
				t.Errorf("got %v, want %v", customerIDs(resp.Entities), tt.want)
			}
		})
	}
}

func TestListHandler_EqualityFilterAndCriteria(t *testing.T) {
	db := seededDB(t)
	ctx := context.Background()

	h := NewListHandler(testsupport.CustomerType())
	resp, err := h.Process(ctx, db, &ListRequest{EqualityFilter: map[string]any{"CategoryID": 1}})
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if !sameIDs(customerIDs(resp.Entities), 1, 5) {
		t.Errorf("unexpected rows %v", customerIDs(resp.Entities))
	}

	var onlyExample repository.SelectCriteria = func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.email LIKE ?", "%e@example.com")
	}
	h = NewListHandler(testsupport.CustomerType(), WithCriteria[customer](onlyExample))
	resp, err = h.Process(ctx, db, &ListRequest{IncludeDeleted: true})
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if !sameIDs(customerIDs(resp.Entities), 1, 4, 5) {
		t.Errorf("unexpected rows %v", customerIDs(resp.Entities))
	}
}

func TestListHandler_ProcessEntity(t *testing.T) {
	db := seededDB(t)

	var sawEmail bool
	h := NewListHandler(testsupport.CustomerType(), WithProcessEntity(func(ctx context.Context, sel Selection, c *customer) *customer {
		sawEmail = sel.IsColumnIncluded("Email")
		if c.ID == 2 {
			return nil
		}
		c.Score = len(c.Name)
		return c
	}))

	resp, err := h.Process(context.Background(), db, &ListRequest{Take: 10})
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if !sameIDs(customerIDs(resp.Entities), 1, 5) {
		t.Errorf("unexpected rows %v", customerIDs(resp.Entities))
	}
	if resp.TotalCount != 3 {
		t.Errorf("dropping entities must not change the total, got %d", resp.TotalCount)
	}
	if resp.Entities[0].Score != len("Alice Corp") {
		t.Errorf("expected hook to set client side score, got %d", resp.Entities[0].Score)
	}
	if !sawEmail {
		t.Error("expected the hook to see the selection")
	}
}

func TestListHandler_QueryAndProcessEntities(t *testing.T) {
	db := seededDB(t)
	h := NewListHandler(testsupport.CustomerType(), WithProcessEntity(func(ctx context.Context, sel Selection, c *customer) *customer {
		if c.ID == 2 {
			return nil
		}
		c.Score = 7
		return c
	}))

	raw, err := h.Query(context.Background(), db, &ListRequest{})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if !sameIDs(customerIDs(raw.Entities), 1, 2, 5) {
		t.Fatalf("expected unprocessed rows, got %v", customerIDs(raw.Entities))
	}

	processed := h.ProcessEntities(context.Background(), &ListRequest{}, raw)
	if !sameIDs(customerIDs(processed.Entities), 1, 5) || processed.TotalCount != 3 {
		t.Errorf("unexpected processed response %v total %d", customerIDs(processed.Entities), processed.TotalCount)
	}
	if processed.Entities[0].Score != 7 {
		t.Errorf("expected processed score, got %d", processed.Entities[0].Score)
	}
	for _, c := range raw.Entities {
		if c.Score != 0 {
			t.Errorf("expected the queried rows to stay untouched, customer %d has score %d", c.ID, c.Score)
		}
	}
	if len(raw.Entities) != 3 {
		t.Errorf("expected the queried response to keep its rows, got %d", len(raw.Entities))
	}
}

func TestListHandler_Errors(t *testing.T) {
	db := seededDB(t)
	ctx := context.Background()
	h := NewListHandler(testsupport.CustomerType(), WithMaxTake[customer](2))

	tests := []struct {
		name string
		db   bun.IDB
		req  *ListRequest
		kind Kind
	}{
		{"nil db", nil, &ListRequest{}, KindInvalidArgument},
		{"nil request", db, nil, KindInvalidArgument},
		{"negative skip", db, &ListRequest{Skip: -1}, KindValidation},
		{"take above max", db, &ListRequest{Take: 3}, KindValidation},
		{"unknown sort field", db, &ListRequest{Sort: []SortBy{{Field: "nope"}}}, KindValidation},
		{"client side sort field", db, &ListRequest{Sort: []SortBy{{Field: "Score"}}}, KindValidation},
		{"unknown filter field", db, &ListRequest{EqualityFilter: map[string]any{"nope": 1}}, KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Process(ctx, tt.db, tt.req)
			if !IsKind(err, tt.kind) {
				t.Errorf("expected %s, got %v", tt.kind, err)
			}
		})
	}
}

func TestListHandler_ReadPermission(t *testing.T) {
	db := seededDB(t)
	typ := testsupport.CustomerType(row.WithReadPermission(row.Permission("customers:read")))
	gate := security.NewGate(security.ContextEvaluator{}, nil)
	h := NewListHandler(typ, WithListGate[customer](gate))

	anon := context.Background()
	if _, err := h.Process(anon, db, &ListRequest{}); !IsKind(err, KindUnauthorized) {
		t.Errorf("expected unauthorized for anonymous caller, got %v", err)
	}

	reader := security.WithUser(anon, &security.User{ID: 1, Permissions: []string{"customers:read"}})
	if _, err := h.Process(reader, db, &ListRequest{}); err != nil {
		t.Errorf("expected reader to list, got %v", err)
	}

	unchecked := NewListHandler(typ, WithoutReadPermission[customer]())
	if _, err := unchecked.Process(anon, db, &ListRequest{}); err != nil {
		t.Errorf("expected unchecked handler to list, got %v", err)
	}
}

func TestListHandler_IdentityOnlyType(t *testing.T) {
	db := testsupport.NewDB(t)
	testsupport.CreateSchema(t, db)
	testsupport.Exec(t, db, `INSERT INTO notes (id, body) VALUES (2, 'b'), (1, 'a')`)

	h := NewListHandler(testsupport.NoteType())
	resp, err := h.Process(context.Background(), db, &ListRequest{})
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if len(resp.Entities) != 2 || resp.Entities[0].ID != 1 || resp.Entities[0].Body != "a" {
		t.Errorf("expected key ordered notes, got %+v", resp.Entities)
	}

	resp, err = h.Process(context.Background(), db, &ListRequest{ContainsText: "2"})
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if len(resp.Entities) != 1 || resp.Entities[0].ID != 2 {
		t.Errorf("expected id match, got %+v", resp.Entities)
	}
}
