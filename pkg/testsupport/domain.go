package testsupport

import (
	"context"
	"testing"

	"github.com/goliatone/go-service-handlers/row"
	"github.com/uptrace/bun"
)

// Category is the parent row of Customer in test fixtures.
type Category struct {
	bun.BaseModel `bun:"table:categories,alias:cat"`

	ID   int64  `bun:"id,pk,autoincrement" json:"id"`
	Name string `bun:"name,notnull" json:"name"`
}

func (c *Category) IDValue() any { return c.ID }

// Customer is a soft-deletable row with every capability the handlers use.
type Customer struct {
	bun.BaseModel `bun:"table:customers,alias:c"`

	ID           int64  `bun:"id,pk,autoincrement" json:"id"`
	Name         string `bun:"name,notnull" json:"name"`
	Email        string `bun:"email" json:"email"`
	Notes        string `bun:"notes" json:"notes"`
	Secret       string `bun:"secret" json:"secret"`
	CategoryID   int64  `bun:"category_id" json:"category_id"`
	CategoryName string `bun:"category_name,scanonly" json:"category_name"`
	IsActive     int    `bun:"is_active,notnull" json:"is_active"`
	Score        int    `bun:"-" json:"score"`
}

func (c *Customer) IDValue() any           { return c.ID }
func (c *Customer) IsActiveValue() int     { return c.IsActive }
func (c *Customer) SetIsActiveValue(v int) { c.IsActive = v }
func (c *Customer) ParentIDValue() any     { return c.CategoryID }

// Note is a row without name or active-state capabilities.
type Note struct {
	bun.BaseModel `bun:"table:notes,alias:n"`

	ID   int64  `bun:"id,pk,autoincrement" json:"id"`
	Body string `bun:"body" json:"body"`
}

func (n *Note) IDValue() any { return n.ID }

// CustomerTypeName is the registry name of the Customer row type.
const CustomerTypeName = "crm.Customer"

// CustomerType declares the Customer row type. Extra options (policies,
// cache settings) are appended to the base declaration.
func CustomerType(extra ...row.Option) *row.Type[Customer] {
	opts := []row.Option{
		row.WithTable("customers"),
		row.WithFields(
			row.Field{Name: "id", PropertyName: "ID", Kind: row.KindInt},
			row.Field{Name: "name", PropertyName: "Name", MinSelectLevel: row.SelectLookup},
			row.Field{Name: "email", PropertyName: "Email"},
			row.Field{Name: "notes", PropertyName: "Notes", MinSelectLevel: row.SelectDetails},
			row.Field{Name: "secret", PropertyName: "Secret", MinSelectLevel: row.SelectNever},
			row.Field{Name: "category_id", PropertyName: "CategoryID", Kind: row.KindInt},
			row.Field{Name: "category_name", PropertyName: "CategoryName", Flags: row.FlagForeign, Expression: "cat.name"},
			row.Field{Name: "is_active", PropertyName: "IsActive", MinSelectLevel: row.SelectAlways},
			row.Field{Name: "score", PropertyName: "Score", Flags: row.FlagClientSide},
		),
		row.WithJoin("LEFT JOIN categories AS cat ON cat.id = ?TableAlias.category_id"),
		row.WithID("id"),
		row.WithName("name"),
		row.WithIsActive("is_active"),
		row.WithParentID("category_id", "categories"),
	}
	return row.MustDefine[Customer](CustomerTypeName, append(opts, extra...)...)
}

// CategoryType declares the Category row type.
func CategoryType(extra ...row.Option) *row.Type[Category] {
	opts := []row.Option{
		row.WithTable("categories"),
		row.WithFields(
			row.Field{Name: "id", PropertyName: "ID", Kind: row.KindInt},
			row.Field{Name: "name", PropertyName: "Name", MinSelectLevel: row.SelectLookup},
		),
		row.WithID("id"),
		row.WithName("name"),
	}
	return row.MustDefine[Category]("crm.Category", append(opts, extra...)...)
}

// NoteType declares the Note row type: identity only.
func NoteType(extra ...row.Option) *row.Type[Note] {
	opts := []row.Option{
		row.WithTable("notes"),
		row.WithFields(
			row.Field{Name: "id", PropertyName: "ID", Kind: row.KindInt},
			row.Field{Name: "body", PropertyName: "Body"},
		),
		row.WithID("id"),
	}
	return row.MustDefine[Note]("crm.Note", append(opts, extra...)...)
}

// CreateSchema creates the fixture tables.
func CreateSchema(t testing.TB, db bun.IDB) {
	t.Helper()

	Exec(t, db,
		`CREATE TABLE categories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL
		)`,
		`CREATE TABLE customers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			email TEXT,
			notes TEXT,
			secret TEXT,
			category_id INTEGER,
			is_active INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE notes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			body TEXT
		)`,
	)
}

// Seed creates the schema and loads the embedded fixtures.
func Seed(t testing.TB, db bun.IDB) {
	t.Helper()

	CreateSchema(t, db)

	var categories []Category
	LoadEmbeddedJSON(t, "categories.json", &categories)
	var customers []Customer
	LoadEmbeddedJSON(t, "customers.json", &customers)

	ctx := context.Background()
	if _, err := db.NewInsert().Model(&categories).Exec(ctx); err != nil {
		t.Fatalf("failed to seed categories: %v", err)
	}
	if _, err := db.NewInsert().Model(&customers).Exec(ctx); err != nil {
		t.Fatalf("failed to seed customers: %v", err)
	}
}

// ActiveState reads the stored active-state of a customer.
func ActiveState(t testing.TB, db bun.IDB, id int64) int {
	t.Helper()

	var state int
	err := db.NewSelect().
		TableExpr("customers").
		Column("is_active").
		Where("id = ?", id).
		Scan(context.Background(), &state)
	if err != nil {
		t.Fatalf("failed to read active state of customer %d: %v", id, err)
	}
	return state
}
