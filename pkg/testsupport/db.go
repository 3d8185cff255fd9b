package testsupport

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "modernc.org/sqlite"
)

// NewDB opens an isolated in-memory sqlite database wrapped in bun.
// The pool is pinned to a single connection so every query sees the same
// in-memory database. The database is closed when the test ends.
func NewDB(t testing.TB) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open("sqlite", "file::memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// NewSharedDB opens a file backed sqlite database in shared cache mode
// with read_uncommitted set on every connection. A transaction that has
// only read a table then does not block other connections writing to it,
// which lets tests interleave transactions on separate connections.
func NewSharedDB(t testing.TB) *bun.DB {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "shared.db") + "?cache=shared&_pragma=read_uncommitted(1)"
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqldb.SetMaxOpenConns(4)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// Exec runs raw statements, failing the test on the first error.
func Exec(t testing.TB, db bun.IDB, statements ...string) {
	t.Helper()

	for _, stmt := range statements {
		if _, err := db.ExecContext(context.Background(), stmt); err != nil {
			t.Fatalf("failed to execute %q: %v", stmt, err)
		}
	}
}

// QueryRecorder is a bun query hook capturing every executed statement.
type QueryRecorder struct {
	mu      sync.Mutex
	queries []string
}

var _ bun.QueryHook = (*QueryRecorder)(nil)

// Record attaches a new recorder to db.
func Record(db *bun.DB) *QueryRecorder {
	rec := &QueryRecorder{}
	db.AddQueryHook(rec)
	return rec
}

func (r *QueryRecorder) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (r *QueryRecorder) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, event.Query)
}

// Queries returns the statements recorded so far.
func (r *QueryRecorder) Queries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.queries...)
}

// Count returns how many recorded statements contain fragment, case insensitive.
func (r *QueryRecorder) Count(fragment string) int {
	fragment = strings.ToLower(fragment)
	n := 0
	for _, q := range r.Queries() {
		if strings.Contains(strings.ToLower(q), fragment) {
			n++
		}
	}
	return n
}

// Reset forgets recorded statements.
func (r *QueryRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = nil
}
