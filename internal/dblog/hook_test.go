package dblog

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/goliatone/go-service-handlers/pkg/testsupport"
)

func TestQueryHook_LogsQueries(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	db := testsupport.NewDB(t)
	db.AddQueryHook(NewQueryHook(logger))

	var n int
	if err := db.NewSelect().ColumnExpr("1").Scan(context.Background(), &n); err != nil {
		t.Fatalf("query failed: %v", err)
	}

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("expected a log entry")
	}
	if entry.Level != logrus.DebugLevel || entry.Message != "query executed" {
		t.Errorf("unexpected entry %s %q", entry.Level, entry.Message)
	}
	if entry.Data["operation"] != "SELECT" || entry.Data["component"] != "db" {
		t.Errorf("unexpected fields %v", entry.Data)
	}
}

func TestQueryHook_LogsFailures(t *testing.T) {
	logger, hook := test.NewNullLogger()

	db := testsupport.NewDB(t)
	db.AddQueryHook(NewQueryHook(logger))

	if _, err := db.ExecContext(context.Background(), "SELECT * FROM missing_table"); err == nil {
		t.Fatal("expected the query to fail")
	}

	entry := hook.LastEntry()
	if entry == nil || entry.Level != logrus.WarnLevel || entry.Message != "query failed" {
		t.Fatalf("expected a failure warning, got %+v", entry)
	}
	if _, ok := entry.Data[logrus.ErrorKey]; !ok {
		t.Error("expected the error to be attached")
	}
}

func TestQueryHook_SlowThreshold(t *testing.T) {
	logger, hook := test.NewNullLogger()

	db := testsupport.NewDB(t)
	db.AddQueryHook(NewQueryHook(logger, WithSlowThreshold(1)))

	if _, err := db.ExecContext(context.Background(), "SELECT 1"); err != nil {
		t.Fatalf("query failed: %v", err)
	}

	entry := hook.LastEntry()
	if entry == nil || entry.Message != "slow query" {
		t.Fatalf("expected a slow query warning, got %+v", entry)
	}
}
