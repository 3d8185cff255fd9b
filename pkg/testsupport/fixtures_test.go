package testsupport

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFixture(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "test.txt")
	testContent := []byte("test fixture content")

	if err := os.WriteFile(testFile, testContent, 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	result := LoadFixture(t, testFile)
	if string(result) != string(testContent) {
		t.Errorf("expected %q, got %q", testContent, result)
	}
}

func TestLoadFixtureJSON(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "test.json")

	jsonData, err := json.Marshal([]Category{{ID: 9, Name: "Partners"}})
	if err != nil {
		t.Fatalf("failed to marshal test data: %v", err)
	}
	if err := os.WriteFile(testFile, jsonData, 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	var result []Category
	LoadFixtureJSON(t, testFile, &result)

	if len(result) != 1 || result[0].ID != 9 || result[0].Name != "Partners" {
		t.Errorf("unexpected fixture content: %+v", result)
	}
}

func TestLoadEmbeddedJSON(t *testing.T) {
	var customers []Customer
	LoadEmbeddedJSON(t, "customers.json", &customers)

	if len(customers) != 5 {
		t.Fatalf("expected 5 customers, got %d", len(customers))
	}
	if customers[2].IsActive != -1 {
		t.Errorf("expected customer 3 to be soft deleted, got %d", customers[2].IsActive)
	}
}

func TestSeed(t *testing.T) {
	db := NewDB(t)
	Seed(t, db)

	count, err := db.NewSelect().Model((*Customer)(nil)).Count(context.Background())
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 5 {
		t.Errorf("expected 5 seeded customers, got %d", count)
	}

	if state := ActiveState(t, db, 3); state != -1 {
		t.Errorf("expected customer 3 active state -1, got %d", state)
	}
}

func TestQueryRecorder(t *testing.T) {
	db := NewDB(t)
	rec := Record(db)
	CreateSchema(t, db)

	if rec.Count("create table") != 3 {
		t.Errorf("expected 3 create table statements, got %v", rec.Queries())
	}

	rec.Reset()
	if len(rec.Queries()) != 0 {
		t.Error("expected recorder to be empty after reset")
	}
}

func TestCustomerType(t *testing.T) {
	typ := CustomerType()

	if typ.Name() != CustomerTypeName || typ.Table() != "customers" {
		t.Errorf("unexpected identity %s/%s", typ.Name(), typ.Table())
	}
	if typ.ParentIDField() == nil || typ.ParentIDField().ForeignTable != "categories" {
		t.Error("expected parent reference to categories")
	}
	if len(typ.Joins()) != 1 {
		t.Errorf("expected one join, got %v", typ.Joins())
	}
}
