package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-service-handlers/uow"
)

// Action names stored in the audit log.
const (
	ActionUndelete = "undelete"
)

// Entry describes an audited state change.
type Entry struct {
	Action     string
	EntityType string
	EntityID   any
	ParentType string
	ParentID   any
	UserID     any
}

// Store persists generic audit entries.
type Store interface {
	RecordUndelete(ctx context.Context, db bun.IDB, entry Entry) error
}

// CaptureLogger records a snapshot of the changed row.
type CaptureLogger interface {
	LogChange(ctx context.Context, u *uow.UnitOfWork, table string, id any, row any, actorID any, isDelete bool) error
}

// LogRecord is the audit_log row written by BunStore.
type LogRecord struct {
	bun.BaseModel `bun:"table:audit_log,alias:al"`

	ID         int64     `bun:"id,pk,autoincrement"`
	Action     string    `bun:"action,notnull"`
	EntityType string    `bun:"entity_type,notnull"`
	EntityID   string    `bun:"entity_id,notnull"`
	ParentType string    `bun:"parent_type,nullzero"`
	ParentID   string    `bun:"parent_id,nullzero"`
	UserID     string    `bun:"user_id,nullzero"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
}

// ChangeRecord is the change_log row written by BunCaptureLogger.
type ChangeRecord struct {
	bun.BaseModel `bun:"table:change_log,alias:chl"`

	ID        int64     `bun:"id,pk,autoincrement"`
	TableName string    `bun:"table_name,notnull"`
	EntityID  string    `bun:"entity_id,notnull"`
	Operation string    `bun:"operation,notnull"`
	UserID    string    `bun:"user_id,nullzero"`
	Snapshot  string    `bun:"snapshot"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

// CreateSchema creates the audit_log and change_log tables when missing.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, model := range []any{(*LogRecord)(nil), (*ChangeRecord)(nil)} {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("audit: create schema: %w", err)
		}
	}
	return nil
}

// BunStore writes audit entries to the audit_log table.
type BunStore struct {
	now func() time.Time
}

// NewBunStore creates a BunStore. A nil clock defaults to time.Now.
func NewBunStore(now func() time.Time) *BunStore {
	if now == nil {
		now = time.Now
	}
	return &BunStore{now: now}
}

func (s *BunStore) RecordUndelete(ctx context.Context, db bun.IDB, entry Entry) error {
	action := entry.Action
	if action == "" {
		action = ActionUndelete
	}

	record := &LogRecord{
		Action:     action,
		EntityType: entry.EntityType,
		EntityID:   stringify(entry.EntityID),
		ParentType: entry.ParentType,
		ParentID:   stringify(entry.ParentID),
		UserID:     stringify(entry.UserID),
		CreatedAt:  s.now().UTC(),
	}

	if _, err := db.NewInsert().Model(record).Exec(ctx); err != nil {
		return fmt.Errorf("audit: record %s of %s %s: %w", action, entry.EntityType, record.EntityID, err)
	}
	return nil
}

// BunCaptureLogger writes JSON row snapshots to the change_log table.
type BunCaptureLogger struct {
	now func() time.Time
}

// NewBunCaptureLogger creates a BunCaptureLogger. A nil clock defaults to time.Now.
func NewBunCaptureLogger(now func() time.Time) *BunCaptureLogger {
	if now == nil {
		now = time.Now
	}
	return &BunCaptureLogger{now: now}
}

func (l *BunCaptureLogger) LogChange(ctx context.Context, u *uow.UnitOfWork, table string, id any, row any, actorID any, isDelete bool) error {
	if u == nil {
		return fmt.Errorf("audit: change capture requires a unit of work")
	}

	snapshot, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("audit: snapshot %s %v: %w", table, id, err)
	}

	operation := "update"
	if isDelete {
		operation = "delete"
	}

	record := &ChangeRecord{
		TableName: table,
		EntityID:  stringify(id),
		Operation: operation,
		UserID:    stringify(actorID),
		Snapshot:  string(snapshot),
		CreatedAt: l.now().UTC(),
	}

	if _, err := u.DB().NewInsert().Model(record).Exec(ctx); err != nil {
		return fmt.Errorf("audit: capture %s %s: %w", table, record.EntityID, err)
	}
	return nil
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
