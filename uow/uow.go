// Package uow wraps a bun transaction with a commit-scoped callback list.
//
// Side effects that must only become visible once data is durable (cache
// generation bumps, notifications) are registered with OnCommit. They run
// after the transaction commits, in registration order, and are discarded
// when the transaction rolls back.
package uow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
)

// ErrCompleted is returned when a unit of work is used after Commit or Rollback.
var ErrCompleted = errors.New("uow: unit of work already completed")

type callback struct {
	key string
	fn  func(context.Context)
}

// UnitOfWork is a transaction plus the callbacks to run when it commits.
// It must not be shared across concurrent requests.
type UnitOfWork struct {
	id        string
	tx        bun.Tx
	logger    logrus.FieldLogger
	mu        sync.Mutex
	callbacks []callback
	keys      map[string]struct{}
	completed bool
}

// Option configures a UnitOfWork.
type Option func(*UnitOfWork)

// WithLogger sets the logger used for commit and callback diagnostics.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(u *UnitOfWork) {
		if logger != nil {
			u.logger = logger
		}
	}
}

// Begin starts a transaction on db and wraps it.
func Begin(ctx context.Context, db *bun.DB, opts ...Option) (*UnitOfWork, error) {
	if db == nil {
		return nil, fmt.Errorf("uow: db is required")
	}
	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("uow: begin transaction: %w", err)
	}
	return New(tx, opts...), nil
}

// New wraps an already started transaction.
func New(tx bun.Tx, opts ...Option) *UnitOfWork {
	u := &UnitOfWork{
		id:     uuid.NewString(),
		tx:     tx,
		logger: logrus.StandardLogger(),
		keys:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(u)
	}
	u.logger = u.logger.WithField("uow", u.id)
	return u
}

// ID identifies the unit of work in logs.
func (u *UnitOfWork) ID() string {
	return u.id
}

// DB returns the transaction as a bun.IDB for query building.
func (u *UnitOfWork) DB() bun.IDB {
	return u.tx
}

// Logger returns the unit of work scoped logger.
func (u *UnitOfWork) Logger() logrus.FieldLogger {
	return u.logger
}

// OnCommit registers fn to run after a successful commit.
func (u *UnitOfWork) OnCommit(fn func(context.Context)) {
	if fn == nil {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.completed {
		return
	}
	u.callbacks = append(u.callbacks, callback{fn: fn})
}

// OnCommitOnce registers fn under key unless a callback with the same key is
// already registered. It reports whether fn was registered.
func (u *UnitOfWork) OnCommitOnce(key string, fn func(context.Context)) bool {
	if fn == nil {
		return false
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.completed {
		return false
	}
	if _, exists := u.keys[key]; exists {
		return false
	}
	u.keys[key] = struct{}{}
	u.callbacks = append(u.callbacks, callback{key: key, fn: fn})
	return true
}

// Pending returns the number of registered callbacks.
func (u *UnitOfWork) Pending() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.callbacks)
}

// Commit commits the transaction and then runs the registered callbacks.
// Callbacks do not run when the commit fails.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	callbacks, err := u.complete()
	if err != nil {
		return err
	}

	if err := u.tx.Commit(); err != nil {
		u.logger.WithError(err).Warn("commit failed, discarding commit callbacks")
		return fmt.Errorf("uow: commit: %w", err)
	}

	for _, cb := range callbacks {
		u.run(ctx, cb)
	}
	return nil
}

// Rollback aborts the transaction and drops every registered callback.
func (u *UnitOfWork) Rollback() error {
	callbacks, err := u.complete()
	if err != nil {
		return err
	}
	if len(callbacks) > 0 {
		u.logger.WithField("callbacks", len(callbacks)).Debug("rollback, discarding commit callbacks")
	}
	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("uow: rollback: %w", err)
	}
	return nil
}

func (u *UnitOfWork) complete() ([]callback, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.completed {
		return nil, ErrCompleted
	}
	u.completed = true
	callbacks := u.callbacks
	u.callbacks = nil
	u.keys = nil
	return callbacks, nil
}

func (u *UnitOfWork) run(ctx context.Context, cb callback) {
	defer func() {
		if r := recover(); r != nil {
			u.logger.WithFields(logrus.Fields{
				"key":   cb.key,
				"panic": r,
			}).Error("commit callback panicked")
		}
	}()
	cb.fn(ctx)
}

// Run executes fn inside a new unit of work, committing when fn succeeds and
// rolling back otherwise.
func Run(ctx context.Context, db *bun.DB, fn func(ctx context.Context, u *UnitOfWork) error, opts ...Option) error {
	u, err := Begin(ctx, db, opts...)
	if err != nil {
		return err
	}

	if err := fn(ctx, u); err != nil {
		if rbErr := u.Rollback(); rbErr != nil {
			u.logger.WithError(rbErr).Warn("rollback failed")
		}
		return err
	}

	return u.Commit(ctx)
}
