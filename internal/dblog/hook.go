// Package dblog logs bun queries through logrus.
package dblog

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
)

// QueryHook logs every executed statement at debug level. Failed queries
// and queries slower than the configured threshold are logged as warnings.
// sql.ErrNoRows is not treated as a failure.
type QueryHook struct {
	logger logrus.FieldLogger
	slow   time.Duration
}

var _ bun.QueryHook = (*QueryHook)(nil)

// Option configures a QueryHook.
type Option func(*QueryHook)

// WithSlowThreshold logs queries taking at least d as warnings. Zero disables it.
func WithSlowThreshold(d time.Duration) Option {
	return func(h *QueryHook) { h.slow = d }
}

// NewQueryHook creates a hook writing to logger, or the standard logger when nil.
func NewQueryHook(logger logrus.FieldLogger, opts ...Option) *QueryHook {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	h := &QueryHook{logger: logger.WithField("component", "db")}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// BeforeQuery implements bun.QueryHook.
func (h *QueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

// AfterQuery logs the finished query, as a warning when it failed or
// reached the slow threshold.
func (h *QueryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	elapsed := time.Since(event.StartTime)
	entry := h.logger.WithFields(logrus.Fields{
		"operation": event.Operation(),
		"duration":  elapsed,
		"query":     event.Query,
	})

	switch {
	case event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows):
		entry.WithError(event.Err).Warn("query failed")
	case h.slow > 0 && elapsed >= h.slow:
		entry.Warn("slow query")
	default:
		entry.Debug("query executed")
	}
}
