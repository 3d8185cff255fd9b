// Package audit records restorations of soft-deleted rows.
//
// A row type either opts into field level change capture, in which case a
// snapshot of the restored row is handed to a CaptureLogger, or gets a
// generic entry in the audit Store naming the entity, its parent and the
// acting user. The choice is made once per row type when its Coordinator
// is built.
package audit

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-service-handlers/row"
	"github.com/goliatone/go-service-handlers/uow"
)

// Strategy identifies how a row type is audited.
type Strategy int

const (
	StrategyGeneric Strategy = iota
	StrategyCapture
)

func (s Strategy) String() string {
	if s == StrategyCapture {
		return "capture"
	}
	return "generic"
}

// Sinks are the shared audit destinations.
type Sinks struct {
	Store    Store
	Capture  CaptureLogger
	Registry *row.Registry
	Logger   logrus.FieldLogger
}

// Coordinator audits restorations of rows of type T.
type Coordinator[T any] struct {
	typ        *row.Type[T]
	strategy   Strategy
	parentType string
	sinks      Sinks
	logger     logrus.FieldLogger
}

// NewCoordinator resolves the strategy and parent type name for typ. Parent
// types are looked up by table in sinks.Registry, so the registry should be
// populated before coordinators are built. An unregistered parent is named
// by its table.
func NewCoordinator[T any](typ *row.Type[T], sinks Sinks) (*Coordinator[T], error) {
	if typ == nil {
		return nil, fmt.Errorf("audit: row type is required")
	}

	c := &Coordinator[T]{typ: typ, sinks: sinks}

	if typ.Policy().CaptureLog {
		if sinks.Capture == nil {
			return nil, fmt.Errorf("audit: %s uses change capture but no capture logger is configured", typ.Name())
		}
		c.strategy = StrategyCapture
	} else if sinks.Store == nil {
		return nil, fmt.Errorf("audit: %s needs an audit store", typ.Name())
	}

	if parent := typ.ParentIDField(); parent != nil && parent.ForeignTable != "" {
		c.parentType = parent.ForeignTable
		if sinks.Registry != nil {
			if d, ok := sinks.Registry.ByTable(parent.ForeignTable); ok {
				c.parentType = d.Name()
			}
		}
	}

	logger := sinks.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	c.logger = logger.WithFields(logrus.Fields{
		"component": "audit",
		"type":      typ.Name(),
		"strategy":  c.strategy.String(),
	})

	return c, nil
}

// Strategy returns the strategy chosen for T.
func (c *Coordinator[T]) Strategy() Strategy {
	return c.strategy
}

// ParentType returns the resolved parent type name, empty when T has no parent reference.
func (c *Coordinator[T]) ParentType() string {
	return c.parentType
}

// Undeleted audits the restoration of entity inside u.
func (c *Coordinator[T]) Undeleted(ctx context.Context, u *uow.UnitOfWork, entity *T, userID any) error {
	id := c.typ.IDValue(entity)

	if c.strategy == StrategyCapture {
		c.typ.SetIsActiveValue(entity, 1)
		if err := c.sinks.Capture.LogChange(ctx, u, c.typ.Table(), id, entity, userID, false); err != nil {
			return err
		}
		c.logger.WithField("id", id).Debug("undelete captured")
		return nil
	}

	entry := Entry{
		Action:     ActionUndelete,
		EntityType: c.typ.Name(),
		EntityID:   id,
		UserID:     userID,
	}
	if c.parentType != "" {
		entry.ParentType = c.parentType
		entry.ParentID = c.typ.ParentIDValue(entity)
	}

	if err := c.sinks.Store.RecordUndelete(ctx, u.DB(), entry); err != nil {
		return err
	}
	c.logger.WithField("id", id).Debug("undelete audited")
	return nil
}
