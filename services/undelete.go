package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-service-handlers/audit"
	"github.com/goliatone/go-service-handlers/cache"
	"github.com/goliatone/go-service-handlers/internal/sqlselect"
	"github.com/goliatone/go-service-handlers/row"
	"github.com/goliatone/go-service-handlers/security"
	"github.com/goliatone/go-service-handlers/uow"
)

// Active-state values written and matched by the restoration.
const (
	stateActive  = 1
	stateDeleted = -1
)

// UndeleteHook runs inside the unit of work with the loaded entity.
// Returning an error aborts the restoration.
type UndeleteHook[T any] func(ctx context.Context, u *uow.UnitOfWork, entity *T) error

// UndeleteHandler restores soft-deleted rows of type T.
type UndeleteHandler[T any] struct {
	typ         *row.Type[T]
	gate        *security.Gate
	auditor     *audit.Coordinator[T]
	invalidator *cache.Invalidator
	logger      logrus.FieldLogger
	validate    func(ctx context.Context, req *UndeleteRequest) error
	before      []UndeleteHook[T]
	after       []UndeleteHook[T]
}

// UndeleteOption configures an UndeleteHandler.
type UndeleteOption[T any] func(*UndeleteHandler[T])

// WithUndeleteGate sets the gate enforcing the row type's modify permission.
func WithUndeleteGate[T any](gate *security.Gate) UndeleteOption[T] {
	return func(h *UndeleteHandler[T]) { h.gate = gate }
}

// WithAuditor sets the audit coordinator. Without one nothing is audited.
func WithAuditor[T any](auditor *audit.Coordinator[T]) UndeleteOption[T] {
	return func(h *UndeleteHandler[T]) { h.auditor = auditor }
}

// WithInvalidator sets the cache invalidator used for two-level cached row types.
func WithInvalidator[T any](invalidator *cache.Invalidator) UndeleteOption[T] {
	return func(h *UndeleteHandler[T]) { h.invalidator = invalidator }
}

// WithUndeleteLogger sets the handler logger.
func WithUndeleteLogger[T any](logger logrus.FieldLogger) UndeleteOption[T] {
	return func(h *UndeleteHandler[T]) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithValidateRequest adds request validation run before any query.
func WithValidateRequest[T any](fn func(ctx context.Context, req *UndeleteRequest) error) UndeleteOption[T] {
	return func(h *UndeleteHandler[T]) { h.validate = fn }
}

// WithBeforeUndelete adds a hook run before the row is updated.
func WithBeforeUndelete[T any](hook UndeleteHook[T]) UndeleteOption[T] {
	return func(h *UndeleteHandler[T]) {
		if hook != nil {
			h.before = append(h.before, hook)
		}
	}
}

// WithAfterUndelete adds a hook run after the row is updated, before auditing.
func WithAfterUndelete[T any](hook UndeleteHook[T]) UndeleteOption[T] {
	return func(h *UndeleteHandler[T]) {
		if hook != nil {
			h.after = append(h.after, hook)
		}
	}
}

// NewUndeleteHandler creates a restoration handler for typ.
func NewUndeleteHandler[T any](typ *row.Type[T], opts ...UndeleteOption[T]) *UndeleteHandler[T] {
	h := &UndeleteHandler[T]{
		typ:    typ,
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.WithFields(logrus.Fields{
		"handler": "undelete",
		"type":    typ.Name(),
	})
	return h
}

// Process restores the row identified by req inside u. The caller commits
// or rolls back u; cache invalidation only happens on commit.
func (h *UndeleteHandler[T]) Process(ctx context.Context, u *uow.UnitOfWork, req *UndeleteRequest) (*UndeleteResponse, error) {
	if u == nil {
		return nil, invalidArgument("undelete: unit of work is required")
	}
	if req == nil {
		return nil, invalidArgument("undelete: request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, requestValidationError("undelete: invalid request", err)
	}
	if h.validate != nil {
		if err := h.validate(ctx, req); err != nil {
			return nil, err
		}
	}

	activeF := h.typ.IsActiveField()
	idF := h.typ.IDField()
	if activeF == nil || idF == nil {
		return nil, notImplemented(fmt.Sprintf("undelete: %s does not support soft delete", h.typ.Name()))
	}

	if err := h.gate.Check(ctx, h.typ.Policy().ModifyPermission); err != nil {
		return nil, err
	}

	id, err := h.entityID(idF, req.EntityID)
	if err != nil {
		return nil, err
	}

	logger := h.logger.WithFields(logrus.Fields{"id": id, "uow": u.ID()})

	entity, err := h.load(ctx, u.DB(), idF, id)
	if err != nil {
		return nil, err
	}

	if h.typ.IsActiveValue(entity) > 0 {
		logger.Debug("row is not deleted")
		return &UndeleteResponse{WasNotDeleted: true}, nil
	}

	for _, hook := range h.before {
		if err := hook(ctx, u, entity); err != nil {
			return nil, err
		}
	}

	res, err := u.DB().NewUpdate().
		TableExpr("?", bun.Ident(h.typ.Table())).
		Set("? = ?", bun.Ident(activeF.Name), stateActive).
		Where("? = ?", bun.Ident(idF.Name), id).
		Where("? = ?", bun.Ident(activeF.Name), stateDeleted).
		Exec(ctx)
	if err != nil {
		return nil, internalError(err, "undelete: update failed")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, internalError(err, "undelete: reading affected rows failed")
	}
	if affected != 1 {
		logger.WithField("affected", affected).Warn("row changed before restoration")
		return nil, notFound(h.typ.Name(), id, true)
	}
	h.typ.SetIsActiveValue(entity, stateActive)

	if policy := h.typ.Policy(); policy.TwoLevelCached {
		keys := append([]string{h.typ.GenerationKey()}, policy.GenerationKeys...)
		h.invalidator.InvalidateOnCommit(u, keys...)
	}

	for _, hook := range h.after {
		if err := hook(ctx, u, entity); err != nil {
			return nil, err
		}
	}

	if h.auditor != nil {
		if err := h.auditor.Undeleted(ctx, u, entity, h.gate.CurrentUserID(ctx)); err != nil {
			return nil, internalError(err, "undelete: audit failed")
		}
	}

	logger.Info("row restored")
	return &UndeleteResponse{}, nil
}

func (h *UndeleteHandler[T]) entityID(idF *row.Field, value any) (any, error) {
	text, ok := value.(string)
	if !ok {
		return value, nil
	}
	id, ok := sqlselect.ParseID(idF, text)
	if !ok {
		return nil, validationError("undelete: invalid entity id", map[string]any{"EntityID": text})
	}
	return id, nil
}

func (h *UndeleteHandler[T]) load(ctx context.Context, db bun.IDB, idF *row.Field, id any) (*T, error) {
	entity := h.typ.New()

	q := db.NewSelect().Model(entity)
	for _, f := range h.typ.Fields() {
		if f.IsTableField() {
			q = q.ColumnExpr("?TableAlias.?", bun.Ident(f.Name))
		}
	}

	err := q.Where("?TableAlias.? = ?", bun.Ident(idF.Name), id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(h.typ.Name(), id, false)
	}
	if err != nil {
		return nil, internalError(err, "undelete: load failed")
	}
	return entity, nil
}
