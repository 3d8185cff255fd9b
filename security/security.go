// Package security evaluates the permission requirements declared by row types.
//
// A requirement is a *string: nil means no check, an empty string requires
// an authenticated user and any other value is a permission key the current
// user must hold.
package security

import (
	"context"
	"errors"
	"slices"

	goerrors "github.com/goliatone/go-errors"
	"github.com/sirupsen/logrus"
)

// TextCodeUnauthorized is the text code carried by every error this package returns.
const TextCodeUnauthorized = "UNAUTHORIZED"

// PermissionAll is held by users granted every permission.
const PermissionAll = "*"

// Evaluator answers authorization questions about the caller in ctx.
type Evaluator interface {
	EnsureLoggedIn(ctx context.Context) error
	EnsurePermission(ctx context.Context, permission string) error
	CurrentUserID(ctx context.Context) any
}

// User is the authenticated caller as seen by ContextEvaluator.
type User struct {
	ID          any
	Username    string
	Permissions []string
}

// HasPermission reports whether u holds permission or PermissionAll.
func (u *User) HasPermission(permission string) bool {
	if u == nil {
		return false
	}
	return slices.Contains(u.Permissions, permission) || slices.Contains(u.Permissions, PermissionAll)
}

type userKey struct{}

// WithUser returns a context carrying u.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFrom returns the user stored by WithUser.
func UserFrom(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(userKey{}).(*User)
	return u, ok && u != nil
}

// ContextEvaluator authorizes against the User stored in the context.
type ContextEvaluator struct{}

var _ Evaluator = ContextEvaluator{}

// EnsureLoggedIn fails with NotLoggedIn when ctx carries no user.
func (ContextEvaluator) EnsureLoggedIn(ctx context.Context) error {
	if _, ok := UserFrom(ctx); !ok {
		return NotLoggedIn()
	}
	return nil
}

// EnsurePermission fails when ctx carries no user or the user lacks
// permission.
func (ContextEvaluator) EnsurePermission(ctx context.Context, permission string) error {
	u, ok := UserFrom(ctx)
	if !ok {
		return NotLoggedIn()
	}
	if !u.HasPermission(permission) {
		return PermissionDenied(permission)
	}
	return nil
}

// CurrentUserID returns the ID of the user in ctx, or nil.
func (ContextEvaluator) CurrentUserID(ctx context.Context) any {
	if u, ok := UserFrom(ctx); ok {
		return u.ID
	}
	return nil
}

// NotLoggedIn is returned when a requirement needs an authenticated caller.
func NotLoggedIn() *goerrors.Error {
	return goerrors.New("authentication required", goerrors.CategoryAuth).
		WithTextCode(TextCodeUnauthorized)
}

// PermissionDenied is returned when the caller lacks permission.
func PermissionDenied(permission string) *goerrors.Error {
	return goerrors.New("permission denied", goerrors.CategoryAuthz).
		WithTextCode(TextCodeUnauthorized).
		WithMetadata(map[string]any{"permission": permission})
}

// Gate applies requirements through an Evaluator.
type Gate struct {
	evaluator Evaluator
	logger    logrus.FieldLogger
}

// NewGate creates a gate. A nil evaluator denies every requirement.
func NewGate(evaluator Evaluator, logger logrus.FieldLogger) *Gate {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Gate{evaluator: evaluator, logger: logger}
}

// Evaluator returns the evaluator behind the gate.
func (g *Gate) Evaluator() Evaluator {
	if g == nil {
		return nil
	}
	return g.evaluator
}

// Check enforces requirement for the caller in ctx.
func (g *Gate) Check(ctx context.Context, requirement *string) error {
	if requirement == nil {
		return nil
	}

	if g == nil || g.evaluator == nil {
		return goerrors.New("no permission evaluator configured", goerrors.CategoryAuthz).
			WithTextCode(TextCodeUnauthorized)
	}

	var err error
	if *requirement == "" {
		err = g.evaluator.EnsureLoggedIn(ctx)
	} else {
		err = g.evaluator.EnsurePermission(ctx, *requirement)
	}

	if err == nil {
		return nil
	}

	g.logger.WithError(err).WithField("permission", *requirement).Debug("permission check failed")

	var gerr *goerrors.Error
	if errors.As(err, &gerr) && gerr.TextCode == TextCodeUnauthorized {
		return err
	}
	return goerrors.Wrap(err, goerrors.CategoryAuthz, "permission denied").
		WithTextCode(TextCodeUnauthorized)
}

// CurrentUserID returns the id of the caller, nil when anonymous or when no evaluator is set.
func (g *Gate) CurrentUserID(ctx context.Context) any {
	if g == nil || g.evaluator == nil {
		return nil
	}
	return g.evaluator.CurrentUserID(ctx)
}
