package services

import (
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-service-handlers/security"
)

// Kind is the text code carried by handler errors.
type Kind string

const (
	// KindInvalidArgument reports a missing collaborator such as a nil
	// connection, unit of work or request.
	KindInvalidArgument Kind = "INVALID_ARGUMENT"
	// KindValidation reports a malformed request.
	KindValidation Kind = "VALIDATION_ERROR"
	// KindNotFound reports a row that does not exist or is not restorable.
	KindNotFound Kind = "NOT_FOUND"
	// KindUnauthorized reports a failed login or permission check.
	KindUnauthorized Kind = security.TextCodeUnauthorized
	// KindNotImplemented reports an operation the row type does not support.
	KindNotImplemented Kind = "NOT_IMPLEMENTED"
	// KindInternal wraps database and audit failures.
	KindInternal Kind = "INTERNAL_ERROR"
)

// IsKind reports whether err, or an error it wraps, is a handler error of kind.
func IsKind(err error, kind Kind) bool {
	var gerr *goerrors.Error
	if !errors.As(err, &gerr) {
		return false
	}
	return gerr.TextCode == string(kind)
}

// IsConcurrentUpdate reports whether err is a NotFound raised because the
// row changed between load and update.
func IsConcurrentUpdate(err error) bool {
	var gerr *goerrors.Error
	if !errors.As(err, &gerr) || gerr.TextCode != string(KindNotFound) {
		return false
	}
	concurrent, _ := gerr.Metadata["concurrent"].(bool)
	return concurrent
}

func invalidArgument(message string) error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithTextCode(string(KindInvalidArgument))
}

func validationError(message string, fields map[string]any) error {
	err := goerrors.New(message, goerrors.CategoryValidation).
		WithTextCode(string(KindValidation))
	if len(fields) > 0 {
		err = err.WithMetadata(fields)
	}
	return err
}

func notFound(typeName string, id any, concurrent bool) error {
	message := fmt.Sprintf("%s with id %v not found", typeName, id)
	if concurrent {
		message = fmt.Sprintf("%s with id %v was modified concurrently", typeName, id)
	}
	return goerrors.New(message, goerrors.CategoryNotFound).
		WithTextCode(string(KindNotFound)).
		WithMetadata(map[string]any{
			"type":       typeName,
			"id":         id,
			"concurrent": concurrent,
		})
}

func notImplemented(message string) error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithTextCode(string(KindNotImplemented))
}

func internalError(err error, message string) error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, message).
		WithTextCode(string(KindInternal))
}
