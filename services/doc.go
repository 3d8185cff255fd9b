// Package services implements the list and undelete handlers shared by every
// row type.
//
// ListHandler turns a ListRequest into one projected query: column
// selection by select level, paging with an optional total count, text
// search over the id and name columns, sorting, equality filters and
// soft-delete filtering. Rows are scanned into T and optionally post
// processed.
//
// UndeleteHandler restores a soft-deleted row inside a unit of work. The
// update only matches rows whose active-state is exactly -1, so a row
// changed by another transaction between load and update is reported as
// NotFound with the concurrent flag set. Audit entries are written in the
// same transaction; cache generations move only after commit.
//
// Errors returned by both handlers are *goerrors.Error values; use IsKind
// to branch on them.
package services
