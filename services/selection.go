package services

import "github.com/goliatone/go-service-handlers/row"

// ShouldSelectField decides whether f is part of the projection for req.
// Rules are evaluated in order and the first match wins.
func ShouldSelectField(f *row.Field, req *ListRequest) bool {
	if f == nil {
		return false
	}

	level := f.MinSelectLevel
	if level == row.SelectNever || f.IsClientSide() {
		return false
	}
	if level == row.SelectAlways {
		return true
	}
	if f.IsPrimaryKey() && level != row.SelectExplicit {
		return true
	}
	if level == row.SelectDefault {
		if f.IsForeign() {
			level = row.SelectDetails
		} else {
			level = row.SelectList
		}
	}

	if req == nil {
		req = &ListRequest{}
	}

	excluded := req.ExcludeColumns.Has(f.Name) || req.ExcludeColumns.Has(f.PropertyName)
	included := !excluded && (req.IncludeColumns.Has(f.Name) || req.IncludeColumns.Has(f.PropertyName))

	if f.IsPrimaryKey() {
		return included
	}
	if excluded {
		return false
	}
	if included {
		return true
	}

	switch req.ColumnSelection {
	case ColumnsLookup:
		return level <= row.SelectLookup
	case ColumnsList:
		return level <= row.SelectList
	case ColumnsDetails:
		return level <= row.SelectDetails
	default:
		return false
	}
}

// Selection is the set of fields projected for one listing. Hooks use it
// to tell whether a value on a listed entity was loaded.
type Selection struct {
	fields []*row.Field
}

// NewSelection applies ShouldSelectField to fields.
func NewSelection(fields []*row.Field, req *ListRequest) Selection {
	var s Selection
	for _, f := range fields {
		if ShouldSelectField(f, req) {
			s.fields = append(s.fields, f)
		}
	}
	return s
}

// Fields returns the projected fields in declaration order.
func (s Selection) Fields() []*row.Field {
	return s.fields
}

// IsIncluded reports whether f was projected.
func (s Selection) IsIncluded(f *row.Field) bool {
	for _, sel := range s.fields {
		if sel == f {
			return true
		}
	}
	return false
}

// IsColumnIncluded reports whether the field named by token (column or
// property name) was projected.
func (s Selection) IsColumnIncluded(token string) bool {
	for _, sel := range s.fields {
		if sel.Matches(token) {
			return true
		}
	}
	return false
}
