package row

// SelectLevel controls when a field is part of a listing projection.
// Levels other than SelectDefault are ordered by visibility: a field whose
// level is lower than or equal to the requested granularity is selected.
type SelectLevel int

const (
	// SelectDefault is resolved per field: Details for foreign fields, List otherwise.
	SelectDefault SelectLevel = iota
	SelectAlways
	SelectLookup
	SelectList
	SelectDetails
	SelectExplicit
	SelectNever
)

func (l SelectLevel) String() string {
	switch l {
	case SelectDefault:
		return "default"
	case SelectAlways:
		return "always"
	case SelectLookup:
		return "lookup"
	case SelectList:
		return "list"
	case SelectDetails:
		return "details"
	case SelectExplicit:
		return "explicit"
	case SelectNever:
		return "never"
	default:
		return "unknown"
	}
}

// FieldFlags is a bit set of field traits.
type FieldFlags uint32

const (
	FlagPrimaryKey FieldFlags = 1 << iota
	FlagForeign
	FlagClientSide
)

// Has reports whether all bits of flag are set.
func (f FieldFlags) Has(flag FieldFlags) bool {
	return f&flag == flag
}

// FieldKind describes the value type of a field, used when text has to be
// parsed into a field value (e.g. contains-text id matching).
type FieldKind int

const (
	KindString FieldKind = iota
	KindInt
	KindUUID
)

// Field describes a column of a row type.
type Field struct {
	// Name is the column name, or the select alias for expression fields.
	Name string
	// PropertyName is the external (JSON) name.
	PropertyName   string
	Flags          FieldFlags
	MinSelectLevel SelectLevel
	Kind           FieldKind
	// Expression replaces the column reference when selecting, sorting and
	// filtering. Used by foreign fields coming from a join.
	Expression string
	// ForeignTable names the table a foreign key points to.
	ForeignTable string
}

// IsPrimaryKey reports whether the field carries the primary key flag.
func (f *Field) IsPrimaryKey() bool {
	return f.Flags.Has(FlagPrimaryKey)
}

// IsForeign reports whether the field is a foreign (view) field.
func (f *Field) IsForeign() bool {
	return f.Flags.Has(FlagForeign)
}

// IsClientSide reports whether the field only exists on the client.
func (f *Field) IsClientSide() bool {
	return f.Flags.Has(FlagClientSide)
}

// IsTableField reports whether the field maps to a physical column of the row's table.
func (f *Field) IsTableField() bool {
	return !f.IsForeign() && !f.IsClientSide() && f.Expression == ""
}

// Matches reports whether token names this field, by column or property name.
func (f *Field) Matches(token string) bool {
	if token == "" {
		return false
	}
	return f.Name == token || (f.PropertyName != "" && f.PropertyName == token)
}
