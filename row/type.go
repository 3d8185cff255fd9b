package row

import (
	"fmt"
	"strings"

	"github.com/jinzhu/inflection"
)

// IDRow is implemented by row structs that expose their identity value.
type IDRow interface {
	IDValue() any
}

// IsActiveRow is implemented by row structs with a tri-state active flag:
// positive is active, non-positive is soft-deleted.
type IsActiveRow interface {
	IsActiveValue() int
	SetIsActiveValue(v int)
}

// ParentIDRow is implemented by row structs that reference a parent entity.
type ParentIDRow interface {
	ParentIDValue() any
}

// Policy groups the per-type declarations handlers act upon.
type Policy struct {
	// ReadPermission and ModifyPermission: nil means no check, an empty
	// string requires a logged in user, anything else is a permission key.
	ReadPermission   *string
	ModifyPermission *string
	// TwoLevelCached enables generation based invalidation of the type's
	// own generation key plus GenerationKeys.
	TwoLevelCached bool
	GenerationKeys []string
	// CaptureLog selects field level change capture instead of the generic audit log.
	CaptureLog bool
}

// Permission returns a permission requirement for key.
func Permission(key string) *string {
	return &key
}

// LoggedIn returns the requirement satisfied by any authenticated user.
func LoggedIn() *string {
	empty := ""
	return &empty
}

// Descriptor is the type erased view of a row type used by registries,
// audit and cache components.
type Descriptor interface {
	Name() string
	Table() string
	Fields() []*Field
	FieldByName(token string) (*Field, bool)
	IDField() *Field
	NameField() *Field
	IsActiveField() *Field
	ParentIDField() *Field
	Joins() []string
	GenerationKey() string
	Policy() Policy
}

type definition struct {
	table         string
	fields        []*Field
	id            string
	name          string
	isActive      string
	parentID      string
	parentTable   string
	joins         []string
	generationKey string
	policy        Policy
}

// Option configures a row type definition.
type Option func(*definition)

// WithTable overrides the table name derived from the type name.
func WithTable(table string) Option {
	return func(d *definition) { d.table = table }
}

// WithFields appends field descriptors in projection order.
func WithFields(fields ...Field) Option {
	return func(d *definition) {
		for i := range fields {
			f := fields[i]
			d.fields = append(d.fields, &f)
		}
	}
}

// WithID marks column as the identity field. It is flagged as primary key.
func WithID(column string) Option {
	return func(d *definition) { d.id = column }
}

// WithName marks column as the display name field.
func WithName(column string) Option {
	return func(d *definition) { d.name = column }
}

// WithIsActive marks column as the active-state field.
func WithIsActive(column string) Option {
	return func(d *definition) { d.isActive = column }
}

// WithParentID marks column as a reference to a parent row stored in foreignTable.
func WithParentID(column, foreignTable string) Option {
	return func(d *definition) {
		d.parentID = column
		d.parentTable = foreignTable
	}
}

// WithJoin adds a join clause used to resolve foreign fields. The clause may
// use bun placeholders such as ?TableAlias.
func WithJoin(join string) Option {
	return func(d *definition) { d.joins = append(d.joins, join) }
}

// WithGenerationKey overrides the cache generation key (defaults to the table name).
func WithGenerationKey(key string) Option {
	return func(d *definition) { d.generationKey = key }
}

// WithReadPermission sets the permission required to list rows.
func WithReadPermission(p *string) Option {
	return func(d *definition) { d.policy.ReadPermission = p }
}

// WithModifyPermission sets the permission required to modify rows.
func WithModifyPermission(p *string) Option {
	return func(d *definition) { d.policy.ModifyPermission = p }
}

// WithTwoLevelCache enables generation based cache invalidation. Extra keys
// are bumped together with the type's own generation key.
func WithTwoLevelCache(extraKeys ...string) Option {
	return func(d *definition) {
		d.policy.TwoLevelCached = true
		d.policy.GenerationKeys = append(d.policy.GenerationKeys, extraKeys...)
	}
}

// WithCaptureLog opts the type into field level change capture.
func WithCaptureLog() Option {
	return func(d *definition) { d.policy.CaptureLog = true }
}

// Type is the descriptor of row struct T. Capabilities are resolved once by
// Define and never re-checked per request.
type Type[T any] struct {
	name    string
	def     definition
	byToken map[string]*Field
	idF     *Field
	nameF   *Field
	activeF *Field
	parentF *Field
	factory func() *T
}

var _ Descriptor = (*Type[struct{}])(nil)

// Define builds the descriptor for T. The name is the type identity used
// by registries and audit entries, e.g. "northwind.Customer".
func Define[T any](name string, opts ...Option) (*Type[T], error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("row: type name is required")
	}

	var def definition
	for _, opt := range opts {
		opt(&def)
	}

	if def.table == "" {
		def.table = defaultTableName(name)
	}
	if def.generationKey == "" {
		def.generationKey = def.table
	}
	if len(def.fields) == 0 {
		return nil, fmt.Errorf("row: type %s declares no fields", name)
	}

	t := &Type[T]{
		name:    name,
		def:     def,
		byToken: make(map[string]*Field, len(def.fields)*2),
		factory: func() *T { return new(T) },
	}

	for _, f := range def.fields {
		if f.Name == "" {
			return nil, fmt.Errorf("row: type %s has a field without name", name)
		}
		if _, dup := t.byToken[f.Name]; dup {
			return nil, fmt.Errorf("row: type %s declares field %s twice", name, f.Name)
		}
		t.byToken[f.Name] = f
		if f.PropertyName != "" && f.PropertyName != f.Name {
			if _, dup := t.byToken[f.PropertyName]; dup {
				return nil, fmt.Errorf("row: type %s declares property %s twice", name, f.PropertyName)
			}
			t.byToken[f.PropertyName] = f
		}
	}

	probe := any(new(T))
	var err error

	if def.id != "" {
		if t.idF, err = t.capability(def.id, "id"); err != nil {
			return nil, err
		}
		if _, ok := probe.(IDRow); !ok {
			return nil, fmt.Errorf("row: type %s declares an id field but does not implement IDRow", name)
		}
		t.idF.Flags |= FlagPrimaryKey
	}

	if def.name != "" {
		if t.nameF, err = t.capability(def.name, "name"); err != nil {
			return nil, err
		}
	}

	if def.isActive != "" {
		if t.activeF, err = t.capability(def.isActive, "is active"); err != nil {
			return nil, err
		}
		if _, ok := probe.(IsActiveRow); !ok {
			return nil, fmt.Errorf("row: type %s declares an is active field but does not implement IsActiveRow", name)
		}
	}

	if def.parentID != "" {
		if t.parentF, err = t.capability(def.parentID, "parent id"); err != nil {
			return nil, err
		}
		if _, ok := probe.(ParentIDRow); !ok {
			return nil, fmt.Errorf("row: type %s declares a parent id field but does not implement ParentIDRow", name)
		}
		if def.parentTable != "" {
			t.parentF.ForeignTable = def.parentTable
		}
	}

	return t, nil
}

// MustDefine is like Define but panics on error. Meant for package level row declarations.
func MustDefine[T any](name string, opts ...Option) *Type[T] {
	t, err := Define[T](name, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Type[T]) capability(column, role string) (*Field, error) {
	f, ok := t.byToken[column]
	if !ok {
		return nil, fmt.Errorf("row: type %s has no field %s for the %s capability", t.name, column, role)
	}
	return f, nil
}

// UseFactory replaces the constructor used to create fresh row instances.
func (t *Type[T]) UseFactory(fn func() *T) *Type[T] {
	if fn != nil {
		t.factory = fn
	}
	return t
}

// New returns a fresh row instance.
func (t *Type[T]) New() *T {
	return t.factory()
}

// Name returns the qualified type name, e.g. "crm.Customer".
func (t *Type[T]) Name() string { return t.name }

// Table returns the table the rows are read from.
func (t *Type[T]) Table() string { return t.def.table }

// Fields returns every field in declaration order.
func (t *Type[T]) Fields() []*Field { return t.def.fields }

// IDField returns the identity field, or nil.
func (t *Type[T]) IDField() *Field { return t.idF }

// NameField returns the display name field, or nil.
func (t *Type[T]) NameField() *Field { return t.nameF }

// IsActiveField returns the active state field, or nil when the type has
// no soft delete support.
func (t *Type[T]) IsActiveField() *Field { return t.activeF }

// ParentIDField returns the field referencing the parent row, or nil.
func (t *Type[T]) ParentIDField() *Field { return t.parentF }

// Joins returns the join clauses applied to every select.
func (t *Type[T]) Joins() []string { return t.def.joins }

// GenerationKey returns the cache generation key bumped when rows change.
func (t *Type[T]) GenerationKey() string { return t.def.generationKey }

// Policy returns the permission, cache and audit policy of the type.
func (t *Type[T]) Policy() Policy { return t.def.policy }

// FieldByName resolves a field by column or property name.
func (t *Type[T]) FieldByName(token string) (*Field, bool) {
	f, ok := t.byToken[token]
	return f, ok
}

// IDValue returns the identity value of r, or nil when T has no identity.
func (t *Type[T]) IDValue(r *T) any {
	if t.idF == nil || r == nil {
		return nil
	}
	return any(r).(IDRow).IDValue()
}

// IsActiveValue returns the active-state of r, or 0 when T has no active-state capability.
func (t *Type[T]) IsActiveValue(r *T) int {
	if t.activeF == nil || r == nil {
		return 0
	}
	return any(r).(IsActiveRow).IsActiveValue()
}

// SetIsActiveValue updates the active-state of r when T has the capability.
func (t *Type[T]) SetIsActiveValue(r *T, v int) {
	if t.activeF == nil || r == nil {
		return
	}
	any(r).(IsActiveRow).SetIsActiveValue(v)
}

// ParentIDValue returns the parent reference of r, or nil.
func (t *Type[T]) ParentIDValue(r *T) any {
	if t.parentF == nil || r == nil {
		return nil
	}
	return any(r).(ParentIDRow).ParentIDValue()
}

func defaultTableName(name string) string {
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[idx+1:]
	}
	return inflection.Plural(tableStem(name))
}
