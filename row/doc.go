// Package row declares row types: the field descriptors and structural
// capabilities the generic service handlers act upon.
//
// # Overview
//
// A row is a Go struct mapped with bun tags. Its descriptor, built once with
// Define, lists the fields in projection order together with their select
// level and flags, and names the capability fields:
//
//   - identity (WithID): the primary key, requires *T to implement IDRow
//   - name (WithName): the display field used by text search and native sort
//   - active-state (WithIsActive): tri-state soft-delete flag, requires IsActiveRow
//   - parent-reference (WithParentID): foreign key to a parent, requires ParentIDRow
//
// Capabilities are checked when the descriptor is defined, so handlers never
// downcast rows per request.
//
// # Basic Usage
//
//	type Customer struct {
//		bun.BaseModel `bun:"table:customers,alias:c"`
//		ID       int64  `bun:"id,pk,autoincrement"`
//		Name     string `bun:"name"`
//		IsActive int    `bun:"is_active"`
//	}
//
//	func (c *Customer) IDValue() any          { return c.ID }
//	func (c *Customer) IsActiveValue() int    { return c.IsActive }
//	func (c *Customer) SetIsActiveValue(v int) { c.IsActive = v }
//
//	var Customers = row.MustDefine[Customer]("northwind.Customer",
//		row.WithFields(
//			row.Field{Name: "id", PropertyName: "ID", Kind: row.KindInt},
//			row.Field{Name: "name", PropertyName: "Name", MinSelectLevel: row.SelectLookup},
//			row.Field{Name: "is_active", PropertyName: "IsActive"},
//		),
//		row.WithID("id"),
//		row.WithName("name"),
//		row.WithIsActive("is_active"),
//		row.WithModifyPermission(row.Permission("customers:modify")),
//		row.WithTwoLevelCache(),
//	)
//
// # Registry
//
// Registry maps type names and tables to descriptors. It is filled at startup
// and used where one row type has to resolve another, e.g. the parent type of
// an audit entry.
package row
