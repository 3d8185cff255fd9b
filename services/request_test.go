package services

import (
	"testing"
)

func TestColumnSet(t *testing.T) {
	set := NewColumnSet("name", " Email ", "", "  ")

	if len(set) != 2 {
		t.Errorf("expected blanks to be skipped, got %v", set)
	}
	if !set.Has("Email") || !set.Has("name") || set.Has("") || set.Has("notes") {
		t.Errorf("unexpected membership in %v", set)
	}

	var nilSet ColumnSet
	if nilSet.Has("name") {
		t.Error("nil set must be empty")
	}
}

func TestParseSortBy(t *testing.T) {
	tests := []struct {
		expr string
		want SortBy
	}{
		{"name", SortBy{Field: "name"}},
		{"name DESC", SortBy{Field: "name", Descending: true}},
		{" Email desc ", SortBy{Field: "Email", Descending: true}},
		{"name asc", SortBy{Field: "name"}},
		{"", SortBy{}},
	}

	for _, tt := range tests {
		if got := ParseSortBy(tt.expr); got != tt.want {
			t.Errorf("ParseSortBy(%q) = %+v, want %+v", tt.expr, got, tt.want)
		}
	}
}

func TestListRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     ListRequest
		maxTake int
		wantErr bool
	}{
		{"empty", ListRequest{}, 0, false},
		{"paged", ListRequest{Skip: 10, Take: 5}, 0, false},
		{"negative skip", ListRequest{Skip: -1}, 0, true},
		{"negative take", ListRequest{Take: -1}, 0, true},
		{"take above max", ListRequest{Take: 101}, 100, true},
		{"take at max", ListRequest{Take: 100}, 100, false},
		{"unbounded take", ListRequest{Take: 5000}, 0, false},
		{"unknown selection", ListRequest{ColumnSelection: ColumnSelection(42)}, 0, true},
		{"blank sort field", ListRequest{Sort: []SortBy{{Field: " "}}}, 0, true},
		{"sort field", ListRequest{Sort: []SortBy{{Field: "name", Descending: true}}}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate(tt.maxTake)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestUndeleteRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		id      any
		wantErr bool
	}{
		{"nil", nil, true},
		{"blank string", "  ", true},
		{"int", int64(3), false},
		{"zero is a valid id", 0, false},
		{"string", "3", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &UndeleteRequest{EntityID: tt.id}
			if err := req.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestColumnSelection_String(t *testing.T) {
	if ColumnsList.String() != "list" || ColumnsKeyOnly.String() != "key_only" || ColumnSelection(9).String() != "unknown" {
		t.Error("unexpected ColumnSelection names")
	}
}
