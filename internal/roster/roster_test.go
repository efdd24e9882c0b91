package roster

import (
	"context"
	"errors"
	"testing"
)

func TestTableName(t *testing.T) {
	tests := []struct {
		courseID string
		want     string
	}{
		{"9f1c2d3e-4b5a-6789-abcd-ef0123456789", "course_9f1c2d3e_4b5a_6789_abcd_ef0123456789"},
		{"ABC-DEF", "course_abc_def"},
		{"plain", "course_plain"},
	}
	for _, tt := range tests {
		if got := TableName(tt.courseID); got != tt.want {
			t.Errorf("TableName(%q) = %q, want %q", tt.courseID, got, tt.want)
		}
	}
}

func TestValidIdent(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"course_abc_123", true},
		{"attendance_20250301_101530_042", true},
		{"", false},
		{"1starts_with_digit", false},
		{"has-hyphen", false},
		{"has space", false},
		{`drop";table`, false},
		{"UPPER", false},
	}
	for _, tt := range tests {
		if got := ValidIdent(tt.name); got != tt.want {
			t.Errorf("ValidIdent(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	table := TableName("abc-123")

	if err := s.EnsureTable(ctx, table); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	if err := s.InsertStudent(ctx, table, "Asha", "Asha@Uni.Edu"); err != nil {
		t.Fatalf("InsertStudent: %v", err)
	}
	if err := s.InsertStudent(ctx, table, "Asha again", "asha@uni.edu"); !errors.Is(err, ErrDuplicateStudent) {
		t.Fatalf("duplicate insert = %v, want ErrDuplicateStudent", err)
	}

	ok, err := s.HasStudent(ctx, table, "asha@uni.edu")
	if err != nil || !ok {
		t.Fatalf("HasStudent = %v, %v; want true", ok, err)
	}

	col := "attendance_20250301_101530_000"
	if err := s.AddBoolColumn(ctx, table, col); err != nil {
		t.Fatalf("AddBoolColumn: %v", err)
	}
	// idempotent
	if err := s.AddBoolColumn(ctx, table, col); err != nil {
		t.Fatalf("AddBoolColumn twice: %v", err)
	}

	cols, err := s.ListColumns(ctx, table)
	if err != nil {
		t.Fatalf("ListColumns: %v", err)
	}
	found := 0
	for _, c := range cols {
		if c == col {
			found++
		}
	}
	if found != 1 {
		t.Errorf("column %q appears %d times, want 1", col, found)
	}

	if v, err := s.GetBool(ctx, table, col, "asha@uni.edu"); err != nil || v {
		t.Fatalf("GetBool before mark = %v, %v; want false", v, err)
	}
	if err := s.SetBool(ctx, table, col, "asha@uni.edu", true); err != nil {
		t.Fatalf("SetBool: %v", err)
	}
	if v, _ := s.GetBool(ctx, table, col, "asha@uni.edu"); !v {
		t.Error("GetBool after mark = false, want true")
	}

	if err := s.SetBool(ctx, table, col, "ghost@uni.edu", true); !errors.Is(err, ErrStudentNotFound) {
		t.Errorf("SetBool for unknown student = %v, want ErrStudentNotFound", err)
	}

	rows, err := s.ListRows(ctx, table)
	if err != nil || len(rows) != 1 {
		t.Fatalf("ListRows = %v, %v; want one row", rows, err)
	}
	if !rows[0].Marks[col] {
		t.Error("row mark not reflected in ListRows")
	}
}
