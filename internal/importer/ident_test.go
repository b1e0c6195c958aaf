package importer

import (
	"errors"
	"testing"
)

func TestValidateTableName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"plain", "users", false},
		{"schema qualified", "public.users", false},
		{"digits and underscore", "raw_2024", false},
		{"two dots", "bad.column.extra", true},
		{"space", "bad column", true},
		{"empty", "", true},
		{"leading dot", ".users", true},
		{"trailing dot", "users.", true},
		{"quote", `users"; DROP TABLE x; --`, true},
		{"hyphen", "my-table", true},
		{"unicode", "usérs", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTableName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateTableName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidIdentifier) {
				t.Errorf("error %v should match ErrInvalidIdentifier", err)
			}
		})
	}
}

func TestValidateColumnName(t *testing.T) {
	if err := ValidateColumnName("created_at"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	err := ValidateColumnName("bad.column")
	if err == nil {
		t.Fatal("expected error for dotted column")
	}
	if got, want := err.Error(), "invalid column name: bad.column"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if KindOf(err) != KindInvalidIdentifier {
		t.Errorf("KindOf = %q, want %q", KindOf(err), KindInvalidIdentifier)
	}
}

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"users", `"users"`},
		{"public.users", `"public"."users"`},
		{"schema.users", `"schema"."users"`},
		{`we"ird`, `"we""ird"`},
		{`a"b.c"d`, `"a""b"."c""d"`},
	}

	for _, tt := range tests {
		if got := QuoteIdentifier(tt.input); got != tt.want {
			t.Errorf("QuoteIdentifier(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestSplitIdentifier(t *testing.T) {
	schema, leaf := SplitIdentifier("analytics.events")
	if schema != "analytics" || leaf != "events" {
		t.Errorf("SplitIdentifier = (%q, %q)", schema, leaf)
	}

	schema, leaf = SplitIdentifier("events")
	if schema != "" || leaf != "events" {
		t.Errorf("SplitIdentifier unqualified = (%q, %q)", schema, leaf)
	}
}

func TestQuoteColumns(t *testing.T) {
	got := QuoteColumns([]string{"id", "name"})
	if len(got) != 2 || got[0] != `"id"` || got[1] != `"name"` {
		t.Errorf("QuoteColumns = %v", got)
	}
}
