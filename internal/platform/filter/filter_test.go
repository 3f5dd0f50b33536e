package filter

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func testSchema(t *testing.T) *Schema {
	t.Helper()
	schema, err := NewSchema(
		Field{Name: "category", Column: "category", Type: String},
		Field{Name: "label", Column: "label", Type: String},
		Field{Name: "unit_price", Column: "unit_price_cents", Type: Int},
		Field{Name: "update_time", Column: "updated_at", Type: Timestamp},
	)
	if err != nil {
		t.Fatalf("new schema: %v", err)
	}
	return schema
}

func TestParseEmptyFilter(t *testing.T) {
	cond, err := testSchema(t).Parse("   ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !cond.Empty() {
		t.Fatalf("expected empty condition, got %+v", cond)
	}
}

func TestParseTranslatesToSQL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		filter string
		want   SQLCondition
	}{
		{
			name:   "equals",
			filter: `category = "plomberie"`,
			want:   SQLCondition{Clause: "category = ?", Params: []any{"plomberie"}},
		},
		{
			name:   "and with int",
			filter: `category = "plomberie" AND unit_price < 5000`,
			want: SQLCondition{
				Clause: "(category = ? AND unit_price_cents < ?)",
				Params: []any{"plomberie", int64(5000)},
			},
		},
		{
			name:   "or",
			filter: `unit_price >= 100 OR unit_price <= 10`,
			want: SQLCondition{
				Clause: "(unit_price_cents >= ? OR unit_price_cents <= ?)",
				Params: []any{int64(100), int64(10)},
			},
		},
		{
			name:   "timestamp",
			filter: `update_time > timestamp("2026-03-01T00:00:00Z")`,
			want: SQLCondition{
				Clause: "updated_at > ?",
				Params: []any{int64(1772323200000)},
			},
		},
		{
			name:   "has substring",
			filter: `label:"robinet"`,
			want: SQLCondition{
				Clause: `LOWER(label) LIKE ? ESCAPE '\'`,
				Params: []any{"%robinet%"},
			},
		},
	}

	schema := testSchema(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := schema.Parse(tt.filter)
			if err != nil {
				t.Fatalf("parse %q: %v", tt.filter, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("condition mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseRejectsInvalidFilters(t *testing.T) {
	schema := testSchema(t)
	for _, filter := range []string{
		`unknown = "x"`,
		`category = `,
		`unit_price = "abc"`,
	} {
		if _, err := schema.Parse(filter); err == nil {
			t.Fatalf("expected error for %q", filter)
		}
	}
}

func TestNewSchemaRejectsDuplicates(t *testing.T) {
	_, err := NewSchema(
		Field{Name: "a", Column: "a"},
		Field{Name: "a", Column: "b"},
	)
	if err == nil {
		t.Fatal("expected duplicate field error")
	}
	if _, err := NewSchema(Field{Name: "a"}); err == nil {
		t.Fatal("expected missing column error")
	}
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike(`50%_off\`); got != `50\%\_off\\` {
		t.Fatalf("escapeLike = %q", got)
	}
}
