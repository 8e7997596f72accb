package filters

import (
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		query string
		want  OrFilters
	}{
		{
			"mimetype == 'application/pdf'",
			OrFilters{{{Field: "mimetype", Operator: OpEqual, Value: "application/pdf"}}},
		},
		{
			"size > 1024 and tags contains finance",
			OrFilters{{
				{Field: "size", Operator: OpGreater, Value: float64(1024)},
				{Field: "tags", Operator: OpContains, Value: "finance"},
			}},
		},
		{
			"invoice:status == open or invoice:status == paid",
			OrFilters{
				{{Field: "invoice:status", Operator: OpEqual, Value: "open"}},
				{{Field: "invoice:status", Operator: OpEqual, Value: "paid"}},
			},
		},
		{
			// AND binds tighter than OR.
			"a == 1 and b == 2 or c == 3",
			OrFilters{
				{
					{Field: "a", Operator: OpEqual, Value: float64(1)},
					{Field: "b", Operator: OpEqual, Value: float64(2)},
				},
				{{Field: "c", Operator: OpEqual, Value: float64(3)}},
			},
		},
		{
			`invoice:status in ["open", "overdue"]`,
			OrFilters{{{Field: "invoice:status", Operator: OpIn, Value: []any{"open", "overdue"}}}},
		},
	}
	for _, tt := range tests {
		got, err := Parse(tt.query)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", tt.query, err)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Parse(%q) = %#v, want %#v", tt.query, got, tt.want)
		}
	}
}

func TestParseBooleansAndNegatives(t *testing.T) {
	got, err := Parse("archived == true and offset >= -2.5")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	want := OrFilters{{
		{Field: "archived", Operator: OpEqual, Value: true},
		{Field: "offset", Operator: OpGreaterEqual, Value: -2.5},
	}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}
}

func TestParseErrors(t *testing.T) {
	bad := []string{
		"",
		"title ==",
		"== value",
		"title between 'a'",
		"title == 'unterminated",
		"size = 10",
		"tags in [open,",
		"a == 1 extra",
	}
	for _, q := range bad {
		if _, err := Parse(q); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", q)
		}
	}
}

func TestParseScopedFieldNames(t *testing.T) {
	got, err := Parse("@finance:parent == inbox")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got[0][0].Field != "@finance:parent" {
		t.Errorf("scoped field = %q, want %q", got[0][0].Field, "@finance:parent")
	}
}
