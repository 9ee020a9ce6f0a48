package output

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestTable_Render(t *testing.T) {
	table := &Table{}
	table.SetHeaders("NAME", "VALUE")
	table.AddRow("key1", "value1")
	table.AddRow("longer-key", "v")

	var buf bytes.Buffer
	if err := table.Render(&buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), buf.String())
	}
	// Columns are aligned.
	if strings.Index(lines[0], "VALUE") != strings.Index(lines[2], "v") {
		t.Errorf("columns not aligned:\n%s", buf.String())
	}
}

func TestTableFormatter_Format_Table(t *testing.T) {
	table := Table{Headers: []string{"COL"}, Rows: [][]string{{"data"}}}

	var buf bytes.Buffer
	if err := (&TableFormatter{NoHeaders: true}).Format(&buf, table); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if buf.String() != "data\n" {
		t.Errorf("Format() = %q, want %q", buf.String(), "data\n")
	}
}

type tokenRow struct {
	ID        string        `json:"id"`
	Principal string        `json:"principal"`
	ExpiresAt time.Time     `json:"expires_at"`
	TTL       time.Duration `json:"ttl"`
	Value     string        `json:"-"`
	Issued    time.Time     `json:"issued_at" table:"wide"`
	internal  string
}

func TestTableFormatter_Struct(t *testing.T) {
	row := tokenRow{
		ID:        "tok_abc",
		Principal: "corp/alice",
		TTL:       90 * time.Second,
		Value:     "secret-value",
		internal:  "x",
	}

	var buf bytes.Buffer
	if err := (&TableFormatter{}).Format(&buf, &row); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{"FIELD", "tok_abc", "corp/alice", "1m30s", "expires_at"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	for _, hidden := range []string{"secret-value", "issued_at", "internal"} {
		if strings.Contains(out, hidden) {
			t.Errorf("output should not contain %q:\n%s", hidden, out)
		}
	}
}

func TestTableFormatter_Slice(t *testing.T) {
	rows := []tokenRow{
		{ID: "tok_1", Principal: "corp/alice"},
		{ID: "tok_2", Principal: "corp/bob"},
	}

	var buf bytes.Buffer
	if err := (&TableFormatter{Wide: true}).Format(&buf, rows); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	out := buf.String()

	if !strings.HasPrefix(out, "ID") || !strings.Contains(out, "ISSUED_AT") {
		t.Errorf("wide headers missing:\n%s", out)
	}
	if strings.Count(out, "\n") != 3 {
		t.Errorf("want header plus 2 rows:\n%s", out)
	}
}

func TestTableFormatter_Map(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TableFormatter{NoHeaders: true}).Format(&buf, map[string]any{"b": 2, "a": []string{"x", "y"}}); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "a") || !strings.Contains(lines[0], "x, y") {
		t.Errorf("unexpected map rendering:\n%s", buf.String())
	}
}

func TestTableFormatter_Fallback(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TableFormatter{}).Format(&buf, 42); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if buf.String() != "42\n" {
		t.Errorf("Format() = %q, want JSON fallback", buf.String())
	}
}

func TestFormatValue(t *testing.T) {
	var nilPtr *string
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"empty string", "", "-"},
		{"nil pointer", nilPtr, "-"},
		{"zero time", time.Time{}, "-"},
		{"duration", 2 * time.Hour, "2h0m0s"},
		{"bool", true, "true"},
		{"empty slice", []string{}, "-"},
		{"int", 7, "7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatValue(reflectValue(tt.in)); got != tt.want {
				t.Errorf("formatValue(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func reflectValue(v any) reflect.Value { return reflect.ValueOf(v) }
