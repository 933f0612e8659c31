package cli

import (
	"bytes"
	"encoding/json"
	"testing"
)

type table struct {
	header []string
	rows   [][]string
}

func (t table) Header() []string { return t.header }
func (t table) Rows() [][]string { return t.rows }

var sample = table{
	header: []string{"policy_id", "phase"},
	rows:   [][]string{{"greet", "before"}, {"deny, delete", "after"}},
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{in: "", want: FormatText},
		{in: "text", want: FormatText},
		{in: "json", want: FormatJSON},
		{in: "csv", want: FormatCSV},
		{in: "junit", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOutputFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseOutputFormat() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseOutputFormat() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTextFormatter(t *testing.T) {
	tests := []struct {
		name string
		data any
		want string
	}{
		{name: "value", data: "3 records", want: "3 records\n"},
		{name: "table", data: sample, want: "policy_id\tphase\ngreet\tbefore\ndeny, delete\tafter\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := (&TextFormatter{}).FormatTo(&buf, tt.data); err != nil {
				t.Fatalf("FormatTo() error = %v, want nil", err)
			}
			if buf.String() != tt.want {
				t.Errorf("FormatTo() = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	data := map[string]string{"status": "valid"}

	if err := NewFormatter(FormatJSON).FormatTo(&buf, data); err != nil {
		t.Fatalf("FormatTo() error = %v, want nil", err)
	}

	var got map[string]string
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", buf.String(), err)
	}
	if got["status"] != "valid" {
		t.Errorf("status = %q, want valid", got["status"])
	}
}

func TestCSVFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFormatter(FormatCSV).FormatTo(&buf, sample); err != nil {
		t.Fatalf("FormatTo() error = %v, want nil", err)
	}

	want := "policy_id,phase\ngreet,before\n\"deny, delete\",after\n"
	if buf.String() != want {
		t.Errorf("FormatTo() = %q, want %q", buf.String(), want)
	}

	if err := NewFormatter(FormatCSV).FormatTo(&buf, "not a table"); err == nil {
		t.Error("FormatTo() with non-tabular data error = nil, want error")
	}
}
