package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestNewFormatter(t *testing.T) {
	cases := []struct {
		format  Format
		wantErr bool
	}{
		{FormatTable, false},
		{FormatJSON, false},
		{FormatYAML, false},
		{Format(""), false},
		{Format("xml"), true},
	}
	for _, tc := range cases {
		_, err := New(tc.format)
		if (err != nil) != tc.wantErr {
			t.Errorf("New(%q): err = %v, wantErr %v", tc.format, err, tc.wantErr)
		}
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := &JSONFormatter{}
	if err := f.Format(&buf, map[string]any{"id": "snap-1", "size": 42}); err != nil {
		t.Fatalf("format: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if decoded["id"] != "snap-1" {
		t.Errorf("id = %v", decoded["id"])
	}
	if !strings.Contains(buf.String(), "\n  ") {
		t.Error("output is not indented")
	}
}

func TestYAMLFormatterUsesJSONKeys(t *testing.T) {
	type report struct {
		SnapshotID string `json:"snapshotId"`
		DryRun     bool   `json:"dryRun"`
	}
	var buf bytes.Buffer
	f := &YAMLFormatter{}
	if err := f.Format(&buf, report{SnapshotID: "snap-1", DryRun: true}); err != nil {
		t.Fatalf("format: %v", err)
	}

	var decoded map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not YAML: %v", err)
	}
	if decoded["snapshotId"] != "snap-1" {
		t.Errorf("snapshotId = %v, want the JSON tag name used as key", decoded["snapshotId"])
	}
	if decoded["dryRun"] != true {
		t.Errorf("dryRun = %v", decoded["dryRun"])
	}
}

func TestTableFormatterFallsBackToJSON(t *testing.T) {
	var buf bytes.Buffer
	f := &TableFormatter{}
	if err := f.Format(&buf, map[string]string{"key": "value"}); err != nil {
		t.Fatalf("format: %v", err)
	}
	var decoded map[string]string
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("fallback is not JSON: %v", err)
	}
}

func TestTableRender(t *testing.T) {
	table := &Table{Headers: []string{"ID", "CATEGORY"}}
	table.AddRow("snap-1", "manual")
	table.AddRow("snap-2", "automatic")

	var buf bytes.Buffer
	if err := (&TableFormatter{}).Format(&buf, table); err != nil {
		t.Fatalf("format: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3: %q", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "ID") || !strings.Contains(lines[0], "CATEGORY") {
		t.Errorf("header line = %q", lines[0])
	}
	if !strings.HasPrefix(lines[2], "snap-2") {
		t.Errorf("row line = %q", lines[2])
	}
}

func TestCell(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	cases := []struct {
		in   any
		want string
	}{
		{nil, "-"},
		{"", "-"},
		{"full", "full"},
		{true, "true"},
		{float64(42), "42"},
		{1.5, "1.5"},
		{ts, "2026-03-14 09:30:00"},
		{map[string]string{"a": "b"}, `{"a":"b"}`},
	}
	for _, tc := range cases {
		if got := Cell(tc.in); got != tc.want {
			t.Errorf("Cell(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSpinnerStopsCleanly(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner(&buf, "restoring")
	s.Start()
	time.Sleep(250 * time.Millisecond)
	s.Stop()

	if !strings.Contains(buf.String(), "restoring") {
		t.Error("spinner never rendered its message")
	}
	if !strings.HasSuffix(buf.String(), "\r\033[K") {
		t.Error("spinner did not clear the line on stop")
	}
}
