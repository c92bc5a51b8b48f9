package output

import (
	"fmt"
	"io"
)

// Format selects how command results are rendered.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// Formatter renders a command result to the writer.
//
// Table output renders *Table values directly and falls back to JSON for
// anything else; JSON and YAML render the value as-is, so commands that
// support scripting pass their report structs unmodified.
type Formatter interface {
	Format(w io.Writer, data any) error
}

// New returns the formatter for the given format name.
func New(format Format) (Formatter, error) {
	switch format {
	case FormatJSON:
		return &JSONFormatter{}, nil
	case FormatYAML:
		return &YAMLFormatter{}, nil
	case FormatTable, "":
		return &TableFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}
