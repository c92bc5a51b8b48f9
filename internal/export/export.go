// Package export renders snapshots into alternate serializations.
//
// JSON and YAML exports are lossless and round-trip back into a snapshot
// via Import; the JSON form is byte-identical to the store's wire format,
// so the integrity verifier accepts it directly. CSV and XML are lossy,
// presentation-only views and are documented as non-restorable; they must
// never be the only persisted representation of a snapshot.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/core/domain"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/storage/snapstore"
)

// Format is an export serialization.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
	FormatXML  Format = "xml"
)

// ParseFormat normalizes a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "csv":
		return FormatCSV, nil
	case "xml":
		return FormatXML, nil
	default:
		return "", domain.ErrValidation.WithDetails("unknown export format " + s)
	}
}

// Lossless reports whether the format round-trips back into a snapshot.
func (f Format) Lossless() bool {
	return f == FormatJSON || f == FormatYAML
}

// Export renders the snapshot in the requested format.
func Export(s *domain.Snapshot, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		return snapstore.Encode(s)
	case FormatYAML:
		return exportYAML(s)
	case FormatCSV:
		return exportCSV(s)
	case FormatXML:
		return exportXML(s)
	default:
		return nil, domain.ErrValidation.WithDetails("unknown export format " + string(f))
	}
}

// Import parses a lossless export back into a snapshot.
func Import(data []byte, f Format) (*domain.Snapshot, error) {
	switch f {
	case FormatJSON:
		return snapstore.Decode(data, nil)
	case FormatYAML:
		return importYAML(data)
	default:
		return nil, domain.ErrValidation.WithDetails(
			fmt.Sprintf("format %s is presentation-only and cannot be imported", f))
	}
}

// exportYAML re-renders the JSON wire form as YAML, keeping the wire key
// names instead of Go field names.
func exportYAML(s *domain.Snapshot) ([]byte, error) {
	raw, err := snapstore.Encode(s)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, domain.ErrValidation.WithDetails("re-render wire form").WithCause(err)
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, domain.ErrValidation.WithDetails("render yaml").WithCause(err)
	}
	return out, nil
}

func importYAML(data []byte) (*domain.Snapshot, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, domain.ErrValidation.WithDetails("parse yaml").WithCause(err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, domain.ErrValidation.WithDetails("re-render wire form").WithCause(err)
	}
	return snapstore.Decode(raw, nil)
}

// exportCSV flattens the snapshot into section,field,value rows.
func exportCSV(s *domain.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	rows := [][]string{
		{"section", "field", "value"},
		{"metadata", "id", s.ID},
		{"metadata", "createdAt", s.CreatedAt.UTC().Format("2006-01-02T15:04:05Z")},
		{"metadata", "type", string(s.Category)},
		{"metadata", "description", s.Description},
		{"resource", "id", s.ResourceID},
		{"resource", "name", s.ResourceName},
	}
	for _, k := range s.SettingKeys() {
		rows = append(rows, []string{"settings", k, domain.CanonicalValue(s.ResourceSettings[k])})
	}
	for _, k := range s.LocalKeys() {
		rows = append(rows, []string{"local", k, domain.CanonicalValue(s.LocalConfig[k])})
	}
	for _, r := range s.FirewallRules {
		rows = append(rows, []string{"firewall", r.Identity(), r.Description})
	}

	if err := w.WriteAll(rows); err != nil {
		return nil, domain.ErrValidation.WithDetails("render csv").WithCause(err)
	}
	return buf.Bytes(), nil
}

// xmlSnapshot is the presentation shape of the XML export.
type xmlSnapshot struct {
	XMLName  xml.Name   `xml:"snapshot"`
	ID       string     `xml:"metadata>id"`
	Created  string     `xml:"metadata>createdAt"`
	Type     string     `xml:"metadata>type"`
	Resource string     `xml:"resource>id"`
	Name     string     `xml:"resource>name"`
	Settings []xmlEntry `xml:"settings>setting"`
	Local    []xmlEntry `xml:"local>field"`
	Rules    []xmlRule  `xml:"firewall>rule"`
}

type xmlEntry struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

type xmlRule struct {
	Action     string `xml:"action,attr"`
	Priority   int    `xml:"priority,attr"`
	Expression string `xml:"expression"`
	Desc       string `xml:"description,omitempty"`
}

func exportXML(s *domain.Snapshot) ([]byte, error) {
	doc := xmlSnapshot{
		ID:       s.ID,
		Created:  s.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		Type:     string(s.Category),
		Resource: s.ResourceID,
		Name:     s.ResourceName,
	}
	for _, k := range s.SettingKeys() {
		doc.Settings = append(doc.Settings, xmlEntry{Key: k, Value: domain.CanonicalValue(s.ResourceSettings[k])})
	}
	for _, k := range s.LocalKeys() {
		doc.Local = append(doc.Local, xmlEntry{Key: k, Value: domain.CanonicalValue(s.LocalConfig[k])})
	}
	for _, r := range s.FirewallRules {
		doc.Rules = append(doc.Rules, xmlRule{
			Action: r.Action, Priority: r.Priority,
			Expression: r.Expression, Desc: r.Description,
		})
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, domain.ErrValidation.WithDetails("render xml").WithCause(err)
	}
	return append([]byte(xml.Header), out...), nil
}
