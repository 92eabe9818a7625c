package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"gearshelf/internal/models"
)

// Format is an export encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
)

// ParseFormat accepts json, yaml/yml and csv, case-insensitively
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "csv":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// ContentType returns the MIME type for f
func (f Format) ContentType() string {
	switch f {
	case FormatYAML:
		return "application/yaml"
	case FormatCSV:
		return "text/csv"
	}
	return "application/json"
}

// Extension returns the file extension for f, without the dot
func (f Format) Extension() string {
	return string(f)
}

// Document is the top-level export envelope for JSON and YAML
type Document struct {
	ExportedAt int64                  `json:"exportedAt" yaml:"exported_at"`
	Statistics models.GroupStatistics `json:"statistics" yaml:"statistics"`
	Plugins    []Record               `json:"plugins" yaml:"plugins"`
}

// Record is one grouped plugin flattened for export
type Record struct {
	ID           string            `json:"id" yaml:"id"`
	Name         string            `json:"name" yaml:"name"`
	Manufacturer string            `json:"manufacturer,omitempty" yaml:"manufacturer,omitempty"`
	Types        []string          `json:"types" yaml:"types"`
	Formats      []string          `json:"formats" yaml:"formats"`
	Paths        map[string]string `json:"paths" yaml:"paths"`
}

var csvHeader = []string{"id", "name", "manufacturer", "types", "formats", "vst3_path", "vst2_path", "au_path"}

// NewDocument flattens groups into an export document
func NewDocument(groups []models.GroupedPlugin, stats models.GroupStatistics, exportedAt time.Time) Document {
	doc := Document{
		ExportedAt: exportedAt.UnixMilli(),
		Statistics: stats,
		Plugins:    make([]Record, 0, len(groups)),
	}
	for _, g := range groups {
		record := Record{
			ID:           g.ID,
			Name:         g.Name,
			Manufacturer: g.Manufacturer,
			Types:        make([]string, 0, len(g.Types)),
			Formats:      g.Formats,
			Paths:        make(map[string]string, len(g.Paths)),
		}
		if record.Formats == nil {
			record.Formats = []string{}
		}
		for _, t := range g.Types {
			record.Types = append(record.Types, string(t))
		}
		for t, path := range g.Paths {
			record.Paths[string(t)] = path
		}
		doc.Plugins = append(doc.Plugins, record)
	}
	return doc
}

// Write encodes doc to w in format f
func Write(w io.Writer, f Format, doc Document) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	case FormatCSV:
		return writeCSV(w, doc.Plugins)
	}
	return fmt.Errorf("unsupported export format %q", f)
}

func writeCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.ID,
			r.Name,
			r.Manufacturer,
			strings.Join(r.Types, "|"),
			strings.Join(r.Formats, "|"),
			r.Paths[string(models.PluginTypeVST3)],
			r.Paths[string(models.PluginTypeVST2)],
			r.Paths[string(models.PluginTypeAU)],
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
