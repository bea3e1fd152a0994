package visualization

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is a graph document encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ErrUnsupportedFormat is returned for graph files that are neither JSON nor YAML
var ErrUnsupportedFormat = errors.New("unsupported graph format")

// FormatForPath picks the encoding from a file extension
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// LoadGraph reads a graph document from disk
func LoadGraph(path string) (Graph, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return Graph{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return Graph{}, fmt.Errorf("open graph: %w", err)
	}
	defer f.Close()

	g, err := DecodeGraph(f, format)
	if err != nil {
		return Graph{}, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// SaveGraph writes a graph document to disk, encoding chosen by extension
func SaveGraph(path string, g Graph) error {
	format, err := FormatForPath(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create graph file: %w", err)
	}
	if err := EncodeGraph(f, g, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// DecodeGraph reads one graph document
func DecodeGraph(r io.Reader, format Format) (Graph, error) {
	var g Graph
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&g); err != nil {
			return Graph{}, fmt.Errorf("decode json graph: %w", err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&g); err != nil {
			return Graph{}, fmt.Errorf("decode yaml graph: %w", err)
		}
	default:
		return Graph{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return g, nil
}

// EncodeGraph writes one graph document
func EncodeGraph(w io.Writer, g Graph, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(g); err != nil {
			return fmt.Errorf("encode json graph: %w", err)
		}
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(g); err != nil {
			return fmt.Errorf("encode yaml graph: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return nil
}
