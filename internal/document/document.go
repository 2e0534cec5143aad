// Package document loads source documents for extraction and turns them
// into labeled text fields.
//
// Two input shapes are supported: file-backed YAML analyses (parsed into a
// key/value tree) and raw text from external sources with no backing file.
// Template files and missing paths are rejected before any backend call is
// made.
package document

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Rejection reasons surfaced before the pipeline runs.
var (
	// ErrTemplate marks a document whose filename matches a template marker.
	ErrTemplate = errors.New("document is a template")

	// ErrNotFound marks a missing or unreadable document.
	ErrNotFound = errors.New("document not found")

	// ErrEmpty marks an empty or unparseable document.
	ErrEmpty = errors.New("document is empty")
)

// templateMarkers are filename fragments that identify fill-in templates
// rather than real analyses.
var templateMarkers = []string{"template", "_tmpl", ".example"}

// Document is a parsed source document ready for field extraction.
type Document struct {
	DocID     string
	DocType   string
	Path      string         // empty for raw-text input
	SourceURL string         // optional, raw-text input only
	Tree      map[string]any // nil for raw-text input
	Raw       string         // raw text content
}

// TextHash returns the sha256 hex digest of the document's source text,
// keyed by path so identical content from two files hashes differently.
func (d *Document) TextHash() string {
	h := sha256.New()
	h.Write([]byte(d.Path))
	h.Write([]byte{0})
	h.Write([]byte(d.Raw))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// LoadFile parses a structured YAML document from disk. The filename is
// checked against template markers before the file is read.
func LoadFile(path, docType string) (*Document, error) {
	base := strings.ToLower(filepath.Base(path))
	for _, marker := range templateMarkers {
		if strings.Contains(base, marker) {
			return nil, fmt.Errorf("%w: %s", ErrTemplate, path)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, path, err)
	}

	content := strings.TrimSpace(string(data))
	if content == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, path)
	}

	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrNotFound, path, err)
	}
	if len(tree) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, path)
	}

	if docType == "" {
		docType = "analysis"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	docID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	return &Document{
		DocID:   docID,
		DocType: docType,
		Path:    absPath,
		Tree:    tree,
		Raw:     content,
	}, nil
}

// NewRawText builds a document from externally sourced text with no backing
// file. An empty docID gets a generated UUID.
func NewRawText(text, docType, docID, sourceURL string) (*Document, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", ErrEmpty)
	}
	if docType == "" {
		docType = "note"
	}
	if docID == "" {
		docID = uuid.NewString()
	}
	return &Document{
		DocID:     docID,
		DocType:   docType,
		SourceURL: sourceURL,
		Raw:       text,
	}, nil
}
