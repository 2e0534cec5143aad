package document

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeTempDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing temp doc: %v", err)
	}
	return path
}

const sampleAnalysis = `ticker: NVDA
thesis: |
  NVIDIA dominates the AI accelerator market. Data center revenue is
  growing faster than consensus expects.
risks:
  - name: competition
    description: AMD MI300 ramp could pressure margins
  - name: concentration
    description: Hyperscaler capex cuts would hit data center revenue
metadata:
  created: 2026-03-01
  author: desk
`

func TestLoadFile(t *testing.T) {
	path := writeTempDoc(t, "nvda-q4.yaml", sampleAnalysis)

	doc, err := LoadFile(path, "")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if doc.DocID != "nvda-q4" {
		t.Errorf("doc id = %q, want nvda-q4", doc.DocID)
	}
	if doc.DocType != "analysis" {
		t.Errorf("doc type = %q, want analysis (default)", doc.DocType)
	}
	if doc.Tree["ticker"] != "NVDA" {
		t.Errorf("tree ticker = %v", doc.Tree["ticker"])
	}
	if doc.TextHash() == "" || doc.TextHash() != doc.TextHash() {
		t.Error("text hash must be stable and non-empty")
	}
}

func TestLoadFile_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		wantErr error
	}{
		{
			name:    "template filename",
			path:    func(t *testing.T) string { return writeTempDoc(t, "analysis-template.yaml", sampleAnalysis) },
			wantErr: ErrTemplate,
		},
		{
			name:    "missing file",
			path:    func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.yaml") },
			wantErr: ErrNotFound,
		},
		{
			name:    "empty file",
			path:    func(t *testing.T) string { return writeTempDoc(t, "empty.yaml", "   \n") },
			wantErr: ErrEmpty,
		},
		{
			name:    "unparseable yaml",
			path:    func(t *testing.T) string { return writeTempDoc(t, "broken.yaml", "a: [unclosed") },
			wantErr: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(tt.path(t), "")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("LoadFile error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewRawText(t *testing.T) {
	doc, err := NewRawText("NVDA beat earnings.", "news", "", "https://example.com/a")
	if err != nil {
		t.Fatalf("NewRawText: %v", err)
	}
	if doc.DocID == "" {
		t.Error("raw text document should get a generated id")
	}
	if doc.DocType != "news" || doc.SourceURL != "https://example.com/a" {
		t.Errorf("unexpected doc: %+v", doc)
	}

	if _, err := NewRawText("   ", "news", "", ""); !errors.Is(err, ErrEmpty) {
		t.Errorf("empty text should be rejected, got %v", err)
	}
}

func TestExtractFields(t *testing.T) {
	path := writeTempDoc(t, "nvda.yaml", sampleAnalysis)
	doc, err := LoadFile(path, "analysis")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	fields := ExtractFields(doc, []string{"thesis", "risks[].description", "catalysts[]", "missing"})
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields (missing paths omitted), got %d: %+v", len(fields), fields)
	}
	if fields[0].Path != "thesis" {
		t.Errorf("field order not preserved: %+v", fields)
	}
	if fields[1].Path != "risks[].description" {
		t.Errorf("array selector field missing: %+v", fields)
	}
	want := "AMD MI300 ramp could pressure margins\nHyperscaler capex cuts would hit data center revenue"
	if fields[1].Text != want {
		t.Errorf("flattened array field = %q, want %q", fields[1].Text, want)
	}
}

func TestExtractFields_RawText(t *testing.T) {
	doc, err := NewRawText("AMD trails NVDA.", "news", "n1", "")
	if err != nil {
		t.Fatalf("NewRawText: %v", err)
	}
	fields := ExtractFields(doc, []string{"thesis"})
	if len(fields) != 1 || fields[0].Path != "text" || fields[0].Text != "AMD trails NVDA." {
		t.Errorf("raw text should yield a single text field, got %+v", fields)
	}
}

func TestFlatten(t *testing.T) {
	path := writeTempDoc(t, "nvda.yaml", sampleAnalysis)
	doc, err := LoadFile(path, "analysis")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	flat := Flatten(doc, []string{"metadata"})
	if flat == "" {
		t.Fatal("flatten produced no output")
	}
	if !containsLinePrefix(flat, "ticker: NVDA") {
		t.Errorf("flatten missing ticker line:\n%s", flat)
	}
	if !containsLinePrefix(flat, "risks[0].description: AMD MI300") {
		t.Errorf("flatten missing nested array line:\n%s", flat)
	}
	if containsLinePrefix(flat, "metadata.created") {
		t.Errorf("skip list not honored:\n%s", flat)
	}
}

func containsLinePrefix(text, prefix string) bool {
	for _, line := range splitLines(text) {
		if len(line) >= len(prefix) && line[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

func splitLines(text string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, text[start:i])
			start = i + 1
		}
	}
	return append(lines, text[start:])
}
