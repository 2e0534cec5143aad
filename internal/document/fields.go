package document

import (
	"fmt"
	"sort"
	"strings"
)

// Field is one labeled text field selected from a document tree.
type Field struct {
	Path string
	Text string
}

// ExtractFields selects the given paths from the document tree, in order.
// Path segments are dot-separated; a segment ending in "[]" flattens an
// array, optionally selecting a sub-field across all elements
// ("risks[].description"). Missing paths yield no field. Raw-text documents
// expose a single "text" field.
func ExtractFields(doc *Document, paths []string) []Field {
	if doc.Tree == nil {
		if strings.TrimSpace(doc.Raw) == "" {
			return nil
		}
		return []Field{{Path: "text", Text: doc.Raw}}
	}

	fields := make([]Field, 0, len(paths))
	for _, path := range paths {
		text, ok := selectPath(doc.Tree, strings.Split(path, "."))
		if !ok || strings.TrimSpace(text) == "" {
			continue
		}
		fields = append(fields, Field{Path: path, Text: text})
	}
	return fields
}

// selectPath walks one dot path through the tree.
func selectPath(node any, segments []string) (string, bool) {
	if len(segments) == 0 {
		return renderScalar(node)
	}

	seg := segments[0]
	rest := segments[1:]

	if strings.HasSuffix(seg, "[]") {
		key := strings.TrimSuffix(seg, "[]")
		m, ok := node.(map[string]any)
		if !ok {
			return "", false
		}
		arr, ok := m[key].([]any)
		if !ok {
			return "", false
		}
		parts := make([]string, 0, len(arr))
		for _, elem := range arr {
			if text, ok := selectPath(elem, rest); ok && strings.TrimSpace(text) != "" {
				parts = append(parts, text)
			}
		}
		if len(parts) == 0 {
			return "", false
		}
		return strings.Join(parts, "\n"), true
	}

	m, ok := node.(map[string]any)
	if !ok {
		return "", false
	}
	child, ok := m[seg]
	if !ok {
		return "", false
	}
	return selectPath(child, rest)
}

// renderScalar turns a leaf node into field text. Maps and arrays render as
// "key: value" lines so nested structures stay evidence-bearing.
func renderScalar(node any) (string, bool) {
	switch v := node.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case map[string]any:
		var b strings.Builder
		writeTree(&b, "", v, nil)
		return strings.TrimRight(b.String(), "\n"), b.Len() > 0
	case []any:
		parts := make([]string, 0, len(v))
		for _, elem := range v {
			if text, ok := renderScalar(elem); ok {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, "\n"), len(parts) > 0
	default:
		return fmt.Sprintf("%v", v), true
	}
}

// Flatten renders every non-skipped key of the document tree as
// "key: value" lines, for whole-document relation extraction context.
// skipPaths are dotted prefixes of metadata keys to omit.
func Flatten(doc *Document, skipPaths []string) string {
	if doc.Tree == nil {
		return doc.Raw
	}
	var b strings.Builder
	writeTree(&b, "", doc.Tree, skipPaths)
	return strings.TrimRight(b.String(), "\n")
}

func writeTree(b *strings.Builder, prefix string, node any, skipPaths []string) {
	if prefix != "" && skipped(prefix, skipPaths) {
		return
	}
	switch v := node.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			writeTree(b, joinPath(prefix, k), v[k], skipPaths)
		}
	case []any:
		for i, elem := range v {
			writeTree(b, fmt.Sprintf("%s[%d]", prefix, i), elem, skipPaths)
		}
	case nil:
		// Omitted: absent data carries no evidence.
	case string:
		if strings.TrimSpace(v) != "" {
			fmt.Fprintf(b, "%s: %s\n", prefix, v)
		}
	default:
		fmt.Fprintf(b, "%s: %v\n", prefix, v)
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func skipped(path string, skipPaths []string) bool {
	// Compare against the path with array indexes present; skip prefixes
	// are plain dotted keys.
	for _, skip := range skipPaths {
		if path == skip || strings.HasPrefix(path, skip+".") || strings.HasPrefix(path, skip+"[") {
			return true
		}
	}
	return false
}
