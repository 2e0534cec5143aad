package extract

import (
	"encoding/json"
	"strings"
)

// rawEntity mirrors the backend's expected entity JSON shape.
type rawEntity struct {
	Type       string  `json:"type"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Evidence   string  `json:"evidence"`
}

// rawRelation mirrors the backend's expected relation JSON shape.
type rawRelation struct {
	SourceType  string  `json:"source_type"`
	SourceValue string  `json:"source_value"`
	Relation    string  `json:"relation"`
	TargetType  string  `json:"target_type"`
	TargetValue string  `json:"target_value"`
	Confidence  float64 `json:"confidence"`
	Evidence    string  `json:"evidence"`
}

// ParseEntities extracts candidate entities from raw backend output.
// Extraction is best-effort per field: malformed output yields an empty
// slice, never an error. Items with missing fields or out-of-range
// confidence are skipped.
func ParseEntities(raw string) []EntityExtraction {
	data := locateJSONArray(raw)
	if data == "" {
		return nil
	}

	var items []rawEntity
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		return nil
	}

	entities := make([]EntityExtraction, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.Type) == "" || strings.TrimSpace(item.Value) == "" {
			continue
		}
		if item.Confidence < 0 || item.Confidence > 1 {
			continue
		}
		entities = append(entities, EntityExtraction{
			Type:       item.Type,
			Value:      item.Value,
			Confidence: item.Confidence,
			Evidence:   item.Evidence,
		})
	}
	return entities
}

// ParseRelations extracts candidate relations from raw backend output,
// with the same tolerance as ParseEntities.
func ParseRelations(raw string) []RelationExtraction {
	data := locateJSONArray(raw)
	if data == "" {
		return nil
	}

	var items []rawRelation
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		return nil
	}

	relations := make([]RelationExtraction, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.SourceValue) == "" || strings.TrimSpace(item.TargetValue) == "" {
			continue
		}
		if strings.TrimSpace(item.Relation) == "" {
			continue
		}
		if item.Confidence < 0 || item.Confidence > 1 {
			continue
		}
		relations = append(relations, RelationExtraction{
			SourceType:  item.SourceType,
			SourceValue: item.SourceValue,
			Relation:    item.Relation,
			TargetType:  item.TargetType,
			TargetValue: item.TargetValue,
			Confidence:  item.Confidence,
			Evidence:    item.Evidence,
		})
	}
	return relations
}

// locateJSONArray finds the JSON array inside backend output that may be
// wrapped in code fences or prose, or nested inside a JSON object. Returns
// "" when no bracket structure is present.
func locateJSONArray(raw string) string {
	text := stripCodeFences(strings.TrimSpace(raw))

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start >= 0 && end > start {
		return text[start : end+1]
	}

	// Object-wrapped with no array at all ({} with no candidates) — treat
	// an empty object as an empty result rather than garbage.
	objStart := strings.Index(text, "{")
	objEnd := strings.LastIndex(text, "}")
	if objStart >= 0 && objEnd > objStart {
		return "[]"
	}

	return ""
}

// stripCodeFences removes a surrounding triple-backtick block, with or
// without a language tag.
func stripCodeFences(text string) string {
	if !strings.Contains(text, "```") {
		return text
	}
	first := strings.Index(text, "```")
	rest := text[first+3:]
	// Drop the language tag line, if any.
	if nl := strings.Index(rest, "\n"); nl >= 0 {
		firstLine := strings.TrimSpace(rest[:nl])
		if firstLine != "" && !strings.ContainsAny(firstLine, "[{") {
			rest = rest[nl+1:]
		}
	}
	if closing := strings.LastIndex(rest, "```"); closing >= 0 {
		rest = rest[:closing]
	}
	return strings.TrimSpace(rest)
}
