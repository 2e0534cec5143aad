package extract

import (
	"testing"
)

func TestParseEntities_ToleratesWrapping(t *testing.T) {
	clean := `[{"type":"Ticker","value":"NVDA","confidence":0.9,"evidence":"x"}]`

	tests := []struct {
		name string
		raw  string
	}{
		{"clean json", clean},
		{"fenced with language tag", "```json\n" + clean + "\n```"},
		{"fenced without language tag", "```\n" + clean + "\n```"},
		{"embedded in prose", "Here are the entities I found:\n" + clean + "\nLet me know if you need more."},
		{"object wrapped", `{"entities": ` + clean + `}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseEntities(tt.raw)
			if len(got) != 1 {
				t.Fatalf("expected 1 entity, got %d from %q", len(got), tt.raw)
			}
			e := got[0]
			if e.Type != "Ticker" || e.Value != "NVDA" || e.Confidence != 0.9 || e.Evidence != "x" {
				t.Errorf("unexpected entity: %+v", e)
			}
		})
	}
}

func TestParseEntities_MalformedYieldsEmpty(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json at all", "not json at all"},
		{"empty string", ""},
		{"truncated array", `[{"type":"Ticker","value":"NV`},
		{"empty object", `{}`},
		{"prose only", "I could not find any entities in this text."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseEntities(tt.raw); len(got) != 0 {
				t.Errorf("expected empty result, got %+v", got)
			}
		})
	}
}

func TestParseEntities_SkipsInvalidItems(t *testing.T) {
	raw := `[
		{"type":"Ticker","value":"NVDA","confidence":0.9,"evidence":"a"},
		{"type":"","value":"ghost","confidence":0.9,"evidence":"b"},
		{"type":"Ticker","value":"","confidence":0.9,"evidence":"c"},
		{"type":"Ticker","value":"AMD","confidence":1.5,"evidence":"d"},
		{"type":"Ticker","value":"INTC","confidence":-0.1,"evidence":"e"},
		{"type":"Bias","value":"fomo","confidence":0.6,"evidence":"f"}
	]`

	got := ParseEntities(raw)
	if len(got) != 2 {
		t.Fatalf("expected 2 valid entities, got %d: %+v", len(got), got)
	}
	if got[0].Value != "NVDA" || got[1].Value != "fomo" {
		t.Errorf("wrong survivors: %+v", got)
	}
	for _, e := range got {
		if e.Confidence < 0 || e.Confidence > 1 {
			t.Errorf("confidence out of range: %+v", e)
		}
	}
}

func TestParseRelations(t *testing.T) {
	raw := "```json\n" + `[{"source_type":"ticker","source_value":"AMD","relation":"COMPETES_WITH","target_type":"ticker","target_value":"NVDA","confidence":0.8,"evidence":"Competitors AMD and Intel trail"}]` + "\n```"

	got := ParseRelations(raw)
	if len(got) != 1 {
		t.Fatalf("expected 1 relation, got %d", len(got))
	}
	r := got[0]
	if r.SourceValue != "AMD" || r.Relation != "COMPETES_WITH" || r.TargetValue != "NVDA" {
		t.Errorf("unexpected relation: %+v", r)
	}

	if got := ParseRelations("no structure here"); len(got) != 0 {
		t.Errorf("malformed relation output should be empty, got %+v", got)
	}
}

func TestParseRelations_SkipsIncomplete(t *testing.T) {
	raw := `[
		{"source_type":"ticker","source_value":"AMD","relation":"","target_type":"ticker","target_value":"NVDA","confidence":0.8,"evidence":"x"},
		{"source_type":"ticker","source_value":"","relation":"COMPETES_WITH","target_type":"ticker","target_value":"NVDA","confidence":0.8,"evidence":"x"}
	]`
	if got := ParseRelations(raw); len(got) != 0 {
		t.Errorf("incomplete relations should be skipped, got %+v", got)
	}
}
