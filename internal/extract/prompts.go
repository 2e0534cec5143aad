package extract

import "fmt"

// entitySystemPrompt instructs the backend on the entity extraction
// contract. The response parser tolerates deviations, but a tight prompt
// keeps the noise rate down on small models.
const entitySystemPrompt = `You are an entity extraction engine for financial analysis documents.
Extract typed entities from the provided text.

ENTITY TYPES (use exactly these values):
- ticker    : a stock ticker symbol (NVDA, AAPL)
- company   : a company name (NVIDIA, Apple Inc)
- bias      : a cognitive or behavioral bias (loss aversion, FOMO)
- strategy  : a trading or investing strategy (dollar cost averaging, covered calls)
- pattern   : a chart or market pattern (head and shoulders, golden cross)
- risk      : a named risk factor (margin compression, customer concentration)
- sector    : an industry sector (semiconductors, consumer staples)
- event     : a market event (Q4 earnings, Fed rate decision)

Return ONLY a JSON array of objects:
[{"type": "ticker", "value": "NVDA", "confidence": 0.95, "evidence": "exact supporting text from the input"}]

Rules:
- confidence is a float between 0.0 and 1.0.
- evidence must be a verbatim snippet from the input text.
- Only extract entities clearly supported by the text. Never infer.
- If there are none, return [].
- Do NOT include any text outside the JSON array.`

// relationSystemPrompt instructs the backend on the relation extraction
// contract, run over the flattened whole document for context.
const relationSystemPrompt = `You are a relation extraction engine for financial analysis documents.
Extract typed relations between entities mentioned in the provided text.

RELATION TYPES (use exactly these values):
- COMPETES_WITH : both endpoints compete in a market
- SUPPLIES_TO   : source supplies goods or services to target
- WORKS_FOR     : a person works for a company
- THREATENS     : source is a risk to target
- DERIVED_FROM  : source strategy or thesis derives from target
- EXPOSED_TO    : source has exposure to target (sector, event, risk)

Return ONLY a JSON array of objects:
[{"source_type": "ticker", "source_value": "AMD", "relation": "COMPETES_WITH",
  "target_type": "ticker", "target_value": "NVDA",
  "confidence": 0.8, "evidence": "exact supporting text from the input"}]

Rules:
- confidence is a float between 0.0 and 1.0.
- evidence must be a verbatim snippet from the input text.
- Only extract relations clearly supported by the text. Never infer.
- If there are none, return [].
- Do NOT include any text outside the JSON array.`

// entityPrompt builds the user prompt for one field.
func entityPrompt(fieldPath, fieldText string) string {
	return fmt.Sprintf("Extract entities from this %q field of a financial document:\n\n---\n%s\n---\n\nReturn the JSON array.", fieldPath, fieldText)
}

// relationPrompt builds the user prompt for whole-document relation
// extraction.
func relationPrompt(docText string) string {
	return fmt.Sprintf("Extract relations from this financial document:\n\n---\n%s\n---\n\nReturn the JSON array.", docText)
}
