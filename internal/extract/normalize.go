package extract

import (
	"strings"
)

// Normalizer canonicalizes entity types and values against the alias
// tables. All methods are pure and idempotent.
type Normalizer struct {
	aliases *Aliases
}

// NewNormalizer creates a Normalizer over the given alias tables.
func NewNormalizer(aliases *Aliases) *Normalizer {
	if aliases == nil {
		aliases = DefaultAliases()
	}
	return &Normalizer{aliases: aliases}
}

// NormalizeType maps a lower/mixed-case type name onto its PascalCase
// canonical label: "ticker" -> "Ticker", "earnings_event" -> "EarningsEvent".
func NormalizeType(t string) string {
	t = strings.TrimSpace(t)
	if t == "" {
		return ""
	}
	parts := strings.FieldsFunc(t, func(r rune) bool {
		return r == '_' || r == ' ' || r == '-'
	})
	var b strings.Builder
	for _, part := range parts {
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(strings.ToLower(part[1:]))
	}
	return b.String()
}

// NormalizeTicker uppercases, trims, and resolves a ticker symbol through
// the alias map. Alias wins over the literal uppercase form.
func (n *Normalizer) NormalizeTicker(value string) string {
	upper := strings.ToUpper(strings.TrimSpace(value))
	if canonical, ok := n.aliases.Tickers[upper]; ok {
		return canonical
	}
	return upper
}

// normalizeSlug lowercases a vocabulary value, standardizes whitespace and
// underscore separators to hyphens, then applies the given alias map.
// Aliases are checked both before and after hyphenation so multi-word
// phrases ("loss aversion") and slugs ("loss-aversion") resolve alike.
func normalizeSlug(value string, aliases map[string]string) string {
	lower := strings.ToLower(strings.TrimSpace(value))
	if canonical, ok := aliases[lower]; ok {
		return canonical
	}
	slug := strings.Join(strings.FieldsFunc(lower, func(r rune) bool {
		return r == ' ' || r == '_' || r == '\t'
	}), "-")
	if canonical, ok := aliases[slug]; ok {
		return canonical
	}
	return slug
}

// ResolveCompany looks a company name up in the company->ticker map,
// case-insensitively. Second return is false on miss.
func (n *Normalizer) ResolveCompany(name string) (string, bool) {
	ticker, ok := n.aliases.Companies[strings.ToLower(strings.TrimSpace(name))]
	return ticker, ok
}

// NormalizeEntity canonicalizes one entity in place and returns it.
func (n *Normalizer) NormalizeEntity(e EntityExtraction) EntityExtraction {
	e.Type = NormalizeType(e.Type)
	e.Value = n.normalizeValue(e.Type, e.Value)

	if e.Type == "Company" {
		if ticker, ok := n.ResolveCompany(e.Value); ok {
			e.ResolvedTicker = ticker
		}
	}
	return e
}

// NormalizeRelation canonicalizes a relation's endpoints using the same
// rules keyed by endpoint type, and uppercases the relation label.
func (n *Normalizer) NormalizeRelation(r RelationExtraction) RelationExtraction {
	r.SourceType = NormalizeType(r.SourceType)
	r.TargetType = NormalizeType(r.TargetType)
	r.SourceValue = n.normalizeValue(r.SourceType, r.SourceValue)
	r.TargetValue = n.normalizeValue(r.TargetType, r.TargetValue)
	r.Relation = normalizeRelationLabel(r.Relation)
	return r
}

// normalizeValue applies the per-type value rule.
func (n *Normalizer) normalizeValue(canonicalType, value string) string {
	switch canonicalType {
	case "Ticker":
		return n.NormalizeTicker(value)
	case "Bias":
		return normalizeSlug(value, n.aliases.Biases)
	case "Pattern":
		return normalizeSlug(value, n.aliases.Patterns)
	case "Strategy":
		return normalizeSlug(value, n.aliases.Strategies)
	default:
		return strings.TrimSpace(value)
	}
}

// normalizeRelationLabel maps "competes with" / "Competes_With" onto the
// graph store's COMPETES_WITH form.
func normalizeRelationLabel(label string) string {
	parts := strings.FieldsFunc(strings.TrimSpace(label), func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	})
	return strings.ToUpper(strings.Join(parts, "_"))
}
