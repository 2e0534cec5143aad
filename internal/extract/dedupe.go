package extract

// Dedupe collapses entities sharing a (type, value) key to a single record,
// keeping the highest-confidence instance with ties broken by first-seen
// order. Surviving keys preserve first-seen relative ordering. Must run
// after normalization so pre-normalization duplicates ("NVDA" vs "nvda")
// collapse.
func Dedupe(entities []EntityExtraction) []EntityExtraction {
	type key struct {
		typ   string
		value string
	}

	order := make([]key, 0, len(entities))
	best := make(map[key]EntityExtraction, len(entities))

	for _, e := range entities {
		k := key{typ: e.Type, value: e.Value}
		existing, seen := best[k]
		if !seen {
			order = append(order, k)
			best[k] = e
			continue
		}
		if e.Confidence > existing.Confidence {
			// Keep the higher-confidence record but don't lose a resolved
			// ticker carried by an earlier duplicate.
			if e.ResolvedTicker == "" {
				e.ResolvedTicker = existing.ResolvedTicker
			}
			best[k] = e
		}
	}

	out := make([]EntityExtraction, 0, len(order))
	for _, k := range order {
		out = append(out, best[k])
	}
	return out
}

// DedupeRelations collapses relations sharing (source, relation, target)
// keys with the same highest-confidence rule as Dedupe.
func DedupeRelations(relations []RelationExtraction) []RelationExtraction {
	type key struct {
		sourceType  string
		sourceValue string
		relation    string
		targetType  string
		targetValue string
	}

	order := make([]key, 0, len(relations))
	best := make(map[key]RelationExtraction, len(relations))

	for _, r := range relations {
		k := key{r.SourceType, r.SourceValue, r.Relation, r.TargetType, r.TargetValue}
		existing, seen := best[k]
		if !seen {
			order = append(order, k)
			best[k] = r
			continue
		}
		if r.Confidence > existing.Confidence {
			best[k] = r
		}
	}

	out := make([]RelationExtraction, 0, len(order))
	for _, k := range order {
		out = append(out, best[k])
	}
	return out
}
