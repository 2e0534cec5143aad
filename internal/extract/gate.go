package extract

// Default gate thresholds.
const (
	DefaultCommitThreshold = 0.7
	DefaultFlagThreshold   = 0.5
)

// Gate partitions entities by confidence: at or above commitThreshold they
// are kept clean; between flagThreshold (inclusive) and commitThreshold
// they are kept with NeedsReview set, still committed but logged for human
// audit; below flagThreshold they are dropped entirely. Pure filter, no
// side effects.
func Gate(entities []EntityExtraction, commitThreshold, flagThreshold float64) []EntityExtraction {
	out := make([]EntityExtraction, 0, len(entities))
	for _, e := range entities {
		switch {
		case e.Confidence >= commitThreshold:
			e.NeedsReview = false
		case e.Confidence >= flagThreshold:
			e.NeedsReview = true
		default:
			continue
		}
		out = append(out, e)
	}
	return out
}

// GateRelations applies the same rule independently to relations. Relations
// gate on their own confidence: an endpoint entity dropped by Gate does not
// drop a passing relation — the committer merges endpoint nodes anyway.
func GateRelations(relations []RelationExtraction, commitThreshold, flagThreshold float64) []RelationExtraction {
	out := make([]RelationExtraction, 0, len(relations))
	for _, r := range relations {
		switch {
		case r.Confidence >= commitThreshold:
			r.NeedsReview = false
		case r.Confidence >= flagThreshold:
			r.NeedsReview = true
		default:
			continue
		}
		out = append(out, r)
	}
	return out
}
