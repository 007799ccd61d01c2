package domain

// DefaultConfidence is used when a diary carries no events at all.
const DefaultConfidence = 0.85

var severityScores = map[Severity]float64{
	SeverityHigh:     0.9,
	SeverityModerate: 0.8,
	SeverityLow:      0.7,
}

const unmappedSeverityScore = 0.7

// ScoreConfidence returns the narrative confidence for a list of events: the
// highest per-severity score, rounded to two decimals.
func ScoreConfidence(events []Event) float64 {
	if len(events) == 0 {
		return DefaultConfidence
	}
	best := 0.0
	for _, e := range events {
		score, ok := severityScores[e.Severity]
		if !ok {
			score = unmappedSeverityScore
		}
		if score > best {
			best = score
		}
	}
	return roundTo(best, 2)
}
