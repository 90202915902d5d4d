package exam

// BandThreshold maps a minimum percent score to a band label.
type BandThreshold struct {
	MinPercent float64
	Label      string
}

// DefaultBands returns the IELTS-style band table, highest first.
func DefaultBands() []BandThreshold {
	return []BandThreshold{
		{MinPercent: 90, Label: "Band 9"},
		{MinPercent: 80, Label: "Band 8"},
		{MinPercent: 70, Label: "Band 7"},
		{MinPercent: 60, Label: "Band 6"},
		{MinPercent: 50, Label: "Band 5"},
		{MinPercent: 40, Label: "Band 4"},
	}
}

// BelowLowestBand is returned when a score clears no threshold.
const BelowLowestBand = "Below Band 4"

// Band converts a percent score into a band label using DefaultBands.
func Band(percent float64) string {
	return BandFrom(DefaultBands(), percent)
}

// BandFrom converts a percent score with a custom table (highest first).
func BandFrom(table []BandThreshold, percent float64) string {
	for _, t := range table {
		if percent >= t.MinPercent {
			return t.Label
		}
	}
	return BelowLowestBand
}

// ScoreSummary is the score plus derived presentation fields.
type ScoreSummary struct {
	Score
	Band   string            `json:"band"`
	Labels map[string]string `json:"labels"`
}

// Summarize derives the band and type labels for a score.
func Summarize(s Score) ScoreSummary {
	labels := make(map[string]string, len(s.TypeStats))
	for _, st := range s.TypeStats {
		labels[string(st.Type)] = st.Type.Label()
	}
	return ScoreSummary{
		Score:  s,
		Band:   Band(s.PercentCorrect),
		Labels: labels,
	}
}
