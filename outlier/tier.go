package outlier

import "fmt"

// Tier is a named band of outlier scores.
type Tier struct {
	Name  string
	Label string
	// Min is the inclusive lower bound of the band.
	Min float64
}

// Tiers ordered from highest to lowest lower bound.
var (
	TierPlatinum = Tier{Name: "platinum", Label: "Mega Viral", Min: 10}
	TierGold     = Tier{Name: "gold", Label: "Viral", Min: 5}
	TierSilver   = Tier{Name: "silver", Label: "Strong Outlier", Min: 3}
	TierBronze   = Tier{Name: "bronze", Label: "Outlier", Min: Threshold}
	TierNone     = Tier{Name: "none", Label: "Normal", Min: 0}
)

var tiers = []Tier{TierPlatinum, TierGold, TierSilver, TierBronze}

// TierFor maps a score onto its band. Bands include their lower bound.
func TierFor(score float64) Tier {
	for _, t := range tiers {
		if score >= t.Min {
			return t
		}
	}
	return TierNone
}

// FormatScore renders a score with one decimal place and an "x" suffix.
func FormatScore(score float64) string {
	return fmt.Sprintf("%.1fx", score)
}
