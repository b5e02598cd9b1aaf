package domain

import "math"

// Band holds the probability tuning values for one stage group. Base is the
// score of the group's first stage, Span is the distance to its last stage,
// and Single is the score used when the group has only one member.
type Band struct {
	Base   int
	Span   int
	Single int
}

// Bands is the probability model configuration. The defaults are business
// tuning values; they must keep scores monotonically non-decreasing within a
// group and preserve the band boundaries for comparability with historical
// lead data.
type Bands struct {
	Open       Band // covers open and qualification stages (10-50)
	FollowUp   Band // 41-80
	Scheduling Band // 81-99
}

// DefaultBands returns the historical probability band configuration.
func DefaultBands() Bands {
	return Bands{
		Open:       Band{Base: 10, Span: 40, Single: 25},
		FollowUp:   Band{Base: 41, Span: 39, Single: 60},
		Scheduling: Band{Base: 81, Span: 18, Single: 90},
	}
}

// Score derives a probability in [0,100] from a stage's position in the
// catalog. Pure and deterministic: lost scores 0, won scores 100, banded
// groups interpolate linearly between Base and Base+Span across the group,
// and unknown stage types score 0.
func (b Bands) Score(stage Stage, catalog Catalog) int {
	switch stage.Type {
	case StageTypeLost:
		return 0
	case StageTypeWon:
		return 100
	}

	var band Band
	switch stage.Type.BandGroup() {
	case "open":
		band = b.Open
	case "follow_up":
		band = b.FollowUp
	case "scheduling":
		band = b.Scheduling
	default:
		return 0
	}

	members := catalog.BandGroupStages(stage)
	n := len(members)
	if n <= 1 {
		return band.Single
	}

	index := 0
	for i, s := range members {
		if s.ID == stage.ID {
			index = i
			break
		}
	}

	fraction := float64(index) / float64(n-1)
	return int(math.Round(float64(band.Base) + fraction*float64(band.Span)))
}
