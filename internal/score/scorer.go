package score

import (
	"github.com/ppiankov/deepscan/internal/model"
)

// Scorer turns catalog definitions into concrete feature scores
type Scorer struct {
	src        Source
	thresholds Thresholds
}

// NewScorer creates a scorer drawing from src. A nil src uses the runtime generator.
func NewScorer(src Source, thresholds Thresholds) *Scorer {
	if src == nil {
		src = globalSource{}
	}
	return &Scorer{src: src, thresholds: thresholds}
}

// Score produces one FeatureScore per definition, preserving order.
// When fakeProbability is above the suspect threshold each score is shifted by the
// suspect offset (skewing low), otherwise by the clean offset (skewing high).
func (s *Scorer) Score(defs []model.FeatureDefinition, fakeProbability int) []model.FeatureScore {
	suspect := s.thresholds.IsSuspect(fakeProbability)

	scores := make([]model.FeatureScore, 0, len(defs))
	for _, d := range defs {
		offset := d.LowOffsetWhenClean
		if suspect {
			offset = d.LowOffsetWhenSuspect
		}

		scores = append(scores, model.FeatureScore{
			Name:        d.Name,
			Description: d.Description,
			Score:       s.src.IntN(d.BaseRangeWidth) + offset,
		})
	}

	return scores
}
