package score

import (
	"github.com/ppiankov/deepscan/internal/model"
)

// Thresholds are the probability cut points used by the engine.
// Verdict and narrative thresholds are deliberately independent: with the defaults a
// probability of 30 is Suspicious by verdict yet narrated as authentic.
type Thresholds struct {
	Fake       int // p > Fake is Fake
	Suspicious int // p > Suspicious is Suspicious
	Suspect    int // p > Suspect skews features low and selects the manipulated narrative
}

// DefaultThresholds returns 85/25 for the verdict and 60 for features and narrative
func DefaultThresholds() Thresholds {
	return Thresholds{Fake: 85, Suspicious: 25, Suspect: 60}
}

// ThresholdsFromConfig converts the scoring section of the config
func ThresholdsFromConfig(cfg model.ScoringConfig) Thresholds {
	return Thresholds{
		Fake:       cfg.FakeThreshold,
		Suspicious: cfg.SuspiciousThreshold,
		Suspect:    cfg.SuspectThreshold,
	}
}

// IsSuspect reports whether p falls in the manipulated branch
func (t Thresholds) IsSuspect(p int) bool {
	return p > t.Suspect
}

// Classifier maps a fake-probability to a verdict
type Classifier struct {
	thresholds Thresholds
}

// NewClassifier creates a classifier with the given thresholds
func NewClassifier(thresholds Thresholds) *Classifier {
	return &Classifier{thresholds: thresholds}
}

// Classify applies the thresholds in order, first match wins.
// Out-of-range input is clamped to [0,100] rather than rejected.
func (c *Classifier) Classify(fakeProbability int) model.Verdict {
	p := clamp(fakeProbability)

	switch {
	case p > c.thresholds.Fake:
		return model.VerdictFake
	case p > c.thresholds.Suspicious:
		return model.VerdictSuspicious
	default:
		return model.VerdictAuthentic
	}
}

// Classify uses the default thresholds
func Classify(fakeProbability int) model.Verdict {
	return defaultClassifier.Classify(fakeProbability)
}

var defaultClassifier = NewClassifier(DefaultThresholds())

func clamp(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
