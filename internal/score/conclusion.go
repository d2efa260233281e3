package score

import (
	"github.com/ppiankov/deepscan/internal/model"
)

// Narratives holds the two canned conclusions for one media type
type Narratives struct {
	Authentic   string
	Manipulated string
}

var defaultNarratives = map[model.MediaType]Narratives{
	model.MediaImage: {
		Authentic:   "This image appears to be authentic with consistent noise patterns and natural facial features. No significant manipulation detected.",
		Manipulated: "This image shows signs of manipulation, particularly in the facial region. Inconsistent noise patterns and unusual blending boundaries suggest possible deepfake techniques.",
	},
	model.MediaVideo: {
		Authentic:   "This video shows natural movement patterns and consistent facial features across frames. No significant manipulation detected.",
		Manipulated: "This video displays temporal inconsistencies and unnatural facial movements across frames. The LSTM model identified patterns consistent with deepfake generation.",
	},
	model.MediaAudio: {
		Authentic:   "This audio sample demonstrates natural voice patterns with appropriate breathing rhythms and consistent emotional tone. No significant manipulation detected.",
		Manipulated: "This audio sample contains unnatural voice patterns and lacks consistent breathing characteristics. The LSTM model detected synthetic speech markers.",
	},
}

// Templater selects the conclusion text for a report
type Templater struct {
	narratives map[model.MediaType]Narratives
	thresholds Thresholds
}

// NewTemplater creates a templater over the built-in narratives
func NewTemplater(thresholds Thresholds) *Templater {
	return &Templater{narratives: defaultNarratives, thresholds: thresholds}
}

// Describe returns the manipulated narrative when p is above the suspect threshold,
// the authentic narrative otherwise. The probability is not interpolated.
func (t *Templater) Describe(mt model.MediaType, fakeProbability int) (string, error) {
	n, ok := t.narratives[mt]
	if !ok {
		return "", &model.InvalidMediaTypeError{Value: string(mt)}
	}
	if t.thresholds.IsSuspect(fakeProbability) {
		return n.Manipulated, nil
	}
	return n.Authentic, nil
}

// NarrativesFor exposes the canned texts for mt
func NarrativesFor(mt model.MediaType) (Narratives, bool) {
	n, ok := defaultNarratives[mt]
	return n, ok
}
