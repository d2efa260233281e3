package model

import "time"

// FeatureDefinition is one static catalog entry.
// A score is drawn from [0, BaseRangeWidth) and shifted by the offset for the current branch.
type FeatureDefinition struct {
	Name                 string `json:"name" yaml:"name"`
	Description          string `json:"description" yaml:"description"`
	BaseRangeWidth       int    `json:"base_range_width" yaml:"base_range_width"`
	LowOffsetWhenSuspect int    `json:"low_offset_when_suspect" yaml:"low_offset_when_suspect"`
	LowOffsetWhenClean   int    `json:"low_offset_when_clean" yaml:"low_offset_when_clean"`
}

// MaxScore is the largest score this definition can produce under either branch
func (d FeatureDefinition) MaxScore() int {
	offset := d.LowOffsetWhenSuspect
	if d.LowOffsetWhenClean > offset {
		offset = d.LowOffsetWhenClean
	}
	return d.BaseRangeWidth - 1 + offset
}

// FeatureScore is a materialized feature for one analysis run
type FeatureScore struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Score       int    `json:"score"` // 0-100, higher looks cleaner
}

// Band buckets the score for display
func (f FeatureScore) Band() ScoreBand {
	switch {
	case f.Score < 40:
		return BandLow
	case f.Score < 70:
		return BandMedium
	default:
		return BandHigh
	}
}

// ScoreBand is a coarse display bucket for feature scores
type ScoreBand string

const (
	BandLow    ScoreBand = "low"
	BandMedium ScoreBand = "medium"
	BandHigh   ScoreBand = "high"
)

// Verdict is the categorical summary of a report
type Verdict string

const (
	VerdictAuthentic  Verdict = "authentic"
	VerdictSuspicious Verdict = "suspicious"
	VerdictFake       Verdict = "fake"
)

// Label returns the human-readable verdict text
func (v Verdict) Label() string {
	switch v {
	case VerdictAuthentic:
		return "Likely Authentic"
	case VerdictSuspicious:
		return "Suspicious"
	case VerdictFake:
		return "Likely Fake"
	default:
		return "Unknown"
	}
}

// AnalysisReport is the complete result of one analysis.
// It is built once and never mutated; OverallScore + FakeProbability is always 100.
type AnalysisReport struct {
	ID              string         `json:"id"`
	MediaType       MediaType      `json:"media_type"`
	Media           MediaHandle    `json:"media"`
	OverallScore    int            `json:"overall_score"`    // 0-100, 100 - FakeProbability
	FakeProbability int            `json:"fake_probability"` // 0-100
	Features        []FeatureScore `json:"features"`         // Catalog order, always 4
	Conclusion      string         `json:"conclusion"`
	Verdict         Verdict        `json:"verdict"`
	CreatedAt       time.Time      `json:"created_at"`
	ProcessingTime  time.Duration  `json:"processing_time_ns"` // Simulated latency actually waited
}

// APIResponse is the wire shape served by the HTTP front-end
type APIResponse struct {
	ID     string     `json:"id,omitempty"`
	Status string     `json:"status"` // success, error
	Result *APIResult `json:"result,omitempty"`
	Error  *APIError  `json:"error,omitempty"`
}

// APIResult mirrors AnalysisReport with the documented field names
type APIResult struct {
	IsFakeProbability float64        `json:"is_fake_probability"` // FakeProbability / 100
	AuthenticityScore int            `json:"authenticity_score"`
	DetectionFeatures []FeatureScore `json:"detection_features"`
	ProcessingTime    float64        `json:"processing_time"` // Seconds
	Verdict           Verdict        `json:"verdict"`
	Conclusion        string         `json:"conclusion"`
}

// APIError is returned for rejected requests
type APIError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// NewAPIResponse maps a report 1:1 onto the wire shape
func NewAPIResponse(r *AnalysisReport) APIResponse {
	features := make([]FeatureScore, len(r.Features))
	copy(features, r.Features)

	return APIResponse{
		ID:     r.ID,
		Status: "success",
		Result: &APIResult{
			IsFakeProbability: float64(r.FakeProbability) / 100,
			AuthenticityScore: r.OverallScore,
			DetectionFeatures: features,
			ProcessingTime:    r.ProcessingTime.Seconds(),
			Verdict:           r.Verdict,
			Conclusion:        r.Conclusion,
		},
	}
}

// NewAPIError builds an error response
func NewAPIError(kind, message string) APIResponse {
	return APIResponse{
		Status: "error",
		Error:  &APIError{Kind: kind, Message: message},
	}
}
