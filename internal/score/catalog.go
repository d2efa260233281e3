package score

import (
	"fmt"

	"github.com/ppiankov/deepscan/internal/model"
)

// FeaturesPerMedia is the fixed length of every catalog list
const FeaturesPerMedia = 4

// Catalog is the static per-media-type feature table.
// It is validated once at construction and is read-only afterwards.
type Catalog struct {
	entries map[model.MediaType][]model.FeatureDefinition
}

// NewCatalog validates entries and builds a catalog.
// Every supported media type needs exactly four definitions whose scores stay within [0,100].
func NewCatalog(entries map[model.MediaType][]model.FeatureDefinition) (*Catalog, error) {
	copied := make(map[model.MediaType][]model.FeatureDefinition, len(entries))

	for _, mt := range model.MediaTypes() {
		defs, ok := entries[mt]
		if !ok {
			return nil, &model.CatalogConfigurationError{MediaType: mt, Reason: "no feature definitions"}
		}
		if len(defs) != FeaturesPerMedia {
			return nil, &model.CatalogConfigurationError{
				MediaType: mt,
				Reason:    fmt.Sprintf("expected %d feature definitions, got %d", FeaturesPerMedia, len(defs)),
			}
		}
		for _, d := range defs {
			if err := validateDefinition(mt, d); err != nil {
				return nil, err
			}
		}
		copied[mt] = append([]model.FeatureDefinition(nil), defs...)
	}

	for mt := range entries {
		if !mt.Valid() {
			return nil, &model.CatalogConfigurationError{MediaType: mt, Reason: "unsupported media type"}
		}
	}

	return &Catalog{entries: copied}, nil
}

// MustNewCatalog is NewCatalog that panics on a configuration error
func MustNewCatalog(entries map[model.MediaType][]model.FeatureDefinition) *Catalog {
	c, err := NewCatalog(entries)
	if err != nil {
		panic(err)
	}
	return c
}

// validateDefinition enforces min(offset) >= 0 and max(base+offset) <= 100
func validateDefinition(mt model.MediaType, d model.FeatureDefinition) error {
	fail := func(reason string) error {
		return &model.CatalogConfigurationError{MediaType: mt, Feature: d.Name, Reason: reason}
	}

	if d.Name == "" {
		return fail("feature name is empty")
	}
	if d.BaseRangeWidth < 1 {
		return fail(fmt.Sprintf("base range width must be at least 1, got %d", d.BaseRangeWidth))
	}
	if d.LowOffsetWhenSuspect < 0 || d.LowOffsetWhenClean < 0 {
		return fail(fmt.Sprintf("offsets must be non-negative, got suspect=%d clean=%d",
			d.LowOffsetWhenSuspect, d.LowOffsetWhenClean))
	}
	if hi := d.MaxScore(); hi > 100 {
		return fail(fmt.Sprintf("maximum score %d exceeds 100", hi))
	}
	return nil
}

// DefinitionsFor returns the ordered definitions for mt
func (c *Catalog) DefinitionsFor(mt model.MediaType) ([]model.FeatureDefinition, error) {
	defs, ok := c.entries[mt]
	if !ok {
		return nil, &model.InvalidMediaTypeError{Value: string(mt)}
	}
	return append([]model.FeatureDefinition(nil), defs...), nil
}

var defaultCatalog = MustNewCatalog(map[model.MediaType][]model.FeatureDefinition{
	model.MediaImage: {
		{Name: "Noise Pattern Analysis", Description: "Examines the noise patterns throughout the image", BaseRangeWidth: 40, LowOffsetWhenSuspect: 20, LowOffsetWhenClean: 60},
		{Name: "Facial Consistency", Description: "Checks for unnatural facial features or inconsistencies", BaseRangeWidth: 30, LowOffsetWhenSuspect: 10, LowOffsetWhenClean: 70},
		{Name: "Blending Boundaries", Description: "Detects unnatural blending at manipulation boundaries", BaseRangeWidth: 30, LowOffsetWhenSuspect: 30, LowOffsetWhenClean: 65},
		{Name: "Compression Artifacts", Description: "Analyzes unusual compression patterns", BaseRangeWidth: 40, LowOffsetWhenSuspect: 20, LowOffsetWhenClean: 60},
	},
	model.MediaVideo: {
		{Name: "Temporal Consistency", Description: "Checks for consistency across video frames", BaseRangeWidth: 40, LowOffsetWhenSuspect: 20, LowOffsetWhenClean: 60},
		{Name: "Facial Feature Persistence", Description: "Analyzes facial features for consistent appearance", BaseRangeWidth: 30, LowOffsetWhenSuspect: 30, LowOffsetWhenClean: 70},
		{Name: "Motion Naturality", Description: "Detects unnatural or robotic movements", BaseRangeWidth: 30, LowOffsetWhenSuspect: 10, LowOffsetWhenClean: 70},
		{Name: "Lighting Consistency", Description: "Examines lighting and shadows for inconsistencies", BaseRangeWidth: 40, LowOffsetWhenSuspect: 30, LowOffsetWhenClean: 60},
	},
	model.MediaAudio: {
		{Name: "Voice Pattern Analysis", Description: "Analyzes voice patterns for synthetic indicators", BaseRangeWidth: 40, LowOffsetWhenSuspect: 20, LowOffsetWhenClean: 60},
		{Name: "Spectral Consistency", Description: "Checks for unusual spectral patterns", BaseRangeWidth: 30, LowOffsetWhenSuspect: 30, LowOffsetWhenClean: 65},
		{Name: "Breathing Pattern", Description: "Detects natural breathing rhythms in speech", BaseRangeWidth: 30, LowOffsetWhenSuspect: 10, LowOffsetWhenClean: 70},
		// clean offset capped at 60 so 39+60 stays within 100
		{Name: "Emotion Consistency", Description: "Analyzes consistency of emotional tone", BaseRangeWidth: 40, LowOffsetWhenSuspect: 30, LowOffsetWhenClean: 60},
	},
})

// DefaultCatalog returns the built-in catalog
func DefaultCatalog() *Catalog {
	return defaultCatalog
}
