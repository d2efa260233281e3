package score

import (
	"testing"

	"github.com/ppiankov/deepscan/internal/model"
)

func TestClassify_Thresholds(t *testing.T) {
	tests := []struct {
		p    int
		want model.Verdict
	}{
		{0, model.VerdictAuthentic},
		{25, model.VerdictAuthentic},
		{26, model.VerdictSuspicious},
		{50, model.VerdictSuspicious},
		{85, model.VerdictSuspicious},
		{86, model.VerdictFake},
		{100, model.VerdictFake},
		// out of range clamps to the nearest band
		{-20, model.VerdictAuthentic},
		{250, model.VerdictFake},
	}

	for _, tt := range tests {
		if got := Classify(tt.p); got != tt.want {
			t.Errorf("Classify(%d): expected %s, got %s", tt.p, tt.want, got)
		}
	}
}

func TestClassify_AllSampledProbabilities(t *testing.T) {
	sampler := NewBimodalSampler(nil)

	for i := 0; i < 10000; i++ {
		p := sampler.Sample()
		got := Classify(p)

		var want model.Verdict
		switch {
		case p > 85:
			want = model.VerdictFake
		case p > 25:
			want = model.VerdictSuspicious
		default:
			want = model.VerdictAuthentic
		}

		if got != want {
			t.Fatalf("Classify(%d): expected %s, got %s", p, want, got)
		}
	}
}

func TestClassify_Pure(t *testing.T) {
	for p := 0; p <= 100; p++ {
		if a, b := Classify(p), Classify(p); a != b {
			t.Fatalf("Classify(%d) not stable: %s vs %s", p, a, b)
		}
	}
}

func TestClassifier_CustomThresholds(t *testing.T) {
	c := NewClassifier(Thresholds{Fake: 60, Suspicious: 40, Suspect: 60})

	if got := c.Classify(61); got != model.VerdictFake {
		t.Errorf("expected fake for 61, got %s", got)
	}
	if got := c.Classify(41); got != model.VerdictSuspicious {
		t.Errorf("expected suspicious for 41, got %s", got)
	}
	if got := c.Classify(40); got != model.VerdictAuthentic {
		t.Errorf("expected authentic for 40, got %s", got)
	}
}

func TestThresholdsFromConfig(t *testing.T) {
	got := ThresholdsFromConfig(model.DefaultConfig().Scoring)
	if got != DefaultThresholds() {
		t.Errorf("expected default config to match default thresholds, got %+v", got)
	}
}
