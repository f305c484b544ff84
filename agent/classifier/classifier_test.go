package classifier

import (
	"context"
	"errors"
	"testing"

	contractx "github.com/jirapatw/guidebot/agent/contract"
)

type fakeModel struct {
	ranked []contractx.Classification
	err    error
	calls  int
}

func (f *fakeModel) Classify(ctx context.Context, text string, candidates []string) ([]contractx.Classification, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]contractx.Classification(nil), f.ranked...), nil
}

func (f *fakeModel) Extract(ctx context.Context, text, instruction string, out any) error {
	return errors.New("not implemented")
}

func (f *fakeModel) Generate(ctx context.Context, prompt string) (string, error) {
	return "", errors.New("not implemented")
}

func classify(t *testing.T, model contractx.LanguageModel, snapshot contractx.ClassifierSnapshot) contractx.StrandDecision {
	t.Helper()
	c := New(model, Config{MinConfidence: 0.55, SwitchConfidence: 0.80})
	return c.Classify(context.Background(), "any text", snapshot)
}

func TestClassifyConfidentVerdict(t *testing.T) {
	t.Parallel()

	model := &fakeModel{ranked: []contractx.Classification{
		{Label: "booking", Confidence: 0.91},
		{Label: "general", Confidence: 0.05},
	}}

	got := classify(t, model, contractx.ClassifierSnapshot{ActiveStrand: contractx.StrandGeneral})
	if got.Strand != contractx.StrandBooking {
		t.Fatalf("Strand = %q, want booking", got.Strand)
	}
	if !got.Switched {
		t.Fatal("expected a switch away from general")
	}
}

func TestClassifyLowConfidenceFallsBackToGeneral(t *testing.T) {
	t.Parallel()

	model := &fakeModel{ranked: []contractx.Classification{
		{Label: "cultural", Confidence: 0.30},
	}}

	got := classify(t, model, contractx.ClassifierSnapshot{ActiveStrand: contractx.StrandCultural})
	if got.Strand != contractx.StrandGeneral {
		t.Fatalf("Strand = %q, want general", got.Strand)
	}
}

func TestClassifyExactThresholdIsLowConfidence(t *testing.T) {
	t.Parallel()

	model := &fakeModel{ranked: []contractx.Classification{
		{Label: "guide_search", Confidence: 0.55},
	}}

	got := classify(t, model, contractx.ClassifierSnapshot{ActiveStrand: contractx.StrandGeneral})
	if got.Strand != contractx.StrandGeneral {
		t.Fatalf("Strand = %q, want general at the boundary", got.Strand)
	}
}

func TestClassifyCapabilityFailureDefaultsToGeneral(t *testing.T) {
	t.Parallel()

	model := &fakeModel{err: errors.New("model offline")}

	got := classify(t, model, contractx.ClassifierSnapshot{ActiveStrand: contractx.StrandBooking})
	if got.Strand != contractx.StrandGeneral {
		t.Fatalf("Strand = %q, want general", got.Strand)
	}
	if got.Confidence != 0 {
		t.Fatalf("Confidence = %v, want 0", got.Confidence)
	}
}

func TestClassifyCapabilityFailureHoldsPendingStrand(t *testing.T) {
	t.Parallel()

	model := &fakeModel{err: errors.New("model offline")}

	got := classify(t, model, contractx.ClassifierSnapshot{
		ActiveStrand: contractx.StrandBooking,
		HasPending:   true,
	})
	if got.Strand != contractx.StrandBooking {
		t.Fatalf("Strand = %q, want booking held through the outage", got.Strand)
	}
	if got.Switched {
		t.Fatal("holding the strand is not a switch")
	}
}

func TestClassifyUnknownLabelDefaultsToGeneral(t *testing.T) {
	t.Parallel()

	model := &fakeModel{ranked: []contractx.Classification{
		{Label: "smalltalk", Confidence: 0.99},
	}}

	got := classify(t, model, contractx.ClassifierSnapshot{ActiveStrand: contractx.StrandGeneral})
	if got.Strand != contractx.StrandGeneral {
		t.Fatalf("Strand = %q, want general", got.Strand)
	}
}

func TestClassifyPendingBiasHoldsStrand(t *testing.T) {
	t.Parallel()

	model := &fakeModel{ranked: []contractx.Classification{
		{Label: "cultural", Confidence: 0.70},
	}}

	got := classify(t, model, contractx.ClassifierSnapshot{
		ActiveStrand: contractx.StrandBooking,
		HasPending:   true,
	})
	if got.Strand != contractx.StrandBooking {
		t.Fatalf("Strand = %q, want booking held by pending bias", got.Strand)
	}
	if got.Switched {
		t.Fatal("holding the strand is not a switch")
	}
}

func TestClassifyPendingBiasYieldsToStrongIntent(t *testing.T) {
	t.Parallel()

	model := &fakeModel{ranked: []contractx.Classification{
		{Label: "cultural", Confidence: 0.85},
	}}

	got := classify(t, model, contractx.ClassifierSnapshot{
		ActiveStrand: contractx.StrandBooking,
		HasPending:   true,
	})
	if got.Strand != contractx.StrandCultural {
		t.Fatalf("Strand = %q, want cultural", got.Strand)
	}
	if !got.Switched {
		t.Fatal("expected a switch")
	}
}

func TestClassifyTieKeepsActiveStrand(t *testing.T) {
	t.Parallel()

	model := &fakeModel{ranked: []contractx.Classification{
		{Label: "guide_search", Confidence: 0.70},
		{Label: "cultural", Confidence: 0.70},
	}}

	got := classify(t, model, contractx.ClassifierSnapshot{ActiveStrand: contractx.StrandCultural})
	if got.Strand != contractx.StrandCultural {
		t.Fatalf("Strand = %q, want the tied active strand", got.Strand)
	}
}

func TestClassifyInvalidActiveStrandTreatedAsGeneral(t *testing.T) {
	t.Parallel()

	model := &fakeModel{ranked: []contractx.Classification{
		{Label: "general", Confidence: 0.90},
	}}

	got := classify(t, model, contractx.ClassifierSnapshot{ActiveStrand: contractx.Strand("garbage")})
	if got.Strand != contractx.StrandGeneral {
		t.Fatalf("Strand = %q, want general", got.Strand)
	}
	if got.Switched {
		t.Fatal("general over a defaulted strand is not a switch")
	}
}
