// Package classifier decides which conversation strand an inbound message
// belongs to. It never fails: a low-confidence verdict falls back to the
// general strand, and a capability error holds the active strand when a
// pending action is in flight, general otherwise.
package classifier

import (
	"context"

	"github.com/rs/zerolog/log"

	contractx "github.com/jirapatw/guidebot/agent/contract"
)

// Config holds the tunable thresholds. Both are deliberately configuration,
// not constants: the right values depend on the model behind Classify.
type Config struct {
	// MinConfidence is the floor below which (inclusive) a verdict is
	// discarded in favor of the general strand.
	MinConfidence float64 `envconfig:"MIN_CONFIDENCE" split_words:"true" default:"0.55"`
	// SwitchConfidence is the bar a new intent must clear to pull the user
	// out of a strand with a mid-flight pending action.
	SwitchConfidence float64 `envconfig:"SWITCH_CONFIDENCE" split_words:"true" default:"0.80"`
}

type StrandClassifier struct {
	model contractx.LanguageModel
	cfg   Config
}

func New(model contractx.LanguageModel, cfg Config) *StrandClassifier {
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = 0.55
	}
	if cfg.SwitchConfidence <= 0 {
		cfg.SwitchConfidence = 0.80
	}
	return &StrandClassifier{model: model, cfg: cfg}
}

var _ contractx.Classifier = (*StrandClassifier)(nil)

// Classify assigns text to a strand given the user's current snapshot.
//
// With a pending action mid-flight the current strand wins unless the top
// candidate is a different strand whose confidence clears SwitchConfidence.
// Without one, the top candidate wins when it clears MinConfidence; a tie
// between the top candidate and the current strand keeps the current strand.
func (c *StrandClassifier) Classify(ctx context.Context, text string, snapshot contractx.ClassifierSnapshot) contractx.StrandDecision {
	active := snapshot.ActiveStrand
	if !active.IsValid() {
		active = contractx.StrandGeneral
	}

	ranked, err := c.model.Classify(ctx, text, strandLabels())
	if err != nil || len(ranked) == 0 {
		if err != nil {
			log.Debug().Err(err).Msg("classifier: capability failed")
		}
		return c.fallback(snapshot, active)
	}

	top := ranked[0]
	candidate := contractx.Strand(top.Label)
	if !candidate.IsValid() {
		return c.fallback(snapshot, active)
	}

	if snapshot.HasPending {
		if candidate != active && top.Confidence >= c.cfg.SwitchConfidence {
			return decision(candidate, top.Confidence, active)
		}
		return decision(active, top.Confidence, active)
	}

	if top.Confidence <= c.cfg.MinConfidence {
		return decision(contractx.StrandGeneral, top.Confidence, active)
	}

	// Stability over churn: an exact tie with the current strand keeps it.
	if candidate != active && runnerUpIs(ranked, active, top.Confidence) {
		return decision(active, top.Confidence, active)
	}

	return decision(candidate, top.Confidence, active)
}

// fallback is the verdict when no usable ranking came back. A mid-flight
// pending action holds its strand through a classifier outage so the user is
// not dropped out of a half-finished flow; everything else lands on general.
func (c *StrandClassifier) fallback(snapshot contractx.ClassifierSnapshot, active contractx.Strand) contractx.StrandDecision {
	if snapshot.HasPending {
		return decision(active, 0, active)
	}
	return decision(contractx.StrandGeneral, 0, active)
}

func runnerUpIs(ranked []contractx.Classification, active contractx.Strand, topConfidence float64) bool {
	for _, c := range ranked[1:] {
		if contractx.Strand(c.Label) == active && c.Confidence == topConfidence {
			return true
		}
	}
	return false
}

func decision(strand contractx.Strand, confidence float64, active contractx.Strand) contractx.StrandDecision {
	return contractx.StrandDecision{
		Strand:     strand,
		Confidence: confidence,
		Switched:   strand != active,
	}
}

func strandLabels() []string {
	strands := contractx.Strands()
	labels := make([]string, 0, len(strands))
	for _, s := range strands {
		labels = append(labels, string(s))
	}
	return labels
}
