package agents

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/jirapatw/guidebot/agent/contract"
	statex "github.com/jirapatw/guidebot/agent/state"
)

// defaultRedirectConfidence is the bar a detected sub-intent must clear
// before the tourist agent hands the turn to another strand.
const defaultRedirectConfidence = 0.60

const touristDegradedReply = "Sorry, I'm having trouble answering right now. Please try again in a moment."

// Tourist handles the general strand and is the entry point for new users.
// It probes free text for booking, cultural, guide-search, or registration
// intent and redirects via StrandOverride; everything else gets a generated
// answer.
type Tourist struct {
	model              contractx.LanguageModel
	preamble           string
	RedirectConfidence float64
}

func NewTourist(model contractx.LanguageModel, preamble string) *Tourist {
	return &Tourist{
		model:              model,
		preamble:           preamble,
		RedirectConfidence: defaultRedirectConfidence,
	}
}

var _ contractx.Agent = (*Tourist)(nil)

func (a *Tourist) Handle(ctx context.Context, req contractx.AgentRequest) (contractx.AgentResult, error) {
	if target, ok := a.detectRedirect(ctx, req.Text); ok {
		return contractx.AgentResult{StrandOverride: target}, nil
	}

	prompt := a.preamble + "\n\nUser message: " + req.Text
	if hint := req.Context.Fact(statex.FactLanguageHint); hint != "" {
		prompt += "\nReply in: " + hint
	}
	if loc := req.Context.Fact(statex.FactPreferredLocation); loc != "" {
		prompt += "\nThe user has shown interest in: " + loc
	}

	reply, err := a.model.Generate(ctx, prompt)
	if err != nil || strings.TrimSpace(reply) == "" {
		if err != nil {
			log.Warn().Err(err).Msg("tourist: generate failed, degrading")
		}
		return contractx.AgentResult{ReplyText: touristDegradedReply}, nil
	}

	return contractx.AgentResult{ReplyText: reply}, nil
}

// detectRedirect probes for a specialist intent hiding in general chat.
// Classification failure just means no redirect.
func (a *Tourist) detectRedirect(ctx context.Context, text string) (contractx.Strand, bool) {
	labels := []string{
		string(contractx.StrandBooking),
		string(contractx.StrandCultural),
		string(contractx.StrandGuideSearch),
		string(contractx.StrandRegistration),
		string(contractx.StrandGeneral),
	}
	ranked, err := a.model.Classify(ctx, text, labels)
	if err != nil || len(ranked) == 0 {
		return "", false
	}

	top := ranked[0]
	target := contractx.Strand(top.Label)
	if target == contractx.StrandGeneral || !target.IsValid() {
		return "", false
	}
	if top.Confidence < a.RedirectConfidence {
		return "", false
	}
	log.Debug().
		Str("target", string(target)).
		Float64("confidence", top.Confidence).
		Msg("tourist: redirecting")
	return target, true
}
