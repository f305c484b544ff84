package agents

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/jirapatw/guidebot/agent/contract"
	statex "github.com/jirapatw/guidebot/agent/state"
)

const culturalDegradedReply = "Cultural tips are unavailable right now, please try again shortly."

// Cultural handles the cultural strand: structured do's and don'ts for a
// location or topic. Stateless beyond reading the preferred location fact.
type Cultural struct {
	model    contractx.LanguageModel
	preamble string
}

func NewCultural(model contractx.LanguageModel, preamble string) *Cultural {
	return &Cultural{model: model, preamble: preamble}
}

var _ contractx.Agent = (*Cultural)(nil)

func (a *Cultural) Handle(ctx context.Context, req contractx.AgentRequest) (contractx.AgentResult, error) {
	var sb strings.Builder
	sb.WriteString(a.preamble)
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(req.Text)
	if loc := req.Context.Fact(statex.FactPreferredLocation); loc != "" {
		sb.WriteString("\nLocation context: ")
		sb.WriteString(loc)
	}

	reply, err := a.model.Generate(ctx, sb.String())
	if err != nil || strings.TrimSpace(reply) == "" {
		if err != nil {
			log.Warn().Err(err).Msg("cultural: generate failed, degrading")
		}
		return contractx.AgentResult{ReplyText: culturalDegradedReply}, nil
	}

	return contractx.AgentResult{ReplyText: reply}, nil
}
