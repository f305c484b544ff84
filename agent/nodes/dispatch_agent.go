package nodes

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/jirapatw/guidebot/agent/contract"
)

const dispatchDegradedReply = "Sorry, something went wrong on my side. Please try that again."

// DispatchAgent runs the agent bound to the decided strand. An agent may
// request a strand override; the same message is then re-dispatched to the
// new strand's agent at most once. A second override is ignored and the
// second agent's result stands. Agent errors degrade, never abort.
func DispatchAgent(
	ctx context.Context,
	in *GraphState,
	registry contractx.Registry,
) (*GraphState, error) {
	if in == nil || in.Context == nil {
		return nil, fmt.Errorf("%w: graph context is nil", contractx.ErrValidation)
	}

	strand := in.Decision.Strand
	result := invoke(ctx, registry, strand, in)

	if override := result.StrandOverride; override.IsValid() && override != strand {
		log.Debug().
			Str("from", string(strand)).
			Str("to", string(override)).
			Msg("strand override, re-dispatching once")
		strand = override
		result = invoke(ctx, registry, strand, in)
		// Single-redirect cap: whatever the second agent wants, it gets kept.
		result.StrandOverride = ""
	}

	in.FinalStrand = strand
	in.Result = result
	return in, nil
}

func invoke(ctx context.Context, registry contractx.Registry, strand contractx.Strand, in *GraphState) contractx.AgentResult {
	agent := registry.AgentFor(strand)
	result, err := agent.Handle(ctx, contractx.AgentRequest{
		Message: in.Message,
		Text:    in.Text,
		Context: in.Context.Clone(),
	})
	if err != nil {
		log.Error().Err(err).Str("strand", string(strand)).Msg("agent failed, degrading reply")
		return contractx.AgentResult{ReplyText: dispatchDegradedReply}
	}
	return result
}
