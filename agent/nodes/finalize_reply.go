package nodes

import (
	"fmt"
	"strings"

	contractx "github.com/jirapatw/guidebot/agent/contract"
)

const emptyReplyFallback = "I'm not sure how to help with that — could you rephrase?"

// FinalizeReply shapes the turn's single outbound reply. Every turn replies
// exactly once, so an agent that produced no text still yields a fallback.
func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	text := strings.TrimSpace(in.Result.ReplyText)
	if text == "" {
		text = emptyReplyFallback
	}

	return GraphOutput{
		Reply: contractx.OutboundReply{
			Text:      text,
			Strand:    in.FinalStrand,
			Persisted: in.Persisted,
		},
	}, nil
}
