package nodes

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/jirapatw/guidebot/agent/contract"
)

// ClassifyStrand assigns the turn to a strand. Classification never aborts
// a turn: the classifier itself degrades to the general strand.
func ClassifyStrand(
	ctx context.Context,
	in *GraphState,
	classifier contractx.Classifier,
) (*GraphState, error) {
	if in == nil || in.Context == nil {
		return nil, fmt.Errorf("%w: graph context is nil", contractx.ErrValidation)
	}

	in.Decision = classifier.Classify(ctx, in.Text, contractx.ClassifierSnapshot{
		ActiveStrand: contractx.Strand(in.Context.ActiveStrand),
		HasPending:   in.Context.HasPending(),
	})

	log.Debug().
		Str("user_id", in.Context.UserID).
		Str("strand", string(in.Decision.Strand)).
		Float64("confidence", in.Decision.Confidence).
		Bool("switched", in.Decision.Switched).
		Msg("strand classified")
	return in, nil
}
