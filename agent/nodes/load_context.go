package nodes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/jirapatw/guidebot/agent/contract"
	statex "github.com/jirapatw/guidebot/agent/state"
)

// LoadContext fetches the user's durable context. A missing record means a
// first-time user and gets the default context. A storage failure is
// non-fatal for reads: the turn continues on an ephemeral default, and the
// eventual reply is flagged unpersisted.
func LoadContext(
	ctx context.Context,
	in *GraphState,
	store statex.Store,
	pendingTTL time.Duration,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	uc, err := store.Load(ctx, in.Message.UserID)
	switch {
	case err == nil:
	case errors.Is(err, statex.ErrContextNotFound):
		uc = statex.NewUserContext(in.Message.UserID, in.Now)
	default:
		log.Error().Err(err).Str("user_id", in.Message.UserID).
			Msg("context load failed, continuing on ephemeral default")
		uc = statex.NewUserContext(in.Message.UserID, in.Now)
		in.Ephemeral = true
	}

	if uc.SweepPending(in.Now, pendingTTL) {
		log.Debug().Str("user_id", uc.UserID).Msg("dropped stale pending action")
	}

	in.Context = uc
	return in, nil
}
