package nodes

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/jirapatw/guidebot/agent/contract"
	statex "github.com/jirapatw/guidebot/agent/state"
)

// PersistContext writes the reconciled context before the reply leaves the
// engine. A version conflict means another turn for the same user committed
// concurrently; the losing turn reloads and re-applies its outcome once.
// StorageUnavailable on write is an operational alert; the reply still goes
// out, flagged unpersisted for monitoring.
func PersistContext(
	ctx context.Context,
	in *GraphState,
	store statex.Store,
) (*GraphState, error) {
	if in == nil || in.Context == nil {
		return nil, fmt.Errorf("%w: graph context is nil", contractx.ErrValidation)
	}

	if err := in.Context.Validate(); err != nil {
		return nil, fmt.Errorf("context validation failed: %w", err)
	}

	err := store.Save(ctx, in.Context)
	if errors.Is(err, statex.ErrVersionConflict) {
		err = retryWithFreshContext(ctx, in, store)
	}

	switch {
	case err == nil:
		in.Persisted = true
	case errors.Is(err, statex.ErrStoreUnavailable):
		log.Error().Err(err).Str("user_id", in.Context.UserID).
			Msg("context write failed, replying unpersisted (data loss risk)")
	default:
		log.Error().Err(err).Str("user_id", in.Context.UserID).
			Msg("context write failed, replying unpersisted")
	}
	return in, nil
}

// retryWithFreshContext re-applies this turn's outcome on top of the
// concurrently committed context and retries the save exactly once.
func retryWithFreshContext(ctx context.Context, in *GraphState, store statex.Store) error {
	fresh, err := store.Load(ctx, in.Message.UserID)
	if err != nil {
		return err
	}

	for key, value := range in.Result.FactUpdates {
		if err := fresh.SetFact(key, value); err != nil {
			log.Warn().Err(err).Str("key", string(key)).Msg("rejected fact update on retry")
		}
	}
	switch {
	case in.Result.ClearPending:
		fresh.PendingAction = nil
	case in.Result.PendingAction != nil:
		fresh.PendingAction = in.Result.PendingAction
	}
	fresh.ActiveStrand = string(in.FinalStrand)
	fresh.Touch(in.Now)

	if err := store.Save(ctx, fresh); err != nil {
		return err
	}
	in.Context = fresh
	return nil
}
