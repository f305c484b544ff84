package nodes

import (
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/jirapatw/guidebot/agent/contract"
)

// Reconcile folds the agent result into the authoritative context: fact
// upserts and clears, pending-action replacement or clearing, and the final
// strand. An override away from a strand with a live pending action is a
// detour; the untouched pending action survives it.
func Reconcile(in *GraphState) (*GraphState, error) {
	if in == nil || in.Context == nil {
		return nil, fmt.Errorf("%w: graph context is nil", contractx.ErrValidation)
	}

	uc := in.Context
	for key, value := range in.Result.FactUpdates {
		if err := uc.SetFact(key, value); err != nil {
			// Closed vocabulary: an agent proposing an unknown key is a bug
			// in the agent, not a reason to lose the turn.
			log.Warn().Err(err).Str("key", string(key)).Msg("rejected fact update")
		}
	}

	switch {
	case in.Result.ClearPending:
		uc.PendingAction = nil
	case in.Result.PendingAction != nil:
		uc.PendingAction = in.Result.PendingAction
	}

	if !in.FinalStrand.IsValid() {
		in.FinalStrand = contractx.StrandGeneral
	}
	uc.ActiveStrand = string(in.FinalStrand)
	uc.Touch(in.Now)
	return in, nil
}
