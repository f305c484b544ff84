package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/jirapatw/guidebot/agent/contract"
	statex "github.com/jirapatw/guidebot/agent/state"
)

const registrationDegradedReply = "I couldn't process your registration just now. Please send your details again in a moment."

// Registration handles the registration strand: structured extraction of a
// guide profile from free text. Missing required fields become a clarifying
// question and a pending action holding whatever was already collected, so
// the applicant only ever has to supply what's left.
type Registration struct {
	model    contractx.LanguageModel
	guides   contractx.GuideWriter
	preamble string
	now      func() time.Time
}

func NewRegistration(model contractx.LanguageModel, guides contractx.GuideWriter, preamble string, now func() time.Time) *Registration {
	if now == nil {
		now = time.Now
	}
	return &Registration{model: model, guides: guides, preamble: preamble, now: now}
}

var _ contractx.Agent = (*Registration)(nil)

func (a *Registration) Handle(ctx context.Context, req contractx.AgentRequest) (contractx.AgentResult, error) {
	var extracted contractx.GuideProfile
	if err := a.model.Extract(ctx, req.Text, a.preamble, &extracted); err != nil {
		log.Warn().Err(err).Msg("registration: extraction failed, degrading")
		return contractx.AgentResult{ReplyText: registrationDegradedReply}, nil
	}

	profile := mergeProfile(req.Context.PendingAction, extracted)

	if missing := profile.MissingFields(); len(missing) > 0 {
		// ValidationError semantics: ask, don't fail; the flow does not
		// advance past awaiting_fields until everything is present.
		pending := pendingFromProfile(profile, a.now())
		return contractx.AgentResult{
			ReplyText:     missingFieldsReply(missing),
			PendingAction: pending,
		}, nil
	}

	id, err := a.guides.Create(ctx, profile)
	if err != nil {
		log.Warn().Err(err).Str("name", profile.Name).Msg("registration: guide write failed, degrading")
		return contractx.AgentResult{
			ReplyText:     registrationDegradedReply,
			PendingAction: pendingFromProfile(profile, a.now()),
		}, nil
	}

	return contractx.AgentResult{
		ReplyText: fmt.Sprintf(
			"Welcome aboard, %s! Your guide profile for %s is registered (ref %s). We'll be in touch about your first listing.",
			profile.Name, profile.Location, id,
		),
		ClearPending: true,
		Terminal:     true,
	}, nil
}

// mergeProfile overlays freshly extracted fields onto whatever a previous
// turn already collected. New non-empty values win.
func mergeProfile(pending *statex.PendingAction, extracted contractx.GuideProfile) contractx.GuideProfile {
	profile := extracted
	if pending == nil || pending.Kind != statex.PendingRegistration {
		return profile
	}

	if profile.Name == "" {
		profile.Name = pending.Get("name")
	}
	if profile.Location == "" {
		profile.Location = pending.Get("location")
	}
	if profile.Specialty == "" {
		profile.Specialty = pending.Get("specialty")
	}
	if profile.Phone == "" {
		profile.Phone = pending.Get("phone")
	}
	if profile.Bio == "" {
		profile.Bio = pending.Get("bio")
	}
	if len(profile.Languages) == 0 {
		if langs := pending.Get("languages"); langs != "" {
			profile.Languages = strings.Split(langs, ",")
		}
	}
	return profile
}

func pendingFromProfile(profile contractx.GuideProfile, now time.Time) *statex.PendingAction {
	pending := statex.NewPendingAction(statex.PendingRegistration, statex.StepAwaitingFields, now)
	pending.Set("name", profile.Name)
	pending.Set("location", profile.Location)
	pending.Set("specialty", profile.Specialty)
	pending.Set("phone", profile.Phone)
	pending.Set("bio", profile.Bio)
	pending.Set("languages", strings.Join(profile.Languages, ","))
	return pending
}

func missingFieldsReply(missing []string) string {
	if len(missing) == 1 {
		return fmt.Sprintf("Almost there — I still need your %s to finish the registration.", missing[0])
	}
	return fmt.Sprintf(
		"To register you as a guide I still need: %s. Could you send those?",
		strings.Join(missing, ", "),
	)
}
