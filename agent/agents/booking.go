package agents

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/jirapatw/guidebot/agent/contract"
	statex "github.com/jirapatw/guidebot/agent/state"
)

const bookingDegradedReply = "I couldn't reach the booking system just now. Your details are saved — say \"confirm\" again in a moment."

// Booking drives the multi-step confirmation flow
// (select guide, select date, confirm price) on the pendingAction machine.
// Only the final confirmation touches the booking-write gateway.
type Booking struct {
	model    contractx.LanguageModel
	bookings contractx.BookingWriter
	now      func() time.Time
}

func NewBooking(model contractx.LanguageModel, bookings contractx.BookingWriter, now func() time.Time) *Booking {
	if now == nil {
		now = time.Now
	}
	return &Booking{model: model, bookings: bookings, now: now}
}

var _ contractx.Agent = (*Booking)(nil)

func (a *Booking) Handle(ctx context.Context, req contractx.AgentRequest) (contractx.AgentResult, error) {
	pending := req.Context.PendingAction
	if pending == nil || pending.Kind != statex.PendingBooking {
		return a.start(req), nil
	}

	switch pending.Step {
	case statex.StepSelectingGuide:
		return a.selectGuide(req, pending), nil
	case statex.StepAwaitingDate:
		return a.selectDate(req, pending), nil
	case statex.StepAwaitingConfirmation:
		return a.confirm(ctx, req, pending), nil
	default:
		log.Warn().Str("step", pending.Step).Msg("booking: unknown step, restarting flow")
		return a.start(req), nil
	}
}

// start opens a fresh flow. A confirmation replayed after the previous flow
// completed must not create a second booking: with no pending action and a
// recorded booking, an affirmation is answered with the existing reference.
func (a *Booking) start(req contractx.AgentRequest) contractx.AgentResult {
	if isAffirmation(req.Text) {
		if ref := req.Context.Fact(statex.FactLastBookingID); ref != "" {
			return contractx.AgentResult{
				ReplyText: fmt.Sprintf("You're already booked — your confirmation is %s. Anything else?", ref),
			}
		}
		return contractx.AgentResult{
			ReplyText: "There's nothing to confirm yet. Which guide would you like to book?",
		}
	}

	results := decodeSearchResults(req.Context.Fact(statex.FactLastSearchResults))
	pending := statex.NewPendingAction(statex.PendingBooking, statex.StepSelectingGuide, a.now())

	if picked, ok := matchGuide(req.Text, results); ok {
		return a.advanceToDate(pending, picked)
	}

	reply := "Which guide would you like to book?"
	if len(results) > 0 {
		reply = "Which of the guides I found would you like to book? Reply with a name or number."
	}
	return contractx.AgentResult{ReplyText: reply, PendingAction: pending}
}

func (a *Booking) selectGuide(req contractx.AgentRequest, pending *statex.PendingAction) contractx.AgentResult {
	if isNegation(req.Text) {
		return cancelled()
	}

	results := decodeSearchResults(req.Context.Fact(statex.FactLastSearchResults))
	picked, ok := matchGuide(req.Text, results)
	if !ok {
		return contractx.AgentResult{
			ReplyText:     "I didn't catch which guide you meant. Reply with the guide's name or their number in the list.",
			PendingAction: pending,
		}
	}
	return a.advanceToDate(pending, picked)
}

func (a *Booking) advanceToDate(pending *statex.PendingAction, picked searchResult) contractx.AgentResult {
	pending.Set("guide_id", picked.ID)
	pending.Set("guide_name", picked.Name)
	pending.Set("daily_rate", strconv.FormatFloat(picked.DailyRate, 'f', 2, 64))
	if err := pending.Advance(statex.StepAwaitingDate, a.now()); err != nil {
		// Fresh flows always sit on selecting_guide, so this cannot fire.
		log.Error().Err(err).Msg("booking: advance to date failed")
	}
	return contractx.AgentResult{
		ReplyText:     fmt.Sprintf("Great choice — %s. What date would you like? (YYYY-MM-DD)", picked.Name),
		PendingAction: pending,
		FactUpdates: map[statex.FactKey]string{
			statex.FactPendingGuideID: picked.ID,
		},
	}
}

func (a *Booking) selectDate(req contractx.AgentRequest, pending *statex.PendingAction) contractx.AgentResult {
	if isNegation(req.Text) {
		return cancelled()
	}

	date := findISODate(req.Text)
	if date == "" {
		return contractx.AgentResult{
			ReplyText:     "What date works for you? Please use YYYY-MM-DD, e.g. 2025-01-15.",
			PendingAction: pending,
		}
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return contractx.AgentResult{
			ReplyText:     fmt.Sprintf("%s doesn't look like a real date. Please use YYYY-MM-DD.", date),
			PendingAction: pending,
		}
	}

	pending.Set("date", date)
	if err := pending.Advance(statex.StepAwaitingConfirmation, a.now()); err != nil {
		log.Error().Err(err).Msg("booking: advance to confirmation failed")
	}

	rate, _ := strconv.ParseFloat(pending.Get("daily_rate"), 64)
	return contractx.AgentResult{
		ReplyText: fmt.Sprintf(
			"Booking %s on %s for %.0f THB. Shall I confirm? (yes/no)",
			pending.Get("guide_name"), date, rate,
		),
		PendingAction: pending,
	}
}

func (a *Booking) confirm(ctx context.Context, req contractx.AgentRequest, pending *statex.PendingAction) contractx.AgentResult {
	if isNegation(req.Text) {
		return cancelled()
	}
	if !isAffirmation(req.Text) {
		return contractx.AgentResult{
			ReplyText:     "Just to be sure — reply \"yes\" to confirm the booking or \"no\" to cancel.",
			PendingAction: pending,
		}
	}

	now := a.now()
	price, _ := strconv.ParseFloat(pending.Get("daily_rate"), 64)
	booking := contractx.Booking{
		ID:           uuid.NewString(),
		Confirmation: confirmationNumber(now),
		UserID:       req.Context.UserID,
		GuideID:      pending.Get("guide_id"),
		Date:         pending.Get("date"),
		Price:        price,
		CreatedAt:    now.UTC(),
	}

	if _, err := a.bookings.Create(ctx, booking); err != nil {
		// Keep the pending action so a retry can complete the flow.
		log.Warn().Err(err).Str("guide_id", booking.GuideID).Msg("booking: write failed, degrading")
		return contractx.AgentResult{ReplyText: bookingDegradedReply, PendingAction: pending}
	}

	return contractx.AgentResult{
		ReplyText: fmt.Sprintf(
			"Confirmed! %s on %s. Your confirmation number is %s — your guide will contact you within 24 hours.",
			pending.Get("guide_name"), pending.Get("date"), booking.Confirmation,
		),
		FactUpdates: map[statex.FactKey]string{
			statex.FactLastBookingID:  booking.Confirmation,
			statex.FactPendingGuideID: "",
		},
		ClearPending: true,
		Terminal:     true,
	}
}

func cancelled() contractx.AgentResult {
	return contractx.AgentResult{
		ReplyText:    "No problem, I've cancelled that booking request. Anything else?",
		ClearPending: true,
	}
}

// confirmationNumber follows the marketplace's TGB-YYYYMMDD-XXXXXXXX shape.
func confirmationNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("TGB-%s-%s", now.UTC().Format("20060102"), suffix)
}
