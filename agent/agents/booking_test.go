package agents

import (
	"context"
	"errors"
	"strings"
	"testing"

	contractx "github.com/jirapatw/guidebot/agent/contract"
	statex "github.com/jirapatw/guidebot/agent/state"
)

func seededBookingRequest(t *testing.T, text string) contractx.AgentRequest {
	t.Helper()
	req := testRequest(text)
	encoded := encodeSearchResults([]contractx.Guide{
		{ID: "g1", Name: "Somchai", Location: "Bangkok", Rating: 4.8, DailyRate: 1500},
		{ID: "g2", Name: "Nok", Location: "Bangkok", Rating: 4.5, DailyRate: 1200},
	})
	if err := req.Context.SetFact(statex.FactLastSearchResults, encoded); err != nil {
		t.Fatalf("SetFact() error = %v", err)
	}
	return req
}

func TestBookingFullFlow(t *testing.T) {
	t.Parallel()

	writer := &fakeBookingWriter{}
	agent := NewBooking(&fakeLLM{}, writer, nowFn)
	ctx := context.Background()

	// Turn 1: pick a guide straight away.
	req := seededBookingRequest(t, "I'd like to book Somchai")
	res, err := agent.Handle(ctx, req)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if res.PendingAction == nil || res.PendingAction.Step != statex.StepAwaitingDate {
		t.Fatalf("expected awaiting_date, got %+v", res.PendingAction)
	}
	if res.FactUpdates[statex.FactPendingGuideID] != "g1" {
		t.Fatalf("expected pendingGuideId=g1, got %v", res.FactUpdates)
	}

	// Turn 2: give a date.
	req = seededBookingRequest(t, "2025-02-14 works")
	req.Context.PendingAction = res.PendingAction
	res, err = agent.Handle(ctx, req)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if res.PendingAction == nil || res.PendingAction.Step != statex.StepAwaitingConfirmation {
		t.Fatalf("expected awaiting_confirmation, got %+v", res.PendingAction)
	}
	if !strings.Contains(res.ReplyText, "2025-02-14") {
		t.Fatalf("confirmation prompt must echo the date: %q", res.ReplyText)
	}

	// Turn 3: confirm.
	req = seededBookingRequest(t, "yes")
	req.Context.PendingAction = res.PendingAction
	res, err = agent.Handle(ctx, req)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if !res.ClearPending || !res.Terminal {
		t.Fatalf("confirmed booking must clear pending and be terminal: %+v", res)
	}
	if len(writer.bookings) != 1 {
		t.Fatalf("expected one write, got %d", len(writer.bookings))
	}

	booked := writer.bookings[0]
	if booked.GuideID != "g1" || booked.Date != "2025-02-14" || booked.Price != 1500 {
		t.Fatalf("unexpected booking: %+v", booked)
	}
	if !strings.HasPrefix(booked.Confirmation, "TGB-20250110-") {
		t.Fatalf("unexpected confirmation number: %q", booked.Confirmation)
	}
	if res.FactUpdates[statex.FactLastBookingID] != booked.Confirmation {
		t.Fatalf("lastBookingId must record the confirmation, got %v", res.FactUpdates)
	}
	if v, ok := res.FactUpdates[statex.FactPendingGuideID]; !ok || v != "" {
		t.Fatalf("pendingGuideId must be cleared, got %v", res.FactUpdates)
	}
}

func TestBookingInvalidDateReprompts(t *testing.T) {
	t.Parallel()

	agent := NewBooking(&fakeLLM{}, &fakeBookingWriter{}, nowFn)

	req := seededBookingRequest(t, "how about 2025-13-45")
	pending := statex.NewPendingAction(statex.PendingBooking, statex.StepAwaitingDate, testNow)
	pending.Set("guide_name", "Somchai")
	req.Context.PendingAction = pending

	res, err := agent.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if res.PendingAction == nil || res.PendingAction.Step != statex.StepAwaitingDate {
		t.Fatalf("invalid date must stay on awaiting_date: %+v", res.PendingAction)
	}
}

func TestBookingWriteFailureKeepsPending(t *testing.T) {
	t.Parallel()

	writer := &fakeBookingWriter{err: errors.New("db down")}
	agent := NewBooking(&fakeLLM{}, writer, nowFn)

	req := seededBookingRequest(t, "yes")
	pending := statex.NewPendingAction(statex.PendingBooking, statex.StepAwaitingConfirmation, testNow)
	pending.Set("guide_id", "g1")
	pending.Set("guide_name", "Somchai")
	pending.Set("date", "2025-02-14")
	pending.Set("daily_rate", "1500.00")
	req.Context.PendingAction = pending

	res, err := agent.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("write failure must degrade, not error: %v", err)
	}
	if res.PendingAction == nil || res.ClearPending {
		t.Fatalf("pending must survive a failed write for a retry: %+v", res)
	}
	if res.ReplyText != bookingDegradedReply {
		t.Fatalf("unexpected reply: %q", res.ReplyText)
	}
}

func TestBookingReplayedConfirmationDoesNotDoubleBook(t *testing.T) {
	t.Parallel()

	writer := &fakeBookingWriter{}
	agent := NewBooking(&fakeLLM{}, writer, nowFn)

	// Flow already completed: no pending action, confirmation on record.
	req := testRequest("yes")
	if err := req.Context.SetFact(statex.FactLastBookingID, "TGB-20250110-ABCD1234"); err != nil {
		t.Fatalf("SetFact() error = %v", err)
	}

	res, err := agent.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(writer.bookings) != 0 {
		t.Fatalf("replayed confirmation must not write, got %d", len(writer.bookings))
	}
	if !strings.Contains(res.ReplyText, "TGB-20250110-ABCD1234") {
		t.Fatalf("reply must reference the existing booking: %q", res.ReplyText)
	}
}

func TestBookingNegationCancels(t *testing.T) {
	t.Parallel()

	agent := NewBooking(&fakeLLM{}, &fakeBookingWriter{}, nowFn)

	req := seededBookingRequest(t, "cancel")
	req.Context.PendingAction = statex.NewPendingAction(statex.PendingBooking, statex.StepAwaitingConfirmation, testNow)

	res, err := agent.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if !res.ClearPending {
		t.Fatal("negation must clear the pending action")
	}
	if res.Terminal {
		t.Fatal("a cancel is not a terminal completion")
	}
}

func TestBookingUnmatchedGuideReprompts(t *testing.T) {
	t.Parallel()

	agent := NewBooking(&fakeLLM{}, &fakeBookingWriter{}, nowFn)

	req := seededBookingRequest(t, "hmm let me think")
	req.Context.PendingAction = statex.NewPendingAction(statex.PendingBooking, statex.StepSelectingGuide, testNow)

	res, err := agent.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if res.PendingAction == nil || res.PendingAction.Step != statex.StepSelectingGuide {
		t.Fatalf("expected to stay on selecting_guide: %+v", res.PendingAction)
	}
}
