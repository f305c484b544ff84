package agents

import (
	"context"
	"errors"
	"strings"
	"testing"

	statex "github.com/jirapatw/guidebot/agent/state"
)

func TestRegistrationMissingFieldsAsksAndHolds(t *testing.T) {
	t.Parallel()

	llm := &fakeLLM{extractJSON: `{"name":"Somchai","location":"Chiang Mai"}`}
	writer := &fakeGuideWriter{}
	agent := NewRegistration(llm, writer, "extract a guide profile", nowFn)

	res, err := agent.Handle(context.Background(), testRequest("I want to register as a guide, I'm Somchai from Chiang Mai"))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(writer.profiles) != 0 {
		t.Fatalf("incomplete profile must not be written, got %d", len(writer.profiles))
	}
	if res.PendingAction == nil || res.PendingAction.Kind != statex.PendingRegistration {
		t.Fatalf("expected a registration pending action: %+v", res.PendingAction)
	}
	if res.PendingAction.Step != statex.StepAwaitingFields {
		t.Fatalf("expected awaiting_fields, got %q", res.PendingAction.Step)
	}
	if !strings.Contains(res.ReplyText, "specialty") {
		t.Fatalf("reply must name the missing field: %q", res.ReplyText)
	}
	if res.PendingAction.Get("name") != "Somchai" {
		t.Fatalf("collected fields must be held on the pending action: %+v", res.PendingAction.Data)
	}
}

func TestRegistrationCompletesAcrossTurns(t *testing.T) {
	t.Parallel()

	llm := &fakeLLM{extractJSON: `{"specialty":"food tours"}`}
	writer := &fakeGuideWriter{}
	agent := NewRegistration(llm, writer, "extract a guide profile", nowFn)

	req := testRequest("I do food tours")
	pending := statex.NewPendingAction(statex.PendingRegistration, statex.StepAwaitingFields, testNow)
	pending.Set("name", "Somchai")
	pending.Set("location", "Chiang Mai")
	req.Context.PendingAction = pending

	res, err := agent.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(writer.profiles) != 1 {
		t.Fatalf("expected one write, got %d", len(writer.profiles))
	}
	profile := writer.profiles[0]
	if profile.Name != "Somchai" || profile.Location != "Chiang Mai" || profile.Specialty != "food tours" {
		t.Fatalf("merged profile mismatch: %+v", profile)
	}
	if !res.ClearPending || !res.Terminal {
		t.Fatalf("completed registration must clear pending and be terminal: %+v", res)
	}
	if !strings.Contains(res.ReplyText, "Somchai") {
		t.Fatalf("welcome reply must name the guide: %q", res.ReplyText)
	}
}

func TestRegistrationExtractionFailureDegrades(t *testing.T) {
	t.Parallel()

	llm := &fakeLLM{extractErr: errors.New("model offline")}
	agent := NewRegistration(llm, &fakeGuideWriter{}, "extract a guide profile", nowFn)

	res, err := agent.Handle(context.Background(), testRequest("register me"))
	if err != nil {
		t.Fatalf("extraction failure must degrade, not error: %v", err)
	}
	if res.ReplyText != registrationDegradedReply {
		t.Fatalf("unexpected reply: %q", res.ReplyText)
	}
}

func TestRegistrationWriteFailureKeepsProfile(t *testing.T) {
	t.Parallel()

	llm := &fakeLLM{extractJSON: `{"name":"Somchai","location":"Chiang Mai","specialty":"food tours"}`}
	writer := &fakeGuideWriter{err: errors.New("db down")}
	agent := NewRegistration(llm, writer, "extract a guide profile", nowFn)

	res, err := agent.Handle(context.Background(), testRequest("register me: Somchai, Chiang Mai, food tours"))
	if err != nil {
		t.Fatalf("write failure must degrade, not error: %v", err)
	}
	if res.PendingAction == nil || res.PendingAction.Get("specialty") != "food tours" {
		t.Fatalf("collected profile must survive the failed write: %+v", res.PendingAction)
	}
}
