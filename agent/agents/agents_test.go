package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	contractx "github.com/jirapatw/guidebot/agent/contract"
	statex "github.com/jirapatw/guidebot/agent/state"
)

var testNow = time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

func nowFn() time.Time { return testNow }

type fakeLLM struct {
	ranked      []contractx.Classification
	classifyErr error

	extractJSON string
	extractErr  error

	generated   string
	generateErr error

	generatePrompts []string
}

func (f *fakeLLM) Classify(ctx context.Context, text string, candidates []string) ([]contractx.Classification, error) {
	if f.classifyErr != nil {
		return nil, f.classifyErr
	}
	return append([]contractx.Classification(nil), f.ranked...), nil
}

func (f *fakeLLM) Extract(ctx context.Context, text, instruction string, out any) error {
	if f.extractErr != nil {
		return f.extractErr
	}
	if f.extractJSON == "" {
		return nil
	}
	return json.Unmarshal([]byte(f.extractJSON), out)
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string) (string, error) {
	f.generatePrompts = append(f.generatePrompts, prompt)
	if f.generateErr != nil {
		return "", f.generateErr
	}
	return f.generated, nil
}

type fakeSearch struct {
	guides   []contractx.Guide
	err      error
	criteria []contractx.Criteria
}

func (f *fakeSearch) Search(ctx context.Context, criteria contractx.Criteria) ([]contractx.Guide, error) {
	f.criteria = append(f.criteria, criteria)
	if f.err != nil {
		return nil, f.err
	}
	return append([]contractx.Guide(nil), f.guides...), nil
}

type fakeBookingWriter struct {
	err      error
	bookings []contractx.Booking
}

func (f *fakeBookingWriter) Create(ctx context.Context, booking contractx.Booking) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.bookings = append(f.bookings, booking)
	return booking.ID, nil
}

type fakeGuideWriter struct {
	err      error
	profiles []contractx.GuideProfile
}

func (f *fakeGuideWriter) Create(ctx context.Context, profile contractx.GuideProfile) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.profiles = append(f.profiles, profile)
	return fmt.Sprintf("guide-%d", len(f.profiles)), nil
}

func testRequest(text string) contractx.AgentRequest {
	return contractx.AgentRequest{
		Message: contractx.InboundMessage{
			UserID:  "u1",
			Kind:    contractx.KindText,
			Payload: contractx.Payload{Text: text},
		},
		Text:    text,
		Context: statex.NewUserContext("u1", testNow),
	}
}

func TestRegistryIsTotal(t *testing.T) {
	t.Parallel()

	registry, err := NewRegistry(Deps{
		TouristModel:      &fakeLLM{},
		CulturalModel:     &fakeLLM{},
		GuideModel:        &fakeLLM{},
		BookingModel:      &fakeLLM{},
		RegistrationModel: &fakeLLM{},
		GuideSearch:       &fakeSearch{},
		Bookings:          &fakeBookingWriter{},
		Guides:            &fakeGuideWriter{},
		Now:               nowFn,
	})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	for _, strand := range contractx.Strands() {
		if registry.AgentFor(strand) == nil {
			t.Fatalf("no agent for strand %q", strand)
		}
	}
	if registry.AgentFor(contractx.Strand("unknown")) == nil {
		t.Fatal("unknown strand must resolve to the general agent")
	}
}

func TestNewRegistryRequiresModels(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry(Deps{
		GuideSearch: &fakeSearch{},
		Bookings:    &fakeBookingWriter{},
		Guides:      &fakeGuideWriter{},
	})
	if err == nil {
		t.Fatal("expected an error for missing models")
	}
}

func TestMatchGuide(t *testing.T) {
	t.Parallel()

	results := []searchResult{
		{ID: "g1", Name: "Somchai"},
		{ID: "g2", Name: "Nok"},
	}

	if picked, ok := matchGuide("book somchai please", results); !ok || picked.ID != "g1" {
		t.Fatalf("name match failed: %+v ok=%v", picked, ok)
	}
	if picked, ok := matchGuide("the 2nd one... number 2", results); !ok || picked.ID != "g2" {
		t.Fatalf("positional match failed: %+v ok=%v", picked, ok)
	}
	if _, ok := matchGuide("someone else", results); ok {
		t.Fatal("expected no match")
	}
	if _, ok := matchGuide("number 9", results); ok {
		t.Fatal("out-of-range position must not match")
	}
}

func TestSearchResultsRoundTrip(t *testing.T) {
	t.Parallel()

	encoded := encodeSearchResults([]contractx.Guide{
		{ID: "g1", Name: "Somchai", Location: "Bangkok", Rating: 4.8, DailyRate: 1500},
	})
	decoded := decodeSearchResults(encoded)
	if len(decoded) != 1 || decoded[0].ID != "g1" || decoded[0].DailyRate != 1500 {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}

	if got := decodeSearchResults("not json"); got != nil {
		t.Fatalf("mangled fact must decode to nil, got %+v", got)
	}
	if got := decodeSearchResults("  "); got != nil {
		t.Fatalf("empty fact must decode to nil, got %+v", got)
	}
}
