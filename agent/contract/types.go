package contract

import (
	"time"

	statex "github.com/jirapatw/guidebot/agent/state"
)

// Strand is a named conversation thread. Each strand is owned by exactly one
// specialist agent; the classifier assigns every inbound message to a strand.
type Strand string

const (
	StrandGeneral      Strand = "general"
	StrandBooking      Strand = "booking"
	StrandCultural     Strand = "cultural"
	StrandRegistration Strand = "registration"
	StrandGuideSearch  Strand = "guide_search"
)

// Strands lists every defined strand, in classifier label order.
func Strands() []Strand {
	return []Strand{
		StrandGeneral,
		StrandBooking,
		StrandCultural,
		StrandRegistration,
		StrandGuideSearch,
	}
}

// IsValid reports whether s is one of the defined strand values.
func (s Strand) IsValid() bool {
	switch s {
	case StrandGeneral, StrandBooking, StrandCultural, StrandRegistration, StrandGuideSearch:
		return true
	}
	return false
}

type MessageKind string

const (
	KindText     MessageKind = "text"
	KindImage    MessageKind = "image"
	KindLocation MessageKind = "location"
)

// Payload carries the content of an inbound message. Text is always the
// primary signal; MediaRef points at externally stored binary content for
// image messages, and Lat/Lon are set for location messages.
type Payload struct {
	Text     string  `json:"text,omitempty"`
	MediaRef string  `json:"media_ref,omitempty"`
	Lat      float64 `json:"lat,omitempty"`
	Lon      float64 `json:"lon,omitempty"`
}

// InboundMessage is the normalized message handed over by the transport
// collaborator. Immutable once constructed.
type InboundMessage struct {
	UserID    string      `json:"user_id"`
	Channel   string      `json:"channel"`
	Kind      MessageKind `json:"kind"`
	Payload   Payload     `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// OutboundReply is the single reply produced for an inbound message.
// Persisted is false only when the context write failed after the turn
// completed; the transport still delivers the reply, monitoring sees the flag.
type OutboundReply struct {
	Text      string `json:"text"`
	MediaRef  string `json:"media_ref,omitempty"`
	Strand    Strand `json:"strand"`
	Persisted bool   `json:"persisted"`
}

// StrandDecision is the classifier verdict for one turn. Produced fresh each
// turn and never persisted directly; only Strand feeds back into the context.
type StrandDecision struct {
	Strand     Strand  `json:"strand"`
	Confidence float64 `json:"confidence"`
	Switched   bool    `json:"switched"`
}

// AgentRequest is the read-only view an agent receives. Context is a snapshot;
// agents propose changes through AgentResult, never by direct mutation.
type AgentRequest struct {
	Message InboundMessage
	Text    string // normalized text signal (caption for images, text otherwise)
	Context *statex.UserContext
}

// AgentResult is produced once per agent invocation and consumed immediately
// by the orchestrator. An empty-string fact value clears the key.
// PendingAction nil leaves the stored pending action untouched; ClearPending
// drops it.
type AgentResult struct {
	ReplyText      string
	FactUpdates    map[statex.FactKey]string
	PendingAction  *statex.PendingAction
	ClearPending   bool
	StrandOverride Strand // zero value = no override
	Terminal       bool
}

// Criteria is the guide-search input extracted from free text.
type Criteria struct {
	Location  string   `json:"location"`
	Interests []string `json:"interests,omitempty"`
	Date      string   `json:"date,omitempty"`
	GroupSize int      `json:"group_size,omitempty"`
}

// Guide is one searchable guide record.
type Guide struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Location    string   `json:"location"`
	Specialties []string `json:"specialties,omitempty"`
	Languages   []string `json:"languages,omitempty"`
	Rating      float64  `json:"rating"`
	DailyRate   float64  `json:"daily_rate"`
}

// Booking is the record handed to the booking-write gateway on confirmation.
type Booking struct {
	ID           string    `json:"id"`
	Confirmation string    `json:"confirmation"`
	UserID       string    `json:"user_id"`
	GuideID      string    `json:"guide_id"`
	Date         string    `json:"date"`
	Price        float64   `json:"price"`
	CreatedAt    time.Time `json:"created_at"`
}

// GuideProfile is the structured registration extracted from free text.
// Name, Location and Specialty are required; the rest is optional color.
type GuideProfile struct {
	Name      string   `json:"name"`
	Location  string   `json:"location"`
	Specialty string   `json:"specialty"`
	Languages []string `json:"languages,omitempty"`
	Phone     string   `json:"phone,omitempty"`
	Bio       string   `json:"bio,omitempty"`
}

// MissingFields returns the required registration fields not yet provided.
func (p GuideProfile) MissingFields() []string {
	var missing []string
	if p.Name == "" {
		missing = append(missing, "name")
	}
	if p.Location == "" {
		missing = append(missing, "location")
	}
	if p.Specialty == "" {
		missing = append(missing, "specialty")
	}
	return missing
}

// MediaContent is the analyzable result of resolving a media reference.
type MediaContent struct {
	Caption string   `json:"caption,omitempty"`
	Labels  []string `json:"labels,omitempty"`
}

// Classification is one label verdict from the language-model capability.
type Classification struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}
