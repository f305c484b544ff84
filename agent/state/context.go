package state

import (
	"errors"
	"fmt"
	"time"
)

// FactKey names one attribute of the per-user fact map. The vocabulary is
// closed: SetFact rejects keys outside this set.
type FactKey string

const (
	FactPreferredLocation FactKey = "preferredLocation"
	FactLastBookingID     FactKey = "lastBookingId"
	FactLanguageHint      FactKey = "languageHint"
	FactLastSearchResults FactKey = "lastSearchResults"
	FactInterests         FactKey = "interests"
	FactTypicalBudget     FactKey = "typicalBudget"
	FactGroupSize         FactKey = "groupSize"
	FactPendingGuideID    FactKey = "pendingGuideId"
)

var knownFacts = map[FactKey]struct{}{
	FactPreferredLocation: {},
	FactLastBookingID:     {},
	FactLanguageHint:      {},
	FactLastSearchResults: {},
	FactInterests:         {},
	FactTypicalBudget:     {},
	FactGroupSize:         {},
	FactPendingGuideID:    {},
}

// IsKnownFact reports whether key belongs to the fixed fact vocabulary.
func IsKnownFact(key FactKey) bool {
	_, ok := knownFacts[key]
	return ok
}

// PendingKind identifies which multi-turn flow a pending action belongs to.
type PendingKind string

const (
	PendingBooking      PendingKind = "booking"
	PendingRegistration PendingKind = "registration"
)

// Booking flow steps, in order.
const (
	StepSelectingGuide       = "selecting_guide"
	StepAwaitingDate         = "awaiting_date"
	StepAwaitingConfirmation = "awaiting_confirmation"
	StepAwaitingFields       = "awaiting_fields"
	StepDone                 = "done"
)

var allowedSteps = map[PendingKind]map[string][]string{
	PendingBooking: {
		StepSelectingGuide:       {StepAwaitingDate},
		StepAwaitingDate:         {StepAwaitingConfirmation},
		StepAwaitingConfirmation: {StepDone},
	},
	PendingRegistration: {
		StepAwaitingFields: {StepAwaitingFields, StepDone},
	},
}

// PendingAction is an in-progress multi-turn sub-flow attached to a
// UserContext. Data carries the fields collected so far.
type PendingAction struct {
	Kind      PendingKind       `json:"kind"`
	Step      string            `json:"step"`
	Data      map[string]string `json:"data,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

var (
	ErrUnknownFact       = errors.New("fact key not in vocabulary")
	ErrInvalidStrand     = errors.New("active strand is not a defined strand")
	ErrInvalidTransition = errors.New("invalid pending action transition")
	ErrNilContext        = errors.New("user context is nil")
	ErrEmptyUserID       = errors.New("user id is empty")
)

// NewPendingAction starts a flow at the given step.
func NewPendingAction(kind PendingKind, step string, now time.Time) *PendingAction {
	return &PendingAction{
		Kind:      kind,
		Step:      step,
		Data:      make(map[string]string, 4),
		UpdatedAt: now.UTC(),
	}
}

// Advance moves the flow to the next step, enforcing the per-kind machine.
func (p *PendingAction) Advance(next string, now time.Time) error {
	if p == nil {
		return fmt.Errorf("%w: nil pending action", ErrInvalidTransition)
	}
	steps, ok := allowedSteps[p.Kind]
	if !ok {
		return fmt.Errorf("%w: unknown kind=%q", ErrInvalidTransition, p.Kind)
	}
	for _, allowed := range steps[p.Step] {
		if allowed == next {
			p.Step = next
			p.UpdatedAt = now.UTC()
			return nil
		}
	}
	return fmt.Errorf("%w: %s: %s -> %s", ErrInvalidTransition, p.Kind, p.Step, next)
}

// Set records a collected field on the flow.
func (p *PendingAction) Set(key, value string) {
	if p.Data == nil {
		p.Data = make(map[string]string, 4)
	}
	p.Data[key] = value
}

// Get returns a collected field.
func (p *PendingAction) Get(key string) string {
	if p == nil || p.Data == nil {
		return ""
	}
	return p.Data[key]
}

// Expired reports whether the flow has been idle longer than ttl.
func (p *PendingAction) Expired(now time.Time, ttl time.Duration) bool {
	if p == nil || ttl <= 0 {
		return false
	}
	return now.Sub(p.UpdatedAt) > ttl
}

// UserContext is the durable per-user memory record. The orchestrator owns
// the authoritative copy; agents only ever see snapshots.
type UserContext struct {
	UserID        string             `json:"user_id"`
	ActiveStrand  string             `json:"active_strand"`
	Facts         map[FactKey]string `json:"facts,omitempty"`
	PendingAction *PendingAction     `json:"pending_action,omitempty"`
	Version       int64              `json:"version"`
	LastUpdated   time.Time          `json:"last_updated"`
	ExpiresAt     *time.Time         `json:"expires_at,omitempty"`
}

// DefaultStrand is the strand of a freshly created context.
const DefaultStrand = "general"

// NewUserContext creates the default context for a first-time user.
func NewUserContext(userID string, now time.Time) *UserContext {
	return &UserContext{
		UserID:       userID,
		ActiveStrand: DefaultStrand,
		Facts:        make(map[FactKey]string, 8),
		Version:      0,
		LastUpdated:  now.UTC(),
	}
}

// EnsureFacts makes sure the fact map is initialized.
func (c *UserContext) EnsureFacts() {
	if c.Facts == nil {
		c.Facts = make(map[FactKey]string, 8)
	}
}

// SetFact upserts a fact; an empty value clears the key. Unknown keys are
// rejected to keep the stored vocabulary closed.
func (c *UserContext) SetFact(key FactKey, value string) error {
	if c == nil {
		return ErrNilContext
	}
	if !IsKnownFact(key) {
		return fmt.Errorf("%w: %q", ErrUnknownFact, key)
	}
	c.EnsureFacts()
	if value == "" {
		delete(c.Facts, key)
		return nil
	}
	c.Facts[key] = value
	return nil
}

// Fact returns the stored value for key, if any.
func (c *UserContext) Fact(key FactKey) string {
	if c == nil || c.Facts == nil {
		return ""
	}
	return c.Facts[key]
}

// HasPending reports whether a multi-turn flow is mid-flight.
func (c *UserContext) HasPending() bool {
	return c != nil && c.PendingAction != nil
}

// SweepPending drops a pending action that has been idle past ttl and
// resets the strand to the default. Returns true if anything was dropped.
func (c *UserContext) SweepPending(now time.Time, ttl time.Duration) bool {
	if c == nil || c.PendingAction == nil {
		return false
	}
	if !c.PendingAction.Expired(now, ttl) {
		return false
	}
	c.PendingAction = nil
	c.ActiveStrand = DefaultStrand
	c.Touch(now)
	return true
}

// Touch bumps the update timestamp.
func (c *UserContext) Touch(now time.Time) {
	c.LastUpdated = now.UTC()
}

// Clone returns a deep copy suitable for handing to an agent as a snapshot.
func (c *UserContext) Clone() *UserContext {
	if c == nil {
		return nil
	}
	out := *c
	out.Facts = make(map[FactKey]string, len(c.Facts))
	for k, v := range c.Facts {
		out.Facts[k] = v
	}
	if c.PendingAction != nil {
		pa := *c.PendingAction
		pa.Data = make(map[string]string, len(c.PendingAction.Data))
		for k, v := range c.PendingAction.Data {
			pa.Data[k] = v
		}
		out.PendingAction = &pa
	}
	if c.ExpiresAt != nil {
		t := *c.ExpiresAt
		out.ExpiresAt = &t
	}
	return &out
}

// Validate checks the stored invariants: known strand, known fact keys, and
// a pending action step that belongs to its kind's machine.
func (c *UserContext) Validate() error {
	if c == nil {
		return ErrNilContext
	}
	if c.UserID == "" {
		return ErrEmptyUserID
	}
	if !validStrand(c.ActiveStrand) {
		return fmt.Errorf("%w: %q", ErrInvalidStrand, c.ActiveStrand)
	}
	for k := range c.Facts {
		if !IsKnownFact(k) {
			return fmt.Errorf("%w: %q", ErrUnknownFact, k)
		}
	}
	if p := c.PendingAction; p != nil {
		steps, ok := allowedSteps[p.Kind]
		if !ok {
			return fmt.Errorf("%w: unknown pending kind=%q", ErrInvalidTransition, p.Kind)
		}
		if _, ok := steps[p.Step]; !ok && p.Step != StepDone {
			return fmt.Errorf("%w: %s has no step %q", ErrInvalidTransition, p.Kind, p.Step)
		}
	}
	return nil
}

// validStrand duplicates the contract strand set to keep state free of a
// contract import (contract already imports state).
func validStrand(s string) bool {
	switch s {
	case "general", "booking", "cultural", "registration", "guide_search":
		return true
	}
	return false
}
