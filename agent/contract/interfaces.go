package contract

import "context"

// Agent is the common specialist contract. Handle never mutates the context
// snapshot it receives; every failure inside an agent must be absorbed into a
// degraded AgentResult rather than returned as an error, except programming
// errors the orchestrator should see.
type Agent interface {
	Handle(ctx context.Context, req AgentRequest) (AgentResult, error)
}

// Classifier assigns an inbound message to a strand. It never fails: low
// confidence falls back to the general strand, and a capability error holds
// the active strand when a pending action is in flight.
type Classifier interface {
	Classify(ctx context.Context, text string, snapshot ClassifierSnapshot) StrandDecision
}

// ClassifierSnapshot is the slice of user context the classifier looks at.
type ClassifierSnapshot struct {
	ActiveStrand Strand
	HasPending   bool
}

// Registry maps every strand to its agent. Lookup is total: unknown strands
// resolve to the general agent.
type Registry interface {
	AgentFor(strand Strand) Agent
}

// LanguageModel is the external text capability. It may fail or time out;
// callers own the degradation.
type LanguageModel interface {
	// Classify returns candidate labels ranked by confidence, best first.
	Classify(ctx context.Context, text string, candidates []string) ([]Classification, error)
	Extract(ctx context.Context, text string, instruction string, out any) error
	Generate(ctx context.Context, prompt string) (string, error)
}

// GuideSearch queries the guide marketplace.
type GuideSearch interface {
	Search(ctx context.Context, criteria Criteria) ([]Guide, error)
}

// BookingWriter persists a confirmed booking. Idempotency on retried writes
// is the collaborator's responsibility.
type BookingWriter interface {
	Create(ctx context.Context, booking Booking) (string, error)
}

// GuideWriter persists a validated guide registration.
type GuideWriter interface {
	Create(ctx context.Context, profile GuideProfile) (string, error)
}

// MediaResolver turns an opaque media reference into analyzable content.
type MediaResolver interface {
	Resolve(ctx context.Context, ref string) (MediaContent, error)
}
