// Package agents holds the five specialist agents behind the orchestrator.
// Each agent owns one strand; the registry is the closed strand-to-agent
// mapping. Gateway failures never leave an agent as errors: every Handle
// call produces a usable, possibly degraded, result.
package agents

import (
	"errors"
	"time"

	contractx "github.com/jirapatw/guidebot/agent/contract"
	promptx "github.com/jirapatw/guidebot/agent/prompt"
)

// Deps is everything the registry needs to build the agent set. One
// LanguageModel per agent so each can run on its own model settings.
type Deps struct {
	TouristModel      contractx.LanguageModel
	CulturalModel     contractx.LanguageModel
	GuideModel        contractx.LanguageModel
	BookingModel      contractx.LanguageModel
	RegistrationModel contractx.LanguageModel

	GuideSearch contractx.GuideSearch
	Bookings    contractx.BookingWriter
	Guides      contractx.GuideWriter

	Prompts promptx.Set
	Now     func() time.Time
}

type registry struct {
	agents map[contractx.Strand]contractx.Agent
}

// NewRegistry builds the closed strand-to-agent table. Adding a strand means
// adding an agent type and one entry here.
func NewRegistry(deps Deps) (contractx.Registry, error) {
	if deps.TouristModel == nil || deps.CulturalModel == nil || deps.GuideModel == nil ||
		deps.BookingModel == nil || deps.RegistrationModel == nil {
		return nil, errors.New("a language model is required for every agent")
	}
	if deps.GuideSearch == nil {
		return nil, errors.New("guide search gateway is required")
	}
	if deps.Bookings == nil {
		return nil, errors.New("booking write gateway is required")
	}
	if deps.Guides == nil {
		return nil, errors.New("guide write gateway is required")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &registry{
		agents: map[contractx.Strand]contractx.Agent{
			contractx.StrandGeneral:      NewTourist(deps.TouristModel, deps.Prompts.Tourist),
			contractx.StrandCultural:     NewCultural(deps.CulturalModel, deps.Prompts.Cultural),
			contractx.StrandGuideSearch:  NewGuide(deps.GuideModel, deps.GuideSearch, deps.Prompts.Guide),
			contractx.StrandBooking:      NewBooking(deps.BookingModel, deps.Bookings, deps.Now),
			contractx.StrandRegistration: NewRegistration(deps.RegistrationModel, deps.Guides, deps.Prompts.Registration, deps.Now),
		},
	}, nil
}

// AgentFor is total: anything outside the table resolves to the general
// agent so a bad strand value can never strand a turn.
func (r *registry) AgentFor(strand contractx.Strand) contractx.Agent {
	if agent, ok := r.agents[strand]; ok {
		return agent
	}
	return r.agents[contractx.StrandGeneral]
}
