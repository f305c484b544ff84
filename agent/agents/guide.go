package agents

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/jirapatw/guidebot/agent/contract"
	statex "github.com/jirapatw/guidebot/agent/state"
)

const (
	guideSearchDegradedReply = "Guide search is unavailable right now, please try again shortly."
	guideSearchTopN          = 3
)

const criteriaInstruction = `Extract guide search criteria. Respond with a JSON object with the
fields "location" (city or region, empty if not stated), "interests" (array
of strings), "date" (YYYY-MM-DD or empty), and "group_size" (number, 0 if
not stated).`

// Guide handles the guide_search strand: extract criteria from free text,
// query the marketplace, rank, and present the top results. Results are
// stashed under the lastSearchResults fact so a follow-up booking can
// reference them by name or position.
type Guide struct {
	model    contractx.LanguageModel
	search   contractx.GuideSearch
	preamble string
}

func NewGuide(model contractx.LanguageModel, search contractx.GuideSearch, preamble string) *Guide {
	return &Guide{model: model, search: search, preamble: preamble}
}

var _ contractx.Agent = (*Guide)(nil)

func (a *Guide) Handle(ctx context.Context, req contractx.AgentRequest) (contractx.AgentResult, error) {
	criteria := a.extractCriteria(ctx, req)

	guides, err := a.search.Search(ctx, criteria)
	if err != nil {
		log.Warn().Err(err).Str("location", criteria.Location).Msg("guide: search failed, degrading")
		return a.degraded(criteria), nil
	}
	if len(guides) == 0 {
		result := a.degradedFacts(criteria)
		result.ReplyText = noResultsReply(criteria)
		return result, nil
	}

	ranked := rankGuides(guides, criteria)
	if len(ranked) > guideSearchTopN {
		ranked = ranked[:guideSearchTopN]
	}

	listing := formatGuides(ranked)
	reply, err := a.model.Generate(ctx, a.preamble+"\n\nResults:\n"+listing)
	if err != nil || strings.TrimSpace(reply) == "" {
		// The formatted listing is a perfectly good reply on its own.
		reply = "Here are the best matches I found:\n" + listing + "\nReply with a name to start a booking."
	}

	result := contractx.AgentResult{
		ReplyText: reply,
		FactUpdates: map[statex.FactKey]string{
			statex.FactLastSearchResults: encodeSearchResults(ranked),
		},
	}
	if criteria.Location != "" {
		result.FactUpdates[statex.FactPreferredLocation] = criteria.Location
	}
	if len(criteria.Interests) > 0 {
		result.FactUpdates[statex.FactInterests] = strings.Join(criteria.Interests, ", ")
	}
	if criteria.GroupSize > 0 {
		result.FactUpdates[statex.FactGroupSize] = fmt.Sprintf("%d", criteria.GroupSize)
	}
	return result, nil
}

// extractCriteria is best-effort: extraction failure falls back to whatever
// the context already knows.
func (a *Guide) extractCriteria(ctx context.Context, req contractx.AgentRequest) contractx.Criteria {
	var criteria contractx.Criteria
	if err := a.model.Extract(ctx, req.Text, criteriaInstruction, &criteria); err != nil {
		log.Debug().Err(err).Msg("guide: criteria extraction failed")
	}

	criteria.Location = strings.TrimSpace(criteria.Location)
	if criteria.Location == "" {
		criteria.Location = req.Context.Fact(statex.FactPreferredLocation)
	}
	return criteria
}

func (a *Guide) degraded(criteria contractx.Criteria) contractx.AgentResult {
	result := a.degradedFacts(criteria)
	result.ReplyText = guideSearchDegradedReply
	return result
}

// degradedFacts keeps whatever was successfully derived even when the
// search itself failed.
func (a *Guide) degradedFacts(criteria contractx.Criteria) contractx.AgentResult {
	result := contractx.AgentResult{}
	if criteria.Location != "" {
		result.FactUpdates = map[statex.FactKey]string{
			statex.FactPreferredLocation: criteria.Location,
		}
	}
	return result
}

// rankGuides orders by exact location match first, then rating descending.
func rankGuides(guides []contractx.Guide, criteria contractx.Criteria) []contractx.Guide {
	ranked := append([]contractx.Guide(nil), guides...)
	location := strings.ToLower(strings.TrimSpace(criteria.Location))
	sort.SliceStable(ranked, func(i, j int) bool {
		li := strings.ToLower(ranked[i].Location) == location
		lj := strings.ToLower(ranked[j].Location) == location
		if li != lj {
			return li
		}
		return ranked[i].Rating > ranked[j].Rating
	})
	return ranked
}

func formatGuides(guides []contractx.Guide) string {
	var sb strings.Builder
	for i, g := range guides {
		fmt.Fprintf(&sb, "%d. %s — %s", i+1, g.Name, g.Location)
		if len(g.Specialties) > 0 {
			fmt.Fprintf(&sb, " (%s)", strings.Join(g.Specialties, ", "))
		}
		fmt.Fprintf(&sb, ", rated %.1f, %.0f THB/day\n", g.Rating, g.DailyRate)
	}
	return sb.String()
}

func noResultsReply(criteria contractx.Criteria) string {
	if criteria.Location != "" {
		return fmt.Sprintf("I couldn't find any guides in %s matching that. Try a nearby city or different interests?", criteria.Location)
	}
	return "I couldn't find matching guides. Which city will you be visiting?"
}
