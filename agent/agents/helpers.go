package agents

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	contractx "github.com/jirapatw/guidebot/agent/contract"
)

var (
	isoDatePattern = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)

	affirmations = map[string]struct{}{
		"yes": {}, "yes please": {}, "confirm": {}, "confirmed": {}, "ok": {},
		"okay": {}, "sure": {}, "book it": {}, "go ahead": {}, "deal": {}, "yep": {},
	}
	negations = map[string]struct{}{
		"no": {}, "cancel": {}, "stop": {}, "never mind": {}, "nevermind": {},
		"not now": {}, "nope": {},
	}
)

func isAffirmation(text string) bool {
	_, ok := affirmations[normalize(text)]
	return ok
}

func isNegation(text string) bool {
	_, ok := negations[normalize(text)]
	return ok
}

func normalize(text string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(text), ".!"))
}

func findISODate(text string) string {
	return isoDatePattern.FindString(text)
}

// searchResult is the compact guide record stored under the
// lastSearchResults fact for later booking reference.
type searchResult struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Location  string  `json:"location"`
	Rating    float64 `json:"rating"`
	DailyRate float64 `json:"daily_rate"`
}

func encodeSearchResults(guides []contractx.Guide) string {
	results := make([]searchResult, 0, len(guides))
	for _, g := range guides {
		results = append(results, searchResult{
			ID:        g.ID,
			Name:      g.Name,
			Location:  g.Location,
			Rating:    g.Rating,
			DailyRate: g.DailyRate,
		})
	}
	raw, err := json.Marshal(results)
	if err != nil {
		return ""
	}
	return string(raw)
}

// decodeSearchResults is tolerant: a missing or mangled fact just means no
// prior results to match against.
func decodeSearchResults(raw string) []searchResult {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var results []searchResult
	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		return nil
	}
	return results
}

// matchGuide resolves a user's pick against stored search results, by name
// substring or 1-based list position.
func matchGuide(text string, results []searchResult) (searchResult, bool) {
	lowered := strings.ToLower(text)
	for _, r := range results {
		name := strings.ToLower(strings.TrimSpace(r.Name))
		if name != "" && strings.Contains(lowered, name) {
			return r, true
		}
	}
	for _, field := range strings.Fields(lowered) {
		idx, err := strconv.Atoi(strings.Trim(field, ".#"))
		if err != nil {
			continue
		}
		if idx >= 1 && idx <= len(results) {
			return results[idx-1], true
		}
	}
	return searchResult{}, false
}
