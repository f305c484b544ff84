package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/classifier.txt
	classifierRaw string

	//go:embed template/extractor.txt
	extractorRaw string

	//go:embed template/generator.txt
	generatorRaw string

	//go:embed template/tourist.txt
	touristRaw string

	//go:embed template/cultural.txt
	culturalRaw string

	//go:embed template/guide.txt
	guideRaw string

	//go:embed template/registration.txt
	registrationRaw string
)

// Set holds the loaded prompt content. The first three back the language
// model capability operations; the rest are agent instruction preambles.
type Set struct {
	Classifier   string
	Extractor    string
	Generator    string
	Tourist      string
	Cultural     string
	Guide        string
	Registration string
}

// Load returns the embedded prompts with surrounding whitespace trimmed.
// Safe to call concurrently; the embed is compile-time.
func Load() Set {
	return Set{
		Classifier:   strings.TrimSpace(classifierRaw),
		Extractor:    strings.TrimSpace(extractorRaw),
		Generator:    strings.TrimSpace(generatorRaw),
		Tourist:      strings.TrimSpace(touristRaw),
		Cultural:     strings.TrimSpace(culturalRaw),
		Guide:        strings.TrimSpace(guideRaw),
		Registration: strings.TrimSpace(registrationRaw),
	}
}
