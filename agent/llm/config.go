package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/jirapatw/guidebot/agent/contract"
	openrouterx "github.com/jirapatw/guidebot/pkg/openrouter"
)

// Role names one consumer of the language-model capability. Each role can
// run on its own model and temperature.
type Role string

const (
	RoleClassifier   Role = "classifier"
	RoleTourist      Role = "tourist"
	RoleCultural     Role = "cultural"
	RoleGuide        Role = "guide"
	RoleBooking      Role = "booking"
	RoleRegistration Role = "registration"
	RoleVision       Role = "vision"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.5"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	ClassifierModel       string  `envconfig:"CLASSIFIER_MODEL" split_words:"true"`
	TouristModel          string  `envconfig:"TOURIST_MODEL" split_words:"true"`
	CulturalModel         string  `envconfig:"CULTURAL_MODEL" split_words:"true"`
	GuideModel            string  `envconfig:"GUIDE_MODEL" split_words:"true"`
	BookingModel          string  `envconfig:"BOOKING_MODEL" split_words:"true"`
	RegistrationModel     string  `envconfig:"REGISTRATION_MODEL" split_words:"true"`
	VisionModel           string  `envconfig:"VISION_MODEL" split_words:"true"`
	ClassifierTemperature float32 `envconfig:"CLASSIFIER_TEMPERATURE" split_words:"true" default:"-1"`
	AgentTemperature      float32 `envconfig:"AGENT_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

// OpenRouterFor resolves the model settings for one role, falling back to
// the shared defaults where no override is set.
func (c Config) OpenRouterFor(role Role) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	override := ""
	switch role {
	case RoleClassifier:
		override = c.ClassifierModel
		if c.ClassifierTemperature >= 0 {
			temp = c.ClassifierTemperature
		}
	case RoleTourist:
		override = c.TouristModel
	case RoleCultural:
		override = c.CulturalModel
	case RoleGuide:
		override = c.GuideModel
	case RoleBooking:
		override = c.BookingModel
	case RoleRegistration:
		override = c.RegistrationModel
	case RoleVision:
		override = c.VisionModel
	}
	if role != RoleClassifier && c.AgentTemperature >= 0 {
		temp = c.AgentTemperature
	}
	if v := strings.TrimSpace(override); v != "" {
		modelName = v
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
