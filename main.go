package main

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	agentx "github.com/jirapatw/guidebot/agent/agents"
	classifierx "github.com/jirapatw/guidebot/agent/classifier"
	contractx "github.com/jirapatw/guidebot/agent/contract"
	gatewayx "github.com/jirapatw/guidebot/agent/gateway"
	llmx "github.com/jirapatw/guidebot/agent/llm"
	orchestratorx "github.com/jirapatw/guidebot/agent/orchestrator"
	promptx "github.com/jirapatw/guidebot/agent/prompt"
	statex "github.com/jirapatw/guidebot/agent/state"
	configx "github.com/jirapatw/guidebot/pkg/config"
	_ "github.com/jirapatw/guidebot/pkg/logger/autoload"
	openrouterx "github.com/jirapatw/guidebot/pkg/openrouter"
)

type AppConfig struct {
	PostgresDSN  string `envconfig:"POSTGRES_DSN" split_words:"true" required:"true"`
	StateBackend string `envconfig:"STATE_BACKEND" split_words:"true" default:"postgres"`
	DemoUserID   string `envconfig:"DEMO_USER_ID" split_words:"true" default:"local-user"`
}

func main() {
	ctx := context.Background()

	appCfg := configx.MustNew[AppConfig]("")

	llmCfg := configx.MustNew[llmx.Config]("OPENROUTER")
	if err := llmCfg.Validate(); err != nil {
		panic(err)
	}

	prompts := promptx.Load()

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(appCfg.PostgresDSN)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	store := newStore(appCfg, db)

	guides, err := gatewayx.NewGuideRepository(db)
	if err != nil {
		panic(err)
	}
	bookings, err := gatewayx.NewBookingRepository(db)
	if err != nil {
		panic(err)
	}

	var media contractx.MediaResolver
	mediaCfg := configx.MustNew[gatewayx.MediaConfig]("MEDIA")
	if strings.TrimSpace(mediaCfg.URL) != "" {
		client, err := gatewayx.NewMediaClient(*mediaCfg)
		if err != nil {
			panic(err)
		}
		media = client
	} else {
		// No media-storage collaborator: describe image URLs through the
		// raw OpenRouter SDK instead.
		visionCfg := llmCfg.OpenRouterFor(llmx.RoleVision)
		sdkClient := openrouterx.NewClient(visionCfg)
		if sdkClient == nil {
			panic("failed to initialize openrouter client")
		}
		vision, err := gatewayx.NewVisionResolver(sdkClient, visionCfg.Model)
		if err != nil {
			panic(err)
		}
		media = vision
	}

	registry, err := agentx.NewRegistry(agentx.Deps{
		TouristModel:      newModel(ctx, *llmCfg, llmx.RoleTourist, prompts),
		CulturalModel:     newModel(ctx, *llmCfg, llmx.RoleCultural, prompts),
		GuideModel:        newModel(ctx, *llmCfg, llmx.RoleGuide, prompts),
		BookingModel:      newModel(ctx, *llmCfg, llmx.RoleBooking, prompts),
		RegistrationModel: newModel(ctx, *llmCfg, llmx.RoleRegistration, prompts),
		GuideSearch:       guides,
		Bookings:          bookings,
		Guides:            guides,
		Prompts:           prompts,
	})
	if err != nil {
		panic(err)
	}

	strands := classifierx.New(
		newModel(ctx, *llmCfg, llmx.RoleClassifier, prompts),
		*configx.MustNew[classifierx.Config]("CLASSIFIER"),
	)

	engine, err := orchestratorx.New(store, strands, registry, media,
		*configx.MustNew[orchestratorx.Config]("ORCHESTRATOR"))
	if err != nil {
		panic(err)
	}

	runConsole(ctx, engine, appCfg.DemoUserID)
}

func newModel(ctx context.Context, cfg llmx.Config, role llmx.Role, prompts promptx.Set) *llmx.Model {
	rc := cfg.OpenRouterFor(role)
	chatModel, err := rc.New(ctx)
	if err != nil {
		panic(fmt.Sprintf("build %s chat model: %v", role, err))
	}

	m, err := llmx.New(ctx, chatModel, llmx.Prompts{
		Classifier: prompts.Classifier,
		Extractor:  prompts.Extractor,
		Generator:  prompts.Generator,
	}, rc.Timeout)
	if err != nil {
		panic(fmt.Sprintf("build %s model: %v", role, err))
	}
	return m
}

func newStore(appCfg *AppConfig, db *bun.DB) statex.Store {
	switch strings.ToLower(strings.TrimSpace(appCfg.StateBackend)) {
	case "upstash":
		store, err := statex.NewUpstashRedisStore(*configx.MustNew[statex.UpstashRedisConfig]("UPSTASH_REDIS"))
		if err != nil {
			panic(err)
		}
		return store
	case "memory":
		return statex.NewMemoryStore()
	default:
		store, err := statex.NewPostgresStore(db)
		if err != nil {
			panic(err)
		}
		return store
	}
}

// runConsole reads one message per line from stdin and prints the reply.
func runConsole(ctx context.Context, engine *orchestratorx.Orchestrator, userID string) {
	fmt.Println("guidebot console, ctrl-d to exit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		reply, err := engine.HandleMessage(ctx, contractx.InboundMessage{
			UserID:    userID,
			Channel:   "console",
			Kind:      contractx.KindText,
			Payload:   contractx.Payload{Text: text},
			Timestamp: time.Now(),
		})
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		fmt.Printf("[%s] %s\n", reply.Strand, reply.Text)
	}
}
