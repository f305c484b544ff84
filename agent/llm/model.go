// Package llm implements the language-model capability on eino graphs: one
// structured graph for classification, one raw chat graph shared by
// extraction and generation. The orchestration core only ever sees the
// contract.LanguageModel interface.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/jirapatw/guidebot/agent/contract"
)

// Prompts are the system prompts behind each capability operation.
type Prompts struct {
	Classifier string
	Extractor  string
	Generator  string
}

type Model struct {
	timeout        time.Duration
	classifyRunner compose.Runnable[map[string]any, classifyLLMOutput]
	extractRunner  compose.Runnable[map[string]any, *schema.Message]
	generateRunner compose.Runnable[map[string]any, *schema.Message]
}

var _ contractx.LanguageModel = (*Model)(nil)

type classifyLLMOutput struct {
	Candidates []classifyCandidate `json:"candidates"`
}

type classifyCandidate struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

func New(ctx context.Context, chatModel einomodel.BaseChatModel, prompts Prompts, timeout time.Duration) (*Model, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("%w: chat model is required", contractx.ErrModelInvoke)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	classifyRunner, err := compileStructuredGraph[classifyLLMOutput](ctx, chatModel, prompts.Classifier, "llm.classify_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile classify graph: %v", contractx.ErrModelInvoke, err)
	}
	extractRunner, err := compileChatGraph(ctx, chatModel, prompts.Extractor, "llm.extract_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile extract graph: %v", contractx.ErrModelInvoke, err)
	}
	generateRunner, err := compileChatGraph(ctx, chatModel, prompts.Generator, "llm.generate_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile generate graph: %v", contractx.ErrModelInvoke, err)
	}

	return &Model{
		timeout:        timeout,
		classifyRunner: classifyRunner,
		extractRunner:  extractRunner,
		generateRunner: generateRunner,
	}, nil
}

func (m *Model) Classify(ctx context.Context, text string, candidates []string) ([]contractx.Classification, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is required", contractx.ErrValidation)
	}

	payload, err := json.Marshal(map[string]any{
		"text":       text,
		"candidates": candidates,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal classify payload: %v", contractx.ErrValidation, err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	out, err := m.classifyRunner.Invoke(ctx, map[string]any{"input": string(payload)})
	if err != nil {
		return nil, capabilityErr("classify", err)
	}

	allowed := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		allowed[c] = struct{}{}
	}

	ranked := make([]contractx.Classification, 0, len(out.Candidates))
	for _, c := range out.Candidates {
		label := strings.TrimSpace(c.Label)
		if _, ok := allowed[label]; !ok {
			continue
		}
		ranked = append(ranked, contractx.Classification{Label: label, Confidence: clamp01(c.Confidence)})
	}
	if len(ranked) == 0 {
		return nil, fmt.Errorf("%w: no usable candidate labels", contractx.ErrSchemaViolation)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Confidence > ranked[j].Confidence
	})
	return ranked, nil
}

func (m *Model) Extract(ctx context.Context, text string, instruction string, out any) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: text is required", contractx.ErrValidation)
	}

	payload, err := json.Marshal(map[string]any{
		"instruction": instruction,
		"text":        text,
	})
	if err != nil {
		return fmt.Errorf("%w: marshal extract payload: %v", contractx.ErrValidation, err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	msg, err := m.extractRunner.Invoke(ctx, map[string]any{"input": string(payload)})
	if err != nil {
		return capabilityErr("extract", err)
	}

	content := strings.TrimSpace(msg.Content)
	if err := json.Unmarshal([]byte(stripFences(content)), out); err != nil {
		return fmt.Errorf("%w: %v", contractx.ErrSchemaViolation, err)
	}
	return nil
}

func (m *Model) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: prompt is required", contractx.ErrValidation)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	msg, err := m.generateRunner.Invoke(ctx, map[string]any{"input": prompt})
	if err != nil {
		return "", capabilityErr("generate", err)
	}
	return strings.TrimSpace(msg.Content), nil
}

func capabilityErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", contractx.ErrCapabilityTimeout, op)
	}
	return fmt.Errorf("%w: %s: %v", contractx.ErrModelInvoke, op, err)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// stripFences tolerates models that wrap JSON in a markdown code fence.
func stripFences(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}

func compileStructuredGraph[T any](
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
	graphName string,
) (compose.Runnable[map[string]any, T], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage("{input}"),
	)

	parser := schema.NewMessageJSONParser[T](&schema.MessageJSONParseConfig{
		ParseFrom: schema.MessageParseFromContent,
	})

	graph := compose.NewGraph[map[string]any, T]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add model node: %w", err)
	}
	if err := graph.AddLambdaNode("parse_json", compose.MessageParser(parser)); err != nil {
		return nil, fmt.Errorf("add parser node: %w", err)
	}

	edges := [][2]string{
		{compose.START, "prompt"},
		{"prompt", "model"},
		{"model", "parse_json"},
		{"parse_json", compose.END},
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName(graphName))
	if err != nil {
		return nil, fmt.Errorf("compile graph: %w", err)
	}
	return runner, nil
}

func compileChatGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
	graphName string,
) (compose.Runnable[map[string]any, *schema.Message], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage("{input}"),
	)

	graph := compose.NewGraph[map[string]any, *schema.Message]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add model node: %w", err)
	}

	edges := [][2]string{
		{compose.START, "prompt"},
		{"prompt", "model"},
		{"model", compose.END},
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName(graphName))
	if err != nil {
		return nil, fmt.Errorf("compile graph: %w", err)
	}
	return runner, nil
}
