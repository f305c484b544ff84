package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	openaisdk "github.com/openai/openai-go"

	contractx "github.com/jirapatw/guidebot/agent/contract"
)

const visionInstruction = "Describe this travel photo in one sentence. " +
	"On a second line list up to five short labels (landmark, city, activity) separated by commas."

// VisionResolver describes an image through the raw OpenRouter SDK when no
// media-storage collaborator is deployed. It only accepts refs that are
// fetchable URLs; opaque store refs need the MediaClient.
type VisionResolver struct {
	client *openaisdk.Client
	model  string
}

var _ contractx.MediaResolver = (*VisionResolver)(nil)

func NewVisionResolver(client *openaisdk.Client, model string) (*VisionResolver, error) {
	if client == nil {
		return nil, errors.New("openrouter client is required")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, errors.New("vision model is required")
	}
	return &VisionResolver{client: client, model: model}, nil
}

func (r *VisionResolver) Resolve(ctx context.Context, ref string) (contractx.MediaContent, error) {
	ref = strings.TrimSpace(ref)
	parsed, err := url.Parse(ref)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return contractx.MediaContent{}, fmt.Errorf("%w: media ref %q is not a fetchable url", contractx.ErrValidation, ref)
	}

	resp, err := r.client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: r.model,
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.UserMessage([]openaisdk.ChatCompletionContentPartUnionParam{
				openaisdk.TextContentPart(visionInstruction),
				openaisdk.ImageContentPart(openaisdk.ChatCompletionContentPartImageImageURLParam{URL: ref}),
			}),
		},
		MaxCompletionTokens: openaisdk.Int(300),
	})
	if err != nil {
		return contractx.MediaContent{}, gatewayErr("vision describe", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return contractx.MediaContent{}, fmt.Errorf("%w: vision describe: empty completion", contractx.ErrCapability)
	}

	return parseVisionReply(resp.Choices[0].Message.Content), nil
}

func parseVisionReply(raw string) contractx.MediaContent {
	lines := strings.SplitN(strings.TrimSpace(raw), "\n", 2)
	content := contractx.MediaContent{Caption: strings.TrimSpace(lines[0])}
	if len(lines) == 2 {
		for _, label := range strings.Split(lines[1], ",") {
			if label = strings.TrimSpace(label); label != "" {
				content.Labels = append(content.Labels, label)
			}
		}
	}
	return content
}
