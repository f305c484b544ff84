package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	contractx "github.com/jirapatw/guidebot/agent/contract"
)

const maxMediaResponseBytes = 1 << 20

// MediaConfig configures the media-storage collaborator client.
type MediaConfig struct {
	URL     string        `envconfig:"URL" split_words:"true"`
	Token   string        `envconfig:"TOKEN" split_words:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

// MediaClient resolves a media reference into pre-analyzed content through
// the media-storage collaborator's REST endpoint. The engine never sees raw
// image bytes.
type MediaClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ contractx.MediaResolver = (*MediaClient)(nil)

func NewMediaClient(cfg MediaConfig) (*MediaClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("media url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid media url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &MediaClient{
		baseURL: baseURL,
		token:   strings.TrimSpace(cfg.Token),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

func (c *MediaClient) Resolve(ctx context.Context, ref string) (contractx.MediaContent, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return contractx.MediaContent{}, fmt.Errorf("%w: media ref is empty", contractx.ErrValidation)
	}

	endpoint := c.baseURL + "/media/" + url.PathEscape(ref) + "/analysis"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return contractx.MediaContent{}, fmt.Errorf("build media request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return contractx.MediaContent{}, gatewayErr("media resolve", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaResponseBytes))
	if err != nil {
		return contractx.MediaContent{}, gatewayErr("media resolve", err)
	}
	if resp.StatusCode != http.StatusOK {
		return contractx.MediaContent{}, fmt.Errorf("%w: media resolve: status=%d body=%s",
			contractx.ErrCapability, resp.StatusCode, string(raw))
	}

	var content contractx.MediaContent
	if err := json.Unmarshal(raw, &content); err != nil {
		return contractx.MediaContent{}, fmt.Errorf("decode media analysis: %w", err)
	}
	return content, nil
}
