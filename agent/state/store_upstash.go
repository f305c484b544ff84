package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrStoreUnavailable wraps any transport-level failure talking to the
// backing store. Reads degrade to an ephemeral default context; writes fail
// the turn's persistence but never its reply.
var ErrStoreUnavailable = errors.New("context store unreachable")

const (
	defaultStoreKeyPrefix = "guidebot:context:"
	defaultStoreTTL       = 30 * 24 * time.Hour
	maxResponseSizeBytes  = 2 << 20
)

// casScript compares the stored version with the version the caller loaded
// and only then writes the new payload. Returns 1 on success, 0 on conflict.
const casScript = `local cur = redis.call('GET', KEYS[1])
if cur then
  local decoded = cjson.decode(cur)
  if tostring(decoded.version) ~= ARGV[1] then return 0 end
elseif ARGV[1] ~= '0' then
  return 0
end
if tonumber(ARGV[3]) > 0 then
  redis.call('SET', KEYS[1], ARGV[2], 'EX', ARGV[3])
else
  redis.call('SET', KEYS[1], ARGV[2])
end
return 1`

// StoreOption customizes UpstashRedisStore.
type StoreOption func(*UpstashRedisStore)

func WithKeyPrefix(prefix string) StoreOption {
	return func(s *UpstashRedisStore) {
		trimmed := strings.TrimSpace(prefix)
		if trimmed != "" {
			s.keyPrefix = trimmed
		}
	}
}

func WithTTL(ttl time.Duration) StoreOption {
	return func(s *UpstashRedisStore) {
		s.ttl = ttl
	}
}

func WithHTTPClient(client *http.Client) StoreOption {
	return func(s *UpstashRedisStore) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// UpstashRedisStore persists UserContext records in Upstash Redis via REST.
type UpstashRedisStore struct {
	baseURL    string
	token      string
	httpClient *http.Client
	keyPrefix  string
	ttl        time.Duration
}

type redisRESTResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

type UpstashRedisConfig struct {
	URL     string        `envconfig:"URL" split_words:"true" required:"true"`
	Token   string        `envconfig:"TOKEN" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

func NewUpstashRedisStore(cfg UpstashRedisConfig, opts ...StoreOption) (*UpstashRedisStore, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("upstash redis url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid redis rest url: %w", err)
	}

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("upstash redis token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	store := &UpstashRedisStore{
		baseURL:   baseURL,
		token:     token,
		keyPrefix: defaultStoreKeyPrefix,
		ttl:       defaultStoreTTL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}

	if store.ttl < 0 {
		return nil, errors.New("ttl must be >= 0")
	}

	return store, nil
}

func (s *UpstashRedisStore) Load(ctx context.Context, userID string) (*UserContext, error) {
	key, err := s.redisKey(userID)
	if err != nil {
		return nil, err
	}

	resp, err := s.exec(ctx, []any{"GET", key})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	result := bytes.TrimSpace(resp.Result)
	if len(result) == 0 || bytes.Equal(result, []byte("null")) {
		return nil, ErrContextNotFound
	}

	var encoded string
	if err := json.Unmarshal(result, &encoded); err != nil {
		return nil, fmt.Errorf("decode context payload: %w", err)
	}

	var uc UserContext
	if err := json.Unmarshal([]byte(encoded), &uc); err != nil {
		return nil, fmt.Errorf("unmarshal user context: %w", err)
	}

	uc.EnsureFacts()
	if err := uc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid context loaded from store: %w", err)
	}

	return &uc, nil
}

func (s *UpstashRedisStore) Save(ctx context.Context, uc *UserContext) error {
	if uc == nil {
		return ErrNilContext
	}
	if strings.TrimSpace(uc.UserID) == "" {
		return ErrEmptyUserID
	}
	uc.EnsureFacts()

	key, err := s.redisKey(uc.UserID)
	if err != nil {
		return err
	}

	loadedVersion := uc.Version
	next := uc.Clone()
	next.Version = loadedVersion + 1
	next.Touch(time.Now())

	payload, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshal user context: %w", err)
	}

	cmd := []any{
		"EVAL", casScript, 1, key,
		fmt.Sprintf("%d", loadedVersion), string(payload), fmt.Sprintf("%d", ttlSeconds(s.ttl)),
	}

	resp, err := s.exec(ctx, cmd)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var ok int
	if err := json.Unmarshal(bytes.TrimSpace(resp.Result), &ok); err != nil {
		return fmt.Errorf("decode cas result: %w", err)
	}
	if ok != 1 {
		return ErrVersionConflict
	}

	uc.Version = next.Version
	uc.LastUpdated = next.LastUpdated
	return nil
}

func (s *UpstashRedisStore) Delete(ctx context.Context, userID string) error {
	key, err := s.redisKey(userID)
	if err != nil {
		return err
	}
	if _, err := s.exec(ctx, []any{"DEL", key}); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *UpstashRedisStore) redisKey(userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", ErrEmptyUserID
	}
	return strings.TrimSpace(s.keyPrefix) + userID, nil
}

func (s *UpstashRedisStore) exec(ctx context.Context, command []any) (*redisRESTResponse, error) {
	if s == nil {
		return nil, errors.New("nil store")
	}
	if len(command) == 0 {
		return nil, errors.New("empty redis command")
	}

	body, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("marshal redis command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build redis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute redis request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read redis response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("redis http status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed redisRESTResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode redis response: %w", err)
	}
	if parsed.Error != "" {
		return nil, errors.New(parsed.Error)
	}
	return &parsed, nil
}

func ttlSeconds(ttl time.Duration) int64 {
	seconds := ttl / time.Second
	if seconds <= 0 {
		return 0
	}
	if ttl%time.Second != 0 {
		seconds++
	}
	return int64(seconds)
}
