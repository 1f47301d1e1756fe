package recognizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"drivethru-bot/internal/domain"
)

// recognizeResponse is the minimal response shape returned by the intent
// recognition endpoint.
type recognizeResponse struct {
	Query           string `json:"query"`
	TopScoringIntent struct {
		Intent string  `json:"intent"`
		Score  float64 `json:"score"`
	} `json:"topScoringIntent"`
	Entities []struct {
		Entity string `json:"entity"`
		Type   string `json:"type"`
	} `json:"entities"`
}

// credsPayload is the expected JSON shape stored in SSM for the recognizer
// credentials.
type credsPayload struct {
	AppID string `json:"appId"`
	Key   string `json:"key"`
}

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("recognizer: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client issues one recognition request per utterance against a LUIS-style
// endpoint and folds the response into a domain.Recognition.
type Client struct {
	endpoint    string
	httpClient  *http.Client
	getter      Getter
	paramPrefix string

	credOnce sync.Once
	creds    credsPayload
	credErr  error
}

type Option func(*Client)

func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = strings.TrimSpace(endpoint)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a new Client backed by the given paramstore Getter for
// credential retrieval. The app id and subscription key are fetched from
// SSM on the first call to Recognize and reused for the lifetime of the
// process.
func NewClient(ps Getter, paramPrefix string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("recognizer: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("recognizer: parameter prefix must not be empty")
	}
	c := &Client{
		endpoint:    "https://westus.api.cognitive.microsoft.com",
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		getter:      ps,
		paramPrefix: paramPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// resolveCreds fetches the recognizer credentials from SSM on the first call
// and returns the cached result on every subsequent call.
func (c *Client) resolveCreds(ctx context.Context) (credsPayload, error) {
	c.credOnce.Do(func() {
		c.creds, c.credErr = fetchCredsFromParamStore(ctx, c.getter, c.credsParameterName())
	})
	return c.creds, c.credErr
}

func (c *Client) credsParameterName() string {
	return c.paramPrefix + "/recognizer-creds"
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func recognizeURL(endpoint, appID, key, utterance string) string {
	base := strings.TrimRight(endpoint, "/")
	if base == "" {
		base = "https://westus.api.cognitive.microsoft.com"
	}
	q := url.Values{}
	q.Set("subscription-key", key)
	q.Set("q", utterance)
	return fmt.Sprintf("%s/luis/v2.0/apps/%s?%s", base, url.PathEscape(appID), q.Encode())
}

// Recognize sends the utterance for a single round trip and returns the top
// intent plus the extracted entities keyed by entity type. Repeated calls
// with identical input are not guaranteed to classify identically.
func (c *Client) Recognize(ctx context.Context, utterance string) (domain.Recognition, error) {
	creds, err := c.resolveCreds(ctx)
	if err != nil {
		return domain.Recognition{}, err
	}

	reqURL := recognizeURL(c.endpoint, creds.AppID, creds.Key, utterance)
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if reqErr != nil {
		return domain.Recognition{}, fmt.Errorf("recognizer: create request: %w", reqErr)
	}

	raw, err := c.doJSONRequest(req, reqURL)
	if err != nil {
		return domain.Recognition{}, fmt.Errorf("recognizer: request failed: %w", err)
	}

	var payload recognizeResponse
	if decErr := json.Unmarshal(raw, &payload); decErr != nil {
		return domain.Recognition{}, fmt.Errorf("recognizer: decode response: %w", decErr)
	}

	result := domain.Recognition{
		TopIntent: payload.TopScoringIntent.Intent,
		Entities:  map[string][]string{},
	}
	for _, e := range payload.Entities {
		if e.Type == "" {
			continue
		}
		result.Entities[e.Type] = append(result.Entities[e.Type], e.Entity)
	}
	return result, nil
}

func (c *Client) doJSONRequest(req *http.Request, reqURL string) ([]byte, error) {
	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, doErr
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        reqURL,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}

func fetchCredsFromParamStore(ctx context.Context, getter Getter, name string) (credsPayload, error) {
	if getter == nil {
		return credsPayload{}, errors.New("recognizer: paramstore getter is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return credsPayload{}, errors.New("recognizer: credentials parameter name is empty")
	}

	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return credsPayload{}, fmt.Errorf("recognizer: fetch credentials from paramstore: %w", err)
	}
	var creds credsPayload
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return credsPayload{}, fmt.Errorf("recognizer: unmarshal paramstore credentials as JSON: %w", err)
	}
	if creds.AppID == "" || creds.Key == "" {
		return credsPayload{}, errors.New("recognizer: credentials are incomplete")
	}
	return creds, nil
}
