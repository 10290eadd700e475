package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/agora-backend/internal/observability"
	"github.com/yungbote/agora-backend/internal/pkg/ctxutil"
	"github.com/yungbote/agora-backend/internal/pkg/errors"
	"github.com/yungbote/agora-backend/internal/platform/httpx"
	"github.com/yungbote/agora-backend/internal/platform/logger"
)

// Space names an embedding space. Content and claim vectors are not
// comparable with each other.
type Space string

const (
	SpaceContent Space = "content"
	SpaceClaim   Space = "claim"
)

type ExtractItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// ExtractedADU is one span as returned by the service. ParentIndex refers to
// another ADU in the same result by position; nil for none.
type ExtractedADU struct {
	Type        string  `json:"type"`
	Text        string  `json:"text"`
	SpanStart   int     `json:"span_start"`
	SpanEnd     int     `json:"span_end"`
	Confidence  float64 `json:"confidence"`
	ParentIndex *int    `json:"parent_index"`
}

type ExtractResult struct {
	ID   string         `json:"id"`
	ADUs []ExtractedADU `json:"adus"`
}

type RelationInput struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding,omitempty"`
}

type RelationEdge struct {
	SourceID   string  `json:"source_id"`
	TargetID   string  `json:"target_id"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// Client talks to the argument analysis service. Every returned error is
// marked either errors.ErrTransient or errors.ErrPermanent.
type Client interface {
	ExtractADUs(ctx context.Context, items []ExtractItem) ([]ExtractResult, error)
	DetectRelations(ctx context.Context, adus []RelationInput) ([]RelationEdge, error)
	Embed(ctx context.Context, space Space, texts []string) ([][]float32, error)
}

type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	ContentDim int
	ClaimDim   int
}

type client struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("missing ANALYSIS_BASE_URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.ContentDim <= 0 {
		cfg.ContentDim = 1536
	}
	if cfg.ClaimDim <= 0 {
		cfg.ClaimDim = 768
	}
	return &client{
		log:        log.With("client", "AnalysisClient"),
		cfg:        cfg,
		httpClient: &http.Client{},
	}, nil
}

// HTTPError is a non-2xx reply from the analysis service.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 2000 {
		body = body[:2000] + "..."
	}
	return fmt.Sprintf("analysis http %d: %s", e.StatusCode, body)
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, errors.ErrTransient) || errors.Is(err, errors.ErrPermanent) {
		return err
	}
	// A canceled caller (worker shutdown) leaves the work to a later attempt.
	if httpx.IsRetryableError(err) || errors.Is(err, context.Canceled) {
		return errors.MarkTransient(err)
	}
	return errors.MarkPermanent(err)
}

func (c *client) doOnce(ctx context.Context, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, nil, errors.MarkPermanent(err)
	}
	callCtx, cancel := context.WithTimeout(ctxutil.Default(ctx), c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.cfg.BaseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *client) do(ctx context.Context, path string, body any, out any) error {
	backoff := 500 * time.Millisecond
	start := time.Now()
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return classify(err)
		}
		resp, raw, err := c.doOnce(ctx, path, body)
		if err == nil {
			observability.Current().ObserveAnalysisRequest(path, statusOf(resp, nil), time.Since(start))
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return errors.MarkPermanent(errors.Wrapf(uErr, "analysis decode %s", path))
			}
			return nil
		}
		err = classify(err)
		if !errors.IsTransient(err) || attempt >= c.cfg.MaxRetries {
			observability.Current().ObserveAnalysisRequest(path, statusOf(resp, err), time.Since(start))
			return errors.Wrapf(err, "analysis %s", path)
		}

		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		c.log.Warn("Analysis request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.cfg.MaxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		if sErr := httpx.Sleep(ctx, sleepFor); sErr != nil {
			return classify(sErr)
		}
		backoff *= 2
	}
}

func statusOf(resp *http.Response, err error) string {
	if resp != nil {
		return strconv.Itoa(resp.StatusCode)
	}
	if err != nil {
		return "error"
	}
	return "0"
}

func (c *client) ExtractADUs(ctx context.Context, items []ExtractItem) ([]ExtractResult, error) {
	if len(items) == 0 {
		return nil, nil
	}
	var resp struct {
		Results []ExtractResult `json:"results"`
	}
	if err := c.do(ctx, "/v1/extract", map[string]any{"items": items}, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (c *client) DetectRelations(ctx context.Context, adus []RelationInput) ([]RelationEdge, error) {
	if len(adus) < 2 {
		return nil, nil
	}
	var resp struct {
		Relations []RelationEdge `json:"relations"`
	}
	if err := c.do(ctx, "/v1/relations", map[string]any{"adus": adus}, &resp); err != nil {
		return nil, err
	}
	return resp.Relations, nil
}

func (c *client) dimFor(space Space) (int, error) {
	switch space {
	case SpaceContent:
		return c.cfg.ContentDim, nil
	case SpaceClaim:
		return c.cfg.ClaimDim, nil
	}
	return 0, errors.MarkPermanent(errors.Newf("unknown embedding space %q", space))
}

// Embed returns one vector per text, validated against the configured
// dimension of space. A dimension mismatch is permanent.
func (c *client) Embed(ctx context.Context, space Space, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	dim, err := c.dimFor(space)
	if err != nil {
		return nil, err
	}
	clean := make([]string, len(texts))
	for i, s := range texts {
		if s = strings.TrimSpace(s); s == "" {
			s = " "
		}
		clean[i] = s
	}
	var resp struct {
		Vectors [][]float32 `json:"vectors"`
	}
	if err := c.do(ctx, "/v1/embed", map[string]any{"space": space, "texts": clean}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Vectors) != len(clean) {
		return nil, errors.MarkPermanent(errors.Newf(
			"analysis embed: requested %d vectors, got %d", len(clean), len(resp.Vectors)))
	}
	for i, v := range resp.Vectors {
		if len(v) != dim {
			return nil, errors.MarkPermanent(errors.Newf(
				"analysis embed: %s vector %d has dim %d, want %d", space, i, len(v), dim))
		}
	}
	return resp.Vectors, nil
}
