// Package sendgrid is a minimal client for the SendGrid v3 mail/send API,
// enough for plain-text transactional mail.
package sendgrid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/agora-backend/internal/pkg/errors"
	"github.com/yungbote/agora-backend/internal/platform/httpx"
	"github.com/yungbote/agora-backend/internal/platform/logger"
)

type Client interface {
	// Send delivers one message and returns SendGrid's message id.
	Send(ctx context.Context, msg Message) (string, error)
}

type Config struct {
	APIKey           string
	BaseURL          string
	DefaultFromEmail string
	DefaultFromName  string
	Timeout          time.Duration
	MaxRetries       int
}

type Address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type Message struct {
	From     Address
	To       []Address
	Subject  string
	Text     string
	Category string
}

// HTTPError is a non-2xx answer from SendGrid.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("sendgrid: http %d: %s", e.StatusCode, e.Message)
}

func (e *HTTPError) HTTPStatusCode() int { return e.StatusCode }

type client struct {
	log  *logger.Logger
	cfg  Config
	http *http.Client
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, errors.New("sendgrid: logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("sendgrid: missing SENDGRID_API_KEY")
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.sendgrid.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &client{
		log:  log.With("client", "SendGrid"),
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type payload struct {
	Personalizations []personalization `json:"personalizations"`
	From             Address           `json:"from"`
	Subject          string            `json:"subject"`
	Content          []part            `json:"content"`
	Categories       []string          `json:"categories,omitempty"`
}

type personalization struct {
	To []Address `json:"to"`
}

type part struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (c *client) build(msg Message) (payload, error) {
	var p payload
	if msg.From.Email == "" {
		msg.From = Address{Email: c.cfg.DefaultFromEmail, Name: c.cfg.DefaultFromName}
	}
	switch {
	case strings.TrimSpace(msg.From.Email) == "":
		return p, errors.New("sendgrid: no sender (set SENDGRID_FROM_EMAIL)")
	case len(msg.To) == 0:
		return p, errors.New("sendgrid: no recipients")
	case strings.TrimSpace(msg.Subject) == "":
		return p, errors.New("sendgrid: empty subject")
	case strings.TrimSpace(msg.Text) == "":
		return p, errors.New("sendgrid: empty body")
	}
	p.Personalizations = []personalization{{To: msg.To}}
	p.From = msg.From
	p.Subject = strings.TrimSpace(msg.Subject)
	p.Content = []part{{Type: "text/plain", Value: msg.Text}}
	if msg.Category != "" {
		p.Categories = []string{msg.Category}
	}
	return p, nil
}

func (c *client) Send(ctx context.Context, msg Message) (string, error) {
	p, err := c.build(msg)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(p)
	if err != nil {
		return "", errors.Wrap(err, "sendgrid: encode")
	}

	for attempt := 0; ; attempt++ {
		id, resp, err := c.post(ctx, body)
		if err == nil {
			return id, nil
		}
		if attempt >= c.cfg.MaxRetries || !httpx.IsRetryableError(err) {
			return "", err
		}
		wait := httpx.JitterSleep(httpx.RetryAfterDuration(resp, httpx.Backoff(attempt, time.Second, 10*time.Second), 10*time.Second))
		c.log.Warn("sendgrid send failed; retrying", "attempt", attempt+1, "wait", wait.String(), "error", err)
		if err := httpx.Sleep(ctx, wait); err != nil {
			return "", err
		}
	}
}

func (c *client) post(ctx context.Context, body []byte) (string, *http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return "", nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode/100 == 2 {
		return resp.Header.Get("X-Message-Id"), resp, nil
	}
	return "", resp, &HTTPError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
}

// errorMessage extracts the first entry of SendGrid's {"errors":[{message}]}
// body, falling back to the raw text.
func errorMessage(raw []byte) string {
	var body struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if json.Unmarshal(raw, &body) == nil && len(body.Errors) > 0 && body.Errors[0].Message != "" {
		return body.Errors[0].Message
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 500 {
		msg = msg[:500] + "..."
	}
	return msg
}
