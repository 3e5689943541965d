package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2/clientcredentials"
)

// Config describes one Timeback-style REST API. TokenURL empty disables OAuth2.
type Config struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Timeout      time.Duration
}

// New returns a resty client whose transport fetches client-credentials tokens.
func New(cfg Config) *resty.Client {
	h := &http.Client{}
	if cfg.TokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		h = cc.Client(context.Background())
	}
	c := resty.NewWithClient(h).
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		c.SetTimeout(cfg.Timeout)
	}
	return c
}

// APIError is a non-2xx response from an upstream API.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Check converts transport errors and non-2xx responses into errors tagged with op.
func Check(op string, res *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.StatusCode()/100 != 2 {
		return &APIError{Op: op, StatusCode: res.StatusCode(), Body: truncate(strings.TrimSpace(res.String()), 512)}
	}
	return nil
}

// Decode unmarshals a successful response body.
func Decode(op string, res *resty.Response, out any) error {
	if err := json.Unmarshal(res.Body(), out); err != nil {
		return fmt.Errorf("%s: decode: %w", op, err)
	}
	return nil
}

// StatusCode returns the upstream status carried by err, or 0.
func StatusCode(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.StatusCode
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
