// Package qtiapi is a client for the QTI 3 assessment item/test store.
package qtiapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/errgroup"

	"github.com/bjornpagen/nice-sub010/internal/httpx"
)

var ErrNotFound = errors.New("qti: not found")

type AssessmentTest struct {
	Identifier string `json:"identifier"`
	Title      string `json:"title"`
	RawXML     string `json:"rawXml"`
}

type Item struct {
	Identifier string         `json:"identifier"`
	Title      string         `json:"title"`
	Type       string         `json:"type,omitempty"`
	RawXML     string         `json:"rawXml"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type Client struct {
	r *resty.Client
	// Concurrency bounds in-flight requests of GetAssessmentItems.
	Concurrency int
}

func New(cfg httpx.Config) *Client {
	return &Client{r: httpx.New(cfg), Concurrency: 8}
}

func (c *Client) GetAssessmentTest(ctx context.Context, identifier string) (AssessmentTest, error) {
	op := "qti: get assessment test " + identifier
	res, err := c.r.R().SetContext(ctx).Get("/assessment-tests/" + url.PathEscape(identifier))
	if err == nil && res.StatusCode() == http.StatusNotFound {
		return AssessmentTest{}, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err := httpx.Check(op, res, err); err != nil {
		return AssessmentTest{}, err
	}
	var t AssessmentTest
	if err := httpx.Decode(op, res, &t); err != nil {
		return AssessmentTest{}, err
	}
	return t, nil
}

func (c *Client) GetAssessmentItem(ctx context.Context, identifier string) (Item, error) {
	op := "qti: get assessment item " + identifier
	res, err := c.r.R().SetContext(ctx).Get("/assessment-items/" + url.PathEscape(identifier))
	if err == nil && res.StatusCode() == http.StatusNotFound {
		return Item{}, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err := httpx.Check(op, res, err); err != nil {
		return Item{}, err
	}
	var it Item
	if err := httpx.Decode(op, res, &it); err != nil {
		return Item{}, err
	}
	return it, nil
}

// GetAssessmentItems fetches items by identifier. Unknown identifiers are
// omitted from the result; any other failure fails the whole batch.
func (c *Client) GetAssessmentItems(ctx context.Context, identifiers []string) ([]Item, error) {
	found := make([]*Item, len(identifiers))
	g, gctx := errgroup.WithContext(ctx)
	if c.Concurrency > 0 {
		g.SetLimit(c.Concurrency)
	}
	for i, id := range identifiers {
		g.Go(func() error {
			it, err := c.GetAssessmentItem(gctx, id)
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			found[i] = &it
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make([]Item, 0, len(identifiers))
	for _, it := range found {
		if it != nil {
			out = append(out, *it)
		}
	}
	return out, nil
}
