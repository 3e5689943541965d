// Package powerpath is a client for the PowerPath assessment-progress API.
package powerpath

import (
	"context"

	"github.com/go-resty/resty/v2"

	"github.com/bjornpagen/nice-sub010/internal/httpx"
)

// Progress is a user's state on one assessment component resource.
// Attempt is 0 when the upstream did not report a number.
type Progress struct {
	Attempt   int     `json:"attempt"`
	Finalized bool    `json:"finalized"`
	Score     float64 `json:"score,omitempty"`
}

type NewAttempt struct {
	Attempt Progress `json:"attempt"`
}

type Client struct {
	r *resty.Client
}

func New(cfg httpx.Config) *Client {
	return &Client{r: httpx.New(cfg)}
}

// GET /powerpath/getAssessmentProgress?student=..&lesson=..
func (c *Client) GetAssessmentProgress(ctx context.Context, userSourcedID, componentResourceSourcedID string) (Progress, error) {
	const op = "powerpath: get assessment progress"
	res, err := c.r.R().SetContext(ctx).
		SetQueryParams(map[string]string{
			"student": userSourcedID,
			"lesson":  componentResourceSourcedID,
		}).
		Get("/powerpath/getAssessmentProgress")
	if err := httpx.Check(op, res, err); err != nil {
		return Progress{}, err
	}
	var body struct {
		Attempt   *int    `json:"attempt"`
		Finalized bool    `json:"finalized"`
		Score     float64 `json:"score"`
	}
	if err := httpx.Decode(op, res, &body); err != nil {
		return Progress{}, err
	}
	p := Progress{Finalized: body.Finalized, Score: body.Score}
	if body.Attempt != nil {
		p.Attempt = *body.Attempt
	}
	return p, nil
}

// POST /powerpath/createNewAttempt. Upstream answers 422 while the current
// attempt is not completed yet.
func (c *Client) CreateNewAssessmentAttempt(ctx context.Context, userSourcedID, componentResourceSourcedID string) (NewAttempt, error) {
	const op = "powerpath: create new attempt"
	res, err := c.r.R().SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{
			"student": userSourcedID,
			"lesson":  componentResourceSourcedID,
		}).
		Post("/powerpath/createNewAttempt")
	if err := httpx.Check(op, res, err); err != nil {
		return NewAttempt{}, err
	}
	var out NewAttempt
	if err := httpx.Decode(op, res, &out); err != nil {
		return NewAttempt{}, err
	}
	return out, nil
}
