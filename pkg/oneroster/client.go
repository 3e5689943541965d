// Package oneroster is a client for the OneRoster v1.2 rostering, resources
// and gradebook services.
package oneroster

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-resty/resty/v2"

	"github.com/bjornpagen/nice-sub010/internal/httpx"
)

var ErrNotFound = errors.New("oneroster: not found")

const (
	gradebookBase = "/ims/oneroster/gradebook/v1p2"
	rosteringBase = "/ims/oneroster/rostering/v1p2"
	resourcesBase = "/ims/oneroster/resources/v1p2"
)

type Client struct {
	r *resty.Client
}

func New(cfg httpx.Config) *Client {
	return &Client{r: httpx.New(cfg)}
}

func (c *Client) GetResult(ctx context.Context, sourcedID string) (Result, error) {
	op := "oneroster: get result " + sourcedID
	res, err := c.r.R().SetContext(ctx).
		Get(gradebookBase + "/assessmentResults/" + url.PathEscape(sourcedID))
	if err == nil && res.StatusCode() == http.StatusNotFound {
		return Result{}, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err := httpx.Check(op, res, err); err != nil {
		return Result{}, err
	}
	var body struct {
		AssessmentResult Result `json:"assessmentResult"`
	}
	if err := httpx.Decode(op, res, &body); err != nil {
		return Result{}, err
	}
	return body.AssessmentResult, nil
}

// PutResult creates or replaces the result with the given sourcedId.
func (c *Client) PutResult(ctx context.Context, sourcedID string, r Result) error {
	op := "oneroster: put result " + sourcedID
	r.SourcedID = sourcedID
	res, err := c.r.R().SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{"assessmentResult": r}).
		Put(gradebookBase + "/assessmentResults/" + url.PathEscape(sourcedID))
	return httpx.Check(op, res, err)
}

// ListResults returns results matching a OneRoster filter expression.
func (c *Client) ListResults(ctx context.Context, filter string, limit int) ([]Result, error) {
	const op = "oneroster: list results"
	q := map[string]string{"filter": filter}
	if limit > 0 {
		q["limit"] = strconv.Itoa(limit)
	}
	res, err := c.r.R().SetContext(ctx).SetQueryParams(q).Get(gradebookBase + "/assessmentResults")
	if err := httpx.Check(op, res, err); err != nil {
		return nil, err
	}
	var body struct {
		AssessmentResults []Result `json:"assessmentResults"`
	}
	if err := httpx.Decode(op, res, &body); err != nil {
		return nil, err
	}
	return body.AssessmentResults, nil
}

// ListComponentResources lists the resources attached to one course component (a lesson).
func (c *Client) ListComponentResources(ctx context.Context, courseComponentSourcedID string) ([]ComponentResource, error) {
	const op = "oneroster: list component resources"
	res, err := c.r.R().SetContext(ctx).
		SetQueryParam("filter", fmt.Sprintf("courseComponent.sourcedId='%s'", courseComponentSourcedID)).
		Get(rosteringBase + "/courses/component-resources")
	if err := httpx.Check(op, res, err); err != nil {
		return nil, err
	}
	var body struct {
		ComponentResources []ComponentResource `json:"componentResources"`
	}
	if err := httpx.Decode(op, res, &body); err != nil {
		return nil, err
	}
	return body.ComponentResources, nil
}

func (c *Client) GetResource(ctx context.Context, sourcedID string) (Resource, error) {
	op := "oneroster: get resource " + sourcedID
	res, err := c.r.R().SetContext(ctx).Get(resourcesBase + "/resources/" + url.PathEscape(sourcedID))
	if err == nil && res.StatusCode() == http.StatusNotFound {
		return Resource{}, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err := httpx.Check(op, res, err); err != nil {
		return Resource{}, err
	}
	var body struct {
		Resource Resource `json:"resource"`
	}
	if err := httpx.Decode(op, res, &body); err != nil {
		return Resource{}, err
	}
	return body.Resource, nil
}
