// Package caliper sends IMS Caliper envelopes to a sensor endpoint.
package caliper

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/bjornpagen/nice-sub010/internal/httpx"
)

type Client struct {
	r      *resty.Client
	sensor string
	now    func() time.Time
}

func New(cfg httpx.Config, sensorID string) *Client {
	return &Client{r: httpx.New(cfg), sensor: sensorID, now: time.Now}
}

// Send posts events in one envelope to /caliper/event.
func (c *Client) Send(ctx context.Context, events ...Event) error {
	env := Envelope{
		Sensor:      c.sensor,
		SendTime:    c.now().UTC().Format(time.RFC3339Nano),
		DataVersion: DataVersion,
		Data:        events,
	}
	res, err := c.r.R().SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(env).
		Post("/caliper/event")
	return httpx.Check("caliper: send", res, err)
}
