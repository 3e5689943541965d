package caliper

import (
	"time"

	"github.com/google/uuid"
)

const (
	ContextV1p2 = "http://purl.imsglobal.org/ctx/caliper/v1p2"
	DataVersion = "http://purl.imsglobal.org/ctx/caliper/v1p2"
)

type Entity struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

type Metric struct {
	Type  string  `json:"type"`
	Value float64 `json:"value"`
}

type MetricsCollection struct {
	ID    string   `json:"id"`
	Type  string   `json:"type"`
	Items []Metric `json:"items"`
}

type Event struct {
	Context    string             `json:"@context"`
	ID         string             `json:"id"`
	Type       string             `json:"type"`
	Profile    string             `json:"profile,omitempty"`
	Actor      Entity             `json:"actor"`
	Action     string             `json:"action"`
	Object     Entity             `json:"object"`
	EventTime  string             `json:"eventTime"`
	Generated  *MetricsCollection `json:"generated,omitempty"`
	Extensions map[string]any     `json:"extensions,omitempty"`
}

type Envelope struct {
	Sensor      string  `json:"sensor"`
	SendTime    string  `json:"sendTime"`
	DataVersion string  `json:"dataVersion"`
	Data        []Event `json:"data"`
}

// TimeSpent describes active time a user spent on one activity.
type TimeSpent struct {
	ActorID       string
	ActivityID    string
	ActivityName  string
	ActiveSeconds float64
	At            time.Time
}

func NewTimeSpentEvent(ts TimeSpent) Event {
	id := "urn:uuid:" + uuid.NewString()
	return Event{
		Context:   ContextV1p2,
		ID:        id,
		Type:      "TimeSpentEvent",
		Profile:   "TimebackProfile",
		Actor:     Entity{ID: ts.ActorID, Type: "TimebackUser"},
		Action:    "SpentTime",
		Object:    Entity{ID: ts.ActivityID, Type: "TimebackActivityContext", Name: ts.ActivityName},
		EventTime: ts.At.UTC().Format(time.RFC3339Nano),
		Generated: &MetricsCollection{
			ID:    id + "/metrics",
			Type:  "TimebackTimeSpentMetricsCollection",
			Items: []Metric{{Type: "active", Value: ts.ActiveSeconds}},
		},
	}
}
