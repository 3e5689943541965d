package oneroster

import (
	"encoding/json"
	"strconv"
	"strings"
)

const (
	ScoreStatusFullyGraded     = "fully graded"
	ScoreStatusPartiallyGraded = "partially graded"
	ScoreStatusNotSubmitted    = "not submitted"
)

type GUIDRef struct {
	SourcedID string `json:"sourcedId"`
	Type      string `json:"type,omitempty"`
}

// Result is a gradebook assessment result.
type Result struct {
	SourcedID          string         `json:"sourcedId"`
	Status             string         `json:"status,omitempty"`
	AssessmentLineItem GUIDRef        `json:"assessmentLineItem"`
	Student            GUIDRef        `json:"student"`
	Score              float64        `json:"score"`
	ScoreStatus        string         `json:"scoreStatus"`
	ScoreDate          string         `json:"scoreDate,omitempty"`
	Comment            string         `json:"comment,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
}

type ComponentResource struct {
	SourcedID       string  `json:"sourcedId"`
	Title           string  `json:"title"`
	SortOrder       int     `json:"sortOrder"`
	CourseComponent GUIDRef `json:"courseComponent"`
	Resource        GUIDRef `json:"resource"`
}

type Resource struct {
	SourcedID string         `json:"sourcedId"`
	Title     string         `json:"title"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ActivityType reports the resource's learning activity kind (article, video, exercise, quiz, ...).
func (r Resource) ActivityType() string {
	for _, k := range []string{"khanActivityType", "type"} {
		if s, ok := r.Metadata[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// XP is the expected XP declared in the resource metadata.
func (r Resource) XP() float64 {
	v, _ := MetadataFloat(r.Metadata, "xp")
	return v
}

// ResultID is the derived sourcedId of the time-spent result for a user and line item.
func ResultID(userSourcedID, lineItemID string) string {
	return "nice_" + userSourcedID + "_" + lineItemID
}

// LineItemID is the assessment line item of a component resource.
func LineItemID(componentResourceSourcedID string) string {
	return componentResourceSourcedID + "_ali"
}

// Eq builds a filter clause matching field against a quoted literal. Single
// quotes in the value are doubled.
func Eq(field, value string) string {
	return field + "='" + strings.ReplaceAll(value, "'", "''") + "'"
}

// MetadataFloat reads a numeric metadata value that may be encoded as a number or a string.
func MetadataFloat(md map[string]any, key string) (float64, bool) {
	switch v := md[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
