package xp

import (
	"context"
	"fmt"

	"github.com/bjornpagen/nice-sub010/pkg/oneroster"
)

type ResultLister interface {
	ListResults(ctx context.Context, filter string, limit int) ([]oneroster.Result, error)
}

// ResultProficiency treats a user as proficient on a resource once a fully
// graded assessment result at or above mastery exists for its line item.
type ResultProficiency struct {
	Results ResultLister
}

func (p ResultProficiency) IsProficient(ctx context.Context, userSourcedID, componentResourceSourcedID string) (bool, error) {
	lineItem := oneroster.LineItemID(componentResourceSourcedID)
	filter := oneroster.Eq("student.sourcedId", userSourcedID) + " AND " + oneroster.Eq("assessmentLineItem.sourcedId", lineItem)
	results, err := p.Results.ListResults(ctx, filter, 100)
	if err != nil {
		return false, fmt.Errorf("list results for %s: %w", lineItem, err)
	}
	timeSpentID := oneroster.ResultID(userSourcedID, lineItem)
	for _, r := range results {
		if r.SourcedID == timeSpentID || r.Status == "tobedeleted" {
			continue
		}
		if r.ScoreStatus == oneroster.ScoreStatusFullyGraded && r.Score >= masteryAccuracy {
			return true, nil
		}
	}
	return false, nil
}
