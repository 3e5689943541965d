package qti

import (
	"context"
	"errors"
	"fmt"

	"github.com/bjornpagen/nice-sub010/internal/qti/parser"
	"github.com/bjornpagen/nice-sub010/pkg/qtiapi"
)

var ErrItemMissing = errors.New("qti xml reference: item missing")

type Reference struct {
	Identifier string `json:"identifier"`
	Href       string `json:"href,omitempty"`
	TestPart   string `json:"testPart"`
	Section    string `json:"section"`
}

type ResolvedQuestion struct {
	Reference Reference   `json:"reference"`
	Question  qtiapi.Item `json:"question"`
}

// ItemFetcher batch-fetches items by identifier; unknown identifiers are
// simply absent from the result.
type ItemFetcher interface {
	GetAssessmentItems(ctx context.Context, identifiers []string) ([]qtiapi.Item, error)
}

// ResolveAllQuestionsForTestFromXML parses the test XML and resolves every
// (section, item ref) pair to its item payload.
func ResolveAllQuestionsForTestFromXML(ctx context.Context, items ItemFetcher, test qtiapi.AssessmentTest) ([]ResolvedQuestion, error) {
	st, err := parser.ParseAssessmentTestXML(test.RawXML)
	if err != nil {
		return nil, fmt.Errorf("assessment test %s: %w", test.Identifier, err)
	}
	return Resolve(ctx, items, st)
}

// Resolve fetches each distinct item once and re-expands to one entry per
// (section, item ref) in document order, so an item repeated across sections
// appears once per ref.
func Resolve(ctx context.Context, items ItemFetcher, st parser.TestStructure) ([]ResolvedQuestion, error) {
	all := st.ItemIDs()
	seen := make(map[string]bool, len(all))
	unique := make([]string, 0, len(all))
	for _, id := range all {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	fetched, err := items.GetAssessmentItems(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("fetch assessment items: %w", err)
	}
	byID := make(map[string]qtiapi.Item, len(fetched))
	for _, it := range fetched {
		byID[it.Identifier] = it
	}

	out := make([]ResolvedQuestion, 0, len(all))
	for _, ref := range st.Refs() {
		it, ok := byID[ref.Identifier]
		if !ok {
			return nil, fmt.Errorf("%w: %s (section %s)", ErrItemMissing, ref.Identifier, ref.Section)
		}
		out = append(out, ResolvedQuestion{
			Reference: Reference{
				Identifier: ref.Identifier,
				Href:       ref.Href,
				TestPart:   st.TestPartID,
				Section:    ref.Section,
			},
			Question: it,
		})
	}
	return out, nil
}
