package selection_test

import (
	"fmt"
	"reflect"
	"slices"
	"testing"

	"github.com/bjornpagen/nice-sub010/internal/qti"
	"github.com/bjornpagen/nice-sub010/internal/qti/parser"
	"github.com/bjornpagen/nice-sub010/internal/qti/selection"
	"github.com/bjornpagen/nice-sub010/pkg/qtiapi"
)

// build returns a one-part test whose sections hold the given item counts.
func build(sections ...parser.Section) (parser.TestStructure, []qti.ResolvedQuestion) {
	st := parser.TestStructure{TestPartID: "part", Sections: sections}
	var qs []qti.ResolvedQuestion
	for _, s := range sections {
		for _, ref := range s.ItemRefs {
			qs = append(qs, qti.ResolvedQuestion{
				Reference: qti.Reference{Identifier: ref.Identifier, TestPart: "part", Section: s.ID},
				Question:  qtiapi.Item{Identifier: ref.Identifier},
			})
		}
	}
	return st, qs
}

func section(id string, n int) parser.Section {
	s := parser.Section{ID: id}
	for i := 0; i < n; i++ {
		s.ItemRefs = append(s.ItemRefs, parser.ItemRef{Identifier: fmt.Sprintf("%s-item-%d", id, i)})
	}
	return s
}

func ids(qs []qti.ResolvedQuestion) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.Reference.Identifier
	}
	return out
}

func TestApply_DeterministicIsStable(t *testing.T) {
	st, qs := build(section("a", 6), section("b", 4))
	opts := selection.Options{BaseSeed: "user-1:resource-1", AttemptNumber: 3}
	first := ids(selection.Apply(st, qs, opts))
	for i := 0; i < 10; i++ {
		if got := ids(selection.Apply(st, qs, opts)); !reflect.DeepEqual(got, first) {
			t.Fatalf("call %d: %v != %v", i, got, first)
		}
	}
	if len(first) != 10 {
		t.Fatalf("len = %d", len(first))
	}
}

func TestApply_ConsecutiveAttemptsDiffer(t *testing.T) {
	for n := 2; n <= 7; n++ {
		st, qs := build(section("s", n))
		for attempt := 1; attempt <= 12; attempt++ {
			a := ids(selection.Apply(st, qs, selection.Options{BaseSeed: "u:r", AttemptNumber: attempt}))
			b := ids(selection.Apply(st, qs, selection.Options{BaseSeed: "u:r", AttemptNumber: attempt + 1}))
			if reflect.DeepEqual(a, b) {
				t.Fatalf("n=%d attempts %d and %d produced %v", n, attempt, attempt+1, a)
			}
		}
	}
}

func TestApply_SingleItemSectionsRotateAsOnePool(t *testing.T) {
	st, qs := build(section("a", 1), section("b", 1), section("c", 1))
	a := ids(selection.Apply(st, qs, selection.Options{BaseSeed: "u:r", AttemptNumber: 1}))
	b := ids(selection.Apply(st, qs, selection.Options{BaseSeed: "u:r", AttemptNumber: 2}))
	if reflect.DeepEqual(a, b) {
		t.Fatalf("attempts 1 and 2 both produced %v", a)
	}
}

func TestApply_SelectBoundsAndRotatesThroughPool(t *testing.T) {
	s := section("s", 5)
	s.Select = 2
	st, qs := build(s)

	seen := map[string]bool{}
	for attempt := 1; attempt <= 3; attempt++ {
		got := ids(selection.Apply(st, qs, selection.Options{BaseSeed: "u:r", AttemptNumber: attempt}))
		if len(got) != 2 {
			t.Fatalf("attempt %d: len = %d", attempt, len(got))
		}
		for _, id := range got {
			seen[id] = true
		}
	}
	if len(seen) != 5 {
		t.Fatalf("three attempts of 2 out of 5 should cover the pool, saw %v", seen)
	}

	random := selection.Apply(st, qs, selection.Options{})
	if len(random) != 2 {
		t.Fatalf("random len = %d", len(random))
	}
}

func TestApply_ShuffleFalseKeepsDocumentOrder(t *testing.T) {
	no := false
	s := section("s", 5)
	s.Shuffle = &no
	st, qs := build(s)
	for attempt := 1; attempt <= 3; attempt++ {
		got := ids(selection.Apply(st, qs, selection.Options{BaseSeed: "u:r", AttemptNumber: attempt}))
		if !reflect.DeepEqual(got, s.ItemIDs()) {
			t.Fatalf("attempt %d: %v", attempt, got)
		}
	}

	s.Select = 3
	st, qs = build(s)
	got := ids(selection.Apply(st, qs, selection.Options{BaseSeed: "u:r", AttemptNumber: 2}))
	if len(got) != 3 || !slices.IsSortedFunc(got, func(a, b string) int { return slices.Index(s.ItemIDs(), a) - slices.Index(s.ItemIDs(), b) }) {
		t.Fatalf("subset not in document order: %v", got)
	}
}

func TestApply_RandomModeIsAPermutation(t *testing.T) {
	st, qs := build(section("a", 4), section("b", 3))
	got := ids(selection.Apply(st, qs, selection.Options{}))
	want := ids(qs)
	slices.Sort(got)
	slices.Sort(want)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("random mode lost items: %v vs %v", got, want)
	}
}

func TestApply_RandomModeShufflesSingleItemSections(t *testing.T) {
	st, qs := build(section("a", 1), section("b", 1), section("c", 1), section("d", 1), section("e", 1))
	doc := ids(qs)
	for i := 0; i < 200; i++ {
		got := ids(selection.Apply(st, qs, selection.Options{}))
		if len(got) != len(doc) {
			t.Fatalf("got %d items, want %d", len(got), len(doc))
		}
		if !reflect.DeepEqual(got, doc) {
			return
		}
	}
	t.Fatalf("random mode returned document order %v on every run", doc)
}

func TestApply_SectionsStayInDocumentOrder(t *testing.T) {
	st, qs := build(section("a", 3), section("b", 3))
	got := selection.Apply(st, qs, selection.Options{BaseSeed: "u:r", AttemptNumber: 5})
	for i, q := range got {
		want := "a"
		if i >= 3 {
			want = "b"
		}
		if q.Reference.Section != want {
			t.Fatalf("position %d in section %q", i, q.Reference.Section)
		}
	}
}
