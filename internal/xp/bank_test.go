package xp_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/bjornpagen/nice-sub010/internal/xp"
	"github.com/bjornpagen/nice-sub010/pkg/oneroster"
)

type fakeRoster struct {
	crs       []oneroster.ComponentResource
	resources map[string]oneroster.Resource
	results   map[string]oneroster.Result
	putErr    error
	puts      []string
}

func (f *fakeRoster) ListComponentResources(context.Context, string) ([]oneroster.ComponentResource, error) {
	return append([]oneroster.ComponentResource(nil), f.crs...), nil
}

func (f *fakeRoster) GetResource(_ context.Context, id string) (oneroster.Resource, error) {
	r, ok := f.resources[id]
	if !ok {
		return oneroster.Resource{}, oneroster.ErrNotFound
	}
	return r, nil
}

func (f *fakeRoster) GetResult(_ context.Context, id string) (oneroster.Result, error) {
	r, ok := f.results[id]
	if !ok {
		return oneroster.Result{}, oneroster.ErrNotFound
	}
	return r, nil
}

func (f *fakeRoster) PutResult(_ context.Context, id string, r oneroster.Result) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.puts = append(f.puts, id)
	f.results[id] = r
	return nil
}

func resource(id, kind string, amount float64) oneroster.Resource {
	return oneroster.Resource{SourcedID: id, Metadata: map[string]any{"khanActivityType": kind, "xp": amount}}
}

func timeSpent(user, cr string) (string, oneroster.Result) {
	id := oneroster.ResultID(user, oneroster.LineItemID(cr))
	return id, oneroster.Result{SourcedID: id, Score: 100, ScoreStatus: oneroster.ScoreStatusFullyGraded,
		Metadata: map[string]any{"nice_timeSpent": 300}}
}

// lesson: video-0, exercise-1, article-2, video-3, exercise-4 (shuffled order on the wire)
func lessonRoster() *fakeRoster {
	f := &fakeRoster{
		crs: []oneroster.ComponentResource{
			{SourcedID: "cr-ex4", SortOrder: 4, Resource: oneroster.GUIDRef{SourcedID: "r-ex4"}},
			{SourcedID: "cr-v0", SortOrder: 0, Resource: oneroster.GUIDRef{SourcedID: "r-v0"}},
			{SourcedID: "cr-a2", SortOrder: 2, Resource: oneroster.GUIDRef{SourcedID: "r-a2"}},
			{SourcedID: "cr-ex1", SortOrder: 1, Resource: oneroster.GUIDRef{SourcedID: "r-ex1"}},
			{SourcedID: "cr-v3", SortOrder: 3, Resource: oneroster.GUIDRef{SourcedID: "r-v3"}},
		},
		resources: map[string]oneroster.Resource{
			"r-v0":  resource("r-v0", "Video", 5),
			"r-ex1": resource("r-ex1", "Exercise", 40),
			"r-a2":  resource("r-a2", "Article", 3),
			"r-v3":  resource("r-v3", "Video", 7),
			"r-ex4": resource("r-ex4", "Exercise", 80),
		},
		results: map[string]oneroster.Result{},
	}
	for _, cr := range []string{"cr-v0", "cr-a2", "cr-v3"} {
		id, r := timeSpent("u1", cr)
		f.results[id] = r
	}
	return f
}

func newBanker(f *fakeRoster) *xp.Banker {
	return &xp.Banker{Roster: f, Now: func() time.Time { return fixedNow }, Log: zerolog.Nop()}
}

func TestBanker_BanksPrecedingPassiveResources(t *testing.T) {
	f := lessonRoster()
	res, err := newBanker(f).AwardBankedXPForExercise(context.Background(), xp.BankRequest{
		UserSourcedID: "u1", CourseComponentSourcedID: "lesson", ExerciseComponentResourceSourcedID: "cr-ex4",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.BankedXP != 10 {
		t.Fatalf("banked = %v", res.BankedXP)
	}
	if !reflect.DeepEqual(res.AwardedResourceIDs, []string{"cr-a2", "cr-v3"}) {
		t.Fatalf("awarded = %v", res.AwardedResourceIDs)
	}
	id, _ := timeSpent("u1", "cr-v3")
	md := f.results[id].Metadata
	if md["nice_bankedXp"] != 7.0 || md["nice_bankedBy"] != "cr-ex4" || md["nice_timeSpent"] != 300 {
		t.Fatalf("metadata = %v", md)
	}
	if md["nice_bankedAt"] != "2026-03-04T15:00:00Z" {
		t.Fatalf("bankedAt = %v", md["nice_bankedAt"])
	}
}

func TestBanker_IsIdempotent(t *testing.T) {
	f := lessonRoster()
	b := newBanker(f)
	req := xp.BankRequest{UserSourcedID: "u1", CourseComponentSourcedID: "lesson", ExerciseComponentResourceSourcedID: "cr-ex4"}
	if _, err := b.AwardBankedXPForExercise(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	res, err := b.AwardBankedXPForExercise(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if res.BankedXP != 0 || len(res.AwardedResourceIDs) != 0 {
		t.Fatalf("second run banked again: %+v", res)
	}
	if len(f.puts) != 2 {
		t.Fatalf("puts = %v", f.puts)
	}
}

func TestBanker_SkipsUnconsumedResources(t *testing.T) {
	f := lessonRoster()
	id, _ := timeSpent("u1", "cr-a2")
	delete(f.results, id)
	res, err := newBanker(f).AwardBankedXPForExercise(context.Background(), xp.BankRequest{
		UserSourcedID: "u1", CourseComponentSourcedID: "lesson", ExerciseComponentResourceSourcedID: "cr-ex4",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.BankedXP != 7 || !reflect.DeepEqual(res.AwardedResourceIDs, []string{"cr-v3"}) {
		t.Fatalf("got %+v", res)
	}
}

func TestBanker_Errors(t *testing.T) {
	t.Run("unknown exercise", func(t *testing.T) {
		_, err := newBanker(lessonRoster()).AwardBankedXPForExercise(context.Background(), xp.BankRequest{
			UserSourcedID: "u1", CourseComponentSourcedID: "lesson", ExerciseComponentResourceSourcedID: "nope",
		})
		if err == nil {
			t.Fatal("expected error")
		}
	})
	t.Run("missing lesson", func(t *testing.T) {
		_, err := newBanker(lessonRoster()).AwardBankedXPForExercise(context.Background(), xp.BankRequest{
			UserSourcedID: "u1", ExerciseComponentResourceSourcedID: "cr-ex4",
		})
		if err == nil {
			t.Fatal("expected error")
		}
	})
	t.Run("write failure", func(t *testing.T) {
		f := lessonRoster()
		f.putErr = errors.New("409 conflict")
		_, err := newBanker(f).AwardBankedXPForExercise(context.Background(), xp.BankRequest{
			UserSourcedID: "u1", CourseComponentSourcedID: "lesson", ExerciseComponentResourceSourcedID: "cr-ex4",
		})
		if !errors.Is(err, f.putErr) {
			t.Fatalf("expected wrapped put error, got %v", err)
		}
	})
}

type fakeLister struct {
	results []oneroster.Result
	filter  string
}

func (f *fakeLister) ListResults(_ context.Context, filter string, _ int) ([]oneroster.Result, error) {
	f.filter = filter
	return f.results, nil
}

func TestResultProficiency(t *testing.T) {
	timeSpentID := oneroster.ResultID("u1", "cr1_ali")
	cases := []struct {
		name    string
		results []oneroster.Result
		want    bool
	}{
		{"no results", nil, false},
		{"mastered", []oneroster.Result{{SourcedID: "r1", Score: 85, ScoreStatus: oneroster.ScoreStatusFullyGraded}}, true},
		{"below mastery", []oneroster.Result{{SourcedID: "r1", Score: 79, ScoreStatus: oneroster.ScoreStatusFullyGraded}}, false},
		{"not graded", []oneroster.Result{{SourcedID: "r1", Score: 100, ScoreStatus: oneroster.ScoreStatusPartiallyGraded}}, false},
		{"time spent record ignored", []oneroster.Result{{SourcedID: timeSpentID, Score: 100, ScoreStatus: oneroster.ScoreStatusFullyGraded}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := &fakeLister{results: tc.results}
			got, err := xp.ResultProficiency{Results: l}.IsProficient(context.Background(), "u1", "cr1")
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Fatalf("proficient = %v, want %v", got, tc.want)
			}
			if l.filter != "student.sourcedId='u1' AND assessmentLineItem.sourcedId='cr1_ali'" {
				t.Fatalf("filter = %q", l.filter)
			}
		})
	}
}

func TestResultProficiency_QuotesInIDsAreEscaped(t *testing.T) {
	l := &fakeLister{}
	if _, err := (xp.ResultProficiency{Results: l}).IsProficient(context.Background(), "u1' OR '1'='1", "cr'1"); err != nil {
		t.Fatal(err)
	}
	want := "student.sourcedId='u1'' OR ''1''=''1' AND assessmentLineItem.sourcedId='cr''1_ali'"
	if l.filter != want {
		t.Fatalf("filter = %q, want %q", l.filter, want)
	}
}
