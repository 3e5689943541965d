package qtiapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/bjornpagen/nice-sub010/internal/httpx"
	"github.com/bjornpagen/nice-sub010/pkg/qtiapi"
)

func TestGetAssessmentItems_SkipsMissing(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		id := strings.TrimPrefix(r.URL.Path, "/assessment-items/")
		if id == "gone" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"identifier":"` + id + `","title":"T ` + id + `","rawXml":"<qti-assessment-item/>"}`))
	}))
	defer srv.Close()

	c := qtiapi.New(httpx.Config{BaseURL: srv.URL})
	items, err := c.GetAssessmentItems(context.Background(), []string{"a", "gone", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 || items[0].Identifier != "a" || items[1].Identifier != "b" {
		t.Fatalf("items = %+v", items)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d", calls.Load())
	}
}

func TestGetAssessmentItems_FailsOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := qtiapi.New(httpx.Config{BaseURL: srv.URL}).GetAssessmentItems(context.Background(), []string{"a"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestGetAssessmentTest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/assessment-tests/test-1" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"identifier":"test-1","title":"Quiz","rawXml":"<qti-assessment-test/>"}`))
	}))
	defer srv.Close()

	got, err := qtiapi.New(httpx.Config{BaseURL: srv.URL}).GetAssessmentTest(context.Background(), "test-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.RawXML != "<qti-assessment-test/>" {
		t.Fatalf("got %+v", got)
	}
}
