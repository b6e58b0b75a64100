package processor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fpang/forest-video-analyzer/internal/analysis"
	"github.com/fpang/forest-video-analyzer/internal/config"
	"github.com/fpang/forest-video-analyzer/internal/store"
)

// newIndexerServer fakes the TwelveLabs API: the task is ready on the first
// poll and only the cutting query returns hits.
func newIndexerServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/tasks":
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"_id":"task-1"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/tasks/task-1":
			w.Write([]byte(`{"_id":"task-1","status":"ready","video_id":"vid-1"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/search":
			var req struct {
				Query string `json:"query"`
			}
			json.NewDecoder(r.Body).Decode(&req)
			if req.Query == analysis.DefaultQueries[0].Text {
				w.Write([]byte(`{"data":[
					{"start":65,"end":72,"score":0.91,"metadata":{"text":"chainsaw on trunk"}},
					{"start":130.4,"end":140,"score":0.83,"metadata":[{"text":"tree falls"}]}
				]}`))
				return
			}
			w.Write([]byte(`{"data":[]}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestPipelineIndexedVideo(t *testing.T) {
	server := newIndexerServer(t)
	defer server.Close()

	env := map[string]string{
		config.EnvAPIKey:          "tl-key",
		config.EnvIndexID:         "idx-1",
		config.EnvBaseURL:         server.URL,
		config.EnvPollInterval:    "1ms",
		config.EnvPollMaxInterval: "2ms",
		config.EnvPollTimeout:     "1s",
	}
	cfg, err := config.LoadFrom(func(k string) string { return env[k] })
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	f := newFixture(analysis.Outcome{})
	f.handler.analyzer = analysis.NewAnalyzer(cfg, nil, nil)

	resp, err := f.handler.Process(context.Background(), "forest-input", "job123/clip.mp4")
	if err != nil || resp.StatusCode != 200 {
		t.Fatalf("unexpected result: %d %v (%s)", resp.StatusCode, err, resp.Body)
	}

	final := f.jobs.attempts[len(f.jobs.attempts)-1]
	if final.Status != store.StatusCompleted || final.AnalysisSource != analysis.SourceIndexer {
		t.Fatalf("unexpected final job: %+v", final)
	}
	if final.Results.TreesCut != 2 || len(final.Results.Events) != 2 {
		t.Errorf("expected 2 events, got %+v", final.Results)
	}

	report := f.objects.writes[0].body
	for _, want := range []string{"Total Trees Cut: 2", "\n1. 00:01:05 - ", "\n2. 00:02:10 - "} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}
	if strings.Contains(report, "\n3. ") {
		t.Errorf("report must enumerate exactly 2 events:\n%s", report)
	}
}
