package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/fpang/forest-video-analyzer/internal/analysis"
	"github.com/fpang/forest-video-analyzer/internal/store"
)

var fixedNow = time.Date(2026, 10, 16, 14, 30, 0, 0, time.UTC)

// memStore records every PutJob attempt. failAt makes the n-th attempt
// (zero-based) fail.
type memStore struct {
	attempts []store.Job
	failAt   map[int]error
}

func (m *memStore) PutJob(ctx context.Context, job *store.Job) error {
	n := len(m.attempts)
	m.attempts = append(m.attempts, *job)
	if err := m.failAt[n]; err != nil {
		return err
	}
	return nil
}

func (m *memStore) GetJob(ctx context.Context, jobID string) (*store.Job, error) {
	return nil, nil
}

func (m *memStore) statuses() []store.Status {
	out := make([]store.Status, len(m.attempts))
	for i, j := range m.attempts {
		out[i] = j.Status
	}
	return out
}

type fakePresigner struct{ key string }

func (f *fakePresigner) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.key = *in.Key
	return &v4.PresignedHTTPRequest{URL: "https://signed.test/" + *in.Key}, nil
}

type objectWrite struct {
	bucket, key, contentType, body string
}

type fakeObjects struct {
	writes []objectWrite
	err    error
}

func (f *fakeObjects) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, _ := io.ReadAll(in.Body)
	f.writes = append(f.writes, objectWrite{*in.Bucket, *in.Key, *in.ContentType, string(b)})
	return &s3.PutObjectOutput{}, nil
}

type fakeAnalyzer struct {
	outcome analysis.Outcome
	err     error
	gotURL  string
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, videoURL, filename string) (analysis.Outcome, error) {
	f.gotURL = videoURL
	return f.outcome, f.err
}

type fakeNotifier struct{ published []store.Job }

func (f *fakeNotifier) Publish(ctx context.Context, job *store.Job) error {
	f.published = append(f.published, *job)
	return nil
}

type fixture struct {
	jobs     *memStore
	presign  *fakePresigner
	objects  *fakeObjects
	analyzer *fakeAnalyzer
	notifier *fakeNotifier
	emf      *bytes.Buffer
	handler  *Handler
}

func newFixture(outcome analysis.Outcome) *fixture {
	f := &fixture{
		jobs:     &memStore{failAt: map[int]error{}},
		presign:  &fakePresigner{},
		objects:  &fakeObjects{},
		analyzer: &fakeAnalyzer{outcome: outcome},
		notifier: &fakeNotifier{},
		emf:      &bytes.Buffer{},
	}
	f.handler = NewHandler(Deps{
		Jobs:       f.jobs,
		Presigner:  f.presign,
		Objects:    f.objects,
		Analyzer:   f.analyzer,
		Notifier:   f.notifier,
		Now:        func() time.Time { return fixedNow },
		MetricsOut: f.emf,
	})
	return f
}

func fallbackOutcome() analysis.Outcome {
	return analysis.Outcome{Result: analysis.MockResult(), Source: analysis.SourceFallback, FallbackReason: "indexer not configured"}
}

func TestProcessFallbackSuccess(t *testing.T) {
	f := newFixture(fallbackOutcome())

	resp, err := f.handler.Process(context.Background(), "forest-input-bucket", "job123/clip.mp4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d (%s)", resp.StatusCode, resp.Body)
	}
	var body map[string]string
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if body["jobId"] != "job123" || body["status"] != "completed" {
		t.Errorf("unexpected body %v", body)
	}

	if got := f.jobs.statuses(); len(got) != 2 || got[0] != store.StatusProcessing || got[1] != store.StatusCompleted {
		t.Fatalf("unexpected status sequence %v", got)
	}
	final := f.jobs.attempts[1]
	if final.ReportKey != "job123/report.txt" || final.Results == nil || final.Results.TreesCut != 3 {
		t.Errorf("unexpected final job: %+v", final)
	}
	if final.AnalysisSource != analysis.SourceFallback || final.FallbackReason != "indexer not configured" {
		t.Errorf("fallback not recorded: source=%q reason=%q", final.AnalysisSource, final.FallbackReason)
	}
	if final.StartTime != "2026-10-16T14:30:00Z" || final.CompletedTime != "2026-10-16T14:30:00Z" {
		t.Errorf("unexpected times: %+v", final)
	}

	if len(f.objects.writes) != 1 {
		t.Fatalf("expected 1 report write, got %d", len(f.objects.writes))
	}
	w := f.objects.writes[0]
	if w.bucket != "forest-output-bucket" || w.key != "job123/report.txt" || w.contentType != "text/plain" {
		t.Errorf("unexpected write target: %+v", w)
	}
	for _, want := range []string{"Video: clip.mp4", "Total Trees Cut: 3", "1. 00:02:15 - Oak (Est. 18\" diameter) (Confidence: 85%)"} {
		if !strings.Contains(w.body, want) {
			t.Errorf("report missing %q", want)
		}
	}

	if f.presign.key != "job123/clip.mp4" || f.analyzer.gotURL != "https://signed.test/job123/clip.mp4" {
		t.Errorf("unexpected presign: key=%q url=%q", f.presign.key, f.analyzer.gotURL)
	}
	if len(f.notifier.published) != 1 || f.notifier.published[0].Status != store.StatusCompleted {
		t.Errorf("expected one completion event, got %+v", f.notifier.published)
	}

	emf := f.emf.String()
	for _, want := range []string{`"TreesCut":3`, `"Fallback":1`, `"ForestVideoAnalyzer"`, `"jobId":"job123"`} {
		if !strings.Contains(emf, want) {
			t.Errorf("EMF line missing %s: %s", want, emf)
		}
	}
}

func TestProcessZeroEvents(t *testing.T) {
	f := newFixture(analysis.Outcome{
		Result: analysis.AggregateResult{}.Finalize(),
		Source: analysis.SourceIndexer,
	})

	resp, err := f.handler.Process(context.Background(), "forest-input", "job7/empty.mp4")
	if err != nil || resp.StatusCode != 200 {
		t.Fatalf("unexpected result: %d %v", resp.StatusCode, err)
	}
	body := f.objects.writes[0].body
	if !strings.Contains(body, "Total Trees Cut: 0") || !strings.Contains(body, "No cutting events detected in this video.") {
		t.Errorf("unexpected report:\n%s", body)
	}
	if strings.Contains(f.emf.String(), `"Fallback"`) {
		t.Error("indexer outcome must not count as fallback")
	}
	if got := f.jobs.attempts[1].AnalysisSource; got != analysis.SourceIndexer {
		t.Errorf("unexpected source %q", got)
	}
}

func TestProcessStatusStoreUnavailable(t *testing.T) {
	f := newFixture(fallbackOutcome())
	f.jobs.failAt[0] = errors.New("ResourceNotFoundException")
	f.jobs.failAt[1] = errors.New("ResourceNotFoundException")

	resp, err := f.handler.Process(context.Background(), "forest-input", "job123/clip.mp4")
	if err == nil {
		t.Fatal("expected error")
	}
	if resp.StatusCode != 500 || !strings.Contains(resp.Body, "ResourceNotFoundException") {
		t.Errorf("unexpected response %+v", resp)
	}
	if len(f.objects.writes) != 0 {
		t.Error("no report may be written when the processing status cannot be recorded")
	}
	if f.analyzer.gotURL != "" {
		t.Error("analysis must not run")
	}
	if got := f.jobs.statuses(); len(got) != 2 || got[1] != store.StatusFailed {
		t.Errorf("expected a failed-status attempt, got %v", got)
	}
	if !strings.Contains(f.emf.String(), `"JobsFailed":1`) {
		t.Errorf("expected JobsFailed metric: %s", f.emf.String())
	}
}

func TestProcessAnalyzerHardFailure(t *testing.T) {
	f := newFixture(analysis.Outcome{})
	f.analyzer.err = errors.New("TwelveLabs analysis failed: upload failed: status 401")

	resp, err := f.handler.Process(context.Background(), "forest-input", "job5/clip.mp4")
	if err == nil || resp.StatusCode != 500 {
		t.Fatalf("expected failure, got %d %v", resp.StatusCode, err)
	}
	final := f.jobs.attempts[len(f.jobs.attempts)-1]
	if final.Status != store.StatusFailed || !strings.Contains(final.Error, "status 401") || final.ErrorTime == "" {
		t.Errorf("unexpected final job: %+v", final)
	}
	if len(f.objects.writes) != 0 {
		t.Error("no report expected")
	}
	if len(f.notifier.published) != 1 || f.notifier.published[0].Status != store.StatusFailed {
		t.Errorf("expected one failure event, got %+v", f.notifier.published)
	}
}

func TestProcessReportWriteFailure(t *testing.T) {
	f := newFixture(fallbackOutcome())
	f.objects.err = errors.New("AccessDenied")

	resp, err := f.handler.Process(context.Background(), "forest-input", "job5/clip.mp4")
	if err == nil || resp.StatusCode != 500 {
		t.Fatalf("expected failure, got %d %v", resp.StatusCode, err)
	}
	if got := f.jobs.statuses(); len(got) != 2 || got[1] != store.StatusFailed {
		t.Errorf("unexpected status sequence %v", got)
	}
}

func TestProcessCompletedStatusWriteFailure(t *testing.T) {
	f := newFixture(fallbackOutcome())
	f.jobs.failAt[1] = errors.New("ProvisionedThroughputExceeded")

	resp, err := f.handler.Process(context.Background(), "forest-input", "job9/clip.mp4")
	if err == nil || resp.StatusCode != 500 {
		t.Fatalf("expected failure, got %d %v", resp.StatusCode, err)
	}
	if got := f.jobs.statuses(); len(got) != 3 || got[2] != store.StatusFailed {
		t.Fatalf("unexpected status sequence %v", got)
	}

	final := f.jobs.attempts[2]
	if final.CompletedTime != "" || final.ReportKey != "" || final.Results != nil {
		t.Errorf("failed record kept completion fields: completedTime=%q reportKey=%q results=%v",
			final.CompletedTime, final.ReportKey, final.Results != nil)
	}
	if final.AnalysisSource != "" || final.FallbackReason != "" {
		t.Errorf("failed record kept analysis source: %q %q", final.AnalysisSource, final.FallbackReason)
	}
	if final.ErrorTime == "" || final.StartTime == "" || !strings.Contains(final.Error, "ProvisionedThroughputExceeded") {
		t.Errorf("unexpected failed record: %+v", final)
	}

	if len(f.notifier.published) != 1 {
		t.Fatalf("expected one event, got %d", len(f.notifier.published))
	}
	if ev := f.notifier.published[0]; ev.Status != store.StatusFailed || ev.Results != nil {
		t.Errorf("failure event carries completion data: %+v", ev)
	}
}

func TestProcessMalformedKey(t *testing.T) {
	f := newFixture(fallbackOutcome())

	resp, err := f.handler.Process(context.Background(), "forest-input", "no-slash.mp4")
	if err == nil || resp.StatusCode != 500 {
		t.Fatalf("expected failure, got %d %v", resp.StatusCode, err)
	}
	if len(f.jobs.attempts) != 0 {
		t.Errorf("no status write expected without a job id, got %d", len(f.jobs.attempts))
	}
}

func TestProcessDecodesKey(t *testing.T) {
	f := newFixture(fallbackOutcome())

	if _, err := f.handler.Process(context.Background(), "forest-input", "job1/north+ridge%281%29.mp4"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.presign.key != "job1/north ridge(1).mp4" {
		t.Errorf("expected decoded key, got %q", f.presign.key)
	}
	if f.jobs.attempts[0].Filename != "north ridge(1).mp4" {
		t.Errorf("unexpected filename %q", f.jobs.attempts[0].Filename)
	}
}

func TestHandleS3Event(t *testing.T) {
	f := newFixture(fallbackOutcome())

	resp := f.handler.HandleS3Event(context.Background(), events.S3Event{})
	if resp.StatusCode != 500 {
		t.Errorf("expected 500 for empty event, got %d", resp.StatusCode)
	}

	record := func(key string) events.S3EventRecord {
		var r events.S3EventRecord
		r.S3.Bucket.Name = "forest-input"
		r.S3.Object.Key = key
		return r
	}
	resp = f.handler.HandleS3Event(context.Background(), events.S3Event{
		Records: []events.S3EventRecord{record("jobA/a.mp4"), record("jobB/b.mp4")},
	})
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d (%s)", resp.StatusCode, resp.Body)
	}
	for _, a := range f.jobs.attempts {
		if a.ID != "jobA" {
			t.Errorf("only the first record may be processed, saw %q", a.ID)
		}
	}
}
