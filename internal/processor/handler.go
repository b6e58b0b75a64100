// Package processor runs one uploaded video through the analysis pipeline:
// it records job status, presigns the upload for the indexing service, runs
// the analysis, writes the rendered report to the output bucket and records
// the final status.
//
// Job status transitions are processing → completed or processing → failed.
// The analysis itself may complete with placeholder data; that is recorded
// on the job as analysisSource=fallback with the fallback reason.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fpang/forest-video-analyzer/internal/analysis"
	"github.com/fpang/forest-video-analyzer/internal/jobs"
	"github.com/fpang/forest-video-analyzer/internal/jobutil"
	"github.com/fpang/forest-video-analyzer/internal/metrics"
	"github.com/fpang/forest-video-analyzer/internal/notify"
	"github.com/fpang/forest-video-analyzer/internal/report"
	"github.com/fpang/forest-video-analyzer/internal/s3util"
	"github.com/fpang/forest-video-analyzer/internal/store"
)

// PresignExpiry is how long the indexing service may fetch the upload.
const PresignExpiry = 2 * time.Hour

// notifyTimeout bounds event publication on the failure path.
const notifyTimeout = 5 * time.Second

// Analyzer produces an analysis outcome for a presigned video URL.
type Analyzer interface {
	Analyze(ctx context.Context, videoURL, filename string) (analysis.Outcome, error)
}

// Response is the Lambda invocation result.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// Deps are the collaborators of a Handler. Jobs, Presigner, Objects and
// Analyzer are required.
type Deps struct {
	Jobs      store.JobStore
	Presigner s3util.Presigner
	Objects   s3util.ObjectPutter
	Analyzer  Analyzer
	Notifier  notify.Notifier
	Now       func() time.Time
	// MetricsOut receives one EMF line per invocation (default stdout).
	MetricsOut io.Writer
}

// Handler processes upload notifications.
type Handler struct {
	jobs       store.JobStore
	presigner  s3util.Presigner
	objects    s3util.ObjectPutter
	analyzer   Analyzer
	notifier   notify.Notifier
	now        func() time.Time
	metricsOut io.Writer
}

// NewHandler builds a Handler, filling optional dependencies with defaults.
func NewHandler(d Deps) *Handler {
	h := &Handler{
		jobs:       d.Jobs,
		presigner:  d.Presigner,
		objects:    d.Objects,
		analyzer:   d.Analyzer,
		notifier:   d.Notifier,
		now:        d.Now,
		metricsOut: d.MetricsOut,
	}
	if h.notifier == nil {
		h.notifier = notify.Noop{}
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.metricsOut == nil {
		h.metricsOut = os.Stdout
	}
	return h
}

// HandleS3Event processes the first record of an S3 notification. Extra
// records are logged and ignored.
func (h *Handler) HandleS3Event(ctx context.Context, event events.S3Event) Response {
	if len(event.Records) == 0 {
		err := errors.New("S3 event contains no records")
		log.Error().Err(err).Msg("Nothing to process")
		return failure(err)
	}
	if n := len(event.Records); n > 1 {
		log.Warn().Int("records", n).Msg("S3 event has multiple records — only the first is processed")
	}

	record := event.Records[0]
	resp, _ := h.Process(ctx, record.S3.Bucket.Name, record.S3.Object.Key)
	return resp
}

// Process runs the pipeline for one uploaded object. On failure the job is
// marked failed, the error is returned and the Response carries a 500.
func (h *Handler) Process(ctx context.Context, bucket, key string) (Response, error) {
	start := h.now()
	rec := metrics.NewWithWriter(metrics.Namespace, h.metricsOut)
	defer rec.Flush()

	jobID, filename, err := jobs.ParseKey(key)
	if err != nil {
		rec.Count("JobsFailed")
		jobutil.RecordFailure(nil, h.jobs, err, h.now())
		return failure(err), err
	}

	logger := log.With().Str("jobId", jobID).Str("filename", filename).Logger()
	logger.Info().Str("bucket", bucket).Str("key", key).Msg("Processing video")
	rec.Property("jobId", jobID)

	job := &store.Job{ID: jobID, Filename: filename}
	outcome, err := h.run(ctx, logger, job, bucket, jobs.DecodeKey(key))
	elapsed := h.now().Sub(start)
	rec.Metric("ProcessingMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds)

	if err != nil {
		rec.Count("JobsFailed")
		jobutil.RecordFailure(job, h.jobs, err, h.now())
		h.publishDetached(ctx, logger, job)
		return failure(err), err
	}

	rec.Metric("TreesCut", float64(outcome.Result.TreesCut), metrics.UnitCount).
		Metric("CuttingEvents", float64(len(outcome.Result.Events)), metrics.UnitCount).
		Property("analysisSource", string(outcome.Source))
	if outcome.Degraded() {
		rec.Count("Fallback")
	}

	if err := h.notifier.Publish(ctx, job); err != nil {
		logger.Warn().Err(err).Msg("Failed to publish job completion")
	}

	logger.Info().
		Int("treesCut", outcome.Result.TreesCut).
		Str("analysisSource", string(outcome.Source)).
		Dur("elapsed", elapsed).
		Msg("Video processed")
	return success(jobID), nil
}

func (h *Handler) run(ctx context.Context, logger zerolog.Logger, job *store.Job, bucket, objectKey string) (analysis.Outcome, error) {
	job.Start(h.now())
	if err := h.jobs.PutJob(ctx, job); err != nil {
		return analysis.Outcome{}, fmt.Errorf("record processing status: %w", err)
	}

	videoURL, err := s3util.GeneratePresignedURL(ctx, h.presigner, bucket, objectKey, PresignExpiry)
	if err != nil {
		return analysis.Outcome{}, err
	}

	outcome, err := h.analyzer.Analyze(ctx, videoURL, job.Filename)
	if err != nil {
		return analysis.Outcome{}, err
	}
	if outcome.Degraded() {
		logger.Warn().Str("reason", outcome.FallbackReason).Msg("Report uses placeholder analysis")
	}

	body := report.Render(outcome.Result, job.Filename, h.now())
	outputBucket := jobs.OutputBucket(bucket)
	reportKey := jobs.ReportKey(job.ID)
	if err := s3util.PutText(ctx, h.objects, outputBucket, reportKey, body, report.ContentType); err != nil {
		return analysis.Outcome{}, err
	}

	job.Complete(h.now(), outcome, reportKey)
	if err := h.jobs.PutJob(ctx, job); err != nil {
		return analysis.Outcome{}, fmt.Errorf("record completed status: %w", err)
	}
	return outcome, nil
}

// publishDetached publishes on a context that survives cancellation of ctx.
func (h *Handler) publishDetached(ctx context.Context, logger zerolog.Logger, job *store.Job) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := h.notifier.Publish(ctx, job); err != nil {
		logger.Warn().Err(err).Msg("Failed to publish job failure")
	}
}

func success(jobID string) Response {
	body, _ := json.Marshal(map[string]string{
		"jobId":  jobID,
		"status": string(store.StatusCompleted),
	})
	return Response{StatusCode: 200, Body: string(body)}
}

func failure(err error) Response {
	body, _ := json.Marshal(map[string]string{"error": err.Error()})
	return Response{StatusCode: 500, Body: string(body)}
}
