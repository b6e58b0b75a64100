// Package jobutil provides shared helpers for Lambda job lifecycle operations.
package jobutil

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/forest-video-analyzer/internal/store"
)

// FailureTimeout bounds the failure-status write. It runs on a fresh context
// so an expired request context does not also swallow the failure record.
const FailureTimeout = 5 * time.Second

// RecordFailure logs the error and marks the job failed in the store. The
// write is best effort: its own failure is logged and never returned.
// A nil job (the key could not be parsed) is logged only.
func RecordFailure(job *store.Job, jobs store.JobStore, cause error, now time.Time) {
	if job == nil {
		log.Error().Err(cause).Msg("Job failed before a job id was known")
		return
	}
	log.Error().
		Err(cause).
		Str("jobId", job.ID).
		Str("filename", job.Filename).
		Msg("Job failed")

	job.Fail(now, cause.Error())

	ctx, cancel := context.WithTimeout(context.Background(), FailureTimeout)
	defer cancel()
	if err := jobs.PutJob(ctx, job); err != nil {
		log.Error().Err(err).Str("jobId", job.ID).Msg("Failed to record job failure")
		return
	}
	log.Info().Str("jobId", job.ID).Msg("Job failure recorded")
}
