// Package store persists job status records for the video analysis
// pipeline. Each uploaded video is one Job, keyed by the job ID taken from
// its upload key. Records are written only by the processor Lambda and read
// by the status API.
package store

import (
	"context"
	"time"

	"github.com/fpang/forest-video-analyzer/internal/analysis"
)

// Status is the lifecycle state of a Job.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// JobStore defines the persistence interface for job status records.
//
// GetJob returns (nil, nil) when the job does not exist.
// PutJob performs full-item replacement (upsert semantics).
type JobStore interface {
	PutJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, jobID string) (*Job, error)
}

// Job is one video processing request (DynamoDB partition key = jobId).
type Job struct {
	ID             string                    `json:"jobId" dynamodbav:"jobId"`
	Status         Status                    `json:"status" dynamodbav:"status"`
	Filename       string                    `json:"filename" dynamodbav:"filename"`
	Timestamp      int64                     `json:"timestamp" dynamodbav:"timestamp"`
	StartTime      string                    `json:"startTime,omitempty" dynamodbav:"startTime,omitempty"`
	CompletedTime  string                    `json:"completedTime,omitempty" dynamodbav:"completedTime,omitempty"`
	ErrorTime      string                    `json:"errorTime,omitempty" dynamodbav:"errorTime,omitempty"`
	ReportKey      string                    `json:"reportKey,omitempty" dynamodbav:"reportKey,omitempty"`
	Results        *analysis.AggregateResult `json:"results,omitempty" dynamodbav:"results,omitempty"`
	AnalysisSource analysis.Source           `json:"analysisSource,omitempty" dynamodbav:"analysisSource,omitempty"`
	FallbackReason string                    `json:"fallbackReason,omitempty" dynamodbav:"fallbackReason,omitempty"`
	Error          string                    `json:"error,omitempty" dynamodbav:"error,omitempty"`
}

// Start marks the job processing as of now.
func (j *Job) Start(now time.Time) {
	j.Status = StatusProcessing
	j.Timestamp = now.Unix()
	j.StartTime = formatTime(now)
}

// Complete marks the job completed with its outcome and report location.
func (j *Job) Complete(now time.Time, outcome analysis.Outcome, reportKey string) {
	result := outcome.Result
	j.Status = StatusCompleted
	j.Timestamp = now.Unix()
	j.CompletedTime = formatTime(now)
	j.ReportKey = reportKey
	j.Results = &result
	j.AnalysisSource = outcome.Source
	j.FallbackReason = outcome.FallbackReason
	j.Error = ""
}

// Fail marks the job failed with the given error message. Completion
// fields are cleared, so a failed record never carries a report or results.
func (j *Job) Fail(now time.Time, errMsg string) {
	j.Status = StatusFailed
	j.Timestamp = now.Unix()
	j.ErrorTime = formatTime(now)
	j.Error = errMsg
	j.CompletedTime = ""
	j.ReportKey = ""
	j.Results = nil
	j.AnalysisSource = ""
	j.FallbackReason = ""
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
