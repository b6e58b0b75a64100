// Package notify publishes job lifecycle events to EventBridge so downstream
// consumers can react to finished reports without polling the jobs table.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	eventbridgetypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/rs/zerolog/log"

	"github.com/fpang/forest-video-analyzer/internal/store"
)

const (
	Source = "forest-video-analyzer"

	DetailJobCompleted = "JobCompleted"
	DetailJobFailed    = "JobFailed"
)

// Notifier publishes a terminal job state.
type Notifier interface {
	Publish(ctx context.Context, job *store.Job) error
}

// EventsAPI is the subset of the EventBridge client used by EventBridge.
type EventsAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Detail is the event payload.
type Detail struct {
	JobID          string `json:"jobId"`
	Status         string `json:"status"`
	Filename       string `json:"filename"`
	ReportKey      string `json:"reportKey,omitempty"`
	TreesCut       *int   `json:"treesCut,omitempty"`
	AnalysisSource string `json:"analysisSource,omitempty"`
	Error          string `json:"error,omitempty"`
}

// EventBridge publishes to a named event bus.
type EventBridge struct {
	client  EventsAPI
	busName string
}

var _ Notifier = (*EventBridge)(nil)

func NewEventBridge(client EventsAPI, busName string) *EventBridge {
	return &EventBridge{client: client, busName: busName}
}

// DetailFor builds the event detail type and payload for a job.
func DetailFor(job *store.Job) (string, Detail) {
	d := Detail{
		JobID:          job.ID,
		Status:         string(job.Status),
		Filename:       job.Filename,
		ReportKey:      job.ReportKey,
		AnalysisSource: string(job.AnalysisSource),
		Error:          job.Error,
	}
	if job.Results != nil {
		n := job.Results.TreesCut
		d.TreesCut = &n
	}
	if job.Status == store.StatusFailed {
		return DetailJobFailed, d
	}
	return DetailJobCompleted, d
}

func (e *EventBridge) Publish(ctx context.Context, job *store.Job) error {
	detailType, detail := DetailFor(job)
	body, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", detailType, err)
	}

	result, err := e.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []eventbridgetypes.PutEventsRequestEntry{
			{
				EventBusName: aws.String(e.busName),
				Source:       aws.String(Source),
				DetailType:   aws.String(detailType),
				Detail:       aws.String(string(body)),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("PutEvents: %w", err)
	}

	if result.FailedEntryCount > 0 {
		for i, entry := range result.Entries {
			if entry.ErrorCode != nil || entry.ErrorMessage != nil {
				return fmt.Errorf("PutEvents entry %d failed: %s - %s", i, aws.ToString(entry.ErrorCode), aws.ToString(entry.ErrorMessage))
			}
		}
	}

	log.Debug().Str("jobId", job.ID).Str("detailType", detailType).Msg("Job event emitted to EventBridge")
	return nil
}

// Noop discards every event. Used when no event bus is configured.
type Noop struct{}

func (Noop) Publish(context.Context, *store.Job) error { return nil }
