// Package main provides the Lambda entry point for video analysis.
//
// This Lambda is triggered by S3 ObjectCreated events on the input bucket
// for keys of the form {jobId}/{filename}. For each upload it:
//
//  1. Records the job as processing in DynamoDB
//  2. Presigns the upload (2h) and runs the TwelveLabs analysis
//  3. Renders the text report into the output bucket at {jobId}/report.txt
//  4. Records the job as completed (or failed) and emits a job event
//
// Memory: 256 MB
// Timeout: 15 minutes
package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/fpang/forest-video-analyzer/internal/analysis"
	"github.com/fpang/forest-video-analyzer/internal/lambdaboot"
	"github.com/fpang/forest-video-analyzer/internal/logging"
	"github.com/fpang/forest-video-analyzer/internal/processor"
)

var coldStart = true

var videoHandler *processor.Handler

func init() {
	initStart := time.Now()
	logging.Init()

	awsClients := lambdaboot.InitAWS()
	cfg := lambdaboot.LoadConfig(awsClients.SSM)
	s3s := lambdaboot.InitS3(awsClients.Config)
	jobStore := lambdaboot.InitDynamo(awsClients.Config, cfg.JobsTable)
	notifier := lambdaboot.InitNotifier(awsClients.Config, cfg.EventBus)
	analyzer := analysis.NewAnalyzer(cfg, nil, nil)

	videoHandler = processor.NewHandler(processor.Deps{
		Jobs:      jobStore,
		Presigner: s3s.Presigner,
		Objects:   s3s.Client,
		Analyzer:  analyzer,
		Notifier:  notifier,
	})

	lambdaboot.StartupLog("video-processor-lambda", initStart).
		DynamoTable("jobs", cfg.JobsTable).
		SSMParam("twelvelabsApiKey", lambdaboot.KeyParam()).
		EventBus("jobEvents", cfg.EventBus).
		Feature("indexer", analyzer.Configured()).
		Feature("fallbackOnError", cfg.FallbackOnError).
		Feature("notifications", cfg.EventBus != "").
		Config("indexId", cfg.Indexer.IndexID).
		Config("baseUrl", cfg.Indexer.BaseURL).
		Config("pollTimeout", cfg.Indexer.PollTimeout.String()).
		Log()
}

func main() {
	lambda.Start(handler)
}

// handler never returns an error so that S3 does not redeliver the event;
// failures are reported in the Response and recorded on the job.
func handler(ctx context.Context, s3Event events.S3Event) (processor.Response, error) {
	if coldStart {
		coldStart = false
		log.Info().Str("function", "video-processor-lambda").Msg("Cold start — first invocation")
	}
	return videoHandler.HandleS3Event(ctx, s3Event), nil
}
