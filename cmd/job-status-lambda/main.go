// Package main provides the Lambda entry point for the job status API.
//
// Served through an API Gateway HTTP API:
//   - GET /api/jobs/{jobId}         job record from DynamoDB
//   - GET /api/jobs/{jobId}/report  short-lived presigned report URL
//
// This Lambda only reads: DynamoDB GetItem and S3 presign on the output bucket.
package main

import (
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"

	"github.com/fpang/forest-video-analyzer/internal/config"
	"github.com/fpang/forest-video-analyzer/internal/lambdaboot"
	"github.com/fpang/forest-video-analyzer/internal/logging"
	"github.com/fpang/forest-video-analyzer/internal/statusapi"
)

var statusHandler *statusapi.Handler

func init() {
	initStart := time.Now()
	logging.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if cfg.OutputBucket == "" {
		log.Warn().Str("envVar", config.EnvOutputBucket).Msg("Output bucket not set — report links disabled")
	}

	awsClients := lambdaboot.InitAWS()
	s3s := lambdaboot.InitS3(awsClients.Config)
	jobStore := lambdaboot.InitDynamo(awsClients.Config, cfg.JobsTable)
	statusHandler = statusapi.NewHandler(jobStore, s3s.Presigner, cfg.OutputBucket)

	lambdaboot.StartupLog("job-status-lambda", initStart).
		S3Bucket("output", cfg.OutputBucket).
		DynamoTable("jobs", cfg.JobsTable).
		Config("reportUrlExpiry", statusapi.ReportURLExpiry.String()).
		Log()
}

func main() {
	mux := http.NewServeMux()
	mux.Handle(statusapi.Prefix, statusHandler)

	adapter := httpadapter.NewV2(mux)
	lambda.Start(adapter.ProxyWithContext)
}
