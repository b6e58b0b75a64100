package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/forest-video-analyzer/internal/config"
	"github.com/fpang/forest-video-analyzer/internal/jobs"
	"github.com/fpang/forest-video-analyzer/internal/lambdaboot"
	"github.com/fpang/forest-video-analyzer/internal/logging"
	"github.com/fpang/forest-video-analyzer/internal/s3util"
	"github.com/fpang/forest-video-analyzer/internal/store"
)

// EnvInputBucket names the upload bucket used by submit.
const EnvInputBucket = "INPUT_BUCKET_NAME"

var (
	bucketFlag string
	fileFlag   string
	jobIDFlag  string
	waitFlag   bool
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Upload a video to the input bucket and start a processing job",
	Long: `Submit uploads a local video to {jobId}/{filename} in the input bucket, which
triggers the video processor Lambda. The job id is printed on stdout.

Examples:
  forest-cli submit --file ./north-ridge.mp4 --bucket forest-input-prod
  forest-cli submit --file ./north-ridge.mp4 --wait`,
	Run: runSubmit,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status record of a processing job",
	Run:   runStatus,
}

func init() {
	submitCmd.Flags().StringVarP(&fileFlag, "file", "f", "", "Local video file to upload")
	submitCmd.Flags().StringVarP(&bucketFlag, "bucket", "b", logging.EnvOrDefault(EnvInputBucket, ""), "Input bucket (default $"+EnvInputBucket+")")
	submitCmd.Flags().BoolVar(&waitFlag, "wait", false, "Poll the jobs table until the job finishes")
	submitCmd.MarkFlagRequired("file")

	statusCmd.Flags().StringVar(&jobIDFlag, "job-id", "", "Job id returned by submit")
	statusCmd.MarkFlagRequired("job-id")

	rootCmd.AddCommand(submitCmd, statusCmd)
}

func runSubmit(cmd *cobra.Command, args []string) {
	logging.Init()
	if bucketFlag == "" {
		log.Fatal().Str("envVar", EnvInputBucket).Msg("Input bucket is required (--bucket)")
	}

	awsClients := lambdaboot.InitAWS()
	s3s := lambdaboot.InitS3(awsClients.Config)

	jobID := jobs.GenerateID("")
	key := jobID + "/" + filepath.Base(fileFlag)
	ctx := cmd.Context()

	if err := s3util.PutFile(ctx, s3s.Client, bucketFlag, key, fileFlag); err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}
	log.Info().Str("jobId", jobID).Str("key", key).Msg("Video submitted")
	fmt.Fprintln(cmd.OutOrStdout(), jobID)

	if !waitFlag {
		return
	}
	jobStore := lambdaboot.InitDynamo(awsClients.Config, logging.EnvOrDefault(config.EnvJobsTable, config.DefaultJobsTable))
	job, err := waitForJob(ctx, jobStore, jobID, 15*time.Second)
	if err != nil {
		log.Fatal().Err(err).Str("jobId", jobID).Msg("Failed waiting for job")
	}
	printJob(cmd, job)
}

func runStatus(cmd *cobra.Command, args []string) {
	logging.Init()
	awsClients := lambdaboot.InitAWS()
	jobStore := lambdaboot.InitDynamo(awsClients.Config, logging.EnvOrDefault(config.EnvJobsTable, config.DefaultJobsTable))

	job, err := jobStore.GetJob(cmd.Context(), jobIDFlag)
	if err != nil {
		log.Fatal().Err(err).Str("jobId", jobIDFlag).Msg("Failed to read job")
	}
	if job == nil {
		log.Fatal().Str("jobId", jobIDFlag).Msg("Job not found")
	}
	printJob(cmd, job)
}

// waitForJob polls the store until the job reaches a terminal status.
func waitForJob(ctx context.Context, jobStore store.JobStore, jobID string, interval time.Duration) (*store.Job, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		job, err := jobStore.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job != nil && job.Status != store.StatusProcessing {
			return job, nil
		}
		status := "pending"
		if job != nil {
			status = string(job.Status)
		}
		log.Info().Str("jobId", jobID).Str("status", status).Msg("Waiting for job")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func printJob(cmd *cobra.Command, job *store.Job) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job:      %s\n", job.ID)
	fmt.Fprintf(out, "Status:   %s\n", job.Status)
	fmt.Fprintf(out, "Video:    %s\n", job.Filename)
	if job.Results != nil {
		fmt.Fprintf(out, "Trees:    %d\n", job.Results.TreesCut)
	}
	if job.AnalysisSource != "" {
		fmt.Fprintf(out, "Source:   %s\n", job.AnalysisSource)
	}
	if job.FallbackReason != "" {
		fmt.Fprintf(out, "Fallback: %s\n", job.FallbackReason)
	}
	if job.ReportKey != "" {
		fmt.Fprintf(out, "Report:   %s\n", job.ReportKey)
	}
	if job.Error != "" {
		fmt.Fprintf(out, "Error:    %s\n", job.Error)
	}
}
