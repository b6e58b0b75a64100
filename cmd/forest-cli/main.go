package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/forest-video-analyzer/internal/analysis"
	"github.com/fpang/forest-video-analyzer/internal/auth"
	"github.com/fpang/forest-video-analyzer/internal/config"
	"github.com/fpang/forest-video-analyzer/internal/logging"
	"github.com/fpang/forest-video-analyzer/internal/report"
)

// CLI flags
var (
	videoURLFlag string
	filenameFlag string
	outputFlag   string
	mockFlag     bool
)

// rootCmd is the main Cobra command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "forest-cli",
	Short: "Forest harvesting video analysis",
	Long: `Forest CLI runs the tree-cutting analysis used by the video processor Lambda
against a single video URL and prints the harvesting report.

TwelveLabs credentials are read from TWELVELABS_INDEX_ID and either
TWELVELABS_API_KEY or the GPG-encrypted ~/.forest-video-analyzer/twelvelabs.gpg.
Without them, or with --mock, the report uses placeholder results.`,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a video and print its harvesting report",
	Long: `Analyze submits a publicly reachable video URL for indexing, runs the cutting,
count, and species searches, and renders the report.

Examples:
  forest-cli analyze --video-url https://example.com/north-ridge.mp4
  forest-cli analyze --video-url "$URL" --filename north-ridge.mp4 --output report.txt
  forest-cli analyze --video-url "$URL" --mock`,
	Run: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&videoURLFlag, "video-url", "", "URL the indexing service can fetch the video from")
	analyzeCmd.Flags().StringVar(&filenameFlag, "filename", "", "Video name shown in the report (default: last URL path segment)")
	analyzeCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Write the report to this file instead of stdout")
	analyzeCmd.Flags().BoolVar(&mockFlag, "mock", false, "Skip the indexing service and use placeholder results")
	analyzeCmd.MarkFlagRequired("video-url")
	rootCmd.AddCommand(analyzeCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func runAnalyze(cmd *cobra.Command, args []string) {
	logging.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	switch {
	case mockFlag:
		cfg = cfg.WithAPIKey("")
	case !cfg.Indexer.Configured() && cfg.Indexer.IndexID != "":
		key, err := auth.GetAPIKey()
		if err != nil {
			log.Warn().Err(err).Msg("No TwelveLabs API key — report will use placeholder results")
			break
		}
		cfg = cfg.WithAPIKey(key)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	filename := filenameFlag
	if filename == "" {
		filename = filenameFromURL(videoURLFlag)
	}

	analyzer := analysis.NewAnalyzer(cfg, nil, nil)
	start := time.Now()
	outcome, err := analyzer.Analyze(cmd.Context(), videoURLFlag, filename)
	if err != nil {
		log.Fatal().Err(err).Msg("Analysis failed")
	}

	evt := log.Info().
		Str("analysisSource", string(outcome.Source)).
		Int("treesCut", outcome.Result.TreesCut).
		Dur("elapsed", time.Since(start))
	if outcome.Degraded() {
		evt = evt.Str("fallbackReason", outcome.FallbackReason)
	}
	evt.Msg("Analysis complete")

	body := report.Render(outcome.Result, filename, time.Now())
	if outputFlag == "" {
		fmt.Fprintln(cmd.OutOrStdout(), body)
		return
	}
	if err := os.WriteFile(outputFlag, []byte(body), 0o644); err != nil {
		log.Fatal().Err(err).Str("path", outputFlag).Msg("Failed to write report")
	}
	log.Info().Str("path", outputFlag).Msg("Report written")
}

// filenameFromURL returns the last path segment of rawURL, or "video" when
// it has none.
func filenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "video"
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" || base == "" {
		return "video"
	}
	return base
}
