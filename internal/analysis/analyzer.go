package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/fpang/forest-video-analyzer/internal/config"
	"github.com/fpang/forest-video-analyzer/internal/twelvelabs"
)

// Indexer is the subset of the TwelveLabs client the analyzer drives.
type Indexer interface {
	CreateTask(ctx context.Context, videoURL, indexID, language string) (string, error)
	WaitForTask(ctx context.Context, taskID string, policy twelvelabs.PollPolicy) (string, error)
	Search(ctx context.Context, query, indexID, videoID string) ([]byte, error)
}

// reasonNotConfigured is the fallback reason when no credentials exist.
const reasonNotConfigured = "indexer not configured"

// Analyzer runs the fixed analysis pipeline for one video:
// submit → wait for ready → run DefaultQueries → reduce.
type Analyzer struct {
	indexer         Indexer
	reducer         *Reducer
	queries         []Query
	indexID         string
	language        string
	poll            twelvelabs.PollPolicy
	fallbackOnError bool
}

// NewAnalyzer builds an Analyzer from configuration. When the indexer is
// configured and indexer is nil, a TwelveLabs client is created from cfg.
// When the indexer is not configured every analysis is a fallback.
func NewAnalyzer(cfg config.Config, indexer Indexer, reducer *Reducer) *Analyzer {
	if indexer == nil && cfg.Indexer.Configured() {
		indexer = twelvelabs.NewClient(cfg.Indexer.APIKey, cfg.Indexer.BaseURL)
	}
	if !cfg.Indexer.Configured() {
		indexer = nil
	}
	if reducer == nil {
		reducer = NewReducer(nil, nil)
	}
	return &Analyzer{
		indexer:  indexer,
		reducer:  reducer,
		queries:  DefaultQueries,
		indexID:  cfg.Indexer.IndexID,
		language: cfg.Indexer.Language,
		poll: twelvelabs.PollPolicy{
			Initial: cfg.Indexer.PollInterval,
			Max:     cfg.Indexer.PollMaxInterval,
			Timeout: cfg.Indexer.PollTimeout,
		},
		fallbackOnError: cfg.FallbackOnError,
	}
}

// Configured reports whether real analysis can run.
func (a *Analyzer) Configured() bool {
	return a.indexer != nil
}

// Analyze returns the aggregate result for the video at videoURL.
//
// Indexing-service failures resolve to a fallback Outcome when fallback is
// enabled, and to an error otherwise. Cancellation of ctx is always an error.
func (a *Analyzer) Analyze(ctx context.Context, videoURL, filename string) (Outcome, error) {
	logger := log.With().Str("filename", filename).Logger()

	if a.indexer == nil {
		logger.Warn().Msg("Indexer not configured — serving mock results")
		return fallback(reasonNotConfigured), nil
	}

	result, err := a.run(ctx, videoURL, filename)
	if err == nil {
		return Outcome{Result: result, Source: SourceIndexer}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Outcome{}, fmt.Errorf("analysis interrupted: %w", errors.Join(ctxErr, err))
	}
	if !a.fallbackOnError {
		return Outcome{}, fmt.Errorf("TwelveLabs analysis failed: %w", err)
	}
	logger.Error().Err(err).Msg("TwelveLabs analysis failed — serving mock results")
	return fallback(err.Error()), nil
}

func (a *Analyzer) run(ctx context.Context, videoURL, filename string) (AggregateResult, error) {
	logger := log.With().Str("filename", filename).Logger()

	// submitting
	taskID, err := a.indexer.CreateTask(ctx, videoURL, a.indexID, a.language)
	if err != nil {
		return AggregateResult{}, fmt.Errorf("upload failed: %w", err)
	}

	// awaiting_ready
	videoID, err := a.indexer.WaitForTask(ctx, taskID, a.poll)
	if err != nil {
		return AggregateResult{}, fmt.Errorf("wait for task %s: %w", taskID, err)
	}

	// querying
	var result AggregateResult
	for _, q := range a.queries {
		body, err := a.indexer.Search(ctx, q.Text, a.indexID, videoID)
		if err != nil {
			if ctx.Err() != nil {
				return AggregateResult{}, err
			}
			logger.Warn().Err(err).Str("query", q.Kind.String()).Str("videoId", videoID).Msg("Search query failed — skipping")
			continue
		}
		result = a.reducer.Apply(result, q, body)
	}

	// done
	result = result.Finalize()
	logger.Info().
		Str("taskId", taskID).
		Str("videoId", videoID).
		Int("treesCut", result.TreesCut).
		Strs("species", result.SpeciesDetected).
		Msg("TwelveLabs analysis complete")
	return result, nil
}

func fallback(reason string) Outcome {
	return Outcome{Result: MockResult(), Source: SourceFallback, FallbackReason: reason}
}
