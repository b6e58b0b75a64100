package twelvelabs

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// PollPolicy bounds WaitForTask. Intervals grow exponentially from Initial
// up to Max; the whole wait gives up after Timeout.
type PollPolicy struct {
	Initial time.Duration
	Max     time.Duration
	Timeout time.Duration
}

// DefaultPollPolicy matches the service's typical indexing latency.
var DefaultPollPolicy = PollPolicy{
	Initial: 10 * time.Second,
	Max:     60 * time.Second,
	Timeout: 10 * time.Minute,
}

// WaitForTask polls the task until it is ready and returns its video id.
// A failed task returns *TaskFailedError. Transient status errors are
// logged and retried until the deadline, after which ErrPollTimeout is
// returned (wrapping the last transient error, if any).
func (c *Client) WaitForTask(ctx context.Context, taskID string, policy PollPolicy) (string, error) {
	if policy.Initial <= 0 {
		policy = DefaultPollPolicy
	}
	if policy.Max < policy.Initial {
		policy.Max = policy.Initial
	}

	deadline := time.Now().Add(policy.Timeout)
	interval := policy.Initial
	attempt := 0
	var lastErr error

	for {
		attempt++
		state, err := c.TaskStatus(ctx, taskID)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = err
			log.Warn().Err(err).Str("taskId", taskID).Int("attempt", attempt).Msg("Task status poll error, retrying")
		} else {
			switch state.Status {
			case StatusReady:
				log.Info().Str("taskId", taskID).Str("videoId", state.VideoID).Int("attempts", attempt).Msg("TwelveLabs task ready")
				return state.VideoID, nil
			case StatusFailed:
				reason := state.Error
				if reason == "" {
					reason = "Unknown error"
				}
				return "", &TaskFailedError{TaskID: taskID, Reason: reason}
			default:
				log.Debug().Str("taskId", taskID).Str("status", state.Status).Dur("nextPoll", interval).Msg("Task still indexing")
			}
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			if lastErr != nil {
				return "", fmt.Errorf("task %s after %d attempts: %w (last error: %v)", taskID, attempt, ErrPollTimeout, lastErr)
			}
			return "", fmt.Errorf("task %s after %d attempts: %w", taskID, attempt, ErrPollTimeout)
		}

		wait := interval
		if wait > remaining {
			wait = remaining
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}

		interval *= 2
		if interval > policy.Max {
			interval = policy.Max
		}
	}
}
