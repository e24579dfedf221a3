package analytics

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/reddit-agent/internal/config"
	"github.com/reddit-agent/internal/models"
	"github.com/reddit-agent/internal/reddit"
	"github.com/reddit-agent/internal/storage"
	"github.com/reddit-agent/pkg/logger"
)

// Agent keeps engagement counters for posted items fresh by batching
// their ids through Reddit's info endpoint and appending snapshots.
type Agent struct {
	redditClient *reddit.Client
	auth         *reddit.Authenticator
	repository   storage.Repository
	config       config.AnalyticsConfig
	log          *logger.Logger
	now          func() time.Time

	running atomic.Bool
}

// NewAgent creates a new analytics refresher agent
func NewAgent(
	redditClient *reddit.Client,
	auth *reddit.Authenticator,
	repository storage.Repository,
	analyticsConfig config.AnalyticsConfig,
	log *logger.Logger,
) *Agent {
	return &Agent{
		redditClient: redditClient,
		auth:         auth,
		repository:   repository,
		config:       analyticsConfig,
		log:          log.WithComponent("analytics"),
		now:          time.Now,
	}
}

// CycleResult contains the outcome of one refresh cycle
type CycleResult struct {
	Skipped   bool // A previous cycle was still running
	Posts     int
	Refreshed int
	Duration  time.Duration
}

// RunCycle refreshes engagement counters for every posted item. A failed
// batch call abandons the rest of the cycle; the next tick retries from
// scratch, so no partial-batch bookkeeping is kept.
func (a *Agent) RunCycle(ctx context.Context) (*CycleResult, error) {
	if !a.running.CompareAndSwap(false, true) {
		a.log.Warn().Msg("Analytics cycle still running, skipping this tick")
		return &CycleResult{Skipped: true}, nil
	}
	defer a.running.Store(false)

	startTime := a.now()
	result := &CycleResult{}

	token, err := a.auth.AppToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain app token: %w", err)
	}

	posts, err := a.repository.GetPostedWithRedditID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load posted items: %w", err)
	}
	result.Posts = len(posts)

	if len(posts) == 0 {
		result.Duration = time.Since(startTime)
		return result, nil
	}

	batchSize := a.config.BatchSize
	if batchSize < 1 || batchSize > reddit.MaxInfoBatch {
		batchSize = reddit.MaxInfoBatch
	}

	for start := 0; start < len(posts); start += batchSize {
		if ctx.Err() != nil {
			a.log.Warn().Err(ctx.Err()).Msg("Cycle interrupted")
			break
		}

		end := start + batchSize
		if end > len(posts) {
			end = len(posts)
		}
		batch := posts[start:end]

		fullnames := make([]string, len(batch))
		for i, p := range batch {
			fullnames[i] = p.RedditPostID
		}

		infos, err := a.redditClient.Info(ctx, token, fullnames)
		if err != nil {
			// Abandon the cycle; the next tick retries everything
			return result, fmt.Errorf("info batch failed: %w", err)
		}

		capturedAt := a.now()
		for _, post := range batch {
			info, ok := infos[post.RedditPostID]
			if !ok {
				a.log.Debug().
					Uint("post_id", post.ID).
					Str("fullname", post.RedditPostID).
					Msg("Post missing from info response, possibly removed")
				continue
			}

			if err := a.repository.CreateSnapshot(ctx, &models.EngagementSnapshot{
				PostID:       post.ID,
				Score:        info.Score,
				CommentCount: info.CommentCount,
				CapturedAt:   capturedAt,
			}); err != nil {
				a.log.Warn().Err(err).Uint("post_id", post.ID).Msg("Failed to write snapshot")
				continue
			}

			post.StatsRefreshedAt = &capturedAt
			if err := a.repository.UpdatePost(ctx, post); err != nil {
				a.log.Warn().Err(err).Uint("post_id", post.ID).Msg("Failed to update refresh marker")
				continue
			}
			result.Refreshed++
		}
	}

	result.Duration = time.Since(startTime)

	a.log.Info().
		Int("posts", result.Posts).
		Int("refreshed", result.Refreshed).
		Dur("duration", result.Duration).
		Msg("Analytics cycle completed")

	return result, nil
}
