package publisher

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/reddit-agent/internal/models"
	"github.com/reddit-agent/internal/reddit"
	"github.com/reddit-agent/internal/storage"
	"github.com/reddit-agent/internal/tokens"
	"github.com/reddit-agent/pkg/logger"
)

// Agent turns due scheduled posts into Reddit submissions. Items leave a
// cycle as either posted or error; one item's failure never blocks the
// rest of the batch.
type Agent struct {
	redditClient *reddit.Client
	tokens       *tokens.Manager
	repository   storage.Repository
	log          *logger.Logger
	now          func() time.Time

	running atomic.Bool
}

// NewAgent creates a new publish scheduler agent
func NewAgent(
	redditClient *reddit.Client,
	tokenManager *tokens.Manager,
	repository storage.Repository,
	log *logger.Logger,
) *Agent {
	return &Agent{
		redditClient: redditClient,
		tokens:       tokenManager,
		repository:   repository,
		log:          log.WithComponent("publisher"),
		now:          time.Now,
	}
}

// CycleResult contains the outcome of one publish cycle
type CycleResult struct {
	Skipped   bool // A previous cycle was still running
	Due       int
	Published int
	Failed    int
	Errors    []error
	Duration  time.Duration
}

// RunCycle processes every due scheduled post exactly once. If a cycle
// is already in flight the invocation is dropped, not queued.
func (a *Agent) RunCycle(ctx context.Context) (*CycleResult, error) {
	if !a.running.CompareAndSwap(false, true) {
		a.log.Warn().Msg("Publish cycle still running, skipping this tick")
		return &CycleResult{Skipped: true}, nil
	}
	defer a.running.Store(false)

	startTime := a.now()
	result := &CycleResult{}

	posts, err := a.repository.GetDuePosts(ctx, startTime)
	if err != nil {
		return nil, fmt.Errorf("failed to load due posts: %w", err)
	}
	result.Due = len(posts)

	if len(posts) == 0 {
		result.Duration = time.Since(startTime)
		return result, nil
	}

	a.log.Info().Int("due", len(posts)).Msg("Processing due posts")

	for _, post := range posts {
		// A shutdown between items leaves the remainder scheduled for
		// the next process to pick up
		if ctx.Err() != nil {
			a.log.Warn().Err(ctx.Err()).Msg("Cycle interrupted, leaving remaining posts scheduled")
			break
		}

		if err := a.publishOne(ctx, post); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Errorf("post %d: %w", post.ID, err))
		} else {
			result.Published++
		}
	}

	result.Duration = time.Since(startTime)

	a.log.Info().
		Int("published", result.Published).
		Int("failed", result.Failed).
		Dur("duration", result.Duration).
		Msg("Publish cycle completed")

	return result, nil
}

// publishOne moves a single item from scheduled to posted or error. The
// returned error is already persisted on the row; it is reported only
// for the cycle summary.
func (a *Agent) publishOne(ctx context.Context, post *models.ScheduledPost) error {
	log := a.log.WithPostID(post.ID)

	if post.AccountID == nil || post.Account == nil {
		log.Error().Msg("Scheduled post has no linked account")
		return a.fail(ctx, post, errors.New("no linked account"))
	}

	token, err := a.tokens.ValidAccessToken(ctx, post.Account)
	if err != nil {
		log.Error().Err(err).Msg("Could not obtain access token")
		return a.fail(ctx, post, err)
	}

	sub, err := a.redditClient.SubmitSelfPost(ctx, token, post.Subreddit, post.Title, post.Body)
	if err != nil {
		var terr *reddit.TransportError
		if errors.As(err, &terr) {
			// Same item state as a rejection, but alertable separately
			log.Error().Err(err).Str("kind", "transport").Msg("Submission failed")
		} else {
			log.Error().Err(err).Str("kind", "platform").Msg("Submission rejected")
		}
		return a.fail(ctx, post, err)
	}

	post.MarkPosted(sub.Fullname, sub.URL, a.now())
	if err := a.repository.UpdatePost(ctx, post); err != nil {
		log.Error().Err(err).Msg("Failed to persist posted state")
		return err
	}

	log.Info().
		Str("fullname", sub.Fullname).
		Str("url", sub.URL).
		Msg("Post published")

	return nil
}

// fail records the error state on the row and echoes the cause
func (a *Agent) fail(ctx context.Context, post *models.ScheduledPost, cause error) error {
	post.MarkError(cause.Error())
	if err := a.repository.UpdatePost(ctx, post); err != nil {
		return fmt.Errorf("failed to persist error state (%v): %w", cause, err)
	}
	return cause
}
