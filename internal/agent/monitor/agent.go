package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/reddit-agent/internal/config"
	"github.com/reddit-agent/internal/models"
	"github.com/reddit-agent/internal/notify"
	"github.com/reddit-agent/internal/reddit"
	"github.com/reddit-agent/internal/sentiment"
	"github.com/reddit-agent/internal/storage"
	"github.com/reddit-agent/pkg/logger"
)

const maxSnippetLength = 500

// Agent discovers new keyword mentions on Reddit and notifies tenant
// subscribers. Discoveries are deduplicated by source URL, so re-scans
// never re-notify.
type Agent struct {
	redditClient *reddit.Client
	auth         *reddit.Authenticator
	repository   storage.Repository
	classifier   sentiment.Classifier
	notifier     notify.Notifier
	config       config.MonitorConfig
	log          *logger.Logger
	now          func() time.Time

	running atomic.Bool
}

// NewAgent creates a new mention monitor agent
func NewAgent(
	redditClient *reddit.Client,
	auth *reddit.Authenticator,
	repository storage.Repository,
	classifier sentiment.Classifier,
	notifier notify.Notifier,
	monitorConfig config.MonitorConfig,
	log *logger.Logger,
) *Agent {
	return &Agent{
		redditClient: redditClient,
		auth:         auth,
		repository:   repository,
		classifier:   classifier,
		notifier:     notifier,
		config:       monitorConfig,
		log:          log.WithComponent("monitor"),
		now:          time.Now,
	}
}

// CycleResult contains the outcome of one monitoring cycle
type CycleResult struct {
	Skipped         bool // A previous cycle was still running
	KeywordsScanned int
	MentionsFound   int
	Duplicates      int
	Errors          []error
	Duration        time.Duration
}

// RunCycle scans every active keyword once. If a cycle is already in
// flight the invocation is dropped, not queued. A failure on one keyword
// does not stop the remaining keywords.
func (a *Agent) RunCycle(ctx context.Context) (*CycleResult, error) {
	if !a.running.CompareAndSwap(false, true) {
		a.log.Warn().Msg("Monitor cycle still running, skipping this tick")
		return &CycleResult{Skipped: true}, nil
	}
	defer a.running.Store(false)

	startTime := a.now()
	result := &CycleResult{}

	token, err := a.auth.AppToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain app token: %w", err)
	}

	keywords, err := a.repository.GetActiveKeywords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active keywords: %w", err)
	}

	a.log.Info().Int("keywords", len(keywords)).Msg("Starting mention scan")

	for i, keyword := range keywords {
		if ctx.Err() != nil {
			a.log.Warn().Err(ctx.Err()).Msg("Cycle interrupted, remaining keywords wait for the next tick")
			break
		}

		// Space out queries to stay inside the platform's search budget
		if i > 0 && a.config.KeywordDelay > 0 {
			select {
			case <-time.After(a.config.KeywordDelay):
			case <-ctx.Done():
				continue
			}
		}

		found, dups, err := a.scanKeyword(ctx, token, keyword)
		if err != nil {
			a.log.Error().
				Err(err).
				Str("term", keyword.Term).
				Msg("Keyword scan failed")
			result.Errors = append(result.Errors, fmt.Errorf("keyword %q: %w", keyword.Term, err))
			continue
		}

		result.KeywordsScanned++
		result.MentionsFound += found
		result.Duplicates += dups
	}

	result.Duration = time.Since(startTime)

	a.log.Info().
		Int("keywords_scanned", result.KeywordsScanned).
		Int("mentions_found", result.MentionsFound).
		Int("duplicates", result.Duplicates).
		Int("errors", len(result.Errors)).
		Dur("duration", result.Duration).
		Msg("Mention scan completed")

	return result, nil
}

// scanKeyword searches one term, persists new mentions, and bumps the
// keyword's scan marker. The first scan of a keyword uses the wide
// month window for recall; later scans only cover the recent day.
func (a *Agent) scanKeyword(ctx context.Context, token string, keyword *models.TrackedKeyword) (found, duplicates int, err error) {
	log := a.log.WithKeyword(keyword.ID, keyword.Term)

	window := reddit.WindowDay
	if keyword.LastScannedAt == nil {
		window = reddit.WindowMonth
	}

	results, err := a.redditClient.Search(ctx, token, keyword.Term, window, a.config.SearchLimit)
	if err != nil {
		return 0, 0, err
	}

	for _, r := range results {
		mention := &models.Mention{
			TenantID:  keyword.TenantID,
			KeywordID: keyword.ID,
			SourceURL: a.redditClient.PostURL(r.Permalink),
			Title:     r.Title,
			Snippet:   snippet(r.Body),
			Author:    r.Author,
			Subreddit: r.Subreddit,
			Sentiment: a.classifier.Classify(r.Title + "\n\n" + r.Body),
			FoundAt:   a.now(),
		}

		if err := a.repository.CreateMention(ctx, mention); err != nil {
			if errors.Is(err, storage.ErrDuplicateMention) {
				// Expected on re-scan; counted, never surfaced
				duplicates++
				continue
			}
			log.Warn().Err(err).Str("source_url", mention.SourceURL).Msg("Failed to persist mention")
			continue
		}
		found++

		if err := a.notifier.PublishMention(ctx, keyword.TenantID, mention); err != nil {
			// Fire-and-forget: the mention is stored either way
			log.Warn().Err(err).Msg("Failed to publish mention notification")
		}
	}

	// Bump the marker whether or not anything new appeared, so the next
	// cycle narrows its window
	scannedAt := a.now()
	keyword.LastScannedAt = &scannedAt
	if err := a.repository.UpdateKeyword(ctx, keyword); err != nil {
		return found, duplicates, fmt.Errorf("failed to update scan marker: %w", err)
	}

	log.Debug().
		Int("results", len(results)).
		Int("new", found).
		Int("duplicates", duplicates).
		Msg("Keyword scanned")

	return found, duplicates, nil
}

// snippet bounds stored mention bodies
func snippet(text string) string {
	if len(text) <= maxSnippetLength {
		return text
	}
	return text[:maxSnippetLength]
}
