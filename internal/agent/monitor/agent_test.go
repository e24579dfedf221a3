package monitor

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/reddit-agent/internal/config"
	"github.com/reddit-agent/internal/models"
	"github.com/reddit-agent/internal/reddit"
	"github.com/reddit-agent/internal/sentiment"
	"github.com/reddit-agent/internal/storage"
	"github.com/reddit-agent/internal/storage/gormdb"
	"github.com/reddit-agent/pkg/logger"
	"github.com/reddit-agent/pkg/ratelimit"
)

// recordingNotifier captures published mentions for assertions
type recordingNotifier struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	TenantID uint
	Mention  *models.Mention
}

func (n *recordingNotifier) PublishMention(ctx context.Context, tenantID uint, mention *models.Mention) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, publishedEvent{TenantID: tenantID, Mention: mention})
	return nil
}

func (n *recordingNotifier) all() []publishedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]publishedEvent(nil), n.events...)
}

type fixture struct {
	repo     *gormdb.Repository
	notifier *recordingNotifier
	agent    *Agent

	mu      sync.Mutex
	queries []string // Captured t= windows per search, in order
}

// newFixture wires a monitor against an in-memory store and a stubbed
// search endpoint. searchFor maps a term to its response body; terms
// mapped to "" return HTTP 500.
func newFixture(t *testing.T, searchFor map[string]string) *fixture {
	t.Helper()

	repo, err := gormdb.New("sqlite", "file::memory:?cache=shared&mon"+t.Name())
	require.NoError(t, err)
	require.NoError(t, repo.Migrate())
	t.Cleanup(func() { repo.Close() })

	f := &fixture{repo: repo, notifier: &recordingNotifier{}}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"app-token","token_type":"bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		term := strings.Trim(r.URL.Query().Get("q"), `"`)
		f.mu.Lock()
		f.queries = append(f.queries, term+"/"+r.URL.Query().Get("t"))
		f.mu.Unlock()

		body, ok := searchFor[term]
		if !ok || body == "" {
			http.Error(w, "search unavailable", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(body))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	log := logger.Default()
	limiter := ratelimit.NewMultiLimiter()
	limiter.AddLimiter(ratelimit.LimiterSearch, 1000, 1000)

	redditCfg := config.RedditConfig{ClientID: "id", ClientSecret: "secret", UserAgent: "reddit-agent/test"}
	client := reddit.NewClient(redditCfg, limiter, log)
	client.APIBase = server.URL

	auth := reddit.NewAuthenticator(redditCfg, log)
	auth.TokenURL = server.URL + "/api/v1/access_token"

	f.agent = NewAgent(client, auth, repo, sentiment.NewLexicon(), f.notifier,
		config.MonitorConfig{SearchLimit: 25, KeywordDelay: 0}, log)
	return f
}

func (f *fixture) windows() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

func (f *fixture) keyword(t *testing.T, tenantID uint, term string) *models.TrackedKeyword {
	t.Helper()
	kw := &models.TrackedKeyword{TenantID: tenantID, Term: term, Active: true}
	require.NoError(t, f.repo.CreateKeyword(context.Background(), kw))
	return kw
}

const acmeListing = `{"data":{"children":[
	{"data":{"permalink":"/r/test/1","title":"I love acme","selftext":"","author":"alice","subreddit":"test","created_utc":1700000000}}
]}}`

func TestRunCycle_DiscoversAndNotifies(t *testing.T) {
	f := newFixture(t, map[string]string{"acme": acmeListing})
	kw := f.keyword(t, 7, "acme")

	result, err := f.agent.RunCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.KeywordsScanned)
	require.Equal(t, 1, result.MentionsFound)
	require.Empty(t, result.Errors)

	ctx := context.Background()
	mentions, err := f.repo.ListMentions(ctx, storage.MentionFilter{})
	require.NoError(t, err)
	require.Len(t, mentions, 1)
	require.True(t, strings.HasSuffix(mentions[0].SourceURL, "/r/test/1"))
	require.Equal(t, models.SentimentPositive, mentions[0].Sentiment)
	require.Equal(t, uint(7), mentions[0].TenantID)
	require.Equal(t, kw.ID, mentions[0].KeywordID)

	events := f.notifier.all()
	require.Len(t, events, 1)
	require.Equal(t, uint(7), events[0].TenantID)
	require.Equal(t, mentions[0].SourceURL, events[0].Mention.SourceURL)

	// Scan marker set even though this was the keyword's first pass
	keywords, err := f.repo.ListKeywords(ctx)
	require.NoError(t, err)
	require.NotNil(t, keywords[0].LastScannedAt)
}

func TestRunCycle_DedupIdempotence(t *testing.T) {
	f := newFixture(t, map[string]string{"acme": acmeListing})
	f.keyword(t, 1, "acme")

	first, err := f.agent.RunCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, first.MentionsFound)

	// Identical results the second time around: no new rows, no
	// re-notification
	second, err := f.agent.RunCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, second.MentionsFound)
	require.Equal(t, 1, second.Duplicates)

	count, err := f.repo.CountMentions(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
	require.Len(t, f.notifier.all(), 1)
}

func TestRunCycle_WindowAdaptivity(t *testing.T) {
	f := newFixture(t, map[string]string{"acme": acmeListing})
	f.keyword(t, 1, "acme")

	_, err := f.agent.RunCycle(context.Background())
	require.NoError(t, err)
	_, err = f.agent.RunCycle(context.Background())
	require.NoError(t, err)

	// Cold start scans a month back; steady state only the recent day
	require.Equal(t, []string{"acme/month", "acme/day"}, f.windows())
}

func TestRunCycle_IsolatesKeywordFailures(t *testing.T) {
	empty := `{"data":{"children":[]}}`
	f := newFixture(t, map[string]string{
		"alpha": empty,
		"beta":  "", // Responds 500
		"gamma": empty,
	})
	f.keyword(t, 1, "alpha")
	f.keyword(t, 1, "beta")
	f.keyword(t, 1, "gamma")

	result, err := f.agent.RunCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, result.KeywordsScanned)
	require.Len(t, result.Errors, 1)
	require.Contains(t, result.Errors[0].Error(), "beta")

	keywords, err := f.repo.ListKeywords(context.Background())
	require.NoError(t, err)

	byTerm := map[string]*models.TrackedKeyword{}
	for _, kw := range keywords {
		byTerm[kw.Term] = kw
	}
	require.NotNil(t, byTerm["alpha"].LastScannedAt)
	require.Nil(t, byTerm["beta"].LastScannedAt)
	require.NotNil(t, byTerm["gamma"].LastScannedAt)
}

func TestRunCycle_InactiveKeywordsIgnored(t *testing.T) {
	f := newFixture(t, map[string]string{"acme": acmeListing})
	kw := &models.TrackedKeyword{TenantID: 1, Term: "acme", Active: false}
	require.NoError(t, f.repo.CreateKeyword(context.Background(), kw))

	result, err := f.agent.RunCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, result.KeywordsScanned)
	require.Empty(t, f.windows())
}

func TestRunCycle_KeywordDelayHonorsCancellation(t *testing.T) {
	empty := `{"data":{"children":[]}}`
	f := newFixture(t, map[string]string{"alpha": empty, "beta": empty})
	f.keyword(t, 1, "alpha")
	f.keyword(t, 1, "beta")

	f.agent.config.KeywordDelay = 5 * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := f.agent.RunCycle(ctx)
	require.NoError(t, err)
	require.Less(t, time.Since(start), 3*time.Second)
}
