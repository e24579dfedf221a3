package publisher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/reddit-agent/internal/config"
	"github.com/reddit-agent/internal/models"
	"github.com/reddit-agent/internal/reddit"
	"github.com/reddit-agent/internal/storage/gormdb"
	"github.com/reddit-agent/internal/tokens"
	"github.com/reddit-agent/internal/vault"
	"github.com/reddit-agent/pkg/logger"
	"github.com/reddit-agent/pkg/ratelimit"
)

type fixture struct {
	repo  *gormdb.Repository
	vault *vault.Vault
	agent *Agent
}

// newFixture wires an agent against an in-memory store and a stubbed
// Reddit API
func newFixture(t *testing.T, submitHandler http.HandlerFunc) *fixture {
	t.Helper()

	repo, err := gormdb.New("sqlite", "file::memory:?cache=shared&pub"+t.Name())
	require.NoError(t, err)
	require.NoError(t, repo.Migrate())
	t.Cleanup(func() { repo.Close() })

	v, err := vault.New([]byte("0123456789abcdef0123456789abcdef"), []byte("abcdef9876543210"))
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/submit", submitHandler)
	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"refreshed","token_type":"bearer","expires_in":3600}`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	log := logger.Default()
	limiter := ratelimit.NewMultiLimiter()
	limiter.AddLimiter(ratelimit.LimiterSubmit, 1000, 1000)

	redditCfg := config.RedditConfig{ClientID: "id", ClientSecret: "secret", UserAgent: "reddit-agent/test"}
	client := reddit.NewClient(redditCfg, limiter, log)
	client.APIBase = server.URL

	auth := reddit.NewAuthenticator(redditCfg, log)
	auth.TokenURL = server.URL + "/api/v1/access_token"

	manager := tokens.NewManager(v, auth, repo, log)

	return &fixture{
		repo:  repo,
		vault: v,
		agent: NewAgent(client, manager, repo, log),
	}
}

func (f *fixture) account(t *testing.T, expiresAt time.Time) *models.Account {
	t.Helper()
	access, err := f.vault.Encrypt("valid-access")
	require.NoError(t, err)
	refresh, err := f.vault.Encrypt("valid-refresh")
	require.NoError(t, err)

	account := &models.Account{
		TenantID:       1,
		Username:       "poster",
		AccessToken:    access,
		RefreshToken:   refresh,
		TokenExpiresAt: expiresAt,
	}
	require.NoError(t, f.repo.CreateAccount(context.Background(), account))
	return account
}

func (f *fixture) scheduledPost(t *testing.T, account *models.Account, at time.Time) *models.ScheduledPost {
	t.Helper()
	post := &models.ScheduledPost{
		TenantID:    1,
		Title:       "hello world",
		Body:        "post body",
		Subreddit:   "test",
		Status:      models.PostStatusScheduled,
		ScheduledAt: &at,
	}
	if account != nil {
		post.AccountID = &account.ID
	}
	require.NoError(t, f.repo.CreatePost(context.Background(), post))
	return post
}

func successHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(`{"json":{"errors":[],"data":{"id":"xyz","name":"t3_xyz","permalink":"/r/test/xyz"}}}`))
}

func TestRunCycle_PublishesDuePost(t *testing.T) {
	f := newFixture(t, successHandler)
	account := f.account(t, time.Now().Add(time.Hour))
	post := f.scheduledPost(t, account, time.Now().Add(-time.Hour))

	result, err := f.agent.RunCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Published)
	require.Equal(t, 0, result.Failed)

	got, err := f.repo.GetPostByID(context.Background(), post.ID)
	require.NoError(t, err)
	require.Equal(t, models.PostStatusPosted, got.Status)
	require.Equal(t, "t3_xyz", got.RedditPostID)
	require.Equal(t, "https://www.reddit.com/r/test/xyz", got.RedditURL)
	require.NotNil(t, got.PostedAt)
	require.WithinDuration(t, time.Now(), *got.PostedAt, time.Minute)
}

func TestRunCycle_PlatformRejectionBecomesError(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"json":{"errors":[["RATELIMIT","you are doing that too much","ratelimit"]]}}`))
	})
	account := f.account(t, time.Now().Add(time.Hour))
	post := f.scheduledPost(t, account, time.Now().Add(-time.Hour))

	result, err := f.agent.RunCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Failed)

	got, err := f.repo.GetPostByID(context.Background(), post.ID)
	require.NoError(t, err)
	require.Equal(t, models.PostStatusError, got.Status)
	require.Equal(t, "[RATELIMIT] you are doing that too much", got.LastError)
}

func TestRunCycle_MissingAccountBecomesError(t *testing.T) {
	f := newFixture(t, successHandler)
	post := f.scheduledPost(t, nil, time.Now().Add(-time.Hour))

	result, err := f.agent.RunCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Failed)

	got, err := f.repo.GetPostByID(context.Background(), post.ID)
	require.NoError(t, err)
	require.Equal(t, models.PostStatusError, got.Status)
	require.Equal(t, "no linked account", got.LastError)
}

func TestRunCycle_ExpiredTokenIsRefreshedBeforeSubmit(t *testing.T) {
	var sawToken string
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		sawToken = r.Header.Get("Authorization")
		successHandler(w, r)
	})
	account := f.account(t, time.Now().Add(-time.Hour))
	post := f.scheduledPost(t, account, time.Now().Add(-time.Hour))

	result, err := f.agent.RunCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Published)
	require.Equal(t, "Bearer refreshed", sawToken)

	got, err := f.repo.GetPostByID(context.Background(), post.ID)
	require.NoError(t, err)
	require.Equal(t, models.PostStatusPosted, got.Status)
}

func TestRunCycle_StateMachineTotality(t *testing.T) {
	// Every due item leaves the cycle as posted or error; future items
	// stay scheduled
	calls := 0
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Write([]byte(`{"json":{"errors":[["SUBREDDIT_NOEXIST","that subreddit doesn't exist"]]}}`))
			return
		}
		successHandler(w, r)
	})
	account := f.account(t, time.Now().Add(time.Hour))

	first := f.scheduledPost(t, account, time.Now().Add(-2*time.Hour))
	second := f.scheduledPost(t, account, time.Now().Add(-time.Hour))
	future := f.scheduledPost(t, account, time.Now().Add(time.Hour))

	result, err := f.agent.RunCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, result.Due)
	require.Equal(t, 1, result.Published)
	require.Equal(t, 1, result.Failed)

	ctx := context.Background()

	got, err := f.repo.GetPostByID(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, models.PostStatusError, got.Status)
	require.Equal(t, "[SUBREDDIT_NOEXIST] that subreddit doesn't exist", got.LastError)

	got, err = f.repo.GetPostByID(ctx, second.ID)
	require.NoError(t, err)
	require.Equal(t, models.PostStatusPosted, got.Status)

	got, err = f.repo.GetPostByID(ctx, future.ID)
	require.NoError(t, err)
	require.Equal(t, models.PostStatusScheduled, got.Status)
}

func TestRunCycle_SingleFlightGuard(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		successHandler(w, r)
	})
	account := f.account(t, time.Now().Add(time.Hour))
	f.scheduledPost(t, account, time.Now().Add(-time.Hour))

	done := make(chan *CycleResult)
	go func() {
		result, err := f.agent.RunCycle(context.Background())
		require.NoError(t, err)
		done <- result
	}()

	<-started

	// Second invocation while the first is mid-submission is dropped
	overlap, err := f.agent.RunCycle(context.Background())
	require.NoError(t, err)
	require.True(t, overlap.Skipped)

	close(release)
	result := <-done
	require.False(t, result.Skipped)
	require.Equal(t, 1, result.Published)
}
