package analytics

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/reddit-agent/internal/config"
	"github.com/reddit-agent/internal/models"
	"github.com/reddit-agent/internal/reddit"
	"github.com/reddit-agent/internal/storage/gormdb"
	"github.com/reddit-agent/pkg/logger"
	"github.com/reddit-agent/pkg/ratelimit"
)

type fixture struct {
	repo    *gormdb.Repository
	agent   *Agent
	batches [][]string // Id lists received by the info endpoint
}

func newFixture(t *testing.T, infoHandler func(f *fixture, w http.ResponseWriter, ids []string)) *fixture {
	t.Helper()

	repo, err := gormdb.New("sqlite", "file::memory:?cache=shared&an"+t.Name())
	require.NoError(t, err)
	require.NoError(t, repo.Migrate())
	t.Cleanup(func() { repo.Close() })

	f := &fixture{repo: repo}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"app-token","token_type":"bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/api/info", func(w http.ResponseWriter, r *http.Request) {
		ids := strings.Split(r.URL.Query().Get("id"), ",")
		f.batches = append(f.batches, ids)
		infoHandler(f, w, ids)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	log := logger.Default()
	limiter := ratelimit.NewMultiLimiter()
	limiter.AddLimiter(ratelimit.LimiterInfo, 1000, 1000)

	redditCfg := config.RedditConfig{ClientID: "id", ClientSecret: "secret", UserAgent: "reddit-agent/test"}
	client := reddit.NewClient(redditCfg, limiter, log)
	client.APIBase = server.URL

	auth := reddit.NewAuthenticator(redditCfg, log)
	auth.TokenURL = server.URL + "/api/v1/access_token"

	f.agent = NewAgent(client, auth, repo, config.AnalyticsConfig{BatchSize: 2}, log)
	return f
}

func (f *fixture) postedPost(t *testing.T, fullname string) *models.ScheduledPost {
	t.Helper()
	now := time.Now()
	post := &models.ScheduledPost{
		TenantID:     1,
		Title:        "t",
		Subreddit:    "test",
		Status:       models.PostStatusPosted,
		RedditPostID: fullname,
		PostedAt:     &now,
	}
	require.NoError(t, f.repo.CreatePost(context.Background(), post))
	return post
}

// countersListing builds an info response assigning score=10*i,
// comments=i per id
func countersListing(ids []string) string {
	children := make([]string, len(ids))
	for i, id := range ids {
		children[i] = fmt.Sprintf(`{"data":{"name":"%s","score":%d,"num_comments":%d}}`, id, (i+1)*10, i+1)
	}
	return `{"data":{"children":[` + strings.Join(children, ",") + `]}}`
}

func TestRunCycle_WritesSnapshotsInBatches(t *testing.T) {
	f := newFixture(t, func(f *fixture, w http.ResponseWriter, ids []string) {
		w.Write([]byte(countersListing(ids)))
	})

	a := f.postedPost(t, "t3_a")
	b := f.postedPost(t, "t3_b")
	c := f.postedPost(t, "t3_c")

	result, err := f.agent.RunCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, result.Posts)
	require.Equal(t, 3, result.Refreshed)

	// Batch size 2: ids split across two calls
	require.Equal(t, [][]string{{"t3_a", "t3_b"}, {"t3_c"}}, f.batches)

	ctx := context.Background()
	for _, post := range []*models.ScheduledPost{a, b, c} {
		snaps, err := f.repo.ListSnapshots(ctx, post.ID)
		require.NoError(t, err)
		require.Len(t, snaps, 1)

		got, err := f.repo.GetPostByID(ctx, post.ID)
		require.NoError(t, err)
		require.NotNil(t, got.StatsRefreshedAt)
	}
}

func TestRunCycle_AbandonsCycleOnBatchFailure(t *testing.T) {
	f := newFixture(t, func(f *fixture, w http.ResponseWriter, ids []string) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	})

	post := f.postedPost(t, "t3_a")

	_, err := f.agent.RunCycle(context.Background())
	require.Error(t, err)

	// No partial snapshots, no refresh marker
	snaps, err2 := f.repo.ListSnapshots(context.Background(), post.ID)
	require.NoError(t, err2)
	require.Empty(t, snaps)

	got, err2 := f.repo.GetPostByID(context.Background(), post.ID)
	require.NoError(t, err2)
	require.Nil(t, got.StatsRefreshedAt)
}

func TestRunCycle_SkipsPostsMissingFromResponse(t *testing.T) {
	f := newFixture(t, func(f *fixture, w http.ResponseWriter, ids []string) {
		// Respond only for the first id; the second was deleted upstream
		w.Write([]byte(countersListing(ids[:1])))
	})

	kept := f.postedPost(t, "t3_a")
	removed := f.postedPost(t, "t3_b")

	result, err := f.agent.RunCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Refreshed)

	snaps, err := f.repo.ListSnapshots(context.Background(), kept.ID)
	require.NoError(t, err)
	require.Len(t, snaps, 1)

	snaps, err = f.repo.ListSnapshots(context.Background(), removed.ID)
	require.NoError(t, err)
	require.Empty(t, snaps)
}

func TestRunCycle_NoPostedItemsIsNoop(t *testing.T) {
	f := newFixture(t, func(f *fixture, w http.ResponseWriter, ids []string) {
		t.Fatal("no info call expected")
	})

	result, err := f.agent.RunCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, result.Posts)
	require.Empty(t, f.batches)
}
