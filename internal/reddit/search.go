package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/reddit-agent/pkg/ratelimit"
)

// Window selects how far back a search reaches
type Window string

const (
	// WindowMonth is the wide cold-start window used for a keyword's
	// first scan
	WindowMonth Window = "month"
	// WindowDay is the narrow steady-state window used once a keyword
	// has been scanned before
	WindowDay Window = "day"
)

// SearchResult is one post matching a search query
type SearchResult struct {
	Permalink string
	Title     string
	Body      string
	Author    string
	Subreddit string
	CreatedAt time.Time
}

// listing mirrors Reddit's search listing envelope
type listing struct {
	Data struct {
		Children []struct {
			Data struct {
				Permalink  string  `json:"permalink"`
				Title      string  `json:"title"`
				Selftext   string  `json:"selftext"`
				Author     string  `json:"author"`
				Subreddit  string  `json:"subreddit"`
				CreatedUTC float64 `json:"created_utc"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Search queries for exact-phrase matches of term within the window,
// newest first, bounded by limit.
func (c *Client) Search(ctx context.Context, token, term string, window Window, limit int) ([]SearchResult, error) {
	form := url.Values{
		"q":        {`"` + term + `"`},
		"sort":     {"new"},
		"t":        {string(window)},
		"limit":    {strconv.Itoa(limit)},
		"raw_json": {"1"},
	}

	resp, err := c.do(ctx, http.MethodGet, "/search", token, ratelimit.LimiterSearch, form)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{Op: "search", Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	var env listing
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	results := make([]SearchResult, 0, len(env.Data.Children))
	for _, child := range env.Data.Children {
		d := child.Data
		results = append(results, SearchResult{
			Permalink: d.Permalink,
			Title:     d.Title,
			Body:      d.Selftext,
			Author:    d.Author,
			Subreddit: d.Subreddit,
			CreatedAt: time.Unix(int64(d.CreatedUTC), 0).UTC(),
		})
	}

	c.log.Debug().
		Str("term", term).
		Str("window", string(window)).
		Int("results", len(results)).
		Msg("Search completed")

	return results, nil
}
