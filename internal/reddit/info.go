package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/reddit-agent/pkg/ratelimit"
)

// MaxInfoBatch is the largest id list the info endpoint accepts per call
const MaxInfoBatch = 100

// PostInfo holds the engagement counters for one post
type PostInfo struct {
	Score        int
	CommentCount int
}

// infoListing mirrors the /api/info listing envelope
type infoListing struct {
	Data struct {
		Children []struct {
			Data struct {
				Name        string `json:"name"`
				Score       int    `json:"score"`
				NumComments int    `json:"num_comments"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Info fetches engagement counters for a batch of post fullnames in a
// single call, keyed by fullname in the result.
func (c *Client) Info(ctx context.Context, token string, fullnames []string) (map[string]PostInfo, error) {
	if len(fullnames) == 0 {
		return map[string]PostInfo{}, nil
	}
	if len(fullnames) > MaxInfoBatch {
		return nil, fmt.Errorf("info batch of %d exceeds the endpoint limit of %d", len(fullnames), MaxInfoBatch)
	}

	form := url.Values{
		"id":       {strings.Join(fullnames, ",")},
		"raw_json": {"1"},
	}

	resp, err := c.do(ctx, http.MethodGet, "/api/info", token, ratelimit.LimiterInfo, form)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{Op: "info", Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	var env infoListing
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode info response: %w", err)
	}

	infos := make(map[string]PostInfo, len(env.Data.Children))
	for _, child := range env.Data.Children {
		infos[child.Data.Name] = PostInfo{
			Score:        child.Data.Score,
			CommentCount: child.Data.NumComments,
		}
	}

	c.log.Debug().
		Int("requested", len(fullnames)).
		Int("returned", len(infos)).
		Msg("Info batch completed")

	return infos, nil
}
