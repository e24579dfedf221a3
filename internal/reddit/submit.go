package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/reddit-agent/pkg/ratelimit"
)

// SubmitError carries the (code, message) pairs Reddit reports when it
// rejects a submission. The platform's wording is preserved verbatim for
// operator diagnosis.
type SubmitError struct {
	Errors [][]string
}

func (e *SubmitError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, pair := range e.Errors {
		switch len(pair) {
		case 0:
			continue
		case 1:
			parts = append(parts, "["+pair[0]+"]")
		default:
			parts = append(parts, "["+pair[0]+"] "+pair[1])
		}
	}
	return strings.Join(parts, "; ")
}

// Submission is the outcome of a successful submit call
type Submission struct {
	Fullname string // e.g. t3_abc123
	URL      string // Canonical public URL
}

// submitResponse mirrors Reddit's api_type=json submit envelope
type submitResponse struct {
	JSON struct {
		Errors [][]string `json:"errors"`
		Data   struct {
			ID        string `json:"id"`
			Name      string `json:"name"`
			URL       string `json:"url"`
			Permalink string `json:"permalink"`
		} `json:"data"`
	} `json:"json"`
}

// SubmitSelfPost submits a text post to a subreddit on behalf of the
// token's account.
func (c *Client) SubmitSelfPost(ctx context.Context, token, subreddit, title, body string) (*Submission, error) {
	form := url.Values{
		"api_type": {"json"},
		"kind":     {"self"},
		"sr":       {subreddit},
		"title":    {title},
		"text":     {body},
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/submit", token, ratelimit.LimiterSubmit, form)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "submit", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		c.log.Error().
			Int("status", resp.StatusCode).
			Str("body", string(raw)).
			Msg("Submit request rejected")
		return nil, &TransportError{Op: "submit", Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	var envelope submitResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode submit response: %w", err)
	}

	if len(envelope.JSON.Errors) > 0 {
		return nil, &SubmitError{Errors: envelope.JSON.Errors}
	}

	data := envelope.JSON.Data
	if data.Name == "" {
		return nil, fmt.Errorf("submit response missing post id: %s", string(raw))
	}

	postURL := data.URL
	if postURL == "" {
		postURL = data.Permalink
	}

	c.log.Info().
		Str("fullname", data.Name).
		Str("subreddit", subreddit).
		Msg("Post submitted successfully")

	return &Submission{
		Fullname: data.Name,
		URL:      c.PostURL(postURL),
	}, nil
}
