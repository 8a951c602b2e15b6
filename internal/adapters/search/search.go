// Package search wraps the web-search provider used for venue research. A
// search failure is never fatal to the conversation: callers degrade to
// "no results" rather than failing the chat turn.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/brightears/bmasia-music-brief/pkg/circuit"
	errs "github.com/brightears/bmasia-music-brief/pkg/errors"
)

// Result is one search hit, reduced to the fields the tool needs.
type Result struct {
	Title   string
	URL     string
	Snippet string
}

// Client queries the configured web-search API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	cb         *circuit.Breaker
}

// New constructs a search Client. baseURL is the provider's query endpoint.
func New(apiKey, baseURL string) *Client {
	cb := circuit.New(circuit.Config{
		Name:              "web_search",
		OperationTimeout:  10 * time.Second,
		OpenFor:           20 * time.Second,
		MaxConsecFailures: 3,
		WindowSize:        10,
		FailureRate:       0.6,
	}, nil)
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cb:         cb,
	}
}

type rawResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

type rawResponse struct {
	Results []rawResult `json:"results"`
}

// Search runs one query and returns the top 5 results. On any failure
// (network, non-2xx, malformed body), it returns an empty, non-error result:
// callers treat search as a best-effort research aid, never a hard
// dependency.
func (c *Client) Search(ctx context.Context, query string) []Result {
	var out []Result
	err := c.cb.Do(ctx, func(ctx context.Context) error {
		u := fmt.Sprintf("%s?q=%s", c.baseURL, url.QueryEscape(query))
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return errs.NewExternal("search.Search", "websearch", "failed to build request", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return errs.NewExternal("search.Search", "websearch", "request failed", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return errs.NewExternal("search.Search", "websearch", fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
		}

		var parsed rawResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return errs.NewExternal("search.Search", "websearch", "failed to decode response", err)
		}

		n := 5
		if n > len(parsed.Results) {
			n = len(parsed.Results)
		}
		out = make([]Result, 0, n)
		for i := 0; i < n; i++ {
			r := parsed.Results[i]
			out = append(out, Result{
				Title:   r.Title,
				URL:     r.URL,
				Snippet: r.Title + ": " + r.Description,
			})
		}
		return nil
	}, func(ctx context.Context, cause error) error {
		return nil
	})
	if err != nil {
		return nil
	}
	return out
}
