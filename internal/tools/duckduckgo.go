// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/deskchat/internal/util"
)

// =============================================================================
// PERFORMANCE: Pre-compiled regex (compiled once at startup)
// =============================================================================

var (
	ddgTitleRegex   = regexp.MustCompile(`(?s)<a[^>]+class="result__a"[^>]+href="([^"]+)"[^>]*>(.+?)</a>`)
	ddgSnippetRegex = regexp.MustCompile(`(?s)<a[^>]+class="result__snippet"[^>]*>(.+?)</a>`)

	ddgTagRegex        = regexp.MustCompile(`<[^>]*>`)
	ddgWhitespaceRegex = regexp.MustCompile(`\s+`)
)

const (
	// SearchToolName is the name the model calls the search tool by.
	SearchToolName = "search"

	// SearchToolDescription is advertised to the model.
	SearchToolDescription = "Search the web using DuckDuckGo"

	defaultSearchURL = "https://html.duckduckgo.com/html/"
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	maxSearchBody    = 5 * 1024 * 1024
	maxSnippetRunes  = 300
	maxParsedResults = 20
)

// ErrNoQuery is returned when the search is called without a query.
var ErrNoQuery = errors.New("query parameter is required")

// =============================================================================
// DUCKDUCKGO SEARCH
// =============================================================================

// SearchOptions configures Search. Zero values take defaults.
type SearchOptions struct {
	// BaseURL is the DuckDuckGo HTML search endpoint
	BaseURL string

	// MaxResults is the number of results returned (default: 5, max: 10)
	MaxResults int

	// PerMinute caps outgoing requests. Zero disables throttling.
	PerMinute int

	// Timeout bounds one request (default: 15s)
	Timeout time.Duration

	UserAgent  string
	HTTPClient *http.Client
}

// Search performs web searches through the DuckDuckGo HTML endpoint, which
// needs no API key.
type Search struct {
	baseURL    string
	maxResults int
	timeout    time.Duration
	userAgent  string
	client     *http.Client
	limiter    *rate.Limiter
}

// SearchResult represents a single search hit.
type SearchResult struct {
	Title   string
	URL     string
	Snippet string
}

// NewSearch creates a search tool.
func NewSearch(opts SearchOptions) *Search {
	s := &Search{
		baseURL:    opts.BaseURL,
		maxResults: opts.MaxResults,
		timeout:    opts.Timeout,
		userAgent:  opts.UserAgent,
		client:     opts.HTTPClient,
	}
	if s.baseURL == "" {
		s.baseURL = defaultSearchURL
	}
	if s.maxResults <= 0 {
		s.maxResults = 5
	}
	if s.maxResults > 10 {
		s.maxResults = 10
	}
	if s.timeout == 0 {
		s.timeout = 15 * time.Second
	}
	if s.userAgent == "" {
		s.userAgent = defaultUserAgent
	}
	if s.client == nil {
		s.client = &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return errors.New("too many redirects")
				}
				return nil
			},
		}
	}
	if opts.PerMinute > 0 {
		s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.PerMinute)), 1)
	}
	return s
}

// Tool returns the registry entry for this search.
func (s *Search) Tool() *Tool {
	return &Tool{
		Name:        SearchToolName,
		Description: SearchToolDescription,
		Parameters: []Parameter{
			{
				Name:        "query",
				Type:        "string",
				Required:    true,
				Description: "The search query. Use natural language or keywords.",
			},
		},
		Run: s.Run,
	}
}

// Run executes a search for args["query"] and formats the hits as text.
func (s *Search) Run(ctx context.Context, args map[string]any) (string, error) {
	query := strings.TrimSpace(stringArg(args, "query", ""))
	if query == "" {
		return "", ErrNoQuery
	}
	maxResults := intArg(args, "max_results", s.maxResults)
	if maxResults < 1 {
		maxResults = 1
	}
	if maxResults > 10 {
		maxResults = 10
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("search throttled: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	results, err := s.Query(ctx, query)
	if err != nil {
		return "", fmt.Errorf("search failed: %w", err)
	}
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return formatResults(query, results), nil
}

// Query performs the HTTP request and parses the result page.
func (s *Search) Query(ctx context.Context, query string) ([]SearchResult, error) {
	searchURL := s.baseURL + "?q=" + url.QueryEscape(query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}
	// Accept-Encoding is left to the transport so it can decompress.
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("DNT", "1")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSearchBody))
	if err != nil {
		return nil, err
	}
	return parseResults(string(body)), nil
}

// parseResults extracts hits from DuckDuckGo HTML:
//
//	<a rel="nofollow" class="result__a" href="//duckduckgo.com/l/?uddg=URL">Title</a>
//	<a class="result__snippet" href="...">Snippet text</a>
func parseResults(page string) []SearchResult {
	var results []SearchResult

	titleMatches := ddgTitleRegex.FindAllStringSubmatch(page, 30)
	snippetMatches := ddgSnippetRegex.FindAllStringSubmatch(page, 30)

	for i, match := range titleMatches {
		if len(match) < 3 {
			continue
		}

		rawURL := strings.ReplaceAll(match[1], "&amp;", "&")
		actualURL := extractActualURL(rawURL)
		title := cleanHTML(match[2])
		if actualURL == "" || title == "" {
			continue
		}

		snippet := ""
		if i < len(snippetMatches) && len(snippetMatches[i]) >= 2 {
			snippet = cleanHTML(snippetMatches[i][1])
		}

		results = append(results, SearchResult{
			Title:   title,
			URL:     actualURL,
			Snippet: snippet,
		})
		if len(results) >= maxParsedResults {
			break
		}
	}
	return results
}

// extractActualURL unwraps DuckDuckGo's //duckduckgo.com/l/?uddg=... redirect.
func extractActualURL(ddgURL string) string {
	if strings.Contains(ddgURL, "uddg=") {
		if strings.HasPrefix(ddgURL, "//") {
			ddgURL = "https:" + ddgURL
		}
		parsed, err := url.Parse(ddgURL)
		if err != nil {
			return ""
		}
		if target := parsed.Query().Get("uddg"); target != "" {
			return target
		}
	}

	if strings.HasPrefix(ddgURL, "http://") || strings.HasPrefix(ddgURL, "https://") {
		return ddgURL
	}
	return ""
}

// cleanHTML removes tags, decodes entities and collapses whitespace.
func cleanHTML(s string) string {
	text := ddgTagRegex.ReplaceAllString(s, "")
	text = html.UnescapeString(text)
	text = ddgWhitespaceRegex.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func formatResults(query string, results []SearchResult) string {
	var out strings.Builder

	fmt.Fprintf(&out, "DuckDuckGo Search Results for: %s\n", query)
	fmt.Fprintf(&out, "Found %d results\n\n", len(results))

	if len(results) == 0 {
		out.WriteString("No results found.\n")
		return out.String()
	}

	for i, r := range results {
		fmt.Fprintf(&out, "[%d] %s\n", i+1, r.Title)
		fmt.Fprintf(&out, "    URL: %s\n", r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(&out, "    %s\n", util.TruncateRunes(r.Snippet, maxSnippetRunes))
		}
		out.WriteString("\n")
	}
	return out.String()
}
