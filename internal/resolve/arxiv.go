// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/jyozhou/paperscout/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// ArxivBackend queries the arXiv API. It is the primary backend of the
// cascade and the only one with documented throttling behavior.
type ArxivBackend struct {
	Client *http.Client
}

// Name returns the backend identifier.
func (b *ArxivBackend) Name() string { return "arxiv" }

// stopWordPattern removes common English stop words before the keyword
// fallback query.
var stopWordPattern = regexp.MustCompile(`\b(a|an|the|and|or|of|for|in|on|at|to|with|by|from)\b`)

// punctPattern strips everything that is not a word character or whitespace.
var punctPattern = regexp.MustCompile(`[^\w\s]`)

// Search queries arXiv with an exact-phrase title search and, when that
// yields nothing, falls back to a stop-word-stripped keyword search.
// Throttling responses (HTTP 429, 443, 503) surface as *RateLimitError;
// every other failure is an ordinary error.
func (b *ArxivBackend) Search(ctx context.Context, title string, cfg types.ResolveConfig) ([]types.Candidate, error) {
	if title == "" {
		return nil, fmt.Errorf("empty arXiv query")
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	candidates, err := b.query(ctx, `ti:"`+title+`"`, maxResults, cfg)
	if err != nil {
		return nil, err
	}
	if len(candidates) > 0 {
		return candidates, nil
	}

	keywords := stripStopWords(title)
	if keywords == "" {
		return nil, nil
	}
	return b.query(ctx, "all:"+keywords, maxResults, cfg)
}

func (b *ArxivBackend) query(ctx context.Context, searchQuery string, maxResults int, cfg types.ResolveConfig) ([]types.Candidate, error) {
	params := url.Values{
		"search_query": {searchQuery},
		"start":        {"0"},
		"max_results":  {strconv.Itoa(maxResults)},
		"sortBy":       {"relevance"},
		"sortOrder":    {"descending"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, arxivAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := b.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case 429, 443, 503:
		return nil, &RateLimitError{Status: resp.StatusCode}
	default:
		return nil, fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}

	var candidates []types.Candidate
	for _, entry := range feed.Entries {
		arxivID := extractArxivID(entry.ID)
		if arxivID == "" {
			continue
		}

		c := types.Candidate{
			Title:         strings.Join(strings.Fields(entry.Title), " "),
			ArxivID:       arxivID,
			PDFURL:        arxivPDFURL(arxivID),
			Abstract:      strings.Join(strings.Fields(entry.Summary), " "),
			PublishedDate: strings.TrimSpace(entry.Published),
		}
		for _, a := range entry.Authors {
			c.Authors = append(c.Authors, strings.TrimSpace(a.Name))
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// stripStopWords lowercases the title, removes stop words and punctuation,
// and collapses whitespace, producing the keyword fallback query.
func stripStopWords(title string) string {
	s := stopWordPattern.ReplaceAllString(strings.ToLower(title), "")
	s = punctPattern.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID        string        `xml:"id"`
	Title     string        `xml:"title"`
	Summary   string        `xml:"summary"`
	Published string        `xml:"published"`
	Authors   []arxivAuthor `xml:"author"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

// extractArxivID pulls the arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" → "2301.07041").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	id := idURL[idx+len(prefix):]

	// Strip version suffix (e.g. "v1", "v2").
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}
