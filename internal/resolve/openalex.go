// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/jyozhou/paperscout/pkg/types"
)

// openAlexAPIBase is the OpenAlex Works search endpoint. Declared as a
// var so tests can substitute an httptest server.
var openAlexAPIBase = "https://api.openalex.org/works"

// openAlexMaxPerPage is the upstream per-page cap.
const openAlexMaxPerPage = 25

// OpenAlexBackend queries the OpenAlex API. It is the secondary backend of
// the cascade; OpenAlex documents no throttling status codes, so every
// failure here is an ordinary error.
type OpenAlexBackend struct {
	Client *http.Client
}

// Name returns the backend identifier.
func (b *OpenAlexBackend) Name() string { return "openalex" }

// openAlexArxivPattern recovers an arXiv ID from arxiv.org URLs found in
// OpenAlex location and identifier fields.
var openAlexArxivPattern = regexp.MustCompile(`arxiv\.org/(?:pdf/|abs/)?(\d+\.\d+)`)

// Search queries OpenAlex with the title as free-text search.
func (b *OpenAlexBackend) Search(ctx context.Context, title string, cfg types.ResolveConfig) ([]types.Candidate, error) {
	if title == "" {
		return nil, fmt.Errorf("empty OpenAlex query")
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if maxResults > openAlexMaxPerPage {
		maxResults = openAlexMaxPerPage
	}

	params := url.Values{
		"search":   {title},
		"per-page": {strconv.Itoa(maxResults)},
	}
	if cfg.OpenAlexEmail != "" {
		params.Set("mailto", cfg.OpenAlexEmail)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, openAlexAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := b.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("OpenAlex API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OpenAlex API returned HTTP %d", resp.StatusCode)
	}

	var oar openAlexResponse
	if err := json.NewDecoder(resp.Body).Decode(&oar); err != nil {
		return nil, fmt.Errorf("parsing OpenAlex response: %w", err)
	}

	var candidates []types.Candidate
	for _, work := range oar.Results {
		c := types.Candidate{
			Title:    work.DisplayName,
			Abstract: work.Abstract,
		}
		if work.PublicationYear > 0 {
			c.PublishedDate = strconv.Itoa(work.PublicationYear)
		}

		for _, authorship := range work.Authorships {
			if authorship.Author.DisplayName != "" {
				c.Authors = append(c.Authors, authorship.Author.DisplayName)
			}
		}

		c.ArxivID = findArxivID(work)
		switch {
		case c.ArxivID != "":
			c.PDFURL = arxivPDFURL(c.ArxivID)
		case work.PrimaryLocation != nil && work.PrimaryLocation.PDFURL != "":
			c.PDFURL = work.PrimaryLocation.PDFURL
		}

		candidates = append(candidates, c)
	}
	return candidates, nil
}

// findArxivID scans the work's listed locations for an arXiv source whose
// PDF URL embeds an identifier, falling back to the external-identifiers
// field when the locations yield nothing.
func findArxivID(work openAlexWork) string {
	for _, loc := range work.Locations {
		if loc.Source == nil || !strings.Contains(strings.ToLower(loc.Source.DisplayName), "arxiv") {
			continue
		}
		if !strings.Contains(loc.PDFURL, "arxiv.org") {
			continue
		}
		if m := openAlexArxivPattern.FindStringSubmatch(loc.PDFURL); m != nil {
			return m[1]
		}
	}
	if work.IDs.Arxiv != "" {
		if m := openAlexArxivPattern.FindStringSubmatch(work.IDs.Arxiv); m != nil {
			return m[1]
		}
	}
	return ""
}

// OpenAlex API JSON structures.
type openAlexResponse struct {
	Results []openAlexWork `json:"results"`
}

type openAlexWork struct {
	DisplayName     string               `json:"display_name"`
	Abstract        string               `json:"abstract"`
	PublicationYear int                  `json:"publication_year"`
	Authorships     []openAlexAuthorship `json:"authorships"`
	Locations       []openAlexLocation   `json:"locations"`
	IDs             openAlexIDs          `json:"ids"`
	PrimaryLocation *openAlexLocation    `json:"primary_location"`
}

type openAlexAuthorship struct {
	Author openAlexAuthor `json:"author"`
}

type openAlexAuthor struct {
	DisplayName string `json:"display_name"`
}

type openAlexLocation struct {
	Source *openAlexSource `json:"source"`
	PDFURL string          `json:"pdf_url"`
}

type openAlexSource struct {
	DisplayName string `json:"display_name"`
}

type openAlexIDs struct {
	Arxiv string `json:"arxiv"`
}
