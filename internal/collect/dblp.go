// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package collect gathers accepted-paper listings for a conference venue
// from DBLP, producing the title refs the resolution pipeline consumes.
package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/jyozhou/paperscout/internal/httputil"
	"github.com/jyozhou/paperscout/pkg/types"
)

// dblpAPIBase is the DBLP publication search endpoint. Declared as a var
// so tests can substitute an httptest server.
var dblpAPIBase = "https://dblp.org/search/publ/api"

const (
	// dblpPageSize is the rows-per-request the API allows.
	dblpPageSize = 1000

	// DefaultMaxRows caps how many listing rows one fetch will page through.
	DefaultMaxRows = 5000
)

// tagPattern strips markup DBLP embeds in titles (e.g. <i>, MathML).
var tagPattern = regexp.MustCompile(`<[^>]+>`)

// FetchDBLP pages through the DBLP search API for the given query and
// returns one ref per distinct title, tagged with sourceLabel. Pagination
// stops at the reported total, an empty page, or the MaxRows cap.
func FetchDBLP(ctx context.Context, client *http.Client, query, sourceLabel string, cfg types.CollectConfig, w io.Writer) ([]types.PaperRef, error) {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = dblpPageSize
	}
	maxRows := cfg.MaxRows
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}

	var refs []types.PaperRef
	seen := make(map[string]bool)

	for offset := 0; offset < maxRows; offset += pageSize {
		hits, total, err := fetchDBLPPage(ctx, client, query, pageSize, offset, w)
		if err != nil {
			return nil, err
		}
		if len(hits) == 0 {
			break
		}

		for _, hit := range hits {
			title := cleanTitle(hit.Info.Title)
			if title == "" {
				continue
			}
			key := strings.ToLower(title)
			if seen[key] {
				continue
			}
			seen[key] = true

			ref := types.PaperRef{Title: title, Source: sourceLabel}
			if hit.Info.EE != "" {
				ref.URL = hit.Info.EE
			} else {
				ref.URL = hit.Info.URL
			}
			refs = append(refs, ref)
		}

		fmt.Fprintf(w, "fetched %d rows (offset %d, total %d)\n", len(hits), offset, total)
		if offset+pageSize >= total {
			break
		}
	}

	return refs, nil
}

func fetchDBLPPage(ctx context.Context, client *http.Client, query string, pageSize, offset int, w io.Writer) ([]dblpHit, int, error) {
	params := url.Values{
		"q":      {query},
		"format": {"json"},
		"h":      {strconv.Itoa(pageSize)},
		"f":      {strconv.Itoa(offset)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dblpAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}

	resp, err := httputil.DoWithRetry(ctx, client, req, 0, w)
	if err != nil {
		return nil, 0, fmt.Errorf("DBLP API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("DBLP API returned HTTP %d", resp.StatusCode)
	}

	var dr dblpResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return nil, 0, fmt.Errorf("parsing DBLP response: %w", err)
	}

	// @total is a JSON string, e.g. "2260".
	total, err := strconv.Atoi(dr.Result.Hits.Total)
	if err != nil {
		total = len(dr.Result.Hits.Hit)
	}
	return dr.Result.Hits.Hit, total, nil
}

// cleanTitle strips markup and entities from a DBLP title and normalizes
// its whitespace. DBLP titles end with a period, which is dropped.
func cleanTitle(title string) string {
	s := tagPattern.ReplaceAllString(title, "")
	s = html.UnescapeString(s)
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSuffix(s, ".")
}

// DBLP search API JSON structures.
type dblpResponse struct {
	Result struct {
		Hits struct {
			Total string      `json:"@total"`
			Hit   dblpHitList `json:"hit"`
		} `json:"hits"`
	} `json:"result"`
}

type dblpHit struct {
	Info struct {
		Title string `json:"title"`
		EE    string `json:"ee"`
		URL   string `json:"url"`
	} `json:"info"`
}

// dblpHitList absorbs DBLP's habit of emitting a bare object instead of a
// one-element array when a page holds a single hit.
type dblpHitList []dblpHit

func (l *dblpHitList) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var hits []dblpHit
		if err := json.Unmarshal(data, &hits); err != nil {
			return err
		}
		*l = hits
		return nil
	}

	var hit dblpHit
	if err := json.Unmarshal(data, &hit); err != nil {
		return err
	}
	*l = dblpHitList{hit}
	return nil
}
