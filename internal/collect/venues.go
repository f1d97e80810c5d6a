// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package collect

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jyozhou/paperscout/pkg/types"
)

// dblpHTMLBase is the root of DBLP's rendered conference pages. Declared as
// a var so tests can substitute an httptest server.
var dblpHTMLBase = "https://dblp.org/db"

// venueSlugs maps the venue names the CLI accepts to their DBLP keys.
var venueSlugs = map[string]string{
	"iclr": "iclr",
	"icml": "icml",
	"icra": "icra",
	"iros": "iros",
	"corl": "corl",
}

// Venues lists the supported venue names, sorted.
func Venues() []string {
	names := make([]string, 0, len(venueSlugs))
	for name := range venueSlugs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SourceLabel builds the listing tag attached to every ref from a venue
// edition, e.g. ("iclr", 2024) → "ICLR2024".
func SourceLabel(venue string, year int) string {
	return strings.ToUpper(venue) + strconv.Itoa(year)
}

// FetchVenue collects the accepted-paper listing for one venue edition.
// The DBLP search API is tried first through its table-of-contents query;
// when the API has no rows yet (recent editions lag behind the rendered
// pages) the venue's HTML page is scraped instead.
func FetchVenue(ctx context.Context, client *http.Client, venue string, year int, cfg types.CollectConfig, w io.Writer) ([]types.PaperRef, error) {
	slug, ok := venueSlugs[venue]
	if !ok {
		return nil, fmt.Errorf("unknown venue %q (supported: %s)", venue, strings.Join(Venues(), ", "))
	}

	label := SourceLabel(venue, year)
	query := fmt.Sprintf("toc:db/conf/%s/%s%d.bht:", slug, slug, year)

	refs, err := FetchDBLP(ctx, client, query, label, cfg, w)
	if err != nil {
		return nil, err
	}
	if len(refs) > 0 {
		return refs, nil
	}

	pageURL := fmt.Sprintf("%s/conf/%s/%s%d.html", dblpHTMLBase, slug, slug, year)
	fmt.Fprintf(w, "API returned no rows for %s; scraping %s\n", label, pageURL)
	return FetchDBLPHTML(ctx, client, pageURL, label)
}

// FetchDBLPHTML scrapes a rendered DBLP conference page for paper entries.
// Each `li.entry` contributes its `.title` text and the href of the first
// external link under `li.ee`.
func FetchDBLPHTML(ctx context.Context, client *http.Client, pageURL, sourceLabel string) ([]types.PaperRef, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("DBLP page returned HTTP %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", pageURL, err)
	}

	var refs []types.PaperRef
	seen := make(map[string]bool)

	doc.Find("li.entry").Each(func(_ int, entry *goquery.Selection) {
		title := cleanTitle(entry.Find(".title").First().Text())
		if title == "" {
			return
		}
		key := strings.ToLower(title)
		if seen[key] {
			return
		}
		seen[key] = true

		ref := types.PaperRef{Title: title, Source: sourceLabel}
		if href, ok := entry.Find("li.ee a[href]").First().Attr("href"); ok {
			ref.URL = href
		}
		refs = append(refs, ref)
	})

	return refs, nil
}
