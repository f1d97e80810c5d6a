// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolve maps noisy conference-listing titles to canonical paper
// records. It queries two search backends in a fixed cascade (arXiv, then
// OpenAlex), scores each candidate title against the query, and accepts the
// best candidate only when it clears a confidence threshold and carries a
// resolvable PDF link.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"

	"github.com/jyozhou/paperscout/pkg/types"
)

// Defaults, overridable through types.ResolveConfig.
const (
	// DefaultMinSimilarity is the confidence threshold a candidate must
	// meet against the query title.
	DefaultMinSimilarity = 0.8

	// DefaultMaxResults is the per-backend candidate count requested.
	DefaultMaxResults = 10
)

// Backend searches a single paper index by title. Both backends (arXiv,
// OpenAlex) implement this interface; the orchestrator composes them
// sequentially rather than through any registry.
type Backend interface {
	Name() string
	Search(ctx context.Context, title string, cfg types.ResolveConfig) ([]types.Candidate, error)
}

// RateLimitError reports that the primary backend throttled the caller.
// It is the only error that crosses the Resolve boundary: the caller must
// stop issuing requests for a cooldown period before retrying.
type RateLimitError struct {
	Status int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited by arXiv (HTTP %d)", e.Status)
}

// IsRateLimit reports whether err wraps a RateLimitError.
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// arxivURLPattern matches arXiv abstract and PDF URLs and captures the
// identifier (e.g. "https://arxiv.org/abs/2301.12345" → "2301.12345").
var arxivURLPattern = regexp.MustCompile(`arxiv\.org/(?:abs|pdf)/(\d+\.\d+)`)

// Resolver runs the two-backend cascade. Stateless apart from its
// dependencies; safe to reuse across calls.
type Resolver struct {
	Primary   Backend
	Secondary Backend
}

// Resolve maps a listing title to a confirmed paper record, or nil when no
// backend returns a confident match with a usable PDF link.
//
// When url embeds an arXiv identifier the record is trusted immediately
// and no backend is queried. Otherwise the primary backend is tried, then
// the secondary; each backend's best candidate is accepted only if its
// similarity clears cfg.MinSimilarity and it carries a PDF URL. A
// *RateLimitError from the primary propagates unchanged; any other backend
// failure is logged to w and treated as an empty candidate list so the
// cascade can continue.
func (r *Resolver) Resolve(ctx context.Context, title, url string, cfg types.ResolveConfig, w io.Writer) (*types.ResolvedPaper, error) {
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}

	if url != "" {
		if paper := extractFromURL(title, url); paper != nil {
			fmt.Fprintf(w, "resolved %q from URL (arXiv %s)\n", title, paper.ArxivID)
			return paper, nil
		}
	}

	minSim := cfg.MinSimilarity
	if minSim <= 0 {
		minSim = DefaultMinSimilarity
	}

	for _, b := range []Backend{r.Primary, r.Secondary} {
		if b == nil {
			continue
		}
		candidates, err := b.Search(ctx, title, cfg)
		if err != nil {
			if IsRateLimit(err) {
				return nil, err
			}
			fmt.Fprintf(w, "warning: %s search failed: %v\n", b.Name(), err)
			continue
		}
		best := pickBest(w, b.Name(), title, candidates, minSim)
		if best != nil && best.PDFURL != "" {
			return &types.ResolvedPaper{Candidate: *best}, nil
		}
	}

	fmt.Fprintf(w, "not found: %q\n", title)
	return nil, nil
}

// pickBest selects the candidate whose title scores highest against the
// query. The first candidate seen keeps a tied score. Returns nil when the
// list is empty or the best score falls below minSimilarity; the returned
// candidate may still lack a PDF URL — the caller decides whether that
// disqualifies it.
func pickBest(w io.Writer, backend, queryTitle string, candidates []types.Candidate, minSimilarity float64) *types.Candidate {
	if len(candidates) == 0 {
		fmt.Fprintf(w, "warning: %s returned no candidates for %q\n", backend, queryTitle)
		return nil
	}

	var best *types.Candidate
	bestScore := 0.0
	for i := range candidates {
		score := Similarity(queryTitle, candidates[i].Title)
		if score > bestScore {
			bestScore = score
			best = &candidates[i]
		}
	}
	if best == nil {
		return nil
	}

	fmt.Fprintf(w, "best %s match for %q is %q (similarity %.3f)\n",
		backend, queryTitle, best.Title, bestScore)

	if bestScore < minSimilarity {
		fmt.Fprintf(w, "warning: %s returned %d candidates but best similarity %.3f is below %.2f; discarding\n",
			backend, len(candidates), bestScore, minSimilarity)
		return nil
	}
	return best
}

// extractFromURL builds a trusted record when the listing URL itself embeds
// an arXiv identifier. Explicit identifiers bypass similarity scoring.
func extractFromURL(title, url string) *types.ResolvedPaper {
	m := arxivURLPattern.FindStringSubmatch(url)
	if m == nil {
		return nil
	}
	id := m[1]
	return &types.ResolvedPaper{
		Candidate: types.Candidate{
			Title:   title,
			ArxivID: id,
			PDFURL:  arxivPDFURL(id),
		},
	}
}

// arxivPDFURL synthesizes the canonical PDF link for an arXiv identifier.
func arxivPDFURL(id string) string {
	return "https://arxiv.org/pdf/" + id + ".pdf"
}
