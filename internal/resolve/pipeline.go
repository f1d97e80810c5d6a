// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jyozhou/paperscout/pkg/types"
)

const defaultRateLimitRetries = 3

// BatchResult holds the outcome of a batch resolution run.
type BatchResult struct {
	// Resolved lists confirmed papers in input order, each tagged with the
	// source label of its originating ref.
	Resolved []types.ResolvedPaper

	// NotFound lists refs for which no backend produced a confident match.
	NotFound []types.PaperRef

	// Failed counts refs that errored for reasons other than not-found.
	Failed int
}

// Total returns the number of refs that produced an outcome.
func (r BatchResult) Total() int {
	return len(r.Resolved) + len(r.NotFound) + r.Failed
}

// ResolveBatch resolves a sequence of listing refs one at a time, skipping
// refs with no title. Successes are collected in order; not-found refs are
// reported but never abort the run.
//
// When the primary backend signals throttling and cfg.RateLimitCooldown is
// positive, the driver sleeps for the cooldown and retries the same ref up
// to cfg.MaxRateLimitRetries times (default 3). With no cooldown
// configured, or once retries are exhausted, the rate-limit error is
// returned along with the partial result.
func ResolveBatch(ctx context.Context, r *Resolver, refs []types.PaperRef, cfg types.ResolveConfig, w io.Writer) (BatchResult, error) {
	var result BatchResult

	for _, ref := range refs {
		if ref.Title == "" {
			continue
		}

		paper, err := ResolveRef(ctx, r, ref, cfg, w)
		if err != nil {
			if IsRateLimit(err) || ctx.Err() != nil {
				summarize(w, result)
				return result, err
			}
			fmt.Fprintf(w, "failed: %q (%v)\n", ref.Title, err)
			result.Failed++
			continue
		}
		if paper == nil {
			result.NotFound = append(result.NotFound, ref)
			continue
		}

		paper.Source = ref.Source
		result.Resolved = append(result.Resolved, *paper)
	}

	summarize(w, result)
	return result, nil
}

// ResolveRef wraps a single Resolve call with the optional rate-limit
// cooldown policy. The core performs no backoff itself; this is the
// external policy layered on top of it.
func ResolveRef(ctx context.Context, r *Resolver, ref types.PaperRef, cfg types.ResolveConfig, w io.Writer) (*types.ResolvedPaper, error) {
	maxRetries := cfg.MaxRateLimitRetries
	if maxRetries <= 0 {
		maxRetries = defaultRateLimitRetries
	}

	for attempt := 0; ; attempt++ {
		paper, err := r.Resolve(ctx, ref.Title, ref.URL, cfg, w)
		if err == nil || !IsRateLimit(err) {
			return paper, err
		}
		if cfg.RateLimitCooldown <= 0 || attempt >= maxRetries {
			return nil, err
		}

		fmt.Fprintf(w, "%v; cooling down %v (attempt %d/%d)\n",
			err, cfg.RateLimitCooldown, attempt+1, maxRetries)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.RateLimitCooldown):
		}
	}
}

func summarize(w io.Writer, result BatchResult) {
	fmt.Fprintf(w, "\nResolved %d/%d papers (%d not found, %d failed)\n",
		len(result.Resolved), result.Total(), len(result.NotFound), result.Failed)
}
