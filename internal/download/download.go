// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package download fetches PDFs for resolved papers.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/jyozhou/paperscout/pkg/types"
)

// DefaultDelay is the pause between consecutive downloads, keeping the
// fetch rate polite toward arXiv.
const DefaultDelay = 1 * time.Second

// Fetch downloads a paper's PDF into cfg.PDFDir as <fileID>.pdf. An
// existing file is left untouched and reported as skipped. The PDF is
// written to a temp file in the target directory and renamed into place so
// a failed download never leaves a partial file behind.
func Fetch(ctx context.Context, client *http.Client, paper types.Paper, cfg types.DownloadConfig, w io.Writer) (skipped bool, err error) {
	if paper.PDFURL == "" {
		return false, fmt.Errorf("paper %s has no pdf_url", paper.ID)
	}
	if err := os.MkdirAll(cfg.PDFDir, 0o755); err != nil {
		return false, fmt.Errorf("creating pdf directory: %w", err)
	}

	destPath := filepath.Join(cfg.PDFDir, paper.FileID()+".pdf")
	if _, err := os.Stat(destPath); err == nil {
		fmt.Fprintf(w, "skipped %s (already downloaded)\n", paper.FileID())
		return true, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, paper.PDFURL, nil)
	if err != nil {
		return false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)
	req.Header.Set("Accept", "application/pdf")

	resp, err := client.Do(req)
	if err != nil {
		return false, fmt.Errorf("fetching %s: %w", paper.PDFURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("HTTP %d from %s", resp.StatusCode, paper.PDFURL)
	}

	tmpFile, err := os.CreateTemp(cfg.PDFDir, ".download-*.tmp")
	if err != nil {
		return false, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.Copy(tmpFile, resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return false, fmt.Errorf("writing %s: %w", destPath, copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return false, fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return false, fmt.Errorf("renaming temp file: %w", err)
	}

	fmt.Fprintf(w, "downloaded %s\n", paper.FileID())
	return false, nil
}

// Summary holds counts from a batch download run.
type Summary struct {
	Downloaded int
	Skipped    int
	Failed     int
}

// Statuser is the slice of the store the batch runner needs.
type Statuser interface {
	MarkStatus(ctx context.Context, id string, status types.Status, errMsg string) error
}

// Batch downloads each paper in order, pausing cfg.DownloadDelay between
// network fetches. Successful (and already-present) papers advance to
// processed; failures are marked downloadFailed and do not abort the run.
func Batch(ctx context.Context, client *http.Client, st Statuser, papers []types.Paper, cfg types.DownloadConfig, w io.Writer) (Summary, error) {
	delay := cfg.DownloadDelay
	if delay <= 0 {
		delay = DefaultDelay
	}

	var summary Summary
	for i, paper := range papers {
		skipped, err := Fetch(ctx, client, paper, cfg, w)
		if err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			fmt.Fprintf(w, "failed %s: %v\n", paper.FileID(), err)
			summary.Failed++
			if markErr := st.MarkStatus(ctx, paper.ID, types.StatusDownloadFailed, err.Error()); markErr != nil {
				return summary, markErr
			}
			continue
		}

		if skipped {
			summary.Skipped++
		} else {
			summary.Downloaded++
		}
		if err := st.MarkStatus(ctx, paper.ID, types.StatusProcessed, ""); err != nil {
			return summary, err
		}

		// Pause between network fetches only.
		if !skipped && i < len(papers)-1 {
			select {
			case <-ctx.Done():
				return summary, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	fmt.Fprintf(w, "\nDownloaded %d papers (%d skipped, %d failed)\n",
		summary.Downloaded, summary.Skipped, summary.Failed)
	return summary, nil
}
