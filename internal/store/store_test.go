package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jyozhou/paperscout/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(types.StoreConfig{DBPath: filepath.Join(t.TempDir(), "papers.db")})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(types.StoreConfig{}); err == nil {
		t.Fatal("expected error for empty db path")
	}
}

func TestAddRefs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	refs := []types.PaperRef{
		{Title: "Paper One", URL: "https://example.org/1", Source: "ICLR2024"},
		{Title: "Paper Two", Source: "ICLR2024"},
		{Title: "", Source: "ICLR2024"},
	}

	inserted, err := s.AddRefs(ctx, refs)
	if err != nil {
		t.Fatalf("AddRefs: %v", err)
	}
	if inserted != 2 {
		t.Errorf("inserted = %d, want 2 (empty title skipped)", inserted)
	}

	pending, err := s.PapersByStatus(ctx, types.StatusPending, 0)
	if err != nil {
		t.Fatalf("PapersByStatus: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("got %d pending papers, want 2", len(pending))
	}
	if pending[0].Status != types.StatusPending {
		t.Errorf("Status = %q", pending[0].Status)
	}
	if pending[0].CreatedAt == "" || pending[0].UpdatedAt == "" {
		t.Error("timestamps not set")
	}
}

func TestAddRefsIgnoresDuplicates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	refs := []types.PaperRef{{Title: "Same Paper", Source: "ICLR2024"}}
	if _, err := s.AddRefs(ctx, refs); err != nil {
		t.Fatalf("AddRefs: %v", err)
	}

	// Same title, different case: same hash, no new row.
	inserted, err := s.AddRefs(ctx, []types.PaperRef{{Title: "SAME  paper", Source: "ICML2024"}})
	if err != nil {
		t.Fatalf("AddRefs: %v", err)
	}
	if inserted != 0 {
		t.Errorf("inserted = %d, want 0 for duplicate title", inserted)
	}
}

func TestSaveResolvedRekeysToArxivID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.AddRefs(ctx, []types.PaperRef{
		{Title: "Attention Is All You Need", URL: "https://example.org/listing", Source: "ICLR2024"},
	}); err != nil {
		t.Fatalf("AddRefs: %v", err)
	}
	pendingID := RefID("Attention Is All You Need")

	resolved := types.ResolvedPaper{
		Candidate: types.Candidate{
			Title:         "Attention Is All You Need",
			ArxivID:       "1706.03762",
			PDFURL:        "https://arxiv.org/pdf/1706.03762.pdf",
			Authors:       []string{"Ashish Vaswani"},
			Abstract:      "The dominant sequence transduction models...",
			PublishedDate: "2017-06-12T17:57:34Z",
		},
		Source: "ICLR2024",
	}
	if err := s.SaveResolved(ctx, pendingID, resolved); err != nil {
		t.Fatalf("SaveResolved: %v", err)
	}

	// Pending row replaced by the arXiv-keyed row.
	if _, err := s.PaperByID(ctx, pendingID); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("pending row still present (err = %v)", err)
	}

	paper, err := s.PaperByID(ctx, "1706.03762")
	if err != nil {
		t.Fatalf("PaperByID: %v", err)
	}
	if paper.Status != types.StatusToDownload {
		t.Errorf("Status = %q, want TobeDownloaded", paper.Status)
	}
	if paper.URL != "https://example.org/listing" {
		t.Errorf("URL = %q, want listing URL preserved", paper.URL)
	}
	if len(paper.Authors) != 1 || paper.Authors[0] != "Ashish Vaswani" {
		t.Errorf("Authors = %v", paper.Authors)
	}
	if paper.FileID() != "1706.03762" {
		t.Errorf("FileID = %q", paper.FileID())
	}
}

func TestSaveResolvedWithoutArxivIDKeepsKey(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.AddRefs(ctx, []types.PaperRef{{Title: "Obscure Workshop Paper", Source: "CORL2023"}}); err != nil {
		t.Fatalf("AddRefs: %v", err)
	}
	pendingID := RefID("Obscure Workshop Paper")

	resolved := types.ResolvedPaper{
		Candidate: types.Candidate{
			Title:  "Obscure Workshop Paper",
			PDFURL: "https://example.org/paper.pdf",
		},
		Source: "CORL2023",
	}
	if err := s.SaveResolved(ctx, pendingID, resolved); err != nil {
		t.Fatalf("SaveResolved: %v", err)
	}

	paper, err := s.PaperByID(ctx, pendingID)
	if err != nil {
		t.Fatalf("PaperByID: %v", err)
	}
	if paper.Status != types.StatusToDownload {
		t.Errorf("Status = %q", paper.Status)
	}
	if paper.FileID() != pendingID {
		t.Errorf("FileID = %q, want row id when no arXiv id", paper.FileID())
	}
}

func TestMarkStatus(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.AddRefs(ctx, []types.PaperRef{{Title: "Some Paper", Source: "ICML2024"}}); err != nil {
		t.Fatalf("AddRefs: %v", err)
	}
	id := RefID("Some Paper")

	if err := s.MarkStatus(ctx, id, types.StatusDetailFailed, "no confident match"); err != nil {
		t.Fatalf("MarkStatus: %v", err)
	}

	paper, err := s.PaperByID(ctx, id)
	if err != nil {
		t.Fatalf("PaperByID: %v", err)
	}
	if paper.Status != types.StatusDetailFailed {
		t.Errorf("Status = %q", paper.Status)
	}
	if paper.Error != "no confident match" {
		t.Errorf("Error = %q", paper.Error)
	}

	if err := s.MarkStatus(ctx, "missing-id", types.StatusProcessed, ""); err == nil {
		t.Error("expected error for unknown id")
	}
}

func TestPapersByStatusLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	refs := []types.PaperRef{
		{Title: "Paper A", Source: "X"},
		{Title: "Paper B", Source: "X"},
		{Title: "Paper C", Source: "X"},
	}
	if _, err := s.AddRefs(ctx, refs); err != nil {
		t.Fatalf("AddRefs: %v", err)
	}

	papers, err := s.PapersByStatus(ctx, types.StatusPending, 2)
	if err != nil {
		t.Fatalf("PapersByStatus: %v", err)
	}
	if len(papers) != 2 {
		t.Errorf("got %d papers, want limit of 2", len(papers))
	}
}

func TestCountByStatus(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.AddRefs(ctx, []types.PaperRef{
		{Title: "Paper A", Source: "X"},
		{Title: "Paper B", Source: "X"},
	}); err != nil {
		t.Fatalf("AddRefs: %v", err)
	}
	if err := s.MarkStatus(ctx, RefID("Paper A"), types.StatusDetailFailed, "x"); err != nil {
		t.Fatalf("MarkStatus: %v", err)
	}

	counts, total, err := s.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if total != 2 {
		t.Errorf("total = %d, want 2", total)
	}
	if counts[types.StatusPending] != 1 || counts[types.StatusDetailFailed] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestDeduplicateTitles(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Two rows with the same title: one pending (title-hash key), one
	// resolved under its arXiv id.
	if _, err := s.AddRefs(ctx, []types.PaperRef{{Title: "Duplicated Paper", Source: "ICLR2023"}}); err != nil {
		t.Fatalf("AddRefs: %v", err)
	}
	resolved := types.ResolvedPaper{
		Candidate: types.Candidate{Title: "Duplicated Paper", ArxivID: "2301.00001", PDFURL: "https://arxiv.org/pdf/2301.00001.pdf"},
		Source:    "ICLR2024",
	}
	// Resolve under a different pending key so both rows survive.
	if err := s.SaveResolved(ctx, "unrelated-pending-id", resolved); err != nil {
		t.Fatalf("SaveResolved: %v", err)
	}

	var buf bytes.Buffer
	removed, err := s.DeduplicateTitles(ctx, false, &buf)
	if err != nil {
		t.Fatalf("DeduplicateTitles dry run: %v", err)
	}
	if removed != 1 {
		t.Fatalf("dry run removed = %d, want 1", removed)
	}
	if !strings.Contains(buf.String(), "dry run") {
		t.Errorf("output %q should mention dry run", buf.String())
	}

	// Dry run must not delete anything.
	if _, _, err := s.CountByStatus(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := s.PaperByID(ctx, RefID("Duplicated Paper")); err != nil {
		t.Fatalf("dry run deleted the pending row: %v", err)
	}

	buf.Reset()
	removed, err = s.DeduplicateTitles(ctx, true, &buf)
	if err != nil {
		t.Fatalf("DeduplicateTitles apply: %v", err)
	}
	if removed != 1 {
		t.Fatalf("apply removed = %d, want 1", removed)
	}

	// The arXiv-keyed row wins.
	if _, err := s.PaperByID(ctx, "2301.00001"); err != nil {
		t.Errorf("arXiv row should be kept: %v", err)
	}
	if _, err := s.PaperByID(ctx, RefID("Duplicated Paper")); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("title-hash row should be removed (err = %v)", err)
	}
}

func TestDeduplicateTitlesNoDuplicates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.AddRefs(ctx, []types.PaperRef{{Title: "Unique Paper", Source: "X"}}); err != nil {
		t.Fatalf("AddRefs: %v", err)
	}

	var buf bytes.Buffer
	removed, err := s.DeduplicateTitles(ctx, true, &buf)
	if err != nil {
		t.Fatalf("DeduplicateTitles: %v", err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
}

func TestRefIDStable(t *testing.T) {
	a := RefID("Attention Is All You Need")
	b := RefID("  attention   is all you NEED ")
	if a != b {
		t.Errorf("RefID not normalization-stable: %q vs %q", a, b)
	}
	if a == RefID("A Different Paper") {
		t.Error("distinct titles should not collide")
	}
}
