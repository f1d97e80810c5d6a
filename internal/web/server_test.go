package web

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jyozhou/paperscout/pkg/types"
)

// fakeStore serves a fixed set of papers keyed by ID.
type fakeStore struct {
	papers map[string]types.Paper
}

func (f *fakeStore) PapersByStatus(_ context.Context, status types.Status, limit int) ([]types.Paper, error) {
	var out []types.Paper
	for _, p := range f.papers {
		if p.Status == status {
			out = append(out, p)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) PaperByID(_ context.Context, id string) (types.Paper, error) {
	p, ok := f.papers[id]
	if !ok {
		return types.Paper{}, sql.ErrNoRows
	}
	return p, nil
}

func (f *fakeStore) CountByStatus(_ context.Context) (map[types.Status]int, int, error) {
	counts := make(map[types.Status]int)
	for _, p := range f.papers {
		counts[p.Status]++
	}
	return counts, len(f.papers), nil
}

func testServer(t *testing.T, store *fakeStore, cfg types.WebConfig) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(NewServer(store, cfg, nil).Handler())
	t.Cleanup(server.Close)
	return server
}

func storeWith(papers ...types.Paper) *fakeStore {
	f := &fakeStore{papers: make(map[string]types.Paper)}
	for _, p := range papers {
		f.papers[p.ID] = p
	}
	return f
}

func TestHandlePapers(t *testing.T) {
	store := storeWith(
		types.Paper{ID: "a", Title: "Pending Paper", Status: types.StatusPending},
		types.Paper{ID: "2301.00001", ArxivID: "2301.00001", Title: "Done Paper", Status: types.StatusProcessed},
	)
	server := testServer(t, store, types.WebConfig{})

	resp, err := http.Get(server.URL + "/api/papers")
	if err != nil {
		t.Fatalf("GET /api/papers: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body papersResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body.Total != 2 {
		t.Errorf("Total = %d, want 2", body.Total)
	}
	if len(body.Sections) != 6 {
		t.Fatalf("got %d sections, want one per lifecycle status", len(body.Sections))
	}
	if body.Sections[0].Status != types.StatusPending || body.Sections[0].Count != 1 {
		t.Errorf("first section = %+v", body.Sections[0])
	}
}

func TestHandlePapersMethodNotAllowed(t *testing.T) {
	server := testServer(t, storeWith(), types.WebConfig{})

	resp, err := http.Post(server.URL+"/api/papers", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestHandlePaperDetail(t *testing.T) {
	pdfDir := t.TempDir()
	textDir := t.TempDir()

	paper := types.Paper{ID: "2301.00001", ArxivID: "2301.00001", Title: "Done Paper", Status: types.StatusProcessed}
	if err := os.WriteFile(filepath.Join(pdfDir, "2301.00001.pdf"), []byte("%PDF"), 0o644); err != nil {
		t.Fatal(err)
	}
	longText := strings.Repeat("x", 6000)
	if err := os.WriteFile(filepath.Join(textDir, "2301.00001.txt"), []byte(longText), 0o644); err != nil {
		t.Fatal(err)
	}

	server := testServer(t, storeWith(paper), types.WebConfig{PDFDir: pdfDir, TextDir: textDir})

	resp, err := http.Get(server.URL + "/api/papers/2301.00001")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var detail paperDetail
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !detail.HasPDF || !detail.HasText {
		t.Errorf("HasPDF = %v, HasText = %v, want both true", detail.HasPDF, detail.HasText)
	}
	if got := len([]rune(detail.TextPreview)); got != textPreviewRunes {
		t.Errorf("preview length = %d runes, want %d", got, textPreviewRunes)
	}
}

func TestHandlePaperDetailNotFound(t *testing.T) {
	server := testServer(t, storeWith(), types.WebConfig{})

	resp, err := http.Get(server.URL + "/api/papers/missing")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHandlePDF(t *testing.T) {
	pdfDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(pdfDir, "2301.00001.pdf"), []byte("%PDF content"), 0o644); err != nil {
		t.Fatal(err)
	}

	// Row keyed by title hash but with an arXiv ID: /pdf/{rowID} must
	// resolve to the arXiv-named file.
	paper := types.Paper{ID: "tabc123", ArxivID: "2301.00001", Status: types.StatusProcessed}
	server := testServer(t, storeWith(paper), types.WebConfig{PDFDir: pdfDir})

	resp, err := http.Get(server.URL + "/pdf/tabc123")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/pdf" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := resp.Header.Get("Content-Disposition"); !strings.Contains(got, "inline") {
		t.Errorf("Content-Disposition = %q, want inline", got)
	}
}

func TestHandlePDFMissingFile(t *testing.T) {
	paper := types.Paper{ID: "a", Status: types.StatusPending}
	server := testServer(t, storeWith(paper), types.WebConfig{PDFDir: t.TempDir()})

	resp, err := http.Get(server.URL + "/pdf/a")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHandleText(t *testing.T) {
	textDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(textDir, "2301.00001.txt"), []byte("extracted text"), 0o644); err != nil {
		t.Fatal(err)
	}

	paper := types.Paper{ID: "2301.00001", ArxivID: "2301.00001", Status: types.StatusProcessed}
	server := testServer(t, storeWith(paper), types.WebConfig{TextDir: textDir})

	resp, err := http.Get(server.URL + "/text/2301.00001")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); !strings.HasPrefix(got, "text/plain") {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestServeArtifactRejectsTraversal(t *testing.T) {
	server := testServer(t, storeWith(), types.WebConfig{PDFDir: t.TempDir()})

	req, err := http.NewRequest(http.MethodGet, server.URL+"/pdf/..%2Fsecret", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		t.Error("path traversal request should not succeed")
	}
}

func TestStartAndShutdown(t *testing.T) {
	srv := NewServer(storeWith(), types.WebConfig{Bind: "127.0.0.1:0"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/api/papers")
	if err != nil {
		t.Fatalf("GET against running server: %v", err)
	}
	resp.Body.Close()

	cancel()
	srv.Stop()
}
