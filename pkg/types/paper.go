// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the paperscout pipeline:
// conference listing references, search candidates, resolved papers, and the
// persisted paper record with its status lifecycle.
package types

// PaperRef is a raw row from a conference listing: a title, an optional
// link, and a label identifying the listing it came from (e.g. "ICLR2025").
// Produced by the collectors, consumed as the query input for resolution.
type PaperRef struct {
	// Title is the paper title as listed by the conference.
	Title string `json:"title" yaml:"title"`

	// URL is the listing's link for the paper, when present.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Source labels the originating listing (e.g. "ICLR2025").
	Source string `json:"source" yaml:"source"`
}

// Candidate is one normalized search result returned by a resolution
// backend, not yet confirmed as a match for the query title.
type Candidate struct {
	// Title is the candidate title as returned by the backend.
	Title string `json:"title" yaml:"title"`

	// ArxivID is the bare arXiv identifier (e.g. "2301.07041"), version
	// suffix stripped, or empty if the backend found none.
	ArxivID string `json:"arxiv_id,omitempty" yaml:"arxiv_id,omitempty"`

	// PDFURL points at a downloadable PDF, or is empty when the backend
	// could not resolve one.
	PDFURL string `json:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Abstract is the paper abstract or summary.
	Abstract string `json:"abstract" yaml:"abstract"`

	// PublishedDate is the publication date as the backend reports it:
	// RFC 3339 from arXiv, a bare year from OpenAlex. May be empty.
	PublishedDate string `json:"published_date" yaml:"published_date"`
}

// ResolvedPaper is a confirmed match: the selected candidate plus the
// source label carried over from the originating PaperRef.
type ResolvedPaper struct {
	Candidate `yaml:",inline"`

	// Source labels the conference listing the query title came from.
	Source string `json:"source" yaml:"source"`
}

// Status tracks where a stored paper sits in the pipeline.
type Status string

// Status values as written to the papers table. The strings are part of the
// stored data and the viewer API, so they stay stable.
const (
	StatusPending        Status = "pendingTitles"
	StatusToDownload     Status = "TobeDownloaded"
	StatusProcessed      Status = "processed"
	StatusAnalyzed       Status = "analyzed"
	StatusDetailFailed   Status = "detailFailed"
	StatusDownloadFailed Status = "downloadFailed"
)

// Paper is the persisted paper record.
type Paper struct {
	// ID is the stable row key: the arXiv ID once known, otherwise a hash
	// of the normalized title assigned when the ref is first stored.
	ID string `json:"id" yaml:"id"`

	// Title is the paper title.
	Title string `json:"title" yaml:"title"`

	// URL is the conference listing's link for the paper, when present.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Source labels the conference listing (e.g. "ICLR2025").
	Source string `json:"source" yaml:"source"`

	// ArxivID is the resolved arXiv identifier, or empty before resolution.
	ArxivID string `json:"arxiv_id,omitempty" yaml:"arxiv_id,omitempty"`

	// PDFURL is the resolved PDF link, or empty before resolution.
	PDFURL string `json:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Abstract is the paper abstract.
	Abstract string `json:"abstract" yaml:"abstract"`

	// PublishedDate is the publication date string reported by the backend.
	PublishedDate string `json:"published_date" yaml:"published_date"`

	// Status is the pipeline status of this record.
	Status Status `json:"status" yaml:"status"`

	// Error holds the last failure message for failed statuses.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	// CreatedAt and UpdatedAt are RFC 3339 timestamps maintained by the store.
	CreatedAt string `json:"created_at" yaml:"created_at"`
	UpdatedAt string `json:"updated_at" yaml:"updated_at"`
}

// FileID returns the identifier used for on-disk artifacts (PDF, text):
// the arXiv ID when known, the row ID otherwise.
func (p Paper) FileID() string {
	if p.ArxivID != "" {
		return p.ArxivID
	}
	return p.ID
}
