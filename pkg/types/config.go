package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout (default 30s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "paperscout/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// ResolveConfig holds settings for the title-resolution stage.
type ResolveConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxResults is the maximum number of candidates requested per backend
	// (default 10; the OpenAlex backend caps it at 25 regardless).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// MinSimilarity is the confidence threshold a candidate title must meet
	// against the query title (default 0.8).
	MinSimilarity float64 `json:"min_similarity" yaml:"min_similarity"`

	// OpenAlexEmail is sent as the mailto parameter for polite pool access.
	OpenAlexEmail string `json:"openalex_email,omitempty" yaml:"openalex_email,omitempty"`

	// RateLimitCooldown, when positive, makes the batch driver sleep this
	// long and retry after the primary backend signals throttling. Zero
	// means the rate-limit error aborts the batch with partial results.
	RateLimitCooldown time.Duration `json:"rate_limit_cooldown" yaml:"rate_limit_cooldown"`

	// MaxRateLimitRetries bounds cooldown retries per reference (default 3).
	MaxRateLimitRetries int `json:"max_rate_limit_retries" yaml:"max_rate_limit_retries"`
}

// CollectConfig holds settings for the conference listing collectors.
type CollectConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxRows caps how many listing rows are fetched per venue (default 5000).
	MaxRows int `json:"max_rows" yaml:"max_rows"`

	// PageSize is the DBLP API page size (default 1000).
	PageSize int `json:"page_size" yaml:"page_size"`
}

// StoreConfig holds settings for the SQLite paper store.
type StoreConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string `json:"db_path" yaml:"db_path"`
}

// DownloadConfig holds settings for the PDF download stage.
type DownloadConfig struct {
	HTTPConfig `yaml:",inline"`

	// PDFDir is the directory PDFs are written to.
	PDFDir string `json:"pdf_dir" yaml:"pdf_dir"`

	// DownloadDelay is the delay between consecutive downloads (default 1s).
	DownloadDelay time.Duration `json:"download_delay" yaml:"download_delay"`
}

// WebConfig holds settings for the viewer API server.
type WebConfig struct {
	// Bind is the listen address (e.g. "127.0.0.1:8080").
	Bind string `json:"bind" yaml:"bind"`

	// PDFDir and TextDir are where downloaded PDFs and extracted text live.
	PDFDir  string `json:"pdf_dir" yaml:"pdf_dir"`
	TextDir string `json:"text_dir" yaml:"text_dir"`

	// SectionLimit caps how many papers each status section returns (default 200).
	SectionLimit int `json:"section_limit" yaml:"section_limit"`
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	Resolve  ResolveConfig  `json:"resolve" yaml:"resolve"`
	Collect  CollectConfig  `json:"collect" yaml:"collect"`
	Store    StoreConfig    `json:"store" yaml:"store"`
	Download DownloadConfig `json:"download" yaml:"download"`
	Web      WebConfig      `json:"web" yaml:"web"`
}
