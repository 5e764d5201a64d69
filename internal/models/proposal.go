package models

// Sentinel values used when the metadata table is missing a field.
const (
	UnknownField        = "Unknown"
	NoAbstractAvailable = "No abstract available"
)

// Complexity buckets for proposal documents.
const (
	ComplexityLow    = "Low"
	ComplexityMedium = "Medium"
	ComplexityHigh   = "High"
)

// Author is one entry of a proposal's author list. Handle is the forum or
// GitHub handle when the source document provides one.
type Author struct {
	Name   string `json:"name"`
	Handle string `json:"handle,omitempty"`
}

// ProposalDocument is the parsed result of one proposal text document.
// Instances are built once per raw-text input and never mutated afterwards.
type ProposalDocument struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Status       string   `json:"status"`
	Track        string   `json:"track"`
	Authors      []Author `json:"authors"`
	Discussion   string   `json:"discussion,omitempty"`
	Abstract     string   `json:"abstract"`
	Tags         []string `json:"tags"`
	Complexity   string   `json:"complexity"`
	ReadingTime  int      `json:"readingTime"`
	Dependencies []string `json:"dependencies,omitempty"`
	Replaces     []string `json:"replaces,omitempty"`
	SupersededBy []string `json:"supersededBy,omitempty"`
}

// ProposalStats aggregates a proposal list by status, track and complexity.
type ProposalStats struct {
	Total        int            `json:"total"`
	ByStatus     map[string]int `json:"byStatus"`
	ByTrack      map[string]int `json:"byTrack"`
	ByComplexity map[string]int `json:"byComplexity"`
}

// ProcessedProposals mirrors the pre-built JSON document published alongside
// the proposal repository: the full parsed list plus aggregate counts.
type ProcessedProposals struct {
	Proposals   []ProposalDocument `json:"proposals"`
	Stats       ProposalStats      `json:"stats"`
	GeneratedAt string             `json:"generatedAt,omitempty"`
}
