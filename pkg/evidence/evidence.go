package evidence

import "context"

// Source categories carried on the wire.
const (
	SourcePubMed         = "pubmed"
	SourceGuideline      = "guideline"
	SourceDrugBank       = "drugbank"
	SourceKnowledgeGraph = "knowledge_graph"
	SourceClinicalTrial  = "clinical_trial"
	SourceWHO            = "who"
	SourceOther          = "other"
)

// Item is one ranked literature snippet with provenance. Immutable once
// returned.
type Item struct {
	Source          string  `json:"source"`
	SourceType      string  `json:"source_type"`
	Snippet         string  `json:"snippet"`
	PMID            string  `json:"pmid,omitempty"`
	DOI             string  `json:"doi,omitempty"`
	URL             string  `json:"url,omitempty"`
	Confidence      float64 `json:"confidence"`
	PublicationDate string  `json:"publication_date,omitempty"`
	Section         string  `json:"section,omitempty"`
}

// Gateway retrieves literature evidence for a query. Implementations are
// interchangeable; callers never know whether a vector index or a keyword
// matcher served the results. Results are sorted descending by relevance
// and capped at limit.
type Gateway interface {
	SearchEvidence(ctx context.Context, query string, keywordHints []string, limit int) ([]Item, error)
}
