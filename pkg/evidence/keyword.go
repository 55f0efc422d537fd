package evidence

import (
	"context"
	"sort"
	"strings"
)

const snippetLimit = 300

// KeywordGateway serves evidence from an in-memory corpus by deterministic
// keyword overlap. It is the fallback backend when no vector index is
// configured, and never incurs network latency.
type KeywordGateway struct {
	docs []Document
}

// NewKeywordGateway creates a keyword-matching gateway. A nil corpus uses
// the seeded default.
func NewKeywordGateway(docs []Document) *KeywordGateway {
	if docs == nil {
		docs = SeedCorpus
	}
	return &KeywordGateway{docs: docs}
}

// SearchEvidence scores every document by keyword overlap with the query
// and the hint terms: a hit in title+content counts 2, a hit in the
// document's keyword list counts 3. Zero-score documents are dropped;
// results come back sorted descending and capped at limit.
func (g *KeywordGateway) SearchEvidence(ctx context.Context, query string, keywordHints []string, limit int) ([]Item, error) {
	if limit <= 0 {
		limit = 5
	}

	terms := make([]string, 0, 1+len(keywordHints))
	terms = append(terms, strings.ToLower(query))
	for _, k := range keywordHints {
		terms = append(terms, strings.ToLower(k))
	}

	type scored struct {
		doc   Document
		score int
	}
	var hits []scored
	for _, doc := range g.docs {
		docText := strings.ToLower(doc.Title + " " + doc.Content)
		score := 0
		for _, term := range terms {
			if term == "" {
				continue
			}
			if strings.Contains(docText, term) {
				score += 2
			}
			for _, dk := range doc.Keywords {
				if strings.ToLower(dk) == term {
					score += 3
					break
				}
			}
		}
		if score > 0 {
			hits = append(hits, scored{doc: doc, score: score})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > limit {
		hits = hits[:limit]
	}

	items := make([]Item, 0, len(hits))
	for _, h := range hits {
		items = append(items, Item{
			Source:          h.doc.Source,
			SourceType:      h.doc.SourceType,
			Snippet:         truncateSnippet(h.doc.Content),
			PMID:            h.doc.PMID,
			DOI:             h.doc.DOI,
			URL:             h.doc.URL,
			Confidence:      h.doc.Confidence,
			PublicationDate: h.doc.Year,
			Section:         h.doc.Title,
		})
	}
	return items, nil
}

func truncateSnippet(content string) string {
	runes := []rune(content)
	if len(runes) <= snippetLimit {
		return content
	}
	return string(runes[:snippetLimit]) + "..."
}
