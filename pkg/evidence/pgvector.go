package evidence

import (
	"context"
	"fmt"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/Dango-F/medical-chat/pkg/ai"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
}

// VectorGateway retrieves evidence by embedding similarity over the
// evidence_docs table. The stored per-document confidence is blended with
// the cosine similarity of the match.
type VectorGateway struct {
	conn     pgxIConn
	aiClient ai.ChatAIClient
}

// NewVectorGateway creates a vector-index evidence gateway over an
// existing connection.
func NewVectorGateway(conn pgxIConn, aiClient ai.ChatAIClient) *VectorGateway {
	return &VectorGateway{conn: conn, aiClient: aiClient}
}

// SearchEvidence embeds the query plus hint terms and returns the nearest
// documents by cosine distance, sorted descending by blended confidence.
func (g *VectorGateway) SearchEvidence(ctx context.Context, query string, keywordHints []string, limit int) ([]Item, error) {
	if limit <= 0 {
		limit = 5
	}

	embedInput := query
	for _, k := range keywordHints {
		embedInput += " " + k
	}
	embedding, err := g.aiClient.GenerateEmbedding(ctx, []byte(embedInput))
	if err != nil {
		return nil, fmt.Errorf("embedding evidence query: %w", err)
	}

	rows, err := g.conn.Query(ctx, `
		SELECT title, content, source, source_type,
		       COALESCE(pmid, ''), COALESCE(doi, ''), COALESCE(url, ''),
		       COALESCE(year, ''), confidence,
		       1 - (embedding <=> $1) AS similarity
		FROM evidence_docs
		ORDER BY embedding <=> $1
		LIMIT $2`,
		pgvector.NewVector(embedding), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("evidence vector search: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var (
			title, content, source, sourceType string
			pmid, doi, url, year               string
			confidence, similarity             float64
		)
		err := rows.Scan(&title, &content, &source, &sourceType,
			&pmid, &doi, &url, &year, &confidence, &similarity)
		if err != nil {
			return nil, err
		}
		items = append(items, Item{
			Source:          source,
			SourceType:      sourceType,
			Snippet:         truncateSnippet(content),
			PMID:            pmid,
			DOI:             doi,
			URL:             url,
			Confidence:      blendConfidence(confidence, similarity),
			PublicationDate: year,
			Section:         title,
		})
	}
	return items, rows.Err()
}

// blendConfidence averages the stored document confidence with the match
// similarity, clamped to [0,1].
func blendConfidence(confidence, similarity float64) float64 {
	if similarity < 0 {
		similarity = 0
	}
	if similarity > 1 {
		similarity = 1
	}
	blended := (confidence + similarity) / 2
	if blended < 0 {
		return 0
	}
	if blended > 1 {
		return 1
	}
	return blended
}
