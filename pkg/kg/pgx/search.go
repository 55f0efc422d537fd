package pgx

import (
	"context"

	"github.com/Dango-F/medical-chat/pkg/kg"
	"github.com/Dango-F/medical-chat/pkg/logger"
)

// SearchEntities looks a keyword up as graph nodes of one kind.
//
// The cascade runs exact match (name or alias), then the fulltext index,
// then an ILIKE substring scan ranked exact > prefix > substring. Each
// stage's failure degrades silently to the next; a keyword that misses is
// also retried with modifier words stripped (普通感冒 -> 感冒).
func (g *GraphDBGateway) SearchEntities(ctx context.Context, keyword, kind string, limit int) ([]kg.Entity, error) {
	if !g.Connected() || keyword == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	keywords := []string{keyword}
	if norm := kg.NormalizeKeyword(keyword); norm != "" {
		keywords = append(keywords, norm)
	}

	for _, kw := range keywords {
		if hits, err := g.searchExact(ctx, kw, kind, limit); err != nil {
			logger.Debug("exact entity search failed", "keyword", kw, "error", err)
		} else if len(hits) > 0 {
			return hits, nil
		}
	}

	for _, kw := range keywords {
		if hits, err := g.searchFulltext(ctx, kw, kind, limit); err != nil {
			logger.Debug("fulltext entity search failed", "keyword", kw, "error", err)
		} else if len(hits) > 0 {
			return hits, nil
		}
	}

	for _, kw := range keywords {
		hits, err := g.searchSubstring(ctx, kw, kind, limit)
		if err != nil {
			logger.Error("substring entity search failed", "keyword", kw, "error", err)
			continue
		}
		if len(hits) > 0 {
			return hits, nil
		}
	}
	return nil, nil
}

func (g *GraphDBGateway) searchExact(ctx context.Context, keyword, kind string, limit int) ([]kg.Entity, error) {
	rows, err := g.conn.Query(ctx, `
		SELECT name FROM kg_nodes
		WHERE kind = $1 AND (name = $2 OR $2 = ANY(aliases))
		LIMIT $3`,
		kind, keyword, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []kg.Entity
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		hits = append(hits, kg.Entity{Name: name, Kind: kind, Match: kg.MatchExact, Score: 1})
	}
	return hits, rows.Err()
}

func (g *GraphDBGateway) searchFulltext(ctx context.Context, keyword, kind string, limit int) ([]kg.Entity, error) {
	rows, err := g.conn.Query(ctx, `
		SELECT name, ts_rank(search, plainto_tsquery('simple', $2)) AS score
		FROM kg_nodes
		WHERE kind = $1 AND search @@ plainto_tsquery('simple', $2)
		ORDER BY score DESC, name
		LIMIT $3`,
		kind, keyword, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []kg.Entity
	for rows.Next() {
		var (
			name  string
			score float64
		)
		if err := rows.Scan(&name, &score); err != nil {
			return nil, err
		}
		hits = append(hits, kg.Entity{Name: name, Kind: kind, Match: kg.MatchFulltext, Score: score})
	}
	return hits, rows.Err()
}

func (g *GraphDBGateway) searchSubstring(ctx context.Context, keyword, kind string, limit int) ([]kg.Entity, error) {
	rows, err := g.conn.Query(ctx, `
		SELECT name,
		       CASE
		         WHEN name = $2 THEN 0
		         WHEN name LIKE $2 || '%' THEN 1
		         ELSE 2
		       END AS rank
		FROM kg_nodes
		WHERE kind = $1 AND (
		      name ILIKE '%' || $2 || '%'
		   OR EXISTS (SELECT 1 FROM unnest(aliases) a WHERE a ILIKE '%' || $2 || '%'))
		ORDER BY rank, name
		LIMIT $3`,
		kind, keyword, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []kg.Entity
	for rows.Next() {
		var (
			name string
			rank int
		)
		if err := rows.Scan(&name, &rank); err != nil {
			return nil, err
		}
		hits = append(hits, kg.Entity{
			Name:  name,
			Kind:  kind,
			Match: kg.MatchSubstring,
			Score: substringScore(rank),
		})
	}
	return hits, rows.Err()
}

// substringScore maps the SQL rank (exact=0, prefix=1, substring=2) onto a
// descending score so callers can compare stages uniformly.
func substringScore(rank int) float64 {
	switch rank {
	case 0:
		return 1
	case 1:
		return 0.8
	default:
		return 0.6
	}
}
