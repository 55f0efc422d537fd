package pgx

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/Dango-F/medical-chat/pkg/kg"
	"github.com/Dango-F/medical-chat/pkg/logger"
)

// ExpandEntity loads the full relation bundle of a disease. The name is
// first tried verbatim; a miss falls back onto the search cascade and takes
// the top hit. The facets are fetched concurrently, and a facet that fails
// only nulls itself out.
func (g *GraphDBGateway) ExpandEntity(ctx context.Context, name string) (*kg.DiseaseBundle, error) {
	if !g.Connected() {
		return nil, nil
	}

	bundle, err := g.diseaseInfo(ctx, name)
	if err != nil {
		logger.Error("disease lookup failed", "name", name, "error", err)
		return nil, nil
	}
	if bundle == nil {
		hits, err := g.SearchEntities(ctx, name, kg.KindDisease, 1)
		if err != nil || len(hits) == 0 {
			return nil, nil
		}
		bundle, err = g.diseaseInfo(ctx, hits[0].Name)
		if err != nil || bundle == nil {
			return nil, nil
		}
	}

	facets := []struct {
		relation string
		dst      *[]string
	}{
		{kg.RelHasSymptom, &bundle.Symptoms},
		{kg.RelCommonDrug, &bundle.CommonDrugs},
		{kg.RelRecommendDrug, &bundle.RecommendedDrugs},
		{kg.RelDoEat, &bundle.DoEat},
		{kg.RelNoEat, &bundle.NotEat},
		{kg.RelRecommendEat, &bundle.RecommendedFoods},
		{kg.RelNeedCheck, &bundle.Checks},
		{kg.RelBelongsTo, &bundle.Departments},
		{kg.RelCureWay, &bundle.CureWays},
		{kg.RelAccompanyWith, &bundle.Complications},
	}

	eg, ectx := errgroup.WithContext(ctx)
	for _, f := range facets {
		relation := f.relation
		dst := f.dst
		eg.Go(func() error {
			names, err := g.followRelation(ectx, bundle.Name, relation, false, 0)
			if err != nil {
				// a failed facet stays empty, the bundle survives
				logger.Debug("facet query failed", "disease", bundle.Name, "relation", relation, "error", err)
				return nil
			}
			*dst = names
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return bundle, nil
}

// RelatedEntities follows one relation kind from the named node. For
// has_symptom with a symptom name the edge is traversed backwards,
// answering "which diseases have this symptom".
func (g *GraphDBGateway) RelatedEntities(ctx context.Context, name, relation string, limit int) ([]string, error) {
	if !g.Connected() {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	reverse := false
	if relation == kg.RelHasSymptom {
		kind, err := g.nodeKind(ctx, name)
		if err == nil && kind == kg.KindSymptom {
			reverse = true
		}
	}

	names, err := g.followRelation(ctx, name, relation, reverse, limit)
	if err != nil {
		logger.Error("relation traversal failed", "name", name, "relation", relation, "error", err)
		return nil, nil
	}
	return names, nil
}

func (g *GraphDBGateway) diseaseInfo(ctx context.Context, name string) (*kg.DiseaseBundle, error) {
	row := g.conn.QueryRow(ctx, `
		SELECT name,
		       COALESCE(props->>'description', ''),
		       COALESCE(props->>'cause', ''),
		       COALESCE(props->>'prevent', ''),
		       COALESCE(props->>'cure_lasttime', ''),
		       COALESCE(props->>'cured_prob', ''),
		       COALESCE(props->>'easy_get', '')
		FROM kg_nodes
		WHERE kind = 'Disease' AND name = $1`,
		name,
	)

	b := &kg.DiseaseBundle{}
	err := row.Scan(&b.Name, &b.Description, &b.Cause, &b.Prevent, &b.CureTime, &b.CureProb, &b.EasyGet)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return b, nil
}

func (g *GraphDBGateway) followRelation(ctx context.Context, name, relation string, reverse bool, limit int) ([]string, error) {
	query := `
		SELECT t.name
		FROM kg_relations r
		JOIN kg_nodes s ON s.id = r.source_id
		JOIN kg_nodes t ON t.id = r.target_id
		WHERE r.kind = $1 AND s.name = $2
		ORDER BY t.name`
	if reverse {
		query = `
		SELECT s.name
		FROM kg_relations r
		JOIN kg_nodes s ON s.id = r.source_id
		JOIN kg_nodes t ON t.id = r.target_id
		WHERE r.kind = $1 AND t.name = $2
		ORDER BY s.name`
	}
	args := []any{relation, name}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := g.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (g *GraphDBGateway) nodeKind(ctx context.Context, name string) (string, error) {
	var kind string
	err := g.conn.QueryRow(ctx, `SELECT kind FROM kg_nodes WHERE name = $1 LIMIT 1`, name).Scan(&kind)
	return kind, err
}
