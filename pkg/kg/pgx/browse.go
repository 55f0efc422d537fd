package pgx

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Dango-F/medical-chat/pkg/kg"
	"github.com/Dango-F/medical-chat/pkg/logger"
)

// SearchNodes runs a substring search across node names, optionally
// restricted to a set of kinds. Serves the visualization boundary.
func (g *GraphDBGateway) SearchNodes(ctx context.Context, keyword string, kinds []string, limit int) ([]kg.NodeView, error) {
	if !g.Connected() || keyword == "" {
		return nil, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := `
		SELECT name, kind, COALESCE(props, '{}'::jsonb)
		FROM kg_nodes
		WHERE name ILIKE '%' || $1 || '%'`
	args := []any{keyword}
	if len(kinds) > 0 {
		query += ` AND kind = ANY($2) ORDER BY name LIMIT $3`
		args = append(args, kinds, limit)
	} else {
		query += ` ORDER BY name LIMIT $2`
		args = append(args, limit)
	}

	rows, err := g.conn.Query(ctx, query, args...)
	if err != nil {
		logger.Error("node search failed", "keyword", keyword, "error", err)
		return nil, nil
	}
	defer rows.Close()

	var nodes []kg.NodeView
	for rows.Next() {
		var (
			name, kind string
			propsRaw   []byte
		)
		if err := rows.Scan(&name, &kind, &propsRaw); err != nil {
			return nil, err
		}
		nodes = append(nodes, kg.NodeView{
			ID:         nodeID(kind, name),
			Label:      name,
			Kind:       kind,
			Properties: decodeProps(propsRaw),
		})
	}
	return nodes, rows.Err()
}

// NodeNeighbors returns a node looked up by name plus all directly
// connected nodes with their relation kinds. An unknown name yields a
// placeholder node with no neighbors, matching how the UI renders misses.
func (g *GraphDBGateway) NodeNeighbors(ctx context.Context, name string) (*kg.NodeNeighbors, error) {
	notFound := &kg.NodeNeighbors{
		Node:      kg.NodeView{ID: name, Label: "Not Found", Kind: "Unknown", Properties: map[string]string{}},
		Neighbors: []kg.NeighborView{},
	}
	if !g.Connected() {
		return notFound, nil
	}

	var (
		nodeKind string
		propsRaw []byte
	)
	err := g.conn.QueryRow(ctx, `
		SELECT kind, COALESCE(props, '{}'::jsonb)
		FROM kg_nodes WHERE name = $1 LIMIT 1`,
		name,
	).Scan(&nodeKind, &propsRaw)
	if err != nil {
		if !isNoRows(err) {
			logger.Error("node lookup failed", "name", name, "error", err)
		}
		return notFound, nil
	}

	rows, err := g.conn.Query(ctx, `
		SELECT n.name, n.kind, r.kind
		FROM kg_relations r
		JOIN kg_nodes s ON s.id = r.source_id
		JOIN kg_nodes t ON t.id = r.target_id
		JOIN kg_nodes n ON n.id = CASE WHEN s.name = $1 THEN t.id ELSE s.id END
		WHERE s.name = $1 OR t.name = $1`,
		name,
	)
	if err != nil {
		logger.Error("neighbor query failed", "name", name, "error", err)
		return notFound, nil
	}
	defer rows.Close()

	out := &kg.NodeNeighbors{
		Node: kg.NodeView{
			ID:         name,
			Label:      name,
			Kind:       nodeKind,
			Properties: decodeProps(propsRaw),
		},
		Neighbors: []kg.NeighborView{},
	}
	for rows.Next() {
		var nName, nKind, relKind string
		if err := rows.Scan(&nName, &nKind, &relKind); err != nil {
			return nil, err
		}
		out.Neighbors = append(out.Neighbors, kg.NeighborView{
			ID:           nName,
			Label:        nName,
			Kind:         nKind,
			Relationship: relKind,
		})
	}
	return out, rows.Err()
}

// Sample returns a bounded subgraph rooted at disease nodes for
// visualization. The node count never exceeds limit; edges referencing
// dropped nodes are dropped with them.
func (g *GraphDBGateway) Sample(ctx context.Context, limit int) (*kg.GraphSample, error) {
	sample := &kg.GraphSample{Nodes: []kg.NodeView{}, Edges: []kg.GraphEdge{}}
	if !g.Connected() {
		return sample, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := g.conn.Query(ctx, `
		WITH roots AS (
			SELECT id, name, kind FROM kg_nodes WHERE kind = 'Disease' ORDER BY id LIMIT $1
		)
		SELECT d.name, d.kind, t.name, t.kind, r.kind
		FROM roots d
		JOIN kg_relations r ON r.source_id = d.id
		JOIN kg_nodes t ON t.id = r.target_id`,
		limit,
	)
	if err != nil {
		logger.Error("graph sample query failed", "error", err)
		return sample, nil
	}
	defer rows.Close()

	seen := make(map[string]bool)
	for rows.Next() {
		var dName, dKind, tName, tKind, relKind string
		if err := rows.Scan(&dName, &dKind, &tName, &tKind, &relKind); err != nil {
			return nil, err
		}

		dID := nodeID(dKind, dName)
		if !seen[dID] {
			seen[dID] = true
			sample.Nodes = append(sample.Nodes, kg.NodeView{ID: dID, Label: dName, Kind: dKind})
		}
		tID := nodeID(tKind, tName)
		if !seen[tID] {
			seen[tID] = true
			sample.Nodes = append(sample.Nodes, kg.NodeView{ID: tID, Label: tName, Kind: tKind})
		}
		sample.Edges = append(sample.Edges, kg.GraphEdge{Source: dID, Target: tID, Kind: relKind})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(sample.Nodes) > limit {
		kept := sample.Nodes[:limit]
		allowed := make(map[string]bool, limit)
		for _, n := range kept {
			allowed[n.ID] = true
		}
		edges := sample.Edges[:0]
		for _, e := range sample.Edges {
			if allowed[e.Source] && allowed[e.Target] {
				edges = append(edges, e)
			}
		}
		sample.Nodes = kept
		sample.Edges = edges
	}
	return sample, nil
}

// Stats counts nodes per kind plus the total relation count.
func (g *GraphDBGateway) Stats(ctx context.Context) (map[string]int64, error) {
	if !g.Connected() {
		return map[string]int64{}, nil
	}

	stats := make(map[string]int64)

	rows, err := g.conn.Query(ctx, `SELECT kind, count(*) FROM kg_nodes GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("counting graph nodes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			kind  string
			count int64
		)
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		stats[kind] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var relations int64
	if err := g.conn.QueryRow(ctx, `SELECT count(*) FROM kg_relations`).Scan(&relations); err != nil {
		return nil, fmt.Errorf("counting graph relations: %w", err)
	}
	stats["total_relationships"] = relations
	return stats, nil
}

func nodeID(kind, name string) string {
	return strings.ToLower(kind) + "_" + name
}

func decodeProps(raw []byte) map[string]string {
	props := map[string]string{}
	if len(raw) == 0 {
		return props
	}
	if err := json.Unmarshal(raw, &props); err != nil {
		return map[string]string{}
	}
	return props
}
