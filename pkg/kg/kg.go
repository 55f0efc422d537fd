package kg

import (
	"context"
	"strings"
)

// Node kinds stored in the graph.
const (
	KindDisease    = "Disease"
	KindSymptom    = "Symptom"
	KindDrug       = "Drug"
	KindFood       = "Food"
	KindCheck      = "Check"
	KindDepartment = "Department"
	KindCure       = "Cure"
	KindProducer   = "Producer"
)

// Relation kinds between graph nodes.
const (
	RelHasSymptom    = "has_symptom"
	RelCommonDrug    = "common_drug"
	RelRecommendDrug = "recommand_drug"
	RelDoEat         = "do_eat"
	RelNoEat         = "no_eat"
	RelRecommendEat  = "recommand_eat"
	RelNeedCheck     = "need_check"
	RelBelongsTo     = "belongs_to"
	RelCureWay       = "cure_way"
	RelAccompanyWith = "acompany_with"
)

// How an entity search arrived at a hit. Exact beats fulltext beats substring.
const (
	MatchExact     = "exact"
	MatchFulltext  = "fulltext"
	MatchSubstring = "substring"
)

// Entity is one search hit with its match provenance.
type Entity struct {
	Name  string  `json:"name"`
	Kind  string  `json:"kind"`
	Match string  `json:"match"`
	Score float64 `json:"score"`
}

// DiseaseBundle is the merged result of expanding a disease node across all
// of its relation facets. A facet that failed to load is an empty slice.
type DiseaseBundle struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Cause       string `json:"cause"`
	Prevent     string `json:"prevent"`
	CureTime    string `json:"cure_time"`
	CureProb    string `json:"cure_prob"`
	EasyGet     string `json:"easy_get"`

	Symptoms         []string `json:"symptoms"`
	CommonDrugs      []string `json:"common_drugs"`
	RecommendedDrugs []string `json:"recommended_drugs"`
	DoEat            []string `json:"do_eat"`
	NotEat           []string `json:"not_eat"`
	RecommendedFoods []string `json:"recommended_foods"`
	Checks           []string `json:"checks"`
	Departments      []string `json:"departments"`
	CureWays         []string `json:"cure_ways"`
	Complications    []string `json:"complications"`
}

// NodeView is a graph node as exposed by the browse endpoints.
type NodeView struct {
	ID         string            `json:"id"`
	Label      string            `json:"label"`
	Kind       string            `json:"type"`
	Properties map[string]string `json:"properties"`
}

// NeighborView is an adjacent node plus the relation that connects it.
type NeighborView struct {
	ID           string `json:"id"`
	Label        string `json:"label"`
	Kind         string `json:"type"`
	Relationship string `json:"relationship"`
}

// NodeNeighbors bundles a node with all of its direct neighbors.
type NodeNeighbors struct {
	Node      NodeView       `json:"node"`
	Neighbors []NeighborView `json:"neighbors"`
}

// GraphEdge is one edge in a visualization sample.
type GraphEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Kind   string `json:"type"`
}

// GraphSample is a bounded subgraph for visualization, rooted at disease nodes.
type GraphSample struct {
	Nodes []NodeView  `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// Gateway exposes named queries over the medical knowledge graph.
//
// All operations degrade to empty results when the graph store is
// unreachable; callers must treat empty results as "no knowledge", never as
// an error. Connected reports whether the store was reachable, so callers
// can skip graph-assisted work entirely.
type Gateway interface {
	Connected() bool

	// SearchEntities looks a keyword up as nodes of the given kind,
	// attempting exact match, then a fulltext index, then a substring scan
	// ranked exact > prefix > substring. Results keep that ordering.
	SearchEntities(ctx context.Context, keyword, kind string, limit int) ([]Entity, error)

	// ExpandEntity loads the full attribute/relation bundle of a disease,
	// fetching every facet concurrently. Returns (nil, nil) when the name
	// does not resolve to a disease even via fuzzy search.
	ExpandEntity(ctx context.Context, name string) (*DiseaseBundle, error)

	// RelatedEntities follows one relation kind from the named node.
	// For has_symptom with a symptom name it traverses the edge backwards
	// (symptom -> diseases).
	RelatedEntities(ctx context.Context, name, relation string, limit int) ([]string, error)

	// Browse surface for the visualization boundary.
	SearchNodes(ctx context.Context, keyword string, kinds []string, limit int) ([]NodeView, error)
	NodeNeighbors(ctx context.Context, name string) (*NodeNeighbors, error)
	Sample(ctx context.Context, limit int) (*GraphSample, error)
	Stats(ctx context.Context) (map[string]int64, error)
}

// modifier words stripped before retrying a miss, e.g. 普通感冒 -> 感冒.
var keywordModifiers = []string{"普通", "常见", "季节性", "一般", "常规"}

// NormalizeKeyword strips common modifier words from a search keyword.
// Returns the empty string when nothing changes, so callers can skip the
// retry.
func NormalizeKeyword(keyword string) string {
	norm := keyword
	for _, w := range keywordModifiers {
		norm = strings.ReplaceAll(norm, w, "")
	}
	norm = strings.TrimSpace(norm)
	if norm == keyword || norm == "" {
		return ""
	}
	return norm
}
