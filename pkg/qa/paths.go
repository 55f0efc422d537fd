package qa

import (
	"context"
	"fmt"
	"strings"

	"github.com/Dango-F/medical-chat/pkg/kg"
	"github.com/Dango-F/medical-chat/pkg/logger"
)

const (
	maxPaths        = 5
	maxPathSymptoms = 5
	maxPathDrugs    = 3
	maxPathDiseases = 5
	maxContextEnts  = 3
	textTruncateAt  = 200
)

// PathBuilder turns resolved entities into small illustrative subgraphs and
// into the structured text block fed to the generator.
type PathBuilder struct {
	graph kg.Gateway
}

func NewPathBuilder(graph kg.Gateway) *PathBuilder {
	return &PathBuilder{graph: graph}
}

// BuildPaths builds at most five knowledge paths. Diseases expand into a
// star of symptoms and drugs; symptoms link back to the diseases that
// present them. Graph failures degrade to fewer paths.
func (b *PathBuilder) BuildPaths(ctx context.Context, entities []ResolvedEntity) []KnowledgePath {
	if b.graph == nil || !b.graph.Connected() {
		return nil
	}
	var paths []KnowledgePath
	for _, ent := range entities {
		if len(paths) >= maxPaths {
			break
		}
		if p := b.buildForEntity(ctx, ent); p != nil {
			paths = append(paths, *p)
		}
	}
	return paths
}

func (b *PathBuilder) buildForEntity(ctx context.Context, ent ResolvedEntity) *KnowledgePath {
	bundle, err := b.graph.ExpandEntity(ctx, ent.Name)
	if err != nil {
		logger.Debug("entity expansion failed", "entity", ent.Name, "error", err)
	}
	if bundle != nil && bundle.Description != "" {
		return b.diseasePath(ent, bundle)
	}
	return b.symptomPath(ctx, ent)
}

// diseasePath centers on the disease node and fans out to its first
// symptoms and drugs.
func (b *PathBuilder) diseasePath(ent ResolvedEntity, bundle *kg.DiseaseBundle) *KnowledgePath {
	center := KGNode{
		ID:    nodeID(kg.KindDisease, bundle.Name),
		Label: bundle.Name,
		Kind:  kg.KindDisease,
		Properties: map[string]string{
			"description": truncate(bundle.Description, textTruncateAt),
			"cause":       truncate(bundle.Cause, textTruncateAt),
			"prevent":     truncate(bundle.Prevent, textTruncateAt),
		},
	}
	path := KnowledgePath{
		Nodes:      []KGNode{center},
		Source:     "graph",
		Relevance:  0.9,
		Confidence: pathConfidence(ent, 0),
	}
	for _, symptom := range capStrings(bundle.Symptoms, maxPathSymptoms) {
		node := KGNode{ID: nodeID(kg.KindSymptom, symptom), Label: symptom, Kind: kg.KindSymptom}
		path.Nodes = append(path.Nodes, node)
		path.Edges = append(path.Edges, KGEdge{
			Source:     center.ID,
			Target:     node.ID,
			Kind:       kg.RelHasSymptom,
			Properties: map[string]string{"name": "症状"},
		})
	}
	drugs := append(append([]string{}, bundle.CommonDrugs...), bundle.RecommendedDrugs...)
	for _, drug := range capStrings(dedupeStrings(drugs), maxPathDrugs) {
		node := KGNode{ID: nodeID(kg.KindDrug, drug), Label: drug, Kind: kg.KindDrug}
		path.Nodes = append(path.Nodes, node)
		path.Edges = append(path.Edges, KGEdge{
			Source:     center.ID,
			Target:     node.ID,
			Kind:       kg.RelCommonDrug,
			Properties: map[string]string{"name": "常用药品"},
		})
	}
	path.Confidence = pathConfidence(ent, len(path.Edges))
	return &path
}

// symptomPath links a symptom to the diseases that present it, edges
// reversed so the disease stays the subject.
func (b *PathBuilder) symptomPath(ctx context.Context, ent ResolvedEntity) *KnowledgePath {
	diseases, err := b.graph.RelatedEntities(ctx, ent.Name, kg.RelHasSymptom, maxPathDiseases)
	if err != nil {
		logger.Debug("symptom traversal failed", "entity", ent.Name, "error", err)
		return nil
	}
	if len(diseases) == 0 {
		return nil
	}
	center := KGNode{ID: nodeID(kg.KindSymptom, ent.Name), Label: ent.Name, Kind: kg.KindSymptom}
	path := KnowledgePath{
		Nodes:     []KGNode{center},
		Source:    "graph",
		Relevance: 0.8,
	}
	for _, disease := range diseases {
		node := KGNode{ID: nodeID(kg.KindDisease, disease), Label: disease, Kind: kg.KindDisease}
		path.Nodes = append(path.Nodes, node)
		path.Edges = append(path.Edges, KGEdge{
			Source:     node.ID,
			Target:     center.ID,
			Kind:       kg.RelHasSymptom,
			Properties: map[string]string{"name": "症状"},
		})
	}
	path.Confidence = pathConfidence(ent, len(path.Edges))
	return &path
}

// pathConfidence scores a path by how its seed entity was matched, with a
// bonus for history-recovered subjects and a mild decay for longer paths.
// Always within [0, 1].
func pathConfidence(ent ResolvedEntity, edges int) float64 {
	var base float64
	switch ent.Match {
	case kg.MatchExact:
		base = 0.95
	case kg.MatchFulltext:
		base = 0.85
	case kg.MatchSubstring:
		base = 0.7
	default:
		base = 0.75
	}
	if ent.Method == MethodLexical {
		base = 0.9
	}
	if ent.Method == MethodBacktrace {
		base += 0.05
	}
	if edges > 1 {
		base -= 0.02 * float64(edges-1)
	}
	return clamp01(base)
}

// BuildContextText renders the first entities into the structured Chinese
// knowledge block used as generation grounding. Empty when the graph holds
// nothing for any of them.
func (b *PathBuilder) BuildContextText(ctx context.Context, entities []ResolvedEntity) string {
	if b.graph == nil || !b.graph.Connected() {
		return ""
	}
	var sb strings.Builder
	for i, ent := range entities {
		if i >= maxContextEnts {
			break
		}
		bundle, err := b.graph.ExpandEntity(ctx, ent.Name)
		if err != nil {
			logger.Debug("context expansion failed", "entity", ent.Name, "error", err)
		}
		if bundle != nil && bundle.Description != "" {
			writeDiseaseBlock(&sb, bundle)
			continue
		}
		diseases, err := b.graph.RelatedEntities(ctx, ent.Name, kg.RelHasSymptom, 10)
		if err != nil {
			logger.Debug("context traversal failed", "entity", ent.Name, "error", err)
			continue
		}
		if len(diseases) > 0 {
			fmt.Fprintf(&sb, "\n【症状：%s】\n", ent.Name)
			fmt.Fprintf(&sb, "可能相关的疾病：%s\n", strings.Join(diseases, "、"))
		}
	}
	return sb.String()
}

func writeDiseaseBlock(sb *strings.Builder, bundle *kg.DiseaseBundle) {
	fmt.Fprintf(sb, "\n【%s】\n", bundle.Name)
	if bundle.Description != "" {
		fmt.Fprintf(sb, "简介：%s\n", truncate(bundle.Description, textTruncateAt))
	}
	if len(bundle.Symptoms) > 0 {
		fmt.Fprintf(sb, "症状：%s\n", strings.Join(capStrings(bundle.Symptoms, 10), "、"))
	}
	if bundle.Cause != "" {
		fmt.Fprintf(sb, "病因：%s\n", truncate(bundle.Cause, textTruncateAt))
	}
	if bundle.Prevent != "" {
		fmt.Fprintf(sb, "预防：%s\n", truncate(bundle.Prevent, textTruncateAt))
	}
	if len(bundle.Departments) > 0 {
		fmt.Fprintf(sb, "就诊科室：%s\n", strings.Join(bundle.Departments, "、"))
	}
	if len(bundle.CureWays) > 0 {
		fmt.Fprintf(sb, "治疗方法：%s\n", strings.Join(capStrings(bundle.CureWays, 5), "、"))
	}
	drugs := dedupeStrings(append(append([]string{}, bundle.CommonDrugs...), bundle.RecommendedDrugs...))
	if len(drugs) > 0 {
		fmt.Fprintf(sb, "常用药物：%s\n", strings.Join(capStrings(drugs, 8), "、"))
	}
	foods := dedupeStrings(append(append([]string{}, bundle.DoEat...), bundle.RecommendedFoods...))
	if len(foods) > 0 {
		fmt.Fprintf(sb, "宜吃食物：%s\n", strings.Join(capStrings(foods, 5), "、"))
	}
	if len(bundle.NotEat) > 0 {
		fmt.Fprintf(sb, "忌吃食物：%s\n", strings.Join(capStrings(bundle.NotEat, 5), "、"))
	}
	if len(bundle.Checks) > 0 {
		fmt.Fprintf(sb, "检查项目：%s\n", strings.Join(capStrings(bundle.Checks, 5), "、"))
	}
	if len(bundle.Complications) > 0 {
		fmt.Fprintf(sb, "并发症：%s\n", strings.Join(capStrings(bundle.Complications, 5), "、"))
	}
}

func nodeID(kind, name string) string {
	return strings.ToLower(kind) + "_" + name
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

func capStrings(in []string, n int) []string {
	if len(in) > n {
		return in[:n]
	}
	return in
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0:0]
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
