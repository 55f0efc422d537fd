package qa

import (
	"context"
	"strings"
	"testing"

	"github.com/Dango-F/medical-chat/pkg/kg"
)

func TestBuildPathsDiseaseStar(t *testing.T) {
	t.Parallel()

	b := NewPathBuilder(newFakeGateway())
	ents := []ResolvedEntity{{Name: "百日咳", Kind: kg.KindDisease, Method: MethodLexical, Match: kg.MatchExact}}
	paths := b.BuildPaths(context.Background(), ents)
	if len(paths) != 1 {
		t.Fatalf("got %d paths, want 1", len(paths))
	}
	p := paths[0]
	if p.Nodes[0].Kind != kg.KindDisease || p.Nodes[0].Label != "百日咳" {
		t.Errorf("center node = %+v, want disease 百日咳", p.Nodes[0])
	}
	if p.Nodes[0].Properties["description"] == "" {
		t.Error("center node lost its description")
	}
	// 3 symptoms and 2 drugs fan out from the center.
	if len(p.Nodes) != 6 || len(p.Edges) != 5 {
		t.Errorf("got %d nodes / %d edges, want 6 / 5", len(p.Nodes), len(p.Edges))
	}
	for _, e := range p.Edges {
		if e.Source != p.Nodes[0].ID {
			t.Errorf("edge %+v does not originate at the disease", e)
		}
	}
	if p.Relevance != 0.9 {
		t.Errorf("relevance = %v, want 0.9", p.Relevance)
	}
}

func TestBuildPathsSymptomReversed(t *testing.T) {
	t.Parallel()

	b := NewPathBuilder(newFakeGateway())
	ents := []ResolvedEntity{{Name: "头痛", Kind: kg.KindSymptom, Method: MethodLexical, Match: kg.MatchExact}}
	paths := b.BuildPaths(context.Background(), ents)
	if len(paths) != 1 {
		t.Fatalf("got %d paths, want 1", len(paths))
	}
	p := paths[0]
	if p.Nodes[0].Kind != kg.KindSymptom {
		t.Errorf("center = %+v, want symptom", p.Nodes[0])
	}
	for _, e := range p.Edges {
		if e.Target != p.Nodes[0].ID {
			t.Errorf("edge %+v should point disease -> symptom", e)
		}
		if e.Kind != kg.RelHasSymptom {
			t.Errorf("edge kind = %q, want %q", e.Kind, kg.RelHasSymptom)
		}
	}
	if p.Relevance != 0.8 {
		t.Errorf("relevance = %v, want 0.8", p.Relevance)
	}
}

func TestBuildPathsDisconnected(t *testing.T) {
	t.Parallel()

	g := newFakeGateway()
	g.connected = false
	b := NewPathBuilder(g)
	if got := b.BuildPaths(context.Background(), []ResolvedEntity{{Name: "头痛"}}); got != nil {
		t.Errorf("expected no paths from a disconnected graph, got %d", len(got))
	}
}

func TestPathConfidence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		ent   ResolvedEntity
		edges int
		want  float64
	}{
		{"exact match", ResolvedEntity{Match: kg.MatchExact, Method: MethodGraphFulltext}, 1, 0.95},
		{"fulltext match", ResolvedEntity{Match: kg.MatchFulltext, Method: MethodGraphFulltext}, 1, 0.85},
		{"substring match", ResolvedEntity{Match: kg.MatchSubstring, Method: MethodGraphFallback}, 1, 0.7},
		{"lexical overrides match base", ResolvedEntity{Match: kg.MatchExact, Method: MethodLexical}, 1, 0.9},
		{"backtrace bonus", ResolvedEntity{Match: kg.MatchExact, Method: MethodBacktrace}, 1, 1.0},
		{"edge decay", ResolvedEntity{Match: kg.MatchExact, Method: MethodGraphFulltext}, 6, 0.85},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := pathConfidence(tt.ent, tt.edges)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("pathConfidence = %v, want %v", got, tt.want)
			}
			if got < 0 || got > 1 {
				t.Errorf("confidence %v out of [0,1]", got)
			}
		})
	}
}

func TestBuildContextTextDiseaseBlock(t *testing.T) {
	t.Parallel()

	b := NewPathBuilder(newFakeGateway())
	text := b.BuildContextText(context.Background(), []ResolvedEntity{{Name: "百日咳"}})
	for _, want := range []string{"【百日咳】", "简介：", "症状：", "病因：", "预防：", "就诊科室：", "常用药物："} {
		if !strings.Contains(text, want) {
			t.Errorf("context missing %q:\n%s", want, text)
		}
	}
}

func TestBuildContextTextSymptomBlock(t *testing.T) {
	t.Parallel()

	b := NewPathBuilder(newFakeGateway())
	text := b.BuildContextText(context.Background(), []ResolvedEntity{{Name: "头痛"}})
	if !strings.Contains(text, "【症状：头痛】") {
		t.Errorf("missing symptom header:\n%s", text)
	}
	if !strings.Contains(text, "可能相关的疾病：") {
		t.Errorf("missing disease line:\n%s", text)
	}
}

func TestTruncateRuneSafe(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("病", 250)
	got := truncate(long, 200)
	if want := strings.Repeat("病", 200) + "..."; got != want {
		t.Errorf("truncate produced %d runes", len([]rune(got)))
	}
	if truncate("短文本", 200) != "短文本" {
		t.Error("short text must pass through unchanged")
	}
}
