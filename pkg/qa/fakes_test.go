package qa

import (
	"context"
	"strings"

	"github.com/Dango-F/medical-chat/pkg/ai"
	"github.com/Dango-F/medical-chat/pkg/evidence"
	"github.com/Dango-F/medical-chat/pkg/kg"
	"github.com/Dango-F/medical-chat/pkg/memory"
)

// fakeGateway serves a tiny in-memory graph keyed by entity name.
type fakeGateway struct {
	connected bool
	exactOnly bool
	diseases  map[string]*kg.DiseaseBundle
	// symptom name -> diseases presenting it
	symptoms map[string][]string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		connected: true,
		diseases: map[string]*kg.DiseaseBundle{
			"百日咳": {
				Name:        "百日咳",
				Description: "百日咳是由百日咳杆菌引起的急性呼吸道传染病。",
				Cause:       "百日咳杆菌感染。",
				Prevent:     "接种百白破疫苗。",
				Symptoms:    []string{"阵发性咳嗽", "鸡鸣样吸气吼声", "呕吐"},
				CommonDrugs: []string{"红霉素", "阿奇霉素"},
				Departments: []string{"小儿内科"},
			},
			"糖尿病": {
				Name:        "糖尿病",
				Description: "糖尿病是一组以高血糖为特征的代谢性疾病。",
				Symptoms:    []string{"多饮", "多尿", "体重下降"},
			},
		},
		symptoms: map[string][]string{
			"头痛": {"偏头痛", "紧张性头痛", "脑膜炎"},
		},
	}
}

func (g *fakeGateway) Connected() bool { return g.connected }

func (g *fakeGateway) SearchEntities(_ context.Context, keyword, kind string, limit int) ([]kg.Entity, error) {
	if !g.connected {
		return nil, nil
	}
	var hits []kg.Entity
	switch kind {
	case kg.KindDisease:
		for name := range g.diseases {
			if name == keyword {
				hits = append(hits, kg.Entity{Name: name, Kind: kind, Match: kg.MatchExact, Score: 1})
			} else if !g.exactOnly && (strings.Contains(name, keyword) || strings.Contains(keyword, name)) {
				hits = append(hits, kg.Entity{Name: name, Kind: kind, Match: kg.MatchSubstring, Score: 0.8})
			}
		}
	case kg.KindSymptom:
		for name := range g.symptoms {
			if name == keyword {
				hits = append(hits, kg.Entity{Name: name, Kind: kind, Match: kg.MatchExact, Score: 1})
			}
		}
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (g *fakeGateway) ExpandEntity(_ context.Context, name string) (*kg.DiseaseBundle, error) {
	if !g.connected {
		return nil, nil
	}
	return g.diseases[name], nil
}

func (g *fakeGateway) RelatedEntities(_ context.Context, name, relation string, limit int) ([]string, error) {
	if !g.connected || relation != kg.RelHasSymptom {
		return nil, nil
	}
	diseases := g.symptoms[name]
	if len(diseases) > limit {
		diseases = diseases[:limit]
	}
	return diseases, nil
}

func (g *fakeGateway) SearchNodes(context.Context, string, []string, int) ([]kg.NodeView, error) {
	return nil, nil
}

func (g *fakeGateway) NodeNeighbors(context.Context, string) (*kg.NodeNeighbors, error) {
	return nil, nil
}

func (g *fakeGateway) Sample(context.Context, int) (*kg.GraphSample, error) { return nil, nil }

func (g *fakeGateway) Stats(context.Context) (map[string]int64, error) { return nil, nil }

// fakeAIClient replays a fixed answer, optionally waiting for cancellation
// first to simulate a slow provider. buffered delivers every fragment
// up front regardless of the context, the way provider SDKs drain
// already-received chunks after a cancel.
type fakeAIClient struct {
	answer    string
	fragments []string
	failWith  error
	blockCtx  bool
	buffered  bool
	model     string
}

func (c *fakeAIClient) GenerateChat(ctx context.Context, _ []ai.ChatMessage, _ ...ai.GenerateOption) (string, error) {
	if c.blockCtx {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if c.failWith != nil {
		return "", c.failWith
	}
	return c.answer, nil
}

func (c *fakeAIClient) GenerateChatStream(ctx context.Context, _ []ai.ChatMessage, _ ...ai.GenerateOption) (<-chan ai.StreamEvent, error) {
	if c.failWith != nil {
		return nil, c.failWith
	}
	if c.buffered {
		out := make(chan ai.StreamEvent, len(c.fragments))
		for _, frag := range c.fragments {
			out <- ai.StreamEvent{Type: "content", Content: frag}
		}
		close(out)
		return out, nil
	}
	out := make(chan ai.StreamEvent)
	go func() {
		defer close(out)
		if c.blockCtx {
			<-ctx.Done()
			return
		}
		for _, frag := range c.fragments {
			select {
			case out <- ai.StreamEvent{Type: "content", Content: frag}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (c *fakeAIClient) GenerateEmbedding(context.Context, []byte) ([]float32, error) {
	return nil, nil
}

func (c *fakeAIClient) ModelName() string {
	if c.model == "" {
		return "fake-model"
	}
	return c.model
}

func (c *fakeAIClient) ResetMetrics() {}

func (c *fakeAIClient) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

// fakeEvidence returns canned items regardless of query.
type fakeEvidence struct {
	items []evidence.Item
}

func (f *fakeEvidence) SearchEvidence(context.Context, string, []string, int) ([]evidence.Item, error) {
	return f.items, nil
}

// fakeMemoryStore records stored snippets and serves canned search hits.
type fakeMemoryStore struct {
	stored []string
	hits   []memory.Memory
}

func (f *fakeMemoryStore) StoreMemory(_ context.Context, _, content string) error {
	f.stored = append(f.stored, content)
	return nil
}

func (f *fakeMemoryStore) SearchMemory(context.Context, string, string, int) ([]memory.Memory, error) {
	return f.hits, nil
}
