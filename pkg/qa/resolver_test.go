package qa

import (
	"context"
	"reflect"
	"testing"
)

func entityNames(entities []ResolvedEntity) []string {
	names := make([]string, 0, len(entities))
	for _, e := range entities {
		names = append(names, e.Name)
	}
	return names
}

func TestResolveLexical(t *testing.T) {
	t.Parallel()

	r := NewResolver(nil)
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{
			name:  "vocabulary order preserved",
			query: "我最近头痛还发烧",
			want:  []string{"头痛", "发烧"},
		},
		{
			name:  "duplicate mention resolves once",
			query: "头痛头痛还是头痛",
			want:  []string{"头痛"},
		},
		{
			name:  "synonym maps to canonical name",
			query: "小儿麻痹症能治吗",
			want:  []string{"脊髓灰质炎"},
		},
		{
			name:  "colloquial and canonical both surface",
			query: "感冒了怎么办",
			want:  []string{"感冒", "上呼吸道感染"},
		},
		{
			name:  "nothing medical",
			query: "今天天气真好",
			want:  []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := entityNames(r.Resolve(context.Background(), tt.query, nil))
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Resolve(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestResolveIdempotent(t *testing.T) {
	t.Parallel()

	r := NewResolver(newFakeGateway())
	query := "糖尿病患者经常头痛怎么办"
	first := entityNames(r.Resolve(context.Background(), query, nil))
	second := entityNames(r.Resolve(context.Background(), query, nil))
	if !reflect.DeepEqual(first, second) {
		t.Errorf("resolution not stable: %v vs %v", first, second)
	}
	if len(first) == 0 || first[0] != "头痛" {
		t.Errorf("expected 头痛 discovered first, got %v", first)
	}
}

func TestResolveGraphPass(t *testing.T) {
	t.Parallel()

	r := NewResolver(newFakeGateway())
	got := r.Resolve(context.Background(), "百日咳是什么", nil)
	if len(got) == 0 {
		t.Fatal("expected graph pass to find 百日咳")
	}
	if got[0].Name != "百日咳" {
		t.Errorf("got %q, want 百日咳", got[0].Name)
	}
	if got[0].Method != MethodGraphFallback {
		t.Errorf("got method %q, want %q", got[0].Method, MethodGraphFallback)
	}
}

func TestResolveAggressiveNgramScan(t *testing.T) {
	t.Parallel()

	g := newFakeGateway()
	g.exactOnly = true
	r := NewResolver(g)
	got := r.Resolve(context.Background(), "请问百日咳啊", nil)
	if len(got) != 1 || got[0].Name != "百日咳" {
		t.Fatalf("expected n-gram scan to recover 百日咳, got %v", entityNames(got))
	}
}

func TestResolveHistoryBacktrace(t *testing.T) {
	t.Parallel()

	r := NewResolver(newFakeGateway())
	history := []ChatTurn{
		{Role: "user", Content: "我想了解糖尿病"},
		{Role: "assistant", Content: "糖尿病是一种代谢性疾病。"},
	}
	got := r.Resolve(context.Background(), "它有哪些并发症呢", history)
	if len(got) == 0 {
		t.Fatal("expected backtrace to recover the prior subject")
	}
	if got[0].Name != "糖尿病" {
		t.Errorf("got %q, want 糖尿病", got[0].Name)
	}
	if got[0].Method != MethodBacktrace {
		t.Errorf("got method %q, want %q", got[0].Method, MethodBacktrace)
	}
}

func TestResolveBacktraceSkipsWhenQueryHasEntities(t *testing.T) {
	t.Parallel()

	r := NewResolver(newFakeGateway())
	history := []ChatTurn{{Role: "user", Content: "我想了解糖尿病"}}
	got := r.Resolve(context.Background(), "头痛怎么办", history)
	for _, e := range got {
		if e.Method == MethodBacktrace {
			t.Errorf("backtrace ran although the query named %v", entityNames(got))
		}
	}
	if len(got) == 0 || got[0].Name != "头痛" {
		t.Errorf("expected 头痛 first, got %v", entityNames(got))
	}
}

func TestResolveDisconnectedGraph(t *testing.T) {
	t.Parallel()

	g := newFakeGateway()
	g.connected = false
	r := NewResolver(g)

	got := r.Resolve(context.Background(), "头痛和百日咳", nil)
	if len(got) != 1 || got[0].Name != "头痛" {
		t.Fatalf("expected only the lexical hit, got %v", entityNames(got))
	}
	if got[0].Method != MethodLexical {
		t.Errorf("got method %q, want %q", got[0].Method, MethodLexical)
	}
}

func TestResolveCurrentOnlyIgnoresHistory(t *testing.T) {
	t.Parallel()

	r := NewResolver(newFakeGateway())
	got := r.ResolveCurrentOnly(context.Background(), "头痛怎么办")
	if len(got) == 0 || got[0] != "头痛" {
		t.Errorf("got %v, want [头痛 ...]", got)
	}
}

func TestResolveCap(t *testing.T) {
	t.Parallel()

	r := NewResolver(nil)
	got := r.Resolve(context.Background(), "头痛发热咳嗽恶心呕吐腹痛腹泻便秘", nil)
	if len(got) != resolveCap {
		t.Errorf("got %d entities, want cap %d", len(got), resolveCap)
	}
}
