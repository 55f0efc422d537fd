package qa

import (
	"strings"
	"testing"

	"github.com/Dango-F/medical-chat/pkg/evidence"
	"github.com/Dango-F/medical-chat/pkg/memory"
)

func TestAssembleOrdering(t *testing.T) {
	t.Parallel()

	a := NewContextAssembler(0)
	ctx := a.Assemble(
		"\n【百日咳】\n简介：急性呼吸道传染病。\n",
		[]memory.Memory{{Content: "Q: 咳嗽\nA: 建议就医", Score: 0.8}},
		[]evidence.Item{{Source: "pubmed", Snippet: "咳嗽研究"}},
		nil,
		[]ChatTurn{{Role: "user", Content: "我咳嗽两周了"}},
	)
	if !ctx.Grounded {
		t.Fatal("context with knowledge must be grounded")
	}
	memIdx := strings.Index(ctx.KGContext, "用户历史记忆")
	kgIdx := strings.Index(ctx.KGContext, "【百日咳】")
	if memIdx < 0 || kgIdx < 0 || memIdx > kgIdx {
		t.Errorf("memory block must precede graph block:\n%s", ctx.KGContext)
	}
	if !strings.Contains(ctx.EvidenceContext, "[pubmed] 咳嗽研究") {
		t.Errorf("evidence block malformed:\n%s", ctx.EvidenceContext)
	}
	if len(ctx.History) != 1 {
		t.Errorf("history turns = %d, want 1", len(ctx.History))
	}
	if ctx.TokenCount <= 0 {
		t.Error("token count not computed")
	}
}

func TestAssemblePathFallbackBlock(t *testing.T) {
	t.Parallel()

	a := NewContextAssembler(0)
	paths := []KnowledgePath{{Nodes: []KGNode{{Label: "偏头痛"}, {Label: "恶心"}}}}
	ctx := a.Assemble("", nil, nil, paths, nil)
	if !strings.Contains(ctx.KGContext, "相关医学知识：偏头痛、恶心") {
		t.Errorf("missing synthesized block:\n%s", ctx.KGContext)
	}
	if !ctx.Grounded {
		t.Error("path labels still count as grounding")
	}
}

func TestAssembleUngrounded(t *testing.T) {
	t.Parallel()

	a := NewContextAssembler(0)
	ctx := a.Assemble("", nil, nil, nil, nil)
	if ctx.Grounded {
		t.Error("empty context must not be grounded")
	}
}

func TestAssembleEvidenceAloneNotGrounded(t *testing.T) {
	t.Parallel()

	a := NewContextAssembler(0)
	ctx := a.Assemble("", nil, []evidence.Item{{Source: "pubmed", Snippet: "研究"}}, nil, nil)
	if ctx.Grounded {
		t.Error("literature evidence without graph knowledge must not be grounded")
	}
	if ctx.EvidenceContext == "" {
		t.Error("evidence block must still be assembled")
	}
}

func TestAssembleBudgetTrimsKnowledgeFirst(t *testing.T) {
	t.Parallel()

	a := NewContextAssembler(50)
	kg := strings.Repeat("百日咳是急性呼吸道传染病。", 100)
	ctx := a.Assemble(kg, nil, []evidence.Item{{Source: "pubmed", Snippet: "短证据"}}, nil, nil)
	if ctx.TokenCount > 60 {
		t.Errorf("token count %d exceeds budget margin", ctx.TokenCount)
	}
	if len(ctx.KGContext) >= len(kg) {
		t.Error("knowledge block was not trimmed")
	}
}

func TestAssembleHistoryCapped(t *testing.T) {
	t.Parallel()

	a := NewContextAssembler(0)
	history := make([]ChatTurn, 10)
	for i := range history {
		history[i] = ChatTurn{Role: "user", Content: "问题"}
	}
	ctx := a.Assemble("", nil, nil, nil, history)
	if len(ctx.History) != maxHistoryTurns {
		t.Errorf("history turns = %d, want %d", len(ctx.History), maxHistoryTurns)
	}
}

func TestBuildPromptGrounded(t *testing.T) {
	t.Parallel()

	system, user := BuildPrompt("百日咳怎么治", AssembledContext{
		KGContext:       "【百日咳】简介：传染病",
		EvidenceContext: "医学文献证据：\n- [pubmed] 研究\n",
		Grounded:        true,
	})
	if !strings.Contains(system, "知识图谱") {
		t.Error("grounded system prompt expected")
	}
	for _, want := range []string{"【百日咳】", "医学文献证据", "百日咳怎么治"} {
		if !strings.Contains(user, want) {
			t.Errorf("user prompt missing %q", want)
		}
	}
}

func TestBuildPromptUngrounded(t *testing.T) {
	t.Parallel()

	system, user := BuildPrompt("你好", AssembledContext{
		History: []ChatTurn{{Role: "user", Content: "早上好"}, {Role: "assistant", Content: "您好"}},
	})
	if strings.Contains(system, "知识图谱") {
		t.Error("ungrounded system prompt expected")
	}
	for _, want := range []string{"对话历史", "用户：早上好", "助手：您好", "你好"} {
		if !strings.Contains(user, want) {
			t.Errorf("user prompt missing %q", want)
		}
	}
}
