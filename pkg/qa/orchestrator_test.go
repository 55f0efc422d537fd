package qa

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Dango-F/medical-chat/pkg/evidence"
)

func baseQuery(text string) Query {
	return Query{
		Text:            text,
		IncludePaths:    true,
		IncludeEvidence: true,
		MaxAnswers:      5,
	}
}

func TestGenerateTemplateGrounded(t *testing.T) {
	t.Parallel()

	o := NewOrchestrator(nil, newFakeGateway(), evidence.NewKeywordGateway(nil), nil)
	res, err := o.Generate(context.Background(), baseQuery("百日咳是什么"))
	if err != nil {
		t.Fatal(err)
	}
	if res.AnswerSource != SourceKnowledgeGraph {
		t.Errorf("answer_source = %q, want %q", res.AnswerSource, SourceKnowledgeGraph)
	}
	if !strings.Contains(res.Answer, "【百日咳】") {
		t.Error("answer lost the graph block")
	}
	if !strings.Contains(res.Answer, "未使用AI大模型") {
		t.Error("template answers must carry the fallback notice")
	}
	if res.ModelUsed != "mock-llm" {
		t.Errorf("model_used = %q, want mock-llm", res.ModelUsed)
	}
	if res.Disclaimer != Disclaimer {
		t.Error("disclaimer missing")
	}
	if res.QueryID == "" || !strings.HasPrefix(res.QueryID, "q_") {
		t.Errorf("query_id = %q", res.QueryID)
	}
}

func TestGenerateTemplateNoKnowledge(t *testing.T) {
	t.Parallel()

	g := newFakeGateway()
	g.connected = false
	o := NewOrchestrator(nil, g, &fakeEvidence{}, nil)
	res, err := o.Generate(context.Background(), baseQuery("量子纠缠是什么"))
	if err != nil {
		t.Fatal(err)
	}
	if res.AnswerSource != SourceTemplate {
		t.Errorf("answer_source = %q, want %q", res.AnswerSource, SourceTemplate)
	}
	wantWarnings := map[string]bool{
		"未找到直接相关的医学文献": false,
		"知识图谱中未找到相关信息": false,
		"知识图谱服务未连接":     false,
	}
	for _, w := range res.Warnings {
		wantWarnings[w] = true
	}
	for w, seen := range wantWarnings {
		if !seen {
			t.Errorf("warning %q missing, got %v", w, res.Warnings)
		}
	}
	if res.ConfidenceScore != 0.7 {
		t.Errorf("confidence = %v, want neutral 0.7", res.ConfidenceScore)
	}
}

func TestGenerateModelGroundedIsMixed(t *testing.T) {
	t.Parallel()

	client := &fakeAIClient{answer: "百日咳需要及时治疗。"}
	o := NewOrchestrator(client, newFakeGateway(), &fakeEvidence{}, nil)
	res, err := o.Generate(context.Background(), baseQuery("百日咳是什么"))
	if err != nil {
		t.Fatal(err)
	}
	if res.AnswerSource != SourceMixed {
		t.Errorf("answer_source = %q, want %q", res.AnswerSource, SourceMixed)
	}
	if res.Answer != "百日咳需要及时治疗。" {
		t.Errorf("answer = %q", res.Answer)
	}
	if res.ModelUsed != "fake-model" {
		t.Errorf("model_used = %q", res.ModelUsed)
	}
}

func TestGenerateModelUngroundedIsLLMOnly(t *testing.T) {
	t.Parallel()

	g := newFakeGateway()
	g.connected = false
	client := &fakeAIClient{answer: "这是通用医学建议。"}
	o := NewOrchestrator(client, g, &fakeEvidence{}, nil)
	res, err := o.Generate(context.Background(), baseQuery("量子纠缠是什么"))
	if err != nil {
		t.Fatal(err)
	}
	if res.AnswerSource != SourceLLMOnly {
		t.Errorf("answer_source = %q, want %q", res.AnswerSource, SourceLLMOnly)
	}
	if !strings.Contains(res.Answer, "来源说明") || !strings.Contains(res.Answer, "fake-model") {
		t.Error("llm_only answers must carry the origin notice")
	}
}

func TestGenerateModelFailureFallsBackToTemplate(t *testing.T) {
	t.Parallel()

	client := &fakeAIClient{failWith: errors.New("provider down")}
	o := NewOrchestrator(client, newFakeGateway(), &fakeEvidence{}, nil)
	res, err := o.Generate(context.Background(), baseQuery("百日咳是什么"))
	if err != nil {
		t.Fatal(err)
	}
	if res.AnswerSource != SourceKnowledgeGraph {
		t.Errorf("answer_source = %q, want %q", res.AnswerSource, SourceKnowledgeGraph)
	}
	if !strings.Contains(res.Answer, "未使用AI大模型") {
		t.Error("fallback answer must carry the template notice")
	}
}

func TestGenerateTimeoutFallsBackToTemplate(t *testing.T) {
	t.Parallel()

	client := &fakeAIClient{blockCtx: true}
	o := NewOrchestrator(client, newFakeGateway(), &fakeEvidence{}, nil, WithLLMTimeout(30*time.Millisecond))
	res, err := o.Generate(context.Background(), baseQuery("百日咳是什么"))
	if err != nil {
		t.Fatal(err)
	}
	if res.AnswerSource != SourceKnowledgeGraph {
		t.Errorf("answer_source = %q, want %q", res.AnswerSource, SourceKnowledgeGraph)
	}
}

func TestGenerateStoresMemory(t *testing.T) {
	t.Parallel()

	store := &fakeMemoryStore{}
	o := NewOrchestrator(nil, newFakeGateway(), &fakeEvidence{}, store)
	q := baseQuery("百日咳是什么")
	q.UserID = "u1"
	if _, err := o.Generate(context.Background(), q); err != nil {
		t.Fatal(err)
	}
	// StoreAsync runs on its own goroutine.
	deadline := time.After(time.Second)
	for len(store.stored) == 0 {
		select {
		case <-deadline:
			t.Fatal("memory snippet never stored")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if !strings.HasPrefix(store.stored[0], "Q: 百日咳是什么\nA: ") {
		t.Errorf("snippet = %q", store.stored[0])
	}
}

func TestGenerateStreamEventOrder(t *testing.T) {
	t.Parallel()

	client := &fakeAIClient{fragments: []string{"百日咳", "需要治疗。"}}
	o := NewOrchestrator(client, newFakeGateway(), &fakeEvidence{items: []evidence.Item{{Source: "pubmed", Snippet: "研究", Confidence: 0.9}}}, nil)

	var events []StreamEvent
	for ev := range o.GenerateStream(context.Background(), baseQuery("百日咳是什么")) {
		events = append(events, ev)
	}
	if len(events) < 5 {
		t.Fatalf("got %d events: %+v", len(events), events)
	}
	if events[0].Status != StatusSearching {
		t.Errorf("first event %q, want searching", events[0].Status)
	}
	if events[1].Status != StatusEvidenceFound || events[1].Count == nil || *events[1].Count != 1 {
		t.Errorf("second event %+v, want evidence_found count=1", events[1])
	}
	if events[2].Status != StatusGenerating {
		t.Errorf("third event %q, want generating", events[2].Status)
	}

	var content strings.Builder
	terminals := 0
	for i, ev := range events {
		if ev.Status == StatusContent {
			content.WriteString(ev.Text)
		}
		if ev.Terminal() {
			terminals++
			if i != len(events)-1 {
				t.Error("terminal event must be last")
			}
		}
	}
	if terminals != 1 {
		t.Errorf("got %d terminal events, want exactly 1", terminals)
	}
	last := events[len(events)-1]
	if last.Status != StatusComplete || last.Response == nil {
		t.Fatalf("last event %+v, want complete with response", last)
	}
	if content.String() != last.Response.Answer {
		t.Errorf("streamed %q but final answer %q", content.String(), last.Response.Answer)
	}
	if last.Response.AnswerSource != SourceMixed {
		t.Errorf("answer_source = %q, want %q", last.Response.AnswerSource, SourceMixed)
	}
}

func TestGenerateStreamCancellation(t *testing.T) {
	t.Parallel()

	client := &fakeAIClient{blockCtx: true}
	o := NewOrchestrator(client, newFakeGateway(), &fakeEvidence{}, nil, WithLLMTimeout(time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	stream := o.GenerateStream(ctx, baseQuery("百日咳是什么"))

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	var last StreamEvent
	terminals := 0
	for ev := range stream {
		if ev.Terminal() {
			terminals++
		}
		last = ev
	}
	if terminals != 1 {
		t.Errorf("got %d terminal events, want exactly 1", terminals)
	}
	if last.Status != StatusError {
		t.Errorf("last event %q, want error", last.Status)
	}
}

func TestGenerateStreamCancelDuringContent(t *testing.T) {
	t.Parallel()

	fragments := make([]string, 64)
	for i := range fragments {
		fragments[i] = "片段。"
	}
	client := &fakeAIClient{fragments: fragments, buffered: true}
	o := NewOrchestrator(client, newFakeGateway(), &fakeEvidence{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	stream := o.GenerateStream(ctx, baseQuery("百日咳是什么"))

	// Cancel once generation is streaming; the provider still drains
	// its buffered fragments afterwards.
	var events []StreamEvent
	for ev := range stream {
		events = append(events, ev)
		if ev.Status == StatusContent {
			cancel()
		}
	}
	cancel()

	terminals := 0
	for i, ev := range events {
		if ev.Terminal() {
			terminals++
			if i != len(events)-1 {
				t.Error("terminal event must be last")
			}
		}
	}
	if terminals != 1 {
		t.Fatalf("got %d terminal events, want exactly 1: %+v", terminals, events)
	}
	if last := events[len(events)-1]; last.Status != StatusError {
		t.Errorf("last event %q, want error", last.Status)
	}
}

func TestGenerateEvidenceWithoutGraphIsNotGrounded(t *testing.T) {
	t.Parallel()

	g := newFakeGateway()
	g.connected = false
	evid := &fakeEvidence{items: []evidence.Item{{Source: "pubmed", Snippet: "研究", Confidence: 0.9}}}

	o := NewOrchestrator(nil, g, evid, nil)
	res, err := o.Generate(context.Background(), baseQuery("头痛怎么办"))
	if err != nil {
		t.Fatal(err)
	}
	if res.AnswerSource != SourceTemplate {
		t.Errorf("answer_source = %q, want %q", res.AnswerSource, SourceTemplate)
	}

	client := &fakeAIClient{answer: "建议多休息。"}
	o = NewOrchestrator(client, g, evid, nil)
	res, err = o.Generate(context.Background(), baseQuery("头痛怎么办"))
	if err != nil {
		t.Fatal(err)
	}
	if res.AnswerSource != SourceLLMOnly {
		t.Errorf("answer_source = %q, want %q", res.AnswerSource, SourceLLMOnly)
	}
	if len(res.Evidence) == 0 {
		t.Error("evidence items must still be returned")
	}
}

func TestGenerateStreamResubmitCancelsPredecessor(t *testing.T) {
	t.Parallel()

	client := &fakeAIClient{fragments: []string{"回答"}}
	o := NewOrchestrator(client, newFakeGateway(), &fakeEvidence{}, nil)

	q := baseQuery("百日咳是什么")
	q.SessionID = "session-1"
	first := o.GenerateStream(context.Background(), q)
	second := o.GenerateStream(context.Background(), q)

	firstTerminal, secondComplete := "", false
	for ev := range first {
		if ev.Terminal() {
			firstTerminal = ev.Status
		}
	}
	for ev := range second {
		if ev.Status == StatusComplete {
			secondComplete = true
		}
	}
	if firstTerminal == "" {
		t.Error("first stream ended without a terminal event")
	}
	if !secondComplete {
		t.Error("resubmitted stream must complete")
	}
	if o.Registry().Active() != 0 {
		t.Errorf("registry still tracks %d sessions", o.Registry().Active())
	}
}

func TestOverallConfidence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		r    retrieval
		want float64
	}{
		{"mean of evidence", retrieval{evid: []evidence.Item{{Confidence: 0.8}, {Confidence: 0.6}}}, 0.7},
		{"paths when no evidence", retrieval{kgPaths: []KnowledgePath{{Confidence: 0.9}}}, 0.9},
		{"neutral default", retrieval{}, 0.7},
		{"rounded to two decimals", retrieval{evid: []evidence.Item{{Confidence: 0.333}, {Confidence: 0.334}}}, 0.33},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := overallConfidence(tt.r); got != tt.want {
				t.Errorf("overallConfidence = %v, want %v", got, tt.want)
			}
		})
	}
}
