package qa

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/sync/semaphore"

	"github.com/Dango-F/medical-chat/pkg/ai"
	"github.com/Dango-F/medical-chat/pkg/evidence"
	"github.com/Dango-F/medical-chat/pkg/kg"
	"github.com/Dango-F/medical-chat/pkg/logger"
	"github.com/Dango-F/medical-chat/pkg/memory"
)

const (
	// In-flight generations across all sessions. Queued requests wait.
	maxConcurrentRequests = 5
	// Wall-clock cap on one generation before the template fallback.
	defaultLLMTimeout = 60 * time.Second

	defaultMaxAnswers = 3
	memorySnippetCap  = 1000
)

// Orchestrator runs the full answer pipeline: entity resolution, graph and
// evidence retrieval, context assembly, generation and classification.
// A nil AI client selects the deterministic template backend.
type Orchestrator struct {
	aiClient ai.ChatAIClient
	graph    kg.Gateway
	evid     evidence.Gateway
	memories memory.Store

	resolver  *Resolver
	paths     *PathBuilder
	assembler *ContextAssembler
	registry  *SessionRegistry

	sem        *semaphore.Weighted
	llmTimeout time.Duration
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithLLMTimeout overrides the per-generation wall-clock cap.
func WithLLMTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.llmTimeout = d
		}
	}
}

// WithConcurrencyLimit overrides how many generations may run at once.
func WithConcurrencyLimit(n int64) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.sem = semaphore.NewWeighted(n)
		}
	}
}

func NewOrchestrator(aiClient ai.ChatAIClient, graph kg.Gateway, evid evidence.Gateway, memories memory.Store, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		aiClient:   aiClient,
		graph:      graph,
		evid:       evid,
		memories:   memories,
		resolver:   NewResolver(graph),
		paths:      NewPathBuilder(graph),
		assembler:  NewContextAssembler(0),
		registry:   NewSessionRegistry(),
		sem:        semaphore.NewWeighted(maxConcurrentRequests),
		llmTimeout: defaultLLMTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Registry exposes the session registry for the cancellation boundary.
func (o *Orchestrator) Registry() *SessionRegistry { return o.registry }

// retrieval is everything gathered before generation.
type retrieval struct {
	entities  []ResolvedEntity
	kgPaths   []KnowledgePath
	kgContext string
	evid      []evidence.Item
	memories  []memory.Memory
}

func (o *Orchestrator) retrieve(ctx context.Context, q Query) retrieval {
	var r retrieval
	r.entities = o.resolver.Resolve(ctx, q.Text, q.History)

	if q.IncludePaths && len(r.entities) > 0 {
		r.kgPaths = o.paths.BuildPaths(ctx, r.entities)
	}
	if len(r.entities) > 0 {
		r.kgContext = o.paths.BuildContextText(ctx, r.entities)
	}
	if q.IncludeEvidence && o.evid != nil {
		hints := o.resolver.ResolveCurrentOnly(ctx, q.Text)
		items, err := o.evid.SearchEvidence(ctx, q.Text, hints, maxAnswers(q)+2)
		if err != nil {
			logger.Warn("evidence search failed", "error", err)
		}
		r.evid = items
	}
	if o.memories != nil && q.UserID != "" {
		mems, err := o.memories.SearchMemory(ctx, q.Text, q.UserID, maxMemoriesInCtx)
		if err != nil {
			logger.Debug("memory search failed", "error", err)
		}
		r.memories = mems
	}
	return r
}

// Generate answers one query synchronously.
func (o *Orchestrator) Generate(ctx context.Context, q Query) (*GenerationResult, error) {
	start := time.Now()
	queryID := newQueryID()
	logger.Info("processing query", "query_id", queryID, "session", q.SessionID)

	genCtx, release := o.registry.Register(ctx, q.SessionID)
	defer release()

	r := o.retrieve(genCtx, q)

	if err := o.sem.Acquire(genCtx, 1); err != nil {
		return nil, err
	}
	defer o.sem.Release(1)

	asm := o.assembler.Assemble(r.kgContext, r.memories, r.evid, r.kgPaths, q.History)
	answer, source := o.generateAnswer(genCtx, q, r, asm, nil)
	if err := genCtx.Err(); err != nil {
		return nil, err
	}

	res := o.buildResult(queryID, q, r, answer, source, start)
	o.storeMemory(q, res.Answer)
	return res, nil
}

// GenerateStream answers one query as an event stream. The channel always
// ends with exactly one terminal event and is then closed. Registration
// happens before return so a resubmit observed later cancels this stream.
func (o *Orchestrator) GenerateStream(ctx context.Context, q Query) <-chan StreamEvent {
	out := make(chan StreamEvent, 8)
	genCtx, release := o.registry.Register(ctx, q.SessionID)

	go func() {
		defer close(out)
		defer release()

		if err := o.runStream(genCtx, out, q); err != nil {
			o.emitTerminal(out, StreamEvent{Status: StatusError, Detail: "请求已取消"})
		}
	}()
	return out
}

// runStream drives one streamed generation. A nil return means the
// complete event was already sent; any error means the caller owes the
// stream its single error terminal.
func (o *Orchestrator) runStream(ctx context.Context, out chan<- StreamEvent, q Query) error {
	start := time.Now()
	queryID := newQueryID()
	logger.Info("processing stream query", "query_id", queryID, "session", q.SessionID)

	if !o.emit(ctx, out, StreamEvent{Status: StatusSearching, Message: "正在检索知识图谱..."}) {
		return ctx.Err()
	}

	r := o.retrieve(ctx, q)
	count := len(r.evid)
	if !o.emit(ctx, out, StreamEvent{Status: StatusEvidenceFound, Count: &count}) {
		return ctx.Err()
	}

	if err := o.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer o.sem.Release(1)

	if !o.emit(ctx, out, StreamEvent{Status: StatusGenerating, Message: "正在生成回答..."}) {
		return ctx.Err()
	}

	asm := o.assembler.Assemble(r.kgContext, r.memories, r.evid, r.kgPaths, q.History)
	answer, source := o.generateAnswer(ctx, q, r, asm, func(fragment string) bool {
		return o.emit(ctx, out, StreamEvent{Status: StatusContent, Text: fragment})
	})
	if err := ctx.Err(); err != nil {
		return err
	}

	res := o.buildResult(queryID, q, r, answer, source, start)
	o.storeMemory(q, res.Answer)
	o.emitTerminal(out, StreamEvent{Status: StatusComplete, Response: res})
	return nil
}

// generateAnswer produces the answer text and its source classification.
// onContent, when set, receives fragments as they arrive and may return
// false to stop consuming. Model failures and timeouts degrade to the
// template backend.
func (o *Orchestrator) generateAnswer(ctx context.Context, q Query, r retrieval, asm AssembledContext, onContent func(string) bool) (string, string) {
	grounded := asm.Grounded

	if o.aiClient == nil {
		var answer string
		if grounded {
			answer = TemplateAnswer(q.Text, r.kgContext, r.evid)
		} else {
			answer = NoGraphAnswer(r.entities)
		}
		if onContent != nil {
			onContent(answer)
		}
		if grounded {
			return answer, SourceKnowledgeGraph
		}
		return answer, SourceTemplate
	}

	answer, err := o.modelAnswer(ctx, q, asm, onContent)
	if err != nil {
		if ctx.Err() != nil {
			return "", ""
		}
		logger.Warn("model generation failed, using template fallback", "error", err)
		answer := TemplateAnswer(q.Text, r.kgContext, r.evid)
		if onContent != nil {
			onContent(answer)
		}
		if grounded {
			return answer, SourceKnowledgeGraph
		}
		return answer, SourceTemplate
	}

	if grounded {
		return answer, SourceMixed
	}
	return answer + noKGNotice(o.aiClient.ModelName()), SourceLLMOnly
}

// modelAnswer runs one model generation under the wall-clock cap. When
// onContent is set the streaming API is used and fragments are forwarded.
func (o *Orchestrator) modelAnswer(ctx context.Context, q Query, asm AssembledContext, onContent func(string) bool) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, o.llmTimeout)
	defer cancel()

	system, user := BuildPrompt(q.Text, asm)
	messages := make([]ai.ChatMessage, 0, len(asm.History)+1)
	for _, turn := range asm.History {
		messages = append(messages, ai.ChatMessage{Message: turn.Content, Role: turn.Role})
	}
	messages = append(messages, ai.ChatMessage{Message: user, Role: "user"})
	opts := []ai.GenerateOption{ai.WithSystemPrompts(system), ai.WithTemperature(0.3)}

	if onContent == nil {
		return o.aiClient.GenerateChat(genCtx, messages, opts...)
	}

	events, err := o.aiClient.GenerateChatStream(genCtx, messages, opts...)
	if err != nil {
		return "", err
	}
	var answer []byte
	for ev := range events {
		if ev.Type != "content" || ev.Content == "" {
			continue
		}
		answer = append(answer, ev.Content...)
		if !onContent(ev.Content) {
			return string(answer), genCtx.Err()
		}
	}
	if err := genCtx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return "", err
		}
		return string(answer), err
	}
	if len(answer) == 0 {
		return "", errors.New("model produced no content")
	}
	return string(answer), nil
}

func (o *Orchestrator) buildResult(queryID string, q Query, r retrieval, answer, source string, start time.Time) *GenerationResult {
	evid := r.evid
	if len(evid) > maxAnswers(q) {
		evid = evid[:maxAnswers(q)]
	}
	res := &GenerationResult{
		QueryID:          queryID,
		Answer:           answer,
		AnswerSource:     source,
		Evidence:         evid,
		KGPaths:          r.kgPaths,
		ConfidenceScore:  overallConfidence(r),
		Warnings:         buildWarnings(r, o.graphConnected()),
		Disclaimer:       Disclaimer,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		ModelUsed:        o.modelUsed(),
	}
	if res.Evidence == nil {
		res.Evidence = []evidence.Item{}
	}
	if res.KGPaths == nil {
		res.KGPaths = []KnowledgePath{}
	}
	if res.Warnings == nil {
		res.Warnings = []string{}
	}
	return res
}

func (o *Orchestrator) storeMemory(q Query, answer string) {
	if o.memories == nil || q.UserID == "" || answer == "" {
		return
	}
	snippet := answer
	if runes := []rune(snippet); len(runes) > memorySnippetCap {
		snippet = string(runes[:memorySnippetCap])
	}
	memory.StoreAsync(o.memories, q.UserID, "Q: "+q.Text+"\nA: "+snippet)
}

func (o *Orchestrator) graphConnected() bool {
	return o.graph != nil && o.graph.Connected()
}

func (o *Orchestrator) modelUsed() string {
	if o.aiClient == nil {
		return "mock-llm"
	}
	return o.aiClient.ModelName()
}

// emit delivers a non-terminal event, backing off to cancellation. It
// never sends a terminal itself; that stays with the stream unwind so a
// cancelled stream ends with exactly one error event.
func (o *Orchestrator) emit(ctx context.Context, out chan<- StreamEvent, ev StreamEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// emitTerminal delivers the single terminal event without blocking forever
// on an abandoned consumer.
func (o *Orchestrator) emitTerminal(out chan<- StreamEvent, ev StreamEvent) {
	select {
	case out <- ev:
	case <-time.After(time.Second):
	}
}

// overallConfidence is the mean of evidence confidences, then path
// confidences, then a neutral default. Two decimal places.
func overallConfidence(r retrieval) float64 {
	var scores []float64
	for _, item := range r.evid {
		scores = append(scores, item.Confidence)
	}
	if len(scores) == 0 {
		for _, p := range r.kgPaths {
			scores = append(scores, p.Confidence)
		}
	}
	if len(scores) == 0 {
		return 0.7
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return math.Round(sum/float64(len(scores))*100) / 100
}

func buildWarnings(r retrieval, connected bool) []string {
	var warnings []string
	if len(r.evid) == 0 {
		warnings = append(warnings, "未找到直接相关的医学文献")
	}
	if r.kgContext == "" && len(r.kgPaths) == 0 {
		warnings = append(warnings, "知识图谱中未找到相关信息")
	}
	if !connected {
		warnings = append(warnings, "知识图谱服务未连接")
	}
	return warnings
}

func noKGNotice(model string) string {
	if model == "" {
		model = "AI"
	}
	return fmt.Sprintf(noKGNoticeTemplate, model)
}

func maxAnswers(q Query) int {
	if q.MaxAnswers <= 0 {
		return defaultMaxAnswers
	}
	return q.MaxAnswers
}

func newQueryID() string {
	id, err := gonanoid.New(12)
	if err != nil {
		return "q_unknown"
	}
	return "q_" + id
}
