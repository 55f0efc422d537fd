package qa

import (
	"context"
	"regexp"
	"strings"

	"github.com/Dango-F/medical-chat/pkg/kg"
	"github.com/Dango-F/medical-chat/pkg/logger"
)

const (
	// Conversation turns consulted when the current query names nothing.
	backtraceTurns = 6
	resolveCap     = 5
)

var (
	// Greedy non-overlapping runs of Chinese characters, 2 to 6 runes.
	chineseTermRe = regexp.MustCompile(`[\p{Han}]{2,6}`)
	// Wider window for history turns, which tend to carry full entity names.
	chineseLongTermRe = regexp.MustCompile(`[\p{Han}]{2,12}`)
	// Question suffixes stripped before the aggressive whole-query search.
	questionSuffixRe = regexp.MustCompile(`(是什么|是啥|啥是|是啥意思|是什么意思|是什么病|怎么回事|有哪些症状|症状|怎么办)$`)
	hanRe            = regexp.MustCompile(`[\p{Han}]`)
)

// Resolver recovers canonical graph entities from free-text queries. It
// layers a fixed lexical vocabulary, graph-backed search, and conversation
// backtrace so that follow-up questions keep their subject.
type Resolver struct {
	graph kg.Gateway
}

func NewResolver(graph kg.Gateway) *Resolver {
	return &Resolver{graph: graph}
}

// found accumulates entities in first-discovery order with dedupe by name.
type found struct {
	entities []ResolvedEntity
	seen     map[string]bool
}

func newFound() *found {
	return &found{seen: make(map[string]bool)}
}

func (f *found) add(e ResolvedEntity) {
	if e.Name == "" || f.seen[e.Name] {
		return
	}
	f.seen[e.Name] = true
	f.entities = append(f.entities, e)
}

func (f *found) empty() bool { return len(f.entities) == 0 }

// Resolve extracts up to five canonical entities from the query, falling
// back to recent user turns when the query itself names nothing. Results
// preserve discovery order, so repeated calls with the same inputs return
// the same list.
func (r *Resolver) Resolve(ctx context.Context, query string, history []ChatTurn) []ResolvedEntity {
	f := newFound()

	r.lexicalPass(query, f)
	r.graphPass(ctx, query, f)

	if f.empty() && len(history) > 0 {
		r.backtracePass(ctx, history, f)
	}
	if f.empty() {
		r.aggressivePass(ctx, query, f)
	}
	if len(history) > 0 && r.connected() {
		r.combinedPass(ctx, query, history, f)
	}

	if len(f.entities) > resolveCap {
		f.entities = f.entities[:resolveCap]
	}
	logger.Debug("resolved entities", "query_len", len(query), "count", len(f.entities))
	return f.entities
}

// ResolveCurrentOnly runs only the lexical and graph passes against the
// query text. Used for evidence keyword hints, where history subjects
// would pollute the search.
func (r *Resolver) ResolveCurrentOnly(ctx context.Context, query string) []string {
	f := newFound()
	r.lexicalPass(query, f)
	r.graphPass(ctx, query, f)
	names := make([]string, 0, len(f.entities))
	for _, e := range f.entities {
		names = append(names, e.Name)
	}
	return names
}

func (r *Resolver) connected() bool {
	return r.graph != nil && r.graph.Connected()
}

// lexicalPass scans the fixed vocabulary and synonym table. Synonyms map a
// colloquial mention onto its canonical graph name.
func (r *Resolver) lexicalPass(text string, f *found) {
	for _, term := range medicalVocabulary {
		if strings.Contains(text, term.name) {
			f.add(ResolvedEntity{Name: term.name, Kind: term.kind, Method: MethodLexical, Match: kg.MatchExact, Score: 1})
		}
	}
	for _, syn := range synonyms {
		if strings.Contains(text, syn.colloquial) {
			f.add(ResolvedEntity{Name: syn.canonical, Kind: kg.KindDisease, Method: MethodLexical, Match: kg.MatchExact, Score: 1})
		}
	}
}

// graphPass searches each Chinese term of the query against the graph,
// diseases before symptoms, keeping the first hit per term.
func (r *Resolver) graphPass(ctx context.Context, text string, f *found) {
	if !r.connected() {
		return
	}
	for _, term := range chineseTermRe.FindAllString(text, -1) {
		if f.seen[term] {
			continue
		}
		r.searchTerm(ctx, term, MethodGraphFulltext, f)
	}
}

// backtracePass walks the most recent user turns newest-first and stops at
// the first turn that yields an entity.
func (r *Resolver) backtracePass(ctx context.Context, history []ChatTurn, f *found) {
	if !r.connected() {
		return
	}
	turns := lastTurns(history, backtraceTurns)
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role != "user" {
			continue
		}
		before := len(f.entities)
		for _, term := range chineseLongTermRe.FindAllString(turns[i].Content, -1) {
			if f.seen[term] {
				continue
			}
			r.searchTerm(ctx, term, MethodBacktrace, f)
		}
		if len(f.entities) > before {
			return
		}
	}
}

// aggressivePass strips question suffixes and retries the whole remaining
// phrase as a disease name, then degrades to an n-gram scan from the
// longest window down.
func (r *Resolver) aggressivePass(ctx context.Context, query string, f *found) {
	if !r.connected() {
		return
	}
	cleaned := questionSuffixRe.ReplaceAllString(strings.TrimSpace(query), "")
	if cleaned != "" {
		hits, err := r.graph.SearchEntities(ctx, cleaned, kg.KindDisease, 3)
		if err != nil {
			logger.Debug("aggressive disease search failed", "error", err)
		}
		for _, hit := range hits {
			f.add(resolvedFromHit(hit, MethodGraphFallback))
		}
		if !f.empty() {
			return
		}
	}

	han := strings.Join(hanRe.FindAllString(cleaned, -1), "")
	runes := []rune(han)
	for size := 6; size >= 2; size-- {
		for start := 0; start+size <= len(runes); start++ {
			gram := string(runes[start : start+size])
			if f.seen[gram] {
				continue
			}
			before := len(f.entities)
			r.searchTerm(ctx, gram, MethodGraphFallback, f)
			if len(f.entities) > before {
				return
			}
		}
	}
}

// combinedPass re-extracts over history plus query so multi-turn context
// can surface entities the single-turn passes missed.
func (r *Resolver) combinedPass(ctx context.Context, query string, history []ChatTurn, f *found) {
	var sb strings.Builder
	for _, turn := range lastTurns(history, backtraceTurns) {
		sb.WriteString(turn.Content)
		sb.WriteString(" ")
	}
	sb.WriteString(query)
	combined := sb.String()

	for _, term := range chineseTermRe.FindAllString(combined, -1) {
		if f.seen[term] {
			continue
		}
		r.searchTerm(ctx, term, MethodGraphFulltext, f)
	}
	r.lexicalPass(combined, f)
}

// searchTerm tries a term as a disease and then as a symptom, recording
// the first hit. Graph errors degrade to no hit.
func (r *Resolver) searchTerm(ctx context.Context, term, method string, f *found) {
	for _, kind := range []string{kg.KindDisease, kg.KindSymptom} {
		hits, err := r.graph.SearchEntities(ctx, term, kind, 1)
		if err != nil {
			logger.Debug("entity search failed", "term", term, "kind", kind, "error", err)
			continue
		}
		if len(hits) > 0 {
			f.add(resolvedFromHit(hits[0], method))
			return
		}
	}
}

func resolvedFromHit(hit kg.Entity, method string) ResolvedEntity {
	m := method
	if hit.Match == kg.MatchSubstring && method == MethodGraphFulltext {
		m = MethodGraphFallback
	}
	return ResolvedEntity{Name: hit.Name, Kind: hit.Kind, Method: m, Match: hit.Match, Score: hit.Score}
}

func lastTurns(history []ChatTurn, n int) []ChatTurn {
	if len(history) > n {
		return history[len(history)-n:]
	}
	return history
}
