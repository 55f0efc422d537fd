package qa

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/Dango-F/medical-chat/pkg/ai"
	"github.com/Dango-F/medical-chat/pkg/evidence"
	"github.com/Dango-F/medical-chat/pkg/logger"
	"github.com/Dango-F/medical-chat/pkg/memory"
)

const (
	defaultTokenBudget = 3000
	maxEvidenceInCtx   = 5
	maxMemoriesInCtx   = 5
	maxHistoryTurns    = 6
)

// ContextAssembler merges knowledge-graph text, retrieved evidence, user
// memories and conversation history into one bounded generation context.
type ContextAssembler struct {
	tokenBudget int
	encoder     *tiktoken.Tiktoken
}

func NewContextAssembler(tokenBudget int) *ContextAssembler {
	if tokenBudget <= 0 {
		tokenBudget = defaultTokenBudget
	}
	enc, err := tiktoken.GetEncoding("o200k_base")
	if err != nil {
		logger.Warn("token encoder unavailable, falling back to rune counts", "error", err)
	}
	return &ContextAssembler{tokenBudget: tokenBudget, encoder: enc}
}

// Assemble builds the context for one generation. The knowledge block is
// trimmed first and the evidence block second when the token budget is
// exceeded; history turns are kept whole.
func (a *ContextAssembler) Assemble(kgContext string, memories []memory.Memory, evid []evidence.Item, paths []KnowledgePath, history []ChatTurn) AssembledContext {
	var kb strings.Builder
	if block := memoryBlock(memories); block != "" {
		kb.WriteString(block)
	}
	if kgContext != "" {
		kb.WriteString(kgContext)
	} else if block := pathBlock(paths); block != "" {
		kb.WriteString(block)
	}

	ctx := AssembledContext{
		KGContext:       kb.String(),
		EvidenceContext: evidenceBlock(evid),
		History:         lastTurns(history, maxHistoryTurns),
	}
	// Grounding means graph knowledge, not literature evidence; an answer
	// built on evidence alone must not be classified as graph-backed.
	ctx.Grounded = strings.TrimSpace(ctx.KGContext) != ""

	a.enforceBudget(&ctx)
	ctx.TokenCount = a.countTokens(ctx.KGContext) + a.countTokens(ctx.EvidenceContext)
	for _, turn := range ctx.History {
		ctx.TokenCount += a.countTokens(turn.Content)
	}
	return ctx
}

// enforceBudget trims the knowledge block, then the evidence block, until
// the combined context fits. Message boundaries are never cut.
func (a *ContextAssembler) enforceBudget(ctx *AssembledContext) {
	historyTokens := 0
	for _, turn := range ctx.History {
		historyTokens += a.countTokens(turn.Content)
	}
	remaining := a.tokenBudget - historyTokens
	if remaining < 0 {
		remaining = 0
	}

	kgTokens := a.countTokens(ctx.KGContext)
	evTokens := a.countTokens(ctx.EvidenceContext)
	if kgTokens+evTokens <= remaining {
		return
	}

	kgBudget := remaining - evTokens
	if kgBudget < remaining/2 {
		kgBudget = remaining / 2
	}
	ctx.KGContext = a.truncateToTokens(ctx.KGContext, kgBudget)
	ctx.EvidenceContext = a.truncateToTokens(ctx.EvidenceContext, remaining-a.countTokens(ctx.KGContext))
}

func (a *ContextAssembler) countTokens(s string) int {
	if s == "" {
		return 0
	}
	if a.encoder == nil {
		return len([]rune(s))
	}
	return len(a.encoder.Encode(s, nil, nil))
}

func (a *ContextAssembler) truncateToTokens(s string, budget int) string {
	if budget <= 0 {
		return ""
	}
	if a.countTokens(s) <= budget {
		return s
	}
	if a.encoder == nil {
		runes := []rune(s)
		if len(runes) > budget {
			runes = runes[:budget]
		}
		return string(runes)
	}
	tokens := a.encoder.Encode(s, nil, nil)
	return a.encoder.Decode(tokens[:budget])
}

// BuildPrompt renders the system and user prompts for one generation,
// picking the grounded or ungrounded template by context availability.
func BuildPrompt(query string, ctx AssembledContext) (system, user string) {
	historyText := renderHistory(ctx.History)
	if ctx.Grounded {
		knowledge := ctx.KGContext
		if ctx.EvidenceContext != "" {
			knowledge += "\n" + ctx.EvidenceContext
		}
		return ai.GroundedSystemPrompt, fmt.Sprintf(ai.GroundedQueryPrompt, knowledge, historyText, query)
	}
	return ai.UngroundedSystemPrompt, fmt.Sprintf(ai.UngroundedQueryPrompt, historyText, query)
}

func renderHistory(history []ChatTurn) string {
	if len(history) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\n**对话历史**：\n")
	for _, turn := range history {
		speaker := "用户"
		if turn.Role == "assistant" {
			speaker = "助手"
		}
		fmt.Fprintf(&sb, "%s：%s\n", speaker, turn.Content)
	}
	return sb.String()
}

func memoryBlock(memories []memory.Memory) string {
	if len(memories) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("用户历史记忆：\n")
	for i, m := range memories {
		if i >= maxMemoriesInCtx {
			break
		}
		fmt.Fprintf(&sb, "- (%.2f) %s\n", m.Score, m.Content)
	}
	return sb.String()
}

// pathBlock synthesizes a minimal knowledge block from path node labels
// when structured expansion produced nothing but paths exist.
func pathBlock(paths []KnowledgePath) string {
	var labels []string
	seen := make(map[string]bool)
	for _, p := range paths {
		for _, n := range p.Nodes {
			if n.Label == "" || seen[n.Label] {
				continue
			}
			seen[n.Label] = true
			labels = append(labels, n.Label)
		}
	}
	if len(labels) == 0 {
		return ""
	}
	return "相关医学知识：" + strings.Join(labels, "、") + "\n"
}

func evidenceBlock(evid []evidence.Item) string {
	if len(evid) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("医学文献证据：\n")
	for i, item := range evid {
		if i >= maxEvidenceInCtx {
			break
		}
		fmt.Fprintf(&sb, "- [%s] %s\n", item.Source, item.Snippet)
	}
	return sb.String()
}
