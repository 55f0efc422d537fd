// Package qa implements the hybrid retrieval-augmented question-answering
// pipeline: entity resolution against the knowledge graph, path building,
// evidence retrieval, context assembly and generation orchestration with
// per-session cancellation.
package qa

import (
	"github.com/Dango-F/medical-chat/pkg/evidence"
)

// ChatTurn is one prior conversation message, most-recent-last.
type ChatTurn struct {
	Role    string `json:"role" validate:"oneof=user assistant"`
	Content string `json:"content" validate:"required"`
}

// Query is an accepted question with its output preferences. Immutable.
type Query struct {
	Text            string
	SessionID       string
	UserID          string
	History         []ChatTurn
	MaxAnswers      int
	IncludePaths    bool
	IncludeEvidence bool
}

// How a resolved entity was discovered.
const (
	MethodLexical       = "lexical"
	MethodGraphFulltext = "graph-fulltext"
	MethodGraphFallback = "graph-fallback"
	MethodBacktrace     = "history-backtrace"
)

// ResolvedEntity is one canonical graph entity recovered from free text.
type ResolvedEntity struct {
	Name   string  `json:"name"`
	Kind   string  `json:"kind,omitempty"`
	Method string  `json:"method"`
	Match  string  `json:"match,omitempty"`
	Score  float64 `json:"score,omitempty"`
}

// KGNode is one node of a knowledge path.
type KGNode struct {
	ID         string            `json:"id"`
	Label      string            `json:"label"`
	Kind       string            `json:"type"`
	Properties map[string]string `json:"properties"`
}

// KGEdge connects two nodes of a knowledge path.
type KGEdge struct {
	Source     string            `json:"source"`
	Target     string            `json:"target"`
	Kind       string            `json:"type"`
	Properties map[string]string `json:"properties"`
}

// KnowledgePath is a small subgraph illustrating how the query relates to
// graph entities. Derived, read-only artifact of one resolution pass.
type KnowledgePath struct {
	Nodes      []KGNode `json:"nodes"`
	Edges      []KGEdge `json:"edges"`
	Relevance  float64  `json:"relevance_score"`
	Source     string   `json:"source"`
	Confidence float64  `json:"confidence"`
}

// AssembledContext is the bounded prompt input for one generation. Rebuilt
// per query, never cached.
type AssembledContext struct {
	KGContext       string
	EvidenceContext string
	History         []ChatTurn
	Grounded        bool
	TokenCount      int
}

// Answer-source classifications on the wire.
const (
	SourceKnowledgeGraph = "knowledge_graph"
	SourceLLMOnly        = "llm_only"
	SourceMixed          = "mixed"
	SourceTemplate       = "template"
)

// GenerationResult is the final structured answer of one query.
type GenerationResult struct {
	QueryID          string          `json:"query_id"`
	Answer           string          `json:"answer"`
	AnswerSource     string          `json:"answer_source"`
	Evidence         []evidence.Item `json:"evidence"`
	KGPaths          []KnowledgePath `json:"kg_paths"`
	ConfidenceScore  float64         `json:"confidence_score"`
	Warnings         []string        `json:"warnings"`
	Disclaimer       string          `json:"disclaimer"`
	ProcessingTimeMs int64           `json:"processing_time_ms"`
	ModelUsed        string          `json:"model_used"`
}

// Stream event statuses, emitted in pipeline order. Exactly one of
// complete or error terminates every stream.
const (
	StatusSearching     = "searching"
	StatusEvidenceFound = "evidence_found"
	StatusGenerating    = "generating"
	StatusContent       = "content"
	StatusComplete      = "complete"
	StatusError         = "error"
)

// StreamEvent is one increment of a streaming answer.
type StreamEvent struct {
	Status   string            `json:"status"`
	Message  string            `json:"message,omitempty"`
	Count    *int              `json:"count,omitempty"`
	Text     string            `json:"text,omitempty"`
	Response *GenerationResult `json:"response,omitempty"`
	Detail   string            `json:"detail,omitempty"`
}

// Terminal reports whether the event ends its stream.
func (e StreamEvent) Terminal() bool {
	return e.Status == StatusComplete || e.Status == StatusError
}

// Disclaimer is appended to every answer.
const Disclaimer = "⚠️ 重要提示：本系统仅供医疗信息参考，不能替代专业医生的诊断和治疗建议。如有身体不适，请及时就医。紧急情况请拨打急救电话。"

// vocabTerm is one fixed-vocabulary entry for the lexical pass. Order
// matters: resolution preserves first-discovery order across runs.
type vocabTerm struct {
	name string
	kind string
}

var medicalVocabulary = []vocabTerm{
	{"头痛", "Symptom"}, {"偏头痛", "Disease"}, {"紧张性头痛", "Disease"},
	{"发热", "Symptom"}, {"发烧", "Symptom"}, {"感冒", "Disease"}, {"流感", "Disease"},
	{"咳嗽", "Symptom"}, {"恶心", "Symptom"}, {"呕吐", "Symptom"}, {"腹痛", "Symptom"},
	{"腹泻", "Symptom"}, {"便秘", "Symptom"}, {"胸痛", "Symptom"}, {"心悸", "Symptom"},
	{"高血压", "Disease"}, {"糖尿病", "Disease"}, {"哮喘", "Disease"}, {"过敏", "Disease"},
	{"皮疹", "Symptom"}, {"失眠", "Symptom"}, {"焦虑", "Disease"}, {"抑郁", "Disease"},
	{"布洛芬", "Drug"}, {"对乙酰氨基酚", "Drug"}, {"阿司匹林", "Drug"},
	{"抗生素", "Drug"}, {"维生素", "Drug"},
	{"脑膜炎", "Disease"}, {"脑卒中", "Disease"}, {"中风", "Disease"},
	{"癫痫", "Disease"}, {"帕金森", "Disease"},
	{"畏光", "Symptom"}, {"颈部僵硬", "Symptom"}, {"意识", "Symptom"},
	{"视力", "Symptom"}, {"乏力", "Symptom"}, {"疲劳", "Symptom"},
	{"肺炎", "Disease"}, {"支气管炎", "Disease"}, {"胃炎", "Disease"},
	{"肠炎", "Disease"}, {"肝炎", "Disease"}, {"肾炎", "Disease"},
	{"冠心病", "Disease"}, {"心肌梗死", "Disease"}, {"心绞痛", "Disease"},
	{"心律失常", "Disease"},
	{"骨折", "Disease"}, {"关节炎", "Disease"}, {"腰痛", "Symptom"},
	{"颈椎病", "Disease"}, {"肩周炎", "Disease"},
	{"湿疹", "Disease"}, {"荨麻疹", "Disease"}, {"痤疮", "Disease"}, {"银屑病", "Disease"},
	{"贫血", "Disease"}, {"白血病", "Disease"}, {"淋巴瘤", "Disease"},
}

// synonymPair maps a colloquial term onto its canonical graph name.
// Ordered so results stay deterministic.
type synonymPair struct {
	colloquial string
	canonical  string
}

var synonyms = []synonymPair{
	{"小儿麻痹症", "脊髓灰质炎"},
	{"小儿麻痹", "脊髓灰质炎"},
	{"儿麻痹", "脊髓灰质炎"},
	{"普通流感", "流感"},
	{"流感", "流行性感冒"},
	{"感冒", "上呼吸道感染"},
}
