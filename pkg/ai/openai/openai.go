package openai

import (
	"sync"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"

	"github.com/Dango-F/medical-chat/pkg/ai"
)

// MedicalOpenAIClient talks to any OpenAI-compatible chat/embedding API.
// Pointing BaseURL at a compatible gateway (e.g. SiliconFlow for the
// DeepSeek models) selects a different provider without code changes.
//
// A MedicalOpenAIClient should be created using NewMedicalOpenAIClient.
type MedicalOpenAIClient struct {
	chatModel      string
	embeddingModel string
	embeddingDim   int

	reqLock *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	ChatClient      *openai.Client
	EmbeddingClient *openai.Client
}

// NewMedicalOpenAIClientParams configures a new MedicalOpenAIClient.
//
// ChatURL/ChatKey and EmbeddingURL/EmbeddingKey configure the two API
// endpoints independently; an empty URL means the official OpenAI API.
type NewMedicalOpenAIClientParams struct {
	ChatModel      string
	EmbeddingModel string
	EmbeddingDim   int

	ChatURL      string
	ChatKey      string
	EmbeddingURL string
	EmbeddingKey string

	MaxConcurrentRequests int64
}

// NewMedicalOpenAIClient creates a client for chat completion and
// embedding requests against an OpenAI-compatible endpoint.
func NewMedicalOpenAIClient(params NewMedicalOpenAIClientParams) *MedicalOpenAIClient {
	maxReq := params.MaxConcurrentRequests
	if maxReq <= 0 {
		maxReq = 15
	}
	dim := params.EmbeddingDim
	if dim <= 0 {
		dim = 1536
	}

	chatClient := newOpenaiClient(params.ChatURL, params.ChatKey)
	embedClient := newOpenaiClient(params.EmbeddingURL, params.EmbeddingKey)

	return &MedicalOpenAIClient{
		chatModel:      params.ChatModel,
		embeddingModel: params.EmbeddingModel,
		embeddingDim:   dim,

		reqLock: semaphore.NewWeighted(maxReq),

		metricsLock: sync.Mutex{},
		metrics:     ai.ModelMetrics{},

		ChatClient:      chatClient,
		EmbeddingClient: embedClient,
	}
}

// ModelName reports the configured chat model identifier.
func (c *MedicalOpenAIClient) ModelName() string {
	return c.chatModel
}

func newOpenaiClient(baseURL, apiKey string) *openai.Client {
	opts := make([]option.RequestOption, 0, 2)
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := openai.NewClient(opts...)
	return &client
}
