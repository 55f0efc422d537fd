package ollama

import (
	"net/http"
	"net/url"
	"sync"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"

	"github.com/Dango-F/medical-chat/pkg/ai"
)

// MedicalOllamaClient implements the ai.ChatAIClient interface using a
// locally-hosted Ollama server. Useful for running the QA pipeline fully
// offline with open-weight models.
type MedicalOllamaClient struct {
	chatModel      string
	embeddingModel string
	embeddingDim   int

	reqLock *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	baseURL    *url.URL
	httpClient *http.Client

	Client *api.Client
}

// NewMedicalOllamaClientParams contains configuration options for creating
// a new MedicalOllamaClient.
type NewMedicalOllamaClientParams struct {
	ChatModel      string
	EmbeddingModel string
	EmbeddingDim   int

	BaseURL string
	ApiKey  string

	MaxConcurrentRequests int64
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// clone so original request isn't modified
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

// NewMedicalOllamaClient creates a new Ollama-based AI client connecting
// to the server at BaseURL (or the Ollama default if empty).
func NewMedicalOllamaClient(params NewMedicalOllamaClientParams) (*MedicalOllamaClient, error) {
	var (
		u   *url.URL
		err error
	)
	if params.BaseURL != "" {
		u, err = url.Parse(params.BaseURL)
		if err != nil {
			return nil, err
		}
	}

	httpClient := &http.Client{
		Transport: &headerTransport{
			headers: map[string]string{
				"Authorization": "Bearer " + params.ApiKey,
			},
			rt: http.DefaultTransport,
		},
	}

	maxReq := params.MaxConcurrentRequests
	if maxReq <= 0 {
		maxReq = 5
	}
	dim := params.EmbeddingDim
	if dim <= 0 {
		dim = 1024
	}

	return &MedicalOllamaClient{
		chatModel:      params.ChatModel,
		embeddingModel: params.EmbeddingModel,
		embeddingDim:   dim,

		reqLock: semaphore.NewWeighted(maxReq),

		metricsLock: sync.Mutex{},
		metrics:     ai.ModelMetrics{},

		baseURL:    u,
		httpClient: httpClient,

		Client: api.NewClient(u, httpClient),
	}, nil
}

// ModelName reports the configured chat model identifier.
func (c *MedicalOllamaClient) ModelName() string {
	return c.chatModel
}
