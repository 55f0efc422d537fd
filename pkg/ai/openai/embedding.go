package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"

	"github.com/Dango-F/medical-chat/pkg/ai"
)

// GenerateEmbedding creates a vector embedding for the given input text
// using the configured embedding model.
//
// Empty or whitespace-only input yields a zero vector of the configured
// dimension without hitting the API.
func (c *MedicalOpenAIClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	if len(input) == 0 || strings.TrimSpace(string(input)) == "" {
		return make([]float32, c.embeddingDim), nil
	}

	body := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(string(input))},
		Model: openai.EmbeddingModel(c.embeddingModel),
	}

	if err := c.reqLock.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.reqLock.Release(1)

	start := time.Now()
	response, err := c.EmbeddingClient.Embeddings.New(ctx, body)
	if err != nil {
		return nil, err
	}

	c.modifyMetrics(ai.ModelMetrics{
		InputTokens: int(response.Usage.PromptTokens),
		TotalTokens: int(response.Usage.TotalTokens),
		DurationMs:  time.Since(start).Milliseconds(),
	})

	if len(response.Data) != 1 {
		return nil, fmt.Errorf("unexpected embedding result size: got %d want 1", len(response.Data))
	}

	vec := make([]float32, 0, c.embeddingDim)
	for _, v := range response.Data[0].Embedding {
		if len(vec) >= c.embeddingDim {
			break
		}
		vec = append(vec, float32(v))
	}
	if len(vec) < c.embeddingDim {
		padded := make([]float32, c.embeddingDim)
		copy(padded, vec)
		vec = padded
	}
	return vec, nil
}
