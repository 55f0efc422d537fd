package ollama

import (
	"context"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/Dango-F/medical-chat/pkg/ai"
)

// GenerateEmbedding creates a vector embedding for the given input text
// using the configured embedding model on Ollama.
//
// Empty or whitespace-only input yields a zero vector of the configured
// dimension without hitting the server.
func (c *MedicalOllamaClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	if len(input) == 0 || strings.TrimSpace(string(input)) == "" {
		return make([]float32, c.embeddingDim), nil
	}

	req := &api.EmbedRequest{
		Model: c.embeddingModel,
		Input: string(input),
	}

	if err := c.reqLock.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.reqLock.Release(1)

	res, err := c.Client.Embed(ctx, req)
	if err != nil {
		return nil, err
	}

	c.modifyMetrics(ai.ModelMetrics{
		InputTokens: res.PromptEvalCount,
		TotalTokens: res.PromptEvalCount,
		DurationMs:  res.TotalDuration.Milliseconds(),
	})

	out := make([]float32, 0, c.embeddingDim)
	for _, v := range res.Embeddings {
		for _, val := range v {
			if len(out) >= c.embeddingDim {
				break
			}
			out = append(out, float32(val))
		}
	}
	if len(out) < c.embeddingDim {
		padded := make([]float32, c.embeddingDim)
		copy(padded, out)
		out = padded
	}
	return out, nil
}
