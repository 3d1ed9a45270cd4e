package completion

import (
	"context"
	"encoding/json"
	"fmt"
)

const (
	embeddingsPath = "/embeddings"

	embeddingCountErrorFormat = "%w: want %d, got %d"
	embeddingIndexErrorFormat = "%w: index %d out of range"
)

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// CreateEmbeddings returns one vector per input, in input order.
func (c Client) CreateEmbeddings(ctx context.Context, model string, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	body, status, err := c.post(ctx, embeddingsPath, embeddingsRequest{Model: model, Input: inputs})
	if err != nil {
		return nil, err
	}
	var decoded embeddingsResponse
	if decodeErr := json.Unmarshal(body, &decoded); decodeErr != nil {
		return nil, &PromptError{Kind: KindResponse, StatusCode: status, Err: fmt.Errorf(bodyErrorFormat, decodeErr, preview(string(body), bodyPreviewLimit))}
	}
	if len(decoded.Data) != len(inputs) {
		return nil, &PromptError{Kind: KindResponse, StatusCode: status, Err: fmt.Errorf(embeddingCountErrorFormat, ErrNoEmbeddings, len(inputs), len(decoded.Data))}
	}
	vectors := make([][]float32, len(inputs))
	for _, item := range decoded.Data {
		if item.Index < 0 || item.Index >= len(vectors) || vectors[item.Index] != nil {
			return nil, &PromptError{Kind: KindResponse, StatusCode: status, Err: fmt.Errorf(embeddingIndexErrorFormat, ErrNoEmbeddings, item.Index)}
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

// Embedder embeds texts with one embedding model of a Client.
type Embedder struct {
	Client Client
	Model  string
}

func (e Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return e.Client.CreateEmbeddings(ctx, e.Model, texts)
}
