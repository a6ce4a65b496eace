package llm

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"time"
	"unicode"

	openai "github.com/sashabaranov/go-openai"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// NewEmbedder builds the configured embedder.
func NewEmbedder(cfg EmbeddingConfig) (Embedder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Provider == "openai" {
		e := NewOpenAIEmbedder(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.Dimensions)
		e.timeout = cfg.Timeout
		return e, nil
	}
	return NewHashEmbedder(cfg.Dimensions), nil
}

// OpenAIEmbedder calls the embeddings endpoint. A non-zero timeout bounds
// each call.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
	timeout    time.Duration
}

func NewOpenAIEmbedder(apiKey, model, baseURL string, dimensions int) *OpenAIEmbedder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIEmbedder{client: openai.NewClientWithConfig(cfg), model: model, dimensions: dimensions}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: e.dimensions,
	})
	if err != nil {
		return nil, classifyOpenAIError(ctx, err)
	}
	if len(resp.Data) == 0 {
		return nil, &ErrInvalidResponse{Err: errors.New("no embedding in response")}
	}
	return resp.Data[0].Embedding, nil
}

// HashEmbedder is a deterministic bag-of-words embedder. Each lowercased
// token is hashed into a bucket and the vector is L2-normalized, so texts
// sharing words have positive cosine similarity. It needs no network and is
// the default for local runs and tests.
type HashEmbedder struct {
	dims int
}

func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = 256
	}
	return &HashEmbedder{dims: dims}
}

func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dims)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, tok := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum32()
		sign := float32(1)
		if sum&1 == 1 {
			sign = -1
		}
		vec[int(sum>>1)%e.dims] += sign
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}
