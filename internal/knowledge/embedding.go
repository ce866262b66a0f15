package knowledge

import (
	"context"
	"math"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder turns text into a fixed-length vector. The remote implementation
// calls an embedding API; the local one is a deterministic hash-bucket
// placeholder kept behind the same interface so a real model can be swapped
// in without touching the index.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

const localDim = 128

// NewLocalEmbedder returns the token-frequency hashing fallback embedder.
func NewLocalEmbedder() Embedder { return localEmbedder{} }

type localEmbedder struct{}

// Embed buckets each distinct lower-cased token of length > 2 by the sum of
// its character codes mod the vector length, weighted by relative
// frequency, then L2-normalizes. A zero-magnitude vector is returned as-is.
func (localEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	freq := map[string]int{}
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tok = strings.Trim(tok, ".,!?;:\"'()")
		if len(tok) > 2 {
			freq[tok]++
		}
	}

	vec := make([]float64, localDim)
	for tok, n := range freq {
		h := 0
		for i := 0; i < len(tok); i++ {
			h += int(tok[i])
		}
		vec[h%localDim] += float64(n) / float64(len(freq))
	}

	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec, nil
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec, nil
}

// NewRemoteEmbedder returns an embedder backed by the OpenAI embeddings API
// via langchaingo.
func NewRemoteEmbedder(apiKey, model string) (Embedder, error) {
	llm, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, err
	}
	emb, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, err
	}
	return remoteEmbedder{emb: emb}, nil
}

type remoteEmbedder struct {
	emb embeddings.Embedder
}

func (r remoteEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	vec32, err := r.emb.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	vec := make([]float64, len(vec32))
	for i, v := range vec32 {
		vec[i] = float64(v)
	}
	return vec, nil
}

// Cosine is the similarity used for retrieval. Mismatched-length or
// zero-magnitude vectors score 0.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	dot, da, db := 0.0, 0.0, 0.0
	for i := range a {
		dot += a[i] * b[i]
		da += a[i] * a[i]
		db += b[i] * b[i]
	}
	if da == 0 || db == 0 {
		return 0
	}
	return dot / (math.Sqrt(da) * math.Sqrt(db))
}
