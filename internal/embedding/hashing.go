package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync/atomic"
)

// HashingProvider is a deterministic, dependency-free stand-in for a local
// MiniLM-family sentence embedder. No ONNX/ggml runtime appears anywhere in
// the retrieved example corpus, so there is no grounded third-party library
// to bind here (see DESIGN.md); this implementation satisfies the two
// invariants consumers actually depend on — same input produces the same
// output within a process lifetime, and every output vector is L2-normalized
// — by hashing word n-grams of one to three words into a fixed-width
// bag-of-features vector.
type HashingProvider struct {
	dim   int
	ready atomic.Bool
}

// NewHashingProvider builds a provider that emits dim-dimensional vectors.
// dim defaults to 384 (spec's target MiniLM dimension) when <= 0.
func NewHashingProvider(dim int) *HashingProvider {
	if dim <= 0 {
		dim = 384
	}
	return &HashingProvider{dim: dim}
}

func (p *HashingProvider) Name() string      { return "hashing-embedder" }
func (p *HashingProvider) Dimension() int    { return p.dim }
func (p *HashingProvider) MaxBatchSize() int { return 64 }
func (p *HashingProvider) IsReady() bool     { return p.ready.Load() }

// Init has nothing to load; it exists so callers follow the same
// init-then-use lifecycle a real model-backed provider requires.
func (p *HashingProvider) Init(ctx context.Context) error {
	p.ready.Store(true)
	return nil
}

// Embed hashes the one-, two- and three-word n-grams of text into buckets of
// a dim-length vector, then L2-normalizes the result.
func (p *HashingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if !p.ready.Load() {
		return nil, fmt.Errorf("embedding: provider not initialized")
	}
	vec := make([]float32, p.dim)
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return vec, nil
	}

	for i := 0; i < len(words); i++ {
		grams := []string{words[i]}
		if i+1 < len(words) {
			grams = append(grams, words[i]+" "+words[i+1])
		}
		if i+2 < len(words) {
			grams = append(grams, words[i]+" "+words[i+1]+" "+words[i+2])
		}
		for _, g := range grams {
			h := fnv.New32a()
			_, _ = h.Write([]byte(g))
			bucket := int(h.Sum32()) % p.dim
			if bucket < 0 {
				bucket += p.dim
			}
			// Sign from a second hash avoids every feature landing
			// positive, which would bias all vectors toward each other.
			sh := fnv.New32a()
			_, _ = sh.Write([]byte("sign:" + g))
			sign := float32(1)
			if sh.Sum32()%2 == 0 {
				sign = -1
			}
			vec[bucket] += sign
		}
	}

	normalize(vec)
	return vec, nil
}

// EmbedBatch embeds each text independently; MaxBatchSize is advisory since
// this provider has no real batching benefit, but callers that chunk into
// batches of that size are still honored correctly.
func (p *HashingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := p.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// normalize scales vec in place to unit L2 norm. The zero vector is left
// untouched (no direction to normalize to).
func normalize(vec []float32) {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range vec {
		vec[i] /= norm
	}
}
