// Package embedding implements the Embedding Service (C1): it produces
// L2-normalized fixed-dimension embeddings for text, grounded on the
// internal/memory/embeddings.Provider interface contract.
package embedding

import "context"

// Provider is the Embedding Service contract (spec §4.1): embed, isReady,
// init, each surfaced as idiomatic Go methods.
type Provider interface {
	// Init loads the embedding model. Fatal (KindInit) on failure.
	Init(ctx context.Context) error
	// IsReady reports whether Init has completed successfully.
	IsReady() bool
	// Embed returns an L2-normalized vector of length Dimension() for text.
	// A call before Init succeeds, or any internal encode failure, returns
	// an error the caller treats as EncodeError: skip indexing, do not
	// abort the batch.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch embeds multiple texts, respecting MaxBatchSize.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Name identifies the provider for logging.
	Name() string
	// Dimension returns D, fixed for the process lifetime.
	Dimension() int
	// MaxBatchSize returns the largest batch EmbedBatch will process at once.
	MaxBatchSize() int
}
