package knowledge

import "context"

// Embedder converts text into dense vector embeddings. The vector store
// adapter embeds documents on Upsert and queries on Query through this port,
// keeping the choice of embedding model out of the storage layer.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator runs one RAG-style completion turn given a prompt and the
// documents retrieved for it, returning the model's reply text.
type Generator interface {
	Generate(ctx context.Context, prompt string, retrieved []ScoredDocument) (string, error)
}
