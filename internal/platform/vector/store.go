package vector

import "context"

// Store is the nearest-neighbor search surface the engine depends on. The
// engine always embeds text before calling it; raw strings never reach a
// provider.
type Store interface {
	Upsert(ctx context.Context, namespace string, vectors []Vector) error
	// QueryMatches returns IDs with their similarity scores (higher is better).
	QueryMatches(ctx context.Context, namespace string, q []float32, topK int, filter map[string]any) ([]Match, error)
	QueryIDs(ctx context.Context, namespace string, q []float32, topK int, filter map[string]any) ([]string, error)
	DeleteIDs(ctx context.Context, namespace string, ids []string) error
}

type Vector struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

type Match struct {
	ID    string
	Score float64
}
