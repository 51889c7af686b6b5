package observability

import (
	"context"
	"time"

	"github.com/avocetlabs/fledge-backend/internal/platform/vector"
)

// InstrumentedVectorStore wraps a vector.Store and records per-operation
// counters and latency. A nil Metrics makes every hook a no-op, so callers
// can wrap unconditionally.
type InstrumentedVectorStore struct {
	inner   vector.Store
	metrics *Metrics
}

func NewInstrumentedVectorStore(inner vector.Store, metrics *Metrics) vector.Store {
	if metrics == nil {
		return inner
	}
	return &InstrumentedVectorStore{inner: inner, metrics: metrics}
}

func (s *InstrumentedVectorStore) Upsert(ctx context.Context, namespace string, vectors []vector.Vector) error {
	start := time.Now()
	err := s.inner.Upsert(ctx, namespace, vectors)
	s.metrics.ObserveVectorOp("upsert", namespace, statusOf(err), time.Since(start))
	return err
}

func (s *InstrumentedVectorStore) QueryMatches(ctx context.Context, namespace string, values []float32, topK int, filter map[string]any) ([]vector.Match, error) {
	start := time.Now()
	out, err := s.inner.QueryMatches(ctx, namespace, values, topK, filter)
	s.metrics.ObserveVectorOp("query_matches", namespace, statusOf(err), time.Since(start))
	return out, err
}

func (s *InstrumentedVectorStore) QueryIDs(ctx context.Context, namespace string, values []float32, topK int, filter map[string]any) ([]string, error) {
	start := time.Now()
	out, err := s.inner.QueryIDs(ctx, namespace, values, topK, filter)
	s.metrics.ObserveVectorOp("query_ids", namespace, statusOf(err), time.Since(start))
	return out, err
}

func (s *InstrumentedVectorStore) DeleteIDs(ctx context.Context, namespace string, ids []string) error {
	start := time.Now()
	err := s.inner.DeleteIDs(ctx, namespace, ids)
	s.metrics.ObserveVectorOp("delete_ids", namespace, statusOf(err), time.Since(start))
	return err
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
