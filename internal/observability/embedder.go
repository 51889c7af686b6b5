package observability

import (
	"context"
	"time"

	"github.com/avocetlabs/fledge-backend/internal/platform/openai"
)

// InstrumentedEmbedder wraps an openai.Client and records request counts and
// latency per model. A nil Metrics returns the inner client unchanged.
type InstrumentedEmbedder struct {
	inner   openai.Client
	metrics *Metrics
	model   string
}

func NewInstrumentedEmbedder(inner openai.Client, metrics *Metrics, model string) openai.Client {
	if metrics == nil {
		return inner
	}
	return &InstrumentedEmbedder{inner: inner, metrics: metrics, model: model}
}

func (e *InstrumentedEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	start := time.Now()
	out, err := e.inner.Embed(ctx, inputs)
	e.metrics.ObserveEmbedding(e.model, statusOf(err), time.Since(start))
	return out, err
}
