package observability

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
)

type fakeEmbedClient struct {
	out [][]float32
	err error
}

func (f *fakeEmbedClient) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

func testMetrics(t *testing.T) *Metrics {
	t.Helper()
	t.Setenv("METRICS_ENABLED", "true")
	m := Init(nil)
	if m == nil {
		t.Fatalf("metrics should be enabled")
	}
	return m
}

func exposition(t *testing.T, m *Metrics) string {
	t.Helper()
	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	return buf.String()
}

func TestInstrumentedEmbedderRecordsOutcomes(t *testing.T) {
	m := testMetrics(t)

	inner := &fakeEmbedClient{out: [][]float32{{0.1, 0.2}}}
	embedder := NewInstrumentedEmbedder(inner, m, "embed-test")

	out, err := embedder.Embed(context.Background(), []string{"song of the wren"})
	if err != nil || len(out) != 1 {
		t.Fatalf("Embed=%v err=%v", out, err)
	}

	inner.err = fmt.Errorf("upstream unavailable")
	if _, err := embedder.Embed(context.Background(), []string{"x"}); err == nil {
		t.Fatalf("expected inner error to propagate")
	}

	text := exposition(t, m)
	if !strings.Contains(text, `fl_embedding_requests_total{model="embed-test",status="ok"} 1`) {
		t.Fatalf("missing ok series:\n%s", text)
	}
	if !strings.Contains(text, `fl_embedding_requests_total{model="embed-test",status="error"} 1`) {
		t.Fatalf("missing error series:\n%s", text)
	}
	if !strings.Contains(text, `fl_embedding_request_duration_seconds_count{model="embed-test",status="ok"} 1`) {
		t.Fatalf("missing latency series:\n%s", text)
	}
}

func TestInstrumentedEmbedderNilMetricsPassthrough(t *testing.T) {
	inner := &fakeEmbedClient{}
	if got := NewInstrumentedEmbedder(inner, nil, "embed-test"); got != inner {
		t.Fatalf("nil metrics must return the inner client unchanged")
	}
}

func TestRecommendationSeriesExposition(t *testing.T) {
	m := testMetrics(t)

	m.AddStrategyCandidates("weakness", 2)
	m.AddStrategyCandidates("", 1)
	m.AddStrategyCandidates("challenge", 0)
	m.ObserveRecommendation(25 * time.Millisecond)
	m.SetDueReviews("user-a", 3)

	text := exposition(t, m)
	if !strings.Contains(text, `fl_recommendation_candidates_total{strategy="weakness"} 2`) {
		t.Fatalf("missing weakness yield:\n%s", text)
	}
	if !strings.Contains(text, `fl_recommendation_candidates_total{strategy="unknown"} 1`) {
		t.Fatalf("blank strategy should land on unknown:\n%s", text)
	}
	if strings.Contains(text, `strategy="challenge"`) {
		t.Fatalf("zero-candidate strategies must not emit a series:\n%s", text)
	}
	if !strings.Contains(text, "fl_recommendation_duration_seconds_count 1") {
		t.Fatalf("missing recommendation latency:\n%s", text)
	}
	if !strings.Contains(text, `fl_due_reviews{user="user-a"} 3`) {
		t.Fatalf("missing due-review gauge:\n%s", text)
	}
}
