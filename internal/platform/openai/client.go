package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/avocetlabs/fledge-backend/internal/platform/envutil"
	"github.com/avocetlabs/fledge-backend/internal/platform/logger"
)

// Client is the embeddings surface the engine uses. Text is always embedded
// before it reaches the vector store.
type Client interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

type client struct {
	log        *logger.Logger
	httpClient *http.Client
	baseURL    string
	apiKey     string
	embedModel string
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}

	baseURL := envutil.Str("OPENAI_BASE_URL", "https://api.openai.com")
	embedModel := envutil.Str("OPENAI_EMBED_MODEL", "text-embedding-3-small")
	timeout := time.Duration(envutil.Int("OPENAI_TIMEOUT_SECONDS", 60)) * time.Second

	return &client{
		log:        log.With("service", "OpenAIClient"),
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		embedModel: embedModel,
	}, nil
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (c *client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}

	clean := make([]string, len(inputs))
	for i := range inputs {
		s := strings.TrimSpace(inputs[i])
		if s == "" {
			s = " "
		}
		clean[i] = s
	}

	req := embeddingsRequest{
		Model: c.embedModel,
		Input: clean,
	}

	var resp embeddingsResponse
	if err := c.do(ctx, "POST", "/v1/embeddings", req, &resp); err != nil {
		return nil, err
	}
	out := collectEmbeddings(resp, len(clean))
	if !hasMissingEmbeddings(out) {
		return out, nil
	}

	c.log.Warn("Embeddings response missing indices; retrying once",
		"requested", len(clean),
		"returned", len(resp.Data),
		"model", c.embedModel,
	)
	var resp2 embeddingsResponse
	if err := c.do(ctx, "POST", "/v1/embeddings", req, &resp2); err != nil {
		return nil, err
	}
	out2 := collectEmbeddings(resp2, len(clean))
	if hasMissingEmbeddings(out2) {
		return nil, fmt.Errorf("openai embeddings missing indices after retry: requested=%d returned=%d model=%s",
			len(clean), len(resp2.Data), c.embedModel)
	}
	return out2, nil
}

func collectEmbeddings(resp embeddingsResponse, n int) [][]float32 {
	out := make([][]float32, n)
	for _, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float32(f)
		}
		if d.Index >= 0 && d.Index < n {
			out[d.Index] = vec
		}
	}
	// Some compatible providers omit indices; fall back to positional order.
	if hasMissingEmbeddings(out) && len(resp.Data) == n {
		for i := 0; i < n; i++ {
			if out[i] != nil {
				continue
			}
			d := resp.Data[i]
			vec := make([]float32, len(d.Embedding))
			for j, f := range d.Embedding {
				vec[j] = float32(f)
			}
			out[i] = vec
		}
	}
	return out
}

func hasMissingEmbeddings(v [][]float32) bool {
	for _, e := range v {
		if e == nil {
			return true
		}
	}
	return false
}

func (c *client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("encode openai request: %w", err)
		}
		reader = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build openai request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("openai request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read openai response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("openai http status=%d body=%s", resp.StatusCode, truncate(raw, 512))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode openai response: %w", err)
	}
	return nil
}

func truncate(raw []byte, n int) string {
	if len(raw) <= n {
		return string(raw)
	}
	return string(raw[:n]) + "..."
}
