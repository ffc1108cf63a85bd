package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/mu-kernel/mukernel/pkg/kernel"
)

// httpProvider talks to an Ollama-style (`{"prompt": ...}` -> `{"embedding": [...]}`)
// or OpenAI-style (`{"input": ...}` -> `{"data": [{"embedding": [...]}]}`)
// embedding endpoint over HTTP, matching the wire shapes the teacher's
// OllamaEmbedder and OpenAIEmbedder speak.
type httpProvider struct {
	cfg    Config
	client *http.Client
}

func newHTTPProvider(cfg Config) *httpProvider {
	return &httpProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *httpProvider) Dimensions() int { return p.cfg.Dimensions }
func (p *httpProvider) Model() string   { return p.cfg.Model }

func (p *httpProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if p.cfg.Kind == "openai" {
		return p.embedOpenAI(ctx, text)
	}
	return p.embedOllama(ctx, text)
}

func (p *httpProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := p.Embed(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (p *httpProvider) embedOllama(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaRequest{Model: p.cfg.Model, Prompt: text})
	if err != nil {
		return nil, err
	}
	resp, err := p.post(ctx, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode ollama embedding response: %w", err)
	}
	return decoded.Embedding, nil
}

type openAIRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type openAIResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (p *httpProvider) embedOpenAI(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(openAIRequest{Model: p.cfg.Model, Input: text})
	if err != nil {
		return nil, err
	}
	resp, err := p.post(ctx, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode openai embedding response: %w", err)
	}
	if len(decoded.Data) == 0 {
		return nil, fmt.Errorf("openai embedding response had no data: %w", kernel.ErrUpstream)
	}
	return decoded.Data[0].Embedding, nil
}

func (p *httpProvider) post(ctx context.Context, body []byte) (*http.Response, error) {
	url := p.cfg.APIURL + p.cfg.APIPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request to %s: %w", url, kernel.ErrUpstream)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding provider returned %d: %s: %w", resp.StatusCode, msg, kernel.ErrUpstream)
	}
	return resp, nil
}
