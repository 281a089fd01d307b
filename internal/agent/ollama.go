package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultOllamaURL is the local Ollama endpoint.
const DefaultOllamaURL = "http://localhost:11434"

// DefaultOllamaModel is the chat model used when none is configured.
const DefaultOllamaModel = "llama3.2:3b"

const ollamaTimeout = 30 * time.Second

// GenerateRequest is one single-turn chat call.
type GenerateRequest struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// OllamaConfig configures the Ollama chat endpoint and HTTP behavior.
type OllamaConfig struct {
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// OllamaClient calls an Ollama server's chat endpoint.
type OllamaClient struct {
	cfg OllamaConfig
}

// NewOllamaClient builds a client, filling unset fields with local
// defaults.
func NewOllamaClient(cfg OllamaConfig) *OllamaClient {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultOllamaURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: ollamaTimeout}
	}
	return &OllamaClient{cfg: cfg}
}

// Model returns the configured model name. It doubles as the model
// version tag on actions the model drove.
func (c *OllamaClient) Model() string { return c.cfg.Model }

// Generate sends one chat turn and returns the reply text.
func (c *OllamaClient) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return "", fmt.Errorf("prompt is required")
	}

	messages := make([]map[string]string, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, map[string]string{"role": "system", "content": req.System})
	}
	messages = append(messages, map[string]string{"role": "user", "content": prompt})

	body, err := json.Marshal(map[string]any{
		"model":    c.cfg.Model,
		"messages": messages,
		"stream":   false,
		"options": map[string]any{
			"temperature": req.Temperature,
			"num_predict": req.MaxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		errBody, err := io.ReadAll(io.LimitReader(res.Body, 4096))
		if err != nil {
			return "", fmt.Errorf("read chat error body: %w", err)
		}
		return "", fmt.Errorf("chat request status %d: %s", res.StatusCode, strings.TrimSpace(string(errBody)))
	}

	var payload struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	reply := strings.TrimSpace(payload.Message.Content)
	if reply == "" {
		return "", fmt.Errorf("chat response missing message content")
	}
	return reply, nil
}
