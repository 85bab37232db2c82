package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"trendscope/internal/config"
)

// ErrNoAnalyzer is returned when every provider in the chain has failed
// or none is configured.
var ErrNoAnalyzer = errors.New("no analysis provider available")

// Analyzer generates analysis text from a prompt.
type Analyzer interface {
	Name() string
	Available() bool
	Analyze(ctx context.Context, prompt string) (string, error)
}

// OpenAICompatProvider calls any OpenAI-style chat-completions endpoint
// (OpenAI, Azure OpenAI, Gemini's compat layer, local gateways).
type OpenAICompatProvider struct {
	cfg    config.LLMProviderConfig
	client *http.Client
}

// NewOpenAICompatProvider creates a provider from its config.
func NewOpenAICompatProvider(cfg config.LLMProviderConfig) *OpenAICompatProvider {
	return &OpenAICompatProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

func (p *OpenAICompatProvider) Name() string    { return p.cfg.Name }
func (p *OpenAICompatProvider) Available() bool { return p.cfg.Configured() }

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *OpenAICompatProvider) Analyze(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(chatCompletionRequest{
		Model: p.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a market research analyst. Be specific and evidence-driven."},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.4,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	url := strings.TrimRight(p.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("provider %s unreachable: %w", p.cfg.Name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return "", fmt.Errorf("failed to read provider response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("provider %s returned HTTP %d", p.cfg.Name, resp.StatusCode)
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode provider response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("provider %s error: %s", p.cfg.Name, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("provider %s returned empty completion", p.cfg.Name)
	}
	return parsed.Choices[0].Message.Content, nil
}

// AnalyzerChain tries providers in order until one succeeds.
type AnalyzerChain struct {
	providers []Analyzer
}

// NewAnalyzerChain creates a chain over the available providers.
// Unavailable providers are dropped at construction.
func NewAnalyzerChain(providers ...Analyzer) *AnalyzerChain {
	chain := &AnalyzerChain{}
	for _, p := range providers {
		if p.Available() {
			chain.providers = append(chain.providers, p)
		}
	}
	return chain
}

// Generate returns the first successful completion along with the name of
// the provider that produced it. ErrNoAnalyzer when the chain exhausts.
func (c *AnalyzerChain) Generate(ctx context.Context, prompt string) (string, string, error) {
	if len(c.providers) == 0 {
		return "", "", ErrNoAnalyzer
	}

	var lastErr error
	for _, p := range c.providers {
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}
		text, err := p.Analyze(ctx, prompt)
		if err == nil {
			return text, p.Name(), nil
		}
		lastErr = err
		log.Printf("⚠️ [ANALYSIS] provider %s failed: %v", p.Name(), err)
	}
	return "", "", fmt.Errorf("%w: %v", ErrNoAnalyzer, lastErr)
}

// Providers returns the names of available providers, in order.
func (c *AnalyzerChain) Providers() []string {
	names := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		names = append(names, p.Name())
	}
	return names
}
