package advisor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Provider represents the LLM provider type
type Provider string

const (
	ProviderClaude   Provider = "claude"
	ProviderOpenAI   Provider = "openai"
	ProviderDeepSeek Provider = "deepseek"
)

// ClientConfig holds LLM client configuration
type ClientConfig struct {
	Provider    Provider      `json:"provider"`
	APIKey      string        `json:"api_key"`
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Timeout     time.Duration `json:"timeout"`
}

// DefaultClientConfig returns default configuration
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Provider:    ProviderDeepSeek,
		Model:       "deepseek-chat",
		MaxTokens:   1024,
		Temperature: 0.3,
		Timeout:     30 * time.Second,
	}
}

// LLMClient is the abstract advisory-model client; the pipeline never sees
// anything richer than "prompt in, text or error out".
type LLMClient interface {
	Complete(systemPrompt, userPrompt string) (string, error)
}

// Client is the HTTP LLM API client
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
}

var _ LLMClient = (*Client)(nil)

// NewClient creates a new LLM client
func NewClient(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultClientConfig()
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Message represents a chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// claudeRequest represents a Claude API request
type claudeRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature,omitempty"`
	Messages    []Message `json:"messages"`
	System      string    `json:"system,omitempty"`
}

// claudeResponse represents a Claude API response
type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// chatRequest is the OpenAI-compatible request shape shared by OpenAI and
// DeepSeek.
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete sends a completion request to the configured provider
func (c *Client) Complete(systemPrompt, userPrompt string) (string, error) {
	switch c.config.Provider {
	case ProviderClaude:
		return c.completeClaude(systemPrompt, userPrompt)
	case ProviderOpenAI:
		return c.completeChat("https://api.openai.com/v1/chat/completions", systemPrompt, userPrompt)
	case ProviderDeepSeek:
		return c.completeChat("https://api.deepseek.com/v1/chat/completions", systemPrompt, userPrompt)
	default:
		return "", fmt.Errorf("unsupported provider: %s", c.config.Provider)
	}
}

func (c *Client) completeClaude(systemPrompt, userPrompt string) (string, error) {
	req := claudeRequest{
		Model:       c.config.Model,
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
		System:      systemPrompt,
		Messages:    []Message{{Role: "user", Content: userPrompt}},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequest("POST", "https://api.anthropic.com/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.config.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	respBody, err := c.send(httpReq)
	if err != nil {
		return "", err
	}

	var resp claudeResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("API error: %s - %s", resp.Error.Type, resp.Error.Message)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("empty response from Claude")
	}
	return resp.Content[0].Text, nil
}

func (c *Client) completeChat(endpoint, systemPrompt, userPrompt string) (string, error) {
	req := chatRequest{
		Model: c.config.Model,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequest("POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	respBody, err := c.send(httpReq)
	if err != nil {
		return "", err
	}

	var resp chatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("API error: %s - %s", resp.Error.Type, resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from provider")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) send(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return respBody, nil
}

// IsConfigured checks if the client has an API key
func (c *Client) IsConfigured() bool {
	return c.config.APIKey != ""
}
