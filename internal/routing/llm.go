// ABOUTME: Model-backed routing policy over an OpenAI/LiteLLM-compatible chat completions API.
// ABOUTME: Prompts with the candidate list and expects a bare agent name or "none" back.

package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	defaultLLMTimeout = 30 * time.Second
	llmTemperature    = 0.1
	llmMaxTokens      = 50
)

// LLMParams configures an LLM policy.
type LLMParams struct {
	BaseURL    string
	APIKey     string
	Model      string
	Guidelines []string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// LLM asks a chat model which agent should handle the request.
type LLM struct {
	baseURL    string
	apiKey     string
	model      string
	guidelines []string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewLLM creates an LLM policy.
func NewLLM(params LLMParams) *LLM {
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultLLMTimeout
	}
	httpClient := params.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &LLM{
		baseURL:    strings.TrimSuffix(params.BaseURL, "/"),
		apiKey:     params.APIKey,
		model:      params.Model,
		guidelines: params.Guidelines,
		httpClient: httpClient,
		logger:     logger.With("component", "routing.llm"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// SystemPrompt renders the routing instructions for the given candidates.
func SystemPrompt(agents []Candidate, guidelines []string) string {
	var b strings.Builder
	b.WriteString("You are a supervisor agent that routes requests to specialized agents.\n\n")
	b.WriteString("Available agents:\n")
	for _, a := range agents {
		fmt.Fprintf(&b, "- %s: %s\n", a.Name, a.Description)
	}
	b.WriteString("\nAnalyze the user's request and respond with ONLY the agent name that should handle it.\n")
	b.WriteString("Do not include any explanation, just the agent name.\n")
	if len(guidelines) > 0 {
		b.WriteString("\nGuidelines:\n")
		for _, g := range guidelines {
			fmt.Fprintf(&b, "- %s\n", g)
		}
	}
	fmt.Fprintf(&b, "\nIf no agent is suitable, respond with '%s'.", None)
	return b.String()
}

// Select implements Policy. The model's answer is trimmed and lowercased.
func (l *LLM) Select(ctx context.Context, req *Request) (string, error) {
	messages := []chatMessage{{Role: "system", Content: SystemPrompt(req.Agents, l.guidelines)}}
	for _, h := range req.History {
		role := h.Role
		if role != "user" && role != "assistant" {
			continue
		}
		messages = append(messages, chatMessage{Role: role, Content: h.Content})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Text})

	body, err := json.Marshal(chatRequest{
		Model:       l.model,
		Messages:    messages,
		Temperature: llmTemperature,
		MaxTokens:   llmMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if l.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+l.apiKey)
	}

	resp, err := l.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("calling model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("model returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding completion: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("model error: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}

	selected := strings.ToLower(strings.TrimSpace(out.Choices[0].Message.Content))
	l.logger.Debug("model selected agent", "selected", selected, "candidates", len(req.Agents))
	return selected, nil
}
