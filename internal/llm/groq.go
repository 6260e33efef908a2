package llm

import (
	"context"
	"encoding/json"
	"strings"
)

const (
	GroqName         = "groq"
	defaultGroqURL   = "https://api.groq.com/openai/v1"
	defaultGroqModel = "llama-3.3-70b-versatile"
)

// GroqClient calls an OpenAI-compatible chat completions endpoint in JSON mode.
type GroqClient struct {
	baseClient
	baseURL string
	model   string
}

func NewGroq(cfg Config) *GroqClient {
	c := &GroqClient{
		baseClient: newBaseClient(GroqName, cfg),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
	}
	if c.baseURL == "" {
		c.baseURL = defaultGroqURL
	}
	if c.model == "" {
		c.model = defaultGroqModel
	}
	return c
}

func (c *GroqClient) Name() string { return GroqName }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	ResponseFormat map[string]string `json:"response_format"`
	Temperature    float64           `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *GroqClient) Analyze(ctx context.Context, req Request) (any, error) {
	key, err := c.key(req)
	if err != nil {
		return nil, err
	}

	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: Prompt(req.Mode)},
			{Role: "user", Content: req.Input},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
		Temperature:    0.1,
	}
	status, data, err := c.post(ctx, c.baseURL+"/chat/completions", map[string]string{"Authorization": "Bearer " + key}, body)
	if err != nil {
		return nil, err
	}

	var out chatResponse
	decodeErr := json.Unmarshal(data, &out)

	if status >= 400 {
		msg := ""
		if decodeErr == nil && out.Error != nil {
			msg = out.Error.Message
		}
		return nil, classify(GroqName, status, msg)
	}
	if decodeErr != nil {
		return nil, &ProviderError{Provider: GroqName, Kind: KindMalformed, Status: status, Message: "undecodable envelope", Err: decodeErr}
	}
	if len(out.Choices) == 0 {
		return nil, &ProviderError{Provider: GroqName, Kind: KindMalformed, Status: status, Message: "empty reply"}
	}
	return decodeReply(GroqName, out.Choices[0].Message.Content)
}
