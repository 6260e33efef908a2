package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

const (
	GeminiName         = "gemini"
	defaultGeminiURL   = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel = "gemini-2.0-flash"
)

// GeminiClient calls the Generative Language generateContent endpoint with a JSON
// response schema.
type GeminiClient struct {
	baseClient
	baseURL string
	model   string
}

func NewGemini(cfg Config) *GeminiClient {
	c := &GeminiClient{
		baseClient: newBaseClient(GeminiName, cfg),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
	}
	if c.baseURL == "" {
		c.baseURL = defaultGeminiURL
	}
	if c.model == "" {
		c.model = defaultGeminiModel
	}
	return c
}

func (c *GeminiClient) Name() string { return GeminiName }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction geminiContent    `json:"systemInstruction"`
	Contents          []geminiContent  `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	ResponseMimeType string         `json:"responseMimeType"`
	ResponseSchema   map[string]any `json:"responseSchema"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

var categoryEnum = []string{"UI/UX", "Backend", "Datos", "Seguridad", "Rendimiento"}

func responseSchema(mode Mode) map[string]any {
	summary := "Resumen técnico ejecutivo"
	if mode == ModeTasks {
		summary = "Resumen del plan de tareas"
	}
	return map[string]any{
		"type": "OBJECT",
		"properties": map[string]any{
			"summary": map[string]any{"type": "STRING", "description": summary},
			"issues": map[string]any{
				"type": "ARRAY",
				"items": map[string]any{
					"type": "OBJECT",
					"properties": map[string]any{
						"id":       map[string]any{"type": "INTEGER"},
						"title":    map[string]any{"type": "STRING"},
						"desc":     map[string]any{"type": "STRING"},
						"category": map[string]any{"type": "STRING", "enum": categoryEnum},
						"severity": map[string]any{"type": "STRING", "enum": []string{"Alta", "Media", "Baja"}},
						"fix":      map[string]any{"type": "STRING"},
					},
					"required": []string{"id", "title", "desc", "category", "severity", "fix"},
				},
			},
		},
		"required": []string{"summary", "issues"},
	}
}

func (c *GeminiClient) Analyze(ctx context.Context, req Request) (any, error) {
	key, err := c.key(req)
	if err != nil {
		return nil, err
	}

	body := geminiRequest{
		SystemInstruction: geminiContent{Parts: []geminiPart{{Text: Prompt(req.Mode)}}},
		Contents:          []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.Input}}}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   responseSchema(req.Mode),
		},
	}
	endpoint := c.baseURL + "/models/" + url.PathEscape(c.model) + ":generateContent"
	status, data, err := c.post(ctx, endpoint, map[string]string{"x-goog-api-key": key}, body)
	if err != nil {
		return nil, err
	}

	var out geminiResponse
	decodeErr := json.Unmarshal(data, &out)

	if status >= 400 {
		msg := ""
		if decodeErr == nil && out.Error != nil {
			msg = out.Error.Message
			if out.Error.Status == "RESOURCE_EXHAUSTED" {
				status = http.StatusTooManyRequests
			}
		}
		perr := classify(GeminiName, status, msg)
		// Gemini reports bad keys as 400 INVALID_ARGUMENT.
		if perr.Kind == KindUpstream && strings.Contains(msg, "API key") {
			perr.Kind = KindInvalidKey
			perr.Message = "API key is invalid or expired"
		}
		return nil, perr
	}
	if decodeErr != nil {
		return nil, &ProviderError{Provider: GeminiName, Kind: KindMalformed, Status: status, Message: "undecodable envelope", Err: decodeErr}
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return nil, &ProviderError{Provider: GeminiName, Kind: KindMalformed, Status: status, Message: "empty reply"}
	}

	var text strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	return decodeReply(GeminiName, text.String())
}
