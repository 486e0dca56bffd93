package advisor

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

const (
	stageSystemPrompt = "You are a scoring engine for a consulting curriculum. " +
		"Given questionnaire answers and boundary rules, return JSON: " +
		`{"stage": "StartUp|Grow|Scale|Endurance|Evolution", "score": number, "rationale": string, "confidence": number between 0 and 1}.`

	summarySystemPrompt = "You are an expert consultant. Create a concise stage summary " +
		"and 3-7 actionable recommendations. Return JSON: " +
		`{"summary": string, "recommendations": [string]}.`
)

// OpenAIClient implements Client against an OpenAI-compatible chat API.
type OpenAIClient struct {
	api   *openai.Client
	model string
}

// NewOpenAIClient builds an advisor client. baseURL may be empty for the
// default API endpoint; modelName must be set.
func NewOpenAIClient(baseURL, apiKey, modelName string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		api:   openai.NewClientWithConfig(cfg),
		model: modelName,
	}
}

// DetermineStage asks the model for an independent stage proposal.
func (c *OpenAIClient) DetermineStage(ctx context.Context, req StageRequest) (StageResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return StageResult{}, fmt.Errorf("encode stage request: %w", err)
	}

	raw, err := c.chatJSON(ctx, stageSystemPrompt, string(payload), 0.1)
	if err != nil {
		return StageResult{}, err
	}

	var result StageResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return StageResult{}, fmt.Errorf("parse stage response: %w (raw: %s)", err, raw)
	}
	if result.Stage == "" {
		result.Stage = NeutralStage
	}
	return result, nil
}

// GenerateSummary asks the model for a client-facing narrative of the outcome.
func (c *OpenAIClient) GenerateSummary(ctx context.Context, stage string, score float64, answers map[string]string) (SummaryResult, error) {
	payload, err := json.Marshal(map[string]any{
		"stage":   stage,
		"score":   score,
		"answers": answers,
	})
	if err != nil {
		return SummaryResult{}, fmt.Errorf("encode summary request: %w", err)
	}

	raw, err := c.chatJSON(ctx, summarySystemPrompt, string(payload), 0.3)
	if err != nil {
		return SummaryResult{}, err
	}

	var result SummaryResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return SummaryResult{}, fmt.Errorf("parse summary response: %w (raw: %s)", err, raw)
	}
	return result, nil
}

func (c *OpenAIClient) chatJSON(ctx context.Context, system, user string, temperature float32) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("advisor API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("advisor returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
