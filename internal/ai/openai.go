package ai

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIBackend talks to any OpenAI-compatible chat completions API.
type OpenAIBackend struct {
	client *openai.Client
	Model  string
}

func NewOpenAIBackend(baseURL, model, apiKey string, timeout time.Duration) *OpenAIBackend {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cfg := openai.DefaultConfig(apiKey)
	if strings.TrimSpace(baseURL) != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &OpenAIBackend{client: openai.NewClientWithConfig(cfg), Model: model}
}

func (o *OpenAIBackend) Name() string {
	return "openai:" + o.Model
}

func (o *OpenAIBackend) Generate(ctx context.Context, prompt string, params GenerationParams) Outcome {
	temperature := float32(params.Temperature)
	if temperature <= 0 {
		// a zero temperature is dropped by omitempty and the server would fall back to 1
		temperature = math.SmallestNonzeroFloat32
	}
	req := openai.ChatCompletionRequest{
		Model:       o.Model,
		MaxTokens:   params.MaxNewTokens,
		Temperature: temperature,
		TopP:        float32(params.TopP),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return RetryNext(ReasonMalformed, http.StatusOK, "empty completion")
	}
	return Success(resp.Choices[0].Message.Content)
}

func classifyOpenAIError(err error) Outcome {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, apiErr.Message, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		msg := ""
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return classifyStatus(reqErr.HTTPStatusCode, msg, msg)
	}
	return transportFailure(err)
}
