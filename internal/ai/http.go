package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const maxResponseBytes = 1 << 20

// InferenceBackend calls a hosted text-generation endpoint that accepts
// {"inputs": ..., "parameters": ...} and answers with [{"generated_text": ...}].
type InferenceBackend struct {
	URL    string
	Token  string
	Client *http.Client
}

type inferenceRequest struct {
	Inputs     string              `json:"inputs"`
	Parameters inferenceParameters `json:"parameters"`
}

type inferenceParameters struct {
	MaxNewTokens   int      `json:"max_new_tokens"`
	Temperature    *float64 `json:"temperature,omitempty"`
	TopP           *float64 `json:"top_p,omitempty"`
	DoSample       bool     `json:"do_sample"`
	ReturnFullText bool     `json:"return_full_text"`
}

type generatedItem struct {
	GeneratedText string `json:"generated_text"`
}

type inferenceError struct {
	Error         string  `json:"error"`
	EstimatedTime float64 `json:"estimated_time"`
}

func NewInferenceBackend(url, token string, timeout time.Duration) *InferenceBackend {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &InferenceBackend{
		URL:    url,
		Token:  token,
		Client: &http.Client{Timeout: timeout},
	}
}

// Name is the last path segment of the endpoint, usually the model name.
func (h *InferenceBackend) Name() string {
	u := strings.TrimRight(h.URL, "/")
	if i := strings.LastIndex(u, "/"); i >= 0 && i < len(u)-1 {
		return u[i+1:]
	}
	return u
}

func (h *InferenceBackend) Generate(ctx context.Context, prompt string, params GenerationParams) Outcome {
	client := h.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	b, err := json.Marshal(inferenceRequest{Inputs: prompt, Parameters: toInferenceParameters(params)})
	if err != nil {
		return RetryNext(ReasonTransport, 0, err.Error())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(b))
	if err != nil {
		return RetryNext(ReasonTransport, 0, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(h.Token) != "" {
		req.Header.Set("Authorization", "Bearer "+h.Token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return classifyResponse(0, nil, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return classifyResponse(0, nil, err)
	}
	return classifyResponse(resp.StatusCode, body, nil)
}

// toInferenceParameters selects greedy decoding when temperature is not positive.
// top_p is only sent inside (0, 1).
func toInferenceParameters(p GenerationParams) inferenceParameters {
	out := inferenceParameters{MaxNewTokens: p.MaxNewTokens, ReturnFullText: p.ReturnFullText}
	if p.Temperature <= 0 {
		return out
	}
	temperature := p.Temperature
	out.Temperature = &temperature
	out.DoSample = true
	if p.TopP > 0 && p.TopP < 1 {
		topP := p.TopP
		out.TopP = &topP
	}
	return out
}

func classifyResponse(status int, body []byte, err error) Outcome {
	if err != nil {
		return transportFailure(err)
	}

	if status < 200 || status >= 300 {
		var e inferenceError
		_ = json.Unmarshal(body, &e)
		out := classifyStatus(status, e.Error, snippet(body))
		if out.Reason == ReasonLoading && e.EstimatedTime > 0 {
			out.Detail = fmt.Sprintf("model loading, estimated %.0fs", e.EstimatedTime)
		}
		return out
	}

	return Success(extractGeneratedText(body))
}

func transportFailure(err error) Outcome {
	detail := "request failed: " + err.Error()
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		detail = "request timed out"
	}
	return RetryNext(ReasonTransport, 0, detail)
}

// classifyStatus maps a non-success status and the provider's error message to the reason the
// orchestrator moves on to the next backend.
func classifyStatus(status int, message, detail string) Outcome {
	msg := strings.ToLower(message)
	switch {
	case status == http.StatusServiceUnavailable || strings.Contains(msg, "loading"):
		return RetryNext(ReasonLoading, status, "model loading")
	case status == http.StatusGone || strings.Contains(msg, "deprecated") || strings.Contains(msg, "no longer supported"):
		return RetryNext(ReasonDeprecated, status, "model deprecated")
	default:
		return RetryNext(ReasonHTTPStatus, status, fmt.Sprintf("http %d: %s", status, detail))
	}
}

func extractGeneratedText(body []byte) string {
	var items []generatedItem
	if err := json.Unmarshal(body, &items); err == nil {
		if len(items) > 0 {
			return items[0].GeneratedText
		}
		return ""
	}
	var item generatedItem
	if err := json.Unmarshal(body, &item); err == nil && item.GeneratedText != "" {
		return item.GeneratedText
	}
	return string(body)
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
