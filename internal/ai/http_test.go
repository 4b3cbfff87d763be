package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestInferenceBackendName(t *testing.T) {
	b := NewInferenceBackend("https://api-inference.huggingface.co/models/mistralai/Mistral-7B-Instruct-v0.3/", "", 0)
	if b.Name() != "Mistral-7B-Instruct-v0.3" {
		t.Fatalf("unexpected name %q", b.Name())
	}
}

func TestInferenceBackendGenerate(t *testing.T) {
	var gotAuth string
	var gotReq inferenceRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"generated_text": "{\"summary\": \"ok\"}"}]`))
	}))
	defer srv.Close()

	b := NewInferenceBackend(srv.URL+"/models/m1", "secret", time.Second)
	out := b.Generate(context.Background(), "prompt text", DefaultGenerationParams())

	if out.Kind != OutcomeSuccess || out.Text != `{"summary": "ok"}` {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotReq.Inputs != "prompt text" || gotReq.Parameters.MaxNewTokens != 800 || gotReq.Parameters.ReturnFullText {
		t.Fatalf("unexpected request: %+v", gotReq)
	}
	p := gotReq.Parameters
	if !p.DoSample || p.Temperature == nil || *p.Temperature != 0.5 || p.TopP == nil || *p.TopP != 0.9 {
		t.Fatalf("unexpected sampling parameters: %+v", p)
	}
}

func TestInferenceBackendGreedyAtZeroTemperature(t *testing.T) {
	var raw struct {
		Parameters map[string]any `json:"parameters"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = w.Write([]byte(`[{"generated_text": "{}"}]`))
	}))
	defer srv.Close()

	params := DefaultGenerationParams()
	params.Temperature = 0
	NewInferenceBackend(srv.URL+"/models/m1", "", time.Second).Generate(context.Background(), "p", params)

	got := raw.Parameters
	if got["do_sample"] != false {
		t.Fatalf("expected greedy decoding, got %v", got)
	}
	if _, ok := got["temperature"]; ok {
		t.Fatalf("temperature should be omitted, got %v", got)
	}
}

func TestInferenceBackendOmitsEmptyToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("expected no auth header")
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	out := NewInferenceBackend(srv.URL, "", time.Second).Generate(context.Background(), "p", DefaultGenerationParams())
	if out.Kind != OutcomeSuccess || out.Text != "" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestInferenceBackendUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	out := NewInferenceBackend(url, "", time.Second).Generate(context.Background(), "p", DefaultGenerationParams())
	if out.Kind != OutcomeRetryNext || out.Reason != ReasonTransport {
		t.Fatalf("expected transport failure, got %+v", out)
	}
}

func TestClassifyResponse(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		err    error
		kind   OutcomeKind
		reason Reason
		text   string
		detail string
	}{
		{name: "loading", status: 503, body: `{"error": "Model is currently loading", "estimated_time": 20}`, kind: OutcomeRetryNext, reason: ReasonLoading, detail: "model loading, estimated 20s"},
		{name: "loading message", status: 500, body: `{"error": "model is loading"}`, kind: OutcomeRetryNext, reason: ReasonLoading, detail: "model loading"},
		{name: "gone", status: 410, body: `{"error": "gone"}`, kind: OutcomeRetryNext, reason: ReasonDeprecated},
		{name: "deprecated message", status: 400, body: `{"error": "This model is no longer supported"}`, kind: OutcomeRetryNext, reason: ReasonDeprecated},
		{name: "server error", status: 500, body: `internal`, kind: OutcomeRetryNext, reason: ReasonHTTPStatus, detail: "http 500: internal"},
		{name: "transport", err: errors.New("connection refused"), kind: OutcomeRetryNext, reason: ReasonTransport, detail: "request failed: connection refused"},
		{name: "timeout", err: context.DeadlineExceeded, kind: OutcomeRetryNext, reason: ReasonTransport, detail: "request timed out"},
		{name: "list", status: 200, body: `[{"generated_text": "hello"}]`, kind: OutcomeSuccess, text: "hello"},
		{name: "object", status: 200, body: `{"generated_text": "hello"}`, kind: OutcomeSuccess, text: "hello"},
		{name: "raw", status: 200, body: `plain words`, kind: OutcomeSuccess, text: "plain words"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := classifyResponse(tc.status, []byte(tc.body), tc.err)
			if out.Kind != tc.kind || out.Reason != tc.reason {
				t.Fatalf("got %+v", out)
			}
			if tc.kind == OutcomeSuccess && out.Text != tc.text {
				t.Fatalf("expected text %q, got %q", tc.text, out.Text)
			}
			if tc.detail != "" && out.Detail != tc.detail {
				t.Fatalf("expected detail %q, got %q", tc.detail, out.Detail)
			}
		})
	}
}

func TestSnippetCapsLength(t *testing.T) {
	if s := snippet([]byte(strings.Repeat("x", 500))); len(s) != 200 {
		t.Fatalf("expected 200 chars, got %d", len(s))
	}
}
