package ai

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/issuelens/backend/internal/config"
)

func TestNewAnalyzerDisabled(t *testing.T) {
	cfg := config.Config{AIEndpoints: "https://a.example/m1", AIDisabled: true}
	if _, ok := NewAnalyzer(cfg, zerolog.Nop(), nil).(RulesAnalyzer); !ok {
		t.Fatalf("expected rules analyzer when generation is disabled")
	}
}

func TestNewAnalyzerWithoutEndpoints(t *testing.T) {
	if _, ok := NewAnalyzer(config.Config{}, zerolog.Nop(), nil).(RulesAnalyzer); !ok {
		t.Fatalf("expected rules analyzer without backends")
	}
}

func TestNewAnalyzerBuildsBackendsInOrder(t *testing.T) {
	cfg := config.Config{
		AIEndpoints:    "https://a.example/models/m1,https://b.example/models/m2",
		AITimeout:      5 * time.Second,
		AIMaxNewTokens: 200,
		AITemperature:  0.5,
		AITopP:         0.9,
		OpenAIModel:    "gpt-4o-mini",
		OpenAIAPIKey:   "k",
	}
	o, ok := NewAnalyzer(cfg, zerolog.Nop(), nil).(*Orchestrator)
	if !ok {
		t.Fatalf("expected orchestrator")
	}
	names := o.Backends()
	if len(names) != 3 || names[0] != "m1" || names[1] != "m2" || names[2] != "openai:gpt-4o-mini" {
		t.Fatalf("unexpected backends: %v", names)
	}
	if o.params.MaxNewTokens != 200 || o.params.TopP != 0.9 || o.timeout != 5*time.Second {
		t.Fatalf("unexpected settings: %+v %s", o.params, o.timeout)
	}
}

func TestNewAnalyzerKeepsZeroTemperature(t *testing.T) {
	cfg := config.Config{AIEndpoints: "https://a.example/models/m1", AITemperature: 0, AITopP: 0.8}
	o, ok := NewAnalyzer(cfg, zerolog.Nop(), nil).(*Orchestrator)
	if !ok {
		t.Fatalf("expected orchestrator")
	}
	if o.params.Temperature != 0 || o.params.TopP != 0.8 {
		t.Fatalf("explicit settings overridden: %+v", o.params)
	}
	if o.params.MaxNewTokens != DefaultGenerationParams().MaxNewTokens {
		t.Fatalf("expected default token budget, got %d", o.params.MaxNewTokens)
	}
}
