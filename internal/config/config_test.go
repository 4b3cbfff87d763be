package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AI_ENDPOINTS", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %q", cfg.Port)
	}
	if cfg.AITimeout.Seconds() != 30 {
		t.Fatalf("expected 30s ai timeout, got %s", cfg.AITimeout)
	}
	if cfg.AIMaxNewTokens != 800 || cfg.AITemperature != 0.5 || cfg.AITopP != 0.9 {
		t.Fatalf("unexpected generation defaults: %+v", cfg)
	}
	if cfg.BatchWorkers != 4 {
		t.Fatalf("expected 4 batch workers, got %d", cfg.BatchWorkers)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("AI_ENDPOINTS", "https://a.example/m1, https://b.example/m2")
	t.Setenv("AI_TIMEOUT", "5s")
	t.Setenv("AI_DISABLED", "true")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AITimeout.Seconds() != 5 || !cfg.AIDisabled {
		t.Fatalf("env not applied: %+v", cfg)
	}
	eps := cfg.Endpoints()
	if len(eps) != 2 || eps[0] != "https://a.example/m1" || eps[1] != "https://b.example/m2" {
		t.Fatalf("unexpected endpoints: %v", eps)
	}
}

func TestEndpointsDropsBlanks(t *testing.T) {
	cfg := Config{AIEndpoints: " , https://x.example/a ,,"}
	eps := cfg.Endpoints()
	if len(eps) != 1 || eps[0] != "https://x.example/a" {
		t.Fatalf("unexpected endpoints: %v", eps)
	}
	if len((Config{}).Endpoints()) != 0 {
		t.Fatalf("expected no endpoints for empty config")
	}
}

func TestOpenAIEnabled(t *testing.T) {
	if (Config{OpenAIModel: "gpt-4o-mini"}).OpenAIEnabled() {
		t.Fatalf("model alone should not enable the backend")
	}
	if !(Config{OpenAIModel: "gpt-4o-mini", OpenAIAPIKey: "k"}).OpenAIEnabled() {
		t.Fatalf("model and key should enable the backend")
	}
}
