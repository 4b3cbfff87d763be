package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/issuelens/backend/internal/models"
	"github.com/issuelens/backend/internal/service"
)

func TestReadTicket(t *testing.T) {
	logger = zerolog.Nop()
	dir := t.TempDir()
	path := filepath.Join(dir, "ticket.json")
	if err := os.WriteFile(path, []byte(`{"number": 4, "title": "Docs typo"}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	ticket, err := readTicket(nil, path)
	if err != nil || ticket == nil || ticket.Number != 4 {
		t.Fatalf("unexpected ticket %+v, err %v", ticket, err)
	}

	ticket, err = readTicket(strings.NewReader(`"not an object"`), "-")
	if err != nil || ticket != nil {
		t.Fatalf("expected nil ticket for wrong shape, got %+v, %v", ticket, err)
	}

	ticket, err = readTicket(strings.NewReader(`{"number": 8, "title": "Crash", "labels": [{"name": "bug"}], "created_at": "2024-01-02 10:00:00"}`), "-")
	if err != nil || ticket == nil || len(ticket.Labels) != 1 || ticket.Labels[0] != "bug" || ticket.CreatedAt.IsZero() {
		t.Fatalf("expected GitHub-shaped ticket to load, got %+v, %v", ticket, err)
	}

	if _, err := readTicket(nil, filepath.Join(dir, "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestPrintResult(t *testing.T) {
	rec := models.AnalysisRecord{
		Result: models.AnalysisResult{
			Summary:         "s",
			Type:            models.TypeBug,
			PriorityScore:   "3/5 - x",
			SuggestedLabels: []string{"bug", "priority:medium"},
		},
		Provenance: models.Provenance{Source: models.SourceRules},
	}
	var buf bytes.Buffer
	showSource = false
	if err := printResult(&buf, rec); err != nil {
		t.Fatalf("print: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["type"] != "bug" || !strings.Contains(buf.String(), "\n  \"summary\"") {
		t.Fatalf("expected indented result, got %s", buf.String())
	}
	if _, ok := out["potential_impact"]; !ok {
		t.Fatalf("potential_impact must always be present")
	}
}

func TestPrintBatch(t *testing.T) {
	res := service.BatchResult{
		Items:   []service.BatchItemResult{{Index: 0, Record: &models.AnalysisRecord{TicketRef: "octo/hello#1"}}},
		Summary: service.RunSummary{Counts: map[string]any{"by_state": map[string]int{"open": 1}}},
	}
	var buf bytes.Buffer
	if err := printBatch(&buf, res); err != nil {
		t.Fatalf("print: %v", err)
	}
	var out struct {
		Items   []map[string]any `json:"items"`
		Summary struct {
			Counts map[string]any `json:"counts"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Items) != 1 || out.Summary.Counts["by_state"] == nil {
		t.Fatalf("unexpected batch output: %s", buf.String())
	}
}
