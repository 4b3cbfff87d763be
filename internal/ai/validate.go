package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/issuelens/backend/internal/models"
	"github.com/issuelens/backend/internal/utils"
)

const maxLabels = 3

var (
	ErrMalformedResponse = errors.New("malformed response")
	ErrMissingField      = errors.New("missing required field")
)

var requiredFields = []string{"summary", "type", "priority_score", "suggested_labels"}

type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingField, e.Field)
}

func (e *MissingFieldError) Unwrap() error {
	return ErrMissingField
}

// ParseResponse extracts the JSON object embedded in generated text and sanitizes it into an
// AnalysisResult. Label lists are cut to three entries but never padded.
func ParseResponse(text string) (models.AnalysisResult, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return models.AnalysisResult{}, fmt.Errorf("%w: no JSON object found", ErrMalformedResponse)
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return models.AnalysisResult{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	for _, field := range requiredFields {
		if _, ok := raw[field]; !ok {
			return models.AnalysisResult{}, &MissingFieldError{Field: field}
		}
	}

	res := models.AnalysisResult{
		Summary:         utils.StripHTML(scalarString(raw["summary"])),
		Type:            normalizeType(utils.StripHTML(scalarString(raw["type"]))),
		PriorityScore:   utils.StripHTML(scalarString(raw["priority_score"])),
		SuggestedLabels: sanitizeLabels(raw["suggested_labels"]),
	}

	if impact := utils.StripHTML(scalarString(raw["potential_impact"])); impact != "" {
		res.PotentialImpact = &impact
	} else if res.Type == models.TypeBug {
		res.PotentialImpact = models.StringPtr("Impact assessment needed")
	}
	return res, nil
}

func sanitizeLabels(v any) []string {
	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case nil:
		return []string{}
	default:
		items = []any{t}
	}

	labels := make([]string, 0, len(items))
	for _, item := range items {
		if l := utils.StripHTML(scalarString(item)); l != "" {
			labels = append(labels, l)
		}
	}
	if len(labels) > maxLabels {
		labels = labels[:maxLabels]
	}
	return labels
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func normalizeType(value string) models.IssueType {
	v := strings.ToLower(strings.TrimSpace(value))
	v = strings.NewReplacer(" ", "_", "-", "_").Replace(v)
	switch v {
	case "feature", "enhancement", "feature_request":
		return models.TypeFeatureRequest
	case "docs", "doc", "documentation":
		return models.TypeDocumentation
	}
	if t := models.IssueType(v); t.Valid() {
		return t
	}
	return models.TypeOther
}
