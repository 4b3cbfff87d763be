package models

import (
	"encoding/json"
	"time"
)

type IssueType string

const (
	TypeBug            IssueType = "bug"
	TypeFeatureRequest IssueType = "feature_request"
	TypeDocumentation  IssueType = "documentation"
	TypeQuestion       IssueType = "question"
	TypeOther          IssueType = "other"
)

// IssueTypes lists every accepted classification value.
var IssueTypes = []IssueType{TypeBug, TypeFeatureRequest, TypeDocumentation, TypeQuestion, TypeOther}

func (t IssueType) Valid() bool {
	for _, v := range IssueTypes {
		if t == v {
			return true
		}
	}
	return false
}

type Ticket struct {
	Number       int       `json:"number"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	State        string    `json:"state"`
	Author       string    `json:"user"`
	URL          string    `json:"url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Labels       []string  `json:"labels"`
	CommentCount int       `json:"comments"`
	Comments     []Comment `json:"comments_list,omitempty"`
}

// IsEmpty reports whether the ticket carries no data at all.
func (t Ticket) IsEmpty() bool {
	return t.Number == 0 && t.Title == "" && t.Body == "" && t.State == "" && t.Author == "" &&
		t.URL == "" && t.CreatedAt.IsZero() && t.UpdatedAt.IsZero() && len(t.Labels) == 0 &&
		t.CommentCount == 0 && len(t.Comments) == 0
}

// TotalComments is the real number of comments on the ticket, which may be larger than the
// number of comments that were fetched.
func (t Ticket) TotalComments() int {
	if t.CommentCount > len(t.Comments) {
		return t.CommentCount
	}
	return len(t.Comments)
}

type Comment struct {
	ID        int64     `json:"id,omitempty"`
	Author    string    `json:"user"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type AnalysisResult struct {
	Summary         string    `json:"summary" validate:"required"`
	Type            IssueType `json:"type" validate:"required,oneof=bug feature_request documentation question other"`
	PriorityScore   string    `json:"priority_score" validate:"required"`
	SuggestedLabels []string  `json:"suggested_labels" validate:"min=2,max=3,dive,required"`
	PotentialImpact *string   `json:"potential_impact"`
}

const (
	SourceLLM     = "llm"
	SourceRules   = "rules"
	SourceDefault = "default"
)

// Attempt records a single backend call made while analyzing a ticket.
type Attempt struct {
	Backend   string `json:"backend"`
	Outcome   string `json:"outcome"`
	Reason    string `json:"reason,omitempty"`
	Detail    string `json:"detail,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

// Provenance describes how an AnalysisResult was produced.
type Provenance struct {
	Source    string    `json:"source"`
	Backend   string    `json:"backend,omitempty"`
	Attempts  []Attempt `json:"attempts"`
	LatencyMs int64     `json:"latency_ms"`
}

type AnalysisRecord struct {
	ID         string         `json:"id"`
	TicketRef  string         `json:"ticket_ref"`
	Number     int            `json:"number"`
	Title      string         `json:"title"`
	Result     AnalysisResult `json:"result"`
	Provenance Provenance     `json:"provenance"`
	CreatedAt  time.Time      `json:"created_at"`
}

type Run struct {
	ID         string          `json:"id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Status     string          `json:"status"`
	Summary    json.RawMessage `json:"summary"`
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
