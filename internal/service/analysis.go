package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/issuelens/backend/internal/ai"
	"github.com/issuelens/backend/internal/models"
	"github.com/issuelens/backend/internal/tracker"
)

const (
	RunStatusRunning = "RUNNING"
	RunStatusDone    = "DONE"
	RunStatusError   = "ERROR"
)

// MaxRepoIssues bounds a single repository analysis.
const MaxRepoIssues = 500

var ErrNoTracker = errors.New("issue tracker not configured")

// Store persists analyses and batch runs. The service works without one.
type Store interface {
	SaveAnalyses(ctx context.Context, records []models.AnalysisRecord) ([]string, error)
	CreateRun(ctx context.Context, status string) (string, error)
	FinishRun(ctx context.Context, runID string, status string, summary []byte) error
}

type AnalysisService struct {
	Analyzer ai.Analyzer
	Store    Store
	Tracker  tracker.Tracker
	Logger   zerolog.Logger
	Workers  int
}

// BatchItem names a ticket either by repository and issue number or inline. Ref overrides the
// reference recorded for an inline ticket.
type BatchItem struct {
	RepoURL     string         `json:"repo_url,omitempty"`
	IssueNumber int            `json:"issue_number,omitempty"`
	Ticket      *models.Ticket `json:"ticket,omitempty"`
	Ref         string         `json:"ref,omitempty"`
}

type BatchItemResult struct {
	Index  int                    `json:"index"`
	Record *models.AnalysisRecord `json:"record,omitempty"`
	Error  string                 `json:"error,omitempty"`

	state    string
	comments int
}

type BatchResult struct {
	RunID   string            `json:"run_id,omitempty"`
	Items   []BatchItemResult `json:"items"`
	Summary RunSummary        `json:"summary"`
}

type RunSummary struct {
	Events []map[string]any `json:"events"`
	Counts map[string]any   `json:"counts"`
}

// AnalyzeTicket analyzes a ticket that is already in memory and stores the record when a store
// is configured. A failed write is logged and does not affect the returned record.
func (s *AnalysisService) AnalyzeTicket(ctx context.Context, ref string, t *models.Ticket) models.AnalysisRecord {
	rec := s.analyze(ctx, ref, t)
	s.save(ctx, []*models.AnalysisRecord{&rec})
	return rec
}

// AnalyzeIssue fetches an issue from the tracker and analyzes it.
func (s *AnalysisService) AnalyzeIssue(ctx context.Context, repoURL string, number int) (models.AnalysisRecord, error) {
	t, ref, err := s.fetch(ctx, repoURL, number)
	if err != nil {
		return models.AnalysisRecord{}, err
	}
	return s.AnalyzeTicket(ctx, ref, &t), nil
}

// ApplyLabels writes labels back to the issue on the tracker.
func (s *AnalysisService) ApplyLabels(ctx context.Context, repoURL string, number int, labels []string) error {
	if s.Tracker == nil {
		return ErrNoTracker
	}
	owner, repo, err := tracker.ParseRepoURL(repoURL)
	if err != nil {
		return err
	}
	if err := s.Tracker.AddLabels(ctx, owner, repo, number, labels); err != nil {
		return err
	}
	s.Logger.Info().
		Str("issue", tracker.Ref(owner, repo, number)).
		Strs("labels", labels).
		Msg("labels applied")
	return nil
}

// AnalyzeRepo lists up to limit issues of a repository in the given state and analyzes them as
// one batch. Listing errors are returned before any run is recorded.
func (s *AnalysisService) AnalyzeRepo(ctx context.Context, repoURL, state string, limit int) (BatchResult, error) {
	if s.Tracker == nil {
		return BatchResult{}, ErrNoTracker
	}
	owner, repo, err := tracker.ParseRepoURL(repoURL)
	if err != nil {
		return BatchResult{}, err
	}
	state, err = tracker.NormalizeState(state)
	if err != nil {
		return BatchResult{}, err
	}
	if limit <= 0 {
		limit = tracker.DefaultListMax
	}
	if limit > MaxRepoIssues {
		limit = MaxRepoIssues
	}

	tickets, err := s.Tracker.ListIssues(ctx, owner, repo, state, limit)
	if err != nil {
		return BatchResult{}, err
	}
	s.Logger.Info().
		Str("repo", owner+"/"+repo).
		Str("state", state).
		Int("issues", len(tickets)).
		Msg("analyzing repository issues")

	items := make([]BatchItem, len(tickets))
	for i := range tickets {
		items[i] = BatchItem{Ticket: &tickets[i], Ref: tracker.Ref(owner, repo, tickets[i].Number)}
	}
	return s.AnalyzeBatch(ctx, items)
}

// AnalyzeBatch analyzes items concurrently with at most Workers in flight. Results keep the
// order of items. Per-item fetch errors are reported in the item result.
func (s *AnalysisService) AnalyzeBatch(ctx context.Context, items []BatchItem) (BatchResult, error) {
	start := time.Now()
	result := BatchResult{Items: make([]BatchItemResult, len(items))}

	if s.Store != nil {
		runID, err := s.Store.CreateRun(ctx, RunStatusRunning)
		if err != nil {
			s.Logger.Warn().Err(err).Msg("failed to create run")
		} else {
			result.RunID = runID
		}
	}

	workers := s.Workers
	if workers <= 0 {
		workers = 4
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	records := make([]*models.AnalysisRecord, 0, len(items))
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			res := BatchItemResult{Index: i}
			rec, t, err := s.analyzeItem(gctx, item)
			if err != nil {
				res.Error = err.Error()
			} else {
				res.Record = &rec
			}
			if t != nil {
				res.state = t.State
				res.comments = t.CommentCount
			}
			result.Items[i] = res
			return nil
		})
	}
	_ = g.Wait()

	for i := range result.Items {
		if result.Items[i].Record != nil {
			records = append(records, result.Items[i].Record)
		}
	}
	s.save(ctx, records)

	result.Summary = summarize(result.Items, time.Since(start))
	s.finishRun(ctx, result.RunID, result.Summary)

	s.Logger.Info().
		Int("items", len(items)).
		Int("analyzed", len(records)).
		Dur("elapsed", time.Since(start)).
		Msg("batch analysis finished")
	return result, ctx.Err()
}

func (s *AnalysisService) analyzeItem(ctx context.Context, item BatchItem) (models.AnalysisRecord, *models.Ticket, error) {
	if item.Ticket != nil || item.RepoURL == "" {
		ref := item.Ref
		if ref == "" {
			ref = inlineRef(item.Ticket)
		}
		return s.analyze(ctx, ref, item.Ticket), item.Ticket, nil
	}
	t, ref, err := s.fetch(ctx, item.RepoURL, item.IssueNumber)
	if err != nil {
		return models.AnalysisRecord{}, nil, err
	}
	return s.analyze(ctx, ref, &t), &t, nil
}

func (s *AnalysisService) fetch(ctx context.Context, repoURL string, number int) (models.Ticket, string, error) {
	if s.Tracker == nil {
		return models.Ticket{}, "", ErrNoTracker
	}
	owner, repo, err := tracker.ParseRepoURL(repoURL)
	if err != nil {
		return models.Ticket{}, "", err
	}
	t, err := s.Tracker.FetchIssue(ctx, owner, repo, number)
	if err != nil {
		return models.Ticket{}, "", err
	}
	return t, tracker.Ref(owner, repo, number), nil
}

func (s *AnalysisService) analyze(ctx context.Context, ref string, t *models.Ticket) models.AnalysisRecord {
	res, prov := s.Analyzer.Analyze(ctx, t)
	rec := models.AnalysisRecord{
		TicketRef:  ref,
		Result:     res,
		Provenance: prov,
		CreatedAt:  time.Now().UTC(),
	}
	if t != nil {
		rec.Number = t.Number
		rec.Title = t.Title
	}
	if rec.TicketRef == "" {
		rec.TicketRef = inlineRef(t)
	}
	return rec
}

func (s *AnalysisService) save(ctx context.Context, records []*models.AnalysisRecord) {
	if s.Store == nil || len(records) == 0 {
		return
	}
	batch := make([]models.AnalysisRecord, len(records))
	for i, r := range records {
		batch[i] = *r
	}
	ids, err := s.Store.SaveAnalyses(ctx, batch)
	if err != nil {
		s.Logger.Error().Err(err).Int("records", len(records)).Msg("failed to save analyses")
		return
	}
	for i, id := range ids {
		if i < len(records) {
			records[i].ID = id
		}
	}
}

func (s *AnalysisService) finishRun(ctx context.Context, runID string, summary RunSummary) {
	if s.Store == nil || runID == "" {
		return
	}
	status := RunStatusDone
	if ctx.Err() != nil {
		status = RunStatusError
	}
	payload, _ := json.Marshal(summary)
	if err := s.Store.FinishRun(ctx, runID, status, payload); err != nil {
		s.Logger.Warn().Err(err).Str("run_id", runID).Msg("failed to finish run")
	}
}

func summarize(items []BatchItemResult, elapsed time.Duration) RunSummary {
	var (
		analyzed      int
		fetchErrors   int
		fallbackCount int
		latencyTotal  int64
		commentTotal  int
		byType        = map[string]int{}
		bySource      = map[string]int{}
		byPriority    = map[string]int{}
		byState       = map[string]int{}
	)
	for _, item := range items {
		if item.state != "" {
			byState[item.state]++
		}
		if item.Record == nil {
			fetchErrors++
			continue
		}
		rec := item.Record
		analyzed++
		latencyTotal += rec.Provenance.LatencyMs
		commentTotal += item.comments
		byType[string(rec.Result.Type)]++
		bySource[rec.Provenance.Source]++
		if p := PriorityOf(rec.Result.PriorityScore); p > 0 {
			byPriority[strconv.Itoa(p)]++
		}
		if rec.Provenance.Source != models.SourceLLM {
			fallbackCount++
		}
	}

	now := time.Now().UTC()
	summary := RunSummary{Counts: map[string]any{}}
	summary.Events = append(summary.Events, map[string]any{
		"type":           "analysis",
		"message":        "Analysis complete",
		"count":          analyzed,
		"avg_latency_ms": avgLatency(latencyTotal, analyzed),
		"fallback_count": fallbackCount,
		"time":           now,
	})
	summary.Events = append(summary.Events, map[string]any{
		"type":       "batch_done",
		"elapsed_ms": elapsed.Milliseconds(),
		"errors":     fetchErrors,
		"time":       now,
	})

	summary.Counts["tickets_processed"] = len(items)
	summary.Counts["analyzed"] = analyzed
	summary.Counts["fetch_errors"] = fetchErrors
	summary.Counts["fallback_count"] = fallbackCount
	summary.Counts["by_type"] = byType
	summary.Counts["by_source"] = bySource
	summary.Counts["by_priority"] = byPriority
	summary.Counts["by_state"] = byState
	summary.Counts["average_comments"] = avgComments(commentTotal, analyzed)
	return summary
}

// PriorityOf reads the leading score of a "N/5 - justification" string, or 0 when absent.
func PriorityOf(score string) int {
	head, _, ok := strings.Cut(strings.TrimSpace(score), "/")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(head))
	if err != nil || n < 1 || n > 5 {
		return 0
	}
	return n
}

func inlineRef(t *models.Ticket) string {
	if t == nil || t.Number == 0 {
		return "inline"
	}
	return "inline#" + strconv.Itoa(t.Number)
}

func avgLatency(total int64, count int) int64 {
	if count == 0 {
		return 0
	}
	return total / int64(count)
}

func avgComments(total, count int) float64 {
	if count == 0 {
		return 0
	}
	return math.Round(float64(total)/float64(count)*100) / 100
}
