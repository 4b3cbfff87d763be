package db

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/issuelens/backend/internal/models"
)

//go:embed schema.sql
var schema string

var ErrNotFound = errors.New("record not found")

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

// Migrate creates the tables if they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, schema)
	return err
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// SaveAnalyses stores all records in a single transaction. Records without an ID get a new one.
func (s *Store) SaveAnalyses(ctx context.Context, records []models.AnalysisRecord) ([]string, error) {
	ids := make([]string, 0, len(records))
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		for i := range records {
			id, err := insertAnalysis(ctx, tx, &records[i])
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func insertAnalysis(ctx context.Context, tx pgx.Tx, rec *models.AnalysisRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	attempts, err := json.Marshal(rec.Provenance.Attempts)
	if err != nil {
		return "", err
	}
	var backend *string
	if rec.Provenance.Backend != "" {
		backend = &rec.Provenance.Backend
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO analyses (id, ticket_ref, number, title, type, summary, priority_score, suggested_labels,
			potential_impact, source, backend, attempts, latency_ms, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, rec.ID, rec.TicketRef, rec.Number, rec.Title, string(rec.Result.Type), rec.Result.Summary,
		rec.Result.PriorityScore, rec.Result.SuggestedLabels, rec.Result.PotentialImpact,
		rec.Provenance.Source, backend, attempts, rec.Provenance.LatencyMs, rec.CreatedAt)
	return rec.ID, err
}

const analysisColumns = `id, ticket_ref, number, title, type, summary, priority_score, suggested_labels,
	potential_impact, source, backend, attempts, latency_ms, created_at`

func (s *Store) ListAnalyses(ctx context.Context, ticketRef, issueType, source string, limit, offset int) ([]models.AnalysisRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + analysisColumns + ` FROM analyses`
	var args []any
	var wheres []string
	if ticketRef != "" {
		args = append(args, ticketRef)
		wheres = append(wheres, fmt.Sprintf("ticket_ref = $%d", len(args)))
	}
	if issueType != "" {
		args = append(args, issueType)
		wheres = append(wheres, fmt.Sprintf("type = $%d", len(args)))
	}
	if source != "" {
		args = append(args, source)
		wheres = append(wheres, fmt.Sprintf("source = $%d", len(args)))
	}
	if len(wheres) > 0 {
		query += " WHERE " + strings.Join(wheres, " AND ")
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.AnalysisRecord{}
	for rows.Next() {
		rec, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetLatestAnalysis returns the most recent analysis stored for a ticket reference.
func (s *Store) GetLatestAnalysis(ctx context.Context, ticketRef string) (models.AnalysisRecord, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+analysisColumns+` FROM analyses WHERE ticket_ref = $1 ORDER BY created_at DESC LIMIT 1`, ticketRef)
	rec, err := scanAnalysis(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.AnalysisRecord{}, ErrNotFound
	}
	return rec, err
}

func scanAnalysis(row pgx.Row) (models.AnalysisRecord, error) {
	var (
		rec       models.AnalysisRecord
		issueType string
		backend   *string
		attempts  []byte
	)
	err := row.Scan(&rec.ID, &rec.TicketRef, &rec.Number, &rec.Title, &issueType, &rec.Result.Summary,
		&rec.Result.PriorityScore, &rec.Result.SuggestedLabels, &rec.Result.PotentialImpact,
		&rec.Provenance.Source, &backend, &attempts, &rec.Provenance.LatencyMs, &rec.CreatedAt)
	if err != nil {
		return models.AnalysisRecord{}, err
	}
	rec.Result.Type = models.IssueType(issueType)
	if backend != nil {
		rec.Provenance.Backend = *backend
	}
	rec.Provenance.Attempts = []models.Attempt{}
	if len(attempts) > 0 {
		if err := json.Unmarshal(attempts, &rec.Provenance.Attempts); err != nil {
			return models.AnalysisRecord{}, err
		}
	}
	return rec, nil
}

func (s *Store) CreateRun(ctx context.Context, status string) (string, error) {
	id := uuid.NewString()
	_, err := s.Pool.Exec(ctx, `INSERT INTO runs (id, status, started_at) VALUES ($1, $2, NOW())`, id, status)
	return id, err
}

func (s *Store) FinishRun(ctx context.Context, runID string, status string, summary []byte) error {
	_, err := s.Pool.Exec(ctx, `UPDATE runs SET status = $1, summary = $2, finished_at = NOW() WHERE id = $3`, status, summary, runID)
	return err
}

func (s *Store) GetLatestRun(ctx context.Context) (models.Run, error) {
	row := s.Pool.QueryRow(ctx, `SELECT id, started_at, finished_at, status, summary FROM runs ORDER BY started_at DESC LIMIT 1`)
	var (
		run      models.Run
		finished *time.Time
	)
	if err := row.Scan(&run.ID, &run.StartedAt, &finished, &run.Status, &run.Summary); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Run{}, ErrNotFound
		}
		return models.Run{}, err
	}
	if finished != nil {
		run.FinishedAt = *finished
	}
	return run, nil
}
