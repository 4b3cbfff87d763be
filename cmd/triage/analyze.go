package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/issuelens/backend/internal/ai"
	"github.com/issuelens/backend/internal/models"
	"github.com/issuelens/backend/internal/service"
	"github.com/issuelens/backend/internal/tracker"
)

var (
	ticketFile  string
	repoURL     string
	issueNumber int
	rulesOnly   bool
	applyLabels bool
	showSource  bool
	allIssues   bool
	issueState  string
	maxIssues   int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze an issue and print the result as JSON",
	Long: `Analyze an issue read from a JSON file (use "-" for stdin) or fetched from GitHub.

With --all, up to --max issues in the given --state are listed and analyzed as one batch,
and the batch result with its statistics is printed.

Examples:
  triage analyze --file ticket.json
  triage analyze --repo https://github.com/owner/repo --issue 42 --apply-labels
  triage analyze --repo owner/repo --all --state closed --max 100`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if ticketFile == "" && repoURL == "" {
			return errors.New("either --file or --repo with --issue is required")
		}
		if allIssues && repoURL == "" {
			return errors.New("--all requires --repo")
		}
		if repoURL != "" && !allIssues && issueNumber <= 0 {
			return errors.New("--issue must be a positive issue number")
		}
		if applyLabels && repoURL == "" {
			return errors.New("--apply-labels requires --repo and --issue")
		}

		cfg := appConfig
		if rulesOnly {
			cfg.AIDisabled = true
		}
		svc := &service.AnalysisService{
			Analyzer: ai.NewAnalyzer(cfg, logger, nil),
			Tracker:  tracker.NewGitHubClient(cfg.GitHubAPIURL, cfg.GitHubToken, cfg.GitHubMaxComments, logger),
			Logger:   logger,
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		if allIssues {
			res, err := svc.AnalyzeRepo(ctx, repoURL, issueState, maxIssues)
			if err != nil {
				return fmt.Errorf("analyze repository: %w", err)
			}
			return printBatch(cmd.OutOrStdout(), res)
		}

		var rec models.AnalysisRecord
		if ticketFile != "" {
			ticket, err := readTicket(cmd.InOrStdin(), ticketFile)
			if err != nil {
				return err
			}
			rec = svc.AnalyzeTicket(ctx, "", ticket)
		} else {
			var err error
			rec, err = svc.AnalyzeIssue(ctx, repoURL, issueNumber)
			if err != nil {
				return fmt.Errorf("fetch issue: %w", err)
			}
		}

		if err := printResult(cmd.OutOrStdout(), rec); err != nil {
			return err
		}

		if applyLabels {
			if err := svc.ApplyLabels(ctx, repoURL, issueNumber, rec.Result.SuggestedLabels); err != nil {
				return fmt.Errorf("apply labels: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "applied labels %v to %s\n", rec.Result.SuggestedLabels, rec.TicketRef)
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&ticketFile, "file", "f", "", "Path to a ticket JSON file, or - for stdin")
	analyzeCmd.Flags().StringVar(&repoURL, "repo", "", "GitHub repository URL or owner/repo")
	analyzeCmd.Flags().IntVar(&issueNumber, "issue", 0, "Issue number")
	analyzeCmd.Flags().BoolVar(&rulesOnly, "rules-only", false, "Skip generation backends and use keyword rules")
	analyzeCmd.Flags().BoolVar(&applyLabels, "apply-labels", false, "Apply the suggested labels to the issue")
	analyzeCmd.Flags().BoolVar(&showSource, "provenance", false, "Include provenance in the output")
	analyzeCmd.Flags().BoolVar(&allIssues, "all", false, "Analyze every issue of --repo instead of a single one")
	analyzeCmd.Flags().StringVar(&issueState, "state", tracker.StateOpen, "Issue state for --all: open, closed or all")
	analyzeCmd.Flags().IntVar(&maxIssues, "max", tracker.DefaultListMax, "Maximum number of issues for --all")
	analyzeCmd.MarkFlagsMutuallyExclusive("file", "repo")
	analyzeCmd.MarkFlagsMutuallyExclusive("all", "issue")
	analyzeCmd.MarkFlagsMutuallyExclusive("all", "apply-labels")
}

// readTicket loads a ticket file. Content that is not a ticket object is passed on as nil so
// the analyzer produces its default result.
func readTicket(stdin io.Reader, path string) (*models.Ticket, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read ticket: %w", err)
	}
	var t models.Ticket
	if err := json.Unmarshal(data, &t); err != nil {
		logger.Warn().Err(err).Msg("ticket file is not a ticket object")
		return nil, nil
	}
	return &t, nil
}

func printResult(w io.Writer, rec models.AnalysisRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if showSource {
		return enc.Encode(struct {
			Result     models.AnalysisResult `json:"result"`
			Provenance models.Provenance     `json:"provenance"`
		}{rec.Result, rec.Provenance})
	}
	return enc.Encode(rec.Result)
}

func printBatch(w io.Writer, res service.BatchResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
