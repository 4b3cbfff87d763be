package tracker

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/issuelens/backend/internal/models"
)

var (
	ErrNotFound       = errors.New("issue not found")
	ErrInvalidRepoURL = errors.New("invalid repository url")
	ErrInvalidState   = errors.New("invalid issue state")
)

const (
	StateOpen   = "open"
	StateClosed = "closed"
	StateAll    = "all"

	DefaultListMax = 50
)

// Tracker loads tickets from an issue tracker and writes labels back to it.
type Tracker interface {
	FetchIssue(ctx context.Context, owner, repo string, number int) (models.Ticket, error)
	// ListIssues returns up to limit issues in the given state, newest first. Pull requests are
	// not included.
	ListIssues(ctx context.Context, owner, repo, state string, limit int) ([]models.Ticket, error)
	AddLabels(ctx context.Context, owner, repo string, number int, labels []string) error
}

// ParseRepoURL accepts "https://github.com/owner/repo", with or without a trailing ".git" or
// extra path segments, and the short "owner/repo" form.
func ParseRepoURL(raw string) (owner, repo string, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", ErrInvalidRepoURL
	}

	path := raw
	if strings.Contains(raw, "://") {
		u, perr := url.Parse(raw)
		if perr != nil || u.Host == "" {
			return "", "", fmt.Errorf("%w: %s", ErrInvalidRepoURL, raw)
		}
		path = u.Path
	} else if strings.HasPrefix(raw, "github.com/") {
		path = strings.TrimPrefix(raw, "github.com/")
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidRepoURL, raw)
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}

// Ref formats the canonical "owner/repo#number" reference of a ticket.
func Ref(owner, repo string, number int) string {
	return fmt.Sprintf("%s/%s#%d", owner, repo, number)
}

// NormalizeState maps an empty state to "open" and rejects anything other than open, closed
// or all.
func NormalizeState(state string) (string, error) {
	switch s := strings.ToLower(strings.TrimSpace(state)); s {
	case "":
		return StateOpen, nil
	case StateOpen, StateClosed, StateAll:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidState, state)
	}
}
