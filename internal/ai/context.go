package ai

import (
	"fmt"
	"strings"
	"time"

	"github.com/issuelens/backend/internal/models"
	"github.com/issuelens/backend/internal/utils"
)

const (
	MaxBodyChars    = 5000
	MaxComments     = 8
	MaxCommentChars = 500
	TruncatedMarker = "\n\n... [truncated for length]"
)

// BuildContext renders a ticket as the bounded text block embedded in the prompt.
func BuildContext(t models.Ticket) string {
	title := placeholder(t.Title, "No title")
	state := placeholder(t.State, "unknown")
	author := placeholder(t.Author, "unknown")
	body := placeholder(t.Body, "No description provided")
	if cut, truncated := utils.Truncate(body, MaxBodyChars); truncated {
		body = cut + TruncatedMarker
	}

	labels := "None"
	if names := nonEmpty(t.Labels); len(names) > 0 {
		labels = strings.Join(names, ", ")
	}

	created := "unknown"
	if !t.CreatedAt.IsZero() {
		created = t.CreatedAt.UTC().Format(time.RFC3339)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Issue Title: %s\n", title)
	fmt.Fprintf(&b, "Issue Number: #%d\n", t.Number)
	fmt.Fprintf(&b, "Issue State: %s\n", state)
	fmt.Fprintf(&b, "Author: %s\n", author)
	fmt.Fprintf(&b, "Created At: %s\n", created)
	fmt.Fprintf(&b, "Existing Labels: %s\n\n", labels)
	fmt.Fprintf(&b, "Issue Body:\n%s\n\n", body)

	total := t.TotalComments()
	if len(t.Comments) == 0 {
		if total > 0 {
			fmt.Fprintf(&b, "Comments: %d total, none available.\n", total)
		} else {
			b.WriteString("Comments: No comments yet.\n")
		}
		return b.String()
	}

	shown := t.Comments
	if len(shown) > MaxComments {
		shown = shown[:MaxComments]
	}
	fmt.Fprintf(&b, "Comments (%d total, showing first %d):\n", total, len(shown))
	for i, c := range shown {
		text, truncated := utils.Truncate(c.Body, MaxCommentChars)
		if truncated {
			text += "..."
		}
		fmt.Fprintf(&b, "Comment %d by %s: %s\n", i+1, placeholder(c.Author, "unknown"), text)
	}
	return b.String()
}

func placeholder(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
