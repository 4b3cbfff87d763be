package models

import (
	"encoding/json"
	"strings"
	"time"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// UnmarshalJSON accepts tickets in this package's shape and in the GitHub REST shape: user may
// be a login string or a {"login": ...} object, labels may be names or {"name": ...} objects.
// Timestamps that cannot be parsed are left zero.
func (t *Ticket) UnmarshalJSON(data []byte) error {
	type plain Ticket
	aux := struct {
		*plain
		Author    json.RawMessage `json:"user"`
		Labels    json.RawMessage `json:"labels"`
		CreatedAt json.RawMessage `json:"created_at"`
		UpdatedAt json.RawMessage `json:"updated_at"`
	}{plain: (*plain)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	t.Author = decodeLogin(aux.Author)
	t.Labels = decodeLabels(aux.Labels)
	t.CreatedAt = decodeTime(aux.CreatedAt)
	t.UpdatedAt = decodeTime(aux.UpdatedAt)
	return nil
}

func (c *Comment) UnmarshalJSON(data []byte) error {
	type plain Comment
	aux := struct {
		*plain
		Author    json.RawMessage `json:"user"`
		CreatedAt json.RawMessage `json:"created_at"`
		UpdatedAt json.RawMessage `json:"updated_at"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	c.Author = decodeLogin(aux.Author)
	c.CreatedAt = decodeTime(aux.CreatedAt)
	c.UpdatedAt = decodeTime(aux.UpdatedAt)
	return nil
}

func decodeLogin(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var u struct {
		Login string `json:"login"`
	}
	if err := json.Unmarshal(raw, &u); err == nil {
		return u.Login
	}
	return ""
}

func decodeLabels(raw json.RawMessage) []string {
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
			continue
		}
		var l struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(item, &l); err == nil && strings.TrimSpace(l.Name) != "" {
			out = append(out, strings.TrimSpace(l.Name))
		}
	}
	return out
}

func decodeTime(raw json.RawMessage) time.Time {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return time.Time{}
	}
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	return time.Time{}
}
