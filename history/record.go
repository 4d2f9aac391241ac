package history

import (
	"encoding/json"
	"strings"
	"time"
)

// Record is one published post. Records are never mutated once written.
type Record struct {
	Identifier  string    `json:"identifier"`
	Topic       string    `json:"topic"`
	Title       string    `json:"title"`
	PublishedAt time.Time `json:"publishedAt"`
	PostURL     string    `json:"postUrl"`

	// rawTimestamp keeps a timestamp that could not be parsed so it is
	// written back unchanged.
	rawTimestamp string
}

// legacyRecord covers the file layout written by the first automation
// script: "timestamp" instead of publishedAt, "url" instead of postUrl and
// naive local timestamps.
type legacyRecord struct {
	Identifier  string `json:"identifier"`
	PostID      string `json:"post_id"`
	Topic       string `json:"topic"`
	Title       string `json:"title"`
	PublishedAt string `json:"publishedAt"`
	Timestamp   string `json:"timestamp"`
	PostURL     string `json:"postUrl"`
	URL         string `json:"url"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// UnmarshalJSON accepts both the canonical and the legacy layout.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw legacyRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Record{
		Identifier: firstNonEmpty(raw.Identifier, raw.PostID),
		Topic:      raw.Topic,
		Title:      raw.Title,
		PostURL:    firstNonEmpty(raw.PostURL, raw.URL),
	}
	if ts := firstNonEmpty(raw.PublishedAt, raw.Timestamp); ts != "" {
		at, err := parseTimestamp(ts)
		if err != nil {
			r.rawTimestamp = ts
		} else {
			r.PublishedAt = at
		}
	}
	return nil
}

// MarshalJSON writes the canonical layout.
func (r Record) MarshalJSON() ([]byte, error) {
	type canonical Record
	if r.rawTimestamp == "" {
		return json.Marshal(canonical(r))
	}
	return json.Marshal(struct {
		Identifier  string `json:"identifier"`
		Topic       string `json:"topic"`
		Title       string `json:"title"`
		PublishedAt string `json:"publishedAt"`
		PostURL     string `json:"postUrl"`
	}{r.Identifier, r.Topic, r.Title, r.rawTimestamp, r.PostURL})
}

func parseTimestamp(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.ParseInLocation(layout, s, time.Local)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// NormalizeTopic is the duplicate-detection key for a topic.
func NormalizeTopic(topic string) string {
	return strings.ToLower(strings.Join(strings.Fields(topic), " "))
}
