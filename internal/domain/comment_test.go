package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

var ada = Author{DisplayName: "Ada", UID: "u1"}

func TestCommentRecordKeys(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 250_000_000, time.UTC)

	text := NewComment("nice!", "", ada, at).Record()
	if text["text"] != "nice!" {
		t.Errorf("expected text 'nice!', got %v", text["text"])
	}
	if _, ok := text["audioStorageURL"]; ok {
		t.Error("text comment should not carry an audio key")
	}
	if ts, ok := text["timestamp"].(float64); !ok || ts != 1709294400.25 {
		t.Errorf("expected timestamp 1709294400.25, got %v", text["timestamp"])
	}

	audio := NewComment("", "blob://audioComment/a1", ada, at).Record()
	if _, ok := audio["text"]; ok {
		t.Error("audio comment should not carry a text key")
	}
	if audio["audioStorageURL"] != "blob://audioComment/a1" {
		t.Errorf("unexpected audio url %v", audio["audioStorageURL"])
	}
}

func TestCommentRoundTrip(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 123_456_789, time.UTC)

	tests := []struct {
		name    string
		comment Comment
	}{
		{"text", NewComment("hello", "", ada, at)},
		{"audio", NewComment("", "blob://audioComment/x", ada, at)},
		{"both", NewComment("hi", "blob://audioComment/y", ada, at)},
		{"neither", NewComment("", "", ada, at)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.comment.Record())
			if err != nil {
				t.Fatalf("marshal failed: %v", err)
			}
			var wire any
			if err := json.Unmarshal(data, &wire); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}

			got, err := CommentFromRecord(wire)
			if err != nil {
				t.Fatalf("CommentFromRecord failed: %v", err)
			}
			if got.Text != tt.comment.Text || got.AudioURL != tt.comment.AudioURL {
				t.Errorf("payload mismatch: got %+v, want %+v", got, tt.comment)
			}
			if got.Author != tt.comment.Author {
				t.Errorf("author mismatch: got %+v, want %+v", got.Author, tt.comment.Author)
			}
			if !got.Timestamp.Equal(tt.comment.Timestamp) {
				t.Errorf("timestamp mismatch: got %v, want %v", got.Timestamp, tt.comment.Timestamp)
			}
		})
	}
}

func TestCommentFromRecordMalformed(t *testing.T) {
	author := map[string]any{"displayName": "Ada", "uid": "u1"}

	tests := []struct {
		name string
		in   any
	}{
		{"not a map", []any{1, 2}},
		{"missing author", map[string]any{"timestamp": 1.0}},
		{"bad author", map[string]any{"author": map[string]any{"uid": "u1"}, "timestamp": 1.0}},
		{"missing timestamp", map[string]any{"author": author}},
		{"string timestamp", map[string]any{"author": author, "timestamp": "yesterday"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := CommentFromRecord(tt.in); !errors.Is(err, ErrDeserialization) {
				t.Errorf("expected ErrDeserialization, got %v", err)
			}
		})
	}
}

func TestCommentFromRecordIgnoresMistypedPayload(t *testing.T) {
	rec := map[string]any{
		"author":          map[string]any{"displayName": "Ada", "uid": "u1"},
		"timestamp":       10.0,
		"text":            42.0,
		"audioStorageURL": true,
	}
	c, err := CommentFromRecord(rec)
	if err != nil {
		t.Fatalf("CommentFromRecord failed: %v", err)
	}
	if c.Text != "" || c.AudioURL != "" {
		t.Errorf("expected empty payload, got %+v", c)
	}
}

// Equality only looks at author and timestamp; differing payloads at the same
// instant compare equal. This mirrors the stored data's identity rules.
func TestCommentEqualityIgnoresPayload(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	a := NewComment("first", "", ada, at)
	b := NewComment("", "blob://audioComment/z", Author{DisplayName: "Ada (renamed)", UID: "u1"}, at)
	if !a.Equal(b) {
		t.Error("comments by the same author at the same instant should be equal")
	}
	if a.Key() != b.Key() {
		t.Errorf("keys should match: %q vs %q", a.Key(), b.Key())
	}

	later := NewComment("first", "", ada, at.Add(time.Millisecond))
	if a.Equal(later) {
		t.Error("comments at different instants should not be equal")
	}

	other := NewComment("first", "", Author{DisplayName: "Ada", UID: "u2"}, at)
	if a.Equal(other) {
		t.Error("comments by different authors should not be equal")
	}
}

func TestCommentAttachAudio(t *testing.T) {
	c := NewComment("", "", ada, time.Now())
	c.AttachAudio("blob://audioComment/late")
	if c.Record()["audioStorageURL"] != "blob://audioComment/late" {
		t.Errorf("attached audio not serialized: %v", c.Record())
	}
}
