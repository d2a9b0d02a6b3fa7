package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func float(v float64) *float64 { return &v }

func viaJSON(t *testing.T, rec Record) any {
	t.Helper()
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var wire any
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	return wire
}

func assertPostsMatch(t *testing.T, got, want *Post) {
	t.Helper()
	if got.Title != want.Title || got.MediaURL != want.MediaURL || got.MediaType != want.MediaType {
		t.Errorf("fields mismatch: got %+v, want %+v", got, want)
	}
	if (got.Ratio == nil) != (want.Ratio == nil) || (got.Ratio != nil && *got.Ratio != *want.Ratio) {
		t.Errorf("ratio mismatch: got %v, want %v", got.Ratio, want.Ratio)
	}
	if got.Author != want.Author {
		t.Errorf("author mismatch: got %+v, want %+v", got.Author, want.Author)
	}
	if !got.Timestamp.Equal(want.Timestamp) {
		t.Errorf("timestamp mismatch: got %v, want %v", got.Timestamp, want.Timestamp)
	}
	if len(got.Comments) != len(want.Comments) {
		t.Fatalf("expected %d comments, got %d", len(want.Comments), len(got.Comments))
	}
	for i := range want.Comments {
		g, w := got.Comments[i], want.Comments[i]
		if g.Text != w.Text || g.AudioURL != w.AudioURL || !g.Equal(w) {
			t.Errorf("comment %d mismatch: got %+v, want %+v", i, g, w)
		}
	}
}

func TestPostRecordScenario(t *testing.T) {
	post := NewPost("Hello", MediaImage, "blob://img/abc", float(1.5), ada, time.Now())
	rec := post.Record()

	if rec["title"] != "Hello" {
		t.Errorf("expected title 'Hello', got %v", rec["title"])
	}
	if rec["mediaURL"] != "blob://img/abc" {
		t.Errorf("expected mediaURL 'blob://img/abc', got %v", rec["mediaURL"])
	}
	if rec["mediaType"] != "image" {
		t.Errorf("expected mediaType 'image', got %v", rec["mediaType"])
	}
	if rec["ratio"] != 1.5 {
		t.Errorf("expected ratio 1.5, got %v", rec["ratio"])
	}
	if _, ok := rec["comments"]; ok {
		t.Error("post without comments should not carry a comments key")
	}
	if _, ok := rec["author"].(Record); !ok {
		t.Errorf("expected nested author record, got %T", rec["author"])
	}
}

func TestPostRoundTrip(t *testing.T) {
	at := time.Date(2024, 5, 6, 7, 8, 9, 987_654_321, time.UTC)
	bob := Author{DisplayName: "Bob", UID: "u2"}

	withComments := NewPost("Sunset", MediaImage, "blob://image/1", float(0.75), ada, at)
	for i := 0; i < 12; i++ {
		withComments.Comments = append(withComments.Comments,
			NewComment("c", "", bob, at.Add(time.Duration(i)*time.Second)))
	}
	withComments.Comments = append(withComments.Comments, NewComment("", "blob://audioComment/2", ada, at))

	tests := []struct {
		name string
		post *Post
	}{
		{"image with ratio", NewPost("Hello", MediaImage, "blob://image/abc", float(1.5), ada, at)},
		{"audio without ratio", NewPost("Song", MediaAudio, "blob://audio/def", nil, bob, at)},
		{"comments keep order", withComments},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PostFromRecord(viaJSON(t, tt.post.Record()), "p1")
			if err != nil {
				t.Fatalf("PostFromRecord failed: %v", err)
			}
			if got.ID != "p1" {
				t.Errorf("expected id 'p1', got %q", got.ID)
			}
			assertPostsMatch(t, got, tt.post)
		})
	}
}

func TestPostFromRecordCommentShapes(t *testing.T) {
	author := map[string]any{"displayName": "Ada", "uid": "u1"}
	base := func(comments any) map[string]any {
		rec := map[string]any{
			"title":     "t",
			"mediaURL":  "u",
			"mediaType": "audio",
			"author":    author,
			"timestamp": 100.0,
		}
		if comments != nil {
			rec["comments"] = comments
		}
		return rec
	}
	c := func(text string) map[string]any {
		return map[string]any{"text": text, "author": author, "timestamp": 1.0}
	}

	tests := []struct {
		name  string
		rec   map[string]any
		texts []string
	}{
		{"absent", base(nil), nil},
		{"list", base([]any{c("a"), c("b")}), []string{"a", "b"}},
		{"list with hole", base([]any{c("a"), nil, c("b")}), []string{"a", "b"}},
		{"map numeric keys", base(map[string]any{"10": c("k"), "2": c("c"), "0": c("a")}), []string{"a", "c", "k"}},
		{"map push keys", base(map[string]any{"-Nb": c("y"), "-Na": c("x")}), []string{"x", "y"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := PostFromRecord(tt.rec, "id")
			if err != nil {
				t.Fatalf("PostFromRecord failed: %v", err)
			}
			if len(p.Comments) != len(tt.texts) {
				t.Fatalf("expected %d comments, got %d", len(tt.texts), len(p.Comments))
			}
			for i, want := range tt.texts {
				if p.Comments[i].Text != want {
					t.Errorf("comment %d: expected %q, got %q", i, want, p.Comments[i].Text)
				}
			}
		})
	}
}

func TestPostFromRecordMalformed(t *testing.T) {
	good := func() map[string]any {
		return map[string]any{
			"title":     "t",
			"mediaURL":  "u",
			"mediaType": "image",
			"author":    map[string]any{"displayName": "Ada", "uid": "u1"},
			"timestamp": 100.0,
		}
	}

	tests := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"missing title", func(m map[string]any) { delete(m, "title") }},
		{"missing media url", func(m map[string]any) { delete(m, "mediaURL") }},
		{"unknown media type", func(m map[string]any) { m["mediaType"] = "video" }},
		{"missing author", func(m map[string]any) { delete(m, "author") }},
		{"string timestamp", func(m map[string]any) { m["timestamp"] = "now" }},
		{"comments not a collection", func(m map[string]any) { m["comments"] = "none" }},
		{"bad comment", func(m map[string]any) { m["comments"] = []any{map[string]any{"text": "x"}} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := good()
			tt.mutate(rec)
			if _, err := PostFromRecord(rec, "id"); !errors.Is(err, ErrDeserialization) {
				t.Errorf("expected ErrDeserialization, got %v", err)
			}
		})
	}

	if _, err := PostFromRecord("string", "id"); !errors.Is(err, ErrDeserialization) {
		t.Errorf("expected ErrDeserialization for non-map, got %v", err)
	}
}

func TestPostCloneIsIndependent(t *testing.T) {
	p := NewPost("t", MediaImage, "u", float(2), ada, time.Now())
	p.Comments = append(p.Comments, NewComment("a", "", ada, time.Now()))

	c := p.Clone()
	c.Comments = append(c.Comments, NewComment("b", "", ada, time.Now()))
	*c.Ratio = 3

	if len(p.Comments) != 1 {
		t.Errorf("original comments changed: %d", len(p.Comments))
	}
	if *p.Ratio != 2 {
		t.Errorf("original ratio changed: %v", *p.Ratio)
	}
}
