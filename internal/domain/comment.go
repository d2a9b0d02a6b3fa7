package domain

import (
	"fmt"
	"time"
)

const (
	commentTextKey      = "text"
	commentAudioURLKey  = "audioStorageURL"
	commentAuthorKey    = "author"
	commentTimestampKey = "timestamp"
)

// Comment is a text or audio reply attached to a post.
type Comment struct {
	// Text is the comment body. Empty for audio comments.
	Text string

	// AudioURL is the retrieval reference of the recorded audio, if any.
	AudioURL string

	Author    Author
	Timestamp time.Time
}

// NewComment creates a comment written by author at the given instant.
// Either text or audioURL may be empty.
func NewComment(text, audioURL string, author Author, at time.Time) Comment {
	return Comment{
		Text:      text,
		AudioURL:  audioURL,
		Author:    author,
		Timestamp: normalizeTime(at),
	}
}

// AttachAudio sets the audio reference once its upload has completed.
func (c *Comment) AttachAudio(url string) {
	c.AudioURL = url
}

// Equal compares comments by author and timestamp only. Two comments from the
// same author at the same instant are equal even if their payloads differ.
func (c Comment) Equal(other Comment) bool {
	return c.Author.Equal(other.Author) && c.Timestamp.Equal(other.Timestamp)
}

// Key returns a map key consistent with Equal.
func (c Comment) Key() string {
	return fmt.Sprintf("%s@%d", c.Author.UID, c.Timestamp.UnixMilli())
}

// Record returns the wire form of the comment. The text and audio keys are
// written only when set.
func (c Comment) Record() Record {
	rec := Record{
		commentAuthorKey:    c.Author.Record(),
		commentTimestampKey: epochSeconds(c.Timestamp),
	}
	if c.Text != "" {
		rec[commentTextKey] = c.Text
	}
	if c.AudioURL != "" {
		rec[commentAudioURLKey] = c.AudioURL
	}
	return rec
}

// CommentFromRecord parses a comment record. Text and audio are optional.
func CommentFromRecord(v any) (Comment, error) {
	rec, ok := asMap(v)
	if !ok {
		return Comment{}, fmt.Errorf("%w: comment is %T, want map", ErrDeserialization, v)
	}
	authorRec, err := requiredRecord(rec, commentAuthorKey)
	if err != nil {
		return Comment{}, fmt.Errorf("comment: %w", err)
	}
	author, err := AuthorFromRecord(authorRec)
	if err != nil {
		return Comment{}, fmt.Errorf("comment: %w", err)
	}
	ts, err := requiredNumber(rec, commentTimestampKey)
	if err != nil {
		return Comment{}, fmt.Errorf("comment: %w", err)
	}

	c := Comment{
		Author:    author,
		Timestamp: timeFromEpochSeconds(ts),
	}
	c.Text, _ = optionalString(rec, commentTextKey)
	c.AudioURL, _ = optionalString(rec, commentAudioURLKey)
	return c, nil
}
