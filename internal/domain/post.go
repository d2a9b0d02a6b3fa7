package domain

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

const (
	postTitleKey     = "title"
	postMediaURLKey  = "mediaURL"
	postMediaTypeKey = "mediaType"
	postRatioKey     = "ratio"
	postAuthorKey    = "author"
	postTimestampKey = "timestamp"
	postCommentsKey  = "comments"
)

// MediaType is the kind of media a post carries. Its string value doubles as
// the blob storage category for the post's media.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaAudio MediaType = "audio"
)

// ParseMediaType validates a wire media type.
func ParseMediaType(s string) (MediaType, error) {
	switch MediaType(s) {
	case MediaImage, MediaAudio:
		return MediaType(s), nil
	default:
		return "", fmt.Errorf("%w: unknown media type %q", ErrDeserialization, s)
	}
}

// Post is a timeline entry: a titled image or audio clip plus its comments.
type Post struct {
	// ID is assigned by the record backend on first persist and reused for
	// every later write. Empty until then.
	ID string

	Title     string
	MediaURL  string
	MediaType MediaType

	// Ratio is the image aspect ratio, if known.
	Ratio *float64

	Author    Author
	Timestamp time.Time

	// Comments are kept in append order.
	Comments []Comment
}

// NewPost creates an unpersisted post.
func NewPost(title string, mediaType MediaType, mediaURL string, ratio *float64, author Author, at time.Time) *Post {
	var r *float64
	if ratio != nil {
		v := *ratio
		r = &v
	}
	return &Post{
		Title:     title,
		MediaURL:  mediaURL,
		MediaType: mediaType,
		Ratio:     r,
		Author:    author,
		Timestamp: normalizeTime(at),
	}
}

// Record returns the wire form of the post. Comments are written as a map
// keyed by their position; the key is omitted when there are none.
func (p *Post) Record() Record {
	rec := Record{
		postTitleKey:     p.Title,
		postMediaURLKey:  p.MediaURL,
		postMediaTypeKey: string(p.MediaType),
		postAuthorKey:    p.Author.Record(),
		postTimestampKey: epochSeconds(p.Timestamp),
	}
	if p.Ratio != nil {
		rec[postRatioKey] = *p.Ratio
	}
	if len(p.Comments) > 0 {
		comments := make(map[string]any, len(p.Comments))
		for i, c := range p.Comments {
			comments[strconv.Itoa(i)] = c.Record()
		}
		rec[postCommentsKey] = comments
	}
	return rec
}

// PostFromRecord parses a post record stored under id.
func PostFromRecord(v any, id string) (*Post, error) {
	rec, ok := asMap(v)
	if !ok {
		return nil, fmt.Errorf("%w: post is %T, want map", ErrDeserialization, v)
	}

	title, err := requiredString(rec, postTitleKey)
	if err != nil {
		return nil, err
	}
	mediaURL, err := requiredString(rec, postMediaURLKey)
	if err != nil {
		return nil, err
	}
	rawType, err := requiredString(rec, postMediaTypeKey)
	if err != nil {
		return nil, err
	}
	mediaType, err := ParseMediaType(rawType)
	if err != nil {
		return nil, err
	}
	authorRec, err := requiredRecord(rec, postAuthorKey)
	if err != nil {
		return nil, err
	}
	author, err := AuthorFromRecord(authorRec)
	if err != nil {
		return nil, err
	}
	ts, err := requiredNumber(rec, postTimestampKey)
	if err != nil {
		return nil, err
	}

	post := &Post{
		ID:        id,
		Title:     title,
		MediaURL:  mediaURL,
		MediaType: mediaType,
		Author:    author,
		Timestamp: timeFromEpochSeconds(ts),
	}
	if r, ok := asNumber(rec[postRatioKey]); ok {
		post.Ratio = &r
	}

	comments, err := commentsFromValue(rec[postCommentsKey])
	if err != nil {
		return nil, err
	}
	post.Comments = comments
	return post, nil
}

// commentsFromValue accepts the comments collection either as a list or as a
// map keyed by position. Map entries with numeric keys come first, in numeric
// order; any others follow in key order.
func commentsFromValue(v any) ([]Comment, error) {
	var raw []any
	switch c := v.(type) {
	case nil:
		return nil, nil
	case []any:
		raw = c
	case []map[string]any:
		for _, m := range c {
			raw = append(raw, m)
		}
	default:
		m, ok := asMap(v)
		if !ok {
			return nil, fmt.Errorf("%w: comments is %T, want map or list", ErrDeserialization, v)
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			ni, errI := strconv.Atoi(keys[i])
			nj, errJ := strconv.Atoi(keys[j])
			switch {
			case errI == nil && errJ == nil:
				return ni < nj
			case errI == nil:
				return true
			case errJ == nil:
				return false
			default:
				return keys[i] < keys[j]
			}
		})
		for _, k := range keys {
			raw = append(raw, m[k])
		}
	}

	comments := make([]Comment, 0, len(raw))
	for i, item := range raw {
		if item == nil {
			continue
		}
		c, err := CommentFromRecord(item)
		if err != nil {
			return nil, fmt.Errorf("comments[%d]: %w", i, err)
		}
		comments = append(comments, c)
	}
	return comments, nil
}

// Clone returns a deep copy of p. Posts read from a published Feed are shared
// and must be cloned before they are modified.
func (p *Post) Clone() *Post {
	c := *p
	if p.Ratio != nil {
		r := *p.Ratio
		c.Ratio = &r
	}
	if p.Comments != nil {
		c.Comments = append([]Comment(nil), p.Comments...)
	}
	return &c
}
