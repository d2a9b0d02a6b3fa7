package domain

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DefaultCollection is the record collection that holds posts.
const DefaultCollection = "posts"

// Option configures a PostStore.
type Option func(*PostStore)

// WithCollection stores posts in the named collection instead of "posts".
func WithCollection(name string) Option {
	return func(s *PostStore) { s.collection = name }
}

// WithIDGenerator replaces the generator used for media ids.
func WithIDGenerator(fn func() string) Option {
	return func(s *PostStore) { s.newID = fn }
}

// WithClock replaces the clock used to timestamp posts and comments.
func WithClock(fn func() time.Time) Option {
	return func(s *PostStore) { s.now = fn }
}

// WithLenientAudioComments makes AddAudioComment report success whenever a
// user is signed in, logging upload and persist failures instead of
// returning them.
func WithLenientAudioComments() Option {
	return func(s *PostStore) { s.lenientAudio = true }
}

// PostStore coordinates media uploads and post persistence, and mirrors the
// post collection into a Feed.
//
// Creating a post is two steps that are not transactional: the media is
// uploaded, then the post record is written. If the write fails the uploaded
// blob is left behind with nothing referencing it. Nothing is retried.
type PostStore struct {
	records      RecordBackend
	media        *MediaStore
	auth         Authenticator
	logger       *slog.Logger
	collection   string
	newID        func() string
	now          func() time.Time
	lenientAudio bool
}

// NewPostStore creates a PostStore with the given collaborators.
func NewPostStore(records RecordBackend, media *MediaStore, auth Authenticator, logger *slog.Logger, opts ...Option) *PostStore {
	s := &PostStore{
		records:    records,
		media:      media,
		auth:       auth,
		logger:     logger,
		collection: DefaultCollection,
		newID:      uuid.NewString,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *PostStore) currentAuthor(ctx context.Context) (Author, error) {
	id, err := s.auth.CurrentUser(ctx)
	if err != nil {
		return Author{}, fmt.Errorf("%w: %w", ErrNotAuthenticated, err)
	}
	return AuthorFromIdentity(id)
}

// CreatePost uploads data as the post's media and persists a new post
// authored by the current user. No record is written if the upload fails.
func (s *PostStore) CreatePost(ctx context.Context, title string, mediaType MediaType, data []byte, ratio *float64) (*Post, error) {
	if _, err := ParseMediaType(string(mediaType)); err != nil {
		return nil, fmt.Errorf("create post: unsupported media type %q", mediaType)
	}

	author, err := s.currentAuthor(ctx)
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}

	mediaID := s.newID()
	mediaURL, err := s.media.Upload(ctx, data, string(mediaType), mediaID)
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}

	post := NewPost(title, mediaType, mediaURL, ratio, author, s.now())

	key, err := s.records.Push(ctx, s.collection, post.Record())
	if err != nil {
		s.logger.Error("error posting post", "media_url", mediaURL, "error", err)
		return nil, fmt.Errorf("create post: %w: %w", ErrPersist, err)
	}
	post.ID = key

	s.logger.Info("post created", "post_id", key, "media_type", mediaType, "author", author.UID)
	return post, nil
}

// AddTextComment appends a text comment by the current user to post and
// saves it. Without a signed-in user nothing changes and ErrNotAuthenticated
// is returned.
func (s *PostStore) AddTextComment(ctx context.Context, text string, post *Post) error {
	author, err := s.currentAuthor(ctx)
	if err != nil {
		return fmt.Errorf("add comment: %w", err)
	}

	post.Comments = append(post.Comments, NewComment(text, "", author, s.now()))
	return s.SavePost(ctx, post)
}

// AddAudioComment uploads data as an audio comment by the current user,
// appends it to post and saves the post. If the upload fails the post is
// left unchanged.
func (s *PostStore) AddAudioComment(ctx context.Context, data []byte, post *Post) error {
	author, err := s.currentAuthor(ctx)
	if err != nil {
		return fmt.Errorf("add audio comment: %w", err)
	}

	audioURL, err := s.media.Upload(ctx, data, AudioCommentCategory, s.newID())
	if err != nil {
		if s.lenientAudio {
			s.logger.Warn("audio comment dropped", "post_id", post.ID, "error", err)
			return nil
		}
		return fmt.Errorf("add audio comment: %w", err)
	}

	comment := NewComment("", "", author, s.now())
	comment.AttachAudio(audioURL)
	post.Comments = append(post.Comments, comment)

	if err := s.SavePost(ctx, post); err != nil {
		if s.lenientAudio {
			s.logger.Warn("audio comment not saved", "post_id", post.ID, "error", err)
			return nil
		}
		return fmt.Errorf("add audio comment: %w", err)
	}
	return nil
}

// SavePost writes post under its existing id. A post that has never been
// persisted has no id and is not written.
func (s *PostStore) SavePost(ctx context.Context, post *Post) error {
	if post.ID == "" {
		s.logger.Debug("not saving post without id", "title", post.Title)
		return nil
	}

	if err := s.records.Set(ctx, s.collection, post.ID, post.Record()); err != nil {
		s.logger.Error("error saving post", "post_id", post.ID, "error", err)
		return fmt.Errorf("save post %s: %w: %w", post.ID, ErrPersist, err)
	}
	return nil
}

// ListPosts reads the collection once and returns its posts newest first.
// Records that do not parse are skipped.
func (s *PostStore) ListPosts(ctx context.Context) ([]Post, error) {
	snap, err := s.records.Snapshot(ctx, s.collection)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return PostsFromSnapshot(snap, s.logger), nil
}

// ObservePosts subscribes to the post collection. Every change notification
// replaces the subscription's Feed with the parsed, sorted snapshot.
// Transport errors are logged and the subscription keeps listening.
func (s *PostStore) ObservePosts(ctx context.Context) (*Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)

	events, err := s.records.Watch(ctx, s.collection)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("observe posts: %w", err)
	}

	sub := &Subscription{
		feed:    &Feed{},
		updates: make(chan []Post, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go sub.run(ctx, events, s.logger)
	return sub, nil
}
