package domain

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
)

// Feed is the in-memory cache of every known post, newest first. It is
// replaced wholesale on every refresh; a slice returned by Posts is never
// modified afterwards.
type Feed struct {
	posts atomic.Pointer[[]Post]
}

// Posts returns the most recently published snapshot.
func (f *Feed) Posts() []Post {
	p := f.posts.Load()
	if p == nil {
		return nil
	}
	return *p
}

func (f *Feed) replace(posts []Post) {
	f.posts.Store(&posts)
}

// PostsFromSnapshot parses every record in snap, skipping the ones that do
// not parse, and returns the posts sorted newest first.
func PostsFromSnapshot(snap Snapshot, logger *slog.Logger) []Post {
	posts := make([]Post, 0, len(snap))
	for key, value := range snap {
		post, err := PostFromRecord(value, key)
		if err != nil {
			logger.Warn("skipping malformed post record", "post_id", key, "error", err)
			continue
		}
		posts = append(posts, *post)
	}
	SortPosts(posts)
	return posts
}

// SortPosts orders posts by timestamp, newest first. Posts with the same
// timestamp are ordered by id.
func SortPosts(posts []Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		ti, tj := posts[i].Timestamp, posts[j].Timestamp
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return posts[i].ID < posts[j].ID
	})
}

// Subscription is a live mirror of the post collection. It owns its Feed and
// runs until Cancel is called or the context it was started with is done.
type Subscription struct {
	feed    *Feed
	updates chan []Post
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

// Feed returns the cache maintained by the subscription.
func (s *Subscription) Feed() *Feed {
	return s.feed
}

// Posts is shorthand for s.Feed().Posts().
func (s *Subscription) Posts() []Post {
	return s.feed.Posts()
}

// Updates receives each refreshed snapshot. Only the latest unread snapshot
// is kept, so a slow reader skips intermediate ones. The channel is closed
// when the subscription ends.
func (s *Subscription) Updates() <-chan []Post {
	return s.updates
}

// Done is closed once the subscription has stopped.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Cancel stops the subscription and waits for it to wind down.
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
	<-s.done
}

func (s *Subscription) run(ctx context.Context, events <-chan ChangeEvent, logger *slog.Logger) {
	defer close(s.done)
	defer close(s.updates)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Err != nil {
				logger.Error("error fetching posts", "error", ev.Err)
				continue
			}

			posts := PostsFromSnapshot(ev.Snapshot, logger)
			s.feed.replace(posts)
			s.publish(posts)
			logger.Debug("feed refreshed", "posts", len(posts), "records", len(ev.Snapshot))
		}
	}
}

// publish hands posts to the reader, displacing an unread older snapshot.
// run is the only sender, so the second send cannot block.
func (s *Subscription) publish(posts []Post) {
	select {
	case s.updates <- posts:
		return
	default:
	}
	select {
	case <-s.updates:
	default:
	}
	s.updates <- posts
}
