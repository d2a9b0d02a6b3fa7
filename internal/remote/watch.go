package remote

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/blackmichael/timeline/internal/domain"
	"github.com/blackmichael/timeline/internal/httpserver"
)

// errStreamClosed is reported when the server ends a watch stream cleanly.
var errStreamClosed = errors.New("watch stream closed by server")

// Watch streams snapshots of collection from the server. Connection failures
// are delivered as error events and the client reconnects with exponential
// backoff; after a reconnect the server sends a fresh snapshot, so no change
// is lost. The channel closes once ctx is done.
func (c *Client) Watch(ctx context.Context, collection string) (<-chan domain.ChangeEvent, error) {
	wsURL, err := c.watchURL(collection)
	if err != nil {
		return nil, err
	}

	out := make(chan domain.ChangeEvent)
	go func() {
		defer close(out)

		delay := c.minReconnect
		for {
			connected, err := c.stream(ctx, wsURL, out)
			if ctx.Err() != nil {
				return
			}
			if connected {
				delay = c.minReconnect
			}

			c.logger.Error("watch connection error, reconnecting",
				"collection", collection,
				"retry_in", delay,
				"error", err,
			)
			select {
			case out <- domain.ChangeEvent{Err: err}:
			case <-ctx.Done():
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay = min(delay*2, c.maxReconnect)
		}
	}()

	return out, nil
}

func (c *Client) watchURL(collection string) (string, error) {
	u, err := url.Parse(c.baseURL + recordsPath(collection) + "/watch")
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	return u.String(), nil
}

// stream runs one WebSocket session, forwarding frames to out until the
// connection fails or ctx is done. connected reports whether the dial
// succeeded.
func (c *Client) stream(ctx context.Context, wsURL string, out chan<- domain.ChangeEvent) (connected bool, err error) {
	c.logger.Debug("connecting to watch stream", "url", wsURL)

	conn, _, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return false, fmt.Errorf("dial watch stream: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	c.logger.Debug("connected to watch stream", "url", wsURL)

	for {
		var frame httpserver.WatchFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return true, errStreamClosed
			}
			return true, fmt.Errorf("read frame: %w", err)
		}

		ev := domain.ChangeEvent{Snapshot: frame.Snapshot}
		if frame.Error != "" {
			ev = domain.ChangeEvent{Err: fmt.Errorf("server: %s", frame.Error)}
		} else if ev.Snapshot == nil {
			ev.Snapshot = domain.Snapshot{}
		}

		select {
		case out <- ev:
		case <-ctx.Done():
			return true, ctx.Err()
		}
	}
}
