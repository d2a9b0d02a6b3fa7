package httpserver

import "github.com/blackmichael/timeline/internal/domain"

// PushResponse is the body returned by POST /v1/records/{collection}.
type PushResponse struct {
	Key string `json:"key"`
}

// URLResponse is the body returned by GET /v1/blob-urls/{path...}.
type URLResponse struct {
	URL string `json:"url"`
}

// WatchFrame is one message on the watch WebSocket. Exactly one of Snapshot
// and Error is meaningful; an error frame does not end the stream.
type WatchFrame struct {
	Collection string          `json:"collection"`
	Snapshot   domain.Snapshot `json:"snapshot"`
	Error      string          `json:"error,omitempty"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
