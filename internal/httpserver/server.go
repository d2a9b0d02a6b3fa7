package httpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/blackmichael/timeline/internal/config"
	"github.com/blackmichael/timeline/internal/domain"
)

const (
	maxRecordBytes = 1 << 20
	maxBlobBytes   = 32 << 20

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// BlobStore is the blob storage exposed by the server. Get serves downloads
// of the URLs handed out by URL.
type BlobStore interface {
	domain.BlobStore
	Get(ctx context.Context, path string) ([]byte, *domain.BlobMetadata, error)
}

// Server is the HTTP server that hosts the record store, blob store and
// change stream used by timeline clients.
type Server struct {
	cfg        *config.Config
	records    domain.RecordBackend
	blobs      BlobStore
	logger     *slog.Logger
	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// NewServer creates a new HTTP server over the given stores.
func NewServer(cfg *config.Config, records domain.RecordBackend, blobs BlobStore, logger *slog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		records: records,
		blobs:   blobs,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /v1/records/{collection}", s.handlePush)
	mux.HandleFunc("PUT /v1/records/{collection}/{key}", s.handleSet)
	mux.HandleFunc("GET /v1/records/{collection}", s.handleSnapshot)
	mux.HandleFunc("GET /v1/records/{collection}/watch", s.handleWatch)
	mux.HandleFunc("PUT /v1/blobs/{path...}", s.handlePutBlob)
	mux.HandleFunc("GET /v1/blobs/{path...}", s.handleGetBlob)
	mux.HandleFunc("GET /v1/blob-urls/{path...}", s.handleBlobURL)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      withLogging(logger, mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the server's root handler, including request logging.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server. Open watch streams are
// hijacked connections and are closed by their request contexts instead.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("collection")

	rec, ok := s.decodeRecord(w, r)
	if !ok {
		return
	}

	key, err := s.records.Push(r.Context(), collection, rec)
	if err != nil {
		s.logger.Error("failed to push record", "collection", collection, "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to store record")
		return
	}

	s.logger.Info("record pushed", "collection", collection, "key", key)
	writeJSON(w, http.StatusCreated, PushResponse{Key: key})
}

func (s *Server) handleSet(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("collection")
	key := r.PathValue("key")

	rec, ok := s.decodeRecord(w, r)
	if !ok {
		return
	}

	if err := s.records.Set(r.Context(), collection, key, rec); err != nil {
		s.logger.Error("failed to set record", "collection", collection, "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to store record")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) decodeRecord(w http.ResponseWriter, r *http.Request) (domain.Record, bool) {
	var rec domain.Record
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRecordBytes)).Decode(&rec); err != nil {
		s.logger.Warn("invalid record body", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadRequest, "InvalidRequest", "body must be a JSON object")
		return nil, false
	}
	if rec == nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "body must be a JSON object")
		return nil, false
	}
	return rec, true
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("collection")

	snap, err := s.records.Snapshot(r.Context(), collection)
	if err != nil {
		s.logger.Error("failed to read snapshot", "collection", collection, "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to read records")
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("collection")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		s.logger.Warn("websocket upgrade failed", "collection", collection, "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The client never sends data frames; reading is only needed to process
	// pongs and notice when the peer goes away.
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	events, err := s.records.Watch(ctx, collection)
	if err != nil {
		s.logger.Error("failed to watch collection", "collection", collection, "error", err)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "watch failed"),
			time.Now().Add(writeWait))
		return
	}

	s.logger.Info("watch stream opened", "collection", collection)
	defer s.logger.Info("watch stream closed", "collection", collection)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-events:
			if !ok {
				return
			}
			frame := WatchFrame{Collection: collection, Snapshot: ev.Snapshot}
			if ev.Err != nil {
				frame.Snapshot = nil
				frame.Error = ev.Err.Error()
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(frame); err != nil {
				s.logger.Warn("failed to write watch frame", "collection", collection, "error", err)
				return
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				s.logger.Warn("failed to ping watcher", "collection", collection, "error", err)
				return
			}
		}
	}
}

func (s *Server) handlePutBlob(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBlobBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "PayloadTooLarge", "blob exceeds size limit")
			return
		}
		s.logger.Warn("failed to read blob body", "path", path, "error", err)
		writeError(w, http.StatusBadRequest, "InvalidRequest", "failed to read body")
		return
	}

	meta, err := s.blobs.Put(r.Context(), path, data)
	if err != nil {
		s.logger.Error("failed to store blob", "path", path, "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to store blob")
		return
	}

	s.logger.Info("blob stored", "path", path, "size", meta.Size, "content_type", meta.ContentType)
	writeJSON(w, http.StatusCreated, meta)
}

func (s *Server) handleGetBlob(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")

	data, meta, err := s.blobs.Get(r.Context(), path)
	if errors.Is(err, domain.ErrBlobNotFound) {
		writeError(w, http.StatusNotFound, "NotFound", "blob not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to read blob", "path", path, "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to read blob")
		return
	}

	w.Header().Set("Content-Type", meta.ContentType)
	w.Header().Set("ETag", `"`+meta.MD5+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleBlobURL(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")

	url, err := s.blobs.URL(r.Context(), path)
	if errors.Is(err, domain.ErrBlobNotFound) {
		writeError(w, http.StatusNotFound, "NotFound", "blob not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to resolve blob url", "path", path, "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to resolve blob url")
		return
	}

	writeJSON(w, http.StatusOK, URLResponse{URL: url})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:   errType,
		Message: message,
	})
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Hijack lets the WebSocket upgrader take over the connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	w.status = http.StatusSwitchingProtocols
	return http.NewResponseController(w.ResponseWriter).Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
