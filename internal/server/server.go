package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Qiujialin/DouyinDm/internal/config"
	"github.com/Qiujialin/DouyinDm/internal/registry"
	"github.com/Qiujialin/DouyinDm/internal/sink"
)

// Server is the HTTP control surface over a registry and its sink.
type Server struct {
	reg       *registry.Registry
	sink      *sink.Sink
	logger    *slog.Logger
	statePath string

	upgrader websocket.Upgrader
	http     *http.Server
}

// New creates a server listening on addr. statePath may be empty to
// disable room-file persistence.
func New(addr string, reg *registry.Registry, snk *sink.Sink, statePath string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		reg:       reg,
		sink:      snk,
		logger:    logger,
		statePath: statePath,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.http = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	return s
}

// Handler builds the route table. Exposed separately for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/rooms", s.handleListRooms)
	mux.HandleFunc("POST /api/rooms", s.handleAddRoom)
	mux.HandleFunc("DELETE /api/rooms/{id}", s.handleRemoveRoom)
	mux.HandleFunc("POST /api/rooms/{id}/start", s.handleStartRoom)
	mux.HandleFunc("POST /api/rooms/{id}/stop", s.handleStopRoom)
	mux.HandleFunc("POST /api/rooms/start_all", s.handleStartAll)
	mux.HandleFunc("POST /api/rooms/stop_all", s.handleStopAll)
	mux.HandleFunc("GET /api/filter", s.handleGetFilter)
	mux.HandleFunc("PUT /api/filter", s.handleSetFilter)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("POST /api/import", s.handleImport)
	mux.HandleFunc("GET /ws", s.handleStream)

	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

// persist rewrites the room file from current registry state. Failures are
// logged, not returned: the in-memory state is authoritative.
func (s *Server) persist() {
	if s.statePath == "" {
		return
	}

	rf := &config.RoomFile{Filter: s.reg.FilterPattern()}
	for _, room := range s.reg.Rooms() {
		rf.Rooms = append(rf.Rooms, config.RoomInfo{
			RoomID: room.ID,
			WebRID: room.WebRID,
			Title:  room.Title,
			Owner:  room.Owner,
		})
	}

	if err := config.SaveRoomFile(s.statePath, rf); err != nil {
		s.logger.Error("failed to persist room file", "path", s.statePath, "error", err)
	}
}
