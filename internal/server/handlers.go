package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/samber/lo"

	"github.com/Qiujialin/DouyinDm/internal/config"
	"github.com/Qiujialin/DouyinDm/internal/event"
	"github.com/Qiujialin/DouyinDm/internal/registry"
	"github.com/Qiujialin/DouyinDm/internal/resolver"
)

const defaultHistoryCount = 50

type roomDTO struct {
	ID       string `json:"id"`
	WebRID   string `json:"web_rid"`
	Title    string `json:"title,omitempty"`
	Owner    string `json:"owner,omitempty"`
	State    string `json:"state"`
	Buffered int    `json:"buffered"`
	LastErr  string `json:"last_error,omitempty"`
}

type eventDTO struct {
	RoomID       string `json:"room_id"`
	Title        string `json:"title,omitempty"`
	Owner        string `json:"owner,omitempty"`
	Time         string `json:"time"`
	Method       string `json:"method"`
	Username     string `json:"username,omitempty"`
	Content      string `json:"content,omitempty"`
	TotalViewers uint64 `json:"total_viewers,omitempty"`
}

type statusDTO struct {
	TotalRooms     int    `json:"total_rooms"`
	RunningRooms   int    `json:"running_rooms"`
	FilterPattern  string `json:"filter_pattern,omitempty"`
	GlobalBuffered int    `json:"global_buffered"`
}

type errorDTO struct {
	Error string `json:"error"`
}

func toRoomDTO(room registry.Room) roomDTO {
	return roomDTO{
		ID:       room.ID,
		WebRID:   room.WebRID,
		Title:    room.Title,
		Owner:    room.Owner,
		State:    string(room.State),
		Buffered: room.Buffered,
		LastErr:  room.LastErr,
	}
}

func toEventDTO(rec event.Record) eventDTO {
	dto := eventDTO{
		RoomID: rec.Origin.RoomID,
		Title:  rec.Origin.Title,
		Owner:  rec.Origin.Owner,
		Time:   rec.Timestamp(),
		Method: rec.Event.Method(),
	}
	switch ev := rec.Event.(type) {
	case event.Chat:
		dto.Username = ev.Username
		dto.Content = ev.Content
	case event.ViewerCount:
		dto.TotalViewers = ev.TotalViewers
	}
	return dto
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorDTO{Error: err.Error()})
}

// registryStatus maps registry errors to HTTP statuses.
func registryStatus(err error) int {
	switch {
	case errors.Is(err, registry.ErrRoomNotFound), errors.Is(err, resolver.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrDuplicateRoom), errors.Is(err, registry.ErrAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, registry.ErrShutdown):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.reg.Status()
	s.writeJSON(w, http.StatusOK, statusDTO{
		TotalRooms:     st.TotalRooms,
		RunningRooms:   st.RunningRooms,
		FilterPattern:  st.FilterPattern,
		GlobalBuffered: st.GlobalBuffered,
	})
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, lo.Map(s.reg.Rooms(), func(room registry.Room, _ int) roomDTO {
		return toRoomDTO(room)
	}))
}

func (s *Server) handleAddRoom(w http.ResponseWriter, r *http.Request) {
	var body struct {
		WebRID string `json:"web_rid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.WebRID == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("body must be {\"web_rid\": \"...\"}"))
		return
	}

	room, err := s.reg.Add(r.Context(), body.WebRID)
	if err != nil {
		s.writeError(w, registryStatus(err), err)
		return
	}

	s.persist()
	s.writeJSON(w, http.StatusCreated, toRoomDTO(room))
}

func (s *Server) handleRemoveRoom(w http.ResponseWriter, r *http.Request) {
	if err := s.reg.Remove(r.PathValue("id")); err != nil {
		s.writeError(w, registryStatus(err), err)
		return
	}
	s.persist()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStartRoom(w http.ResponseWriter, r *http.Request) {
	if err := s.reg.Start(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, registryStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStopRoom(w http.ResponseWriter, r *http.Request) {
	if err := s.reg.Stop(r.PathValue("id")); err != nil {
		s.writeError(w, registryStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStartAll(w http.ResponseWriter, r *http.Request) {
	errs := s.reg.StartAll(r.Context())
	failed := lo.MapValues(errs, func(err error, _ string) string {
		return err.Error()
	})
	s.writeJSON(w, http.StatusOK, map[string]any{
		"failed": failed,
	})
}

func (s *Server) handleStopAll(w http.ResponseWriter, r *http.Request) {
	s.reg.StopAll()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetFilter(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"pattern": s.reg.FilterPattern(),
	})
}

func (s *Server) handleSetFilter(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Pattern string `json:"pattern"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("body must be {\"pattern\": \"...\"}"))
		return
	}

	if err := s.reg.SetFilter(body.Pattern); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	s.persist()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	count := defaultHistoryCount
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeError(w, http.StatusBadRequest, errors.New("count must be a positive integer"))
			return
		}
		count = n
	}

	records, err := s.reg.History(r.URL.Query().Get("room_id"), count)
	if err != nil {
		s.writeError(w, registryStatus(err), err)
		return
	}

	s.writeJSON(w, http.StatusOK, lo.Map(records, func(rec event.Record, _ int) eventDTO {
		return toEventDTO(rec)
	}))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	rf := config.RoomFile{Filter: s.reg.FilterPattern()}
	for _, room := range s.reg.Rooms() {
		rf.Rooms = append(rf.Rooms, config.RoomInfo{
			RoomID: room.ID,
			WebRID: room.WebRID,
			Title:  room.Title,
			Owner:  room.Owner,
		})
	}
	s.writeJSON(w, http.StatusOK, rf)
}

// handleImport merges an exported room list into the registry. Rooms are
// registered from their persisted metadata without re-resolving; duplicates
// are skipped and reported.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var rf config.RoomFile
	if err := json.NewDecoder(r.Body).Decode(&rf); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("body must be an exported room list"))
		return
	}

	skipped := make([]string, 0)
	added := 0
	for _, info := range rf.Rooms {
		if info.RoomID == "" {
			skipped = append(skipped, info.WebRID)
			continue
		}
		_, err := s.reg.Restore(event.Origin{
			RoomID: info.RoomID,
			WebRID: info.WebRID,
			Title:  info.Title,
			Owner:  info.Owner,
		})
		if err != nil {
			skipped = append(skipped, info.RoomID)
			continue
		}
		added++
	}

	if rf.Filter != "" {
		if err := s.reg.SetFilter(rf.Filter); err != nil {
			s.logger.Warn("imported filter rejected", "pattern", rf.Filter, "error", err)
		}
	}

	s.persist()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"added":   added,
		"skipped": skipped,
	})
}
