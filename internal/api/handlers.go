package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-insteon/internal/bridges/insteon"
	"github.com/nerrad567/gray-logic-insteon/internal/insteon/codec"
	"github.com/nerrad567/gray-logic-insteon/internal/traffic"
)

const (
	defaultTrafficLimit = 50
	maxTrafficLimit     = 1000
)

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{
		"status":         "ok",
		"version":        s.version,
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"devices":        s.registry.Stats(),
		"stream_clients": s.hub.ClientCount(),
		"commands":       s.commands != nil,
	}
	if s.schedule != nil {
		body["scheduled_events"] = s.schedule.Len()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.registry.Devices()
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	addr, err := codec.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	d, ok := s.registry.Device(addr)
	if !ok {
		writeNotFound(w, "device not found")
		return
	}
	ids := s.registry.GroupsOf(addr)
	groups := make([]int, len(ids))
	for i, id := range ids {
		groups[i] = int(id)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"device": d,
		"groups": groups,
	})
}

func (s *Server) handleListGroups(w http.ResponseWriter, _ *http.Request) {
	groups := s.registry.Groups()
	writeJSON(w, http.StatusOK, map[string]any{
		"groups": groups,
		"count":  len(groups),
	})
}

func (s *Server) handleDeviceCommand(w http.ResponseWriter, r *http.Request) {
	s.runCommand(w, r, chi.URLParam(r, "address"))
}

func (s *Server) handleGroupCommand(w http.ResponseWriter, r *http.Request) {
	s.runCommand(w, r, "group-"+chi.URLParam(r, "group"))
}

func (s *Server) handleModemCommand(w http.ResponseWriter, r *http.Request) {
	s.runCommand(w, r, "modem")
}

// runCommand decodes a command body, executes it against target and
// answers with the ack. The ack is also broadcast to stream clients.
func (s *Server) runCommand(w http.ResponseWriter, r *http.Request, target string) {
	if s.commands == nil {
		writeUnavailable(w, "commands are unavailable without the Insteon bridge")
		return
	}
	var cmd insteon.CommandMessage
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeBadRequest(w, "invalid command body: "+err.Error())
		return
	}
	if cmd.Command == "" {
		writeBadRequest(w, "command is required")
		return
	}
	if cmd.Source == "" {
		cmd.Source = "api"
		if sub := subjectOf(r.Context()); sub != "" {
			cmd.Source = "api:" + sub
		}
	}

	ack := s.commands.Execute(r.Context(), cmd, target)
	s.hub.Broadcast(ChannelAck, ack)
	writeJSON(w, ackStatus(ack), ack)
}

// ackStatus maps an ack to an HTTP status.
func ackStatus(ack insteon.AckMessage) int {
	if ack.Status == insteon.AckAccepted {
		return http.StatusOK
	}
	if ack.Status == insteon.AckTimeout {
		return http.StatusGatewayTimeout
	}
	if ack.Error != nil {
		switch ack.Error.Code {
		case insteon.ErrCodeInvalidCommand, insteon.ErrCodeInvalidTarget:
			return http.StatusBadRequest
		}
	}
	return http.StatusBadGateway
}

func (s *Server) handleSchedule(w http.ResponseWriter, _ *http.Request) {
	if s.schedule == nil {
		writeUnavailable(w, "scheduler not attached")
		return
	}
	events := s.schedule.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// TrafficView is the JSON form of one frame, shared by /traffic and the
// stream.
type TrafficView struct {
	Timestamp time.Time `json:"timestamp"`
	Direction string    `json:"direction"`
	Sender    string    `json:"sender"`
	Code      string    `json:"code"`
	Bytes     string    `json:"bytes"`
	Decoded   string    `json:"decoded"`
}

func viewOfEntry(e traffic.JournalEntry) TrafficView {
	return TrafficView{
		Timestamp: e.RecordedAt,
		Direction: e.Direction,
		Sender:    e.Sender,
		Code:      codec.HexDump([]byte{e.Code}),
		Bytes:     codec.HexDump(e.Frame),
		Decoded:   e.Decoded,
	}
}

func viewOfFrame(f traffic.Frame) TrafficView {
	return TrafficView{
		Timestamp: f.Timestamp,
		Direction: f.Direction.Abbrev(),
		Sender:    f.Sender,
		Code:      codec.HexDump([]byte{f.Code()}),
		Bytes:     codec.HexDump(f.Bytes),
		Decoded:   f.Summary(),
	}
}

func (s *Server) handleTraffic(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeUnavailable(w, "traffic journal is disabled")
		return
	}
	limit := defaultTrafficLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = min(n, maxTrafficLimit)
	}

	entries, err := s.journal.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("reading traffic journal", "error", err)
		writeInternalError(w, "reading traffic journal failed")
		return
	}
	views := make([]TrafficView, len(entries))
	for i, e := range entries {
		views[i] = viewOfEntry(e)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"frames": views,
		"count":  len(views),
	})
}
