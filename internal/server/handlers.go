package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"

	"github.com/watzon/clickloop/internal/history"
	"github.com/watzon/clickloop/internal/realtime"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Error().Err(err).Msg("Failed to encode response")
		}
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}

type handlers struct {
	source  StatusSource
	history *history.Store
}

func (h *handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) Status(w http.ResponseWriter, _ *http.Request) {
	if h.source == nil {
		writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "engine not running")
		return
	}
	writeJSON(w, http.StatusOK, h.source.Status())
}

// History lists recent runs. Query parameters: source, status, since
// (RFC 3339) and limit.
func (h *handlers) History(w http.ResponseWriter, r *http.Request) {
	f := history.Filter{
		Source: history.Source(QueryParam(r, "source")),
		Status: history.Status(QueryParam(r, "status")),
		Limit:  defaultHistoryLimit,
	}

	if s := QueryParam(r, "limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer")
			return
		}
		f.Limit = min(n, maxHistoryLimit)
	}

	if s := QueryParam(r, "since"); s != "" {
		since, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_SINCE", "since must be an RFC 3339 timestamp")
			return
		}
		f.Since = since
	}

	runs, err := h.history.List(r.Context(), f)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list run history")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list runs")
		return
	}
	if runs == nil {
		runs = []*history.Run{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

type wsHandler struct {
	broker  *realtime.Broker
	origins []string
}

// ServeHTTP upgrades the connection and streams events until the client
// disconnects.
func (h *wsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Streams outlive the server's request timeouts.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to accept WebSocket connection")
		return
	}

	client := realtime.NewClient(conn, h.broker)
	if !h.broker.RegisterClient(client) {
		conn.Close(websocket.StatusTryAgainLater, "too many clients")
		return
	}
	defer h.broker.UnregisterClient(client.ID)

	connected, _ := json.Marshal(&realtime.ConnectedPayload{
		ClientID: client.ID,
	})
	_ = client.Send(&realtime.Message{
		Type:    realtime.MessageTypeConnected,
		Payload: connected,
	})

	client.Run()
}
