package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/asheshgoplani/archive-deck/internal/archive"
)

// foregroundTimeout bounds loads triggered by a single API request.
const foregroundTimeout = 60 * time.Second

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiErrorResponse struct {
	Error apiError `json:"error"`
}

type stateResponse struct {
	archive.Snapshot
	Location       string `json:"location,omitempty"`
	LoadingMessage string `json:"loadingMessage,omitempty"`
}

type searchResponse struct {
	Query   string           `json:"query"`
	Results []archive.Result `json:"results"`
	Status  string           `json:"status"`
}

type navigateRequest struct {
	Action string `json:"action"`
}

type dateRequest struct {
	Date string `json:"date"`
}

type queryRequest struct {
	Query     string `json:"query"`
	Immediate bool   `json:"immediate"`
}

func (s *Server) state() stateResponse {
	snap := s.cfg.Engine.Snapshot()
	resp := stateResponse{Snapshot: snap, LoadingMessage: snap.LoadingMessage()}
	if s.cfg.History != nil {
		resp.Location = s.cfg.History.Query()
	}
	return resp
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r, http.MethodPost) {
		return
	}
	var req navigateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Action == "" {
		req.Action = r.URL.Query().Get("action")
	}
	action, err := archive.ParseAction(req.Action)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	if _, err := s.cfg.Engine.Navigate(ctx, action); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	s.handleDate(w, r, s.cfg.Engine.SelectDate)
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	s.handleDate(w, r, s.cfg.Engine.OpenResult)
}

func (s *Server) handleDate(w http.ResponseWriter, r *http.Request, apply func(context.Context, string) error) {
	if !s.guard(w, r, http.MethodPost) {
		return
	}
	var req dateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Date == "" {
		req.Date = r.URL.Query().Get("date")
	}
	if strings.TrimSpace(req.Date) == "" {
		writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "date is required")
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	if err := apply(ctx, req.Date); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r, http.MethodPost) {
		return
	}
	var req queryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.cfg.Engine.SetQuery(req.Query)
	if req.Immediate {
		s.cfg.Engine.SearchNow()
	}
	writeJSON(w, http.StatusAccepted, s.state())
}

// handleSearch runs a search synchronously without touching engine search
// state, for scripts and one-shot clients.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query().Get("q")
	ctx, cancel := s.requestContext(r)
	defer cancel()

	results, err := s.cfg.Engine.Search(ctx, q)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	resp := searchResponse{Query: q, Results: results}
	if results == nil {
		resp.Results = []archive.Result{}
	}
	if strings.TrimSpace(q) != "" {
		resp.Status = archive.StatusText(len(results))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDismissNotice(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r, http.MethodPost) {
		return
	}
	s.cfg.Engine.DismissNotice()
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r, http.MethodPost) {
		return
	}
	if s.cfg.History == nil {
		writeAPIError(w, http.StatusNotFound, "NOT_FOUND", "history unavailable")
		return
	}
	var moved bool
	switch strings.TrimPrefix(r.URL.Path, "/api/history/") {
	case "back":
		moved = s.cfg.History.Back()
	case "forward":
		moved = s.cfg.History.Forward()
	default:
		writeAPIError(w, http.StatusNotFound, "NOT_FOUND", "route not found")
		return
	}
	if !moved {
		writeAPIError(w, http.StatusConflict, "NO_HISTORY", "no history entry in that direction")
		return
	}
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), foregroundTimeout)
}

// decodeBody decodes an optional JSON body. An empty body is not an error.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		return true
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, 64<<10))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON body")
		return false
	}
	return true
}

func writeEngineError(w http.ResponseWriter, err error) {
	var shardErr *archive.ShardLoadError
	switch {
	case errors.Is(err, archive.ErrNotReady):
		writeAPIError(w, http.StatusServiceUnavailable, "NOT_READY", err.Error())
	case errors.Is(err, archive.ErrDateNotFound):
		writeAPIError(w, http.StatusNotFound, "DATE_NOT_FOUND", archive.NoticeDateNotFound)
	case errors.As(err, &shardErr):
		writeAPIError(w, http.StatusBadGateway, "LOAD_FAILED", err.Error())
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		writeAPIError(w, http.StatusGatewayTimeout, "TIMEOUT", err.Error())
	default:
		writeAPIError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeAPIError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiErrorResponse{
		Error: apiError{
			Code:    code,
			Message: message,
		},
	})
}

var (
	errNoHistory      = errors.New("history unavailable")
	errUnknownCommand = errors.New("unknown command")
)

// wsErrorCode maps an engine error onto the code and message used by the
// JSON API.
func wsErrorCode(err error) (string, string) {
	var shardErr *archive.ShardLoadError
	switch {
	case errors.Is(err, archive.ErrNotReady):
		return "NOT_READY", err.Error()
	case errors.Is(err, archive.ErrDateNotFound):
		return "DATE_NOT_FOUND", archive.NoticeDateNotFound
	case errors.As(err, &shardErr):
		return "LOAD_FAILED", err.Error()
	}
	return "INVALID_REQUEST", err.Error()
}
