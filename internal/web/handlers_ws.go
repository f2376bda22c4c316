package web

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/asheshgoplani/archive-deck/internal/archive"
)

type wsClientMessage struct {
	Type      string `json:"type"` // navigate, select, open, query, back, forward, dismiss
	Action    string `json:"action,omitempty"`
	Date      string `json:"date,omitempty"`
	Query     string `json:"query,omitempty"`
	Immediate bool   `json:"immediate,omitempty"`
}

type wsServerMessage struct {
	Type    string         `json:"type"` // state, error
	State   *stateResponse `json:"state,omitempty"`
	Code    string         `json:"code,omitempty"`
	Message string         `json:"message,omitempty"`
	Time    time.Time      `json:"time,omitempty"`
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     allowWSOrigin,
}

func allowWSOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil || originURL.Host == "" {
		return false
	}

	return strings.EqualFold(originURL.Host, r.Host)
}

type wsConnWriter struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func newWSConnWriter(conn *websocket.Conn) *wsConnWriter {
	return &wsConnWriter{conn: conn}
}

func (w *wsConnWriter) WriteJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.conn.WriteJSON(v)
}

// handleWS pushes a state message on every change and applies commands
// sent by the client. Commands run one at a time in arrival order.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r, http.MethodGet) {
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	conn.SetReadLimit(64 << 10)

	writer := newWSConnWriter(conn)
	changes, unsubscribe := s.cfg.Engine.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sendState := func() error {
		state := s.state()
		return writer.WriteJSON(wsServerMessage{Type: "state", State: &state, Time: time.Now().UTC()})
	}
	if err := sendState(); err != nil {
		return
	}

	commands := make(chan wsClientMessage, 16)
	go func() {
		defer cancel()
		for {
			var msg wsClientMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			select {
			case commands <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case _, open := <-changes:
			if !open {
				return
			}
			if err := sendState(); err != nil {
				return
			}
		case msg := <-commands:
			if err := s.applyWSCommand(ctx, msg); err != nil {
				code, message := wsErrorCode(err)
				webLog.Debug("ws_command_failed",
					slog.String("type", msg.Type),
					slog.String("error", err.Error()))
				if werr := writer.WriteJSON(wsServerMessage{Type: "error", Code: code, Message: message, Time: time.Now().UTC()}); werr != nil {
					return
				}
			}
		}
	}
}

func (s *Server) applyWSCommand(ctx context.Context, msg wsClientMessage) error {
	ctx, cancel := context.WithTimeout(ctx, foregroundTimeout)
	defer cancel()

	eng := s.cfg.Engine
	switch msg.Type {
	case "navigate":
		action, err := archive.ParseAction(msg.Action)
		if err != nil {
			return err
		}
		_, err = eng.Navigate(ctx, action)
		return err
	case "select":
		return eng.SelectDate(ctx, msg.Date)
	case "open":
		return eng.OpenResult(ctx, msg.Date)
	case "query":
		eng.SetQuery(msg.Query)
		if msg.Immediate {
			eng.SearchNow()
		}
		return nil
	case "dismiss":
		eng.DismissNotice()
		return nil
	case "back", "forward":
		if s.cfg.History == nil {
			return errNoHistory
		}
		if msg.Type == "back" {
			s.cfg.History.Back()
		} else {
			s.cfg.History.Forward()
		}
		return nil
	}
	return errUnknownCommand
}
