package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"interview-engine/internal/interview"
	"interview-engine/internal/operations"
	"interview-engine/internal/storage"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

func (s *Server) newUpgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
}

// checkOrigin пропускает клиентов без Origin, тот же хост и источники из AllowedOrigins
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(strings.TrimSuffix(allowed, "/"), origin) {
			return true
		}
	}
	s.logger.Warn("websocket origin rejected", "origin", origin)
	return false
}

// wsRequest кадр клиента. Action: start, next, end, status, abort.
type wsRequest struct {
	ID         string             `json:"id,omitempty"`
	Action     string             `json:"action"`
	Format     string             `json:"format,omitempty"`
	Candidate  *storage.Candidate `json:"candidate,omitempty"`
	Config     interview.Config   `json:"interview_config"`
	Message    string             `json:"message,omitempty"`
	Operations []operations.Spec  `json:"operations,omitempty"`
}

type wsResponse struct {
	ID     string    `json:"id,omitempty"`
	Action string    `json:"action"`
	Result any       `json:"result,omitempty"`
	Error  *apiError `json:"error,omitempty"`
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadLimit(maxRequestBodyBytes)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	// Пинги и ответы пишутся из разных горутин, gorilla допускает одного писателя
	writes := make(chan wsResponse)
	done := make(chan struct{})
	go s.wsWriter(conn, writes, done)
	defer func() {
		close(writes)
		<-done
	}()

	for {
		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket closed", "error", err)
			}
			return
		}

		resp := s.dispatchFrame(ctx, req)
		select {
		case writes <- resp:
		case <-done:
			return
		}
	}
}

func (s *Server) wsWriter(conn *websocket.Conn, writes <-chan wsResponse, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case resp, ok := <-writes:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(resp); err != nil {
				s.logger.Debug("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

func (s *Server) dispatchFrame(ctx context.Context, req wsRequest) wsResponse {
	resp := wsResponse{ID: req.ID, Action: req.Action}

	var (
		result any
		err    error
	)
	switch req.Action {
	case "start":
		var opts []interview.StartOption
		if req.Candidate != nil {
			opts = append(opts, interview.WithCandidate(*req.Candidate))
		}
		result, err = s.engine.Start(ctx, req.Format, opts...)
	case "next":
		result, err = s.engine.Next(ctx, req.Config, req.Message)
	case "end":
		result, err = s.engine.End(ctx, req.Config, req.Operations)
	case "status":
		result, err = s.engine.Status(ctx, req.Config)
	case "abort":
		result, err = s.engine.Abort(ctx, req.Config)
	default:
		err = fmt.Errorf("%w: неизвестное действие %q", errInvalidRequest, req.Action)
	}

	if err != nil {
		_, code := mapError(err)
		resp.Error = &apiError{Code: code, Message: err.Error()}
		if !errors.Is(err, errInvalidRequest) {
			s.logger.Debug("websocket action failed", "action", req.Action, "error", err)
		}
		return resp
	}
	resp.Result = result
	return resp
}
