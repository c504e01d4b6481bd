// Package httpapi отдает движок интервью по HTTP JSON и через websocket.
package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"interview-engine/internal/config"
	"interview-engine/internal/interview"
	"interview-engine/internal/metrics"
	"interview-engine/internal/operations"
	"interview-engine/internal/storage"
)

const maxRequestBodyBytes = 1 << 20

// Server HTTP фронт движка
type Server struct {
	engine   *interview.Engine
	metrics  *metrics.Metrics
	cfg      config.ServerConfig
	logger   *slog.Logger
	upgrader *websocket.Upgrader
}

func NewServer(engine *interview.Engine, m *metrics.Metrics, cfg config.ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{engine: engine, metrics: m, cfg: cfg, logger: logger}
	s.upgrader = s.newUpgrader()
	return s
}

// Handler собирает маршруты. Все, кроме /healthz и /metrics, требуют токен, если он задан.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/interviews", s.handleStart)
	api.HandleFunc("POST /v1/interviews/{id}/next", s.handleNext)
	api.HandleFunc("POST /v1/interviews/{id}/end", s.handleEnd)
	api.HandleFunc("POST /v1/interviews/{id}/abort", s.handleAbort)
	api.HandleFunc("GET /v1/interviews/ws", s.handleWebsocket)
	api.HandleFunc("GET /v1/interviews/{id}", s.handleStatus)
	api.HandleFunc("GET /v1/formats", s.handleFormats)

	mux := http.NewServeMux()
	mux.Handle("/v1/", s.authenticate(limitBody(api)))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	return otelhttp.NewHandler(mux, "interview-engine",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}))
}

// ListenAndServe работает до отмены ctx, затем корректно останавливает сервер
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP сервер запущен", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("остановка HTTP сервера")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	if s.cfg.APIToken == "" {
		return next
	}
	want := []byte("Bearer " + s.cfg.APIToken)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get("Authorization"))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "неверный или отсутствующий токен")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

type startRequest struct {
	Format    string             `json:"format"`
	Candidate *storage.Candidate `json:"candidate,omitempty"`
}

type nextRequest struct {
	Message string `json:"message"`
}

type endRequest struct {
	Operations []operations.Spec `json:"operations,omitempty"`
}

type formatResponse struct {
	Name            string `json:"name"`
	QuestionCount   int    `json:"question_count"`
	TimePerQuestion string `json:"time_per_question"`
	QuestionType    string `json:"question_type"`
	Description     string `json:"description,omitempty"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSONBody(r, &req, false); err != nil {
		writeMappedError(w, err)
		return
	}
	if strings.TrimSpace(req.Format) == "" {
		writeMappedError(w, fmt.Errorf("%w: format обязателен", errInvalidRequest))
		return
	}

	var opts []interview.StartOption
	if req.Candidate != nil {
		opts = append(opts, interview.WithCandidate(*req.Candidate))
	}

	turn, err := s.engine.Start(r.Context(), req.Format, opts...)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, turn)
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	var req nextRequest
	if err := decodeJSONBody(r, &req, false); err != nil {
		writeMappedError(w, err)
		return
	}

	turn, err := s.engine.Next(r.Context(), sessionConfig(r), req.Message)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, turn)
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	var req endRequest
	if err := decodeJSONBody(r, &req, true); err != nil {
		writeMappedError(w, err)
		return
	}

	res, err := s.engine.End(r.Context(), sessionConfig(r), req.Operations)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	view, err := s.engine.Abort(r.Context(), sessionConfig(r))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	view, err := s.engine.Status(r.Context(), sessionConfig(r))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleFormats(w http.ResponseWriter, _ *http.Request) {
	formats := s.engine.Formats()
	out := make([]formatResponse, 0, len(formats))
	for _, f := range formats {
		out = append(out, formatResponse{
			Name:            f.Name,
			QuestionCount:   f.QuestionCount,
			TimePerQuestion: f.TimePerQuestion.String(),
			QuestionType:    string(f.QuestionType),
			Description:     f.Description,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"formats": out})
}

func sessionConfig(r *http.Request) interview.Config {
	return interview.Config{SessionID: r.PathValue("id")}
}
