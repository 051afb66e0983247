package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"voice-relay/internal/usecase"
)

const (
	secretHeader = "x-vapi-secret"
	maxBodyBytes = 1 << 20
)

type Relayer interface {
	Handle(ctx context.Context, raw []byte) (usecase.Response, error)
}

type SessionCounter interface {
	Len() int
}

// Handler is the inbound HTTP surface of the relay.
type Handler struct {
	relay    Relayer
	sessions SessionCounter
	secret   string
	provider string
	model    string
	logger   *slog.Logger
	routes   http.Handler
}

type Option func(*Handler)

// WithSecret requires every webhook request to carry secret in the
// x-vapi-secret header. An empty secret disables the check.
func WithSecret(secret string) Option {
	return func(h *Handler) {
		h.secret = secret
	}
}

// WithBackendInfo sets the provider and model reported by the health route.
func WithBackendInfo(provider, model string) Option {
	return func(h *Handler) {
		h.provider = provider
		h.model = model
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

type healthResponse struct {
	Status   string `json:"status"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Sessions int    `json:"sessions"`
}

func NewHandler(relay Relayer, sessions SessionCounter, opts ...Option) (*Handler, error) {
	if relay == nil {
		return nil, errors.New("handler: relay must not be nil")
	}
	if sessions == nil {
		return nil, errors.New("handler: session counter must not be nil")
	}
	h := &Handler{
		relay:    relay,
		sessions: sessions,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook", h.webhook)
	mux.HandleFunc("POST /{$}", h.webhook)
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("/", notFound)
	h.routes = h.withCorrelationID(h.withAccessLog(h.withRecover(mux)))
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.routes.ServeHTTP(w, r)
}

func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" && r.Header.Get(secretHeader) != h.secret {
		h.logger.Warn("rejected webhook with bad secret", "correlation_id", correlationID(r.Context()))
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "body_too_large"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal), Reason: "read_body"})
		return
	}

	resp, err := h.relay.Handle(r.Context(), raw)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:   "ok",
		Provider: h.provider,
		Model:    h.model,
		Sessions: h.sessions.Len(),
	})
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, "Not found", http.StatusNotFound)
}

// writeError maps relay failures onto responses. A malformed payload is
// answered with a 500 and an error body; the platform retries nothing.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		h.logger.Error("unexpected relay error", "correlation_id", correlationID(r.Context()), "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal)})
		return
	}
	h.logger.Error("webhook failed",
		"correlation_id", correlationID(r.Context()),
		"code", ucErr.Code,
		"reason", ucErr.Reason,
		"err", err,
	)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: string(ucErr.Code), Reason: ucErr.Reason})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
