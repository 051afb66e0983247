package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"voice-relay/internal/domain"
	"voice-relay/internal/event"
)

const (
	// defaultCallID keys turns from events that carry no call id.
	defaultCallID  = "default"
	archiveTimeout = 5 * time.Second
	resultTypeSay  = "say"
)

type SessionStore interface {
	AppendUserTurn(callID, text string) []domain.Turn
	AppendAssistantTurn(callID, text string) ([]domain.Turn, bool)
	Snapshot(callID string) []domain.Turn
	Remove(callID string) bool
}

type Completer interface {
	Complete(ctx context.Context, system string, turns []domain.Turn) (string, error)
}

type CallArchiver interface {
	ArchiveCall(ctx context.Context, rec domain.CallRecord, turns []domain.Turn) error
}

// Result is one instruction for the voice platform.
type Result struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Response is the webhook reply body. An empty Response encodes as {}.
type Response struct {
	Results []Result `json:"results,omitempty"`
}

func say(msg string) Response {
	return Response{Results: []Result{{Type: resultTypeSay, Message: msg}}}
}

// Relay routes webhook events to the session store and completion backend.
type Relay struct {
	store        SessionStore
	llm          Completer
	archive      CallArchiver
	systemPrompt string
	logger       *slog.Logger
}

type RelayOption func(*Relay)

// WithArchive records each ended call's transcript through a.
func WithArchive(a CallArchiver) RelayOption {
	return func(r *Relay) {
		r.archive = a
	}
}

func WithLogger(l *slog.Logger) RelayOption {
	return func(r *Relay) {
		if l != nil {
			r.logger = l
		}
	}
}

func NewRelay(store SessionStore, llm Completer, systemPrompt string, opts ...RelayOption) (*Relay, error) {
	if store == nil {
		return nil, errors.New("usecase: session store must not be nil")
	}
	if llm == nil {
		return nil, errors.New("usecase: completer must not be nil")
	}
	r := &Relay{
		store:        store,
		llm:          llm,
		systemPrompt: normalizeSystemPrompt(systemPrompt),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Handle processes one raw webhook payload. The only error is a payload that
// is not JSON; every other outcome, backend failures included, is a Response.
func (r *Relay) Handle(ctx context.Context, raw []byte) (Response, error) {
	ev, err := event.Parse(raw)
	if err != nil {
		return Response{}, newError(ErrorInvalidInput, reasonMalformedEvent, err)
	}

	switch ev.Kind {
	case event.KindUserTurn:
		return r.handleUserTurn(ctx, ev), nil
	case event.KindToolCall:
		name, _ := ev.FunctionName()
		r.logger.Info("tool call requested", "function", name)
		return say(toolCallMessage), nil
	case event.KindStatusUpdate:
		r.handleStatus(ctx, ev)
		return Response{}, nil
	case event.KindTranscript:
		text, role, _ := ev.Transcript()
		r.logger.Debug("transcript", "role", role, "text", text)
		return Response{}, nil
	case event.KindInformational:
		r.logger.Debug("informational event", "type", ev.Type)
		return Response{}, nil
	default:
		r.logger.Debug("unrecognized event", "type", ev.Type)
		return Response{}, nil
	}
}

func (r *Relay) handleUserTurn(ctx context.Context, ev event.Event) Response {
	utterance, ok := ev.LastUserUtterance()
	if !ok {
		return say(clarificationMessage)
	}
	callID, ok := ev.CallID()
	if !ok {
		callID = defaultCallID
	}
	r.logger.Info("user turn", "call_id", callID, "text", utterance)

	turns := r.store.AppendUserTurn(callID, utterance)

	start := time.Now()
	reply, err := r.llm.Complete(ctx, r.systemPrompt, turns)
	latency := time.Since(start)
	if err == nil && strings.TrimSpace(reply) == "" {
		err = domain.ErrMalformedCompletion
	}
	if err != nil {
		r.logger.Error("completion failed",
			"call_id", callID,
			"latency_ms", latency.Milliseconds(),
			"err", completionError(err),
		)
		return say(fallbackMessage)
	}
	r.logger.Debug("completion done", "call_id", callID, "latency_ms", latency.Milliseconds())

	if _, ok := r.store.AppendAssistantTurn(callID, reply); !ok {
		r.logger.Info("call ended before reply was recorded", "call_id", callID)
	}
	r.logger.Info("assistant reply", "call_id", callID, "text", reply)
	return say(reply)
}

func (r *Relay) handleStatus(ctx context.Context, ev event.Event) {
	status, _ := ev.Status()
	callID, hasCall := ev.CallID()
	r.logger.Info("call status", "status", status, "call_id", callID)
	if status != event.StatusEnded || !hasCall {
		return
	}

	turns := r.store.Snapshot(callID)
	if !r.store.Remove(callID) {
		return
	}
	r.logger.Info("session ended", "call_id", callID, "turns", len(turns))
	if r.archive == nil {
		return
	}

	reason, _ := ev.EndedReason()
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()
	rec := domain.CallRecord{CallID: callID, EndedAt: time.Now().UTC(), EndedReason: reason}
	if err := r.archive.ArchiveCall(actx, rec, turns); err != nil {
		r.logger.Error("archive call failed", "call_id", callID,
			"err", newError(ErrorInternal, reasonArchiveWriteFailed, err))
	}
}

// completionError classifies a backend failure for logging.
func completionError(err error) *Error {
	switch {
	case errors.Is(err, domain.ErrCompletionTimeout):
		return newError(ErrorUpstream, reasonCompletionTimeout, err)
	case errors.Is(err, domain.ErrMalformedCompletion):
		return newError(ErrorUpstream, reasonCompletionMalform, err)
	}
	if status, ok := upstreamStatusCode(err); ok && status == 429 {
		return newError(ErrorRateLimited, reasonCompletionLimited, err)
	}
	return newError(ErrorUpstream, reasonCompletionError, err)
}
