package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/foxseedlab/chumon/internal/contextbuilder"
	"github.com/foxseedlab/chumon/internal/conversation"
	"github.com/foxseedlab/chumon/internal/menu"
	"github.com/foxseedlab/chumon/internal/metrics"
	"github.com/foxseedlab/chumon/internal/model"
)

// FallbackReply is appended when the model answers without any text.
const FallbackReply = "NO RESPONSE"

var (
	ErrSendInProgress    = errors.New("a message is already being sent for this conversation")
	ErrRemoteCallFailure = errors.New("remote model call failed")
)

// RemoteCallError collapses network, auth, quota and malformed-response
// failures into one reportable kind.
type RemoteCallError struct {
	Message string
	Err     error
}

func (e *RemoteCallError) Error() string {
	return fmt.Sprintf("remote model call failed: %s", e.Message)
}

func (e *RemoteCallError) Unwrap() error {
	return e.Err
}

func (e *RemoteCallError) Is(target error) bool {
	return target == ErrRemoteCallFailure
}

// TurnObserver is told about every message appended by a send and about the
// send button state. It may be nil.
type TurnObserver interface {
	MessageAppended(conv *conversation.Conversation, position int, m conversation.Message)
	SendStateChanged(conversationID int64, enabled bool)
}

type OrchestratorConfig struct {
	Generation model.GenerationConfig
	Safety     []model.SafetySetting
}

type SendOutput struct {
	ConversationID int64
	UserMessage    conversation.Message
	Reply          conversation.Message
	Fallback       bool
}

type Orchestrator struct {
	client   model.Client
	menu     menu.Provider
	cfg      OrchestratorConfig
	metrics  *metrics.Metrics
	observer TurnObserver
	now      func() time.Time

	mu       sync.Mutex
	inFlight map[int64]struct{}
}

func NewOrchestrator(client model.Client, menuProvider menu.Provider, cfg OrchestratorConfig, m *metrics.Metrics, observer TurnObserver) *Orchestrator {
	if cfg.Generation == (model.GenerationConfig{}) {
		cfg.Generation = model.DefaultGenerationConfig()
	}
	if len(cfg.Safety) == 0 {
		cfg.Safety = model.DefaultSafetySettings()
	}
	return &Orchestrator{
		client:   client,
		menu:     menuProvider,
		cfg:      cfg,
		metrics:  m,
		observer: observer,
		now:      time.Now,
		inFlight: make(map[int64]struct{}),
	}
}

func (o *Orchestrator) InFlight(conversationID int64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.inFlight[conversationID]
	return ok
}

func (o *Orchestrator) acquire(conversationID int64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.inFlight[conversationID]; ok {
		return false
	}
	o.inFlight[conversationID] = struct{}{}
	return true
}

func (o *Orchestrator) release(conversationID int64) {
	o.mu.Lock()
	delete(o.inFlight, conversationID)
	o.mu.Unlock()
	o.notifySendState(conversationID, true)
}

// Send submits one user turn and appends the reply. Blank text is ignored and
// yields (nil, nil). The user message is never rolled back.
func (o *Orchestrator) Send(ctx context.Context, conv *conversation.Conversation, text string) (*SendOutput, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	id := conv.ID()
	if !o.acquire(id) {
		return nil, ErrSendInProgress
	}
	defer o.release(id)

	userMsg := conversation.NewUserMessage(text, o.now())
	o.append(conv, userMsg)
	o.notifySendState(id, false)

	blocks := contextbuilder.Build(conv.Snapshot(), menu.Resolve(ctx, o.menu))
	req := model.Request{
		Blocks:     blocks,
		NewText:    text,
		Generation: o.cfg.Generation,
		Safety:     o.cfg.Safety,
	}
	slog.Info("sending turn to model", "conversation_id", id, "blocks", len(blocks))

	started := o.now()
	res, err := o.client.Generate(ctx, req)
	elapsed := o.now().Sub(started)
	if err != nil {
		o.metrics.ObserveModelRequest("failure", elapsed)
		slog.Error("model call failed", "error", err, "conversation_id", id, "elapsed_ms", elapsed.Milliseconds())
		var rce *RemoteCallError
		if errors.As(err, &rce) {
			return nil, rce
		}
		return nil, &RemoteCallError{Message: err.Error(), Err: err}
	}

	out := &SendOutput{ConversationID: id, UserMessage: userMsg}
	replyText := ""
	if res != nil {
		replyText = res.Text
	}
	if strings.TrimSpace(replyText) == "" {
		replyText = FallbackReply
		out.Fallback = true
		o.metrics.ObserveModelRequest("empty", elapsed)
		slog.Warn("model returned no text; appending fallback", "conversation_id", id)
	} else {
		o.metrics.ObserveModelRequest("success", elapsed)
	}
	out.Reply = conversation.NewModelMessage(replyText, o.now())
	o.append(conv, out.Reply)
	slog.Info("model reply appended", "conversation_id", id, "messages", conv.Len(), "elapsed_ms", elapsed.Milliseconds())
	return out, nil
}

func (o *Orchestrator) append(conv *conversation.Conversation, m conversation.Message) {
	n := conv.Append(m)
	if o.observer != nil {
		o.observer.MessageAppended(conv, n-1, m)
	}
}

func (o *Orchestrator) notifySendState(conversationID int64, enabled bool) {
	if o.observer != nil {
		o.observer.SendStateChanged(conversationID, enabled)
	}
}
