package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/a1baseai/mandy-group-matcher/internal/agents"
	"github.com/a1baseai/mandy-group-matcher/internal/config"
	"github.com/a1baseai/mandy-group-matcher/internal/dedup"
	"github.com/a1baseai/mandy-group-matcher/internal/platform"
)

// HistoryFetcher retrieves recent conversation turns from the platform.
type HistoryFetcher interface {
	GetMessageHistory(ctx context.Context, chatID string, limit int) ([]platform.HistoryMessage, error)
}

// MessageSender delivers one outbound chat message through the platform.
type MessageSender interface {
	SendMessage(ctx context.Context, chatID, text string, blocks ...platform.RichContentBlock) error
}

// ConversationHandler produces the domain reply for one inbound turn.
type ConversationHandler interface {
	HandleMessage(ctx context.Context, chatID, agentID, text string, history []platform.HistoryMessage) (string, error)
}

// InboundMessage is a validated inbound webhook delivery.
type InboundMessage struct {
	MessageID  string
	ChatID     string
	AgentID    string
	SenderName string
	Text       string
	MediaURL   string
	MediaType  string
}

// Ack is the synchronous webhook acknowledgment. Skipped marks duplicate
// deliveries that were acknowledged without processing.
type Ack struct {
	Status  string `json:"status"`
	Skipped bool   `json:"skipped,omitempty"`
}

const mediaNudgeReply = "Ooh, I can't open attachments yet — tell me in words! 📝"

// WebhookService runs the webhook lifecycle: atomic dedup, immediate
// acknowledgment, then an asynchronous continuation that fetches history,
// runs the interview machine, and sends exactly one reply.
//
// The reliability contract: every accepted (non-duplicate) message gets at
// most one outbound reply attempt, and that attempt always carries non-empty
// text. Timeouts and failures anywhere downstream degrade to generic copy,
// never to silence.
type WebhookService struct {
	Ledger   *dedup.Ledger
	History  HistoryFetcher
	Sender   MessageSender
	Handler  ConversationHandler
	Agents   *agents.Registry
	Defaults config.WebhookConfig

	HistoryLimit int

	inflight sync.WaitGroup
}

func NewWebhookService(
	ledger *dedup.Ledger,
	history HistoryFetcher,
	sender MessageSender,
	handler ConversationHandler,
	reg *agents.Registry,
	cfg config.WebhookConfig,
	historyLimit int,
) *WebhookService {
	return &WebhookService{
		Ledger:       ledger,
		History:      history,
		Sender:       sender,
		Handler:      handler,
		Agents:       reg,
		Defaults:     cfg,
		HistoryLimit: historyLimit,
	}
}

// Accept runs the synchronous half of the pipeline: the dedup check and the
// handoff to the continuation. It returns immediately; the caller sends the
// returned Ack as the HTTP response while processing continues in the
// background.
func (s *WebhookService) Accept(msg InboundMessage) Ack {
	if !s.Ledger.MarkIfNew(msg.MessageID) {
		log.Debug().Str("message_id", msg.MessageID).Str("chat_id", msg.ChatID).
			Msg("duplicate webhook delivery skipped")
		webhooksDeduped.Inc()
		return Ack{Status: "skipped", Skipped: true}
	}

	webhooksAccepted.Inc()
	s.inflight.Add(1)
	go s.continuation(msg)
	return Ack{Status: "accepted"}
}

// HandleChatStarted sends the one-shot welcome for a chat.started event.
// It bypasses dedup and the async continuation entirely.
func (s *WebhookService) HandleChatStarted(ctx context.Context, chatID, agentID, senderName string) error {
	welcome := s.Agents.Resolve(agentID).Welcome(senderName)
	if err := s.Sender.SendMessage(ctx, chatID, welcome); err != nil {
		log.Error().Err(err).Str("chat_id", chatID).Msg("welcome send failed")
		return err
	}
	repliesSent.WithLabelValues("welcome").Inc()
	return nil
}

// Drain blocks until all in-flight continuations finish, or until the grace
// period runs out. Used during shutdown so accepted messages still get their
// reply.
func (s *WebhookService) Drain(grace time.Duration) bool {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(grace):
		log.Warn().Dur("grace", grace).Msg("shutdown drain expired with continuations in flight")
		return false
	}
}

// continuation is the asynchronous half of the pipeline. It is detached from
// the originating HTTP request: nothing here propagates back to that caller.
func (s *WebhookService) continuation(msg InboundMessage) {
	defer s.inflight.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("chat_id", msg.ChatID).
				Msg("webhook continuation panicked")
			replyFallbacks.WithLabelValues("panic").Inc()
			s.send(msg.ChatID, genericFallbackReply, "fallback")
		}
	}()

	if msg.MediaURL != "" && strings.TrimSpace(msg.Text) == "" {
		log.Info().Str("chat_id", msg.ChatID).Str("media_type", msg.MediaType).
			Msg("media-only message, replying with nudge")
		s.send(msg.ChatID, mediaNudgeReply, "nudge")
		return
	}

	history := s.fetchHistory(msg.ChatID)
	reply := s.domainReply(msg, history)

	// The single decision layer for the never-empty contract: whatever
	// happened upstream, exactly one non-empty reply goes out from here.
	if strings.TrimSpace(reply) == "" {
		replyFallbacks.WithLabelValues("empty").Inc()
		reply = genericFallbackReply
	}
	s.send(msg.ChatID, reply, "interview")
}

// fetchHistory races the history fetch against its timeout. Losing the race
// does not cancel the fetch; its late result is discarded and the turn
// proceeds with no history.
func (s *WebhookService) fetchHistory(chatID string) []platform.HistoryMessage {
	type result struct {
		msgs []platform.HistoryMessage
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*s.Defaults.HistoryTimeout)
		defer cancel()
		msgs, err := s.History.GetMessageHistory(ctx, chatID, s.HistoryLimit)
		ch <- result{msgs, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			log.Warn().Err(r.err).Str("chat_id", chatID).Msg("history fetch failed, proceeding without")
			replyFallbacks.WithLabelValues("error").Inc()
			return nil
		}
		return r.msgs
	case <-time.After(s.Defaults.HistoryTimeout):
		log.Warn().Str("chat_id", chatID).Dur("timeout", s.Defaults.HistoryTimeout).
			Msg("history fetch timed out, proceeding without")
		replyFallbacks.WithLabelValues("timeout").Inc()
		return nil
	}
}

// domainReply races the interview machine against the processing timeout and
// degrades to generic copy on loss or error.
func (s *WebhookService) domainReply(msg InboundMessage, history []platform.HistoryMessage) string {
	type result struct {
		reply string
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*s.Defaults.ProcessTimeout)
		defer cancel()
		reply, err := s.Handler.HandleMessage(ctx, msg.ChatID, msg.AgentID, msg.Text, history)
		ch <- result{reply, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			log.Error().Err(r.err).Str("chat_id", msg.ChatID).Msg("domain processing failed, using fallback reply")
			replyFallbacks.WithLabelValues("error").Inc()
			return genericFallbackReply
		}
		return r.reply
	case <-time.After(s.Defaults.ProcessTimeout):
		log.Warn().Str("chat_id", msg.ChatID).Dur("timeout", s.Defaults.ProcessTimeout).
			Msg("domain processing timed out, using fallback reply")
		replyFallbacks.WithLabelValues("timeout").Inc()
		return genericFallbackReply
	}
}

// send performs the single outbound attempt. A send failure is terminal for
// this turn: the inbound HTTP response is long gone, so there is nothing to
// retry through and the turn is lost with a log line.
func (s *WebhookService) send(chatID, text, kind string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.Defaults.HistoryTimeout)
	defer cancel()
	if err := s.Sender.SendMessage(ctx, chatID, text); err != nil {
		log.Error().Err(err).Str("chat_id", chatID).Msg("outbound send failed, turn lost")
		return
	}
	repliesSent.WithLabelValues(kind).Inc()
}
