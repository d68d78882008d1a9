// Webhook HTTP handler.
//
// POST /webhook receives message deliveries and chat lifecycle events from
// the messaging platform. The handler is the synchronous stage of the
// pipeline: it validates the payload shape, hands message events to the
// webhook service (dedup + async continuation), and returns the
// acknowledgment immediately. Nothing from the asynchronous continuation
// ever reaches this response.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/a1baseai/mandy-group-matcher/internal/http/middleware"
	"github.com/a1baseai/mandy-group-matcher/internal/services"
	"github.com/a1baseai/mandy-group-matcher/internal/sysutil"
)

// Webhook event names accepted by the endpoint. Unknown events are
// acknowledged and ignored so platform-side additions never break delivery.
const (
	eventMessageReceived = "message.received"
	eventChatStarted     = "chat.started"
)

// WebhookPipeline is the asynchronous processing boundary the handler
// delegates to.
type WebhookPipeline interface {
	Accept(msg services.InboundMessage) services.Ack
	HandleChatStarted(ctx context.Context, chatID, agentID, senderName string) error
}

// Handlers bundles the dependencies of the HTTP layer. Construct with New.
type Handlers struct {
	db      *gorm.DB
	webhook WebhookPipeline
	matcher Matcher
}

func New(db *gorm.DB, webhook WebhookPipeline, matcher Matcher) *Handlers {
	return &Handlers{db: db, webhook: webhook, matcher: matcher}
}

// WebhookRequest is the inbound delivery payload. Message deliveries put
// the chat id under chat.id; session-start deliveries put it at the top
// level or under chatMetadata, and the sender under user. All three chat id
// spellings are accepted for any event.
type WebhookRequest struct {
	Event     string `json:"event" example:"message.received"`
	MessageID string `json:"message_id" example:"wamid.4f2a"`
	Chat      struct {
		ID string `json:"id" example:"chat-8842"`
	} `json:"chat"`
	ChatID       string `json:"chatId,omitempty"`
	ChatMetadata struct {
		ChatID string `json:"chatId,omitempty"`
	} `json:"chatMetadata"`
	AgentID string `json:"agent_id,omitempty" example:"mandy"`
	Sender  struct {
		Name string `json:"name,omitempty" example:"Sam"`
	} `json:"sender"`
	User struct {
		Name string `json:"name,omitempty" example:"Riley"`
	} `json:"user"`
	Text  string `json:"text,omitempty"`
	Media struct {
		URL  string `json:"url,omitempty"`
		Type string `json:"type,omitempty"`
	} `json:"media"`
}

// Webhook godoc
// @ID          receiveWebhook
// @Summary     Receive a platform webhook delivery
// @Description Validates the delivery, deduplicates it, and acknowledges
// @Description immediately; the reply is produced asynchronously.
// @Tags        Webhook
// @Accept      json
// @Produce     json
//
// @Param       body body handlers.WebhookRequest true "Delivery payload"
//
// @Success     200 {object} services.Ack           "Accepted or skipped"
// @Failure     400 {object} handlers.ErrorResponse "Malformed payload"
// @Failure     500 {object} handlers.ErrorResponse "Welcome dispatch failed"
// @Router      /webhook [post]
func (h *Handlers) Webhook(c *gin.Context) {
	var req WebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "malformed webhook payload")
		return
	}
	chatID := sysutil.FirstNonEmpty(
		strings.TrimSpace(req.Chat.ID),
		strings.TrimSpace(req.ChatID),
		strings.TrimSpace(req.ChatMetadata.ChatID),
	)
	if chatID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat id required")
		return
	}
	middleware.SetChatID(c, chatID)

	switch req.Event {
	case eventChatStarted:
		// One-shot welcome: bypasses dedup and the async pipeline entirely.
		sender := sysutil.FirstNonEmpty(req.User.Name, req.Sender.Name)
		if err := h.webhook.HandleChatStarted(c.Request.Context(), chatID, req.AgentID, sender); err != nil {
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "welcome dispatch failed")
			return
		}
		ok(c, http.StatusOK, services.Ack{Status: "welcomed"})

	case eventMessageReceived, "":
		ack := h.webhook.Accept(services.InboundMessage{
			MessageID:  req.MessageID,
			ChatID:     chatID,
			AgentID:    req.AgentID,
			SenderName: req.Sender.Name,
			Text:       req.Text,
			MediaURL:   req.Media.URL,
			MediaType:  req.Media.Type,
		})
		ok(c, http.StatusOK, ack)

	default:
		ok(c, http.StatusOK, services.Ack{Status: "ignored"})
	}
}
