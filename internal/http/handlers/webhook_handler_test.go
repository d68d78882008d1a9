package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/a1baseai/mandy-group-matcher/internal/services"
)

// Flexible webhook pipeline stub.
type stubPipeline struct {
	accept      func(services.InboundMessage) services.Ack
	chatStarted func(context.Context, string, string, string) error

	accepted []services.InboundMessage
}

func (s *stubPipeline) Accept(msg services.InboundMessage) services.Ack {
	s.accepted = append(s.accepted, msg)
	if s.accept != nil {
		return s.accept(msg)
	}
	return services.Ack{Status: "accepted"}
}

func (s *stubPipeline) HandleChatStarted(ctx context.Context, chatID, agentID, senderName string) error {
	if s.chatStarted != nil {
		return s.chatStarted(ctx, chatID, agentID, senderName)
	}
	return nil
}

func postWebhook(t *testing.T, h *Handlers, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhook", h.Webhook)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestWebhook_BadPayload(t *testing.T) {
	h := New(nil, &stubPipeline{}, nil)

	if w := postWebhook(t, h, "{bad"); w.Code != http.StatusBadRequest {
		t.Fatalf("bad json -> %d", w.Code)
	}
	if w := postWebhook(t, h, `{"event":"message.received","text":"hi"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing chat.id -> %d", w.Code)
	}
}

func TestWebhook_MessageReceived(t *testing.T) {
	pipe := &stubPipeline{}
	h := New(nil, pipe, nil)

	body := `{
		"event": "message.received",
		"message_id": "m-1",
		"chat": {"id": "chat-1"},
		"agent_id": "mandy",
		"sender": {"name": "Sam"},
		"text": "hello there"
	}`
	w := postWebhook(t, h, body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}

	var ack services.Ack
	if err := json.Unmarshal(w.Body.Bytes(), &ack); err != nil {
		t.Fatalf("json: %v", err)
	}
	if ack.Status != "accepted" {
		t.Fatalf("ack status = %q", ack.Status)
	}
	if len(pipe.accepted) != 1 {
		t.Fatalf("accepted %d messages", len(pipe.accepted))
	}
	got := pipe.accepted[0]
	if got.MessageID != "m-1" || got.ChatID != "chat-1" || got.AgentID != "mandy" ||
		got.SenderName != "Sam" || got.Text != "hello there" {
		t.Fatalf("unexpected inbound: %#v", got)
	}
}

// Deliveries without an event name are treated as messages: some platform
// configurations omit the field.
func TestWebhook_EmptyEventIsMessage(t *testing.T) {
	pipe := &stubPipeline{}
	h := New(nil, pipe, nil)

	w := postWebhook(t, h, `{"message_id":"m-2","chat":{"id":"chat-2"},"text":"yo"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if len(pipe.accepted) != 1 {
		t.Fatalf("accepted %d messages", len(pipe.accepted))
	}
}

func TestWebhook_DuplicateSkippedAckPassesThrough(t *testing.T) {
	pipe := &stubPipeline{
		accept: func(services.InboundMessage) services.Ack {
			return services.Ack{Status: "skipped", Skipped: true}
		},
	}
	h := New(nil, pipe, nil)

	w := postWebhook(t, h, `{"event":"message.received","message_id":"m-1","chat":{"id":"c"},"text":"x"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var ack services.Ack
	if err := json.Unmarshal(w.Body.Bytes(), &ack); err != nil {
		t.Fatalf("json: %v", err)
	}
	if !ack.Skipped || ack.Status != "skipped" {
		t.Fatalf("ack = %#v", ack)
	}
}

func TestWebhook_ChatStarted(t *testing.T) {
	// Success -> welcomed, no message accepted.
	{
		var gotChat, gotName string
		pipe := &stubPipeline{
			chatStarted: func(_ context.Context, chatID, _, senderName string) error {
				gotChat, gotName = chatID, senderName
				return nil
			},
		}
		h := New(nil, pipe, nil)

		w := postWebhook(t, h, `{"event":"chat.started","chat":{"id":"chat-9"},"sender":{"name":"Riley"}}`)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
		}
		var ack services.Ack
		if err := json.Unmarshal(w.Body.Bytes(), &ack); err != nil {
			t.Fatalf("json: %v", err)
		}
		if ack.Status != "welcomed" {
			t.Fatalf("ack status = %q", ack.Status)
		}
		if gotChat != "chat-9" || gotName != "Riley" {
			t.Fatalf("chat started with chat=%q name=%q", gotChat, gotName)
		}
		if len(pipe.accepted) != 0 {
			t.Fatalf("chat.started reached Accept")
		}
	}

	// Session-start wire shapes: chat id at the top level or under
	// chatMetadata, sender under user.
	{
		cases := []struct {
			body     string
			wantChat string
			wantName string
		}{
			{`{"event":"chat.started","chatId":"chat-77","user":{"name":"Riley"}}`, "chat-77", "Riley"},
			{`{"event":"chat.started","chatMetadata":{"chatId":"chat-78"}}`, "chat-78", ""},
			// nested chat.id wins when both are present
			{`{"event":"chat.started","chat":{"id":"chat-79"},"chatId":"chat-ignored","user":{"name":"Jo"}}`, "chat-79", "Jo"},
		}
		for _, tc := range cases {
			var gotChat, gotName string
			pipe := &stubPipeline{
				chatStarted: func(_ context.Context, chatID, _, senderName string) error {
					gotChat, gotName = chatID, senderName
					return nil
				},
			}
			h := New(nil, pipe, nil)

			w := postWebhook(t, h, tc.body)
			if w.Code != http.StatusOK {
				t.Fatalf("%s -> %d body=%s", tc.body, w.Code, w.Body.String())
			}
			var ack services.Ack
			if err := json.Unmarshal(w.Body.Bytes(), &ack); err != nil {
				t.Fatalf("json: %v", err)
			}
			if ack.Status != "welcomed" {
				t.Fatalf("%s -> ack status %q", tc.body, ack.Status)
			}
			if gotChat != tc.wantChat || gotName != tc.wantName {
				t.Fatalf("%s -> chat=%q name=%q", tc.body, gotChat, gotName)
			}
		}
	}

	// Dispatch failure -> 500 envelope.
	{
		pipe := &stubPipeline{
			chatStarted: func(context.Context, string, string, string) error {
				return errors.New("send failed")
			},
		}
		h := New(nil, pipe, nil)

		w := postWebhook(t, h, `{"event":"chat.started","chat":{"id":"chat-9"}}`)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d", w.Code)
		}
		var resp ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("json: %v", err)
		}
		if resp.Code != ErrCodeInternal {
			t.Fatalf("code = %q", resp.Code)
		}
	}
}

func TestWebhook_UnknownEventIgnored(t *testing.T) {
	pipe := &stubPipeline{}
	h := New(nil, pipe, nil)

	w := postWebhook(t, h, `{"event":"chat.archived","chat":{"id":"chat-3"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var ack services.Ack
	if err := json.Unmarshal(w.Body.Bytes(), &ack); err != nil {
		t.Fatalf("json: %v", err)
	}
	if ack.Status != "ignored" {
		t.Fatalf("ack status = %q", ack.Status)
	}
	if len(pipe.accepted) != 0 {
		t.Fatalf("unknown event reached Accept")
	}
}
