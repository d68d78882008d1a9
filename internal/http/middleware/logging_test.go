package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func TestRequestIDGeneratesAndPropagates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/ok", func(c *gin.Context) {
		c.String(http.StatusOK, RequestIDFrom(c))
	})

	// Generated when absent.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	rid := w.Header().Get("X-Request-ID")
	if _, err := uuid.Parse(rid); err != nil {
		t.Fatalf("expected generated UUID, got %q", rid)
	}
	if w.Body.String() != rid {
		t.Fatalf("context id %q != header id %q", w.Body.String(), rid)
	}

	// Reused when supplied.
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set("X-Request-ID", "caller-id-1")
	r.ServeHTTP(w, req)
	if w.Header().Get("X-Request-ID") != "caller-id-1" {
		t.Fatalf("incoming id not propagated: %q", w.Header().Get("X-Request-ID"))
	}
}

func TestRedact(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"plain text", "plain text"},
		{"reach me at sam@example.com", "reach me at [REDACTED:email]"},
		{"call +1 212-555-1212 now", "call [REDACTED:phone] now"},
		{
			"id=0a1b2c3d-4e5f-4a6b-8c7d-9e0f1a2b3c4d",
			"id=[REDACTED:id]",
		},
	}
	for _, tc := range cases {
		if got := redact(tc.in); got != tc.want {
			t.Errorf("redact(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRedactingLoggerMasksHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.Use(RedactingLogger(RedactOptions{MaskHeaders: []string{"X-Custom-Secret"}}))
	r.GET("/ok", func(c *gin.Context) {
		// The request-scoped logger must be available downstream.
		if LoggerFrom(c) == nil {
			t.Error("no request-scoped logger attached")
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ok?email=sam@example.com", nil)
	req.Header.Set("Authorization", "Bearer token")
	req.Header.Set("X-Custom-Secret", "hunter2")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("GET /ok -> %d", w.Code)
	}
}

func TestRecoveryReturnsJSON500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.Use(Recovery())
	r.GET("/boom", func(*gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"code":"internal_error"`) {
		t.Fatalf("unexpected body %s", body)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("panic response lost the correlation id")
	}
}

func TestLoggerFromFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if LoggerFrom(c) == nil {
		t.Fatal("expected fallback logger, got nil")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdef", 3); got != "abc…" {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("abc", 10); got != "abc" {
		t.Fatalf("within limit should be unchanged, got %q", got)
	}
	if got := truncate("abc", 0); got != "abc" {
		t.Fatalf("max<=0 disables truncation, got %q", got)
	}
}
