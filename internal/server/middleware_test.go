package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRecoveryMiddleware(t *testing.T) {
	wrapped := RecoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}

	var response map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["error"] != "internal server error" {
		t.Errorf("unexpected error message %v", response["error"])
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"generated", ""},
		{"existing", "existing-request-id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			wrapped := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = RequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("X-Request-ID", tt.header)
			}
			w := httptest.NewRecorder()
			wrapped.ServeHTTP(w, req)

			if seen == "" {
				t.Fatal("request ID should be set in context")
			}
			if tt.header != "" && seen != tt.header {
				t.Errorf("expected request ID %q, got %q", tt.header, seen)
			}
			if got := w.Header().Get("X-Request-ID"); got != seen {
				t.Errorf("header ID %q should match context ID %q", got, seen)
			}
		})
	}
}

func TestLoggingMiddlewareCapturesStatus(t *testing.T) {
	var inner *responseWriter
	wrapped := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner, _ = w.(*responseWriter)
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))

	if inner == nil {
		t.Fatal("handler should see the wrapping responseWriter")
	}
	if inner.status != http.StatusTeapot || inner.bytes != len("short and stout") {
		t.Errorf("unexpected captured status %d / bytes %d", inner.status, inner.bytes)
	}
	if w.Code != http.StatusTeapot {
		t.Errorf("expected underlying status %d, got %d", http.StatusTeapot, w.Code)
	}
}

func TestRouterMiddlewareOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	r := &Router{mux: http.NewServeMux()}
	r.mux.HandleFunc("GET /", func(w http.ResponseWriter, req *http.Request) {
		order = append(order, "handler")
	})
	r.Use(mark("first"))
	r.Use(mark("second"))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	expected := []string{"first", "second", "handler"}
	if len(order) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, order)
	}
	for i := range expected {
		if order[i] != expected[i] {
			t.Errorf("order[%d]: expected %s, got %s", i, expected[i], order[i])
		}
	}
}
