package idempotency

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMiddlewareReplaysCompletedResponse(t *testing.T) {
	store := NewMemoryStore()
	calls := 0
	handler := Middleware(store, "Idempotency-Key", time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true,"orderId":99}`))
	}))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(`{"items":[]}`))
		req.Header.Set("Idempotency-Key", "key-1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	first := send()
	if first.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", first.Code)
	}

	second := send()
	if second.Code != http.StatusOK {
		t.Fatalf("expected replayed 200, got %d", second.Code)
	}
	if second.Header().Get("Idempotent-Replay") != "true" {
		t.Fatal("expected replay marker header")
	}
	if calls != 1 {
		t.Fatalf("expected handler invoked once, got %d", calls)
	}
	body, _ := io.ReadAll(second.Body)
	if !strings.Contains(string(body), `"orderId":99`) {
		t.Fatalf("expected stored body replayed, got %s", body)
	}
}

func TestMiddlewareRejectsFingerprintMismatch(t *testing.T) {
	store := NewMemoryStore()
	handler := Middleware(store, "Idempotency-Key", time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(`{"items":[1]}`))
	req.Header.Set("Idempotency-Key", "key-1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(`{"items":[2]}`))
	req.Header.Set("Idempotency-Key", "key-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for mismatched body, got %d", rec.Code)
	}
}

func TestMiddlewareDoesNotStoreFailures(t *testing.T) {
	store := NewMemoryStore()
	calls := 0
	handler := Middleware(store, "Idempotency-Key", time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusConflict)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(`{}`))
		req.Header.Set("Idempotency-Key", "key-1")
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	if calls != 2 {
		t.Fatalf("expected failed responses to be retried, handler ran %d times", calls)
	}
}

func TestMiddlewarePassThroughWithoutKey(t *testing.T) {
	store := NewMemoryStore()
	calls := 0
	handler := Middleware(store, "Idempotency-Key", time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(`{}`))
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	if calls != 2 {
		t.Fatalf("expected both requests processed, got %d", calls)
	}
}
