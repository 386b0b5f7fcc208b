package idempotency

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/schoolkit/api/internal/platform/httpx"
)

const maxBufferedBody = 64 * 1024

// Middleware replays stored responses for repeated submissions carrying the
// same idempotency key. Requests without the header pass through untouched.
func Middleware(store Store, header string, ttl time.Duration) func(http.Handler) http.Handler {
	if header == "" {
		header = "Idempotency-Key"
	}
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			key := strings.TrimSpace(r.Header.Get(header))
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxBufferedBody+1))
			if err != nil || len(body) > maxBufferedBody {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body too large for idempotent replay", http.StatusRequestEntityTooLarge))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			fingerprint := Fingerprint(r, body)
			now := time.Now().UTC()

			reservation, err := store.Reserve(ctx, key, fingerprint, now, ttl)
			if err != nil {
				if err == ErrFingerprintMismatch {
					httpx.WriteError(ctx, w, httpx.NewError("idempotency_conflict", "idempotency key was used with a different request", http.StatusUnprocessableEntity))
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			switch reservation.State {
			case ReservationStateCompleted:
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Idempotent-Replay", "true")
				w.WriteHeader(reservation.Record.ResponseStatus)
				_, _ = w.Write(reservation.Record.ResponseBody)
				return
			case ReservationStatePending:
				httpx.WriteError(ctx, w, httpx.NewError("request_in_flight", "a request with this idempotency key is still processing", http.StatusConflict))
				return
			}

			recorder := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)

			// Only successful checkouts are worth replaying; failures may be retried.
			if recorder.status >= 200 && recorder.status < 300 {
				_ = store.SaveResponse(ctx, key, fingerprint, Response{
					Status: recorder.status,
					Body:   recorder.body.Bytes(),
				}, time.Now().UTC(), ttl)
			} else {
				_ = store.Release(ctx, key, fingerprint)
			}
		})
	}
}

type responseRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (r *responseRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(p []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	if r.body.Len() < maxBufferedBody {
		r.body.Write(p)
	}
	return r.ResponseWriter.Write(p)
}
