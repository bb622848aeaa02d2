package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/freshlane/api/responses"
	pkgerrors "github.com/angelmondragon/freshlane/pkg/errors"
	"github.com/angelmondragon/freshlane/pkg/logger"
	pkgredis "github.com/angelmondragon/freshlane/pkg/redis"
	"github.com/angelmondragon/freshlane/pkg/types"
)

const (
	idempotencyHeader       = "Idempotency-Key"
	idempotencyReplayHeader = "Idempotency-Replayed"
	maxIdempotencyKeyLen    = 255

	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
	inFlightHold           = 2 * time.Minute
)

// idempotentRoutes lists the POST patterns that require a key. Checkout and
// payments move money and keep their keys for a week.
var idempotentRoutes = map[string]time.Duration{
	"/api/v1/carts/{cartId}/checkout":       criticalIdempotencyTTL,
	"/api/v1/invoices/{invoiceId}/payments": criticalIdempotencyTTL,

	"/api/v1/carts":                          defaultIdempotencyTTL,
	"/api/v1/carts/{cartId}/items":           defaultIdempotencyTTL,
	"/api/v1/carts/{cartId}/coupons":         defaultIdempotencyTTL,
	"/api/v1/orders/{orderId}/transitions":   defaultIdempotencyTTL,
	"/api/v1/invoices":                       defaultIdempotencyTTL,
	"/api/v1/invoices/{invoiceId}/recurring": defaultIdempotencyTTL,
	"/api/v1/inventory/adjustments":          defaultIdempotencyTTL,
}

const itemActionPrefix = "/api/v1/orders/{orderId}/items/{itemId}/"

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        string `json:"body"`
	RequestHash string `json:"request_hash"`
}

// Idempotency makes the listed POST routes safe to retry. The first request
// for an actor, path and Idempotency-Key runs the handler and its response
// is recorded; repeats with the same body replay it, repeats with a
// different body get IDEMPOTENCY_KEY_REUSED and repeats while the first is
// still running get CONFLICT. Retryable failures are not recorded.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := routeTTL(r.Method, routePattern(r))
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			fail := func(err error) { responses.WriteError(ctx, logg, w, err) }

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			switch {
			case clientKey == "":
				fail(pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			case len(clientKey) > maxIdempotencyKeyLen:
				fail(pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key too long"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				fail(pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			hash := requestHash(body)

			key := store.IdempotencyKey(requestScope(r), clientKey)
			prior, claimed, err := store.Claim(ctx, key, inFlightHold)
			if err != nil {
				fail(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency store unavailable"))
				return
			}
			if !claimed {
				replay(w, prior, hash, fail)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			completed := false
			defer func() {
				if !completed {
					releaseClaim(ctx, store, key, logg)
				}
			}()
			next.ServeHTTP(capture, r)

			status := capture.statusOrOK()
			if !recordable(status, capture.body.Bytes()) {
				return
			}
			record, err := json.Marshal(storedResponse{
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        base64.StdEncoding.EncodeToString(capture.body.Bytes()),
				RequestHash: hash,
			})
			if err != nil {
				logFailure(ctx, logg, "encode idempotency record", err)
				return
			}
			if err := store.Complete(ctx, key, string(record), ttl); err != nil {
				logFailure(ctx, logg, "store idempotency record", err)
				return
			}
			completed = true
		})
	}
}

func replay(w http.ResponseWriter, prior, hash string, fail func(error)) {
	if prior == pkgredis.IdempotencyPending {
		fail(pkgerrors.New(pkgerrors.CodeConflict, "a request with this Idempotency-Key is still in progress"))
		return
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(prior), &stored); err != nil {
		fail(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "corrupt idempotency record"))
		return
	}
	if stored.RequestHash != hash {
		fail(pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
		return
	}
	body, err := base64.StdEncoding.DecodeString(stored.Body)
	if err != nil {
		fail(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "corrupt idempotency record"))
		return
	}
	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	}
	w.Header().Set(idempotencyReplayHeader, "true")
	w.WriteHeader(stored.Status)
	_, _ = w.Write(body)
}

// releaseClaim runs after the request context may already be cancelled.
func releaseClaim(ctx context.Context, store pkgredis.IdempotencyStore, key string, logg *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := store.Abandon(ctx, key); err != nil {
		logFailure(ctx, logg, "release idempotency claim", err)
	}
}

func requestScope(r *http.Request) string {
	return ActorIDFromContext(r.Context()).String() + "|" + r.Method + "|" + r.URL.Path
}

// recordable keeps successes and terminal client errors. 5xx responses and
// errors flagged retryable stay unrecorded so the same key can be retried.
func recordable(status int, body []byte) bool {
	switch {
	case status >= http.StatusInternalServerError:
		return false
	case status < http.StatusBadRequest:
		return true
	}
	var envelope types.ErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return true
	}
	return !envelope.Error.Retryable
}

func requestHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func routeTTL(method, pattern string) (time.Duration, bool) {
	if method != http.MethodPost || pattern == "" {
		return 0, false
	}
	if pattern != "/" {
		pattern = strings.TrimSuffix(pattern, "/")
	}
	if ttl, ok := idempotentRoutes[pattern]; ok {
		return ttl, true
	}
	if strings.HasPrefix(pattern, itemActionPrefix) {
		return defaultIdempotencyTTL, true
	}
	return 0, false
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusOrOK() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

func logFailure(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg != nil {
		logg.Error(ctx, msg, err)
	}
}
