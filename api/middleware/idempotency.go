package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Nikul30701/E-Commerce-Plateform/api/responses"
	"github.com/Nikul30701/E-Commerce-Plateform/api/validators"
	pkgerrors "github.com/Nikul30701/E-Commerce-Plateform/pkg/errors"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/logger"
	pkgredis "github.com/Nikul30701/E-Commerce-Plateform/pkg/redis"
)

const (
	idempotencyHeader    = "Idempotency-Key"
	replayedHeader       = "Idempotent-Replayed"
	maxIdempotencyKeyLen = 128
	// pendingTTL bounds how long a crashed request keeps its key locked.
	pendingTTL = 2 * time.Minute
)

// IdempotencyPolicy sets how long a completed response is kept and whether
// requests without an Idempotency-Key are rejected.
type IdempotencyPolicy struct {
	TTL      time.Duration
	Required bool
}

var (
	// OptionalIdempotency deduplicates only when the client sends a key.
	OptionalIdempotency = IdempotencyPolicy{TTL: 24 * time.Hour}
	// RequiredIdempotency guards order-creating and stock-moving calls.
	RequiredIdempotency = IdempotencyPolicy{TTL: 7 * 24 * time.Hour, Required: true}
)

type idempotencyRecord struct {
	Pending     bool   `json:"pending,omitempty"`
	RequestHash string `json:"request_hash"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        string `json:"body,omitempty"`
}

// Idempotency makes a route safe to retry. The first request with a key
// claims it, runs, and stores its response; repeats with the same body get
// that response back, a different body is rejected, and a repeat that
// arrives while the first is still running gets a conflict. Server errors,
// conflicts and throttles release the key so the client can retry.
func Idempotency(policy IdempotencyPolicy, store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			idemKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			switch {
			case idemKey == "" && policy.Required:
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			case idemKey == "":
				next.ServeHTTP(w, r)
				return
			case len(idemKey) > maxIdempotencyKeyLen:
				responses.WriteError(ctx, logg, w, pkgerrors.Newf(pkgerrors.CodeValidation, "Idempotency-Key longer than %d characters", maxIdempotencyKeyLen))
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, validators.MaxBodyBytes))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					responses.WriteError(ctx, logg, w, pkgerrors.Newf(pkgerrors.CodeValidation, "request body exceeds %d bytes", tooLarge.Limit))
					return
				}
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			hash := hashRequest(body)
			key := store.IdempotencyKey(idempotencyScope(r), idemKey)
			if logg != nil {
				ctx = logg.WithField(ctx, "idempotency_key", idemKey)
			}

			claimed, err := claim(ctx, store, key, hash)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				answerRepeat(ctx, w, store, key, hash, logg)
				return
			}

			rec := &responseCapture{ResponseWriter: w}
			completed := false
			defer func() {
				if !completed {
					_ = store.Del(context.WithoutCancel(ctx), key)
				}
			}()
			next.ServeHTTP(rec, r.WithContext(ctx))

			status := rec.statusOrOK()
			if !replayable(status) {
				return
			}
			final, err := json.Marshal(idempotencyRecord{
				RequestHash: hash,
				Status:      status,
				ContentType: rec.Header().Get("Content-Type"),
				Body:        base64.StdEncoding.EncodeToString(rec.body.Bytes()),
			})
			if err == nil {
				err = store.Set(context.WithoutCancel(ctx), key, string(final), policy.TTL)
			}
			if err != nil {
				if logg != nil {
					logg.Error(ctx, "idempotency.persist_failed", err)
				}
				return
			}
			completed = true
		})
	}
}

func replayable(status int) bool {
	switch {
	case status >= http.StatusInternalServerError:
		return false
	case status == http.StatusConflict, status == http.StatusTooManyRequests:
		return false
	}
	return true
}

func claim(ctx context.Context, store pkgredis.IdempotencyStore, key, hash string) (bool, error) {
	pending, err := json.Marshal(idempotencyRecord{Pending: true, RequestHash: hash})
	if err != nil {
		return false, err
	}
	return store.SetNX(ctx, key, string(pending), pendingTTL)
}

func answerRepeat(ctx context.Context, w http.ResponseWriter, store pkgredis.IdempotencyStore, key, hash string, logg *logger.Logger) {
	stored, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// the holder released the key between our claim and this read
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this Idempotency-Key is still in progress"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read idempotency record"))
		return
	}

	var record idempotencyRecord
	if err := json.Unmarshal([]byte(stored), &record); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	switch {
	case record.RequestHash != hash:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case record.Pending:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this Idempotency-Key is still in progress"))
	default:
		if logg != nil {
			logg.Info(ctx, "idempotency.replayed")
		}
		replay(w, record)
	}
}

func replay(w http.ResponseWriter, record idempotencyRecord) {
	if record.ContentType != "" {
		w.Header().Set("Content-Type", record.ContentType)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(record.Status)
	if body, err := base64.StdEncoding.DecodeString(record.Body); err == nil {
		_, _ = w.Write(body)
	}
}

// idempotencyScope keeps keys from colliding across users and endpoints.
func idempotencyScope(r *http.Request) string {
	return strings.Join([]string{UserIDFromContext(r.Context()), r.Method, strings.TrimSuffix(r.URL.Path, "/")}, "|")
}

func hashRequest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
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
