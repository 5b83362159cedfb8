package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nikul30701/E-Commerce-Plateform/api/validators"
	pkgerrors "github.com/Nikul30701/E-Commerce-Plateform/pkg/errors"
)

// keyStore is an in-memory IdempotencyStore that remembers the TTL of every write.
type keyStore struct {
	values map[string]string
	ttl    map[string]time.Duration
}

func newKeyStore() *keyStore {
	return &keyStore{values: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (s *keyStore) IdempotencyKey(scope, id string) string { return "test:" + scope + ":" + id }

func (s *keyStore) Get(_ context.Context, key string) (string, error) {
	v, ok := s.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (s *keyStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	s.values[key] = value.(string)
	s.ttl[key] = ttl
	return nil
}

func (s *keyStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, taken := s.values[key]; taken {
		return false, nil
	}
	return true, s.Set(ctx, key, value, ttl)
}

func (s *keyStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(s.values, k)
	}
	return nil
}

// idemRequest describes one call through the middleware.
type idemRequest struct {
	path string
	key  string
	user string
	body string
}

func (c idemRequest) send(mw func(http.Handler) http.Handler, h http.Handler) *httptest.ResponseRecorder {
	path := c.path
	if path == "" {
		path = "/api/v1/checkout"
	}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(c.body))
	if c.key != "" {
		req.Header.Set(idempotencyHeader, c.key)
	}
	if c.user != "" {
		req = req.WithContext(WithUserID(req.Context(), c.user))
	}
	rec := httptest.NewRecorder()
	mw(h).ServeHTTP(rec, req)
	return rec
}

// countingHandler answers with status and a small JSON body, counting calls.
func countingHandler(status int, calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"order":"ORD-1"}`))
	})
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestIdempotencyRequiredPolicyRejectsMissingKey(t *testing.T) {
	var calls int
	rec := idemRequest{body: `{"address_id":"x"}`}.send(Idempotency(RequiredIdempotency, newKeyStore(), nil), countingHandler(http.StatusCreated, &calls))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, calls)
}

func TestIdempotencyOptionalPolicyRunsKeylessRequests(t *testing.T) {
	mw := Idempotency(OptionalIdempotency, newKeyStore(), nil)
	var calls int
	for i := 0; i < 2; i++ {
		rec := idemRequest{path: "/api/v1/cart/add", body: `{"quantity":1}`}.send(mw, countingHandler(http.StatusCreated, &calls))
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	assert.Equal(t, 2, calls)
}

func TestIdempotencyReplaysCompletedResponse(t *testing.T) {
	store := newKeyStore()
	mw := Idempotency(RequiredIdempotency, store, nil)
	var calls int
	call := idemRequest{key: "abc", user: "u1", body: `{"address_id":"a"}`}

	first := call.send(mw, countingHandler(http.StatusCreated, &calls))
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get(replayedHeader))

	again := call.send(mw, countingHandler(http.StatusCreated, &calls))
	assert.Equal(t, http.StatusCreated, again.Code)
	assert.Equal(t, "true", again.Header().Get(replayedHeader))
	assert.Equal(t, "application/json", again.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"order":"ORD-1"}`, again.Body.String())
	assert.Equal(t, 1, calls)

	require.Len(t, store.ttl, 1)
	for _, ttl := range store.ttl {
		assert.Equal(t, RequiredIdempotency.TTL, ttl)
	}
}

func TestIdempotencyScopesKeysByUserAndPath(t *testing.T) {
	mw := Idempotency(RequiredIdempotency, newKeyStore(), nil)
	var calls int
	for _, c := range []idemRequest{
		{key: "same", user: "user-a"},
		{key: "same", user: "user-b"},
		{key: "same", user: "user-a", path: "/api/v1/orders/1/cancel"},
	} {
		c.send(mw, countingHandler(http.StatusCreated, &calls))
	}
	assert.Equal(t, 3, calls)
}

func TestIdempotencyReleasesKeyAfterServerError(t *testing.T) {
	store := newKeyStore()
	mw := Idempotency(RequiredIdempotency, store, nil)
	var calls int
	call := idemRequest{key: "retry-me", path: "/api/v1/orders/1/cancel"}

	call.send(mw, countingHandler(http.StatusServiceUnavailable, &calls))
	call.send(mw, countingHandler(http.StatusServiceUnavailable, &calls))

	assert.Equal(t, 2, calls)
	assert.Empty(t, store.values)
}

func TestIdempotencyRejectsReusedKeyWithDifferentBody(t *testing.T) {
	mw := Idempotency(RequiredIdempotency, newKeyStore(), nil)
	var calls int
	idemRequest{key: "xyz", body: `{"foo":"bar"}`}.send(mw, countingHandler(http.StatusOK, &calls))

	rec := idemRequest{key: "xyz", body: `{"foo":"diff"}`}.send(mw, countingHandler(http.StatusOK, &calls))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, rec))
	assert.Equal(t, 1, calls)
}

func TestIdempotencyRejectsRepeatWhileInProgress(t *testing.T) {
	mw := Idempotency(RequiredIdempotency, newKeyStore(), nil)
	call := idemRequest{key: "busy", body: `{}`}

	var duplicate *httptest.ResponseRecorder
	first := call.send(mw, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		duplicate = call.send(mw, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatalf("duplicate must not run")
		}))
		w.WriteHeader(http.StatusCreated)
	}))

	assert.Equal(t, http.StatusCreated, first.Code)
	require.NotNil(t, duplicate)
	assert.Equal(t, http.StatusConflict, duplicate.Code)
	assert.Equal(t, string(pkgerrors.CodeConflict), errorCode(t, duplicate))
}

func TestIdempotencyReleasesKeyOnPanic(t *testing.T) {
	store := newKeyStore()
	mw := Idempotency(RequiredIdempotency, store, nil)

	assert.Panics(t, func() {
		idemRequest{key: "crash"}.send(mw, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))
	})
	assert.Empty(t, store.values)
}

func TestIdempotencyRejectsOversizedKey(t *testing.T) {
	var calls int
	rec := idemRequest{path: "/api/v1/cart/add", key: strings.Repeat("k", maxIdempotencyKeyLen+1)}.
		send(Idempotency(OptionalIdempotency, newKeyStore(), nil), countingHandler(http.StatusCreated, &calls))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, calls)
}

func TestIdempotencyWithoutStorePassesThrough(t *testing.T) {
	var calls int
	rec := idemRequest{}.send(Idempotency(RequiredIdempotency, nil, nil), countingHandler(http.StatusCreated, &calls))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, calls)
}

func TestIdempotencyReleasesKeyAfterConflictOrThrottle(t *testing.T) {
	for _, status := range []int{http.StatusConflict, http.StatusTooManyRequests} {
		store := newKeyStore()
		mw := Idempotency(RequiredIdempotency, store, nil)
		var calls int
		call := idemRequest{key: "again", body: `{}`}

		call.send(mw, countingHandler(status, &calls))
		rec := call.send(mw, countingHandler(http.StatusCreated, &calls))

		assert.Equal(t, http.StatusCreated, rec.Code, "status %d", status)
		assert.Empty(t, rec.Header().Get(replayedHeader), "status %d", status)
		assert.Equal(t, 2, calls, "status %d", status)
	}
}

// scriptedLimiter answers FixedWindowAllow from a fixed list of decisions.
type scriptedLimiter struct {
	answers []bool
}

func (l *scriptedLimiter) FixedWindowAllow(context.Context, string, int64, time.Duration) (bool, int64, error) {
	allowed := l.answers[0]
	l.answers = l.answers[1:]
	return allowed, 1, nil
}

func TestThrottledCheckoutIsNotReplayed(t *testing.T) {
	store := newKeyStore()
	limiter := &scriptedLimiter{answers: []bool{false, true}}
	policy := RateLimitPolicy{Name: "checkout", Limit: 1, Window: time.Minute}
	// same order as the checkout route
	chain := func(h http.Handler) http.Handler {
		return UserRateLimit(policy, limiter, nil)(Idempotency(RequiredIdempotency, store, nil)(h))
	}
	var calls int
	call := idemRequest{key: "order-1", user: "u1", body: `{"address_id":"a"}`}

	first := call.send(chain, countingHandler(http.StatusCreated, &calls))
	require.Equal(t, http.StatusTooManyRequests, first.Code)
	assert.Zero(t, calls)
	assert.Empty(t, store.values)

	second := call.send(chain, countingHandler(http.StatusCreated, &calls))
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Empty(t, second.Header().Get(replayedHeader))
	assert.Equal(t, 1, calls)
}

func TestIdempotencyRejectsOversizedBody(t *testing.T) {
	store := newKeyStore()
	var calls int
	rec := idemRequest{key: "big", body: strings.Repeat("a", validators.MaxBodyBytes+1)}.
		send(Idempotency(RequiredIdempotency, store, nil), countingHandler(http.StatusCreated, &calls))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeValidation), errorCode(t, rec))
	assert.Zero(t, calls)
	assert.Empty(t, store.values)
}
