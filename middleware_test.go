package gatekit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

// TestAccountFromQuery tests query-parameter account extraction
func TestAccountFromQuery(t *testing.T) {
	extractor := AccountFromQuery("account_id")

	r := httptest.NewRequest("GET", "/api/assets?account_id=acct-1", nil)
	account, err := extractor(r)
	assert.NoError(t, err)
	assert.Equal(t, "acct-1", account)

	r = httptest.NewRequest("GET", "/api/assets", nil)
	_, err = extractor(r)
	assert.True(t, IsInvalidArgument(err))
}

// TestAccountFromHeader tests header account extraction
func TestAccountFromHeader(t *testing.T) {
	extractor := AccountFromHeader("X-Account-ID")

	r := httptest.NewRequest("GET", "/api/assets", nil)
	r.Header.Set("X-Account-ID", "acct-1")
	account, err := extractor(r)
	assert.NoError(t, err)
	assert.Equal(t, "acct-1", account)

	r = httptest.NewRequest("GET", "/api/assets", nil)
	_, err = extractor(r)
	assert.True(t, IsInvalidArgument(err))
}

// TestStaticAccount tests the fixed account extractor
func TestStaticAccount(t *testing.T) {
	extractor := StaticAccount("acct-global")

	r := httptest.NewRequest("GET", "/anything", nil)
	account, err := extractor(r)
	assert.NoError(t, err)
	assert.Equal(t, "acct-global", account)
}

// TestDefaultErrorHandlerStatusMapping tests error-to-status translation
func TestDefaultErrorHandlerStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{NewError(ErrRateLimited, "cooldown"), http.StatusTooManyRequests},
		{NewError(ErrPermissionDenied, "missing role"), http.StatusForbidden},
		{NewError(ErrPaused, "account paused"), http.StatusForbidden},
		{NewError(ErrNotFound, "no record"), http.StatusNotFound},
		{NewError(ErrAlreadyExists, "double init"), http.StatusConflict},
		{NewError(ErrInvalidArgument, "bad kind"), http.StatusBadRequest},
		{ErrNoActorID, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/", nil)
		defaultErrorHandler(w, r, tc.err)
		assert.Equal(t, tc.status, w.Code, "error: %v", tc.err)
	}
}

// TestMiddlewareRequireRoleWithoutIdentity tests rejection when no identity
// can be extracted
func TestMiddlewareRequireRoleWithoutIdentity(t *testing.T) {
	mw := NewMiddleware(&Service{})

	called := false
	handler := mw.RequireRole("operator", StaticAccount("acct-1"))(okHandler(&called))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	assert.False(t, called)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

// TestMiddlewareRequireRoleExtractorFailure tests rejection on extractor
// errors
func TestMiddlewareRequireRoleExtractorFailure(t *testing.T) {
	mw := NewMiddleware(&Service{},
		WithIdentityExtractor(func(r *http.Request) string { return "id-1" }),
	)

	called := false
	handler := mw.RequireRole("operator", AccountFromQuery("account_id"))(okHandler(&called))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	assert.False(t, called)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestMiddlewareCustomErrorHandler tests the error handler override
func TestMiddlewareCustomErrorHandler(t *testing.T) {
	var handled error
	mw := NewMiddleware(&Service{},
		WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			handled = err
			w.WriteHeader(http.StatusTeapot)
		}),
	)

	handler := mw.RequireRole("operator", StaticAccount("acct-1"))(okHandler(new(bool)))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.ErrorIs(t, handled, ErrNoActorID)
}

// TestMiddlewareBurstLimit tests the in-process shedder runs before
// anything else
func TestMiddlewareBurstLimit(t *testing.T) {
	mw := NewMiddleware(&Service{},
		WithIdentityExtractor(func(r *http.Request) string { return "id-1" }),
		WithBurstLimit(0, 0), // nothing passes
	)

	called := false
	handler := mw.RateLimit(StaticAccount("acct-1"))(okHandler(&called))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	assert.False(t, called)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

// TestMiddlewareInjectAuditContext tests audit field extraction
func TestMiddlewareInjectAuditContext(t *testing.T) {
	mw := NewMiddleware(&Service{},
		WithIdentityExtractor(func(r *http.Request) string {
			return r.Header.Get("X-Identity")
		}),
	)

	var ac AuditContext
	var identity string
	handler := mw.InjectAuditContext()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac = GetAuditContext(r.Context())
		identity = GetIdentity(r.Context())
	}))

	r := httptest.NewRequest("POST", "/grant", nil)
	r.Header.Set("X-Identity", "id-admin")
	r.Header.Set("X-Forwarded-For", "203.0.113.7")
	r.Header.Set("User-Agent", "test-agent/1.0")
	r.Header.Set("X-Request-ID", "req-123")

	handler.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "id-admin", ac.ActorID)
	assert.Equal(t, "id-admin", identity)
	assert.Equal(t, "203.0.113.7", ac.IPAddress)
	assert.Equal(t, "test-agent/1.0", ac.UserAgent)
	assert.Equal(t, "req-123", ac.RequestID)
}

// TestMiddlewareInjectAuditContextGeneratesRequestID tests UUID fallback
// when the upstream header is absent
func TestMiddlewareInjectAuditContextGeneratesRequestID(t *testing.T) {
	mw := NewMiddleware(&Service{})

	var requestID string
	handler := mw.InjectAuditContext()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID = GetRequestID(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/grant", nil))

	assert.NotEmpty(t, requestID)
	assert.Len(t, requestID, 36) // uuid string form
}

// TestMiddlewareInjectAuditContextFallbackIP tests the remote-addr fallback
func TestMiddlewareInjectAuditContextFallbackIP(t *testing.T) {
	mw := NewMiddleware(&Service{})

	var ip string
	handler := mw.InjectAuditContext()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip = GetIPAddress(r.Context())
	}))

	r := httptest.NewRequest("POST", "/grant", nil)
	handler.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, r.RemoteAddr, ip)
}
