package gatekit

import (
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Middleware provides HTTP middleware for role, capability and access-rate
// checking.
type Middleware struct {
	service      *Service
	getIdentity  func(*http.Request) string
	errorHandler func(http.ResponseWriter, *http.Request, error)
	burst        *rate.Limiter
}

// MiddlewareOption configures the Middleware.
type MiddlewareOption func(*Middleware)

// NewMiddleware creates a new Middleware instance.
//
// Example:
//
//	mw := gatekit.NewMiddleware(service,
//	    gatekit.WithIdentityExtractor(func(r *http.Request) string {
//	        return r.Header.Get("X-Identity")
//	    }),
//	)
func NewMiddleware(service *Service, opts ...MiddlewareOption) *Middleware {
	m := &Middleware{
		service:      service,
		getIdentity:  defaultGetIdentity,
		errorHandler: defaultErrorHandler,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// WithIdentityExtractor sets a custom function to extract the caller identity
// from a request.
func WithIdentityExtractor(fn func(*http.Request) string) MiddlewareOption {
	return func(m *Middleware) {
		m.getIdentity = fn
	}
}

// WithErrorHandler sets a custom error handler for middleware.
func WithErrorHandler(fn func(http.ResponseWriter, *http.Request, error)) MiddlewareOption {
	return func(m *Middleware) {
		m.errorHandler = fn
	}
}

// WithBurstLimit installs an in-process token bucket ahead of the persistent
// limiter. Requests above rps with bursts above burst are shed with 429
// before touching the database.
func WithBurstLimit(rps float64, burst int) MiddlewareOption {
	return func(m *Middleware) {
		m.burst = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func defaultGetIdentity(r *http.Request) string {
	return GetIdentity(r.Context())
}

func defaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case IsRateLimited(err):
		http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
	case IsPermissionDenied(err) || IsPaused(err):
		http.Error(w, "Forbidden", http.StatusForbidden)
	case IsNotFound(err):
		http.Error(w, "Not Found", http.StatusNotFound)
	case IsAlreadyExists(err):
		http.Error(w, "Conflict", http.StatusConflict)
	case IsInvalidArgument(err):
		http.Error(w, "Bad Request", http.StatusBadRequest)
	default:
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// AccountExtractor extracts the target account from an HTTP request.
type AccountExtractor func(*http.Request) (account string, err error)

// AccountFromParam creates an AccountExtractor that reads the account from a
// URL path parameter. Compatible with net/http 1.22+ path values and routers
// that stash params in the request context.
//
// Example:
//
//	// For route /accounts/{accountID}/tokens
//	mw.RequireRole("minter", gatekit.AccountFromParam("accountID"))
func AccountFromParam(paramName string) AccountExtractor {
	return func(r *http.Request) (string, error) {
		account := r.PathValue(paramName)
		if account == "" {
			if v := r.Context().Value(paramName); v != nil {
				if s, ok := v.(string); ok {
					account = s
				}
			}
		}
		if account == "" {
			return "", NewError(ErrInvalidArgument, "account not found in request path")
		}
		return account, nil
	}
}

// AccountFromQuery creates an AccountExtractor that reads the account from a
// query parameter.
func AccountFromQuery(queryParam string) AccountExtractor {
	return func(r *http.Request) (string, error) {
		account := r.URL.Query().Get(queryParam)
		if account == "" {
			return "", NewError(ErrInvalidArgument, "account not found in query")
		}
		return account, nil
	}
}

// AccountFromHeader creates an AccountExtractor that reads the account from a
// header.
//
// Example:
//
//	mw.RequireRole("operator", gatekit.AccountFromHeader("X-Account-ID"))
func AccountFromHeader(headerName string) AccountExtractor {
	return func(r *http.Request) (string, error) {
		account := r.Header.Get(headerName)
		if account == "" {
			return "", NewError(ErrInvalidArgument, "account not found in header")
		}
		return account, nil
	}
}

// StaticAccount creates an AccountExtractor that always returns the same
// account. Useful for single-tenant deployments.
func StaticAccount(account string) AccountExtractor {
	return func(r *http.Request) (string, error) {
		return account, nil
	}
}

// RequireRole creates middleware that requires a role on the extracted
// account.
//
// Example:
//
//	router.With(mw.RequireRole("minter", gatekit.AccountFromParam("accountID"))).
//	    Post("/accounts/{accountID}/mint", mintHandler)
func (m *Middleware) RequireRole(role string, extractor AccountExtractor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			identity := m.getIdentity(r)
			if identity == "" {
				m.errorHandler(w, r, ErrNoActorID)
				return
			}

			account, err := extractor(r)
			if err != nil {
				m.errorHandler(w, r, err)
				return
			}

			if !m.service.HasRole(ctx, account, role, identity) {
				m.errorHandler(w, r, NewError(ErrPermissionDenied, "missing required role").
					WithAccount(account).
					WithRole(role).
					WithIdentity(identity))
				return
			}

			// Add checker to context for use in handlers
			checker, err := m.service.GetAccountChecker(ctx, account, identity)
			if err == nil {
				ctx = WithChecker(ctx, checker)
				r = r.WithContext(ctx)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyRole creates middleware that requires any of the specified roles
// on the extracted account.
func (m *Middleware) RequireAnyRole(roles []string, extractor AccountExtractor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			identity := m.getIdentity(r)
			if identity == "" {
				m.errorHandler(w, r, ErrNoActorID)
				return
			}

			account, err := extractor(r)
			if err != nil {
				m.errorHandler(w, r, err)
				return
			}

			checker, err := m.service.GetAccountChecker(ctx, account, identity)
			if err != nil {
				m.errorHandler(w, r, err)
				return
			}

			if !checker.HasAnyRole(roles...) {
				m.errorHandler(w, r, NewError(ErrPermissionDenied, "missing required role").
					WithAccount(account).
					WithIdentity(identity))
				return
			}

			ctx = WithChecker(ctx, checker)
			r = r.WithContext(ctx)

			next.ServeHTTP(w, r)
		})
	}
}

// RequireCapability creates middleware that requires a capability of the
// given kind on the extracted account.
//
// Example:
//
//	router.With(mw.RequireCapability("asset-transfer", gatekit.AccountFromHeader("X-Account-ID"))).
//	    Post("/transfer", transferHandler)
func (m *Middleware) RequireCapability(kind string, extractor AccountExtractor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			identity := m.getIdentity(r)
			if identity == "" {
				m.errorHandler(w, r, ErrNoActorID)
				return
			}

			account, err := extractor(r)
			if err != nil {
				m.errorHandler(w, r, err)
				return
			}

			if !m.service.HasCapability(ctx, account, kind) {
				m.errorHandler(w, r, NewError(ErrPermissionDenied, "missing required capability").
					WithAccount(account).
					WithKind(kind).
					WithIdentity(identity))
				return
			}

			checker, err := m.service.GetAccountChecker(ctx, account, identity)
			if err == nil {
				ctx = WithChecker(ctx, checker)
				r = r.WithContext(ctx)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit creates middleware that runs the extracted account through the
// persistent access limiter, recording the access on success. The in-process
// burst limiter, when configured, runs first.
//
// Example:
//
//	router.Use(mw.RateLimit(gatekit.AccountFromHeader("X-Account-ID")))
func (m *Middleware) RateLimit(extractor AccountExtractor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if m.burst != nil && !m.burst.Allow() {
				m.errorHandler(w, r, NewError(ErrRateLimited, "process burst limit exceeded"))
				return
			}

			identity := m.getIdentity(r)
			if identity == "" {
				m.errorHandler(w, r, ErrNoActorID)
				return
			}

			account, err := extractor(r)
			if err != nil {
				m.errorHandler(w, r, err)
				return
			}

			if err := m.service.RequireAccess(ctx, identity, account); err != nil {
				m.errorHandler(w, r, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// LoadChecker creates middleware that loads the identity's Checker for the
// extracted account into context. Use this when you want to do authorization
// checks in the handler rather than middleware.
//
// Example:
//
//	router.With(mw.LoadChecker(gatekit.AccountFromParam("accountID"))).
//	    Get("/accounts/{accountID}", accountHandler)
//
//	func accountHandler(w http.ResponseWriter, r *http.Request) {
//	    checker := gatekit.FromContext(r.Context())
//	    if checker.IsAdmin() {
//	        // Show admin features
//	    }
//	}
func (m *Middleware) LoadChecker(extractor AccountExtractor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			identity := m.getIdentity(r)
			if identity == "" {
				// No identity, continue without checker
				next.ServeHTTP(w, r)
				return
			}

			account, err := extractor(r)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			checker, err := m.service.GetAccountChecker(ctx, account, identity)
			if err != nil {
				// Log error but continue
				next.ServeHTTP(w, r)
				return
			}

			ctx = WithChecker(ctx, checker)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// InjectAuditContext creates middleware that extracts audit information from
// the request and adds it to the context for use in grant, revoke and
// delegate operations. Requests without an X-Request-ID header get a
// generated one.
//
// Example:
//
//	router.Use(mw.InjectAuditContext())
func (m *Middleware) InjectAuditContext() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			// Extract IP address
			ip := r.Header.Get("X-Forwarded-For")
			if ip == "" {
				ip = r.Header.Get("X-Real-IP")
			}
			if ip == "" {
				ip = r.RemoteAddr
			}
			ctx = WithIPAddress(ctx, ip)

			// Extract User Agent
			ctx = WithUserAgent(ctx, r.UserAgent())

			// Correlate with upstream request IDs when present
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}
			ctx = WithRequestID(ctx, requestID)

			// Set actor ID from the caller identity if available
			identity := m.getIdentity(r)
			if identity != "" {
				ctx = WithActorID(ctx, identity)
				ctx = WithIdentity(ctx, identity)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
