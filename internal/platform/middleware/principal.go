package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	dErrors "payguard/pkg/domain-errors"
	"payguard/pkg/platform/httputil"
	"payguard/pkg/requestcontext"
)

// Headers naming the acting principal. Authentication happens upstream; the
// gateway in front of payguard sets these after it has verified the caller.
const (
	HeaderUserID    = "X-User-ID"
	HeaderSessionID = "X-Session-ID"
)

const maxPrincipalLen = 256

// Principal copies the principal headers into the request context. It never
// rejects; use RequirePrincipal on routes that need one.
func Principal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if v := clean(r.Header.Get(HeaderUserID)); v != "" {
			ctx = requestcontext.WithUserID(ctx, v)
		}
		if v := clean(r.Header.Get(HeaderSessionID)); v != "" {
			ctx = requestcontext.WithSessionID(ctx, v)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePrincipal rejects requests without both a user and a session.
func RequirePrincipal(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if requestcontext.UserID(ctx) == "" || requestcontext.SessionID(ctx) == "" {
				logger.WarnContext(ctx, "unauthorized access - missing principal",
					"request_id", requestcontext.RequestID(ctx),
					"client_ip", requestcontext.ClientIP(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized,
					HeaderUserID+" and "+HeaderSessionID+" headers are required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clean(v string) string {
	v = strings.TrimSpace(v)
	if len(v) > maxPrincipalLen {
		return ""
	}
	return v
}
