package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/upb/andon-board/internal/observability"
	"github.com/upb/andon-board/services/ratelimit"
	"github.com/upb/andon-board/utils"
	"go.uber.org/zap"
)

// Limiter decides whether a caller may proceed under rule
type Limiter interface {
	Allow(ctx context.Context, rule ratelimit.Rule, key string) (*ratelimit.Result, error)
}

// RateLimit rejects callers over rule with 429. Callers are keyed by client
// address, scoped to the resolved tenant when there is one. A limiter error
// lets the request through.
func RateLimit(limiter Limiter, rule ratelimit.Rule, metrics *observability.Metrics, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := callerKey(r)

			result, err := limiter.Allow(ctx, rule, key)
			if err != nil {
				logger.Warn("rate limit check failed, allowing request",
					zap.String("request_id", GetRequestIDFromContext(ctx)),
					zap.String("scope", rule.Scope),
					zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			if !result.Allowed {
				metrics.RateLimit(rule.Scope)
				logger.Info("rate limited",
					zap.String("request_id", GetRequestIDFromContext(ctx)),
					zap.String("scope", rule.Scope),
					zap.String("key", key),
					zap.String("reason", result.Reason))
				w.Header().Set("Retry-After", retryAfter(result.ResetAt, time.Now()))
				_ = utils.WriteTooManyRequests(w, "")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func callerKey(r *http.Request) string {
	addr := r.RemoteAddr
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	if tenant := GetTenantFromContext(r.Context()); tenant != nil {
		return tenant.ID.String() + ":" + addr
	}
	return addr
}

// retryAfter renders whole seconds until resetAt, at least one
func retryAfter(resetAt, now time.Time) string {
	seconds := int(math.Ceil(resetAt.Sub(now).Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}
