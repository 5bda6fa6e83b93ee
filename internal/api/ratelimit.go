package api

import (
	"net"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// captureRateLimit rejects captures from a client that exceeds its budget with
// 429 Too Many Requests.
func (s *Server) captureRateLimit(ctx huma.Context, next func(huma.Context)) {
	key := clientIP(ctx.RemoteAddr())
	if !s.captureLimiter.Allow(key) {
		s.logger.Warn("capture rate limit exceeded", "ip", key, "path", ctx.URL().Path)
		_ = huma.WriteErr(s.api, ctx, http.StatusTooManyRequests, "Too many captures. Please try again later.")
		return
	}
	next(ctx)
}

// clientIP strips the port from a remote address. RealIP has already applied
// X-Forwarded-For and X-Real-IP.
func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
