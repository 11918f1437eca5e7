package api

import (
	"log/slog"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/smazurov/tc420/internal/logging"
	"golang.org/x/time/rate"
)

// requestIDHeader carries a caller-supplied or generated request id.
const requestIDHeader = "X-Request-ID"

// maxRequestIDLen bounds ids accepted from callers.
const maxRequestIDLen = 64

// requestID returns the caller's id when it is usable, or a new one.
func requestID(header string) string {
	if header != "" && len(header) <= maxRequestIDLen && !strings.ContainsFunc(header, unicode.IsControl) {
		return header
	}
	return uuid.NewString()
}

// requestLevel picks the log level for a finished request.
func requestLevel(method string, status int) slog.Level {
	switch {
	case method == http.MethodOptions:
		return slog.LevelDebug
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// HTTPLoggingMiddleware tags each request with an id and logs it once it
// completes, at a level that follows the status code.
func HTTPLoggingMiddleware(ctx huma.Context, next func(huma.Context)) {
	start := time.Now()
	id := requestID(ctx.Header(requestIDHeader))
	ctx.SetHeader(requestIDHeader, id)

	attrs := []slog.Attr{
		slog.String("request_id", id),
		slog.String("method", ctx.Method()),
		slog.String("path", ctx.URL().Path),
		slog.String("remote_addr", ctx.RemoteAddr()),
	}
	if query := ctx.URL().RawQuery; query != "" {
		attrs = append(attrs, slog.String("query", query))
	}
	if op := ctx.Operation(); op != nil && op.OperationID != "" {
		attrs = append(attrs, slog.String("operation", op.OperationID))
	}

	next(ctx)

	status := ctx.Status()
	attrs = append(attrs, slog.Int("status", status), slog.Duration("duration", time.Since(start)))
	logging.GetLogger("http").LogAttrs(ctx.Context(), requestLevel(ctx.Method(), status), "HTTP request completed", attrs...)
}

// isDeviceOperation reports whether op sends reports to the controller.
func isDeviceOperation(op *huma.Operation) bool {
	return op != nil && op.Method == http.MethodPost && slices.Contains(op.Tags, "device")
}

// DeviceRateLimitMiddleware throttles operations that talk to the controller.
// Reads and program edits are never limited.
func DeviceRateLimitMiddleware(api huma.API, limiter *rate.Limiter) func(huma.Context, func(huma.Context)) {
	logger := logging.GetLogger("http")
	return func(ctx huma.Context, next func(huma.Context)) {
		if !isDeviceOperation(ctx.Operation()) {
			next(ctx)
			return
		}

		reservation := limiter.Reserve()
		if !reservation.OK() {
			huma.WriteErr(api, ctx, http.StatusTooManyRequests, "device operations are disabled")
			return
		}
		if delay := reservation.Delay(); delay > 0 {
			reservation.Cancel()
			retry := int(math.Ceil(delay.Seconds()))
			ctx.SetHeader("Retry-After", strconv.Itoa(retry))
			logger.Warn("Device operation rate limited", "path", ctx.URL().Path, "retry_after_s", retry)
			huma.WriteErr(api, ctx, http.StatusTooManyRequests, "too many device operations, retry later")
			return
		}

		next(ctx)
	}
}
