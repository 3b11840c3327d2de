package shatter

import (
	"context"
	"log/slog"
	"time"
)

// requestLogger logs one line per dispatched call.
type requestLogger struct {
	logger *slog.Logger
}

// RequestLogger returns middleware that logs each call using the provided
// slog.Logger: route, status, latency, and the request ID when one is set.
func RequestLogger(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &requestLogger{logger: logger}
}

func (l *requestLogger) Handle(ctx *CallCtx, next CallNext) (*Response, error) {
	start := time.Now()
	resp, err := next(ctx)

	attrs := []slog.Attr{
		slog.Duration("latency", time.Since(start)),
	}
	if info, ok := Get[RouteInfo](ctx); ok {
		attrs = append(attrs,
			slog.String("path", info.Path),
			slog.String("method", info.Method),
			slog.String("descriptor", info.Descriptor),
		)
	}
	if id := GetRequestID(ctx); id != "" {
		attrs = append(attrs, slog.String("request_id", id))
	}

	if err != nil {
		attrs = append(attrs, slog.String("err", err.Error()))
		l.logger.LogAttrs(context.Background(), slog.LevelError, "call failed", attrs...)
		return resp, err
	}

	if resp != nil {
		attrs = append(attrs, slog.Int("status", resp.StatusCode()))
	}
	l.logger.LogAttrs(context.Background(), slog.LevelInfo, "call", attrs...)
	return resp, nil
}
