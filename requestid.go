package shatter

import (
	"crypto/rand"
	"encoding/hex"
)

// RequestID is the per-call correlation ID provided into the call context.
type RequestID string

// RequestIDConfig configures the RequestID middleware.
type RequestIDConfig struct {
	Header    string        // default: "X-Request-Id"
	Generator func() string // default: random hex
}

type requestIDMiddleware struct {
	cfg RequestIDConfig
}

// RequestIDMiddleware returns middleware that assigns a unique request ID to
// each call. The ID is read from the request header when present, generated
// otherwise, and provided into the call context for handlers and loggers.
func RequestIDMiddleware(cfg ...RequestIDConfig) Middleware {
	c := RequestIDConfig{
		Header:    "X-Request-Id",
		Generator: defaultIDGenerator,
	}
	if len(cfg) > 0 {
		if cfg[0].Header != "" {
			c.Header = cfg[0].Header
		}
		if cfg[0].Generator != nil {
			c.Generator = cfg[0].Generator
		}
	}
	return &requestIDMiddleware{cfg: c}
}

func (m *requestIDMiddleware) Handle(ctx *CallCtx, next CallNext) (*Response, error) {
	id := ctx.Request().Header(m.cfg.Header)
	if id == "" {
		id = m.cfg.Generator()
	}
	ctx.Provide(RequestID(id))
	return next(ctx)
}

// GetRequestID extracts the request ID from the call context.
func GetRequestID(ctx *CallCtx) string {
	if id, ok := Get[RequestID](ctx); ok {
		return string(id)
	}
	return ""
}

func defaultIDGenerator() string {
	b := make([]byte, 16)
	//nolint:errcheck,gosec // crypto/rand.Read always returns nil error
	rand.Read(b)
	return hex.EncodeToString(b)
}
