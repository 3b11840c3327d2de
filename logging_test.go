package shatter_test

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shatterdev/shatter"
)

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	d := shatter.NewDescriptor("LoggedAPI",
		shatter.WithMiddleware(
			shatter.RequestIDMiddleware(shatter.RequestIDConfig{Generator: func() string { return "rid-1" }}),
			shatter.RequestLogger(logger),
		),
		shatter.Route("/ok", "OK", stringSig()),
		shatter.Route("/boom", "Boom", stringSig()),
	)
	require.NoError(t, d.Finalize())

	impl := shatter.NewImplementation(d,
		shatter.ProvideFunc("OK", okHandler("fine")),
		shatter.ProvideFunc("Boom", func(ctx *shatter.CallCtx) (*shatter.Response, error) {
			return nil, errors.New("kaput")
		}),
	)
	bm, err := impl.Bind()
	require.NoError(t, err)

	t.Run("successful call logs route and status", func(t *testing.T) {
		buf.Reset()

		resp, err := bm.Dispatch("/ok", &shatter.RequestCtx{})
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode())

		line := buf.String()
		assert.Contains(t, line, "level=INFO")
		assert.Contains(t, line, "path=/ok")
		assert.Contains(t, line, "method=OK")
		assert.Contains(t, line, "descriptor=LoggedAPI")
		assert.Contains(t, line, "status=200")
		assert.Contains(t, line, "request_id=rid-1")
	})

	t.Run("failing call logs the error", func(t *testing.T) {
		buf.Reset()

		_, err := bm.Dispatch("/boom", &shatter.RequestCtx{})
		require.Error(t, err)

		line := buf.String()
		assert.Contains(t, line, "level=ERROR")
		assert.Contains(t, line, "path=/boom")
		assert.Contains(t, line, "err=kaput")
	})
}
