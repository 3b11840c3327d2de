package shatter_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shatterdev/shatter"
)

func TestToHeaderName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"content_type":  "Content-Type",
		"x_request_id":  "X-Request-Id",
		"authorization": "Authorization",
		"retry_after":   "Retry-After",
		"Content-Type":  "Content-Type",
		"x-auth-token":  "X-Auth-Token",
		"WWW_AUTHORIZE": "Www-Authorize",
		"single":        "Single",
	}

	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			in, want := in, want
			t.Parallel()
			assert.Equal(t, want, shatter.ToHeaderName(in))
		})
	}
}

func TestResponse_Status(t *testing.T) {
	t.Parallel()

	tests := map[int]string{
		http.StatusOK:                  "200 OK",
		http.StatusCreated:             "201 Created",
		http.StatusNotFound:            "404 Not Found",
		http.StatusUnprocessableEntity: "422 Unprocessable Entity",
		http.StatusInternalServerError: "500 Internal Server Error",
	}

	for code, want := range tests {
		resp := shatter.JSON(nil, code)
		assert.Equal(t, want, resp.Status())
		assert.Equal(t, code, resp.StatusCode())
	}
}

func TestResponse_Body(t *testing.T) {
	t.Parallel()

	t.Run("string passes through", func(t *testing.T) {
		t.Parallel()

		body, err := shatter.Text("plain text", http.StatusOK).Body()
		require.NoError(t, err)
		assert.Equal(t, "plain text", body)
	})

	t.Run("struct serializes to JSON", func(t *testing.T) {
		t.Parallel()

		type payload struct {
			Name string `json:"name"`
		}
		body, err := shatter.JSON(payload{Name: "gopher"}, http.StatusOK).Body()
		require.NoError(t, err)
		assert.JSONEq(t, `{"name":"gopher"}`, body)
	})

	t.Run("nil body is empty", func(t *testing.T) {
		t.Parallel()

		body, err := shatter.JSON(nil, http.StatusNoContent).Body()
		require.NoError(t, err)
		assert.Empty(t, body)
	})

	t.Run("unserializable body errors", func(t *testing.T) {
		t.Parallel()

		_, err := shatter.JSON(func() {}, http.StatusOK).Body()
		assert.Error(t, err)
	})
}

func TestResponse_Headers(t *testing.T) {
	t.Parallel()

	t.Run("json content type", func(t *testing.T) {
		t.Parallel()

		headers := shatter.JSON(nil, http.StatusOK).Headers()
		assert.Equal(t, map[string]string{"Content-Type": "application/json"}, headers)
	})

	t.Run("text content type", func(t *testing.T) {
		t.Parallel()

		headers := shatter.Text("hi", http.StatusOK).Headers()
		assert.Equal(t, map[string]string{"Content-Type": "text/plain"}, headers)
	})

	t.Run("field names rewritten to wire casing", func(t *testing.T) {
		t.Parallel()

		type customHeaders struct {
			CacheControl string `json:"cache_control"`
			RequestID    string `json:"x_request_id"`
			Empty        string `json:"x_empty"`
		}
		resp := shatter.NewResponse(nil, http.StatusOK, customHeaders{
			CacheControl: "no-store",
			RequestID:    "abc",
		})

		assert.Equal(t, map[string]string{
			"Cache-Control": "no-store",
			"X-Request-Id":  "abc",
		}, resp.Headers())
	})

	t.Run("header tag overrides the derived name", func(t *testing.T) {
		t.Parallel()

		type tagged struct {
			Auth string `json:"auth" header:"WWW-Authenticate"`
		}
		resp := shatter.NewResponse(nil, http.StatusUnauthorized, tagged{Auth: "Bearer"})
		assert.Equal(t, map[string]string{"WWW-Authenticate": "Bearer"}, resp.Headers())
	})

	t.Run("empty header model renders nothing", func(t *testing.T) {
		t.Parallel()

		resp := shatter.NewResponse(nil, http.StatusOK, shatter.BaseHeaders{})
		assert.Empty(t, resp.Headers())
	})
}

func TestNotFound(t *testing.T) {
	t.Parallel()

	resp := shatter.NotFound()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode())

	data, ok := resp.Payload().(shatter.NotFoundData)
	require.True(t, ok)
	assert.Equal(t, "Not Found", data.Detail)
}
