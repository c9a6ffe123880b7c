package verification

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVerifier(t *testing.T, handler http.HandlerFunc) *TurnstileVerifier {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	v := NewTurnstileVerifier("secret-key")
	v.verifyURL = srv.URL
	return v
}

func TestTurnstileVerifier_Verify(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		v := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "secret-key", r.PostForm.Get("secret"))
			assert.Equal(t, "tok-1", r.PostForm.Get("response"))
			assert.Equal(t, "203.0.113.5", r.PostForm.Get("remoteip"))
			w.Write([]byte(`{"success":true}`))
		})

		ok, err := v.Verify(context.Background(), "tok-1", "203.0.113.5")
		assert.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Rejected", func(t *testing.T) {
		v := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"success":false,"error-codes":["invalid-input-response"]}`))
		})

		ok, err := v.Verify(context.Background(), "bad", "")
		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("UpstreamError", func(t *testing.T) {
		v := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		ok, err := v.Verify(context.Background(), "tok", "")
		assert.Error(t, err)
		assert.False(t, ok)
	})

	t.Run("MalformedBody", func(t *testing.T) {
		v := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`not json`))
		})

		_, err := v.Verify(context.Background(), "tok", "")
		assert.Error(t, err)
	})

	t.Run("NotConfigured", func(t *testing.T) {
		v := NewTurnstileVerifier("")
		assert.False(t, v.Enabled())

		ok, err := v.Verify(context.Background(), "tok", "")
		assert.ErrorIs(t, err, ErrNotConfigured)
		assert.False(t, ok)
	})
}
