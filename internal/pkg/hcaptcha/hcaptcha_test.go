package hcaptcha

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVerifier(t *testing.T) *Verifier {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "secret", r.PostForm.Get("secret"))
		resp := Response{Success: r.PostForm.Get("response") == "pass"}
		if !resp.Success {
			resp.ErrorCodes = []string{"invalid-input-response"}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)

	v := NewVerifier("secret")
	v.VerifyURL = srv.URL
	return v
}

func TestVerify(t *testing.T) {
	v := newVerifier(t)
	assert.True(t, v.Enabled())

	require.NoError(t, v.Verify(context.Background(), "pass"))

	err := v.Verify(context.Background(), "fail")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid-input-response")

	assert.ErrorIs(t, v.Verify(context.Background(), ""), ErrEmptyToken)
}

func TestDisabledWithoutSecret(t *testing.T) {
	assert.False(t, NewVerifier("").Enabled())
	var v *Verifier
	assert.False(t, v.Enabled())
}
