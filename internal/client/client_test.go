package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildURLWithParams(t *testing.T) {
	got := BuildURLWithParams("http://store/rest/v1/approvals?select=*", map[string]string{
		"walletAddress": "eq.0xAbC",
	})

	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "/rest/v1/approvals", u.Path)
	assert.Equal(t, "*", u.Query().Get("select"))
	assert.Equal(t, "eq.0xAbC", u.Query().Get("walletAddress"))

	assert.Equal(t, "http://store/x", BuildURLWithParams("http://store/x", nil))
}

func TestPostSendsAuthAndRepresentationHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/v1/approvals", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"a":1}`, string(body))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`[{"id":"1"}]`))
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL+"/", "secret")
	data, err := c.Post(context.Background(), "approvals", map[string]int{"a": 1})

	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"1"}]`, string(data))
}

func TestHTTPErrorsAreReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "permission denied", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewAPIClient(srv.URL, "").Get(context.Background(), "approvals", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP error 403")
}

func TestWaitForAPIReady(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, "")

	assert.True(t, c.WaitForAPIReady(context.Background(), 5, time.Millisecond))
	assert.Equal(t, 3, calls)
}
