package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rzbill/spool/internal/codec"
	"github.com/stretchr/testify/require"
)

func batch() Container {
	return Container{Logs: []codec.Record{
		{Type: "event", ID: "1", Payload: []byte("a")},
		{Type: "event", ID: "2", Payload: []byte("b")},
	}}
}

func TestSendPostsContainer(t *testing.T) {
	var got Container
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v0/logs", r.URL.Path)
		require.Equal(t, APIVersion, r.URL.Query().Get("api-version"))
		require.Equal(t, "secret", r.Header.Get(HeaderAppSecret))
		require.Equal(t, "install-1", r.Header.Get(HeaderInstallID))
		require.Equal(t, "Bearer tok", r.Header.Get(HeaderAuthorization))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewHTTP(HTTPConfig{BaseURL: srv.URL + "/v0/", AppSecret: "secret", InstallID: "install-1", AuthToken: "tok"})
	require.NoError(t, err)
	require.NoError(t, c.Send(context.Background(), batch()))
	require.Len(t, got.Logs, 2)
	require.Equal(t, "2", got.Logs[1].ID)
}

func TestSendClassifiesStatus(t *testing.T) {
	tests := []struct {
		status   int
		rejected bool
	}{
		{http.StatusBadRequest, true},
		{http.StatusForbidden, true},
		{http.StatusRequestTimeout, false},
		{http.StatusTooManyRequests, false},
		{http.StatusInternalServerError, false},
		{http.StatusServiceUnavailable, false},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tt.status)
		}))
		c, err := NewHTTP(HTTPConfig{BaseURL: srv.URL, AppSecret: "s"})
		require.NoError(t, err)

		err = c.Send(context.Background(), batch())
		var herr *HTTPError
		require.True(t, errors.As(err, &herr))
		require.Equal(t, tt.status, herr.StatusCode)
		require.Equal(t, "nope", herr.Body)
		require.Equal(t, tt.rejected, errors.Is(err, ErrRejected), "status %d", tt.status)
		srv.Close()
	}
}

func TestTransportFailureIsRecoverable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c, err := NewHTTP(HTTPConfig{BaseURL: srv.URL, AppSecret: "s", Timeout: 20 * time.Millisecond})
	require.NoError(t, err)
	err = c.Send(context.Background(), batch())
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrRejected))
}

func TestClosedClientRefusesSends(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits++ }))
	defer srv.Close()

	c, err := NewHTTP(HTTPConfig{BaseURL: srv.URL, AppSecret: "s"})
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	require.ErrorIs(t, c.Send(context.Background(), batch()), ErrClosed)
	require.Zero(t, hits)
}

func TestNewHTTPRejectsNonHTTPURL(t *testing.T) {
	_, err := NewHTTP(HTTPConfig{BaseURL: "ftp://example.com", AppSecret: "s"})
	require.Error(t, err)
}

func TestNewHTTPValidates(t *testing.T) {
	_, err := NewHTTP(HTTPConfig{BaseURL: "", AppSecret: "s"})
	require.Error(t, err)
	_, err = NewHTTP(HTTPConfig{BaseURL: "https://in.example.com"})
	require.Error(t, err)
}

func TestRecoverable(t *testing.T) {
	require.True(t, Recoverable(502))
	require.True(t, Recoverable(429))
	require.False(t, Recoverable(404))
	require.False(t, Recoverable(413))
}

func TestDiscardAcceptsEverything(t *testing.T) {
	d := NewDiscard(nil)
	require.NoError(t, d.Send(context.Background(), batch()))
	require.NoError(t, d.Close())
}
