package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newstack/internal/domain"
)

func TestInvokeSendsTriggerAndDecodesStats(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/functions/v1/ingest-rss", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "secret", r.Header.Get("apikey"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "manual", body["trigger"])

		_, _ = w.Write([]byte(`{"runId":"run-42","stats":{"feedsProcessed":3,"storiesCreated":7,"storiesMerged":2}}`))
	}))
	defer server.Close()

	client := NewFunctionsClient(server.URL+"/", "secret", "", time.Second)
	result, err := client.Invoke(context.Background(), domain.TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, domain.RunResult{RunID: "run-42", FeedsProcessed: 3, StoriesCreated: 7, StoriesMerged: 2}, result)
}

func TestInvokeRejectsNonCanonicalShapes(t *testing.T) {
	t.Parallel()

	bodies := map[string]string{
		"top level counters": `{"runId":"r","feedsProcessed":4,"storiesCreated":0,"storiesMerged":0}`,
		"partial stats":      `{"runId":"r","stats":{"feedsProcessed":4}}`,
		"not json":           `<html>oops</html>`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer server.Close()

			_, err := NewFunctionsClient(server.URL, "", "ingest-rss", time.Second).Invoke(context.Background(), domain.TriggerAuto)
			var remote *domain.RemoteError
			require.ErrorAs(t, err, &remote)
			assert.Equal(t, domain.ErrorDecode, remote.Kind)
		})
	}
}

func TestInvokeMapsStatusAndErrorBody(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		status   int
		body     string
		wantKind domain.ErrorKind
		wantMsg  string
	}{
		{name: "too many requests", status: http.StatusTooManyRequests, body: `{"error":"slow down"}`, wantKind: domain.ErrorRateLimited, wantMsg: "slow down"},
		{name: "gateway timeout", status: http.StatusGatewayTimeout, body: "", wantKind: domain.ErrorNetwork, wantMsg: "504 Gateway Timeout"},
		{name: "explicit kind wins", status: http.StatusInternalServerError, body: `{"error":"socket hang up","kind":"connection_closed"}`, wantKind: domain.ErrorConnectionClosed, wantMsg: "socket hang up"},
		{name: "plain text body", status: http.StatusInternalServerError, body: "boom", wantKind: domain.ErrorUnknown, wantMsg: "boom"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			_, err := NewFunctionsClient(server.URL, "", "", time.Second).Invoke(context.Background(), domain.TriggerManual)
			var remote *domain.RemoteError
			require.ErrorAs(t, err, &remote)
			assert.Equal(t, tc.wantKind, remote.Kind)
			assert.Equal(t, tc.status, remote.Status)
			assert.Equal(t, tc.wantMsg, remote.Message)
		})
	}
}

func TestInvokeTimeoutIsNetworkError(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	_, err := NewFunctionsClient(server.URL, "", "", 50*time.Millisecond).Invoke(context.Background(), domain.TriggerManual)
	var remote *domain.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, domain.ErrorNetwork, remote.Kind)
}

func TestInvokeClosedConnection(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		hj, ok := w.(http.Hijacker)
		require.True(t, ok)
		conn, _, err := hj.Hijack()
		require.NoError(t, err)
		_ = conn.Close()
	}))
	defer server.Close()

	_, err := NewFunctionsClient(server.URL, "", "", time.Second).Invoke(context.Background(), domain.TriggerManual)
	var remote *domain.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, domain.ErrorConnectionClosed, remote.Kind)
}

func TestTimeoutDefaultsWhenUnset(t *testing.T) {
	t.Parallel()

	assert.Equal(t, defaultTimeout, NewFunctionsClient("http://backend", "", "", 0).Timeout())
	assert.Equal(t, 5*time.Second, NewFunctionsClient("http://backend", "", "", 5*time.Second).Timeout())
}
