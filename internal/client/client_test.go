package client

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeVK имитирует методы VK API и long poll сервер.
type fakeVK struct {
	mu       sync.Mutex
	requests []*url.URL

	bootstrap string
	poll      string
	send      string
}

func (f *fakeVK) handler(body func(*fakeVK) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r.URL)
		resp := body(f)
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(resp))
	}
}

func (f *fakeVK) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.requests)
}

func (f *fakeVK) last() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.requests[len(f.requests)-1].Query()
}

func newFakeVK(t *testing.T) (*fakeVK, *httptest.Server) {
	t.Helper()

	f := &fakeVK{
		bootstrap: `{"response": {"key": "k1", "server": "SERVER", "ts": "100"}}`,
		poll:      `{"ts": "101", "updates": []}`,
		send:      `{"response": 1}`,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/method/groups.getLongPollServer", f.handler(func(f *fakeVK) string { return f.bootstrap }))
	mux.HandleFunc("/method/messages.send", f.handler(func(f *fakeVK) string { return f.send }))
	mux.HandleFunc("/lp", f.handler(func(f *fakeVK) string { return f.poll }))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return f, srv
}

func newTestClient(srv *httptest.Server) *HTTPClient {
	return NewHTTPClient(Credentials{AccessToken: "token", GroupID: 55}, srv.URL+"/method/", 0)
}

func TestHTTPClient_OpenClose(t *testing.T) {
	c := NewHTTPClient(Credentials{}, "", 0)

	assert.False(t, c.Connected())
	assert.NoError(t, c.Close(), "close without open")

	c.Open()
	c.Open()
	assert.True(t, c.Connected())

	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
	assert.False(t, c.Connected())
}

func TestHTTPClient_GetLongPollServer(t *testing.T) {
	f, srv := newFakeVK(t)

	c := newTestClient(srv)
	c.Open()
	defer c.Close()

	server, err := c.GetLongPollServer(context.Background())
	require.NoError(t, err)

	assert.Equal(t, &LongPollServer{Server: "SERVER", Key: "k1", TS: 100}, server)

	query := f.last()
	assert.Equal(t, "token", query.Get("access_token"))
	assert.Equal(t, "55", query.Get("group_id"))
	assert.Equal(t, APIVersion, query.Get("v"))
}

func TestHTTPClient_GetLongPollServer_Unavailable(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{name: "api error", body: `{"error": {"error_code": 5, "error_msg": "User authorization failed"}}`},
		{name: "no response", body: `{}`},
		{name: "null response", body: `{"response": null}`},
		{name: "missing key", body: `{"response": {"server": "s", "ts": 1}}`},
		{name: "bad ts", body: `{"response": {"key": "k", "server": "s", "ts": "soon"}}`},
		{name: "not json", body: `<html>`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f, srv := newFakeVK(t)
			f.bootstrap = tc.body

			c := newTestClient(srv)
			c.Open()
			defer c.Close()

			server, err := c.GetLongPollServer(context.Background())
			assert.ErrorIs(t, err, ErrUpstreamUnavailable)
			assert.Nil(t, server)
		})
	}
}

func TestHTTPClient_GetLongPollServer_APIError(t *testing.T) {
	f, srv := newFakeVK(t)
	f.bootstrap = `{"error": {"error_code": 5, "error_msg": "User authorization failed"}}`

	c := newTestClient(srv)
	c.Open()
	defer c.Close()

	_, err := c.GetLongPollServer(context.Background())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 5, apiErr.Code)
}

func TestHTTPClient_GetLongPollServer_Closed(t *testing.T) {
	f, srv := newFakeVK(t)

	c := newTestClient(srv)

	_, err := c.GetLongPollServer(context.Background())
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Zero(t, f.count())
}

func TestHTTPClient_CheckUpdates(t *testing.T) {
	f, srv := newFakeVK(t)
	f.poll = `{"ts": 120, "updates": [{"type": "message_new"}, {"type": "wall_post_new"}]}`

	c := newTestClient(srv)
	c.Open()
	defer c.Close()

	result, err := c.CheckUpdates(context.Background(), LongPollServer{Server: srv.URL + "/lp", Key: "k1", TS: 100}, 25)
	require.NoError(t, err)

	require.NotNil(t, result.TS)
	assert.Equal(t, int64(120), *result.TS)
	assert.Len(t, result.Updates, 2)
	assert.Zero(t, result.Failed)

	query := f.last()
	assert.Equal(t, "a_check", query.Get("act"))
	assert.Equal(t, "k1", query.Get("key"))
	assert.Equal(t, "100", query.Get("ts"))
	assert.Equal(t, "25", query.Get("wait"))
}

func TestHTTPClient_CheckUpdates_NoTS(t *testing.T) {
	f, srv := newFakeVK(t)
	f.poll = `{"updates": []}`

	c := newTestClient(srv)
	c.Open()
	defer c.Close()

	result, err := c.CheckUpdates(context.Background(), LongPollServer{Server: srv.URL + "/lp", Key: "k", TS: 1}, 1)
	require.NoError(t, err)
	assert.Nil(t, result.TS)
}

func TestHTTPClient_CheckUpdates_Failed(t *testing.T) {
	f, srv := newFakeVK(t)
	f.poll = `{"failed": 2}`

	c := newTestClient(srv)
	c.Open()
	defer c.Close()

	result, err := c.CheckUpdates(context.Background(), LongPollServer{Server: srv.URL + "/lp", Key: "k", TS: 1}, 1)
	assert.ErrorIs(t, err, ErrSessionExpired)
	require.NotNil(t, result)
	assert.Equal(t, 2, result.Failed)
	assert.Empty(t, result.Updates)
}

func TestHTTPClient_CheckUpdates_Malformed(t *testing.T) {
	f, srv := newFakeVK(t)
	f.poll = `{"ts": `

	c := newTestClient(srv)
	c.Open()
	defer c.Close()

	_, err := c.CheckUpdates(context.Background(), LongPollServer{Server: srv.URL + "/lp", Key: "k", TS: 1}, 1)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionExpired)
}

func TestHTTPClient_CheckUpdates_Closed(t *testing.T) {
	f, srv := newFakeVK(t)

	c := newTestClient(srv)

	result, err := c.CheckUpdates(context.Background(), LongPollServer{Server: srv.URL + "/lp", Key: "k", TS: 1}, 1)
	require.NoError(t, err)
	assert.Empty(t, result.Updates)
	assert.Zero(t, f.count())
}

func TestHTTPClient_SendMessage(t *testing.T) {
	f, srv := newFakeVK(t)

	c := newTestClient(srv)
	c.Open()
	defer c.Close()

	err := c.SendMessage(context.Background(), OutboundMessage{UserID: 42, Text: "привет, мир"})
	require.NoError(t, err)

	query := f.last()
	assert.Equal(t, "token", query.Get("access_token"))
	assert.Equal(t, "42", query.Get("user_id"))
	assert.Equal(t, "0", query.Get("random_id"))
	assert.Equal(t, "привет, мир", query.Get("message"))

	err = c.SendMessage(context.Background(), OutboundMessage{UserID: 42, Text: "again", RandomID: 900})
	require.NoError(t, err)
	assert.Equal(t, "900", f.last().Get("random_id"))
}

func TestHTTPClient_SendMessage_NoOp(t *testing.T) {
	f, srv := newFakeVK(t)

	closed := newTestClient(srv)
	assert.NoError(t, closed.SendMessage(context.Background(), OutboundMessage{UserID: 42, Text: "hi"}))

	unconfigured := NewHTTPClient(Credentials{}, srv.URL+"/method/", 0)
	unconfigured.Open()
	defer unconfigured.Close()
	assert.NoError(t, unconfigured.SendMessage(context.Background(), OutboundMessage{UserID: 42, Text: "hi"}))

	assert.Zero(t, f.count())
}

func TestHTTPClient_SendMessage_ClosedWhileWaiting(t *testing.T) {
	f, srv := newFakeVK(t)

	// один вызов в секунду: второй запрос ждет лимитер
	c := NewHTTPClient(Credentials{AccessToken: "token", GroupID: 55}, srv.URL+"/method/", 1)
	c.Open()

	require.NoError(t, c.SendMessage(context.Background(), OutboundMessage{UserID: 42, Text: "first"}))

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.SendMessage(context.Background(), OutboundMessage{UserID: 42, Text: "second"})
	}()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, c.Close())

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("send did not return")
	}

	assert.Equal(t, 1, f.count())
}

func TestHTTPClient_DoRequest_Closed(t *testing.T) {
	_, srv := newFakeVK(t)

	c := newTestClient(srv)

	_, err := c.doRequest(context.Background(), "messages.send", url.Values{})
	assert.ErrorIs(t, err, errClosed)
}

func TestHTTPClient_SendMessage_Failed(t *testing.T) {
	f, srv := newFakeVK(t)
	f.send = `{"error": {"error_code": 901, "error_msg": "Can't send messages for users without permission"}}`

	c := newTestClient(srv)
	c.Open()
	defer c.Close()

	err := c.SendMessage(context.Background(), OutboundMessage{UserID: 42, Text: "hi"})
	assert.ErrorIs(t, err, ErrSendFailed)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 901, apiErr.Code)
	assert.Equal(t, 1, f.count(), "send must not be retried")
}

func TestHTTPClient_TokenNotLeakedInErrors(t *testing.T) {
	c := NewHTTPClient(Credentials{AccessToken: "very-secret", GroupID: 1}, "http://127.0.0.1:1/method/", 0)
	c.Open()
	defer c.Close()

	_, err := c.GetLongPollServer(context.Background())
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "very-secret")
}

func TestParseInt(t *testing.T) {
	testCases := []struct {
		raw  string
		want int64
		ok   bool
	}{
		{raw: `7`, want: 7, ok: true},
		{raw: `"7"`, want: 7, ok: true},
		{raw: `" 42 "`, want: 42, ok: true},
		{raw: `-3`, want: -3, ok: true},
		{raw: `100.0`, want: 100, ok: true},
		{raw: `1.5`},
		{raw: `"1.5"`},
		{raw: `"abc"`},
		{raw: `null`},
		{raw: ``},
		{raw: `true`},
		{raw: `[1]`},
		{raw: `{"a": 1}`},
		{raw: `-9223372036854775808`, want: math.MinInt64, ok: true},
		{raw: `9223372036854775807`, want: math.MaxInt64, ok: true},
		{raw: `9223372036854775808`},
		{raw: `-9223372036854775809`},
		{raw: `"9223372036854775808"`},
		{raw: `9.223372036854775808e18`},
		{raw: `1e19`},
		{raw: `-1e19`},
	}

	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := ParseInt(json.RawMessage(tc.raw))
			if !tc.ok {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
