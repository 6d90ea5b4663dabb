package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const corpusURL = "https://api.ganjoor.test/api/ganjoor/cat/24"

// newMockedClient routes every request of a fresh client through httpmock
func newMockedClient(t *testing.T, cfg *Config) *Client {
	t.Helper()
	c := New(cfg)
	httpmock.ActivateNonDefault(c.HTTPClient())
	t.Cleanup(func() {
		httpmock.DeactivateAndReset()
		c.Close()
	})
	return c
}

func TestNewFillsZeroFieldsWithDefaults(t *testing.T) {
	c := New(nil)
	defer c.Close()
	assert.Equal(t, DefaultTimeout, c.defaultTimeout)
	assert.Equal(t, defaultUserAgent, c.userAgent)

	c = New(&Config{UserAgent: "naskban/1.4.0", DefaultTimeout: 5 * time.Second})
	defer c.Close()
	assert.Equal(t, 5*time.Second, c.defaultTimeout)
	assert.Equal(t, "naskban/1.4.0", c.userAgent)

	transport, ok := c.HTTPClient().Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, defaultMaxIdleConnsPerHost, transport.MaxIdleConnsPerHost)
}

func TestGetAsksForJSONWithUserAgent(t *testing.T) {
	c := newMockedClient(t, &Config{UserAgent: "naskban/1.4.0"})

	var header http.Header
	httpmock.RegisterResponder(http.MethodGet, corpusURL,
		func(req *http.Request) (*http.Response, error) {
			header = req.Header.Clone()
			return httpmock.NewStringResponse(http.StatusOK, `{"cat":{"id":24}}`), nil
		})

	resp, err := c.Get(t.Context(), corpusURL)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	assert.JSONEq(t, `{"cat":{"id":24}}`, string(body))
	assert.Equal(t, "application/json", header.Get("Accept"))
	assert.Equal(t, "naskban/1.4.0", header.Get("User-Agent"))
}

func TestDoKeepsCallerUserAgent(t *testing.T) {
	c := newMockedClient(t, nil)

	var agent string
	httpmock.RegisterResponder(http.MethodGet, corpusURL,
		func(req *http.Request) (*http.Response, error) {
			agent = req.Header.Get("User-Agent")
			return httpmock.NewStringResponse(http.StatusNoContent, ""), nil
		})

	req, err := http.NewRequest(http.MethodGet, corpusURL, http.NoBody)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "reconciler")
	resp, err := c.Do(t.Context(), req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, "reconciler", agent)

	_, err = c.Do(t.Context(), nil)
	require.Error(t, err)
}

func TestAfterResponseHookReportsOutcome(t *testing.T) {
	c := newMockedClient(t, nil)

	type observed struct {
		status  int
		err     error
		elapsed time.Duration
	}
	var calls []observed
	c.SetAfterResponseHook(func(_ *http.Request, resp *http.Response, err error, elapsed time.Duration) {
		o := observed{err: err, elapsed: elapsed}
		if resp != nil {
			o.status = resp.StatusCode
		}
		calls = append(calls, o)
	})

	httpmock.RegisterResponder(http.MethodGet, corpusURL,
		httpmock.NewStringResponder(http.StatusServiceUnavailable, "").Delay(10*time.Millisecond))
	httpmock.RegisterResponder(http.MethodGet, corpusURL+"/missing",
		httpmock.NewErrorResponder(io.ErrUnexpectedEOF))

	resp, err := c.Get(t.Context(), corpusURL)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	_, err = c.Get(t.Context(), corpusURL+"/missing")
	require.Error(t, err)

	require.Len(t, calls, 2)
	assert.Equal(t, http.StatusServiceUnavailable, calls[0].status)
	assert.NoError(t, calls[0].err)
	assert.GreaterOrEqual(t, calls[0].elapsed, 10*time.Millisecond)
	assert.Zero(t, calls[1].status)
	assert.ErrorIs(t, calls[1].err, io.ErrUnexpectedEOF)
}

// slowServer answers after delay
func slowServer(t *testing.T, delay time.Duration) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(delay):
			w.WriteHeader(http.StatusOK)
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestDefaultTimeoutAppliesWithoutDeadline(t *testing.T) {
	server := slowServer(t, time.Second)
	c := New(&Config{DefaultTimeout: 50 * time.Millisecond})
	defer c.Close()

	_, err := c.Get(context.Background(), server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCallerDeadlineWinsOverDefaultTimeout(t *testing.T) {
	server := slowServer(t, 100*time.Millisecond)
	c := New(&Config{DefaultTimeout: 20 * time.Millisecond})
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := c.Get(ctx, server.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, resp.Body.Close())
}

func TestBodyCloseReleasesDefaultTimeout(t *testing.T) {
	released := false
	body := &cancelOnClose{ReadCloser: io.NopCloser(nil), cancel: func() { released = true }}
	require.NoError(t, body.Close())
	assert.True(t, released)
}
