package origin

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alanensastegui/subsights-demo/backend/internal/infrastructure/resilience"
	"github.com/alanensastegui/subsights-demo/backend/internal/shared/types"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const acmePage = `<!doctype html><html><head><title>Acme</title></head><body>Welcome</body></html>`

func newUpstream(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func htmlHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}
}

func requireFailure(t *testing.T, err error, reason types.Reason) *Failure {
	t.Helper()
	f, ok := AsFailure(err)
	require.True(t, ok, "expected *Failure, got %v", err)
	assert.Equal(t, reason, f.Reason)
	return f
}

func TestFetchHTML(t *testing.T) {
	var gotUA, gotAccept string
	srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		htmlHandler(acmePage)(w, r)
	})

	page, err := NewFetcher(FetchOptions{}).Fetch(context.Background(), srv.URL, "Mozilla/5.0 TestBrowser")
	require.NoError(t, err)
	assert.Equal(t, acmePage, page.HTML)
	assert.Equal(t, http.StatusOK, page.Status)
	assert.Equal(t, "utf-8", page.Charset)
	assert.Equal(t, "Mozilla/5.0 TestBrowser", gotUA)
	assert.Contains(t, gotAccept, "text/html")
}

func TestFetchDefaultUserAgent(t *testing.T) {
	var gotUA string
	srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		htmlHandler(acmePage)(w, r)
	})

	_, err := NewFetcher(FetchOptions{}).Fetch(context.Background(), srv.URL, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultUserAgent, gotUA)
}

func TestFetchFollowsRedirects(t *testing.T) {
	srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.Redirect(w, r, "/home", http.StatusFound)
			return
		}
		htmlHandler(acmePage)(w, r)
	})

	page, err := NewFetcher(FetchOptions{}).Fetch(context.Background(), srv.URL, "")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(page.URL, "/home"))
}

func TestFetchFailures(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

	tests := []struct {
		name    string
		handler http.HandlerFunc
		opts    FetchOptions
		reason  types.Reason
		status  int
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			reason: types.ReasonProxyHTTPError,
			status: http.StatusInternalServerError,
		},
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.NotFound(w, r)
			},
			reason: types.ReasonProxyHTTPError,
			status: http.StatusNotFound,
		},
		{
			name: "json content type",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"ok":true}`))
			},
			reason: types.ReasonProxyNotHTML,
		},
		{
			name: "sniffed binary without content type",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header()["Content-Type"] = nil
				_, _ = w.Write(png)
			},
			reason: types.ReasonProxyNotHTML,
		},
		{
			name:    "body over cap",
			handler: htmlHandler(strings.Repeat("a", 64)),
			opts:    FetchOptions{MaxBytes: 16},
			reason:  types.ReasonProxyTooLarge,
		},
		{
			name: "corrupt gzip",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				w.Header().Set("Content-Encoding", "gzip")
				_, _ = w.Write([]byte("definitely not gzip"))
			},
			reason: types.ReasonProxyFetchFailed,
		},
		{
			name: "slow upstream",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
			opts:   FetchOptions{Timeout: 50 * time.Millisecond},
			reason: types.ReasonProxyTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newUpstream(t, tt.handler)
			_, err := NewFetcher(tt.opts).Fetch(context.Background(), srv.URL, "")
			f := requireFailure(t, err, tt.reason)
			assert.Equal(t, tt.status, f.Status)
		})
	}
}

func TestFetchUnreachableOrigin(t *testing.T) {
	srv := httptest.NewServer(htmlHandler(acmePage))
	addr := srv.URL
	srv.Close()

	_, err := NewFetcher(FetchOptions{}).Fetch(context.Background(), addr, "")
	requireFailure(t, err, types.ReasonProxyError)
}

func TestFetchSniffsHTMLWithoutContentType(t *testing.T) {
	srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		_, _ = w.Write([]byte(acmePage))
	})

	page, err := NewFetcher(FetchOptions{}).Fetch(context.Background(), srv.URL, "")
	require.NoError(t, err)
	assert.Equal(t, acmePage, page.HTML)
}

func TestFetchDecodesContentEncoding(t *testing.T) {
	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	_, _ = gw.Write([]byte(acmePage))
	require.NoError(t, gw.Close())

	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	zst := enc.EncodeAll([]byte(acmePage), nil)
	require.NoError(t, enc.Close())

	for name, body := range map[string][]byte{"gzip": gz.Bytes(), "zstd": zst} {
		t.Run(name, func(t *testing.T) {
			var acceptEncoding string
			srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
				acceptEncoding = r.Header.Get("Accept-Encoding")
				w.Header().Set("Content-Type", "text/html")
				w.Header().Set("Content-Encoding", name)
				_, _ = w.Write(body)
			})

			page, err := NewFetcher(FetchOptions{}).Fetch(context.Background(), srv.URL, "")
			require.NoError(t, err)
			assert.Equal(t, acmePage, page.HTML)
			assert.Equal(t, "gzip, zstd", acceptEncoding)
		})
	}
}

func TestFetchConvertsDeclaredCharset(t *testing.T) {
	srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=ISO-8859-1")
		_, _ = w.Write([]byte("<html><head><title>Caf\xe9</title></head></html>"))
	})

	page, err := NewFetcher(FetchOptions{}).Fetch(context.Background(), srv.URL, "")
	require.NoError(t, err)
	assert.Contains(t, page.HTML, "Café")
	assert.Equal(t, "windows-1252", page.Charset)
}

func TestFetchBreakerOpensForUnreachableOrigin(t *testing.T) {
	srv := httptest.NewServer(htmlHandler(acmePage))
	addr := srv.URL
	srv.Close()

	fetcher := NewFetcher(FetchOptions{Breakers: resilience.NewSet(BreakerPolicy(2, time.Minute))})
	for i := 0; i < 2; i++ {
		_, err := fetcher.Fetch(context.Background(), addr, "")
		requireFailure(t, err, types.ReasonProxyError)
	}

	_, err := fetcher.Fetch(context.Background(), addr, "")
	requireFailure(t, err, types.ReasonProxyError)
	assert.True(t, errors.Is(err, resilience.ErrCircuitOpen))
}

func TestFetchBreakerIgnoresHTTPErrors(t *testing.T) {
	srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	breakers := resilience.NewSet(BreakerPolicy(1, time.Minute))
	fetcher := NewFetcher(FetchOptions{Breakers: breakers})
	for i := 0; i < 3; i++ {
		_, err := fetcher.Fetch(context.Background(), srv.URL, "")
		requireFailure(t, err, types.ReasonProxyHTTPError)
	}
	for _, state := range breakers.Snapshot() {
		assert.Equal(t, resilience.StateClosed, state)
	}
}

func TestFetchRejectsInvalidURL(t *testing.T) {
	_, err := NewFetcher(FetchOptions{}).Fetch(context.Background(), "not a url", "")
	requireFailure(t, err, types.ReasonProxyError)
}
