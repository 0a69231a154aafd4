package origin

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/alanensastegui/subsights-demo/backend/internal/domain/target"
	"github.com/alanensastegui/subsights-demo/backend/internal/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestProxy(t *testing.T, baseURL, snippet string) (*Proxy, *observer.ObservedLogs) {
	t.Helper()
	registry, err := target.NewMemoryRegistry(target.Target{
		Slug:    "acme",
		BaseURL: baseURL,
		Embed:   snippet,
	})
	require.NoError(t, err)

	core, logs := observer.New(zapcore.DebugLevel)
	return NewProxy(registry, NewFetcher(FetchOptions{}), zap.New(core)), logs
}

func TestProxyRenderInjectsTargetPage(t *testing.T) {
	srv := newUpstream(t, htmlHandler(acmePage))
	proxy, _ := newTestProxy(t, srv.URL, testSnippet)

	out, err := proxy.Render(context.Background(), "acme", "")
	require.NoError(t, err)
	assert.Nil(t, out.Failure)
	assert.Contains(t, out.HTML, `<base href="`+srv.URL+`/">`)
	assert.Equal(t, 1, strings.Count(out.HTML, SentinelMarker))
	assert.Contains(t, out.HTML, testSnippet)
}

func TestProxyRenderUnknownSlug(t *testing.T) {
	proxy, _ := newTestProxy(t, "https://acme.example", testSnippet)

	_, err := proxy.Render(context.Background(), "globex", "")
	assert.ErrorIs(t, err, target.ErrNotFound)
}

func TestProxyRenderUpstreamErrorBecomesDocument(t *testing.T) {
	srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	proxy, logs := newTestProxy(t, srv.URL, testSnippet)

	out, err := proxy.Render(context.Background(), "acme", "")
	require.NoError(t, err)
	require.NotNil(t, out.Failure)
	assert.Equal(t, types.ReasonProxyHTTPError, out.Failure.Reason)
	assert.Contains(t, out.HTML, ErrorMarker+`="proxy-http-error"`)
	assert.NotContains(t, out.HTML, SentinelMarker)
	assert.Equal(t, 1, logs.FilterMessage("proxy fetch failed").Len())
}

func TestProxyRenderMalformedSnippet(t *testing.T) {
	srv := newUpstream(t, htmlHandler(acmePage))
	proxy, logs := newTestProxy(t, srv.URL, `<script src="https://w.example/v1.js"></script>`)

	out, err := proxy.Render(context.Background(), "acme", "")
	require.NoError(t, err)
	require.NotNil(t, out.Failure)
	assert.ErrorIs(t, out.Failure, ErrInvalidSnippet)
	assert.Equal(t, types.ReasonProxyError, out.Failure.Reason)
	assert.NotContains(t, out.HTML, "Welcome")

	entries := logs.FilterMessage("target has a malformed widget snippet").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
}
