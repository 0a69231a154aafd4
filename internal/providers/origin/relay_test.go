package origin

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alanensastegui/subsights-demo/backend/internal/domain/target"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelayForward(t *testing.T) {
	var got *http.Request
	var gotBody string
	srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Security-Policy", "frame-ancestors 'none'")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Set-Cookie", "sid=1")
		w.Header().Set("X-Upstream", "acme")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":7}`))
	})
	tgt := target.Target{Slug: "acme", BaseURL: srv.URL, Embed: testSnippet}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Cookie", "product_session=secret")
	header.Set("User-Agent", "TestBrowser")

	resp, err := NewRelay(time.Second, nil).Forward(context.Background(), tgt, RelayRequest{
		Method: http.MethodPost,
		URL:    srv.URL + "/api/items?x=1",
		Header: header,
		Body:   strings.NewReader(`{"name":"widget"}`),
	})
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, `{"id":7}`, string(body))
	assert.Equal(t, http.StatusCreated, resp.Status)
	assert.Equal(t, "acme", resp.Header.Get("X-Upstream"))
	assert.Empty(t, resp.Header.Get("Content-Security-Policy"))
	assert.Empty(t, resp.Header.Get("X-Frame-Options"))
	assert.Empty(t, resp.Header.Get("Set-Cookie"))

	require.NotNil(t, got)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/api/items", got.URL.Path)
	assert.Equal(t, "1", got.URL.Query().Get("x"))
	assert.Equal(t, `{"name":"widget"}`, gotBody)
	assert.Equal(t, "TestBrowser", got.Header.Get("User-Agent"))
	assert.Empty(t, got.Header.Get("Cookie"))
}

func TestResolveRejectsOtherOrigins(t *testing.T) {
	tgt := target.Target{Slug: "acme", BaseURL: "https://acme.example/home", Embed: testSnippet}

	for _, raw := range []string{
		"https://evil.example/steal",
		"http://acme.example/api",
		"https://acme.example:8443/api",
		"/api/relative",
		"javascript:alert(1)",
		"",
	} {
		_, err := Resolve(tgt, raw)
		assert.ErrorIs(t, err, ErrOutsideOrigin, raw)
	}

	u, err := Resolve(tgt, "https://ACME.example/api?q=1")
	require.NoError(t, err)
	assert.Equal(t, "/api", u.Path)
}

func TestRelayRefusesRedirectOffOrigin(t *testing.T) {
	var otherHits atomic.Int32
	other := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		otherHits.Add(1)
		_, _ = w.Write([]byte("from-other-origin"))
	})
	srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, other.URL+"/secret", http.StatusFound)
	})
	tgt := target.Target{Slug: "acme", BaseURL: srv.URL, Embed: testSnippet}

	resp, err := NewRelay(time.Second, nil).Forward(context.Background(), tgt, RelayRequest{
		Method: http.MethodGet,
		URL:    srv.URL + "/api/cart",
		Header: http.Header{},
	})
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrOutsideOrigin)
	assert.Equal(t, int32(0), otherHits.Load())
}

func TestRelayFollowsSameOriginRedirect(t *testing.T) {
	srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/old" {
			http.Redirect(w, r, "/new", http.StatusMovedPermanently)
			return
		}
		_, _ = w.Write([]byte("moved:" + r.URL.Path))
	})
	tgt := target.Target{Slug: "acme", BaseURL: srv.URL, Embed: testSnippet}

	resp, err := NewRelay(time.Second, nil).Forward(context.Background(), tgt, RelayRequest{
		URL:    srv.URL + "/old",
		Header: http.Header{},
	})
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "moved:/new", string(body))
}
