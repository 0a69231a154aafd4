package origin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alanensastegui/subsights-demo/backend/internal/domain/target"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
)

// ErrOutsideOrigin is returned when a relay URL does not belong to the target.
var ErrOutsideOrigin = errors.New("relay url is outside the target origin")

// forwarded request headers; everything else, including cookies for the
// product origin, stays behind.
var relayRequestHeaders = []string{
	"Accept",
	"Accept-Language",
	"Content-Type",
	"User-Agent",
	"X-Requested-With",
}

var relayStripHeaders = map[string]bool{
	"content-security-policy":             true,
	"content-security-policy-report-only": true,
	"x-content-security-policy":           true,
	"x-webkit-csp":                        true,
	"x-frame-options":                     true,
	"set-cookie":                          true,
	"strict-transport-security":           true,
	"connection":                          true,
	"keep-alive":                          true,
	"proxy-authenticate":                  true,
	"proxy-authorization":                 true,
	"te":                                  true,
	"trailer":                             true,
	"transfer-encoding":                   true,
	"upgrade":                             true,
}

// RelayRequest is one intercepted call from a proxied page.
type RelayRequest struct {
	Method string
	URL    string
	Header http.Header
	Body   io.Reader
}

// RelayResponse is the upstream answer. Body must be closed by the caller.
type RelayResponse struct {
	Status int
	Header http.Header
	Body   io.ReadCloser
}

// Relay forwards intercepted calls to a target origin.
type Relay struct {
	client *resty.Client
}

// NewRelay creates a Relay with a per-call timeout.
func NewRelay(timeout time.Duration, transport http.RoundTripper) *Relay {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if transport == nil {
		retryClient := retryablehttp.NewClient()
		retryClient.Logger = nil
		transport = retryClient.HTTPClient.Transport
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRedirectPolicy(sameOriginRedirects(maxRedirects)).
		SetTransport(transport)
	return &Relay{client: client}
}

// sameOriginRedirects follows a redirect only while it stays on the origin
// of the first request, which Resolve already pinned to the target.
func sameOriginRedirects(limit int) resty.RedirectPolicy {
	return resty.RedirectPolicyFunc(func(req *http.Request, via []*http.Request) error {
		if len(via) >= limit {
			return fmt.Errorf("stopped after %d redirects", limit)
		}
		first := via[0].URL
		if !strings.EqualFold(req.URL.Scheme+"://"+req.URL.Host, first.Scheme+"://"+first.Host) {
			return fmt.Errorf("%w: redirect to %q", ErrOutsideOrigin, req.URL.Redacted())
		}
		return nil
	})
}

// Resolve checks that rawURL is an absolute http(s) URL on t's origin.
func Resolve(t target.Target, rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: %q", ErrOutsideOrigin, rawURL)
	}
	if !strings.EqualFold(u.Scheme+"://"+u.Host, t.Origin()) {
		return nil, fmt.Errorf("%w: %q", ErrOutsideOrigin, rawURL)
	}
	return u, nil
}

// Forward sends req to the target and returns the upstream response with
// framing and security headers removed.
func (r *Relay) Forward(ctx context.Context, t target.Target, req RelayRequest) (*RelayResponse, error) {
	u, err := Resolve(t, req.URL)
	if err != nil {
		return nil, err
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	rr := r.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true)
	for _, h := range relayRequestHeaders {
		if v := req.Header.Get(h); v != "" {
			rr.SetHeader(h, v)
		}
	}
	if req.Body != nil && method != http.MethodGet && method != http.MethodHead {
		rr.SetBody(req.Body)
	}

	resp, err := rr.Execute(method, u.String())
	if err != nil {
		return nil, fmt.Errorf("relay %s %s: %w", method, u.Redacted(), err)
	}

	header := make(http.Header, len(resp.Header()))
	for key, values := range resp.Header() {
		if relayStripHeaders[strings.ToLower(key)] {
			continue
		}
		for _, v := range values {
			header.Add(key, v)
		}
	}

	return &RelayResponse{
		Status: resp.StatusCode(),
		Header: header,
		Body:   resp.RawBody(),
	}, nil
}
