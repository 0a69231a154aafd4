package origin

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/alanensastegui/subsights-demo/backend/internal/infrastructure/resilience"
	"github.com/alanensastegui/subsights-demo/backend/internal/shared/types"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultMaxBytes  = 5 << 20
	DefaultUserAgent = "Mozilla/5.0 (compatible; SubsightsDemo/1.0)"

	maxRedirects = 10
)

// Page is a fetched, decoded HTML document.
type Page struct {
	URL         string
	Status      int
	ContentType string
	Charset     string
	HTML        string
}

// FetchOptions configures a Fetcher.
type FetchOptions struct {
	Timeout  time.Duration
	MaxBytes int64
	// Breakers guards each origin. Nil gets BreakerPolicy defaults.
	Breakers *resilience.Set
	// Transport overrides the pooled transport, mainly for tests.
	Transport http.RoundTripper
}

// BreakerPolicy trips only on failures that mean the origin is unreachable.
func BreakerPolicy(threshold int, cooldown time.Duration) resilience.Policy {
	return resilience.Policy{
		FailureThreshold: threshold,
		Cooldown:         cooldown,
		IsFailure:        countsAgainstOrigin,
	}
}

// Fetcher retrieves target pages with a browser-like request signature.
type Fetcher struct {
	client   *resty.Client
	breakers *resilience.Set
	maxBytes int64
}

// NewFetcher creates a Fetcher. Origin fetches are never retried: the
// delivery state machine falls forward instead.
func NewFetcher(opts FetchOptions) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.Breakers == nil {
		opts.Breakers = resilience.NewSet(BreakerPolicy(5, 30*time.Second))
	}
	if opts.Transport == nil {
		retryClient := retryablehttp.NewClient()
		retryClient.Logger = nil
		opts.Transport = retryClient.HTTPClient.Transport
	}

	client := resty.New().
		SetTimeout(opts.Timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(maxRedirects)).
		SetTransport(opts.Transport)

	return &Fetcher{
		client:   client,
		breakers: opts.Breakers,
		maxBytes: opts.MaxBytes,
	}
}

// browserHeaders mimics a navigation request. Accept-Encoding is set
// explicitly so the body is decoded here rather than by the transport.
func browserHeaders(userAgent string) map[string]string {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return map[string]string{
		"User-Agent":                userAgent,
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language":           "en-US,en;q=0.9",
		"Accept-Encoding":           "gzip, zstd",
		"Upgrade-Insecure-Requests": "1",
	}
}

// Fetch retrieves rawURL. Every error it returns is a *Failure.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, userAgent string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, &Failure{Reason: types.ReasonProxyError, Message: types.ReasonProxyError.Message(), Err: errors.New("invalid target url")}
	}

	var page *Page
	err = f.breakers.Do(ctx, u.Scheme+"://"+u.Host, func(ctx context.Context) error {
		var ferr error
		page, ferr = f.fetch(ctx, rawURL, userAgent)
		return ferr
	})
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
		return nil, &Failure{Reason: types.ReasonProxyError, Message: types.ReasonProxyError.Message(), Err: err}
	}
	if err != nil {
		if _, ok := AsFailure(err); !ok {
			err = networkFailure(err)
		}
		return nil, err
	}
	return page, nil
}

func (f *Fetcher) fetch(ctx context.Context, rawURL, userAgent string) (*Page, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetHeaders(browserHeaders(userAgent)).
		Get(rawURL)
	if err != nil {
		return nil, networkFailure(err)
	}
	body := resp.RawBody()
	defer body.Close()

	status := resp.StatusCode()
	if status < 200 || status > 299 {
		return nil, &Failure{
			Reason:  types.ReasonProxyHTTPError,
			Status:  status,
			Message: types.ReasonProxyHTTPError.Message(),
		}
	}

	contentType := resp.Header().Get("Content-Type")
	if contentType != "" && !isHTMLType(contentType) {
		return nil, &Failure{
			Reason:  types.ReasonProxyNotHTML,
			Message: types.ReasonProxyNotHTML.Message(),
			Err:     errors.New("content type " + contentType),
		}
	}

	decoded, release, err := decompress(body, resp.Header().Get("Content-Encoding"))
	if err != nil {
		return nil, readFailure(err)
	}
	defer release()

	data, err := readCapped(decoded, f.maxBytes)
	if err != nil {
		return nil, err
	}
	if contentType == "" && !sniffHTML(data) {
		return nil, &Failure{
			Reason:  types.ReasonProxyNotHTML,
			Message: types.ReasonProxyNotHTML.Message(),
			Err:     errors.New("sniffed content is not html"),
		}
	}

	text, cs := toUTF8(data, contentType)
	return &Page{
		URL:         resp.RawResponse.Request.URL.String(),
		Status:      status,
		ContentType: contentType,
		Charset:     cs,
		HTML:        string(text),
	}, nil
}
