// Package probe decides whether a target is likely to render inside a
// cross-origin frame.
//
// The answer is conservative: any failure to get a clean answer within the
// timeout reads as "not allowed", because a false negative costs one safe
// fallback hop while a false positive wastes the whole embed wait.
package probe

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alanensastegui/subsights-demo/backend/internal/domain/target"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
)

const DefaultTimeout = 3 * time.Second

// Detail is the raw probe evidence, kept for diagnostics.
type Detail struct {
	URL            string `json:"url"`
	Status         int    `json:"status,omitempty"`
	XFrameOptions  string `json:"xFrameOptions,omitempty"`
	FrameAncestors string `json:"frameAncestors,omitempty"`
	Blocked        string `json:"blocked,omitempty"`
	Error          string `json:"error,omitempty"`
	DurationMs     int64  `json:"durationMs"`
}

// Result is the prober's verdict.
type Result struct {
	Allowed bool   `json:"allowed"`
	Detail  Detail `json:"detail"`
}

// Summary is a one-line rendering of the detail.
func (r Result) Summary() string {
	d := r.Detail
	switch {
	case d.Error != "":
		return "probe error: " + d.Error
	case d.Blocked != "":
		return d.Blocked
	case r.Allowed:
		return fmt.Sprintf("status %d, no framing restrictions", d.Status)
	default:
		return fmt.Sprintf("status %d", d.Status)
	}
}

// Prober checks framing headers on a target's base address.
type Prober struct {
	client   *resty.Client
	embedder string
}

// Options configures a Prober.
type Options struct {
	Timeout time.Duration
	// EmbedderOrigin is the product origin that would frame the target.
	// A frame-ancestors list naming it counts as allowed.
	EmbedderOrigin string
	Transport      http.RoundTripper
}

// New creates a Prober. Probes are never retried.
func New(opts Options) *Prober {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Transport == nil {
		retryClient := retryablehttp.NewClient()
		retryClient.Logger = nil
		opts.Transport = retryClient.HTTPClient.Transport
	}
	client := resty.New().
		SetTimeout(opts.Timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5)).
		SetTransport(opts.Transport).
		SetHeader("User-Agent", "Mozilla/5.0 (compatible; SubsightsDemo/1.0; probe)").
		SetHeader("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	return &Prober{client: client, embedder: strings.ToLower(opts.EmbedderOrigin)}
}

// Probe fetches the target's base address and inspects its framing policy.
func (p *Prober) Probe(ctx context.Context, t target.Target) Result {
	start := time.Now()
	detail := Detail{URL: t.BaseURL}
	finish := func(allowed bool) Result {
		detail.DurationMs = time.Since(start).Milliseconds()
		return Result{Allowed: allowed, Detail: detail}
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(t.BaseURL)
	if err != nil {
		detail.Error = err.Error()
		return finish(false)
	}
	resp.RawBody().Close()

	detail.Status = resp.StatusCode()
	detail.XFrameOptions = resp.Header().Get("X-Frame-Options")
	detail.FrameAncestors = frameAncestors(resp.Header().Values("Content-Security-Policy"))

	if detail.Status < 200 || detail.Status > 299 {
		detail.Blocked = fmt.Sprintf("status %d", detail.Status)
		return finish(false)
	}
	if xfo := strings.ToUpper(strings.TrimSpace(detail.XFrameOptions)); xfo != "" {
		detail.Blocked = "x-frame-options " + xfo
		return finish(false)
	}
	if detail.FrameAncestors != "" && !p.ancestorsAllow(detail.FrameAncestors) {
		detail.Blocked = "frame-ancestors " + detail.FrameAncestors
		return finish(false)
	}
	return finish(true)
}

// frameAncestors returns the first frame-ancestors source list across
// every CSP header value.
func frameAncestors(policies []string) string {
	for _, policy := range policies {
		for _, directive := range strings.Split(policy, ";") {
			fields := strings.Fields(directive)
			if len(fields) == 0 || !strings.EqualFold(fields[0], "frame-ancestors") {
				continue
			}
			if len(fields) == 1 {
				return "'none'"
			}
			return strings.Join(fields[1:], " ")
		}
	}
	return ""
}

func (p *Prober) ancestorsAllow(sources string) bool {
	for _, src := range strings.Fields(strings.ToLower(sources)) {
		switch {
		case src == "*":
			return true
		case src == "https:" && strings.HasPrefix(p.embedder, "https://"):
			return true
		case p.embedder != "" && src == p.embedder:
			return true
		case p.embedder != "" && strings.HasPrefix(src, "https://*.") &&
			strings.HasSuffix(p.embedder, src[len("https://*"):]):
			return true
		}
	}
	return false
}
