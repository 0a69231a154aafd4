package origin

import (
	"context"
	"errors"
	"time"

	"github.com/alanensastegui/subsights-demo/backend/internal/domain/target"
	"github.com/alanensastegui/subsights-demo/backend/internal/shared/types"
	"go.uber.org/zap"
)

// Rendered is the body the proxy endpoint serves. Failure is nil on success.
type Rendered struct {
	HTML     string
	Failure  *Failure
	Duration time.Duration
}

// Proxy renders registered targets for same-origin display.
type Proxy struct {
	registry target.Registry
	fetcher  *Fetcher
	logger   *zap.Logger
}

// NewProxy creates a Proxy.
func NewProxy(registry target.Registry, fetcher *Fetcher, logger *zap.Logger) *Proxy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Proxy{registry: registry, fetcher: fetcher, logger: logger}
}

// Render returns the document for slug. The only error is target.ErrNotFound;
// everything else becomes an error-announcement document.
func (p *Proxy) Render(ctx context.Context, slug, userAgent string) (Rendered, error) {
	t, err := p.registry.Lookup(slug)
	if err != nil {
		return Rendered{}, err
	}

	start := time.Now()
	page, err := p.fetcher.Fetch(ctx, t.BaseURL, userAgent)
	if err != nil {
		f, ok := AsFailure(err)
		if !ok {
			f = networkFailure(err)
		}
		p.logger.Warn("proxy fetch failed",
			zap.String("slug", slug),
			zap.String("reason", f.Reason.String()),
			zap.Int("upstream_status", f.Status),
			zap.Error(f.Err),
		)
		return p.failed(f, start), nil
	}

	out, err := Inject(page.HTML, t.Origin(), t.Slug, t.Embed)
	if errors.Is(err, ErrInvalidSnippet) {
		p.logger.Error("target has a malformed widget snippet",
			zap.String("slug", slug),
			zap.Error(err),
		)
		return p.failed(&Failure{Reason: types.ReasonProxyError, Message: "This demo is misconfigured.", Err: err}, start), nil
	}
	if err != nil {
		return p.failed(&Failure{Reason: types.ReasonProxyError, Err: err}, start), nil
	}

	p.logger.Debug("proxied target",
		zap.String("slug", slug),
		zap.String("url", page.URL),
		zap.String("title", PageTitle(page.HTML)),
		zap.String("charset", page.Charset),
		zap.Int("bytes", len(out)),
	)
	return Rendered{HTML: out, Duration: time.Since(start)}, nil
}

func (p *Proxy) failed(f *Failure, start time.Time) Rendered {
	return Rendered{HTML: ErrorDocument(f), Failure: f, Duration: time.Since(start)}
}
