package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/alanensastegui/subsights-demo/backend/internal/domain/telemetry"
	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
)

// WebhookSink POSTs each event as JSON to a fixed URL.
type WebhookSink struct {
	client *resty.Client
	url    string
}

// DefaultWebhookRetries is used when WebhookOptions.MaxRetries is zero.
const DefaultWebhookRetries = 3

// WebhookOptions tunes delivery.
type WebhookOptions struct {
	Timeout time.Duration
	// MaxRetries bounds retries of 5xx and transport failures. Zero means
	// DefaultWebhookRetries; a negative value disables retrying.
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// NewWebhookSink creates a sink posting to url. Transient failures are
// retried by the underlying retryable transport.
func NewWebhookSink(url string, opts WebhookOptions) *WebhookSink {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	switch {
	case opts.MaxRetries == 0:
		opts.MaxRetries = DefaultWebhookRetries
	case opts.MaxRetries < 0:
		opts.MaxRetries = 0
	}
	if opts.MinWait <= 0 {
		opts.MinWait = 200 * time.Millisecond
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = 2 * time.Second
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.MaxRetries
	retryClient.RetryWaitMin = opts.MinWait
	retryClient.RetryWaitMax = opts.MaxWait
	retryClient.Logger = nil

	client := resty.New().
		SetTimeout(opts.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "subsights-demo-reporter/1.0").
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)
	client.SetTransport(retryClient.StandardClient().Transport)

	return &WebhookSink{client: client, url: url}
}

func (s *WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Report(ctx context.Context, e telemetry.Event) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(e).
		Post(s.url)
	if err != nil {
		return fmt.Errorf("post event: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned %d", resp.StatusCode())
	}
	return nil
}
