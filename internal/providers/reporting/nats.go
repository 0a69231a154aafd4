package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/alanensastegui/subsights-demo/backend/internal/domain/telemetry"
	"github.com/bytedance/sonic"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Publisher is the subset of *nats.Conn the sink uses.
type Publisher interface {
	PublishMsg(msg *nats.Msg) error
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL           string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns connection defaults for url.
func DefaultNATSConfig(url string) NATSConfig {
	return NATSConfig{
		URL:           url,
		Name:          "subsights-demo",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// ConnectNATS dials the server and logs connection churn through logger.
func ConnectNATS(cfg NATSConfig, logger *zap.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}

// NATSSink publishes each event as JSON on subject.<slug>.
type NATSSink struct {
	pub     Publisher
	subject string
}

// NewNATSSink creates a sink publishing under subject.
func NewNATSSink(pub Publisher, subject string) *NATSSink {
	return &NATSSink{pub: pub, subject: subject}
}

func (s *NATSSink) Name() string { return "nats" }

func (s *NATSSink) Report(ctx context.Context, e telemetry.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := sonic.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := nats.NewMsg(s.subject + "." + e.Slug)
	msg.Data = data
	msg.Header.Set("Nats-Msg-Id", e.ID)
	msg.Header.Set("Demo-Reason", e.Reason.String())
	msg.Header.Set("Demo-Mode", e.Mode.String())
	return s.pub.PublishMsg(msg)
}
