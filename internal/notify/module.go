package notify

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/polkiloo/payouts/internal/config"
)

// Module provides the notifier, alerter and event publisher picked from configuration.
var Module = fx.Options(
	fx.Provide(
		newNotifier,
		newAlerter,
		newPublisher,
	),
)

type closer interface {
	Close() error
}

func closeOnStop(lc fx.Lifecycle, c closer) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return c.Close()
		},
	})
}

func newNotifier(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) Notifier {
	if len(cfg.Kafka.Brokers) == 0 {
		return Nop{}
	}
	n := NewKafkaNotifier(newKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.NotificationsTopic), logger.Named("notifier"))
	closeOnStop(lc, n)
	return n
}

func newPublisher(lc fx.Lifecycle, cfg *config.Config) EventPublisher {
	if len(cfg.Kafka.Brokers) == 0 {
		return LogPublisher{}
	}
	p := NewKafkaPublisher(newKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic))
	closeOnStop(lc, p)
	return p
}

func newAlerter(cfg *config.Config, logger *zap.Logger) Alerter {
	if cfg.SMTP.Host == "" || len(cfg.SMTP.To) == 0 {
		return NewLogAlerter(logger.Named("alerts"))
	}
	dialer := gomail.NewDialer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password)
	return NewMailAlerter(dialer, cfg.SMTP.From, cfg.SMTP.To)
}
