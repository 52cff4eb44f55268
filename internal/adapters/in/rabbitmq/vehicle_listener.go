package rabbitmq

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suchimauz/ev-charge-schedule-sync/internal/config"
	"github.com/suchimauz/ev-charge-schedule-sync/internal/core/ports/in"
	"github.com/suchimauz/ev-charge-schedule-sync/internal/core/ports/out"
)

// VehicleDataListener слушает события "данные автомобиля обновились"
// и переводит их в дебаунсированный запуск выборки
type VehicleDataListener struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	useCase in.ScheduleSyncUseCase
	cfg     *config.Config
	logger  out.LoggerPort
}

func NewVehicleDataListener(useCase in.ScheduleSyncUseCase, cfg *config.Config, logger out.LoggerPort) (*VehicleDataListener, error) {
	if !cfg.RabbitMQ.Enabled {
		logger.Info("rabbitmq.disabled", out.LogFields{
			"message": "RabbitMQ is disabled, listener will not be started",
		})
		return nil, nil
	}

	conn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		logger.Error("rabbitmq.connect.failed", out.LogFields{
			"error": err.Error(),
			"url":   cfg.RabbitMQ.URL,
		})
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		logger.Error("rabbitmq.channel.failed", out.LogFields{
			"error": err.Error(),
		})
		return nil, err
	}

	return &VehicleDataListener{
		conn:    conn,
		channel: channel,
		useCase: useCase,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

func (l *VehicleDataListener) Start(ctx context.Context) error {
	queue, err := l.channel.QueueDeclare(l.cfg.RabbitMQ.Queue, true, false, false, false, nil)
	if err != nil {
		l.logger.Error("rabbitmq.queue.declare_failed", out.LogFields{
			"queue": l.cfg.RabbitMQ.Queue,
			"error": err.Error(),
		})
		return err
	}

	deliveries, err := l.channel.Consume(queue.Name, "", true, false, false, false, nil)
	if err != nil {
		l.logger.Error("rabbitmq.consume.failed", out.LogFields{
			"queue": queue.Name,
			"error": err.Error(),
		})
		return err
	}

	go l.consume(ctx, deliveries)

	l.logger.Info("rabbitmq.queue.started", out.LogFields{
		"queue": queue.Name,
	})

	return nil
}

func (l *VehicleDataListener) Stop() error {
	if l == nil || l.channel == nil {
		return nil
	}

	if err := l.channel.Close(); err != nil {
		return err
	}
	return l.conn.Close()
}

func (l *VehicleDataListener) consume(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-deliveries:
			if !ok {
				return
			}
			l.logger.Debug("rabbitmq.vehicle_data.received", out.LogFields{
				"routingKey": msg.RoutingKey,
			})
			// Содержимое события не важно: любое обновление данных источника -
			// повод для выборки, дебаунс остается за движком
			l.useCase.HandleUpstreamChanged(ctx)
		}
	}
}
