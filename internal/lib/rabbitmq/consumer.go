package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Uz11ps/markethelper/internal/lib/sl"
	"github.com/streadway/amqp"
)

// ErrConnectionClosed соединение с брокером закрыто без указания причины.
var ErrConnectionClosed = errors.New("connection closed")

// ConsumerMessage запускает потребителя очереди queueName. Одновременно обрабатывается
// не более 10 сообщений. Сообщение подтверждается, если handler вернул nil, иначе
// возвращается в очередь.
func ConsumerMessage(ctx context.Context, log *slog.Logger, ch *amqp.Channel, queueName string,
	handler func([]byte) error) error {
	const op = "rabbitmq.ConsumerMessage"
	delivery, err := ch.Consume(
		queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log = log.With(slog.String("op", op), slog.String("queue", queueName))
	sem := make(chan struct{}, 10)
	go func() {
		for {
			select {
			case d, ok := <-delivery:
				if !ok {
					log.Warn("delivery channel closed, consumer stopped")
					return
				}
				sem <- struct{}{}
				go func(delivery amqp.Delivery) {
					defer func() { <-sem }()
					if err := handler(delivery.Body); err != nil {
						log.Warn("handler failed, message requeued", sl.Err(err))
						if nackErr := delivery.Nack(false, true); nackErr != nil {
							log.Error("failed to nack message", sl.Err(nackErr))
						}
						return
					}
					if ackErr := delivery.Ack(false); ackErr != nil {
						log.Error("failed to ack message", sl.Err(ackErr))
					}
				}(d)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// WaitClosed блокируется до отмены ctx или закрытия соединения с брокером.
// closed получают через Connection.NotifyClose до запуска потребителей.
// Отмена ctx возвращает nil, потеря соединения возвращает ошибку, чтобы
// процесс завершился и был перезапущен.
func WaitClosed(ctx context.Context, closed <-chan *amqp.Error) error {
	const op = "rabbitmq.WaitClosed"
	select {
	case <-ctx.Done():
		return nil
	case amqpErr, ok := <-closed:
		if ok && amqpErr != nil {
			return fmt.Errorf("%s: connection closed: %w", op, amqpErr)
		}
		return fmt.Errorf("%s: %w", op, ErrConnectionClosed)
	}
}
