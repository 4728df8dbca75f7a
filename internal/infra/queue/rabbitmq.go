package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"tg-news-bot/internal/domain"
	"tg-news-bot/internal/infra/metrics"
)

// RabbitPublishQueue реализует очередь публикаций поверх RabbitMQ.
type RabbitPublishQueue struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string

	mu         sync.Mutex
	deliveries <-chan amqp.Delivery
}

var _ domain.PublishQueue = (*RabbitPublishQueue)(nil)

// NewRabbitPublishQueue подключается к брокеру и объявляет устойчивую очередь.
func NewRabbitPublishQueue(url, queue string) (*RabbitPublishQueue, error) {
	start := time.Now()
	conn, err := amqp.Dial(url)
	metrics.ObserveNetworkRequest("rabbitmq", "dial", queue, start, err)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: declare queue %q: %w", queue, err)
	}
	return &RabbitPublishQueue{conn: conn, ch: ch, queue: queue}, nil
}

// Close закрывает канал и соединение.
func (q *RabbitPublishQueue) Close() error {
	if err := q.ch.Close(); err != nil {
		_ = q.conn.Close()
		return err
	}
	return q.conn.Close()
}

// Enqueue публикует задачу в очередь.
func (q *RabbitPublishQueue) Enqueue(ctx context.Context, job domain.PublishJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	start := time.Now()
	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID,
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}
	return nil
}

func (q *RabbitPublishQueue) consumeChannel() (<-chan amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deliveries != nil {
		return q.deliveries, nil
	}
	if err := q.ch.Qos(1, 0, false); err != nil {
		return nil, fmt.Errorf("rabbitmq: qos: %w", err)
	}
	deliveries, err := q.ch.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: consume: %w", err)
	}
	q.deliveries = deliveries
	return deliveries, nil
}

// Receive блокирующе читает задачу из очереди. Подтверждение задачи
// выполняется через возвращённый ack: при неуспехе сообщение возвращается
// брокеру для повторной доставки.
func (q *RabbitPublishQueue) Receive(ctx context.Context) (domain.PublishJob, domain.PublishAckFunc, error) {
	deliveries, err := q.consumeChannel()
	if err != nil {
		return domain.PublishJob{}, nil, err
	}
	for {
		select {
		case <-ctx.Done():
			return domain.PublishJob{}, nil, ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return domain.PublishJob{}, nil, errors.New("rabbitmq: consume channel closed")
			}
			var job domain.PublishJob
			if err := json.Unmarshal(d.Body, &job); err != nil {
				_ = d.Nack(false, false)
				return domain.PublishJob{}, nil, fmt.Errorf("decode job: %w", err)
			}
			ack := func(success bool) error {
				if success {
					return d.Ack(false)
				}
				return d.Nack(false, true)
			}
			return job, ack, nil
		}
	}
}
