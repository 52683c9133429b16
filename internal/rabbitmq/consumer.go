package rabbitmq

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Topology is the broker-side routing the intake relies on.
type Topology struct {
	Exchange   string // direct, durable
	Queue      string // durable
	RoutingKey string
	Prefetch   int
}

// channel is the part of *amqp.Channel the consumer drives.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// Consumer owns one connection and one channel. The channel is used only by
// the consume loop; publishers must open their own.
type Consumer struct {
	conn  *amqp.Connection
	ch    channel
	queue string
}

func Dial(url string) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	return &Consumer{conn: conn, ch: ch}, nil
}

// Setup declares the exchange and queue, binds them and applies QoS.
func (c *Consumer) Setup(t Topology) error {
	if t.Exchange == "" || t.Queue == "" {
		return errors.New("amqp topology: exchange and queue are required")
	}
	if err := c.ch.ExchangeDeclare(
		t.Exchange, // name
		"direct",   // type
		true,       // durable
		false,      // auto-deleted
		false,      // internal
		false,      // no-wait
		nil,        // arguments
	); err != nil {
		return fmt.Errorf("declare exchange %s: %w", t.Exchange, err)
	}

	q, err := c.ch.QueueDeclare(
		t.Queue, // name
		true,    // durable
		false,   // delete when unused
		false,   // exclusive
		false,   // no-wait
		nil,     // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", t.Queue, err)
	}

	if err := c.ch.QueueBind(q.Name, t.RoutingKey, t.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind %s -> %s (%s): %w", t.Exchange, q.Name, t.RoutingKey, err)
	}

	if t.Prefetch > 0 {
		if err := c.ch.Qos(t.Prefetch, 0, false); err != nil {
			return fmt.Errorf("qos: %w", err)
		}
	}

	c.queue = q.Name
	return nil
}

// Deliveries starts a manual-ack consume on the declared queue.
func (c *Consumer) Deliveries(tagPrefix string) (<-chan amqp.Delivery, error) {
	if c.queue == "" {
		return nil, errors.New("amqp: Setup must run before Deliveries")
	}
	tag := tagPrefix + "-" + uuid.NewString()
	msgs, err := c.ch.Consume(
		c.queue, // queue
		tag,     // consumer
		false,   // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", c.queue, err)
	}
	return msgs, nil
}

// NotifyClose reports connection loss.
func (c *Consumer) NotifyClose() <-chan *amqp.Error {
	return c.conn.NotifyClose(make(chan *amqp.Error, 1))
}

func (c *Consumer) Close() error {
	var errs []error
	if c.ch != nil {
		errs = append(errs, c.ch.Close())
	}
	if c.conn != nil {
		errs = append(errs, c.conn.Close())
	}
	return errors.Join(errs...)
}
