package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/younes-bami/hrcut-app/internal/model"
)

type Config struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration // default 50ms
	WriteTimeout time.Duration // default 5s
}

// Producer publishes customer lifecycle events keyed by customer id, so all
// events of one customer land on the same partition.
type Producer struct {
	w *kafka.Writer
}

func NewProducerFromConfig(c Config) *Producer {
	bt := c.BatchTimeout
	if bt <= 0 {
		bt = 50 * time.Millisecond
	}
	wt := c.WriteTimeout
	if wt <= 0 {
		wt = 5 * time.Second
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(c.Brokers...),
		Topic:                  c.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           bt,
		WriteTimeout:           wt,
		AllowAutoTopicCreation: true,
	}
	return &Producer{w: w}
}

func (p *Producer) Publish(ctx context.Context, ev model.CustomerEvent) error {
	msg, err := eventMessage(ev)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, msg)
}

func eventMessage(ev model.CustomerEvent) (kafka.Message, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(ev.CustomerID),
		Value: b,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(ev.Type)},
		},
		Time: ev.OccurredAt,
	}, nil
}

func (p *Producer) Close() error { return p.w.Close() }
