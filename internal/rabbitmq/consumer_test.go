package rabbitmq

import (
	"errors"
	"strings"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

type exchangeDecl struct {
	name, kind                            string
	durable, autoDelete, internal, noWait bool
}

type queueDecl struct {
	name                                   string
	durable, autoDelete, exclusive, noWait bool
}

type binding struct{ queue, key, exchange string }

type consumeCall struct {
	queue, tag                          string
	autoAck, exclusive, noLocal, noWait bool
}

// recordingChannel remembers every call the consumer makes.
type recordingChannel struct {
	exchanges []exchangeDecl
	queues    []queueDecl
	bindings  []binding
	prefetch  int
	consumes  []consumeCall
	bindErr   error
	closed    bool
}

func (r *recordingChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, _ amqp.Table) error {
	r.exchanges = append(r.exchanges, exchangeDecl{name, kind, durable, autoDelete, internal, noWait})
	return nil
}

func (r *recordingChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, _ amqp.Table) (amqp.Queue, error) {
	r.queues = append(r.queues, queueDecl{name, durable, autoDelete, exclusive, noWait})
	return amqp.Queue{Name: name}, nil
}

func (r *recordingChannel) QueueBind(name, key, exchange string, _ bool, _ amqp.Table) error {
	if r.bindErr != nil {
		return r.bindErr
	}
	r.bindings = append(r.bindings, binding{name, key, exchange})
	return nil
}

func (r *recordingChannel) Qos(prefetchCount, _ int, _ bool) error {
	r.prefetch = prefetchCount
	return nil
}

func (r *recordingChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, _ amqp.Table) (<-chan amqp.Delivery, error) {
	r.consumes = append(r.consumes, consumeCall{queue, consumer, autoAck, exclusive, noLocal, noWait})
	return make(chan amqp.Delivery), nil
}

func (r *recordingChannel) Close() error {
	r.closed = true
	return nil
}

var customerTopology = Topology{
	Exchange:   "customer_exchange",
	Queue:      "customer_queue",
	RoutingKey: "create_customer",
	Prefetch:   10,
}

func TestSetupDeclaresDurableDirectTopology(t *testing.T) {
	ch := &recordingChannel{}
	c := &Consumer{ch: ch}

	if err := c.Setup(customerTopology); err != nil {
		t.Fatalf("Setup: %v", err)
	}

	want := exchangeDecl{name: "customer_exchange", kind: "direct", durable: true}
	if len(ch.exchanges) != 1 || ch.exchanges[0] != want {
		t.Fatalf("exchange declared as %+v, want %+v", ch.exchanges, want)
	}
	wantQ := queueDecl{name: "customer_queue", durable: true}
	if len(ch.queues) != 1 || ch.queues[0] != wantQ {
		t.Fatalf("queue declared as %+v, want %+v", ch.queues, wantQ)
	}
	wantB := binding{queue: "customer_queue", key: "create_customer", exchange: "customer_exchange"}
	if len(ch.bindings) != 1 || ch.bindings[0] != wantB {
		t.Fatalf("binding %+v, want %+v", ch.bindings, wantB)
	}
	if ch.prefetch != 10 {
		t.Fatalf("prefetch = %d", ch.prefetch)
	}
}

func TestDeliveriesUseManualAck(t *testing.T) {
	ch := &recordingChannel{}
	c := &Consumer{ch: ch}
	if err := c.Setup(customerTopology); err != nil {
		t.Fatalf("Setup: %v", err)
	}

	if _, err := c.Deliveries("intake"); err != nil {
		t.Fatalf("Deliveries: %v", err)
	}
	if len(ch.consumes) != 1 {
		t.Fatalf("expected one consume, got %d", len(ch.consumes))
	}
	got := ch.consumes[0]
	if got.autoAck {
		t.Fatal("consume must not auto-ack")
	}
	if got.queue != "customer_queue" || !strings.HasPrefix(got.tag, "intake-") || got.exclusive {
		t.Fatalf("unexpected consume call %+v", got)
	}
}

func TestSetupReportsBindFailure(t *testing.T) {
	ch := &recordingChannel{bindErr: errors.New("NOT_FOUND - no exchange")}
	c := &Consumer{ch: ch}

	err := c.Setup(customerTopology)
	if err == nil || !strings.Contains(err.Error(), "create_customer") {
		t.Fatalf("expected bind error naming the routing key, got %v", err)
	}
	if _, err := c.Deliveries("intake"); err == nil {
		t.Fatal("consumer must not start after a failed Setup")
	}
}

func TestSetupRequiresExchangeAndQueue(t *testing.T) {
	c := &Consumer{ch: &recordingChannel{}}
	for _, top := range []Topology{
		{Queue: "customer_queue"},
		{Exchange: "customer_exchange"},
	} {
		if err := c.Setup(top); err == nil {
			t.Fatalf("Setup(%+v) accepted an incomplete topology", top)
		}
	}
}

func TestCloseClosesChannel(t *testing.T) {
	ch := &recordingChannel{}
	if err := (&Consumer{ch: ch}).Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !ch.closed {
		t.Fatal("channel left open")
	}
}
