package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/younes-bami/hrcut-app/internal/apperr"
	"github.com/younes-bami/hrcut-app/internal/metrics"
	"github.com/younes-bami/hrcut-app/internal/model"
	"github.com/younes-bami/hrcut-app/internal/service/customers"
)

// ErrDeliveriesClosed is returned by Run when the broker stops delivering
// while the process is still meant to be consuming.
var ErrDeliveriesClosed = errors.New("intake: delivery channel closed")

var errInvalidPayload = errors.New("invalid payload")

// Creator is the part of the customer service the intake drives.
type Creator interface {
	Create(ctx context.Context, in model.CreateCustomerInput) (*model.Customer, error)
}

// Validator checks a decoded command before it reaches the service.
type Validator interface {
	Validate(i any) error
}

// Intake turns create-customer commands into customers. Each delivery is
// acked only after the customer is persisted (or already exists); anything
// else is nacked back to the queue.
type Intake struct {
	Creator   Creator
	Validator Validator
	Log       *zap.Logger

	RequeueInvalid bool          // nack undecodable/invalid payloads with requeue
	Timeout        time.Duration // per message, default 10s
}

func NewIntake(c Creator, v Validator, log *zap.Logger, requeueInvalid bool) *Intake {
	if log == nil {
		log = zap.NewNop()
	}
	return &Intake{
		Creator:        c,
		Validator:      v,
		Log:            log.Named("intake"),
		RequeueInvalid: requeueInvalid,
		Timeout:        10 * time.Second,
	}
}

// Run receives, processes and acknowledges deliveries one at a time until ctx
// is cancelled (returns nil) or the channel closes (returns ErrDeliveriesClosed).
func (w *Intake) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	if w.Timeout <= 0 {
		w.Timeout = 10 * time.Second
	}
	w.Log.Info("consuming")
	for {
		select {
		case <-ctx.Done():
			w.Log.Info("stopping", zap.Error(ctx.Err()))
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrDeliveriesClosed
			}
			w.handle(ctx, d)
		}
	}
}

func (w *Intake) handle(ctx context.Context, d amqp.Delivery) {
	in, err := w.decode(d.Body)
	if err == nil && w.Validator != nil {
		err = w.Validator.Validate(&in)
	}
	if err != nil {
		w.Log.Error("rejecting command",
			zap.Uint64("delivery_tag", d.DeliveryTag),
			zap.ByteString("payload", d.Body),
			zap.Bool("requeue", w.RequeueInvalid),
			zap.Error(err))
		metrics.IntakeMessages.WithLabelValues("rejected").Inc()
		w.nack(d, w.RequeueInvalid)
		return
	}

	opCtx, cancel := context.WithTimeout(customers.WithSource(ctx, "queue"), w.Timeout)
	defer cancel()

	_, err = w.Creator.Create(opCtx, in)
	switch {
	case err == nil:
		metrics.IntakeMessages.WithLabelValues("acked").Inc()
		w.ack(d)
	case apperr.Is(err, apperr.KindConflict):
		// redelivery of an applied command, or a genuine duplicate
		w.Log.Warn("customer already exists, acking",
			zap.Uint64("delivery_tag", d.DeliveryTag),
			zap.String("username", in.Username),
			zap.Bool("redelivered", d.Redelivered),
			zap.Error(err))
		metrics.IntakeMessages.WithLabelValues("duplicate").Inc()
		w.ack(d)
	case apperr.Is(err, apperr.KindInvalidInput):
		w.Log.Error("command rejected by service",
			zap.ByteString("payload", d.Body),
			zap.Error(err))
		metrics.IntakeMessages.WithLabelValues("rejected").Inc()
		w.nack(d, w.RequeueInvalid)
	default:
		w.Log.Error("create customer failed, requeueing",
			zap.Uint64("delivery_tag", d.DeliveryTag),
			zap.ByteString("payload", d.Body),
			zap.Error(err))
		metrics.IntakeMessages.WithLabelValues("requeued").Inc()
		w.nack(d, true)
	}
}

// decode accepts either {"pattern":"create_customer","data":{...}} or the bare DTO.
func (w *Intake) decode(body []byte) (model.CreateCustomerInput, error) {
	var in model.CreateCustomerInput
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return in, fmt.Errorf("%w: empty body", errInvalidPayload)
	}

	var env model.CommandEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return in, fmt.Errorf("%w: %v", errInvalidPayload, err)
	}
	if env.Pattern != "" || len(env.Data) > 0 {
		if env.Pattern != model.PatternCreateCustomer {
			return in, fmt.Errorf("%w: unknown pattern %q", errInvalidPayload, env.Pattern)
		}
		body = env.Data
	}

	if err := json.Unmarshal(body, &in); err != nil {
		return in, fmt.Errorf("%w: %v", errInvalidPayload, err)
	}
	return in, nil
}

func (w *Intake) ack(d amqp.Delivery) {
	if err := d.Ack(false); err != nil {
		w.Log.Error("ack failed", zap.Uint64("delivery_tag", d.DeliveryTag), zap.Error(err))
	}
}

func (w *Intake) nack(d amqp.Delivery, requeue bool) {
	if err := d.Nack(false, requeue); err != nil {
		w.Log.Error("nack failed", zap.Uint64("delivery_tag", d.DeliveryTag), zap.Error(err))
	}
}
