package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/eigerco/blocktransfer/internal/transfer"
)

const (
	DefaultExchange = "transfer_events"
	amqpDialTimeout = 10 * time.Second
)

var ErrAMQPURL = errors.New("amqp url must use the amqp:// or amqps:// scheme")

type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// AMQPSink publishes outcomes to a durable topic exchange. The routing key is
// "transfer.<status>", so consumers can bind to failures only.
type AMQPSink struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	channel  amqpChannel
	exchange string
}

var _ transfer.Sink = (*AMQPSink)(nil)

// NewAMQPSink connects to the broker at url and declares the exchange.
func NewAMQPSink(url, exchange string) (*AMQPSink, error) {
	uri, err := amqp091.ParseURI(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAMQPURL, err)
	}
	conn, err := amqp091.DialConfig(uri.String(), amqp091.Config{Dial: amqp091.DefaultDial(amqpDialTimeout)})
	if err != nil {
		return nil, fmt.Errorf("dial amqp broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}

	sink, err := newAMQPSink(ch, exchange)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	sink.conn = conn
	return sink, nil
}

func newAMQPSink(ch amqpChannel, exchange string) (*AMQPSink, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &AMQPSink{channel: ch, exchange: exchange}, nil
}

func (s *AMQPSink) Record(ctx context.Context, outcome transfer.Outcome) error {
	body, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err = s.channel.PublishWithContext(ctx, s.exchange, routingKey(outcome), false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    outcome.AttemptID.String(),
		Timestamp:    outcome.FinishedAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish outcome: %w", err)
	}
	return nil
}

func (s *AMQPSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.channel.Close()
	if s.conn != nil {
		err = errors.Join(err, s.conn.Close())
	}
	return err
}

func routingKey(o transfer.Outcome) string {
	return "transfer." + o.Status.String()
}
