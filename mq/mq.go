// Package mq publishes accept events onto the message bus of §6: the AMQP
// event exchange (koinos_event by default), routing keys
// koinos.block.accept and koinos.transaction.accept, via
// github.com/rabbitmq/amqp091-go, the maintained successor to the
// historically canonical streadway/amqp client. The koinos_rpc exchange
// name is defined here, but nothing is published to it.
package mq

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"

	statedblog "github.com/trust-net/go-forkstate/log"
)

const (
	EventExchangeDefault = "koinos_event"
	RPCExchangeDefault   = "koinos_rpc"

	BlockAcceptRoutingKey       = "koinos.block.accept"
	TransactionAcceptRoutingKey = "koinos.transaction.accept"
)

// Publisher is the narrow interface the pipeline depends on, so tests can
// substitute a no-op implementation without a broker.
type Publisher interface {
	PublishBlockAccept(ctx context.Context, body []byte) error
	PublishTransactionAccept(ctx context.Context, body []byte) error
	Close() error
}

// AMQPPublisher is the real Publisher, backed by amqp091-go.
type AMQPPublisher struct {
	conn          *amqp.Connection
	channel       *amqp.Channel
	eventExchange string
	logger        statedblog.Logger
}

// Dial connects to url and declares the koinos_event topic exchange.
func Dial(url, eventExchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(eventExchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	return &AMQPPublisher{conn: conn, channel: ch, eventExchange: eventExchange, logger: statedblog.NewLogger(AMQPPublisher{})}, nil
}

func (p *AMQPPublisher) publish(ctx context.Context, routingKey string, body []byte) error {
	return p.channel.PublishWithContext(ctx, p.eventExchange, routingKey, false, false, amqp.Publishing{
		ContentType: "application/octet-stream",
		Body:        body,
	})
}

func (p *AMQPPublisher) PublishBlockAccept(ctx context.Context, body []byte) error {
	return p.publish(ctx, BlockAcceptRoutingKey, body)
}

func (p *AMQPPublisher) PublishTransactionAccept(ctx context.Context, body []byte) error {
	return p.publish(ctx, TransactionAcceptRoutingKey, body)
}

func (p *AMQPPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		return err
	}
	return p.conn.Close()
}

// NopPublisher discards everything; useful where no broker is deployed.
type NopPublisher struct{}

func (NopPublisher) PublishBlockAccept(ctx context.Context, body []byte) error       { return nil }
func (NopPublisher) PublishTransactionAccept(ctx context.Context, body []byte) error { return nil }
func (NopPublisher) Close() error                                                    { return nil }

var _ Publisher = (*AMQPPublisher)(nil)
var _ Publisher = NopPublisher{}
