package kms

import (
	"context"
	"encoding/json"

	. "github.com/alexdcox/cardano-connector"
	"github.com/pkg/errors"
	"github.com/streadway/amqp"
)

const (
	AmqpExchange       = "kms"
	AmqpEventStored    = "stored"
	AmqpEventCompleted = "completed"
)

// publisher is the part of *amqp.Channel the store uses.
type publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AmqpStore persists through an inner Store and announces every stored and
// completed request on a topic exchange, so key services need not poll.
type AmqpStore struct {
	Store
	conn *amqp.Connection
	ch   publisher
}

type AmqpEvent struct {
	Event       string             `json:"event"`
	Transaction PendingTransaction `json:"transaction"`
}

func NewAmqpStore(uri string, inner Store) (store *AmqpStore, err error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		err = errors.Wrap(err, "failed to connect to amqp broker")
		return
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		err = errors.Wrap(err, "failed to open amqp channel")
		return
	}

	if err = channel.ExchangeDeclare(AmqpExchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		err = errors.Wrap(err, "failed to declare kms exchange")
		return
	}

	log.Info().Msgf("connected to amqp broker, publishing to exchange '%s'", AmqpExchange)

	return newAmqpStore(inner, conn, channel), nil
}

func newAmqpStore(inner Store, conn *amqp.Connection, ch publisher) *AmqpStore {
	return &AmqpStore{Store: inner, conn: conn, ch: ch}
}

func (a *AmqpStore) StoreTransaction(ctx context.Context, payload string, chain Chain, signatureIDs []string) (id string, err error) {
	id, err = a.Store.StoreTransaction(ctx, payload, chain, signatureIDs)
	if err != nil {
		return
	}

	// an unannounced request must not stay pending
	if err = a.announce(ctx, AmqpEventStored, id); err != nil {
		if delErr := a.Store.Delete(ctx, id); delErr != nil {
			log.Error().Msgf("failed to remove unannounced request %s: %v", id, delErr)
		}
		return "", err
	}

	return
}

// CompleteTransaction records the tx id first; a publish failure afterwards
// is logged only since the broadcast has already happened.
func (a *AmqpStore) CompleteTransaction(ctx context.Context, id string, txHash string) (err error) {
	if err = a.Store.CompleteTransaction(ctx, id, txHash); err != nil {
		return
	}

	if pubErr := a.announce(ctx, AmqpEventCompleted, id); pubErr != nil {
		log.Warn().Msgf("failed to announce completion of %s: %v", id, pubErr)
	}

	return
}

func (a *AmqpStore) announce(ctx context.Context, event string, id string) (err error) {
	pending, err := a.Store.Get(ctx, id)
	if err != nil {
		return
	}

	body, err := json.Marshal(AmqpEvent{Event: event, Transaction: pending})
	if err != nil {
		return errors.WithStack(err)
	}

	msg := amqp.Publishing{
		Headers:     amqp.Table{"x-kms-id": id},
		Body:        body,
		ContentType: "application/json",
	}

	key := string(pending.Chain) + "." + event
	if err = a.ch.Publish(AmqpExchange, key, false, false, msg); err != nil {
		return errors.Wrapf(err, "failed to publish %s", key)
	}

	return
}

func (a *AmqpStore) Close() (err error) {
	if a.conn != nil {
		if closeErr := a.conn.Close(); closeErr != nil {
			log.Warn().Msgf("error closing amqp connection: %v", closeErr)
		}
	}
	return a.Store.Close()
}
