package kms

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	. "github.com/alexdcox/cardano-connector"
	"github.com/pkg/errors"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStore runs the behaviour every Store shares.
func testStore(t *testing.T, store Store) {
	ctx := context.Background()

	pending, err := store.GetPending(ctx, ChainAda)
	assert.Nil(t, err)
	assert.NotNil(t, pending)
	assert.Len(t, pending, 0)

	first, err := store.StoreTransaction(ctx, `{"txBody":"a4"}`, ChainAda, []string{"sig-1", "sig-2"})
	assert.Nil(t, err)
	assert.NotEmpty(t, first)

	second, err := store.StoreTransaction(ctx, `{"txBody":"a5"}`, ChainAda, []string{"sig-3"})
	assert.Nil(t, err)
	assert.NotEqual(t, first, second)

	other, err := store.StoreTransaction(ctx, `{}`, "BTC", nil)
	assert.Nil(t, err)

	got, err := store.Get(ctx, first)
	require.Nil(t, err)
	assert.Equal(t, first, got.ID)
	assert.Equal(t, ChainAda, got.Chain)
	assert.Equal(t, `{"txBody":"a4"}`, got.SerializedTransaction)
	assert.Equal(t, []string{"sig-1", "sig-2"}, got.SignatureIDs)
	assert.False(t, got.Completed())
	assert.False(t, got.Created.IsZero())

	pending, err = store.GetPending(ctx, ChainAda)
	require.Nil(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first, pending[0].ID)
	assert.Equal(t, second, pending[1].ID)

	err = store.CompleteTransaction(ctx, first, "532d92a6")
	assert.Nil(t, err)

	got, err = store.Get(ctx, first)
	require.Nil(t, err)
	assert.True(t, got.Completed())
	assert.Equal(t, "532d92a6", got.TxID)

	pending, err = store.GetPending(ctx, ChainAda)
	require.Nil(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second, pending[0].ID)

	err = store.CompleteTransaction(ctx, "missing", "ff")
	assert.True(t, errors.Is(err, ErrSignatureNotFound))

	_, err = store.Get(ctx, "missing")
	assert.True(t, errors.Is(err, ErrSignatureNotFound))

	err = store.Delete(ctx, other)
	assert.Nil(t, err)

	err = store.Delete(ctx, other)
	assert.True(t, errors.Is(err, ErrSignatureNotFound))

	pending, err = store.GetPending(ctx, "BTC")
	assert.Nil(t, err)
	assert.Len(t, pending, 0)
}

func TestSqliteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kms-test.db")

	store, err := NewSqliteStore(path)
	require.Nil(t, err)

	testStore(t, store)

	id, err := store.StoreTransaction(context.Background(), "persisted", ChainAda, []string{"sig"})
	require.Nil(t, err)
	require.Nil(t, store.Close())

	// entries survive a reopen
	reopened, err := NewSqliteStore(path)
	require.Nil(t, err)
	defer func() {
		_ = reopened.Close()
		_ = os.Remove(path)
	}()

	got, err := reopened.Get(context.Background(), id)
	require.Nil(t, err)
	assert.Equal(t, "persisted", got.SerializedTransaction)

	awkward := []string{"a,b", `quote"d`, ""}
	id, err = reopened.StoreTransaction(context.Background(), "ids", ChainAda, awkward)
	require.Nil(t, err)
	got, err = reopened.Get(context.Background(), id)
	require.Nil(t, err)
	assert.Equal(t, awkward, got.SignatureIDs)
}

func TestInMemoryStore(t *testing.T) {
	store := NewInMemoryStore()
	testStore(t, store)
	assert.Nil(t, store.Close())
}

type publishedMessage struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakePublisher struct {
	published []publishedMessage
	err       error
}

func (f *fakePublisher) Publish(exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, publishedMessage{exchange: exchange, key: key, msg: msg})
	return nil
}

func TestAmqpStore(t *testing.T) {
	pub := &fakePublisher{}
	store := newAmqpStore(NewInMemoryStore(), nil, pub)

	testStore(t, store)

	// three stores and one completion
	require.Len(t, pub.published, 4)

	stored := pub.published[0]
	assert.Equal(t, AmqpExchange, stored.exchange)
	assert.Equal(t, "ADA."+AmqpEventStored, stored.key)
	assert.Equal(t, "application/json", stored.msg.ContentType)

	var event AmqpEvent
	require.Nil(t, json.Unmarshal(stored.msg.Body, &event))
	assert.Equal(t, AmqpEventStored, event.Event)
	assert.Equal(t, []string{"sig-1", "sig-2"}, event.Transaction.SignatureIDs)
	assert.Equal(t, event.Transaction.ID, stored.msg.Headers["x-kms-id"])

	assert.Equal(t, "BTC."+AmqpEventStored, pub.published[2].key)

	completed := pub.published[3]
	assert.Equal(t, "ADA."+AmqpEventCompleted, completed.key)
	require.Nil(t, json.Unmarshal(completed.msg.Body, &event))
	assert.Equal(t, "532d92a6", event.Transaction.TxID)

	assert.Nil(t, store.Close())
}

func TestAmqpStore_PublishFailure(t *testing.T) {
	ctx := context.Background()
	inner := NewInMemoryStore()
	pub := &fakePublisher{}
	store := newAmqpStore(inner, nil, pub)

	id, err := store.StoreTransaction(ctx, "payload", ChainAda, []string{"sig"})
	require.Nil(t, err)

	pub.err = errors.New("channel closed")

	// completion is kept even though the announcement fails
	assert.Nil(t, store.CompleteTransaction(ctx, id, "beef"))
	got, err := inner.Get(ctx, id)
	require.Nil(t, err)
	assert.True(t, got.Completed())

	// a request nobody hears about is reported to the caller
	_, err = store.StoreTransaction(ctx, "payload", ChainAda, []string{"sig"})
	assert.Error(t, err)

	// and is not left behind for a key service to pick up
	pending, err := inner.GetPending(ctx, ChainAda)
	require.Nil(t, err)
	assert.Len(t, pending, 0)
}
