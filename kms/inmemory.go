package kms

import (
	"context"
	"sort"
	"sync"
	"time"

	. "github.com/alexdcox/cardano-connector"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type InMemoryStore struct {
	pending map[string]PendingTransaction
	seq     map[string]int
	next    int
	mu      sync.RWMutex
}

var _ Store = &InMemoryStore{}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		pending: make(map[string]PendingTransaction),
		seq:     make(map[string]int),
	}
}

func (m *InMemoryStore) StoreTransaction(_ context.Context, payload string, chain Chain, signatureIDs []string) (id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id = uuid.NewString()
	m.pending[id] = PendingTransaction{
		ID:                    id,
		Chain:                 chain,
		SerializedTransaction: payload,
		SignatureIDs:          append([]string(nil), signatureIDs...),
		Created:               time.Now().UTC(),
	}
	m.seq[id] = m.next
	m.next++

	return
}

func (m *InMemoryStore) CompleteTransaction(_ context.Context, id string, txHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pending[id]
	if !ok {
		return errors.Wrapf(ErrSignatureNotFound, "'%s'", id)
	}
	p.TxID = txHash
	m.pending[id] = p
	return nil
}

func (m *InMemoryStore) Get(_ context.Context, id string) (PendingTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.pending[id]
	if !ok {
		return PendingTransaction{}, errors.Wrapf(ErrSignatureNotFound, "'%s'", id)
	}
	return p, nil
}

func (m *InMemoryStore) GetPending(_ context.Context, chain Chain) ([]PendingTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pending := []PendingTransaction{}
	for _, p := range m.pending {
		if p.Chain == chain && !p.Completed() {
			pending = append(pending, p)
		}
	}

	sort.Slice(pending, func(i, j int) bool {
		return m.seq[pending[i].ID] < m.seq[pending[j].ID]
	})

	return pending, nil
}

func (m *InMemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.pending[id]; !ok {
		return errors.Wrapf(ErrSignatureNotFound, "'%s'", id)
	}
	delete(m.pending, id)
	delete(m.seq, id)
	return nil
}

func (m *InMemoryStore) Close() error {
	return nil
}
