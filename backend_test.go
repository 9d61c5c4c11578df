package cardano

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// fakeBackend serves canned chain data and records submissions.
type fakeBackend struct {
	mu        sync.Mutex
	tip       Tip
	utxos     map[string][]Utxo
	outputs   map[string]Utxo
	txs       map[string]TransactionInfo
	delays    map[string]time.Duration
	submitted []string
	submitErr error
	calls     int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		tip:     Tip{Slot: 5000, Height: 100, Epoch: 2},
		utxos:   map[string][]Utxo{},
		outputs: map[string]Utxo{},
		txs:     map[string]TransactionInfo{},
		delays:  map[string]time.Duration{},
	}
}

func (f *fakeBackend) addOutput(utxo Utxo) {
	f.outputs[outputKey(utxo.TxHash, utxo.Index)] = utxo
}

func outputKey(txHash string, index uint32) string {
	return fmt.Sprintf("%s#%d", txHash, index)
}

func (f *fakeBackend) wait(ctx context.Context, key string) error {
	f.mu.Lock()
	f.calls++
	delay := f.delays[key]
	f.mu.Unlock()

	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeBackend) Tip(_ context.Context) (Tip, error) {
	return f.tip, nil
}

func (f *fakeBackend) UtxosForAddress(ctx context.Context, address string) ([]Utxo, error) {
	if err := f.wait(ctx, address); err != nil {
		return nil, err
	}
	return f.utxos[address], nil
}

func (f *fakeBackend) OutputAt(ctx context.Context, txHash string, index uint32) (Utxo, error) {
	key := outputKey(txHash, index)
	if err := f.wait(ctx, key); err != nil {
		return Utxo{}, err
	}
	utxo, ok := f.outputs[key]
	if !ok {
		return Utxo{}, errors.Wrapf(ErrUtxoNotFound, "%s", key)
	}
	return utxo, nil
}

func (f *fakeBackend) Transaction(_ context.Context, hash string) (TransactionInfo, error) {
	tx, ok := f.txs[hash]
	if !ok {
		return TransactionInfo{}, errors.Wrapf(ErrTransactionNotFound, "%s", hash)
	}
	return tx, nil
}

func (f *fakeBackend) Submit(_ context.Context, txHex string) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	info, err := InspectTransaction(txHex)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	f.submitted = append(f.submitted, txHex)
	f.mu.Unlock()
	return info.Hash, nil
}

// fakeStore is an in-memory signature store that can be told to fail.
type fakeStore struct {
	stored      map[string]string
	ids         map[string][]string
	completed   map[string]string
	completeErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		stored:    map[string]string{},
		ids:       map[string][]string{},
		completed: map[string]string{},
	}
}

func (s *fakeStore) StoreTransaction(_ context.Context, payload string, _ Chain, signatureIDs []string) (string, error) {
	id := fmt.Sprintf("kms-%d", len(s.stored)+1)
	s.stored[id] = payload
	s.ids[id] = signatureIDs
	return id, nil
}

func (s *fakeStore) CompleteTransaction(_ context.Context, id string, txHash string) error {
	if s.completeErr != nil {
		return s.completeErr
	}
	if _, ok := s.stored[id]; !ok {
		return errors.Wrapf(ErrSignatureNotFound, "%s", id)
	}
	s.completed[id] = txHash
	return nil
}
