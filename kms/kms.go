// Package kms holds signing requests until a custodial key service picks
// them up, signs them and reports the broadcast transaction id.
package kms

import (
	"context"
	"time"

	. "github.com/alexdcox/cardano-connector"
)

type PendingTransaction struct {
	ID                    string    `json:"id"`
	Chain                 Chain     `json:"chain"`
	SerializedTransaction string    `json:"serializedTransaction"`
	SignatureIDs          []string  `json:"hashes"`
	TxID                  string    `json:"txId,omitempty"`
	Created               time.Time `json:"created"`
}

func (p PendingTransaction) Completed() bool {
	return p.TxID != ""
}

// Store is a SignatureStore that can also be queried by the key service.
type Store interface {
	SignatureStore
	Get(ctx context.Context, id string) (PendingTransaction, error)
	GetPending(ctx context.Context, chain Chain) ([]PendingTransaction, error)
	Delete(ctx context.Context, id string) error
	Close() error
}
