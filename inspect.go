package cardano

import (
	"fmt"

	"github.com/blinklabs-io/gouroboros/ledger"
	"github.com/pkg/errors"
)

// TransactionInfo is the chain-agnostic view of a transaction returned by the
// backends and by InspectTransaction.
type TransactionInfo struct {
	Hash    string        `json:"hash"`
	Block   uint64        `json:"block,omitempty"`
	Fee     Lovelace      `json:"fee"`
	Inputs  []TxInputInfo `json:"inputs"`
	Outputs []Utxo        `json:"outputs"`
	Ttl     uint64        `json:"ttl,omitempty"`
	Size    int           `json:"size,omitempty"`
}

type TxInputInfo struct {
	TxHash  string   `json:"sourceTxHash"`
	Index   uint32   `json:"sourceTxIndex"`
	Address string   `json:"address,omitempty"`
	Value   Lovelace `json:"value,omitempty"`
}

// Output finds the output with the given index.
func (t TransactionInfo) Output(index uint32) (utxo Utxo, err error) {
	for _, out := range t.Outputs {
		if out.Index == index {
			return out, nil
		}
	}
	err = errors.Wrapf(ErrUtxoNotFound, "%s has no output %d", t.Hash, index)
	return
}

// InspectTransaction decodes signed transaction hex with the ledger codec,
// rejecting anything a node would fail to parse.
func InspectTransaction(txHex string) (info TransactionInfo, err error) {
	raw, err := DecodeHex(txHex)
	if err != nil {
		err = errors.Wrapf(ErrInvalidTransaction, "%v", err)
		return
	}

	tx, err := ledger.NewTransactionFromCbor(ledger.TxTypeBabbage, raw)
	if err != nil {
		err = errors.Wrapf(ErrInvalidTransaction, "%v", err)
		return
	}

	info = TransactionInfo{
		Hash: fmt.Sprint(tx.Hash()),
		Fee:  Lovelace(tx.Fee()),
		Size: len(raw),
	}

	for _, input := range tx.Inputs() {
		info.Inputs = append(info.Inputs, TxInputInfo{
			TxHash: input.Id().String(),
			Index:  input.Index(),
		})
	}

	for i, output := range tx.Outputs() {
		info.Outputs = append(info.Outputs, Utxo{
			TxHash:  info.Hash,
			Index:   uint32(i),
			Address: output.Address().String(),
			Value:   Lovelace(output.Amount()),
		})
	}

	return
}
