package cardano

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

type Chain string

const ChainAda Chain = "ADA"

func ParseChain(s string) Chain {
	return Chain(strings.ToUpper(strings.TrimSpace(s)))
}

// ChainTransactionBuilder assembles and signs a transfer for one chain.
type ChainTransactionBuilder interface {
	Chain() Chain
	BuildAndSign(ctx context.Context, req TransferRequest) (SignedTransactionResult, error)
	EstimateFee(ctx context.Context, req TransferRequest) (FeeEstimate, error)
}

type FeeEstimate struct {
	Fee    Lovelace `json:"fee"`
	Change Lovelace `json:"change"`
	Inputs int      `json:"inputs"`
	Size   int      `json:"size"`
}

type Tip struct {
	Slot   uint64 `json:"slotNo"`
	Height uint64 `json:"number"`
	Epoch  uint64 `json:"epoch"`
}

type TipSource interface {
	Tip(ctx context.Context) (Tip, error)
}

// Registry maps chain names to builders. It is filled at start up and read
// once per request.
type Registry struct {
	mu       sync.RWMutex
	builders map[Chain]ChainTransactionBuilder
}

func NewRegistry(builders ...ChainTransactionBuilder) *Registry {
	r := &Registry{builders: map[Chain]ChainTransactionBuilder{}}
	for _, b := range builders {
		r.Register(b)
	}
	return r
}

func (r *Registry) Register(b ChainTransactionBuilder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[b.Chain()] = b
}

func (r *Registry) Builder(chain Chain) (ChainTransactionBuilder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.builders[chain]
	if !ok {
		return nil, errors.Wrapf(ErrChainNotSupported, "'%s'", chain)
	}
	return b, nil
}

func (r *Registry) Chains() (chains []Chain) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for c := range r.builders {
		chains = append(chains, c)
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i] < chains[j] })
	return
}

// AdaBuilder runs the cardano pipeline: resolve, spend all inputs, add the
// requested outputs, add fee and change, then sign.
type AdaBuilder struct {
	Network  Network
	Resolver *Resolver
	Tips     TipSource
	Fees     FeeCalculator
}

func NewAdaBuilder(network Network, utxos UtxoSource, tips TipSource) (builder *AdaBuilder, err error) {
	params, err := network.Params()
	if err != nil {
		return
	}
	builder = &AdaBuilder{
		Network:  network,
		Resolver: NewResolver(utxos),
		Tips:     tips,
		Fees:     params.Protocol.LinearFee(),
	}
	return
}

func (b *AdaBuilder) Chain() Chain {
	return ChainAda
}

func (b *AdaBuilder) BuildAndSign(ctx context.Context, req TransferRequest) (result SignedTransactionResult, err error) {
	draft, err := b.draft(ctx, req)
	if err != nil {
		return
	}

	plan, err := NewSigningPlan(req, draft)
	if err != nil {
		return
	}

	result, err = plan.Execute(draft)
	if err != nil {
		return
	}

	log.Debug().Msgf(
		"built %s: %d inputs, %d outputs, fee %s",
		result.Kind(),
		len(draft.inputs),
		len(draft.outputs),
		draft.Fee())

	return
}

func (b *AdaBuilder) EstimateFee(ctx context.Context, req TransferRequest) (estimate FeeEstimate, err error) {
	draft, err := b.draft(ctx, req)
	if err != nil {
		return
	}

	tx, err := draft.sizingTransaction()
	if err != nil {
		return
	}
	data, err := tx.Bytes()
	if err != nil {
		return
	}

	change, _ := draft.Change()

	return FeeEstimate{
		Fee:    draft.Fee(),
		Change: change,
		Inputs: len(draft.inputs),
		Size:   len(data),
	}, nil
}

func (b *AdaBuilder) draft(ctx context.Context, req TransferRequest) (draft TransactionDraft, err error) {
	if err = req.Validate(); err != nil {
		return
	}

	params, err := b.Network.Params()
	if err != nil {
		return
	}

	tip, err := b.Tips.Tip(ctx)
	if err != nil {
		err = errors.Wrap(err, "failed to fetch chain tip")
		return
	}

	inputs, err := b.Resolver.Resolve(ctx, req)
	if err != nil {
		return
	}

	changeAddressStr, err := ChangeAddress(req, inputs)
	if err != nil {
		return
	}
	changeAddress, err := DecodePaymentAddress(changeAddressStr, b.Network)
	if err != nil {
		err = errors.Wrap(err, "change address")
		return
	}

	draft = NewTransactionDraft(tip.Slot + params.Protocol.TtlSlots)

	if draft, err = draft.WithInputs(inputs); err != nil {
		return
	}

	if draft, err = draft.WithOutputs(req.To, b.Network); err != nil {
		return
	}

	if draft, err = draft.WithChange(changeAddress, b.Fees, params.Protocol.MinUtxoValue); err != nil {
		return
	}

	if !draft.Balanced() {
		err = errors.Errorf("draft does not balance: in %s, fee %s", draft.TotalInput(), draft.Fee())
	}

	return
}
