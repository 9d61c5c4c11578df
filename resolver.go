package cardano

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// UtxoSource answers the two chain queries funding resolution needs.
type UtxoSource interface {
	UtxosForAddress(ctx context.Context, address string) ([]Utxo, error)

	// OutputAt returns the output at index of the given transaction, wrapping
	// ErrUtxoNotFound when either does not exist.
	OutputAt(ctx context.Context, txHash string, index uint32) (Utxo, error)
}

const DefaultResolverConcurrency = 8

type Resolver struct {
	Source      UtxoSource
	Concurrency int
}

func NewResolver(source UtxoSource) *Resolver {
	return &Resolver{Source: source, Concurrency: DefaultResolverConcurrency}
}

// Resolve turns the funding part of a request into inputs. Lookups run concurrently but the
// result keeps request order: addresses as listed, then each address's utxos
// in the order the source returned them.
func (r *Resolver) Resolve(ctx context.Context, req TransferRequest) (inputs []ResolvedInput, err error) {
	switch {
	case len(req.FromAddress) > 0 && len(req.FromUTXO) > 0:
		return nil, errors.WithStack(ErrConflictingFundingSpec)
	case len(req.FromAddress) > 0:
		inputs, err = r.resolveAddresses(ctx, req.FromAddress)
	case len(req.FromUTXO) > 0:
		inputs, err = r.resolveUtxos(ctx, req.FromUTXO)
	default:
		return nil, errors.WithStack(ErrMissingFundingSpec)
	}

	if err != nil {
		return nil, err
	}

	if len(inputs) == 0 {
		return nil, errors.Wrap(ErrInsufficientFunds, "no spendable utxos found")
	}

	return
}

func (r *Resolver) group(ctx context.Context) (*errgroup.Group, context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	limit := r.Concurrency
	if limit <= 0 {
		limit = DefaultResolverConcurrency
	}
	g.SetLimit(limit)
	return g, ctx
}

func (r *Resolver) resolveAddresses(ctx context.Context, from []FromAddress) ([]ResolvedInput, error) {
	perAddress := make([][]Utxo, len(from))
	g, gctx := r.group(ctx)

	for i, f := range from {
		i, f := i, f
		g.Go(func() error {
			utxos, err := r.Source.UtxosForAddress(gctx, f.Address)
			if err != nil {
				return errors.Wrapf(err, "utxos for %s", f.Address)
			}
			perAddress[i] = utxos
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var inputs []ResolvedInput
	for i, utxos := range perAddress {
		for _, u := range utxos {
			if u.Address == "" {
				u.Address = from[i].Address
			}
			inputs = append(inputs, ResolvedInput{Utxo: u, Ref: from[i].Ref()})
		}
	}

	return inputs, nil
}

func (r *Resolver) resolveUtxos(ctx context.Context, from []FromUTXO) ([]ResolvedInput, error) {
	inputs := make([]ResolvedInput, len(from))
	g, gctx := r.group(ctx)

	for i, f := range from {
		i, f := i, f
		g.Go(func() error {
			utxo, err := r.Source.OutputAt(gctx, f.TxHash, f.Index)
			if err != nil {
				return errors.Wrapf(err, "%s#%d", f.TxHash, f.Index)
			}
			inputs[i] = ResolvedInput{Utxo: utxo, Ref: f.Ref()}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return inputs, nil
}

// ChangeAddress is the first funding address, or the owner of the first
// resolved utxo when funding by explicit reference.
func ChangeAddress(req TransferRequest, inputs []ResolvedInput) (string, error) {
	if len(req.FromAddress) > 0 {
		return req.FromAddress[0].Address, nil
	}
	if len(inputs) > 0 && inputs[0].Utxo.Address != "" {
		return inputs[0].Utxo.Address, nil
	}
	return "", errors.Wrap(ErrInvalidAddress, "no change address available")
}
