package cardano

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

type TransactionSource interface {
	Transaction(ctx context.Context, hash string) (TransactionInfo, error)
}

type Submitter interface {
	// Submit broadcasts signed transaction hex and returns the tx hash.
	Submit(ctx context.Context, txHex string) (string, error)
}

// Backend is a chain data provider able to serve every query the service
// makes. The graphql and rpcclient packages both implement it.
type Backend interface {
	UtxoSource
	TipSource
	TransactionSource
	Submitter
}

// SignatureStore is the custodial key management outbox.
type SignatureStore interface {
	StoreTransaction(ctx context.Context, payload string, chain Chain, signatureIDs []string) (id string, err error)
	CompleteTransaction(ctx context.Context, id string, txHash string) error
}

type TransactionResponse struct {
	TxID   string `json:"txId"`
	Failed bool   `json:"failed,omitempty"`
}

// SendResponse carries exactly one of TxID or SignatureID.
type SendResponse struct {
	TxID        string `json:"txId,omitempty"`
	SignatureID string `json:"signatureId,omitempty"`
}

type BroadcastRequest struct {
	TxData      string `json:"txData"`
	SignatureID string `json:"signatureId,omitempty"`
}

type InfoResponse struct {
	Network Network `json:"network"`
	Testnet bool    `json:"testnet"`
	Tip     Tip     `json:"tip"`
}

type Service struct {
	Network  Network
	Backend  Backend
	Builders *Registry
	Store    SignatureStore
}

func NewService(network Network, backend Backend, store SignatureStore) (service *Service, err error) {
	ada, err := NewAdaBuilder(network, backend, backend)
	if err != nil {
		return
	}
	service = &Service{
		Network:  network,
		Backend:  backend,
		Builders: NewRegistry(ada),
		Store:    store,
	}
	return
}

// SendTransaction builds and signs, then either broadcasts the result or
// hands the signing request to the key management store.
func (s *Service) SendTransaction(ctx context.Context, chain Chain, req TransferRequest) (rsp SendResponse, err error) {
	builder, err := s.Builders.Builder(chain)
	if err != nil {
		return
	}

	result, err := builder.BuildAndSign(ctx, req)
	if err != nil {
		return
	}

	switch result.Kind() {
	case ResultSigned:
		txID, submitErr := s.Backend.Submit(ctx, result.TxHex())
		if submitErr != nil {
			err = errors.Wrap(submitErr, "failed to submit transaction")
			return
		}
		rsp.TxID = txID

	case ResultSigningRequest:
		if s.Store == nil {
			err = errors.New("no signature store configured for custodial signing")
			return
		}
		payload, payloadErr := result.Payload()
		if payloadErr != nil {
			err = payloadErr
			return
		}
		id, storeErr := s.Store.StoreTransaction(ctx, payload, chain, result.SignatureIDs())
		if storeErr != nil {
			err = errors.Wrap(storeErr, "failed to store signing request")
			return
		}
		rsp.SignatureID = id
		log.Info().Msgf("stored signing request %s for %s", id, strings.Join(result.SignatureIDs(), ","))
	}

	return
}

func (s *Service) EstimateFee(ctx context.Context, chain Chain, req TransferRequest) (estimate FeeEstimate, err error) {
	builder, err := s.Builders.Builder(chain)
	if err != nil {
		return
	}
	return builder.EstimateFee(ctx, req)
}

// Broadcast submits a transaction signed elsewhere. When it came from the key
// management store the entry is completed afterwards; a failure to complete
// is reported without failing the broadcast, which has already happened.
func (s *Service) Broadcast(ctx context.Context, req BroadcastRequest) (rsp TransactionResponse, err error) {
	if _, err = InspectTransaction(req.TxData); err != nil {
		return
	}

	txID, err := s.Backend.Submit(ctx, req.TxData)
	if err != nil {
		err = errors.Wrap(err, "failed to submit transaction")
		return
	}
	rsp.TxID = txID

	if req.SignatureID == "" {
		return
	}

	if s.Store == nil {
		log.Error().Msgf("broadcast %s for signature %s with no signature store configured", txID, req.SignatureID)
		rsp.Failed = true
		return
	}

	if completeErr := s.Store.CompleteTransaction(ctx, req.SignatureID, txID); completeErr != nil {
		log.Error().Err(completeErr).Msgf("failed to complete signature %s for %s", req.SignatureID, txID)
		rsp.Failed = true
	}

	return
}

func (s *Service) Utxos(ctx context.Context, address string) (utxos []Utxo, err error) {
	if _, err = DecodeAddressForNetwork(address, s.Network); err != nil {
		return
	}
	utxos, err = s.Backend.UtxosForAddress(ctx, address)
	if utxos == nil {
		utxos = []Utxo{}
	}
	return
}

func (s *Service) Transaction(ctx context.Context, hash string) (TransactionInfo, error) {
	if raw, err := DecodeHex(hash); err != nil || len(raw) != 32 {
		return TransactionInfo{}, errors.Wrapf(ErrTransactionNotFound, "'%s' is not a transaction hash", hash)
	}
	return s.Backend.Transaction(ctx, hash)
}

func (s *Service) Info(ctx context.Context) (info InfoResponse, err error) {
	params, err := s.Network.Params()
	if err != nil {
		return
	}
	tip, err := s.Backend.Tip(ctx)
	if err != nil {
		return
	}
	return InfoResponse{Network: s.Network, Testnet: params.Testnet(), Tip: tip}, nil
}
