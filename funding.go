package cardano

import (
	"github.com/pkg/errors"
)

// SigningRef names the authority for one input: either raw key material held
// by the caller, or a signature id that a custodial key service resolves.
type SigningRef struct {
	PrivateKey  string `json:"privateKey,omitempty"`
	SignatureID string `json:"signatureId,omitempty"`
}

func (r SigningRef) Custodial() bool {
	return r.SignatureID != ""
}

func (r SigningRef) Empty() bool {
	return r.PrivateKey == "" && r.SignatureID == ""
}

// String is the form listed in a custodial signing request.
func (r SigningRef) String() string {
	if r.Custodial() {
		return r.SignatureID
	}
	return r.PrivateKey
}

type FromAddress struct {
	Address     string `json:"address"`
	PrivateKey  string `json:"privateKey,omitempty"`
	SignatureID string `json:"signatureId,omitempty"`
}

func (f FromAddress) Ref() SigningRef {
	return SigningRef{PrivateKey: f.PrivateKey, SignatureID: f.SignatureID}
}

type FromUTXO struct {
	TxHash      string `json:"txHash"`
	Index       uint32 `json:"index"`
	PrivateKey  string `json:"privateKey,omitempty"`
	SignatureID string `json:"signatureId,omitempty"`
}

func (f FromUTXO) Ref() SigningRef {
	return SigningRef{PrivateKey: f.PrivateKey, SignatureID: f.SignatureID}
}

type Destination struct {
	Address string  `json:"address"`
	Value   Decimal `json:"value"`
}

// TransferRequest is one payment: where the funds come from and where they go.
type TransferRequest struct {
	FromAddress []FromAddress `json:"fromAddress,omitempty"`
	FromUTXO    []FromUTXO    `json:"fromUTXO,omitempty"`
	To          []Destination `json:"to"`
}

func (r TransferRequest) Validate() error {
	if len(r.FromAddress) == 0 && len(r.FromUTXO) == 0 {
		return errors.WithStack(ErrMissingFundingSpec)
	}
	if len(r.FromAddress) > 0 && len(r.FromUTXO) > 0 {
		return errors.WithStack(ErrConflictingFundingSpec)
	}
	if len(r.To) == 0 {
		return errors.WithStack(ErrMissingDestination)
	}
	for i, from := range r.FromAddress {
		if from.Address == "" {
			return errors.Wrapf(ErrInvalidAddress, "fromAddress[%d] is empty", i)
		}
	}
	for i, from := range r.FromUTXO {
		if from.TxHash == "" {
			return errors.Wrapf(ErrUtxoNotFound, "fromUTXO[%d] has no txHash", i)
		}
	}
	return nil
}

// SigningRefs lists the reference of every funding entry in request order.
func (r TransferRequest) SigningRefs() (refs []SigningRef) {
	for _, from := range r.FromAddress {
		refs = append(refs, from.Ref())
	}
	for _, from := range r.FromUTXO {
		refs = append(refs, from.Ref())
	}
	return
}

// SignatureIDs lists the distinct custodial references in request order.
func (r TransferRequest) SignatureIDs() (ids []string) {
	seen := map[string]bool{}
	for _, ref := range r.SigningRefs() {
		if ref.Custodial() && !seen[ref.SignatureID] {
			seen[ref.SignatureID] = true
			ids = append(ids, ref.SignatureID)
		}
	}
	return
}

// Utxo is a spendable output as reported by a chain backend.
type Utxo struct {
	TxHash  string   `json:"txHash"`
	Index   uint32   `json:"index"`
	Address string   `json:"address"`
	Value   Lovelace `json:"value"`
}

// ResolvedInput pairs a utxo with the reference that authorises spending it.
type ResolvedInput struct {
	Utxo Utxo
	Ref  SigningRef
}
