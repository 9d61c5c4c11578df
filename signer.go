package cardano

import (
	"encoding/hex"
	"encoding/json"

	"github.com/pkg/errors"
)

// SigningPlan is decided once the draft is final. LocalPlan holds parsed keys,
// one per input; CustodialPlan defers signing to a key management service.
type SigningPlan interface {
	Execute(draft TransactionDraft) (SignedTransactionResult, error)
	plan()
}

type LocalPlan struct {
	Keys []*SigningKey
}

// CustodialPlan is chosen when any input names a signature id. Inputs of the
// same request that carry a raw private key are not signed here: the key is
// copied into privateKeysToSign and txData, so it ends up in the KMS store and
// in any amqp announcement of the request. Callers mixing the two kinds hand
// those keys to the key service.
type CustodialPlan struct {
	Request TransferRequest
	Refs    []SigningRef
}

func (LocalPlan) plan()     {}
func (CustodialPlan) plan() {}

// NewSigningPlan picks the custodial plan if any input is custodial, and
// otherwise parses every input's raw key in input order.
func NewSigningPlan(req TransferRequest, draft TransactionDraft) (SigningPlan, error) {
	refs := draft.Refs()
	custodial := false

	for i, ref := range refs {
		if ref.Empty() {
			return nil, errors.Wrapf(ErrMissingSigningKey, "input %d", i)
		}
		if ref.Custodial() {
			custodial = true
		}
	}

	if custodial {
		return CustodialPlan{Request: req, Refs: refs}, nil
	}

	keys := make([]*SigningKey, len(refs))
	for i, ref := range refs {
		key, err := ParseSigningKey(ref.PrivateKey)
		if err != nil {
			return nil, errors.Wrapf(err, "input %d", i)
		}
		keys[i] = key
	}

	return LocalPlan{Keys: keys}, nil
}

// Execute witnesses the body hash once per input. Inputs sharing a key each
// get their own witness.
func (p LocalPlan) Execute(draft TransactionDraft) (result SignedTransactionResult, err error) {
	if len(p.Keys) != len(draft.inputs) {
		err = errors.Errorf("plan has %d keys for %d inputs", len(p.Keys), len(draft.inputs))
		return
	}

	body := draft.Body()
	hash, err := body.Hash()
	if err != nil {
		return
	}

	witnesses := make([]VKeyWitness, len(p.Keys))
	for i, key := range p.Keys {
		if witnesses[i], err = key.Witness(hash); err != nil {
			return
		}
	}

	tx, err := NewTransaction(body, witnesses)
	if err != nil {
		return
	}

	txHex, err := tx.Hex()
	if err != nil {
		return
	}

	return SignedTransactionResult{
		kind:   ResultSigned,
		txHex:  txHex,
		txHash: hex.EncodeToString(hash),
	}, nil
}

func (p CustodialPlan) Execute(draft TransactionDraft) (result SignedTransactionResult, err error) {
	bodyBytes, err := draft.Body().Bytes()
	if err != nil {
		return
	}

	keys := make([]string, len(p.Refs))
	for i, ref := range p.Refs {
		keys[i] = ref.String()
	}

	return SignedTransactionResult{
		kind: ResultSigningRequest,
		request: &SigningRequest{
			TxData:            p.Request,
			PrivateKeysToSign: keys,
			TxBody:            hex.EncodeToString(bodyBytes),
		},
		signatureIDs: p.Request.SignatureIDs(),
	}, nil
}

// SigningRequest is what a custodial key service receives: the original
// transfer, the per-input references in input order and the unsigned body.
type SigningRequest struct {
	TxData            TransferRequest `json:"txData"`
	PrivateKeysToSign []string        `json:"privateKeysToSign"`
	TxBody            string          `json:"txBody"`
}

type ResultKind int

const (
	ResultSigned ResultKind = iota + 1
	ResultSigningRequest
)

func (k ResultKind) String() string {
	switch k {
	case ResultSigned:
		return "signed"
	case ResultSigningRequest:
		return "signing request"
	}
	return "unknown"
}

// SignedTransactionResult holds either a signed transaction or a signing
// request. Kind says which; the accessors for the other variant return zero
// values.
type SignedTransactionResult struct {
	kind         ResultKind
	txHex        string
	txHash       string
	request      *SigningRequest
	signatureIDs []string
}

func (r SignedTransactionResult) Kind() ResultKind { return r.kind }

// TxHex is the hex cbor of the signed transaction.
func (r SignedTransactionResult) TxHex() string { return r.txHex }

func (r SignedTransactionResult) TxHash() string { return r.txHash }

func (r SignedTransactionResult) SigningRequest() *SigningRequest { return r.request }

// SignatureIDs are the distinct custodial references of a signing request.
func (r SignedTransactionResult) SignatureIDs() []string {
	return append([]string(nil), r.signatureIDs...)
}

// Payload is the serialized form handed onwards: the transaction hex or the
// signing request json.
func (r SignedTransactionResult) Payload() (string, error) {
	switch r.kind {
	case ResultSigned:
		return r.txHex, nil
	case ResultSigningRequest:
		data, err := json.Marshal(r.request)
		if err != nil {
			return "", errors.WithStack(err)
		}
		return string(data), nil
	}
	return "", errors.New("empty result")
}
