package cardano

import (
	"encoding/hex"
	"math"
	"strconv"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

type TxInput struct {
	_      struct{} `cbor:",toarray"`
	TxHash []byte
	Index  uint32
}

func (i TxInput) String() string {
	return hex.EncodeToString(i.TxHash) + "#" + strconv.FormatUint(uint64(i.Index), 10)
}

type TxOutput struct {
	_       struct{} `cbor:",toarray"`
	Address Address
	Amount  uint64
}

func (o TxOutput) Bytes() ([]byte, error) {
	data, err := CborEncoder.Marshal(o)
	return data, errors.WithStack(err)
}

// TxBody is the shelley-era map form of a transaction body. Only the fields
// a plain value transfer needs are carried.
type TxBody struct {
	Inputs  []TxInput  `cbor:"0,keyasint"`
	Outputs []TxOutput `cbor:"1,keyasint"`
	Fee     uint64     `cbor:"2,keyasint"`
	Ttl     uint64     `cbor:"3,keyasint,omitempty"`
}

func (b TxBody) Bytes() ([]byte, error) {
	data, err := CborEncoder.Marshal(b)
	return data, errors.WithStack(err)
}

// Hash is the blake2b-256 digest of the encoded body, the value every witness
// signs and the transaction id.
func (b TxBody) Hash() (hash []byte, err error) {
	data, err := b.Bytes()
	if err != nil {
		return
	}
	return Blake2bSum256(data), nil
}

type VKeyWitness struct {
	_         struct{} `cbor:",toarray"`
	VKey      []byte
	Signature []byte
}

type WitnessSet struct {
	VKeyWitnesses []VKeyWitness `cbor:"0,keyasint,omitempty"`
}

// Transaction keeps the body as raw bytes so the hash always matches the
// exact encoding that was signed.
type Transaction struct {
	_             struct{} `cbor:",toarray"`
	Body          cbor.RawMessage
	WitnessSet    WitnessSet
	Valid         bool
	AuxiliaryData interface{}
}

func NewTransaction(body TxBody, witnesses []VKeyWitness) (tx *Transaction, err error) {
	raw, err := body.Bytes()
	if err != nil {
		return
	}
	tx = &Transaction{
		Body:       raw,
		WitnessSet: WitnessSet{VKeyWitnesses: witnesses},
		Valid:      true,
	}
	return
}

func DecodeTransaction(data []byte) (tx *Transaction, err error) {
	tx = &Transaction{}
	if err = StandardCborDecoder.Unmarshal(data, tx); err != nil {
		err = errors.Wrapf(ErrInvalidTransaction, "%v", err)
		return nil, err
	}
	return
}

func (t *Transaction) Hash() []byte {
	return Blake2bSum256(t.Body)
}

func (t *Transaction) DecodeBody() (body TxBody, err error) {
	if err = StandardCborDecoder.Unmarshal(t.Body, &body); err != nil {
		err = errors.Wrapf(ErrInvalidTransaction, "body: %v", err)
	}
	return
}

func (t *Transaction) Bytes() ([]byte, error) {
	data, err := CborEncoder.Marshal(t)
	return data, errors.WithStack(err)
}

func (t *Transaction) Hex() (string, error) {
	data, err := t.Bytes()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(data), nil
}

// dummyWitness has the exact encoded width of a real vkey witness.
var dummyWitness = VKeyWitness{
	VKey:      make([]byte, 32),
	Signature: make([]byte, 64),
}

// maxCoin encodes at the widest cbor integer width.
const maxCoin = math.MaxUint64
