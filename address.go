package cardano

import (
	"crypto/ed25519"
	"encoding/hex"
	"hash/crc32"
	"strings"

	"github.com/cosmos/cosmos-sdk/types/bech32"
	"github.com/fxamacker/cbor/v2"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

// Address is the raw binary form of a Cardano address as it appears inside a
// transaction output.
type Address []byte

func (a Address) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// String renders Shelley addresses as bech32 (prefix chosen from the header
// network bits) and Byron addresses as base58.
func (a Address) String() string {
	header, err := a.Header()
	if err != nil {
		return hex.EncodeToString(a)
	}
	if header.Type() == AddressTypeByron {
		return base58.Encode(a)
	}
	encoded, err := bech32.ConvertAndEncode(header.Prefix(), a)
	if err != nil {
		return hex.EncodeToString(a)
	}
	return encoded
}

func (a Address) Hex() string {
	return hex.EncodeToString(a)
}

func (a Address) Header() (header AddressHeader, err error) {
	if len(a) == 0 {
		err = errors.Wrap(ErrInvalidAddress, "cannot get header for empty address")
		return
	}
	header = AddressHeader(a[0])
	return
}

// PaymentKeyHash returns the 28-byte key hash for addresses whose payment
// part is a verification key.
func (a Address) PaymentKeyHash() (hash []byte, err error) {
	header, err := a.Header()
	if err != nil {
		return
	}
	if !header.Type().HasPaymentKey() || len(a) < 29 {
		err = errors.Wrapf(ErrInvalidAddress, "%s address has no payment key hash", header.Type())
		return
	}
	return a[1:29], nil
}

// DecodeAddress accepts a bech32 Shelley address or a base58 Byron address.
func DecodeAddress(address string) (decoded Address, err error) {
	address = strings.TrimSpace(address)
	if address == "" {
		err = errors.Wrap(ErrInvalidAddress, "empty address")
		return
	}

	if _, data, bechErr := bech32.DecodeAndConvert(address); bechErr == nil {
		decoded = data
		header, headerErr := decoded.Header()
		if headerErr != nil {
			return nil, headerErr
		}
		if err = header.Validate(); err != nil {
			return nil, err
		}
		return decoded, nil
	}

	raw, err := base58.Decode(address)
	if err != nil {
		err = errors.Wrapf(ErrInvalidAddress, "'%s' is neither bech32 nor base58", address)
		return
	}

	if err = validateByronAddress(raw); err != nil {
		return
	}

	return raw, nil
}

// DecodeAddressForNetwork decodes and additionally checks the header network
// bits against the given network.
func DecodeAddressForNetwork(address string, network Network) (decoded Address, err error) {
	params, err := network.Params()
	if err != nil {
		return
	}

	decoded, err = DecodeAddress(address)
	if err != nil {
		return
	}

	header, _ := decoded.Header()
	if header.Type() == AddressTypeByron {
		return
	}

	if header.Testnet() != params.Testnet() {
		err = errors.Wrapf(ErrInvalidAddress, "address '%s' is not valid on %s", address, network)
		return
	}

	prefix := params.AddressPrefix
	if header.Type().Reward() {
		prefix = params.DelegationPrefix
	}
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(address)), prefix+"1") {
		err = errors.Wrapf(ErrInvalidAddress, "%s address '%s' must use the '%s' prefix", header.Type(), address, prefix)
	}

	return
}

// DecodePaymentAddress is DecodeAddressForNetwork limited to addresses that
// can hold an output. Reward addresses are rejected.
func DecodePaymentAddress(address string, network Network) (decoded Address, err error) {
	decoded, err = DecodeAddressForNetwork(address, network)
	if err != nil {
		return
	}

	if header, _ := decoded.Header(); header.Type().Reward() {
		err = errors.Wrapf(ErrInvalidAddress, "'%s' is a %s address and cannot receive outputs", address, header.Type())
	}

	return
}

type byronAddress struct {
	_       struct{} `cbor:",toarray"`
	Payload cbor.Tag
	Crc     uint32
}

func validateByronAddress(raw []byte) error {
	var addr byronAddress
	if err := cbor.Unmarshal(raw, &addr); err != nil {
		return errors.Wrapf(ErrInvalidAddress, "byron address cbor: %v", err)
	}

	content, ok := addr.Payload.Content.([]byte)
	if addr.Payload.Number != 24 || !ok {
		return errors.Wrap(ErrInvalidAddress, "byron address payload is not tagged bytes")
	}

	if crc32.ChecksumIEEE(content) != addr.Crc {
		return errors.Wrap(ErrInvalidAddress, "byron address checksum mismatch")
	}

	return nil
}

// EncodeAddress builds an enterprise (payment key only) address for the
// given ed25519 public key.
func EncodeAddress(publicKey []byte, network Network) (addr Address, err error) {
	params, err := network.Params()
	if err != nil {
		return
	}

	if len(publicKey) != ed25519.PublicKeySize {
		err = errors.Wrapf(
			ErrInvalidPublicKey,
			"expected a %d length ed25519 public key, got %d bytes",
			ed25519.PublicKeySize,
			len(publicKey))
		return
	}

	hash, err := Blake2bSum224(publicKey)
	if err != nil {
		return
	}

	header := NewAddressHeader(AddressTypePayment, params.Testnet())

	addr = append([]byte{byte(header)}, hash...)

	return
}

func Blake2bSum224(data []byte) (hash []byte, err error) {
	h, err := blake2b.New(28, nil)
	if err != nil {
		err = errors.Wrap(err, "failed to create blake2b hash")
		return
	}
	h.Write(data)
	return h.Sum(nil), nil
}

func Blake2bSum256(data []byte) []byte {
	sum := blake2b.Sum256(data)
	return sum[:]
}

// AddressType is the upper nibble of the address header byte.
type AddressType byte

const (
	AddressTypePaymentAndStake AddressType = iota
	AddressTypeScriptAndStake
	AddressTypePaymentAndScript
	AddressTypeScriptAndScript
	AddressTypePaymentAndPointer
	AddressTypeScriptAndPointer
	AddressTypePayment
	AddressTypeScript
	AddressTypeByron
	AddressTypeInvalid9
	AddressTypeInvalid10
	AddressTypeInvalid11
	AddressTypeInvalid12
	AddressTypeInvalid13
	AddressTypeStakeReward
	AddressTypeScriptReward
)

var addressTypeNames = map[AddressType]string{
	AddressTypePaymentAndStake:   "payment and stake",
	AddressTypeScriptAndStake:    "script and stake",
	AddressTypePaymentAndScript:  "payment and script",
	AddressTypeScriptAndScript:   "script and script",
	AddressTypePaymentAndPointer: "payment and pointer",
	AddressTypeScriptAndPointer:  "script and pointer",
	AddressTypePayment:           "payment",
	AddressTypeScript:            "script",
	AddressTypeByron:             "byron",
	AddressTypeStakeReward:       "stake reward",
	AddressTypeScriptReward:      "script reward",
}

func (a AddressType) String() string {
	if name, ok := addressTypeNames[a]; ok {
		return name
	}
	return "invalid"
}

func (a AddressType) Valid() bool {
	_, ok := addressTypeNames[a]
	return ok
}

// HasPaymentKey is true for the even shelley types, whose payment credential
// is a key hash rather than a script hash.
func (a AddressType) HasPaymentKey() bool {
	return a <= AddressTypeScript && a%2 == 0
}

func (a AddressType) Reward() bool {
	return a == AddressTypeStakeReward || a == AddressTypeScriptReward
}

type AddressHeader byte

func NewAddressHeader(typ AddressType, testnet bool) AddressHeader {
	header := AddressHeader(byte(typ) << 4)
	if !testnet {
		header |= 1
	}
	return header
}

func (a AddressHeader) Type() AddressType {
	return AddressType(byte(a) >> 4)
}

func (a AddressHeader) NetworkId() byte {
	return byte(a) & 0x0f
}

func (a AddressHeader) Testnet() bool {
	return a.NetworkId() == 0
}

func (a AddressHeader) Prefix() string {
	prefix := "addr"
	if a.Type().Reward() {
		prefix = "stake"
	}
	if a.Testnet() {
		prefix += "_test"
	}
	return prefix
}

func (a AddressHeader) Validate() error {
	if !a.Type().Valid() {
		return errors.Wrapf(ErrInvalidAddress, "invalid type bits in address header: %08b", byte(a))
	}
	return nil
}

func (a AddressHeader) String() string {
	network := "mainnet"
	if a.Testnet() {
		network = "testnet"
	}
	return a.Type().String() + "/" + network
}
