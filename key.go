package cardano

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha512"
	"encoding/hex"
	"strings"

	"filippo.io/edwards25519"
	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

// SigningKey is an ed25519 key in its expanded form: the secret scalar kL and
// the nonce prefix kR. Both plain seeds and BIP32-Ed25519 extended keys reduce
// to this form, so one signing routine serves both.
type SigningKey struct {
	scalar *edwards25519.Scalar
	prefix []byte
	public []byte
}

// ParseSigningKey accepts hex encoded key material in any of the layouts a
// client may hold:
//
//	32 bytes   ed25519 seed
//	64 bytes   seed || public key, or extended kL || kR
//	96 bytes   kL || kR || chain code
//	128 bytes  kL || kR || public key || chain code
//
// A cbor byte string wrapping one of the above (the cardano-cli cborHex form)
// is unwrapped first.
func ParseSigningKey(keyHex string) (key *SigningKey, err error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(keyHex), "0x"))
	if err != nil {
		err = errors.Wrap(ErrInvalidPrivateKey, "key is not hex")
		return
	}

	if !validKeyLength(len(raw)) {
		var unwrapped []byte
		if cborErr := cbor.Unmarshal(raw, &unwrapped); cborErr == nil && validKeyLength(len(unwrapped)) {
			raw = unwrapped
		}
	}

	switch len(raw) {
	case ed25519.SeedSize:
		return signingKeyFromSeed(raw)
	case 64:
		seedKey, seedErr := signingKeyFromSeed(raw[:32])
		if seedErr == nil && bytes.Equal(seedKey.public, raw[32:]) {
			return seedKey, nil
		}
		return signingKeyFromExtended(raw[:32], raw[32:64])
	case 96:
		return signingKeyFromExtended(raw[:32], raw[32:64])
	case 128:
		key, err = signingKeyFromExtended(raw[:32], raw[32:64])
		if err != nil {
			return
		}
		if !bytes.Equal(key.public, raw[64:96]) {
			err = errors.Wrap(ErrInvalidPrivateKey, "xprv public key does not match its secret")
			return nil, err
		}
		return
	}

	err = errors.Wrapf(ErrInvalidPrivateKey, "unexpected key length %d", len(raw))
	return
}

func validKeyLength(n int) bool {
	return n == 32 || n == 64 || n == 96 || n == 128
}

func signingKeyFromSeed(seed []byte) (*SigningKey, error) {
	h := sha512.Sum512(seed)
	h[0] &= 248
	h[31] &= 127
	h[31] |= 64
	return signingKeyFromExtended(h[:32], h[32:])
}

func signingKeyFromExtended(kL, kR []byte) (key *SigningKey, err error) {
	wide := make([]byte, 64)
	copy(wide, kL)

	scalar, err := edwards25519.NewScalar().SetUniformBytes(wide)
	if err != nil {
		err = errors.Wrapf(ErrInvalidPrivateKey, "%v", err)
		return
	}

	if scalar.Equal(edwards25519.NewScalar()) == 1 {
		err = errors.Wrap(ErrInvalidPrivateKey, "zero scalar")
		return
	}

	public := new(edwards25519.Point).ScalarBaseMult(scalar).Bytes()

	return &SigningKey{
		scalar: scalar,
		prefix: append([]byte{}, kR...),
		public: public,
	}, nil
}

func (k *SigningKey) PublicKey() ed25519.PublicKey {
	return append(ed25519.PublicKey{}, k.public...)
}

func (k *SigningKey) KeyHash() ([]byte, error) {
	return Blake2bSum224(k.public)
}

// Sign produces an RFC 8032 signature using the expanded secret directly, so
// the result verifies with crypto/ed25519.Verify against PublicKey.
func (k *SigningKey) Sign(message []byte) (signature []byte, err error) {
	h := sha512.New()
	h.Write(k.prefix)
	h.Write(message)
	r, err := edwards25519.NewScalar().SetUniformBytes(h.Sum(nil))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	R := new(edwards25519.Point).ScalarBaseMult(r).Bytes()

	h.Reset()
	h.Write(R)
	h.Write(k.public)
	h.Write(message)
	challenge, err := edwards25519.NewScalar().SetUniformBytes(h.Sum(nil))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	s := edwards25519.NewScalar().MultiplyAdd(challenge, k.scalar, r)

	signature = make([]byte, 0, ed25519.SignatureSize)
	signature = append(signature, R...)
	signature = append(signature, s.Bytes()...)

	return
}

// Witness signs the transaction body hash and pairs the signature with the
// verification key.
func (k *SigningKey) Witness(txHash []byte) (witness VKeyWitness, err error) {
	signature, err := k.Sign(txHash)
	if err != nil {
		return
	}
	return VKeyWitness{VKey: k.PublicKey(), Signature: signature}, nil
}
