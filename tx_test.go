package cardano

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"testing"

	"github.com/pkg/errors"
)

// A mainnet transaction with one input, two outputs and a single witness.
const (
	mainnetTxBodyHex = "a40081825820710cb03bdce782b7d8f4e9cd2395dd98036ce9a7f7ed019086816fb6aee806b201018282581d61c0155b37c96884187b00f35eddb8492660ed642b4cb1c7a91193722f1a0013e17582581d618c309901c237ca9bd09f699588c01217efa550816e0d06ceb26291e61a07b87e6d021a0002c7e5031a079f5da7"
	mainnetTxHex     = "84" + mainnetTxBodyHex + "a10081825820848e4e417aad5169b72492ecfefd6446f59d634da51ff948b37611eacf66e591584053ec8410c832f5ae60711151153df677f74746bebe8942b74d7655b14d4a4a0422dcd0f18ad16a2048de4ed06597601b2306ccacf8eeea302caa5671db22d201" + "f5f6"
	mainnetTxHash    = "532d92a689ee5eae707e7bea46cce30d173fbabab4299e381068246983ba054f"
)

func TestDecodeTransaction(t *testing.T) {
	raw, err := hex.DecodeString(mainnetTxHex)
	if err != nil {
		t.Fatalf("%+v", err)
	}

	tx, err := DecodeTransaction(raw)
	if err != nil {
		t.Fatalf("%+v", err)
	}

	if hex.EncodeToString(tx.Hash()) != mainnetTxHash {
		t.Fatalf("expected hash %s, got %x", mainnetTxHash, tx.Hash())
	}

	body, err := tx.DecodeBody()
	if err != nil {
		t.Fatalf("%+v", err)
	}

	if len(body.Inputs) != 1 || body.Inputs[0].String() != "710cb03bdce782b7d8f4e9cd2395dd98036ce9a7f7ed019086816fb6aee806b2#1" {
		t.Fatalf("unexpected inputs: %v", body.Inputs)
	}

	if body.Fee != 182245 {
		t.Fatalf("expected fee 182245, got %d", body.Fee)
	}

	if body.Ttl != 127884711 {
		t.Fatalf("expected ttl 127884711, got %d", body.Ttl)
	}

	if len(body.Outputs) != 2 {
		t.Fatalf("expected 2 outputs, got %d", len(body.Outputs))
	}

	if body.Outputs[0].Address.String() != "addr1v8qp2kehe95ggxrmqre4ahdcfynxpmty9dxtr3afzxfhytcfl5f09" || body.Outputs[0].Amount != 1302901 {
		t.Fatalf("unexpected first output %s %d", body.Outputs[0].Address, body.Outputs[0].Amount)
	}

	if body.Outputs[1].Address.String() != "addr1vxxrpxgpcgmu4x7sna5etzxqzgt7lf2ss9hq6pkwkf3frestvu8tz" || body.Outputs[1].Amount != 129531501 {
		t.Fatalf("unexpected second output %s %d", body.Outputs[1].Address, body.Outputs[1].Amount)
	}

	// the decoded body must re-encode to the exact signed bytes
	reencoded, err := body.Bytes()
	if err != nil {
		t.Fatalf("%+v", err)
	}

	if hex.EncodeToString(reencoded) != mainnetTxBodyHex {
		t.Fatalf("body did not re-encode canonically:\n%x", reencoded)
	}

	if len(tx.WitnessSet.VKeyWitnesses) != 1 {
		t.Fatalf("expected 1 witness, got %d", len(tx.WitnessSet.VKeyWitnesses))
	}

	witness := tx.WitnessSet.VKeyWitnesses[0]
	if !ed25519.Verify(witness.VKey, tx.Hash(), witness.Signature) {
		t.Fatal("witness signature did not verify over the body hash")
	}

	full, err := tx.Bytes()
	if err != nil {
		t.Fatalf("%+v", err)
	}

	if !bytes.Equal(full, raw) {
		t.Fatalf("transaction did not re-encode:\n%x", full)
	}
}

func TestDecodeTransaction_Invalid(t *testing.T) {
	for _, in := range []string{"", "00", "84a0"} {
		raw, _ := hex.DecodeString(in)
		if _, err := DecodeTransaction(raw); !errors.Is(err, ErrInvalidTransaction) {
			t.Fatalf("'%s': expected ErrInvalidTransaction, got %v", in, err)
		}
	}
}

func TestInspectTransaction(t *testing.T) {
	info, err := InspectTransaction(mainnetTxHex)
	if err != nil {
		t.Fatalf("%+v", err)
	}

	if info.Hash != mainnetTxHash {
		t.Fatalf("expected hash %s, got %s", mainnetTxHash, info.Hash)
	}

	if info.Fee != 182245 {
		t.Fatalf("expected fee 182245, got %d", info.Fee)
	}

	if len(info.Inputs) != 1 || info.Inputs[0].Index != 1 || info.Inputs[0].TxHash != "710cb03bdce782b7d8f4e9cd2395dd98036ce9a7f7ed019086816fb6aee806b2" {
		t.Fatalf("unexpected inputs %+v", info.Inputs)
	}

	out, err := info.Output(1)
	if err != nil {
		t.Fatalf("%+v", err)
	}

	if out.Address != "addr1vxxrpxgpcgmu4x7sna5etzxqzgt7lf2ss9hq6pkwkf3frestvu8tz" || out.Value != 129531501 {
		t.Fatalf("unexpected output %+v", out)
	}

	if _, err = info.Output(2); !errors.Is(err, ErrUtxoNotFound) {
		t.Fatalf("expected ErrUtxoNotFound, got %v", err)
	}

	if _, err = InspectTransaction("0xzz"); !errors.Is(err, ErrInvalidTransaction) {
		t.Fatalf("expected bad hex to be rejected, got %v", err)
	}
}

func TestNewTransaction_HashMatchesBody(t *testing.T) {
	hash, _ := hex.DecodeString(mainnetTxHash)
	body := TxBody{
		Inputs:  []TxInput{{TxHash: hash, Index: 0}},
		Outputs: []TxOutput{{Address: Address{0x61, 0x01}, Amount: 5}},
		Fee:     1,
	}

	tx, err := NewTransaction(body, nil)
	if err != nil {
		t.Fatalf("%+v", err)
	}

	bodyHash, err := body.Hash()
	if err != nil {
		t.Fatalf("%+v", err)
	}

	if !bytes.Equal(tx.Hash(), bodyHash) {
		t.Fatal("transaction hash differs from body hash")
	}

	data, err := tx.Bytes()
	if err != nil {
		t.Fatalf("%+v", err)
	}

	// an empty witness set encodes as an empty map
	if !bytes.HasSuffix(data, []byte{0xa0, 0xf5, 0xf6}) {
		t.Fatalf("unexpected transaction tail %x", data[len(data)-3:])
	}

	// zero ttl is omitted from the body
	if data[1] != 0xa3 {
		t.Fatalf("expected a three key body, got %#x", data[1])
	}
}
