package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	. "github.com/alexdcox/cardano-connector"
	"github.com/btcsuite/btcutil/bech32"
	"github.com/pkg/errors"
)

var log = Log()

var (
	key     string
	address string
	txHex   string
)

var networks = []Network{
	NetworkMainNet,
	NetworkPreProd,
	NetworkPreview,
	NetworkPrivateNet,
}

func main() {
	flag.StringVar(&key, "key", "", "A signing key as hex or cbor hex (seed, extended or xprv)")
	flag.StringVar(&address, "address", "", "An address to decode")
	flag.StringVar(&txHex, "tx", "", "A signed transaction as hex to inspect")
	flag.Parse()

	key = strings.Trim(key, " \"")
	address = strings.Trim(address, " \"")
	txHex = strings.Trim(txHex, " \"")

	var err error

	switch {
	case key != "":
		err = describeKey(key)
	case address != "":
		err = describeAddress(address)
	case txHex != "":
		err = describeTransaction(txHex)
	default:
		fmt.Println("usage: addr --key KEY | --address ADDRESS | --tx HEX")
		os.Exit(1)
	}

	if err != nil {
		log.Fatal().Msgf("%+v", err)
	}
}

func describeKey(keyHex string) (err error) {
	signingKey, err := ParseSigningKey(keyHex)
	if err != nil {
		return
	}

	keyHash, err := signingKey.KeyHash()
	if err != nil {
		return
	}

	fmt.Println("")
	fmt.Printf("public:            %x\n", signingKey.PublicKey())
	fmt.Printf("key hash:          %x\n", keyHash)

	for _, net := range networks {
		addr, err2 := EncodeAddress(signingKey.PublicKey(), net)
		if err2 != nil {
			return err2
		}
		if err2 = printAddress(net, addr); err2 != nil {
			return err2
		}
	}

	return
}

func describeAddress(encoded string) (err error) {
	decoded, err := DecodeAddress(encoded)
	if err != nil {
		return
	}

	fmt.Printf("\ndecoding address:  %s\n", encoded)

	for _, net := range networks {
		if _, err2 := DecodeAddressForNetwork(encoded, net); err2 != nil {
			fmt.Printf("\nnetwork:           %s\nfailed / invalid\n", net)
			continue
		}
		if err2 := printAddress(net, decoded); err2 != nil {
			return err2
		}
	}

	return
}

func printAddress(net Network, addr Address) (err error) {
	header, err := addr.Header()
	if err != nil {
		return
	}

	encoded := addr.String()

	fmt.Println("")
	fmt.Printf("network:           %s\n", net)
	fmt.Printf("addr header byte:  %s\n", header)

	if header.Type() == AddressTypeByron {
		fmt.Printf("addr (hex):        %s\n", addr.Hex())
		fmt.Printf("addr (base58):     %s\n", encoded)
		return
	}

	// re-encode independently as a cross check of the bech32 form
	fiveBit, err := bech32.ConvertBits(addr, 8, 5, true)
	if err != nil {
		return errors.WithStack(err)
	}

	crossCheck, err := bech32.Encode(header.Prefix(), fiveBit)
	if err != nil {
		return errors.WithStack(err)
	}

	if crossCheck != encoded {
		return errors.Errorf("bech32 mismatch: %s != %s", crossCheck, encoded)
	}

	fmt.Printf("addr (8-bit):      %x\n", []byte(addr))
	fmt.Printf("addr (bech32):     %s\n", encoded)

	if keyHash, hashErr := addr.PaymentKeyHash(); hashErr == nil {
		fmt.Printf("payment key hash:  %x\n", keyHash)
	}

	return
}

func describeTransaction(txHex string) (err error) {
	info, err := InspectTransaction(txHex)
	if err != nil {
		return
	}

	j, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}
	fmt.Println(string(j))

	raw, err := hex.DecodeString(txHex)
	if err != nil {
		return errors.WithStack(err)
	}

	diag, err := DiagnoseCbor(raw)
	if err != nil {
		return
	}
	fmt.Println(diag)

	return
}
