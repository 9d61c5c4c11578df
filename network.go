package cardano

import "github.com/pkg/errors"

func init() {
	MainNetParams.Name = NetworkMainNet
	MainNetParams.Magic = NetworkMagicMainNet
	MainNetParams.AddressPrefix = "addr"
	MainNetParams.DelegationPrefix = "stake"
	MainNetParams.Protocol = DefaultProtocolParams
	MainNetParams.GraphQLUrl = "https://graphql-api.mainnet.dandelion.link"

	PreProdParams.Name = NetworkPreProd
	PreProdParams.Magic = NetworkMagicPreProd
	PreProdParams.AddressPrefix = "addr_test"
	PreProdParams.DelegationPrefix = "stake_test"
	PreProdParams.Protocol = DefaultProtocolParams
	PreProdParams.GraphQLUrl = "https://graphql-api.preprod.dandelion.link"

	PreviewParams.Name = NetworkPreview
	PreviewParams.Magic = NetworkMagicPreview
	PreviewParams.AddressPrefix = "addr_test"
	PreviewParams.DelegationPrefix = "stake_test"
	PreviewParams.Protocol = DefaultProtocolParams
	PreviewParams.GraphQLUrl = "https://graphql-api.preview.dandelion.link"

	PrivateNetParams.Name = NetworkPrivateNet
	PrivateNetParams.Magic = NetworkMagicPrivateNet
	PrivateNetParams.AddressPrefix = "addr_test"
	PrivateNetParams.DelegationPrefix = "stake_test"
	PrivateNetParams.Protocol = DefaultProtocolParams
	PrivateNetParams.GraphQLUrl = "http://localhost:3100"
}

// ProtocolParams holds the ledger parameters the transaction builder depends
// on. Fees follow minFeeA * size + minFeeB.
type ProtocolParams struct {
	MinFeeA      uint64   `json:"minFeeA"`
	MinFeeB      uint64   `json:"minFeeB"`
	MinUtxoValue Lovelace `json:"minUtxoValue"`
	TtlSlots     uint64   `json:"ttlSlots"`
}

var DefaultProtocolParams = ProtocolParams{
	MinFeeA:      44,
	MinFeeB:      155381,
	MinUtxoValue: 1_000_000,
	TtlSlots:     200,
}

func (p ProtocolParams) LinearFee() LinearFee {
	return LinearFee{A: p.MinFeeA, B: p.MinFeeB}
}

type NetworkParams struct {
	Name             Network
	Magic            NetworkMagic
	AddressPrefix    string
	DelegationPrefix string
	GraphQLUrl       string
	Protocol         ProtocolParams
}

// Testnet reports whether addresses on this network carry the testnet header bits.
func (p *NetworkParams) Testnet() bool {
	return p.Name != NetworkMainNet
}

var MainNetParams = NetworkParams{}
var PreProdParams = NetworkParams{}
var PreviewParams = NetworkParams{}
var PrivateNetParams = NetworkParams{}

const (
	NetworkMainNet    Network = "mainnet"
	NetworkPreProd    Network = "preprod"
	NetworkPreview    Network = "preview"
	NetworkPrivateNet Network = "privnet"
)

type Network string

func (n Network) Valid() bool {
	return n == NetworkMainNet || n == NetworkPreProd || n == NetworkPreview || n == NetworkPrivateNet
}

func (n Network) Validate() (err error) {
	if !n.Valid() {
		err = errors.Wrapf(ErrNetworkInvalid, "'%s'", n)
	}
	return
}

func (n Network) Params() (params *NetworkParams, err error) {
	if err = n.Validate(); err != nil {
		return
	}

	switch n {
	case NetworkMainNet:
		return &MainNetParams, nil
	case NetworkPreProd:
		return &PreProdParams, nil
	case NetworkPreview:
		return &PreviewParams, nil
	case NetworkPrivateNet:
		return &PrivateNetParams, nil
	}

	return
}

type NetworkMagic uint64

const (
	NetworkMagicMainNet    NetworkMagic = 764824073
	NetworkMagicPreProd    NetworkMagic = 1
	NetworkMagicPreview    NetworkMagic = 2
	NetworkMagicPrivateNet NetworkMagic = 42
)
