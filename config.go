package cardano

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"
)

// ShelleyGenesis is the subset of a node's shelley-genesis.json the builder
// reads to override the default protocol parameters.
type ShelleyGenesis struct {
	ProtocolParams struct {
		MinFeeA      uint64 `json:"minFeeA"`
		MinFeeB      uint64 `json:"minFeeB"`
		MinUTxOValue uint64 `json:"minUTxOValue"`
	} `json:"protocolParams"`
	NetworkId    string    `json:"networkId"`
	NetworkMagic int       `json:"networkMagic"`
	EpochLength  int       `json:"epochLength"`
	SystemStart  time.Time `json:"systemStart"`
	SlotLength   float64   `json:"slotLength"`
}

func LoadShelleyGenesis(path string) (genesis *ShelleyGenesis, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		err = errors.Wrapf(err, "failed to read genesis file '%s'", path)
		return
	}

	genesis = &ShelleyGenesis{}
	if err = json.Unmarshal(data, genesis); err != nil {
		err = errors.Wrapf(err, "failed to parse genesis file '%s'", path)
		return nil, err
	}

	return
}

// Apply copies the non-zero genesis fee parameters over p.
func (g *ShelleyGenesis) Apply(p ProtocolParams) ProtocolParams {
	pp := g.ProtocolParams
	if pp.MinFeeA != 0 {
		p.MinFeeA = pp.MinFeeA
	}
	if pp.MinFeeB != 0 {
		p.MinFeeB = pp.MinFeeB
	}
	if pp.MinUTxOValue != 0 {
		p.MinUtxoValue = Lovelace(pp.MinUTxOValue)
	}
	return p
}

// ApplyGenesis overrides the network's protocol parameters in place. It is
// meant for start up, before any builder reads them.
func (n Network) ApplyGenesis(genesis *ShelleyGenesis) error {
	params, err := n.Params()
	if err != nil {
		return err
	}
	if genesis.NetworkMagic != 0 && NetworkMagic(genesis.NetworkMagic) != params.Magic {
		return errors.Wrapf(
			ErrNetworkInvalid,
			"genesis network magic %d does not match %s (%d)",
			genesis.NetworkMagic,
			n,
			params.Magic)
	}
	params.Protocol = genesis.Apply(params.Protocol)
	return nil
}
