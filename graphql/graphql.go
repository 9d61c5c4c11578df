// Package graphql is a Backend over the cardano-graphql api.
package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	. "github.com/alexdcox/cardano-connector"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

const (
	tipQuery = `{ cardano { tip { number slotNo epoch { number } } } }`

	utxosQuery = `query ($address: String!) {
  utxos (where: { address: { _eq: $address } }) {
    txHash
    index
    value
  }
}`

	transactionQuery = `query ($hash: Hash32Hex!) {
  transactions (where: { hash: { _eq: $hash } }) {
    hash
    block { hash number }
    fee
    inputs { address sourceTxHash sourceTxIndex value }
    outputs { address index txHash value }
    invalidHereafter
    size
  }
}`

	submitMutation = `mutation ($transaction: String!) {
  submitTransaction (transaction: $transaction) {
    hash
  }
}`
)

type Client struct {
	Url     string
	Network Network
	Http    *http.Client
}

var _ Backend = (*Client)(nil)

// NewClient targets url, or the network's public endpoint when url is empty.
func NewClient(url string, network Network) (client *Client, err error) {
	params, err := network.Params()
	if err != nil {
		return
	}
	if url == "" {
		url = params.GraphQLUrl
	}
	client = &Client{
		Url:     strings.TrimRight(url, "/"),
		Network: network,
		Http:    &http.Client{Timeout: 30 * time.Second},
	}
	return
}

type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// query posts a graphql request and returns the data member of the response.
func (c *Client) query(ctx context.Context, query string, variables map[string]any) (data gjson.Result, err error) {
	body, err := json.Marshal(request{Query: query, Variables: variables})
	if err != nil {
		err = errors.WithStack(err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Url, bytes.NewReader(body))
	if err != nil {
		err = errors.WithStack(err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	rsp, err := c.Http.Do(req)
	if err != nil {
		err = errors.Wrapf(ErrNodeRequestFailed, "%v", err)
		return
	}
	defer rsp.Body.Close()

	out, err := io.ReadAll(rsp.Body)
	if err != nil {
		err = errors.WithStack(err)
		return
	}

	parsed := gjson.ParseBytes(out)

	if errs := parsed.Get("errors"); errs.Exists() && len(errs.Array()) > 0 {
		message := errs.Get("0.message").String()
		if message == "" {
			message = "graphql error without message"
		}
		err = errors.Wrap(ErrNodeRequestFailed, message)
		return
	}

	if rsp.StatusCode != http.StatusOK {
		err = errors.Wrapf(ErrNodeRequestFailed, "graphql response code %d with body %s", rsp.StatusCode, string(out))
		return
	}

	data = parsed.Get("data")
	if !data.Exists() {
		err = errors.Wrapf(ErrNodeRequestFailed, "graphql response has no data: %s", string(out))
	}

	return
}

func (c *Client) Tip(ctx context.Context) (tip Tip, err error) {
	data, err := c.query(ctx, tipQuery, nil)
	if err != nil {
		return
	}
	t := data.Get("cardano.tip")
	if !t.Exists() {
		err = errors.Wrap(ErrNodeRequestFailed, "no tip in response")
		return
	}
	return Tip{
		Slot:   t.Get("slotNo").Uint(),
		Height: t.Get("number").Uint(),
		Epoch:  t.Get("epoch.number").Uint(),
	}, nil
}

func (c *Client) UtxosForAddress(ctx context.Context, address string) (utxos []Utxo, err error) {
	data, err := c.query(ctx, utxosQuery, map[string]any{"address": address})
	if err != nil {
		return
	}

	for _, u := range data.Get("utxos").Array() {
		value, parseErr := ParseLovelace(u.Get("value").String())
		if parseErr != nil {
			err = errors.Wrapf(parseErr, "utxo %s#%d", u.Get("txHash").String(), u.Get("index").Uint())
			return nil, err
		}
		utxos = append(utxos, Utxo{
			TxHash:  u.Get("txHash").String(),
			Index:   uint32(u.Get("index").Uint()),
			Address: address,
			Value:   value,
		})
	}

	return
}

func (c *Client) Transaction(ctx context.Context, hash string) (info TransactionInfo, err error) {
	data, err := c.query(ctx, transactionQuery, map[string]any{"hash": hash})
	if err != nil {
		return
	}

	txs := data.Get("transactions").Array()
	if len(txs) == 0 {
		err = errors.Wrapf(ErrTransactionNotFound, "'%s'", hash)
		return
	}
	tx := txs[0]

	fee, err := ParseLovelace(tx.Get("fee").String())
	if err != nil {
		return
	}

	info = TransactionInfo{
		Hash:  tx.Get("hash").String(),
		Block: tx.Get("block.number").Uint(),
		Fee:   fee,
		Ttl:   tx.Get("invalidHereafter").Uint(),
		Size:  int(tx.Get("size").Int()),
	}

	for i, in := range tx.Get("inputs").Array() {
		value, parseErr := ParseLovelace(in.Get("value").String())
		if parseErr != nil {
			err = errors.Wrapf(parseErr, "input %d of %s", i, hash)
			return TransactionInfo{}, err
		}
		info.Inputs = append(info.Inputs, TxInputInfo{
			TxHash:  in.Get("sourceTxHash").String(),
			Index:   uint32(in.Get("sourceTxIndex").Uint()),
			Address: in.Get("address").String(),
			Value:   value,
		})
	}

	for _, out := range tx.Get("outputs").Array() {
		value, parseErr := ParseLovelace(out.Get("value").String())
		if parseErr != nil {
			err = errors.Wrapf(parseErr, "output %d of %s", out.Get("index").Uint(), hash)
			return TransactionInfo{}, err
		}
		info.Outputs = append(info.Outputs, Utxo{
			TxHash:  info.Hash,
			Index:   uint32(out.Get("index").Uint()),
			Address: out.Get("address").String(),
			Value:   value,
		})
	}

	return
}

// OutputAt looks the output up through its transaction. Spent outputs are
// still returned; the node rejects them at submission.
func (c *Client) OutputAt(ctx context.Context, txHash string, index uint32) (utxo Utxo, err error) {
	tx, err := c.Transaction(ctx, txHash)
	if errors.Is(err, ErrTransactionNotFound) {
		err = errors.Wrapf(ErrUtxoNotFound, "transaction %s not found", txHash)
		return
	}
	if err != nil {
		return
	}
	return tx.Output(index)
}

func (c *Client) Submit(ctx context.Context, txHex string) (txHash string, err error) {
	data, err := c.query(ctx, submitMutation, map[string]any{"transaction": txHex})
	if err != nil {
		return
	}
	txHash = data.Get("submitTransaction.hash").String()
	if txHash == "" {
		err = errors.Wrap(ErrNodeRequestFailed, "submitTransaction returned no hash")
	}
	return
}
