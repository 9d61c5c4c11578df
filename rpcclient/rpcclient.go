package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	. "github.com/alexdcox/cardano-connector"
	"github.com/pkg/errors"
)

// NewRpcClient returns a Backend served by a cardano-go rpc node.
func NewRpcClient(hostPort string, network Network) (client *RpcClient, err error) {
	if err = network.Validate(); err != nil {
		return
	}
	client = &RpcClient{
		base: base{
			HostPort: normaliseHostPort(hostPort),
			Http:     &http.Client{Timeout: 30 * time.Second},
		},
		Network: network,
	}
	return
}

type RpcClient struct {
	base
	Network Network
}

var _ Backend = (*RpcClient)(nil)

type base struct {
	HostPort string
	Http     *http.Client
}

func normaliseHostPort(hostPort string) string {
	hostPort = strings.TrimRight(hostPort, "/")
	if !strings.HasPrefix(hostPort, "http://") && !strings.HasPrefix(hostPort, "https://") {
		hostPort = "http://" + hostPort
	}
	return hostPort
}

func (c *base) req(ctx context.Context, method string, path string, body io.Reader) (rsp *http.Response, out []byte, err error) {
	req, err2 := http.NewRequestWithContext(ctx, method, c.HostPort+path, body)
	if err2 != nil {
		err = errors.WithStack(err2)
		return
	}

	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}

	rsp, err = c.Http.Do(req)
	if err != nil {
		err = errors.Wrapf(ErrNodeRequestFailed, "%v", err)
		return
	}
	defer rsp.Body.Close()

	out, err = io.ReadAll(rsp.Body)
	if err != nil {
		err = errors.WithStack(err)
		return
	}

	if rsp.Status[0] != '2' {
		errRsp := &RpcError{}
		if decodeErr := json.Unmarshal(out, errRsp); decodeErr == nil && errRsp.Err != "" {
			err = errRsp

			if stdErr := errRsp.StdErr(); stdErr != nil {
				err = stdErr
			}

			return
		}

		err = errors.Wrapf(ErrRpcFailed, "rpc response code %d with body %s", rsp.StatusCode, string(out))
		return
	}

	return
}

func (c *base) reqUnmarshal(ctx context.Context, method string, path string, body io.Reader, target any) (err error) {
	_, rspBody, err := c.req(ctx, method, path, body)
	if err != nil {
		return
	}

	err = json.Unmarshal(rspBody, target)
	if err != nil {
		err = errors.Wrapf(err, "unable to unmarshal body: %s", string(rspBody))
		return
	}

	return
}

func (c *base) get(ctx context.Context, path string, target any) (err error) {
	return c.reqUnmarshal(ctx, http.MethodGet, path, nil, target)
}

func (c *base) post(ctx context.Context, path string, in any, target any) (err error) {
	jsn, err := json.Marshal(in)
	if err != nil {
		err = errors.WithStack(err)
		return
	}

	return c.reqUnmarshal(ctx, http.MethodPost, path, bytes.NewReader(jsn), target)
}

type GetHeightOut struct {
	Height uint64 `json:"height"`
	Slot   uint64 `json:"slot"`
	Hash   string `json:"hash"`
}

func (c *RpcClient) GetHeight(ctx context.Context) (out *GetHeightOut, err error) {
	out = &GetHeightOut{}
	err = c.get(ctx, "/height", out)
	return
}

func (c *RpcClient) Tip(ctx context.Context) (tip Tip, err error) {
	height, err := c.GetHeight(ctx)
	if err != nil {
		return
	}
	return Tip{Slot: height.Slot, Height: height.Height}, nil
}

type GetTransactionOut TxResponse

func (c *RpcClient) GetTransaction(ctx context.Context, hash string) (out *GetTransactionOut, err error) {
	out = &GetTransactionOut{}
	err = c.get(ctx, fmt.Sprintf("/tx/%s", hash), out)
	return
}

func (c *RpcClient) Transaction(ctx context.Context, hash string) (info TransactionInfo, err error) {
	tx, err := c.GetTransaction(ctx, hash)
	if err != nil {
		return
	}

	info = TransactionInfo{
		Hash: tx.Hash,
		Fee:  Lovelace(tx.Fee),
	}

	for _, in := range tx.Inputs {
		info.Inputs = append(info.Inputs, TxInputInfo{TxHash: in.Hash, Index: in.Index})
	}

	for i, out := range tx.Outputs {
		info.Outputs = append(info.Outputs, Utxo{
			TxHash:  tx.Hash,
			Index:   uint32(i),
			Address: out.Address,
			Value:   Lovelace(out.Amount),
		})
	}

	return
}

func (c *RpcClient) OutputAt(ctx context.Context, txHash string, index uint32) (utxo Utxo, err error) {
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

type BroadcastTxIn struct {
	TxHex string `json:"tx"`
}

type BroadcastTxOut struct {
	TxHash string `json:"txHash"`
}

func (c *RpcClient) BroadcastTx(ctx context.Context, in *BroadcastTxIn) (out *BroadcastTxOut, err error) {
	out = &BroadcastTxOut{}
	err = c.post(ctx, "/tx/broadcast", in, out)
	return
}

func (c *RpcClient) Submit(ctx context.Context, txHex string) (txHash string, err error) {
	out, err := c.BroadcastTx(ctx, &BroadcastTxIn{TxHex: txHex})
	if err != nil {
		return
	}
	return out.TxHash, nil
}

type GetUtxosForAddressOut []NodeUtxo

type NodeUtxo struct {
	TxHash  string `json:"txHash"`
	Address string `json:"address"`
	Amount  uint64 `json:"amount"`
	Index   uint64 `json:"index"`
	Height  uint64 `json:"height"`
}

func (c *RpcClient) GetUtxosForAddress(ctx context.Context, address string) (out GetUtxosForAddressOut, err error) {
	if _, err = DecodeAddressForNetwork(address, c.Network); err != nil {
		return
	}
	out = GetUtxosForAddressOut{}
	err = c.get(ctx, fmt.Sprintf("/utxo/%s", address), &out)
	return
}

func (c *RpcClient) UtxosForAddress(ctx context.Context, address string) (utxos []Utxo, err error) {
	out, err := c.GetUtxosForAddress(ctx, address)
	if err != nil {
		return
	}
	for _, u := range out {
		utxos = append(utxos, Utxo{
			TxHash:  u.TxHash,
			Index:   uint32(u.Index),
			Address: u.Address,
			Value:   Lovelace(u.Amount),
		})
	}
	return
}

type NodeTxInput struct {
	Hash  string `json:"hash"`
	Index uint32 `json:"index"`
}

type NodeTxOutput struct {
	Amount  uint64 `json:"amount"`
	Address string `json:"address"`
}

type TxResponse struct {
	Hash    string         `json:"hash"`
	Inputs  []NodeTxInput  `json:"inputs"`
	Outputs []NodeTxOutput `json:"outputs"`
	Memo    string         `json:"memo,omitempty"`
	Fee     uint64         `json:"fee"`
}

// RpcError is the error body written by both the node rpc service and the
// connector.
type RpcError struct {
	Err     string `json:"error"`
	Details string `json:"details"`
}

func (r *RpcError) Error() string {
	return r.Err
}

func (r *RpcError) StdErr() error {
	for _, a := range AllErrors {
		if r.Err == a.Error() {
			return errors.Wrap(a, r.Details)
		}
	}
	return nil
}
