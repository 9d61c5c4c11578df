package rpcclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	. "github.com/alexdcox/cardano-connector"
)

// ConnectorClient talks to the connector's own v3 http api.
type ConnectorClient struct {
	base
	Chain Chain
}

func NewConnectorClient(hostPort string, chain Chain) *ConnectorClient {
	return &ConnectorClient{
		base: base{
			HostPort: normaliseHostPort(hostPort),
			Http:     &http.Client{Timeout: 60 * time.Second},
		},
		Chain: chain,
	}
}

func (c *ConnectorClient) path(format string, args ...any) string {
	return fmt.Sprintf("/v3/%s", url.PathEscape(string(c.Chain))) + fmt.Sprintf(format, args...)
}

func (c *ConnectorClient) Info(ctx context.Context) (out *InfoResponse, err error) {
	out = &InfoResponse{}
	err = c.get(ctx, c.path("/info"), out)
	return
}

func (c *ConnectorClient) Utxos(ctx context.Context, address string) (out []Utxo, err error) {
	err = c.get(ctx, c.path("/%s/utxos", url.PathEscape(address)), &out)
	return
}

func (c *ConnectorClient) Transaction(ctx context.Context, hash string) (out *TransactionInfo, err error) {
	out = &TransactionInfo{}
	err = c.get(ctx, c.path("/transaction/%s", url.PathEscape(hash)), out)
	return
}

func (c *ConnectorClient) SendTransaction(ctx context.Context, in *TransferRequest) (out *SendResponse, err error) {
	out = &SendResponse{}
	err = c.post(ctx, c.path("/transaction"), in, out)
	return
}

func (c *ConnectorClient) EstimateFee(ctx context.Context, in *TransferRequest) (out *FeeEstimate, err error) {
	out = &FeeEstimate{}
	err = c.post(ctx, c.path("/transaction/fee"), in, out)
	return
}

func (c *ConnectorClient) Broadcast(ctx context.Context, in *BroadcastRequest) (out *TransactionResponse, err error) {
	out = &TransactionResponse{}
	err = c.post(ctx, c.path("/broadcast"), in, out)
	return
}
