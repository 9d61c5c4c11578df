package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/alexdcox/cardano-connector"
	"github.com/alexdcox/cardano-connector/kms"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey     = "2a2a2a2a2a2a2a2a2a2a2a2a2a2a2a2a2a2a2a2a2a2a2a2a2a2a2a2a2a2a2a2a"
	testAddress = "addr_test1vz2fxv2umyhttkxyxp8x0dlpdt3k6cwng5pxj3jhsydzerspjrlsz"
	mainnetTx   = "84a40081825820710cb03bdce782b7d8f4e9cd2395dd98036ce9a7f7ed019086816fb6aee806b201018282581d61c0155b37c96884187b00f35eddb8492660ed642b4cb1c7a91193722f1a0013e17582581d618c309901c237ca9bd09f699588c01217efa550816e0d06ceb26291e61a07b87e6d021a0002c7e5031a079f5da7a10081825820848e4e417aad5169b72492ecfefd6446f59d634da51ff948b37611eacf66e591584053ec8410c832f5ae60711151153df677f74746bebe8942b74d7655b14d4a4a0422dcd0f18ad16a2048de4ed06597601b2306ccacf8eeea302caa5671db22d201f5f6"
	mainnetHash = "532d92a689ee5eae707e7bea46cce30d173fbabab4299e381068246983ba054f"
)

type testBackend struct {
	utxos     []Utxo
	submitted []string
}

func (b *testBackend) Tip(context.Context) (Tip, error) {
	return Tip{Slot: 1000, Height: 10, Epoch: 1}, nil
}

func (b *testBackend) UtxosForAddress(_ context.Context, address string) ([]Utxo, error) {
	if address != testAddress {
		return nil, nil
	}
	return b.utxos, nil
}

func (b *testBackend) OutputAt(_ context.Context, txHash string, index uint32) (Utxo, error) {
	for _, u := range b.utxos {
		if u.TxHash == txHash && u.Index == index {
			return u, nil
		}
	}
	return Utxo{}, errors.Wrapf(ErrUtxoNotFound, "%s#%d", txHash, index)
}

func (b *testBackend) Transaction(_ context.Context, hash string) (TransactionInfo, error) {
	if hash == mainnetHash {
		return InspectTransaction(mainnetTx)
	}
	return TransactionInfo{}, errors.WithStack(ErrTransactionNotFound)
}

func (b *testBackend) Submit(_ context.Context, txHex string) (string, error) {
	info, err := InspectTransaction(txHex)
	if err != nil {
		return "", err
	}
	b.submitted = append(b.submitted, txHex)
	return info.Hash, nil
}

func newTestServer(t *testing.T) (*HttpRpcServer, *testBackend, kms.Store) {
	backend := &testBackend{utxos: []Utxo{
		{TxHash: strings.Repeat("11", 32), Index: 0, Address: testAddress, Value: 5_000_000},
		{TxHash: strings.Repeat("22", 32), Index: 1, Address: testAddress, Value: 3_000_000},
	}}
	store := kms.NewInMemoryStore()

	service, err := NewService(NetworkPreProd, backend, store)
	require.NoError(t, err)

	server, err := NewHttpRpcServer(&_config{RpcHostPort: "localhost:0"}, service, store)
	require.NoError(t, err)

	return server, backend, store
}

func doRequest(t *testing.T, server *HttpRpcServer, method, path string, body any) (int, []byte) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rsp, err := server.app.Test(req, -1)
	require.NoError(t, err)
	defer rsp.Body.Close()

	out, err := io.ReadAll(rsp.Body)
	require.NoError(t, err)

	return rsp.StatusCode, out
}

func errorOf(t *testing.T, body []byte) string {
	var rsp struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	require.NoError(t, json.Unmarshal(body, &rsp))
	return rsp.Error
}

func TestHttp_SendSignedTransaction(t *testing.T) {
	server, backend, _ := newTestServer(t)

	status, body := doRequest(t, server, http.MethodPost, "/v3/ada/transaction", map[string]any{
		"fromAddress": []map[string]any{{"address": testAddress, "privateKey": testKey}},
		"to":          []map[string]any{{"address": testAddress, "value": 2}},
	})
	require.Equal(t, http.StatusOK, status, string(body))

	var rsp SendResponse
	require.NoError(t, json.Unmarshal(body, &rsp))
	assert.Len(t, rsp.TxID, 64)
	assert.Empty(t, rsp.SignatureID)
	assert.Len(t, backend.submitted, 1)
}

func TestHttp_CustodialFlow(t *testing.T) {
	server, backend, _ := newTestServer(t)

	status, body := doRequest(t, server, http.MethodPost, "/v3/ADA/transaction", map[string]any{
		"fromUTXO": []map[string]any{
			{"txHash": strings.Repeat("11", 32), "index": 0, "signatureId": "vault-key"},
		},
		"to": []map[string]any{{"address": testAddress, "value": "1.5"}},
	})
	require.Equal(t, http.StatusOK, status, string(body))

	var sent SendResponse
	require.NoError(t, json.Unmarshal(body, &sent))
	require.NotEmpty(t, sent.SignatureID)
	assert.Empty(t, backend.submitted)

	status, body = doRequest(t, server, http.MethodGet, "/v3/kms/pending/ada", nil)
	require.Equal(t, http.StatusOK, status)

	var pending []kms.PendingTransaction
	require.NoError(t, json.Unmarshal(body, &pending))
	require.Len(t, pending, 1)
	assert.Equal(t, sent.SignatureID, pending[0].ID)
	assert.Equal(t, []string{"vault-key"}, pending[0].SignatureIDs)

	var request SigningRequest
	require.NoError(t, json.Unmarshal([]byte(pending[0].SerializedTransaction), &request))
	assert.Equal(t, []string{"vault-key"}, request.PrivateKeysToSign)
	assert.NotEmpty(t, request.TxBody)

	// the key service signs elsewhere and broadcasts through the connector
	status, body = doRequest(t, server, http.MethodPost, "/v3/ADA/broadcast", BroadcastRequest{
		TxData:      mainnetTx,
		SignatureID: sent.SignatureID,
	})
	require.Equal(t, http.StatusOK, status, string(body))

	var broadcast TransactionResponse
	require.NoError(t, json.Unmarshal(body, &broadcast))
	assert.Equal(t, mainnetHash, broadcast.TxID)
	assert.False(t, broadcast.Failed)

	status, body = doRequest(t, server, http.MethodGet, "/v3/kms/"+sent.SignatureID, nil)
	require.Equal(t, http.StatusOK, status)

	var completed kms.PendingTransaction
	require.NoError(t, json.Unmarshal(body, &completed))
	assert.Equal(t, mainnetHash, completed.TxID)

	status, _ = doRequest(t, server, http.MethodDelete, "/v3/kms/"+sent.SignatureID, nil)
	assert.Equal(t, http.StatusOK, status)

	status, body = doRequest(t, server, http.MethodGet, "/v3/kms/"+sent.SignatureID, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, ErrSignatureNotFound.Error(), errorOf(t, body))

	// an unknown signature id still broadcasts but is flagged
	status, body = doRequest(t, server, http.MethodPost, "/v3/ADA/broadcast", BroadcastRequest{
		TxData:      mainnetTx,
		SignatureID: "unknown",
	})
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &broadcast))
	assert.True(t, broadcast.Failed)
}

func TestHttp_EstimateFee(t *testing.T) {
	server, _, _ := newTestServer(t)

	status, body := doRequest(t, server, http.MethodPost, "/v3/ADA/transaction/fee", map[string]any{
		"fromAddress": []map[string]any{{"address": testAddress, "signatureId": "s"}},
		"to":          []map[string]any{{"address": testAddress, "value": "2"}},
	})
	require.Equal(t, http.StatusOK, status, string(body))

	var estimate FeeEstimate
	require.NoError(t, json.Unmarshal(body, &estimate))
	assert.Equal(t, 2, estimate.Inputs)
	assert.Equal(t, Lovelace(6_000_000)-estimate.Fee, estimate.Change)
}

func TestHttp_Errors(t *testing.T) {
	server, _, _ := newTestServer(t)

	testCases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		err    error
	}{
		{
			name:   "unsupported chain",
			method: http.MethodGet,
			path:   "/v3/BTC/info",
			status: http.StatusBadRequest,
			err:    ErrChainNotSupported,
		},
		{
			name:   "missing funding",
			method: http.MethodPost,
			path:   "/v3/ADA/transaction",
			body:   map[string]any{"to": []map[string]any{{"address": testAddress, "value": 2}}},
			status: http.StatusBadRequest,
			err:    ErrMissingFundingSpec,
		},
		{
			name:   "conflicting funding",
			method: http.MethodPost,
			path:   "/v3/ADA/transaction",
			body: map[string]any{
				"fromAddress": []map[string]any{{"address": testAddress, "privateKey": testKey}},
				"fromUTXO":    []map[string]any{{"txHash": strings.Repeat("11", 32), "index": 0, "privateKey": testKey}},
				"to":          []map[string]any{{"address": testAddress, "value": 2}},
			},
			status: http.StatusBadRequest,
			err:    ErrConflictingFundingSpec,
		},
		{
			name:   "unknown utxo",
			method: http.MethodPost,
			path:   "/v3/ADA/transaction",
			body: map[string]any{
				"fromUTXO": []map[string]any{{"txHash": strings.Repeat("99", 32), "index": 4, "privateKey": testKey}},
				"to":       []map[string]any{{"address": testAddress, "value": 2}},
			},
			status: http.StatusNotFound,
			err:    ErrUtxoNotFound,
		},
		{
			name:   "insufficient funds",
			method: http.MethodPost,
			path:   "/v3/ADA/transaction",
			body: map[string]any{
				"fromAddress": []map[string]any{{"address": testAddress, "privateKey": testKey}},
				"to":          []map[string]any{{"address": testAddress, "value": 100}},
			},
			status: http.StatusForbidden,
			err:    ErrInsufficientFunds,
		},
		{
			name:   "bad broadcast",
			method: http.MethodPost,
			path:   "/v3/ADA/broadcast",
			body:   BroadcastRequest{TxData: "00"},
			status: http.StatusBadRequest,
			err:    ErrInvalidTransaction,
		},
		{
			name:   "unknown transaction",
			method: http.MethodGet,
			path:   "/v3/ADA/transaction/" + strings.Repeat("00", 32),
			status: http.StatusNotFound,
			err:    ErrTransactionNotFound,
		},
		{
			name:   "bad address",
			method: http.MethodGet,
			path:   "/v3/ADA/nonsense/utxos",
			status: http.StatusBadRequest,
			err:    ErrInvalidAddress,
		},
	}

	for _, testCase := range testCases {
		status, body := doRequest(t, server, testCase.method, testCase.path, testCase.body)
		assert.Equal(t, testCase.status, status, "%s: %s", testCase.name, string(body))
		assert.Equal(t, testCase.err.Error(), errorOf(t, body), testCase.name)
	}

	// bodies must be declared as json
	req := httptest.NewRequest(http.MethodPost, "/v3/ADA/transaction", strings.NewReader(`{}`))
	rsp, err := server.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, rsp.StatusCode)
}

func TestErrorStatus(t *testing.T) {
	// an error carrying sentinels from two groups always maps the same way
	both := fmt.Errorf("%w: %w", ErrInsufficientFunds, ErrUtxoNotFound)
	for i := 0; i < 20; i++ {
		status, reported := errorStatus(both)
		require.Equal(t, http.StatusNotFound, status)
		require.Equal(t, ErrUtxoNotFound, reported)
	}

	status, reported := errorStatus(errors.Wrap(ErrInvalidAmount, "to[0]"))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, ErrInvalidAmount, reported)

	status, reported = errorStatus(errors.Wrap(ErrInsufficientFunds, "short"))
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, ErrInsufficientFunds, reported)

	other := errors.New("boom")
	status, reported = errorStatus(other)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, other, reported)
}

func TestHttp_Queries(t *testing.T) {
	server, _, _ := newTestServer(t)

	status, body := doRequest(t, server, http.MethodGet, "/v3/ADA/info", nil)
	require.Equal(t, http.StatusOK, status)

	var info InfoResponse
	require.NoError(t, json.Unmarshal(body, &info))
	assert.Equal(t, NetworkPreProd, info.Network)
	assert.Equal(t, uint64(1000), info.Tip.Slot)

	status, body = doRequest(t, server, http.MethodGet, "/v3/ADA/"+testAddress+"/utxos", nil)
	require.Equal(t, http.StatusOK, status)

	var utxos []Utxo
	require.NoError(t, json.Unmarshal(body, &utxos))
	assert.Len(t, utxos, 2)

	status, body = doRequest(t, server, http.MethodGet, "/v3/ADA/transaction/"+mainnetHash, nil)
	require.Equal(t, http.StatusOK, status)

	var tx TransactionInfo
	require.NoError(t, json.Unmarshal(body, &tx))
	assert.Equal(t, Lovelace(182245), tx.Fee)
	assert.Len(t, tx.Outputs, 2)
}

func TestConfig_Load(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"network":"preview","backend":"rpc","rpchostport":"0.0.0.0:9000"}`), 0600))

	t.Setenv("CARDANO_CONNECTOR_KMSSTORE", "memory")
	t.Setenv("CARDANO_CONNECTOR_LOG_LEVEL", "debug")

	c := &_config{}
	require.NoError(t, c.Load([]string{"--config", file, "--rpchostport", "localhost:7000"}))

	assert.Equal(t, "preview", c.Network)
	assert.Equal(t, "rpc", c.Backend)
	assert.Equal(t, "localhost:7000", c.RpcHostPort, "flags win over the config file")
	assert.Equal(t, "memory", c.KmsStore)
	assert.Equal(t, "debug", c.LogLevel)

	bad := &_config{}
	assert.True(t, errors.Is(bad.Load([]string{"--network", "moon"}), ErrNetworkInvalid))

	bad = &_config{}
	assert.Error(t, bad.Load([]string{"--network", "preprod", "--backend", "carrier-pigeon"}))
}
