package cardano

import (
	"fmt"
)

var (
	ErrMissingFundingSpec     = fmt.Errorf("field fromAddress or fromUTXO is not filled")
	ErrConflictingFundingSpec = fmt.Errorf("only one of fromAddress or fromUTXO may be filled")
	ErrMissingDestination     = fmt.Errorf("no destination outputs")
	ErrUtxoNotFound           = fmt.Errorf("utxo not found")
	ErrInvalidAmount          = fmt.Errorf("invalid amount")
	ErrInsufficientFunds      = fmt.Errorf("insufficient funds")
	ErrMissingSigningKey      = fmt.Errorf("no private key or signature id for input")
	ErrInvalidPrivateKey      = fmt.Errorf("invalid private key")
	ErrInvalidPublicKey       = fmt.Errorf("invalid public key")
	ErrInvalidAddress         = fmt.Errorf("invalid address")
	ErrInvalidTransaction     = fmt.Errorf("invalid transaction")
	ErrTransactionNotFound    = fmt.Errorf("transaction not found")
	ErrNetworkInvalid         = fmt.Errorf("invalid network")
	ErrChainNotSupported      = fmt.Errorf("chain not supported")
	ErrSignatureNotFound      = fmt.Errorf("signature id not found")
	ErrNodeRequestFailed      = fmt.Errorf("node request failed")
	ErrRpcFailed              = fmt.Errorf("rpc failed")
)

// AllErrors lists every sentinel that may cross the http boundary, so a remote
// error string can be mapped back onto the local value.
var AllErrors = []error{
	ErrMissingFundingSpec,
	ErrConflictingFundingSpec,
	ErrMissingDestination,
	ErrUtxoNotFound,
	ErrInvalidAmount,
	ErrInsufficientFunds,
	ErrMissingSigningKey,
	ErrInvalidPrivateKey,
	ErrInvalidPublicKey,
	ErrInvalidAddress,
	ErrInvalidTransaction,
	ErrTransactionNotFound,
	ErrNetworkInvalid,
	ErrChainNotSupported,
	ErrSignatureNotFound,
	ErrNodeRequestFailed,
	ErrRpcFailed,
}
