// Package escrow submits and confirms bounty escrow transactions on an EVM
// chain. Submissions are not idempotent; callers gate retries through store
// uniqueness before reaching for the chain.
package escrow

import "errors"

var (
	// ErrTxReverted reports a mined transaction with a failed status.
	ErrTxReverted = errors.New("transaction reverted")
	// ErrUnauthorized reports a contract revert caused by the caller lacking
	// the relayer role.
	ErrUnauthorized = errors.New("caller is not the escrow relayer")
	// ErrUnknownToken reports a currency with no configured token contract.
	ErrUnknownToken = errors.New("unknown escrow token")
)

// FundingReceipt is the confirmed on-chain outcome of an escrow deposit.
type FundingReceipt struct {
	TxHash      string
	OnChainID   string
	BlockNumber int64
}
