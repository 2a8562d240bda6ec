package ledger

import (
	"context"
	"errors"
	"strings"
	"time"
)

// NativeType is the asset type Horizon reports for lumens.
const NativeType = "native"

var (
	// ErrAccountNotFound is returned by LoadAccount when the address has no
	// ledger entry yet. It is an expected state, not a failure.
	ErrAccountNotFound = errors.New("ledger account not found")
	// ErrSubmissionRejected means the network answered and refused the transaction.
	ErrSubmissionRejected = errors.New("transaction rejected")
	// ErrSubmissionUnknown means the outcome of a submission could not be
	// established. The transaction may still be applied.
	ErrSubmissionUnknown = errors.New("transaction outcome unknown")
)

// Asset identifies a ledger asset.
type Asset struct {
	Type   string `json:"type"`
	Code   string `json:"code,omitempty"`
	Issuer string `json:"issuer,omitempty"`
}

// NativeAsset returns the network's native asset.
func NativeAsset() Asset {
	return Asset{Type: NativeType}
}

// CreditAsset returns an issued asset. The type is derived from the code length.
func CreditAsset(code, issuer string) Asset {
	typ := "credit_alphanum4"
	if len(code) > 4 {
		typ = "credit_alphanum12"
	}
	return Asset{Type: typ, Code: code, Issuer: issuer}
}

// IsNative reports whether a is the native asset.
func (a Asset) IsNative() bool {
	return strings.EqualFold(a.Type, NativeType)
}

func (a Asset) String() string {
	if a.IsNative() {
		return "XLM"
	}
	if a.Issuer == "" {
		return a.Code
	}
	return a.Code + ":" + a.Issuer
}

// Balance is one balance line of an account. Amount keeps the ledger's
// decimal string untouched.
type Balance struct {
	Asset  Asset  `json:"asset"`
	Amount string `json:"amount"`
}

// Account is a snapshot of a ledger account.
type Account struct {
	ID       string    `json:"id"`
	Sequence int64     `json:"sequence"`
	Balances []Balance `json:"balances"`
}

// Operation is one of CreateAccount, ChangeTrust or PathPaymentStrictReceive.
type Operation interface {
	OperationName() string
}

// CreateAccount funds a new account with a starting balance of native currency.
type CreateAccount struct {
	Destination     string
	StartingBalance string
}

func (CreateAccount) OperationName() string { return "create_account" }

// ChangeTrust opens a trustline to Asset with the maximum limit.
type ChangeTrust struct {
	Asset Asset
}

func (ChangeTrust) OperationName() string { return "change_trust" }

// PathPaymentStrictReceive delivers exactly DestAmount of DestAsset to
// Destination, spending at most SendMax of SendAsset. SourceAccount, when
// set, overrides the transaction source for this operation.
type PathPaymentStrictReceive struct {
	SourceAccount string
	SendAsset     Asset
	SendMax       string
	Destination   string
	DestAsset     Asset
	DestAmount    string
}

func (PathPaymentStrictReceive) OperationName() string { return "path_payment_strict_receive" }

// Transaction is a request to build, sign and submit a single transaction.
type Transaction struct {
	Source     Account
	Operations []Operation
	BaseFee    int64
	Timeout    time.Duration
	Signers    []KeyPair
}

// Receipt describes a submission. Hash is set as soon as the transaction
// was built, so it is available for reconciliation even on error.
type Receipt struct {
	Hash   string `json:"hash"`
	Ledger int32  `json:"ledger,omitempty"`
}

// Gateway is the ledger capability the funding saga depends on.
type Gateway interface {
	LoadAccount(ctx context.Context, address string) (*Account, error)
	FetchBaseFee(ctx context.Context) (int64, error)
	Submit(ctx context.Context, tx Transaction) (Receipt, error)
}
