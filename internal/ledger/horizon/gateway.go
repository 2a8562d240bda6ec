package horizon

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/keypair"
	hprotocol "github.com/stellar/go/protocols/horizon"
	"github.com/stellar/go/txnbuild"
	"golang.org/x/time/rate"

	"transfer-ever/internal/ledger"
)

// Config describes how to construct a Horizon backed gateway.
type Config struct {
	Name        string
	HorizonURL  string
	Passphrase  string
	HTTPTimeout time.Duration
	// RateLimit caps Horizon requests per second. Zero disables limiting.
	RateLimit int
}

// Gateway implements ledger.Gateway on top of the Horizon REST API.
type Gateway struct {
	name       string
	passphrase string
	client     *horizonclient.Client
	limiter    *rate.Limiter
}

// NewGateway returns a gateway for one network.
func NewGateway(cfg Config) (*Gateway, error) {
	url := strings.TrimSpace(cfg.HorizonURL)
	if url == "" {
		return nil, stdErrors.New("horizon url is required")
	}
	if strings.TrimSpace(cfg.Passphrase) == "" {
		return nil, stdErrors.New("network passphrase is required")
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit)
	}
	return &Gateway{
		limiter:    limiter,
		name:       cfg.Name,
		passphrase: cfg.Passphrase,
		client: &horizonclient.Client{
			HorizonURL: url,
			HTTP:       &http.Client{Timeout: timeout},
		},
	}, nil
}

// Name returns the network name the gateway was registered under.
func (g *Gateway) Name() string {
	return g.name
}

// Passphrase returns the network passphrase used for signing.
func (g *Gateway) Passphrase() string {
	return g.passphrase
}

// LoadAccount fetches the account and its balances.
func (g *Gateway) LoadAccount(ctx context.Context, address string) (*ledger.Account, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	acc, err := g.client.AccountDetail(horizonclient.AccountRequest{AccountID: address})
	if err != nil {
		if horizonclient.IsNotFoundError(err) {
			return nil, ledger.ErrAccountNotFound
		}
		return nil, fmt.Errorf("load account %s: %w", address, describe(err))
	}
	return convertAccount(acc)
}

// FetchBaseFee returns the last ledger base fee in stroops.
func (g *Gateway) FetchBaseFee(ctx context.Context) (int64, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	stats, err := g.client.FeeStats()
	if err != nil {
		return 0, fmt.Errorf("fetch base fee: %w", describe(err))
	}
	return stats.LastLedgerBaseFee, nil
}

// Submit builds, signs and submits tx exactly once. Errors wrap either
// ledger.ErrSubmissionRejected or ledger.ErrSubmissionUnknown.
func (g *Gateway) Submit(ctx context.Context, tx ledger.Transaction) (ledger.Receipt, error) {
	signed, err := g.build(tx)
	if err != nil {
		return ledger.Receipt{}, err
	}
	hash, err := signed.HashHex(g.passphrase)
	if err != nil {
		return ledger.Receipt{}, fmt.Errorf("hash transaction: %w", err)
	}
	receipt := ledger.Receipt{Hash: hash}
	// Nothing was sent yet, so a cancelled wait is not an ambiguous outcome.
	if err := g.limiter.Wait(ctx); err != nil {
		return receipt, err
	}

	resp, err := g.client.SubmitTransactionWithOptions(signed, horizonclient.SubmitTxOpts{SkipMemoRequiredCheck: true})
	if err != nil {
		return receipt, classifySubmitError(err)
	}
	receipt.Ledger = resp.Ledger
	if !resp.Successful {
		return receipt, fmt.Errorf("%w: transaction %s not successful", ledger.ErrSubmissionRejected, hash)
	}
	return receipt, nil
}

func (g *Gateway) build(tx ledger.Transaction) (*txnbuild.Transaction, error) {
	if len(tx.Operations) == 0 {
		return nil, stdErrors.New("transaction has no operations")
	}
	if len(tx.Signers) == 0 {
		return nil, stdErrors.New("transaction has no signers")
	}
	ops := make([]txnbuild.Operation, 0, len(tx.Operations))
	for _, op := range tx.Operations {
		built, err := convertOperation(op)
		if err != nil {
			return nil, err
		}
		ops = append(ops, built)
	}

	fee := tx.BaseFee
	if fee < txnbuild.MinBaseFee {
		fee = txnbuild.MinBaseFee
	}
	timeout := int64(tx.Timeout / time.Second)
	if timeout <= 0 {
		timeout = 30
	}

	source := txnbuild.NewSimpleAccount(tx.Source.ID, tx.Source.Sequence)
	built, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &source,
		IncrementSequenceNum: true,
		Operations:           ops,
		BaseFee:              fee,
		Preconditions:        txnbuild.Preconditions{TimeBounds: txnbuild.NewTimeout(timeout)},
	})
	if err != nil {
		return nil, fmt.Errorf("build transaction: %w", err)
	}

	signers := make([]*keypair.Full, 0, len(tx.Signers))
	for _, kp := range tx.Signers {
		full, err := keypair.ParseFull(kp.Seed)
		if err != nil {
			return nil, fmt.Errorf("signer %s: %w", kp.Address, ledger.ErrInvalidKey)
		}
		signers = append(signers, full)
	}
	signed, err := built.Sign(g.passphrase, signers...)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return signed, nil
}

func convertAccount(acc hprotocol.Account) (*ledger.Account, error) {
	seq, err := acc.GetSequenceNumber()
	if err != nil {
		return nil, fmt.Errorf("account %s sequence: %w", acc.AccountID, err)
	}
	out := &ledger.Account{
		ID:       acc.AccountID,
		Sequence: seq,
		Balances: make([]ledger.Balance, 0, len(acc.Balances)),
	}
	for _, b := range acc.Balances {
		out.Balances = append(out.Balances, ledger.Balance{
			Asset: ledger.Asset{
				Type:   b.Asset.Type,
				Code:   b.Asset.Code,
				Issuer: b.Asset.Issuer,
			},
			Amount: b.Balance,
		})
	}
	return out, nil
}

func convertAsset(a ledger.Asset) (txnbuild.Asset, error) {
	if a.IsNative() {
		return txnbuild.NativeAsset{}, nil
	}
	if a.Code == "" || a.Issuer == "" {
		return nil, fmt.Errorf("asset %q needs code and issuer", a.String())
	}
	return txnbuild.CreditAsset{Code: a.Code, Issuer: a.Issuer}, nil
}

func convertOperation(op ledger.Operation) (txnbuild.Operation, error) {
	switch o := op.(type) {
	case ledger.CreateAccount:
		return &txnbuild.CreateAccount{Destination: o.Destination, Amount: o.StartingBalance}, nil
	case ledger.ChangeTrust:
		asset, err := convertAsset(o.Asset)
		if err != nil {
			return nil, err
		}
		credit, ok := asset.(txnbuild.CreditAsset)
		if !ok {
			return nil, stdErrors.New("cannot open a trustline to the native asset")
		}
		line, err := credit.ToChangeTrustAsset()
		if err != nil {
			return nil, fmt.Errorf("trustline asset: %w", err)
		}
		return &txnbuild.ChangeTrust{Line: line}, nil
	case ledger.PathPaymentStrictReceive:
		sendAsset, err := convertAsset(o.SendAsset)
		if err != nil {
			return nil, fmt.Errorf("send asset: %w", err)
		}
		destAsset, err := convertAsset(o.DestAsset)
		if err != nil {
			return nil, fmt.Errorf("destination asset: %w", err)
		}
		return &txnbuild.PathPaymentStrictReceive{
			SendAsset:     sendAsset,
			SendMax:       o.SendMax,
			Destination:   o.Destination,
			DestAsset:     destAsset,
			DestAmount:    o.DestAmount,
			SourceAccount: o.SourceAccount,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported operation %T", op)
	}
}

// classifySubmitError separates a definite rejection from a submission
// whose fate is unknown (timeouts, transport failures, 5xx).
func classifySubmitError(err error) error {
	if herr := horizonclient.GetError(err); herr != nil {
		status := herr.Problem.Status
		if status == http.StatusBadRequest {
			return fmt.Errorf("%w: %v", ledger.ErrSubmissionRejected, describe(err))
		}
		return fmt.Errorf("%w: %v", ledger.ErrSubmissionUnknown, describe(err))
	}
	// Transport errors and deadlines leave the transaction in flight.
	return fmt.Errorf("%w: %v", ledger.ErrSubmissionUnknown, err)
}

// describe flattens a Horizon problem into a readable error, keeping the
// transaction and operation result codes when present.
func describe(err error) error {
	herr := horizonclient.GetError(err)
	if herr == nil {
		return err
	}
	msg := herr.Problem.Title
	if msg == "" {
		msg = herr.Problem.Type
	}
	if codes, codesErr := herr.ResultCodes(); codesErr == nil && codes != nil {
		parts := []string{codes.TransactionCode}
		parts = append(parts, codes.OperationCodes...)
		msg = fmt.Sprintf("%s (%s)", msg, strings.Join(parts, ", "))
	}
	return fmt.Errorf("horizon %d: %s", herr.Problem.Status, msg)
}

var _ ledger.Gateway = (*Gateway)(nil)
