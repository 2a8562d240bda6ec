package funding

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/stellar/go/keypair"

	"transfer-ever/internal/ledger"
)

type fakeGateway struct {
	mu sync.Mutex

	accounts map[string]*ledger.Account
	loadErr  map[string]error
	feeErr   error
	// submitErr is keyed by operation name.
	submitErr map[string]error
	// createdBalances seeds accounts opened through CreateAccount.
	createdBalances []ledger.Balance
	// failReloadAfterPayment makes avatar lookups fail once a payment landed.
	failReloadAfterPayment bool

	loads     []string
	feeCalls  int
	submitted []ledger.Transaction
	paid      bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		accounts:  make(map[string]*ledger.Account),
		loadErr:   make(map[string]error),
		submitErr: make(map[string]error),
	}
}

func (g *fakeGateway) put(acc *ledger.Account) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.accounts[acc.ID] = acc
}

func (g *fakeGateway) LoadAccount(_ context.Context, address string) (*ledger.Account, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.loads = append(g.loads, address)
	if err := g.loadErr[address]; err != nil {
		return nil, err
	}
	acc, ok := g.accounts[address]
	if !ok {
		return nil, ledger.ErrAccountNotFound
	}
	if g.paid && g.failReloadAfterPayment && g.isDestinationOfPayment(address) {
		return nil, errors.New("horizon 503: service unavailable")
	}
	cp := *acc
	cp.Balances = append([]ledger.Balance(nil), acc.Balances...)
	return &cp, nil
}

func (g *fakeGateway) isDestinationOfPayment(address string) bool {
	for _, tx := range g.submitted {
		for _, op := range tx.Operations {
			if pp, ok := op.(ledger.PathPaymentStrictReceive); ok && pp.Destination == address {
				return true
			}
		}
	}
	return false
}

func (g *fakeGateway) FetchBaseFee(context.Context) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.feeCalls++
	if g.feeErr != nil {
		return 0, g.feeErr
	}
	return 100, nil
}

func (g *fakeGateway) Submit(_ context.Context, tx ledger.Transaction) (ledger.Receipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.submitted = append(g.submitted, tx)
	receipt := ledger.Receipt{Hash: fmt.Sprintf("hash-%d", len(g.submitted)), Ledger: int32(100 + len(g.submitted))}

	name := tx.Operations[0].OperationName()
	if err := g.submitErr[name]; err != nil {
		return receipt, err
	}
	for _, op := range tx.Operations {
		g.apply(op)
	}
	return receipt, nil
}

func (g *fakeGateway) apply(op ledger.Operation) {
	switch o := op.(type) {
	case ledger.CreateAccount:
		g.accounts[o.Destination] = &ledger.Account{
			ID:       o.Destination,
			Sequence: 1,
			Balances: append([]ledger.Balance{{Asset: ledger.NativeAsset(), Amount: o.StartingBalance}}, g.createdBalances...),
		}
	case ledger.ChangeTrust:
		acc := g.accounts[lastSource(g.submitted)]
		if acc != nil {
			acc.Balances = append(acc.Balances, ledger.Balance{Asset: o.Asset, Amount: "0.0000000"})
		}
	case ledger.PathPaymentStrictReceive:
		acc := g.accounts[o.Destination]
		if acc == nil {
			return
		}
		for i, b := range acc.Balances {
			if b.Asset.Code == o.DestAsset.Code && b.Asset.Issuer == o.DestAsset.Issuer {
				held, _ := decimal.NewFromString(b.Amount)
				add, _ := decimal.NewFromString(o.DestAmount)
				acc.Balances[i].Amount = held.Add(add).StringFixed(7)
				g.paid = true
				return
			}
		}
		acc.Balances = append(acc.Balances, ledger.Balance{Asset: o.DestAsset, Amount: o.DestAmount})
		g.paid = true
	}
}

func lastSource(txs []ledger.Transaction) string {
	if len(txs) == 0 {
		return ""
	}
	return txs[len(txs)-1].Source.ID
}

func (g *fakeGateway) operations() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.submitted))
	for _, tx := range g.submitted {
		out = append(out, tx.Operations[0].OperationName())
	}
	return out
}

type fakeWallet struct {
	keys  ledger.KeyPair
	err   error
	calls int
}

func (w *fakeWallet) Load(context.Context) (ledger.KeyPair, error) {
	w.calls++
	if w.err != nil {
		return ledger.KeyPair{}, w.err
	}
	return w.keys, nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (n *recordingNotifier) Notify(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
	return n.err
}

func newKeys() ledger.KeyPair {
	kp := keypair.MustRandom()
	return ledger.KeyPair{Address: kp.Address(), Seed: kp.Seed()}
}

func nativeBalance(amount string) ledger.Balance {
	return ledger.Balance{Asset: ledger.NativeAsset(), Amount: amount}
}

func creditBalance(code, issuer, amount string) ledger.Balance {
	return ledger.Balance{Asset: ledger.CreditAsset(code, issuer), Amount: amount}
}
