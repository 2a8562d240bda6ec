package funding

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	xerrors "transfer-ever/internal/errors"
	"transfer-ever/internal/journal"
	"transfer-ever/internal/ledger"
	"transfer-ever/internal/observability/metrics"
	"transfer-ever/internal/wallet"
	"transfer-ever/pkg/logger"
)

// State is a saga state.
type State string

const (
	StateValidating        State = "VALIDATING"
	StateUserLoaded        State = "USER_LOADED"
	StateAvatarResolved    State = "AVATAR_RESOLVED"
	StateAvatarActivating  State = "AVATAR_ACTIVATING"
	StateTrustlineEnabling State = "TRUSTLINE_ENABLING"
	StatePaying            State = "PAYING"
	StateDone              State = "DONE"
	StateFailed            State = "FAILED"
)

// Checkpoint texts sent to the requester.
const (
	MsgPleaseWait        = "Please wait while I am transferring the amount."
	MsgFundingSuccessful = "Funding Successful."

	msgActivating = "Hold on let me activate the account by funding it with %s XLM."
	msgActivated  = "Activated successfully with %s XLM.\nNext up I'm going to use some XLM to buy %s from market to fund this stellar account with %s%s. The minimum balance is %s %s."
)

// Notifier delivers a checkpoint text to the requester.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, text string) error

func (f NotifierFunc) Notify(ctx context.Context, text string) error {
	return f(ctx, text)
}

// Recorder receives a snapshot after every state change and submission.
type Recorder interface {
	Save(ctx context.Context, run *journal.Run) error
}

// Saga runs the funding workflow. A Saga is safe for concurrent use; each
// Run call owns its own context.
type Saga struct {
	gateway         ledger.Gateway
	wallets         wallet.Loader
	home            HomeAsset
	minimum         decimal.Decimal
	startingBalance string
	txTimeout       time.Duration
	network         string
	recorder        Recorder
	logger          *slog.Logger
	now             func() time.Time
}

// Option customises a Saga.
type Option func(*Saga)

// WithHomeAsset sets the asset the avatar is funded in.
func WithHomeAsset(home HomeAsset) Option {
	return func(s *Saga) {
		if home.Code != "" && home.Issuer != "" {
			s.home = home
		}
	}
}

// WithMinimumAmount sets the smallest accepted amount.
func WithMinimumAmount(min decimal.Decimal) Option {
	return func(s *Saga) {
		s.minimum = min
	}
}

// WithStartingBalance sets the native amount used to create the avatar account.
func WithStartingBalance(amount string) Option {
	return func(s *Saga) {
		if amount != "" {
			s.startingBalance = amount
		}
	}
}

// WithTxTimeout sets the validity window of every submitted transaction.
func WithTxTimeout(d time.Duration) Option {
	return func(s *Saga) {
		if d > 0 {
			s.txTimeout = d
		}
	}
}

// WithNetwork tags journal records with the ledger network name.
func WithNetwork(name string) Option {
	return func(s *Saga) {
		s.network = name
	}
}

// WithRecorder journals every run.
func WithRecorder(r Recorder) Option {
	return func(s *Saga) {
		s.recorder = r
	}
}

// WithLogger overrides the saga logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Saga) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Saga.
func New(gateway ledger.Gateway, wallets wallet.Loader, opts ...Option) (*Saga, error) {
	if gateway == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "ledger gateway is required")
	}
	if wallets == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "wallet loader is required")
	}
	s := &Saga{
		gateway:         gateway,
		wallets:         wallets,
		home:            DefaultHomeAsset(),
		minimum:         decimal.NewFromInt(100),
		startingBalance: "5",
		txTimeout:       30 * time.Second,
		logger:          logger.Named("funding"),
		now:             time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Outcome summarises a finished run.
type Outcome struct {
	RunID            string
	State            State
	Activated        bool
	TrustlineCreated bool
	Submissions      []journal.Submission
	// Avatar is the last known avatar account, nil if it was never loaded.
	Avatar *ledger.Account
	// Summary is the balance report sent after success. It is empty when
	// the final reload failed.
	Summary string
}

// run is the per-command context. It is never shared between commands.
type run struct {
	saga     *Saga
	notifier Notifier
	logger   *slog.Logger
	record   *journal.Run

	state      State
	stateSince time.Time

	rawAmount  string
	request    TransferRequest
	user       *ledger.Account
	avatarKeys ledger.KeyPair
	avatar     *ledger.Account
	asset      AssetSpec
	summary    string
}

// Run executes the saga for req and reports progress through notifier.
// The returned error carries one of the funding codes; the Outcome is
// returned in both cases.
func (s *Saga) Run(ctx context.Context, req Request, notifier Notifier) (*Outcome, error) {
	now := s.now()
	id := uuid.NewString()
	r := &run{
		saga:       s,
		notifier:   notifier,
		logger:     s.logger.With(slog.String("run_id", id)),
		state:      StateValidating,
		stateSince: now,
		rawAmount:  req.Amount,
		record: &journal.Run{
			ID:        id,
			CommandID: req.CommandID,
			Network:   s.network,
			AssetCode: NormalizeAsset(req.Asset),
			Amount:    req.Amount,
			State:     string(StateValidating),
			CreatedAt: now,
			UpdatedAt: now,
		},
	}

	metrics.ActiveRuns.Inc()
	defer metrics.ActiveRuns.Dec()

	r.logger.Debug("funding started", slog.Any("request", req))
	r.save(ctx)
	r.notify(ctx, MsgPleaseWait)

	if err := r.execute(ctx, req); err != nil {
		r.fail(ctx, err)
		return r.outcome(), err
	}
	metrics.ObserveRun(true, "")
	return r.outcome(), nil
}

func (r *run) execute(ctx context.Context, req Request) error {
	if err := r.validate(req); err != nil {
		return err
	}
	if err := r.loadUser(ctx, req.Secret); err != nil {
		return err
	}
	exists, err := r.resolveAvatar(ctx)
	if err != nil {
		return err
	}
	if !exists {
		if err := r.activate(ctx); err != nil {
			return err
		}
		if err := r.enableTrustline(ctx); err != nil {
			return err
		}
	}
	if err := r.pay(ctx); err != nil {
		return err
	}
	r.finish(ctx)
	return nil
}

// validate runs without any network call.
func (r *run) validate(req Request) error {
	amount, err := ParseAmount(req.Amount, r.saga.minimum)
	if err != nil {
		return err
	}
	r.request.Amount = amount
	r.request.AssetCode = NormalizeAsset(req.Asset)
	return nil
}

func (r *run) loadUser(ctx context.Context, secret string) error {
	keys, err := ledger.ParseSecret(secret)
	if err != nil {
		return xerrors.Wrap(CodeInvalidCredentials, err, "")
	}
	r.request.Requester = keys
	r.record.Requester = keys.Address

	acc, err := r.saga.gateway.LoadAccount(ctx, keys.Address)
	if err != nil {
		msg := ""
		if stdErrors.Is(err, ledger.ErrAccountNotFound) {
			msg = "Stellar account " + keys.Address + " not found"
		}
		return xerrors.Wrap(CodeLedgerUnavailable, err, msg)
	}
	r.user = acc

	issuer, ok := ResolveIssuer(acc.Balances, r.request.AssetCode, r.request.Amount)
	if !ok {
		return xerrors.New(CodeInsufficientBalance, "",
			xerrors.WithMetadata("asset", r.request.AssetCode),
			xerrors.WithMetadata("amount", r.request.Amount.String()))
	}
	r.asset = AssetSpec{Code: r.request.AssetCode, Issuer: issuer}
	r.transition(ctx, StateUserLoaded)
	return nil
}

// resolveAvatar reports whether the avatar account already exists.
func (r *run) resolveAvatar(ctx context.Context) (bool, error) {
	keys, err := r.saga.wallets.Load(ctx)
	if err != nil {
		if stdErrors.Is(err, wallet.ErrNotFound) {
			return false, xerrors.Wrap(CodeWalletNotFound, err, "")
		}
		return false, xerrors.Wrap(CodeWalletCorrupt, err, "")
	}
	r.avatarKeys = keys

	acc, err := r.saga.gateway.LoadAccount(ctx, keys.Address)
	switch {
	case err == nil:
		r.avatar = acc
	case stdErrors.Is(err, ledger.ErrAccountNotFound):
		r.avatar = nil
	default:
		return false, xerrors.Wrap(CodeLedgerUnavailable, err, "")
	}
	r.transition(ctx, StateAvatarResolved)
	return r.avatar != nil, nil
}

func (r *run) activate(ctx context.Context) error {
	r.transition(ctx, StateAvatarActivating)
	r.notify(ctx, fmt.Sprintf(msgActivating, r.saga.startingBalance))

	fee, err := r.saga.gateway.FetchBaseFee(ctx)
	if err != nil {
		return xerrors.Wrap(CodeActivationFailed, err, "account activation failed: base fee unavailable")
	}
	tx := ledger.Transaction{
		Source: *r.user,
		Operations: []ledger.Operation{ledger.CreateAccount{
			Destination:     r.avatarKeys.Address,
			StartingBalance: r.saga.startingBalance,
		}},
		BaseFee: fee,
		Timeout: r.saga.txTimeout,
		Signers: []ledger.KeyPair{r.request.Requester},
	}
	if err := r.submit(ctx, CodeActivationFailed, "account activation", tx); err != nil {
		return err
	}
	r.record.Activated = true
	r.save(ctx)

	acc, err := r.saga.gateway.LoadAccount(ctx, r.avatarKeys.Address)
	if err != nil {
		return xerrors.Wrap(CodeActivationFailed, err, "avatar account missing after activation")
	}
	r.avatar = acc
	return nil
}

func (r *run) enableTrustline(ctx context.Context) error {
	r.transition(ctx, StateTrustlineEnabling)
	home := r.saga.home
	if home.trustedBy(r.avatar) {
		r.logger.Debug("trustline already present", slog.String("asset", home.Code))
		return nil
	}
	r.notify(ctx, fmt.Sprintf(msgActivated, r.saga.startingBalance, home.Code, r.rawAmount, home.Code, r.saga.minimum.String(), home.Code))

	fee, err := r.saga.gateway.FetchBaseFee(ctx)
	if err != nil {
		return xerrors.Wrap(CodeTrustlineFailed, err, "trustline could not be enabled: base fee unavailable")
	}
	tx := ledger.Transaction{
		Source:     *r.avatar,
		Operations: []ledger.Operation{ledger.ChangeTrust{Asset: home.asset()}},
		BaseFee:    fee,
		Timeout:    r.saga.txTimeout,
		Signers:    []ledger.KeyPair{r.avatarKeys},
	}
	if err := r.submit(ctx, CodeTrustlineFailed, "trustline", tx); err != nil {
		return err
	}
	r.record.TrustlineCreated = true
	r.save(ctx)

	acc, err := r.saga.gateway.LoadAccount(ctx, r.avatarKeys.Address)
	if err != nil {
		return xerrors.Wrap(CodeTrustlineFailed, err, "avatar account unavailable after trustline")
	}
	r.avatar = acc
	return nil
}

// pay submits the path payment. The avatar is the transaction source and
// the user is the operation source, so both sign.
func (r *run) pay(ctx context.Context) error {
	r.transition(ctx, StatePaying)
	home := r.saga.home

	send, ok := r.asset.sendAsset(home)
	if !ok {
		return xerrors.New(CodePaymentFailed, fmt.Sprintf("payment failed: asset %s has no issuer", r.asset.Code))
	}
	fee, err := r.saga.gateway.FetchBaseFee(ctx)
	if err != nil {
		return xerrors.Wrap(CodePaymentFailed, err, "payment failed: base fee unavailable")
	}
	amount := r.request.Amount.String()
	tx := ledger.Transaction{
		Source: *r.avatar,
		Operations: []ledger.Operation{ledger.PathPaymentStrictReceive{
			SourceAccount: r.request.Requester.Address,
			SendAsset:     send,
			SendMax:       amount,
			Destination:   r.avatarKeys.Address,
			DestAsset:     home.asset(),
			DestAmount:    amount,
		}},
		BaseFee: fee,
		Timeout: r.saga.txTimeout,
		Signers: []ledger.KeyPair{r.avatarKeys, r.request.Requester},
	}
	return r.submit(ctx, CodePaymentFailed, "payment", tx)
}

// finish reloads the avatar for the summary. The payment is already
// applied, so a failed reload only drops the summary.
func (r *run) finish(ctx context.Context) {
	acc, err := r.saga.gateway.LoadAccount(ctx, r.avatarKeys.Address)
	if err != nil {
		r.logger.Warn("reload avatar after payment failed", slog.Any("error", err))
	} else {
		r.avatar = acc
		r.summary = Summary(acc)
	}
	r.transition(ctx, StateDone)
	r.notify(ctx, MsgFundingSuccessful)
	if r.summary != "" {
		r.notify(ctx, r.summary)
	}
}

// submit hands tx to the gateway once and journals the attempt.
func (r *run) submit(ctx context.Context, code xerrors.Code, label string, tx ledger.Transaction) error {
	operation := tx.Operations[0].OperationName()
	receipt, err := r.saga.gateway.Submit(ctx, tx)

	sub := journal.Submission{
		Step:        string(r.state),
		Operation:   operation,
		Hash:        receipt.Hash,
		Ledger:      receipt.Ledger,
		SubmittedAt: r.saga.now(),
	}
	switch {
	case err == nil:
		sub.Outcome = journal.OutcomeApplied
	case stdErrors.Is(err, ledger.ErrSubmissionRejected):
		sub.Outcome = journal.OutcomeRejected
	case stdErrors.Is(err, ledger.ErrSubmissionUnknown):
		sub.Outcome = journal.OutcomeUnknown
	default:
		sub.Outcome = journal.OutcomeNotSubmitted
	}
	r.record.Submissions = append(r.record.Submissions, sub)
	metrics.ObserveSubmission(operation, string(sub.Outcome))
	r.save(ctx)

	attrs := []any{
		slog.String("operation", operation),
		slog.String("tx_hash", receipt.Hash),
		slog.String("outcome", string(sub.Outcome)),
	}
	if err == nil {
		r.logger.Info("transaction applied", append(attrs, slog.Int("ledger", int(receipt.Ledger)))...)
		return nil
	}
	r.logger.Warn("transaction failed", append(attrs, slog.Any("error", err))...)

	if sub.Outcome == journal.OutcomeUnknown {
		return xerrors.Wrap(code, err,
			fmt.Sprintf("%s outcome unknown, transaction %s needs manual reconciliation", label, receipt.Hash),
			xerrors.WithMetadata("outcome", string(journal.OutcomeUnknown)),
			xerrors.WithMetadata("tx_hash", receipt.Hash),
			xerrors.WithMetadata("step", sub.Step),
			xerrors.WithAlert(true),
			xerrors.WithSeverity(xerrors.SeverityCritical),
		)
	}
	return xerrors.Wrap(code, err, fmt.Sprintf("%s failed: %v", label, err),
		xerrors.WithMetadata("outcome", string(sub.Outcome)),
		xerrors.WithMetadata("tx_hash", receipt.Hash),
		xerrors.WithMetadata("step", sub.Step),
	)
}

func (r *run) transition(ctx context.Context, next State) {
	now := r.saga.now()
	metrics.ObserveStep(string(r.state), now.Sub(r.stateSince))
	r.logger.Debug("state changed", slog.String("from", string(r.state)), slog.String("to", string(next)))
	r.state = next
	r.stateSince = now
	r.record.State = string(next)
	r.save(ctx)
}

func (r *run) fail(ctx context.Context, err error) {
	code := xerrors.CodeOf(err)
	r.record.ErrorCode = string(code)
	r.record.LastError = err.Error()
	r.transition(ctx, StateFailed)
	metrics.ObserveRun(false, string(code))
	r.logger.Info("funding failed", slog.String("code", string(code)), slog.Any("error", err))
}

// notify never fails the saga.
func (r *run) notify(ctx context.Context, text string) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Notify(ctx, text); err != nil {
		r.logger.Warn("checkpoint notification failed", slog.Any("error", err))
	}
}

// save never fails the saga.
func (r *run) save(ctx context.Context) {
	if r.saga.recorder == nil {
		return
	}
	r.record.UpdatedAt = r.saga.now()
	if err := r.saga.recorder.Save(ctx, r.record.Clone()); err != nil {
		r.logger.Warn("journal save failed", slog.Any("error", err))
	}
}

func (r *run) outcome() *Outcome {
	return &Outcome{
		RunID:            r.record.ID,
		State:            r.state,
		Activated:        r.record.Activated,
		TrustlineCreated: r.record.TrustlineCreated,
		Submissions:      append([]journal.Submission(nil), r.record.Submissions...),
		Avatar:           r.avatar,
		Summary:          r.summary,
	}
}
