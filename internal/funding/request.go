package funding

import (
	stdErrors "errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	xerrors "transfer-ever/internal/errors"
	"transfer-ever/internal/ledger"
)

// CommandPrefix is the chat command handled by this service.
const CommandPrefix = "/activate_stellar_account"

// NativeCode is the asset code used for the network's native currency.
const NativeCode = "native"

// ParameterErrorText is replied when the command has the wrong shape.
const ParameterErrorText = "Error: Please check the parameters. ( /activate_stellar_account <SECRET_KEY> <AMT> <ASSET> )"

// maxDecimals is the ledger's amount precision.
const maxDecimals = 7

var (
	// ErrNotCommand means the text is not addressed to this service.
	ErrNotCommand = stdErrors.New("not an activate_stellar_account command")
	// ErrBadParameters means the command does not have exactly three arguments.
	ErrBadParameters = stdErrors.New("command needs secret, amount and asset")
)

// Request holds the raw command arguments. Secret must never be logged;
// LogValue redacts it.
type Request struct {
	CommandID string
	Secret    string
	Amount    string
	Asset     string
}

// LogValue implements slog.LogValuer.
func (r Request) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("command_id", r.CommandID),
		slog.String("amount", r.Amount),
		slog.String("asset", r.Asset),
	)
}

// IsCommand reports whether text starts with the command prefix.
func IsCommand(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), CommandPrefix)
}

// ParseCommand splits "/activate_stellar_account <SECRET> <AMOUNT> <ASSET>".
// Tokens are separated by single spaces.
func ParseCommand(text string) (Request, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, CommandPrefix) {
		return Request{}, ErrNotCommand
	}
	parts := strings.Split(text, " ")
	if len(parts) != 4 || parts[0] != CommandPrefix {
		return Request{}, ErrBadParameters
	}
	for _, p := range parts[1:] {
		if p == "" {
			return Request{}, ErrBadParameters
		}
	}
	return Request{Secret: parts[1], Amount: parts[2], Asset: parts[3]}, nil
}

// TransferRequest is a validated request.
type TransferRequest struct {
	Requester ledger.KeyPair
	Amount    decimal.Decimal
	// AssetCode is NativeCode or an upper-cased credit asset code.
	AssetCode string
}

// NormalizeAsset maps "xlm" and "native" to NativeCode and upper-cases
// everything else.
func NormalizeAsset(code string) string {
	code = strings.TrimSpace(code)
	if strings.EqualFold(code, "xlm") || strings.EqualFold(code, NativeCode) {
		return NativeCode
	}
	return strings.ToUpper(code)
}

// ParseAmount validates a textual amount against the ledger precision and
// the minimum funding threshold.
func ParseAmount(raw string, minimum decimal.Decimal) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, xerrors.Wrap(CodeInvalidAmount, err, fmt.Sprintf("amount %q is not a number", raw))
	}
	if !amount.IsPositive() {
		return decimal.Decimal{}, xerrors.New(CodeInvalidAmount, "amount must be positive")
	}
	if !amount.Truncate(maxDecimals).Equal(amount) {
		return decimal.Decimal{}, xerrors.New(CodeInvalidAmount, fmt.Sprintf("amount supports at most %d decimal places", maxDecimals))
	}
	if amount.LessThan(minimum) {
		return decimal.Decimal{}, xerrors.New(CodeInvalidAmount, "Minimum balance should be "+minimum.String())
	}
	return amount, nil
}
