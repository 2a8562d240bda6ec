package funding

import (
	xerrors "transfer-ever/internal/errors"
)

const (
	CodeInvalidAmount       xerrors.Code = "INVALID_AMOUNT"
	CodeInvalidCredentials  xerrors.Code = "INVALID_CREDENTIALS"
	CodeInsufficientBalance xerrors.Code = "INSUFFICIENT_BALANCE"
	CodeWalletNotFound      xerrors.Code = "WALLET_NOT_FOUND"
	CodeWalletCorrupt       xerrors.Code = "WALLET_CORRUPT"
	CodeLedgerUnavailable   xerrors.Code = "LEDGER_UNAVAILABLE"
	CodeActivationFailed    xerrors.Code = "ACTIVATION_FAILED"
	CodeTrustlineFailed     xerrors.Code = "TRUSTLINE_FAILED"
	CodePaymentFailed       xerrors.Code = "PAYMENT_FAILED"
)

func init() {
	xerrors.Register(CodeInvalidAmount, xerrors.Attributes{Message: "invalid amount", Severity: xerrors.SeverityInfo})
	xerrors.Register(CodeInvalidCredentials, xerrors.Attributes{Message: "failed getting user keys", Severity: xerrors.SeverityInfo})
	xerrors.Register(CodeInsufficientBalance, xerrors.Attributes{Message: "Account doesn't have enough balance", Severity: xerrors.SeverityInfo})
	xerrors.Register(CodeWalletNotFound, xerrors.Attributes{Message: "Stellar Account not found.", Severity: xerrors.SeverityCritical, Alert: true})
	xerrors.Register(CodeWalletCorrupt, xerrors.Attributes{Message: "avatar wallet is unreadable", Severity: xerrors.SeverityCritical, Alert: true})
	xerrors.Register(CodeLedgerUnavailable, xerrors.Attributes{Message: "stellar network unavailable", Severity: xerrors.SeverityWarning})
	xerrors.Register(CodeActivationFailed, xerrors.Attributes{Message: "account activation failed", Severity: xerrors.SeverityWarning})
	xerrors.Register(CodeTrustlineFailed, xerrors.Attributes{Message: "trustline could not be enabled", Severity: xerrors.SeverityWarning})
	xerrors.Register(CodePaymentFailed, xerrors.Attributes{Message: "payment failed", Severity: xerrors.SeverityWarning})
}

// ReplyText renders err as the line sent back to the requester. Errors
// without a code get a generic text so that internal details stay in the logs.
func ReplyText(err error) string {
	if err == nil {
		return ""
	}
	e, ok := xerrors.From(err)
	if !ok {
		return "Error: " + xerrors.AttributesOf(xerrors.CodeUnknown).Message
	}
	return "Error: " + e.Message()
}
