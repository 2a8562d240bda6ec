package funding

import (
	"strings"

	"github.com/shopspring/decimal"

	"transfer-ever/internal/ledger"
)

// ResolveIssuer looks for a balance line of code holding at least amount.
// code NativeCode matches the native line, anything else matches credit
// lines by case-insensitive code. On a match it returns the line's issuer,
// which is empty for lines without one, and ok is true. Lines whose amount
// does not parse never match.
func ResolveIssuer(balances []ledger.Balance, code string, amount decimal.Decimal) (issuer string, ok bool) {
	native := strings.EqualFold(code, NativeCode)
	for _, b := range balances {
		if native {
			if !b.Asset.IsNative() {
				continue
			}
		} else if b.Asset.Code == "" || !strings.EqualFold(b.Asset.Code, code) {
			continue
		}
		held, err := decimal.NewFromString(b.Amount)
		if err != nil || held.LessThan(amount) {
			continue
		}
		return b.Asset.Issuer, true
	}
	return "", false
}

// HomeAsset is the asset the avatar is funded in.
type HomeAsset struct {
	Code   string
	Issuer string
}

const (
	DefaultHomeCode   = "EVER"
	DefaultHomeIssuer = "GBHXZED3Z6FVCFLUISGP47KYA6FSEWINDJVUJHEUW2Z6OX3ON243335S"
)

// DefaultHomeAsset returns EVER with its well known issuer.
func DefaultHomeAsset() HomeAsset {
	return HomeAsset{Code: DefaultHomeCode, Issuer: DefaultHomeIssuer}
}

func (h HomeAsset) asset() ledger.Asset {
	return ledger.CreditAsset(h.Code, h.Issuer)
}

// trustedBy reports whether acc holds a trustline matching both code and issuer.
func (h HomeAsset) trustedBy(acc *ledger.Account) bool {
	if acc == nil {
		return false
	}
	for _, b := range acc.Balances {
		if b.Asset.Code == h.Code && b.Asset.Issuer == h.Issuer {
			return true
		}
	}
	return false
}

// AssetSpec is the asset the user pays with.
type AssetSpec struct {
	Code   string
	Issuer string
}

// IsNative reports whether s names the native asset.
func (s AssetSpec) IsNative() bool {
	return strings.EqualFold(s.Code, NativeCode)
}

// sendAsset resolves s to a ledger asset. The native asset never
// takes an issuer. A credit asset without issuer only falls back to the
// home issuer when it is the home asset itself.
func (s AssetSpec) sendAsset(home HomeAsset) (ledger.Asset, bool) {
	if s.IsNative() {
		return ledger.NativeAsset(), true
	}
	issuer := s.Issuer
	if issuer == "" && strings.EqualFold(s.Code, home.Code) {
		issuer = home.Issuer
	}
	if issuer == "" {
		return ledger.Asset{}, false
	}
	return ledger.CreditAsset(strings.ToUpper(s.Code), issuer), true
}
