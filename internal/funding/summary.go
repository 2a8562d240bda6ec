package funding

import (
	"fmt"
	"strings"

	"transfer-ever/internal/ledger"
)

// Summary renders the balance lines of acc the way the avatar reports them
// in chat. It returns an empty string when there is nothing to show.
func Summary(acc *ledger.Account) string {
	if acc == nil || len(acc.Balances) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Available balance in my wallet is \n")
	for _, bal := range acc.Balances {
		switch {
		case bal.Asset.Code != "":
			fmt.Fprintf(&b, "%s:\t%s\n", strings.ToUpper(bal.Asset.Code), bal.Amount)
		case bal.Asset.IsNative():
			fmt.Fprintf(&b, "XLM:\t%s\n", bal.Amount)
		case bal.Asset.Type != "":
			fmt.Fprintf(&b, "%s:\t%s\n", strings.ToUpper(bal.Asset.Type), bal.Amount)
		}
	}
	return b.String()
}
