package wallet

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stellar/go/keypair"
	"github.com/stretchr/testify/require"
)

func writeNucleus(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nucleus")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFileLoaderReadsCommentedNucleus(t *testing.T) {
	kp := keypair.MustRandom()
	path := writeNucleus(t, fmt.Sprintf(`# generated by the avatar setup
# do not share this file
{
  "id": "@avatar.ed25519", # ssb id
  "stellar": {
    "publicKey": %q,
    "secretKey": %q
  }
}
`, kp.Address(), kp.Seed()))

	got, err := NewFileLoader(path).Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, kp.Address(), got.Address)
	require.Equal(t, kp.Seed(), got.Seed)
	require.Equal(t, kp.Address(), got.String())
}

func TestFileLoaderErrors(t *testing.T) {
	ctx := context.Background()
	kp := keypair.MustRandom()
	other := keypair.MustRandom()

	cases := []struct {
		name    string
		content string
		want    error
	}{
		{name: "no stellar section", content: `{"id":"x"}`, want: ErrNotFound},
		{name: "missing secret", content: fmt.Sprintf(`{"stellar":{"publicKey":%q}}`, kp.Address()), want: ErrNotFound},
		{name: "broken json", content: `{"stellar": `, want: ErrCorrupt},
		{name: "invalid secret", content: fmt.Sprintf(`{"stellar":{"publicKey":%q,"secretKey":"SNOPE"}}`, kp.Address()), want: ErrCorrupt},
		{name: "mismatched keys", content: fmt.Sprintf(`{"stellar":{"publicKey":%q,"secretKey":%q}}`, other.Address(), kp.Seed()), want: ErrCorrupt},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewFileLoader(writeNucleus(t, tc.content)).Load(ctx)
			require.ErrorIs(t, err, tc.want)
		})
	}

	_, err := NewFileLoader(filepath.Join(t.TempDir(), "absent")).Load(ctx)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("HOME", "/home/avatar")
	require.Equal(t, "/home/avatar/.ssb/nucleus", NewFileLoader("").Path())
}
