// Package wallet resolves the avatar's signing identity from the local
// nucleus file.
package wallet

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"transfer-ever/internal/ledger"
)

var (
	// ErrNotFound is returned when the nucleus file is missing or carries no
	// stellar section.
	ErrNotFound = stdErrors.New("avatar wallet not found")
	// ErrCorrupt is returned for unreadable content or inconsistent keys.
	ErrCorrupt = stdErrors.New("avatar wallet corrupt")
)

// Loader returns the avatar key pair.
type Loader interface {
	Load(ctx context.Context) (ledger.KeyPair, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) (ledger.KeyPair, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context) (ledger.KeyPair, error) {
	return f(ctx)
}

var lineComment = regexp.MustCompile(`\s*#[^\n]*`)

type nucleus struct {
	Stellar *struct {
		PublicKey string `json:"publicKey"`
		SecretKey string `json:"secretKey"`
	} `json:"stellar"`
}

// FileLoader reads the nucleus file on every call. The file is never cached
// so that a rotated wallet is picked up by the next run.
type FileLoader struct {
	path string
}

// NewFileLoader returns a loader for path. An empty path uses DefaultPath.
func NewFileLoader(path string) *FileLoader {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath()
	}
	return &FileLoader{path: path}
}

// DefaultPath returns $HOME/.ssb/nucleus.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".ssb", "nucleus")
}

// Path returns the file the loader reads.
func (l *FileLoader) Path() string {
	return l.path
}

// Load parses the nucleus file and checks that the secret derives the
// stated public key.
func (l *FileLoader) Load(ctx context.Context) (ledger.KeyPair, error) {
	if err := ctx.Err(); err != nil {
		return ledger.KeyPair{}, err
	}
	raw, err := os.ReadFile(l.path)
	if err != nil {
		if stdErrors.Is(err, fs.ErrNotExist) {
			return ledger.KeyPair{}, fmt.Errorf("%w: %s", ErrNotFound, l.path)
		}
		return ledger.KeyPair{}, fmt.Errorf("%w: read %s: %v", ErrCorrupt, l.path, err)
	}
	return Parse(raw)
}

// Parse decodes nucleus content. Lines may carry # comments.
func Parse(raw []byte) (ledger.KeyPair, error) {
	cleaned := lineComment.ReplaceAll(raw, nil)

	var doc nucleus
	if err := json.Unmarshal(cleaned, &doc); err != nil {
		return ledger.KeyPair{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if doc.Stellar == nil || doc.Stellar.PublicKey == "" || doc.Stellar.SecretKey == "" {
		return ledger.KeyPair{}, fmt.Errorf("%w: no stellar keys", ErrNotFound)
	}

	kp, err := ledger.ParseSecret(doc.Stellar.SecretKey)
	if err != nil {
		return ledger.KeyPair{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if kp.Address != strings.TrimSpace(doc.Stellar.PublicKey) {
		return ledger.KeyPair{}, fmt.Errorf("%w: secret does not match public key %s", ErrCorrupt, doc.Stellar.PublicKey)
	}
	return kp, nil
}
