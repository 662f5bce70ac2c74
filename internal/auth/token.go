// Package auth persists the admin session token between CLI invocations.
// The token lives in a single 0600 JSON file in the config directory and
// expires after Lifetime or at the JWT exp claim, whichever comes first.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mesh-intelligence/shelf/pkg/types"
)

// FileName is the token file inside the config directory.
const FileName = "token.json"

// Lifetime bounds how long a saved token is used.
const Lifetime = 7 * 24 * time.Hour

// Token errors. Both match types.ErrUnauthorized.
var (
	ErrNoToken = fmt.Errorf("%w: no saved token, run shelf login", types.ErrUnauthorized)
	ErrExpired = fmt.Errorf("%w: saved token expired, run shelf login", types.ErrUnauthorized)
)

// saved is the on-disk form.
type saved struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store reads and writes the token file. It satisfies restapi.TokenSource.
type Store struct {
	path string
	now  func() time.Time
}

// NewStore returns a store for the token file in configDir.
func NewStore(configDir string) *Store {
	return &Store{path: filepath.Join(configDir, FileName), now: time.Now}
}

// Path returns the token file location.
func (s *Store) Path() string { return s.path }

// Save writes token and returns when it expires.
func (s *Store) Save(token string) (time.Time, error) {
	if token == "" {
		return time.Time{}, ErrNoToken
	}
	expires := s.now().Add(Lifetime)
	if exp, ok := jwtExpiry(token); ok && exp.Before(expires) {
		expires = exp
	}
	data, err := json.Marshal(saved{Token: token, ExpiresAt: expires.UTC()})
	if err != nil {
		return time.Time{}, fmt.Errorf("encoding token: %w", err)
	}
	if err := writeFileAtomic(s.path, data, 0o600); err != nil {
		return time.Time{}, err
	}
	return expires, nil
}

// Token returns the saved token. It returns ErrNoToken when none is saved
// and ErrExpired once it has expired.
func (s *Store) Token() (string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("reading token: %w", err)
	}
	var v saved
	if err := json.Unmarshal(data, &v); err != nil || v.Token == "" {
		return "", ErrNoToken
	}
	if !s.now().Before(v.ExpiresAt) {
		return "", ErrExpired
	}
	return v.Token, nil
}

// Clear removes the saved token. Clearing an absent token is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing token: %w", err)
	}
	return nil
}

// jwtExpiry reads the exp claim without verifying the signature.
func jwtExpiry(token string) (time.Time, bool) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// writeFileAtomic writes data to a temp file in the same directory, syncs it
// and renames it over path.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".token-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	name := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(name)
	}
	if err := tmp.Chmod(perm); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
