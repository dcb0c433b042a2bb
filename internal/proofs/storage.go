package proofs

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"golang.org/x/crypto/blake2b"
)

// MaxProofSize bounds uploaded payment proofs.
const MaxProofSize = 10 << 20

var (
	// ErrNotFound indicates no stored proof for the reference.
	ErrNotFound = errors.New("proofs: not found")
	// ErrEmpty indicates an empty upload.
	ErrEmpty = errors.New("proofs: empty payload")
	// ErrTooLarge indicates the upload exceeds MaxProofSize.
	ErrTooLarge = errors.New("proofs: payload too large")
)

var refPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Store is a content-addressed filesystem store for payment proofs. The
// reference is the blake2b-256 digest of the content, so re-uploading the
// same receipt is idempotent.
type Store struct {
	dir string
}

// NewStore prepares the storage directory.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("proofs: storage directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("proofs: create dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save writes the proof and returns its reference.
func (s *Store) Save(_ context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if len(data) > MaxProofSize {
		return "", ErrTooLarge
	}
	sum := blake2b.Sum256(data)
	ref := hex.EncodeToString(sum[:])
	path := filepath.Join(s.dir, ref)
	if _, err := os.Stat(path); err == nil {
		return ref, nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("proofs: write: %w", err)
	}
	return ref, nil
}

// Load returns the stored proof bytes for a reference.
func (s *Store) Load(_ context.Context, ref string) ([]byte, error) {
	if !refPattern.MatchString(ref) {
		return nil, ErrNotFound
	}
	data, err := os.ReadFile(filepath.Join(s.dir, ref))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("proofs: read: %w", err)
	}
	return data, nil
}

// Exists reports whether a proof is stored under the reference.
func (s *Store) Exists(_ context.Context, ref string) bool {
	if !refPattern.MatchString(ref) {
		return false
	}
	_, err := os.Stat(filepath.Join(s.dir, ref))
	return err == nil
}
