// Package auth provides token lifecycle management for the Hostfleet API.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// User identifies the account a token was issued to.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// TokenData is the per-profile token record. ExpiresAt is epoch milliseconds
// reflecting the server-declared lifetime at the most recent issuance or
// refresh. Both tokens are opaque; validity beyond the expiry timestamp is
// decided only by the server.
type TokenData struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAt    int64  `json:"expiresAt"`
	User         User   `json:"user"`
}

// Store persists one token record per profile key. Records never cross
// profile boundaries.
//
// Load returns (nil, nil) when no usable record exists: a corrupted or
// unreadable record is treated as absent, not as an error.
type Store interface {
	Load(profileKey string) (*TokenData, error)
	Save(profileKey string, data *TokenData) error
	// Delete reports whether a record existed and was removed.
	Delete(profileKey string) (bool, error)
}

// NewStore selects a token store backend. The file store is the default;
// the keyring backend is opted into via config and suppressed entirely by
// HOSTFLEET_NO_KEYRING.
func NewStore(dir, backend string, noKeyring bool) Store {
	if backend == "keyring" && !noKeyring {
		return NewKeyringStore()
	}
	return NewFileStore(dir)
}

// FileStore keeps one plaintext JSON record per profile key under dir.
// Writes are guarded by a cross-process file lock so two concurrent
// invocations refreshing the same profile do not interleave partial writes;
// the last complete writer still wins.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed token store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// lockTimeout bounds how long a store operation waits for the cross-process
// lock. On timeout the operation proceeds unlocked rather than hanging the
// CLI behind a crashed holder.
const lockTimeout = 100 * time.Millisecond

func (s *FileStore) path(profileKey string) string {
	return filepath.Join(s.dir, sanitizeKey(profileKey)+".json")
}

// sanitizeKey keeps profile keys from escaping the tokens directory.
func sanitizeKey(key string) string {
	return strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(key)
}

func (s *FileStore) acquireLock() func() {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return func() {}
	}

	fl := flock.New(filepath.Join(s.dir, ".lock"))
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil || !locked {
		return func() {}
	}
	return func() { _ = fl.Unlock() }
}

// Load reads the record for profileKey. Missing or corrupt records are
// reported as absent.
func (s *FileStore) Load(profileKey string) (*TokenData, error) {
	data, err := os.ReadFile(s.path(profileKey))
	if err != nil {
		return nil, nil
	}

	var record TokenData
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, nil
	}
	if record.AccessToken == "" {
		return nil, nil
	}
	return &record, nil
}

// Save writes the record for profileKey, creating the tokens directory if
// needed.
func (s *FileStore) Save(profileKey string, data *TokenData) error {
	release := s.acquireLock()
	defer release()

	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("create tokens dir: %w", err)
	}

	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "token-*.json.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	// Unix: rename atomically replaces the destination.
	// Windows: rename fails when destination exists; remove and retry.
	destPath := s.path(profileKey)
	if err := os.Rename(tmpPath, destPath); err != nil {
		if runtime.GOOS == "windows" {
			_ = os.Remove(destPath)
			return os.Rename(tmpPath, destPath)
		}
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Delete removes the record for profileKey, reporting whether one existed.
func (s *FileStore) Delete(profileKey string) (bool, error) {
	release := s.acquireLock()
	defer release()

	path := s.path(profileKey)
	if _, err := os.Stat(path); err != nil {
		return false, nil
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
