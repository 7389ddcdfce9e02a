package tokens

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

// Entry is an album token saved under a short alias
type Entry struct {
	Alias        string    `json:"alias"`
	Token        string    `json:"token"`
	Note         string    `json:"note,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// TokenStore is the interface for storing and retrieving album tokens
type TokenStore interface {
	// Store saves an entry under its alias
	Store(entry *Entry) error

	// Retrieve gets the entry for alias
	Retrieve(alias string) (*Entry, error)

	// List returns all stored entries
	List() ([]*Entry, error)

	// Delete removes the entry for alias
	Delete(alias string) error

	// Exists checks if an entry exists for alias
	Exists(alias string) bool
}

// Manager handles token storage with fallback mechanisms
type Manager struct {
	stores []TokenStore
}

// NewManager creates a token manager backed by the system keyring when
// available, an encrypted file in the config directory, and the environment
func NewManager() (*Manager, error) {
	var stores []TokenStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := ConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "tokens.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a Manager over the given stores, tried in order
func NewManagerWithStores(stores ...TokenStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves entry using the first store that accepts it
func (m *Manager) Store(entry *Entry) error {
	if err := ValidateAlias(entry.Alias); err != nil {
		return err
	}
	token, err := ParseReference(entry.Token)
	if err != nil {
		return err
	}
	entry.Token = token
	entry.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(entry)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store token: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Retrieve gets the entry for alias from the first store that has it
func (m *Manager) Retrieve(alias string) (*Entry, error) {
	for _, store := range m.stores {
		if entry, err := store.Retrieve(alias); err == nil && entry != nil {
			return entry, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrTokenNotFound, alias)
}

// List returns entries from all stores, keeping the most recent per alias
func (m *Manager) List() ([]*Entry, error) {
	byAlias := make(map[string]*Entry)

	for _, store := range m.stores {
		entries, err := store.List()
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if existing, ok := byAlias[entry.Alias]; !ok || entry.LastModified.After(existing.LastModified) {
				byAlias[entry.Alias] = entry
			}
		}
	}

	result := make([]*Entry, 0, len(byAlias))
	for _, entry := range byAlias {
		result = append(result, entry)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Alias < result[j].Alias })
	return result, nil
}

// Delete removes alias from every store
func (m *Manager) Delete(alias string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(alias); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if deleted {
		return nil
	}
	if lastErr != nil && !errors.Is(lastErr, ErrTokenNotFound) && !errors.Is(lastErr, ErrStoreUnavailable) {
		return fmt.Errorf("failed to delete token: %w", lastErr)
	}
	return fmt.Errorf("%w: %s", ErrTokenNotFound, alias)
}

// Resolve turns a user supplied album reference into a bare token. "@name"
// looks the alias up in the stores; anything else goes through ParseReference.
func (m *Manager) Resolve(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if alias, ok := strings.CutPrefix(ref, "@"); ok {
		entry, err := m.Retrieve(alias)
		if err != nil {
			return "", err
		}
		return entry.Token, nil
	}
	return ParseReference(ref)
}

// ValidateAlias checks that alias is usable as a store key
func ValidateAlias(alias string) error {
	if alias == "" {
		return fmt.Errorf("%w: alias is required", ErrInvalidEntry)
	}
	for _, r := range alias {
		if !(r == '-' || r == '_' || r == '.' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return fmt.Errorf("%w: alias %q may only contain letters, digits, '-', '_' and '.'", ErrInvalidEntry, alias)
		}
	}
	return nil
}

// ConfigDir returns the per-user configuration directory, creating it if needed
func ConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "icloudalbum")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "icloudalbum")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "icloudalbum")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "icloudalbum")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// MaskToken hides all but the first and last 3 characters of a token
func MaskToken(token string) string {
	if len(token) <= 6 {
		return "******"
	}
	return token[:3] + "..." + token[len(token)-3:]
}

// Sanitize returns a copy of entry with the token masked
func Sanitize(entry *Entry) *Entry {
	if entry == nil {
		return nil
	}
	masked := *entry
	masked.Token = MaskToken(entry.Token)
	return &masked
}

var (
	ErrTokenNotFound    = errors.New("token not found")
	ErrInvalidEntry     = errors.New("invalid token entry")
	ErrStoreUnavailable = errors.New("token store unavailable")
)
