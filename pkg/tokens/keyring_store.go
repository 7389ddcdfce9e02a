package tokens

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "icloudalbum"
	keyringPrefix  = "album_"
)

// KeyringStore implements TokenStore using the system keychain
type KeyringStore struct{}

// NewKeyringStore creates a keyring-backed store after checking the keyring works
func NewKeyringStore() (*KeyringStore, error) {
	testKey := "test_availability"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, testKey)

	return &KeyringStore{}, nil
}

// Store saves entry to the system keychain
func (k *KeyringStore) Store(entry *Entry) error {
	if entry == nil || entry.Alias == "" {
		return ErrInvalidEntry
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	if err := keyring.Set(keyringService, keyringPrefix+entry.Alias, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	return nil
}

// Retrieve gets the entry for alias from the system keychain
func (k *KeyringStore) Retrieve(alias string) (*Entry, error) {
	if alias == "" {
		return nil, ErrInvalidEntry
	}

	data, err := keyring.Get(keyringService, keyringPrefix+alias)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
	}
	return &entry, nil
}

// List always returns nothing: go-keyring cannot enumerate keys portably,
// so aliases kept only in the keyring are reachable by name alone.
func (k *KeyringStore) List() ([]*Entry, error) {
	return []*Entry{}, nil
}

// Delete removes alias from the system keychain
func (k *KeyringStore) Delete(alias string) error {
	if alias == "" {
		return ErrInvalidEntry
	}

	if err := keyring.Delete(keyringService, keyringPrefix+alias); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrTokenNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}

// Exists checks if alias is in the system keychain
func (k *KeyringStore) Exists(alias string) bool {
	if alias == "" {
		return false
	}
	_, err := keyring.Get(keyringService, keyringPrefix+alias)
	return err == nil
}
