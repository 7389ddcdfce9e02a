package tokens

import (
	"os"
	"strings"
	"time"
)

const (
	// EnvToken holds the token used for the "default" alias
	EnvToken = "ICLOUDALBUM_TOKEN"
	// EnvTokenPrefix followed by an upper-cased alias holds that alias's token
	EnvTokenPrefix = "ICLOUDALBUM_TOKEN_"

	defaultAlias = "default"
)

// EnvironmentStore implements TokenStore over environment variables. It is
// read-only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based token store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(entry *Entry) error {
	return ErrStoreUnavailable
}

// Retrieve reads ICLOUDALBUM_TOKEN_<ALIAS>, or ICLOUDALBUM_TOKEN for "default"
func (e *EnvironmentStore) Retrieve(alias string) (*Entry, error) {
	if alias == "" {
		alias = defaultAlias
	}

	token := os.Getenv(envKey(alias))
	if token == "" && alias == defaultAlias {
		token = os.Getenv(EnvToken)
	}
	if token == "" {
		return nil, ErrTokenNotFound
	}

	return &Entry{
		Alias:        alias,
		Token:        token,
		Note:         "from environment",
		LastModified: time.Now(),
	}, nil
}

// List returns every alias defined in the environment
func (e *EnvironmentStore) List() ([]*Entry, error) {
	var entries []*Entry
	seenDefault := false

	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || value == "" {
			continue
		}
		alias, found := strings.CutPrefix(key, EnvTokenPrefix)
		if !found || alias == "" {
			continue
		}
		alias = strings.ToLower(alias)
		if alias == defaultAlias {
			seenDefault = true
		}
		entries = append(entries, &Entry{Alias: alias, Token: value, Note: "from environment", LastModified: time.Now()})
	}

	if !seenDefault {
		if token := os.Getenv(EnvToken); token != "" {
			entries = append(entries, &Entry{Alias: defaultAlias, Token: token, Note: "from environment", LastModified: time.Now()})
		}
	}
	return entries, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(alias string) error {
	return ErrStoreUnavailable
}

// Exists checks if alias is defined in the environment
func (e *EnvironmentStore) Exists(alias string) bool {
	_, err := e.Retrieve(alias)
	return err == nil
}

func envKey(alias string) string {
	return EnvTokenPrefix + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(alias))
}
