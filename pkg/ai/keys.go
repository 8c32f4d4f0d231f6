package ai

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/zalando/go-keyring"

	strideerrors "github.com/stride-dev/stride/pkg/errors"
)

const (
	// KeyringService is the keychain service name for stride API keys.
	KeyringService = "stride-ai"

	// CredentialsDir is the directory for the file fallback.
	CredentialsDir = ".config/stride" //nolint:gosec // Not a credential, just a directory name
	// CredentialsFile is the filename for stored API keys.
	CredentialsFile = "credentials.json" //nolint:gosec // Not a credential, just a filename
)

// KeyStore manages per-provider API key storage.
// Get returns an empty key (not an error) when no key is stored.
type KeyStore interface {
	Get(provider string) (string, error)
	Set(provider, key string) error
	Clear(provider string) error
}

// NewKeyStore creates a key store, preferring the OS keychain when available.
func NewKeyStore() KeyStore {
	// Probe the keychain with a throwaway entry. Headless systems
	// typically have no secret service and fail here.
	testService := KeyringService + "-test"
	if err := keyring.Set(testService, "test", "test"); err == nil {
		_ = keyring.Delete(testService, "test")
		return &KeychainKeyStore{service: KeyringService}
	}

	return &FileKeyStore{path: credentialsPath()}
}

// KeychainKeyStore uses macOS keychain / Linux secret service / Windows credential manager.
type KeychainKeyStore struct {
	service string
}

// Get retrieves a provider key from the keychain.
func (k *KeychainKeyStore) Get(provider string) (string, error) {
	key, err := keyring.Get(k.service, provider)
	if err != nil {
		if err == keyring.ErrNotFound {
			return "", nil
		}
		return "", strideerrors.NewConfigErrorWithCause("ai.api_key", "failed to read from keychain", err)
	}
	return key, nil
}

// Set stores a provider key in the keychain.
func (k *KeychainKeyStore) Set(provider, key string) error {
	if err := keyring.Set(k.service, provider, key); err != nil {
		return strideerrors.NewConfigErrorWithCause("ai.api_key", "failed to save to keychain", err)
	}
	return nil
}

// Clear removes a provider key from the keychain.
func (k *KeychainKeyStore) Clear(provider string) error {
	err := keyring.Delete(k.service, provider)
	if err != nil && err != keyring.ErrNotFound {
		return strideerrors.NewConfigErrorWithCause("ai.api_key", "failed to clear keychain", err)
	}
	return nil
}

// FileKeyStore stores keys in a JSON file (fallback for headless systems).
type FileKeyStore struct {
	path string
}

// Get retrieves a provider key from the file.
func (f *FileKeyStore) Get(provider string) (string, error) {
	keys, err := f.load()
	if err != nil {
		return "", err
	}
	return keys[provider], nil
}

// Set stores a provider key in the file with restrictive permissions.
func (f *FileKeyStore) Set(provider, key string) error {
	keys, err := f.load()
	if err != nil {
		return err
	}
	keys[provider] = key
	return f.save(keys)
}

// Clear removes a provider key from the file.
func (f *FileKeyStore) Clear(provider string) error {
	keys, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := keys[provider]; !ok {
		return nil
	}
	delete(keys, provider)
	return f.save(keys)
}

func (f *FileKeyStore) load() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, strideerrors.NewConfigErrorWithCause("ai.api_key", "failed to read credentials file", err)
	}

	keys := map[string]string{}
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, strideerrors.NewConfigErrorWithCause("ai.api_key", "failed to parse credentials file", err)
	}
	return keys, nil
}

func (f *FileKeyStore) save(keys map[string]string) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return strideerrors.NewConfigErrorWithCause("ai.api_key", "failed to create config directory", err)
	}

	data, err := json.Marshal(keys)
	if err != nil {
		return strideerrors.NewConfigErrorWithCause("ai.api_key", "failed to serialize credentials", err)
	}

	// Owner read/write only.
	if err := os.WriteFile(f.path, data, 0600); err != nil {
		return strideerrors.NewConfigErrorWithCause("ai.api_key", "failed to write credentials file", err)
	}

	return nil
}

func credentialsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, CredentialsDir, CredentialsFile)
}
