package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const serviceName = "hostfleet"

// KeyringStore keeps token records in the OS keychain, one secret per
// profile key. It satisfies the same absent-on-corruption contract as the
// file store.
type KeyringStore struct{}

// NewKeyringStore creates a keychain-backed token store.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

func keyringKey(profileKey string) string {
	return fmt.Sprintf("hostfleet::%s", profileKey)
}

func (s *KeyringStore) Load(profileKey string) (*TokenData, error) {
	payload, err := keyring.Get(serviceName, keyringKey(profileKey))
	if err != nil {
		return nil, nil
	}

	var record TokenData
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		return nil, nil
	}
	if record.AccessToken == "" {
		return nil, nil
	}
	return &record, nil
}

func (s *KeyringStore) Save(profileKey string, data *TokenData) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return keyring.Set(serviceName, keyringKey(profileKey), string(payload))
}

func (s *KeyringStore) Delete(profileKey string) (bool, error) {
	err := keyring.Delete(serviceName, keyringKey(profileKey))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
