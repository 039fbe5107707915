package mnemonic_store

import (
	"strings"

	"github.com/vulpemventures/green-cosigner/internal/config"
)

// MnemonicInMemoryStore keeps the mnemonic of the local wallet in the process
// config only, so that it's never written to the datadir.
type MnemonicInMemoryStore struct{}

func NewInMemoryMnemonicStore() *MnemonicInMemoryStore {
	return &MnemonicInMemoryStore{}
}

func (s *MnemonicInMemoryStore) Set(mnemonic, passphrase string) {
	config.Set(config.MnemonicKey, mnemonic)
	config.Set(config.PassphraseKey, passphrase)
}

func (s *MnemonicInMemoryStore) Unset() {
	config.Unset(config.MnemonicKey)
	config.Unset(config.PassphraseKey)
}

func (s *MnemonicInMemoryStore) IsSet() bool {
	return len(strings.TrimSpace(config.GetString(config.MnemonicKey))) > 0
}

func (s *MnemonicInMemoryStore) Get() []string {
	return strings.Fields(config.GetString(config.MnemonicKey))
}

func (s *MnemonicInMemoryStore) Passphrase() string {
	return config.GetString(config.PassphraseKey)
}
