package wallet_engine_test

import (
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/stretchr/testify/mock"
)

type mockSigner struct {
	mock.Mock
}

func (m *mockSigner) Fingerprint() uint32 {
	args := m.Called()
	return args.Get(0).(uint32)
}

func (m *mockSigner) Ordering() uint32 {
	args := m.Called()
	return args.Get(0).(uint32)
}

func (m *mockSigner) SignInput(packet *psbt.Packet, index int) error {
	args := m.Called(packet, index)
	return args.Error(0)
}

type mockValidator struct {
	mock.Mock
}

func (m *mockValidator) Validate(
	derivations []*psbt.Bip32Derivation, script []byte,
) error {
	args := m.Called(derivations, script)
	return args.Error(0)
}
