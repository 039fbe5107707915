package application_test

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"
	"github.com/vulpemventures/green-cosigner/internal/core/domain"
	"github.com/vulpemventures/green-cosigner/internal/core/ports"
)

// ports.RemoteSession
type mockRemoteSession struct {
	mock.Mock
}

func (m *mockRemoteSession) State() domain.SessionState {
	args := m.Called()
	return args.Get(0).(domain.SessionState)
}

func (m *mockRemoteSession) LoginData() *domain.LoginData {
	args := m.Called()
	var res *domain.LoginData
	if a := args.Get(0); a != nil {
		res = a.(*domain.LoginData)
	}
	return res
}

func (m *mockRemoteSession) GetTwoFactorConfig(
	ctx context.Context,
) (*domain.TwoFactorConfig, error) {
	args := m.Called(ctx)
	var res *domain.TwoFactorConfig
	if a := args.Get(0); a != nil {
		res = a.(*domain.TwoFactorConfig)
	}
	return res, args.Error(1)
}

func (m *mockRemoteSession) RequestTwoFactorCode(
	ctx context.Context, method domain.TwoFactorMethod, action string,
) error {
	args := m.Called(ctx, method, action)
	return args.Error(0)
}

func (m *mockRemoteSession) SignRawTransaction(
	ctx context.Context, txHex string, proof *domain.TwoFactorData,
) (*domain.SignedTransaction, error) {
	args := m.Called(ctx, txHex, proof)
	var res *domain.SignedTransaction
	if a := args.Get(0); a != nil {
		res = a.(*domain.SignedTransaction)
	}
	return res, args.Error(1)
}

func (m *mockRemoteSession) QueryFunding(
	ctx context.Context, subaccount *uint16,
) (*domain.FundingState, error) {
	args := m.Called(ctx, subaccount)
	var res *domain.FundingState
	if a := args.Get(0); a != nil {
		res = a.(*domain.FundingState)
	}
	return res, args.Error(1)
}

func (m *mockRemoteSession) Close() {}

// ports.TwoFactorResolver
type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) ChooseMethod(
	enabled []domain.TwoFactorMethod,
) (domain.TwoFactorMethod, error) {
	args := m.Called(enabled)
	return args.Get(0).(domain.TwoFactorMethod), args.Error(1)
}

func (m *mockResolver) Code(method domain.TwoFactorMethod) (string, error) {
	args := m.Called(method)
	return args.String(0), args.Error(1)
}

// ports.WalletEngine
type mockWalletEngine struct {
	lock       sync.Mutex
	signers    map[uint32]ports.Signer
	orderings  map[uint32]uint32
	validators []ports.AddressValidator
}

func newMockedWalletEngine() *mockWalletEngine {
	return &mockWalletEngine{
		signers:   make(map[uint32]ports.Signer),
		orderings: make(map[uint32]uint32),
	}
}

func (m *mockWalletEngine) AddSigner(
	fingerprint uint32, ordering uint32, signer ports.Signer,
) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.signers[fingerprint] = signer
	m.orderings[fingerprint] = ordering
}

func (m *mockWalletEngine) AddAddressValidator(validator ports.AddressValidator) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.validators = append(m.validators, validator)
}

func (m *mockWalletEngine) RemoveSigner(fingerprint uint32) {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.signers, fingerprint)
	delete(m.orderings, fingerprint)
}

func (m *mockWalletEngine) RemoveAddressValidator(validator ports.AddressValidator) {
	m.lock.Lock()
	defer m.lock.Unlock()
	for i, v := range m.validators {
		if v == validator {
			m.validators = append(m.validators[:i], m.validators[i+1:]...)
			return
		}
	}
}
