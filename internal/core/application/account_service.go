package application

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	log "github.com/sirupsen/logrus"
	"github.com/vulpemventures/green-cosigner/internal/core/domain"
	"github.com/vulpemventures/green-cosigner/internal/core/ports"
	path "github.com/vulpemventures/green-cosigner/pkg/wallet/derivation-path"
	multisig "github.com/vulpemventures/green-cosigner/pkg/wallet/multi-sig"
)

// AccountService is responsible for operations related to co-signed
// accounts:
//   - Build the descriptor of an account.
//   - Set up an account, ie. persist it and register its cosigner and
//     funding gate on the wallet engine.
//   - Get/list/delete stored accounts and derive their addresses.
//   - List the subaccounts known by the service.
//
// Cosigner and funding gate of an account are registered on, and removed
// from, the wallet engine together with the storage of the account.
//
// The service registers 2 handlers related to the following account events:
//   - domain.AccountAdded - logs the newly stored account.
//   - domain.AccountDeleted - logs the removed account.
type AccountService struct {
	repoManager ports.RepoManager
	session     ports.RemoteSession
	coordinator *TwoFactorCoordinator
	engine      ports.WalletEngine
	registry    *multisig.ServiceKeyRegistry
	network     *chaincfg.Params
	masterKey   *hdkeychain.ExtendedKey
	fundingOpts FundingGateOpts

	lock         *sync.RWMutex
	cosigners    map[uint16]*Cosigner
	fundingGates map[uint16]*FundingGate

	log  func(format string, a ...interface{})
	warn func(err error, format string, a ...interface{})
}

type AccountServiceArgs struct {
	RepoManager ports.RepoManager
	Session     ports.RemoteSession
	Resolver    ports.TwoFactorResolver
	Engine      ports.WalletEngine
	Registry    *multisig.ServiceKeyRegistry
	Network     *chaincfg.Params
	MasterKey   *hdkeychain.ExtendedKey
	FundingOpts FundingGateOpts
}

func (a AccountServiceArgs) validate() error {
	if a.RepoManager == nil {
		return ErrMissingRepoManager
	}
	if a.Session == nil {
		return ErrMissingSession
	}
	if a.Resolver == nil {
		return ErrMissingResolver
	}
	if a.Engine == nil {
		return ErrMissingEngine
	}
	if a.Registry == nil {
		return ErrMissingRegistry
	}
	if a.Network == nil {
		return ErrMissingNetwork
	}
	if a.MasterKey == nil {
		return ErrMissingMasterKey
	}
	if !a.MasterKey.IsPrivate() {
		return multisig.ErrInvalidLocalKey
	}
	return nil
}

func NewAccountService(args AccountServiceArgs) (*AccountService, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}

	coordinator, err := NewTwoFactorCoordinator(args.Session, args.Resolver)
	if err != nil {
		return nil, err
	}

	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("account service: %s", format)
		log.Debugf(format, a...)
	}
	warnFn := func(err error, format string, a ...interface{}) {
		format = fmt.Sprintf("account service: %s", format)
		log.WithError(err).Warnf(format, a...)
	}

	svc := &AccountService{
		repoManager:  args.RepoManager,
		session:      args.Session,
		coordinator:  coordinator,
		engine:       args.Engine,
		registry:     args.Registry,
		network:      args.Network,
		masterKey:    args.MasterKey,
		fundingOpts:  args.FundingOpts,
		lock:         &sync.RWMutex{},
		cosigners:    make(map[uint16]*Cosigner),
		fundingGates: make(map[uint16]*FundingGate),
		log:          logFn,
		warn:         warnFn,
	}
	svc.registerHandlerForAccountEvents()
	return svc, nil
}

// Descriptor returns the descriptor of the account with the given pointer,
// without storing anything.
func (as *AccountService) Descriptor(pointer uint16) (*multisig.Descriptor, error) {
	loginData, err := as.loginData()
	if err != nil {
		return nil, err
	}
	return multisig.BuildSubaccountDescriptor(
		multisig.BuildSubaccountDescriptorArgs{
			Registry:   as.registry,
			Network:    as.network,
			MasterKey:  as.masterKey,
			GaitPath:   loginData.GaitPath,
			Subaccount: domain.SubaccountPointer(pointer),
		},
	)
}

// SetupAccount stores the account with the given pointer and registers its
// cosigner and funding gate on the wallet engine.
func (as *AccountService) SetupAccount(
	ctx context.Context, pointer uint16,
) (*domain.Account, error) {
	loginData, err := as.loginData()
	if err != nil {
		return nil, err
	}

	name := ""
	if pointer != domain.PrimaryAccount {
		info, ok := loginData.Subaccount(pointer)
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnknownSubaccount, pointer)
		}
		name = info.Name
	}

	descriptor, err := as.Descriptor(pointer)
	if err != nil {
		return nil, err
	}

	account, err := domain.NewAccount(domain.NewAccountArgs{
		Pointer:            pointer,
		Name:               name,
		ServiceXpub:        descriptor.ServiceKey,
		ServiceFingerprint: descriptor.ServiceFingerprint.String(),
		ServicePath:        descriptor.ServicePath.String(),
		LocalPath:          descriptor.LocalPath.String(),
	})
	if err != nil {
		return nil, err
	}

	cosigner, fundingGate, err := as.newAccountSigners(*account, loginData)
	if err != nil {
		return nil, err
	}

	as.lock.Lock()
	defer as.lock.Unlock()

	if err := as.repoManager.AccountRepository().AddAccount(
		ctx, account,
	); err != nil {
		return nil, err
	}
	as.registerAccount(account.Pointer, cosigner, fundingGate)
	return account, nil
}

// RestoreAccounts registers cosigner and funding gate of every stored
// account. It's meant to be called once at startup.
func (as *AccountService) RestoreAccounts(ctx context.Context) error {
	loginData, err := as.loginData()
	if err != nil {
		return err
	}
	accounts, err := as.repoManager.AccountRepository().ListAccounts(ctx)
	if err != nil {
		return err
	}

	cosigners := make([]*Cosigner, 0, len(accounts))
	fundingGates := make([]*FundingGate, 0, len(accounts))
	for _, account := range accounts {
		cosigner, fundingGate, err := as.newAccountSigners(account, loginData)
		if err != nil {
			return fmt.Errorf("account %d: %w", account.Pointer, err)
		}
		cosigners = append(cosigners, cosigner)
		fundingGates = append(fundingGates, fundingGate)
	}

	as.lock.Lock()
	defer as.lock.Unlock()

	for i, account := range accounts {
		as.registerAccount(account.Pointer, cosigners[i], fundingGates[i])
	}
	as.log("restored %d account(s)", len(accounts))
	return nil
}

func (as *AccountService) GetAccount(
	ctx context.Context, pointer uint16,
) (*domain.Account, error) {
	return as.repoManager.AccountRepository().GetAccount(ctx, pointer)
}

func (as *AccountService) ListAccounts(
	ctx context.Context,
) ([]domain.Account, error) {
	return as.repoManager.AccountRepository().ListAccounts(ctx)
}

// DeleteAccount removes the account from storage and its cosigner and funding
// gate from the wallet engine.
func (as *AccountService) DeleteAccount(
	ctx context.Context, pointer uint16,
) error {
	as.lock.Lock()
	defer as.lock.Unlock()

	if err := as.repoManager.AccountRepository().DeleteAccount(
		ctx, pointer,
	); err != nil {
		return err
	}
	as.unregisterAccount(pointer)
	return nil
}

// DeriveAddress returns the address at the given index of a stored account.
// The address is not validated, that's up to the wallet engine.
func (as *AccountService) DeriveAddress(
	ctx context.Context, pointer uint16, index uint32,
) (*multisig.MultisigAddress, error) {
	account, err := as.GetAccount(ctx, pointer)
	if err != nil {
		return nil, err
	}
	serviceKey, err := hdkeychain.NewKeyFromString(account.ServiceXpub)
	if err != nil {
		return nil, err
	}
	return multisig.DeriveAddress(multisig.DeriveAddressArgs{
		ServiceKey: serviceKey,
		LocalKey:   as.masterKey,
		Subaccount: account.Subaccount(),
		Index:      index,
		Network:    as.network,
	})
}

// ListRemoteSubaccounts returns the subaccounts the service reported at
// login.
func (as *AccountService) ListRemoteSubaccounts() ([]domain.SubaccountInfo, error) {
	loginData, err := as.loginData()
	if err != nil {
		return nil, err
	}
	return loginData.Subaccounts, nil
}

func (as *AccountService) GetFundingState(
	ctx context.Context, pointer uint16,
) (*domain.FundingState, error) {
	return as.session.QueryFunding(ctx, domain.SubaccountPointer(pointer))
}

func (as *AccountService) GetTwoFactorConfig(
	ctx context.Context,
) (*domain.TwoFactorConfig, error) {
	return as.coordinator.Config(ctx)
}

// Cosigner returns the cosigner registered for the given account, if any.
func (as *AccountService) Cosigner(pointer uint16) (*Cosigner, bool) {
	as.lock.RLock()
	defer as.lock.RUnlock()
	c, ok := as.cosigners[pointer]
	return c, ok
}

// FundingGate returns the funding gate registered for the given account, if
// any.
func (as *AccountService) FundingGate(pointer uint16) (*FundingGate, bool) {
	as.lock.RLock()
	defer as.lock.RUnlock()
	g, ok := as.fundingGates[pointer]
	return g, ok
}

func (as *AccountService) loginData() (*domain.LoginData, error) {
	if as.session.State() != domain.SessionAuthenticated {
		return nil, domain.ErrNotAuthenticated
	}
	loginData := as.session.LoginData()
	if loginData == nil {
		return nil, domain.ErrNotAuthenticated
	}
	return loginData, nil
}

// newAccountSigners checks the stored account against the logged in wallet
// and returns its cosigner and funding gate, without registering them.
func (as *AccountService) newAccountSigners(
	account domain.Account, loginData *domain.LoginData,
) (*Cosigner, *FundingGate, error) {
	if err := checkAccountPaths(account, loginData.GaitPath); err != nil {
		return nil, nil, err
	}

	buf, err := hex.DecodeString(account.ServiceFingerprint)
	if err != nil || len(buf) != 4 {
		return nil, nil, domain.ErrInvalidFingerprint
	}
	var fp multisig.Fingerprint
	copy(fp[:], buf)

	cosigner, err := NewCosigner(as.session, as.coordinator, fp.Uint32())
	if err != nil {
		return nil, nil, err
	}
	fundingGate, err := NewFundingGate(
		as.session, account.Subaccount(), fp.Uint32(), as.fundingOpts,
	)
	if err != nil {
		return nil, nil, err
	}
	return cosigner, fundingGate, nil
}

// registerAccount must be called with the lock held. Signers previously
// registered for the same account are replaced.
func (as *AccountService) registerAccount(
	pointer uint16, cosigner *Cosigner, fundingGate *FundingGate,
) {
	as.unregisterAccount(pointer)

	as.engine.AddSigner(cosigner.Fingerprint(), cosigner.Ordering(), cosigner)
	as.engine.AddAddressValidator(fundingGate)
	as.cosigners[pointer] = cosigner
	as.fundingGates[pointer] = fundingGate

	as.log(
		"registered cosigner and funding gate for account %d (service fp %s)",
		pointer, multisig.FingerprintFromUint32(cosigner.Fingerprint()),
	)
}

// unregisterAccount must be called with the lock held.
func (as *AccountService) unregisterAccount(pointer uint16) {
	if cosigner, ok := as.cosigners[pointer]; ok {
		as.engine.RemoveSigner(cosigner.Fingerprint())
		delete(as.cosigners, pointer)
	}
	if fundingGate, ok := as.fundingGates[pointer]; ok {
		as.engine.RemoveAddressValidator(fundingGate)
		delete(as.fundingGates, pointer)
	}
}

// checkAccountPaths verifies that the paths of the stored account are those
// of the wallet with the given gait path.
func checkAccountPaths(account domain.Account, gaitPath []uint16) error {
	servicePath, err := path.ParseDerivationPath(account.ServicePath)
	if err != nil {
		return fmt.Errorf("%w: service path: %w", ErrAccountMismatch, err)
	}
	localPath, err := path.ParseDerivationPath(account.LocalPath)
	if err != nil {
		return fmt.Errorf("%w: local path: %w", ErrAccountMismatch, err)
	}

	subaccount := account.Subaccount()
	expectedServicePath := path.NewServicePath(gaitPath, subaccount)
	if servicePath.String() != expectedServicePath.String() {
		return fmt.Errorf(
			"%w: got service path %s, expected %s",
			ErrAccountMismatch, servicePath, expectedServicePath,
		)
	}
	expectedLocalPath := path.NewLocalRelativePath(subaccount)
	if localPath.String() != expectedLocalPath.String() {
		return fmt.Errorf(
			"%w: got local path %s, expected %s",
			ErrAccountMismatch, localPath, expectedLocalPath,
		)
	}
	return nil
}

func (as *AccountService) registerHandlerForAccountEvents() {
	as.repoManager.RegisterHandlerForAccountEvent(
		domain.AccountAdded, func(event domain.AccountEvent) {
			as.log(
				"stored account %d (%s) with service path %s",
				event.Account.Pointer, event.Account.Name, event.Account.ServicePath,
			)
		},
	)
	as.repoManager.RegisterHandlerForAccountEvent(
		domain.AccountDeleted, func(event domain.AccountEvent) {
			as.log("deleted account %d", event.Account.Pointer)
		},
	)
}
