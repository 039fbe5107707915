package appconfig

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/vulpemventures/green-cosigner/internal/config"
	"github.com/vulpemventures/green-cosigner/internal/core/application"
	"github.com/vulpemventures/green-cosigner/internal/core/ports"
	green_cosigner "github.com/vulpemventures/green-cosigner/internal/infrastructure/cosigner/green"
	dbbadger "github.com/vulpemventures/green-cosigner/internal/infrastructure/storage/db/badger"
	"github.com/vulpemventures/green-cosigner/internal/infrastructure/storage/db/inmemory"
	prompt_resolver "github.com/vulpemventures/green-cosigner/internal/infrastructure/twofactor-resolver/prompt"
	wallet_engine "github.com/vulpemventures/green-cosigner/internal/infrastructure/wallet-engine"
	"github.com/vulpemventures/green-cosigner/pkg/wallet/mnemonic"
	multisig "github.com/vulpemventures/green-cosigner/pkg/wallet/multi-sig"
	singlesig "github.com/vulpemventures/green-cosigner/pkg/wallet/single-sig"
)

// AppConfig is the struct holding all configuration options for the account
// service and the portable services used by it. This data structure acts
// also as a factory of all of them.
// Public config args:
//   - Network - (required) The Bitcoin network (mainnet, testnet3, regtest).
//   - ServiceUrl - (required) The websocket url of the remote cosigner.
//   - Realm, DeviceID, ClientVersion - (optional) Login parameters, see
//     green_cosigner.ServiceArgs for defaults.
//   - RequestTimeout - (optional) Timeout of every call to the remote cosigner.
//   - Mnemonic - (required) The mnemonic of the local wallet.
//   - Passphrase - (optional) The BIP39 passphrase of the local wallet.
//   - ServiceKey - (optional) Root key of the remote cosigner replacing the
//     default one for the network. Mandatory for networks without default.
//   - RepoManagerType - (required) One of the supported repository manager types.
//   - RepoManagerConfig - (optional) Custom config args for the repository
//     manager based on its type.
//   - Resolver - (optional) The 2FA resolver, defaults to the interactive one.
//   - FundingOpts - (optional) Pacing and bound of the funding gates.
type AppConfig struct {
	Network        *chaincfg.Params
	ServiceUrl     string
	Realm          string
	DeviceID       string
	ClientVersion  string
	RequestTimeout time.Duration

	Mnemonic   []string
	Passphrase string
	ServiceKey *multisig.ServiceKey

	RepoManagerType   string
	RepoManagerConfig interface{}
	Resolver          ports.TwoFactorResolver
	FundingOpts       application.FundingGateOpts

	masterKey  *hdkeychain.ExtendedKey
	registry   *multisig.ServiceKeyRegistry
	metrics    *prometheus.Registry
	rm         ports.RepoManager
	session    ports.RemoteSession
	engine     *wallet_engine.Engine
	accountSvc *application.AccountService
}

func (c *AppConfig) Validate() error {
	if c.Network == nil {
		return fmt.Errorf("missing network")
	}
	if len(c.ServiceUrl) == 0 {
		return fmt.Errorf("missing remote cosigner url")
	}
	if len(c.Mnemonic) == 0 {
		return fmt.Errorf("missing mnemonic")
	}
	if !mnemonic.IsValid(c.Mnemonic) {
		return mnemonic.ErrInvalidMnemonic
	}
	if len(c.RepoManagerType) == 0 {
		return fmt.Errorf("missing repo manager type")
	}
	if _, ok := config.SupportedDbs[c.RepoManagerType]; !ok {
		return fmt.Errorf(
			"repo manager type not supported, must be one of: %s",
			config.SupportedDbs,
		)
	}
	if _, err := c.serviceKeyRegistry(); err != nil {
		return err
	}
	if _, err := c.masterKeyFromMnemonic(); err != nil {
		return err
	}
	if _, err := c.repoManager(); err != nil {
		return err
	}
	return nil
}

func (c *AppConfig) RepoManager() ports.RepoManager {
	return c.rm
}

func (c *AppConfig) MasterKey() *hdkeychain.ExtendedKey {
	return c.masterKey
}

// Metrics returns the registry where the rpc metrics of the remote session
// are collected.
func (c *AppConfig) Metrics() *prometheus.Registry {
	if c.metrics == nil {
		c.metrics = prometheus.NewRegistry()
	}
	return c.metrics
}

// RemoteSession connects and logs in to the remote cosigner on first use.
func (c *AppConfig) RemoteSession(ctx context.Context) (ports.RemoteSession, error) {
	return c.remoteSession(ctx)
}

// WalletEngine returns the in-process wallet engine, with the local signer
// already registered.
func (c *AppConfig) WalletEngine() (*wallet_engine.Engine, error) {
	return c.walletEngine()
}

// AccountService returns the account service, connecting to the remote
// cosigner if not yet done.
func (c *AppConfig) AccountService(
	ctx context.Context,
) (*application.AccountService, error) {
	return c.accountService(ctx)
}

// Close releases the remote session, if any, and the repositories.
func (c *AppConfig) Close() {
	if c.session != nil {
		c.session.Close()
	}
	if c.rm != nil {
		c.rm.Close()
	}
}

func (c *AppConfig) serviceKeyRegistry() (*multisig.ServiceKeyRegistry, error) {
	if c.registry != nil {
		return c.registry, nil
	}

	registry := multisig.NewServiceKeyRegistry()
	if c.ServiceKey != nil {
		if err := registry.Override(c.Network.Name, *c.ServiceKey); err != nil {
			return nil, err
		}
	}
	if _, err := registry.RootKey(c.Network); err != nil {
		return nil, fmt.Errorf(
			"network %s: %w, service key must be defined", c.Network.Name, err,
		)
	}
	c.registry = registry
	return c.registry, nil
}

func (c *AppConfig) masterKeyFromMnemonic() (*hdkeychain.ExtendedKey, error) {
	if c.masterKey != nil {
		return c.masterKey, nil
	}

	masterKey, err := multisig.MasterKeyFromMnemonic(
		c.Mnemonic, c.Passphrase, c.Network,
	)
	if err != nil {
		return nil, err
	}
	c.masterKey = masterKey
	return c.masterKey, nil
}

func (c *AppConfig) repoManager() (ports.RepoManager, error) {
	if c.rm != nil {
		return c.rm, nil
	}

	switch c.RepoManagerType {
	case "inmemory":
		c.rm = inmemory.NewRepoManager()
		return c.rm, nil
	case "badger":
		if c.RepoManagerConfig == nil {
			return nil, fmt.Errorf("missing repo manager config args")
		}
		datadir, ok := c.RepoManagerConfig.(string)
		if !ok {
			return nil, fmt.Errorf("invalid repo manager config type, must be string")
		}
		rm, err := dbbadger.NewRepoManager(datadir, log.New())
		if err != nil {
			return nil, err
		}
		c.rm = rm
		return c.rm, nil
	default:
		return nil, fmt.Errorf("unknown repo manager type")
	}
}

func (c *AppConfig) remoteSession(ctx context.Context) (ports.RemoteSession, error) {
	if c.session != nil {
		return c.session, nil
	}

	masterKey, err := c.masterKeyFromMnemonic()
	if err != nil {
		return nil, err
	}
	session, err := green_cosigner.NewService(ctx, green_cosigner.ServiceArgs{
		Addr:           c.ServiceUrl,
		Realm:          c.Realm,
		MasterKey:      masterKey,
		Network:        c.Network,
		DeviceID:       c.DeviceID,
		ClientVersion:  c.ClientVersion,
		RequestTimeout: c.RequestTimeout,
		Registerer:     c.Metrics(),
	})
	if err != nil {
		return nil, err
	}
	c.session = session
	return c.session, nil
}

func (c *AppConfig) walletEngine() (*wallet_engine.Engine, error) {
	if c.engine != nil {
		return c.engine, nil
	}

	masterKey, err := c.masterKeyFromMnemonic()
	if err != nil {
		return nil, err
	}
	localSigner, err := singlesig.NewSigner(singlesig.NewSignerArgs{
		MasterKey: masterKey,
	})
	if err != nil {
		return nil, err
	}
	c.engine = wallet_engine.NewEngine(localSigner)
	return c.engine, nil
}

func (c *AppConfig) resolver() ports.TwoFactorResolver {
	if c.Resolver == nil {
		c.Resolver = prompt_resolver.NewResolver(prompt_resolver.ResolverArgs{})
	}
	return c.Resolver
}

func (c *AppConfig) accountService(
	ctx context.Context,
) (*application.AccountService, error) {
	if c.accountSvc != nil {
		return c.accountSvc, nil
	}

	rm, err := c.repoManager()
	if err != nil {
		return nil, err
	}
	registry, err := c.serviceKeyRegistry()
	if err != nil {
		return nil, err
	}
	engine, err := c.walletEngine()
	if err != nil {
		return nil, err
	}
	session, err := c.remoteSession(ctx)
	if err != nil {
		return nil, err
	}

	svc, err := application.NewAccountService(application.AccountServiceArgs{
		RepoManager: rm,
		Session:     session,
		Resolver:    c.resolver(),
		Engine:      engine,
		Registry:    registry,
		Network:     c.Network,
		MasterKey:   c.masterKey,
		FundingOpts: c.FundingOpts,
	})
	if err != nil {
		return nil, err
	}
	if err := svc.RestoreAccounts(ctx); err != nil {
		return nil, err
	}
	c.accountSvc = svc
	return c.accountSvc, nil
}
