package config

import (
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"github.com/vulpemventures/green-cosigner/internal/core/domain"
)

const (
	// DatadirKey is the key to customize the green cosigner datadir.
	DatadirKey = "DATADIR"
	// NetworkKey is the key to customize the Bitcoin network.
	NetworkKey = "NETWORK"
	// ServiceUrlKey is the key to customize the websocket url of the remote
	// cosigner. Defaults to the public endpoint of the selected network.
	ServiceUrlKey = "SERVICE_URL"
	// RealmKey is the key to customize the WAMP realm to join.
	RealmKey = "REALM"
	// DeviceIdKey is the key to set the device id sent at login.
	DeviceIdKey = "DEVICE_ID"
	// ClientVersionKey is the key to customize the client version string sent
	// at login.
	ClientVersionKey = "CLIENT_VERSION"
	// LogLevelKey is the key to customize the log level to catch more specific
	// or more high level logs.
	LogLevelKey = "LOG_LEVEL"
	// DatabaseTypeKey is the key to customize the type of database to use.
	DatabaseTypeKey = "DATABASE_TYPE"
	// FundingPollIntervalKey is the key to customize the interval in
	// milliseconds between two queries of the funding state.
	FundingPollIntervalKey = "FUNDING_POLL_INTERVAL_MS"
	// FundingMaxAttemptsKey is the key to customize how many times the funding
	// state is queried before giving up on an address.
	FundingMaxAttemptsKey = "FUNDING_MAX_ATTEMPTS"
	// RpcTimeoutKey is the key to customize the timeout in seconds of every
	// call to the remote cosigner. Zero means no timeout.
	RpcTimeoutKey = "RPC_TIMEOUT_SECONDS"
	// ServicePubkeyKey and ServiceChainCodeKey are the keys to override the
	// root key of the remote cosigner for the selected network. Both must be
	// defined, and they are mandatory for regtest.
	ServicePubkeyKey    = "SERVICE_PUBKEY"
	ServiceChainCodeKey = "SERVICE_CHAINCODE"
	// MnemonicKey is the key to set the mnemonic of the local wallet.
	MnemonicKey = "MNEMONIC"
	// PassphraseKey is the key to set the optional BIP39 passphrase.
	PassphraseKey = "PASSPHRASE"
	// TwoFactorMethodKey is the key to set the preferred 2FA method when
	// running non-interactively.
	TwoFactorMethodKey = "TWOFACTOR_METHOD"
	// TwoFactorCodeKey is the key to set a 2FA code upfront. When defined, the
	// user is never prompted.
	TwoFactorCodeKey = "TWOFACTOR_CODE"
	// StatsDirKey is the key to customize the folder where rpc metrics are
	// dumped on exit. Empty disables the dump.
	StatsDirKey = "STATS_DIR"

	// DbLocation is the folder inside the datadir containing db files.
	DbLocation = "db"
)

var (
	vip *viper.Viper

	defaultDatadir             = btcutil.AppDataDir("green-cosigner", false)
	defaultNetwork             = chaincfg.TestNet3Params.Name
	defaultDbType              = "badger"
	defaultLogLevel            = 4
	defaultRealm               = "realm1"
	defaultClientVersion       = "[v2,sw]neerg"
	defaultFundingPollInterval = 1000
	defaultFundingMaxAttempts  = 60
	defaultRpcTimeout          = 30

	supportedNetworks = map[string]*chaincfg.Params{
		chaincfg.MainNetParams.Name:       &chaincfg.MainNetParams,
		chaincfg.TestNet3Params.Name:      &chaincfg.TestNet3Params,
		chaincfg.RegressionNetParams.Name: &chaincfg.RegressionNetParams,
	}
	defaultServiceUrls = map[string]string{
		chaincfg.MainNetParams.Name:  "wss://prodwss.greenaddress.it/v2/ws/",
		chaincfg.TestNet3Params.Name: "wss://testwss.greenaddress.it/v2/ws/",
	}
	SupportedDbs = supportedType{
		"badger":   {},
		"inmemory": {},
	}
)

func init() {
	vip = viper.New()
	vip.SetEnvPrefix("GREEN")
	vip.AutomaticEnv()

	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(NetworkKey, defaultNetwork)
	vip.SetDefault(DatabaseTypeKey, defaultDbType)
	vip.SetDefault(LogLevelKey, defaultLogLevel)
	vip.SetDefault(RealmKey, defaultRealm)
	vip.SetDefault(ClientVersionKey, defaultClientVersion)
	vip.SetDefault(DeviceIdKey, uuid.NewString())
	vip.SetDefault(FundingPollIntervalKey, defaultFundingPollInterval)
	vip.SetDefault(FundingMaxAttemptsKey, defaultFundingMaxAttempts)
	vip.SetDefault(RpcTimeoutKey, defaultRpcTimeout)

	if err := validate(); err != nil {
		log.Fatalf("invalid config: %s", err)
	}

	if err := initDatadir(); err != nil {
		log.Fatalf("config: error while creating datadir: %s", err)
	}
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("datadir must not be null")
	}

	net := GetString(NetworkKey)
	if len(net) == 0 {
		return fmt.Errorf("network must not be null")
	}
	if _, ok := supportedNetworks[net]; !ok {
		nets := make([]string, 0, len(supportedNetworks))
		for net := range supportedNetworks {
			nets = append(nets, net)
		}
		return fmt.Errorf("unknown network, must be one of: %v", nets)
	}

	if GetServiceUrl() == "" {
		return fmt.Errorf("service url must be defined for network %s", net)
	}

	pubkey := GetString(ServicePubkeyKey)
	chainCode := GetString(ServiceChainCodeKey)
	if (pubkey == "") != (chainCode == "") {
		return fmt.Errorf("service pubkey and chain code must be defined together")
	}
	if pubkey != "" {
		if buf, err := hex.DecodeString(pubkey); err != nil || len(buf) != 33 {
			return fmt.Errorf(
				"invalid service pubkey, must be a 33 bytes compressed key in hex " +
					"string format",
			)
		}
		if buf, err := hex.DecodeString(chainCode); err != nil || len(buf) != 32 {
			return fmt.Errorf(
				"invalid service chain code, must be exactly 32 bytes in hex " +
					"string format",
			)
		}
	}
	if net == chaincfg.RegressionNetParams.Name && pubkey == "" {
		return fmt.Errorf("service pubkey and chain code are mandatory for regtest")
	}

	dbType := GetString(DatabaseTypeKey)
	if _, ok := SupportedDbs[dbType]; !ok {
		return fmt.Errorf("unsupported database type, must be one of %s", SupportedDbs)
	}

	if GetInt(FundingPollIntervalKey) < 0 {
		return fmt.Errorf("funding poll interval must not be negative")
	}
	if GetInt(FundingMaxAttemptsKey) <= 0 {
		return fmt.Errorf("funding max attempts must be a positive number")
	}
	if GetInt(RpcTimeoutKey) < 0 {
		return fmt.Errorf("rpc timeout must not be negative")
	}

	if method := GetString(TwoFactorMethodKey); method != "" {
		if _, err := domain.ParseTwoFactorMethod(method); err != nil {
			return fmt.Errorf("invalid 2FA method %s: %w", method, err)
		}
	}

	return nil
}

func GetDatadir() string {
	return filepath.Join(GetString(DatadirKey), GetString(NetworkKey))
}

func GetNetwork() *chaincfg.Params {
	return supportedNetworks[GetString(NetworkKey)]
}

func GetServiceUrl() string {
	if url := GetString(ServiceUrlKey); url != "" {
		return url
	}
	return defaultServiceUrls[GetString(NetworkKey)]
}

func GetStatsDir() string {
	dir := GetString(StatsDirKey)
	if dir == "" {
		return ""
	}
	return filepath.Clean(dir)
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

func GetBool(key string) bool {
	return vip.GetBool(key)
}

func GetStringSlice(key string) []string {
	return vip.GetStringSlice(key)
}

func Set(key string, val interface{}) {
	vip.Set(key, val)
}

func Unset(key string) {
	vip.Set(key, nil)
}

func IsSet(key string) bool {
	return vip.IsSet(key)
}

func initDatadir() error {
	datadir := GetDatadir()
	if err := makeDirectoryIfNotExists(filepath.Join(datadir, DbLocation)); err != nil {
		return err
	}

	if statsDir := GetStatsDir(); statsDir != "" {
		if err := makeDirectoryIfNotExists(statsDir); err != nil {
			return err
		}
	}
	return nil
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}

type supportedType map[string]struct{}

func (t supportedType) String() string {
	types := make([]string, 0, len(t))
	for tt := range t {
		types = append(types, tt)
	}
	return strings.Join(types, " | ")
}
