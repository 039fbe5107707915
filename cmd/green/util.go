package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	appconfig "github.com/vulpemventures/green-cosigner/internal/app-config"
	"github.com/vulpemventures/green-cosigner/internal/config"
	"github.com/vulpemventures/green-cosigner/internal/core/application"
	"github.com/vulpemventures/green-cosigner/internal/core/domain"
	"github.com/vulpemventures/green-cosigner/internal/core/ports"
	mnemonic_store "github.com/vulpemventures/green-cosigner/internal/infrastructure/mnemonic-store/in-memory"
	prompt_resolver "github.com/vulpemventures/green-cosigner/internal/infrastructure/twofactor-resolver/prompt"
	scripted_resolver "github.com/vulpemventures/green-cosigner/internal/infrastructure/twofactor-resolver/scripted"
	multisig "github.com/vulpemventures/green-cosigner/pkg/wallet/multi-sig"
)

var (
	colorRed = string("\033[31m")

	appConfig *appconfig.AppConfig
)

// getAppConfig builds the app config from the environment on first use.
func getAppConfig() (*appconfig.AppConfig, error) {
	if appConfig != nil {
		return appConfig, nil
	}

	store := mnemonic_store.NewInMemoryMnemonicStore()
	if !store.IsSet() {
		return nil, fmt.Errorf(
			"missing mnemonic, set it with the GREEN_MNEMONIC env var or create " +
				"a new one with 'green mnemonic new'",
		)
	}

	var serviceKey *multisig.ServiceKey
	if pubkey := config.GetString(config.ServicePubkeyKey); pubkey != "" {
		serviceKey = &multisig.ServiceKey{
			PubKey:    pubkey,
			ChainCode: config.GetString(config.ServiceChainCodeKey),
		}
	}

	cfg := &appconfig.AppConfig{
		Network:        config.GetNetwork(),
		ServiceUrl:     config.GetServiceUrl(),
		Realm:          config.GetString(config.RealmKey),
		DeviceID:       config.GetString(config.DeviceIdKey),
		ClientVersion:  config.GetString(config.ClientVersionKey),
		RequestTimeout: time.Duration(config.GetInt(config.RpcTimeoutKey)) * time.Second,

		Mnemonic:   store.Get(),
		Passphrase: store.Passphrase(),
		ServiceKey: serviceKey,

		RepoManagerType:   config.GetString(config.DatabaseTypeKey),
		RepoManagerConfig: filepath.Join(config.GetDatadir(), config.DbLocation),
		Resolver:          getResolver(),
		FundingOpts: application.FundingGateOpts{
			PollInterval: time.Duration(
				config.GetInt(config.FundingPollIntervalKey),
			) * time.Millisecond,
			MaxAttempts: config.GetInt(config.FundingMaxAttemptsKey),
		},
	}
	store.Unset()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	appConfig = cfg
	return appConfig, nil
}

func getAccountService(
	ctx context.Context,
) (*application.AccountService, error) {
	cfg, err := getAppConfig()
	if err != nil {
		return nil, err
	}
	return cfg.AccountService(ctx)
}

// getResolver returns a non-interactive resolver if a 2FA code is given
// upfront, the interactive one otherwise.
func getResolver() ports.TwoFactorResolver {
	preferences := make([]domain.TwoFactorMethod, 0, 1)
	if m := config.GetString(config.TwoFactorMethodKey); m != "" {
		method, _ := domain.ParseTwoFactorMethod(m)
		preferences = append(preferences, method)
	}

	if code := config.GetString(config.TwoFactorCodeKey); code != "" {
		return scripted_resolver.NewResolver(scripted_resolver.ResolverArgs{
			Preferences: preferences,
			Codes:       []string{code},
		})
	}
	return prompt_resolver.NewResolver(prompt_resolver.ResolverArgs{
		In:  os.Stdin,
		Out: os.Stderr,
	})
}

func closeAppConfig() {
	if appConfig != nil {
		appConfig.Close()
		appConfig = nil
	}
}

func printJSON(v interface{}) error {
	buf, err := json.MarshalIndent(v, "", "   ")
	if err != nil {
		return fmt.Errorf("failed to marshal response: %s", err)
	}
	fmt.Println(string(buf))
	return nil
}

func printErr(err error) {
	msg := fmt.Sprintf("%s%s", colorRed, capitalize(err.Error()))
	fmt.Fprintln(os.Stderr, msg)
}

func capitalize(s string) string {
	if len(s) <= 0 {
		return s
	}
	ss := strings.ToUpper(s[0:1])
	ss += s[1:]
	return ss
}

// formatAmount formats the given amount, in satoshis or in cents of a fiat
// currency.
func formatAmount(amount uint64, isFiat bool) string {
	if isFiat {
		return decimal.NewFromInt(int64(amount)).Shift(-2).StringFixed(2)
	}
	return decimal.NewFromInt(int64(amount)).Shift(-8).StringFixed(8) + " BTC"
}

func subaccountFlagValue(subaccount uint) (uint16, error) {
	if subaccount > uint(^uint16(0)) {
		return 0, fmt.Errorf("subaccount pointer out of range")
	}
	return uint16(subaccount), nil
}
