package main

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/spf13/cobra"
	"github.com/vulpemventures/green-cosigner/internal/core/domain"
)

var (
	subaccountPointer uint

	loginCmd = &cobra.Command{
		Use:   "login",
		Short: "log in to the remote cosigner",
		Long: "this command logs in to the remote cosigner and shows the info " +
			"returned by the service: gait path, limits and subaccounts",
		RunE: login,
	}
	descriptorCmd = &cobra.Command{
		Use:   "descriptor",
		Short: "show the descriptor of an account",
		Long: "this command returns the output descriptor of the 2-of-2 " +
			"multisig account with the given subaccount pointer",
		RunE: descriptor,
	}
	twoFactorConfigCmd = &cobra.Command{
		Use:   "config",
		Short: "show the 2FA config",
		Long:  "this command returns the 2FA methods enabled for the wallet",
		RunE:  twoFactorConfig,
	}
	twoFactorCmd = &cobra.Command{
		Use:   "twofactor",
		Short: "interact with the 2FA settings of the wallet",
	}
	fundCmd = &cobra.Command{
		Use:   "fund",
		Short: "show the funding state of an account",
		Long: "this command returns the last address handed out by the service " +
			"for the given subaccount",
		RunE: fund,
	}
)

func init() {
	descriptorCmd.Flags().UintVarP(
		&subaccountPointer, "subaccount", "s", 0,
		"subaccount pointer, 0 for the primary account",
	)
	fundCmd.Flags().UintVarP(
		&subaccountPointer, "subaccount", "s", 0,
		"subaccount pointer, 0 for the primary account",
	)
	twoFactorCmd.AddCommand(twoFactorConfigCmd)
}

type limitsInfo struct {
	IsFiat bool   `json:"is_fiat"`
	PerTx  string `json:"per_tx"`
	Total  string `json:"total"`
}

type loginInfo struct {
	GaitPath                string                  `json:"gait_path"`
	EarliestKeyCreationTime string                  `json:"earliest_key_creation_time,omitempty"`
	Limits                  *limitsInfo             `json:"limits,omitempty"`
	Subaccounts             []domain.SubaccountInfo `json:"subaccounts"`
}

func login(_ *cobra.Command, _ []string) error {
	cfg, err := getAppConfig()
	if err != nil {
		return err
	}
	session, err := cfg.RemoteSession(context.Background())
	if err != nil {
		return err
	}

	loginData := session.LoginData()
	gaitPath := make([]byte, 0, len(loginData.GaitPath)*2)
	for _, v := range loginData.GaitPath {
		gaitPath = append(gaitPath, byte(v>>8), byte(v))
	}

	info := loginInfo{
		GaitPath:    hex.EncodeToString(gaitPath),
		Subaccounts: loginData.Subaccounts,
	}
	if info.Subaccounts == nil {
		info.Subaccounts = []domain.SubaccountInfo{}
	}
	if t := loginData.EarliestKeyCreationTime; t > 0 {
		info.EarliestKeyCreationTime = time.Unix(int64(t), 0).UTC().Format(time.RFC3339)
	}
	if limits := loginData.Limits; limits != nil {
		info.Limits = &limitsInfo{
			IsFiat: limits.IsFiat,
			PerTx:  formatAmount(limits.PerTx, limits.IsFiat),
			Total:  formatAmount(limits.Total, limits.IsFiat),
		}
	}
	return printJSON(info)
}

func descriptor(_ *cobra.Command, _ []string) error {
	pointer, err := subaccountFlagValue(subaccountPointer)
	if err != nil {
		return err
	}
	svc, err := getAccountService(context.Background())
	if err != nil {
		return err
	}

	desc, err := svc.Descriptor(pointer)
	if err != nil {
		return err
	}
	return printJSON(map[string]interface{}{
		"descriptor":          desc.Expression,
		"service_fingerprint": desc.ServiceFingerprint.String(),
		"service_path":        desc.ServicePath.String(),
		"local_fingerprint":   desc.LocalFingerprint.String(),
		"local_path":          desc.LocalPath.String(),
	})
}

func twoFactorConfig(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	svc, err := getAccountService(ctx)
	if err != nil {
		return err
	}

	config, err := svc.GetTwoFactorConfig(ctx)
	if err != nil {
		return err
	}
	return printJSON(map[string]interface{}{
		"any":             config.Any,
		"enabled_methods": config.Enabled(),
		"email_addr":      config.EmailAddr,
		"email_confirmed": config.EmailConfirmed,
		"phone_number":    config.PhoneNumber,
	})
}

func fund(_ *cobra.Command, _ []string) error {
	pointer, err := subaccountFlagValue(subaccountPointer)
	if err != nil {
		return err
	}
	ctx := context.Background()
	svc, err := getAccountService(ctx)
	if err != nil {
		return err
	}

	state, err := svc.GetFundingState(ctx, pointer)
	if err != nil {
		return err
	}
	return printJSON(state)
}
