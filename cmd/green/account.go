package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/vulpemventures/green-cosigner/internal/core/domain"
)

var (
	addressIndex uint32

	accountSetupCmd = &cobra.Command{
		Use:   "setup",
		Short: "set up a co-signed account",
		Long: "this command stores the account with the given subaccount pointer " +
			"and registers the remote cosigner for it",
		RunE: accountSetup,
	}
	accountListCmd = &cobra.Command{
		Use:   "list",
		Short: "list accounts",
		Long: "this command returns the accounts set up locally and the " +
			"subaccounts known by the service",
		RunE: accountList,
	}
	accountDeleteCmd = &cobra.Command{
		Use:   "delete",
		Short: "delete account",
		Long: "this command deletes the given account from the local storage, " +
			"the service is not affected",
		RunE: accountDelete,
	}
	accountAddressCmd = &cobra.Command{
		Use:   "address",
		Short: "derive an account address",
		Long: "this command derives the address at the given index of an account " +
			"and returns it once the service has acknowledged it",
		RunE: accountAddress,
	}
	accountCmd = &cobra.Command{
		Use:   "account",
		Short: "interact with co-signed accounts",
		Long: "this command lets you set up, list or delete co-signed accounts " +
			"and derive their addresses",
	}
)

func init() {
	accountCmd.PersistentFlags().UintVarP(
		&subaccountPointer, "subaccount", "s", 0,
		"subaccount pointer, 0 for the primary account",
	)
	accountAddressCmd.Flags().Uint32VarP(
		&addressIndex, "index", "i", 0, "index of the address to derive",
	)
	accountAddressCmd.MarkFlagRequired("index")

	accountCmd.AddCommand(
		accountSetupCmd, accountListCmd, accountDeleteCmd, accountAddressCmd,
	)
}

type accountInfo struct {
	Pointer            uint16 `json:"pointer"`
	Name               string `json:"name"`
	ServiceXpub        string `json:"service_xpub"`
	ServiceFingerprint string `json:"service_fingerprint"`
	ServicePath        string `json:"service_path"`
	LocalPath          string `json:"local_path"`
	CreatedAt          string `json:"created_at"`
}

func newAccountInfo(account domain.Account) accountInfo {
	return accountInfo{
		Pointer:            account.Pointer,
		Name:               account.Name,
		ServiceXpub:        account.ServiceXpub,
		ServiceFingerprint: account.ServiceFingerprint,
		ServicePath:        account.ServicePath,
		LocalPath:          account.LocalPath,
		CreatedAt:          time.Unix(account.CreatedAt, 0).UTC().Format(time.RFC3339),
	}
}

func accountSetup(_ *cobra.Command, _ []string) error {
	pointer, err := subaccountFlagValue(subaccountPointer)
	if err != nil {
		return err
	}
	ctx := context.Background()
	svc, err := getAccountService(ctx)
	if err != nil {
		return err
	}

	account, err := svc.SetupAccount(ctx, pointer)
	if err != nil {
		return err
	}
	return printJSON(newAccountInfo(*account))
}

func accountList(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	svc, err := getAccountService(ctx)
	if err != nil {
		return err
	}

	accounts, err := svc.ListAccounts(ctx)
	if err != nil {
		return err
	}
	remoteSubaccounts, err := svc.ListRemoteSubaccounts()
	if err != nil {
		return err
	}

	local := make([]accountInfo, 0, len(accounts))
	for _, account := range accounts {
		local = append(local, newAccountInfo(account))
	}
	if remoteSubaccounts == nil {
		remoteSubaccounts = []domain.SubaccountInfo{}
	}
	return printJSON(map[string]interface{}{
		"accounts":    local,
		"subaccounts": remoteSubaccounts,
	})
}

func accountDelete(_ *cobra.Command, _ []string) error {
	pointer, err := subaccountFlagValue(subaccountPointer)
	if err != nil {
		return err
	}
	ctx := context.Background()
	svc, err := getAccountService(ctx)
	if err != nil {
		return err
	}

	if err := svc.DeleteAccount(ctx, pointer); err != nil {
		return err
	}
	return printJSON(map[string]interface{}{"deleted": pointer})
}

func accountAddress(_ *cobra.Command, _ []string) error {
	pointer, err := subaccountFlagValue(subaccountPointer)
	if err != nil {
		return err
	}
	ctx := context.Background()
	svc, err := getAccountService(ctx)
	if err != nil {
		return err
	}
	engine, err := appConfig.WalletEngine()
	if err != nil {
		return err
	}

	addr, err := svc.DeriveAddress(ctx, pointer, addressIndex)
	if err != nil {
		return err
	}
	if err := engine.ValidateAddress(addr.Derivations, addr.ScriptPubKey); err != nil {
		return err
	}
	return printJSON(map[string]interface{}{
		"address": addr.Address,
		"index":   addressIndex,
	})
}
