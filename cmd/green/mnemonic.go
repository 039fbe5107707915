package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/vulpemventures/green-cosigner/pkg/wallet/mnemonic"
)

var (
	entropySize uint32

	mnemonicNewCmd = &cobra.Command{
		Use:   "new",
		Short: "generate a new mnemonic",
		Long: "this command generates a new BIP39 mnemonic to be used with " +
			"GREEN_MNEMONIC. It's never stored",
		RunE: mnemonicNew,
	}
	mnemonicCmd = &cobra.Command{
		Use:   "mnemonic",
		Short: "manage the mnemonic of the local wallet",
	}
)

func init() {
	mnemonicNewCmd.Flags().Uint32Var(
		&entropySize, "entropy-size", 256, "entropy size in bits, 128 or 256",
	)
	mnemonicCmd.AddCommand(mnemonicNewCmd)
}

func mnemonicNew(_ *cobra.Command, _ []string) error {
	words, err := mnemonic.NewMnemonic(mnemonic.NewMnemonicArgs{
		EntropySize: entropySize,
	})
	if err != nil {
		return err
	}
	return printJSON(map[string]interface{}{
		"mnemonic": strings.Join(words, " "),
	})
}
