package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/spf13/cobra"
)

var (
	packetB64  string
	noFinalize bool

	signCmd = &cobra.Command{
		Use:   "sign",
		Short: "sign a psbt",
		Long: "this command signs the inputs of the given psbt with the local " +
			"key and gets the service's signature for them, asking for a 2FA " +
			"code if required. The final transaction is returned unless " +
			"--no-finalize is set",
		RunE: sign,
	}
)

func init() {
	signCmd.Flags().StringVarP(&packetB64, "psbt", "p", "", "base64 encoded psbt")
	signCmd.Flags().BoolVar(
		&noFinalize, "no-finalize", false,
		"return the signed psbt instead of the final transaction",
	)
	signCmd.MarkFlagRequired("psbt")
}

func sign(_ *cobra.Command, _ []string) error {
	packet, err := psbt.NewFromRawBytes(strings.NewReader(packetB64), true)
	if err != nil {
		return fmt.Errorf("invalid psbt: %s", err)
	}

	// Restores the signers of the stored accounts.
	if _, err := getAccountService(context.Background()); err != nil {
		return err
	}
	engine, err := appConfig.WalletEngine()
	if err != nil {
		return err
	}

	signErr := engine.SignPacket(packet)
	if signErr != nil || noFinalize {
		b64, err := packet.B64Encode()
		if err != nil {
			return err
		}
		if err := printJSON(map[string]interface{}{"psbt": b64}); err != nil {
			return err
		}
		return signErr
	}

	tx, err := engine.Finalize(packet)
	if err != nil {
		return err
	}
	buf := &bytes.Buffer{}
	if err := tx.Serialize(buf); err != nil {
		return err
	}
	return printJSON(map[string]interface{}{
		"txid": tx.TxHash().String(),
		"hex":  hex.EncodeToString(buf.Bytes()),
	})
}
