package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vulpemventures/green-cosigner/internal/config"
	"github.com/vulpemventures/green-cosigner/pkg/profiler"
)

var (
	// Build info.
	version = "dev"
	commit  = "none"
	date    = "unknown"

	rootCmd = &cobra.Command{
		Use:   "green",
		Short: "CLI for 2-of-2 multisig accounts co-signed by a remote service",
		Long: "This CLI lets you log in to the remote cosigner, set up your " +
			"co-signed accounts, derive their addresses and get your transactions " +
			"signed by the service, with 2FA when required",
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			dumpStats()
			closeAppConfig()
		},
		SilenceUsage: true,
		Version:      formatVersion(),
	}
)

func init() {
	rootCmd.AddCommand(
		loginCmd, descriptorCmd, twoFactorCmd, fundCmd, accountCmd, signCmd,
		mnemonicCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		closeAppConfig()
		printErr(err)
		os.Exit(1)
	}
}

func dumpStats() {
	profiler.LogMemoryStats()

	statsDir := config.GetStatsDir()
	if statsDir == "" || appConfig == nil {
		return
	}
	filePath, err := profiler.DumpStats(appConfig.Metrics(), statsDir)
	if err != nil {
		log.WithError(err).Warn("failed to dump rpc stats")
		return
	}
	log.Debugf("rpc stats dumped to %s", filePath)
}

func formatVersion() string {
	return fmt.Sprintf(
		"\nVersion: %s\nCommit: %s\nDate: %s", version, commit, date,
	)
}
