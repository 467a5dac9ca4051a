// Copyright (c) 2025 ToeiRei
// Deckhand - SSH deployment automation
// This source code is licensed under the MIT license found in the LICENSE file.

// main.go sets up the command-line interface for Deckhand using the Cobra
// library. It defines the root command, the shared startup sequence (config,
// i18n, database) and the process exit contract: 0 on success, 1 on failure,
// 2 when a deployment completed but its post-deploy command exited non-zero.

package cli

import (
	stderrors "errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // mysql backend
	_ "github.com/jackc/pgx/v5/stdlib" // postgres backend
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/toeirei/deckhand/internal/config"
	"github.com/toeirei/deckhand/internal/db"
	"github.com/toeirei/deckhand/internal/errors"
	"github.com/toeirei/deckhand/internal/i18n"
	"github.com/toeirei/deckhand/internal/logging"
)

var version = "dev" // set by the linker

var (
	cfgFile   string
	appConfig config.Config
)

// partialError signals exit code 2: the sync itself converged but the
// post-deploy command reported a non-zero exit.
type partialError struct {
	exitCode int
}

func (e *partialError) Error() string {
	return fmt.Sprintf(i18n.T("sync.partial"), e.exitCode)
}

// IsPartial reports whether err represents a partial deployment. The main
// package maps it to exit code 2.
func IsPartial(err error) bool {
	var p *partialError
	return stderrors.As(err, &p)
}

// setupDefaultServices is the shared PersistentPreRunE: resolve config,
// initialize i18n and open the database.
func setupDefaultServices(cmd *cobra.Command, args []string) error {
	defaults := map[string]any{
		"database.type": "sqlite",
		"database.dsn":  "./deckhand.db",
		"language":      "en",
		"timeout":       "5m",
	}

	var err error
	appConfig, err = config.Load(cmd, defaults, cfgFile)
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return errors.Wrap(err, errors.ErrConfig,
				"could not load configuration",
				"check the config file syntax, or pass --config")
		}
	}

	// Flag names differ from the dotted config keys, so these overrides are
	// applied by hand rather than through viper's flag binding.
	if s, _ := cmd.Flags().GetString("db-type"); s != "" {
		appConfig.Database.Type = s
	}
	if s, _ := cmd.Flags().GetString("db-dsn"); s != "" {
		appConfig.Database.DSN = s
	}
	if s, _ := cmd.Flags().GetString("lang"); s != "" {
		appConfig.Language = s
	}

	if appConfig.Verbose {
		logging.SetDebug(true)
	}

	i18n.Init(appConfig.Language)

	if !db.IsInitialized() {
		if err := db.InitDB(appConfig.Database.Type, appConfig.Database.DSN); err != nil {
			return fmt.Errorf(i18n.T("cli.error_init_db"), err)
		}
	}

	return nil
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "deckhand",
		Short:   "Deploy file trees to remote hosts over pinned SSH",
		Version: version,
		Long: `Deckhand synchronizes a local build artifact tree to remote targets over
SFTP, using deploy keys it registers and compiles into restricted
authorized_keys entries. Host identity is pinned; there is no
trust-on-first-use.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setupDefaultServices,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches user and system paths)")
	rootCmd.PersistentFlags().String("db-type", "", "database backend: sqlite, postgres or mysql")
	rootCmd.PersistentFlags().String("db-dsn", "", "database connection string")
	rootCmd.PersistentFlags().String("lang", "", "interface language")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newRunCommandCmd())
	rootCmd.AddCommand(newRotateKeyCmd())
	rootCmd.AddCommand(newInstallKeyCmd())
	rootCmd.AddCommand(newTrustHostCmd())
	rootCmd.AddCommand(newTargetsCmd())
	rootCmd.AddCommand(newAuditCmd())

	return rootCmd
}

// Execute runs the CLI entrypoint. The root main package calls this and maps
// the returned error to the process exit code.
func Execute() error {
	return newRootCmd().Execute()
}

// runTimeout resolves the effective timeout for a command: an explicit
// --timeout flag wins over the configured default.
func runTimeout(cmd *cobra.Command) time.Duration {
	if cmd.Flags().Changed("timeout") {
		if d, err := cmd.Flags().GetDuration("timeout"); err == nil {
			return d
		}
	}
	if appConfig.Timeout > 0 {
		return appConfig.Timeout
	}
	return 5 * time.Minute
}
