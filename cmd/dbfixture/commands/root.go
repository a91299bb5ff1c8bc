// Package commands implements the dbfixture CLI, which runs the test
// database outside of go test.
package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tphakala/dbfixture/internal/conf"
	"github.com/tphakala/dbfixture/internal/logger"
)

// options holds the global flags and what PersistentPreRunE derives from them.
type options struct {
	configFile string
	envFile    string
	logLevel   string
	logJSON    bool

	settings *conf.FixtureSettings
	log      logger.Logger
}

var rootCmd = NewRootCommand()

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// PrintErr prints an error message to stderr.
func PrintErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "dbfixture",
		Short: "Ephemeral MongoDB for API integration tests",
		Long: `dbfixture starts a throwaway MongoDB container, seeds the admin API key
and empties collections between test runs.

Settings come from defaults, an optional YAML file (--config) and DBFIXTURE_*
environment variables. DB_PORT selects the port mongod listens on inside the
container.

Examples:
  # Start a database and keep it running until Ctrl+C
  dbfixture up --key test-key

  # Empty the application database of a running fixture
  SPACEX_MONGO=mongodb://localhost:32768/spacex dbfixture reset`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML settings file")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before settings (ignored if missing)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level: trace, debug, info, warn, error")
	cmd.PersistentFlags().BoolVar(&opts.logJSON, "log-json", false, "write logs as JSON")

	cmd.AddCommand(newUpCommand(opts))
	cmd.AddCommand(newSeedCommand(opts))
	cmd.AddCommand(newResetCommand(opts))
	cmd.CompletionOptions.DisableDefaultCmd = true

	return cmd
}

// load reads the env file and settings and builds the logger.
func (o *options) load() error {
	if err := loadEnvFile(o.envFile); err != nil {
		return err
	}

	settings, err := conf.Load(o.configFile)
	if err != nil {
		return err
	}
	o.settings = settings
	o.log = logger.New(logger.Options{
		Level:  o.logLevel,
		Output: os.Stderr,
		JSON:   o.logJSON,
	})
	return nil
}

// loadEnvFile loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// resolveURL returns flagURL, or the URL published under the configured key.
func resolveURL(flagURL string, settings *conf.FixtureSettings) (string, error) {
	if flagURL != "" {
		return flagURL, nil
	}
	if url := os.Getenv(settings.URLKey); url != "" {
		return url, nil
	}
	return "", fmt.Errorf("no database URL: pass --url or set %s", settings.URLKey)
}
