package cli

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/watzon/clickloop/internal/config"
)

// version is set at build time with -ldflags "-X".
var version = "dev"

var (
	cfgFile    string
	verbose    bool
	statusAddr string
	dbPath     string

	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "clickloop",
	Short: "Record, schedule and replay input action lists",
	Long: `clickloop replays recorded click and key sequences.

Action lists are replayed in full cycles ordered by sequence, with per-list
repeat counts and cooldown intervals. Cron jobs bind a list to a time of day
and fire once per matching minute.

Replay a file of lists:
  clickloop replay lists.json --repeat-all

Run the time-of-day scheduler:
  clickloop cron run jobs.json --status-addr 127.0.0.1:8787`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(config.LoadOptions{ConfigFile: cfgFile})
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("status-addr") {
			loaded.Status.Enabled = true
			loaded.Status.Addr = statusAddr
		}
		if cmd.Flags().Changed("db") {
			loaded.Database.Path = dbPath
		}
		cfg = loaded

		setupLogging(&cfg.Logging)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./clickloop.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&statusAddr, "status-addr", "", "serve status, metrics and events on this address")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to the history database")
}

// setupLogging configures zerolog from the logging section and --verbose.
func setupLogging(lc *config.LoggingConfig) {
	level, err := zerolog.ParseLevel(lc.Level)
	if err != nil || lc.Level == "" {
		level = zerolog.InfoLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	var logger zerolog.Logger
	if lc.Format == "json" {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{
			Out:     os.Stderr,
			NoColor: !isatty.IsTerminal(os.Stderr.Fd()),
		})
	}

	ctx := logger.With().Timestamp()
	if lc.Caller {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger()
}

// AddCommand adds a command to the root command.
func AddCommand(cmd *cobra.Command) {
	rootCmd.AddCommand(cmd)
}

// Version returns the version string.
func Version() string {
	v := version
	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
			v = info.Main.Version
		}
	}
	return fmt.Sprintf("clickloop version %s", v)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
