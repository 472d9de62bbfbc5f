/*
main.go - Application entry point

PURPOSE:
  Cobra root for the routine engine. Loads configuration, builds the
  engine graph and hands it to the subcommands.

COMMANDS:
  serve     Run the HTTP API (default when no subcommand is given)
  streak    Print a user's current streak
  summary   Print a user's weekly completion matrix

FLAGS (override config file and environment):
  --config   YAML config path
  --port     HTTP server port
  --db       SQLite database path (":memory:" for in-memory)
  --redis    Redis address for distributed locks (empty: in-process)
  --tz       IANA timezone for day boundaries

EXAMPLES:
  ./server serve --db ./data/routines.db
  ./server streak user-alice
  ./server summary user-alice --type finance

SEE ALSO:
  - config/config.go: Defaults and environment variables
  - factory/engine.go: Object graph
  - api/server.go: Router configuration
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/warp/routine-engine/config"
	"github.com/warp/routine-engine/factory"
	"github.com/warp/routine-engine/logger"
)

var (
	configPath string
	flagPort   int
	flagDB     string
	flagRedis  string
	flagTZ     string
)

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Routine tracking and reward engine",
	Long: `Tracks routine completion, computes streaks and weekly summaries,
resolves group consensus, and pays out rewards exactly once.

  $ server serve                    # run the HTTP API
  $ server streak user-alice        # current streak
  $ server summary user-alice       # this week's matrix`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "YAML config file")
	pf.IntVar(&flagPort, "port", 0, "HTTP server port")
	pf.StringVar(&flagDB, "db", "", "SQLite database path")
	pf.StringVar(&flagRedis, "redis", "", "Redis address for distributed locks")
	pf.StringVar(&flagTZ, "tz", "", "timezone for day boundaries")

	rootCmd.AddCommand(serveCmd, streakCmd, summaryCmd)
}

// loadConfig applies flags on top of file and environment.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = flagPort
	}
	if flags.Changed("db") {
		cfg.DBPath = flagDB
	}
	if flags.Changed("redis") {
		cfg.RedisAddr = flagRedis
	}
	if flags.Changed("tz") {
		cfg.Timezone = flagTZ
	}
	return cfg, cfg.Validate()
}

// openEngine loads config, a logger and the engine graph.
func openEngine(cmd *cobra.Command) (*factory.Engine, config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, cfg, fmt.Errorf("config: %w", err)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, cfg, fmt.Errorf("logger: %w", err)
	}
	eng, err := factory.Build(cfg, log)
	if err != nil {
		return nil, cfg, err
	}
	return eng, cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
