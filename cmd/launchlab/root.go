package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"solana-dao-lab/internal/config"
	"solana-dao-lab/internal/logging"
)

// app carries state shared by every subcommand once flags are parsed.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:   "launchlab",
		Short: "DAO launch escrow and timelock ledger",
		Long: `launchlab runs the launch escrow and timelock programs on a local ledger.

Settings come from defaults, an optional YAML file (--config),
LAUNCHLAB_* environment variables and flags, in increasing priority.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "path to a YAML config file")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	a.bind(flags, config.KeyLogLevel, "log-level")

	root.AddCommand(
		newServeCmd(a),
		newSimulateCmd(a),
		newCheckMintCmd(a),
	)
	return root
}

// bind ties a flag to a viper key so explicit flags override file and env values.
func (a *app) bind(flags *pflag.FlagSet, key, name string) {
	if err := a.v.BindPFlag(key, flags.Lookup(name)); err != nil {
		panic(err)
	}
}

func (a *app) load() error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}
