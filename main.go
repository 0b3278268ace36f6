package main

import (
	"context"
	"dspgend/config"
	"dspgend/executor"
	"dspgend/handler"
	"dspgend/logging"
	"dspgend/manager"
	"dspgend/metrics"
	"dspgend/server"
	"fmt"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"
	"os"
	"os/signal"
	"syscall"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

// device is the execution slot shared by every route; dspgen drives a single DSP board.
const device = "dspgen"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var cliArgs *config.CliConfig

	root := &cobra.Command{
		Use:           "dspgend",
		Short:         "HTTP front end for the dspgen signal generator",
		Long:          "dspgend listens for POST /dspgen/f<hz> and /dspgen/a<amplitude> and runs dspgen with the matching flag.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, cfg, err := loadConfig(cmd, cliArgs)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, v, cfg)
		},
	}
	cliArgs = config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(&cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, cfg, err := loadConfig(cmd, cliArgs)
			if err != nil {
				return err
			}
			return cfg.Dump(cmd.OutOrStdout())
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dspgend %s\n", Version)
		},
	})

	return root
}

func loadConfig(cmd *cobra.Command, cliArgs *config.CliConfig) (*viper.Viper, *config.Config, error) {
	log := logging.GetLogger()
	v := config.New()
	if err := config.BindFlags(v, cmd.Root().PersistentFlags()); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(v, cliArgs.ConfigFile)
	if err != nil {
		log.Errorf("Failed to load config: %v", err)
		return nil, nil, err
	}
	level, err := logging.ParseLevel(cfg.LogLevel, cliArgs.Debug)
	if err != nil {
		log.Errorln(err)
		return nil, nil, err
	}
	logging.InitLogger(level, cfg.LogFormat)
	if used := v.ConfigFileUsed(); used != "" {
		log.Debugf("Loaded config from %s", used)
	}
	return v, cfg, nil
}

func serve(ctx context.Context, v *viper.Viper, cfg *config.Config) error {
	log := logging.GetLogger()

	program, err := executor.NewProgram(cfg.Program, cfg.ExecTimeout)
	if err != nil {
		log.Errorln(err)
		return err
	}
	log.Infof("Using port %s and program %s", cfg.ListenAddress, executor.CommandLine(program.Command()))

	prom := metrics.New()
	slots := manager.NewConcurrencyManager(map[string]int{device: cfg.Concurrency}, cfg.Concurrency, cfg.QueueTimeout, prom)
	defer slots.Shutdown()

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}

	dispatcher := handler.NewDispatcher(handler.NewSettings(cfg, device), program, slots, prom, limiter)
	if config.Watch(v, func(updated *config.Config, err error) {
		if err != nil {
			log.Errorf("Ignoring config change: %v", err)
			return
		}
		dispatcher.Update(handler.NewSettings(updated, device))
	}) {
		log.Infof("Watching %s for changes", v.ConfigFileUsed())
	}

	srv := server.New(cfg.ListenAddress, handler.NewMux(dispatcher, prom, cfg.Metrics), cfg.ShutdownTimeout)
	if err := srv.Run(ctx); err != nil {
		log.Errorf("Server failed: %v", err)
		return err
	}
	return nil
}
