package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tchan1002/apache/pkg/config"
	"github.com/tchan1002/apache/pkg/logger"
	"github.com/tchan1002/apache/pkg/metrics"
)

// env holds what every subcommand needs once flags and config are resolved.
type env struct {
	v        *viper.Viper
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

// flagKeys maps persistent flags to the config keys they override.
var flagKeys = map[string]string{
	"api-base":      "PATHFINDER_API_BASE",
	"state-backend": "STATE_BACKEND",
	"sqlite-path":   "SQLITE_PATH",
	"chrome":        "CHROME_DEBUGGER_URL",
	"log-level":     "LOG_LEVEL",
	"log-format":    "LOG_FORMAT",
}

func newRootCmd() *cobra.Command {
	e := &env{v: viper.New()}

	root := &cobra.Command{
		Use:           "sherpa",
		Short:         "Scout documentation sites and ask questions about them",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if e.logger != nil {
				_ = e.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.String("api-base", "", "Pathfinder API base URL")
	flags.String("state-backend", "", "site state store: memory, sqlite, redis or postgres")
	flags.String("sqlite-path", "", "path of the sqlite state database")
	flags.String("chrome", "", "Chrome DevTools URL, e.g. http://127.0.0.1:9222")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("log-format", "", "log format: json or console")

	root.AddCommand(
		newCheckCmd(e),
		newScoutCmd(e),
		newAskCmd(e),
		newFeedbackCmd(e),
		newResultsCmd(e),
		newServeCmd(e),
		newWatchCmd(e),
	)
	return root
}

func (e *env) init(cmd *cobra.Command) error {
	for name, key := range flagKeys {
		// Only flags the user actually set override env and defaults.
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			if err := e.v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}
	if f := cmd.Flags().Lookup("port"); f != nil && f.Changed {
		if err := e.v.BindPFlag("SERVER_PORT", f); err != nil {
			return err
		}
	}

	cfg, err := config.Load(e.v)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	e.cfg = cfg
	e.logger = log
	e.registry = prometheus.NewRegistry()
	e.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	e.metrics = metrics.New(e.registry)
	return nil
}
