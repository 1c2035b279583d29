package serve

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"golang.org/x/sync/errgroup"

	"github.com/sig-0/cnbrates/cmd/env"
	"github.com/sig-0/cnbrates/ingest"
	"github.com/sig-0/cnbrates/metrics"
	"github.com/sig-0/cnbrates/provider/cnb"
	"github.com/sig-0/cnbrates/rates"
	"github.com/sig-0/cnbrates/server"
	"github.com/sig-0/cnbrates/server/config"
)

// serveCfg wraps the serve configuration
type serveCfg struct {
	config *config.Config

	configPath string
	debug      bool
}

// NewServeCmd creates the serve command
func NewServeCmd() *ffcli.Command {
	cfg := &serveCfg{
		config: config.DefaultConfig(),
	}

	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfg.registerFlags(fs)

	return &ffcli.Command{
		Name:       "serve",
		ShortUsage: "serve [flags]",
		LongHelp:   "Serves the cnbrates API, keeping the CNB fixings fresh in the background",
		FlagSet:    fs,
		Exec:       cfg.exec,
		Options: []ff.Option{
			// Allow using ENV variables
			ff.WithEnvVars(),
			ff.WithEnvVarPrefix(env.Prefix),
		},
	}
}

func (c *serveCfg) registerFlags(fs *flag.FlagSet) {
	fs.StringVar(
		&c.config.ListenAddress,
		"listen",
		config.DefaultListenAddress,
		"the IP:PORT URL for the server",
	)

	fs.StringVar(
		&c.config.Source.BaseURL,
		"source-url",
		config.DefaultSourceURL,
		"the base URL of the CNB exchange rate fixing feeds",
	)

	fs.IntVar(
		&c.config.Source.TimeoutSeconds,
		"timeout",
		config.DefaultTimeout,
		"the CNB feed request timeout, in seconds",
	)

	fs.IntVar(
		&c.config.Source.RefreshIntervalSeconds,
		"refresh-interval",
		config.DefaultRefreshInterval,
		"how often today's fixing is refreshed, in seconds",
	)

	fs.StringVar(
		&c.configPath,
		"config",
		"",
		"the path to the server TOML configuration, if any",
	)

	fs.BoolVar(
		&c.debug,
		"debug",
		false,
		"flag indicating if debug logs should be enabled",
	)
}

// exec executes the serve command
func (c *serveCfg) exec(ctx context.Context, _ []string) error {
	// Read the server configuration, if any
	if c.configPath != "" {
		serverCfg, err := config.Read(c.configPath)
		if err != nil {
			return fmt.Errorf("unable to read server config, %w", err)
		}

		c.config = serverCfg
	}

	level := slog.LevelInfo
	if c.debug {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	// Validate early, the server does it again on creation
	if err := config.ValidateConfig(c.config); err != nil {
		return fmt.Errorf("invalid configuration, %w", err)
	}

	source := c.config.Source

	client, err := cnb.NewClient(
		source.BaseURL,
		time.Duration(source.TimeoutSeconds)*time.Second,
	)
	if err != nil {
		return fmt.Errorf("unable to create CNB client, %w", err)
	}

	m := metrics.New()

	service := rates.New(
		client,
		rates.WithLogger(logger.With("module", "rates")),
		rates.WithMetrics(m),
	)

	// Set up the background jobs.
	// The year job runs on boot, warming up the current year
	refreshInterval := time.Duration(source.RefreshIntervalSeconds) * time.Second

	orchestrator := ingest.New(
		ingest.WithLogger(logger.With("module", "ingest")),
		ingest.WithQueryInterval(time.Second*5),
		ingest.WithMetrics(m),
	)

	for _, job := range []ingest.Job{
		ingest.NewYearJob(service, refreshInterval),
		ingest.NewDailyJob(service, refreshInterval),
	} {
		if err = orchestrator.Register(job); err != nil {
			return fmt.Errorf("unable to register job %s, %w", job.Name(), err)
		}
	}

	s, err := server.New(
		service,
		server.WithLogger(logger),
		server.WithConfig(c.config),
		server.WithMetricsHandler(m.Handler()),
	)
	if err != nil {
		return fmt.Errorf("unable to create server, %w", err)
	}

	runCtx, cancelFn := signal.NotifyContext(
		ctx,
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer cancelFn()

	group, gCtx := errgroup.WithContext(runCtx)

	group.Go(func() error {
		return s.Serve(gCtx)
	})

	group.Go(func() error {
		return orchestrator.Start(gCtx)
	})

	if len(source.PreloadYears) > 0 {
		group.Go(func() error {
			if err := service.Preload(gCtx, source.PreloadYears...); err != nil {
				// Unavailable years are fetched again on demand
				logger.Warn(
					"unable to preload exchange rates",
					"years", source.PreloadYears,
					"err", err,
				)

				return nil
			}

			logger.Info(
				"preloaded exchange rates",
				"years", source.PreloadYears,
			)

			return nil
		})
	}

	return group.Wait()
}
