package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/tracebeacon"
	"github.com/bft-labs/tracebeacon/internal/adapters/ids"
	"github.com/bft-labs/tracebeacon/internal/adapters/metrics"
	"github.com/bft-labs/tracebeacon/internal/cliconfig"
	"github.com/bft-labs/tracebeacon/internal/collector"
	"github.com/bft-labs/tracebeacon/internal/domain"
	"github.com/bft-labs/tracebeacon/internal/replay"
	"github.com/bft-labs/tracebeacon/pkg/log"
)

const longHelp = `tracebeacon records client-side telemetry as causally linked events
and ships them to a beacon in batches.

Commands:
  collect  run a development beacon that logs every event it receives
  replay   drive the aggregator from a JSON-lines command file

Configuration is read from $HOME/.tracebeacon/config.toml, TRACEBEACON_*
environment variables and flags, in increasing order of precedence.`

var exampleUsage = strings.TrimSpace(`
  tracebeacon collect --addr :8787
  tracebeacon replay session.jsonl --beacon-url http://localhost:8787/beacon
  tracebeacon replay session.jsonl --follow --method GET
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:           "tracebeacon",
		Short:         "Client-side telemetry aggregator and beacon tools",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, &cfg, cfgPath)
		},
	}

	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.tracebeacon/config.toml)")
	root.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")

	root.AddCommand(newCollectCmd(&cfg), newReplayCmd(&cfg), newVersionCmd())

	if err := root.Execute(); err != nil {
		logger := cliconfig.Logger(cfg.LogLevel)
		logger.Error().Err(err).Msg("tracebeacon")
		os.Exit(1)
	}
}

// loadConfig layers file and environment values under the flags that were
// set explicitly, then validates the result.
func loadConfig(cmd *cobra.Command, cfg *cliconfig.Config, cfgPath string) error {
	cfgFile := cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(cfg, fc, changed); err != nil {
			return err
		}
	} else if cfgPath != "" {
		return fmt.Errorf("config file %s not found", cfgPath)
	}

	if err := cliconfig.ApplyEnvConfig(cfg, changed); err != nil {
		return err
	}
	return cfg.Validate()
}

func newCollectCmd(cfg *cliconfig.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Run a development beacon that logs received events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			zl := cliconfig.Logger(cfg.LogLevel)
			logger := log.NewZerologAdapterWithLogger(zl)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := collector.NewServer(collector.Config{
				Addr:       cfg.CollectAddr,
				BeaconPath: cfg.BeaconPath,
			}, logger, metrics.New(), func(ev domain.Event) {
				printEvent(zl, ev)
			})
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&cfg.CollectAddr, "addr", cfg.CollectAddr, "listen address")
	cmd.Flags().StringVar(&cfg.BeaconPath, "path", cfg.BeaconPath, "path accepting batches")
	return cmd
}

// printEvent writes one received event at debug level with every field.
func printEvent(zl zerolog.Logger, ev domain.Event) {
	e := zl.Debug()
	if !e.Enabled() {
		return
	}
	for k, v := range ev {
		e = e.Interface(k, v)
	}
	e.Msg("event")
}

func newReplayCmd(cfg *cliconfig.Config) *cobra.Command {
	var (
		follow bool
		seed   uint32
	)

	cmd := &cobra.Command{
		Use:   "replay FILE",
		Short: "Drive the aggregator from a JSON-lines command file",
		Long: `Reads one JSON command per line and applies it to an aggregator that
sends to --beacon-url. Ops: session, action, span, end, ready, error,
request, response, flush. Use "-" to read stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.NewZerologAdapterWithLogger(cliconfig.Logger(cfg.LogLevel))

			opts := []tracebeacon.Option{tracebeacon.WithLogger(logger)}
			if seed != 0 {
				opts = append(opts, tracebeacon.WithIDGenerator(ids.NewSequenceGenerator(seed)))
			}
			client, err := tracebeacon.New(clientConfig(*cfg), opts...)
			if err != nil {
				return fmt.Errorf("create client: %w", err)
			}
			defer client.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runner := replay.NewRunner(client, logger)
			path := args[0]
			switch {
			case path == "-":
				err = runner.Run(ctx, os.Stdin)
			case follow:
				err = runner.Follow(ctx, path)
			default:
				err = runFile(ctx, runner, path)
			}
			if err != nil && ctx.Err() == nil {
				return err
			}

			logger.Info("replay finished",
				log.Int("commands", runner.Applied()),
				log.Int("pending", len(client.PendingEvents())),
				log.Bool("sending", client.IsSending()),
			)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.BeaconURL, "beacon-url", cfg.BeaconURL, "beacon endpoint")
	f.StringVar(&cfg.Method, "method", cfg.Method, "POST (count batches) or GET (length batches)")
	f.BoolVar(&cfg.DisableSending, "disable-sending", cfg.DisableSending, "discard events instead of sending")
	f.BoolVar(&cfg.SendDeferred, "deferred", cfg.SendDeferred, "send batches off the caller's goroutine")
	f.DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "HTTP timeout per batch")
	f.IntVar(&cfg.MinEvents, "min-events", cfg.MinEvents, "minimum events per POST batch")
	f.IntVar(&cfg.MaxEvents, "max-events", cfg.MaxEvents, "maximum events per POST batch")
	f.IntVar(&cfg.MinLength, "min-length", cfg.MinLength, "minimum URL length per GET batch")
	f.IntVar(&cfg.MaxLength, "max-length", cfg.MaxLength, "maximum URL length per GET batch")
	f.StringSliceVar(&cfg.KeysToIgnore, "ignore-keys", cfg.KeysToIgnore, "extra event keys never sent (globs allowed)")
	f.IntVar(&cfg.ErrorLimit, "error-limit", cfg.ErrorLimit, "errors recorded per session")
	f.IntVar(&cfg.StackLimit, "stack-limit", cfg.StackLimit, "stack lines kept per error")
	f.StringVar(&cfg.IgnoreStack, "ignore-stack", cfg.IgnoreStack, "regexp of stack lines to drop")
	f.DurationVar(&cfg.FlushInterval, "flush-interval", cfg.FlushInterval, "force a flush this often (0 = off)")
	f.BoolVar(&cfg.DedupComponentReady, "dedup-ready", cfg.DedupComponentReady, "record one component-ready per hierarchy and session")
	f.BoolVar(&follow, "follow", false, "keep reading as the file grows")
	f.Uint32Var(&seed, "seed", 0, "use reproducible ids derived from seed")
	return cmd
}

// clientConfig maps CLI settings onto the library configuration.
func clientConfig(c cliconfig.Config) tracebeacon.Config {
	cfg := tracebeacon.DefaultConfig()
	cfg.BeaconURL = c.BeaconURL
	cfg.Method = c.Method
	cfg.DisableSending = c.DisableSending
	cfg.SendSync = !c.SendDeferred
	cfg.HTTPTimeout = c.HTTPTimeout
	cfg.MinNumberOfEvents = c.MinEvents
	cfg.MaxNumberOfEvents = c.MaxEvents
	cfg.MinLength = c.MinLength
	cfg.MaxLength = c.MaxLength
	cfg.KeysToIgnore = append(cfg.KeysToIgnore, c.KeysToIgnore...)
	cfg.ErrorLimit = c.ErrorLimit
	cfg.StackLimit = c.StackLimit
	cfg.IgnoreStackMatcher = c.IgnoreStackMatcher()
	cfg.FlushInterval = c.FlushInterval
	cfg.DedupComponentReady = c.DedupComponentReady
	return cfg
}

func runFile(ctx context.Context, runner *replay.Runner, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return runner.Run(ctx, f)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tracebeacon %s %s/%s\n", getVersion(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
