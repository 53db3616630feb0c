package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/pit"
	"github.com/bft-labs/pit/internal/cliconfig"
	"github.com/bft-labs/pit/pkg/log"
)

const longHelp = `Keep a search index in step with a Fedora repository.

pit listens for repository change notifications on a STOMP queue, fetches
each changed object as JSON-LD and writes a search document into a
versioned index behind an alias. "pit reindex" rebuilds a whole collection
into a fresh version and switches the alias over in one step.`

var exampleUsage = strings.TrimSpace(`
  pit run --broker-host mq.example.edu --index-url http://localhost:9200
  pit run --broker-url ws://mq.example.edu:61614/stomp --index-backend bleve --index-dir /var/lib/pit
  pit reindex http://repo.example.edu/rest/theses --concurrency 20
  pit search --index-backend bleve --index-dir /var/lib/pit "climate"
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// cli carries the config shared by every subcommand.
type cli struct {
	cfg     cliconfig.Config
	cfgPath string
	logger  *log.ZerologAdapter
}

func main() {
	c := &cli{cfg: cliconfig.DefaultConfig()}
	c.logger = log.NewZerologAdapter(log.Options{Level: c.cfg.LogLevel})

	root := &cobra.Command{
		Use:           "pit",
		Short:         "Index repository objects announced on a STOMP queue",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.cfgPath, "config", "", "path to config file (default: $HOME/.pit/config.toml)")
	pf.StringVar(&c.cfg.IndexBackend, "index-backend", c.cfg.IndexBackend, "index backend: elastic or bleve")
	pf.StringVar(&c.cfg.IndexURL, "index-url", c.cfg.IndexURL, "Elasticsearch base URL")
	pf.StringVar(&c.cfg.IndexDir, "index-dir", c.cfg.IndexDir, "bleve data directory (empty keeps indices in memory)")
	pf.StringVar(&c.cfg.IndexName, "index-name", c.cfg.IndexName, "index alias")
	pf.StringVar(&c.cfg.RepoRewriteHost, "repo-rewrite-host", c.cfg.RepoRewriteHost, "host[:port] to fetch repository resources from")
	pf.StringVar(&c.cfg.LogLevel, "log-level", c.cfg.LogLevel, "log level: debug, info, warn, error")
	pf.BoolVar(&c.cfg.LogJSON, "log-json", c.cfg.LogJSON, "log JSON lines instead of console output")

	root.AddCommand(c.runCmd(), c.reindexCmd(), c.searchCmd(), c.versionsCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		c.logger.Error("pit", log.Err(err))
		os.Exit(1)
	}
}

// load applies file, then environment, then flags, and rebuilds the logger.
func (c *cli) load(cmd *cobra.Command) error {
	cfgFile := c.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}
	c.cfgPath = cfgFile

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(&c.cfg, fc, changed); err != nil {
			return err
		}
	}
	if err := cliconfig.ApplyEnvConfig(&c.cfg, changed); err != nil {
		return err
	}
	if err := c.cfg.Validate(); err != nil {
		return err
	}

	c.logger = log.NewZerologAdapter(log.Options{Level: c.cfg.LogLevel, JSON: c.cfg.LogJSON})
	c.logger.Debug("configuration", log.Any("config", c.cfg.Redacted()))
	return nil
}

func (c *cli) service(ctx context.Context, opts ...pit.Option) (*pit.Service, error) {
	opts = append([]pit.Option{pit.WithLogger(c.logger)}, opts...)
	return pit.New(ctx, c.cfg, opts...)
}

func (c *cli) runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Index notifications from the broker until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := c.service(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			if cliconfig.FileExists(c.cfgPath) {
				w := &cliconfig.LevelWatcher{
					Path:     c.cfgPath,
					SetLevel: c.logger.SetLevel,
					Logger:   c.logger,
				}
				go func() {
					if err := w.Run(ctx); err != nil {
						c.logger.Warn("config watcher disabled", log.Err(err))
					}
				}()
			}

			c.logger.Info("starting worker",
				log.String("queue", c.cfg.Queue),
				log.String("index", c.cfg.IndexName),
				log.String("backend", c.cfg.IndexBackend),
			)
			if err := svc.Run(ctx); err != nil {
				return err
			}
			c.logger.Info("worker stopped")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&c.cfg.BrokerHost, "broker-host", c.cfg.BrokerHost, "STOMP broker host")
	f.IntVar(&c.cfg.BrokerPort, "broker-port", c.cfg.BrokerPort, "STOMP broker port")
	f.StringVar(&c.cfg.BrokerURL, "broker-url", c.cfg.BrokerURL, "STOMP over WebSocket URL (replaces host and port)")
	f.StringVar(&c.cfg.BrokerLogin, "broker-login", c.cfg.BrokerLogin, "STOMP login")
	f.StringVar(&c.cfg.BrokerPasscode, "broker-passcode", c.cfg.BrokerPasscode, "STOMP passcode")
	f.StringVar(&c.cfg.Queue, "queue", c.cfg.Queue, "queue to subscribe to")
	f.StringVar(&c.cfg.MetricsAddr, "metrics-addr", c.cfg.MetricsAddr, "address to serve /metrics on (disabled when empty)")
	f.Float64Var(&c.cfg.FetchRate, "fetch-rate", c.cfg.FetchRate, "maximum repository requests per second (0 is unlimited)")
	f.DurationVar(&c.cfg.ConnectTimeout, "connect-timeout", c.cfg.ConnectTimeout, "broker connect timeout")
	f.DurationVar(&c.cfg.Heartbeat, "heartbeat", c.cfg.Heartbeat, "heartbeat interval requested from the broker")
	f.Float64Var(&c.cfg.HeartbeatGrace, "heartbeat-grace", c.cfg.HeartbeatGrace, "missed-heartbeat multiplier before giving up")
	f.DurationVar(&c.cfg.ShutdownTimeout, "shutdown-timeout", c.cfg.ShutdownTimeout, "time to wait for in-flight documents on shutdown")
	return cmd
}

func (c *cli) reindexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reindex <collection>",
		Short: "Rebuild the index from a collection and switch the alias to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := c.service(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			report, version, err := svc.Reindex(ctx, args[0], c.cfg.Concurrency)
			if err != nil {
				return err
			}
			c.logger.Info("finished indexing collection",
				log.String("version", version),
				log.Int("indexed", len(report.Indexed)),
				log.Int("failed", len(report.Failed)),
			)
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&c.cfg.Concurrency, "concurrency", c.cfg.Concurrency, "documents fetched and indexed at once")
	f.Float64Var(&c.cfg.FetchRate, "fetch-rate", c.cfg.FetchRate, "maximum repository requests per second (0 is unlimited)")
	return cmd
}

func (c *cli) searchCmd() *cobra.Command {
	var size int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a match query against the index alias",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := c.service(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			res, err := svc.Search(ctx, strings.Join(args, " "), size)
			if errors.Is(err, pit.ErrSearchUnsupported) {
				return fmt.Errorf("%w (index-backend %s)", err, c.cfg.IndexBackend)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d hits\n", res.Total)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, hit := range res.Hits {
				fmt.Fprintf(tw, "%.3f\t%s\n", hit.Score, hit.ID)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&size, "size", 10, "maximum hits to print")
	return cmd
}

func (c *cli) versionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "versions",
		Short: "List the index versions bound to the alias",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := c.service(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			versions, err := svc.Versions(ctx)
			if err != nil {
				return err
			}
			for _, v := range versions {
				fmt.Fprintln(cmd.OutOrStdout(), v)
			}
			return nil
		},
	}
}
