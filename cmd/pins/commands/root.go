// Package commands implements the pins command line interface.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.trai.ch/zerr"

	"github.com/git-pkgs/pins/client"
	"github.com/git-pkgs/pins/fetch"
	"github.com/git-pkgs/pins/internal/config"
	"github.com/git-pkgs/pins/internal/core"
	"github.com/git-pkgs/pins/internal/logger"
	"github.com/git-pkgs/pins/internal/pypi"
	"github.com/git-pkgs/pins/internal/tahoe"
	"github.com/git-pkgs/pins/stage"
)

// Build information, set with -ldflags at release time.
var (
	Version = "dev"
	Commit  = "none"
)

// ErrAuditFailed is returned by check when a pinned digest disagrees with upstream.
var ErrAuditFailed = errors.New("pinned digests disagree with upstream")

// CLI represents the pins command line interface.
type CLI struct {
	rootCmd *cobra.Command
	v       *viper.Viper
	cfgFile string

	cfg    *config.Config
	logger *slog.Logger
	table  core.Table

	tableOverride core.Table
}

// Option configures a CLI.
type Option func(*CLI)

// WithTable makes every command use t instead of the registered table.
func WithTable(t core.Table) Option {
	return func(c *CLI) {
		c.tableOverride = t
	}
}

// New creates a new CLI instance.
func New(opts ...Option) *CLI {
	rootCmd := &cobra.Command{
		Use:           "pins",
		Short:         "Pinned source versions for packaging pipelines",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	c := &CLI{
		rootCmd: rootCmd,
		v:       config.New(),
	}
	for _, opt := range opts {
		opt(c)
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&c.cfgFile, "config", "c", "", "config file (default $XDG_CONFIG_HOME/pins/config.yaml)")
	flags.String("package", "", "package whose table to use")
	flags.String("dev-source", "", "path of the development checkout")
	flags.String("cache-dir", "", "directory for verified archives")
	flags.String("log-level", "", "debug, info, warn or error")
	_ = c.v.BindPFlag("package", flags.Lookup("package"))
	_ = c.v.BindPFlag("dev_source", flags.Lookup("dev-source"))
	_ = c.v.BindPFlag("cache_dir", flags.Lookup("cache-dir"))
	_ = c.v.BindPFlag("log_level", flags.Lookup("log-level"))

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return c.setup(cmd.ErrOrStderr())
	}

	rootCmd.AddCommand(c.newListCmd())
	rootCmd.AddCommand(c.newShowCmd())
	rootCmd.AddCommand(c.newRenderVersionCmd())
	rootCmd.AddCommand(c.newFetchCmd())
	rootCmd.AddCommand(c.newStageCmd())
	rootCmd.AddCommand(c.newCheckCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

func (c *CLI) setup(stderr io.Writer) error {
	cfg, err := config.Load(c.v, c.cfgFile)
	if err != nil {
		return zerr.Wrap(err, "failed to load configuration")
	}
	level, _ := logger.ParseLevel(cfg.LogLevel)
	c.cfg = cfg
	c.logger = logger.New(stderr, level)

	if c.tableOverride != nil {
		c.table = c.tableOverride
		return nil
	}
	t, err := core.New(cfg.Package, cfg.DevSource)
	if err != nil {
		return zerr.With(err, "package", cfg.Package)
	}
	if tt, ok := t.(*tahoe.Table); ok && cfg.Mirror != "" {
		t = tt.WithMirror(cfg.Mirror)
	}
	c.table = t
	return nil
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}

// Logger returns the logger configured for the last run, or a discarding one.
func (c *CLI) Logger() *slog.Logger {
	if c.logger == nil {
		return logger.Discard()
	}
	return c.logger
}

func (c *CLI) httpClient() *client.Client {
	return client.NewClient(
		client.WithTimeout(c.cfg.Timeout),
		client.WithMaxRetries(c.cfg.MaxRetries),
	).WithUserAgent(c.cfg.UserAgent)
}

func (c *CLI) upstream() *pypi.Registry {
	return pypi.New(c.cfg.PyPIURL, c.httpClient())
}

// archiver builds the fetch stack. The returned func releases its resources.
func (c *CLI) archiver() (*fetch.Archiver, func(), error) {
	dir, err := filepath.Abs(c.cfg.CacheDir)
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, zerr.With(zerr.Wrap(err, "failed to create cache directory"), "cache_dir", dir)
	}

	f := fetch.NewFetcher(
		fetch.WithUserAgent(c.cfg.UserAgent),
		fetch.WithMaxRetries(c.cfg.MaxRetries),
		fetch.WithTimeout(c.cfg.Timeout),
		fetch.WithLogger(c.logger),
	)
	cb := fetch.NewCircuitBreakerFetcher(f,
		fetch.WithTripThreshold(c.cfg.BreakerThreshold),
		fetch.WithCooldown(c.cfg.BreakerCooldown),
		fetch.WithBreakerLogger(c.logger),
	)

	resolver := fetch.NewResolver(c.table.URLs(), c.upstream())
	return fetch.NewArchiver(cb, resolver, dir, c.logger), f.Close, nil
}

func (c *CLI) lookup(label string) (*core.Descriptor, error) {
	d, err := core.Lookup(c.table, label)
	if err != nil {
		return nil, fmt.Errorf("%w (try 'pins list')", err)
	}
	return d, nil
}

func (c *CLI) stager() (*stage.Stager, func(), error) {
	a, closeFn, err := c.archiver()
	if err != nil {
		return nil, nil, err
	}
	return stage.New(a, c.logger), closeFn, nil
}
