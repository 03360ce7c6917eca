package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"StateHistory/backend"
	"StateHistory/config"
	"StateHistory/logging"
	"StateHistory/quarkdb"
	"StateHistory/types"
)

// cli carries the flags shared by every subcommand and what they resolve to.
type cli struct {
	configPath   string
	dbPath       string
	registryPath string
	logLevel     string

	cfg    config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "htree",
		Short: "Build and query state history trees",
		Long: `htree stores the states of named attributes over time in a history
tree file and answers point and range queries over it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", "", "YAML configuration file")
	flags.StringVar(&c.dbPath, "db", "", "history file, overrides backend.path")
	flags.StringVar(&c.registryPath, "registry", "", "attribute registry directory, overrides registry.path")
	flags.StringVar(&c.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		c.seedCmd(),
		c.ingestCmd(),
		c.queryCmd(),
		c.inspectCmd(),
		c.statsCmd(),
		c.shellCmd(),
	)
	return root
}

func (c *cli) load(cmd *cobra.Command) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.dbPath != "" {
		cfg.Backend.Path = c.dbPath
		cfg.Backend.InMemory = false
	}
	if c.registryPath != "" {
		cfg.Registry.Path = c.registryPath
		cfg.Registry.InMemory = false
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	lc := cfg.Logging()
	lc.Output = cmd.ErrOrStderr()
	c.logger = logging.New(lc)
	c.cfg = cfg
	return nil
}

// openBackend opens or creates the configured history.
func (c *cli) openBackend() (*backend.Backend, error) {
	return backend.Open(c.cfg.Backend, backend.Options{Logger: c.logger})
}

// openExisting opens a history that must already be on disk.
func (c *cli) openExisting() (*backend.Backend, error) {
	if !c.cfg.Backend.InMemory {
		if _, err := os.Stat(c.cfg.Backend.Path); err != nil {
			return nil, fmt.Errorf("%w: no history at %s", types.ErrConfig, c.cfg.Backend.Path)
		}
	}
	return c.openBackend()
}

func (c *cli) openRegistry() (*quarkdb.Registry, error) {
	return quarkdb.Open(quarkdb.Config{
		Path:     c.cfg.Registry.Path,
		InMemory: c.cfg.Registry.InMemory,
		Logger:   c.logger,
	})
}

// withHistory opens an existing history and the registry for fn.
func (c *cli) withHistory(fn func(s *session) error) error {
	b, err := c.openExisting()
	if err != nil {
		return err
	}
	defer b.Close()

	reg, err := c.openRegistry()
	if err != nil {
		return err
	}
	defer reg.Close()

	return fn(&session{b: b, reg: reg})
}
