package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"parent-messenger/internal/app"
	"parent-messenger/internal/config"
	"parent-messenger/internal/logging"
)

// errIncomplete marks a batch that ran but did not reach everyone.
var errIncomplete = errors.New("batch finished with failed or skipped recipients")

type cli struct {
	configPath string
	logLevel   string
	jsonOut    bool
	out        io.Writer
}

func main() {
	root := newRootCmd(os.Stdout)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if errors.Is(err, errIncomplete) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}

	root := &cobra.Command{
		Use:   "notify",
		Short: "Send IA marks, circulars and notes to parents over WhatsApp or SMS",
		Long: `notify reads a student roster spreadsheet and messages every parent on it,
one at a time, through the configured provider.

Configuration comes from defaults, then the TOML file (--config or
$NOTIFY_CONFIG), then .env and the environment.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "TOML config file")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&c.jsonOut, "json", false, "print the report as JSON")

	root.AddCommand(
		c.iaMarksCmd(),
		c.circularCmd(),
		c.messageCmd(),
		c.previewCmd(),
		c.filesCmd(),
		c.migrateCmd(),
	)
	return root
}

func (c *cli) loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(c.configPath)
	if err != nil {
		return nil, nil, err
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func (c *cli) newApp() (*app.App, error) {
	cfg, log, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(cfg, log)
}
