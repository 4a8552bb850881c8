package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"lemoncrawl/internal/config"
)

var (
	configDir string
	logLevel  string
	replayDir string

	cfg config.Config
	log *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:           "lemoncrawl",
	Short:         "lemoncrawl archives Lemonbase performance reviews and one-on-one sessions as local files.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadConfig(configDir)
		if err != nil {
			return fmt.Errorf("error loading configuration: %w", err)
		}
		if logLevel != "" {
			loaded.LogLevel = logLevel
		}
		logger, err := newLogger(loaded)
		if err != nil {
			return err
		}
		cfg, log = loaded, logger

		log.WithFields(logrus.Fields{
			"config":   configDir,
			"base_url": cfg.BaseURL,
			"replay":   replayDir != "",
		}).Debug("Configuration loaded successfully")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "./configs", "directory holding config.yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level, overrides LOG_LEVEL")
	rootCmd.PersistentFlags().StringVar(&replayDir, "replay", "", "serve pages from a snapshot directory instead of a browser")
}

// Execute runs the CLI. SIGINT and SIGTERM cancel the command context, which stops
// the pipelines between items and lets deferred cleanup close the browser.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newLogger(c config.Config) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetLevel(level)
	l.SetFormatter(formatter(c.LogFormat, isTerminal(os.Stdout.Fd())))
	return l, nil
}

// formatter picks JSON for pipes and files, text for a terminal, unless LOG_FORMAT says otherwise.
func formatter(format string, tty bool) logrus.Formatter {
	switch format {
	case "json":
		return &logrus.JSONFormatter{}
	case "text":
		return &logrus.TextFormatter{FullTimestamp: true}
	}
	if tty {
		return &logrus.TextFormatter{FullTimestamp: true}
	}
	return &logrus.JSONFormatter{}
}

func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
