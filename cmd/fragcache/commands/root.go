// Package commands implements the fragcache CLI.
package commands

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/IvanBrykalov/fragcache/internal/config"
	"github.com/IvanBrykalov/fragcache/internal/logger"
)

// CLI is the fragcache command tree.
type CLI struct {
	rootCmd *cobra.Command
	envFile string
}

// New builds the command tree.
func New() *CLI {
	c := &CLI{}
	c.rootCmd = &cobra.Command{
		Use:           "fragcache",
		Short:         "Cached server-rendered UI fragments",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	c.rootCmd.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "dotenv file read before the environment")

	c.rootCmd.AddCommand(c.newServeCmd(), c.newRenderCmd(), c.newSampleCmd(), c.newBenchCmd())
	return c
}

// Execute runs the command tree with ctx.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs overrides os.Args. Used for testing.
func (c *CLI) SetArgs(args []string) { c.rootCmd.SetArgs(args) }

// SetOutput sets the output and error streams.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}

// setup loads configuration and builds the logger, which writes to the
// command's error stream so stdout stays free for rendered output.
func (c *CLI) setup(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(c.envFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	format, err := logger.ParseFormat(cfg.LogFormat)
	if err != nil {
		return config.Config{}, nil, err
	}
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	log := logger.New(
		logger.WithOutput(cmd.ErrOrStderr()),
		logger.WithFormat(format),
		logger.WithLevel(level),
		logger.WithAttr(slog.String("service", "fragcache")),
		logger.WithContextValue("request_id", requestIDKey),
	)
	return cfg, log, nil
}

// SetInput sets the input stream.
func (c *CLI) SetInput(in io.Reader) { c.rootCmd.SetIn(in) }
