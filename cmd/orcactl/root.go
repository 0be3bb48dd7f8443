package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-smellie/config"
	"github.com/arloliu/go-smellie/logger"
)

type rootOptions struct {
	configPath string
	logLevel   string
	dev        bool

	stdout io.Writer
	stderr io.Writer
}

// execute runs orcactl with args and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
	}

	return exitCode(err)
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{stdout: stdout, stderr: stderr}

	cmd := &cobra.Command{
		Use:           "orcactl",
		Short:         "Drive the SMELLIE laser calibration controller",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return withExitCode(exitInvalidConfig, err)
	})

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "TOML configuration file (defaults apply when omitted)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug|info|warn|error")
	cmd.PersistentFlags().BoolVar(&opts.dev, "dev", false, "Human readable console logs")

	cmd.AddCommand(runCmd(opts), simulateCmd(opts), planCmd(opts))

	return cmd
}

// loadConfig reads the configuration file, if any, and applies the persistent flags.
func (o *rootOptions) loadConfig() (config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return config.Config{}, withExitCode(exitInvalidConfig, err)
		}
		cfg = loaded
	}

	if o.logLevel != "" {
		lvl, err := logger.ParseLevel(o.logLevel)
		if err != nil {
			return config.Config{}, withExitCode(exitInvalidConfig, err)
		}
		cfg.Log.Level = lvl
	}
	if o.dev {
		cfg.Log.Development = true
	}

	return cfg, nil
}

// setupLogger creates the logger of cfg writing to stderr and installs it as default.
func (o *rootOptions) setupLogger(cfg config.Config) logger.Logger {
	l := cfg.NewLogger(logger.WithOutput(o.stderr))
	logger.SetDefault(l)

	return l
}
