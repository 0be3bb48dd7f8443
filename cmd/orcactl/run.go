package main

import (
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/arloliu/go-smellie/config"
	"github.com/arloliu/go-smellie/session"
	"github.com/arloliu/go-smellie/stage"
	"github.com/arloliu/go-smellie/transport"
)

type runFlags struct {
	host           string
	port           int
	framing        string
	receiveTimeout time.Duration
	params         stage.Params
	textfile       string
}

func runCmd(opts *rootOptions) *cobra.Command {
	var f runFlags

	c := &cobra.Command{
		Use:   "run",
		Short: "Connect to the controller and play the calibration sequence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if err := f.apply(cmd, &cfg); err != nil {
				return withExitCode(exitInvalidConfig, err)
			}
			if err := cfg.Validate(); err != nil {
				return withExitCode(exitInvalidConfig, err)
			}

			return runSession(cmd, opts, cfg)
		},
	}

	fl := c.Flags()
	fl.StringVar(&f.host, "host", "", "Controller host")
	fl.IntVar(&f.port, "port", 0, "Controller port")
	fl.StringVar(&f.framing, "framing", "", "Token framing: packet|line")
	fl.DurationVar(&f.receiveTimeout, "receive-timeout", 0, "Per reply deadline, 0 waits forever")
	fl.IntVar(&f.params.Intensity, "intensity", 0, "Laser intensity in percent")
	fl.IntVar(&f.params.FrequencyMode, "frequency-mode", 0, "Sepia frequency mode")
	fl.IntVar(&f.params.LSChannel, "ls-channel", 0, "Laser switch channel")
	fl.IntVar(&f.params.FSChannel, "fs-channel", 0, "Fibre switch channel")
	fl.IntVar(&f.params.PulseCount, "pulse-count", 0, "Number of pulses")
	fl.IntVar(&f.params.TriggerFrequency, "trigger-frequency", 0, "Trigger frequency in Hz")
	fl.StringVar(&f.textfile, "metrics-textfile", "", "Write Prometheus metrics to this file after the run")

	return c
}

// apply overrides cfg with the flags set on the command line.
func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	changed := cmd.Flags().Changed

	if changed("host") {
		cfg.Controller.Host = f.host
	}
	if changed("port") {
		cfg.Controller.Port = f.port
	}
	if changed("framing") {
		fr, err := transport.ParseFraming(f.framing)
		if err != nil {
			return err
		}
		cfg.Controller.Framing = fr
	}
	if changed("receive-timeout") {
		cfg.Controller.ReceiveTimeout = f.receiveTimeout
	}
	if changed("intensity") {
		cfg.Run.Intensity = f.params.Intensity
	}
	if changed("frequency-mode") {
		cfg.Run.FrequencyMode = f.params.FrequencyMode
	}
	if changed("ls-channel") {
		cfg.Run.LSChannel = f.params.LSChannel
	}
	if changed("fs-channel") {
		cfg.Run.FSChannel = f.params.FSChannel
	}
	if changed("pulse-count") {
		cfg.Run.PulseCount = f.params.PulseCount
	}
	if changed("trigger-frequency") {
		cfg.Run.TriggerFrequency = f.params.TriggerFrequency
	}
	if changed("metrics-textfile") {
		cfg.Metrics.Textfile = f.textfile
	}

	return nil
}

func runSession(cmd *cobra.Command, opts *rootOptions, cfg config.Config) error {
	ctx := cmd.Context()
	log := opts.setupLogger(cfg)

	tcfg, err := cfg.TransportConfig(log)
	if err != nil {
		return withExitCode(exitInvalidConfig, err)
	}

	conn, err := transport.Dial(ctx, tcfg)
	if err != nil {
		return withExitCode(exitConnectFailed, err)
	}
	defer conn.Close()

	metrics := session.NewMetrics()
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		return err
	}

	sess, err := session.New(conn, cfg.Run,
		session.WithLogger(log),
		session.WithMetrics(metrics),
		session.WithStageHook(progress(opts.stdout, len(stage.Names()))),
	)
	if err != nil {
		return err
	}

	res := sess.Run(ctx)

	if cfg.Metrics.Textfile != "" {
		if err := prometheus.WriteToTextfile(cfg.Metrics.Textfile, reg); err != nil {
			log.Warn("failed to write metrics textfile", "path", cfg.Metrics.Textfile, "error", err)
		}
	}

	if !res.IsCompleted() {
		return withExitCode(exitRunFailed, res.Err())
	}
	fmt.Fprintln(opts.stdout, "run completed")

	return nil
}

// progress prints one line per stage.
func progress(w io.Writer, total int) session.StageHook {
	n := 0
	return func(st stage.Stage, out stage.Outcome) {
		n++
		if out.Advance {
			fmt.Fprintf(w, "[%2d/%d] %-22s ok\n", n, total, st.Name)
			return
		}
		fmt.Fprintf(w, "[%2d/%d] %-22s %s\n", n, total, st.Name, out.Kind)
	}
}
