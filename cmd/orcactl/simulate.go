package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-smellie/simulator"
	"github.com/arloliu/go-smellie/transport"
)

func simulateCmd(opts *rootOptions) *cobra.Command {
	var (
		listen      string
		framing     string
		faults      []string
		rebootDelay time.Duration
		runDelay    time.Duration
		replyGap    time.Duration
	)

	c := &cobra.Command{
		Use:   "simulate",
		Short: "Serve a simulated controller until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			log := opts.setupLogger(cfg)

			fr, err := transport.ParseFraming(framing)
			if err != nil {
				return withExitCode(exitInvalidConfig, err)
			}

			simCfg := simulator.Config{
				Framing:     fr,
				RebootDelay: rebootDelay,
				RunDelay:    runDelay,
				ReplyGap:    replyGap,
				Logger:      log,
			}
			for _, s := range faults {
				f, err := simulator.ParseFault(s)
				if err != nil {
					return withExitCode(exitInvalidConfig, err)
				}
				simCfg.Faults = append(simCfg.Faults, f)
			}

			srv := simulator.New(simCfg)
			if err := srv.Start(listen); err != nil {
				return err
			}
			fmt.Fprintf(opts.stdout, "simulator listening on %s\n", srv.Addr())

			<-cmd.Context().Done()

			return srv.Close()
		},
	}

	fl := c.Flags()
	fl.StringVar(&listen, "listen", fmt.Sprintf("127.0.0.1:%d", transport.DefaultPort), "Listen address")
	fl.StringVar(&framing, "framing", "packet", "Token framing: packet|line")
	fl.StringArrayVar(&faults, "fault", nil, "Force a reply, stage[#phase]=code (repeatable)")
	fl.DurationVar(&rebootDelay, "reboot-delay", 0, "Delay before the second laser switch confirmation")
	fl.DurationVar(&runDelay, "run-delay", 0, "Delay before the run completion reply")
	fl.DurationVar(&replyGap, "reply-gap", 0, "Pause between consecutive replies, 0 selects the packet framing default, negative disables")

	return c
}
