package main

import (
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-smellie/stage"
	"github.com/arloliu/go-smellie/status"
)

func planCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Print the stage sequence for the current configuration",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			reg := status.Default()
			tw := tabwriter.NewWriter(opts.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tSTAGE\tSEND\tWAITS\tSUCCESS\tFAILURES\tFOLLOW-UP")
			for i, st := range stage.Plan(cfg.Run, reg) {
				success := "-"
				if name, ok := reg.Lookup(st.Success); ok {
					success = string(name)
				}

				failures := make([]string, 0, len(st.Failures))
				for code := range st.Failures {
					failures = append(failures, code.String())
				}
				slices.Sort(failures)

				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\t%s\n",
					i+1, st.Name, orDash(string(st.Payload)), st.Waits, success,
					orDash(strings.Join(failures, ",")), orDash(string(st.FollowUp)))
			}

			return tw.Flush()
		},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}
