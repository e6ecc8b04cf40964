package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vyrodovalexey/avaroute/internal/observability"
)

func routesCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List filters, routes and static roots in evaluation order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(flags.configPath)
			if err != nil {
				return err
			}

			r, rateLimit, err := buildRouter(cfg, routerDeps{logger: observability.NopLogger()})
			if err != nil {
				return err
			}
			if rateLimit != nil {
				defer rateLimit.Stop()
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "KIND\tMETHOD\tPATTERN")
			for _, info := range r.Describe() {
				method := info.Method
				if method == "" {
					method = "*"
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", info.Kind, method, info.Pattern)
			}
			return w.Flush()
		},
	}
}
