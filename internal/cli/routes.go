package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mark3labs/oasrouter/internal/dispatch"
	"github.com/mark3labs/oasrouter/internal/security"
)

var routesRunner = runRoutes

func newRoutesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "List the routes an API description registers",
		Long:  "Print method, router path, operationId and security requirement of every operation that gets routed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			return routesRunner(cmd.Context(), cfg)
		},
	}
	addInputFlags(cmd)
	return cmd
}

func runRoutes(ctx context.Context, cfg *Config) error {
	api, err := loadAPI(ctx, cfg)
	if err != nil {
		return err
	}
	d, err := newMockDispatcher(cfg, api, newLogger(cfg.Verbose))
	if err != nil {
		return err
	}
	return writeRoutes(os.Stdout, d.Routes(), dispatch.StyleColon)
}

func writeRoutes(w io.Writer, routes []dispatch.Route, style dispatch.PathStyle) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "METHOD\tPATH\tOPERATION\tSECURITY")
	for _, rt := range routes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			rt.Method,
			dispatch.TranslatePath(rt.Operation.Path, style),
			rt.Operation.OperationID,
			describeSecurity(rt.Security),
		)
	}
	return tw.Flush()
}

func describeSecurity(reqs []security.Requirement) string {
	if len(reqs) == 0 {
		return "-"
	}
	groups := make([]string, 0, len(reqs))
	for _, group := range reqs {
		if len(group) == 0 {
			groups = append(groups, "anonymous")
			continue
		}
		groups = append(groups, strings.Join(group, "+"))
	}
	return strings.Join(groups, " | ")
}
