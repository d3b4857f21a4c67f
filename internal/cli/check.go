package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var checkRunner = runCheck

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Compile every validator of an API description",
		Long: "Load an OpenAPI document, compile every request and response validator, " +
			"and report security schemes that cannot be evaluated with the configured credentials.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			return checkRunner(cmd.Context(), cfg)
		},
	}
	addInputFlags(cmd)
	cmd.Flags().Bool("strict", false, "Fail when security configuration problems are found")
	return cmd
}

func runCheck(ctx context.Context, cfg *Config) error {
	api, err := loadAPI(ctx, cfg)
	if err != nil {
		return err
	}
	d, err := newMockDispatcher(cfg, api, newLogger(cfg.Verbose))
	if err != nil {
		return err
	}
	problems := d.Audit()
	report(os.Stdout, len(d.Routes()), d.Validators(), cfg.Verbose, problems)
	if cfg.Strict && len(problems) > 0 {
		return fmt.Errorf("check: %d security configuration problem(s)", len(problems))
	}
	return nil
}

func report(w io.Writer, routes int, validators []string, verbose bool, problems []error) {
	fmt.Fprintf(w, "%d routes, %d validators compiled\n", routes, len(validators))
	if verbose {
		for _, name := range validators {
			fmt.Fprintf(w, "  %s\n", name)
		}
	}
	for _, p := range problems {
		fmt.Fprintf(w, "warning: %v\n", p)
	}
}
